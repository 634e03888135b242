package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/cometlabs/comet/api/schemas"
)

// fakeSession is an in-memory BrowserSession for loop and router tests.
type fakeSession struct {
	mu sync.Mutex

	pageText    string
	pageTitle   string
	currentURL  string
	failNavErr  string
	readErr     error
	stateCalls  int
	navigations []string
}

var _ schemas.BrowserSession = (*fakeSession)(nil)

func (f *fakeSession) ID() string { return "fake-session" }

func (f *fakeSession) Navigate(_ context.Context, url string) (*schemas.NavigationResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.navigations = append(f.navigations, url)
	if f.failNavErr != "" {
		return &schemas.NavigationResult{Success: false, FinalURL: url, Error: f.failNavErr}, nil
	}
	f.currentURL = url
	return &schemas.NavigationResult{Success: true, FinalURL: url}, nil
}

func (f *fakeSession) ReadContent(_ context.Context, selector string) (*schemas.PageContent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return nil, f.readErr
	}
	text := f.pageText
	if selector != "" {
		text = "selected: " + text
	}
	return &schemas.PageContent{
		Title:  f.pageTitle,
		Text:   text,
		URL:    f.currentURL,
		Length: len(text),
	}, nil
}

func (f *fakeSession) Screenshot(_ context.Context, opts schemas.ScreenshotOptions) (string, error) {
	name := opts.Filename
	if !strings.HasSuffix(name, ".png") {
		name += ".png"
	}
	return "screenshots/" + name, nil
}

func (f *fakeSession) PageState(_ context.Context) (*schemas.PageState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stateCalls++
	return &schemas.PageState{URL: f.currentURL, Title: f.pageTitle, ReadyState: "complete"}, nil
}

func (f *fakeSession) Close(context.Context) error { return nil }

// scriptedClient returns canned completions in order and fails once the
// script runs out.
type scriptedClient struct {
	mu      sync.Mutex
	replies []scriptedReply
	calls   int
}

type scriptedReply struct {
	completion *schemas.Completion
	err        error
}

var _ schemas.ChatClient = (*scriptedClient)(nil)

func (c *scriptedClient) Complete(context.Context, []schemas.Message, []schemas.ToolSchema) (*schemas.Completion, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.calls >= len(c.replies) {
		return nil, fmt.Errorf("scripted client exhausted after %d calls", c.calls)
	}
	reply := c.replies[c.calls]
	c.calls++
	return reply.completion, reply.err
}

func (c *scriptedClient) Ping(context.Context) error { return nil }

func toolReply(content string, name schemas.ToolName, args map[string]any) scriptedReply {
	return scriptedReply{completion: &schemas.Completion{
		Content:  content,
		ToolCall: &schemas.ToolCall{ID: "call_test", Name: name, Arguments: args},
	}}
}

func textReply(content string) scriptedReply {
	return scriptedReply{completion: &schemas.Completion{Content: content}}
}
