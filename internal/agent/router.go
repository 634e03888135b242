package agent

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/cometlabs/comet/api/schemas"
)

// ToolRouter dispatches tool calls onto a browser session. Failures come
// back as unsuccessful ToolResults, never as errors; the model gets to see
// them and route around them.
type ToolRouter struct {
	session schemas.BrowserSession
	logger  *zap.Logger

	maxReadLen  int
	hasPage     bool
	currentURL  string
	screenshots []string
}

// NewToolRouter wires a router to a live session. maxReadLen bounds the text
// returned by read_page.
func NewToolRouter(session schemas.BrowserSession, maxReadLen int, logger *zap.Logger) *ToolRouter {
	return &ToolRouter{
		session:    session,
		logger:     logger.Named("tool_router"),
		maxReadLen: maxReadLen,
	}
}

// HasPage reports whether a navigation has succeeded yet.
func (r *ToolRouter) HasPage() bool {
	return r.hasPage
}

// CurrentURL returns the URL of the last successful navigation.
func (r *ToolRouter) CurrentURL() string {
	return r.currentURL
}

// Screenshots returns the paths of every screenshot taken so far.
func (r *ToolRouter) Screenshots() []string {
	out := make([]string, len(r.screenshots))
	copy(out, r.screenshots)
	return out
}

// Dispatch executes a single tool call. The complete tool is handled by the
// loop before dispatch ever sees it; receiving it here still succeeds so the
// ordering invariant holds, but it touches no browser state.
func (r *ToolRouter) Dispatch(ctx context.Context, call *schemas.ToolCall) *schemas.ToolResult {
	r.logger.Info("Executing tool.", zap.String("tool", string(call.Name)))

	switch call.Name {
	case schemas.ToolNavigate:
		return r.navigate(ctx, call)
	case schemas.ToolReadPage:
		return r.readPage(ctx, call)
	case schemas.ToolScreenshot:
		return r.screenshot(ctx, call)
	case schemas.ToolComplete:
		return &schemas.ToolResult{Tool: call.Name, Success: true}
	default:
		return failure(call.Name, fmt.Sprintf("Unknown tool: %s", call.Name))
	}
}

func (r *ToolRouter) navigate(ctx context.Context, call *schemas.ToolCall) *schemas.ToolResult {
	url := call.StringArg("url")
	if url == "" {
		return failure(call.Name, "URL is required")
	}
	url = repairScheme(url)

	nav, err := r.session.Navigate(ctx, url)
	if err != nil {
		return failure(call.Name, err.Error())
	}
	if !nav.Success {
		return failure(call.Name, fmt.Sprintf("Navigation failed: %s", nav.Error))
	}

	r.hasPage = true
	r.currentURL = nav.FinalURL
	return &schemas.ToolResult{
		Tool:    call.Name,
		Success: true,
		Data: map[string]any{
			"result": fmt.Sprintf("Successfully navigated to %s", nav.FinalURL),
			"url":    nav.FinalURL,
		},
	}
}

func (r *ToolRouter) readPage(ctx context.Context, call *schemas.ToolCall) *schemas.ToolResult {
	if !r.hasPage {
		return failure(call.Name, "No page loaded. Navigate to a URL first.")
	}

	content, err := r.session.ReadContent(ctx, call.StringArg("selector"))
	if err != nil {
		return failure(call.Name, err.Error())
	}

	text := content.Text
	truncated := false
	if r.maxReadLen > 0 && len(text) > r.maxReadLen {
		text = text[:r.maxReadLen]
		truncated = true
	}

	data := map[string]any{
		"title":   content.Title,
		"content": text,
		"url":     content.URL,
		"length":  content.Length,
	}
	if truncated {
		data["truncated"] = true
	}
	return &schemas.ToolResult{Tool: call.Name, Success: true, Data: data}
}

func (r *ToolRouter) screenshot(ctx context.Context, call *schemas.ToolCall) *schemas.ToolResult {
	if !r.hasPage {
		return failure(call.Name, "No page loaded. Navigate to a URL first.")
	}
	filename := call.StringArg("filename")
	if filename == "" {
		filename = "screenshot.png"
	}

	path, err := r.session.Screenshot(ctx, schemas.ScreenshotOptions{
		Filename: filename,
		Selector: call.StringArg("selector"),
		FullPage: call.BoolArg("full_page"),
	})
	if err != nil {
		return failure(call.Name, err.Error())
	}

	r.screenshots = append(r.screenshots, path)
	return &schemas.ToolResult{
		Tool:    call.Name,
		Success: true,
		Data:    map[string]any{"result": fmt.Sprintf("Screenshot saved to %s", path), "path": path},
	}
}

func failure(tool schemas.ToolName, msg string) *schemas.ToolResult {
	return &schemas.ToolResult{Tool: tool, Success: false, Error: msg}
}

// repairScheme prepends https:// to bare hostnames so models that omit the
// protocol still navigate.
func repairScheme(url string) string {
	if strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") {
		return url
	}
	return "https://" + url
}
