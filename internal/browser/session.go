package browser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/cometlabs/comet/api/schemas"
	"github.com/cometlabs/comet/internal/config"
)

// readPageScript extracts the visible body text with script, style and
// noscript nodes stripped out.
const readPageScript = `(() => {
    const clone = document.body.cloneNode(true);
    const scripts = clone.querySelectorAll('script, style, noscript');
    scripts.forEach(el => el.remove());
    return clone.innerText;
})()`

// Session represents a live tab in a dedicated Chrome process.
type Session struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
	cfg    config.BrowserConfig
	logger *zap.Logger

	onClose func()

	mu       sync.Mutex
	isClosed bool
}

// Ensure Session implements the interface.
var _ schemas.BrowserSession = (*Session)(nil)

// ID returns the unique identifier for the session.
func (s *Session) ID() string {
	return s.id
}

// Navigate loads the URL and waits for the document body. A failed load is
// reported in the result rather than as an error; the caller decides what to
// do with it.
func (s *Session) Navigate(ctx context.Context, url string) (*schemas.NavigationResult, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	s.logger.Info("Navigating.", zap.String("url", url))

	var finalURL string
	err := s.runActions(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Location(&finalURL),
	)
	if err != nil {
		s.logger.Warn("Navigation failed.", zap.String("url", url), zap.Error(err))
		return &schemas.NavigationResult{
			Success:  false,
			FinalURL: url,
			Error:    err.Error(),
		}, nil
	}

	return &schemas.NavigationResult{Success: true, FinalURL: finalURL}, nil
}

// ReadContent returns the page title and text. With a selector it joins the
// inner text of every match with blank lines; without one it reads the whole
// body minus script and style content.
func (s *Session) ReadContent(ctx context.Context, selector string) (*schemas.PageContent, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	var title, text, url string
	actions := []chromedp.Action{
		chromedp.Title(&title),
		chromedp.Location(&url),
	}
	if selector != "" {
		actions = append(actions, chromedp.Evaluate(selectorTextScript(selector), &text))
	} else {
		actions = append(actions, chromedp.Evaluate(readPageScript, &text))
	}

	if err := s.runActions(ctx, actions...); err != nil {
		return nil, fmt.Errorf("failed to read page content: %w", err)
	}

	text = strings.TrimSpace(text)
	return &schemas.PageContent{
		Title:  title,
		Text:   text,
		URL:    url,
		Length: len(text),
	}, nil
}

// Screenshot captures the viewport, the full page, or a single element, and
// writes it as a PNG under the configured screenshot directory. The filename
// gets a .png suffix if it lacks one.
func (s *Session) Screenshot(ctx context.Context, opts schemas.ScreenshotOptions) (string, error) {
	if err := s.checkOpen(); err != nil {
		return "", err
	}

	filename := opts.Filename
	if !strings.HasSuffix(filename, ".png") {
		filename += ".png"
	}
	if err := os.MkdirAll(s.cfg.ScreenshotDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create screenshot directory: %w", err)
	}
	path := filepath.Join(s.cfg.ScreenshotDir, filename)

	var buf []byte
	var action chromedp.Action
	switch {
	case opts.Selector != "":
		action = chromedp.Screenshot(opts.Selector, &buf, chromedp.NodeVisible, chromedp.ByQuery)
	case opts.FullPage:
		action = chromedp.FullScreenshot(&buf, 90)
	default:
		action = chromedp.CaptureScreenshot(&buf)
	}

	if err := s.runActions(ctx, action); err != nil {
		return "", fmt.Errorf("failed to capture screenshot: %w", err)
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return "", fmt.Errorf("failed to write screenshot file: %w", err)
	}

	s.logger.Info("Screenshot saved.", zap.String("path", path))
	return path, nil
}

// PageState reports the current URL, title and document ready state.
func (s *Session) PageState(ctx context.Context) (*schemas.PageState, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	var state schemas.PageState
	err := s.runActions(ctx,
		chromedp.Location(&state.URL),
		chromedp.Title(&state.Title),
		chromedp.Evaluate("document.readyState", &state.ReadyState),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get page state: %w", err)
	}
	return &state, nil
}

// Close terminates the tab and its Chrome process. Safe to call more than
// once.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.isClosed {
		s.mu.Unlock()
		return nil
	}
	s.isClosed = true
	s.mu.Unlock()

	s.logger.Debug("Closing browser session.")

	if s.cancel != nil {
		s.cancel()
	}
	if s.onClose != nil {
		s.onClose()
	}
	return nil
}

func (s *Session) checkOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isClosed {
		return fmt.Errorf("browser session %s is closed", s.id)
	}
	return nil
}

// runActions executes chromedp actions under both the session lifetime and
// the caller's context, bounded by the configured operation timeout.
func (s *Session) runActions(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := combineContext(s.ctx, ctx)
	defer cancel()

	if s.cfg.OperationTimeout > 0 {
		var tcancel context.CancelFunc
		runCtx, tcancel = context.WithTimeout(runCtx, s.cfg.OperationTimeout)
		defer tcancel()
	}

	return chromedp.Run(runCtx, actions...)
}

// selectorTextScript joins the inner text of every element matching the
// selector with blank lines. The selector is embedded as a JSON string so
// quoting cannot break the script.
func selectorTextScript(selector string) string {
	quoted := jsonQuote(selector)
	return fmt.Sprintf(`(() => {
    const texts = [];
    document.querySelectorAll(%s).forEach(el => texts.push(el.innerText));
    return texts.join('\n\n');
})()`, quoted)
}
