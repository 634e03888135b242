// Package browser provides chromedp-backed page sessions behind the
// schemas.BrowserSession interface. Each session owns an isolated Chrome
// process so per-task options (headless or not) never leak between tasks.
package browser

import (
	"context"
	"fmt"
	"sync"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cometlabs/comet/api/schemas"
	"github.com/cometlabs/comet/internal/config"
)

// Manager creates and tracks browser sessions.
type Manager struct {
	logger *zap.Logger
	cfg    config.BrowserConfig

	sessions map[string]*Session
	mu       sync.Mutex
	closed   bool
}

// Ensure Manager implements the interface.
var _ schemas.BrowserManager = (*Manager)(nil)

// NewManager creates a browser manager. Chrome processes are launched
// lazily, one per session.
func NewManager(cfg config.BrowserConfig, logger *zap.Logger) *Manager {
	return &Manager{
		logger:   logger.Named("browser_manager"),
		cfg:      cfg,
		sessions: make(map[string]*Session),
	}
}

// NewSession launches a Chrome process and connects a fresh tab to it.
func (m *Manager) NewSession(ctx context.Context, opts schemas.SessionOptions) (schemas.BrowserSession, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, fmt.Errorf("browser manager is shut down")
	}
	m.mu.Unlock()

	allocOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	allocOpts = append(allocOpts,
		chromedp.Flag("headless", opts.Headless),
		chromedp.WindowSize(m.cfg.WindowWidth, m.cfg.WindowHeight),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if m.cfg.NoSandbox {
		allocOpts = append(allocOpts, chromedp.NoSandbox)
	}
	if m.cfg.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(m.cfg.UserAgent))
	}

	// The allocator derives from Background. The session must outlive the
	// request context that created it; the caller's deadline is honored
	// per operation instead.
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	cancelAll := func() {
		tabCancel()
		allocCancel()
	}

	// Nobody is at the keyboard to answer alert/confirm/prompt, and an
	// open dialog blocks every subsequent CDP command on the tab.
	chromedp.ListenTarget(tabCtx, func(ev interface{}) {
		if dialog, ok := ev.(*page.EventJavascriptDialogOpening); ok {
			m.logger.Debug("Dismissing JavaScript dialog.", zap.String("message", dialog.Message))
			go func() {
				if err := chromedp.Run(tabCtx, page.HandleJavaScriptDialog(false)); err != nil {
					m.logger.Warn("Failed to dismiss JavaScript dialog.", zap.Error(err))
				}
			}()
		}
	})

	// Force the browser process to start now so launch failures surface
	// here instead of on the first navigation.
	startCtx, startCancel := combineContext(tabCtx, ctx)
	if err := chromedp.Run(startCtx); err != nil {
		startCancel()
		cancelAll()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	startCancel()

	sessionID := uuid.New().String()
	s := &Session{
		id:     sessionID,
		ctx:    tabCtx,
		cancel: cancelAll,
		cfg:    m.cfg,
		logger: m.logger.With(zap.String("session_id", sessionID)),
		onClose: func() {
			m.mu.Lock()
			delete(m.sessions, sessionID)
			m.mu.Unlock()
		},
	}

	m.mu.Lock()
	m.sessions[sessionID] = s
	m.mu.Unlock()

	s.logger.Info("Browser session started.", zap.Bool("headless", opts.Headless))
	return s, nil
}

// Shutdown closes every outstanding session and refuses new ones.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	remaining := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		remaining = append(remaining, s)
	}
	m.mu.Unlock()

	var firstErr error
	for _, s := range remaining {
		if err := s.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	m.logger.Info("Browser manager shut down.", zap.Int("sessions_closed", len(remaining)))
	return firstErr
}
