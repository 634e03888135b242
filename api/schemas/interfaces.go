package schemas

import "context"

// -- Browser Capability Port --

// NavigationResult reports the outcome of a navigation.
type NavigationResult struct {
	Success  bool   `json:"success"`
	FinalURL string `json:"final_url"`
	Error    string `json:"error,omitempty"`
}

// PageContent is the extracted text of the current page.
type PageContent struct {
	Title  string `json:"title"`
	Text   string `json:"text"`
	URL    string `json:"url"`
	Length int    `json:"length"`
}

// ScreenshotOptions configures a screenshot capture.
type ScreenshotOptions struct {
	Filename string
	Selector string
	FullPage bool
}

// PageState is a cheap snapshot of the current page, taken once per loop
// iteration during the Perceive phase.
type PageState struct {
	URL        string `json:"url"`
	Title      string `json:"title"`
	ReadyState string `json:"ready_state"`
}

// BrowserSession is the narrow interface to a headless-browser tab. Every
// call may block on real network I/O; implementations bound each operation
// with their own timeout rather than hanging indefinitely.
type BrowserSession interface {
	ID() string
	Navigate(ctx context.Context, url string) (*NavigationResult, error)
	ReadContent(ctx context.Context, selector string) (*PageContent, error)
	Screenshot(ctx context.Context, opts ScreenshotOptions) (string, error)
	PageState(ctx context.Context) (*PageState, error)
	Close(ctx context.Context) error
}

// SessionOptions tunes a single session at creation time.
type SessionOptions struct {
	Headless bool
}

// BrowserManager owns browser process lifecycles and creates isolated
// sessions, one per task.
type BrowserManager interface {
	NewSession(ctx context.Context, opts SessionOptions) (BrowserSession, error)
	// Shutdown terminates all browser processes still held by the manager.
	Shutdown(ctx context.Context) error
}

// -- Model Gateway --

// ChatClient abstracts one chat-completion backend. Implementations are
// stateless between calls; all conversational state lives in the messages
// passed in.
type ChatClient interface {
	// Complete runs one reasoning step. Backends without native tool calling
	// serialize the schemas into the prompt and parse the reply; either way
	// the caller receives a normalized Completion.
	Complete(ctx context.Context, messages []Message, tools []ToolSchema) (*Completion, error)
	// Ping verifies the backend is reachable. Used by readiness probes.
	Ping(ctx context.Context) error
}

// -- Task Store --

// TaskStore persists browse tasks. The default implementation is in-memory;
// a durable backend can be substituted without changing the supervisor.
// Get and List return copies that callers may mutate freely. Lookups for
// unknown IDs return ErrTaskNotFound.
type TaskStore interface {
	Create(ctx context.Context, task *BrowseTask) error
	Get(ctx context.Context, id string) (*BrowseTask, error)
	Update(ctx context.Context, task *BrowseTask) error
	// List returns tasks ordered by creation time, most recent first.
	List(ctx context.Context, filter TaskFilter) ([]*BrowseTask, error)
	Delete(ctx context.Context, id string) error
	Close() error
}
