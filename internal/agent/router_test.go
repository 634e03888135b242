package agent

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cometlabs/comet/api/schemas"
)

func newTestRouter(session *fakeSession, limit int) *ToolRouter {
	return NewToolRouter(session, limit, zap.NewNop())
}

func TestDispatch_NavigateRepairsScheme(t *testing.T) {
	session := &fakeSession{}
	router := newTestRouter(session, 4000)

	result := router.Dispatch(context.Background(), &schemas.ToolCall{
		Name:      schemas.ToolNavigate,
		Arguments: map[string]any{"url": "example.com"},
	})

	require.True(t, result.Success)
	require.Len(t, session.navigations, 1)
	assert.Equal(t, "https://example.com", session.navigations[0])
	assert.True(t, router.HasPage())
	assert.Equal(t, "https://example.com", router.CurrentURL())
}

func TestDispatch_NavigateKeepsExplicitScheme(t *testing.T) {
	session := &fakeSession{}
	router := newTestRouter(session, 4000)

	router.Dispatch(context.Background(), &schemas.ToolCall{
		Name:      schemas.ToolNavigate,
		Arguments: map[string]any{"url": "http://plain.example"},
	})
	assert.Equal(t, "http://plain.example", session.navigations[0])
}

func TestDispatch_NavigateRequiresURL(t *testing.T) {
	router := newTestRouter(&fakeSession{}, 4000)

	result := router.Dispatch(context.Background(), &schemas.ToolCall{
		Name:      schemas.ToolNavigate,
		Arguments: map[string]any{},
	})
	require.False(t, result.Success)
	assert.Contains(t, result.Error, "URL is required")
	assert.False(t, router.HasPage())
}

func TestDispatch_NavigateFailureIsObservation(t *testing.T) {
	session := &fakeSession{failNavErr: "dns lookup failed"}
	router := newTestRouter(session, 4000)

	result := router.Dispatch(context.Background(), &schemas.ToolCall{
		Name:      schemas.ToolNavigate,
		Arguments: map[string]any{"url": "https://nowhere.invalid"},
	})
	require.False(t, result.Success)
	assert.Contains(t, result.Error, "dns lookup failed")
	assert.False(t, router.HasPage())
}

func TestDispatch_ReadPageRequiresLoadedPage(t *testing.T) {
	router := newTestRouter(&fakeSession{}, 4000)

	result := router.Dispatch(context.Background(), &schemas.ToolCall{
		Name:      schemas.ToolReadPage,
		Arguments: map[string]any{},
	})
	require.False(t, result.Success)
	assert.Equal(t, "No page loaded. Navigate to a URL first.", result.Error)
}

func TestDispatch_ReadPageTruncatesAtExactBound(t *testing.T) {
	const limit = 100
	session := &fakeSession{pageText: strings.Repeat("a", limit*3), pageTitle: "Long Page"}
	router := newTestRouter(session, limit)
	mustNavigate(t, router)

	result := router.Dispatch(context.Background(), &schemas.ToolCall{
		Name:      schemas.ToolReadPage,
		Arguments: map[string]any{},
	})
	require.True(t, result.Success)

	content, ok := result.Data["content"].(string)
	require.True(t, ok)
	assert.Len(t, content, limit)
	assert.Equal(t, true, result.Data["truncated"])
	// The reported length is the untruncated original.
	assert.Equal(t, limit*3, result.Data["length"])
}

func TestDispatch_ReadPageUnderBoundNotTruncated(t *testing.T) {
	session := &fakeSession{pageText: "short text", pageTitle: "Short"}
	router := newTestRouter(session, 4000)
	mustNavigate(t, router)

	result := router.Dispatch(context.Background(), &schemas.ToolCall{
		Name:      schemas.ToolReadPage,
		Arguments: map[string]any{},
	})
	require.True(t, result.Success)
	assert.Equal(t, "short text", result.Data["content"])
	_, truncated := result.Data["truncated"]
	assert.False(t, truncated)
}

func TestDispatch_ReadPageSelectorPassedThrough(t *testing.T) {
	session := &fakeSession{pageText: "body text"}
	router := newTestRouter(session, 4000)
	mustNavigate(t, router)

	result := router.Dispatch(context.Background(), &schemas.ToolCall{
		Name:      schemas.ToolReadPage,
		Arguments: map[string]any{"selector": "h1"},
	})
	require.True(t, result.Success)
	assert.Equal(t, "selected: body text", result.Data["content"])
}

func TestDispatch_ScreenshotRequiresLoadedPage(t *testing.T) {
	router := newTestRouter(&fakeSession{}, 4000)

	result := router.Dispatch(context.Background(), &schemas.ToolCall{
		Name:      schemas.ToolScreenshot,
		Arguments: map[string]any{"filename": "page"},
	})
	require.False(t, result.Success)
	assert.Equal(t, "No page loaded. Navigate to a URL first.", result.Error)
}

func TestDispatch_ScreenshotAccumulatesPaths(t *testing.T) {
	session := &fakeSession{}
	router := newTestRouter(session, 4000)
	mustNavigate(t, router)

	first := router.Dispatch(context.Background(), &schemas.ToolCall{
		Name:      schemas.ToolScreenshot,
		Arguments: map[string]any{"filename": "one"},
	})
	second := router.Dispatch(context.Background(), &schemas.ToolCall{
		Name:      schemas.ToolScreenshot,
		Arguments: map[string]any{"filename": "two.png"},
	})
	require.True(t, first.Success)
	require.True(t, second.Success)
	assert.Equal(t, []string{"screenshots/one.png", "screenshots/two.png"}, router.Screenshots())
}

func TestDispatch_CompleteNeverTouchesBrowser(t *testing.T) {
	session := &fakeSession{}
	router := newTestRouter(session, 4000)

	result := router.Dispatch(context.Background(), &schemas.ToolCall{
		Name:      schemas.ToolComplete,
		Arguments: map[string]any{"answer": "done"},
	})
	require.True(t, result.Success)
	assert.Empty(t, session.navigations)
	assert.Equal(t, 0, session.stateCalls)
}

func TestDispatch_UnknownTool(t *testing.T) {
	router := newTestRouter(&fakeSession{}, 4000)

	result := router.Dispatch(context.Background(), &schemas.ToolCall{
		Name:      schemas.ToolName("fly"),
		Arguments: map[string]any{},
	})
	require.False(t, result.Success)
	assert.Contains(t, result.Error, "Unknown tool: fly")
}

func mustNavigate(t *testing.T, router *ToolRouter) {
	t.Helper()
	result := router.Dispatch(context.Background(), &schemas.ToolCall{
		Name:      schemas.ToolNavigate,
		Arguments: map[string]any{"url": "https://example.com"},
	})
	require.True(t, result.Success)
}
