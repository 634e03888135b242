package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cometlabs/comet/api/schemas"
	"github.com/cometlabs/comet/internal/config"
	"github.com/cometlabs/comet/internal/store"
	"github.com/cometlabs/comet/internal/supervisor"
)

// instantClient completes every task on the first model call.
type instantClient struct{}

func (instantClient) Complete(context.Context, []schemas.Message, []schemas.ToolSchema) (*schemas.Completion, error) {
	return &schemas.Completion{
		ToolCall: &schemas.ToolCall{ID: "c", Name: schemas.ToolComplete, Arguments: map[string]any{"answer": "done"}},
	}, nil
}

func (instantClient) Ping(context.Context) error { return nil }

type stubSession struct{}

func (stubSession) ID() string { return "stub" }
func (stubSession) Navigate(context.Context, string) (*schemas.NavigationResult, error) {
	return &schemas.NavigationResult{Success: true}, nil
}
func (stubSession) ReadContent(context.Context, string) (*schemas.PageContent, error) {
	return &schemas.PageContent{}, nil
}
func (stubSession) Screenshot(context.Context, schemas.ScreenshotOptions) (string, error) {
	return "", nil
}
func (stubSession) PageState(context.Context) (*schemas.PageState, error) {
	return &schemas.PageState{}, nil
}
func (stubSession) Close(context.Context) error { return nil }

type stubBrowsers struct{}

func (stubBrowsers) NewSession(context.Context, schemas.SessionOptions) (schemas.BrowserSession, error) {
	return stubSession{}, nil
}
func (stubBrowsers) Shutdown(context.Context) error { return nil }

func newTestServer(t *testing.T) (*httptest.Server, *supervisor.Supervisor) {
	t.Helper()
	sup := supervisor.New(
		config.SupervisorConfig{MaxConcurrent: 2, MaxIterations: 15, ReadPageLimit: 4000},
		config.BrowserConfig{Headless: true},
		store.NewMemory(),
		stubBrowsers{},
		func(schemas.BrowseRequest) (schemas.ChatClient, error) { return instantClient{}, nil },
		nil,
		zap.NewNop(),
	)
	registry := prometheus.NewRegistry()
	server := httptest.NewServer(NewServer(sup, registry, zap.NewNop()).Router())
	t.Cleanup(func() {
		server.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		sup.Shutdown(ctx)
	})
	return server, sup
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	return resp
}

func decodeTask(t *testing.T, resp *http.Response) schemas.BrowseTask {
	t.Helper()
	defer resp.Body.Close()
	var task schemas.BrowseTask
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&task))
	return task
}

func TestBrowseAsync(t *testing.T) {
	server, sup := newTestServer(t)

	resp := postJSON(t, server.URL+"/api/v1/browse", map[string]any{"goal": "check the weather"})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	task := decodeTask(t, resp)
	assert.NotEmpty(t, task.ID)
	assert.Equal(t, "check the weather", task.Goal)

	require.Eventually(t, func() bool {
		got, err := sup.Status(context.Background(), task.ID)
		return err == nil && got.Status == schemas.StatusCompleted
	}, 5*time.Second, 10*time.Millisecond)
}

func TestBrowseAsync_EmptyGoal(t *testing.T) {
	server, _ := newTestServer(t)
	resp := postJSON(t, server.URL+"/api/v1/browse", map[string]any{"goal": ""})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestBrowseAsync_MalformedBody(t *testing.T) {
	server, _ := newTestServer(t)
	resp, err := http.Post(server.URL+"/api/v1/browse", "application/json", bytes.NewReader([]byte("{nope")))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestBrowseSync(t *testing.T) {
	server, _ := newTestServer(t)

	resp := postJSON(t, server.URL+"/api/v1/browse/sync", map[string]any{"goal": "quick answer"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	task := decodeTask(t, resp)
	assert.Equal(t, schemas.StatusCompleted, task.Status)
	require.NotNil(t, task.Result)
	assert.Equal(t, "done", task.Result.Answer)
}

func TestGetTask(t *testing.T) {
	server, _ := newTestServer(t)

	submitted := decodeTask(t, postJSON(t, server.URL+"/api/v1/browse/sync", map[string]any{"goal": "g"}))

	resp, err := http.Get(server.URL + "/api/v1/tasks/" + submitted.ID)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	task := decodeTask(t, resp)
	assert.Equal(t, submitted.ID, task.ID)
}

func TestGetTask_NotFound(t *testing.T) {
	server, _ := newTestServer(t)
	resp, err := http.Get(server.URL + "/api/v1/tasks/nope")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListTasks(t *testing.T) {
	server, _ := newTestServer(t)

	decodeTask(t, postJSON(t, server.URL+"/api/v1/browse/sync", map[string]any{"goal": "a"}))
	decodeTask(t, postJSON(t, server.URL+"/api/v1/browse/sync", map[string]any{"goal": "b"}))

	resp, err := http.Get(server.URL + "/api/v1/tasks?status=completed&limit=10")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var payload struct {
		Tasks []schemas.BrowseTask `json:"tasks"`
		Count int                  `json:"count"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	assert.Equal(t, 2, payload.Count)
	require.Len(t, payload.Tasks, 2)
}

func TestListTasks_InvalidStatus(t *testing.T) {
	server, _ := newTestServer(t)
	resp, err := http.Get(server.URL + "/api/v1/tasks?status=bogus")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCancelTask_Terminal(t *testing.T) {
	server, _ := newTestServer(t)
	submitted := decodeTask(t, postJSON(t, server.URL+"/api/v1/browse/sync", map[string]any{"goal": "g"}))

	resp := postJSON(t, server.URL+"/api/v1/tasks/"+submitted.ID+"/cancel", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	task := decodeTask(t, resp)
	assert.Equal(t, schemas.StatusCompleted, task.Status)
}

func TestDeleteTask(t *testing.T) {
	server, _ := newTestServer(t)
	submitted := decodeTask(t, postJSON(t, server.URL+"/api/v1/browse/sync", map[string]any{"goal": "g"}))

	req, err := http.NewRequest(http.MethodDelete, server.URL+"/api/v1/tasks/"+submitted.ID, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	check, err := http.Get(server.URL + "/api/v1/tasks/" + submitted.ID)
	require.NoError(t, err)
	defer check.Body.Close()
	assert.Equal(t, http.StatusNotFound, check.StatusCode)
}

func TestHealthz(t *testing.T) {
	server, _ := newTestServer(t)
	resp, err := http.Get(server.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var health map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	// Generate at least one request series first.
	resp, err := http.Get(server.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()

	metricsResp, err := http.Get(server.URL + "/metrics")
	require.NoError(t, err)
	defer metricsResp.Body.Close()
	assert.Equal(t, http.StatusOK, metricsResp.StatusCode)
}
