// Package supervisor owns the browse-task lifecycle: admission, bounded
// concurrent execution of agent loops, status tracking and cancellation.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/cometlabs/comet/api/schemas"
	"github.com/cometlabs/comet/internal/agent"
	"github.com/cometlabs/comet/internal/config"
	"github.com/cometlabs/comet/internal/llmclient"
)

// ErrShuttingDown rejects submissions after Shutdown has begun.
var ErrShuttingDown = errors.New("supervisor is shutting down")

// ErrTaskRunning rejects deletion of a task that is still executing.
var ErrTaskRunning = errors.New("task is still running")

// ClientFactory builds a ChatClient for one task, applying the request's
// per-task overrides on top of the configured defaults.
type ClientFactory func(req schemas.BrowseRequest) (schemas.ChatClient, error)

// Supervisor runs agent loops for submitted goals, at most MaxConcurrent at
// a time. Tasks beyond the bound wait in Pending.
type Supervisor struct {
	cfg      config.SupervisorConfig
	browser  config.BrowserConfig
	store    schemas.TaskStore
	browsers schemas.BrowserManager
	clients  ClientFactory
	logger   *zap.Logger
	metrics  *Metrics

	sem *semaphore.Weighted
	wg  sync.WaitGroup

	mu       sync.Mutex
	running  map[string]*handle
	shutdown bool
}

// handle tracks one executing task so Cancel and SubmitAndWait can reach it.
type handle struct {
	loop *agent.Loop
	done chan struct{}
}

// New assembles a supervisor. metrics may be nil.
func New(
	cfg config.SupervisorConfig,
	browserCfg config.BrowserConfig,
	store schemas.TaskStore,
	browsers schemas.BrowserManager,
	clients ClientFactory,
	metrics *Metrics,
	logger *zap.Logger,
) *Supervisor {
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Supervisor{
		cfg:      cfg,
		browser:  browserCfg,
		store:    store,
		browsers: browsers,
		clients:  clients,
		logger:   logger.Named("supervisor"),
		metrics:  metrics,
		sem:      semaphore.NewWeighted(int64(maxConcurrent)),
		running:  make(map[string]*handle),
	}
}

// DefaultClientFactory builds gateway clients from the configured defaults,
// letting each request override backend, model, endpoint and key.
func DefaultClientFactory(defaults config.LLMConfig, logger *zap.Logger) ClientFactory {
	return func(req schemas.BrowseRequest) (schemas.ChatClient, error) {
		cfg := defaults
		if req.BackendType != "" {
			cfg.Backend = req.BackendType
		}
		if req.Model != "" {
			cfg.Model = req.Model
		}
		if req.BaseURL != "" {
			cfg.BaseURL = req.BaseURL
		}
		if req.APIKey != "" {
			cfg.APIKey = req.APIKey
		}
		return llmclient.New(cfg, logger)
	}
}

// Submit validates the request, records a Pending task and schedules it.
// The returned snapshot is the task as admitted, not as finished.
func (s *Supervisor) Submit(ctx context.Context, req schemas.BrowseRequest) (*schemas.BrowseTask, error) {
	if req.Goal == "" {
		return nil, fmt.Errorf("goal must not be empty")
	}

	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		return nil, ErrShuttingDown
	}
	s.mu.Unlock()

	now := time.Now().UTC()
	task := &schemas.BrowseTask{
		ID:        uuid.New().String(),
		Goal:      req.Goal,
		Status:    schemas.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to record task: %w", err)
	}
	s.metrics.taskSubmitted()

	h := &handle{done: make(chan struct{})}
	s.wg.Add(1)
	go s.execute(task.ID, req, h)

	s.logger.Info("Task submitted.", zap.String("task_id", task.ID), zap.String("goal", req.Goal))
	return task.Clone(), nil
}

// SubmitAndWait schedules the task and blocks until it reaches a terminal
// state or ctx expires. On ctx expiry the task keeps running in the
// background and its ID remains pollable.
func (s *Supervisor) SubmitAndWait(ctx context.Context, req schemas.BrowseRequest) (*schemas.BrowseTask, error) {
	if req.Goal == "" {
		return nil, fmt.Errorf("goal must not be empty")
	}

	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		return nil, ErrShuttingDown
	}
	s.mu.Unlock()

	now := time.Now().UTC()
	task := &schemas.BrowseTask{
		ID:        uuid.New().String(),
		Goal:      req.Goal,
		Status:    schemas.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to record task: %w", err)
	}
	s.metrics.taskSubmitted()

	h := &handle{done: make(chan struct{})}
	s.wg.Add(1)
	go s.execute(task.ID, req, h)

	select {
	case <-h.done:
		return s.store.Get(ctx, task.ID)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Status returns a snapshot of the task.
func (s *Supervisor) Status(ctx context.Context, id string) (*schemas.BrowseTask, error) {
	return s.store.Get(ctx, id)
}

// List returns task snapshots per the filter.
func (s *Supervisor) List(ctx context.Context, filter schemas.TaskFilter) ([]*schemas.BrowseTask, error) {
	return s.store.List(ctx, filter)
}

// Cancel stops a task. A Pending task fails immediately without ever
// running; a Running loop is asked to stop cooperatively and finishes its
// in-flight tool call first. Cancelling a terminal task is a no-op.
func (s *Supervisor) Cancel(ctx context.Context, id string) (*schemas.BrowseTask, error) {
	s.mu.Lock()
	if h, ok := s.running[id]; ok {
		h.loop.Cancel()
		s.mu.Unlock()
		s.logger.Info("Cancellation requested for running task.", zap.String("task_id", id))
		return s.store.Get(ctx, id)
	}

	task, err := s.store.Get(ctx, id)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if task.Status == schemas.StatusPending {
		s.failTaskLocked(ctx, task, "cancelled")
		s.mu.Unlock()
		s.logger.Info("Pending task cancelled.", zap.String("task_id", id))
		return task.Clone(), nil
	}
	s.mu.Unlock()

	// Already terminal; cancellation is idempotent.
	return task, nil
}

// Delete removes a terminal or pending-cancelled task from the store.
func (s *Supervisor) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	_, isRunning := s.running[id]
	s.mu.Unlock()
	if isRunning {
		return ErrTaskRunning
	}

	task, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if !task.Status.Terminal() {
		return ErrTaskRunning
	}
	return s.store.Delete(ctx, id)
}

// Health reports gateway reachability and task counts.
func (s *Supervisor) Health(ctx context.Context) map[string]any {
	s.mu.Lock()
	runningCount := len(s.running)
	s.mu.Unlock()

	gateway := "ok"
	client, err := s.clients(schemas.BrowseRequest{})
	if err != nil {
		gateway = err.Error()
	} else if err := client.Ping(ctx); err != nil {
		gateway = err.Error()
	}

	health := map[string]any{
		"status":        "ok",
		"gateway":       gateway,
		"running_tasks": runningCount,
	}
	if gateway != "ok" {
		health["status"] = "degraded"
	}
	return health
}

// Shutdown stops accepting tasks and waits for in-flight loops to finish,
// up to the context deadline.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.shutdown = true
	for id, h := range s.running {
		h.loop.Cancel()
		s.logger.Debug("Cancelling task for shutdown.", zap.String("task_id", id))
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("timed out waiting for tasks to drain: %w", ctx.Err())
	}
}

// execute is the per-task goroutine: wait for a slot, run the loop, record
// the terminal state.
func (s *Supervisor) execute(taskID string, req schemas.BrowseRequest, h *handle) {
	defer s.wg.Done()
	defer close(h.done)

	ctx := context.Background()

	if err := s.sem.Acquire(ctx, 1); err != nil {
		s.failTask(ctx, taskID, fmt.Sprintf("failed to acquire worker slot: %v", err))
		return
	}
	defer s.sem.Release(1)

	// The task may have been cancelled while queued.
	task, err := s.store.Get(ctx, taskID)
	if err != nil || task.Status != schemas.StatusPending {
		return
	}

	client, err := s.clients(req)
	if err != nil {
		s.failTask(ctx, taskID, fmt.Sprintf("failed to build gateway client: %v", err))
		return
	}

	headless := s.browser.Headless
	if req.Headless != nil {
		headless = *req.Headless
	}
	session, err := s.browsers.NewSession(ctx, schemas.SessionOptions{Headless: headless})
	if err != nil {
		s.failTask(ctx, taskID, fmt.Sprintf("failed to start browser session: %v", err))
		return
	}
	defer func() {
		if err := session.Close(context.Background()); err != nil {
			s.logger.Warn("Failed to close browser session.", zap.String("task_id", taskID), zap.Error(err))
		}
	}()

	maxIterations := s.cfg.MaxIterations
	if req.MaxIterations > 0 {
		maxIterations = req.MaxIterations
	}
	loop := agent.NewLoop(client, session, agent.LoopConfig{
		MaxIterations: maxIterations,
		ReadPageLimit: s.cfg.ReadPageLimit,
	}, s.logger.With(zap.String("task_id", taskID)))

	// Transition to Running and register the handle under one critical
	// section so Cancel always sees a consistent view. The status is
	// re-read under the lock: a Pending cancel may have landed since the
	// check above.
	s.mu.Lock()
	task, err = s.store.Get(ctx, taskID)
	if err != nil || task.Status != schemas.StatusPending {
		s.mu.Unlock()
		return
	}
	task.Status = schemas.StatusRunning
	task.UpdatedAt = time.Now().UTC()
	if err := s.store.Update(ctx, task); err != nil {
		s.mu.Unlock()
		s.logger.Error("Failed to mark task running.", zap.String("task_id", taskID), zap.Error(err))
		return
	}
	s.running[taskID] = &handle{loop: loop, done: h.done}
	s.mu.Unlock()
	s.metrics.taskStarted()

	result, runErr := loop.Run(ctx, task.Goal)

	s.mu.Lock()
	delete(s.running, taskID)
	s.mu.Unlock()
	s.metrics.taskFinished()

	now := time.Now().UTC()
	task.UpdatedAt = now
	task.CompletedAt = &now

	switch {
	case errors.Is(runErr, agent.ErrCancelled):
		task.Status = schemas.StatusFailed
		task.Error = "cancelled"
	case runErr != nil:
		task.Status = schemas.StatusFailed
		task.Error = runErr.Error()
	default:
		task.Status = schemas.StatusCompleted
		task.Result = result
		s.metrics.observeIterations(result.Iterations)
	}
	s.metrics.taskTerminal(task.Status)

	if err := s.store.Update(ctx, task); err != nil {
		s.logger.Error("Failed to record terminal task state.", zap.String("task_id", taskID), zap.Error(err))
		return
	}
	s.logger.Info("Task finished.",
		zap.String("task_id", taskID),
		zap.String("status", string(task.Status)),
		zap.String("error", task.Error),
	)
}

func (s *Supervisor) failTask(ctx context.Context, taskID, reason string) {
	task, err := s.store.Get(ctx, taskID)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.failTaskLocked(ctx, task, reason)
	s.mu.Unlock()
}

// failTaskLocked marks the task failed. Caller holds s.mu.
func (s *Supervisor) failTaskLocked(ctx context.Context, task *schemas.BrowseTask, reason string) {
	now := time.Now().UTC()
	task.Status = schemas.StatusFailed
	task.Error = reason
	task.UpdatedAt = now
	task.CompletedAt = &now
	if err := s.store.Update(ctx, task); err != nil {
		s.logger.Error("Failed to mark task failed.", zap.String("task_id", task.ID), zap.Error(err))
	}
	s.metrics.taskTerminal(schemas.StatusFailed)
}
