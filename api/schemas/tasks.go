package schemas

import (
	"errors"
	"time"
)

// -- Task Schemas --

// ErrTaskNotFound is returned by task queries for unknown or deleted IDs.
// It is the only error a status query can produce.
var ErrTaskNotFound = errors.New("task not found")

// TaskStatus is the lifecycle state of a browse task. Transitions follow
// exactly Pending -> Running -> {Completed | Failed}; terminal states are
// never left.
type TaskStatus string

const (
	StatusPending   TaskStatus = "pending"
	StatusRunning   TaskStatus = "running"
	StatusCompleted TaskStatus = "completed"
	StatusFailed    TaskStatus = "failed"
)

// Terminal reports whether the status is final.
func (s TaskStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Valid reports whether the status is one of the defined states.
func (s TaskStatus) Valid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// FinishReason records how an agent loop ended.
const (
	// FinishComplete: the model invoked the complete tool.
	FinishComplete = "complete"
	// FinishImplicit: the model answered with free text and no tool call,
	// taken as an implicit final answer.
	FinishImplicit = "implicit"
	// FinishBudget: the iteration budget ran out before completion.
	FinishBudget = "budget"
)

// BrowseResult is the final outcome of one agent loop run. Immutable once
// attached to a task.
type BrowseResult struct {
	Success      bool     `json:"success"`
	Answer       string   `json:"answer"`
	Iterations   int      `json:"iterations"`
	FinishReason string   `json:"finish_reason"`
	Screenshots  []string `json:"screenshots,omitempty"`
}

// BrowseTask is the unit tracked by the supervisor.
type BrowseTask struct {
	ID          string        `json:"task_id"`
	Goal        string        `json:"goal"`
	Status      TaskStatus    `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	Result      *BrowseResult `json:"result,omitempty"`
	Error       string        `json:"error,omitempty"`
}

// Clone returns a deep copy, so stored tasks can hand out snapshots without
// exposing shared mutable state.
func (t *BrowseTask) Clone() *BrowseTask {
	if t == nil {
		return nil
	}
	cp := *t
	if t.CompletedAt != nil {
		at := *t.CompletedAt
		cp.CompletedAt = &at
	}
	if t.Result != nil {
		res := *t.Result
		if t.Result.Screenshots != nil {
			res.Screenshots = append([]string(nil), t.Result.Screenshots...)
		}
		cp.Result = &res
	}
	return &cp
}

// BrowseRequest is the inbound task-submission contract. Zero values fall
// back to configured defaults.
type BrowseRequest struct {
	Goal          string `json:"goal"`
	Model         string `json:"model,omitempty"`
	BackendType   string `json:"backend_type,omitempty"`
	BaseURL       string `json:"base_url,omitempty"`
	APIKey        string `json:"api_key,omitempty"`
	MaxIterations int    `json:"max_iterations,omitempty"`
	Headless      *bool  `json:"headless,omitempty"`
}

// TaskFilter controls which tasks List returns.
type TaskFilter struct {
	Status *TaskStatus
	Limit  int
}
