// Package store persists browse tasks behind schemas.TaskStore. Two backends
// ship: an in-memory map for single-process deployments and a SQLite file
// for restarts that must not lose history.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/cometlabs/comet/api/schemas"
)

// MemoryStore is a mutex-guarded map of tasks. All reads hand out deep
// copies so callers can never mutate stored state.
type MemoryStore struct {
	mu    sync.RWMutex
	tasks map[string]*schemas.BrowseTask
}

var _ schemas.TaskStore = (*MemoryStore)(nil)

// NewMemory creates an empty in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{tasks: make(map[string]*schemas.BrowseTask)}
}

func (s *MemoryStore) Create(_ context.Context, task *schemas.BrowseTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[task.ID] = task.Clone()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*schemas.BrowseTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	task, ok := s.tasks[id]
	if !ok {
		return nil, schemas.ErrTaskNotFound
	}
	return task.Clone(), nil
}

func (s *MemoryStore) Update(_ context.Context, task *schemas.BrowseTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[task.ID]; !ok {
		return schemas.ErrTaskNotFound
	}
	s.tasks[task.ID] = task.Clone()
	return nil
}

func (s *MemoryStore) List(_ context.Context, filter schemas.TaskFilter) ([]*schemas.BrowseTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*schemas.BrowseTask, 0, len(s.tasks))
	for _, task := range s.tasks {
		if filter.Status != nil && task.Status != *filter.Status {
			continue
		}
		out = append(out, task.Clone())
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		return schemas.ErrTaskNotFound
	}
	delete(s.tasks, id)
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
