// Package testutil provides shared test utilities: an in-memory task store
// with a call log, and a CLI runner backed by a local server.
package testutil

import (
	"context"
	"fmt"
	"sync"

	"todosync/backend"
)

// Call records one store invocation
type Call struct {
	Method    string // List, Create, Update or Delete
	ID        int
	Limit     int
	Title     string
	Completed bool
	Patch     backend.TaskPatch
}

// MemoryStore is a backend.Store kept in memory. It is safe for concurrent use.
type MemoryStore struct {
	mu      sync.Mutex
	tasks   []backend.Task
	nextID  int
	fixedID int
	calls   []Call
	fail    map[string]error
}

// NewMemoryStore returns a store holding tasks in order
func NewMemoryStore(tasks ...backend.Task) *MemoryStore {
	s := &MemoryStore{fail: map[string]error{}, nextID: 1}
	for _, t := range tasks {
		s.tasks = append(s.tasks, t)
		if t.ID >= s.nextID {
			s.nextID = t.ID + 1
		}
	}
	return s
}

// SampleTasks returns n tasks with ids 1..n; every id in completed is done
func SampleTasks(n int, completed ...int) []backend.Task {
	done := make(map[int]bool, len(completed))
	for _, id := range completed {
		done[id] = true
	}
	tasks := make([]backend.Task, n)
	for i := range tasks {
		id := i + 1
		tasks[i] = backend.Task{ID: id, Title: fmt.Sprintf("task %d", id), Completed: done[id]}
	}
	return tasks
}

// AssignID makes every create return id without storing the record, the
// way jsonplaceholder answers.
func (s *MemoryStore) AssignID(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fixedID = id
}

// FailWith makes every call of method return err until cleared with nil
func (s *MemoryStore) FailWith(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.fail, method)
		return
	}
	s.fail[method] = err
}

// Calls returns a copy of the call log
func (s *MemoryStore) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// Tasks returns a copy of the stored records
func (s *MemoryStore) Tasks() []backend.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]backend.Task, len(s.tasks))
	copy(out, s.tasks)
	return out
}

func (s *MemoryStore) record(c Call) error {
	s.calls = append(s.calls, c)
	return s.fail[c.Method]
}

func (s *MemoryStore) indexOf(id int) int {
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			return i
		}
	}
	return -1
}

// ListTasks implements backend.Store
func (s *MemoryStore) ListTasks(ctx context.Context, limit int) ([]backend.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record(Call{Method: "List", Limit: limit}); err != nil {
		return nil, err
	}
	tasks := s.tasks
	if limit > 0 && len(tasks) > limit {
		tasks = tasks[:limit]
	}
	out := make([]backend.Task, len(tasks))
	copy(out, tasks)
	return out, nil
}

// CreateTask implements backend.Store
func (s *MemoryStore) CreateTask(ctx context.Context, title string, completed bool) (*backend.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record(Call{Method: "Create", Title: title, Completed: completed}); err != nil {
		return nil, err
	}
	if s.fixedID > 0 {
		return &backend.Task{ID: s.fixedID, Title: title, Completed: completed}, nil
	}
	t := backend.Task{ID: s.nextID, Title: title, Completed: completed}
	s.nextID++
	s.tasks = append(s.tasks, t)
	return &t, nil
}

// UpdateTask implements backend.Store
func (s *MemoryStore) UpdateTask(ctx context.Context, id int, patch backend.TaskPatch) (*backend.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record(Call{Method: "Update", ID: id, Patch: patch}); err != nil {
		return nil, err
	}
	i := s.indexOf(id)
	if i < 0 {
		return nil, fmt.Errorf("update %d: %w", id, backend.ErrNotFound)
	}
	patch.Apply(&s.tasks[i])
	t := s.tasks[i]
	return &t, nil
}

// DeleteTask implements backend.Store. Like jsonplaceholder it confirms
// deletes of unknown ids.
func (s *MemoryStore) DeleteTask(ctx context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record(Call{Method: "Delete", ID: id}); err != nil {
		return err
	}
	if i := s.indexOf(id); i >= 0 {
		s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
	}
	return nil
}

// Close implements backend.Store
func (s *MemoryStore) Close() error {
	return nil
}

var _ backend.Store = (*MemoryStore)(nil)
