package backend

import (
	"context"
	"errors"
)

// ErrNotFound is returned by a Store when the task id does not exist.
var ErrNotFound = errors.New("task not found")

// Task is a task resource as the remote store models it
type Task struct {
	ID        int    `json:"id"`
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

// TaskPatch is a partial update. Nil fields are left out of the request.
type TaskPatch struct {
	Title     *string `json:"title,omitempty"`
	Completed *bool   `json:"completed,omitempty"`
}

// Empty reports whether the patch changes nothing
func (p TaskPatch) Empty() bool {
	return p.Title == nil && p.Completed == nil
}

// Apply copies the set fields of the patch onto t.
func (p TaskPatch) Apply(t *Task) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Completed != nil {
		t.Completed = *p.Completed
	}
}

// TitlePatch returns a patch that only sets the title.
func TitlePatch(title string) TaskPatch {
	return TaskPatch{Title: &title}
}

// CompletedPatch returns a patch that only sets the completion state.
func CompletedPatch(completed bool) TaskPatch {
	return TaskPatch{Completed: &completed}
}

// Store defines the interface for the remote task collection
type Store interface {
	// ListTasks returns the first limit tasks in store order. limit <= 0 returns all.
	ListTasks(ctx context.Context, limit int) ([]Task, error)
	CreateTask(ctx context.Context, title string, completed bool) (*Task, error)
	// UpdateTask applies a partial update and returns the resulting record.
	UpdateTask(ctx context.Context, id int, patch TaskPatch) (*Task, error)
	DeleteTask(ctx context.Context, id int) error

	Close() error
}
