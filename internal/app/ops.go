package app

import (
	"context"
	"errors"
	"fmt"

	"todosync/backend"
	"todosync/internal/cache"
	"todosync/internal/utils"
)

// Intent is a user request against the task collection
type Intent interface {
	intent()
}

// LoadIntent fetches the first Limit tasks and replaces the cache
type LoadIntent struct{ Limit int }

// AddIntent creates a task. Due is optional and kept client side.
type AddIntent struct {
	Text string
	Due  string
}

// ToggleIntent flips the completion state of a cached task
type ToggleIntent struct{ ID int }

// EditIntent renames a cached task
type EditIntent struct {
	ID   int
	Text string
}

// DeleteIntent removes a task from the store and the cache
type DeleteIntent struct{ ID int }

func (LoadIntent) intent()   {}
func (AddIntent) intent()    {}
func (ToggleIntent) intent() {}
func (EditIntent) intent()   {}
func (DeleteIntent) intent() {}

// Operation is a validated intent ready to be sent. Do does not touch State
// and may run on any goroutine.
type Operation interface {
	Do(ctx context.Context, store backend.Store) (Result, error)
	String() string
}

// Result is a store confirmation. Apply must run on the goroutine owning State.
type Result interface {
	Apply(s *State)
	Summary() string
}

// Prepare validates intent against the current state. Toggle and edit of an
// id missing from the cache fail here with a NotFoundError, before any
// request is made.
func Prepare(s *State, in Intent) (Operation, error) {
	switch in := in.(type) {
	case LoadIntent:
		return loadOp{limit: in.Limit}, nil

	case AddIntent:
		text, err := utils.NormalizeText(in.Text)
		if err != nil {
			return nil, err
		}
		due, err := utils.ParseDueDate(in.Due)
		if err != nil {
			return nil, err
		}
		return addOp{text: text, due: due}, nil

	case ToggleIntent:
		task, ok := s.Tasks.FindByID(in.ID)
		if !ok {
			return nil, utils.ErrTaskNotFound(in.ID)
		}
		return toggleOp{id: in.ID, completed: !task.Completed}, nil

	case EditIntent:
		text, err := utils.NormalizeText(in.Text)
		if err != nil {
			return nil, err
		}
		if _, ok := s.Tasks.FindByID(in.ID); !ok {
			return nil, utils.ErrTaskNotFound(in.ID)
		}
		return editOp{id: in.ID, text: text}, nil

	case DeleteIntent:
		return deleteOp{id: in.ID}, nil
	}
	return nil, fmt.Errorf("unsupported intent %T", in)
}

// storeError turns a store miss into a NotFoundError for id
func storeError(err error, id int) error {
	if errors.Is(err, backend.ErrNotFound) {
		return utils.ErrTaskNotFound(id)
	}
	return err
}

type loadOp struct{ limit int }

func (o loadOp) Do(ctx context.Context, store backend.Store) (Result, error) {
	tasks, err := store.ListTasks(ctx, o.limit)
	if err != nil {
		return nil, err
	}
	return loadResult{tasks: tasks, limit: o.limit}, nil
}

func (o loadOp) String() string { return fmt.Sprintf("load %d", o.limit) }

type loadResult struct {
	tasks []backend.Task
	limit int
}

func (r loadResult) Apply(s *State) { s.Tasks.Load(r.tasks, r.limit) }

func (r loadResult) Summary() string {
	n := len(r.tasks)
	if r.limit > 0 && n > r.limit {
		n = r.limit
	}
	return fmt.Sprintf("Loaded %d tasks", n)
}

type addOp struct {
	text string
	due  string
}

func (o addOp) Do(ctx context.Context, store backend.Store) (Result, error) {
	created, err := store.CreateTask(ctx, o.text, false)
	if err != nil {
		return nil, err
	}
	return addResult{task: cache.Task{ID: created.ID, Text: o.text, Completed: false, DueDate: o.due}}, nil
}

func (o addOp) String() string { return fmt.Sprintf("add %q", o.text) }

type addResult struct{ task cache.Task }

func (r addResult) Apply(s *State) { s.Tasks.InsertFront(r.task) }

func (r addResult) Summary() string { return fmt.Sprintf("Added task %d", r.task.ID) }

type toggleOp struct {
	id        int
	completed bool
}

func (o toggleOp) Do(ctx context.Context, store backend.Store) (Result, error) {
	updated, err := store.UpdateTask(ctx, o.id, backend.CompletedPatch(o.completed))
	if err != nil {
		return nil, storeError(err, o.id)
	}
	return toggleResult{id: o.id, completed: updated.Completed}, nil
}

func (o toggleOp) String() string { return fmt.Sprintf("toggle %d", o.id) }

type toggleResult struct {
	id        int
	completed bool
}

func (r toggleResult) Apply(s *State) { s.Tasks.SetCompleted(r.id, r.completed) }

func (r toggleResult) Summary() string {
	if r.completed {
		return fmt.Sprintf("Completed task %d", r.id)
	}
	return fmt.Sprintf("Reopened task %d", r.id)
}

type editOp struct {
	id   int
	text string
}

func (o editOp) Do(ctx context.Context, store backend.Store) (Result, error) {
	if _, err := store.UpdateTask(ctx, o.id, backend.TitlePatch(o.text)); err != nil {
		return nil, storeError(err, o.id)
	}
	return editResult{id: o.id, text: o.text}, nil
}

func (o editOp) String() string { return fmt.Sprintf("edit %d", o.id) }

type editResult struct {
	id   int
	text string
}

// Apply renames the task. The text was validated in Prepare and a missing
// id means the task is already gone, so the error is dropped.
func (r editResult) Apply(s *State) { _ = s.Tasks.Rename(r.id, r.text) }

func (r editResult) Summary() string { return fmt.Sprintf("Renamed task %d", r.id) }

type deleteOp struct{ id int }

func (o deleteOp) Do(ctx context.Context, store backend.Store) (Result, error) {
	if err := store.DeleteTask(ctx, o.id); err != nil {
		return nil, storeError(err, o.id)
	}
	return deleteResult{id: o.id}, nil
}

func (o deleteOp) String() string { return fmt.Sprintf("delete %d", o.id) }

type deleteResult struct{ id int }

// Apply removes the task; an id that is not cached is a no-op.
func (r deleteResult) Apply(s *State) { s.Tasks.Remove(r.id) }

func (r deleteResult) Summary() string { return fmt.Sprintf("Deleted task %d", r.id) }
