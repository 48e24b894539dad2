// Package cache holds the in-process mirror of the remote task collection.
package cache

import (
	"todosync/backend"
	"todosync/internal/utils"
)

// Task is the local representation of one to-do item.
type Task struct {
	ID        int    `json:"id"`
	Text      string `json:"text"`
	Completed bool   `json:"completed"`
	DueDate   string `json:"dueDate,omitempty"` // client-only, never sent to the store
}

// Cache is an ordered sequence of task records with unique ids.
// It is not safe for concurrent use; the owner serialises access.
type Cache struct {
	tasks []Task
}

// New returns an empty cache
func New() *Cache {
	return &Cache{}
}

// FromRemote maps a store record to the local shape. Due dates are not
// modelled by the store, so the result never has one.
func FromRemote(t backend.Task) Task {
	return Task{ID: t.ID, Text: t.Title, Completed: t.Completed}
}

// Load replaces the cache with the first limit remote tasks. limit <= 0 keeps all.
// Later duplicates of an id are dropped.
func (c *Cache) Load(remote []backend.Task, limit int) {
	if limit > 0 && len(remote) > limit {
		remote = remote[:limit]
	}
	seen := make(map[int]bool, len(remote))
	tasks := make([]Task, 0, len(remote))
	for _, t := range remote {
		if seen[t.ID] {
			continue
		}
		seen[t.ID] = true
		tasks = append(tasks, FromRemote(t))
	}
	c.tasks = tasks
}

// InsertFront prepends task. An existing record with the same id is
// replaced so ids stay unique; replaced reports whether that happened.
func (c *Cache) InsertFront(task Task) (replaced bool) {
	if i := c.indexOf(task.ID); i >= 0 {
		c.tasks = append(c.tasks[:i], c.tasks[i+1:]...)
		replaced = true
	}
	c.tasks = append([]Task{task}, c.tasks...)
	return replaced
}

// FindByID returns a copy of the record with the given id.
func (c *Cache) FindByID(id int) (Task, bool) {
	if i := c.indexOf(id); i >= 0 {
		return c.tasks[i], true
	}
	return Task{}, false
}

// Toggle flips the completion state. Returns false when id is absent.
func (c *Cache) Toggle(id int) bool {
	i := c.indexOf(id)
	if i < 0 {
		return false
	}
	c.tasks[i].Completed = !c.tasks[i].Completed
	return true
}

// SetCompleted sets the completion state. Returns false when id is absent.
func (c *Cache) SetCompleted(id int, completed bool) bool {
	i := c.indexOf(id)
	if i < 0 {
		return false
	}
	c.tasks[i].Completed = completed
	return true
}

// Rename replaces the title with the trimmed text.
func (c *Cache) Rename(id int, text string) error {
	text, err := utils.NormalizeText(text)
	if err != nil {
		return err
	}
	i := c.indexOf(id)
	if i < 0 {
		return utils.ErrTaskNotFound(id)
	}
	c.tasks[i].Text = text
	return nil
}

// Remove deletes the record, keeping the order of the rest.
// Returns false (and changes nothing) when id is absent.
func (c *Cache) Remove(id int) bool {
	i := c.indexOf(id)
	if i < 0 {
		return false
	}
	c.tasks = append(c.tasks[:i], c.tasks[i+1:]...)
	return true
}

// Tasks returns a copy of the records in display order.
func (c *Cache) Tasks() []Task {
	out := make([]Task, len(c.tasks))
	copy(out, c.tasks)
	return out
}

// Len returns the number of records
func (c *Cache) Len() int {
	return len(c.tasks)
}

func (c *Cache) indexOf(id int) int {
	for i := range c.tasks {
		if c.tasks[i].ID == id {
			return i
		}
	}
	return -1
}
