// Package app binds the local task cache to a remote store. Every write is
// confirmed by the store before the cache changes.
package app

import (
	"todosync/internal/cache"
	"todosync/internal/views"
)

// State is the client state owned by a single goroutine: the CLI command
// or the TUI event loop.
type State struct {
	Tasks         *cache.Cache
	CurrentFilter views.Filter
}

// NewState returns an empty cache showing filter f
func NewState(f views.Filter) *State {
	return &State{Tasks: cache.New(), CurrentFilter: f}
}

// View renders the cache under the current filter
func (s *State) View() views.View {
	return views.Render(s.Tasks.Tasks(), s.CurrentFilter)
}
