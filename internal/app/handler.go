package app

import (
	"context"

	"todosync/backend"
	"todosync/internal/utils"
	"todosync/internal/views"
)

// Handler runs intents synchronously: prepare, send, then apply on success.
type Handler struct {
	store backend.Store
	state *State
	log   *utils.Logger
	limit int
}

// NewHandler binds store and state. limit is the page size used by Load.
func NewHandler(store backend.Store, state *State, logger *utils.Logger, limit int) *Handler {
	if logger == nil {
		logger = utils.GetLogger()
	}
	return &Handler{store: store, state: state, log: logger, limit: limit}
}

// State returns the bound state
func (h *Handler) State() *State {
	return h.state
}

// Limit returns the page size used by Load
func (h *Handler) Limit() int {
	return h.limit
}

// Run executes one intent. On any error the state is left unchanged.
func (h *Handler) Run(ctx context.Context, in Intent) (Result, error) {
	op, err := Prepare(h.state, in)
	if err != nil {
		h.log.Debug("rejected %T: %v", in, err)
		return nil, err
	}
	res, err := op.Do(ctx, h.store)
	if err != nil {
		h.log.Debug("%s failed: %v", op, err)
		return nil, err
	}
	res.Apply(h.state)
	h.log.Debug("%s: %s", op, res.Summary())
	return res, nil
}

// Load replaces the cache with the first page of the store
func (h *Handler) Load(ctx context.Context) error {
	_, err := h.Run(ctx, LoadIntent{Limit: h.limit})
	return err
}

// Add creates a task and prepends it once the store assigns its id
func (h *Handler) Add(ctx context.Context, text, due string) error {
	_, err := h.Run(ctx, AddIntent{Text: text, Due: due})
	return err
}

// Toggle flips the completion state of a cached task
func (h *Handler) Toggle(ctx context.Context, id int) error {
	_, err := h.Run(ctx, ToggleIntent{ID: id})
	return err
}

// Edit renames a cached task
func (h *Handler) Edit(ctx context.Context, id int, text string) error {
	_, err := h.Run(ctx, EditIntent{ID: id, Text: text})
	return err
}

// Delete removes a task from the store, then from the cache if present
func (h *Handler) Delete(ctx context.Context, id int) error {
	_, err := h.Run(ctx, DeleteIntent{ID: id})
	return err
}

// SetFilter changes the active filter. No request is made.
func (h *Handler) SetFilter(f views.Filter) {
	h.state.CurrentFilter = f
}

// View renders the current state
func (h *Handler) View() views.View {
	return h.state.View()
}
