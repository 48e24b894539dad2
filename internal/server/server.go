// Package server exposes a backend.Store over the JSON REST contract the
// client speaks: GET ?_limit=N, POST, PATCH /{id} and DELETE /{id}.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"todosync/backend"
	"todosync/internal/utils"
)

// DefaultCollectionPath is where the collection is mounted
const DefaultCollectionPath = "/todos"

// maxBodyBytes bounds request bodies
const maxBodyBytes = 1 << 20

// taskGetter is implemented by stores that can fetch a single record
type taskGetter interface {
	GetTask(ctx context.Context, id int) (*backend.Task, error)
}

// Server is an http.Handler serving one task collection
type Server struct {
	store backend.Store
	log   *utils.Logger
	mux   *http.ServeMux
}

// New creates a handler serving store at DefaultCollectionPath
func New(store backend.Store, logger *utils.Logger) *Server {
	if logger == nil {
		logger = utils.GetLogger()
	}
	s := &Server{store: store, log: logger, mux: http.NewServeMux()}

	p := DefaultCollectionPath
	s.mux.HandleFunc("GET "+p, s.handleList)
	s.mux.HandleFunc("POST "+p, s.handleCreate)
	s.mux.HandleFunc("GET "+p+"/{id}", s.handleGet)
	s.mux.HandleFunc("PATCH "+p+"/{id}", s.handlePatch)
	s.mux.HandleFunc("DELETE "+p+"/{id}", s.handleDelete)
	return s
}

// ServeHTTP logs each request and dispatches it
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	if id := r.Header.Get("X-Request-ID"); id != "" {
		rec.Header().Set("X-Request-ID", id)
	}
	s.mux.ServeHTTP(rec, r)
	s.log.Debug("%s %s -> %d (%s)", r.Method, r.URL.RequestURI(), rec.status, time.Since(start).Round(time.Microsecond))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("_limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "_limit must be a non-negative integer")
			return
		}
		limit = n
	}

	tasks, err := s.store.ListTasks(r.Context(), limit)
	if err != nil {
		s.storeFailure(w, "list", err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Title     *string `json:"title"`
		Completed bool    `json:"completed"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if body.Title == nil || strings.TrimSpace(*body.Title) == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	created, err := s.store.CreateTask(r.Context(), *body.Title, body.Completed)
	if err != nil {
		s.storeFailure(w, "create", err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if getter, ok := s.store.(taskGetter); ok {
		task, err := getter.GetTask(r.Context(), id)
		if err != nil {
			s.storeFailure(w, "get", err)
			return
		}
		writeJSON(w, http.StatusOK, task)
		return
	}

	tasks, err := s.store.ListTasks(r.Context(), 0)
	if err != nil {
		s.storeFailure(w, "get", err)
		return
	}
	for _, task := range tasks {
		if task.ID == id {
			writeJSON(w, http.StatusOK, task)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, struct{}{})
}

func (s *Server) handlePatch(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var patch backend.TaskPatch
	if err := decodeBody(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		writeError(w, http.StatusBadRequest, "title must not be empty")
		return
	}

	updated, err := s.store.UpdateTask(r.Context(), id, patch)
	if err != nil {
		s.storeFailure(w, "update", err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.store.DeleteTask(r.Context(), id); err != nil {
		s.storeFailure(w, "delete", err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

// storeFailure answers 404 for missing ids and 500 otherwise
func (s *Server) storeFailure(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, backend.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, struct{}{})
		return
	}
	s.log.Error("%s failed: %v", op, err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func pathID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusNotFound, struct{}{})
		return 0, false
	}
	return id, true
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return errors.New("body must be a JSON object")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
