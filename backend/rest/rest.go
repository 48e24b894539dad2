// Package rest provides a backend.Store over a JSON REST collection
// (list with ?_limit, POST, PATCH and DELETE on /<id>).
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"todosync/backend"
	"todosync/internal/ratelimit"
	"todosync/internal/utils"
)

const (
	// DefaultBaseURL is the public collection the widget was built against
	DefaultBaseURL = "https://jsonplaceholder.typicode.com/todos"

	contentTypeJSON = "application/json; charset=utf-8"

	// maxResponseBytes bounds how much of a response body is read
	maxResponseBytes = 4 << 20
)

// Config holds REST store connection settings
type Config struct {
	BaseURL    string // collection URL, e.g. https://host/todos
	Timeout    time.Duration
	MaxRetries int // retries after a 429; 0 disables, negative uses the ratelimit default
	RetryDelay time.Duration
	HTTPClient *http.Client // Override for testing
	Logger     *utils.Logger
}

// Store implements backend.Store over HTTP
type Store struct {
	baseURL string
	client  *ratelimit.Client
	stats   *ratelimit.Stats
	schemas *schemas
	log     *utils.Logger
}

// New creates a new REST store
func New(cfg Config) (*Store, error) {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid task store URL: %q", cfg.BaseURL)
	}

	s, err := compileSchemas()
	if err != nil {
		return nil, err
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = utils.GetLogger()
	}

	stats := ratelimit.NewStats()
	return &Store{
		baseURL: baseURL,
		client: ratelimit.NewClient(ratelimit.Config{
			HTTPClient:   httpClient,
			MaxRetries:   cfg.MaxRetries,
			BaseDelay:    cfg.RetryDelay,
			EnableJitter: true,
			Stats:        stats,
			Name:         parsed.Host,
		}),
		stats:   stats,
		schemas: s,
		log:     logger,
	}, nil
}

// BaseURL returns the collection URL
func (s *Store) BaseURL() string {
	return s.baseURL
}

// Stats returns the rate limit statistics of this store
func (s *Store) Stats() *ratelimit.Stats {
	return s.stats
}

// Close releases idle connections
func (s *Store) Close() error {
	if n := s.stats.RateLimitCount(); n > 0 {
		s.log.Debug("%s throttled %d requests, last at %s", s.baseURL, n, s.stats.LastRateLimitTime().Format(time.TimeOnly))
	}
	if transport, ok := s.client.HTTPClient().Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
	return nil
}

// response is a fully read HTTP response
type response struct {
	status int
	body   []byte
}

// do performs a request against path (relative to the collection) and reads the body.
func (s *Store) do(ctx context.Context, method, path string, body any) (*response, error) {
	op := method + " " + s.baseURL + path

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%s: encode body: %w", op, err)
		}
	}

	requestID := uuid.New().String()
	build := func(ctx context.Context) (*http.Request, error) {
		var bodyReader io.Reader
		if payload != nil {
			bodyReader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, bodyReader)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("X-Request-ID", requestID)
		if payload != nil {
			req.Header.Set("Content-Type", contentTypeJSON)
		}
		return req, nil
	}

	start := time.Now()
	resp, err := s.client.Do(ctx, build)
	if err != nil {
		s.log.Debug("%s [%s] failed: %v", op, requestID, err)
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, &utils.NetworkError{Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &utils.NetworkError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}

	s.log.Debug("%s [%s] -> %d in %s", op, requestID, resp.StatusCode, time.Since(start).Round(time.Millisecond))
	return &response{status: resp.StatusCode, body: data}, nil
}

// check maps non-2xx statuses to NetworkErrors. A 404 on the collection
// itself means the base URL is wrong, not that a task is missing.
func check(op string, resp *response) error {
	if resp.status < 200 || resp.status > 299 {
		return &utils.NetworkError{Op: op, StatusCode: resp.status, Err: errors.New(strings.TrimSpace(snippet(resp.body)))}
	}
	return nil
}

// checkTask is check for /<id> paths, where 404 becomes backend.ErrNotFound
func checkTask(op string, resp *response) error {
	if resp.status == http.StatusNotFound {
		return fmt.Errorf("%s: %w", op, backend.ErrNotFound)
	}
	return check(op, resp)
}

// snippet returns the start of a body for error messages
func snippet(body []byte) string {
	const max = 200
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	if len(body) == 0 {
		return "empty response"
	}
	return string(body)
}

func taskPath(id int) string {
	return "/" + strconv.Itoa(id)
}

// ListTasks returns the first limit tasks of the collection
func (s *Store) ListTasks(ctx context.Context, limit int) ([]backend.Task, error) {
	path := ""
	if limit > 0 {
		path = "?_limit=" + strconv.Itoa(limit)
	}

	resp, err := s.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	op := "GET " + s.baseURL + path
	if err := check(op, resp); err != nil {
		return nil, err
	}

	var tasks []backend.Task
	if err := decodeValidated(resp.body, s.schemas.list, &tasks); err != nil {
		return nil, &utils.NetworkError{Op: op, Err: err}
	}

	// Stores that ignore _limit still only contribute the first page
	if limit > 0 && len(tasks) > limit {
		tasks = tasks[:limit]
	}
	if tasks == nil {
		tasks = []backend.Task{}
	}
	return tasks, nil
}

// CreateTask posts a new task and returns the record with its assigned id
func (s *Store) CreateTask(ctx context.Context, title string, completed bool) (*backend.Task, error) {
	body := backend.Task{Title: title, Completed: completed}
	payload := struct {
		Title     string `json:"title"`
		Completed bool   `json:"completed"`
	}{body.Title, body.Completed}

	resp, err := s.do(ctx, http.MethodPost, "", payload)
	if err != nil {
		return nil, err
	}
	op := "POST " + s.baseURL
	if err := check(op, resp); err != nil {
		return nil, err
	}

	created := body
	if err := decodeValidated(resp.body, s.schemas.task, &created); err != nil {
		return nil, &utils.NetworkError{Op: op, Err: err}
	}
	return &created, nil
}

// UpdateTask sends a partial update and returns the confirmed record.
// Fields the store does not echo are taken from the patch.
func (s *Store) UpdateTask(ctx context.Context, id int, patch backend.TaskPatch) (*backend.Task, error) {
	if patch.Empty() {
		return nil, &utils.ValidationError{Field: "patch", Message: "nothing to update"}
	}

	resp, err := s.do(ctx, http.MethodPatch, taskPath(id), patch)
	if err != nil {
		return nil, err
	}
	op := "PATCH " + s.baseURL + taskPath(id)
	if err := checkTask(op, resp); err != nil {
		return nil, err
	}

	updated := backend.Task{ID: id}
	if len(bytes.TrimSpace(resp.body)) > 0 {
		if err := decodeValidated(resp.body, s.schemas.patch, &updated); err != nil {
			return nil, &utils.NetworkError{Op: op, Err: err}
		}
	}
	updated.ID = id
	patch.Apply(&updated)
	return &updated, nil
}

// DeleteTask removes a task
func (s *Store) DeleteTask(ctx context.Context, id int) error {
	resp, err := s.do(ctx, http.MethodDelete, taskPath(id), nil)
	if err != nil {
		return err
	}
	return checkTask("DELETE "+s.baseURL+taskPath(id), resp)
}
