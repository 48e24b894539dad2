package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"todosync/backend"
	"todosync/backend/rest"
	"todosync/backend/sqlite"
	"todosync/internal/server"
	"todosync/internal/utils"
)

// newTestServer starts a server over a seeded in-memory SQLite store
func newTestServer(t *testing.T, seed int) (*httptest.Server, *sqlite.Store) {
	t.Helper()
	store, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("sqlite.New error: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if err := store.Seed(context.Background(), seed); err != nil {
		t.Fatalf("Seed error: %v", err)
	}

	ts := httptest.NewServer(server.New(store, utils.NewLogger(nil, false)))
	t.Cleanup(ts.Close)
	return ts, store
}

func doRequest(t *testing.T, method, url, body string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("NewRequest error: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s error: %v", method, url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body error: %v", err)
	}
	return resp, data
}

// TestListWithLimit verifies GET ?_limit=N
func TestListWithLimit(t *testing.T) {
	ts, _ := newTestServer(t, 15)

	resp, body := doRequest(t, http.MethodGet, ts.URL+"/todos?_limit=10", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}

	var tasks []backend.Task
	if err := json.Unmarshal(body, &tasks); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if len(tasks) != 10 {
		t.Errorf("expected 10 tasks, got %d", len(tasks))
	}
}

// TestListBadLimit verifies invalid _limit values are rejected
func TestListBadLimit(t *testing.T) {
	ts, _ := newTestServer(t, 1)

	for _, q := range []string{"abc", "-1"} {
		resp, _ := doRequest(t, http.MethodGet, ts.URL+"/todos?_limit="+q, "")
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("_limit=%s: status = %d, want 400", q, resp.StatusCode)
		}
	}
}

// TestCreate verifies POST returns 201 with an id
func TestCreate(t *testing.T) {
	ts, _ := newTestServer(t, 3)

	resp, body := doRequest(t, http.MethodPost, ts.URL+"/todos", `{"title":"Buy milk","completed":false}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var created backend.Task
	if err := json.Unmarshal(body, &created); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if created.ID != 4 || created.Title != "Buy milk" {
		t.Errorf("unexpected created task %+v", created)
	}
}

// TestCreateRejectsBadBodies verifies validation of POST bodies
func TestCreateRejectsBadBodies(t *testing.T) {
	ts, _ := newTestServer(t, 0)

	for _, body := range []string{`not json`, `{"completed":true}`, `{"title":"  "}`, `{"title":5}`} {
		resp, _ := doRequest(t, http.MethodPost, ts.URL+"/todos", body)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("body %s: status = %d, want 400", body, resp.StatusCode)
		}
	}
}

// TestGetPatchDelete verifies the per-record endpoints and 404s
func TestGetPatchDelete(t *testing.T) {
	ts, _ := newTestServer(t, 2)

	resp, body := doRequest(t, http.MethodGet, ts.URL+"/todos/1", "")
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), `"Sample task 1"`) {
		t.Errorf("GET /todos/1: %d %s", resp.StatusCode, body)
	}

	resp, body = doRequest(t, http.MethodPatch, ts.URL+"/todos/1", `{"completed":true}`)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), `"completed":true`) {
		t.Errorf("PATCH /todos/1: %d %s", resp.StatusCode, body)
	}

	resp, _ = doRequest(t, http.MethodPatch, ts.URL+"/todos/1", `{"title":""}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("PATCH with empty title: status = %d, want 400", resp.StatusCode)
	}

	resp, _ = doRequest(t, http.MethodDelete, ts.URL+"/todos/1", "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("DELETE /todos/1: status = %d", resp.StatusCode)
	}

	for _, method := range []string{http.MethodGet, http.MethodDelete} {
		resp, _ = doRequest(t, method, ts.URL+"/todos/1", "")
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("%s deleted task: status = %d, want 404", method, resp.StatusCode)
		}
	}
	resp, _ = doRequest(t, http.MethodPatch, ts.URL+"/todos/abc", `{"completed":true}`)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("PATCH /todos/abc: status = %d, want 404", resp.StatusCode)
	}
}

// TestRequestIDEcho verifies the request id header is echoed
func TestRequestIDEcho(t *testing.T) {
	ts, _ := newTestServer(t, 1)

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/todos", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request error: %v", err)
	}
	_ = resp.Body.Close()
	if resp.Header.Get("X-Request-ID") != "abc-123" {
		t.Errorf("X-Request-ID = %q", resp.Header.Get("X-Request-ID"))
	}
}

// TestRESTClientAgainstServer runs the REST store client end to end
func TestRESTClientAgainstServer(t *testing.T) {
	ts, _ := newTestServer(t, 15)
	ctx := context.Background()

	client, err := rest.New(rest.Config{BaseURL: ts.URL + "/todos", Logger: utils.NewLogger(nil, false)})
	if err != nil {
		t.Fatalf("rest.New error: %v", err)
	}
	defer func() { _ = client.Close() }()

	tasks, err := client.ListTasks(ctx, 10)
	if err != nil || len(tasks) != 10 {
		t.Fatalf("ListTasks = %d tasks, %v", len(tasks), err)
	}

	created, err := client.CreateTask(ctx, "end to end", false)
	if err != nil {
		t.Fatalf("CreateTask error: %v", err)
	}
	if created.ID != 16 {
		t.Errorf("created id = %d, want 16", created.ID)
	}

	updated, err := client.UpdateTask(ctx, created.ID, backend.CompletedPatch(true))
	if err != nil || !updated.Completed || updated.Title != "end to end" {
		t.Fatalf("UpdateTask = %+v, %v", updated, err)
	}

	if err := client.DeleteTask(ctx, created.ID); err != nil {
		t.Fatalf("DeleteTask error: %v", err)
	}
	if err := client.DeleteTask(ctx, created.ID); !errors.Is(err, backend.ErrNotFound) {
		t.Errorf("second DeleteTask: expected ErrNotFound, got %v", err)
	}
}
