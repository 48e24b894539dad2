package cmd_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"todosync/cmd/todosync/cmd"
	"todosync/internal/testutil"
	"todosync/internal/views"
)

// --- Help and Version Tests ---

// TestHelpFlag verifies that --help displays usage information
func TestHelpFlag(t *testing.T) {
	var stdout, stderr bytes.Buffer

	exitCode := cmd.Execute([]string{"--help"}, &stdout, &stderr, nil)
	if exitCode != 0 {
		t.Fatalf("expected exit code 0, got %d: %s", exitCode, stderr.String())
	}

	output := stdout.String()
	for _, want := range []string{"todosync", "Usage:", "serve", "toggle"} {
		testutil.AssertContains(t, output, want)
	}
}

// TestVersionFlag verifies that --version displays version string
func TestVersionFlag(t *testing.T) {
	var stdout, stderr bytes.Buffer

	exitCode := cmd.Execute([]string{"--version"}, &stdout, &stderr, nil)
	if exitCode != 0 {
		t.Fatalf("expected exit code 0, got %d: %s", exitCode, stderr.String())
	}
	testutil.AssertContains(t, stdout.String(), "todosync version dev")
}

// --- List Tests ---

// TestListFirstPage verifies only the configured page size is loaded
func TestListFirstPage(t *testing.T) {
	cli := testutil.NewCLITest(t, 15)

	out := cli.MustExecute("list")
	testutil.AssertContains(t, out, "[ ]  1  Sample task 1  ✖")
	testutil.AssertContains(t, out, "[✓]  4  Sample task 4  ✖")
	testutil.AssertContains(t, out, "Sample task 10")
	testutil.AssertNotContains(t, out, "Sample task 11")
	testutil.AssertContains(t, out, "Remaining tasks: 8")
}

// TestListFilterCompleted verifies the completed filter and the whole-cache counter
func TestListFilterCompleted(t *testing.T) {
	cli := testutil.NewCLITest(t, 15)

	out := cli.MustExecute("list", "--filter", "completed")
	testutil.AssertContains(t, out, "Sample task 4")
	testutil.AssertContains(t, out, "Sample task 8")
	testutil.AssertNotContains(t, out, "Sample task 1 ")
	testutil.AssertNotContains(t, out, "Sample task 12")
	testutil.AssertContains(t, out, "Remaining tasks: 8")
}

// TestListLimitFlag verifies --limit overrides api.page_size
func TestListLimitFlag(t *testing.T) {
	cli := testutil.NewCLITest(t, 15)

	out := cli.MustExecute("--limit", "3", "list")
	testutil.AssertContains(t, out, "Sample task 3")
	testutil.AssertNotContains(t, out, "Sample task 4")
	testutil.AssertContains(t, out, "Remaining tasks: 3")
}

// TestListJSON verifies the JSON view
func TestListJSON(t *testing.T) {
	cli := testutil.NewCLITest(t, 15)

	out := cli.MustExecute("--json", "list", "--filter", "active")
	var v views.View
	if err := json.Unmarshal([]byte(out), &v); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, out)
	}
	if v.Filter != views.FilterActive || len(v.Rows) != 8 || v.Remaining != 8 || v.Total != 10 {
		t.Errorf("unexpected view %+v", v)
	}
}

// TestListEmptyStore prints the empty marker
func TestListEmptyStore(t *testing.T) {
	cli := testutil.NewCLITest(t, 0)

	out := cli.MustExecute("list")
	testutil.AssertContains(t, out, "No tasks")
	testutil.AssertContains(t, out, "Remaining tasks: 0")
}

// TestListInvalidFilter verifies unknown filters are rejected
func TestListInvalidFilter(t *testing.T) {
	cli := testutil.NewCLITest(t, 1)

	_, stderr := cli.ExecuteAndFail("list", "--filter", "done")
	testutil.AssertContains(t, stderr, "invalid filter")
	testutil.AssertContains(t, stderr, "all, active, completed")
}

// TestRootWithoutTerminalPrintsList verifies the non-interactive fallback
func TestRootWithoutTerminalPrintsList(t *testing.T) {
	cli := testutil.NewCLITest(t, 2)

	out := cli.MustExecute()
	testutil.AssertContains(t, out, "Sample task 2")
	testutil.AssertContains(t, out, "Remaining tasks: 2")
}

// TestConfigFileCreated verifies --config is created from the sample
func TestConfigFileCreated(t *testing.T) {
	cli := testutil.NewCLITest(t, 1)
	cli.MustExecute("list")

	data, err := os.ReadFile(cli.ConfigPath())
	if err != nil {
		t.Fatalf("config file was not created: %v", err)
	}
	testutil.AssertContains(t, string(data), "page_size: 10")
}

// --- Write Tests ---

// TestAddTask verifies the created task is shown first with its due date
func TestAddTask(t *testing.T) {
	cli := testutil.NewCLITest(t, 15)

	out := cli.MustExecute("add", "Buy", "milk", "--due", "2024-01-01")
	testutil.AssertContains(t, out, "Added task 16")

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) < 2 || lines[1] != "[ ] 16  Buy milk  (Due: 2024-01-01)  ✖" {
		t.Errorf("new task should be the first row, got:\n%s", out)
	}
	testutil.AssertContains(t, out, "Remaining tasks: 9")

	task, err := cli.Store().GetTask(context.Background(), 16)
	if err != nil || task.Title != "Buy milk" || task.Completed {
		t.Errorf("stored task = %+v, %v", task, err)
	}
}

// TestAddValidation verifies blank text and bad dates fail with suggestions
func TestAddValidation(t *testing.T) {
	cli := testutil.NewCLITest(t, 1)

	_, stderr := cli.ExecuteAndFail("add", "  ")
	testutil.AssertContains(t, stderr, "task text must not be empty")
	testutil.AssertContains(t, stderr, "Suggestion:")

	_, stderr = cli.ExecuteAndFail("add", "x", "--due", "someday")
	testutil.AssertContains(t, stderr, "invalid due date")
	testutil.AssertContains(t, stderr, "YYYY-MM-DD")
}

// TestToggleTask verifies toggle confirms with the store and updates the counter
func TestToggleTask(t *testing.T) {
	cli := testutil.NewCLITest(t, 5)

	out := cli.MustExecute("toggle", "4")
	testutil.AssertContains(t, out, "Reopened task 4")
	testutil.AssertContains(t, out, "Remaining tasks: 5")

	task, err := cli.Store().GetTask(context.Background(), 4)
	if err != nil || task.Completed {
		t.Errorf("task 4 should be active in the store: %+v, %v", task, err)
	}
}

// TestToggleOutsidePage fails for ids not in the loaded page
func TestToggleOutsidePage(t *testing.T) {
	cli := testutil.NewCLITest(t, 15)

	_, stderr := cli.ExecuteAndFail("toggle", "12")
	testutil.AssertContains(t, stderr, "task not found: 12")
	testutil.AssertContains(t, stderr, "todosync list")
}

// TestToggleInvalidID verifies non-numeric ids are rejected
func TestToggleInvalidID(t *testing.T) {
	cli := testutil.NewCLITest(t, 1)

	_, stderr := cli.ExecuteAndFail("toggle", "abc")
	testutil.AssertContains(t, stderr, "invalid id")
}

// TestEditTask renames a task
func TestEditTask(t *testing.T) {
	cli := testutil.NewCLITest(t, 3)

	out := cli.MustExecute("edit", "2", "Walk", "the", "dog")
	testutil.AssertContains(t, out, "Renamed task 2")
	testutil.AssertContains(t, out, "Walk the dog")

	task, err := cli.Store().GetTask(context.Background(), 2)
	if err != nil || task.Title != "Walk the dog" {
		t.Errorf("stored task = %+v, %v", task, err)
	}
}

// TestDeleteTask removes a task from the store and the list
func TestDeleteTask(t *testing.T) {
	cli := testutil.NewCLITest(t, 3)

	out := cli.MustExecute("delete", "3")
	testutil.AssertContains(t, out, "Deleted task 3")
	testutil.AssertNotContains(t, out, "Sample task 3")

	tasks, err := cli.Store().ListTasks(context.Background(), 0)
	if err != nil || len(tasks) != 2 {
		t.Errorf("store should hold 2 tasks: %d, %v", len(tasks), err)
	}
}

// TestDeleteUnknown reports the store's 404 as not found
func TestDeleteUnknown(t *testing.T) {
	cli := testutil.NewCLITest(t, 3)

	_, stderr := cli.ExecuteAndFail("rm", "99")
	testutil.AssertContains(t, stderr, "task not found: 99")
}

// TestJSONError verifies errors are reported as JSON with --json
func TestJSONError(t *testing.T) {
	cli := testutil.NewCLITest(t, 1)

	stdout, _ := cli.ExecuteAndFail("--json", "toggle", "7")
	var resp struct {
		Error string `json:"error"`
		Kind  string `json:"kind"`
		Code  int    `json:"code"`
	}
	if err := json.Unmarshal([]byte(stdout), &resp); err != nil {
		t.Fatalf("invalid JSON error: %v\n%s", err, stdout)
	}
	if resp.Kind != "not_found" || resp.Code != 1 {
		t.Errorf("unexpected error response %+v", resp)
	}
}

// TestNetworkErrorSuggestion verifies an unreachable store gets a hint
func TestNetworkErrorSuggestion(t *testing.T) {
	cli := testutil.NewCLITest(t, 0)

	_, stderr := cli.ExecuteAndFail("--api", "http://127.0.0.1:1/todos", "list")
	testutil.AssertContains(t, stderr, "Error:")
	testutil.AssertContains(t, stderr, "Suggestion:")
}

// TestWrongCollectionIsNetworkError verifies a 404 on the collection is not reported as a missing task
func TestWrongCollectionIsNetworkError(t *testing.T) {
	cli := testutil.NewCLITest(t, 1)
	wrong := strings.TrimSuffix(cli.URL(), "/todos") + "/wrong"

	stdout, _ := cli.ExecuteAndFail("--json", "--api", wrong, "list")
	var resp struct {
		Error string `json:"error"`
		Kind  string `json:"kind"`
	}
	if err := json.Unmarshal([]byte(stdout), &resp); err != nil {
		t.Fatalf("invalid JSON error: %v\n%s", err, stdout)
	}
	if resp.Kind != "network" {
		t.Errorf("kind = %q, want network (%s)", resp.Kind, resp.Error)
	}

	_, stderr := cli.ExecuteAndFail("--api", wrong, "add", "lost")
	testutil.AssertContains(t, stderr, "api.base_url")
	testutil.AssertNotContains(t, stderr, "task not found")
}

// TestVerboseLogsRequests verifies -V enables debug output on stderr
func TestVerboseLogsRequests(t *testing.T) {
	cli := testutil.NewCLITest(t, 1)

	_, stderr, code := cli.Execute("-V", "list")
	if code != 0 {
		t.Fatalf("exit code %d: %s", code, stderr)
	}
	testutil.AssertContains(t, stderr, "[DEBUG]")
	testutil.AssertContains(t, stderr, "GET ")
}

// --- Serve Tests ---

// TestServeCommand starts the server, queries it and stops it via context
func TestServeCommand(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ready := make(chan string, 1)
	cfg := &cmd.Config{Context: ctx, Ready: func(addr string) { ready <- addr }}

	var stdout, stderr bytes.Buffer
	done := make(chan int, 1)
	go func() {
		done <- cmd.Execute([]string{"serve", "--addr", "127.0.0.1:0", "--seed", "2"}, &stdout, &stderr, cfg)
	}()

	var addr string
	select {
	case addr = <-ready:
	case code := <-done:
		t.Fatalf("serve exited early with %d: %s", code, stderr.String())
	case <-time.After(5 * time.Second):
		t.Fatal("server did not start")
	}

	resp, err := http.Get("http://" + addr + "/todos?_limit=1")
	if err != nil {
		t.Fatalf("GET error: %v", err)
	}
	var tasks []map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&tasks)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK || len(tasks) != 1 {
		t.Errorf("GET /todos?_limit=1: %d %v", resp.StatusCode, tasks)
	}

	cancel()
	select {
	case code := <-done:
		if code != 0 {
			t.Errorf("serve exit code %d: %s", code, stderr.String())
		}
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop after cancellation")
	}
	testutil.AssertContains(t, stdout.String(), "Serving tasks on http://127.0.0.1:")
}
