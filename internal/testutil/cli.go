package testutil

import (
	"bytes"
	"context"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"todosync/backend/sqlite"
	"todosync/cmd/todosync/cmd"
	"todosync/internal/server"
	"todosync/internal/utils"
)

// CLITest runs CLI commands against a local task server backed by an
// in-memory SQLite store.
type CLITest struct {
	t          *testing.T
	cfg        *cmd.Config
	store      *sqlite.Store
	server     *httptest.Server
	configPath string
}

// NewCLITest starts a server seeded with n sample tasks and returns a
// helper whose commands point at it. Every fourth sample task is completed.
func NewCLITest(t *testing.T, n int) *CLITest {
	t.Helper()

	store, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	if err := store.Seed(context.Background(), n); err != nil {
		t.Fatalf("failed to seed store: %v", err)
	}

	srv := httptest.NewServer(server.New(store, utils.NewLogger(nil, false)))
	t.Cleanup(func() {
		srv.Close()
		_ = store.Close()
	})

	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmpDir, "config"))

	return &CLITest{
		t:          t,
		cfg:        &cmd.Config{IsTerminal: func() bool { return false }},
		store:      store,
		server:     srv,
		configPath: filepath.Join(tmpDir, "config.yaml"),
	}
}

// Config returns the CLI configuration used by Execute
func (c *CLITest) Config() *cmd.Config {
	return c.cfg
}

// Store returns the store behind the server
func (c *CLITest) Store() *sqlite.Store {
	return c.store
}

// URL returns the collection URL of the server
func (c *CLITest) URL() string {
	return c.server.URL + server.DefaultCollectionPath
}

// ConfigPath returns the config file used by Execute. It is created from
// the sample on first use.
func (c *CLITest) ConfigPath() string {
	return c.configPath
}

// Execute runs a CLI command against the server and returns stdout, stderr, and exit code.
func (c *CLITest) Execute(args ...string) (stdout, stderr string, exitCode int) {
	c.t.Helper()

	full := append([]string{"--config", c.configPath, "--api", c.URL()}, args...)
	var stdoutBuf, stderrBuf bytes.Buffer
	exitCode = cmd.Execute(full, &stdoutBuf, &stderrBuf, c.cfg)
	return stdoutBuf.String(), stderrBuf.String(), exitCode
}

// MustExecute runs a CLI command and fails the test if exit code is non-zero.
func (c *CLITest) MustExecute(args ...string) string {
	c.t.Helper()

	stdout, stderr, exitCode := c.Execute(args...)
	if exitCode != 0 {
		c.t.Fatalf("expected exit code 0, got %d: stdout=%s stderr=%s", exitCode, stdout, stderr)
	}
	return stdout
}

// ExecuteAndFail runs a CLI command and fails the test if exit code is zero.
func (c *CLITest) ExecuteAndFail(args ...string) (stdout, stderr string) {
	c.t.Helper()

	stdout, stderr, exitCode := c.Execute(args...)
	if exitCode == 0 {
		c.t.Fatalf("expected non-zero exit code, got 0: stdout=%s", stdout)
	}
	return stdout, stderr
}

// AssertContains fails the test if output doesn't contain expected string.
func AssertContains(t *testing.T, output, expected string) {
	t.Helper()
	if !strings.Contains(output, expected) {
		t.Errorf("expected output to contain %q, got:\n%s", expected, output)
	}
}

// AssertNotContains fails the test if output contains unexpected string.
func AssertNotContains(t *testing.T, output, unexpected string) {
	t.Helper()
	if strings.Contains(output, unexpected) {
		t.Errorf("expected output NOT to contain %q, got:\n%s", unexpected, output)
	}
}
