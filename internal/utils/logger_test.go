package utils

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

// TestGetLogger verifies singleton pattern - same instance returned
func TestGetLogger(t *testing.T) {
	logger1 := GetLogger()
	logger2 := GetLogger()

	if logger1 != logger2 {
		t.Error("GetLogger() should return same singleton instance")
	}
}

// TestLoggerDefaultVerboseMode verifies verbose is false by default
func TestLoggerDefaultVerboseMode(t *testing.T) {
	once = sync.Once{}
	loggerInstance = nil

	if GetLogger().IsVerbose() {
		t.Error("Logger should have verbose=false by default")
	}
}

// TestDebugGatedByVerbose verifies debug output only appears in verbose mode
func TestDebugGatedByVerbose(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, false)

	logger.Debug("hidden %d", 1)
	if buf.Len() != 0 {
		t.Errorf("expected no debug output, got %q", buf.String())
	}

	logger.SetVerbose(true)
	logger.Debug("shown %d", 2)
	if !strings.Contains(buf.String(), "[DEBUG] shown 2") {
		t.Errorf("expected debug line, got %q", buf.String())
	}
}

// TestLoggerLevels verifies level prefixes
func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, false)

	logger.Info("info message")
	logger.Warn("warn %s", "message")
	logger.Error("error message")

	out := buf.String()
	for _, want := range []string{"[INFO] info message", "[WARN] warn message", "[ERROR] error message"} {
		if !strings.Contains(out, want) {
			t.Errorf("output should contain %q, got %q", want, out)
		}
	}
}

// TestLoggerSetOutput verifies output redirection
func TestLoggerSetOutput(t *testing.T) {
	var first, second bytes.Buffer
	logger := NewLogger(&first, false)

	logger.Info("one")
	logger.SetOutput(&second)
	logger.Info("two")
	logger.SetOutput(nil)
	logger.Info("three")

	if !strings.Contains(first.String(), "one") || strings.Contains(first.String(), "two") {
		t.Errorf("unexpected first output %q", first.String())
	}
	if !strings.Contains(second.String(), "two") || strings.Contains(second.String(), "three") {
		t.Errorf("unexpected second output %q", second.String())
	}
}

// TestLogFile verifies the log file is appended to and closed cleanly
func TestLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.log")

	lf, err := OpenLogFile(path)
	if err != nil {
		t.Fatalf("OpenLogFile error: %v", err)
	}
	if lf.Path() != path {
		t.Errorf("Path() = %q, want %q", lf.Path(), path)
	}

	logger := NewLogger(lf, false)
	logger.Warn("written to file")
	if err := lf.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	if _, err := lf.Write([]byte("after close")); err != nil {
		t.Errorf("Write after Close should be discarded, got %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile error: %v", err)
	}
	if !strings.Contains(string(data), "[WARN] written to file") {
		t.Errorf("log file content = %q", string(data))
	}
	if strings.Contains(string(data), "after close") {
		t.Error("writes after Close should not reach the file")
	}
}

// TestOpenLogFileDefaultPath verifies a PID-specific temp path is chosen
func TestOpenLogFileDefaultPath(t *testing.T) {
	t.Setenv("TMPDIR", t.TempDir())

	lf, err := OpenLogFile("")
	if err != nil {
		t.Fatalf("OpenLogFile error: %v", err)
	}
	defer func() { _ = lf.Close() }()

	if !strings.Contains(filepath.Base(lf.Path()), "todosync-") {
		t.Errorf("unexpected default path %q", lf.Path())
	}
}
