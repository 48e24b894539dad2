//go:build unix

package shutdown_test

import (
	"syscall"
	"testing"
	"time"
)

// TestNotifyOnSignals verifies SIGTERM triggers shutdown
func TestNotifyOnSignals(t *testing.T) {
	mgr := newManager()
	stop := mgr.NotifyOnSignals()
	defer stop()

	if err := syscall.Kill(syscall.Getpid(), syscall.SIGTERM); err != nil {
		t.Skipf("cannot signal self: %v", err)
	}

	select {
	case <-mgr.Context().Done():
	case <-time.After(2 * time.Second):
		t.Fatal("SIGTERM did not trigger shutdown")
	}
	if mgr.Reason() != "terminated" {
		t.Errorf("Reason = %q, want terminated", mgr.Reason())
	}
}
