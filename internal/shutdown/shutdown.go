// Package shutdown coordinates graceful shutdown of long-running commands.
// Cleanups run in LIFO order once shutdown is triggered by a signal or a call.
package shutdown

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"todosync/internal/utils"
)

// CleanupFunc releases a resource. ctx is cancelled when the grace period ends.
type CleanupFunc func(ctx context.Context) error

type cleanupEntry struct {
	name string
	fn   CleanupFunc
}

// Manager owns the shutdown context and the registered cleanups.
type Manager struct {
	mu       sync.Mutex
	cleanups []cleanupEntry
	ctx      context.Context
	cancel   context.CancelFunc
	once     sync.Once
	reason   string
	log      *utils.Logger
}

// NewManager creates a manager whose Context is cancelled by Shutdown.
func NewManager(logger *utils.Logger) *Manager {
	if logger == nil {
		logger = utils.GetLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{ctx: ctx, cancel: cancel, log: logger}
}

// RegisterCleanup adds fn to run during Wait.
func (m *Manager) RegisterCleanup(name string, fn CleanupFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleanups = append(m.cleanups, cleanupEntry{name: name, fn: fn})
}

// Shutdown cancels the manager context. Only the first call records a reason.
func (m *Manager) Shutdown(reason string) {
	m.once.Do(func() {
		m.mu.Lock()
		m.reason = reason
		m.mu.Unlock()
		m.log.Debug("shutdown requested: %s", reason)
		m.cancel()
	})
}

// NotifyOnSignals triggers Shutdown on SIGINT or SIGTERM. The returned
// function stops listening.
func (m *Manager) NotifyOnSignals() (stop func()) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	quit := make(chan struct{})
	go func() {
		select {
		case sig := <-sigCh:
			m.Shutdown(sig.String())
		case <-quit:
		}
	}()

	var stopOnce sync.Once
	return func() {
		stopOnce.Do(func() {
			signal.Stop(sigCh)
			close(quit)
		})
	}
}

// Wait runs the cleanups newest first and returns their joined errors, or
// ctx.Err() if the grace period runs out first.
func (m *Manager) Wait(ctx context.Context) error {
	m.mu.Lock()
	cleanups := make([]cleanupEntry, len(m.cleanups))
	copy(cleanups, m.cleanups)
	m.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		var errs []error
		for i := len(cleanups) - 1; i >= 0; i-- {
			c := cleanups[i]
			if err := c.fn(ctx); err != nil {
				m.log.Warn("cleanup %s failed: %v", c.name, err)
				errs = append(errs, fmt.Errorf("%s: %w", c.name, err))
			}
		}
		done <- errors.Join(errs...)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsShutdown reports whether Shutdown has been called.
func (m *Manager) IsShutdown() bool {
	return m.ctx.Err() != nil
}

// Reason returns the reason passed to the first Shutdown call.
func (m *Manager) Reason() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reason
}

// Context is cancelled when shutdown begins.
func (m *Manager) Context() context.Context {
	return m.ctx
}
