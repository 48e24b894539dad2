// Package sqlite provides a backend.Store persisted in a SQLite database.
// It backs the local task store served by `todosync serve`.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"todosync/backend"
)

// Store implements backend.Store using SQLite
type Store struct {
	db *sql.DB
}

// New opens the database at path (":memory:" for a private in-memory store)
// and initializes the schema
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// A single connection keeps ":memory:" databases shared across queries
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

// initSchema creates the database tables if they don't exist
func (s *Store) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS todos (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT NOT NULL,
			completed INTEGER NOT NULL DEFAULT 0,
			created TEXT NOT NULL,
			modified TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_todos_completed ON todos(completed);
	`

	_, err := s.db.Exec(schema)
	return err
}

// ListTasks returns tasks in id order
func (s *Store) ListTasks(ctx context.Context, limit int) ([]backend.Task, error) {
	query := "SELECT id, title, completed FROM todos ORDER BY id"
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	tasks := []backend.Task{}
	for rows.Next() {
		var t backend.Task
		if err := rows.Scan(&t.ID, &t.Title, &t.Completed); err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// GetTask returns a single task or backend.ErrNotFound
func (s *Store) GetTask(ctx context.Context, id int) (*backend.Task, error) {
	var t backend.Task
	err := s.db.QueryRowContext(ctx,
		"SELECT id, title, completed FROM todos WHERE id = ?", id,
	).Scan(&t.ID, &t.Title, &t.Completed)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("task %d: %w", id, backend.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateTask inserts a task and returns it with the assigned id
func (s *Store) CreateTask(ctx context.Context, title string, completed bool) (*backend.Task, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	result, err := s.db.ExecContext(ctx,
		"INSERT INTO todos (title, completed, created, modified) VALUES (?, ?, ?, ?)",
		title, completed, now, now,
	)
	if err != nil {
		return nil, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &backend.Task{ID: int(id), Title: title, Completed: completed}, nil
}

// UpdateTask applies the set fields of patch
func (s *Store) UpdateTask(ctx context.Context, id int, patch backend.TaskPatch) (*backend.Task, error) {
	var sets []string
	var args []any
	if patch.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *patch.Title)
	}
	if patch.Completed != nil {
		sets = append(sets, "completed = ?")
		args = append(args, *patch.Completed)
	}
	if len(sets) == 0 {
		return s.GetTask(ctx, id)
	}
	sets = append(sets, "modified = ?")
	args = append(args, time.Now().UTC().Format(time.RFC3339Nano), id)

	result, err := s.db.ExecContext(ctx, "UPDATE todos SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return nil, err
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return nil, fmt.Errorf("task %d: %w", id, backend.ErrNotFound)
	}
	return s.GetTask(ctx, id)
}

// DeleteTask removes a task
func (s *Store) DeleteTask(ctx context.Context, id int) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM todos WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("task %d: %w", id, backend.ErrNotFound)
	}
	return nil
}

// Seed inserts n sample tasks, every fourth one completed, in one transaction.
func (s *Store) Seed(ctx context.Context, n int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for i := 1; i <= n; i++ {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO todos (title, completed, created, modified) VALUES (?, ?, ?, ?)",
			fmt.Sprintf("Sample task %d", i), i%4 == 0, now, now,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Verify interface compliance at compile time
var _ backend.Store = (*Store)(nil)
