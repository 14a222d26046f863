// Package cache persists a per-account snapshot of the last imported task
// lists and tasks, so a restart can show last-known state before the network
// import completes.
package cache

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"todosync/provider"
)

// Store is the sqlite-backed snapshot store.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the snapshot database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS snapshot_lists (
			account_uid TEXT NOT NULL,
			id TEXT NOT NULL,
			position INTEGER NOT NULL,
			name TEXT NOT NULL,
			color TEXT DEFAULT '',
			removable INTEGER NOT NULL DEFAULT 1,
			PRIMARY KEY (account_uid, id)
		);

		CREATE TABLE IF NOT EXISTS snapshot_tasks (
			account_uid TEXT NOT NULL,
			id TEXT NOT NULL,
			list_id TEXT NOT NULL,
			title TEXT NOT NULL,
			description TEXT DEFAULT '',
			complete INTEGER NOT NULL DEFAULT 0,
			priority INTEGER DEFAULT 0,
			due_date TEXT,
			PRIMARY KEY (account_uid, id)
		);

		CREATE INDEX IF NOT EXISTS idx_snapshot_tasks_list
			ON snapshot_tasks(account_uid, list_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Save replaces the account's snapshot with the given mirror state.
func (s *Store) Save(ctx context.Context, accountUID string, lists []provider.TaskList, tasks map[string][]provider.Task) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM snapshot_lists WHERE account_uid = ?", accountUID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM snapshot_tasks WHERE account_uid = ?", accountUID); err != nil {
		return err
	}

	for i, list := range lists {
		removable := 0
		if list.Removable {
			removable = 1
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO snapshot_lists (account_uid, id, position, name, color, removable) VALUES (?, ?, ?, ?, ?, ?)",
			accountUID, list.ID, i, list.Name, list.Color, removable,
		); err != nil {
			return err
		}
	}

	for listID, listTasks := range tasks {
		for _, task := range listTasks {
			complete := 0
			if task.Complete {
				complete = 1
			}
			var due interface{}
			if task.DueDate != nil {
				due = task.DueDate.UTC().Format(time.RFC3339)
			}
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO snapshot_tasks (account_uid, id, list_id, title, description, complete, priority, due_date) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
				accountUID, task.ID, listID, task.Title, task.Description, complete, task.Priority, due,
			); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

// Load returns the account's snapshot. A never-saved account yields empty
// collections, not an error.
func (s *Store) Load(ctx context.Context, accountUID string) ([]provider.TaskList, map[string][]provider.Task, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, color, removable FROM snapshot_lists WHERE account_uid = ? ORDER BY position",
		accountUID)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = rows.Close() }()

	var lists []provider.TaskList
	for rows.Next() {
		var l provider.TaskList
		var removable int
		if err := rows.Scan(&l.ID, &l.Name, &l.Color, &removable); err != nil {
			return nil, nil, err
		}
		l.Removable = removable != 0
		lists = append(lists, l)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	taskRows, err := s.db.QueryContext(ctx,
		"SELECT id, list_id, title, description, complete, priority, due_date FROM snapshot_tasks WHERE account_uid = ?",
		accountUID)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = taskRows.Close() }()

	tasks := make(map[string][]provider.Task)
	for taskRows.Next() {
		var t provider.Task
		var complete int
		var due sql.NullString
		if err := taskRows.Scan(&t.ID, &t.ListID, &t.Title, &t.Description, &complete, &t.Priority, &due); err != nil {
			return nil, nil, err
		}
		t.Complete = complete != 0
		if due.Valid && due.String != "" {
			parsed, err := time.Parse(time.RFC3339, due.String)
			if err == nil {
				t.DueDate = &parsed
			}
		}
		tasks[t.ListID] = append(tasks[t.ListID], t)
	}
	return lists, tasks, taskRows.Err()
}

// Delete drops the account's snapshot (on account removal).
func (s *Store) Delete(ctx context.Context, accountUID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM snapshot_lists WHERE account_uid = ?", accountUID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, "DELETE FROM snapshot_tasks WHERE account_uid = ?", accountUID)
	return err
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
