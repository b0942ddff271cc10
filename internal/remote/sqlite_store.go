package remote

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/JamesPrial/tasksync/internal/task"

	_ "modernc.org/sqlite" // register sqlite driver
)

// timestampLayout is how creation instants are persisted in text columns:
// ISO 8601 UTC with millisecond precision and a Z suffix.
const timestampLayout = "2006-01-02T15:04:05.000Z"

// sqliteSchemaDDL defines the database schema for the SQLite store.
//
// owner_revisions holds one monotonically increasing counter per owner,
// bumped in the same transaction as every write.
const sqliteSchemaDDL = `
CREATE TABLE IF NOT EXISTS tasks (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    owner_id TEXT NOT NULL,
    title TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL DEFAULT 'pending',
    priority TEXT NOT NULL DEFAULT 'medium',
    due_date TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tasks_owner ON tasks(owner_id);

CREATE TABLE IF NOT EXISTS owner_revisions (
    owner_id TEXT PRIMARY KEY,
    revision INTEGER NOT NULL DEFAULT 0
);
`

// DefaultPollInterval is how often SQLite subscriptions check for changes.
const DefaultPollInterval = 500 * time.Millisecond

// SQLiteStore implements Store on a local SQLite database.
//
// SQLite has no change notifications, so subscriptions poll the owner's
// revision and emit a snapshot whenever it moves. Uses WAL mode so polling
// readers do not block writers.
type SQLiteStore struct {
	// DBPath is the absolute path to the SQLite database file.
	DBPath string

	// PollInterval is the subscription polling period.
	PollInterval time.Duration

	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at dbPath and
// initializes the schema. A non-positive pollInterval uses DefaultPollInterval.
func NewSQLiteStore(dbPath string, pollInterval time.Duration) (*SQLiteStore, error) {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	store := &SQLiteStore{
		DBPath:       dbPath,
		PollInterval: pollInterval,
	}

	db, err := store.connect()
	if err != nil {
		return nil, err
	}
	store.db = db

	if _, err := db.Exec(sqliteSchemaDDL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// connect opens the database with WAL mode and a busy timeout.
//
// Creates parent directories if needed. A single connection is used so
// writes never contend with each other inside the process.
func (s *SQLiteStore) connect() (*sql.DB, error) {
	dir := filepath.Dir(s.DBPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", s.DBPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	return db, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Subscribe polls the owner's revision every PollInterval and emits a full
// snapshot whenever it differs from the last one emitted. The first
// snapshot is emitted immediately.
func (s *SQLiteStore) Subscribe(ctx context.Context, ownerID string) (Subscription, error) {
	first, err := s.load(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	return startFeed(ctx, func(ctx context.Context, emit func(Snapshot) bool) error {
		if !emit(first) {
			return nil
		}
		last := first.Revision

		ticker := time.NewTicker(s.PollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}

			rev, err := s.revision(ctx, ownerID)
			if err != nil {
				return err
			}
			if rev == last {
				continue
			}

			snap, err := s.load(ctx, ownerID)
			if err != nil {
				return err
			}
			if !emit(snap) {
				return nil
			}
			last = snap.Revision
		}
	}), nil
}

// Create inserts t and returns its new row id as a string.
func (s *SQLiteStore) Create(ctx context.Context, t task.Task) (WriteResult, error) {
	var result WriteResult
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO tasks (owner_id, title, description, status, priority, due_date, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			t.OwnerID, t.Title, t.Description, string(t.Status), string(t.Priority),
			t.DueDate.String(), t.CreatedAt.UTC().Format(timestampLayout),
		)
		if err != nil {
			return fmt.Errorf("failed to insert task: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read task id: %w", err)
		}
		rev, err := bumpRevision(ctx, tx, t.OwnerID)
		if err != nil {
			return err
		}
		result = WriteResult{ID: strconv.FormatInt(id, 10), Revision: rev}
		return nil
	})
	return result, err
}

// Update sets the given fields on the owner's task.
func (s *SQLiteStore) Update(ctx context.Context, ownerID, id string, fields task.Fields) (WriteResult, error) {
	setClauses, args := sqliteSetClauses(fields)
	if len(setClauses) == 0 {
		return WriteResult{}, fmt.Errorf("update %s: no fields", id)
	}
	args = append(args, id, ownerID)

	var result WriteResult
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		query := "UPDATE tasks SET " + strings.Join(setClauses, ", ") + " WHERE id = ? AND owner_id = ?"
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to update task: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("update %s: %w", id, ErrNotFound)
		}
		rev, err := bumpRevision(ctx, tx, ownerID)
		if err != nil {
			return err
		}
		result = WriteResult{ID: id, Revision: rev}
		return nil
	})
	return result, err
}

// Delete removes the owner's task.
func (s *SQLiteStore) Delete(ctx context.Context, ownerID, id string) (WriteResult, error) {
	var result WriteResult
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "DELETE FROM tasks WHERE id = ? AND owner_id = ?", id, ownerID)
		if err != nil {
			return fmt.Errorf("failed to delete task: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("delete %s: %w", id, ErrNotFound)
		}
		rev, err := bumpRevision(ctx, tx, ownerID)
		if err != nil {
			return err
		}
		result = WriteResult{ID: id, Revision: rev}
		return nil
	})
	return result, err
}

// withTx runs fn in a transaction, committing on success.
func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// bumpRevision increments and returns the owner's revision.
func bumpRevision(ctx context.Context, tx *sql.Tx, ownerID string) (int64, error) {
	var rev int64
	err := tx.QueryRowContext(ctx,
		`INSERT INTO owner_revisions (owner_id, revision) VALUES (?, 1)
		 ON CONFLICT(owner_id) DO UPDATE SET revision = revision + 1
		 RETURNING revision`,
		ownerID,
	).Scan(&rev)
	if err != nil {
		return 0, fmt.Errorf("failed to bump revision: %w", err)
	}
	return rev, nil
}

// revision returns the owner's current revision (0 if it never wrote).
func (s *SQLiteStore) revision(ctx context.Context, ownerID string) (int64, error) {
	var rev int64
	err := s.db.QueryRowContext(ctx,
		"SELECT revision FROM owner_revisions WHERE owner_id = ?", ownerID,
	).Scan(&rev)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to query revision: %w", err)
	}
	return rev, nil
}

// load reads the owner's revision and tasks in one transaction.
func (s *SQLiteStore) load(ctx context.Context, ownerID string) (Snapshot, error) {
	snap := Snapshot{OwnerID: ownerID}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			"SELECT revision FROM owner_revisions WHERE owner_id = ?", ownerID,
		).Scan(&snap.Revision)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("failed to query revision: %w", err)
		}

		rows, err := tx.QueryContext(ctx, `
			SELECT id, owner_id, title, description, status, priority, due_date, created_at
			FROM tasks
			WHERE owner_id = ?
			ORDER BY id
		`, ownerID)
		if err != nil {
			return fmt.Errorf("failed to query tasks: %w", err)
		}
		defer func() { _ = rows.Close() }()

		snap.Tasks = make([]task.Task, 0)
		for rows.Next() {
			var (
				t         task.Task
				id        int64
				status    string
				priority  string
				dueDate   string
				createdAt string
			)
			if err := rows.Scan(&id, &t.OwnerID, &t.Title, &t.Description,
				&status, &priority, &dueDate, &createdAt); err != nil {
				return fmt.Errorf("failed to scan task: %w", err)
			}
			t.ID = strconv.FormatInt(id, 10)
			t.Status = task.Status(status)
			t.Priority = task.Priority(priority)
			t.DueDate = task.Date(dueDate)
			if t.CreatedAt, err = time.Parse(timestampLayout, createdAt); err != nil {
				return fmt.Errorf("task %d has bad created_at %q: %w", id, createdAt, err)
			}
			snap.Tasks = append(snap.Tasks, t)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("error iterating rows: %w", err)
		}
		return nil
	})
	return snap, err
}

// sqliteSetClauses builds "column = ?" clauses for the set fields. Column
// names are fixed here, never taken from input.
func sqliteSetClauses(f task.Fields) ([]string, []any) {
	var clauses []string
	var args []any
	if f.Title != nil {
		clauses = append(clauses, "title = ?")
		args = append(args, strings.TrimSpace(*f.Title))
	}
	if f.Description != nil {
		clauses = append(clauses, "description = ?")
		args = append(args, *f.Description)
	}
	if f.Status != nil {
		clauses = append(clauses, "status = ?")
		args = append(args, string(*f.Status))
	}
	if f.Priority != nil {
		clauses = append(clauses, "priority = ?")
		args = append(args, string(*f.Priority))
	}
	if f.DueDate != nil {
		clauses = append(clauses, "due_date = ?")
		args = append(args, f.DueDate.String())
	}
	return clauses, args
}
