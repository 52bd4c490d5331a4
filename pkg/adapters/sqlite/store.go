// Package sqlite stores checkpoints in a SQLite database through the pure-Go
// modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/aris/pkg/domain"
	"github.com/aretw0/aris/pkg/ports"
	_ "modernc.org/sqlite"
)

// Store is a CheckpointStore backed by SQLite. It keeps the full state as
// JSON next to a few indexed columns used for listing and inspection.
type Store struct {
	db *sql.DB
}

var _ ports.CheckpointStore = (*Store)(nil)

// Open opens (or creates) the database at path and prepares the schema.
// Use ":memory:" for a throwaway database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// SQLite serializes writers; one connection also keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)

	store, err := New(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// New wraps an existing database handle. The caller must have imported a
// SQLite driver; this package imports modernc.org/sqlite.
func New(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS checkpoints (
			task_id    TEXT PRIMARY KEY,
			status     TEXT NOT NULL,
			last_step  TEXT NOT NULL,
			steps      INTEGER NOT NULL,
			state      BLOB NOT NULL,
			updated_at INTEGER NOT NULL
		);`,
	)
	return err
}

// Save upserts the checkpoint of taskID.
func (s *Store) Save(ctx context.Context, taskID string, state *domain.State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO checkpoints (task_id, status, last_step, steps, state, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(task_id) DO UPDATE SET
			status = excluded.status,
			last_step = excluded.last_step,
			steps = excluded.steps,
			state = excluded.state,
			updated_at = excluded.updated_at`,
		taskID,
		string(state.Status),
		string(state.LastStep),
		state.Steps,
		data,
		time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

// Load returns the checkpoint of taskID.
func (s *Store) Load(ctx context.Context, taskID string) (*domain.State, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT state FROM checkpoints WHERE task_id = ?`, taskID).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrCheckpointNotFound
		}
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}

	var state domain.State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}
	return &state, nil
}

// Delete removes the checkpoint of taskID.
func (s *Store) Delete(ctx context.Context, taskID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM checkpoints WHERE task_id = ?`, taskID); err != nil {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	return nil
}

// List returns every stored task ID, sorted.
func (s *Store) List(ctx context.Context) ([]string, error) {
	return s.queryIDs(ctx, `SELECT task_id FROM checkpoints ORDER BY task_id`)
}

// ListByStatus returns the task IDs whose last checkpoint has the given
// status, for example the runs still marked running after a crash.
func (s *Store) ListByStatus(ctx context.Context, status domain.Status) ([]string, error) {
	return s.queryIDs(ctx, `SELECT task_id FROM checkpoints WHERE status = ? ORDER BY task_id`, string(status))
}

func (s *Store) queryIDs(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
