package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"auto_social_publisher/workflow"
)

// SQLiteStore keeps the active workflow in a SQLite table.
//
// It expects an *sql.DB opened with a SQLite driver, e.g. "modernc.org/sqlite"
// registered as "sqlite".
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates the schema if needed.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS workflow_state (
			name TEXT PRIMARY KEY,
			workflow_id TEXT NOT NULL,
			current_step TEXT NOT NULL,
			payload BLOB NOT NULL,
			updated_at INTEGER NOT NULL
		);`,
	)
	return err
}

func (s *SQLiteStore) Load(ctx context.Context) (workflow.Snapshot, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM workflow_state WHERE name = ?`, activeKey,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return workflow.Snapshot{}, ErrNotFound
	}
	if err != nil {
		return workflow.Snapshot{}, err
	}
	return decodeSnapshot(payload)
}

func (s *SQLiteStore) Save(ctx context.Context, snap workflow.Snapshot) error {
	payload, err := encodeSnapshot(snap)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO workflow_state (name, workflow_id, current_step, payload, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			workflow_id = excluded.workflow_id,
			current_step = excluded.current_step,
			payload = excluded.payload,
			updated_at = excluded.updated_at`,
		activeKey,
		snap.ID,
		string(snap.CurrentStep),
		payload,
		time.Now().UnixMilli(),
	)
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
