package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"auto_social_publisher/workflow"
)

// PostgresStore keeps the active workflow in a PostgreSQL table.
//
// The caller imports a driver for its side effects, usually
// _ "github.com/jackc/pgx/v5/stdlib", and opens the *sql.DB.
type PostgresStore struct {
	db *sql.DB
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates the schema if needed.
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	p := &PostgresStore{db: db}
	if err := p.initSchema(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *PostgresStore) initSchema() error {
	_, err := p.db.Exec(`
		CREATE TABLE IF NOT EXISTS workflow_state (
			name TEXT PRIMARY KEY,
			workflow_id TEXT NOT NULL,
			current_step TEXT NOT NULL,
			payload BYTEA NOT NULL,
			updated_at BIGINT NOT NULL
		);
	`)
	return err
}

func (p *PostgresStore) Load(ctx context.Context) (workflow.Snapshot, error) {
	var payload []byte
	err := p.db.QueryRowContext(ctx,
		`SELECT payload FROM workflow_state WHERE name = $1`, activeKey,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return workflow.Snapshot{}, ErrNotFound
	}
	if err != nil {
		return workflow.Snapshot{}, err
	}
	return decodeSnapshot(payload)
}

func (p *PostgresStore) Save(ctx context.Context, snap workflow.Snapshot) error {
	payload, err := encodeSnapshot(snap)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO workflow_state (name, workflow_id, current_step, payload, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (name) DO UPDATE SET
			workflow_id = EXCLUDED.workflow_id,
			current_step = EXCLUDED.current_step,
			payload = EXCLUDED.payload,
			updated_at = EXCLUDED.updated_at`,
		activeKey,
		snap.ID,
		string(snap.CurrentStep),
		payload,
		time.Now().UnixMilli(),
	)
	return err
}

func (p *PostgresStore) Close() error {
	return p.db.Close()
}
