// Package store persists the single active workflow snapshot of the backend.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"auto_social_publisher/workflow"
)

// ErrNotFound is returned by Load when no workflow was saved yet.
var ErrNotFound = errors.New("store: no active workflow")

// activeKey names the row/key/document holding the active workflow.
const activeKey = "active"

// Store loads and saves the active workflow snapshot.
type Store interface {
	Load(ctx context.Context) (workflow.Snapshot, error)
	Save(ctx context.Context, snap workflow.Snapshot) error
	Close() error
}

func encodeSnapshot(snap workflow.Snapshot) ([]byte, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}

func decodeSnapshot(data []byte) (workflow.Snapshot, error) {
	var snap workflow.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return workflow.Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap.Normalized(), nil
}
