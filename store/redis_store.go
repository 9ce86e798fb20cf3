package store

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"auto_social_publisher/workflow"
)

// RedisStore keeps the active workflow under a single key:
//
//	<prefix>:workflow:active  => JSON-encoded snapshot
type RedisStore struct {
	client *redis.Client
	prefix string
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore creates a RedisStore. prefix defaults to "autopost".
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "autopost"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (r *RedisStore) key() string {
	return r.prefix + ":workflow:" + activeKey
}

func (r *RedisStore) Load(ctx context.Context) (workflow.Snapshot, error) {
	data, err := r.client.Get(ctx, r.key()).Bytes()
	if errors.Is(err, redis.Nil) {
		return workflow.Snapshot{}, ErrNotFound
	}
	if err != nil {
		return workflow.Snapshot{}, err
	}
	return decodeSnapshot(data)
}

func (r *RedisStore) Save(ctx context.Context, snap workflow.Snapshot) error {
	data, err := encodeSnapshot(snap)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.key(), data, 0).Err()
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
