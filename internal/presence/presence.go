// Package presence tracks which users are online using expiring Redis
// keys. PostgreSQL keeps the durable online flag; this is the fast path.
package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// Tracker records heartbeats in Redis.
type Tracker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis connects to redisURL and verifies the connection.
func NewRedis(ctx context.Context, redisURL string, ttl time.Duration) (*Tracker, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return NewTracker(client, ttl), nil
}

// NewTracker wraps an existing client.
func NewTracker(client *redis.Client, ttl time.Duration) *Tracker {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Tracker{client: client, ttl: ttl}
}

func presenceKey(userID uuid.UUID) string {
	return fmt.Sprintf("presence:%s", userID)
}

// Heartbeat marks userID online until the TTL lapses.
func (t *Tracker) Heartbeat(ctx context.Context, userID uuid.UUID) error {
	err := t.client.Set(ctx, presenceKey(userID), time.Now().UTC().Unix(), t.ttl).Err()
	return errors.Wrap(err, "presence.Heartbeat")
}

// Offline clears userID's key.
func (t *Tracker) Offline(ctx context.Context, userID uuid.UUID) error {
	err := t.client.Del(ctx, presenceKey(userID)).Err()
	return errors.Wrap(err, "presence.Offline")
}

// Online reports, for each id, whether a live heartbeat exists.
func (t *Tracker) Online(ctx context.Context, ids ...uuid.UUID) (map[uuid.UUID]bool, error) {
	out := make(map[uuid.UUID]bool, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	pipe := t.client.Pipeline()
	cmds := make([]*redis.IntCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.Exists(ctx, presenceKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, errors.Wrap(err, "presence.Online")
	}

	for i, id := range ids {
		out[id] = cmds[i].Val() > 0
	}
	return out, nil
}

// Ping checks the Redis connection.
func (t *Tracker) Ping(ctx context.Context) error {
	return t.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (t *Tracker) Close() error {
	return t.client.Close()
}
