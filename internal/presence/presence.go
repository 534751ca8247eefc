// Package presence tracks which users currently hold a live gateway
// connection. Presence is last-writer-wins: a key with a TTL per user,
// refreshed on heartbeat, deleted on disconnect.
package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient opens a redis connection suitable for presence tracking.
func NewRedisClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

// Tracker is the redis-backed presence store.
type Tracker struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewTracker constructs a Tracker whose presence keys expire after ttl
// without a refresh.
func NewTracker(rdb *redis.Client, ttl time.Duration) *Tracker {
	return &Tracker{rdb: rdb, ttl: ttl}
}

func key(userID int64) string {
	return fmt.Sprintf("presence:user:%d", userID)
}

// MarkOnline records the user as online. Called on gateway connect and on
// every heartbeat.
func (t *Tracker) MarkOnline(ctx context.Context, userID int64) error {
	return t.rdb.Set(ctx, key(userID), time.Now().Unix(), t.ttl).Err()
}

// MarkOffline drops the user's presence key on disconnect. A user with
// another live connection re-establishes it on the next heartbeat.
func (t *Tracker) MarkOffline(ctx context.Context, userID int64) error {
	return t.rdb.Del(ctx, key(userID)).Err()
}

// Online reports which of the given users currently have a presence key.
func (t *Tracker) Online(ctx context.Context, userIDs []int64) (map[int64]bool, error) {
	result := make(map[int64]bool, len(userIDs))
	if len(userIDs) == 0 {
		return result, nil
	}

	cmds := make([]*redis.IntCmd, len(userIDs))
	_, err := t.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range userIDs {
			cmds[i] = pipe.Exists(ctx, key(id))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i, id := range userIDs {
		result[id] = cmds[i].Val() > 0
	}
	return result, nil
}

// Close releases the underlying redis connection.
func (t *Tracker) Close() error {
	return t.rdb.Close()
}
