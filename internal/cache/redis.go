// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jason-s-yu/partyroom/internal/models"
)

// DefaultQueueName is the Redis list the historian drains.
const DefaultQueueName = "partyroom_stats"

// ConnectRedis opens a client for addr/db and verifies it with a ping.
func ConnectRedis(ctx context.Context, addr string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// StatsQueue is a Redis list of SessionStats records.
type StatsQueue struct {
	rdb   *redis.Client
	queue string
}

func NewStatsQueue(rdb *redis.Client, queue string) *StatsQueue {
	if queue == "" {
		queue = DefaultQueueName
	}
	return &StatsQueue{rdb: rdb, queue: queue}
}

// RecordSession serializes st and pushes it onto the queue.
func (q *StatsQueue) RecordSession(ctx context.Context, st models.SessionStats) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to marshal SessionStats: %w", err)
	}
	if err := q.rdb.RPush(ctx, q.queue, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", q.queue, err)
	}
	return nil
}

// Pop blocks up to timeout for the next record. ok is false on timeout.
func (q *StatsQueue) Pop(ctx context.Context, timeout time.Duration) (models.SessionStats, bool, error) {
	res, err := q.rdb.BLPop(ctx, timeout, q.queue).Result()
	if errors.Is(err, redis.Nil) {
		return models.SessionStats{}, false, nil
	}
	if err != nil {
		return models.SessionStats{}, false, err
	}
	if len(res) < 2 {
		return models.SessionStats{}, false, nil
	}
	// res[0] is the queue name and res[1] the payload.
	var st models.SessionStats
	if err := json.Unmarshal([]byte(res[1]), &st); err != nil {
		return models.SessionStats{}, false, fmt.Errorf("invalid stats record: %w", err)
	}
	return st, true, nil
}
