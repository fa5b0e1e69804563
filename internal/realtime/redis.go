// internal/realtime/redis.go
package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RedisTransport carries room topics over Redis pub/sub so sessions hosted by
// different server processes see each other.
type RedisTransport struct {
	rdb    *redis.Client
	logger logrus.FieldLogger
}

func NewRedisTransport(rdb *redis.Client, logger logrus.FieldLogger) *RedisTransport {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &RedisTransport{rdb: rdb, logger: logger}
}

func (t *RedisTransport) Publish(ctx context.Context, topic string, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := t.rdb.Publish(ctx, topic, data).Err(); err != nil {
		return fmt.Errorf("failed to publish to '%s': %w", topic, err)
	}
	return nil
}

// Subscribe waits for Redis to confirm the subscription before returning.
func (t *RedisTransport) Subscribe(ctx context.Context, topic, subscriberID string) (*Subscription, error) {
	ps := t.rdb.Subscribe(ctx, topic)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("failed to subscribe to '%s': %w", topic, err)
	}

	done := make(chan struct{})
	sub := &Subscription{Topic: topic, ID: subscriberID, events: make(chan Event, subscriptionBuffer)}
	sub.stop = func() { close(done) }

	go func() {
		defer close(sub.events)
		defer ps.Close()
		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					t.logger.WithError(err).WithField("topic", topic).Warn("dropping malformed event")
					continue
				}
				if !ev.deliverable(subscriberID) {
					continue
				}
				offer(sub, ev, t.logger)
			}
		}
	}()
	return sub, nil
}
