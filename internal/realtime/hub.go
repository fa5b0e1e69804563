// internal/realtime/hub.go
package realtime

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// Hub is an in-process Transport. Publishing never blocks on a slow
// subscriber; its event is dropped instead.
type Hub struct {
	mu     sync.RWMutex
	topics map[string]map[*Subscription]struct{}
	logger logrus.FieldLogger
}

// NewHub builds an empty hub. A nil logger uses the logrus standard logger.
func NewHub(logger logrus.FieldLogger) *Hub {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Hub{topics: make(map[string]map[*Subscription]struct{}), logger: logger}
}

// Subscribe registers subscriberID on topic until ctx ends or the
// subscription is closed.
func (h *Hub) Subscribe(ctx context.Context, topic, subscriberID string) (*Subscription, error) {
	sub := &Subscription{Topic: topic, ID: subscriberID, events: make(chan Event, subscriptionBuffer)}
	done := make(chan struct{})
	sub.stop = func() {
		h.unsubscribe(sub)
		close(done)
	}

	h.mu.Lock()
	if _, ok := h.topics[topic]; !ok {
		h.topics[topic] = make(map[*Subscription]struct{})
	}
	h.topics[topic][sub] = struct{}{}
	h.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			sub.Close()
		case <-done:
		}
	}()
	return sub, nil
}

func (h *Hub) unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.topics[sub.Topic]
	if !ok {
		return
	}
	if _, ok := subs[sub]; ok {
		delete(subs, sub)
		close(sub.events)
		if len(subs) == 0 {
			delete(h.topics, sub.Topic)
		}
	}
}

// Publish fans ev out to every subscriber of topic.
func (h *Hub) Publish(ctx context.Context, topic string, ev Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.topics[topic] {
		if !ev.deliverable(sub.ID) {
			continue
		}
		offer(sub, ev, h.logger)
	}
	return nil
}

// Subscribers is the number of live subscriptions on topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}
