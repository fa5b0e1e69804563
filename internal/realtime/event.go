// internal/realtime/event.go
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// EventKind distinguishes ephemeral peer messages from storage notifications.
type EventKind string

const (
	// KindBroadcast is a peer message. It is never delivered back to its sender.
	KindBroadcast EventKind = "broadcast"
	// KindChange announces a committed row write and reaches every subscriber.
	KindChange EventKind = "change"
)

// Op is the row operation carried by a change event.
type Op string

const (
	OpInsert Op = "INSERT"
	OpUpdate Op = "UPDATE"
	OpDelete Op = "DELETE"
)

// Event is the unit carried on a room topic.
type Event struct {
	Kind    EventKind       `json:"kind"`
	Name    string          `json:"name,omitempty"`
	Table   string          `json:"table,omitempty"`
	Op      Op              `json:"op,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Sender  string          `json:"sender,omitempty"`
	At      time.Time       `json:"at"`
}

// Transport publishes events to topics and hands out subscriptions.
type Transport interface {
	Publish(ctx context.Context, topic string, ev Event) error
	Subscribe(ctx context.Context, topic, subscriberID string) (*Subscription, error)
}

// RoomTopic is the topic every member of a room subscribes to.
func RoomTopic(roomID string) string {
	return "partyroom:room:" + roomID
}

// NewBroadcast builds a broadcast event named name from sender.
func NewBroadcast(name, sender string, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", name, err)
	}
	return Event{Kind: KindBroadcast, Name: name, Sender: sender, Payload: raw, At: time.Now().UTC()}, nil
}

// NewChange builds a change event for row in table.
func NewChange(table string, op Op, row any) (Event, error) {
	raw, err := json.Marshal(row)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s row: %w", table, err)
	}
	return Event{Kind: KindChange, Table: table, Op: op, Payload: raw, At: time.Now().UTC()}, nil
}

// Decode unmarshals the payload into v.
func (e Event) Decode(v any) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("event %q has no payload", e.Name)
	}
	return json.Unmarshal(e.Payload, v)
}

// deliverable reports whether subscriberID should receive e.
func (e Event) deliverable(subscriberID string) bool {
	return e.Kind != KindBroadcast || e.Sender == "" || e.Sender != subscriberID
}

// Subscription is a live feed of events on one topic.
type Subscription struct {
	Topic string
	ID    string

	events chan Event
	stop   func()
	once   sync.Once
}

// Events is closed once the subscription ends.
func (s *Subscription) Events() <-chan Event { return s.events }

// Close ends the subscription. It is safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(s.stop)
}

// subscriptionBuffer is the per-subscriber queue length. Sends to a full
// queue are dropped.
const subscriptionBuffer = 64

// offer queues ev for sub without blocking. A drop is logged; a dropped
// change event leaves that subscriber behind storage until the next one.
func offer(sub *Subscription, ev Event, logger logrus.FieldLogger) bool {
	select {
	case sub.events <- ev:
		return true
	default:
	}
	entry := logger.WithFields(logrus.Fields{
		"topic":      sub.Topic,
		"subscriber": sub.ID,
		"kind":       ev.Kind,
		"event":      ev.Name,
		"table":      ev.Table,
	})
	if ev.Kind == KindChange {
		entry.Warn("subscriber queue full; change event dropped")
	} else {
		entry.Debug("subscriber queue full; broadcast dropped")
	}
	return false
}
