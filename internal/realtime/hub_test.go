package realtime

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recv(t *testing.T, sub *Subscription) (Event, bool) {
	t.Helper()
	select {
	case ev, ok := <-sub.Events():
		return ev, ok
	case <-time.After(time.Second):
		return Event{}, false
	}
}

func assertSilent(t *testing.T, sub *Subscription) {
	t.Helper()
	select {
	case ev := <-sub.Events():
		t.Fatalf("unexpected event %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubBroadcastSkipsSender(t *testing.T) {
	ctx := context.Background()
	h := NewHub(nil)
	topic := RoomTopic("r1")
	alice, err := h.Subscribe(ctx, topic, "alice")
	require.NoError(t, err)
	bob, err := h.Subscribe(ctx, topic, "bob")
	require.NoError(t, err)
	defer alice.Close()
	defer bob.Close()

	ev, err := NewBroadcast("chat", "alice", map[string]string{"text": "hi"})
	require.NoError(t, err)
	require.NoError(t, h.Publish(ctx, topic, ev))

	got, ok := recv(t, bob)
	require.True(t, ok)
	assert.Equal(t, "chat", got.Name)
	var body map[string]string
	require.NoError(t, got.Decode(&body))
	assert.Equal(t, "hi", body["text"])
	assertSilent(t, alice)
}

func TestHubChangeReachesEveryone(t *testing.T) {
	ctx := context.Background()
	h := NewHub(nil)
	topic := RoomTopic("r1")
	a, _ := h.Subscribe(ctx, topic, "a")
	b, _ := h.Subscribe(ctx, topic, "b")
	other, _ := h.Subscribe(ctx, RoomTopic("r2"), "c")

	ev, err := NewChange("rooms", OpUpdate, map[string]any{"id": "r1"})
	require.NoError(t, err)
	ev.Sender = "a"
	require.NoError(t, h.Publish(ctx, topic, ev))

	for _, sub := range []*Subscription{a, b} {
		got, ok := recv(t, sub)
		require.True(t, ok)
		assert.Equal(t, KindChange, got.Kind)
		assert.Equal(t, "rooms", got.Table)
	}
	assertSilent(t, other)
}

func TestHubCloseEndsSubscription(t *testing.T) {
	h := NewHub(nil)
	topic := RoomTopic("r1")
	sub, _ := h.Subscribe(context.Background(), topic, "a")
	require.Equal(t, 1, h.Subscribers(topic))

	sub.Close()
	sub.Close()

	_, ok := <-sub.Events()
	assert.False(t, ok)
	assert.Equal(t, 0, h.Subscribers(topic))
	assert.NoError(t, h.Publish(context.Background(), topic, Event{Kind: KindChange}))
}

func TestHubContextCancelEndsSubscription(t *testing.T) {
	h := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	sub, _ := h.Subscribe(ctx, "t", "a")
	cancel()

	_, ok := recv(t, sub)
	assert.False(t, ok)
}

func TestHubSlowSubscriberDoesNotBlock(t *testing.T) {
	logger, hook := test.NewNullLogger()
	h := NewHub(logger)
	sub, _ := h.Subscribe(context.Background(), "t", "slow")
	defer sub.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriptionBuffer*4; i++ {
			_ = h.Publish(context.Background(), "t", Event{Kind: KindChange})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
	assert.Len(t, sub.Events(), subscriptionBuffer)

	dropped := 0
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel && e.Data["subscriber"] == "slow" {
			dropped++
		}
	}
	assert.Equal(t, subscriptionBuffer*3, dropped)
	assert.Equal(t, "subscriber queue full; change event dropped", hook.LastEntry().Message)
}

func TestRedisTransportRoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	tr := NewRedisTransport(rdb, nil)
	topic := RoomTopic("redis-test")

	self, err := tr.Subscribe(ctx, topic, "alice")
	require.NoError(t, err)
	defer self.Close()
	peer, err := tr.Subscribe(ctx, topic, "bob")
	require.NoError(t, err)
	defer peer.Close()

	ev, _ := NewBroadcast("emote", "alice", map[string]string{"emote": "wave"})
	require.NoError(t, tr.Publish(ctx, topic, ev))

	got, ok := recv(t, peer)
	require.True(t, ok)
	assert.Equal(t, "emote", got.Name)
	assertSilent(t, self)
}
