package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jason-s-yu/partyroom/internal/models"
	"github.com/jason-s-yu/partyroom/internal/realtime"
)

func TestNotifyingStorePublishesRoomChanges(t *testing.T) {
	ctx := context.Background()
	hub := realtime.NewHub(nil)
	s := NewNotifyingStore(NewMemoryStore(), hub, nil)
	room := newRoom("NOTIFY")

	// subscribe before the room exists; the topic is derived from the id
	sub, err := hub.Subscribe(ctx, realtime.RoomTopic(room.ID.String()), "watcher")
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, s.CreateRoom(ctx, room))
	require.NoError(t, s.UpsertPlayer(ctx, &models.Player{RoomID: room.ID, PlayerID: "p1"}))
	require.NoError(t, s.RemovePlayer(ctx, room.ID, "p1"))

	want := []struct {
		table string
		op    realtime.Op
	}{
		{TableRooms, realtime.OpInsert},
		{TablePlayers, realtime.OpUpdate},
		{TablePlayers, realtime.OpDelete},
	}
	for _, w := range want {
		select {
		case ev := <-sub.Events():
			assert.Equal(t, realtime.KindChange, ev.Kind)
			assert.Equal(t, w.table, ev.Table)
			assert.Equal(t, w.op, ev.Op)
		case <-time.After(time.Second):
			t.Fatalf("missing %s %s event", w.table, w.op)
		}
	}
}

func TestNotifyingStoreSkipsFailedWrites(t *testing.T) {
	ctx := context.Background()
	hub := realtime.NewHub(nil)
	s := NewNotifyingStore(NewMemoryStore(), hub, nil)
	room := newRoom("FAILED")
	sub, _ := hub.Subscribe(ctx, realtime.RoomTopic(room.ID.String()), "watcher")
	defer sub.Close()

	assert.ErrorIs(t, s.UpdateRoom(ctx, room), ErrNotFound)
	select {
	case ev := <-sub.Events():
		t.Fatalf("unexpected event %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}
