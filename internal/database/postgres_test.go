package database

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jason-s-yu/partyroom/internal/models"
)

// Requires a disposable database; the schema is applied on each run.
func TestPostgresStoreRoomLifecycle(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := Connect(ctx, dsn)
	require.NoError(t, err)
	defer pool.Close()
	require.NoError(t, Migrate(ctx, pool))
	s := NewPostgresStore(pool)

	room := newRoom(time.Now().Format("150405"))
	room.GameData["cardGameState"] = map[string]any{"deckCards": []any{}}
	require.NoError(t, s.CreateRoom(ctx, room))

	got, err := s.GetRoomByCode(ctx, room.Code)
	require.NoError(t, err)
	assert.Equal(t, room.ID, got.ID)
	assert.Contains(t, got.GameData, "cardGameState")

	got.Status = models.RoomPlaying
	require.NoError(t, s.UpdateRoom(ctx, got))
	again, err := s.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoomPlaying, again.Status)

	p := &models.Player{RoomID: room.ID, PlayerID: "p1", Name: "Alice", LastSeen: time.Now(), JoinedAt: time.Now()}
	require.NoError(t, s.UpsertPlayer(ctx, p))
	players, err := s.ListPlayers(ctx, room.ID)
	require.NoError(t, err)
	assert.Len(t, players, 1)
}
