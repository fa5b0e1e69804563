package lobby

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jason-s-yu/partyroom/internal/creek"
	"github.com/jason-s-yu/partyroom/internal/database"
	"github.com/jason-s-yu/partyroom/internal/models"
)

func seedCreekCards(t *testing.T, mem *database.MemoryStore) []models.Card {
	t.Helper()
	cards := []models.Card{
		{ID: "c1", GameID: DefaultCreekGameID, CardType: "event", Name: "Current", Effect: "Move back 2 spaces"},
		{ID: "c2", GameID: DefaultCreekGameID, CardType: "event", Name: "Tailwind", Effect: "Move forward 3 spaces"},
		{ID: "c3", GameID: DefaultCreekGameID, CardType: "event", Name: "Found one", Effect: "Gain a paddle"},
		{ID: "c4", GameID: DefaultCreekGameID, CardType: "event", Name: "Nap", Effect: "Skip your next turn"},
	}
	require.NoError(t, mem.UpsertCards(context.Background(), cards))
	return cards
}

func creekState(t *testing.T, mem *database.MemoryStore, code string) creek.GameState {
	t.Helper()
	gs, ok, err := creek.FromGameData(storedRoom(t, mem, code).GameData)
	require.NoError(t, err)
	require.True(t, ok)
	return gs
}

func injectCreek(t *testing.T, s *Session, gs creek.GameState) {
	t.Helper()
	value, err := gs.GameDataValue()
	require.NoError(t, err)
	require.NoError(t, s.UpdateGameState(context.Background(), map[string]any{creek.GameDataKey: value}))
}

func TestStartCreekGameSeatsPlayersAndBots(t *testing.T) {
	ctx := context.Background()
	m, mem := newTestManager(t, Options{}, nil)
	cards := seedCreekCards(t, mem)

	host := newTestSession(t, m, "host", "Host")
	code, err := host.CreateRoom(ctx, "up-shitz-creek", "Host", false, true)
	require.NoError(t, err)
	guest := newTestSession(t, m, "guest", "Guest")
	require.NoError(t, guest.JoinRoom(ctx, code, "Guest"))

	require.NoError(t, guest.StartCreekGame(ctx, 2))
	_, ok, err := creek.FromGameData(storedRoom(t, mem, code).GameData)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, host.StartCreekGame(ctx, 2))
	room := storedRoom(t, mem, code)
	assert.Equal(t, models.RoomPlaying, room.Status)

	gs := creekState(t, mem, code)
	require.Len(t, gs.Players, 4)
	assert.Equal(t, "host", gs.Players[0].ID)
	assert.Equal(t, "guest", gs.Players[1].ID)
	assert.True(t, gs.Players[2].IsBot)
	assert.Equal(t, "bot-2", gs.Players[3].ID)
	require.NotNil(t, gs.Deck)
	assert.Len(t, gs.Deck.DrawPile, len(cards))

	require.NotNil(t, host.Snapshot().Creek)
}

func TestCreekTurnPermissions(t *testing.T) {
	ctx := context.Background()
	m, mem := newTestManager(t, Options{}, nil)
	seedCreekCards(t, mem)

	host := newTestSession(t, m, "host", "Host")
	code, err := host.CreateRoom(ctx, "up-shitz-creek", "Host", false, false)
	require.NoError(t, err)
	guest := newTestSession(t, m, "guest", "Guest")
	require.NoError(t, guest.JoinRoom(ctx, code, "Guest"))
	require.NoError(t, host.StartCreekGame(ctx, 1))

	rep, err := guest.PlayCreekTurn(ctx)
	require.NoError(t, err)
	assert.Nil(t, rep)

	rep, err = host.PlayCreekTurn(ctx)
	require.NoError(t, err)
	require.NotNil(t, rep)
	assert.Equal(t, "host", rep.PlayerID)
	assert.NotNil(t, creekState(t, mem, code).LastTurn)

	gs := creekState(t, mem, code)
	gs.CurrentTurn = 2
	gs.Winner = ""
	injectCreek(t, host, gs)

	rep, err = guest.PlayCreekTurn(ctx)
	require.NoError(t, err)
	assert.Nil(t, rep)

	rep, err = host.PlayCreekTurn(ctx)
	require.NoError(t, err)
	require.NotNil(t, rep)
	assert.Equal(t, "bot-1", rep.PlayerID)
}

func TestCreekWinFinishesRoom(t *testing.T) {
	ctx := context.Background()
	m, mem := newTestManager(t, Options{}, nil)
	seedCreekCards(t, mem)

	host := newTestSession(t, m, "host", "Host")
	code, err := host.CreateRoom(ctx, "up-shitz-creek", "Host", false, false)
	require.NoError(t, err)
	require.NoError(t, host.StartCreekGame(ctx, 1))

	gs := creekState(t, mem, code)
	gs.CurrentTurn = 0
	gs.Players[0].Position = creek.DefaultBoard().Finish() - 1
	gs.Players[0].Paddles = creek.MinPaddlesToWin
	gs.Players[0].SkipNextTurn = false
	injectCreek(t, host, gs)

	rep, err := host.PlayCreekTurn(ctx)
	require.NoError(t, err)
	require.NotNil(t, rep)
	assert.Equal(t, "host", rep.Winner)

	room := storedRoom(t, mem, code)
	assert.Equal(t, models.RoomFinished, room.Status)
	assert.Equal(t, "host", room.GameData["winner"])
	assert.Equal(t, "host", creekState(t, mem, code).Winner)

	_, err = host.PlayCreekTurn(ctx)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCreekNeedsGame(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t, Options{}, nil)
	host := newTestSession(t, m, "host", "Host")
	_, err := host.CreateRoom(ctx, "up-shitz-creek", "Host", false, false)
	require.NoError(t, err)

	_, err = host.PlayCreekTurn(ctx)
	assert.ErrorIs(t, err, ErrNoCreekGame)
}
