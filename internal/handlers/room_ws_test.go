package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jason-s-yu/partyroom/internal/auth"
	"github.com/jason-s-yu/partyroom/internal/database"
	"github.com/jason-s-yu/partyroom/internal/lobby"
	"github.com/jason-s-yu/partyroom/internal/middleware"
	"github.com/jason-s-yu/partyroom/internal/realtime"
)

func TestMain(m *testing.M) {
	if err := auth.Init(); err != nil {
		panic(err)
	}
	m.Run()
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger, _ := test.NewNullLogger()
	hub := realtime.NewHub(logger)
	store := database.NewNotifyingStore(database.NewMemoryStore(), hub, logger)
	mgr := lobby.NewManager(store, hub, nil, logger, lobby.Options{})

	mux := http.NewServeMux()
	mux.Handle("/room/ws", middleware.LogMiddleware(logger)(RoomWSHandler(logger, mgr)))
	mux.Handle("GET /rooms/{code}", RoomInfoHandler(logger, mgr))
	mux.HandleFunc("GET /ping", PingHandler)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, query string, protocols ...string) *websocket.Conn {
	t.Helper()
	if protocols == nil {
		protocols = []string{Subprotocol}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/room/ws" + query
	c, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{Subprotocols: protocols})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close(websocket.StatusNormalClosure, "") })
	return c
}

type frame struct {
	Type    string          `json:"type"`
	Request string          `json:"request"`
	Message string          `json:"message"`
	Payload json.RawMessage `json:"payload"`
}

func readUntil(t *testing.T, c *websocket.Conn, typ string) frame {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		var f frame
		require.NoError(t, wsjson.Read(ctx, c, &f))
		if f.Type == typ {
			return f
		}
	}
}

func send(t *testing.T, c *websocket.Conn, msg map[string]any) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, wsjson.Write(ctx, c, msg))
}

func TestRoomSocketFlow(t *testing.T) {
	srv := newTestServer(t)

	alice := dial(t, srv, "?name=Alice")
	send(t, alice, map[string]any{"type": "create_room", "game_type": "shito", "name": "Alice", "drinking_mode": true})
	created := readUntil(t, alice, "room_created")
	var body struct {
		RoomCode string `json:"room_code"`
	}
	require.NoError(t, json.Unmarshal(created.Payload, &body))
	require.Len(t, body.RoomCode, lobby.RoomCodeLength)

	bob := dial(t, srv, "?name=Bob&room="+strings.ToLower(body.RoomCode))
	state := readUntil(t, bob, lobby.UpdateRoomState)
	var snap lobby.Snapshot
	require.NoError(t, json.Unmarshal(state.Payload, &snap))
	assert.Len(t, snap.Players, 2)
	assert.Equal(t, lobby.RolePlayer, snap.Role)
	assert.True(t, snap.Room.Settings.DrinkingMode)

	send(t, alice, map[string]any{"type": "start_game"})
	send(t, alice, map[string]any{"type": "init_card_game", "card_ids": []string{"a", "b", "c", "d", "e"}, "seed": 42})

	update := readUntil(t, bob, lobby.UpdateCardGameState)
	var cards struct {
		State struct {
			DeckCards []json.RawMessage `json:"deckCards"`
		} `json:"state"`
	}
	require.NoError(t, json.Unmarshal(update.Payload, &cards))
	assert.Len(t, cards.State.DeckCards, 5)

	send(t, bob, map[string]any{"type": "start_game"})
	send(t, bob, map[string]any{"type": "no_such_thing"})
	denied := readUntil(t, bob, "error")
	assert.Equal(t, "no_such_thing", denied.Request)

	send(t, bob, map[string]any{"type": "chat", "text": "  "})
	denied = readUntil(t, bob, "error")
	assert.Equal(t, "chat", denied.Request)
	assert.Equal(t, lobby.ErrEmptyMessage.Error(), denied.Message)
}

func TestRoomSocketRejectsBadInput(t *testing.T) {
	srv := newTestServer(t)
	c := dial(t, srv, "")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.Write(ctx, websocket.MessageText, []byte("{not json")))
	f := readUntil(t, c, "error")
	assert.Equal(t, errInvalidJSON.Error(), f.Message)

	send(t, c, map[string]any{"type": "join_room", "code": "NOPE00"})
	f = readUntil(t, c, "error")
	assert.Equal(t, lobby.ErrRoomNotFound.Error(), f.Message)
}

func TestRoomSocketRequiresSubprotocol(t *testing.T) {
	srv := newTestServer(t)
	c := dial(t, srv, "", "other")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, _, err := c.Read(ctx)
	require.Error(t, err)
	assert.Equal(t, websocket.StatusCode(BadSubprotocolError), websocket.CloseStatus(err))
}

func TestRoomSocketUnknownAutoJoin(t *testing.T) {
	srv := newTestServer(t)
	c := dial(t, srv, "?room=NOPE00")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, _, err := c.Read(ctx)
	require.Error(t, err)
	assert.Equal(t, websocket.StatusCode(RoomUnavailableError), websocket.CloseStatus(err))
}

func TestRoomInfoEndpoint(t *testing.T) {
	srv := newTestServer(t)
	alice := dial(t, srv, "?name=Alice")
	send(t, alice, map[string]any{"type": "create_room", "game_type": "shito", "name": "Alice"})
	created := readUntil(t, alice, "room_created")
	var body struct {
		RoomCode string `json:"room_code"`
	}
	require.NoError(t, json.Unmarshal(created.Payload, &body))

	resp, err := http.Get(srv.URL + "/rooms/" + body.RoomCode)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var info lobby.RoomInfo
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&info))
	assert.Equal(t, body.RoomCode, info.Code)
	assert.Equal(t, 1, info.Players)

	missing, err := http.Get(srv.URL + "/rooms/NOPE00")
	require.NoError(t, err)
	missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)

	ping, err := http.Get(srv.URL + "/ping")
	require.NoError(t, err)
	ping.Body.Close()
	assert.Equal(t, http.StatusOK, ping.StatusCode)
}
