// internal/lobby/session.go
package lobby

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/jason-s-yu/partyroom/internal/auth"
	"github.com/jason-s-yu/partyroom/internal/cardstate"
	"github.com/jason-s-yu/partyroom/internal/creek"
	"github.com/jason-s-yu/partyroom/internal/database"
	"github.com/jason-s-yu/partyroom/internal/models"
	"github.com/jason-s-yu/partyroom/internal/realtime"
)

// Role is how a session participates in its room.
type Role string

const (
	RoleNone      Role = ""
	RolePlayer    Role = "player"
	RoleSpectator Role = "spectator"
)

// Update types pushed to the session's client.
const (
	UpdateRoomState     = "room_state"
	UpdateCardGameState = "card_game_state"
	UpdateDrinkEvent    = "drink_event"
	UpdateChat          = "chat"
	UpdateKicked        = "kicked"
	UpdateLeft          = "left_room"
	UpdateCreekTurn     = "creek_turn"
	UpdateEvent         = "event"
)

// Broadcast event names on the room topic.
const (
	EventCardGameState = "card_game_state"
	EventDrink         = "drink_event"
	EventCreekTurn     = "creek_turn"
	EventSettings      = "settings_changed"
)

const (
	updateBuffer   = 64
	persistTimeout = 5 * time.Second
)

// Update is one message for the client bound to a session.
type Update struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Snapshot is everything a client needs to render its room.
type Snapshot struct {
	Self          string               `json:"self"`
	Role          Role                 `json:"role"`
	Room          *models.Room         `json:"room"`
	Players       []models.Player      `json:"players"`
	Spectators    []models.Spectator   `json:"spectators"`
	Messages      []models.ChatMessage `json:"messages"`
	CardGameState *cardstate.State     `json:"cardGameState,omitempty"`
	Creek         *creek.GameState     `json:"creek,omitempty"`
	DrinkCounts   map[string]int       `json:"drinkCounts"`
}

// Session is one client's membership in at most one room. Operations are
// meant to be called from a single goroutine; room events are applied by the
// session's own listener.
type Session struct {
	m      *Manager
	id     auth.Identity
	logger logrus.FieldLogger

	mu          sync.Mutex
	name        string
	room        *models.Room
	role        Role
	players     []models.Player
	spectators  []models.Spectator
	messages    []models.ChatMessage
	cardState   *cardstate.State
	creekState  *creek.GameState
	drinkCounts map[string]int

	cancel context.CancelFunc
	sub    *realtime.Subscription
	wg     sync.WaitGroup

	// async persists are chained so they land in issue order
	bg          sync.WaitGroup
	persistTail chan struct{}
	pending     int

	outMu  sync.RWMutex
	out    chan Update
	closed bool
}

func newSession(m *Manager, id auth.Identity) *Session {
	return &Session{
		m:           m,
		id:          id,
		name:        id.Name,
		logger:      m.logger.WithField("player_id", id.PlayerID),
		drinkCounts: map[string]int{},
		out:         make(chan Update, updateBuffer),
	}
}

// Identity is who the session acts as.
func (s *Session) Identity() auth.Identity { return s.id }

// Updates streams pushes for the client. It is closed by Close.
func (s *Session) Updates() <-chan Update { return s.out }

// write pushes u without blocking; a full queue drops it.
func (s *Session) write(u Update) {
	s.outMu.RLock()
	defer s.outMu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.out <- u:
	default:
		s.logger.WithField("update", u.Type).Warn("update queue full; dropped")
	}
}

// Snapshot copies the current local view.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotUnsafe()
}

func (s *Session) snapshotUnsafe() Snapshot {
	snap := Snapshot{
		Self:        s.id.PlayerID,
		Role:        s.role,
		Room:        s.room.Clone(),
		Players:     append([]models.Player{}, s.players...),
		Spectators:  append([]models.Spectator{}, s.spectators...),
		Messages:    append([]models.ChatMessage{}, s.messages...),
		DrinkCounts: make(map[string]int, len(s.drinkCounts)),
	}
	for k, v := range s.drinkCounts {
		snap.DrinkCounts[k] = v
	}
	if s.cardState != nil {
		cs := s.cardState.Clone()
		snap.CardGameState = &cs
	}
	if s.creekState != nil {
		gs := s.creekState.Clone()
		snap.Creek = &gs
	}
	return snap
}

func (s *Session) displayName(name string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	if s.id.Name != "" {
		return s.id.Name
	}
	return "Player " + s.id.PlayerID[:min(4, len(s.id.PlayerID))]
}

// CreateRoom opens a new waiting room hosted by this session and joins it.
func (s *Session) CreateRoom(ctx context.Context, gameType, hostName string, isPrivate, drinking bool) (string, error) {
	if err := s.LeaveRoom(ctx); err != nil {
		return "", err
	}
	code, err := s.m.newRoomCode(ctx)
	if err != nil {
		return "", err
	}
	name := s.displayName(hostName)
	now := time.Now().UTC()
	room := &models.Room{
		ID:       uuid.New(),
		Code:     code,
		GameType: gameType,
		HostID:   s.id.PlayerID,
		Status:   models.RoomWaiting,
		GameData: map[string]any{},
		Settings: models.RoomSettings{
			DrinkingMode:      drinking && !s.m.IsChildGame(gameType),
			DrinkingIntensity: "medium",
			IsPrivate:         isPrivate,
			AllowSpectators:   true,
			MaxPlayers:        s.m.opts.MaxPlayers,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.m.store.CreateRoom(ctx, room); err != nil {
		return "", fmt.Errorf("create room: %w", err)
	}
	host := &models.Player{
		RoomID:      room.ID,
		PlayerID:    s.id.PlayerID,
		Name:        name,
		IsHost:      true,
		IsConnected: true,
		LastSeen:    now,
		JoinedAt:    now,
	}
	if err := s.m.store.UpsertPlayer(ctx, host); err != nil {
		return "", fmt.Errorf("add host: %w", err)
	}
	s.setName(name)
	if err := s.attach(ctx, room, RolePlayer); err != nil {
		return "", err
	}
	s.appendSystem(ctx, room.ID, name+" created the room")
	s.m.logger.WithFields(logrus.Fields{"room": code, "game_type": gameType, "host": s.id.PlayerID}).Info("room created")
	return code, nil
}

// JoinRoom seats this session as a player. A returning player keeps their row.
func (s *Session) JoinRoom(ctx context.Context, code, name string) error {
	if err := s.LeaveRoom(ctx); err != nil {
		return err
	}
	room, err := s.lookupOpen(ctx, code)
	if err != nil {
		return err
	}
	name = s.displayName(name)
	now := time.Now().UTC()

	l := s.m.roomLock(room.ID)
	l.Lock()
	players, err := s.m.store.ListPlayers(ctx, room.ID)
	if err != nil {
		l.Unlock()
		return fmt.Errorf("list players: %w", err)
	}
	var row *models.Player
	nextTurn := 0
	for i := range players {
		if players[i].PlayerID == s.id.PlayerID {
			row = &players[i]
		}
		if players[i].TurnOrder >= nextTurn {
			nextTurn = players[i].TurnOrder + 1
		}
	}
	returning := row != nil
	if !returning {
		if len(players) >= s.m.maxPlayers(room) {
			l.Unlock()
			return ErrRoomFull
		}
		row = &models.Player{RoomID: room.ID, PlayerID: s.id.PlayerID, TurnOrder: nextTurn, JoinedAt: now}
	}
	row.Name = name
	row.IsConnected = true
	row.LastSeen = now
	err = s.m.store.UpsertPlayer(ctx, row)
	l.Unlock()
	if err != nil {
		return fmt.Errorf("add player: %w", err)
	}

	s.setName(name)
	if err := s.attach(ctx, room, RolePlayer); err != nil {
		return err
	}
	if !returning {
		s.appendSystem(ctx, room.ID, name+" joined the room")
	}
	return nil
}

// JoinAsSpectator attaches read-only to the room.
func (s *Session) JoinAsSpectator(ctx context.Context, code, name string) error {
	if err := s.LeaveRoom(ctx); err != nil {
		return err
	}
	room, err := s.lookupOpen(ctx, code)
	if err != nil {
		return err
	}
	if !room.Settings.AllowSpectators {
		return ErrSpectatorsClosed
	}
	name = s.displayName(name)
	now := time.Now().UTC()
	sp := &models.Spectator{
		RoomID:      room.ID,
		PlayerID:    s.id.PlayerID,
		Name:        name,
		IsConnected: true,
		LastSeen:    now,
		JoinedAt:    now,
	}
	if err := s.m.store.UpsertSpectator(ctx, sp); err != nil {
		return fmt.Errorf("add spectator: %w", err)
	}
	s.setName(name)
	if err := s.attach(ctx, room, RoleSpectator); err != nil {
		return err
	}
	s.appendSystem(ctx, room.ID, name+" is watching")
	return nil
}

func (s *Session) lookupOpen(ctx context.Context, code string) (*models.Room, error) {
	room, err := s.m.store.GetRoomByCode(ctx, strings.TrimSpace(code))
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup room: %w", err)
	}
	if room.Status == models.RoomFinished {
		return nil, ErrRoomFinished
	}
	return room, nil
}

func (s *Session) setName(name string) {
	s.mu.Lock()
	s.name = name
	s.mu.Unlock()
}

// attach subscribes to the room, loads the snapshot and starts the presence
// heartbeat and event listener. Both goroutines share one cancel.
func (s *Session) attach(ctx context.Context, room *models.Room, role Role) error {
	runCtx, cancel := context.WithCancel(context.Background())
	sub, err := s.m.transport.Subscribe(runCtx, realtime.RoomTopic(room.ID.String()), s.id.PlayerID)
	if err != nil {
		cancel()
		return fmt.Errorf("subscribe: %w", err)
	}

	var (
		players    []models.Player
		spectators []models.Spectator
		messages   []models.ChatMessage
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		players, err = s.m.store.ListPlayers(gctx, room.ID)
		return err
	})
	g.Go(func() (err error) {
		spectators, err = s.m.store.ListSpectators(gctx, room.ID)
		return err
	})
	g.Go(func() (err error) {
		messages, err = s.m.store.ListMessages(gctx, room.ID, s.m.opts.MessageHistory)
		return err
	})
	if err := g.Wait(); err != nil {
		sub.Close()
		cancel()
		return fmt.Errorf("fetch room snapshot: %w", err)
	}

	s.mu.Lock()
	s.room = room
	s.role = role
	s.players = players
	s.spectators = spectators
	s.messages = messages
	s.drinkCounts = map[string]int{}
	s.applyGameDataUnsafe(room.GameData)
	s.cancel = cancel
	s.sub = sub
	snap := s.snapshotUnsafe()
	s.mu.Unlock()

	s.wg.Add(2)
	go s.heartbeatLoop(runCtx, room.ID, role)
	go s.listen(runCtx, sub)

	s.write(Update{Type: UpdateRoomState, Payload: snap})
	return nil
}

// applyGameDataUnsafe replaces the decoded game documents from stored
// game_data. The card state is left alone while this session still has
// writes of its own in flight.
func (s *Session) applyGameDataUnsafe(gameData map[string]any) {
	if s.pending == 0 {
		cs, ok, err := cardstate.FromGameData(gameData)
		switch {
		case err != nil:
			s.logger.WithError(err).Warn("ignoring undecodable card game state")
		case ok:
			s.cardState = &cs
		default:
			s.cardState = nil
		}
	}
	gs, ok, err := creek.FromGameData(gameData)
	switch {
	case err != nil:
		s.logger.WithError(err).Warn("ignoring undecodable creek state")
	case ok:
		s.creekState = &gs
	default:
		s.creekState = nil
	}
}

// installRoomUnsafe replaces the local room with room unless it belongs to
// another room or is older than what is already applied.
func (s *Session) installRoomUnsafe(room *models.Room) bool {
	if s.room == nil || room.ID != s.room.ID || room.UpdatedAt.Before(s.room.UpdatedAt) {
		return false
	}
	s.room = room.Clone()
	s.applyGameDataUnsafe(room.GameData)
	return true
}

// stop tears down the heartbeat and listener together. ok is false when the
// session was not in a room.
func (s *Session) stop() (room *models.Room, role Role, name string, ok bool) {
	s.mu.Lock()
	cancel, sub := s.cancel, s.sub
	s.cancel, s.sub = nil, nil
	room, role, name = s.room, s.role, s.name
	s.mu.Unlock()

	if sub != nil {
		sub.Close()
	}
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
	return room, role, name, room != nil
}

func (s *Session) clearUnsafe() {
	s.room = nil
	s.role = RoleNone
	s.players = nil
	s.spectators = nil
	s.messages = nil
	s.cardState = nil
	s.creekState = nil
	s.drinkCounts = map[string]int{}
}

// LeaveRoom removes this session's row, posts a system message and clears
// all local state, drink counters included.
func (s *Session) LeaveRoom(ctx context.Context) error {
	room, role, name, ok := s.stop()
	if !ok {
		return nil
	}
	s.mu.Lock()
	s.clearUnsafe()
	s.mu.Unlock()

	var err error
	switch role {
	case RolePlayer:
		err = s.m.store.RemovePlayer(ctx, room.ID, s.id.PlayerID)
	case RoleSpectator:
		err = s.m.store.RemoveSpectator(ctx, room.ID, s.id.PlayerID)
	}
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		s.logger.WithError(err).WithField("room", room.Code).Warn("failed to remove membership row")
		return fmt.Errorf("leave room: %w", err)
	}
	if role == RolePlayer && room.HostID == s.id.PlayerID {
		s.handOffHost(ctx, room.ID)
	}
	s.appendSystem(ctx, room.ID, name+" left the room")
	s.write(Update{Type: UpdateLeft})
	return nil
}

// handOffHost promotes the earliest seated remaining player.
func (s *Session) handOffHost(ctx context.Context, roomID uuid.UUID) {
	players, err := s.m.store.ListPlayers(ctx, roomID)
	if err != nil || len(players) == 0 {
		return
	}
	next := players[0]
	if _, err := s.m.mutateRoom(ctx, roomID, func(r *models.Room) error {
		r.HostID = next.PlayerID
		return nil
	}); err != nil {
		s.logger.WithError(err).Warn("failed to hand off host")
		return
	}
	_ = s.m.mutatePlayer(ctx, roomID, next.PlayerID, func(p *models.Player) { p.IsHost = true })
}

// Disconnect stops presence for a dropped connection but keeps the
// membership row so the player can reclaim the seat.
func (s *Session) Disconnect(ctx context.Context) {
	room, role, _, ok := s.stop()
	if !ok {
		return
	}
	now := time.Now().UTC()
	switch role {
	case RolePlayer:
		_ = s.m.mutatePlayer(ctx, room.ID, s.id.PlayerID, func(p *models.Player) {
			p.IsConnected = false
			p.LastSeen = now
		})
	case RoleSpectator:
		s.mu.Lock()
		self := s.selfSpectatorUnsafe()
		s.mu.Unlock()
		if self != nil {
			self.IsConnected = false
			self.LastSeen = now
			_ = s.m.store.UpsertSpectator(ctx, self)
		}
	}
	s.mu.Lock()
	s.clearUnsafe()
	s.mu.Unlock()
}

// Close disconnects and ends the update stream. It waits for pending
// background writes.
func (s *Session) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	s.Disconnect(ctx)
	s.Flush()

	s.outMu.Lock()
	defer s.outMu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.out)
	}
}

// Flush waits for in-flight persists and stats calls.
func (s *Session) Flush() {
	s.bg.Wait()
}

func (s *Session) selfSpectatorUnsafe() *models.Spectator {
	for i := range s.spectators {
		if s.spectators[i].PlayerID == s.id.PlayerID {
			sp := s.spectators[i]
			return &sp
		}
	}
	return nil
}

func (s *Session) heartbeatLoop(ctx context.Context, roomID uuid.UUID, role Role) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.m.opts.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.beat(ctx, roomID, role)
		}
	}
}

func (s *Session) beat(ctx context.Context, roomID uuid.UUID, role Role) {
	now := time.Now().UTC()
	var err error
	switch role {
	case RolePlayer:
		err = s.m.mutatePlayer(ctx, roomID, s.id.PlayerID, func(p *models.Player) {
			p.IsConnected = true
			p.LastSeen = now
		})
	case RoleSpectator:
		s.mu.Lock()
		self := s.selfSpectatorUnsafe()
		s.mu.Unlock()
		if self == nil {
			return
		}
		self.IsConnected = true
		self.LastSeen = now
		err = s.m.store.UpsertSpectator(ctx, self)
	}
	if err != nil && !errors.Is(err, database.ErrNotFound) && ctx.Err() == nil {
		s.logger.WithError(err).Warn("heartbeat failed")
	}
}

// mutatePlayer applies fn to the stored row of playerID. ErrNotFound means
// the row is gone, e.g. after a kick.
func (m *Manager) mutatePlayer(ctx context.Context, roomID uuid.UUID, playerID string, fn func(*models.Player)) error {
	l := m.roomLock(roomID)
	l.Lock()
	defer l.Unlock()
	p, err := m.store.GetPlayer(ctx, roomID, playerID)
	if err != nil {
		return err
	}
	fn(p)
	return m.store.UpsertPlayer(ctx, p)
}

func (s *Session) appendSystem(ctx context.Context, roomID uuid.UUID, text string) {
	msg := &models.ChatMessage{
		RoomID:     roomID,
		PlayerID:   s.id.PlayerID,
		PlayerName: "system",
		Message:    text,
		Type:       models.MessageSystem,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.m.store.AppendMessage(ctx, msg); err != nil {
		s.logger.WithError(err).Warn("failed to append system message")
	}
}

// broadcast publishes a peer event. Failures are logged only.
func (s *Session) broadcast(ctx context.Context, roomID uuid.UUID, name string, payload any) {
	ev, err := realtime.NewBroadcast(name, s.id.PlayerID, payload)
	if err == nil {
		err = s.m.transport.Publish(ctx, realtime.RoomTopic(roomID.String()), ev)
	}
	if err != nil {
		s.logger.WithError(err).WithField("event", name).Warn("broadcast failed")
	}
}

func (s *Session) listen(ctx context.Context, sub *realtime.Subscription) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			if s.handleEvent(ev) {
				return
			}
		}
	}
}

// handleEvent applies one room event. It returns true when the session has
// been removed from its room.
func (s *Session) handleEvent(ev realtime.Event) bool {
	switch ev.Kind {
	case realtime.KindChange:
		return s.handleChange(ev)
	case realtime.KindBroadcast:
		s.handleBroadcast(ev)
	}
	return false
}

type memberRow struct {
	RoomID   uuid.UUID `json:"room_id"`
	PlayerID string    `json:"player_id"`
}

func (s *Session) handleChange(ev realtime.Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.room == nil {
		return true
	}
	switch ev.Table {
	case database.TableRooms:
		var room models.Room
		if err := ev.Decode(&room); err != nil || !s.installRoomUnsafe(&room) {
			return false
		}
	case database.TablePlayers:
		if ev.Op == realtime.OpDelete {
			var row memberRow
			if err := ev.Decode(&row); err != nil {
				return false
			}
			s.players = removePlayer(s.players, row.PlayerID)
			if row.PlayerID == s.id.PlayerID && s.role == RolePlayer {
				s.kickedUnsafe()
				return true
			}
		} else {
			var p models.Player
			if err := ev.Decode(&p); err != nil {
				return false
			}
			s.players = upsertPlayer(s.players, p)
		}
	case database.TableSpectators:
		if ev.Op == realtime.OpDelete {
			var row memberRow
			if err := ev.Decode(&row); err != nil {
				return false
			}
			s.spectators = removeSpectator(s.spectators, row.PlayerID)
			if row.PlayerID == s.id.PlayerID && s.role == RoleSpectator {
				s.kickedUnsafe()
				return true
			}
		} else {
			var sp models.Spectator
			if err := ev.Decode(&sp); err != nil {
				return false
			}
			s.spectators = upsertSpectator(s.spectators, sp)
		}
	case database.TableMessages:
		var msg models.ChatMessage
		if err := ev.Decode(&msg); err != nil {
			return false
		}
		for _, existing := range s.messages {
			if existing.ID == msg.ID {
				return false
			}
		}
		s.messages = append(s.messages, msg)
		s.write(Update{Type: UpdateChat, Payload: msg})
		return false
	default:
		return false
	}
	s.write(Update{Type: UpdateRoomState, Payload: s.snapshotUnsafe()})
	return false
}

// kickedUnsafe drops local state after the host removed this session.
func (s *Session) kickedUnsafe() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.sub != nil {
		go s.sub.Close()
	}
	s.cancel, s.sub = nil, nil
	code := s.room.Code
	s.clearUnsafe()
	s.write(Update{Type: UpdateKicked, Payload: map[string]string{"room_code": code}})
}

type cardGamePayload struct {
	State  cardstate.State   `json:"state"`
	Action *cardstate.Action `json:"action,omitempty"`
}

func (s *Session) handleBroadcast(ev realtime.Event) {
	switch ev.Name {
	case EventCardGameState:
		var p cardGamePayload
		if err := ev.Decode(&p); err != nil {
			s.logger.WithError(err).Warn("bad card_game_state payload")
			return
		}
		if p.State.PlayerHands == nil {
			p.State.PlayerHands = map[string][]cardstate.CardRef{}
		}
		s.mu.Lock()
		if s.room != nil {
			s.cardState = &p.State
		}
		s.mu.Unlock()
		s.write(Update{Type: UpdateCardGameState, Payload: p})
	case EventDrink:
		var d DrinkEvent
		if err := ev.Decode(&d); err != nil {
			return
		}
		s.mu.Lock()
		s.drinkCounts[d.Target] += d.Count
		s.mu.Unlock()
		s.write(Update{Type: UpdateDrinkEvent, Payload: d})
	case EventCreekTurn:
		s.write(Update{Type: UpdateCreekTurn, Payload: json.RawMessage(ev.Payload)})
	default:
		s.write(Update{Type: UpdateEvent, Payload: map[string]any{"name": ev.Name, "from": ev.Sender, "payload": json.RawMessage(ev.Payload)}})
	}
}

func upsertPlayer(players []models.Player, p models.Player) []models.Player {
	out := removePlayer(players, p.PlayerID)
	out = append(out, p)
	sort.SliceStable(out, func(i, j int) bool { return out[i].TurnOrder < out[j].TurnOrder })
	return out
}

func removePlayer(players []models.Player, playerID string) []models.Player {
	out := make([]models.Player, 0, len(players))
	for _, p := range players {
		if p.PlayerID != playerID {
			out = append(out, p)
		}
	}
	return out
}

func upsertSpectator(spectators []models.Spectator, sp models.Spectator) []models.Spectator {
	out := removeSpectator(spectators, sp.PlayerID)
	return append(out, sp)
}

func removeSpectator(spectators []models.Spectator, playerID string) []models.Spectator {
	out := make([]models.Spectator, 0, len(spectators))
	for _, sp := range spectators {
		if sp.PlayerID != playerID {
			out = append(out, sp)
		}
	}
	return out
}
