// internal/lobby/manager.go
package lobby

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/partyroom/internal/auth"
	"github.com/jason-s-yu/partyroom/internal/database"
	"github.com/jason-s-yu/partyroom/internal/models"
	"github.com/jason-s-yu/partyroom/internal/realtime"
)

var (
	ErrRoomNotFound      = errors.New("room not found")
	ErrRoomFinished      = errors.New("room has already finished")
	ErrRoomFull          = errors.New("room is full")
	ErrNotInRoom         = errors.New("not in a room")
	ErrInvalidTransition = errors.New("room status does not allow this")
	ErrSpectatorsClosed  = errors.New("room does not allow spectators")
	ErrInviteInvalid     = errors.New("invite code is invalid or used up")
	ErrCodeSpace         = errors.New("could not allocate a free room code")
	ErrEmptyMessage      = errors.New("message is empty")
	ErrInvalidIntensity  = errors.New("unknown drinking intensity")
	ErrNoCardGame        = errors.New("no card game in progress")
	ErrNoCreekGame       = errors.New("no board race in progress")
)

// StatsRecorder receives best-effort end-of-session analytics.
type StatsRecorder interface {
	RecordSession(ctx context.Context, st models.SessionStats) error
}

// Options tunes a Manager. Zero values take defaults.
type Options struct {
	HeartbeatInterval time.Duration
	MaxPlayers        int
	// ChildGames are game types that never run with drinking mode.
	ChildGames []string
	// CreekGameID is the catalog game id of the board-race cards.
	CreekGameID string
	// MessageHistory bounds the chat history fetched on join.
	MessageHistory int
}

const (
	DefaultHeartbeatInterval = 10 * time.Second
	DefaultMaxPlayers        = 8
	DefaultCreekGameID       = database.CreekGameID
	// StaleAfter is how many missed heartbeats mark a member disconnected.
	StaleAfter = 3

	codeAttempts = 5
)

func (o Options) withDefaults() Options {
	if o.HeartbeatInterval <= 0 {
		o.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if o.MaxPlayers <= 0 {
		o.MaxPlayers = DefaultMaxPlayers
	}
	if o.CreekGameID == "" {
		o.CreekGameID = DefaultCreekGameID
	}
	if o.MessageHistory <= 0 {
		o.MessageHistory = 200
	}
	return o
}

// Manager owns the shared collaborators and hands out one Session per
// connected client.
type Manager struct {
	store     database.Store
	transport realtime.Transport
	stats     StatsRecorder
	logger    logrus.FieldLogger
	opts      Options

	mu        sync.Mutex
	roomLocks map[uuid.UUID]*sync.Mutex
	catalogs  map[string][]models.Card

	genCode func(n int) (string, error)
}

// NewManager wires a Manager. stats may be nil to disable analytics.
func NewManager(store database.Store, transport realtime.Transport, stats StatsRecorder, logger logrus.FieldLogger, opts Options) *Manager {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Manager{
		store:     store,
		transport: transport,
		stats:     stats,
		logger:    logger,
		opts:      opts.withDefaults(),
		roomLocks: make(map[uuid.UUID]*sync.Mutex),
		catalogs:  make(map[string][]models.Card),
		genCode:   randomCode,
	}
}

// NewSession creates a detached session acting as id.
func (m *Manager) NewSession(id auth.Identity) *Session {
	return newSession(m, id)
}

// StaleThreshold is the heartbeat age after which a member counts as gone.
func (m *Manager) StaleThreshold() time.Duration {
	return StaleAfter * m.opts.HeartbeatInterval
}

// IsChildGame reports whether drinking mode is forbidden for gameType.
func (m *Manager) IsChildGame(gameType string) bool {
	for _, g := range m.opts.ChildGames {
		if strings.EqualFold(g, gameType) {
			return true
		}
	}
	return false
}

func (m *Manager) roomLock(id uuid.UUID) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.roomLocks[id]
	if !ok {
		l = &sync.Mutex{}
		m.roomLocks[id] = l
	}
	return l
}

// mutateRoom re-fetches the stored room, applies fn and writes the result.
// Writers in this process are serialized per room, so a fetch never races a
// write from a sibling session.
func (m *Manager) mutateRoom(ctx context.Context, id uuid.UUID, fn func(*models.Room) error) (*models.Room, error) {
	l := m.roomLock(id)
	l.Lock()
	defer l.Unlock()

	room, err := m.store.GetRoom(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetch room: %w", err)
	}
	if room.GameData == nil {
		room.GameData = map[string]any{}
	}
	if err := fn(room); err != nil {
		return nil, err
	}
	room.UpdatedAt = time.Now().UTC()
	if err := m.store.UpdateRoom(ctx, room); err != nil {
		return nil, fmt.Errorf("write room: %w", err)
	}
	return room, nil
}

// newRoomCode draws codes until one is free in the store.
func (m *Manager) newRoomCode(ctx context.Context) (string, error) {
	for i := 0; i < codeAttempts; i++ {
		code, err := m.genCode(RoomCodeLength)
		if err != nil {
			return "", err
		}
		exists, err := m.store.RoomCodeExists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("check room code: %w", err)
		}
		if !exists {
			return code, nil
		}
	}
	return "", ErrCodeSpace
}

// catalog returns the cards for gameID, loading them once per process.
func (m *Manager) catalog(ctx context.Context, gameID string) ([]models.Card, error) {
	m.mu.Lock()
	cards, ok := m.catalogs[gameID]
	m.mu.Unlock()
	if ok {
		return cards, nil
	}
	cards, err := m.store.ListCards(ctx, gameID, "")
	if err != nil {
		return nil, fmt.Errorf("load %s cards: %w", gameID, err)
	}
	m.mu.Lock()
	m.catalogs[gameID] = cards
	m.mu.Unlock()
	return cards, nil
}

// RoomInfo is the public view of a room served to non-members.
type RoomInfo struct {
	Code            string            `json:"room_code"`
	GameType        string            `json:"game_type"`
	Status          models.RoomStatus `json:"status"`
	Players         int               `json:"players"`
	// Connected counts players whose heartbeat is within StaleThreshold.
	Connected       int               `json:"connected"`
	MaxPlayers      int               `json:"max_players"`
	AllowSpectators bool              `json:"allow_spectators"`
	DrinkingMode    bool              `json:"drinking_mode"`
}

// LookupRoom describes the room with code.
func (m *Manager) LookupRoom(ctx context.Context, code string) (*RoomInfo, error) {
	room, err := m.store.GetRoomByCode(ctx, code)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, err
	}
	players, err := m.store.ListPlayers(ctx, room.ID)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	connected := 0
	for _, p := range players {
		if p.IsConnected && !models.IsStale(p.LastSeen, now, m.StaleThreshold()) {
			connected++
		}
	}
	return &RoomInfo{
		Code:            room.Code,
		GameType:        room.GameType,
		Status:          room.Status,
		Players:         len(players),
		Connected:       connected,
		MaxPlayers:      m.maxPlayers(room),
		AllowSpectators: room.Settings.AllowSpectators,
		DrinkingMode:    room.Settings.DrinkingMode,
	}, nil
}

func (m *Manager) maxPlayers(room *models.Room) int {
	if room.Settings.MaxPlayers > 0 {
		return room.Settings.MaxPlayers
	}
	return m.opts.MaxPlayers
}
