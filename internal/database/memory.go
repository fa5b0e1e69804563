// internal/database/memory.go
package database

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/jason-s-yu/partyroom/internal/models"
)

type memberKey struct {
	room   uuid.UUID
	player string
}

// MemoryStore keeps everything in process. It backs tests and single-node
// development runs.
type MemoryStore struct {
	mu         sync.RWMutex
	rooms      map[uuid.UUID]*models.Room
	codes      map[string]uuid.UUID
	players    map[memberKey]models.Player
	spectators map[memberKey]models.Spectator
	messages   map[uuid.UUID][]models.ChatMessage
	cards      map[string]models.Card
	invites    map[string]models.InviteCode
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rooms:      make(map[uuid.UUID]*models.Room),
		codes:      make(map[string]uuid.UUID),
		players:    make(map[memberKey]models.Player),
		spectators: make(map[memberKey]models.Spectator),
		messages:   make(map[uuid.UUID][]models.ChatMessage),
		cards:      make(map[string]models.Card),
		invites:    make(map[string]models.InviteCode),
	}
}

func (m *MemoryStore) CreateRoom(_ context.Context, room *models.Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	code := strings.ToUpper(room.Code)
	if _, ok := m.codes[code]; ok {
		return fmt.Errorf("room code %s: %w", code, ErrConflict)
	}
	cp, err := deepCopyRoom(room)
	if err != nil {
		return err
	}
	m.rooms[room.ID] = cp
	m.codes[code] = room.ID
	return nil
}

func (m *MemoryStore) GetRoom(_ context.Context, id uuid.UUID) (*models.Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[id]
	if !ok {
		return nil, ErrNotFound
	}
	return deepCopyRoom(r)
}

func (m *MemoryStore) GetRoomByCode(ctx context.Context, code string) (*models.Room, error) {
	m.mu.RLock()
	id, ok := m.codes[strings.ToUpper(code)]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return m.GetRoom(ctx, id)
}

func (m *MemoryStore) RoomCodeExists(_ context.Context, code string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.codes[strings.ToUpper(code)]
	return ok, nil
}

func (m *MemoryStore) UpdateRoom(_ context.Context, room *models.Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rooms[room.ID]; !ok {
		return ErrNotFound
	}
	cp, err := deepCopyRoom(room)
	if err != nil {
		return err
	}
	m.rooms[room.ID] = cp
	return nil
}

func (m *MemoryStore) UpsertPlayer(_ context.Context, p *models.Player) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rooms[p.RoomID]; !ok {
		return ErrNotFound
	}
	k := memberKey{p.RoomID, p.PlayerID}
	if prev, ok := m.players[k]; ok && p.ID == uuid.Nil {
		p.ID = prev.ID
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	m.players[k] = *p
	return nil
}

func (m *MemoryStore) GetPlayer(_ context.Context, roomID uuid.UUID, playerID string) (*models.Player, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.players[memberKey{roomID, playerID}]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (m *MemoryStore) RemovePlayer(_ context.Context, roomID uuid.UUID, playerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := memberKey{roomID, playerID}
	if _, ok := m.players[k]; !ok {
		return ErrNotFound
	}
	delete(m.players, k)
	return nil
}

func (m *MemoryStore) ListPlayers(_ context.Context, roomID uuid.UUID) ([]models.Player, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []models.Player{}
	for k, p := range m.players {
		if k.room == roomID {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].TurnOrder != out[j].TurnOrder {
			return out[i].TurnOrder < out[j].TurnOrder
		}
		return out[i].JoinedAt.Before(out[j].JoinedAt)
	})
	return out, nil
}

func (m *MemoryStore) UpsertSpectator(_ context.Context, s *models.Spectator) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rooms[s.RoomID]; !ok {
		return ErrNotFound
	}
	k := memberKey{s.RoomID, s.PlayerID}
	if prev, ok := m.spectators[k]; ok && s.ID == uuid.Nil {
		s.ID = prev.ID
	}
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	m.spectators[k] = *s
	return nil
}

func (m *MemoryStore) RemoveSpectator(_ context.Context, roomID uuid.UUID, playerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := memberKey{roomID, playerID}
	if _, ok := m.spectators[k]; !ok {
		return ErrNotFound
	}
	delete(m.spectators, k)
	return nil
}

func (m *MemoryStore) ListSpectators(_ context.Context, roomID uuid.UUID) ([]models.Spectator, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []models.Spectator{}
	for k, s := range m.spectators {
		if k.room == roomID {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].JoinedAt.Before(out[j].JoinedAt) })
	return out, nil
}

func (m *MemoryStore) AppendMessage(_ context.Context, msg *models.ChatMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	m.messages[msg.RoomID] = append(m.messages[msg.RoomID], *msg)
	return nil
}

func (m *MemoryStore) ListMessages(_ context.Context, roomID uuid.UUID, limit int) ([]models.ChatMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	all := append([]models.ChatMessage(nil), m.messages[roomID]...)
	sort.SliceStable(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	if all == nil {
		all = []models.ChatMessage{}
	}
	return all, nil
}

func (m *MemoryStore) ListCards(_ context.Context, gameID, cardType string) ([]models.Card, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []models.Card{}
	for _, c := range m.cards {
		if c.GameID == gameID && (cardType == "" || c.CardType == cardType) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Ordinal != out[j].Ordinal {
			return out[i].Ordinal < out[j].Ordinal
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *MemoryStore) RandomCard(ctx context.Context, gameID, cardType string) (*models.Card, error) {
	cards, err := m.ListCards(ctx, gameID, cardType)
	if err != nil {
		return nil, err
	}
	if len(cards) == 0 {
		return nil, ErrNotFound
	}
	c := cards[rand.Intn(len(cards))]
	return &c, nil
}

func (m *MemoryStore) UpsertCards(_ context.Context, cards []models.Card) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range cards {
		m.cards[c.ID] = c
	}
	return nil
}

func (m *MemoryStore) CreateInvite(_ context.Context, inv *models.InviteCode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.invites[inv.Code]; ok {
		return fmt.Errorf("invite %s: %w", inv.Code, ErrConflict)
	}
	m.invites[inv.Code] = *inv
	return nil
}

func (m *MemoryStore) RedeemInvite(_ context.Context, code string) (*models.InviteCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invites[code]
	if !ok {
		return nil, ErrNotFound
	}
	if inv.Exhausted() {
		return nil, ErrInviteExhausted
	}
	inv.Uses++
	m.invites[code] = inv
	return &inv, nil
}

// deepCopyRoom copies room through JSON so game_data behaves as it would
// after a round trip through a jsonb column.
func deepCopyRoom(room *models.Room) (*models.Room, error) {
	cp := *room
	if room.GameData == nil {
		cp.GameData = map[string]any{}
		return &cp, nil
	}
	b, err := json.Marshal(room.GameData)
	if err != nil {
		return nil, fmt.Errorf("marshal game_data: %w", err)
	}
	cp.GameData = nil
	if err := json.Unmarshal(b, &cp.GameData); err != nil {
		return nil, fmt.Errorf("decode game_data: %w", err)
	}
	return &cp, nil
}
