// internal/database/store.go
package database

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/jason-s-yu/partyroom/internal/models"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("already exists")
	ErrInviteExhausted = errors.New("invite code has no uses left")
)

// Table names, as carried on change notifications.
const (
	TableRooms      = "rooms"
	TablePlayers    = "room_players"
	TableSpectators = "room_spectators"
	TableMessages   = "chat_messages"
	TableCards      = "cards"
	TableInvites    = "invite_codes"
)

// Store is the persistence boundary for rooms and everything scoped to them.
// Reads return copies; callers may mutate them freely.
type Store interface {
	CreateRoom(ctx context.Context, room *models.Room) error
	GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error)
	// GetRoomByCode matches codes case-insensitively.
	GetRoomByCode(ctx context.Context, code string) (*models.Room, error)
	RoomCodeExists(ctx context.Context, code string) (bool, error)
	UpdateRoom(ctx context.Context, room *models.Room) error

	// UpsertPlayer inserts or replaces the row keyed by (room, player id).
	UpsertPlayer(ctx context.Context, p *models.Player) error
	GetPlayer(ctx context.Context, roomID uuid.UUID, playerID string) (*models.Player, error)
	RemovePlayer(ctx context.Context, roomID uuid.UUID, playerID string) error
	// ListPlayers orders by turn order.
	ListPlayers(ctx context.Context, roomID uuid.UUID) ([]models.Player, error)

	UpsertSpectator(ctx context.Context, s *models.Spectator) error
	RemoveSpectator(ctx context.Context, roomID uuid.UUID, playerID string) error
	ListSpectators(ctx context.Context, roomID uuid.UUID) ([]models.Spectator, error)

	AppendMessage(ctx context.Context, m *models.ChatMessage) error
	// ListMessages returns the newest limit messages, oldest first.
	ListMessages(ctx context.Context, roomID uuid.UUID, limit int) ([]models.ChatMessage, error)

	ListCards(ctx context.Context, gameID, cardType string) ([]models.Card, error)
	RandomCard(ctx context.Context, gameID, cardType string) (*models.Card, error)
	UpsertCards(ctx context.Context, cards []models.Card) error

	CreateInvite(ctx context.Context, inv *models.InviteCode) error
	// RedeemInvite consumes one use of code.
	RedeemInvite(ctx context.Context, code string) (*models.InviteCode, error)
}
