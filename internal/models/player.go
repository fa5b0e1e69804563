// internal/models/player.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// Player is a room membership record. PlayerID is client-generated and stable
// across reconnects; it is unique per room.
type Player struct {
	ID          uuid.UUID `json:"id"`
	RoomID      uuid.UUID `json:"room_id"`
	PlayerID    string    `json:"player_id"`
	Name        string    `json:"player_name"`
	IsReady     bool      `json:"is_ready"`
	Score       int       `json:"score"`
	TurnOrder   int       `json:"turn_order"`
	IsHost      bool      `json:"is_host"`
	IsConnected bool      `json:"is_connected"`
	LastSeen    time.Time `json:"last_seen"`
	JoinedAt    time.Time `json:"joined_at"`
}

// Spectator watches a room. Spectators are excluded from turn order and may not
// mutate game state.
type Spectator struct {
	ID          uuid.UUID `json:"id"`
	RoomID      uuid.UUID `json:"room_id"`
	PlayerID    string    `json:"player_id"`
	Name        string    `json:"player_name"`
	IsConnected bool      `json:"is_connected"`
	LastSeen    time.Time `json:"last_seen"`
	JoinedAt    time.Time `json:"joined_at"`
}

// IsStale reports whether a heartbeat at lastSeen is older than threshold at now.
func IsStale(lastSeen, now time.Time, threshold time.Duration) bool {
	return now.Sub(lastSeen) > threshold
}
