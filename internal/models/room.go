// internal/models/room.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// RoomStatus is the lifecycle stage of a room. Transitions only move forward:
// waiting -> playing -> finished.
type RoomStatus string

const (
	RoomWaiting  RoomStatus = "waiting"
	RoomPlaying  RoomStatus = "playing"
	RoomFinished RoomStatus = "finished"
)

// CanTransition reports whether a room in status s may move to next.
func (s RoomStatus) CanTransition(next RoomStatus) bool {
	switch s {
	case RoomWaiting:
		return next == RoomPlaying
	case RoomPlaying:
		return next == RoomFinished
	}
	return false
}

// RoomSettings are the host-controlled toggles of a room.
type RoomSettings struct {
	DrinkingMode      bool   `json:"drinking_mode"`
	DrinkingIntensity string `json:"drinking_intensity,omitempty"` // "light", "medium", "heavy"
	IsPrivate         bool   `json:"is_private"`
	AllowSpectators   bool   `json:"allow_spectators"`
	MaxPlayers        int    `json:"max_players"`
}

// Room represents a row in the rooms table: one party/game session.
type Room struct {
	ID          uuid.UUID      `json:"id"`
	Code        string         `json:"room_code"`
	GameType    string         `json:"game_type"`
	HostID      string         `json:"host_id"`
	Status      RoomStatus     `json:"status"`
	GameData    map[string]any `json:"game_data"`
	Settings    RoomSettings   `json:"settings"`
	CurrentTurn int            `json:"current_turn"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	FinishedAt  *time.Time     `json:"finished_at,omitempty"`
}

// Clone returns a copy of the room whose GameData map can be mutated freely.
// Values nested inside GameData are shared.
func (r *Room) Clone() *Room {
	if r == nil {
		return nil
	}
	cp := *r
	cp.GameData = make(map[string]any, len(r.GameData))
	for k, v := range r.GameData {
		cp.GameData[k] = v
	}
	return &cp
}
