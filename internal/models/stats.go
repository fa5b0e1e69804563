package models

import "time"

// SessionStats summarizes one finished room for an authenticated user. It is
// queued by the server and persisted by the historian.
type SessionStats struct {
	UserID      string         `json:"user_id"`
	RoomID      string         `json:"room_id"`
	RoomCode    string         `json:"room_code"`
	GameType    string         `json:"game_type"`
	WinnerID    string         `json:"winner_id,omitempty"`
	Won         bool           `json:"won"`
	Scores      map[string]int `json:"scores,omitempty"`
	PlayerCount int            `json:"player_count"`
	DrinkCount  int            `json:"drink_count"`
	DurationMs  int64          `json:"duration_ms"`
	FinishedAt  time.Time      `json:"finished_at"`
}
