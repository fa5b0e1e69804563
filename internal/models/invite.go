package models

import "time"

// InviteCode lets a host hand out a private-room invitation with a use cap.
type InviteCode struct {
	Code      string    `json:"code"`
	RoomCode  string    `json:"room_code"`
	CreatedBy string    `json:"created_by"`
	Uses      int       `json:"uses"`
	MaxUses   int       `json:"max_uses"`
	CreatedAt time.Time `json:"created_at"`
}

// Exhausted reports whether the invite has no uses left.
func (i InviteCode) Exhausted() bool {
	return i.MaxUses > 0 && i.Uses >= i.MaxUses
}
