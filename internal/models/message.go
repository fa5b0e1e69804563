package models

import (
	"time"

	"github.com/google/uuid"
)

// MessageType classifies a chat feed entry.
type MessageType string

const (
	MessageChat    MessageType = "chat"
	MessageSystem  MessageType = "system"
	MessageEmote   MessageType = "emote"
	MessageSticker MessageType = "sticker"
	MessageDrink   MessageType = "drink"
)

// Valid reports whether t is one of the known message types.
func (t MessageType) Valid() bool {
	switch t {
	case MessageChat, MessageSystem, MessageEmote, MessageSticker, MessageDrink:
		return true
	}
	return false
}

// ChatMessage is an append-only room log entry. CreatedAt is the only ordering.
type ChatMessage struct {
	ID         uuid.UUID   `json:"id"`
	RoomID     uuid.UUID   `json:"room_id"`
	PlayerID   string      `json:"player_id"`
	PlayerName string      `json:"player_name"`
	Message    string      `json:"message"`
	Type       MessageType `json:"message_type"`
	CreatedAt  time.Time   `json:"created_at"`
}
