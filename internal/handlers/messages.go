// internal/handlers/messages.go
package handlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/jason-s-yu/partyroom/internal/cardstate"
	"github.com/jason-s-yu/partyroom/internal/lobby"
	"github.com/jason-s-yu/partyroom/internal/models"
)

var errUnknownType = errors.New("unknown message type")

// clientMessage is every request shape the room socket accepts. Only the
// fields relevant to Type are read.
type clientMessage struct {
	Type string `json:"type"`

	Code         string         `json:"code,omitempty"`
	Name         string         `json:"name,omitempty"`
	GameType     string         `json:"game_type,omitempty"`
	IsPrivate    bool           `json:"is_private,omitempty"`
	DrinkingMode bool           `json:"drinking_mode,omitempty"`
	Data         map[string]any `json:"data,omitempty"`

	Winner string         `json:"winner,omitempty"`
	Scores map[string]int `json:"scores,omitempty"`

	Level  string `json:"level,omitempty"`
	Allow  bool   `json:"allow,omitempty"`
	Target string `json:"target,omitempty"`
	Reason string `json:"reason,omitempty"`
	Count  int    `json:"count,omitempty"`

	Text        string             `json:"text,omitempty"`
	MessageType models.MessageType `json:"message_type,omitempty"`
	Ready       bool               `json:"ready,omitempty"`
	Score       int                `json:"score,omitempty"`
	PlayerID    string             `json:"player_id,omitempty"`
	MaxUses     int                `json:"max_uses,omitempty"`

	State   *cardstate.State  `json:"state,omitempty"`
	Action  *cardstate.Action `json:"action,omitempty"`
	CardIDs []string          `json:"card_ids,omitempty"`
	CardID  string            `json:"card_id,omitempty"`
	Seed    int64             `json:"seed,omitempty"`
	N       int               `json:"n,omitempty"`
	Bots    int               `json:"bots,omitempty"`
}

// reply is a direct answer to one request.
type reply struct {
	Type    string `json:"type"`
	Request string `json:"request,omitempty"`
	Message string `json:"message,omitempty"`
	Payload any    `json:"payload,omitempty"`
}

func errorReply(request string, err error) reply {
	return reply{Type: "error", Request: request, Message: err.Error()}
}

// handleRoomMessage runs msg against s. A nil reply means the session's
// update stream carries the outcome.
func handleRoomMessage(ctx context.Context, s *lobby.Session, msg clientMessage) (*reply, error) {
	switch msg.Type {
	case "create_room":
		code, err := s.CreateRoom(ctx, msg.GameType, msg.Name, msg.IsPrivate, msg.DrinkingMode)
		if err != nil {
			return nil, err
		}
		return &reply{Type: "room_created", Request: msg.Type, Payload: map[string]string{"room_code": code}}, nil
	case "join_room":
		return nil, s.JoinRoom(ctx, msg.Code, msg.Name)
	case "join_as_spectator":
		return nil, s.JoinAsSpectator(ctx, msg.Code, msg.Name)
	case "redeem_invite":
		return nil, s.RedeemInvite(ctx, msg.Code, msg.Name)
	case "leave_room":
		return nil, s.LeaveRoom(ctx)
	case "start_game":
		return nil, s.StartGame(ctx)
	case "update_game_state":
		return nil, s.UpdateGameState(ctx, msg.Data)
	case "advance_turn":
		return nil, s.AdvanceTurn(ctx)
	case "end_game":
		return nil, s.EndGame(ctx, msg.Winner, msg.Scores)
	case "toggle_drinking_mode":
		return nil, s.ToggleDrinkingMode(ctx)
	case "set_drinking_intensity":
		return nil, s.SetDrinkingIntensity(ctx, msg.Level)
	case "set_allow_spectators":
		return nil, s.SetAllowSpectators(ctx, msg.Allow)
	case "drink_event":
		return nil, s.TriggerDrinkEvent(ctx, msg.Target, msg.Reason, msg.Count)
	case "chat":
		return nil, s.SendChat(ctx, msg.Text, msg.MessageType)
	case "set_ready":
		return nil, s.SetReady(ctx, msg.Ready)
	case "update_score":
		return nil, s.UpdateScore(ctx, msg.Score)
	case "kick_player":
		return nil, s.KickPlayer(ctx, msg.PlayerID)
	case "create_invite":
		code, err := s.CreateInvite(ctx, msg.MaxUses)
		if err != nil || code == "" {
			return nil, err
		}
		return &reply{Type: "invite_created", Request: msg.Type, Payload: map[string]string{"code": code}}, nil
	case "card_game_state":
		if msg.State == nil {
			return nil, fmt.Errorf("%s: missing state", msg.Type)
		}
		return nil, s.UpdateCardGameState(ctx, *msg.State, msg.Action)
	case "init_card_game":
		return nil, s.InitCardGame(ctx, msg.CardIDs, msg.Seed)
	case "draw_cards":
		return nil, s.DrawCards(ctx, msg.N)
	case "discard_card":
		return nil, s.DiscardCard(ctx, msg.CardID)
	case "play_card":
		return nil, s.PlayCardToTable(ctx, msg.CardID)
	case "take_card":
		return nil, s.TakeFromTable(ctx, msg.CardID)
	case "reshuffle_discard":
		return nil, s.ReshuffleDiscard(ctx, msg.Seed)
	case "start_creek":
		return nil, s.StartCreekGame(ctx, msg.Bots)
	case "creek_turn":
		_, err := s.PlayCreekTurn(ctx)
		return nil, err
	case "snapshot":
		return &reply{Type: lobby.UpdateRoomState, Request: msg.Type, Payload: s.Snapshot()}, nil
	}
	return nil, fmt.Errorf("%w: %q", errUnknownType, msg.Type)
}
