package creek

import (
	"encoding/json"
	"fmt"

	"github.com/jason-s-yu/partyroom/internal/deck"
)

// GameDataKey is the room game_data key holding the serialized GameState.
const GameDataKey = "creek"

const (
	// MinPaddlesToWin is the paddle count required to finish.
	MinPaddlesToWin = 2
	// MaxCardDraws bounds chained draw-again cards in one turn.
	MaxCardDraws = 3
)

// PlayerState is one canoe on the river.
type PlayerState struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	IsBot        bool   `json:"isBot"`
	Position     int    `json:"position"`
	Paddles      int    `json:"paddles"`
	SkipNextTurn bool   `json:"skipNextTurn"`
	ExtraTurn    bool   `json:"extraTurn"`
	SkipHazard   bool   `json:"skipHazard"`
}

// GameState is the full persisted board-race state.
type GameState struct {
	Players     []PlayerState `json:"players"`
	CurrentTurn int           `json:"currentTurn"`
	Round       int           `json:"round"`
	Deck        *deck.State   `json:"deck,omitempty"`
	Winner      string        `json:"winner,omitempty"`
	LastTurn    *TurnReport   `json:"lastTurn,omitempty"`
}

// NewGame seats players in the given order at the start with no paddles.
func NewGame(players []PlayerState) GameState {
	seated := make([]PlayerState, len(players))
	for i, p := range players {
		seated[i] = PlayerState{ID: p.ID, Name: p.Name, IsBot: p.IsBot}
	}
	return GameState{Players: seated, Round: 1}
}

// Clone deep-copies s.
func (s GameState) Clone() GameState {
	out := s
	out.Players = append([]PlayerState(nil), s.Players...)
	if s.Deck != nil {
		d := deck.State{
			DrawPile:    append([]string{}, s.Deck.DrawPile...),
			DiscardPile: append([]string{}, s.Deck.DiscardPile...),
		}
		out.Deck = &d
	}
	if s.LastTurn != nil {
		r := *s.LastTurn
		r.Cards = append([]CardResolution(nil), s.LastTurn.Cards...)
		out.LastTurn = &r
	}
	return out
}

// Current returns the player whose turn it is.
func (s GameState) Current() (PlayerState, bool) {
	if len(s.Players) == 0 {
		return PlayerState{}, false
	}
	return s.Players[s.CurrentTurn%len(s.Players)], true
}

// Finished reports whether a winner has been declared.
func (s GameState) Finished() bool { return s.Winner != "" }

func (s GameState) indexOf(id string) int {
	for i, p := range s.Players {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// FromGameData decodes the GameState stored in a room's game_data.
func FromGameData(gameData map[string]any) (GameState, bool, error) {
	raw, present := gameData[GameDataKey]
	if !present || raw == nil {
		return GameState{}, false, nil
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return GameState{}, false, fmt.Errorf("marshal %s: %w", GameDataKey, err)
	}
	var s GameState
	if err := json.Unmarshal(b, &s); err != nil {
		return GameState{}, false, fmt.Errorf("decode %s: %w", GameDataKey, err)
	}
	return s, true, nil
}

// GameDataValue converts s into the generic JSON shape stored in game_data.
func (s GameState) GameDataValue() (map[string]any, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}
