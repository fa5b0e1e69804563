// internal/cardstate/state.go
package cardstate

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// GameDataKey is the room game_data key holding the serialized State.
const GameDataKey = "cardGameState"

var (
	ErrDeckEmpty    = errors.New("deck is empty")
	ErrCardNotOwned = errors.New("card is not held at the expected location")
)

// Locations a card can occupy. Hands are "hand:<playerID>".
const (
	LocationDeck    = "deck"
	LocationDiscard = "discard"
	LocationTable   = "table"
	handPrefix      = "hand:"
)

// HandLocation names the hand of playerID.
func HandLocation(playerID string) string { return handPrefix + playerID }

// ActionType enumerates LastAction kinds.
type ActionType string

const (
	ActionInit      ActionType = "init"
	ActionDraw      ActionType = "draw"
	ActionDiscard   ActionType = "discard"
	ActionPlay      ActionType = "play"
	ActionTake      ActionType = "take"
	ActionReshuffle ActionType = "reshuffle"
)

// CardRef is one card in the document. Position is its index in the pile that
// currently holds it.
type CardRef struct {
	ID       string `json:"id"`
	Position int    `json:"position"`
}

// Action describes the most recent mutation. It exists for animation and
// audit only and plays no part in conflict resolution.
type Action struct {
	Type      ActionType `json:"type"`
	PlayerID  string     `json:"playerId,omitempty"`
	CardIDs   []string   `json:"cardIds,omitempty"`
	From      string     `json:"from,omitempty"`
	To        string     `json:"to,omitempty"`
	Timestamp int64      `json:"timestamp"`
}

// State is the shared deck/discard/table/hand document for card-based games.
// Every card id lives in exactly one location.
type State struct {
	DeckCards   []CardRef            `json:"deckCards"`
	DiscardPile []CardRef            `json:"discardPile"` // most recent first
	TableCards  []CardRef            `json:"tableCards"`
	PlayerHands map[string][]CardRef `json:"playerHands"`
	LastAction  *Action              `json:"lastAction,omitempty"`
	ShuffleSeed int64                `json:"shuffleSeed"`
}

// New builds a State with cardIDs shuffled into the deck by the seeded shuffle.
func New(cardIDs []string, seed int64, at time.Time) State {
	seen := make(map[string]struct{}, len(cardIDs))
	deck := make([]CardRef, 0, len(cardIDs))
	for _, id := range cardIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		deck = append(deck, CardRef{ID: id})
	}
	SeededShuffle(deck, seed)
	s := State{
		DeckCards:   renumber(deck),
		DiscardPile: []CardRef{},
		TableCards:  []CardRef{},
		PlayerHands: map[string][]CardRef{},
		ShuffleSeed: seed,
	}
	s.LastAction = &Action{Type: ActionInit, To: LocationDeck, Timestamp: at.UnixMilli()}
	return s
}

// Clone deep-copies the state.
func (s State) Clone() State {
	out := State{
		DeckCards:   cloneRefs(s.DeckCards),
		DiscardPile: cloneRefs(s.DiscardPile),
		TableCards:  cloneRefs(s.TableCards),
		PlayerHands: make(map[string][]CardRef, len(s.PlayerHands)),
		ShuffleSeed: s.ShuffleSeed,
	}
	for pid, hand := range s.PlayerHands {
		out.PlayerHands[pid] = cloneRefs(hand)
	}
	if s.LastAction != nil {
		a := *s.LastAction
		a.CardIDs = append([]string(nil), s.LastAction.CardIDs...)
		out.LastAction = &a
	}
	return out
}

// Hand returns playerID's cards.
func (s State) Hand(playerID string) []CardRef {
	return s.PlayerHands[playerID]
}

// Draw moves up to n cards from the top of the deck into playerID's hand.
// It fails with ErrDeckEmpty only when no card could be drawn.
func (s State) Draw(playerID string, n int, at time.Time) (State, error) {
	if n <= 0 {
		n = 1
	}
	if len(s.DeckCards) == 0 {
		return s, ErrDeckEmpty
	}
	if n > len(s.DeckCards) {
		n = len(s.DeckCards)
	}
	next := s.Clone()
	drawn := next.DeckCards[:n]
	next.DeckCards = renumber(next.DeckCards[n:])
	next.PlayerHands[playerID] = renumber(append(next.PlayerHands[playerID], drawn...))
	next.LastAction = &Action{
		Type:      ActionDraw,
		PlayerID:  playerID,
		CardIDs:   ids(drawn),
		From:      LocationDeck,
		To:        HandLocation(playerID),
		Timestamp: at.UnixMilli(),
	}
	return next, nil
}

// Discard moves cardID from playerID's hand to the top of the discard pile.
func (s State) Discard(playerID, cardID string, at time.Time) (State, error) {
	next := s.Clone()
	hand, card, ok := remove(next.PlayerHands[playerID], cardID)
	if !ok {
		return s, fmt.Errorf("discard %s from %s: %w", cardID, HandLocation(playerID), ErrCardNotOwned)
	}
	next.PlayerHands[playerID] = renumber(hand)
	next.DiscardPile = renumber(append([]CardRef{card}, next.DiscardPile...))
	next.LastAction = &Action{
		Type: ActionDiscard, PlayerID: playerID, CardIDs: []string{cardID},
		From: HandLocation(playerID), To: LocationDiscard, Timestamp: at.UnixMilli(),
	}
	return next, nil
}

// PlayToTable moves cardID from playerID's hand face-up onto the table.
func (s State) PlayToTable(playerID, cardID string, at time.Time) (State, error) {
	next := s.Clone()
	hand, card, ok := remove(next.PlayerHands[playerID], cardID)
	if !ok {
		return s, fmt.Errorf("play %s from %s: %w", cardID, HandLocation(playerID), ErrCardNotOwned)
	}
	next.PlayerHands[playerID] = renumber(hand)
	next.TableCards = renumber(append(next.TableCards, card))
	next.LastAction = &Action{
		Type: ActionPlay, PlayerID: playerID, CardIDs: []string{cardID},
		From: HandLocation(playerID), To: LocationTable, Timestamp: at.UnixMilli(),
	}
	return next, nil
}

// TakeFromTable moves cardID from the table into playerID's hand.
func (s State) TakeFromTable(playerID, cardID string, at time.Time) (State, error) {
	next := s.Clone()
	table, card, ok := remove(next.TableCards, cardID)
	if !ok {
		return s, fmt.Errorf("take %s from table: %w", cardID, ErrCardNotOwned)
	}
	next.TableCards = renumber(table)
	next.PlayerHands[playerID] = renumber(append(next.PlayerHands[playerID], card))
	next.LastAction = &Action{
		Type: ActionTake, PlayerID: playerID, CardIDs: []string{cardID},
		From: LocationTable, To: HandLocation(playerID), Timestamp: at.UnixMilli(),
	}
	return next, nil
}

// ReshuffleDiscard returns the discard pile to the deck and reshuffles the
// whole deck with seed.
func (s State) ReshuffleDiscard(seed int64, at time.Time) State {
	next := s.Clone()
	moved := ids(next.DiscardPile)
	deck := append(next.DeckCards, next.DiscardPile...)
	SeededShuffle(deck, seed)
	next.DeckCards = renumber(deck)
	next.DiscardPile = []CardRef{}
	next.ShuffleSeed = seed
	next.LastAction = &Action{
		Type: ActionReshuffle, CardIDs: moved,
		From: LocationDiscard, To: LocationDeck, Timestamp: at.UnixMilli(),
	}
	return next
}

// Locate returns the location currently holding cardID.
func (s State) Locate(cardID string) (string, bool) {
	if indexOf(s.DeckCards, cardID) >= 0 {
		return LocationDeck, true
	}
	if indexOf(s.DiscardPile, cardID) >= 0 {
		return LocationDiscard, true
	}
	if indexOf(s.TableCards, cardID) >= 0 {
		return LocationTable, true
	}
	for pid, hand := range s.PlayerHands {
		if indexOf(hand, cardID) >= 0 {
			return HandLocation(pid), true
		}
	}
	return "", false
}

// CardCount is the number of cards across every location.
func (s State) CardCount() int {
	n := len(s.DeckCards) + len(s.DiscardPile) + len(s.TableCards)
	for _, hand := range s.PlayerHands {
		n += len(hand)
	}
	return n
}

// Validate checks that every id in all is held in exactly one location and
// that no unknown id is present.
func (s State) Validate(all []string) error {
	counts := make(map[string]int, len(all))
	tally := func(refs []CardRef) {
		for _, c := range refs {
			counts[c.ID]++
		}
	}
	tally(s.DeckCards)
	tally(s.DiscardPile)
	tally(s.TableCards)
	for _, hand := range s.PlayerHands {
		tally(hand)
	}
	expected := make(map[string]struct{}, len(all))
	for _, id := range all {
		expected[id] = struct{}{}
		switch counts[id] {
		case 1:
		case 0:
			return fmt.Errorf("card %s is lost", id)
		default:
			return fmt.Errorf("card %s held in %d locations", id, counts[id])
		}
	}
	for id := range counts {
		if _, ok := expected[id]; !ok {
			return fmt.Errorf("unknown card %s", id)
		}
	}
	return nil
}

// FromGameData decodes the State stored in a room's game_data. ok is false
// when no card game has been initialized.
func FromGameData(gameData map[string]any) (State, bool, error) {
	raw, present := gameData[GameDataKey]
	if !present || raw == nil {
		return State{}, false, nil
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return State{}, false, fmt.Errorf("marshal %s: %w", GameDataKey, err)
	}
	var s State
	if err := json.Unmarshal(b, &s); err != nil {
		return State{}, false, fmt.Errorf("decode %s: %w", GameDataKey, err)
	}
	if s.PlayerHands == nil {
		s.PlayerHands = map[string][]CardRef{}
	}
	return s, true, nil
}

// GameDataValue converts s into the generic JSON shape stored in game_data.
func (s State) GameDataValue() (map[string]any, error) {
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

func cloneRefs(refs []CardRef) []CardRef {
	out := make([]CardRef, len(refs))
	copy(out, refs)
	return out
}

func renumber(refs []CardRef) []CardRef {
	out := make([]CardRef, len(refs))
	for i, c := range refs {
		c.Position = i
		out[i] = c
	}
	return out
}

func ids(refs []CardRef) []string {
	out := make([]string, len(refs))
	for i, c := range refs {
		out[i] = c.ID
	}
	return out
}

func indexOf(refs []CardRef, id string) int {
	for i, c := range refs {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func remove(refs []CardRef, id string) ([]CardRef, CardRef, bool) {
	i := indexOf(refs, id)
	if i < 0 {
		return refs, CardRef{}, false
	}
	card := refs[i]
	out := make([]CardRef, 0, len(refs)-1)
	out = append(out, refs[:i]...)
	out = append(out, refs[i+1:]...)
	return out, card, true
}
