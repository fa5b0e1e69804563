// internal/deck/deck.go
package deck

import (
	"math/rand"
	"time"
)

// State is the persistent draw/discard pile of opaque card ids for a board-race
// room. Together the two piles always hold the full original card-id set, less
// any card that has been drawn and not yet discarded by the caller.
type State struct {
	DrawPile    []string `json:"drawPile"`
	DiscardPile []string `json:"discardPile"`
}

// DrawResult is the outcome of Draw. OK is false when no card was available.
type DrawResult struct {
	CardID     string
	OK         bool
	State      State
	Reshuffled bool
}

// Initialize returns a State whose draw pile is a shuffled permutation of
// cardIDs and whose discard pile is empty. Duplicate ids are collapsed.
// A nil r uses a time-seeded source, so the order is not reproducible.
func Initialize(cardIDs []string, r *rand.Rand) State {
	seen := make(map[string]struct{}, len(cardIDs))
	pile := make([]string, 0, len(cardIDs))
	for _, id := range cardIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		pile = append(pile, id)
	}
	shuffle(pile, r)
	return State{DrawPile: pile, DiscardPile: []string{}}
}

// Draw takes the top card of the draw pile. When the draw pile is empty the
// discard pile is reshuffled into a new draw pile first. The input state is
// not modified.
func Draw(s State, r *rand.Rand) DrawResult {
	next := s.copy()
	reshuffled := false
	if len(next.DrawPile) == 0 {
		if len(next.DiscardPile) == 0 {
			return DrawResult{State: next}
		}
		next.DrawPile = next.DiscardPile
		next.DiscardPile = []string{}
		shuffle(next.DrawPile, r)
		reshuffled = true
	}
	id := next.DrawPile[0]
	next.DrawPile = next.DrawPile[1:]
	return DrawResult{CardID: id, OK: true, State: next, Reshuffled: reshuffled}
}

// Discard places a resolved card on the discard pile.
func Discard(s State, cardID string) State {
	next := s.copy()
	next.DiscardPile = append(next.DiscardPile, cardID)
	return next
}

// Size is the number of cards across both piles.
func (s State) Size() int {
	return len(s.DrawPile) + len(s.DiscardPile)
}

// Empty reports whether both piles are empty.
func (s State) Empty() bool {
	return s.Size() == 0
}

// Contains reports which pile holds id, if any.
func (s State) Contains(id string) (inDraw, inDiscard bool) {
	for _, c := range s.DrawPile {
		if c == id {
			inDraw = true
			break
		}
	}
	for _, c := range s.DiscardPile {
		if c == id {
			inDiscard = true
			break
		}
	}
	return inDraw, inDiscard
}

func (s State) copy() State {
	draw := make([]string, len(s.DrawPile))
	copy(draw, s.DrawPile)
	discard := make([]string, len(s.DiscardPile))
	copy(discard, s.DiscardPile)
	return State{DrawPile: draw, DiscardPile: discard}
}

func shuffle(ids []string, r *rand.Rand) {
	if r == nil {
		r = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	r.Shuffle(len(ids), func(i, j int) {
		ids[i], ids[j] = ids[j], ids[i]
	})
}
