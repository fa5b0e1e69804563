package deck

import (
	"fmt"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cardIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("card-%02d", i)
	}
	return ids
}

func TestInitializeIsPermutation(t *testing.T) {
	ids := cardIDs(20)
	s := Initialize(ids, rand.New(rand.NewSource(7)))

	require.Len(t, s.DrawPile, 20)
	assert.Empty(t, s.DiscardPile)

	got := append([]string(nil), s.DrawPile...)
	sort.Strings(got)
	assert.Equal(t, ids, got, "draw pile should hold every id exactly once")
}

func TestInitializeCollapsesDuplicates(t *testing.T) {
	s := Initialize([]string{"a", "b", "a", "c", "b"}, nil)
	assert.Len(t, s.DrawPile, 3)
}

func TestInitializeShuffles(t *testing.T) {
	ids := cardIDs(30)
	r := rand.New(rand.NewSource(1))
	moved := false
	for i := 0; i < 5 && !moved; i++ {
		s := Initialize(ids, r)
		for j, id := range s.DrawPile {
			if ids[j] != id {
				moved = true
				break
			}
		}
	}
	assert.True(t, moved, "shuffle should not keep catalog order every time")
}

// TestDeckConservation draws and discards in a loop and checks that no card is
// lost or duplicated at any step.
func TestDeckConservation(t *testing.T) {
	ids := cardIDs(10)
	r := rand.New(rand.NewSource(42))
	s := Initialize(ids, r)

	for step := 0; step < 55; step++ {
		res := Draw(s, r)
		require.True(t, res.OK, "step %d: draw should succeed while cards circulate", step)
		s = res.State

		// drawn-but-unresolved card is in neither pile
		assert.Equal(t, len(ids), s.Size()+1, "step %d", step)
		inDraw, inDiscard := s.Contains(res.CardID)
		assert.False(t, inDraw || inDiscard, "step %d: drawn card must leave both piles", step)

		s = Discard(s, res.CardID)
		assert.Equal(t, len(ids), s.Size(), "step %d", step)
		for _, id := range ids {
			d, x := s.Contains(id)
			assert.False(t, d && x, "step %d: %s in both piles", step, id)
			assert.True(t, d || x, "step %d: %s lost", step, id)
		}
	}
}

func TestDrawReshufflesDiscard(t *testing.T) {
	s := State{DrawPile: []string{}, DiscardPile: []string{"x", "y", "z"}}
	res := Draw(s, rand.New(rand.NewSource(3)))

	require.True(t, res.OK)
	assert.True(t, res.Reshuffled)
	assert.NotEmpty(t, res.CardID)
	assert.Empty(t, res.State.DiscardPile)
	assert.Len(t, res.State.DrawPile, 2)
	// input untouched
	assert.Len(t, s.DiscardPile, 3)
}

func TestDrawNoReshuffleWhenDrawPileHasCards(t *testing.T) {
	s := State{DrawPile: []string{"a", "b"}, DiscardPile: []string{"c"}}
	res := Draw(s, nil)

	require.True(t, res.OK)
	assert.False(t, res.Reshuffled)
	assert.Equal(t, "a", res.CardID)
	assert.Equal(t, []string{"b"}, res.State.DrawPile)
	assert.Equal(t, []string{"c"}, res.State.DiscardPile)
}

func TestDrawEmptyDeck(t *testing.T) {
	assert.NotPanics(t, func() {
		res := Draw(State{}, nil)
		assert.False(t, res.OK)
		assert.Empty(t, res.CardID)
		assert.False(t, res.Reshuffled)
	})
}
