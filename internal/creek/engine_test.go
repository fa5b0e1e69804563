package creek

import (
	"math/rand"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jason-s-yu/partyroom/internal/deck"
	"github.com/jason-s-yu/partyroom/internal/effects"
	"github.com/jason-s-yu/partyroom/internal/models"
)

// testBoard is a short river: hazard at 1, tailwind at 4, finish at 6.
func testBoard() Board {
	spaces := []Space{
		{Type: SpaceStart, Effect: SpaceEffect{Kind: EffectNone}},
		{Type: SpaceHazard, Effect: SpaceEffect{Kind: EffectDrawCard}},
		{Type: SpaceNormal, Effect: SpaceEffect{Kind: EffectNone}},
		{Type: SpaceNormal, Effect: SpaceEffect{Kind: EffectNone}},
		{Type: SpaceTailwind, Effect: SpaceEffect{Kind: EffectExtraTurn}},
		{Type: SpaceNormal, Effect: SpaceEffect{Kind: EffectNone}},
		{Type: SpaceFinish, Effect: SpaceEffect{Kind: EffectDrawCard}},
	}
	for i := range spaces {
		spaces[i].Index = i
	}
	return Board{Spaces: spaces}
}

func newTestEngine(t *testing.T, roll int, cards ...models.Card) (*Engine, *test.Hook) {
	t.Helper()
	logger, hook := test.NewNullLogger()
	e := NewEngine(testBoard(), cards, rand.New(rand.NewSource(1)), logger)
	e.Roll = func() int { return roll }
	return e, hook
}

func card(id, effect string) models.Card {
	return models.Card{ID: id, GameID: "up-shitz-creek", CardType: "event", Name: id, Effect: effect}
}

func twoPlayers() GameState {
	return NewGame([]PlayerState{{ID: "p1", Name: "Alice"}, {ID: "p2", Name: "Bob", IsBot: true}})
}

func TestPreCardWinSkipsCardDraw(t *testing.T) {
	e, _ := newTestEngine(t, 3, card("c1", "Lose a paddle"), card("c2", "Draw again"))
	s := twoPlayers()
	s.Players[0].Position = 3
	s.Players[0].Paddles = 2
	s.Deck = e.DeckFromCatalog()
	drawPile := append([]string{}, s.Deck.DrawPile...)

	next, rep := e.ResolveTurn(s)

	assert.Equal(t, "p1", next.Winner)
	assert.Equal(t, "p1", rep.Winner)
	assert.Empty(t, rep.Cards)
	require.NotNil(t, next.Deck)
	assert.Equal(t, drawPile, next.Deck.DrawPile, "no card may be drawn once the pre-card check wins")
	assert.Empty(t, next.Deck.DiscardPile)
	assert.Equal(t, 2, next.Players[0].Paddles)
}

func TestFinishWithoutPaddlesDoesNotWin(t *testing.T) {
	e, _ := newTestEngine(t, 3, card("c1", "Move back 2 spaces"))
	s := twoPlayers()
	s.Players[0].Position = 3
	s.Players[0].Paddles = 1

	next, rep := e.ResolveTurn(s)

	assert.Empty(t, next.Winner)
	require.Len(t, rep.Cards, 1)
	assert.Equal(t, effects.KindMoveBack, rep.Cards[0].Action.Kind)
	assert.Equal(t, 4, next.Players[0].Position)
	assert.Equal(t, 1, next.CurrentTurn)
}

func TestPostCardCheckDeclaresWinner(t *testing.T) {
	e, _ := newTestEngine(t, 3, card("c1", "Gain a paddle"))
	s := twoPlayers()
	s.Players[0].Position = 3
	s.Players[0].Paddles = 1

	next, rep := e.ResolveTurn(s)

	require.Len(t, rep.Cards, 1, "the card must resolve before the winner is declared")
	assert.Equal(t, 2, next.Players[0].Paddles)
	assert.Equal(t, "p1", next.Winner)
}

func TestDrawAgainIsBounded(t *testing.T) {
	cards := []models.Card{
		card("d1", "Draw again"), card("d2", "Draw again"), card("d3", "Draw again"),
		card("d4", "Draw again"), card("d5", "Draw again"),
	}
	e, _ := newTestEngine(t, 1, cards...)
	s := twoPlayers()
	s.Deck = &deck.State{DrawPile: []string{"d1", "d2", "d3", "d4", "d5"}, DiscardPile: []string{}}

	next, rep := e.ResolveTurn(s)

	assert.Len(t, rep.Cards, MaxCardDraws)
	assert.Equal(t, []string{"d1", "d2", "d3"}, next.Deck.DiscardPile)
	assert.Equal(t, []string{"d4", "d5"}, next.Deck.DrawPile)
	assert.Equal(t, 1, next.CurrentTurn)
}

func TestSkipTurnConsumesFlagWithoutRolling(t *testing.T) {
	e, _ := newTestEngine(t, 4)
	s := twoPlayers()
	s.Players[0].SkipNextTurn = true
	s.Players[0].Position = 2

	next, rep := e.ResolveTurn(s)

	assert.True(t, rep.Skipped)
	assert.Zero(t, rep.Roll)
	assert.False(t, next.Players[0].SkipNextTurn)
	assert.Equal(t, 2, next.Players[0].Position)
	assert.Equal(t, 1, next.CurrentTurn)
	assert.True(t, s.Players[0].SkipNextTurn, "input state must not be modified")
}

func TestExtraTurnKeepsTurnIndex(t *testing.T) {
	e, _ := newTestEngine(t, 4)
	s := twoPlayers()

	next, rep := e.ResolveTurn(s)

	assert.True(t, rep.ExtraTurn)
	assert.Equal(t, 0, next.CurrentTurn)
	assert.False(t, next.Players[0].ExtraTurn, "flag is consumed")
}

func TestMissingCardIsNoOp(t *testing.T) {
	e, hook := newTestEngine(t, 1)
	s := twoPlayers()
	s.Deck = &deck.State{DrawPile: []string{"ghost"}, DiscardPile: []string{}}

	next, rep := e.ResolveTurn(s)

	require.Len(t, rep.Cards, 1)
	assert.True(t, rep.Cards[0].Missing)
	assert.Equal(t, 1, next.Players[0].Position)
	assert.Equal(t, 1, next.CurrentTurn)
	assert.Equal(t, []string{"ghost"}, next.Deck.DiscardPile)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Equal(t, "ghost", hook.LastEntry().Data["card_id"])
}

func TestNilDeckIsInitializedOnFirstDraw(t *testing.T) {
	cards := []models.Card{
		card("a", "Move forward 1 space"), card("b", "Move forward 1 space"),
		card("c", "Move forward 1 space"), card("d", "Move forward 1 space"),
	}
	e, _ := newTestEngine(t, 1, cards...)
	s := twoPlayers()
	require.Nil(t, s.Deck)

	next, rep := e.ResolveTurn(s)

	require.NotNil(t, next.Deck)
	assert.Equal(t, 4, next.Deck.Size())
	assert.Len(t, next.Deck.DiscardPile, 1)
	require.Len(t, rep.Cards, 1)
	assert.Equal(t, 2, next.Players[0].Position)
}

func TestRollNeverOvershootsFinish(t *testing.T) {
	e, _ := newTestEngine(t, 6, card("c1", "Everyone cheers"))
	s := twoPlayers()
	s.Players[0].Position = 5

	next, rep := e.ResolveTurn(s)

	assert.Equal(t, 6, rep.To)
	assert.Equal(t, 6, next.Players[0].Position)
	assert.Empty(t, next.Winner)
}

func TestHazardTokenSkipsDraw(t *testing.T) {
	e, _ := newTestEngine(t, 1, card("c1", "Lose a paddle"))
	s := twoPlayers()
	s.Players[0].SkipHazard = true
	s.Players[0].Paddles = 1

	next, rep := e.ResolveTurn(s)

	assert.True(t, rep.HazardSkipped)
	assert.Empty(t, rep.Cards)
	assert.False(t, next.Players[0].SkipHazard)
	assert.Equal(t, 1, next.Players[0].Paddles)
}

func TestStealTargetsLeaderWithTieOnSeatOrder(t *testing.T) {
	e, _ := newTestEngine(t, 1, card("s", "Steal a paddle from any player"))
	s := NewGame([]PlayerState{{ID: "a"}, {ID: "b"}, {ID: "c"}})
	s.Players[1].Position, s.Players[1].Paddles = 5, 1
	s.Players[2].Position, s.Players[2].Paddles = 5, 3

	next, rep := e.ResolveTurn(s)

	require.Len(t, rep.Cards, 1)
	assert.Equal(t, "b", rep.Cards[0].Target)
	assert.Equal(t, 1, next.Players[0].Paddles)
	assert.Equal(t, 0, next.Players[1].Paddles)
	assert.Equal(t, 3, next.Players[2].Paddles)
}

func TestRoundAdvancesOnWrap(t *testing.T) {
	e, _ := newTestEngine(t, 2)
	s := twoPlayers()

	s, _ = e.ResolveTurn(s)
	s, _ = e.ResolveTurn(s)

	assert.Equal(t, 0, s.CurrentTurn)
	assert.Equal(t, 2, s.Round)
}

func TestFinishedGameIsUnchanged(t *testing.T) {
	e, _ := newTestEngine(t, 2)
	s := twoPlayers()
	s.Winner = "p2"

	next, rep := e.ResolveTurn(s)

	assert.Equal(t, "p2", rep.Winner)
	assert.Equal(t, s.Players, next.Players)
}

func TestDefaultBoardShape(t *testing.T) {
	b := DefaultBoard()
	require.Len(t, b.Spaces, 31)
	assert.Equal(t, SpaceStart, b.Spaces[0].Type)
	assert.Equal(t, SpaceFinish, b.Spaces[30].Type)
	assert.Equal(t, EffectDrawCard, b.Spaces[30].Effect.Kind)
	for i, sp := range b.Spaces {
		assert.Equal(t, i, sp.Index)
	}
	i, ok := b.Nearest(0, SpaceHazard, true)
	assert.True(t, ok)
	assert.Equal(t, 3, i)
}
