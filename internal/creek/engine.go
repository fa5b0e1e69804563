// internal/creek/engine.go
package creek

import (
	"math/rand"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/partyroom/internal/deck"
	"github.com/jason-s-yu/partyroom/internal/effects"
	"github.com/jason-s-yu/partyroom/internal/models"
)

// CardResolution records one card drawn during a turn.
type CardResolution struct {
	CardID  string         `json:"cardId"`
	Name    string         `json:"name,omitempty"`
	Action  effects.Action `json:"action"`
	Target  string         `json:"target,omitempty"`
	Missing bool           `json:"missing,omitempty"`
}

// TurnReport describes what happened during ResolveTurn, for animation and
// the room feed.
type TurnReport struct {
	PlayerID      string           `json:"playerId"`
	Skipped       bool             `json:"skipped,omitempty"`
	Roll          int              `json:"roll,omitempty"`
	From          int              `json:"from"`
	To            int              `json:"to"`
	Space         *Space           `json:"space,omitempty"`
	SpaceTarget   string           `json:"spaceTarget,omitempty"`
	HazardSkipped bool             `json:"hazardSkipped,omitempty"`
	Cards         []CardResolution `json:"cards,omitempty"`
	Reshuffled    bool             `json:"reshuffled,omitempty"`
	ExtraTurn     bool             `json:"extraTurn,omitempty"`
	Winner        string           `json:"winner,omitempty"`
}

// Engine resolves turns against a fixed board and card catalog. An Engine is
// not safe for concurrent use because it owns its random source.
type Engine struct {
	Board  Board
	Cards  map[string]models.Card
	Logger logrus.FieldLogger
	// Roll returns a die value in [1,6]. Nil rolls from the engine's source.
	Roll func() int

	rng *rand.Rand
}

// NewEngine builds an engine over board and cards. A nil rng is seeded from
// the clock.
func NewEngine(board Board, cards []models.Card, rng *rand.Rand, logger logrus.FieldLogger) *Engine {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	catalog := make(map[string]models.Card, len(cards))
	for _, c := range cards {
		catalog[c.ID] = c
	}
	return &Engine{Board: board, Cards: catalog, Logger: logger, rng: rng}
}

// DeckFromCatalog shuffles every catalog card id into a fresh deck.
func (e *Engine) DeckFromCatalog() *deck.State {
	ids := make([]string, 0, len(e.Cards))
	for id := range e.Cards {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	d := deck.Initialize(ids, e.rng)
	return &d
}

// ResolveTurn plays one turn for the current player and returns the next
// state. The input state is not modified.
func (e *Engine) ResolveTurn(state GameState) (GameState, TurnReport) {
	s := state.Clone()
	if len(s.Players) == 0 || s.Finished() {
		return s, TurnReport{Winner: s.Winner}
	}
	idx := s.CurrentTurn % len(s.Players)
	actor := &s.Players[idx]
	rep := TurnReport{PlayerID: actor.ID, From: actor.Position, To: actor.Position}

	if actor.SkipNextTurn {
		actor.SkipNextTurn = false
		rep.Skipped = true
		e.advance(&s)
		s.LastTurn = &rep
		return s, rep
	}

	rep.Roll = e.roll()
	actor.Position = e.Board.Clamp(actor.Position + rep.Roll)
	rep.To = actor.Position

	if e.hasWon(*actor) {
		return e.finish(s, idx, rep)
	}

	space := e.Board.At(actor.Position)
	rep.Space = &space
	if space.Effect.Kind == EffectDrawCard && space.Type == SpaceHazard && actor.SkipHazard {
		actor.SkipHazard = false
		rep.HazardSkipped = true
	} else if space.Effect.Kind == EffectDrawCard {
		e.drawLoop(&s, idx, &rep)
	} else {
		rep.SpaceTarget = e.applySpace(&s, idx, space.Effect)
	}
	rep.To = s.Players[idx].Position

	if e.hasWon(s.Players[idx]) {
		return e.finish(s, idx, rep)
	}

	if s.Players[idx].ExtraTurn {
		s.Players[idx].ExtraTurn = false
		rep.ExtraTurn = true
	} else {
		e.advance(&s)
	}
	s.LastTurn = &rep
	return s, rep
}

func (e *Engine) roll() int {
	if e.Roll != nil {
		return e.Roll()
	}
	return e.rng.Intn(6) + 1
}

func (e *Engine) hasWon(p PlayerState) bool {
	return p.Position >= e.Board.Finish() && p.Paddles >= MinPaddlesToWin
}

func (e *Engine) finish(s GameState, idx int, rep TurnReport) (GameState, TurnReport) {
	s.Winner = s.Players[idx].ID
	rep.Winner = s.Winner
	rep.To = s.Players[idx].Position
	s.LastTurn = &rep
	return s, rep
}

func (e *Engine) advance(s *GameState) {
	s.CurrentTurn = (s.CurrentTurn + 1) % len(s.Players)
	if s.CurrentTurn == 0 {
		s.Round++
	}
}

// applySpace applies a non-card space effect. Forced moves do not trigger the
// effect of the space they end on.
func (e *Engine) applySpace(s *GameState, idx int, eff SpaceEffect) string {
	actor := &s.Players[idx]
	switch eff.Kind {
	case EffectPaddleGain:
		actor.Paddles += eff.Value
	case EffectPaddleLose:
		actor.Paddles = max(0, actor.Paddles-eff.Value)
	case EffectMove:
		actor.Position = e.Board.Clamp(actor.Position + eff.Value)
	case EffectToStart:
		actor.Position = 0
	case EffectSkipTurn:
		actor.SkipNextTurn = true
	case EffectExtraTurn:
		actor.ExtraTurn = true
	case EffectSwap:
		return e.swapRandom(s, idx)
	}
	return ""
}

func (e *Engine) swapRandom(s *GameState, idx int) string {
	if len(s.Players) < 2 {
		return ""
	}
	j := e.rng.Intn(len(s.Players) - 1)
	if j >= idx {
		j++
	}
	s.Players[idx].Position, s.Players[j].Position = s.Players[j].Position, s.Players[idx].Position
	return s.Players[j].ID
}

func (e *Engine) drawLoop(s *GameState, idx int, rep *TurnReport) {
	for i := 0; i < MaxCardDraws; i++ {
		res, again := e.drawCard(s, idx, rep)
		if res == nil {
			return
		}
		rep.Cards = append(rep.Cards, *res)
		if !again {
			return
		}
	}
}

// drawCard draws and applies one card. A nil resolution means the deck had
// nothing to give.
func (e *Engine) drawCard(s *GameState, idx int, rep *TurnReport) (*CardResolution, bool) {
	if s.Deck == nil {
		s.Deck = e.DeckFromCatalog()
	}
	drawn := deck.Draw(*s.Deck, e.rng)
	s.Deck = &drawn.State
	if !drawn.OK {
		return nil, false
	}
	if drawn.Reshuffled {
		rep.Reshuffled = true
	}
	next := deck.Discard(*s.Deck, drawn.CardID)
	s.Deck = &next

	card, ok := e.Cards[drawn.CardID]
	if !ok {
		e.Logger.WithField("card_id", drawn.CardID).Warn("drawn card missing from catalog; skipping")
		return &CardResolution{CardID: drawn.CardID, Missing: true, Action: effects.Action{Kind: effects.KindNone}}, false
	}

	action := effects.Parse(card.Effect)
	res := &CardResolution{CardID: card.ID, Name: card.Name, Action: action}
	if action.Kind == effects.KindDrawAgain {
		return res, true
	}
	res.Target = e.applyCard(s, idx, action)
	return res, false
}

// applyCard mutates s for action played by the player at idx and returns the
// id of any opponent it touched.
func (e *Engine) applyCard(s *GameState, idx int, a effects.Action) string {
	actor := &s.Players[idx]
	var target *PlayerState
	if t := a.Kind.Targeting(); t != effects.TargetNone {
		if id, ok := AutoSelectTarget(s.Players, actor.ID, t); ok {
			target = &s.Players[s.indexOf(id)]
		}
	}

	switch a.Kind {
	case effects.KindMoveForward:
		actor.Position = e.Board.Clamp(actor.Position + a.Value)
	case effects.KindMoveBack:
		actor.Position = e.Board.Clamp(actor.Position - a.Value)
	case effects.KindPaddleGain:
		actor.Paddles += a.Value
	case effects.KindPaddleLose:
		actor.Paddles = max(0, actor.Paddles-a.Value)
	case effects.KindPaddleSteal:
		if target != nil {
			n := min(a.Value, target.Paddles)
			target.Paddles -= n
			actor.Paddles += n
		}
	case effects.KindPaddleGift:
		if target != nil {
			n := min(a.Value, actor.Paddles)
			actor.Paddles -= n
			target.Paddles += n
		}
	case effects.KindSendPlayer:
		if target != nil {
			if st, ok := spaceTypeFor(a.SpaceType); ok {
				target.Position = e.spacePosition(target.Position, st, false)
			} else {
				target.Position = e.Board.Clamp(target.Position - a.Value)
			}
		}
	case effects.KindBringPlayer:
		if target != nil {
			target.Position = actor.Position
		}
	case effects.KindGoToSpace:
		if st, ok := spaceTypeFor(a.SpaceType); ok {
			actor.Position = e.spacePosition(actor.Position, st, true)
		}
	case effects.KindTakeLead:
		if target != nil && target.Position >= actor.Position {
			actor.Position = e.Board.Clamp(target.Position + 1)
		}
	case effects.KindSkipTurn:
		actor.SkipNextTurn = true
	case effects.KindExtraTurn:
		actor.ExtraTurn = true
	case effects.KindSkipHazard:
		actor.SkipHazard = true
	case effects.KindSwap:
		if target != nil {
			actor.Position, target.Position = target.Position, actor.Position
		}
	}
	if target == nil {
		return ""
	}
	return target.ID
}

func (e *Engine) spacePosition(from int, t SpaceType, forward bool) int {
	switch t {
	case SpaceStart:
		return 0
	case SpaceFinish:
		return e.Board.Finish()
	}
	if i, ok := e.Board.Nearest(from, t, forward); ok {
		return i
	}
	return from
}
