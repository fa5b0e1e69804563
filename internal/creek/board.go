// internal/creek/board.go
package creek

import "github.com/jason-s-yu/partyroom/internal/effects"

// SpaceType names the kind of a board space.
type SpaceType string

const (
	SpaceStart     SpaceType = "start"
	SpaceNormal    SpaceType = "normal"
	SpacePaddle    SpaceType = "paddle"
	SpaceSnag      SpaceType = "snag"
	SpaceRapids    SpaceType = "rapids"
	SpaceCurrent   SpaceType = "current"
	SpaceWhirlpool SpaceType = "whirlpool"
	SpaceSandbar   SpaceType = "sandbar"
	SpaceTailwind  SpaceType = "tailwind"
	SpaceSwap      SpaceType = "swap"
	SpaceHazard    SpaceType = "hazard"
	SpaceFinish    SpaceType = "finish"
)

// EffectKind is the static effect bound to a space.
type EffectKind string

const (
	EffectNone       EffectKind = "none"
	EffectPaddleGain EffectKind = "paddle_gain"
	EffectPaddleLose EffectKind = "paddle_lose"
	EffectMove       EffectKind = "move"
	EffectToStart    EffectKind = "to_start"
	EffectSkipTurn   EffectKind = "skip_turn"
	EffectExtraTurn  EffectKind = "extra_turn"
	EffectSwap       EffectKind = "swap"
	EffectDrawCard   EffectKind = "draw_card"
)

// SpaceEffect is applied once when a player lands on a space. Value is a
// paddle count or a signed move distance.
type SpaceEffect struct {
	Kind  EffectKind `json:"kind"`
	Value int        `json:"value,omitempty"`
}

type Space struct {
	Index  int         `json:"index"`
	Type   SpaceType   `json:"type"`
	Name   string      `json:"name"`
	Effect SpaceEffect `json:"effect"`
}

// Board is an ordered track. Index 0 is the start, the last index the finish.
type Board struct {
	Spaces []Space `json:"spaces"`
}

// Finish is the index of the last space.
func (b Board) Finish() int {
	if len(b.Spaces) == 0 {
		return 0
	}
	return len(b.Spaces) - 1
}

// At returns the space at i, clamped to the board.
func (b Board) At(i int) Space {
	return b.Spaces[b.Clamp(i)]
}

// Clamp bounds a position to [0, Finish].
func (b Board) Clamp(pos int) int {
	if pos < 0 {
		return 0
	}
	if f := b.Finish(); pos > f {
		return f
	}
	return pos
}

// Nearest returns the index of the closest space of type t to from, looking
// ahead first when forward is set and behind first otherwise. ok is false
// when the board has no such space.
func (b Board) Nearest(from int, t SpaceType, forward bool) (int, bool) {
	ahead, behind := -1, -1
	for i := from + 1; i < len(b.Spaces); i++ {
		if b.Spaces[i].Type == t {
			ahead = i
			break
		}
	}
	for i := from - 1; i >= 0; i-- {
		if b.Spaces[i].Type == t {
			behind = i
			break
		}
	}
	first, second := ahead, behind
	if !forward {
		first, second = behind, ahead
	}
	if first >= 0 {
		return first, true
	}
	if second >= 0 {
		return second, true
	}
	return 0, false
}

// spaceTypeFor maps a parsed card space phrase onto a board space type.
func spaceTypeFor(s string) (SpaceType, bool) {
	switch s {
	case effects.SpaceHazard:
		return SpaceHazard, true
	case effects.SpaceStart:
		return SpaceStart, true
	case effects.SpacePaddle:
		return SpacePaddle, true
	case effects.SpaceRapids:
		return SpaceRapids, true
	case effects.SpaceWhirlpool:
		return SpaceWhirlpool, true
	case effects.SpaceFinish:
		return SpaceFinish, true
	}
	return "", false
}

// DefaultBoard is the 31-space river used by new games.
func DefaultBoard() Board {
	special := map[int]Space{
		3:  {Type: SpaceHazard, Name: "Shit Pile", Effect: SpaceEffect{Kind: EffectDrawCard}},
		5:  {Type: SpacePaddle, Name: "Paddle Shop", Effect: SpaceEffect{Kind: EffectPaddleGain, Value: 1}},
		6:  {Type: SpaceTailwind, Name: "Tailwind", Effect: SpaceEffect{Kind: EffectExtraTurn}},
		7:  {Type: SpaceHazard, Name: "Shit Pile", Effect: SpaceEffect{Kind: EffectDrawCard}},
		9:  {Type: SpaceRapids, Name: "Rapids", Effect: SpaceEffect{Kind: EffectMove, Value: 3}},
		10: {Type: SpaceSandbar, Name: "Sandbar", Effect: SpaceEffect{Kind: EffectSkipTurn}},
		11: {Type: SpaceCurrent, Name: "Undertow", Effect: SpaceEffect{Kind: EffectMove, Value: -2}},
		12: {Type: SpaceHazard, Name: "Shit Pile", Effect: SpaceEffect{Kind: EffectDrawCard}},
		14: {Type: SpacePaddle, Name: "Paddle Shop", Effect: SpaceEffect{Kind: EffectPaddleGain, Value: 1}},
		15: {Type: SpaceSwap, Name: "Crossed Canoes", Effect: SpaceEffect{Kind: EffectSwap}},
		16: {Type: SpaceHazard, Name: "Shit Pile", Effect: SpaceEffect{Kind: EffectDrawCard}},
		17: {Type: SpaceWhirlpool, Name: "Whirlpool", Effect: SpaceEffect{Kind: EffectToStart}},
		19: {Type: SpaceRapids, Name: "Rapids", Effect: SpaceEffect{Kind: EffectMove, Value: 3}},
		20: {Type: SpaceTailwind, Name: "Tailwind", Effect: SpaceEffect{Kind: EffectExtraTurn}},
		21: {Type: SpaceHazard, Name: "Shit Pile", Effect: SpaceEffect{Kind: EffectDrawCard}},
		23: {Type: SpacePaddle, Name: "Paddle Shop", Effect: SpaceEffect{Kind: EffectPaddleGain, Value: 1}},
		24: {Type: SpaceSandbar, Name: "Sandbar", Effect: SpaceEffect{Kind: EffectSkipTurn}},
		25: {Type: SpaceHazard, Name: "Shit Pile", Effect: SpaceEffect{Kind: EffectDrawCard}},
		26: {Type: SpaceCurrent, Name: "Undertow", Effect: SpaceEffect{Kind: EffectMove, Value: -2}},
		27: {Type: SpaceSnag, Name: "Snag", Effect: SpaceEffect{Kind: EffectPaddleLose, Value: 1}},
		28: {Type: SpaceHazard, Name: "Shit Pile", Effect: SpaceEffect{Kind: EffectDrawCard}},
		30: {Type: SpaceFinish, Name: "Dry Land", Effect: SpaceEffect{Kind: EffectDrawCard}},
	}
	spaces := make([]Space, 31)
	for i := range spaces {
		sp, ok := special[i]
		if !ok {
			sp = Space{Type: SpaceNormal, Name: "Open Water", Effect: SpaceEffect{Kind: EffectNone}}
		}
		if i == 0 {
			sp = Space{Type: SpaceStart, Name: "Launch", Effect: SpaceEffect{Kind: EffectNone}}
		}
		sp.Index = i
		spaces[i] = sp
	}
	return Board{Spaces: spaces}
}
