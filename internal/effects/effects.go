// internal/effects/effects.go
package effects

// Kind is the closed set of card action kinds.
type Kind string

const (
	KindMoveForward Kind = "move_forward"
	KindMoveBack    Kind = "move_back"
	KindPaddleGain  Kind = "paddle_gain"
	KindPaddleLose  Kind = "paddle_lose"
	KindPaddleSteal Kind = "paddle_steal"
	KindPaddleGift  Kind = "paddle_gift"
	KindSendPlayer  Kind = "send_player"
	KindBringPlayer Kind = "bring_player"
	KindGoToSpace   Kind = "go_to_space"
	KindTakeLead    Kind = "take_lead"
	KindSkipTurn    Kind = "skip_turn"
	KindExtraTurn   Kind = "extra_turn"
	KindDrawAgain   Kind = "draw_again"
	KindSkipHazard  Kind = "skip_hazard"
	KindSwap        Kind = "swap"
	KindNone        Kind = "none"
)

// Targeting classifies how an automated resolver picks an opponent.
type Targeting int

const (
	TargetNone Targeting = iota
	// TargetAttack removes from, damages or redirects an opponent.
	TargetAttack
	// TargetBenefit gives to or helps an opponent.
	TargetBenefit
)

// Targeting returns the auto-select class of k.
func (k Kind) Targeting() Targeting {
	switch k {
	case KindPaddleSteal, KindSendPlayer, KindSwap, KindTakeLead:
		return TargetAttack
	case KindPaddleGift, KindBringPlayer:
		return TargetBenefit
	}
	return TargetNone
}

// Space types card text can name.
const (
	SpaceHazard    = "hazard"
	SpaceStart     = "start"
	SpacePaddle    = "paddle"
	SpaceRapids    = "rapids"
	SpaceWhirlpool = "whirlpool"
	SpaceFinish    = "finish"
)

// Action is the structured form of a card effect. Text is always the original
// effect string, verbatim.
type Action struct {
	Kind              Kind   `json:"kind"`
	Value             int    `json:"value,omitempty"`
	SpaceType         string `json:"spaceType,omitempty"`
	NeedsPlayerSelect bool   `json:"needsPlayerSelect"`
	Text              string `json:"text"`
}

// Default magnitudes used when the text carries no number.
const (
	DefaultMoveBack    = 2
	DefaultMoveForward = 2
	DefaultPaddles     = 1
	DefaultSendBack    = 3
)
