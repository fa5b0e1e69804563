package creek

import "github.com/jason-s-yu/partyroom/internal/effects"

// AutoSelectTarget picks an opponent for an automated actor. Attacks go to
// the furthest-ahead other player. Benefits go to the closest player at or
// behind the actor, falling back to the nearest one ahead when nobody trails.
// Ties resolve to the earliest player in seating order.
func AutoSelectTarget(players []PlayerState, actorID string, t effects.Targeting) (string, bool) {
	actorPos := 0
	for _, p := range players {
		if p.ID == actorID {
			actorPos = p.Position
		}
	}

	best := -1
	switch t {
	case effects.TargetAttack:
		for i, p := range players {
			if p.ID == actorID {
				continue
			}
			if best < 0 || p.Position > players[best].Position {
				best = i
			}
		}
	case effects.TargetBenefit:
		for i, p := range players {
			if p.ID == actorID || p.Position > actorPos {
				continue
			}
			if best < 0 || p.Position > players[best].Position {
				best = i
			}
		}
		if best < 0 {
			for i, p := range players {
				if p.ID == actorID {
					continue
				}
				if best < 0 || p.Position-actorPos < players[best].Position-actorPos {
					best = i
				}
			}
		}
	default:
		return "", false
	}
	if best < 0 {
		return "", false
	}
	return players[best].ID, true
}
