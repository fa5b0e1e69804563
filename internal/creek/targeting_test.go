package creek

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jason-s-yu/partyroom/internal/effects"
)

func TestAutoSelectTarget(t *testing.T) {
	players := []PlayerState{
		{ID: "me", Position: 10},
		{ID: "lead1", Position: 20},
		{ID: "lead2", Position: 20},
		{ID: "behind", Position: 7},
		{ID: "far", Position: 2},
	}

	id, ok := AutoSelectTarget(players, "me", effects.TargetAttack)
	assert.True(t, ok)
	assert.Equal(t, "lead1", id)

	id, ok = AutoSelectTarget(players, "me", effects.TargetBenefit)
	assert.True(t, ok)
	assert.Equal(t, "behind", id)

	_, ok = AutoSelectTarget(players, "me", effects.TargetNone)
	assert.False(t, ok)
}

func TestAutoSelectBenefitFallsBackAhead(t *testing.T) {
	players := []PlayerState{
		{ID: "me", Position: 0},
		{ID: "x", Position: 9},
		{ID: "y", Position: 4},
	}
	id, ok := AutoSelectTarget(players, "me", effects.TargetBenefit)
	assert.True(t, ok)
	assert.Equal(t, "y", id)
}

func TestAutoSelectAloneHasNoTarget(t *testing.T) {
	_, ok := AutoSelectTarget([]PlayerState{{ID: "me"}}, "me", effects.TargetAttack)
	assert.False(t, ok)
}

func TestAutoSelectIsDeterministic(t *testing.T) {
	players := []PlayerState{{ID: "me"}, {ID: "a", Position: 3}, {ID: "b", Position: 3}}
	for i := 0; i < 10; i++ {
		id, _ := AutoSelectTarget(players, "me", effects.TargetAttack)
		assert.Equal(t, "a", id)
	}
}
