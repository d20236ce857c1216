package progression

import (
	"testing"

	"github.com/alem-hub/progression-engine/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDailyGoalAccumulate(t *testing.T) {
	g := NewDailyGoal("u1", day(1), 0)
	assert.Equal(t, DefaultDailyGoalTargetXP, g.TargetXP)

	done, err := g.Accumulate(20)
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, 20, g.CurrentXP)
	assert.Equal(t, 30, g.Remaining())
	assert.Equal(t, shared.Percentage(40), g.Percentage())

	done, err = g.Accumulate(35)
	require.NoError(t, err)
	assert.True(t, done)
	assert.True(t, g.IsCompleted)
	assert.Equal(t, 55, g.CurrentXP)

	done, err = g.Accumulate(100)
	require.NoError(t, err)
	assert.False(t, done)
	assert.True(t, g.IsCompleted)
	assert.Equal(t, 55, g.CurrentXP)
	assert.Equal(t, 0, g.Remaining())
}

func TestDailyGoalRejectsNonPositive(t *testing.T) {
	g := NewDailyGoal("u1", day(1), 80)

	_, err := g.Accumulate(-1)
	assert.ErrorIs(t, err, shared.ErrInvalidAmount)
	assert.Equal(t, 0, g.CurrentXP)
}
