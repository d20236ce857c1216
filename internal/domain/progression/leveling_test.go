package progression

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestXPForLevel(t *testing.T) {
	assert.Equal(t, 0, XPForLevel(0))
	assert.Equal(t, 0, XPForLevel(-3))
	assert.Equal(t, 100, XPForLevel(1))
	assert.Equal(t, 400, XPForLevel(2))
	assert.Equal(t, 10000, XPForLevel(10))
}

func TestLevelFromTotalXP(t *testing.T) {
	tests := []struct {
		total int
		want  int
	}{
		{0, 1},
		{99, 1},
		{100, 2},
		{250, 2},
		{399, 2},
		{400, 3},
		{899, 3},
		{900, 4},
		{1000, 4},
		{25000, 16},
		{-50, 1},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, LevelFromTotalXP(tt.total), "total=%d", tt.total)
	}
}

func TestLevelingProperties(t *testing.T) {
	prev := LevelFromTotalXP(0)
	for total := 0; total <= 50000; total += 7 {
		level := LevelFromTotalXP(total)
		assert.GreaterOrEqual(t, level, prev, "monotonic at %d", total)
		prev = level

		current := CurrentLevelXP(total, level)
		assert.GreaterOrEqual(t, current, 0, "current level xp at %d", total)
		assert.Equal(t, total, current+XPForLevel(level-1), "reconstruct %d", total)
		assert.Greater(t, XPToNextLevel(total, level), 0, "xp to next at %d", total)
	}
}

func TestProgressFor(t *testing.T) {
	p := ProgressFor(250)

	assert.Equal(t, 2, p.Level)
	assert.Equal(t, 150, p.CurrentLevelXP)
	assert.Equal(t, 150, p.XPToNextLevel)
	assert.Equal(t, 300, p.LevelSpan)

	fresh := ProgressFor(0)
	assert.Equal(t, 1, fresh.Level)
	assert.Equal(t, 0, fresh.CurrentLevelXP)
	assert.Equal(t, 100, fresh.XPToNextLevel)
}

func TestIsqrtPerfectSquares(t *testing.T) {
	for r := 0; r < 3000; r++ {
		assert.Equal(t, r, isqrt(r*r))
		if r > 0 {
			assert.Equal(t, r-1, isqrt(r*r-1))
		}
	}
}
