package progression

import (
	"errors"
	"testing"
	"time"

	"github.com/alem-hub/progression-engine/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAwardValidate(t *testing.T) {
	valid := Award{UserID: "u1", Amount: 10, Reason: "Completed chapter", SourceType: SourceChapter}

	tests := []struct {
		name   string
		mutate func(a *Award)
		want   error
	}{
		{name: "valid", mutate: func(a *Award) {}},
		{name: "zero amount", mutate: func(a *Award) { a.Amount = 0 }, want: shared.ErrInvalidAmount},
		{name: "negative amount", mutate: func(a *Award) { a.Amount = -5 }, want: shared.ErrInvalidAmount},
		{name: "unknown source", mutate: func(a *Award) { a.SourceType = "video" }, want: shared.ErrInvalidSource},
		{name: "blank reason", mutate: func(a *Award) { a.Reason = "  " }},
		{name: "blank user", mutate: func(a *Award) { a.UserID = "" }, want: shared.ErrInvalidUserID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := valid
			tt.mutate(&a)
			err := a.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestAwardWithDefaultReason(t *testing.T) {
	tests := []struct {
		reason string
		want   string
	}{
		{reason: "", want: "quiz"},
		{reason: "   ", want: "quiz"},
		{reason: " Perfect score ", want: "Perfect score"},
	}

	for _, tt := range tests {
		a := Award{UserID: "u1", Amount: 5, Reason: tt.reason, SourceType: SourceQuiz}.WithDefaultReason()
		assert.Equal(t, tt.want, a.Reason, "reason %q", tt.reason)
	}
}

func TestUserXPApply(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	agg := NewUserXP("u1")

	out, err := agg.Apply(250, now)
	require.NoError(t, err)

	assert.Equal(t, 0, out.PreviousTotalXP)
	assert.Equal(t, 250, out.NewTotalXP)
	assert.Equal(t, 1, out.PreviousLevel)
	assert.Equal(t, 2, out.NewLevel)
	assert.True(t, out.LeveledUp)
	assert.Equal(t, 150, out.XPToNextLevel)
	assert.Equal(t, 150, agg.CurrentLevelXP)
	assert.Equal(t, now, agg.UpdatedAt)

	out, err = agg.Apply(10, now)
	require.NoError(t, err)
	assert.False(t, out.LeveledUp)
	assert.Equal(t, 260, agg.TotalXP)
}

func TestUserXPApplyRejectsNonPositive(t *testing.T) {
	agg := NewUserXP("u1")

	_, err := agg.Apply(0, time.Now())
	assert.ErrorIs(t, err, shared.ErrInvalidAmount)
	assert.Equal(t, 0, agg.TotalXP)
	assert.True(t, agg.IsNew())
}

func TestSourceType(t *testing.T) {
	s, err := ParseSourceType(" Quiz ")
	require.NoError(t, err)
	assert.Equal(t, SourceQuiz, s)
	assert.True(t, s.IsLearningActivity())

	assert.False(t, SourceAchievement.IsLearningActivity())
	assert.False(t, SourceManual.IsLearningActivity())

	_, err = ParseSourceType("payment")
	assert.ErrorIs(t, err, shared.ErrInvalidSource)
}
