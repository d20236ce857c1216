package progression

import (
	"testing"

	"github.com/alem-hub/progression-engine/internal/domain/shared"
	"github.com/stretchr/testify/assert"
)

func TestConditionRelevantTo(t *testing.T) {
	withXP := EventContext{HasXPTotals: true, NewTotalXP: 1200, NewLevel: 4}
	noXP := EventContext{}

	tests := []struct {
		condition ConditionType
		event     EventType
		ctx       EventContext
		want      bool
	}{
		{ConditionChapterCompletion, EventChapter, withXP, true},
		{ConditionChapterCompletion, EventQuiz, withXP, false},
		{ConditionCourseCompletion, EventCourse, noXP, true},
		{ConditionCourseCompletion, EventChapter, withXP, false},
		{ConditionQuizCompletion, EventQuiz, withXP, true},
		{ConditionPerfectQuiz, EventQuiz, withXP, true},
		{ConditionPerfectQuiz, EventAssignment, withXP, false},
		{ConditionStreak, EventAssignment, withXP, true},
		{ConditionStreak, EventAchievement, withXP, false},
		{ConditionLevel, EventAchievement, withXP, true},
		{ConditionTotalXP, EventManual, withXP, true},
		{ConditionTotalXP, EventCourse, noXP, false},
		{ConditionStreak, EventCheck, noXP, true},
	}

	for _, tt := range tests {
		c := Condition{Type: tt.condition, Count: 1}
		assert.Equal(t, tt.want, c.RelevantTo(tt.event, tt.ctx), "%s on %s", tt.condition, tt.event)
	}
}

func TestConditionIsSatisfied(t *testing.T) {
	s := ProgressSnapshot{
		CompletedChapters: 5,
		QuizAttempts:      9,
		PerfectQuizzes:    1,
		CurrentStreak:     3,
		Level:             4,
		TotalXP:           1000,
	}

	assert.True(t, Condition{Type: ConditionChapterCompletion, Count: 5}.IsSatisfied(s))
	assert.False(t, Condition{Type: ConditionQuizCompletion, Count: 10}.IsSatisfied(s))
	assert.True(t, Condition{Type: ConditionPerfectQuiz, Count: 1}.IsSatisfied(s))
	assert.True(t, Condition{Type: ConditionStreak, Count: 3}.IsSatisfied(s))
	assert.False(t, Condition{Type: ConditionLevel, Count: 5}.IsSatisfied(s))
	assert.True(t, Condition{Type: ConditionTotalXP, Count: 1000}.IsSatisfied(s))
	assert.False(t, Condition{Type: ConditionCourseCompletion, Count: 1}.IsSatisfied(s))
	assert.False(t, Condition{Type: "unknown", Count: 0}.IsSatisfied(s))
}

func TestConditionValidate(t *testing.T) {
	assert.NoError(t, Condition{Type: ConditionLevel, Count: 5}.Validate())
	assert.ErrorIs(t, Condition{Type: ConditionLevel, Count: 0}.Validate(), shared.ErrInvalidCondition)
	assert.ErrorIs(t, Condition{Type: "xp", Count: 5}.Validate(), shared.ErrInvalidCondition)
}

func TestNearestToUnlock(t *testing.T) {
	catalog := DefaultCatalog()
	unlocked := NewUnlockedSet([]string{"first-steps"})
	s := ProgressSnapshot{CompletedChapters: 4, CurrentStreak: 2, Level: 2, TotalXP: 300, QuizAttempts: 1}

	got := NearestToUnlock(catalog, unlocked, s, 5)
	if assert.Len(t, got, 5) {
		assert.Equal(t, "getting-started", got[0].Achievement.ID)
		assert.Equal(t, 4, got[0].CurrentProgress)
		assert.Equal(t, 5, got[0].RequiredProgress)
		assert.Equal(t, shared.Percentage(80), got[0].Percentage)

		assert.Equal(t, "consistent-learner", got[1].Achievement.ID)
		assert.Equal(t, shared.Percentage(66), got[1].Percentage)
	}

	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i-1].Percentage, got[i].Percentage)
	}
	for _, p := range got {
		assert.NotEqual(t, "first-steps", p.Achievement.ID)
	}
}

func TestNearestToUnlockSkipsInactiveAndClamps(t *testing.T) {
	catalog := []Achievement{
		{ID: "a", IsActive: false, Condition: Condition{Type: ConditionLevel, Count: 2}},
		{ID: "b", IsActive: true, Condition: Condition{Type: ConditionLevel, Count: 2}},
	}

	got := NearestToUnlock(catalog, UnlockedSet{}, ProgressSnapshot{Level: 7}, 5)
	if assert.Len(t, got, 1) {
		assert.Equal(t, "b", got[0].Achievement.ID)
		assert.Equal(t, 2, got[0].CurrentProgress)
		assert.Equal(t, shared.Percentage(100), got[0].Percentage)
	}

	assert.Empty(t, NearestToUnlock(catalog, UnlockedSet{}, ProgressSnapshot{}, 0))
}

func TestDefaultCatalogIsValid(t *testing.T) {
	seen := map[string]bool{}
	for _, a := range DefaultCatalog() {
		assert.NoError(t, a.Condition.Validate(), a.ID)
		assert.False(t, seen[a.ID], "duplicate %s", a.ID)
		assert.GreaterOrEqual(t, a.XPReward, 0)
		seen[a.ID] = true
	}
	assert.Len(t, seen, 22)
}
