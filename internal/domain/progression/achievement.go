package progression

import (
	"sort"
	"time"

	"github.com/alem-hub/progression-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONDITIONS
// ══════════════════════════════════════════════════════════════════════════════

// ConditionType - вариант условия разблокировки.
type ConditionType string

const (
	ConditionChapterCompletion ConditionType = "chapter_completion"
	ConditionCourseCompletion  ConditionType = "course_completion"
	ConditionQuizCompletion    ConditionType = "quiz_completion"
	ConditionPerfectQuiz       ConditionType = "perfect_quiz"
	ConditionStreak            ConditionType = "streak"
	ConditionLevel             ConditionType = "level"
	ConditionTotalXP           ConditionType = "total_xp"
)

// IsValid проверяет, что вариант известен.
func (c ConditionType) IsValid() bool {
	switch c {
	case ConditionChapterCompletion, ConditionCourseCompletion, ConditionQuizCompletion,
		ConditionPerfectQuiz, ConditionStreak, ConditionLevel, ConditionTotalXP:
		return true
	default:
		return false
	}
}

// Condition - типизированный порог.
type Condition struct {
	// Type - вариант условия.
	Type ConditionType `json:"type"`

	// Count - порог, который нужно достичь.
	Count int `json:"count"`
}

// Validate проверяет условие каталога.
func (c Condition) Validate() error {
	if !c.Type.IsValid() || c.Count <= 0 {
		return shared.ErrInvalidCondition
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// TRIGGER EVENTS
// ══════════════════════════════════════════════════════════════════════════════

// EventType - событие, запустившее проверку достижений.
// Для начислений XP совпадает с SourceType.
type EventType string

const (
	EventChapter     EventType = "chapter"
	EventQuiz        EventType = "quiz"
	EventAssignment  EventType = "assignment"
	EventAchievement EventType = "achievement"
	EventManual      EventType = "manual"

	// EventCourse - внешнее уведомление о завершении курса (без начисления XP).
	EventCourse EventType = "course"

	// EventCheck - ручная проверка: учитываются все варианты условий.
	EventCheck EventType = "check"
)

// IsValid проверяет, что событие известно.
func (e EventType) IsValid() bool {
	switch e {
	case EventChapter, EventQuiz, EventAssignment, EventAchievement, EventManual, EventCourse, EventCheck:
		return true
	default:
		return false
	}
}

// EventTypeFor возвращает событие для источника XP.
func EventTypeFor(source SourceType) EventType {
	return EventType(source)
}

// EventContext - данные события, доступные условиям.
type EventContext struct {
	// SourceID - идентификатор источника события.
	SourceID string

	// HasXPTotals - событие несёт итоги начисления (level/total_xp проверяются только тогда).
	HasXPTotals bool

	// NewTotalXP - общий XP после начисления.
	NewTotalXP int

	// NewLevel - уровень после начисления.
	NewLevel int

	// LeveledUp - начисление повысило уровень.
	LeveledUp bool
}

// ContextFromOutcome строит контекст из результата начисления.
func ContextFromOutcome(sourceID string, out AwardOutcome) EventContext {
	return EventContext{
		SourceID:    sourceID,
		HasXPTotals: true,
		NewTotalXP:  out.NewTotalXP,
		NewLevel:    out.NewLevel,
		LeveledUp:   out.LeveledUp,
	}
}

// RelevantTo сообщает, нужно ли проверять условие для события.
func (c Condition) RelevantTo(event EventType, ctx EventContext) bool {
	if event == EventCheck {
		return true
	}
	switch c.Type {
	case ConditionChapterCompletion:
		return event == EventChapter
	case ConditionCourseCompletion:
		return event == EventCourse
	case ConditionQuizCompletion, ConditionPerfectQuiz:
		return event == EventQuiz
	case ConditionStreak:
		return event == EventChapter || event == EventQuiz || event == EventAssignment
	case ConditionLevel, ConditionTotalXP:
		return ctx.HasXPTotals
	default:
		return false
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS SNAPSHOT
// ══════════════════════════════════════════════════════════════════════════════

// ProgressSnapshot - текущие показатели пользователя для проверки условий.
type ProgressSnapshot struct {
	CompletedChapters int
	CompletedCourses  int
	QuizAttempts      int
	PerfectQuizzes    int
	CurrentStreak     int
	Level             int
	TotalXP           int
}

// Progress возвращает текущее значение показателя условия.
func (c Condition) Progress(s ProgressSnapshot) int {
	switch c.Type {
	case ConditionChapterCompletion:
		return s.CompletedChapters
	case ConditionCourseCompletion:
		return s.CompletedCourses
	case ConditionQuizCompletion:
		return s.QuizAttempts
	case ConditionPerfectQuiz:
		return s.PerfectQuizzes
	case ConditionStreak:
		return s.CurrentStreak
	case ConditionLevel:
		return s.Level
	case ConditionTotalXP:
		return s.TotalXP
	default:
		return 0
	}
}

// IsSatisfied проверяет порог.
func (c Condition) IsSatisfied(s ProgressSnapshot) bool {
	return c.Type.IsValid() && c.Progress(s) >= c.Count
}

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENT
// ══════════════════════════════════════════════════════════════════════════════

// Category - группа достижений в каталоге.
type Category string

const (
	CategoryLearning    Category = "learning"
	CategoryConsistency Category = "consistency"
	CategoryExcellence  Category = "excellence"
	CategoryMilestone   Category = "milestone"
)

// Achievement - строка каталога. Только чтение для движка.
type Achievement struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Icon        string    `json:"icon"`
	Category    Category  `json:"category"`
	Condition   Condition `json:"condition"`
	XPReward    int       `json:"xpReward"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
}

// UserAchievement - запись о разблокировке. Не более одной на (UserID, AchievementID).
type UserAchievement struct {
	UserID        shared.UserID `json:"userId"`
	AchievementID string        `json:"achievementId"`
	UnlockedAt    time.Time     `json:"unlockedAt"`
}

// UnlockedSet - множество разблокированных достижений.
type UnlockedSet map[string]struct{}

// NewUnlockedSet строит множество из идентификаторов.
func NewUnlockedSet(ids []string) UnlockedSet {
	set := make(UnlockedSet, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// Has проверяет наличие.
func (s UnlockedSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Add добавляет идентификатор.
func (s UnlockedSet) Add(id string) {
	s[id] = struct{}{}
}

// AchievementProgress - прогресс к ещё не полученному достижению.
type AchievementProgress struct {
	Achievement      Achievement       `json:"achievement"`
	CurrentProgress  int               `json:"currentProgress"`
	RequiredProgress int               `json:"requiredProgress"`
	Percentage       shared.Percentage `json:"percentage"`
}

// NearestToUnlock возвращает до limit активных неполученных достижений,
// ближайших к разблокировке: по проценту убыванию, затем по остатку
// возрастанию, затем по ID.
func NearestToUnlock(catalog []Achievement, unlocked UnlockedSet, s ProgressSnapshot, limit int) []AchievementProgress {
	if limit <= 0 {
		return []AchievementProgress{}
	}

	candidates := make([]AchievementProgress, 0, len(catalog))
	for _, a := range catalog {
		if !a.IsActive || unlocked.Has(a.ID) {
			continue
		}
		current := min(a.Condition.Progress(s), a.Condition.Count)
		candidates = append(candidates, AchievementProgress{
			Achievement:      a,
			CurrentProgress:  current,
			RequiredProgress: a.Condition.Count,
			Percentage:       shared.PercentageOf(current, a.Condition.Count),
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Percentage != b.Percentage {
			return a.Percentage > b.Percentage
		}
		ra, rb := a.RequiredProgress-a.CurrentProgress, b.RequiredProgress-b.CurrentProgress
		if ra != rb {
			return ra < rb
		}
		return a.Achievement.ID < b.Achievement.ID
	})

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates
}

// SortCatalog упорядочивает каталог по категории, порогу и имени.
func SortCatalog(catalog []Achievement) {
	sort.SliceStable(catalog, func(i, j int) bool {
		a, b := catalog[i], catalog[j]
		if a.Category != b.Category {
			return a.Category < b.Category
		}
		if a.Condition.Type != b.Condition.Type {
			return a.Condition.Type < b.Condition.Type
		}
		if a.Condition.Count != b.Condition.Count {
			return a.Condition.Count < b.Condition.Count
		}
		return a.Name < b.Name
	})
}
