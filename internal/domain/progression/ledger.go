package progression

import (
	"strings"
	"time"

	"github.com/alem-hub/progression-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SOURCE TYPE
// ══════════════════════════════════════════════════════════════════════════════

// SourceType - источник начисления XP.
type SourceType string

const (
	SourceChapter     SourceType = "chapter"
	SourceQuiz        SourceType = "quiz"
	SourceAssignment  SourceType = "assignment"
	SourceAchievement SourceType = "achievement"
	SourceManual      SourceType = "manual"
)

// IsValid проверяет, что источник известен.
func (s SourceType) IsValid() bool {
	switch s {
	case SourceChapter, SourceQuiz, SourceAssignment, SourceAchievement, SourceManual:
		return true
	default:
		return false
	}
}

// IsLearningActivity сообщает, обновляет ли начисление серию и дневную цель.
func (s SourceType) IsLearningActivity() bool {
	return s == SourceChapter || s == SourceQuiz || s == SourceAssignment
}

// String returns the string representation.
func (s SourceType) String() string {
	return string(s)
}

// ParseSourceType разбирает источник без учёта регистра.
func ParseSourceType(value string) (SourceType, error) {
	s := SourceType(strings.ToLower(strings.TrimSpace(value)))
	if !s.IsValid() {
		return "", shared.ErrInvalidSource
	}
	return s, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// AWARD
// ══════════════════════════════════════════════════════════════════════════════

// Award - запрос на начисление XP.
type Award struct {
	// UserID - получатель.
	UserID shared.UserID

	// Amount - количество XP, строго > 0.
	Amount int

	// Reason - человекочитаемая причина. Пустая заменяется источником.
	Reason string

	// SourceType - источник.
	SourceType SourceType

	// SourceID - идентификатор источника (глава, квиз, достижение). Необязателен.
	SourceID string
}

// Validate проверяет начисление до открытия транзакции.
func (a Award) Validate() error {
	if !a.UserID.IsValid() {
		return shared.ErrInvalidUserID
	}
	if a.Amount <= 0 {
		return shared.ErrInvalidAmount
	}
	if !a.SourceType.IsValid() {
		return shared.ErrInvalidSource
	}
	return nil
}

// WithDefaultReason подставляет источник вместо пустой причины.
func (a Award) WithDefaultReason() Award {
	a.Reason = strings.TrimSpace(a.Reason)
	if a.Reason == "" {
		a.Reason = string(a.SourceType)
	}
	return a
}

// ══════════════════════════════════════════════════════════════════════════════
// XP TRANSACTION
// ══════════════════════════════════════════════════════════════════════════════

// XPTransaction - неизменяемая запись журнала. Создаётся один раз, не изменяется.
type XPTransaction struct {
	// ID - уникальный идентификатор записи.
	ID string `json:"id"`

	// UserID - владелец записи.
	UserID shared.UserID `json:"userId"`

	// Amount - количество XP (не 0).
	Amount int `json:"amount"`

	// Reason - причина начисления.
	Reason string `json:"reason"`

	// SourceType - источник.
	SourceType SourceType `json:"sourceType"`

	// SourceID - идентификатор источника.
	SourceID string `json:"sourceId,omitempty"`

	// CreatedAt - время записи.
	CreatedAt time.Time `json:"createdAt"`
}

// NewXPTransaction создаёт запись журнала для начисления.
func NewXPTransaction(id string, award Award, at time.Time) XPTransaction {
	return XPTransaction{
		ID:         id,
		UserID:     award.UserID,
		Amount:     award.Amount,
		Reason:     award.Reason,
		SourceType: award.SourceType,
		SourceID:   award.SourceID,
		CreatedAt:  at,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// USER XP AGGREGATE
// ══════════════════════════════════════════════════════════════════════════════

// UserXP - производный агрегат пользователя.
// TotalXP равен сумме всех XPTransaction.Amount; Level и CurrentLevelXP
// всегда вычисляются из TotalXP.
type UserXP struct {
	// UserID - уникальный идентификатор пользователя.
	UserID shared.UserID `json:"userId"`

	// TotalXP - общий XP (>= 0).
	TotalXP int `json:"totalXP"`

	// Level - уровень (>= 1).
	Level int `json:"level"`

	// CurrentLevelXP - XP внутри уровня.
	CurrentLevelXP int `json:"currentLevelXP"`

	// UpdatedAt - время последнего начисления. Нулевое для нового пользователя.
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewUserXP возвращает агрегат нового пользователя: 0 XP, уровень 1.
func NewUserXP(userID shared.UserID) UserXP {
	return UserXP{
		UserID:         userID,
		TotalXP:        0,
		Level:          1,
		CurrentLevelXP: 0,
	}
}

// XPToNextLevel возвращает XP до следующего уровня.
func (u UserXP) XPToNextLevel() int {
	return XPToNextLevel(u.TotalXP, u.Level)
}

// IsNew сообщает, что пользователь ещё не получал XP.
func (u UserXP) IsNew() bool {
	return u.UpdatedAt.IsZero() && u.TotalXP == 0
}

// AwardOutcome - результат применения начисления к агрегату.
type AwardOutcome struct {
	PreviousTotalXP int  `json:"previousTotalXP"`
	NewTotalXP      int  `json:"newTotalXP"`
	PreviousLevel   int  `json:"previousLevel"`
	NewLevel        int  `json:"newLevel"`
	LeveledUp       bool `json:"leveledUp"`
	XPToNextLevel   int  `json:"xpToNextLevel"`
}

// Apply добавляет amount к агрегату и пересчитывает уровень.
func (u *UserXP) Apply(amount int, at time.Time) (AwardOutcome, error) {
	if amount <= 0 {
		return AwardOutcome{}, shared.ErrInvalidAmount
	}
	if u.TotalXP < 0 {
		return AwardOutcome{}, shared.ErrInvalidTotalXP
	}

	prevTotal := u.TotalXP
	prevLevel := u.Level
	if prevLevel < 1 {
		prevLevel = LevelFromTotalXP(prevTotal)
	}

	u.TotalXP = prevTotal + amount
	u.Level = LevelFromTotalXP(u.TotalXP)
	u.CurrentLevelXP = CurrentLevelXP(u.TotalXP, u.Level)
	u.UpdatedAt = at

	return AwardOutcome{
		PreviousTotalXP: prevTotal,
		NewTotalXP:      u.TotalXP,
		PreviousLevel:   prevLevel,
		NewLevel:        u.Level,
		LeveledUp:       u.Level > prevLevel,
		XPToNextLevel:   u.XPToNextLevel(),
	}, nil
}
