package shared

import (
	"strings"
	"unicode"
)

// ═══════════════════════════════════════════════════════════════════════════
// ID Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// MaxUserIDLength bounds identifiers issued by the identity provider.
const MaxUserIDLength = 128

// UserID identifies a learner. The engine never resolves it, callers do.
type UserID string

// IsValid checks that the ID is non-empty, bounded and free of whitespace.
func (u UserID) IsValid() bool {
	if u == "" || len(u) > MaxUserIDLength {
		return false
	}
	for _, r := range string(u) {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return false
		}
	}
	return true
}

// String returns the string representation.
func (u UserID) String() string {
	return string(u)
}

// NewUserID creates a UserID with validation.
func NewUserID(id string) (UserID, error) {
	uid := UserID(strings.TrimSpace(id))
	if !uid.IsValid() {
		return "", ErrInvalidUserID
	}
	return uid, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Rank Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Rank represents a 1-based position on a leaderboard page.
type Rank int

const (
	MinRank  Rank = 1
	Unranked Rank = 0
)

// IsValid checks if the rank is valid.
func (r Rank) IsValid() bool {
	return r >= MinRank
}

// Int returns the underlying int value.
func (r Rank) Int() int {
	return int(r)
}

// IsTop returns true if the rank is in the top N.
func (r Rank) IsTop(n int) bool {
	return r.IsValid() && int(r) <= n
}

// Medal returns a medal emoji for top ranks.
func (r Rank) Medal() string {
	switch r {
	case 1:
		return "🥇"
	case 2:
		return "🥈"
	case 3:
		return "🥉"
	default:
		return ""
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Percentage Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Percentage is an integer progress value clamped to [0, 100].
type Percentage int

// PercentageOf computes floor(current*100/required), clamped.
// A non-positive requirement counts as already met.
func PercentageOf(current, required int) Percentage {
	if required <= 0 {
		return 100
	}
	if current <= 0 {
		return 0
	}
	if current >= required {
		return 100
	}
	return Percentage(current * 100 / required)
}

// Int returns the underlying int value.
func (p Percentage) Int() int {
	return int(p)
}
