package progression

import "math"

// ══════════════════════════════════════════════════════════════════════════════
// LEVELING
// ══════════════════════════════════════════════════════════════════════════════

// XPPerLevelUnit - множитель квадратичной кривой уровней.
const XPPerLevelUnit = 100

// XPForLevel возвращает накопленный XP, необходимый для уровня L: L² × 100.
// Для L <= 0 возвращает 0.
func XPForLevel(level int) int {
	if level <= 0 {
		return 0
	}
	return level * level * XPPerLevelUnit
}

// LevelFromTotalXP возвращает floor(sqrt(T / 100)) + 1.
// Отрицательный T трактуется как 0.
func LevelFromTotalXP(totalXP int) int {
	if totalXP <= 0 {
		return 1
	}
	// floor(sqrt(x)) == floor(sqrt(floor(x))) для x >= 0.
	return isqrt(totalXP/XPPerLevelUnit) + 1
}

// CurrentLevelXP возвращает XP, набранный внутри уровня: T - XPForLevel(L-1).
func CurrentLevelXP(totalXP, level int) int {
	return totalXP - XPForLevel(level-1)
}

// XPToNextLevel возвращает XP, оставшийся до следующего уровня.
func XPToNextLevel(totalXP, level int) int {
	span := XPForLevel(level) - XPForLevel(level-1)
	return span - CurrentLevelXP(totalXP, level)
}

// LevelProgress - производные от общего XP значения.
type LevelProgress struct {
	// TotalXP - общий XP.
	TotalXP int `json:"totalXP"`

	// Level - текущий уровень (>= 1).
	Level int `json:"level"`

	// CurrentLevelXP - XP внутри текущего уровня.
	CurrentLevelXP int `json:"currentLevelXP"`

	// XPToNextLevel - сколько XP осталось до следующего уровня.
	XPToNextLevel int `json:"xpToNextLevel"`

	// LevelSpan - ширина текущего уровня в XP.
	LevelSpan int `json:"levelSpan"`
}

// ProgressFor вычисляет LevelProgress для общего XP.
func ProgressFor(totalXP int) LevelProgress {
	if totalXP < 0 {
		totalXP = 0
	}
	level := LevelFromTotalXP(totalXP)
	return LevelProgress{
		TotalXP:        totalXP,
		Level:          level,
		CurrentLevelXP: CurrentLevelXP(totalXP, level),
		XPToNextLevel:  XPToNextLevel(totalXP, level),
		LevelSpan:      XPForLevel(level) - XPForLevel(level-1),
	}
}

// isqrt - целочисленный квадратный корень с коррекцией погрешности float64.
func isqrt(n int) int {
	if n <= 0 {
		return 0
	}
	r := int(math.Sqrt(float64(n)))
	for r*r > n {
		r--
	}
	for (r+1)*(r+1) <= n {
		r++
	}
	return r
}
