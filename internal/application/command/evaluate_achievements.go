package command

import (
	"context"
	"fmt"
	"time"

	"github.com/alem-hub/progression-engine/internal/domain/progression"
	"github.com/alem-hub/progression-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENT EVALUATOR
// Runs unlock checks to a fixed point with an explicit work-list. Each unlock
// with a reward appends a ledger row in the same transaction as the unlock
// row and enqueues a new "achievement" evaluation carrying the new totals.
// The unlocked set only grows, so the list drains after at most one pass per
// catalog entry.
// ══════════════════════════════════════════════════════════════════════════════

// UnlockedAchievement is one unlock produced by an evaluation chain.
type UnlockedAchievement struct {
	Achievement progression.Achievement `json:"achievement"`
	UnlockedAt  time.Time               `json:"unlockedAt"`

	// Reward - итог начисления награды (nil, если награда 0).
	Reward *progression.AwardOutcome `json:"reward,omitempty"`
}

// EvaluationResult is the outcome of EvaluateAndAward.
type EvaluationResult struct {
	Unlocked []UnlockedAchievement `json:"unlocked"`
	Failures []CascadeFailure      `json:"failures,omitempty"`

	// FinalTotals - итоги последнего начисления в цепочке.
	FinalTotals progression.EventContext `json:"-"`
}

// Evaluator checks conditions and records unlocks.
type Evaluator struct {
	store    progression.Store
	catalog  progression.Catalog
	activity progression.ActivityCounter
	streaks  progression.StreakReader
	env      Environment
}

// NewEvaluator creates a new Evaluator. activity may be nil when no
// learning counters are available; such conditions then never match.
func NewEvaluator(
	store progression.Store,
	catalog progression.Catalog,
	activity progression.ActivityCounter,
	streaks progression.StreakReader,
	env Environment,
) *Evaluator {
	return &Evaluator{
		store:    store,
		catalog:  catalog,
		activity: activity,
		streaks:  streaks,
		env:      env.withDefaults(),
	}
}

type evaluation struct {
	event progression.EventType
	ctx   progression.EventContext
}

// EvaluateAndAward evaluates every relevant, not yet unlocked achievement
// and unlocks those whose condition holds. Errors for a single achievement
// are collected in Failures; only failures to read the catalog or the
// unlocked set are returned.
func (e *Evaluator) EvaluateAndAward(ctx context.Context, userID shared.UserID, event progression.EventType, eventCtx progression.EventContext) (*EvaluationResult, error) {
	if !userID.IsValid() {
		return nil, fmt.Errorf("evaluate_achievements: %w", shared.ErrInvalidUserID)
	}
	if !event.IsValid() {
		return nil, fmt.Errorf("evaluate_achievements: unknown event type %q: %w", event, shared.ErrInvalidInput)
	}

	catalog, err := e.catalog.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("evaluate_achievements: failed to load catalog: %w", err)
	}

	unlocked, err := e.loadUnlocked(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("evaluate_achievements: failed to load unlocked set: %w", err)
	}

	result := &EvaluationResult{Unlocked: []UnlockedAchievement{}, FinalTotals: eventCtx}
	counters := newCounterCache(e.activity, e.streaks, userID)
	attempted := make(map[string]bool, len(catalog))

	queue := []evaluation{{event: event, ctx: eventCtx}}
	budget := len(catalog) + 1

	for steps := 0; len(queue) > 0 && steps < budget; steps++ {
		current := queue[0]
		queue = queue[1:]

		for _, a := range catalog {
			if unlocked.Has(a.ID) || attempted[a.ID] {
				continue
			}
			if !a.Condition.RelevantTo(current.event, current.ctx) {
				continue
			}

			ok, err := counters.satisfied(ctx, a.Condition, current.ctx)
			if err != nil {
				attempted[a.ID] = true
				result.Failures = append(result.Failures, e.failure(ctx, userID, a.ID, "condition", err))
				continue
			}
			if !ok {
				continue
			}

			attempted[a.ID] = true
			unlock, inserted, err := e.unlock(ctx, userID, a)
			if err != nil {
				result.Failures = append(result.Failures, e.failure(ctx, userID, a.ID, "unlock", err))
				continue
			}
			unlocked.Add(a.ID)
			if !inserted {
				// Concurrent chain already unlocked it.
				continue
			}

			result.Unlocked = append(result.Unlocked, unlock)
			if unlock.Reward != nil {
				next := progression.ContextFromOutcome(a.ID, *unlock.Reward)
				result.FinalTotals = next
				queue = append(queue, evaluation{event: progression.EventAchievement, ctx: next})
			}
		}
	}

	if len(queue) > 0 {
		e.env.Logger.ErrorContext(ctx, "achievement work-list did not drain",
			"user_id", userID,
			"pending", len(queue),
		)
	}

	return result, nil
}

func (e *Evaluator) loadUnlocked(ctx context.Context, userID shared.UserID) (progression.UnlockedSet, error) {
	var ids []string
	err := e.store.WithinUserTx(ctx, userID, func(ctx context.Context, tx progression.UserTx) error {
		var err error
		ids, err = tx.UnlockedAchievementIDs(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return progression.NewUnlockedSet(ids), nil
}

// unlock inserts the unlock row and applies the reward in one transaction.
func (e *Evaluator) unlock(ctx context.Context, userID shared.UserID, a progression.Achievement) (UnlockedAchievement, bool, error) {
	now := e.env.Clock()

	var (
		rec      progression.XPTransaction
		out      progression.AwardOutcome
		inserted bool
		rewarded bool
	)
	err := e.store.WithinUserTx(ctx, userID, func(ctx context.Context, tx progression.UserTx) error {
		var err error
		inserted, err = tx.InsertUserAchievement(ctx, progression.UserAchievement{
			UserID:        userID,
			AchievementID: a.ID,
			UnlockedAt:    now,
		})
		if err != nil || !inserted || a.XPReward <= 0 {
			return err
		}

		award := progression.Award{
			UserID:     userID,
			Amount:     a.XPReward,
			Reason:     "Achievement: " + a.Name,
			SourceType: progression.SourceAchievement,
			SourceID:   a.ID,
		}
		rec = progression.NewXPTransaction(e.env.NewID(), award, now)
		out, err = applyAward(ctx, tx, award, rec)
		rewarded = err == nil
		return err
	})
	if err != nil {
		return UnlockedAchievement{}, false, err
	}

	unlock := UnlockedAchievement{Achievement: a, UnlockedAt: now}
	if !inserted {
		return unlock, false, nil
	}

	events := []shared.Event{shared.NewAchievementUnlockedEvent(userID.String(), a.ID, a.Name, a.XPReward, now)}
	if rewarded {
		reward := out
		unlock.Reward = &reward
		events = append(events, awardEvents(rec, out)...)
	}
	e.env.publish(ctx, events...)

	e.env.Logger.InfoContext(ctx, "achievement unlocked",
		"user_id", userID,
		"achievement_id", a.ID,
		"xp_reward", a.XPReward,
	)
	return unlock, true, nil
}

func (e *Evaluator) failure(ctx context.Context, userID shared.UserID, achievementID, stage string, err error) CascadeFailure {
	e.env.Logger.WarnContext(ctx, "achievement cascade step failed",
		"user_id", userID,
		"achievement_id", achievementID,
		"stage", stage,
		"error", err,
	)
	return CascadeFailure{Stage: "achievement_" + stage, AchievementID: achievementID, Error: err.Error()}
}

// ══════════════════════════════════════════════════════════════════════════════
// CONDITION COUNTERS
// ══════════════════════════════════════════════════════════════════════════════

// counterCache reads each live counter at most once per evaluation chain.
type counterCache struct {
	activity progression.ActivityCounter
	streaks  progression.StreakReader
	userID   shared.UserID
	values   map[progression.ConditionType]int
}

func newCounterCache(activity progression.ActivityCounter, streaks progression.StreakReader, userID shared.UserID) *counterCache {
	return &counterCache{
		activity: activity,
		streaks:  streaks,
		userID:   userID,
		values:   make(map[progression.ConditionType]int),
	}
}

func (c *counterCache) satisfied(ctx context.Context, cond progression.Condition, ev progression.EventContext) (bool, error) {
	var snapshot progression.ProgressSnapshot

	switch cond.Type {
	case progression.ConditionLevel:
		snapshot.Level = ev.NewLevel
	case progression.ConditionTotalXP:
		snapshot.TotalXP = ev.NewTotalXP
	default:
		v, err := c.value(ctx, cond.Type)
		if err != nil {
			return false, err
		}
		switch cond.Type {
		case progression.ConditionChapterCompletion:
			snapshot.CompletedChapters = v
		case progression.ConditionCourseCompletion:
			snapshot.CompletedCourses = v
		case progression.ConditionQuizCompletion:
			snapshot.QuizAttempts = v
		case progression.ConditionPerfectQuiz:
			snapshot.PerfectQuizzes = v
		case progression.ConditionStreak:
			snapshot.CurrentStreak = v
		}
	}

	return cond.IsSatisfied(snapshot), nil
}

func (c *counterCache) value(ctx context.Context, ct progression.ConditionType) (int, error) {
	if v, ok := c.values[ct]; ok {
		return v, nil
	}

	var (
		v   int
		err error
	)
	switch ct {
	case progression.ConditionStreak:
		if c.streaks != nil {
			var st progression.UserStreak
			st, _, err = c.streaks.GetStreak(ctx, c.userID)
			v = st.CurrentStreak
		}
	case progression.ConditionChapterCompletion, progression.ConditionCourseCompletion,
		progression.ConditionQuizCompletion, progression.ConditionPerfectQuiz:
		if c.activity != nil {
			v, err = countActivity(ctx, c.activity, c.userID, ct)
		}
	default:
		return 0, shared.ErrInvalidCondition
	}
	if err != nil {
		return 0, err
	}

	c.values[ct] = v
	return v, nil
}

func countActivity(ctx context.Context, a progression.ActivityCounter, userID shared.UserID, ct progression.ConditionType) (int, error) {
	switch ct {
	case progression.ConditionChapterCompletion:
		return a.CompletedChapters(ctx, userID)
	case progression.ConditionCourseCompletion:
		return a.CompletedCourses(ctx, userID)
	case progression.ConditionQuizCompletion:
		return a.QuizAttempts(ctx, userID)
	case progression.ConditionPerfectQuiz:
		return a.PerfectQuizzes(ctx, userID)
	default:
		return 0, shared.ErrInvalidCondition
	}
}
