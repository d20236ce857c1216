// Package memory implements the progression ports in process memory.
// It is used by tests and by the engine when no DATABASE_URL is configured.
// Per-user transactions hold a per-user mutex and stage writes until commit,
// so a failed transaction leaves no trace.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/alem-hub/progression-engine/internal/domain/progression"
	"github.com/alem-hub/progression-engine/internal/domain/shared"
)

// ActivityCounts are the externally tracked learning counters of a user.
type ActivityCounts struct {
	CompletedChapters int
	CompletedCourses  int
	QuizAttempts      int
	PerfectQuizzes    int
}

type goalKey struct {
	userID shared.UserID
	date   time.Time
}

// Store keeps all progression state in maps guarded by mu.
type Store struct {
	mu sync.RWMutex

	userLocksMu sync.Mutex
	userLocks   map[shared.UserID]*sync.Mutex

	xp           map[shared.UserID]progression.UserXP
	transactions map[shared.UserID][]progression.XPTransaction
	streaks      map[shared.UserID]progression.UserStreak
	goals        map[goalKey]progression.DailyGoal
	unlocks      map[shared.UserID]map[string]time.Time
	catalog      []progression.Achievement
	activity     map[shared.UserID]ActivityCounts
	names        map[shared.UserID]string
}

// NewStore creates an empty store with the given catalog.
func NewStore(catalog []progression.Achievement) *Store {
	return &Store{
		userLocks:    make(map[shared.UserID]*sync.Mutex),
		xp:           make(map[shared.UserID]progression.UserXP),
		transactions: make(map[shared.UserID][]progression.XPTransaction),
		streaks:      make(map[shared.UserID]progression.UserStreak),
		goals:        make(map[goalKey]progression.DailyGoal),
		unlocks:      make(map[shared.UserID]map[string]time.Time),
		catalog:      append([]progression.Achievement(nil), catalog...),
		activity:     make(map[shared.UserID]ActivityCounts),
		names:        make(map[shared.UserID]string),
	}
}

func (s *Store) userLock(userID shared.UserID) *sync.Mutex {
	s.userLocksMu.Lock()
	defer s.userLocksMu.Unlock()

	l, ok := s.userLocks[userID]
	if !ok {
		l = &sync.Mutex{}
		s.userLocks[userID] = l
	}
	return l
}

// ══════════════════════════════════════════════════════════════════════════════
// TRANSACTIONS
// ══════════════════════════════════════════════════════════════════════════════

// WithinUserTx implements progression.Store.
func (s *Store) WithinUserTx(ctx context.Context, userID shared.UserID, fn func(ctx context.Context, tx progression.UserTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	tx := &userTx{store: s, userID: userID, goals: make(map[time.Time]progression.DailyGoal)}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	tx.commit()
	return nil
}

// userTx stages writes; reads fall through to committed state.
type userTx struct {
	store  *Store
	userID shared.UserID

	xp       *progression.UserXP
	appended []progression.XPTransaction
	streak   *progression.UserStreak
	goals    map[time.Time]progression.DailyGoal
	unlocked []progression.UserAchievement
}

func (t *userTx) LoadXP(ctx context.Context) (progression.UserXP, error) {
	if t.xp != nil {
		return *t.xp, nil
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()

	if xp, ok := t.store.xp[t.userID]; ok {
		return xp, nil
	}
	return progression.NewUserXP(t.userID), nil
}

func (t *userTx) SaveXP(ctx context.Context, xp progression.UserXP) error {
	if xp.UserID != t.userID {
		return shared.ErrInvalidUserID
	}
	t.xp = &xp
	return nil
}

func (t *userTx) AppendTransaction(ctx context.Context, rec progression.XPTransaction) error {
	if rec.UserID != t.userID {
		return shared.ErrInvalidUserID
	}
	if rec.Amount == 0 {
		return shared.ErrInvalidAmount
	}
	t.appended = append(t.appended, rec)
	return nil
}

func (t *userTx) LoadStreak(ctx context.Context) (progression.UserStreak, bool, error) {
	if t.streak != nil {
		return *t.streak, true, nil
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()

	st, ok := t.store.streaks[t.userID]
	return st, ok, nil
}

func (t *userTx) SaveStreak(ctx context.Context, st progression.UserStreak) error {
	if st.UserID != t.userID {
		return shared.ErrInvalidUserID
	}
	t.streak = &st
	return nil
}

func (t *userTx) LoadDailyGoal(ctx context.Context, date time.Time) (progression.DailyGoal, bool, error) {
	if g, ok := t.goals[date]; ok {
		return g, true, nil
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()

	g, ok := t.store.goals[goalKey{userID: t.userID, date: date}]
	return g, ok, nil
}

func (t *userTx) SaveDailyGoal(ctx context.Context, g progression.DailyGoal) error {
	if g.UserID != t.userID {
		return shared.ErrInvalidUserID
	}
	t.goals[g.Date] = g
	return nil
}

func (t *userTx) UnlockedAchievementIDs(ctx context.Context) ([]string, error) {
	t.store.mu.RLock()
	ids := make([]string, 0, len(t.store.unlocks[t.userID])+len(t.unlocked))
	for id := range t.store.unlocks[t.userID] {
		ids = append(ids, id)
	}
	t.store.mu.RUnlock()

	for _, ua := range t.unlocked {
		ids = append(ids, ua.AchievementID)
	}
	sort.Strings(ids)
	return ids, nil
}

func (t *userTx) InsertUserAchievement(ctx context.Context, ua progression.UserAchievement) (bool, error) {
	if ua.UserID != t.userID {
		return false, shared.ErrInvalidUserID
	}
	for _, staged := range t.unlocked {
		if staged.AchievementID == ua.AchievementID {
			return false, nil
		}
	}

	t.store.mu.RLock()
	_, exists := t.store.unlocks[t.userID][ua.AchievementID]
	t.store.mu.RUnlock()
	if exists {
		return false, nil
	}

	t.unlocked = append(t.unlocked, ua)
	return true, nil
}

func (t *userTx) commit() {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.xp != nil {
		s.xp[t.userID] = *t.xp
	}
	if len(t.appended) > 0 {
		s.transactions[t.userID] = append(s.transactions[t.userID], t.appended...)
	}
	if t.streak != nil {
		s.streaks[t.userID] = *t.streak
	}
	for date, g := range t.goals {
		s.goals[goalKey{userID: t.userID, date: date}] = g
	}
	if len(t.unlocked) > 0 {
		set, ok := s.unlocks[t.userID]
		if !ok {
			set = make(map[string]time.Time)
			s.unlocks[t.userID] = set
		}
		for _, ua := range t.unlocked {
			if _, dup := set[ua.AchievementID]; !dup {
				set[ua.AchievementID] = ua.UnlockedAt
			}
		}
	}
}
