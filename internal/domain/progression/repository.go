package progression

import (
	"context"
	"time"

	"github.com/alem-hub/progression-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// WRITE SIDE
// ══════════════════════════════════════════════════════════════════════════════

// Store открывает транзакции, сериализованные по пользователю.
// Две транзакции одного userID никогда не читают агрегат одновременно:
// реализация обязана держать блокировку на стороне хранилища.
type Store interface {
	// WithinUserTx выполняет fn атомарно. Ошибка fn откатывает все изменения.
	WithinUserTx(ctx context.Context, userID shared.UserID, fn func(ctx context.Context, tx UserTx) error) error
}

// UserTx - операции внутри транзакции одного пользователя.
type UserTx interface {
	// LoadXP возвращает агрегат (NewUserXP, если записи нет).
	LoadXP(ctx context.Context) (UserXP, error)

	// SaveXP сохраняет агрегат.
	SaveXP(ctx context.Context, xp UserXP) error

	// AppendTransaction добавляет запись журнала.
	AppendTransaction(ctx context.Context, t XPTransaction) error

	// LoadStreak возвращает серию; found=false, если записи нет.
	LoadStreak(ctx context.Context) (streak UserStreak, found bool, err error)

	// SaveStreak сохраняет серию.
	SaveStreak(ctx context.Context, streak UserStreak) error

	// LoadDailyGoal возвращает цель на дату; found=false, если записи нет.
	LoadDailyGoal(ctx context.Context, date time.Time) (goal DailyGoal, found bool, err error)

	// SaveDailyGoal сохраняет цель.
	SaveDailyGoal(ctx context.Context, goal DailyGoal) error

	// UnlockedAchievementIDs возвращает уже разблокированные достижения.
	UnlockedAchievementIDs(ctx context.Context) ([]string, error)

	// InsertUserAchievement вставляет разблокировку. Дубликат не ошибка:
	// inserted=false.
	InsertUserAchievement(ctx context.Context, ua UserAchievement) (inserted bool, err error)
}

// ══════════════════════════════════════════════════════════════════════════════
// READ SIDE
// ══════════════════════════════════════════════════════════════════════════════

// LedgerReader читает журнал и агрегаты без блокировок.
type LedgerReader interface {
	// GetUserXP возвращает агрегат; found=false для нового пользователя.
	GetUserXP(ctx context.Context, userID shared.UserID) (xp UserXP, found bool, err error)

	// RecentTransactions возвращает последние записи, новые первыми.
	RecentTransactions(ctx context.Context, userID shared.UserID, limit int) ([]XPTransaction, error)

	// TransactionsSince возвращает записи с момента since, старые первыми.
	TransactionsSince(ctx context.Context, userID shared.UserID, since time.Time) ([]XPTransaction, error)
}

// StreakReader читает серии.
type StreakReader interface {
	GetStreak(ctx context.Context, userID shared.UserID) (streak UserStreak, found bool, err error)
}

// DailyGoalReader читает дневные цели.
type DailyGoalReader interface {
	GetDailyGoal(ctx context.Context, userID shared.UserID, date time.Time) (goal DailyGoal, found bool, err error)
}

// AchievementReader читает разблокировки пользователя.
type AchievementReader interface {
	// ListUserAchievements возвращает разблокировки, новые первыми.
	ListUserAchievements(ctx context.Context, userID shared.UserID) ([]UserAchievement, error)
}

// LeaderboardReader строит страницу рейтинга.
type LeaderboardReader interface {
	Leaderboard(ctx context.Context, q LeaderboardQuery) (LeaderboardPage, error)
}

// ══════════════════════════════════════════════════════════════════════════════
// EXTERNAL COLLABORATORS
// ══════════════════════════════════════════════════════════════════════════════

// Catalog - каталог достижений (только чтение).
type Catalog interface {
	// ListActive возвращает активные достижения.
	ListActive(ctx context.Context) ([]Achievement, error)

	// Get возвращает достижение или shared.ErrAchievementNotFound.
	Get(ctx context.Context, id string) (Achievement, error)
}

// ActivityCounter - счётчики учебной активности из внешних систем
// (прогресс по главам, попытки квизов, завершённые курсы).
type ActivityCounter interface {
	CompletedChapters(ctx context.Context, userID shared.UserID) (int, error)
	CompletedCourses(ctx context.Context, userID shared.UserID) (int, error)
	QuizAttempts(ctx context.Context, userID shared.UserID) (int, error)
	PerfectQuizzes(ctx context.Context, userID shared.UserID) (int, error)
}

// UserDirectory отдаёт отображаемые имена для рейтинга.
type UserDirectory interface {
	DisplayNames(ctx context.Context, userIDs []shared.UserID) (map[shared.UserID]string, error)
}
