package command

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alem-hub/progression-engine/internal/domain/progression"
	"github.com/alem-hub/progression-engine/internal/domain/shared"
	"github.com/alem-hub/progression-engine/internal/infrastructure/persistence/memory"
	"github.com/alem-hub/progression-engine/pkg/timeutil"
)

var day1 = time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)

type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.Event
}

func (p *recordingPublisher) Publish(e shared.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []shared.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]shared.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType())
	}
	return out
}

// flakyStore fails the n-th WithinUserTx call.
type flakyStore struct {
	progression.Store
	failOn int32
	calls  atomic.Int32
	err    error
}

func (f *flakyStore) WithinUserTx(ctx context.Context, userID shared.UserID, fn func(ctx context.Context, tx progression.UserTx) error) error {
	if f.calls.Add(1) == f.failOn {
		return f.err
	}
	return f.Store.WithinUserTx(ctx, userID, fn)
}

type fixture struct {
	store     *memory.Store
	publisher *recordingPublisher
	now       time.Time
	seq       atomic.Int64
	env       Environment
	evaluator *Evaluator
	award     *AwardXPHandler
}

func newFixture(catalog []progression.Achievement) *fixture {
	f := &fixture{
		store:     memory.NewStore(catalog),
		publisher: &recordingPublisher{},
		now:       day1,
	}
	f.env = Environment{
		Publisher: f.publisher,
		Calendar:  timeutil.UTCCalendar(),
		Clock:     func() time.Time { return f.now },
		NewID:     func() string { return fmt.Sprintf("tx-%d", f.seq.Add(1)) },
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Policy:    DefaultPolicy(),
	}
	f.rebuild(f.store)
	return f
}

func (f *fixture) rebuild(store progression.Store) {
	f.evaluator = NewEvaluator(store, f.store, f.store, f.store, f.env)
	f.award = NewAwardXPHandler(store, f.evaluator, f.env)
}

func (f *fixture) totalXP(userID shared.UserID) int {
	agg, _, _ := f.store.GetUserXP(context.Background(), userID)
	return agg.TotalXP
}

func memoryCounts(chapters int) memory.ActivityCounts {
	return memory.ActivityCounts{CompletedChapters: chapters}
}
