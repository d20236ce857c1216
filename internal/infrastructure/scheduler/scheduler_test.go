package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	name  string
	runs  atomic.Int32
	err   error
	block chan struct{}
}

func (j *countingJob) Name() string        { return j.name }
func (j *countingJob) Description() string { return "test job " + j.name }

func (j *countingJob) Run(ctx context.Context) error {
	j.runs.Add(1)
	if j.block != nil {
		select {
		case <-j.block:
		case <-ctx.Done():
		}
	}
	return j.err
}

func TestScheduler_Register(t *testing.T) {
	s := NewScheduler(SchedulerConfig{})
	job := &countingJob{name: "a"}

	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Minute)))
	assert.ErrorIs(t, s.Register(job, NewIntervalSchedule(time.Minute)), ErrJobAlreadyExists)
	assert.ErrorIs(t, s.Register(nil, NewIntervalSchedule(time.Minute)), ErrNilJob)
	assert.ErrorIs(t, s.Register(&countingJob{name: "b"}, nil), ErrNilSchedule)
	assert.ErrorIs(t, s.SetEnabled("missing", true), ErrJobNotFound)

	infos := s.ListJobs()
	require.Len(t, infos, 1)
	assert.Equal(t, "@every 1m0s", infos[0].Schedule)
	assert.True(t, infos[0].Enabled)
}

func TestScheduler_RunNow(t *testing.T) {
	s := NewScheduler(SchedulerConfig{})
	boom := errors.New("boom")
	job := &countingJob{name: "failing", err: boom}
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Hour)))

	var mu sync.Mutex
	var failed []string
	s.OnJobError(func(name string, err error) {
		mu.Lock()
		defer mu.Unlock()
		failed = append(failed, name)
	})

	result, err := s.RunNow(context.Background(), "failing")
	assert.ErrorIs(t, err, boom)
	assert.False(t, result.Success)
	assert.True(t, result.Manual)
	assert.Equal(t, int32(1), job.runs.Load())
	assert.Equal(t, []string{"failing"}, failed)

	history := s.GetHistory(0)
	require.Len(t, history, 1)
	assert.Equal(t, "failing", history[0].JobName)

	_, err = s.RunNow(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestScheduler_RunsDueJobs(t *testing.T) {
	s := NewScheduler(SchedulerConfig{TickInterval: 5 * time.Millisecond})
	job := &countingJob{name: "tick"}
	require.NoError(t, s.Register(job, NewImmediateIntervalSchedule(10*time.Millisecond)))

	require.NoError(t, s.Start(context.Background()))
	assert.ErrorIs(t, s.Start(context.Background()), ErrSchedulerAlreadyRunning)

	assert.Eventually(t, func() bool { return job.runs.Load() >= 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())
	assert.ErrorIs(t, s.Stop(), ErrSchedulerNotRunning)
}

func TestScheduler_DoesNotOverlapRuns(t *testing.T) {
	s := NewScheduler(SchedulerConfig{TickInterval: 2 * time.Millisecond})
	job := &countingJob{name: "slow", block: make(chan struct{})}
	require.NoError(t, s.Register(job, NewImmediateIntervalSchedule(time.Millisecond)))

	require.NoError(t, s.Start(context.Background()))
	assert.Eventually(t, func() bool { return job.runs.Load() == 1 }, time.Second, 2*time.Millisecond)

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(1), job.runs.Load())
	assert.True(t, s.ListJobs()[0].Running)

	close(job.block)
	require.NoError(t, s.Stop())
}

func TestScheduler_DisabledJobDoesNotRun(t *testing.T) {
	s := NewScheduler(SchedulerConfig{TickInterval: 2 * time.Millisecond})
	job := &countingJob{name: "off"}
	require.NoError(t, s.Register(job, NewImmediateIntervalSchedule(time.Millisecond)))
	require.NoError(t, s.SetEnabled("off", false))

	require.NoError(t, s.Start(context.Background()))
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, s.Stop())

	assert.Zero(t, job.runs.Load())
}

func TestCronExpression(t *testing.T) {
	base := time.Date(2026, 3, 20, 23, 58, 30, 0, time.UTC) // Friday

	tests := []struct {
		expr string
		want time.Time
	}{
		{EveryMinute, time.Date(2026, 3, 20, 23, 59, 0, 0, time.UTC)},
		{Every5Minutes, time.Date(2026, 3, 21, 0, 0, 0, 0, time.UTC)},
		{EveryDayMidnight, time.Date(2026, 3, 21, 0, 0, 0, 0, time.UTC)},
		{EveryMonday, time.Date(2026, 3, 23, 0, 0, 0, 0, time.UTC)},
		{FirstOfMonth, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)},
		{"15 9-17/4 * * 1-5", time.Date(2026, 3, 23, 9, 15, 0, 0, time.UTC)},
		{"0,30 12 * * *", time.Date(2026, 3, 21, 12, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			ce, err := ParseCronExpression(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ce.Next(base))
			assert.Equal(t, tt.expr, ce.String())
		})
	}
}

func TestCronExpression_UsesLocationOfInput(t *testing.T) {
	almaty := time.FixedZone("ALMT", 5*60*60)
	ce := MustParseCronExpression(EveryDayMidnight)

	next := ce.Next(time.Date(2026, 3, 20, 18, 0, 0, 0, time.UTC).In(almaty))
	assert.Equal(t, time.Date(2026, 3, 20, 19, 0, 0, 0, time.UTC), next.UTC())
}

func TestParseCronExpression_Invalid(t *testing.T) {
	for _, expr := range []string{
		"* * * *",
		"60 * * * *",
		"*/0 * * * *",
		"5-1 * * * *",
		"a * * * *",
		"* * 0 * *",
		"1,x * * * *",
	} {
		_, err := ParseCronExpression(expr)
		assert.Error(t, err, expr)
	}
}
