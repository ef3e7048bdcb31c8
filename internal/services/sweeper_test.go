package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/exam-engine/internal/cache"
	"github.com/SAP-F-2025/exam-engine/internal/events"
	"github.com/SAP-F-2025/exam-engine/internal/models"
)

func TestSweeper_ClosesOnlyExpiredAttempts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	untimed := f.store.addExam(models.Exam{PackID: f.packID, Name: "Practice", StartDt: t0})

	timed, err := f.attempts.Start(ctx, "student-1", f.exam.ID)
	require.NoError(t, err)
	open, err := f.attempts.Start(ctx, "student-2", untimed.ID)
	require.NoError(t, err)

	f.clock.Advance(9 * time.Minute)
	closed, err := f.sweeper.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, closed)

	f.clock.Advance(time.Minute)
	closed, err = f.sweeper.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, closed)

	expired := f.store.attempt(timed.ID)
	assert.Equal(t, models.CloseReasonExpired, *expired.CloseReason)
	assert.True(t, t0.Add(10*time.Minute).Equal(*expired.EndDt))
	assert.True(t, f.store.attempt(open.ID).IsOpen())

	evs := f.publisher.EventsOfType(events.AttemptExpired)
	require.Len(t, evs, 1)
	assert.Equal(t, "", evs[0].ActorID)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.OpenAttempts))

	// A later cycle finds nothing new to do.
	closed, err = f.sweeper.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, closed)
}

func TestSweeper_RacesFinishWithSingleClose(t *testing.T) {
	for i := 0; i < 20; i++ {
		f := newFixture(t)
		ctx := context.Background()
		view, err := f.attempts.Start(ctx, student, f.exam.ID)
		require.NoError(t, err)

		f.clock.Advance(11 * time.Minute)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = f.sweeper.SweepOnce(ctx)
		}()
		go func() {
			defer wg.Done()
			_, _ = f.attempts.Finish(ctx, view.ID, student)
		}()
		wg.Wait()

		closed := f.store.attempt(view.ID)
		require.False(t, closed.IsOpen())
		assert.Equal(t, models.CloseReasonExpired, *closed.CloseReason)

		closes := len(f.publisher.EventsOfType(events.AttemptExpired)) + len(f.publisher.EventsOfType(events.AttemptFinished))
		assert.Equal(t, 1, closes, "iteration %d", i)
		assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.AttemptsClosed.WithLabelValues("expired")))
	}
}

func TestSweeper_SurvivesFailingCycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	view, err := f.attempts.Start(ctx, student, f.exam.ID)
	require.NoError(t, err)
	f.clock.Advance(time.Hour)

	f.store.listOpenErr = errors.New("connection reset")
	f.sweeper.tick(ctx)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.SweepFailures))
	assert.True(t, f.store.attempt(view.ID).IsOpen())

	f.store.listOpenErr = nil
	f.sweeper.tick(ctx)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.SweepFailures))
	assert.False(t, f.store.attempt(view.ID).IsOpen())
}

func TestSweeper_CollectsPerAttemptFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, err := f.attempts.Start(ctx, "student-1", f.exam.ID)
	require.NoError(t, err)
	b, err := f.attempts.Start(ctx, "student-2", f.exam.ID)
	require.NoError(t, err)
	f.clock.Advance(time.Hour)

	f.store.closeErr[a.ID] = errors.New("deadlock detected")
	closed, err := f.sweeper.SweepOnce(ctx)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "deadlock detected")
	assert.Equal(t, 1, closed)
	assert.True(t, f.store.attempt(a.ID).IsOpen())
	assert.False(t, f.store.attempt(b.ID).IsOpen())
}

func TestSweeper_RunStopsOnCancel(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	view, err := f.attempts.Start(ctx, student, f.exam.ID)
	require.NoError(t, err)
	f.clock.Advance(time.Hour)

	sweeper := NewSweeper(f.repo, f.logger, f.publisher, f.metrics, 5*time.Millisecond, WithClock(f.clock.Now))
	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return !f.store.attempt(view.ID).IsOpen() }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestSweeper_SkipsCycleWhenLeaseHeldElsewhere(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	view, err := f.attempts.Start(ctx, student, f.exam.ID)
	require.NoError(t, err)
	f.clock.Advance(time.Hour)

	other := cache.NewLeaseLock(client, "exam-engine:sweeper", time.Minute)
	held, err := other.TryAcquire(ctx)
	require.NoError(t, err)
	require.True(t, held)

	sweeper := NewSweeper(f.repo, f.logger, f.publisher, f.metrics, time.Second,
		WithClock(f.clock.Now),
		WithLeaseLock(cache.NewLeaseLock(client, "exam-engine:sweeper", time.Minute)))

	sweeper.tick(ctx)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.SweepSkipped))
	assert.True(t, f.store.attempt(view.ID).IsOpen())

	require.NoError(t, other.Release(ctx))
	sweeper.tick(ctx)
	assert.False(t, f.store.attempt(view.ID).IsOpen())
	assert.False(t, mr.Exists("exam-engine:sweeper"))
}
