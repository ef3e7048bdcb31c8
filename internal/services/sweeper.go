package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/SAP-F-2025/exam-engine/internal/cache"
	"github.com/SAP-F-2025/exam-engine/internal/events"
	"github.com/SAP-F-2025/exam-engine/internal/metrics"
	"github.com/SAP-F-2025/exam-engine/internal/models"
	"github.com/SAP-F-2025/exam-engine/internal/repositories"
)

// Sweeper closes open attempts whose deadline has passed. It is safe to run
// on several replicas at once: every close is conditional, and the optional
// lease only saves duplicate work.
type Sweeper struct {
	repo     repositories.Repository
	closer   *attemptCloser
	logger   *slog.Logger
	metrics  *metrics.Metrics
	lock     *cache.LeaseLock
	interval time.Duration
	now      func() time.Time
}

type SweeperOption func(*Sweeper)

// WithLeaseLock makes each cycle run only while holding lock.
func WithLeaseLock(lock *cache.LeaseLock) SweeperOption {
	return func(s *Sweeper) { s.lock = lock }
}

func WithClock(now func() time.Time) SweeperOption {
	return func(s *Sweeper) { s.now = now }
}

func NewSweeper(repo repositories.Repository, logger *slog.Logger, publisher events.EventPublisher, m *metrics.Metrics, interval time.Duration, opts ...SweeperOption) *Sweeper {
	s := &Sweeper{
		repo:     repo,
		closer:   &attemptCloser{publisher: publisher, metrics: m, logger: logger},
		logger:   logger,
		metrics:  m,
		interval: interval,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run sweeps every interval until ctx is cancelled. A failed cycle is
// logged and retried on the next tick.
func (s *Sweeper) Run(ctx context.Context) {
	s.logger.Info("Expiry sweeper started", "interval", s.interval)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Expiry sweeper stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Sweeper) tick(ctx context.Context) {
	if s.lock != nil {
		held, err := s.lock.TryAcquire(ctx)
		if err != nil {
			s.logger.Warn("Sweeper lease unavailable, sweeping anyway", "error", err)
		} else if !held {
			if s.metrics != nil {
				s.metrics.SweepSkipped.Inc()
			}
			return
		} else {
			defer func() {
				if err := s.lock.Release(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, cache.ErrLockNotHeld) {
					s.logger.Warn("Failed to release sweeper lease", "error", err)
				}
			}()
		}
	}

	closed, err := s.SweepOnce(ctx)
	if err != nil {
		if s.metrics != nil {
			s.metrics.SweepFailures.Inc()
		}
		s.logger.Error("Sweep cycle failed", "closed", closed, "error", err)
		return
	}
	if closed > 0 {
		s.logger.Info("Sweep cycle closed attempts", "closed", closed)
	}
}

// SweepOnce runs a single cycle and returns how many attempts it closed.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.interval)
	defer cancel()

	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.SweepDuration.Observe(time.Since(start).Seconds())
		}
	}()

	rows, err := s.repo.Attempt().ListOpenWithExam(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list open attempts: %w", err)
	}
	if s.metrics != nil {
		s.metrics.OpenAttempts.Set(float64(len(rows)))
	}

	now := s.now()
	closed := 0
	var errs []error
	for i := range rows {
		row := &rows[i]
		if !deadlinePassed(openAttemptDeadline(row), now) {
			continue
		}

		won, err := s.closer.close(ctx, s.repo, closeRequest{
			AttemptID: row.AttemptID,
			ExamID:    row.ExamID,
			StudentID: row.StudentID,
			EndDt:     now,
			Reason:    models.CloseReasonExpired,
		})
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if won {
			closed++
		}
	}

	if s.metrics != nil {
		s.metrics.OpenAttempts.Sub(float64(closed))
	}
	return closed, errors.Join(errs...)
}
