package services

import (
	"time"

	"github.com/SAP-F-2025/exam-engine/internal/models"
)

// ResolveDeadline returns the instant an attempt must close, or nil when
// neither the exam window nor a per-attempt limit bounds it.
//
// Both bounds are durations counted from attemptStart: the per-attempt limit,
// and the length of the exam window. The tighter one wins.
func ResolveDeadline(windowStart time.Time, windowEnd *time.Time, attemptStart time.Time, limit *time.Duration) *time.Time {
	var duration *time.Duration

	if limit != nil {
		d := *limit
		duration = &d
	}

	if windowEnd != nil {
		window := windowEnd.Sub(windowStart)
		if window < 0 {
			window = 0
		}
		if duration == nil || window < *duration {
			duration = &window
		}
	}

	if duration == nil {
		return nil
	}
	deadline := attemptStart.Add(*duration)
	return &deadline
}

// attemptDeadline resolves the deadline of an attempt against its exam.
func attemptDeadline(exam *models.Exam, attempt *models.Attempt) *time.Time {
	return ResolveDeadline(exam.StartDt, exam.EndDt, attempt.StartDt, exam.TimeLimit())
}

// openAttemptDeadline is the sweeper's variant over the joined row.
func openAttemptDeadline(row *models.OpenAttempt) *time.Time {
	var limit *time.Duration
	if row.TimeLimitSeconds != nil {
		d := time.Duration(*row.TimeLimitSeconds) * time.Second
		limit = &d
	}
	return ResolveDeadline(row.ExamStartDt, row.ExamEndDt, row.StartDt, limit)
}

// deadlinePassed treats the deadline instant itself as expired.
func deadlinePassed(deadline *time.Time, now time.Time) bool {
	return deadline != nil && !now.Before(*deadline)
}
