package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/SAP-F-2025/exam-engine/internal/events"
	"github.com/SAP-F-2025/exam-engine/internal/metrics"
	"github.com/SAP-F-2025/exam-engine/internal/models"
	"github.com/SAP-F-2025/exam-engine/internal/repositories"
)

// attemptCloser performs the OPEN -> CLOSED transition for both the request
// path and the sweeper. Only the caller whose conditional update wins
// publishes the event and counts the close.
type attemptCloser struct {
	publisher events.EventPublisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

type closeRequest struct {
	AttemptID uint
	ExamID    uint
	StudentID string
	EndDt     time.Time
	Reason    models.CloseReason
	ActorID   string
	ActorRole string
}

func (c *attemptCloser) close(ctx context.Context, repo repositories.Repository, req closeRequest) (bool, error) {
	closed, err := repo.Attempt().CloseIfOpen(ctx, req.AttemptID, req.EndDt, req.Reason)
	if err != nil {
		return false, fmt.Errorf("failed to close attempt %d: %w", req.AttemptID, err)
	}
	if !closed {
		c.logger.Debug("Attempt already closed", "attempt_id", req.AttemptID, "reason", req.Reason)
		return false, nil
	}

	c.metrics.ObserveClose(string(req.Reason))

	eventType := events.AttemptFinished
	if req.Reason == models.CloseReasonExpired {
		eventType = events.AttemptExpired
	}
	publishEvent(ctx, c.publisher, c.logger, events.NewEvent(eventType, req.ActorID, req.ActorRole, map[string]interface{}{
		"attempt_id": req.AttemptID,
		"exam_id":    req.ExamID,
		"student_id": req.StudentID,
		"end_dt":     req.EndDt,
		"reason":     req.Reason,
	}))

	c.logger.Info("Attempt closed",
		"attempt_id", req.AttemptID,
		"student_id", req.StudentID,
		"reason", req.Reason)
	return true, nil
}

// publishEvent is best effort: the state change it reports has already
// committed.
func publishEvent(ctx context.Context, publisher events.EventPublisher, logger *slog.Logger, event *events.Event) {
	if publisher == nil {
		return
	}
	if err := publisher.Publish(ctx, event); err != nil {
		logger.Warn("Failed to publish event", "type", event.Type, "event_id", event.ID, "error", err)
	}
}
