package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"gorm.io/datatypes"

	"github.com/SAP-F-2025/exam-engine/internal/models"
	"github.com/SAP-F-2025/exam-engine/internal/repositories"
)

const activityHandlerName = "activity_recorder"

// ActivityRecorder consumes the activity topic and appends activity log rows.
type ActivityRecorder struct {
	router *message.Router
	repo   repositories.ActivityLogRepository
	logger *slog.Logger
}

func NewActivityRecorder(
	subscriber message.Subscriber,
	topic string,
	repo repositories.ActivityLogRepository,
	wmLogger watermill.LoggerAdapter,
	logger *slog.Logger,
) (*ActivityRecorder, error) {
	router, err := message.NewRouter(message.RouterConfig{}, wmLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to create router: %w", err)
	}

	r := &ActivityRecorder{
		router: router,
		repo:   repo,
		logger: logger,
	}
	router.AddNoPublisherHandler(activityHandlerName, topic, subscriber, r.Handle)
	return r, nil
}

// Run blocks until ctx is cancelled or the router is closed.
func (r *ActivityRecorder) Run(ctx context.Context) error {
	return r.router.Run(ctx)
}

func (r *ActivityRecorder) Running() chan struct{} {
	return r.router.Running()
}

func (r *ActivityRecorder) Close() error {
	return r.router.Close()
}

// Handle stores one event. Undecodable payloads are acked and dropped so a
// poison message cannot stall the topic.
func (r *ActivityRecorder) Handle(msg *message.Message) error {
	var event Event
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		r.logger.Warn("Dropping undecodable activity message", "message_uuid", msg.UUID, "error", err)
		return nil
	}

	if err := r.repo.Create(msg.Context(), ToActivityLog(&event)); err != nil {
		return fmt.Errorf("failed to record activity %s: %w", event.ID, err)
	}
	return nil
}

// ToActivityLog converts an event into its persisted row.
func ToActivityLog(event *Event) *models.ActivityLog {
	details := datatypes.JSONMap{"event_id": event.ID}
	for k, v := range event.Data {
		details[k] = v
	}

	return &models.ActivityLog{
		ActorID:   event.ActorID,
		ActorRole: event.ActorRole,
		Action:    string(event.Type),
		Message:   describe(event),
		Details:   details,
		LogDt:     event.Timestamp,
	}
}

func describe(event *Event) string {
	actor := event.ActorID
	if actor == "" {
		actor = "system"
	}

	switch event.Type {
	case AttemptStarted:
		return fmt.Sprintf("%s started attempt %v on exam %v", actor, event.Data["attempt_id"], event.Data["exam_id"])
	case AttemptFinished:
		return fmt.Sprintf("%s finished attempt %v", actor, event.Data["attempt_id"])
	case AttemptExpired:
		return fmt.Sprintf("attempt %v expired", event.Data["attempt_id"])
	case QuestionCreated:
		return fmt.Sprintf("%s added question %v to pack %v", actor, event.Data["question_id"], event.Data["pack_id"])
	case QuestionDeleted:
		return fmt.Sprintf("%s deleted question %v from pack %v", actor, event.Data["question_id"], event.Data["pack_id"])
	case QuestionMoved:
		return fmt.Sprintf("%s moved question %v %v", actor, event.Data["question_id"], event.Data["direction"])
	case PackReindexed:
		return fmt.Sprintf("%s reindexed pack %v", actor, event.Data["pack_id"])
	case ExamArchiveToggled:
		return fmt.Sprintf("%s set exam %v archived=%v", actor, event.Data["exam_id"], event.Data["archived"])
	default:
		return string(event.Type)
	}
}
