package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	EventSource  = "exam-engine"
	EventVersion = "1.0"
)

type EventType string

// Attempt lifecycle
const (
	AttemptStarted  EventType = "attempt.started"
	AttemptFinished EventType = "attempt.finished"
	AttemptExpired  EventType = "attempt.expired"
)

// Authoring
const (
	QuestionCreated    EventType = "question.created"
	QuestionDeleted    EventType = "question.deleted"
	QuestionMoved      EventType = "question.moved"
	PackReindexed      EventType = "pack.reindexed"
	ExamArchiveToggled EventType = "exam.archive_toggled"
)

// Event is the envelope written to the activity topic.
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Source    string                 `json:"source"`
	Version   string                 `json:"version"`
	ActorID   string                 `json:"actor_id"`
	ActorRole string                 `json:"actor_role"`
	Timestamp time.Time              `json:"occurred_at"`
	Data      map[string]interface{} `json:"data"`
}

// NewEvent stamps a fresh id and time. An empty actor means the system
// itself, such as the expiry sweeper.
func NewEvent(eventType EventType, actorID, actorRole string, data map[string]interface{}) *Event {
	if data == nil {
		data = map[string]interface{}{}
	}
	return &Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Source:    EventSource,
		Version:   EventVersion,
		ActorID:   actorID,
		ActorRole: actorRole,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

type EventPublisher interface {
	Publish(ctx context.Context, event *Event) error
	Close() error
}
