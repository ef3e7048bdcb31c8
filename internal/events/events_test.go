package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/exam-engine/internal/config"
	"github.com/SAP-F-2025/exam-engine/internal/models"
)

type recordingActivityRepo struct {
	mu      sync.Mutex
	entries []models.ActivityLog
	created chan struct{}
}

func newRecordingActivityRepo() *recordingActivityRepo {
	return &recordingActivityRepo{created: make(chan struct{}, 16)}
}

func (r *recordingActivityRepo) Create(ctx context.Context, entry *models.ActivityLog) error {
	r.mu.Lock()
	r.entries = append(r.entries, *entry)
	r.mu.Unlock()
	r.created <- struct{}{}
	return nil
}

func (r *recordingActivityRepo) ListRecent(ctx context.Context, limit int) ([]models.ActivityLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.ActivityLog(nil), r.entries...), nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewEvent(t *testing.T) {
	event := NewEvent(AttemptStarted, "student-1", "student", map[string]interface{}{"attempt_id": 3})

	assert.NotEmpty(t, event.ID)
	assert.Equal(t, EventSource, event.Source)
	assert.Equal(t, EventVersion, event.Version)
	assert.False(t, event.Timestamp.IsZero())
	assert.Equal(t, 3, event.Data["attempt_id"])

	empty := NewEvent(PackReindexed, "", "", nil)
	assert.NotNil(t, empty.Data)
}

func TestPublisherAndRecorderRoundTrip(t *testing.T) {
	wmLogger := watermill.NewSlogLogger(discardLogger())
	transport, err := NewTransport(config.KafkaConfig{Topic: "exam-engine.activity"}, wmLogger)
	require.NoError(t, err)
	defer transport.Close()

	repo := newRecordingActivityRepo()
	recorder, err := NewActivityRecorder(transport.Subscriber, "exam-engine.activity", repo, wmLogger, discardLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		_ = recorder.Run(ctx)
	}()
	<-recorder.Running()

	publisher := NewWatermillPublisher(transport.Publisher, "exam-engine.activity", discardLogger())
	event := NewEvent(AttemptExpired, "", "", map[string]interface{}{"attempt_id": 42})
	require.NoError(t, publisher.Publish(ctx, event))

	select {
	case <-repo.created:
	case <-time.After(5 * time.Second):
		t.Fatal("activity log was not written")
	}

	entries, err := repo.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, string(AttemptExpired), entries[0].Action)
	assert.Equal(t, "attempt 42 expired", entries[0].Message)
	assert.Equal(t, event.ID, entries[0].Details["event_id"])
}

func TestRecorderDropsUndecodablePayload(t *testing.T) {
	repo := newRecordingActivityRepo()
	ch := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer ch.Close()

	recorder, err := NewActivityRecorder(ch, "topic", repo, watermill.NopLogger{}, discardLogger())
	require.NoError(t, err)

	err = recorder.Handle(message.NewMessage(watermill.NewUUID(), []byte("not json")))
	assert.NoError(t, err)
	assert.Empty(t, repo.entries)
}

func TestToActivityLog(t *testing.T) {
	event := NewEvent(QuestionMoved, "proctor-1", "proctor", map[string]interface{}{
		"question_id": 7,
		"direction":   "to_top",
	})

	entry := ToActivityLog(event)
	assert.Equal(t, "proctor-1", entry.ActorID)
	assert.Equal(t, "proctor", entry.ActorRole)
	assert.Equal(t, "question.moved", entry.Action)
	assert.Equal(t, "proctor-1 moved question 7 to_top", entry.Message)
	assert.Equal(t, event.Timestamp, entry.LogDt)
}

func TestMockEventPublisher(t *testing.T) {
	mock := NewMockEventPublisher(discardLogger())
	ctx := context.Background()

	require.NoError(t, mock.Publish(ctx, NewEvent(AttemptStarted, "s", "student", nil)))
	require.NoError(t, mock.Publish(ctx, NewEvent(AttemptFinished, "s", "student", nil)))
	assert.Len(t, mock.GetPublishedEvents(), 2)
	assert.Len(t, mock.EventsOfType(AttemptFinished), 1)

	boom := errors.New("broker down")
	mock.FailWith(boom)
	assert.ErrorIs(t, mock.Publish(ctx, NewEvent(AttemptExpired, "", "", nil)), boom)

	mock.ClearEvents()
	assert.Empty(t, mock.GetPublishedEvents())
}
