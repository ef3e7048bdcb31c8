package services

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/SAP-F-2025/exam-engine/internal/events"
	"github.com/SAP-F-2025/exam-engine/internal/metrics"
	"github.com/SAP-F-2025/exam-engine/internal/models"
	"github.com/SAP-F-2025/exam-engine/internal/validator"
)

var t0 = time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	store     *fakeStore
	repo      *fakeRepo
	clock     *testClock
	publisher *events.MockEventPublisher
	metrics   *metrics.Metrics
	logger    *slog.Logger

	attempts  *attemptService
	questions QuestionService
	exams     *examService
	sweeper   *Sweeper

	packID uint
	q      []models.Question
	exam   models.Exam
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func int64Ptr(v int64) *int64 { return &v }

// newFixture seeds a pack of three questions and one exam that opens at t0
// with a ten minute limit:
//
//	q1: single select, first answer correct
//	q2: multi select, first two answers correct
//	q3: single select, second answer correct
func newFixture(t *testing.T, configure ...func(*models.Exam)) *fixture {
	t.Helper()

	logger := testLogger()
	store := newFakeStore()
	f := &fixture{
		store:     store,
		repo:      store.repo(),
		clock:     &testClock{now: t0},
		publisher: events.NewMockEventPublisher(logger),
		metrics:   metrics.NewMetrics(prometheus.NewRegistry()),
		logger:    logger,
	}

	f.packID = store.addPack("Networking basics")
	f.q = []models.Question{
		store.addQuestion(f.packID, 1, true, false, false),
		store.addQuestion(f.packID, 2, true, true, false),
		store.addQuestion(f.packID, 3, false, true),
	}

	exam := models.Exam{
		PackID:           f.packID,
		ProctorID:        "proctor-1",
		Name:             "Midterm",
		StartDt:          t0,
		TimeLimitSeconds: int64Ptr(600),
		ShowScore:        true,
	}
	for _, fn := range configure {
		fn(&exam)
	}
	f.exam = store.addExam(exam)

	f.attempts = newAttemptService(f.repo, logger, f.publisher, f.metrics, f.clock.Now)
	f.questions = NewQuestionService(f.repo, logger, validator.New(), f.publisher)
	f.exams = newExamService(f.repo, logger, f.publisher, f.clock.Now)
	f.sweeper = NewSweeper(f.repo, logger, f.publisher, f.metrics, time.Second, WithClock(f.clock.Now))
	return f
}

// answer returns the id of the i-th answer of question q.
func (f *fixture) answer(q, i int) uint {
	return f.q[q].Answers[i].ID
}

var proctor = models.Identity{ID: "proctor-1", DisplayName: "Proctor", Role: models.RoleProctor}
