package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/lib/pq"

	"github.com/SAP-F-2025/exam-engine/internal/events"
	"github.com/SAP-F-2025/exam-engine/internal/metrics"
	"github.com/SAP-F-2025/exam-engine/internal/models"
	"github.com/SAP-F-2025/exam-engine/internal/repositories"
)

type attemptService struct {
	repo      repositories.Repository
	logger    *slog.Logger
	publisher events.EventPublisher
	metrics   *metrics.Metrics
	closer    *attemptCloser
	views     attemptViews
	now       func() time.Time
}

func NewAttemptService(repo repositories.Repository, logger *slog.Logger, publisher events.EventPublisher, m *metrics.Metrics) AttemptService {
	return newAttemptService(repo, logger, publisher, m, time.Now)
}

func newAttemptService(repo repositories.Repository, logger *slog.Logger, publisher events.EventPublisher, m *metrics.Metrics, now func() time.Time) *attemptService {
	return &attemptService{
		repo:      repo,
		logger:    logger,
		publisher: publisher,
		metrics:   m,
		closer:    &attemptCloser{publisher: publisher, metrics: m, logger: logger},
		views:     attemptViews{now: now},
		now:       now,
	}
}

// ===== STATE TRANSITIONS =====

func (s *attemptService) Start(ctx context.Context, studentID string, examID uint) (*AttemptView, error) {
	s.logger.Info("Starting attempt", "exam_id", examID, "student_id", studentID)

	exam, err := s.getExam(ctx, examID)
	if err != nil {
		return nil, err
	}

	now := s.now()

	open, err := s.repo.Attempt().ListOpenByStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if len(open) > 1 {
		return nil, NewInvariantViolation("single_open_attempt", "student %s has %d open attempts", studentID, len(open))
	}
	if len(open) == 1 {
		stillOpen, err := s.expireIfDue(ctx, &open[0], now)
		if err != nil {
			return nil, err
		}
		if stillOpen {
			return nil, NewBusinessRuleError(ErrAlreadyOpen, "single_open_attempt",
				"finish your open attempt before starting another one",
				map[string]interface{}{"attempt_id": open[0].ID, "exam_id": open[0].ExamID})
		}
	}

	if now.Before(exam.StartDt) {
		return nil, NewBusinessRuleError(ErrWindowNotStarted, "exam_window",
			fmt.Sprintf("the exam opens at %s", exam.StartDt.UTC().Format(time.RFC3339)),
			map[string]interface{}{"start_dt": exam.StartDt})
	}
	if exam.EndDt != nil && now.After(*exam.EndDt) {
		return nil, NewBusinessRuleError(ErrWindowEnded, "exam_window",
			fmt.Sprintf("the exam closed at %s", exam.EndDt.UTC().Format(time.RFC3339)),
			map[string]interface{}{"end_dt": *exam.EndDt})
	}

	if exam.MaxAttempts > 0 {
		used, err := s.repo.Attempt().CountByStudentAndExam(ctx, studentID, examID)
		if err != nil {
			return nil, err
		}
		if used >= int64(exam.MaxAttempts) {
			return nil, NewBusinessRuleError(ErrAttemptsExhausted, "max_attempts",
				fmt.Sprintf("all %d attempts for this exam have been used", exam.MaxAttempts),
				map[string]interface{}{"max_attempts": exam.MaxAttempts, "used": used})
		}
	}

	attempt := &models.Attempt{
		StudentID:       studentID,
		ExamID:          examID,
		StartDt:         now,
		CurrentQuestion: 1,
	}
	if err := s.repo.Attempt().Create(ctx, attempt); err != nil {
		if errors.Is(err, repositories.ErrOpenAttemptExists) {
			return nil, NewBusinessRuleError(ErrAlreadyOpen, "single_open_attempt",
				"finish your open attempt before starting another one", nil)
		}
		return nil, err
	}

	s.metrics.ObserveStart(examID)
	publishEvent(ctx, s.publisher, s.logger, events.NewEvent(events.AttemptStarted, studentID, string(models.RoleStudent), map[string]interface{}{
		"attempt_id": attempt.ID,
		"exam_id":    examID,
	}))

	s.logger.Info("Attempt started", "attempt_id", attempt.ID, "exam_id", examID, "student_id", studentID)
	return s.views.build(ctx, s.repo, attempt, exam, false)
}

func (s *attemptService) Navigate(ctx context.Context, attemptID uint, studentID string, rank int) (*QuestionNavView, error) {
	attempt, exam, err := s.loadOwned(ctx, attemptID, studentID, "navigate")
	if err != nil {
		return nil, err
	}
	if !attempt.IsOpen() {
		return nil, ErrAttemptNotOpen
	}

	count, err := s.repo.Question().CountByPack(ctx, exam.PackID)
	if err != nil {
		return nil, err
	}
	target := clampRank(rank, count)

	updated, err := s.repo.Attempt().UpdateCurrentQuestion(ctx, attemptID, target)
	if err != nil {
		return nil, err
	}
	if !updated {
		return nil, ErrAttemptNotOpen
	}
	attempt.CurrentQuestion = target

	s.logger.Debug("Attempt navigated", "attempt_id", attemptID, "requested", rank, "rank", target)
	return s.views.nav(ctx, s.repo, attempt, exam)
}

// errDeadlinePassed aborts an answer transaction so the attempt can be
// closed outside of it.
var errDeadlinePassed = errors.New("deadline passed")

func (s *attemptService) SubmitAnswer(ctx context.Context, attemptID uint, studentID string, answerIDs []uint) (*QuestionView, error) {
	attempt, exam, err := s.loadOwned(ctx, attemptID, studentID, "submit_answer")
	if err != nil {
		return nil, err
	}
	if !attempt.IsOpen() {
		return nil, ErrAttemptNotOpen
	}

	now := s.now()
	var view *QuestionView
	err = s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		locked, err := tx.Attempt().LockOpen(ctx, attemptID)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return ErrAttemptNotOpen
			}
			return err
		}
		if deadlinePassed(attemptDeadline(exam, locked), now) {
			return errDeadlinePassed
		}

		question, err := questionAtRank(ctx, tx, exam.PackID, locked.CurrentQuestion)
		if err != nil {
			return err
		}

		chosen, err := normalizeSelection(question, answerIDs)
		if err != nil {
			return err
		}

		stored := make(pq.Int64Array, 0, len(chosen))
		for _, id := range chosen {
			stored = append(stored, int64(id))
		}
		if err := tx.TempAnswer().Upsert(ctx, &models.TempAnswer{
			AttemptID:     attemptID,
			QuestionID:    question.ID,
			ChosenAnswers: stored,
			UpdatedAt:     now,
		}); err != nil {
			return err
		}

		count, err := tx.Question().CountByPack(ctx, exam.PackID)
		if err != nil {
			return err
		}
		view = questionView(attemptID, question, count, chosen)
		return nil
	})

	if errors.Is(err, errDeadlinePassed) {
		if _, err := s.expireIfDue(ctx, attempt, now); err != nil {
			return nil, err
		}
		return nil, ErrAttemptNotOpen
	}
	if err != nil {
		return nil, err
	}

	s.logger.Debug("Answer stored", "attempt_id", attemptID, "question_id", view.QuestionID, "selected", len(view.Selected))
	return view, nil
}

// Finish is idempotent: a closed attempt is returned unchanged. Finishing
// after the deadline records the close as expired.
func (s *attemptService) Finish(ctx context.Context, attemptID uint, studentID string) (*AttemptView, error) {
	attempt, exam, err := s.loadOwned(ctx, attemptID, studentID, "finish")
	if err != nil {
		return nil, err
	}

	if attempt.IsOpen() {
		now := s.now()
		reason := models.CloseReasonFinished
		if deadlinePassed(attemptDeadline(exam, attempt), now) {
			reason = models.CloseReasonExpired
		}

		if _, err := s.closer.close(ctx, s.repo, closeRequest{
			AttemptID: attempt.ID,
			ExamID:    exam.ID,
			StudentID: studentID,
			EndDt:     now,
			Reason:    reason,
			ActorID:   studentID,
			ActorRole: string(models.RoleStudent),
		}); err != nil {
			return nil, err
		}

		if attempt, err = s.getAttempt(ctx, attemptID); err != nil {
			return nil, err
		}
	}

	return s.views.build(ctx, s.repo, attempt, exam, exam.ShowScore)
}

// ===== READS =====

func (s *attemptService) Get(ctx context.Context, attemptID uint, studentID string) (*AttemptView, error) {
	attempt, exam, err := s.loadOwned(ctx, attemptID, studentID, "read")
	if err != nil {
		return nil, err
	}
	return s.views.build(ctx, s.repo, attempt, exam, exam.ShowScore)
}

func (s *attemptService) Current(ctx context.Context, studentID string) (*AttemptView, error) {
	open, err := s.repo.Attempt().ListOpenByStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	switch len(open) {
	case 0:
		return nil, ErrAttemptNotFound
	case 1:
	default:
		return nil, NewInvariantViolation("single_open_attempt", "student %s has %d open attempts", studentID, len(open))
	}

	stillOpen, err := s.expireIfDue(ctx, &open[0], s.now())
	if err != nil {
		return nil, err
	}
	if !stillOpen {
		return nil, ErrAttemptNotFound
	}

	exam, err := s.getExam(ctx, open[0].ExamID)
	if err != nil {
		return nil, err
	}
	return s.views.build(ctx, s.repo, &open[0], exam, false)
}

func (s *attemptService) History(ctx context.Context, studentID string) ([]AttemptView, error) {
	attempts, err := s.repo.Attempt().ListByStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}

	exams := make(map[uint]*models.Exam)
	views := make([]AttemptView, 0, len(attempts))
	for i := range attempts {
		attempt := &attempts[i]
		exam, ok := exams[attempt.ExamID]
		if !ok {
			if exam, err = s.getExam(ctx, attempt.ExamID); err != nil {
				return nil, err
			}
			exams[attempt.ExamID] = exam
		}

		view, err := s.views.build(ctx, s.repo, attempt, exam, exam.ShowScore && !attempt.IsOpen())
		if err != nil {
			return nil, err
		}
		views = append(views, *view)
	}
	return views, nil
}

func (s *attemptService) Questions(ctx context.Context, attemptID uint, studentID string) (*QuestionNavView, error) {
	attempt, exam, err := s.loadOwned(ctx, attemptID, studentID, "read")
	if err != nil {
		return nil, err
	}
	return s.views.nav(ctx, s.repo, attempt, exam)
}

func (s *attemptService) CurrentQuestion(ctx context.Context, attemptID uint, studentID string) (*QuestionView, error) {
	attempt, exam, err := s.loadOwned(ctx, attemptID, studentID, "read")
	if err != nil {
		return nil, err
	}
	if !attempt.IsOpen() {
		return nil, ErrAttemptNotOpen
	}

	question, err := questionAtRank(ctx, s.repo, exam.PackID, attempt.CurrentQuestion)
	if err != nil {
		return nil, err
	}

	count, err := s.repo.Question().CountByPack(ctx, exam.PackID)
	if err != nil {
		return nil, err
	}

	stored, err := s.repo.TempAnswer().ListByAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	var selected []uint
	for _, ta := range stored {
		if ta.QuestionID != question.ID {
			continue
		}
		for _, id := range ta.ChosenAnswers {
			selected = append(selected, uint(id))
		}
	}

	return questionView(attemptID, question, count, selected), nil
}

// Score may be read while the attempt is still open.
func (s *attemptService) Score(ctx context.Context, attemptID uint, studentID string) (*ScoreView, error) {
	attempt, exam, err := s.loadOwned(ctx, attemptID, studentID, "score")
	if err != nil {
		return nil, err
	}
	if !exam.ShowScore {
		return nil, NewBusinessRuleError(ErrScoreHidden, "show_score", "the proctor has not released scores for this exam", nil)
	}

	count, err := s.repo.Question().CountByPack(ctx, exam.PackID)
	if err != nil {
		return nil, err
	}
	return s.views.score(ctx, s.repo, attempt.ID, count)
}

// ===== HELPERS =====

// loadOwned reads the attempt and its exam, enforces ownership, and closes
// the attempt first if its deadline has already passed.
func (s *attemptService) loadOwned(ctx context.Context, attemptID uint, studentID, action string) (*models.Attempt, *models.Exam, error) {
	attempt, err := s.getAttempt(ctx, attemptID)
	if err != nil {
		return nil, nil, err
	}
	if attempt.StudentID != studentID {
		return nil, nil, NewPermissionError(studentID, attemptID, "attempt", action, "not owned by student")
	}

	exam, err := s.getExam(ctx, attempt.ExamID)
	if err != nil {
		return nil, nil, err
	}

	if attempt.IsOpen() {
		stillOpen, err := s.expireIfDue(ctx, attempt, s.now())
		if err != nil {
			return nil, nil, err
		}
		if !stillOpen {
			if attempt, err = s.getAttempt(ctx, attemptID); err != nil {
				return nil, nil, err
			}
		}
	}
	return attempt, exam, nil
}

// expireIfDue closes an open attempt whose deadline has passed and reports
// whether it is still open.
func (s *attemptService) expireIfDue(ctx context.Context, attempt *models.Attempt, now time.Time) (bool, error) {
	exam, err := s.getExam(ctx, attempt.ExamID)
	if err != nil {
		return false, err
	}
	if !deadlinePassed(attemptDeadline(exam, attempt), now) {
		return true, nil
	}

	if _, err := s.closer.close(ctx, s.repo, closeRequest{
		AttemptID: attempt.ID,
		ExamID:    attempt.ExamID,
		StudentID: attempt.StudentID,
		EndDt:     now,
		Reason:    models.CloseReasonExpired,
	}); err != nil {
		return false, err
	}
	return false, nil
}

func (s *attemptService) getAttempt(ctx context.Context, id uint) (*models.Attempt, error) {
	attempt, err := s.repo.Attempt().GetByID(ctx, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}
	return attempt, nil
}

func (s *attemptService) getExam(ctx context.Context, id uint) (*models.Exam, error) {
	exam, err := s.repo.Exam().GetByID(ctx, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}
	return exam, nil
}

// normalizeSelection de-duplicates ids and rejects any that are not answers
// of question. The result is sorted.
func normalizeSelection(question *models.Question, answerIDs []uint) ([]uint, error) {
	valid := make(map[uint]bool, len(question.Answers))
	for _, a := range question.Answers {
		valid[a.ID] = true
	}

	chosen := make([]uint, 0, len(answerIDs))
	seen := make(map[uint]bool, len(answerIDs))
	for _, id := range answerIDs {
		if !valid[id] {
			return nil, NewBusinessRuleError(ErrInvalidAnswerSelection, "answer_selection",
				fmt.Sprintf("answer %d is not an option of question %d", id, question.ID),
				map[string]interface{}{"answer_id": id, "question_id": question.ID})
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		chosen = append(chosen, id)
	}
	slices.Sort(chosen)
	return chosen, nil
}
