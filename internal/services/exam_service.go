package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/SAP-F-2025/exam-engine/internal/events"
	"github.com/SAP-F-2025/exam-engine/internal/models"
	"github.com/SAP-F-2025/exam-engine/internal/repositories"
)

const (
	defaultActivityLimit = 50
	maxActivityLimit     = 500

	attemptsSheet = "Attempts"
)

type examService struct {
	repo      repositories.Repository
	logger    *slog.Logger
	publisher events.EventPublisher
	views     attemptViews
	now       func() time.Time
}

func NewExamService(repo repositories.Repository, logger *slog.Logger, publisher events.EventPublisher) ExamService {
	return newExamService(repo, logger, publisher, time.Now)
}

func newExamService(repo repositories.Repository, logger *slog.Logger, publisher events.EventPublisher, now func() time.Time) *examService {
	return &examService{
		repo:      repo,
		logger:    logger,
		publisher: publisher,
		views:     attemptViews{now: now},
		now:       now,
	}
}

func (s *examService) ListForStudent(ctx context.Context, studentID string) ([]ExamListItem, error) {
	summaries, err := s.repo.Exam().ListSummaries(ctx, false)
	if err != nil {
		return nil, err
	}
	used, err := s.repo.Attempt().CountByStudentPerExam(ctx, studentID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	items := make([]ExamListItem, 0, len(summaries))
	for _, e := range summaries {
		item := ExamListItem{
			ID:               e.ID,
			Name:             e.Name,
			PackName:         e.PackName,
			StartDt:          e.StartDt,
			EndDt:            e.EndDt,
			TimeLimitSeconds: e.TimeLimitSeconds,
			QuestionCount:    e.QuestionCount,
			MaxAttempts:      e.MaxAttempts,
			AttemptsUsed:     used[e.ID],
			WindowOpen:       !now.Before(e.StartDt) && (e.EndDt == nil || !now.After(*e.EndDt)),
		}
		if e.MaxAttempts > 0 {
			remaining := int64(e.MaxAttempts) - item.AttemptsUsed
			if remaining < 0 {
				remaining = 0
			}
			item.AttemptsRemaining = &remaining
		}
		items = append(items, item)
	}
	return items, nil
}

func (s *examService) ListForProctor(ctx context.Context, includeArchived bool) ([]models.ExamSummary, error) {
	return s.repo.Exam().ListSummaries(ctx, includeArchived)
}

func (s *examService) ToggleArchive(ctx context.Context, actor models.Identity, examID uint) (bool, error) {
	archived, err := s.repo.Exam().ToggleArchived(ctx, examID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return false, ErrExamNotFound
		}
		return false, err
	}

	publishEvent(ctx, s.publisher, s.logger, events.NewEvent(events.ExamArchiveToggled, actor.ID, string(actor.Role), map[string]interface{}{
		"exam_id":  examID,
		"archived": archived,
	}))
	s.logger.Info("Exam archive toggled", "exam_id", examID, "archived", archived, "actor_id", actor.ID)
	return archived, nil
}

// ListAttempts returns every attempt of the exam with its score; proctors
// always see scores.
func (s *examService) ListAttempts(ctx context.Context, examID uint) ([]AttemptView, error) {
	exam, err := s.repo.Exam().GetCachedByID(ctx, examID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, err
	}

	attempts, err := s.repo.Attempt().ListByExam(ctx, examID)
	if err != nil {
		return nil, err
	}

	views := make([]AttemptView, 0, len(attempts))
	for i := range attempts {
		view, err := s.views.build(ctx, s.repo, &attempts[i], exam, true)
		if err != nil {
			return nil, err
		}
		views = append(views, *view)
	}
	return views, nil
}

func (s *examService) ExportAttempts(ctx context.Context, examID uint, w io.Writer) error {
	views, err := s.ListAttempts(ctx, examID)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			s.logger.Warn("Failed to close workbook", "error", err)
		}
	}()

	if err := f.SetSheetName("Sheet1", attemptsSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	header := []interface{}{"Attempt", "Student", "Started", "Ended", "State", "Close reason", "Correct", "Questions", "Percentage"}
	if err := f.SetSheetRow(attemptsSheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i, v := range views {
		row := []interface{}{
			v.ID,
			v.StudentID,
			v.StartDt.UTC().Format(time.RFC3339),
			formatOptionalTime(v.EndDt),
			string(v.State),
			"",
			0,
			v.QuestionCount,
			0.0,
		}
		if v.CloseReason != nil {
			row[5] = string(*v.CloseReason)
		}
		if v.Score != nil {
			row[6] = v.Score.CorrectCount
			row[8] = v.Score.Percentage.InexactFloat64()
		}

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(attemptsSheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	s.logger.Info("Attempts exported", "exam_id", examID, "rows", len(views))
	return nil
}

func (s *examService) ListActivity(ctx context.Context, limit int) ([]models.ActivityLog, error) {
	switch {
	case limit <= 0:
		limit = defaultActivityLimit
	case limit > maxActivityLimit:
		limit = maxActivityLimit
	}
	return s.repo.ActivityLog().ListRecent(ctx, limit)
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
