package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/SAP-F-2025/exam-engine/internal/models"
	"github.com/SAP-F-2025/exam-engine/internal/repositories"
)

// AttemptPostgreSQL never caches: attempt state is re-read on every call.
type AttemptPostgreSQL struct {
	db *gorm.DB
}

func NewAttemptPostgreSQL(db *gorm.DB) repositories.AttemptRepository {
	return &AttemptPostgreSQL{db: db}
}

func (a *AttemptPostgreSQL) Create(ctx context.Context, attempt *models.Attempt) error {
	err := a.db.WithContext(ctx).Omit(clause.Associations).Create(attempt).Error
	if err != nil {
		if isUniqueViolation(err, openAttemptIndex) {
			return repositories.ErrOpenAttemptExists
		}
		return fmt.Errorf("failed to create attempt: %w", err)
	}
	return nil
}

func (a *AttemptPostgreSQL) GetByID(ctx context.Context, id uint) (*models.Attempt, error) {
	var attempt models.Attempt
	if err := a.db.WithContext(ctx).First(&attempt, id).Error; err != nil {
		return nil, translateError(err, "get attempt")
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) LockOpen(ctx context.Context, id uint) (*models.Attempt, error) {
	var attempt models.Attempt
	err := a.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND end_dt IS NULL", id).
		First(&attempt).Error
	if err != nil {
		return nil, translateError(err, "lock open attempt")
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) ListOpenByStudent(ctx context.Context, studentID string) ([]models.Attempt, error) {
	var attempts []models.Attempt
	if err := a.db.WithContext(ctx).
		Where("student_id = ? AND end_dt IS NULL", studentID).
		Order("id").
		Find(&attempts).Error; err != nil {
		return nil, fmt.Errorf("failed to list open attempts: %w", err)
	}
	return attempts, nil
}

func (a *AttemptPostgreSQL) ListByStudent(ctx context.Context, studentID string) ([]models.Attempt, error) {
	var attempts []models.Attempt
	if err := a.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("start_dt, id").
		Find(&attempts).Error; err != nil {
		return nil, fmt.Errorf("failed to list student attempts: %w", err)
	}
	return attempts, nil
}

func (a *AttemptPostgreSQL) ListByExam(ctx context.Context, examID uint) ([]models.Attempt, error) {
	var attempts []models.Attempt
	if err := a.db.WithContext(ctx).
		Where("exam_id = ?", examID).
		Order("start_dt, id").
		Find(&attempts).Error; err != nil {
		return nil, fmt.Errorf("failed to list exam attempts: %w", err)
	}
	return attempts, nil
}

func (a *AttemptPostgreSQL) CountByStudentAndExam(ctx context.Context, studentID string, examID uint) (int64, error) {
	var count int64
	err := a.db.WithContext(ctx).
		Model(&models.Attempt{}).
		Where("student_id = ? AND exam_id = ?", studentID, examID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count attempts: %w", err)
	}
	return count, nil
}

func (a *AttemptPostgreSQL) CountByStudentPerExam(ctx context.Context, studentID string) (map[uint]int64, error) {
	var rows []struct {
		ExamID uint
		Total  int64
	}
	err := a.db.WithContext(ctx).
		Model(&models.Attempt{}).
		Select("exam_id, COUNT(*) AS total").
		Where("student_id = ?", studentID).
		Group("exam_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count attempts per exam: %w", err)
	}

	counts := make(map[uint]int64, len(rows))
	for _, r := range rows {
		counts[r.ExamID] = r.Total
	}
	return counts, nil
}

func (a *AttemptPostgreSQL) UpdateCurrentQuestion(ctx context.Context, id uint, rank int) (bool, error) {
	result := a.db.WithContext(ctx).
		Model(&models.Attempt{}).
		Where("id = ? AND end_dt IS NULL", id).
		Update("current_question", rank)
	return affectedOne(result, "update current question")
}

// CloseIfOpen stamps end_dt only while it is still null, so a racing finish
// and sweeper close produce exactly one write.
func (a *AttemptPostgreSQL) CloseIfOpen(ctx context.Context, id uint, endDt time.Time, reason models.CloseReason) (bool, error) {
	result := a.db.WithContext(ctx).
		Model(&models.Attempt{}).
		Where("id = ? AND end_dt IS NULL", id).
		Updates(map[string]interface{}{
			"end_dt":       endDt,
			"close_reason": reason,
		})
	return affectedOne(result, "close attempt")
}

func (a *AttemptPostgreSQL) ListOpenWithExam(ctx context.Context) ([]models.OpenAttempt, error) {
	var rows []models.OpenAttempt
	err := a.db.WithContext(ctx).Raw(`
		SELECT
			a.id AS attempt_id,
			a.student_id,
			a.exam_id,
			a.start_dt,
			e.start_dt AS exam_start_dt,
			e.end_dt AS exam_end_dt,
			e.time_limit_seconds
		FROM attempts a
		JOIN exams e ON e.id = a.exam_id
		WHERE a.end_dt IS NULL
		ORDER BY a.id`).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list open attempts: %w", err)
	}
	return rows, nil
}

// QuestionTallies aggregates, per answered question, how many correct and
// incorrect answers were chosen and how many correct answers exist.
func (a *AttemptPostgreSQL) QuestionTallies(ctx context.Context, attemptID uint) ([]models.QuestionTally, error) {
	var rows []models.QuestionTally
	err := a.db.WithContext(ctx).Raw(`
		SELECT
			ta.question_id,
			COUNT(*) FILTER (WHERE an.is_correct AND an.id = ANY(ta.chosen_answers)) AS chosen_correct,
			COUNT(*) FILTER (WHERE an.is_correct) AS total_correct,
			COUNT(*) FILTER (WHERE NOT an.is_correct AND an.id = ANY(ta.chosen_answers)) AS chosen_incorrect
		FROM temp_answers ta
		JOIN answers an ON an.question_id = ta.question_id
		WHERE ta.attempt_id = ?
		GROUP BY ta.question_id
		ORDER BY ta.question_id`, attemptID).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to tally answers: %w", err)
	}
	return rows, nil
}
