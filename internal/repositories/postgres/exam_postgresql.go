package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/exam-engine/internal/cache"
	"github.com/SAP-F-2025/exam-engine/internal/models"
	"github.com/SAP-F-2025/exam-engine/internal/repositories"
)

type ExamPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewExamPostgreSQL(db *gorm.DB, cacheManager *cache.CacheManager) repositories.ExamRepository {
	return &ExamPostgreSQL{db: db, cacheManager: cacheManager}
}

func (e *ExamPostgreSQL) GetByID(ctx context.Context, id uint) (*models.Exam, error) {
	var exam models.Exam
	if err := e.db.WithContext(ctx).First(&exam, id).Error; err != nil {
		return nil, translateError(err, "get exam")
	}
	return &exam, nil
}

func (e *ExamPostgreSQL) GetCachedByID(ctx context.Context, id uint) (*models.Exam, error) {
	var exam models.Exam
	err := e.cacheManager.Exam.CacheOrExecute(ctx, fmt.Sprintf("id:%d", id), &exam, cache.ExamCacheConfig.TTL, func() (interface{}, error) {
		return e.GetByID(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return &exam, nil
}

// ListSummaries is not cached because the counters move with every attempt.
func (e *ExamPostgreSQL) ListSummaries(ctx context.Context, includeArchived bool) ([]models.ExamSummary, error) {
	var summaries []models.ExamSummary
	err := e.db.WithContext(ctx).Raw(`
		SELECT
			e.*,
			p.name AS pack_name,
			(SELECT COUNT(*) FROM questions q WHERE q.pack_id = e.pack_id) AS question_count,
			(SELECT COUNT(*) FROM attempts a WHERE a.exam_id = e.id) AS attempt_count
		FROM exams e
		JOIN packs p ON p.id = e.pack_id
		WHERE ? OR NOT e.archived
		ORDER BY e.start_dt, e.id`, includeArchived).
		Scan(&summaries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list exams: %w", err)
	}
	return summaries, nil
}

func (e *ExamPostgreSQL) ToggleArchived(ctx context.Context, id uint) (bool, error) {
	var archived []bool
	err := e.db.WithContext(ctx).
		Raw(`UPDATE exams SET archived = NOT archived WHERE id = ? RETURNING archived`, id).
		Scan(&archived).Error
	if err != nil {
		return false, fmt.Errorf("failed to toggle archived: %w", err)
	}
	if len(archived) == 0 {
		return false, fmt.Errorf("toggle archived: %w", repositories.ErrNotFound)
	}

	cache.InvalidateExamCache(ctx, e.cacheManager, id)
	return archived[0], nil
}
