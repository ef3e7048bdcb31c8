package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/SAP-F-2025/exam-engine/internal/models"
	"github.com/SAP-F-2025/exam-engine/internal/repositories"
)

type QuestionPostgreSQL struct {
	db *gorm.DB
}

func NewQuestionPostgreSQL(db *gorm.DB) repositories.QuestionRepository {
	return &QuestionPostgreSQL{db: db}
}

func preloadAnswers(db *gorm.DB) *gorm.DB {
	return db.Order("answers.id")
}

func (q *QuestionPostgreSQL) Create(ctx context.Context, question *models.Question) error {
	if err := q.db.WithContext(ctx).Create(question).Error; err != nil {
		if isUniqueViolation(err, questionRankConstraint) {
			return fmt.Errorf("failed to create question: %w", repositories.ErrDuplicateRank)
		}
		return fmt.Errorf("failed to create question: %w", err)
	}
	return nil
}

func (q *QuestionPostgreSQL) Delete(ctx context.Context, packID, id uint) error {
	result := q.db.WithContext(ctx).
		Where("pack_id = ? AND id = ?", packID, id).
		Delete(&models.Question{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete question: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("delete question: %w", repositories.ErrNotFound)
	}
	return nil
}

func (q *QuestionPostgreSQL) GetByID(ctx context.Context, id uint) (*models.Question, error) {
	var question models.Question
	err := q.db.WithContext(ctx).
		Preload("Answers", preloadAnswers).
		First(&question, id).Error
	if err != nil {
		return nil, translateError(err, "get question")
	}
	return &question, nil
}

func (q *QuestionPostgreSQL) ListByPack(ctx context.Context, packID uint) ([]models.Question, error) {
	var questions []models.Question
	err := q.db.WithContext(ctx).
		Preload("Answers", preloadAnswers).
		Where("pack_id = ?", packID).
		Order(`"rank", id`).
		Find(&questions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}
	return questions, nil
}

func (q *QuestionPostgreSQL) GetByRank(ctx context.Context, packID uint, rank int) (*models.Question, error) {
	var questions []models.Question
	err := q.db.WithContext(ctx).
		Preload("Answers", preloadAnswers).
		Where(`pack_id = ? AND "rank" = ?`, packID, rank).
		Order("id").
		Find(&questions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get question by rank: %w", err)
	}

	switch len(questions) {
	case 0:
		return nil, fmt.Errorf("get question by rank: %w", repositories.ErrNotFound)
	case 1:
		return &questions[0], nil
	default:
		return nil, fmt.Errorf("pack %d rank %d: %w", packID, rank, repositories.ErrDuplicateRank)
	}
}

func (q *QuestionPostgreSQL) GetForUpdate(ctx context.Context, packID, id uint) (*models.Question, error) {
	var question models.Question
	err := q.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("pack_id = ? AND id = ?", packID, id).
		First(&question).Error
	if err != nil {
		return nil, translateError(err, "lock question")
	}
	return &question, nil
}

func (q *QuestionPostgreSQL) ListAtRankForUpdate(ctx context.Context, packID uint, rank int) ([]models.Question, error) {
	var questions []models.Question
	err := q.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where(`pack_id = ? AND "rank" = ?`, packID, rank).
		Order("id").
		Find(&questions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to lock questions at rank: %w", err)
	}
	return questions, nil
}

func (q *QuestionPostgreSQL) SetRank(ctx context.Context, id uint, rank int) error {
	result := q.db.WithContext(ctx).
		Model(&models.Question{}).
		Where("id = ?", id).
		Update("rank", rank)
	if result.Error != nil {
		return fmt.Errorf("failed to set question rank: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("set question rank: %w", repositories.ErrNotFound)
	}
	return nil
}

func (q *QuestionPostgreSQL) MaxRank(ctx context.Context, packID uint) (int, error) {
	var maxRank int
	err := q.db.WithContext(ctx).
		Model(&models.Question{}).
		Select(`COALESCE(MAX("rank"), 0)`).
		Where("pack_id = ?", packID).
		Scan(&maxRank).Error
	if err != nil {
		return 0, fmt.Errorf("failed to get max rank: %w", err)
	}
	return maxRank, nil
}

func (q *QuestionPostgreSQL) CountByPack(ctx context.Context, packID uint) (int64, error) {
	var count int64
	err := q.db.WithContext(ctx).
		Model(&models.Question{}).
		Where("pack_id = ?", packID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count questions: %w", err)
	}
	return count, nil
}

func (q *QuestionPostgreSQL) ListRanks(ctx context.Context, packID uint) ([]models.QuestionRank, error) {
	var ranks []models.QuestionRank
	err := q.db.WithContext(ctx).Raw(`
		SELECT id AS question_id, "rank"
		FROM questions
		WHERE pack_id = ?
		ORDER BY "rank", id`, packID).
		Scan(&ranks).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list ranks: %w", err)
	}
	return ranks, nil
}

// Reindex closes gaps left by deletes in one statement; the deferred rank
// constraint lets rows pass through each other's slots.
func (q *QuestionPostgreSQL) Reindex(ctx context.Context, packID uint) (int64, error) {
	result := q.db.WithContext(ctx).Exec(`
		UPDATE questions AS q
		SET "rank" = r.new_rank
		FROM (
			SELECT id, row_number() OVER (ORDER BY "rank", id) AS new_rank
			FROM questions
			WHERE pack_id = ?
		) AS r
		WHERE q.id = r.id AND q."rank" <> r.new_rank`, packID)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to reindex pack: %w", result.Error)
	}
	return result.RowsAffected, nil
}
