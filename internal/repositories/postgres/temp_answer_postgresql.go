package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/SAP-F-2025/exam-engine/internal/models"
	"github.com/SAP-F-2025/exam-engine/internal/repositories"
)

type TempAnswerPostgreSQL struct {
	db *gorm.DB
}

func NewTempAnswerPostgreSQL(db *gorm.DB) repositories.TempAnswerRepository {
	return &TempAnswerPostgreSQL{db: db}
}

func (t *TempAnswerPostgreSQL) Upsert(ctx context.Context, answer *models.TempAnswer) error {
	err := t.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "attempt_id"}, {Name: "question_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"chosen_answers", "updated_at"}),
		}).
		Create(answer).Error
	if err != nil {
		return fmt.Errorf("failed to upsert answer: %w", err)
	}
	return nil
}

func (t *TempAnswerPostgreSQL) ListByAttempt(ctx context.Context, attemptID uint) ([]models.TempAnswer, error) {
	var answers []models.TempAnswer
	if err := t.db.WithContext(ctx).
		Where("attempt_id = ?", attemptID).
		Order("question_id").
		Find(&answers).Error; err != nil {
		return nil, fmt.Errorf("failed to list answers: %w", err)
	}
	return answers, nil
}
