package postgres

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/exam-engine/internal/models"
)

// constraintStatements cannot be expressed with gorm tags: a deferrable
// unique constraint and a partial unique index.
var constraintStatements = []string{
	`DO $$
	BEGIN
		IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = '` + questionRankConstraint + `') THEN
			ALTER TABLE questions
				ADD CONSTRAINT ` + questionRankConstraint + ` UNIQUE (pack_id, "rank")
				DEFERRABLE INITIALLY DEFERRED;
		END IF;
	END $$`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ` + openAttemptIndex + `
		ON attempts (student_id) WHERE end_dt IS NULL`,
	`CREATE INDEX IF NOT EXISTS idx_attempts_open_exam
		ON attempts (exam_id) WHERE end_dt IS NULL`,
}

// Migrate creates or updates the schema.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Pack{},
		&models.Question{},
		&models.Answer{},
		&models.Exam{},
		&models.Attempt{},
		&models.TempAnswer{},
		&models.ActivityLog{},
	); err != nil {
		return fmt.Errorf("failed to auto-migrate: %w", err)
	}

	for _, stmt := range constraintStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to apply constraint: %w", err)
		}
	}
	return nil
}
