package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/exam-engine/internal/models"
	"github.com/SAP-F-2025/exam-engine/internal/repositories"
)

type ActivityLogPostgreSQL struct {
	db *gorm.DB
}

func NewActivityLogPostgreSQL(db *gorm.DB) repositories.ActivityLogRepository {
	return &ActivityLogPostgreSQL{db: db}
}

func (a *ActivityLogPostgreSQL) Create(ctx context.Context, entry *models.ActivityLog) error {
	if err := a.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to create activity log: %w", err)
	}
	return nil
}

func (a *ActivityLogPostgreSQL) ListRecent(ctx context.Context, limit int) ([]models.ActivityLog, error) {
	var entries []models.ActivityLog
	if err := a.db.WithContext(ctx).
		Order("log_dt DESC, id DESC").
		Limit(limit).
		Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to list activity logs: %w", err)
	}
	return entries, nil
}
