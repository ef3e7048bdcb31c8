package models

import (
	"time"

	"gorm.io/datatypes"
)

type ActivityLog struct {
	ID        uint              `json:"id" gorm:"primaryKey"`
	ActorID   string            `json:"actor_id" gorm:"size:255;index"`
	ActorRole string            `json:"actor_role" gorm:"size:20"`
	Action    string            `json:"action" gorm:"size:50;not null;index"`
	Message   string            `json:"message" gorm:"type:text"`
	Details   datatypes.JSONMap `json:"details" gorm:"type:jsonb"`
	LogDt     time.Time         `json:"log_dt" gorm:"not null;index"`
}

func (ActivityLog) TableName() string {
	return "activity_logs"
}
