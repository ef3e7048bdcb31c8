package models

import "time"

type Exam struct {
	ID               uint       `json:"id" gorm:"primaryKey"`
	PackID           uint       `json:"pack_id" gorm:"not null;index"`
	ProctorID        string     `json:"proctor_id" gorm:"not null;size:255"`
	Name             string     `json:"name" gorm:"not null;size:200"`
	StartDt          time.Time  `json:"start_dt" gorm:"not null"`
	EndDt            *time.Time `json:"end_dt"`
	TimeLimitSeconds *int64     `json:"time_limit_seconds"`
	MaxAttempts      int        `json:"max_attempts" gorm:"not null;default:0"`
	ShowScore        bool       `json:"show_score" gorm:"not null;default:false"`
	Archived         bool       `json:"archived" gorm:"not null;default:false;index"`
	CreatedAt        time.Time  `json:"created_at"`

	Pack Pack `json:"-" gorm:"foreignKey:PackID"`
}

func (Exam) TableName() string {
	return "exams"
}

// TimeLimit returns the per-attempt limit, or nil when the exam has none.
func (e *Exam) TimeLimit() *time.Duration {
	if e.TimeLimitSeconds == nil {
		return nil
	}
	d := time.Duration(*e.TimeLimitSeconds) * time.Second
	return &d
}

// ExamSummary is an exam joined with its pack and counters.
type ExamSummary struct {
	Exam
	PackName      string `json:"pack_name"`
	QuestionCount int64  `json:"question_count"`
	AttemptCount  int64  `json:"attempt_count"`
}
