package models

import (
	"time"

	"github.com/lib/pq"
)

type AttemptState string

const (
	AttemptOpen   AttemptState = "open"
	AttemptClosed AttemptState = "closed"
)

type CloseReason string

const (
	CloseReasonFinished CloseReason = "finished"
	CloseReasonExpired  CloseReason = "expired"
)

// Attempt is one student's pass through an exam. EndDt is nil while the
// attempt is open and is written exactly once on close.
type Attempt struct {
	ID              uint         `json:"id" gorm:"primaryKey"`
	StudentID       string       `json:"student_id" gorm:"not null;index;size:255"`
	ExamID          uint         `json:"exam_id" gorm:"not null;index"`
	StartDt         time.Time    `json:"start_dt" gorm:"not null"`
	EndDt           *time.Time   `json:"end_dt" gorm:"index"`
	CloseReason     *CloseReason `json:"close_reason" gorm:"size:20"`
	CurrentQuestion int          `json:"current_question" gorm:"not null;default:1"`

	// Relations
	Exam        Exam         `json:"-" gorm:"foreignKey:ExamID"`
	TempAnswers []TempAnswer `json:"-" gorm:"foreignKey:AttemptID;constraint:OnDelete:CASCADE"`
}

func (Attempt) TableName() string {
	return "attempts"
}

func (a Attempt) State() AttemptState {
	if a.EndDt == nil {
		return AttemptOpen
	}
	return AttemptClosed
}

func (a Attempt) IsOpen() bool {
	return a.EndDt == nil
}

// TempAnswer holds the current selection for one question of one attempt.
type TempAnswer struct {
	AttemptID     uint          `json:"attempt_id" gorm:"primaryKey;autoIncrement:false"`
	QuestionID    uint          `json:"question_id" gorm:"primaryKey;autoIncrement:false;index"`
	ChosenAnswers pq.Int64Array `json:"chosen_answers" gorm:"type:bigint[];not null"`
	UpdatedAt     time.Time     `json:"updated_at"`

	Question Question `json:"-" gorm:"foreignKey:QuestionID;constraint:OnDelete:CASCADE"`
}

func (TempAnswer) TableName() string {
	return "temp_answers"
}

// OpenAttempt is the joined row the expiry sweeper scans.
type OpenAttempt struct {
	AttemptID        uint
	StudentID        string
	ExamID           uint
	StartDt          time.Time
	ExamStartDt      time.Time
	ExamEndDt        *time.Time
	TimeLimitSeconds *int64
}

// QuestionTally is the per-question aggregate used for scoring.
type QuestionTally struct {
	QuestionID      uint
	ChosenCorrect   int
	TotalCorrect    int
	ChosenIncorrect int
}
