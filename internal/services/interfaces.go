package services

import (
	"context"
	"io"
	"time"

	"github.com/shopspring/decimal"

	"github.com/SAP-F-2025/exam-engine/internal/models"
	"github.com/SAP-F-2025/exam-engine/internal/validator"
)

// ===== SERVICE INTERFACES =====

// AttemptService is the attempt state machine plus its read models. Every
// call on a specific attempt requires the caller to own it.
type AttemptService interface {
	Start(ctx context.Context, studentID string, examID uint) (*AttemptView, error)
	Navigate(ctx context.Context, attemptID uint, studentID string, rank int) (*QuestionNavView, error)
	SubmitAnswer(ctx context.Context, attemptID uint, studentID string, answerIDs []uint) (*QuestionView, error)
	Finish(ctx context.Context, attemptID uint, studentID string) (*AttemptView, error)

	Get(ctx context.Context, attemptID uint, studentID string) (*AttemptView, error)
	Current(ctx context.Context, studentID string) (*AttemptView, error)
	History(ctx context.Context, studentID string) ([]AttemptView, error)
	Questions(ctx context.Context, attemptID uint, studentID string) (*QuestionNavView, error)
	CurrentQuestion(ctx context.Context, attemptID uint, studentID string) (*QuestionView, error)
	Score(ctx context.Context, attemptID uint, studentID string) (*ScoreView, error)
}

// QuestionService is the ordering index and the authoring paths that must
// keep it dense.
type QuestionService interface {
	List(ctx context.Context, packID uint) ([]PackQuestionView, error)
	Create(ctx context.Context, actor models.Identity, packID uint, req *validator.QuestionCreateRequest) (*PackQuestionView, error)
	Delete(ctx context.Context, actor models.Identity, packID, questionID uint) error
	Move(ctx context.Context, actor models.Identity, packID, questionID uint, direction Direction) ([]models.QuestionRank, error)
	Reindex(ctx context.Context, actor models.Identity, packID uint) ([]models.QuestionRank, error)
}

type ExamService interface {
	ListForStudent(ctx context.Context, studentID string) ([]ExamListItem, error)
	ListForProctor(ctx context.Context, includeArchived bool) ([]models.ExamSummary, error)
	ToggleArchive(ctx context.Context, actor models.Identity, examID uint) (bool, error)
	ListAttempts(ctx context.Context, examID uint) ([]AttemptView, error)
	ExportAttempts(ctx context.Context, examID uint, w io.Writer) error
	ListActivity(ctx context.Context, limit int) ([]models.ActivityLog, error)
}

type ServiceManager interface {
	Attempt() AttemptService
	Question() QuestionService
	Exam() ExamService
	Sweeper() *Sweeper

	Initialize(ctx context.Context) error
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// ===== READ MODELS =====

type AttemptView struct {
	ID               uint                `json:"id"`
	StudentID        string              `json:"student_id"`
	ExamID           uint                `json:"exam_id"`
	ExamName         string              `json:"exam_name"`
	PackID           uint                `json:"pack_id"`
	PackName         string              `json:"pack_name"`
	QuestionCount    int64               `json:"question_count"`
	StartDt          time.Time           `json:"start_dt"`
	EndDt            *time.Time          `json:"end_dt"`
	Deadline         *time.Time          `json:"deadline"`
	RemainingSeconds *int64              `json:"remaining_seconds"`
	State            models.AttemptState `json:"state"`
	CloseReason      *models.CloseReason `json:"close_reason"`
	CurrentQuestion  int                 `json:"current_question"`
	Score            *ScoreView          `json:"score,omitempty"`
}

type ScoreView struct {
	CorrectCount       int             `json:"correct_count"`
	TotalQuestionCount int64           `json:"total_question_count"`
	Percentage         decimal.Decimal `json:"percentage"`
}

type QuestionNavItem struct {
	QuestionID uint `json:"question_id"`
	Rank       int  `json:"rank"`
	Answered   bool `json:"answered"`
}

type QuestionNavView struct {
	AttemptID       uint              `json:"attempt_id"`
	CurrentQuestion int               `json:"current_question"`
	Items           []QuestionNavItem `json:"items"`
}

const (
	ModeSingle = "single"
	ModeMulti  = "multi"
)

// AnswerOption never carries correctness.
type AnswerOption struct {
	ID      uint   `json:"id"`
	Content string `json:"content"`
}

type QuestionView struct {
	AttemptID     uint           `json:"attempt_id"`
	QuestionID    uint           `json:"question_id"`
	Rank          int            `json:"rank"`
	QuestionCount int64          `json:"question_count"`
	Content       string         `json:"content"`
	Mode          string         `json:"mode"`
	Options       []AnswerOption `json:"options"`
	Selected      []uint         `json:"selected"`
}

// PackQuestionView is the proctor's view of a question, with correctness.
type PackQuestionView struct {
	ID      uint            `json:"id"`
	PackID  uint            `json:"pack_id"`
	Rank    int             `json:"rank"`
	Content string          `json:"content"`
	Mode    string          `json:"mode"`
	Answers []models.Answer `json:"answers"`
}

type ExamListItem struct {
	ID                uint       `json:"id"`
	Name              string     `json:"name"`
	PackName          string     `json:"pack_name"`
	StartDt           time.Time  `json:"start_dt"`
	EndDt             *time.Time `json:"end_dt"`
	TimeLimitSeconds  *int64     `json:"time_limit_seconds"`
	QuestionCount     int64      `json:"question_count"`
	MaxAttempts       int        `json:"max_attempts"`
	AttemptsUsed      int64      `json:"attempts_used"`
	AttemptsRemaining *int64     `json:"attempts_remaining"`
	WindowOpen        bool       `json:"window_open"`
}
