package repositories

import (
	"context"
	"time"

	"github.com/SAP-F-2025/exam-engine/internal/models"
)

type PackRepository interface {
	GetByID(ctx context.Context, id uint) (*models.Pack, error)
}

// QuestionRepository owns question rows and their rank slots.
type QuestionRepository interface {
	// Create inserts the question together with its answers.
	Create(ctx context.Context, question *models.Question) error
	Delete(ctx context.Context, packID, id uint) error
	GetByID(ctx context.Context, id uint) (*models.Question, error)

	// ListByPack returns the pack's questions with answers, ordered by rank.
	ListByPack(ctx context.Context, packID uint) ([]models.Question, error)

	// GetByRank loads the question at rank with its answers.
	GetByRank(ctx context.Context, packID uint, rank int) (*models.Question, error)

	// Row-locking reads used inside WithTransaction.
	GetForUpdate(ctx context.Context, packID, id uint) (*models.Question, error)
	ListAtRankForUpdate(ctx context.Context, packID uint, rank int) ([]models.Question, error)

	SetRank(ctx context.Context, id uint, rank int) error
	MaxRank(ctx context.Context, packID uint) (int, error)
	CountByPack(ctx context.Context, packID uint) (int64, error)
	ListRanks(ctx context.Context, packID uint) ([]models.QuestionRank, error)

	// Reindex rewrites ranks to 1..N ordered by (rank, id) and returns the
	// number of rows whose rank changed.
	Reindex(ctx context.Context, packID uint) (int64, error)
}

type ExamRepository interface {
	// GetByID always reads the stored row. Attempt transitions depend on it.
	GetByID(ctx context.Context, id uint) (*models.Exam, error)
	// GetCachedByID may serve a copy up to the exam cache TTL old.
	GetCachedByID(ctx context.Context, id uint) (*models.Exam, error)
	ListSummaries(ctx context.Context, includeArchived bool) ([]models.ExamSummary, error)
	// ToggleArchived flips the flag and returns its new value.
	ToggleArchived(ctx context.Context, id uint) (bool, error)
}

type AttemptRepository interface {
	// Create returns ErrOpenAttemptExists when the student already holds an
	// open attempt.
	Create(ctx context.Context, attempt *models.Attempt) error
	GetByID(ctx context.Context, id uint) (*models.Attempt, error)

	// LockOpen locks the attempt row while it is open; a closed or missing
	// attempt is ErrNotFound.
	LockOpen(ctx context.Context, id uint) (*models.Attempt, error)

	ListOpenByStudent(ctx context.Context, studentID string) ([]models.Attempt, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.Attempt, error)
	ListByExam(ctx context.Context, examID uint) ([]models.Attempt, error)
	CountByStudentAndExam(ctx context.Context, studentID string, examID uint) (int64, error)
	CountByStudentPerExam(ctx context.Context, studentID string) (map[uint]int64, error)

	// UpdateCurrentQuestion and CloseIfOpen only touch open attempts and
	// report whether a row changed.
	UpdateCurrentQuestion(ctx context.Context, id uint, rank int) (bool, error)
	CloseIfOpen(ctx context.Context, id uint, endDt time.Time, reason models.CloseReason) (bool, error)

	ListOpenWithExam(ctx context.Context) ([]models.OpenAttempt, error)
	QuestionTallies(ctx context.Context, attemptID uint) ([]models.QuestionTally, error)
}

// TempAnswerRepository is the answer upsert store.
type TempAnswerRepository interface {
	// Upsert replaces the selection for (attempt, question) in one statement.
	Upsert(ctx context.Context, answer *models.TempAnswer) error
	ListByAttempt(ctx context.Context, attemptID uint) ([]models.TempAnswer, error)
}

type ActivityLogRepository interface {
	Create(ctx context.Context, entry *models.ActivityLog) error
	ListRecent(ctx context.Context, limit int) ([]models.ActivityLog, error)
}
