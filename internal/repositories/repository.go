package repositories

import "context"

// Repository groups every storage interface the engine uses. Implementations
// are bound to one handle; WithTransaction hands fn a Repository bound to a
// transaction that commits when fn returns nil.
type Repository interface {
	// Authoring records
	Pack() PackRepository
	Question() QuestionRepository
	Exam() ExamRepository

	// Attempt lifecycle
	Attempt() AttemptRepository
	TempAnswer() TempAnswerRepository

	// Activity
	ActivityLog() ActivityLogRepository

	WithTransaction(ctx context.Context, fn func(Repository) error) error

	Ping(ctx context.Context) error

	Close() error
}

// RepositoryManager owns the repository lifecycle
type RepositoryManager interface {
	Initialize() error

	GetRepository() Repository

	HealthCheck(ctx context.Context) error

	Shutdown(ctx context.Context) error
}
