package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/SAP-F-2025/exam-engine/internal/repositories"
)

const (
	uniqueViolationCode = "23505"

	// openAttemptIndex backs the one-open-attempt-per-student invariant.
	openAttemptIndex = "idx_attempts_one_open_per_student"
	// questionRankConstraint keeps ranks unique per pack, checked at commit.
	questionRankConstraint = "questions_pack_rank_key"
)

// translateError maps gorm's not-found into the repository sentinel and
// wraps everything else with the failed operation.
func translateError(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", op, repositories.ErrNotFound)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

// isUniqueViolation reports a postgres unique violation, optionally on one
// named constraint or index.
func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	if pgErr.Code != uniqueViolationCode {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

// affectedOne converts a conditional write into a bool outcome.
func affectedOne(result *gorm.DB, op string) (bool, error) {
	if result.Error != nil {
		return false, fmt.Errorf("failed to %s: %w", op, result.Error)
	}
	return result.RowsAffected > 0, nil
}
