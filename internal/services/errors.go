package services

import (
	"errors"
	"fmt"

	"github.com/SAP-F-2025/exam-engine/internal/validator"
)

// Attempt lifecycle errors
var (
	ErrAlreadyOpen            = errors.New("student already has an open attempt")
	ErrWindowNotStarted       = errors.New("exam window has not started")
	ErrWindowEnded            = errors.New("exam window has ended")
	ErrAttemptsExhausted      = errors.New("no attempts left for this exam")
	ErrAttemptNotOpen         = errors.New("attempt is not open")
	ErrAttemptNotFound        = errors.New("attempt not found")
	ErrQuestionNotFound       = errors.New("question not found")
	ErrInvalidAnswerSelection = errors.New("answer does not belong to the current question")
	ErrScoreHidden            = errors.New("score is not shown for this exam")
)

// Authoring errors
var (
	ErrExamNotFound     = errors.New("exam not found")
	ErrPackNotFound     = errors.New("pack not found")
	ErrInvalidDirection = errors.New("invalid move direction")
)

var ErrValidationFailed = errors.New("validation failed")

type ValidationErrors = validator.ValidationErrors

// BusinessRuleError carries a user-facing reason for an expected refusal.
// errors.Is matches the wrapped sentinel.
type BusinessRuleError struct {
	Err     error
	Rule    string
	Message string
	Context map[string]interface{}
}

func NewBusinessRuleError(err error, rule, message string, context map[string]interface{}) *BusinessRuleError {
	return &BusinessRuleError{
		Err:     err,
		Rule:    rule,
		Message: message,
		Context: context,
	}
}

func (e *BusinessRuleError) Error() string {
	return fmt.Sprintf("business rule violation [%s]: %s", e.Rule, e.Message)
}

func (e *BusinessRuleError) Unwrap() error {
	return e.Err
}

type PermissionError struct {
	UserID     string
	ResourceID uint
	Resource   string
	Action     string
	Reason     string
}

func NewPermissionError(userID string, resourceID uint, resource, action, reason string) *PermissionError {
	return &PermissionError{
		UserID:     userID,
		ResourceID: resourceID,
		Resource:   resource,
		Action:     action,
		Reason:     reason,
	}
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("permission denied: user %s cannot %s %s %d: %s", e.UserID, e.Action, e.Resource, e.ResourceID, e.Reason)
}

// InvariantViolationError reports stored state that should be impossible,
// such as a duplicated rank or two open attempts for one student. It is
// never corrected automatically.
type InvariantViolationError struct {
	Invariant string
	Detail    string
}

func NewInvariantViolation(invariant, format string, args ...interface{}) *InvariantViolationError {
	return &InvariantViolationError{
		Invariant: invariant,
		Detail:    fmt.Sprintf(format, args...),
	}
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("invariant violated (%s): %s", e.Invariant, e.Detail)
}

// IsInvariantViolation reports whether err is or wraps an InvariantViolationError.
func IsInvariantViolation(err error) bool {
	var iv *InvariantViolationError
	return errors.As(err, &iv)
}
