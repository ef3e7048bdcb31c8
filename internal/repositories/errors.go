package repositories

import (
	"errors"

	"gorm.io/gorm"
)

var (
	ErrNotFound          = errors.New("record not found")
	ErrOpenAttemptExists = errors.New("student already has an open attempt")
)

// IsNotFoundError reports whether err means the record does not exist.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, gorm.ErrRecordNotFound)
}

// ErrDuplicateRank is returned when two questions of a pack share a rank.
var ErrDuplicateRank = errors.New("duplicate question rank")
