package services

import (
	"fmt"

	"github.com/SAP-F-2025/exam-engine/internal/models"
)

type Direction string

const (
	DirectionUp       Direction = "up"
	DirectionDown     Direction = "down"
	DirectionToTop    Direction = "to_top"
	DirectionToBottom Direction = "to_bottom"
)

func ParseDirection(s string) (Direction, error) {
	switch d := Direction(s); d {
	case DirectionUp, DirectionDown, DirectionToTop, DirectionToBottom:
		return d, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidDirection, s)
	}
}

// SwapTarget returns the rank a question at current moves to within a pack
// whose highest rank is maxRank. Moves past either end resolve to current.
func SwapTarget(current, maxRank int, direction Direction) int {
	target := current
	switch direction {
	case DirectionUp:
		target = current - 1
	case DirectionDown:
		target = current + 1
	case DirectionToTop:
		target = 1
	case DirectionToBottom:
		target = maxRank
	}

	if target < 1 || target > maxRank {
		return current
	}
	return target
}

// checkDenseRanks verifies ranks ordered by (rank, id) are exactly 1..N.
func checkDenseRanks(packID uint, ranks []models.QuestionRank) error {
	for i, r := range ranks {
		if r.Rank != i+1 {
			return NewInvariantViolation("dense_rank",
				"pack %d: question %d holds rank %d at position %d", packID, r.QuestionID, r.Rank, i+1)
		}
	}
	return nil
}

// clampRank bounds a navigation target into [1, count]; an empty pack yields 1.
func clampRank(rank int, count int64) int {
	if rank < 1 || count < 1 {
		return 1
	}
	if int64(rank) > count {
		return int(count)
	}
	return rank
}
