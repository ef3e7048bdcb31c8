package services

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/exam-engine/internal/models"
)

func TestSwapTarget(t *testing.T) {
	tests := []struct {
		current, max int
		dir          Direction
		want         int
	}{
		{3, 5, DirectionUp, 2},
		{3, 5, DirectionDown, 4},
		{3, 5, DirectionToTop, 1},
		{3, 5, DirectionToBottom, 5},
		{1, 5, DirectionUp, 1},
		{5, 5, DirectionDown, 5},
		{1, 1, DirectionToBottom, 1},
		{2, 5, Direction("sideways"), 2},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, SwapTarget(tt.current, tt.max, tt.dir), "%d/%d %s", tt.current, tt.max, tt.dir)
	}
}

func TestSwapTarget_UpThenDownRestores(t *testing.T) {
	for rank := 2; rank <= 5; rank++ {
		up := SwapTarget(rank, 5, DirectionUp)
		assert.Equal(t, rank, SwapTarget(up, 5, DirectionDown))
	}
}

func TestParseDirection(t *testing.T) {
	d, err := ParseDirection("to_top")
	require.NoError(t, err)
	assert.Equal(t, DirectionToTop, d)

	_, err = ParseDirection("left")
	assert.True(t, errors.Is(err, ErrInvalidDirection))
}

func TestCheckDenseRanks(t *testing.T) {
	assert.NoError(t, checkDenseRanks(1, nil))
	assert.NoError(t, checkDenseRanks(1, []models.QuestionRank{{QuestionID: 1, Rank: 1}, {QuestionID: 2, Rank: 2}, {QuestionID: 3, Rank: 3}}))

	err := checkDenseRanks(1, []models.QuestionRank{{QuestionID: 1, Rank: 1}, {QuestionID: 2, Rank: 3}})
	assert.True(t, IsInvariantViolation(err))

	err = checkDenseRanks(1, []models.QuestionRank{{QuestionID: 1, Rank: 1}, {QuestionID: 2, Rank: 1}})
	assert.True(t, IsInvariantViolation(err))
}

func TestClampRank(t *testing.T) {
	assert.Equal(t, 1, clampRank(0, 5))
	assert.Equal(t, 1, clampRank(-3, 5))
	assert.Equal(t, 4, clampRank(4, 5))
	assert.Equal(t, 5, clampRank(99, 5))
	assert.Equal(t, 1, clampRank(3, 0))
}
