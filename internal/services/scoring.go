package services

import (
	"github.com/shopspring/decimal"

	"github.com/SAP-F-2025/exam-engine/internal/models"
)

// EvaluateQuestion applies exact-match scoring. A question with one correct
// answer is single-select, more than one is multi-select; both require every
// correct answer chosen and no incorrect one. A question without correct
// answers never scores.
func EvaluateQuestion(t models.QuestionTally) bool {
	if t.TotalCorrect == 0 {
		return false
	}
	return t.ChosenCorrect == t.TotalCorrect && t.ChosenIncorrect == 0
}

// ComputeScore aggregates tallies over the pack's full question count, so
// unanswered questions count as wrong.
func ComputeScore(tallies []models.QuestionTally, totalQuestions int64) ScoreView {
	correct := 0
	for _, t := range tallies {
		if EvaluateQuestion(t) {
			correct++
		}
	}

	percentage := decimal.Zero
	if totalQuestions > 0 {
		percentage = decimal.NewFromInt(int64(correct)).
			Mul(decimal.NewFromInt(100)).
			DivRound(decimal.NewFromInt(totalQuestions), 2)
	}

	return ScoreView{
		CorrectCount:       correct,
		TotalQuestionCount: totalQuestions,
		Percentage:         percentage,
	}
}

// QuestionMode names the selection mode shown to the student.
func QuestionMode(answers []models.Answer) string {
	correct := 0
	for _, a := range answers {
		if a.IsCorrect {
			correct++
		}
	}
	if correct > 1 {
		return ModeMulti
	}
	return ModeSingle
}
