package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SAP-F-2025/exam-engine/internal/models"
	"github.com/SAP-F-2025/exam-engine/internal/repositories"
)

// attemptViews builds read models from freshly loaded records.
type attemptViews struct {
	now func() time.Time
}

func (v attemptViews) build(ctx context.Context, repo repositories.Repository, attempt *models.Attempt, exam *models.Exam, includeScore bool) (*AttemptView, error) {
	pack, err := repo.Pack().GetByID(ctx, exam.PackID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrPackNotFound
		}
		return nil, fmt.Errorf("failed to get pack: %w", err)
	}

	count, err := repo.Question().CountByPack(ctx, exam.PackID)
	if err != nil {
		return nil, err
	}

	view := &AttemptView{
		ID:              attempt.ID,
		StudentID:       attempt.StudentID,
		ExamID:          exam.ID,
		ExamName:        exam.Name,
		PackID:          pack.ID,
		PackName:        pack.Name,
		QuestionCount:   count,
		StartDt:         attempt.StartDt,
		EndDt:           attempt.EndDt,
		Deadline:        attemptDeadline(exam, attempt),
		State:           attempt.State(),
		CloseReason:     attempt.CloseReason,
		CurrentQuestion: attempt.CurrentQuestion,
	}

	if attempt.IsOpen() && view.Deadline != nil {
		remaining := int64(view.Deadline.Sub(v.now()).Seconds())
		if remaining < 0 {
			remaining = 0
		}
		view.RemainingSeconds = &remaining
	}

	if includeScore {
		score, err := v.score(ctx, repo, attempt.ID, count)
		if err != nil {
			return nil, err
		}
		view.Score = score
	}

	return view, nil
}

func (v attemptViews) score(ctx context.Context, repo repositories.Repository, attemptID uint, questionCount int64) (*ScoreView, error) {
	tallies, err := repo.Attempt().QuestionTallies(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	score := ComputeScore(tallies, questionCount)
	return &score, nil
}

func (v attemptViews) nav(ctx context.Context, repo repositories.Repository, attempt *models.Attempt, exam *models.Exam) (*QuestionNavView, error) {
	ranks, err := repo.Question().ListRanks(ctx, exam.PackID)
	if err != nil {
		return nil, err
	}
	if err := checkDenseRanks(exam.PackID, ranks); err != nil {
		return nil, err
	}

	stored, err := repo.TempAnswer().ListByAttempt(ctx, attempt.ID)
	if err != nil {
		return nil, err
	}
	answered := make(map[uint]bool, len(stored))
	for _, ta := range stored {
		answered[ta.QuestionID] = len(ta.ChosenAnswers) > 0
	}

	items := make([]QuestionNavItem, 0, len(ranks))
	for _, r := range ranks {
		items = append(items, QuestionNavItem{
			QuestionID: r.QuestionID,
			Rank:       r.Rank,
			Answered:   answered[r.QuestionID],
		})
	}

	return &QuestionNavView{
		AttemptID:       attempt.ID,
		CurrentQuestion: attempt.CurrentQuestion,
		Items:           items,
	}, nil
}

func questionView(attemptID uint, question *models.Question, count int64, selected []uint) *QuestionView {
	options := make([]AnswerOption, 0, len(question.Answers))
	for _, a := range question.Answers {
		options = append(options, AnswerOption{ID: a.ID, Content: a.Content})
	}
	if selected == nil {
		selected = []uint{}
	}

	return &QuestionView{
		AttemptID:     attemptID,
		QuestionID:    question.ID,
		Rank:          question.Rank,
		QuestionCount: count,
		Content:       question.Content,
		Mode:          QuestionMode(question.Answers),
		Options:       options,
		Selected:      selected,
	}
}

// questionAtRank maps repository lookups of the current question into
// service errors.
func questionAtRank(ctx context.Context, repo repositories.Repository, packID uint, rank int) (*models.Question, error) {
	question, err := repo.Question().GetByRank(ctx, packID, rank)
	switch {
	case err == nil:
		return question, nil
	case errors.Is(err, repositories.ErrDuplicateRank):
		return nil, NewInvariantViolation("dense_rank", "pack %d has several questions at rank %d", packID, rank)
	case repositories.IsNotFoundError(err):
		return nil, ErrQuestionNotFound
	default:
		return nil, err
	}
}
