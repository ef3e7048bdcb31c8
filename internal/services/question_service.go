package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/SAP-F-2025/exam-engine/internal/events"
	"github.com/SAP-F-2025/exam-engine/internal/models"
	"github.com/SAP-F-2025/exam-engine/internal/repositories"
	"github.com/SAP-F-2025/exam-engine/internal/validator"
)

type questionService struct {
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator
	publisher events.EventPublisher
}

func NewQuestionService(repo repositories.Repository, logger *slog.Logger, validator *validator.Validator, publisher events.EventPublisher) QuestionService {
	return &questionService{
		repo:      repo,
		logger:    logger,
		validator: validator,
		publisher: publisher,
	}
}

func (s *questionService) List(ctx context.Context, packID uint) ([]PackQuestionView, error) {
	if err := s.ensurePack(ctx, packID); err != nil {
		return nil, err
	}

	questions, err := s.repo.Question().ListByPack(ctx, packID)
	if err != nil {
		return nil, err
	}

	ranks := make([]models.QuestionRank, 0, len(questions))
	views := make([]PackQuestionView, 0, len(questions))
	for i := range questions {
		ranks = append(ranks, models.QuestionRank{QuestionID: questions[i].ID, Rank: questions[i].Rank})
		views = append(views, packQuestionView(&questions[i]))
	}
	if err := checkDenseRanks(packID, ranks); err != nil {
		return nil, err
	}
	return views, nil
}

// Create appends the question at the end of the pack. Answers are stored
// with the correctness flags exactly as submitted.
func (s *questionService) Create(ctx context.Context, actor models.Identity, packID uint, req *validator.QuestionCreateRequest) (*PackQuestionView, error) {
	s.logger.Info("Creating question", "pack_id", packID, "actor_id", actor.ID)

	if err := s.validator.ValidateQuestionCreate(req); err != nil {
		return nil, err
	}
	if err := s.ensurePack(ctx, packID); err != nil {
		return nil, err
	}

	question := &models.Question{
		PackID:  packID,
		Content: req.Content,
	}
	for _, a := range req.Answers {
		question.Answers = append(question.Answers, models.Answer{
			Content:   a.Content,
			IsCorrect: a.IsCorrect,
		})
	}

	err := s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		maxRank, err := tx.Question().MaxRank(ctx, packID)
		if err != nil {
			return err
		}
		question.Rank = maxRank + 1

		if err := tx.Question().Create(ctx, question); err != nil {
			return err
		}

		// Heals any gap left behind by a concurrent delete.
		if _, err := tx.Question().Reindex(ctx, packID); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, repositories.ErrDuplicateRank) {
			return nil, NewBusinessRuleError(err, "dense_rank", "the pack changed concurrently, retry the request", nil)
		}
		return nil, fmt.Errorf("failed to create question: %w", err)
	}

	created, err := s.repo.Question().GetByID(ctx, question.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload question: %w", err)
	}

	publishEvent(ctx, s.publisher, s.logger, events.NewEvent(events.QuestionCreated, actor.ID, string(actor.Role), map[string]interface{}{
		"pack_id":     packID,
		"question_id": created.ID,
		"rank":        created.Rank,
	}))

	s.logger.Info("Question created", "pack_id", packID, "question_id", created.ID, "rank", created.Rank)
	view := packQuestionView(created)
	return &view, nil
}

func (s *questionService) Delete(ctx context.Context, actor models.Identity, packID, questionID uint) error {
	s.logger.Info("Deleting question", "pack_id", packID, "question_id", questionID, "actor_id", actor.ID)

	err := s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		if err := tx.Question().Delete(ctx, packID, questionID); err != nil {
			return err
		}
		_, err := tx.Question().Reindex(ctx, packID)
		return err
	})
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrQuestionNotFound
		}
		return fmt.Errorf("failed to delete question: %w", err)
	}

	publishEvent(ctx, s.publisher, s.logger, events.NewEvent(events.QuestionDeleted, actor.ID, string(actor.Role), map[string]interface{}{
		"pack_id":     packID,
		"question_id": questionID,
	}))
	return nil
}

// Move swaps the question with its neighbour in direction. Moves past
// either end of the pack leave the ordering unchanged.
func (s *questionService) Move(ctx context.Context, actor models.Identity, packID, questionID uint, direction Direction) ([]models.QuestionRank, error) {
	var from, to int
	err := s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		question, err := tx.Question().GetForUpdate(ctx, packID, questionID)
		if err != nil {
			return err
		}
		maxRank, err := tx.Question().MaxRank(ctx, packID)
		if err != nil {
			return err
		}

		from = question.Rank
		to = SwapTarget(from, maxRank, direction)
		if to == from {
			return nil
		}

		others, err := tx.Question().ListAtRankForUpdate(ctx, packID, to)
		if err != nil {
			return err
		}
		if len(others) != 1 {
			return NewInvariantViolation("dense_rank", "pack %d has %d questions at rank %d", packID, len(others), to)
		}

		if err := tx.Question().SetRank(ctx, question.ID, to); err != nil {
			return err
		}
		return tx.Question().SetRank(ctx, others[0].ID, from)
	})
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQuestionNotFound
		}
		if IsInvariantViolation(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to move question: %w", err)
	}

	if to != from {
		publishEvent(ctx, s.publisher, s.logger, events.NewEvent(events.QuestionMoved, actor.ID, string(actor.Role), map[string]interface{}{
			"pack_id":     packID,
			"question_id": questionID,
			"direction":   string(direction),
			"from_rank":   from,
			"to_rank":     to,
		}))
		s.logger.Info("Question moved", "pack_id", packID, "question_id", questionID, "from", from, "to", to)
	}

	return s.repo.Question().ListRanks(ctx, packID)
}

func (s *questionService) Reindex(ctx context.Context, actor models.Identity, packID uint) ([]models.QuestionRank, error) {
	if err := s.ensurePack(ctx, packID); err != nil {
		return nil, err
	}

	var changed int64
	err := s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		var err error
		changed, err = tx.Question().Reindex(ctx, packID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to reindex pack: %w", err)
	}

	publishEvent(ctx, s.publisher, s.logger, events.NewEvent(events.PackReindexed, actor.ID, string(actor.Role), map[string]interface{}{
		"pack_id": packID,
		"changed": changed,
	}))
	s.logger.Info("Pack reindexed", "pack_id", packID, "changed", changed)

	return s.repo.Question().ListRanks(ctx, packID)
}

func (s *questionService) ensurePack(ctx context.Context, packID uint) error {
	if _, err := s.repo.Pack().GetByID(ctx, packID); err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrPackNotFound
		}
		return fmt.Errorf("failed to get pack: %w", err)
	}
	return nil
}

func packQuestionView(q *models.Question) PackQuestionView {
	answers := q.Answers
	if answers == nil {
		answers = []models.Answer{}
	}
	return PackQuestionView{
		ID:      q.ID,
		PackID:  q.PackID,
		Rank:    q.Rank,
		Content: q.Content,
		Mode:    QuestionMode(q.Answers),
		Answers: answers,
	}
}
