package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/exam-engine/internal/services"
	"github.com/SAP-F-2025/exam-engine/internal/utils"
	"github.com/SAP-F-2025/exam-engine/internal/validator"
)

type AttemptHandler struct {
	BaseHandler
	attemptService services.AttemptService
	validator      *validator.Validator
}

func NewAttemptHandler(
	attemptService services.AttemptService,
	validator *validator.Validator,
	logger utils.Logger,
) *AttemptHandler {
	return &AttemptHandler{
		BaseHandler:    NewBaseHandler(logger),
		attemptService: attemptService,
		validator:      validator,
	}
}

// StartAttempt starts a new exam attempt
// @Summary Start exam attempt
// @Description Opens an attempt if the exam window is open, attempts remain and no other attempt is open
// @Tags attempts
// @Accept json
// @Produce json
// @Param attempt body validator.StartAttemptRequest true "Start attempt data"
// @Success 201 {object} services.AttemptView
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /attempts [post]
func (h *AttemptHandler) StartAttempt(c *gin.Context) {
	h.LogRequest(c, "Starting exam attempt")

	var req validator.StartAttemptRequest
	if !h.bindJSON(c, h.validator, &req) {
		return
	}

	studentID, ok := h.userID(c)
	if !ok {
		return
	}

	attempt, err := h.attemptService.Start(c.Request.Context(), studentID, req.ExamID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, attempt)
}

// GetCurrentAttempt returns the caller's open attempt
// @Summary Current attempt
// @Tags attempts
// @Produce json
// @Success 200 {object} services.AttemptView
// @Failure 404 {object} ErrorResponse
// @Router /attempts/current [get]
func (h *AttemptHandler) GetCurrentAttempt(c *gin.Context) {
	studentID, ok := h.userID(c)
	if !ok {
		return
	}

	attempt, err := h.attemptService.Current(c.Request.Context(), studentID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, attempt)
}

// GetAttempt retrieves an attempt by ID
// @Summary Get attempt
// @Tags attempts
// @Produce json
// @Param id path uint true "Attempt ID"
// @Success 200 {object} services.AttemptView
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /attempts/{id} [get]
func (h *AttemptHandler) GetAttempt(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	studentID, ok := h.userID(c)
	if !ok {
		return
	}

	attempt, err := h.attemptService.Get(c.Request.Context(), id, studentID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, attempt)
}

// GetQuestions returns the navigation list of an attempt
// @Summary Attempt question list
// @Tags attempts
// @Produce json
// @Param id path uint true "Attempt ID"
// @Success 200 {object} services.QuestionNavView
// @Router /attempts/{id}/questions [get]
func (h *AttemptHandler) GetQuestions(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	studentID, ok := h.userID(c)
	if !ok {
		return
	}

	nav, err := h.attemptService.Questions(c.Request.Context(), id, studentID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, nav)
}

// GetCurrentQuestion returns the question at the attempt's position
// @Summary Current question
// @Description Answer options never include correctness
// @Tags attempts
// @Produce json
// @Param id path uint true "Attempt ID"
// @Success 200 {object} services.QuestionView
// @Failure 409 {object} ErrorResponse "Attempt is not open"
// @Router /attempts/{id}/question [get]
func (h *AttemptHandler) GetCurrentQuestion(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	studentID, ok := h.userID(c)
	if !ok {
		return
	}

	question, err := h.attemptService.CurrentQuestion(c.Request.Context(), id, studentID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, question)
}

// Navigate moves the attempt to another question
// @Summary Navigate attempt
// @Description Out of range ranks are clamped to the pack
// @Tags attempts
// @Accept json
// @Produce json
// @Param id path uint true "Attempt ID"
// @Param position body validator.NavigateRequest true "Target rank"
// @Success 200 {object} services.QuestionNavView
// @Failure 409 {object} ErrorResponse "Attempt is not open"
// @Router /attempts/{id}/position [put]
func (h *AttemptHandler) Navigate(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	var req validator.NavigateRequest
	if !h.bindJSON(c, h.validator, &req) {
		return
	}

	studentID, ok := h.userID(c)
	if !ok {
		return
	}

	nav, err := h.attemptService.Navigate(c.Request.Context(), id, studentID, req.Rank)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, nav)
}

// SubmitAnswer replaces the selection for the current question
// @Summary Submit answer
// @Tags attempts
// @Accept json
// @Produce json
// @Param id path uint true "Attempt ID"
// @Param answer body validator.SubmitAnswerRequest true "Selected answers"
// @Success 200 {object} services.QuestionView
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse "Attempt is not open"
// @Router /attempts/{id}/answer [put]
func (h *AttemptHandler) SubmitAnswer(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	var req validator.SubmitAnswerRequest
	if !h.bindJSON(c, h.validator, &req) {
		return
	}

	studentID, ok := h.userID(c)
	if !ok {
		return
	}

	question, err := h.attemptService.SubmitAnswer(c.Request.Context(), id, studentID, req.AnswerIDs)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, question)
}

// FinishAttempt closes the attempt
// @Summary Finish attempt
// @Description Idempotent; finishing a closed attempt returns it unchanged
// @Tags attempts
// @Produce json
// @Param id path uint true "Attempt ID"
// @Success 200 {object} services.AttemptView
// @Router /attempts/{id}/finish [post]
func (h *AttemptHandler) FinishAttempt(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, "Finishing exam attempt", "attempt_id", id)

	studentID, ok := h.userID(c)
	if !ok {
		return
	}

	attempt, err := h.attemptService.Finish(c.Request.Context(), id, studentID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, attempt)
}

// GetScore returns the attempt score when the exam shows scores
// @Summary Attempt score
// @Tags attempts
// @Produce json
// @Param id path uint true "Attempt ID"
// @Success 200 {object} services.ScoreView
// @Failure 403 {object} ErrorResponse "Scores are hidden"
// @Router /attempts/{id}/score [get]
func (h *AttemptHandler) GetScore(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	studentID, ok := h.userID(c)
	if !ok {
		return
	}

	score, err := h.attemptService.Score(c.Request.Context(), id, studentID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, score)
}
