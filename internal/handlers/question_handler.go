package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/exam-engine/internal/services"
	"github.com/SAP-F-2025/exam-engine/internal/utils"
	"github.com/SAP-F-2025/exam-engine/internal/validator"
)

// QuestionHandler serves pack authoring for proctors.
type QuestionHandler struct {
	BaseHandler
	questionService services.QuestionService
	validator       *validator.Validator
}

func NewQuestionHandler(questionService services.QuestionService, validator *validator.Validator, logger utils.Logger) *QuestionHandler {
	return &QuestionHandler{
		BaseHandler:     NewBaseHandler(logger),
		questionService: questionService,
		validator:       validator,
	}
}

// ListQuestions lists a pack's questions in rank order
// @Summary List pack questions
// @Tags questions
// @Produce json
// @Param id path uint true "Pack ID"
// @Success 200 {array} services.PackQuestionView
// @Failure 404 {object} ErrorResponse
// @Router /proctor/packs/{id}/questions [get]
func (h *QuestionHandler) ListQuestions(c *gin.Context) {
	packID := h.parseIDParam(c, "id")
	if packID == 0 {
		return
	}

	questions, err := h.questionService.List(c.Request.Context(), packID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, questions)
}

// CreateQuestion appends a question to the pack
// @Summary Create question
// @Tags questions
// @Accept json
// @Produce json
// @Param id path uint true "Pack ID"
// @Param question body validator.QuestionCreateRequest true "Question data"
// @Success 201 {object} services.PackQuestionView
// @Failure 400 {object} ErrorResponse
// @Router /proctor/packs/{id}/questions [post]
func (h *QuestionHandler) CreateQuestion(c *gin.Context) {
	packID := h.parseIDParam(c, "id")
	if packID == 0 {
		return
	}

	h.LogRequest(c, "Creating question", "pack_id", packID)

	var req validator.QuestionCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	actor, ok := h.identity(c)
	if !ok {
		return
	}

	question, err := h.questionService.Create(c.Request.Context(), actor, packID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, question)
}

// DeleteQuestion removes a question and closes the gap in the ranks
// @Summary Delete question
// @Tags questions
// @Produce json
// @Param id path uint true "Pack ID"
// @Param question_id path uint true "Question ID"
// @Success 200 {object} SuccessResponse
// @Failure 404 {object} ErrorResponse
// @Router /proctor/packs/{id}/questions/{question_id} [delete]
func (h *QuestionHandler) DeleteQuestion(c *gin.Context) {
	packID := h.parseIDParam(c, "id")
	if packID == 0 {
		return
	}
	questionID := h.parseIDParam(c, "question_id")
	if questionID == 0 {
		return
	}

	h.LogRequest(c, "Deleting question", "pack_id", packID, "question_id", questionID)

	actor, ok := h.identity(c)
	if !ok {
		return
	}

	if err := h.questionService.Delete(c.Request.Context(), actor, packID, questionID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Question deleted successfully",
	})
}

// MoveQuestion swaps a question with its neighbour
// @Summary Move question
// @Tags questions
// @Accept json
// @Produce json
// @Param id path uint true "Pack ID"
// @Param question_id path uint true "Question ID"
// @Param move body validator.MoveQuestionRequest true "Direction: up, down, to_top, to_bottom"
// @Success 200 {array} models.QuestionRank
// @Router /proctor/packs/{id}/questions/{question_id}/move [post]
func (h *QuestionHandler) MoveQuestion(c *gin.Context) {
	packID := h.parseIDParam(c, "id")
	if packID == 0 {
		return
	}
	questionID := h.parseIDParam(c, "question_id")
	if questionID == 0 {
		return
	}

	var req validator.MoveQuestionRequest
	if !h.bindJSON(c, h.validator, &req) {
		return
	}
	direction, err := services.ParseDirection(req.Direction)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	actor, ok := h.identity(c)
	if !ok {
		return
	}

	ranks, err := h.questionService.Move(c.Request.Context(), actor, packID, questionID, direction)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, ranks)
}

// ReindexPack rewrites the pack's ranks to 1..N
// @Summary Reindex pack
// @Tags questions
// @Produce json
// @Param id path uint true "Pack ID"
// @Success 200 {array} models.QuestionRank
// @Router /proctor/packs/{id}/reindex [post]
func (h *QuestionHandler) ReindexPack(c *gin.Context) {
	packID := h.parseIDParam(c, "id")
	if packID == 0 {
		return
	}

	h.LogRequest(c, "Reindexing pack", "pack_id", packID)

	actor, ok := h.identity(c)
	if !ok {
		return
	}

	ranks, err := h.questionService.Reindex(c.Request.Context(), actor, packID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, ranks)
}
