package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/exam-engine/internal/services"
	"github.com/SAP-F-2025/exam-engine/internal/utils"
)

type StudentHandler struct {
	BaseHandler
	examService    services.ExamService
	attemptService services.AttemptService
}

func NewStudentHandler(examService services.ExamService, attemptService services.AttemptService, logger utils.Logger) *StudentHandler {
	return &StudentHandler{
		BaseHandler:    NewBaseHandler(logger),
		examService:    examService,
		attemptService: attemptService,
	}
}

// ListExams returns the exams a student can see
// @Summary List available exams
// @Description Non-archived exams with the caller's attempt usage and whether the window is open
// @Tags students
// @Produce json
// @Success 200 {array} services.ExamListItem
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /exams [get]
func (h *StudentHandler) ListExams(c *gin.Context) {
	h.LogRequest(c, "Listing exams for student")

	studentID, ok := h.userID(c)
	if !ok {
		return
	}

	exams, err := h.examService.ListForStudent(c.Request.Context(), studentID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, exams)
}

// ListAttempts returns the caller's attempt history
// @Summary Attempt history
// @Tags students
// @Produce json
// @Success 200 {array} services.AttemptView
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Router /attempts [get]
func (h *StudentHandler) ListAttempts(c *gin.Context) {
	studentID, ok := h.userID(c)
	if !ok {
		return
	}

	history, err := h.attemptService.History(c.Request.Context(), studentID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, history)
}
