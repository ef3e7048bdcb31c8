package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/exam-engine/internal/services"
	"github.com/SAP-F-2025/exam-engine/internal/utils"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ProctorHandler serves exam oversight: listings, archiving, attempt
// reports and the activity feed.
type ProctorHandler struct {
	BaseHandler
	examService services.ExamService
}

func NewProctorHandler(examService services.ExamService, logger utils.Logger) *ProctorHandler {
	return &ProctorHandler{
		BaseHandler: NewBaseHandler(logger),
		examService: examService,
	}
}

// ListExams lists exams with pack name and counters
// @Summary List exams
// @Tags proctor
// @Produce json
// @Param include_archived query bool false "Include archived exams"
// @Success 200 {array} models.ExamSummary
// @Router /proctor/exams [get]
func (h *ProctorHandler) ListExams(c *gin.Context) {
	includeArchived := false
	if raw := c.Query("include_archived"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Message: "Invalid include_archived",
				Details: raw,
			})
			return
		}
		includeArchived = v
	}

	exams, err := h.examService.ListForProctor(c.Request.Context(), includeArchived)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, exams)
}

// ToggleArchive flips the exam's archived flag
// @Summary Toggle exam archive
// @Tags proctor
// @Produce json
// @Param id path uint true "Exam ID"
// @Success 200 {object} SuccessResponse
// @Failure 404 {object} ErrorResponse
// @Router /proctor/exams/{id}/archive [post]
func (h *ProctorHandler) ToggleArchive(c *gin.Context) {
	examID := h.parseIDParam(c, "id")
	if examID == 0 {
		return
	}

	h.LogRequest(c, "Toggling exam archive", "exam_id", examID)

	actor, ok := h.identity(c)
	if !ok {
		return
	}

	archived, err := h.examService.ToggleArchive(c.Request.Context(), actor, examID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Exam archive state updated",
		Data:    gin.H{"exam_id": examID, "archived": archived},
	})
}

// ListAttempts lists every attempt of an exam with scores
// @Summary Exam attempts
// @Tags proctor
// @Produce json
// @Param id path uint true "Exam ID"
// @Success 200 {array} services.AttemptView
// @Router /proctor/exams/{id}/attempts [get]
func (h *ProctorHandler) ListAttempts(c *gin.Context) {
	examID := h.parseIDParam(c, "id")
	if examID == 0 {
		return
	}

	attempts, err := h.examService.ListAttempts(c.Request.Context(), examID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, attempts)
}

// ExportAttempts downloads the exam attempts as a workbook
// @Summary Export exam attempts
// @Tags proctor
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param id path uint true "Exam ID"
// @Success 200 {file} file
// @Router /proctor/exams/{id}/attempts/export [get]
func (h *ProctorHandler) ExportAttempts(c *gin.Context) {
	examID := h.parseIDParam(c, "id")
	if examID == 0 {
		return
	}

	h.LogRequest(c, "Exporting exam attempts", "exam_id", examID)

	var buf bytes.Buffer
	if err := h.examService.ExportAttempts(c.Request.Context(), examID, &buf); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="exam-%d-attempts.xlsx"`, examID))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// ListActivity returns the most recent activity log entries
// @Summary Activity feed
// @Tags proctor
// @Produce json
// @Param limit query int false "Maximum entries (default 50, max 500)"
// @Success 200 {array} models.ActivityLog
// @Router /proctor/activity [get]
func (h *ProctorHandler) ListActivity(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Message: "Invalid limit",
				Details: raw,
			})
			return
		}
		limit = v
	}

	logs, err := h.examService.ListActivity(c.Request.Context(), limit)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, logs)
}
