package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/exam-engine/internal/models"
	"github.com/SAP-F-2025/exam-engine/internal/services"
	"github.com/SAP-F-2025/exam-engine/internal/utils"
	"github.com/SAP-F-2025/exam-engine/internal/validator"
)

type ErrorResponse struct {
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

type SuccessResponse struct {
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// BaseHandler carries the logging and error mapping shared by all handlers.
type BaseHandler struct {
	logger utils.Logger
}

func NewBaseHandler(logger utils.Logger) BaseHandler {
	return BaseHandler{logger: logger}
}

func (h *BaseHandler) log(c *gin.Context) utils.Logger {
	return utils.FromContext(c.Request.Context(), h.logger)
}

func (h *BaseHandler) LogRequest(c *gin.Context, msg string, args ...any) {
	args = append(args, "user_id", c.GetString("user_id"))
	h.log(c).Info(msg, args...)
}

func (h *BaseHandler) LogError(c *gin.Context, err error, msg string, args ...any) {
	args = append(args, "error", err, "path", c.FullPath())
	h.log(c).Error(msg, args...)
}

// parseIDParam writes a 400 and returns 0 when the path parameter is not a
// positive integer.
func (h *BaseHandler) parseIDParam(c *gin.Context, name string) uint {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid " + name,
			Details: c.Param(name),
		})
		return 0
	}
	return uint(id)
}

// userID writes a 401 when the auth middleware did not run.
func (h *BaseHandler) userID(c *gin.Context) (string, bool) {
	id, err := GetUserIDFromContext(c)
	if err != nil || id == "" {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "User not authenticated",
		})
		return "", false
	}
	return id, true
}

func (h *BaseHandler) identity(c *gin.Context) (models.Identity, bool) {
	ident, err := GetIdentityFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "User not authenticated",
		})
		return models.Identity{}, false
	}
	return *ident, true
}

// bindJSON decodes and validates the body, writing a 400 on failure.
func (h *BaseHandler) bindJSON(c *gin.Context, v *validator.Validator, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return false
	}
	if err := v.Validate(req); err != nil {
		h.handleServiceError(c, err)
		return false
	}
	return true
}

func (h *BaseHandler) handleServiceError(c *gin.Context, err error) {
	var validationErrors services.ValidationErrors
	if errors.As(err, &validationErrors) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: validationErrors,
		})
		return
	}

	var businessRuleError *services.BusinessRuleError
	if errors.As(err, &businessRuleError) {
		c.JSON(businessRuleStatus(businessRuleError), ErrorResponse{
			Message: businessRuleError.Message,
			Details: map[string]interface{}{
				"rule":    businessRuleError.Rule,
				"context": businessRuleError.Context,
			},
		})
		return
	}

	var permissionError *services.PermissionError
	if errors.As(err, &permissionError) {
		c.JSON(http.StatusForbidden, ErrorResponse{
			Message: "Access denied",
			Details: map[string]interface{}{
				"resource": permissionError.Resource,
				"action":   permissionError.Action,
				"reason":   permissionError.Reason,
			},
		})
		return
	}

	switch {
	case errors.Is(err, services.ErrAttemptNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Message: "Attempt not found"})
	case errors.Is(err, services.ErrExamNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Message: "Exam not found"})
	case errors.Is(err, services.ErrPackNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Message: "Pack not found"})
	case errors.Is(err, services.ErrQuestionNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Message: "Question not found"})
	case errors.Is(err, services.ErrAttemptNotOpen):
		c.JSON(http.StatusConflict, ErrorResponse{Message: "Attempt is not open"})
	case errors.Is(err, services.ErrAlreadyOpen):
		c.JSON(http.StatusConflict, ErrorResponse{Message: "An attempt is already open"})
	case errors.Is(err, services.ErrInvalidDirection):
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Invalid direction", Details: err.Error()})
	case errors.Is(err, services.ErrValidationFailed):
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Validation failed", Details: err.Error()})
	case services.IsInvariantViolation(err):
		h.LogError(c, err, "Stored state violates an invariant")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Message: "Internal server error"})
	default:
		h.LogError(c, err, "Unexpected service error")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Message: "Internal server error"})
	}
}

func businessRuleStatus(err *services.BusinessRuleError) int {
	switch {
	case errors.Is(err, services.ErrAlreadyOpen):
		return http.StatusConflict
	case errors.Is(err, services.ErrWindowNotStarted),
		errors.Is(err, services.ErrWindowEnded),
		errors.Is(err, services.ErrAttemptsExhausted),
		errors.Is(err, services.ErrScoreHidden):
		return http.StatusForbidden
	case errors.Is(err, services.ErrInvalidAnswerSelection):
		return http.StatusBadRequest
	default:
		return http.StatusConflict
	}
}
