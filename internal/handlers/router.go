package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/SAP-F-2025/exam-engine/internal/models"
	"github.com/SAP-F-2025/exam-engine/internal/services"
	"github.com/SAP-F-2025/exam-engine/internal/utils"
	"github.com/SAP-F-2025/exam-engine/internal/validator"
)

type HandlerManager struct {
	attemptHandler  *AttemptHandler
	studentHandler  *StudentHandler
	questionHandler *QuestionHandler
	proctorHandler  *ProctorHandler
	authMiddleware  *CasdoorAuthMiddleware
	serviceManager  services.ServiceManager
	gatherer        prometheus.Gatherer
}

// NewHandlerManager wires handlers to services. gatherer may be nil, in
// which case /metrics is not served.
func NewHandlerManager(
	serviceManager services.ServiceManager,
	validator *validator.Validator,
	logger utils.Logger,
	authMiddleware *CasdoorAuthMiddleware,
	gatherer prometheus.Gatherer,
) *HandlerManager {
	return &HandlerManager{
		attemptHandler:  NewAttemptHandler(serviceManager.Attempt(), validator, logger),
		studentHandler:  NewStudentHandler(serviceManager.Exam(), serviceManager.Attempt(), logger),
		questionHandler: NewQuestionHandler(serviceManager.Question(), validator, logger),
		proctorHandler:  NewProctorHandler(serviceManager.Exam(), logger),
		authMiddleware:  authMiddleware,
		serviceManager:  serviceManager,
		gatherer:        gatherer,
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")
	v1.Use(hm.authMiddleware.AuthMiddleware())
	{
		// Student routes
		student := v1.Group("")
		student.Use(hm.authMiddleware.RequireRoleMiddleware(models.RoleStudent))
		{
			student.GET("/exams", hm.studentHandler.ListExams)

			attempts := student.Group("/attempts")
			{
				attempts.POST("", hm.attemptHandler.StartAttempt)
				attempts.GET("", hm.studentHandler.ListAttempts)
				attempts.GET("/current", hm.attemptHandler.GetCurrentAttempt)
				attempts.GET("/:id", hm.attemptHandler.GetAttempt)
				attempts.GET("/:id/questions", hm.attemptHandler.GetQuestions)
				attempts.GET("/:id/question", hm.attemptHandler.GetCurrentQuestion)
				attempts.PUT("/:id/position", hm.attemptHandler.Navigate)
				attempts.PUT("/:id/answer", hm.attemptHandler.SubmitAnswer)
				attempts.POST("/:id/finish", hm.attemptHandler.FinishAttempt)
				attempts.GET("/:id/score", hm.attemptHandler.GetScore)
			}
		}

		// Proctor routes - Proctors and Admins only
		proctor := v1.Group("/proctor")
		proctor.Use(hm.authMiddleware.RequireRoleMiddleware(models.RoleProctor))
		{
			proctor.GET("/exams", hm.proctorHandler.ListExams)
			proctor.POST("/exams/:id/archive", hm.proctorHandler.ToggleArchive)
			proctor.GET("/exams/:id/attempts", hm.proctorHandler.ListAttempts)
			proctor.GET("/exams/:id/attempts/export", hm.proctorHandler.ExportAttempts)

			proctor.GET("/packs/:id/questions", hm.questionHandler.ListQuestions)
			proctor.POST("/packs/:id/questions", hm.questionHandler.CreateQuestion)
			proctor.DELETE("/packs/:id/questions/:question_id", hm.questionHandler.DeleteQuestion)
			proctor.POST("/packs/:id/questions/:question_id/move", hm.questionHandler.MoveQuestion)
			proctor.POST("/packs/:id/reindex", hm.questionHandler.ReindexPack)

			proctor.GET("/activity", hm.proctorHandler.ListActivity)
		}
	}

	router.GET("/health", hm.health)

	if hm.gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(hm.gatherer, promhttp.HandlerOpts{})))
	}
}

func (hm *HandlerManager) health(c *gin.Context) {
	if err := hm.serviceManager.HealthCheck(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "unhealthy",
			"service": "exam-engine",
			"error":   err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   "exam-engine",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
