package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/SAP-F-2025/exam-engine/internal/cache"
	"github.com/SAP-F-2025/exam-engine/internal/events"
	"github.com/SAP-F-2025/exam-engine/internal/metrics"
	"github.com/SAP-F-2025/exam-engine/internal/repositories"
	"github.com/SAP-F-2025/exam-engine/internal/validator"
)

// ServiceManagerConfig holds configuration for the service manager
type ServiceManagerConfig struct {
	SweeperInterval time.Duration
	// SweeperLock is nil when no redis is configured.
	SweeperLock *cache.LeaseLock
}

// serviceManager implements ServiceManager interface
type serviceManager struct {
	// Dependencies
	repoManager repositories.RepositoryManager
	logger      *slog.Logger
	validator   *validator.Validator
	publisher   events.EventPublisher
	metrics     *metrics.Metrics
	config      ServiceManagerConfig

	// Service instances
	attemptService  AttemptService
	questionService QuestionService
	examService     ExamService
	sweeper         *Sweeper

	// Lifecycle management
	initialized bool
	shutdown    bool
	mu          sync.RWMutex
}

// NewServiceManager creates a new service manager with all dependencies
func NewServiceManager(repoManager repositories.RepositoryManager, logger *slog.Logger, validator *validator.Validator, publisher events.EventPublisher, m *metrics.Metrics, config ServiceManagerConfig) ServiceManager {
	return &serviceManager{
		repoManager: repoManager,
		logger:      logger,
		validator:   validator,
		publisher:   publisher,
		metrics:     m,
		config:      config,
	}
}

// Initialize sets up all services and their dependencies
func (sm *serviceManager) Initialize(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.initialized {
		return nil
	}
	if sm.config.SweeperInterval <= 0 {
		return fmt.Errorf("sweeper interval must be positive, got %s", sm.config.SweeperInterval)
	}

	sm.logger.Info("Initializing service manager")

	repo := sm.repoManager.GetRepository()
	if repo == nil {
		return fmt.Errorf("repository manager not initialized")
	}

	sm.attemptService = NewAttemptService(repo, sm.logger, sm.publisher, sm.metrics)
	sm.logger.Info("Attempt service initialized")

	sm.questionService = NewQuestionService(repo, sm.logger, sm.validator, sm.publisher)
	sm.logger.Info("Question service initialized")

	sm.examService = NewExamService(repo, sm.logger, sm.publisher)
	sm.logger.Info("Exam service initialized")

	var opts []SweeperOption
	if sm.config.SweeperLock != nil {
		opts = append(opts, WithLeaseLock(sm.config.SweeperLock))
	}
	sm.sweeper = NewSweeper(repo, sm.logger, sm.publisher, sm.metrics, sm.config.SweeperInterval, opts...)
	sm.logger.Info("Expiry sweeper initialized", "interval", sm.config.SweeperInterval, "leased", sm.config.SweeperLock != nil)

	sm.initialized = true
	sm.logger.Info("Service manager initialized successfully")
	return nil
}

// Service getters
func (sm *serviceManager) Attempt() AttemptService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		panic("service manager not initialized")
	}
	return sm.attemptService
}

func (sm *serviceManager) Question() QuestionService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		panic("service manager not initialized")
	}
	return sm.questionService
}

func (sm *serviceManager) Exam() ExamService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		panic("service manager not initialized")
	}
	return sm.examService
}

func (sm *serviceManager) Sweeper() *Sweeper {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		panic("service manager not initialized")
	}
	return sm.sweeper
}

// Health and lifecycle
func (sm *serviceManager) HealthCheck(ctx context.Context) error {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		return fmt.Errorf("service manager not initialized")
	}

	if sm.shutdown {
		return fmt.Errorf("service manager is shut down")
	}

	if err := sm.repoManager.HealthCheck(ctx); err != nil {
		return fmt.Errorf("repository health check failed: %w", err)
	}
	return nil
}

func (sm *serviceManager) Shutdown(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.shutdown {
		return nil
	}

	sm.logger.Info("Shutting down service manager")

	if sm.publisher != nil {
		if err := sm.publisher.Close(); err != nil {
			sm.logger.Error("Failed to close event publisher", "error", err)
		}
	}

	if err := sm.repoManager.Shutdown(ctx); err != nil {
		sm.logger.Error("Failed to shutdown repository manager", "error", err)
	}

	sm.shutdown = true
	sm.logger.Info("Service manager shut down completed")
	return nil
}
