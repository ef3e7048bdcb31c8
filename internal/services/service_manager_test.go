package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/exam-engine/internal/validator"
)

func TestServiceManager_Lifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rm := &fakeRepoManager{repo: f.repo}

	sm := NewServiceManager(rm, f.logger, validator.New(), f.publisher, f.metrics, ServiceManagerConfig{SweeperInterval: time.Second})
	assert.Error(t, sm.HealthCheck(ctx))
	assert.Panics(t, func() { sm.Attempt() })

	require.NoError(t, sm.Initialize(ctx))
	require.NoError(t, sm.Initialize(ctx))
	assert.NotNil(t, sm.Attempt())
	assert.NotNil(t, sm.Question())
	assert.NotNil(t, sm.Exam())
	assert.NotNil(t, sm.Sweeper())
	assert.NoError(t, sm.HealthCheck(ctx))

	rm.healthErr = errors.New("db down")
	assert.Error(t, sm.HealthCheck(ctx))

	require.NoError(t, sm.Shutdown(ctx))
	assert.True(t, rm.shutdown)
	assert.Error(t, sm.HealthCheck(ctx))
}

func TestServiceManager_RejectsZeroInterval(t *testing.T) {
	f := newFixture(t)
	sm := NewServiceManager(&fakeRepoManager{repo: f.repo}, f.logger, validator.New(), f.publisher, f.metrics, ServiceManagerConfig{})
	assert.Error(t, sm.Initialize(context.Background()))
}
