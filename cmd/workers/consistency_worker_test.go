package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockHealer is a mock implementation of the PlanHealer interface
type MockHealer struct {
	mock.Mock
}

func (m *MockHealer) HealAll(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func TestNewConsistencyWorker_RejectsSchedule(t *testing.T) {
	_, err := NewConsistencyWorker(new(MockHealer), zap.NewNop(), ConsistencyWorkerConfig{Schedule: "every night"})
	assert.ErrorContains(t, err, "invalid sweep schedule")

	w, err := NewConsistencyWorker(new(MockHealer), zap.NewNop(), ConsistencyWorkerConfig{Schedule: "@every 1h"})
	require.NoError(t, err)
	assert.Equal(t, DefaultConsistencyWorkerConfig().Timeout, w.config.Timeout)
}

func TestConsistencyWorker_SweepAppliesTimeout(t *testing.T) {
	healer := new(MockHealer)
	healer.On("HealAll", mock.MatchedBy(func(ctx context.Context) bool {
		_, ok := ctx.Deadline()
		return ok
	})).Return(2, nil).Once()
	healer.On("HealAll", mock.Anything).Return(1, errors.New("plan x: inconsistent")).Once()

	w, err := NewConsistencyWorker(healer, zap.NewNop(), DefaultConsistencyWorkerConfig())
	require.NoError(t, err)
	assert.True(t, w.Sweep(context.Background()))
	assert.True(t, w.Sweep(context.Background()))
	healer.AssertNumberOfCalls(t, "HealAll", 2)
}

func TestConsistencyWorker_SkipsOverlappingSweep(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	healer := new(MockHealer)
	healer.On("HealAll", mock.Anything).Run(func(mock.Arguments) {
		close(started)
		<-release
	}).Return(0, nil).Once()

	w, err := NewConsistencyWorker(healer, zap.NewNop(), DefaultConsistencyWorkerConfig())
	require.NoError(t, err)

	done := make(chan bool)
	go func() { done <- w.Sweep(context.Background()) }()
	<-started
	assert.False(t, w.Sweep(context.Background()))
	close(release)
	assert.True(t, <-done)
	healer.AssertExpectations(t)
}

func TestConsistencyWorker_StartRunsOnStartAndStops(t *testing.T) {
	swept := make(chan struct{}, 1)
	healer := new(MockHealer)
	healer.On("HealAll", mock.Anything).Run(func(mock.Arguments) {
		swept <- struct{}{}
	}).Return(0, nil)

	cfg := DefaultConsistencyWorkerConfig()
	cfg.RunOnStart = true
	w, err := NewConsistencyWorker(healer, zap.NewNop(), cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan error)
	go func() { stopped <- w.Start(ctx) }()

	select {
	case <-swept:
	case <-time.After(5 * time.Second):
		t.Fatal("sweep did not run on start")
	}
	cancel()
	select {
	case err := <-stopped:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}
}
