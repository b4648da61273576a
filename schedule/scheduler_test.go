package schedule

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

func TestTriggerRejectsConcurrentRun(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	run := func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	}
	s, err := NewScheduler(SchedulerOptions{Spec: "@every 120h"}, run, nil, arbor.NewNoOpLogger())
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- s.Trigger(context.Background()) }()
	<-started

	assert.ErrorIs(t, s.Trigger(context.Background()), ErrRunInProgress)

	close(release)
	require.NoError(t, <-done)
}

func TestTriggerReturnsRunError(t *testing.T) {
	boom := errors.New("boom")
	s, err := NewScheduler(SchedulerOptions{}, func(context.Context) error { return boom }, nil, arbor.NewNoOpLogger())
	require.NoError(t, err)

	assert.ErrorIs(t, s.Trigger(context.Background()), boom)
	// guard is released after a failed run
	assert.ErrorIs(t, s.Trigger(context.Background()), boom)
}

func TestNewSchedulerRejectsBadSpec(t *testing.T) {
	_, err := NewScheduler(SchedulerOptions{Spec: "every so often"}, func(context.Context) error { return nil }, nil, arbor.NewNoOpLogger())
	assert.Error(t, err)

	_, err = NewScheduler(SchedulerOptions{}, nil, nil, arbor.NewNoOpLogger())
	assert.Error(t, err)
}

func TestStartReportsNextRun(t *testing.T) {
	s, err := NewScheduler(SchedulerOptions{Spec: "@every 120h"}, func(context.Context) error { return nil }, nil, arbor.NewNoOpLogger())
	require.NoError(t, err)
	assert.True(t, s.NextRun().IsZero())

	require.NoError(t, s.Start())
	defer s.Stop()

	next := s.NextRun()
	assert.WithinDuration(t, time.Now().Add(120*time.Hour), next, time.Minute)
	assert.Error(t, s.Start())
}

func TestCatchUp(t *testing.T) {
	tests := []struct {
		name    string
		lastRun time.Duration // age of the recorded run; 0 means none
		wantRun bool
	}{
		{"no state", 0, true},
		{"stale state", 6 * 24 * time.Hour, true},
		{"fresh state", 24 * time.Hour, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker := newTestTracker(t, time.Now())
			if tt.lastRun > 0 {
				require.NoError(t, tracker.RecordSuccessfulRun(time.Now().Add(-tt.lastRun)))
			}

			var calls atomic.Int32
			ran := make(chan struct{}, 1)
			run := func(context.Context) error {
				calls.Add(1)
				ran <- struct{}{}
				return nil
			}
			s, err := NewScheduler(SchedulerOptions{Spec: "@every 120h", CatchUp: true}, run, tracker, arbor.NewNoOpLogger())
			require.NoError(t, err)
			require.NoError(t, s.Start())
			defer s.Stop()

			select {
			case <-ran:
			case <-time.After(200 * time.Millisecond):
			}
			if tt.wantRun {
				assert.Equal(t, int32(1), calls.Load())
			} else {
				assert.Equal(t, int32(0), calls.Load())
			}
		})
	}
}

func TestStopWaitsForCatchUpRun(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	run := func(context.Context) error {
		close(started)
		<-release
		return nil
	}
	tracker := newTestTracker(t, time.Now())
	s, err := NewScheduler(SchedulerOptions{Spec: "@every 120h", CatchUp: true}, run, tracker, arbor.NewNoOpLogger())
	require.NoError(t, err)
	require.NoError(t, s.Start())

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("catch-up run did not start")
	}

	stopped := s.Stop()
	select {
	case <-stopped.Done():
		t.Fatal("Stop finished while the catch-up run was still going")
	case <-time.After(100 * time.Millisecond):
	}

	close(release)
	select {
	case <-stopped.Done():
	case <-time.After(time.Second):
		t.Fatal("Stop did not finish after the catch-up run returned")
	}
}
