package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/vietddude/sweeper/internal/core/domain"
)

func TestScheduler_RunsUntilCancelled(t *testing.T) {
	var runs atomic.Int32
	s := NewScheduler("test", 10*time.Millisecond, func(context.Context) error {
		runs.Add(1)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return runs.Load() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestScheduler_ErrorsDoNotStopLoop(t *testing.T) {
	var runs atomic.Int32
	s := NewScheduler("test", 5*time.Millisecond, func(context.Context) error {
		if runs.Add(1)%2 == 0 {
			return domain.ErrSweepInProgress
		}
		return errors.New("rpc down")
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Start(ctx)

	assert.Eventually(t, func() bool { return runs.Load() >= 4 }, time.Second, 5*time.Millisecond)
}

func TestScheduler_DisabledInterval(t *testing.T) {
	called := false
	s := NewScheduler("test", 0, func(context.Context) error {
		called = true
		return nil
	})

	done := make(chan struct{})
	go func() {
		s.Start(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("disabled scheduler should return immediately")
	}
	assert.False(t, called)
}
