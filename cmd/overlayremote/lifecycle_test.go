package main

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOverlayLifecycle_StopOnce(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	closed := 0
	l := newOverlayLifecycle(cancel, func() { closed++ }, quietLogger())

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.RequestStop()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, closed)
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}

func TestCloseOverlayThroughDispatcherStopsOnce(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	closed := 0
	l := newOverlayLifecycle(cancel, func() { closed++ }, quietLogger())
	d := NewDispatcher(nil, nil, l, quietLogger())

	assert.Equal(t, ResultSuccess, d.Dispatch(ActionCloseOverlay).Kind)
	// A second close still reports success but does nothing.
	assert.Equal(t, ResultSuccess, d.Dispatch(ActionCloseOverlay).Kind)

	assert.Equal(t, 1, closed)
	assert.Error(t, ctx.Err())
}

func TestWaitStartDelay(t *testing.T) {
	start := time.Now()
	assert.NoError(t, waitStartDelay(context.Background(), 30*time.Millisecond, quietLogger()))
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)

	assert.NoError(t, waitStartDelay(context.Background(), 0, quietLogger()))
}

func TestWaitStartDelay_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := waitStartDelay(ctx, time.Hour, quietLogger())
	assert.True(t, errors.Is(err, context.Canceled))
}
