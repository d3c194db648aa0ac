package workers

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gatedRefresh blocks every refresh until released and reports when one
// starts.
type gatedRefresh struct {
	started chan struct{}
	release chan struct{}
	calls   int32
	err     error
}

func newGatedRefresh() *gatedRefresh {
	return &gatedRefresh{
		started: make(chan struct{}, 16),
		release: make(chan struct{}),
	}
}

func (g *gatedRefresh) Refresh(ctx context.Context) error {
	atomic.AddInt32(&g.calls, 1)
	g.started <- struct{}{}
	select {
	case <-g.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	return g.err
}

func (g *gatedRefresh) waitStarted(t *testing.T) {
	t.Helper()
	select {
	case <-g.started:
	case <-time.After(time.Second):
		t.Fatal("refresh did not start")
	}
}

func TestRefreshWorker_CoalescesRequestsDuringFetch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g := newGatedRefresh()
	w := NewRefreshWorker(NewRefreshWorkerOptions{Refresh: g.Refresh})
	go w.Start(ctx)

	first := w.Request()
	g.waitStarted(t)
	assert.Equal(t, RefreshFetching, w.State())

	second := w.Request()
	assert.NotSame(t, first, second)
	for i := 0; i < 10; i++ {
		assert.Same(t, second, w.Request())
	}
	assert.Equal(t, RefreshFetchingWithPendingRequest, w.State())

	close(g.release)
	require.NoError(t, first.Wait(ctx))
	require.NoError(t, second.Wait(ctx))

	assert.Equal(t, int32(2), atomic.LoadInt32(&g.calls))
	assert.Equal(t, 2, w.Runs())
	assert.Eventually(t, func() bool { return w.State() == RefreshIdle }, time.Second, time.Millisecond)
}

func TestRefreshWorker_RequestsBeforeStartShareOneFetch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls int32
	w := NewRefreshWorker(NewRefreshWorkerOptions{Refresh: func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}})

	a := w.Request()
	b := w.Request()
	assert.Same(t, a, b)

	go w.Start(ctx)
	require.NoError(t, a.Wait(ctx))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestRefreshWorker_ReportsFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	boom := errors.New("read failed")
	w := NewRefreshWorker(NewRefreshWorkerOptions{Refresh: func(ctx context.Context) error {
		return boom
	}})
	go w.Start(ctx)

	r := w.Request()
	assert.ErrorIs(t, r.Wait(ctx), boom)
	assert.ErrorIs(t, r.Err(), boom)

	// a failed refresh leaves the worker ready for the next request
	assert.ErrorIs(t, w.Request().Wait(ctx), boom)
}

func TestRefreshWorker_Stop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	g := newGatedRefresh()
	w := NewRefreshWorker(NewRefreshWorkerOptions{Refresh: g.Refresh})
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	running := w.Request()
	g.waitStarted(t)
	queued := w.Request()

	cancel()
	<-done

	assert.ErrorIs(t, running.Wait(context.Background()), context.Canceled)
	assert.ErrorIs(t, queued.Wait(context.Background()), context.Canceled)
	assert.ErrorIs(t, w.Request().Wait(context.Background()), ErrRefreshWorkerStopped)
}
