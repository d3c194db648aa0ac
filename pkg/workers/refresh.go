package workers

import (
	"context"
	"errors"
	"sync"

	"github.com/AmatanHead/points-game/pkg/log"
)

// ErrRefreshWorkerStopped resolves requests made after the worker stopped.
var ErrRefreshWorkerStopped = errors.New("refresh worker stopped")

// RefreshFunc fetches and applies one snapshot.
type RefreshFunc func(ctx context.Context) error

type RefreshState int

const (
	RefreshIdle RefreshState = iota
	RefreshFetching
	RefreshFetchingWithPendingRequest
)

func (s RefreshState) String() string {
	switch s {
	case RefreshIdle:
		return "idle"
	case RefreshFetching:
		return "fetching"
	case RefreshFetchingWithPendingRequest:
		return "fetching with pending request"
	default:
		return "unknown"
	}
}

// Refresh is a handle on one scheduled fetch. Every request coalesced into
// the same fetch shares the handle.
type Refresh struct {
	done chan struct{}
	err  error
}

func newRefresh() *Refresh {
	return &Refresh{done: make(chan struct{})}
}

func (r *Refresh) finish(err error) {
	r.err = err
	close(r.done)
}

// Done is closed once the fetch was applied or failed.
func (r *Refresh) Done() <-chan struct{} {
	return r.done
}

// Err returns the fetch error. It is only meaningful after Done is closed.
func (r *Refresh) Err() error {
	select {
	case <-r.done:
		return r.err
	default:
		return nil
	}
}

// Wait blocks until the fetch finished or ctx is done.
func (r *Refresh) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-r.done:
		return r.err
	}
}

// Refresher schedules refreshes.
type Refresher interface {
	Request() *Refresh
}

// RefreshWorker runs at most one refresh at a time. Requests made while a
// refresh is running collapse into a single follow-up refresh.
type RefreshWorker struct {
	refresh RefreshFunc

	lock    sync.Mutex
	state   RefreshState
	pending *Refresh
	stopped bool
	wake    chan struct{}
	runs    int
}

type NewRefreshWorkerOptions struct {
	Refresh RefreshFunc
}

func NewRefreshWorker(opts NewRefreshWorkerOptions) *RefreshWorker {
	return &RefreshWorker{
		refresh: opts.Refresh,
		wake:    make(chan struct{}, 1),
	}
}

// Request schedules a refresh and returns its handle. If a refresh is
// running, the request is recorded and served by the next one.
func (w *RefreshWorker) Request() *Refresh {
	w.lock.Lock()
	defer w.lock.Unlock()

	if w.stopped {
		r := newRefresh()
		r.finish(ErrRefreshWorkerStopped)
		return r
	}
	if w.pending != nil {
		return w.pending
	}

	w.pending = newRefresh()
	switch w.state {
	case RefreshIdle:
		w.state = RefreshFetching
	case RefreshFetching:
		w.state = RefreshFetchingWithPendingRequest
	}

	select {
	case w.wake <- struct{}{}:
	default:
	}
	return w.pending
}

// State returns the current state of the worker.
func (w *RefreshWorker) State() RefreshState {
	w.lock.Lock()
	defer w.lock.Unlock()
	return w.state
}

// Runs returns the number of refreshes started so far.
func (w *RefreshWorker) Runs() int {
	w.lock.Lock()
	defer w.lock.Unlock()
	return w.runs
}

func (w *RefreshWorker) Start(ctx context.Context) {
	defer func() {
		w.stop(ctx.Err())
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.wake:
			w.drain(ctx)
		}
	}
}

// drain runs refreshes until no request is pending.
func (w *RefreshWorker) drain(ctx context.Context) {
	for ctx.Err() == nil {
		w.lock.Lock()
		r := w.pending
		if r == nil {
			w.state = RefreshIdle
			w.lock.Unlock()
			return
		}
		w.pending = nil
		w.state = RefreshFetching
		w.runs++
		w.lock.Unlock()

		err := w.refresh(ctx)
		if err != nil {
			log.Debug("Refresh failed: %v", err)
		}
		r.finish(err)
	}
}

func (w *RefreshWorker) stop(err error) {
	if err == nil {
		err = ErrRefreshWorkerStopped
	}

	w.lock.Lock()
	defer w.lock.Unlock()

	w.stopped = true
	w.state = RefreshIdle
	if w.pending != nil {
		w.pending.finish(err)
		w.pending = nil
	}
}
