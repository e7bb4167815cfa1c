package services

import (
	"context"
	"sync"
	"time"
)

// Refresher calls refresh every interval while active. Suspend pauses it
// (the view went out of sight); Resume refreshes at once and restarts the
// interval. All refresh calls run on the Refresher's own goroutine.
type Refresher struct {
	interval time.Duration
	refresh  func(ctx context.Context)

	mu        sync.Mutex
	suspended bool
	cancel    context.CancelFunc
	done      chan struct{}
	resume    chan struct{}
}

func NewRefresher(interval time.Duration, refresh func(ctx context.Context)) *Refresher {
	return &Refresher{
		interval: interval,
		refresh:  refresh,
		resume:   make(chan struct{}, 1),
	}
}

// Start launches the loop. Calling Start on a running Refresher does nothing.
func (r *Refresher) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return
	}
	ctx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})
	go r.loop(ctx, r.done)
}

func (r *Refresher) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	timer := time.NewTimer(r.interval)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			if !r.isSuspended() {
				r.refresh(ctx)
			}
			timer.Reset(r.interval)
		case <-r.resume:
			r.refresh(ctx)
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(r.interval)
		}
	}
}

func (r *Refresher) isSuspended() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.suspended
}

func (r *Refresher) Suspend() {
	r.mu.Lock()
	r.suspended = true
	r.mu.Unlock()
}

func (r *Refresher) Resume() {
	r.mu.Lock()
	r.suspended = false
	r.mu.Unlock()
	select {
	case r.resume <- struct{}{}:
	default:
	}
}

// Stop ends the loop and waits for an in-flight refresh to return.
func (r *Refresher) Stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}
