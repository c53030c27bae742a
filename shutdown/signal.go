// Package shutdown provides the set-once latch that coordinates graceful
// termination across the goroutines of one probe session.
//
// A Signal starts unset and can be set exactly once; later calls to Set are
// no-ops, so every task may call it on its way out without coordination.
// Observers can poll it (IsSet), block on it with a bound (Wait), select on it
// (Done), or hand it to context-aware code (Context).
//
// Usage:
//
//	sig := shutdown.New(context.Background())
//	go func() {
//		defer sig.Set()
//		for !sig.IsSet() {
//			// work
//		}
//	}()
//	<-sig.Done()
package shutdown

import (
	"context"
	"time"
)

// Signal is a monotonic shutdown flag shared by all tasks of a session.
type Signal struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates an unset Signal. The signal also becomes set when parent is done.
func New(parent context.Context) *Signal {
	ctx, cancel := context.WithCancel(parent)
	return &Signal{ctx: ctx, cancel: cancel}
}

// Set latches the signal. Safe to call any number of times from any goroutine.
func (s *Signal) Set() {
	s.cancel()
}

// IsSet reports whether the signal has been set, without blocking.
func (s *Signal) IsSet() bool {
	return s.ctx.Err() != nil
}

// Done returns a channel that is closed once the signal is set.
func (s *Signal) Done() <-chan struct{} {
	return s.ctx.Done()
}

// Wait blocks until the signal is set or d elapses, and reports whether the
// signal is set.
func (s *Signal) Wait(d time.Duration) bool {
	if d <= 0 {
		return s.IsSet()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-s.ctx.Done():
		return true
	case <-timer.C:
		return s.IsSet()
	}
}

// Context returns a context that is cancelled when the signal is set.
func (s *Signal) Context() context.Context {
	return s.ctx
}
