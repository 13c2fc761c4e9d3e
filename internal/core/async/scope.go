// Package async ties asynchronous results to the liveness of the scope that
// started them. A result whose scope has ended is dropped, never applied.
package async

import (
	"context"
	"sync"
	"time"
)

// Scope is the lifetime of a request, a websocket connection or a page load.
type Scope struct {
	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewScope derives a scope from parent. The scope ends when Close is called
// or parent is done, whichever comes first.
func NewScope(parent context.Context) *Scope {
	ctx, cancel := context.WithCancel(parent)
	return &Scope{ctx: ctx, cancel: cancel}
}

// WithTimeout derives a child scope that also ends after d.
func (s *Scope) WithTimeout(d time.Duration) *Scope {
	ctx, cancel := context.WithTimeout(s.ctx, d)
	return &Scope{ctx: ctx, cancel: cancel}
}

func (s *Scope) Context() context.Context { return s.ctx }

// Alive reports whether results may still be applied.
func (s *Scope) Alive() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.closed && s.ctx.Err() == nil
}

// Close ends the scope. Results arriving afterwards are discarded.
func (s *Scope) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()
}

// Wait blocks until every operation started with Go has finished.
func (s *Scope) Wait() { s.wg.Wait() }

// Go runs op in its own goroutine with the scope context. apply receives the
// outcome only if the scope is still alive when op returns; applies from
// concurrent operations are serialised so each sees a consistent view.
func Go[T any](s *Scope, op func(ctx context.Context) (T, error), apply func(T, error)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		v, err := op(s.ctx)
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed || s.ctx.Err() != nil {
			return
		}
		apply(v, err)
	}()
}
