// Package scheduler implements the bounded-concurrency fetch scheduler.
// A fixed budget of slots gates task execution; callers past the budget
// queue in arrival order and are released strictly FIFO as slots free.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// DefaultConcurrency is the process-wide fetch budget.
const DefaultConcurrency = 3

// Scheduler gates task execution behind a fixed slot budget. Construct
// one instance per process lifetime and inject it; there is no package
// global.
type Scheduler struct {
	logger  *slog.Logger
	waiters []chan struct{}
	limit   int
	active  int
	mu      sync.Mutex
}

// New creates a scheduler with the given concurrency limit.
func New(limit int, logger *slog.Logger) *Scheduler {
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		limit:  limit,
		logger: logger.With("component", "scheduler"),
	}
}

// Do runs fn once a slot is available, blocking FIFO behind earlier
// callers when the budget is exhausted. The slot is released exactly once
// per started task regardless of outcome; a panicking task is caught,
// logged, and reported as an error so siblings keep running.
func (s *Scheduler) Do(ctx context.Context, fn func(context.Context) error) (err error) {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Task panicked", "panic", r)
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return fn(ctx)
}

// Limit returns the configured concurrency budget.
func (s *Scheduler) Limit() int {
	return s.limit
}

func (s *Scheduler) acquire(ctx context.Context) error {
	s.mu.Lock()
	if s.active < s.limit {
		s.active++
		s.mu.Unlock()
		return nil
	}

	ready := make(chan struct{})
	s.waiters = append(s.waiters, ready)
	s.mu.Unlock()

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		s.mu.Lock()
		for i, w := range s.waiters {
			if w == ready {
				s.waiters = append(s.waiters[:i], s.waiters[i+1:]...)
				s.mu.Unlock()
				return ctx.Err()
			}
		}
		s.mu.Unlock()
		// The slot was already handed over; give it back.
		s.release()
		return ctx.Err()
	}
}

// release frees a slot, handing it directly to the longest-waiting caller
// when one exists. The active count is unchanged on handover.
func (s *Scheduler) release() {
	s.mu.Lock()
	if len(s.waiters) > 0 {
		ready := s.waiters[0]
		s.waiters = s.waiters[1:]
		s.mu.Unlock()
		close(ready)
		return
	}
	s.active--
	s.mu.Unlock()
}
