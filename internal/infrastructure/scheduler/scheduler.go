// Package scheduler runs named periodic tasks on an injected clock, so tests
// drive a virtual clock instead of waiting on real timers.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/perimetra/sentinel/pkg/logger"
)

type task struct {
	name     string
	interval time.Duration
	fn       func(context.Context)
}

// Scheduler owns a set of periodic tasks with a shared lifecycle. Register
// tasks with Every before Start; Stop cancels all tickers and waits for
// in-flight runs.
type Scheduler struct {
	clock  clock.Clock
	logger logger.Logger

	mu      sync.Mutex
	tasks   []task
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// New creates a scheduler on the given clock.
func New(clk clock.Clock, log logger.Logger) *Scheduler {
	return &Scheduler{
		clock:  clk,
		logger: log.WithComponent("scheduler"),
	}
}

// Every registers a named task to run at the given interval. Panics if the
// scheduler has already started; task registration is a wiring-time concern.
func (s *Scheduler) Every(name string, interval time.Duration, fn func(context.Context)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		panic("scheduler: Every called after Start")
	}
	s.tasks = append(s.tasks, task{name: name, interval: interval, fn: fn})
}

// Start launches one goroutine per task. Calling Start twice is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	for _, t := range s.tasks {
		s.wg.Add(1)
		ticker := s.clock.Ticker(t.interval)
		go s.run(ctx, t, ticker)
	}
}

func (s *Scheduler) run(ctx context.Context, t task, ticker *clock.Ticker) {
	defer s.wg.Done()
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.invoke(ctx, t)
		}
	}
}

func (s *Scheduler) invoke(ctx context.Context, t task) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error(ctx, "scheduled task panicked", nil,
				logger.String("task", t.name), logger.Any("panic", r))
		}
	}()
	t.fn(ctx)
}

// Stop cancels all tasks and blocks until running invocations return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	s.wg.Wait()

	s.mu.Lock()
	s.started = false
	s.mu.Unlock()
}
