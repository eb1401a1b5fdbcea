package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"

	"github.com/perimetra/sentinel/pkg/logger"
)

func TestSchedulerRunsTaskOnInterval(t *testing.T) {
	clk := clock.NewMock()
	s := New(clk, logger.NewNopLogger())

	var runs atomic.Int64
	s.Every("tick", time.Minute, func(ctx context.Context) {
		runs.Add(1)
	})

	s.Start()
	defer s.Stop()

	clk.Add(time.Minute)
	assert.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, time.Millisecond)

	clk.Add(3 * time.Minute)
	assert.Eventually(t, func() bool { return runs.Load() == 4 }, time.Second, time.Millisecond)
}

func TestSchedulerStopHaltsTasks(t *testing.T) {
	clk := clock.NewMock()
	s := New(clk, logger.NewNopLogger())

	var runs atomic.Int64
	s.Every("tick", time.Minute, func(ctx context.Context) {
		runs.Add(1)
	})

	s.Start()
	clk.Add(time.Minute)
	assert.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, time.Millisecond)

	s.Stop()
	clk.Add(10 * time.Minute)
	assert.Equal(t, int64(1), runs.Load())
}

func TestSchedulerRecoversFromPanic(t *testing.T) {
	clk := clock.NewMock()
	s := New(clk, logger.NewNopLogger())

	var runs atomic.Int64
	s.Every("flaky", time.Minute, func(ctx context.Context) {
		if runs.Add(1) == 1 {
			panic("boom")
		}
	})

	s.Start()
	defer s.Stop()

	clk.Add(time.Minute)
	assert.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, time.Millisecond)

	// The goroutine survives the panic and keeps ticking.
	clk.Add(time.Minute)
	assert.Eventually(t, func() bool { return runs.Load() == 2 }, time.Second, time.Millisecond)
}

func TestSchedulerStartTwiceIsNoop(t *testing.T) {
	clk := clock.NewMock()
	s := New(clk, logger.NewNopLogger())

	var runs atomic.Int64
	s.Every("tick", time.Minute, func(ctx context.Context) { runs.Add(1) })

	s.Start()
	s.Start()
	defer s.Stop()

	clk.Add(time.Minute)
	assert.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, int64(1), runs.Load())
}
