package scheduler_test

import (
	"context"
	"smwall/scheduler"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runAsync(t *testing.T, s *scheduler.Scheduler, ctx context.Context) <-chan error {
	t.Helper()
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx)
	}()
	return done
}

func waitDone(t *testing.T, done <-chan error) {
	t.Helper()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestFixedDelayNeverOverlaps(t *testing.T) {
	const interval = 20 * time.Millisecond

	var mu sync.Mutex
	var running, maxRunning int
	var starts, ends []time.Time

	job := scheduler.Job{
		Name:     "slow",
		Interval: interval,
		Run: func(ctx context.Context) {
			mu.Lock()
			running++
			maxRunning = max(maxRunning, running)
			starts = append(starts, time.Now())
			mu.Unlock()

			time.Sleep(40 * time.Millisecond)

			mu.Lock()
			running--
			ends = append(ends, time.Now())
			mu.Unlock()
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(t, scheduler.New(scheduler.Config{}, job), ctx)
	time.Sleep(300 * time.Millisecond)
	cancel()
	waitDone(t, done)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, maxRunning)
	require.GreaterOrEqual(t, len(starts), 2)
	for i := 1; i < len(starts); i++ {
		gap := starts[i].Sub(ends[i-1])
		assert.GreaterOrEqual(t, gap, interval-time.Millisecond, "run %d started too early", i)
	}
}

func TestStrategiesRunIndependently(t *testing.T) {
	var fast, slow atomic.Int32

	jobs := []scheduler.Job{
		{Name: "fast", Interval: 10 * time.Millisecond, Run: func(ctx context.Context) { fast.Add(1) }},
		{Name: "blocked", Interval: 10 * time.Millisecond, Run: func(ctx context.Context) {
			slow.Add(1)
			<-ctx.Done()
		}},
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(t, scheduler.New(scheduler.Config{}, jobs...), ctx)
	time.Sleep(150 * time.Millisecond)
	cancel()
	waitDone(t, done)

	assert.Greater(t, fast.Load(), int32(3))
	assert.Equal(t, int32(1), slow.Load())
}

func TestPanickingJobKeepsLooping(t *testing.T) {
	var calls atomic.Int32
	job := scheduler.Job{
		Name:     "panics",
		Interval: 10 * time.Millisecond,
		Run: func(ctx context.Context) {
			calls.Add(1)
			panic("boom")
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(t, scheduler.New(scheduler.Config{RunOnStart: true}, job), ctx)
	time.Sleep(100 * time.Millisecond)
	cancel()
	waitDone(t, done)

	assert.GreaterOrEqual(t, calls.Load(), int32(2))
}

func TestRunOnStart(t *testing.T) {
	ran := make(chan struct{}, 1)
	job := scheduler.Job{
		Name:     "immediate",
		Interval: time.Hour,
		Run: func(ctx context.Context) {
			select {
			case ran <- struct{}{}:
			default:
			}
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(t, scheduler.New(scheduler.Config{RunOnStart: true}, job), ctx)

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("job did not run on start")
	}
	cancel()
	waitDone(t, done)
}

func TestInFlightJobGetsGracePeriod(t *testing.T) {
	started := make(chan struct{})
	var cancelledAfter atomic.Int64

	job := scheduler.Job{
		Name:     "long",
		Interval: time.Hour,
		Run: func(ctx context.Context) {
			close(started)
			begin := time.Now()
			<-ctx.Done()
			cancelledAfter.Store(int64(time.Since(begin)))
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(t, scheduler.New(scheduler.Config{RunOnStart: true, GracePeriod: 100 * time.Millisecond}, job), ctx)

	<-started
	cancel()
	waitDone(t, done)

	assert.GreaterOrEqual(t, time.Duration(cancelledAfter.Load()), 90*time.Millisecond)
}

func TestInvalidInterval(t *testing.T) {
	s := scheduler.New(scheduler.Config{}, scheduler.Job{Name: "broken", Run: func(ctx context.Context) {}})
	err := s.Run(context.Background())
	assert.ErrorContains(t, err, "interval must be positive")
}
