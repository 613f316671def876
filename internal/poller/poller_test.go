package poller

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestRunsImmediatelyAndRepeats(t *testing.T) {
	var runs atomic.Int32
	p := New("test", 5*time.Millisecond, func(context.Context) error {
		runs.Add(1)
		return nil
	})

	p.Start(context.Background())
	assert.Eventually(t, func() bool { return runs.Load() >= 3 }, time.Second, time.Millisecond)
	p.Stop()

	assert.False(t, p.Running())
}

func TestCyclesNeverOverlap(t *testing.T) {
	var active, maxActive atomic.Int32
	p := New("slow", time.Millisecond, func(context.Context) error {
		n := active.Add(1)
		if n > maxActive.Load() {
			maxActive.Store(n)
		}
		time.Sleep(10 * time.Millisecond)
		active.Add(-1)
		return nil
	})

	p.Start(context.Background())
	time.Sleep(60 * time.Millisecond)
	p.Stop()

	assert.Equal(t, int32(1), maxActive.Load())
}

func TestStartIsIdempotent(t *testing.T) {
	var runs atomic.Int32
	p := New("once", time.Hour, func(context.Context) error {
		runs.Add(1)
		return nil
	})

	p.Start(context.Background())
	p.Start(context.Background())
	assert.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, time.Millisecond)
	assert.True(t, p.Running())

	p.Stop()
	p.Stop()
	assert.Equal(t, int32(1), runs.Load())
}

func TestErrorsDoNotStopTheLoop(t *testing.T) {
	var runs atomic.Int32
	p := New("failing", time.Millisecond, func(context.Context) error {
		runs.Add(1)
		return errors.New("boom")
	})

	p.Start(context.Background())
	assert.Eventually(t, func() bool { return runs.Load() >= 2 }, time.Second, time.Millisecond)
	p.Stop()
}

func TestStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := New("ctx", time.Hour, func(context.Context) error { return nil })

	p.Start(ctx)
	cancel()
	p.Stop()
}

func TestContextCancelClearsRunning(t *testing.T) {
	var runs atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	p := New("restart", 5*time.Millisecond, func(context.Context) error {
		runs.Add(1)
		return nil
	})

	p.Start(ctx)
	assert.Eventually(t, func() bool { return runs.Load() >= 1 }, time.Second, time.Millisecond)
	cancel()
	assert.Eventually(t, func() bool { return !p.Running() }, time.Second, time.Millisecond)

	before := runs.Load()
	p.Start(context.Background())
	assert.True(t, p.Running())
	assert.Eventually(t, func() bool { return runs.Load() > before }, time.Second, time.Millisecond)
	p.Stop()
	assert.False(t, p.Running())
}
