package jobs

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEvery(t *testing.T) {
	var runs atomic.Int32
	done := make(chan struct{})
	Every("test", 5*time.Millisecond, done, func(context.Context) { runs.Add(1) })

	assert.Eventually(t, func() bool { return runs.Load() >= 3 }, time.Second, time.Millisecond)
	close(done)
	time.Sleep(20 * time.Millisecond)
	stopped := runs.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, stopped, runs.Load())
}

func TestEverySurvivesPanic(t *testing.T) {
	var runs atomic.Int32
	done := make(chan struct{})
	defer close(done)
	Every("panicky", 5*time.Millisecond, done, func(context.Context) {
		if runs.Add(1) == 1 {
			panic("boom")
		}
	})

	assert.Eventually(t, func() bool { return runs.Load() >= 2 }, time.Second, time.Millisecond)
}

func TestEveryCancelsContextOnShutdown(t *testing.T) {
	done := make(chan struct{})
	started := make(chan context.Context, 1)
	Every("ctx", time.Millisecond, done, func(ctx context.Context) {
		select {
		case started <- ctx:
		default:
		}
	})

	ctx := <-started
	close(done)
	assert.Eventually(t, func() bool { return ctx.Err() != nil }, time.Second, time.Millisecond)
}

func TestEveryNonPositiveIntervalIsDisabled(t *testing.T) {
	var runs atomic.Int32
	done := make(chan struct{})
	defer close(done)

	assert.NotPanics(t, func() {
		Every("zero", 0, done, func(context.Context) { runs.Add(1) })
		Every("negative", -time.Second, done, func(context.Context) { runs.Add(1) })
	})
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, runs.Load())
}
