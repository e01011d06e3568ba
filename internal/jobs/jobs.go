// Package jobs runs periodic background work until shutdown.
package jobs

import (
	"context"
	"log/slog"
	"time"
)

// Every calls fn once per interval until done is closed. Each run gets a
// context that is cancelled on shutdown. A panicking run is logged and the
// schedule continues. A non-positive interval disables the job.
func Every(name string, interval time.Duration, done <-chan struct{}, fn func(ctx context.Context)) {
	if interval <= 0 {
		slog.Warn("background job disabled", "job", name, "interval", interval)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-done
		cancel()
	}()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				run(ctx, name, fn)
			case <-done:
				slog.Info("background job stopped", "job", name)
				return
			}
		}
	}()
}

func run(ctx context.Context, name string, fn func(ctx context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("background job panicked", "job", name, "panic", r)
		}
	}()
	fn(ctx)
}
