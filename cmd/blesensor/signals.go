package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// interruptContext is cancelled on Ctrl+C or SIGTERM, and after duration when it is positive.
func interruptContext(parent context.Context, duration time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	if duration > 0 {
		var stop context.CancelFunc
		ctx, stop = context.WithTimeout(ctx, duration)
		prev := cancel
		cancel = func() { stop(); prev() }
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		defer signal.Stop(sigCh)
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}
