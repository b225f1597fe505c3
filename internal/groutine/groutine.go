// Package groutine starts named goroutines. The name is attached as a pprof
// label, so it shows up in goroutine profiles, and is carried in the context.
package groutine

import (
	"context"
	"runtime/pprof"
)

type ctxKey string

const goroutineNameKey ctxKey = "goroutine_name"

// Go starts fn on a goroutine labelled name.
// If parentCtx is nil, context.Background() is used.
//
//	groutine.Go(ctx, "ble-poll", func(ctx context.Context) {
//	    // work
//	})
func Go(parentCtx context.Context, name string, fn func(ctx context.Context)) {
	if parentCtx == nil {
		parentCtx = context.Background()
	}

	labels := pprof.Labels("goroutine_name", name)

	go pprof.Do(parentCtx, labels, func(ctx context.Context) {
		ctx = context.WithValue(ctx, goroutineNameKey, name)
		fn(ctx)
	})
}

// GoRecover is Go with a panic handler. onPanic runs on the panicking
// goroutine with the goroutine name and the recovered value.
func GoRecover(parentCtx context.Context, name string, fn func(ctx context.Context), onPanic func(name string, p any)) {
	Go(parentCtx, name, func(ctx context.Context) {
		defer func() {
			if p := recover(); p != nil && onPanic != nil {
				onPanic(name, p)
			}
		}()
		fn(ctx)
	})
}

// GetName retrieves the goroutine name from the context.
func GetName(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v := ctx.Value(goroutineNameKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
