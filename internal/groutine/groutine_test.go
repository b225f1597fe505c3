package groutine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGo_CarriesName(t *testing.T) {
	names := make(chan string, 1)
	Go(nil, "ble-poll", func(ctx context.Context) {
		names <- GetName(ctx)
	})

	select {
	case name := <-names:
		assert.Equal(t, "ble-poll", name)
	case <-time.After(time.Second):
		require.FailNow(t, "goroutine MUST run")
	}
}

func TestGo_InheritsParentCancellation(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	Go(parent, "waiter", func(ctx context.Context) {
		<-ctx.Done()
		close(done)
	})
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		require.FailNow(t, "child context MUST be cancelled with its parent")
	}
}

func TestGoRecover(t *testing.T) {
	type recovered struct {
		name string
		p    any
	}
	got := make(chan recovered, 1)

	GoRecover(context.Background(), "ble-dial", func(context.Context) {
		panic("boom")
	}, func(name string, p any) {
		got <- recovered{name, p}
	})

	select {
	case r := <-got:
		assert.Equal(t, "ble-dial", r.name)
		assert.Equal(t, "boom", r.p)
	case <-time.After(time.Second):
		require.FailNow(t, "panic MUST reach the handler")
	}
}

func TestGetName_Empty(t *testing.T) {
	assert.Empty(t, GetName(context.Background()))
}
