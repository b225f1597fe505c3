package testutils

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

// DefaultWait bounds how long tests wait for asynchronous session output.
const DefaultWait = 2 * time.Second

type TestHelper struct {
	T      *testing.T
	Logger *logrus.Logger
}

// NewTestHelper creates a test helper with a debug logger.
func NewTestHelper(t *testing.T) *TestHelper {
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel) // enable debug logs to track execution flow
	return &TestHelper{
		T:      t,
		Logger: logger,
	}
}

// Context returns a context cancelled when the test ends.
func (h *TestHelper) Context() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	h.T.Cleanup(cancel)
	return ctx
}

// Receive waits up to DefaultWait for a value on ch.
func Receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		require.True(t, ok, "channel MUST be open")
		return v
	case <-time.After(DefaultWait):
		require.FailNow(t, "timed out waiting for value")
	}
	var zero T
	return zero
}

// ReceiveUntil drains ch until match returns true and returns everything seen, the match included.
func ReceiveUntil[T any](t *testing.T, ch <-chan T, match func(T) bool) []T {
	t.Helper()
	var seen []T
	deadline := time.After(DefaultWait)
	for {
		select {
		case v, ok := <-ch:
			require.True(t, ok, "channel closed before the expected value; seen %v", seen)
			seen = append(seen, v)
			if match(v) {
				return seen
			}
		case <-deadline:
			require.FailNowf(t, "timed out waiting for value", "seen %v", seen)
			return seen
		}
	}
}
