package goble

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/srg/blesensor/internal/device"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubDevice is a ble.Device whose Dial blocks until release is closed.
type stubDevice struct {
	ble.Device
	entered chan struct{}
	release chan struct{}
	client  *stubClient
}

func (d *stubDevice) Dial(ctx context.Context, _ ble.Addr) (ble.Client, error) {
	close(d.entered)
	<-d.release
	return d.client, nil
}

type stubClient struct {
	ble.Client
	dropped chan struct{}
	cancels atomic.Int32
}

func newStubClient() *stubClient {
	return &stubClient{dropped: make(chan struct{})}
}

func (c *stubClient) Disconnected() <-chan struct{} { return c.dropped }

func (c *stubClient) CancelConnection() error {
	c.cancels.Add(1)
	return nil
}

func within(t *testing.T, d time.Duration, fn func()) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn()
	}()
	select {
	case <-done:
	case <-time.After(d):
		require.FailNow(t, "call MUST NOT block while a reconnect dial is in flight")
	}
}

func TestBLEConnection_ReconnectDialsWithoutLock(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	dev := &stubDevice{
		entered: make(chan struct{}),
		release: make(chan struct{}),
		client:  newStubClient(),
	}
	central := &Central{logger: logger, dev: dev}

	old := newStubClient()
	close(old.dropped)
	link := newLink(central, "AA:BB:CC:DD:EE:01", old)

	reconnected := make(chan error, 1)
	go func() { reconnected <- link.Reconnect(context.Background()) }()

	select {
	case <-dev.entered:
	case <-time.After(time.Second):
		require.FailNow(t, "reconnect MUST dial")
	}

	within(t, time.Second, func() { <-link.Disconnected() })
	within(t, time.Second, func() { assert.NoError(t, link.Disconnect()) })
	assert.Equal(t, int32(1), old.cancels.Load(), "Disconnect MUST cancel the current client")

	close(dev.release)
	select {
	case err := <-reconnected:
		assert.ErrorIs(t, err, device.ErrNotConnected, "reconnect superseded by Disconnect MUST fail")
	case <-time.After(time.Second):
		require.FailNow(t, "reconnect MUST return once the dial completes")
	}
	assert.Equal(t, int32(1), dev.client.cancels.Load(), "superseded connection MUST be cancelled")

	_, err := link.currentClient()
	assert.ErrorIs(t, err, device.ErrNotConnected, "link MUST stay disconnected")
}

func TestBLEConnection_ReconnectSwapsClient(t *testing.T) {
	dev := &stubDevice{
		entered: make(chan struct{}),
		release: make(chan struct{}),
		client:  newStubClient(),
	}
	close(dev.release)
	central := &Central{logger: logrus.New(), dev: dev}

	old := newStubClient()
	link := newLink(central, "AA:BB:CC:DD:EE:01", old)

	assert.ErrorIs(t, link.Reconnect(context.Background()), device.ErrAlreadyConnected,
		"live link MUST refuse to reconnect")

	close(old.dropped)
	require.NoError(t, link.Reconnect(context.Background()))

	client, err := link.currentClient()
	require.NoError(t, err)
	assert.Same(t, dev.client, client.(*stubClient))
	assert.Zero(t, dev.client.cancels.Load())
}
