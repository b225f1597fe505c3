package testutils

import (
	"bytes"
	"context"
	"sync"
	"sync/atomic"

	"github.com/srg/blesensor/internal/device"
)

// DescriptorWrite records one WriteDescriptor call.
type DescriptorWrite struct {
	UUID  string
	Value []byte
}

// FakeLink is the device.Link handed out by FakeCentral.
type FakeLink struct {
	p *FakePeripheral

	mu           sync.Mutex
	handlers     map[string]func([]byte)
	indications  map[string]bool
	writes       []DescriptorWrite
	mtuRequested int
	dropped      chan struct{}
	dropOnce     *sync.Once

	reads        atomic.Int32
	unsubscribes atomic.Int32
	disconnects  atomic.Int32
	reconnects   atomic.Int32
}

func newFakeLink(p *FakePeripheral) *FakeLink {
	return &FakeLink{
		p:           p,
		handlers:    make(map[string]func([]byte)),
		indications: make(map[string]bool),
		dropped:     make(chan struct{}),
		dropOnce:    &sync.Once{},
	}
}

func (l *FakeLink) Address() string { return l.p.Address }

func (l *FakeLink) DiscoverServices(ctx context.Context) ([]device.Service, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if l.p.discoverHang {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-l.Disconnected():
			return nil, device.ErrNotConnected
		}
	}
	if l.p.discoverErr != nil {
		return nil, l.p.discoverErr
	}
	out := make([]device.Service, len(l.p.services))
	for i, s := range l.p.services {
		out[i] = s
	}
	return out, nil
}

func (l *FakeLink) ExchangeMTU(mtu int) (int, error) {
	l.mu.Lock()
	l.mtuRequested = mtu
	dropped := l.dropped
	l.mu.Unlock()

	if l.p.mtuHang {
		<-dropped
		return 0, device.ErrNotConnected
	}
	if l.p.mtuErr != nil {
		return 0, l.p.mtuErr
	}
	return mtu, nil
}

func (l *FakeLink) Read(c device.Characteristic) ([]byte, error) {
	l.reads.Add(1)
	if l.p.readErr != nil {
		return nil, l.p.readErr
	}
	fc, ok := c.(*fakeCharacteristic)
	if !ok {
		return nil, device.ErrUnsupported
	}
	return bytes.Clone(fc.value), nil
}

func (l *FakeLink) Subscribe(c device.Characteristic, indicate bool, handler func([]byte)) error {
	if l.p.subscribeErr != nil {
		return l.p.subscribeErr
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handlers[c.UUID()] = handler
	l.indications[c.UUID()] = indicate
	return nil
}

func (l *FakeLink) Unsubscribe(c device.Characteristic, _ bool) error {
	l.unsubscribes.Add(1)
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.handlers, c.UUID())
	return nil
}

func (l *FakeLink) WriteDescriptor(d device.Descriptor, value []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.writes = append(l.writes, DescriptorWrite{UUID: d.UUID(), Value: bytes.Clone(value)})
	return nil
}

func (l *FakeLink) Disconnected() <-chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dropped
}

// Reconnect re-arms the link after a Drop.
func (l *FakeLink) Reconnect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.reconnects.Add(1)

	l.mu.Lock()
	defer l.mu.Unlock()
	select {
	case <-l.dropped:
		l.dropped = make(chan struct{})
		l.dropOnce = &sync.Once{}
		return nil
	default:
		return device.ErrAlreadyConnected
	}
}

func (l *FakeLink) Disconnect() error {
	l.disconnects.Add(1)
	l.Drop()
	return nil
}

// Drop simulates the peripheral going out of range.
func (l *FakeLink) Drop() {
	l.mu.Lock()
	once, ch := l.dropOnce, l.dropped
	l.mu.Unlock()
	once.Do(func() { close(ch) })
}

// Notify pushes data to the subscriber of charUUID. Reports whether one was registered.
func (l *FakeLink) Notify(charUUID string, data []byte) bool {
	l.mu.Lock()
	h, ok := l.handlers[device.NormalizeUUID(charUUID)]
	l.mu.Unlock()
	if ok {
		h(bytes.Clone(data))
	}
	return ok
}

// Subscribed reports whether charUUID has a live subscription and whether it asked for indications.
func (l *FakeLink) Subscribed(charUUID string) (subscribed, indicate bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	uuid := device.NormalizeUUID(charUUID)
	_, subscribed = l.handlers[uuid]
	return subscribed, l.indications[uuid]
}

func (l *FakeLink) Writes() []DescriptorWrite {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]DescriptorWrite(nil), l.writes...)
}

// MTURequested returns the MTU passed to ExchangeMTU, 0 if never called.
func (l *FakeLink) MTURequested() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.mtuRequested
}

func (l *FakeLink) Reads() int        { return int(l.reads.Load()) }
func (l *FakeLink) Unsubscribes() int { return int(l.unsubscribes.Load()) }
func (l *FakeLink) Disconnects() int  { return int(l.disconnects.Load()) }
func (l *FakeLink) Reconnects() int   { return int(l.reconnects.Load()) }
