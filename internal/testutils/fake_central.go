package testutils

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/srg/blesensor/internal/device"
)

// DefaultAdvertisementInterval is how often FakeCentral repeats each advertisement.
const DefaultAdvertisementInterval = 2 * time.Millisecond

// ErrDialRefused is the default error injected by FailDials.
var ErrDialRefused = errors.New("connection refused by peripheral")

// FakeCentral is a scripted device.Central. Scans repeat every peripheral's
// advertisement until cancelled; dials can be made to fail a set number of times.
type FakeCentral struct {
	mu           sync.Mutex
	peripherals  []*FakePeripheral
	scanErr      error
	dialFailures int
	dialErr      error
	links        []*FakeLink
	interval     time.Duration
	dialGate     chan struct{}

	scans atomic.Int32
	dials atomic.Int32
}

// NewFakeCentral creates a central with no peripherals in range.
func NewFakeCentral() *FakeCentral {
	return &FakeCentral{interval: DefaultAdvertisementInterval}
}

// WithPeripheral puts p in radio range.
func (c *FakeCentral) WithPeripheral(p *FakePeripheral) *FakeCentral {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.peripherals = append(c.peripherals, p)
	return c
}

// FailScan makes every Scan return err immediately.
func (c *FakeCentral) FailScan(err error) *FakeCentral {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scanErr = err
	return c
}

// FailDials makes the next n dials fail with err (ErrDialRefused when nil).
// A negative n fails every dial.
func (c *FakeCentral) FailDials(n int, err error) *FakeCentral {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		err = ErrDialRefused
	}
	c.dialFailures = n
	c.dialErr = err
	return c
}

// HoldDials makes dials block, ignoring their context, until ReleaseDials.
func (c *FakeCentral) HoldDials() *FakeCentral {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dialGate = make(chan struct{})
	return c
}

// ReleaseDials lets held dials complete.
func (c *FakeCentral) ReleaseDials() {
	c.mu.Lock()
	gate := c.dialGate
	c.dialGate = nil
	c.mu.Unlock()
	if gate != nil {
		close(gate)
	}
}

func (c *FakeCentral) Scan(ctx context.Context, handler func(device.Advertisement)) error {
	c.scans.Add(1)

	c.mu.Lock()
	scanErr := c.scanErr
	peripherals := append([]*FakePeripheral(nil), c.peripherals...)
	interval := c.interval
	c.mu.Unlock()

	if scanErr != nil {
		return scanErr
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		for _, p := range peripherals {
			if ctx.Err() != nil {
				return nil
			}
			handler(p.advertisement())
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (c *FakeCentral) Dial(ctx context.Context, address string) (device.Link, error) {
	c.dials.Add(1)

	c.mu.Lock()
	gate := c.dialGate
	c.mu.Unlock()
	if gate != nil {
		<-gate
	} else if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.dialFailures != 0 {
		if c.dialFailures > 0 {
			c.dialFailures--
		}
		return nil, c.dialErr
	}
	for _, p := range c.peripherals {
		if device.MatchesAddress(p.Address, address) {
			link := newFakeLink(p)
			c.links = append(c.links, link)
			return link, nil
		}
	}
	return nil, fmt.Errorf("no peripheral with address %s: %w", address, device.ErrNotConnected)
}

// Scans returns how many times Scan was called.
func (c *FakeCentral) Scans() int { return int(c.scans.Load()) }

// Dials returns how many times Dial was called.
func (c *FakeCentral) Dials() int { return int(c.dials.Load()) }

// Links returns every link handed out so far.
func (c *FakeCentral) Links() []*FakeLink {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*FakeLink(nil), c.links...)
}

// LastLink returns the most recent link, nil before the first successful dial.
func (c *FakeCentral) LastLink() *FakeLink {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.links) == 0 {
		return nil
	}
	return c.links[len(c.links)-1]
}

// ----------------------------
// Peripheral builder
// ----------------------------

// FakePeripheral describes one advertised device, its GATT table and how its links misbehave.
type FakePeripheral struct {
	Address string
	Name    string
	RSSI    int

	services     []*fakeService
	discoverErr  error
	mtuErr       error
	mtuHang      bool
	discoverHang bool
	subscribeErr error
	readErr      error
}

// NewFakePeripheral creates a peripheral advertising address and name.
func NewFakePeripheral(address, name string) *FakePeripheral {
	return &FakePeripheral{Address: address, Name: name, RSSI: -50}
}

// WithService adds a service to the GATT table.
func (p *FakePeripheral) WithService(uuid string) *FakePeripheral {
	p.services = append(p.services, &fakeService{uuid: device.NormalizeUUID(uuid)})
	return p
}

// WithCharacteristic adds a characteristic to the last added service.
// props is a comma list of read, write, notify, indicate. Notify and indicate
// characteristics get a CCCD unless WithoutCCCD follows.
func (p *FakePeripheral) WithCharacteristic(uuid, props string, value []byte) *FakePeripheral {
	if len(p.services) == 0 {
		panic("WithCharacteristic: no service added yet, call WithService first")
	}
	char := &fakeCharacteristic{
		uuid:  device.NormalizeUUID(uuid),
		props: parseProperties(props),
		value: value,
	}
	if char.props.CanPush() {
		char.cccd = &fakeDescriptor{uuid: device.CCCDUUID}
	}
	svc := p.services[len(p.services)-1]
	svc.chars = append(svc.chars, char)
	return p
}

// WithoutCCCD strips the configuration descriptor from the last added characteristic.
func (p *FakePeripheral) WithoutCCCD() *FakePeripheral {
	svc := p.services[len(p.services)-1]
	svc.chars[len(svc.chars)-1].cccd = nil
	return p
}

func (p *FakePeripheral) FailDiscovery(err error) *FakePeripheral { p.discoverErr = err; return p }
func (p *FakePeripheral) FailMTU(err error) *FakePeripheral       { p.mtuErr = err; return p }
func (p *FakePeripheral) FailSubscribe(err error) *FakePeripheral { p.subscribeErr = err; return p }
func (p *FakePeripheral) FailReads(err error) *FakePeripheral     { p.readErr = err; return p }

// HangMTU makes ExchangeMTU block until the link is disconnected.
func (p *FakePeripheral) HangMTU() *FakePeripheral { p.mtuHang = true; return p }

// HangDiscovery makes DiscoverServices block until its context ends or the link drops.
func (p *FakePeripheral) HangDiscovery() *FakePeripheral { p.discoverHang = true; return p }

func (p *FakePeripheral) advertisement() device.Advertisement {
	return &fakeAdvertisement{addr: p.Address, name: p.Name, rssi: p.RSSI}
}

func parseProperties(props string) device.Properties {
	var out device.Properties
	for _, p := range strings.Split(props, ",") {
		switch strings.TrimSpace(p) {
		case "read":
			out |= device.PropRead
		case "write":
			out |= device.PropWrite
		case "notify":
			out |= device.PropNotify
		case "indicate":
			out |= device.PropIndicate
		}
	}
	return out
}

type fakeAdvertisement struct {
	addr, name string
	rssi       int
}

func (a *fakeAdvertisement) LocalName() string { return a.name }
func (a *fakeAdvertisement) Addr() string      { return a.addr }
func (a *fakeAdvertisement) RSSI() int         { return a.rssi }
func (a *fakeAdvertisement) Connectable() bool { return true }

type fakeService struct {
	uuid  string
	chars []*fakeCharacteristic
}

func (s *fakeService) UUID() string { return s.uuid }

func (s *fakeService) Characteristics() []device.Characteristic {
	out := make([]device.Characteristic, len(s.chars))
	for i, c := range s.chars {
		out[i] = c
	}
	return out
}

type fakeCharacteristic struct {
	uuid  string
	props device.Properties
	cccd  *fakeDescriptor
	value []byte
}

func (c *fakeCharacteristic) UUID() string                  { return c.uuid }
func (c *fakeCharacteristic) Properties() device.Properties { return c.props }

func (c *fakeCharacteristic) CCCD() device.Descriptor {
	if c.cccd == nil {
		return nil
	}
	return c.cccd
}

type fakeDescriptor struct {
	uuid string
}

func (d *fakeDescriptor) UUID() string { return d.uuid }
