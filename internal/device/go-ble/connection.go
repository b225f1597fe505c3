package goble

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/srg/blesensor/internal/device"
)

// DefaultReadTimeout bounds a single characteristic read.
const DefaultReadTimeout = 5 * time.Second

// BLEConnection implements device.Link over a go-ble client.
type BLEConnection struct {
	central *Central
	address string
	logger  *logrus.Logger

	connMutex    sync.RWMutex
	client       ble.Client
	closed       bool
	reconnecting bool
	// epoch counts Disconnect calls so a reconnect racing one is discarded
	epoch uint64
}

func newLink(central *Central, address string, client ble.Client) *BLEConnection {
	return &BLEConnection{
		central: central,
		address: address,
		logger:  central.logger,
		client:  client,
	}
}

func (c *BLEConnection) Address() string { return c.address }

func (c *BLEConnection) currentClient() (ble.Client, error) {
	c.connMutex.RLock()
	defer c.connMutex.RUnlock()

	if c.client == nil || c.closed {
		return nil, device.ErrNotConnected
	}
	return c.client, nil
}

// DiscoverServices runs a full profile discovery. go-ble has no cancellable
// discovery, so ctx only bounds how long the caller waits.
func (c *BLEConnection) DiscoverServices(ctx context.Context) ([]device.Service, error) {
	client, err := c.currentClient()
	if err != nil {
		return nil, err
	}

	type discoverResult struct {
		profile *ble.Profile
		err     error
	}
	resultCh := make(chan discoverResult, 1)
	go func() {
		p, err := client.DiscoverProfile(true)
		resultCh <- discoverResult{profile: p, err: err}
	}()

	select {
	case res := <-resultCh:
		if res.err != nil {
			return nil, fmt.Errorf("failed to discover profile: %w", NormalizeError(res.err))
		}
		services := newServices(res.profile)
		c.logger.WithFields(logrus.Fields{
			"address":  c.address,
			"services": len(services),
		}).Debug("Profile discovered successfully")
		return services, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *BLEConnection) ExchangeMTU(mtu int) (int, error) {
	client, err := c.currentClient()
	if err != nil {
		return 0, err
	}
	negotiated, err := client.ExchangeMTU(mtu)
	if err != nil {
		return 0, NormalizeError(err)
	}
	return negotiated, nil
}

// Read reads the characteristic value, giving up after DefaultReadTimeout.
func (c *BLEConnection) Read(ch device.Characteristic) ([]byte, error) {
	client, err := c.currentClient()
	if err != nil {
		return nil, err
	}
	raw, err := rawCharacteristic(ch)
	if err != nil {
		return nil, err
	}

	type readResult struct {
		data []byte
		err  error
	}
	resultCh := make(chan readResult, 1)
	go func() {
		data, err := client.ReadCharacteristic(raw)
		resultCh <- readResult{data: data, err: err}
	}()

	select {
	case res := <-resultCh:
		if res.err != nil {
			return nil, fmt.Errorf("failed to read characteristic %s: %w", ch.UUID(), NormalizeError(res.err))
		}
		return res.data, nil
	case <-time.After(DefaultReadTimeout):
		return nil, fmt.Errorf("reading characteristic %s after %v: %w", ch.UUID(), DefaultReadTimeout, device.ErrTimeout)
	}
}

// Subscribe asks go-ble to deliver pushes; go-ble writes the CCCD itself.
// handler receives a private copy of each value.
func (c *BLEConnection) Subscribe(ch device.Characteristic, indicate bool, handler func([]byte)) error {
	client, err := c.currentClient()
	if err != nil {
		return err
	}
	raw, err := rawCharacteristic(ch)
	if err != nil {
		return err
	}

	err = client.Subscribe(raw, indicate, func(data []byte) {
		buf := make([]byte, len(data))
		copy(buf, data)
		handler(buf)
	})
	return NormalizeError(err)
}

func (c *BLEConnection) Unsubscribe(ch device.Characteristic, indicate bool) error {
	client, err := c.currentClient()
	if err != nil {
		return err
	}
	raw, err := rawCharacteristic(ch)
	if err != nil {
		return err
	}
	return NormalizeError(client.Unsubscribe(raw, indicate))
}

// WriteDescriptor writes value to d. CCCD writes are skipped: Subscribe and
// Unsubscribe already configure it, and CoreBluetooth rejects direct writes.
func (c *BLEConnection) WriteDescriptor(d device.Descriptor, value []byte) error {
	client, err := c.currentClient()
	if err != nil {
		return err
	}
	desc, ok := d.(*bleDescriptor)
	if !ok || desc.raw == nil {
		return fmt.Errorf("descriptor %s: %w", d.UUID(), device.ErrUnsupported)
	}
	if desc.uuid == device.CCCDUUID {
		c.logger.WithFields(logrus.Fields{
			"address": c.address,
			"value":   fmt.Sprintf("% x", value),
		}).Debug("CCCD managed by subscription, skipping direct write")
		return nil
	}
	return NormalizeError(client.WriteDescriptor(desc.raw, value))
}

// Disconnected is closed when the peripheral drops the current link.
func (c *BLEConnection) Disconnected() <-chan struct{} {
	c.connMutex.RLock()
	defer c.connMutex.RUnlock()

	if c.client == nil {
		done := make(chan struct{})
		close(done)
		return done
	}
	return c.client.Disconnected()
}

// Reconnect dials the same address again after the link dropped. The dial runs
// without holding the connection lock; a Disconnect issued meanwhile wins and
// the fresh connection is cancelled.
func (c *BLEConnection) Reconnect(ctx context.Context) error {
	c.connMutex.Lock()
	if c.client != nil && !c.closed {
		select {
		case <-c.client.Disconnected():
		default:
			c.connMutex.Unlock()
			return device.ErrAlreadyConnected
		}
	}
	if c.reconnecting {
		c.connMutex.Unlock()
		return fmt.Errorf("reconnect already in progress: %w", device.ErrAlreadyConnected)
	}
	c.reconnecting = true
	epoch := c.epoch
	c.connMutex.Unlock()

	client, err := c.central.dial(ctx, c.address)

	c.connMutex.Lock()
	c.reconnecting = false
	if err != nil {
		c.connMutex.Unlock()
		return err
	}
	if c.epoch != epoch {
		c.connMutex.Unlock()
		c.logger.WithField("address", c.address).Debug("Disconnected during reconnect, dropping new connection")
		if cerr := client.CancelConnection(); cerr != nil {
			c.logger.WithField("error", cerr).Debug("Cancelling superseded connection failed")
		}
		return device.ErrNotConnected
	}
	c.client = client
	c.closed = false
	c.connMutex.Unlock()

	c.logger.WithField("address", c.address).Info("BLE device reconnected")
	return nil
}

// Disconnect cancels the connection. Calling it on a closed link is a no-op.
func (c *BLEConnection) Disconnect() error {
	c.connMutex.Lock()
	c.epoch++
	if c.client == nil || c.closed {
		c.connMutex.Unlock()
		c.logger.Debug("Disconnect called but already disconnected")
		return nil
	}
	client := c.client
	c.closed = true
	c.connMutex.Unlock()

	c.logger.WithField("address", c.address).Info("Disconnecting BLE device...")
	if err := client.CancelConnection(); err != nil {
		c.logger.WithField("error", err).Warn("BLE device disconnected with errors")
		return NormalizeError(err)
	}
	return nil
}

func rawCharacteristic(ch device.Characteristic) (*ble.Characteristic, error) {
	bc, ok := ch.(*bleCharacteristic)
	if !ok || bc.raw == nil {
		return nil, fmt.Errorf("characteristic %s: %w", ch.UUID(), device.ErrUnsupported)
	}
	return bc.raw, nil
}
