package goble

import (
	"context"
	"sync"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/srg/blesensor/internal/device"
)

// Central implements device.Central on top of the host adapter.
// The adapter is opened lazily so an unavailable radio surfaces as a scan error.
type Central struct {
	logger *logrus.Logger

	mu  sync.Mutex
	dev ble.Device
}

// NewCentral creates a Central. No adapter I/O happens until the first Scan or Dial.
func NewCentral(logger *logrus.Logger) *Central {
	if logger == nil {
		logger = logrus.New()
	}
	return &Central{logger: logger}
}

func (c *Central) device() (ble.Device, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.dev != nil {
		return c.dev, nil
	}
	dev, err := DeviceFactory()
	if err != nil {
		c.logger.WithField("error", err).Error("Failed to create BLE device")
		return nil, NormalizeError(err)
	}
	c.dev = dev
	return dev, nil
}

// Scan reports every advertisement, duplicates included, until ctx is done.
func (c *Central) Scan(ctx context.Context, handler func(device.Advertisement)) error {
	dev, err := c.device()
	if err != nil {
		return err
	}

	c.logger.Debug("Starting BLE scan...")
	err = dev.Scan(ctx, true, func(adv ble.Advertisement) {
		handler(newAdvertisement(adv))
	})
	if err != nil && ctx.Err() != nil {
		// scan stopped by the caller
		return nil
	}
	return NormalizeError(err)
}

// Dial connects to address and returns the live link.
func (c *Central) Dial(ctx context.Context, address string) (device.Link, error) {
	client, err := c.dial(ctx, address)
	if err != nil {
		return nil, err
	}
	return newLink(c, address, client), nil
}

func (c *Central) dial(ctx context.Context, address string) (ble.Client, error) {
	dev, err := c.device()
	if err != nil {
		return nil, err
	}

	c.logger.WithField("address", address).Debug("Dialing BLE device...")
	client, err := dev.Dial(ctx, ble.NewAddr(address))
	if err != nil {
		c.logger.WithFields(logrus.Fields{
			"address": address,
			"error":   err,
		}).Warn("Failed to dial BLE device")
		return nil, NormalizeError(err)
	}
	return client, nil
}

// Stop releases the host adapter.
func (c *Central) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.dev == nil {
		return nil
	}
	err := c.dev.Stop()
	c.dev = nil
	return NormalizeError(err)
}
