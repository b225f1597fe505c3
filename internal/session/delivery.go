package session

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/blesensor/internal/device"
	"github.com/srg/blesensor/internal/groutine"
	"github.com/srg/blesensor/internal/result"
)

// enableNotification subscribes to pushes and then writes the enable value to
// the CCCD. Without a CCCD the session relies on polling alone.
func (c *controller[T]) enableNotification(link device.Link, char device.Characteristic) {
	cccd := char.CCCD()
	if cccd == nil {
		c.log().WithField("characteristic", char.UUID()).Info("No CCCD on target, relying on polling")
		return
	}

	indicate := char.Properties().CanIndicate()
	gen := c.gen
	c.work("ble-enable-notify", func(context.Context) {
		err := link.Subscribe(char, indicate, func(data []byte) {
			c.post(event{kind: evValue, gen: gen, data: data})
		})
		if err != nil {
			c.post(event{kind: evNotifyFailed, gen: gen, err: err})
			return
		}
		if !c.s.slot.markNotifying(link, indicate) {
			return
		}
		if err := link.WriteDescriptor(cccd, device.EnableValue(indicate)); err != nil {
			c.log().WithField("error", err).Warn("Writing CCCD enable value failed")
		}
	})
}

func (c *controller[T]) onNotifyFailed(err error) {
	if c.s.Phase() != PhaseStreaming {
		return
	}
	c.log().WithField("error", err).Warn("Enabling notifications failed")
	c.fail(errEnableNotifications)

	if c.s.polling.Load() {
		c.log().Info("Continuing with polling only")
		return
	}
	c.retry(fmt.Errorf("%s: %w", errEnableNotifications, err))
}

// startPolling reads the target every PollInterval while the polling flag is
// set and link is still the session's handle. The flag is checked right
// before each read, so clearing it suppresses the next read.
func (c *controller[T]) startPolling(link device.Link, char device.Characteristic) {
	c.stopPolling()

	ctx, cancel := context.WithCancel(c.attemptCtx)
	c.pollCancel = cancel
	c.s.polling.Store(true)

	gen := c.gen
	interval := c.s.cfg.PollInterval
	c.log().WithField("interval", interval).Debug("Polling started")

	groutine.GoRecover(ctx, "ble-poll", func(ctx context.Context) {
		timer := time.NewTimer(interval)
		defer timer.Stop()

		for {
			if ctx.Err() != nil || !c.s.polling.Load() || !c.s.slot.holds(link) {
				return
			}
			data, err := link.Read(char)
			if err != nil {
				c.post(event{kind: evReadFailed, gen: gen, err: err})
			} else {
				c.post(event{kind: evValue, gen: gen, data: data})
			}

			timer.Reset(interval)
			select {
			case <-ctx.Done():
				return
			case <-timer.C:
			}
		}
	}, func(name string, p any) {
		c.log().WithField("panic", p).Error("Polling panicked")
		c.post(event{kind: evReadFailed, gen: gen, err: fmt.Errorf("%s panicked: %v", name, p)})
	})
}

func (c *controller[T]) stopPolling() {
	c.s.polling.Store(false)
	if c.pollCancel != nil {
		c.pollCancel()
		c.pollCancel = nil
	}
}

func (c *controller[T]) onReadFailed(err error) {
	if c.s.Phase() != PhaseStreaming {
		return
	}
	c.s.metrics.ReadFailure(string(c.s.cfg.Kind))
	c.log().WithFields(logrus.Fields{"error": err}).Warn("Polling read failed")
	c.s.publish(result.Error[T](fmt.Sprintf(errReadFailed, err)))
}
