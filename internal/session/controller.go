package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/blesensor/internal/bledb"
	"github.com/srg/blesensor/internal/device"
	"github.com/srg/blesensor/internal/groutine"
	"github.com/srg/blesensor/internal/result"
	"github.com/srg/blesensor/internal/sensor"
)

const eventQueueSize = 64

// controller owns the lifecycle of one Start. Its fields are touched only by
// the run goroutine.
type controller[T sensor.Reading] struct {
	s      *Session[T]
	ctx    context.Context
	events chan event

	gen           uint64
	attemptCtx    context.Context
	attemptCancel context.CancelFunc
	services      []device.Service
	mtuTimer      *time.Timer
	pollCancel    context.CancelFunc

	// postMu lets shutdown fence off posters before draining the queue.
	postMu  sync.RWMutex
	stopped bool
}

func newController[T sensor.Reading](s *Session[T], ctx context.Context) *controller[T] {
	return &controller[T]{
		s:      s,
		ctx:    ctx,
		events: make(chan event, eventQueueSize),
	}
}

// run drives the lifecycle until ctx ends, whether through Close, a restart
// or the caller's context, and then releases everything the run acquired.
func (c *controller[T]) run() {
	defer c.shutdown()

	c.beginScan()
	for {
		select {
		case <-c.ctx.Done():
			return
		case ev := <-c.events:
			c.dispatch(ev)
		}
	}
}

// post enqueues ev unless the run is over. Callable from any goroutine.
func (c *controller[T]) post(ev event) bool {
	c.postMu.RLock()
	defer c.postMu.RUnlock()

	if c.stopped {
		return false
	}
	select {
	case c.events <- ev:
		return true
	case <-c.ctx.Done():
		return false
	}
}

// shutdown runs once ctx is done. Queued connections are released, the handle
// is torn down in the background and the session is left Closed.
func (c *controller[T]) shutdown() {
	c.endAttempt()
	c.s.polling.Store(false)

	c.postMu.Lock()
	c.stopped = true
	c.postMu.Unlock()

	for drained := false; !drained; {
		select {
		case ev := <-c.events:
			if ev.kind == evConnected && ev.link != nil {
				c.s.teardown(released{link: ev.link})
			}
		default:
			drained = true
		}
	}

	r := c.s.slot.take()
	switch c.s.State() {
	case sensor.Connected:
		c.s.setState(sensor.Disconnected)
	case sensor.CurrentlyInitializing:
		c.s.setState(sensor.Uninitialized)
	}
	c.s.setPhase(PhaseClosed)
	c.s.teardown(r)

	c.s.logger.Info("Session closed")
}

// work runs fn on a named goroutine bound to the current attempt. A panic is
// reported as a transport failure.
func (c *controller[T]) work(name string, fn func(ctx context.Context)) {
	gen := c.gen
	groutine.GoRecover(c.attemptCtx, name, fn, func(name string, p any) {
		c.post(event{kind: evTransportFailed, gen: gen, err: fmt.Errorf("%s panicked: %v", name, p)})
	})
}

func (c *controller[T]) log() *logrus.Entry {
	return c.s.logger.WithFields(logrus.Fields{
		"phase":   c.s.Phase().String(),
		"attempt": c.s.Attempt(),
	})
}

func (c *controller[T]) dispatch(ev event) {
	defer func() {
		if p := recover(); p != nil {
			c.log().WithFields(logrus.Fields{"event": ev.kind.String(), "panic": p}).Error("Event handler panicked")
			if c.s.Phase().establishing() {
				c.retry(fmt.Errorf("handling %s: %v", ev.kind, p))
			}
		}
	}()

	if ev.gen != c.gen {
		c.dropStale(ev)
		return
	}

	switch ev.kind {
	case evScanMatch:
		c.onScanMatch(ev.adv)
	case evScanFailed:
		c.onScanFailed(ev.err)
	case evConnected:
		c.onConnected(ev.link)
	case evDiscovered:
		c.onDiscovered(ev.services)
	case evMTU, evMTUTimeout:
		c.onMTUSettled(ev)
	case evTransportFailed:
		if c.s.Phase().establishing() {
			c.retry(ev.err)
		}
	case evNotifyFailed:
		c.onNotifyFailed(ev.err)
	case evValue:
		c.onValue(ev.data)
	case evReadFailed:
		c.onReadFailed(ev.err)
	case evLinkLost:
		c.onLinkLost()
	}
}

func (c *controller[T]) dropStale(ev event) {
	c.log().WithFields(logrus.Fields{
		"event": ev.kind.String(),
		"gen":   ev.gen,
	}).Debug("Dropping stale event")

	if ev.kind == evConnected && ev.link != nil && !c.s.slot.holds(ev.link) {
		c.s.teardown(released{link: ev.link})
	}
}

// ----------------------------
// Attempt bookkeeping
// ----------------------------

// endAttempt invalidates in-flight work of the current attempt.
func (c *controller[T]) endAttempt() {
	c.gen++
	c.s.scanner.Stop()
	c.stopPolling()
	if c.mtuTimer != nil {
		c.mtuTimer.Stop()
		c.mtuTimer = nil
	}
	if c.attemptCancel != nil {
		c.attemptCancel()
		c.attemptCancel = nil
	}
	c.services = nil
}

func (c *controller[T]) releaseHandle() {
	c.s.teardown(c.s.slot.take())
}

func (c *controller[T]) loading(msg string) {
	c.log().Info(msg)
	c.s.publish(result.Loading[T](msg))
}

func (c *controller[T]) fail(msg string) {
	c.log().Error(msg)
	c.s.publish(result.Error[T](msg))
}

// terminal ends the lifecycle with an Error envelope; only Start restarts it.
func (c *controller[T]) terminal(msg string) {
	c.endAttempt()
	c.releaseHandle()
	c.s.setPhase(PhaseFailed)
	c.s.setState(sensor.Uninitialized)
	c.fail(msg)
}

// retry counts a transport failure and scans again while attempts remain.
func (c *controller[T]) retry(err error) {
	c.log().WithField("error", err).Warn("Connection attempt failed")
	c.s.metrics.ConnectFailure(string(c.s.cfg.Kind))

	c.endAttempt()
	c.releaseHandle()
	c.s.setPhase(PhaseRetrying)

	limit := c.s.cfg.MaxConnectionAttempts
	n := int(c.s.attempt.Add(1))
	c.loading(fmt.Sprintf(msgAttempt, n, limit))

	if n <= limit {
		c.beginScan()
		return
	}
	c.terminal(errCouldNotConnect)
}

// ----------------------------
// Lifecycle steps
// ----------------------------

func (c *controller[T]) beginScan() {
	c.endAttempt()
	c.attemptCtx, c.attemptCancel = context.WithCancel(c.ctx)

	c.s.setPhase(PhaseScanning)
	c.loading(fmt.Sprintf(msgScanning, c.s.cfg.DisplayLabel()))

	gen := c.gen
	c.s.scanner.Start(c.attemptCtx,
		func(adv device.Advertisement) {
			c.post(event{kind: evScanMatch, gen: gen, adv: adv})
		},
		func(err error) {
			c.post(event{kind: evScanFailed, gen: gen, err: err})
		},
	)
}

func (c *controller[T]) onScanFailed(err error) {
	if c.s.Phase() != PhaseScanning {
		return
	}
	c.terminal(fmt.Sprintf(errBluetoothUnavailable, err))
}

func (c *controller[T]) onScanMatch(adv device.Advertisement) {
	if c.s.Phase() != PhaseScanning {
		return
	}
	c.s.scanner.Stop()

	c.s.setPhase(PhaseConnecting)
	c.s.setState(sensor.CurrentlyInitializing)
	c.loading(fmt.Sprintf(msgConnecting, c.s.cfg.DisplayLabel()))
	c.s.metrics.ConnectAttempt(string(c.s.cfg.Kind))

	gen := c.gen
	address := adv.Addr()
	timeout := c.s.cfg.ConnectTimeout
	c.work("ble-dial", func(ctx context.Context) {
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		link, err := c.s.central.Dial(ctx, address)
		if err != nil {
			c.post(event{kind: evTransportFailed, gen: gen, err: fmt.Errorf("dial %s: %w", address, err)})
			return
		}
		if !c.post(event{kind: evConnected, gen: gen, link: link}) {
			// run is over, nobody else will release this link
			c.s.teardown(released{link: link})
		}
	})
}

func (c *controller[T]) onConnected(link device.Link) {
	if c.s.Phase() != PhaseConnecting {
		c.s.teardown(released{link: link})
		return
	}

	c.s.slot.set(link)
	c.s.setPhase(PhaseDiscovering)
	c.log().WithField("address", link.Address()).Info("Connected")
	c.loading(msgDiscovering)

	gen := c.gen
	groutine.Go(c.attemptCtx, "ble-link-watch", func(ctx context.Context) {
		select {
		case <-link.Disconnected():
			c.post(event{kind: evLinkLost, gen: gen})
		case <-ctx.Done():
		}
	})

	c.work("ble-discover", func(ctx context.Context) {
		services, err := link.DiscoverServices(ctx)
		if err != nil {
			c.post(event{kind: evTransportFailed, gen: gen, err: fmt.Errorf("discover services: %w", err)})
			return
		}
		c.post(event{kind: evDiscovered, gen: gen, services: services})
	})
}

func (c *controller[T]) onDiscovered(services []device.Service) {
	if c.s.Phase() != PhaseDiscovering {
		return
	}
	c.services = services
	c.s.setPhase(PhaseNegotiatingMTU)
	c.loading(msgAdjustingMTU)

	link := c.s.slot.get()
	if c.s.cfg.MTU <= 0 || link == nil {
		c.setupDelivery()
		return
	}

	gen := c.gen
	c.mtuTimer = time.AfterFunc(c.s.cfg.MTUTimeout, func() {
		c.post(event{kind: evMTUTimeout, gen: gen})
	})

	mtu := c.s.cfg.MTU
	c.work("ble-mtu", func(context.Context) {
		negotiated, err := link.ExchangeMTU(mtu)
		c.post(event{kind: evMTU, gen: gen, mtu: negotiated, err: err})
	})
}

// onMTUSettled takes the first of MTU result and MTU timeout; the other is ignored.
func (c *controller[T]) onMTUSettled(ev event) {
	if c.s.Phase() != PhaseNegotiatingMTU {
		return
	}
	if c.mtuTimer != nil {
		c.mtuTimer.Stop()
		c.mtuTimer = nil
	}

	switch {
	case ev.kind == evMTUTimeout:
		c.log().WithField("timeout", c.s.cfg.MTUTimeout).Warn("MTU exchange timed out, using default MTU")
	case ev.err != nil && errors.Is(ev.err, device.ErrUnsupported):
		c.log().Debug("MTU exchange not supported by transport, using default MTU")
	case ev.err != nil:
		c.log().WithField("error", ev.err).Warn("MTU exchange failed, using default MTU")
	default:
		c.log().WithFields(logrus.Fields{
			"requested":  c.s.cfg.MTU,
			"negotiated": ev.mtu,
		}).Info("MTU negotiated")
	}

	c.setupDelivery()
}

func (c *controller[T]) setupDelivery() {
	c.s.setPhase(PhaseSettingUpDelivery)

	link := c.s.slot.get()
	if link == nil {
		c.retry(device.ErrNotConnected)
		return
	}

	char, err := device.FindCharacteristic(c.services, c.s.cfg.Service, c.s.cfg.Characteristic)
	if err != nil {
		c.log().WithField("error", err).Debug("Target lookup failed")
		c.terminal(errCharNotFound)
		return
	}

	props := char.Properties()
	if !props.CanPush() && !props.CanRead() {
		c.log().WithField("properties", props.String()).Debug("Target has no usable property")
		c.terminal(errCannotReadOrNotify)
		return
	}

	c.s.slot.setTarget(char)
	c.log().WithFields(logrus.Fields{
		"characteristic": bledb.Describe(char.UUID()),
		"properties":     props.String(),
	}).Debug("Target characteristic found")

	if props.CanPush() {
		c.enableNotification(link, char)
	}
	if props.CanRead() {
		c.startPolling(link, char)
	}

	c.s.setPhase(PhaseStreaming)
	c.s.setState(sensor.Connected)
	c.log().Info("Streaming")
}

func (c *controller[T]) onValue(data []byte) {
	if c.s.Phase() != PhaseStreaming {
		return
	}

	kind := string(c.s.cfg.Kind)
	reading, err := c.s.codec.Decode(data)
	if err != nil {
		c.log().WithFields(logrus.Fields{
			"error": err,
			"frame": sensor.HexString(data),
		}).Debug("Frame decode failed, publishing zero reading")
	} else if c.s.logger.Logger.IsLevelEnabled(logrus.TraceLevel) {
		c.log().WithField("frame", sensor.HexString(data)).Trace("Frame received")
	}
	c.s.metrics.Frame(kind, err == nil)
	c.s.publish(result.Success(reading))
}

func (c *controller[T]) onLinkLost() {
	phase := c.s.Phase()
	switch {
	case phase == PhaseStreaming:
		c.log().Warn("Link lost while streaming")
		c.s.metrics.Disconnect(string(c.s.cfg.Kind))
		c.endAttempt()
		c.s.setPhase(PhaseDisconnected)
		c.s.setState(sensor.Disconnected)
		c.s.publish(result.Success(c.s.codec.Zero(sensor.Disconnected)))
		c.releaseHandle()
	case phase.establishing():
		c.retry(fmt.Errorf("link lost during %s: %w", phase, device.ErrNotConnected))
	}
}
