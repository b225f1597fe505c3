// Package session drives one BLE sensor from scan to decoded readings.
//
// A Session scans for its target peripheral, connects, discovers services,
// negotiates the MTU and then receives characteristic values by notification,
// polling or both. Every value is decoded by the session's codec and
// published as a Success envelope; progress is published as Loading and
// failures as Error. Consumers only ever see the result channel.
//
// All lifecycle decisions are taken by a single controller goroutine that
// consumes completion events from the transport. Transport calls run on
// worker goroutines, so no callback ever blocks the controller.
package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"github.com/srg/blesensor/internal/device"
	"github.com/srg/blesensor/internal/groutine"
	"github.com/srg/blesensor/internal/metrics"
	"github.com/srg/blesensor/internal/result"
	"github.com/srg/blesensor/internal/scanner"
	"github.com/srg/blesensor/internal/sensor"
	"github.com/srg/blesensor/pkg/config"
)

// Option customizes a Session.
type Option func(*options)

type options struct {
	logger  *logrus.Logger
	metrics *metrics.Metrics
}

// WithLogger sets the logger; the default discards below warn level.
func WithLogger(logger *logrus.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithMetrics records session activity on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// Session is one sensor connection publishing readings of type T.
type Session[T sensor.Reading] struct {
	cfg     config.Session
	central device.Central
	codec   sensor.Codec[T]
	logger  *logrus.Entry
	metrics *metrics.Metrics
	results *result.Channel[T]
	scanner *scanner.Scanner

	state   atomic.Int32
	phase   atomic.Int32
	attempt atomic.Int32
	polling atomic.Bool

	slot handleSlot

	lifeMu sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates an idle session. cfg gets its defaults applied and is validated.
// An empty cfg.Kind is taken from codec.
func New[T sensor.Reading](cfg config.Session, central device.Central, codec sensor.Codec[T], opts ...Option) (*Session[T], error) {
	if central == nil {
		return nil, fmt.Errorf("session: central is required")
	}
	if codec == nil {
		return nil, fmt.Errorf("session: codec is required")
	}
	if cfg.Kind == "" {
		cfg.Kind = codec.Kind()
	}
	if cfg.Kind != codec.Kind() {
		return nil, fmt.Errorf("session: config kind %q does not match codec kind %q", cfg.Kind, codec.Kind())
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("session: invalid config: %w", err)
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logrus.New()
		o.logger.SetLevel(logrus.WarnLevel)
	}

	logger := o.logger.WithFields(logrus.Fields{
		"session": cfg.DisplayLabel(),
		"kind":    string(cfg.Kind),
	})

	s := &Session[T]{
		cfg:     cfg,
		central: central,
		codec:   codec,
		logger:  logger,
		metrics: o.metrics,
		results: result.NewChannel[T](cfg.ResultBuffer),
		scanner: scanner.New(central, cfg.Identity(), o.logger),
	}
	s.attempt.Store(1)
	return s, nil
}

// Start (re)starts the lifecycle from scanning. A running session is closed
// first; state is reset to Uninitialized and the attempt counter to 1.
// The session stops when ctx is cancelled or Close is called; either way the
// link is released and the phase ends at Closed.
func (s *Session[T]) Start(ctx context.Context) error {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()

	s.stopLocked()

	s.setState(sensor.Uninitialized)
	s.setPhase(PhaseIdle)
	s.attempt.Store(1)
	s.polling.Store(false)

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done

	c := newController(s, runCtx)
	groutine.Go(runCtx, "session-controller", func(context.Context) {
		defer close(done)
		c.run()
	})

	s.logger.Info("Session started")
	return nil
}

// Close stops the session from any state. Scanning and polling stop at once;
// notification disable and disconnect are issued in the background without
// waiting. Idempotent.
func (s *Session[T]) Close() error {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()

	s.stopLocked()
	return nil
}

// stopLocked ends the current run and waits for the controller to release it.
func (s *Session[T]) stopLocked() {
	if s.cancel == nil {
		return
	}

	s.cancel()
	<-s.done
	s.cancel, s.done = nil, nil
}

// Reconnect asks the current link to re-establish itself. It does not drive
// the lifecycle and is a no-op without a link.
func (s *Session[T]) Reconnect(ctx context.Context) error {
	link := s.slot.get()
	if link == nil {
		s.logger.Debug("Reconnect without a link, ignoring")
		return nil
	}
	return link.Reconnect(ctx)
}

// Disconnect stops polling and drops the current link. It is a no-op without a link.
func (s *Session[T]) Disconnect() error {
	s.polling.Store(false)

	link := s.slot.get()
	if link == nil {
		s.logger.Debug("Disconnect without a link, ignoring")
		return nil
	}
	return link.Disconnect()
}

// Results is the envelope stream. It lives as long as the session and is
// shared across restarts.
func (s *Session[T]) Results() *result.Channel[T] { return s.results }

// Config returns the effective configuration.
func (s *Session[T]) Config() config.Session { return s.cfg }

func (s *Session[T]) State() sensor.ConnectionState {
	return sensor.ConnectionState(s.state.Load())
}

func (s *Session[T]) Phase() Phase {
	return Phase(s.phase.Load())
}

// Attempt is the current connection attempt, starting at 1.
func (s *Session[T]) Attempt() int {
	return int(s.attempt.Load())
}

func (s *Session[T]) setState(state sensor.ConnectionState) {
	if sensor.ConnectionState(s.state.Swap(int32(state))) != state {
		s.logger.WithField("state", state.String()).Debug("Connection state changed")
	}
	s.metrics.State(string(s.cfg.Kind), int(state))
}

func (s *Session[T]) setPhase(p Phase) {
	s.phase.Store(int32(p))
}

func (s *Session[T]) publish(env result.Envelope[T]) {
	s.results.Publish(env)
	s.metrics.Envelope(string(s.cfg.Kind), env.Kind.String())
}

// teardown releases a link in the background: unsubscribe, write the disable
// CCCD value, disconnect. Every step is best-effort.
func (s *Session[T]) teardown(r released) {
	if r.link == nil {
		return
	}

	groutine.GoRecover(context.Background(), "session-teardown", func(context.Context) {
		if r.notifying && r.char != nil {
			if err := r.link.Unsubscribe(r.char, r.indicate); err != nil {
				s.logger.WithField("error", err).Debug("Unsubscribe during teardown failed")
			}
			if cccd := r.char.CCCD(); cccd != nil {
				if err := r.link.WriteDescriptor(cccd, device.DisableNotificationValue); err != nil {
					s.logger.WithField("error", err).Debug("Disabling notifications during teardown failed")
				}
			}
		}
		if err := r.link.Disconnect(); err != nil {
			s.logger.WithField("error", err).Debug("Disconnect during teardown failed")
		}
	}, func(_ string, p any) {
		s.logger.WithField("panic", p).Error("Teardown panicked")
	})
}
