// Package scanner finds one target peripheral among BLE advertisements.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"github.com/srg/blesensor/internal/device"
	"github.com/srg/blesensor/internal/groutine"
)

// ErrScanEnded is reported when the transport ends a scan on its own before a match.
var ErrScanEnded = errors.New("scan ended before the target was found")

// Identity selects a peripheral by address OR advertised local name.
// Empty fields never match.
type Identity struct {
	Address string
	Name    string
}

// Matches reports whether adv belongs to the identity.
func (id Identity) Matches(adv device.Advertisement) bool {
	if adv == nil {
		return false
	}
	if device.MatchesAddress(id.Address, adv.Addr()) {
		return true
	}
	return id.Name != "" && adv.LocalName() == id.Name
}

func (id Identity) String() string {
	switch {
	case id.Address != "" && id.Name != "":
		return fmt.Sprintf("%s (%s)", id.Name, id.Address)
	case id.Address != "":
		return id.Address
	default:
		return id.Name
	}
}

// Validate rejects an identity that can never match.
func (id Identity) Validate() error {
	if strings.TrimSpace(id.Address) == "" && strings.TrimSpace(id.Name) == "" {
		return fmt.Errorf("device identity needs an address or a name")
	}
	return nil
}

// Scanner runs an unfiltered scan and stops itself on the first advertisement
// matching its Identity.
type Scanner struct {
	central  device.Central
	identity Identity
	logger   *logrus.Logger

	mu      sync.Mutex
	current *scanRun
}

// scanRun is one Start call; its flag is cleared by the first match or by Stop.
type scanRun struct {
	scanning atomic.Bool
	cancel   context.CancelFunc
}

// New creates a Scanner for identity.
func New(central device.Central, identity Identity, logger *logrus.Logger) *Scanner {
	if logger == nil {
		logger = logrus.New()
	}
	return &Scanner{
		central:  central,
		identity: identity,
		logger:   logger,
	}
}

// Start begins scanning in the background. onMatch runs at most once per Start,
// for the first matching advertisement. onError receives scan failures other
// than cancellation. A Start while a scan is running replaces it.
func (s *Scanner) Start(ctx context.Context, onMatch func(device.Advertisement), onError func(error)) {
	scanCtx, cancel := context.WithCancel(ctx)
	run := &scanRun{cancel: cancel}
	run.scanning.Store(true)

	s.mu.Lock()
	prev := s.current
	s.current = run
	s.mu.Unlock()
	prev.stop()

	s.logger.WithField("target", s.identity.String()).Debug("Starting target scan...")

	groutine.GoRecover(scanCtx, "ble-target-scan", func(ctx context.Context) {
		defer cancel()

		err := s.central.Scan(ctx, func(adv device.Advertisement) {
			if !s.identity.Matches(adv) {
				return
			}
			// repeated advertisements race here; only the first wins
			if !run.scanning.CompareAndSwap(true, false) {
				return
			}
			s.logger.WithFields(logrus.Fields{
				"address": adv.Addr(),
				"name":    adv.LocalName(),
				"rssi":    adv.RSSI(),
			}).Info("Target device found")
			cancel()
			onMatch(adv)
		})

		if !run.scanning.Swap(false) || ctx.Err() != nil {
			return
		}
		if err == nil {
			err = ErrScanEnded
		}
		s.logger.WithField("error", err).Warn("Scan failed")
		onError(err)
	}, func(name string, p any) {
		cancel()
		if run.scanning.Swap(false) {
			onError(fmt.Errorf("%s panicked: %v", name, p))
		}
	})
}

// Stop cancels a running scan without waiting for the transport. Idempotent.
func (s *Scanner) Stop() {
	s.mu.Lock()
	run := s.current
	s.current = nil
	s.mu.Unlock()

	run.stop()
}

// Scanning reports whether a scan is in progress and has not matched yet.
func (s *Scanner) Scanning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current != nil && s.current.scanning.Load()
}

func (r *scanRun) stop() {
	if r == nil {
		return
	}
	r.scanning.Store(false)
	r.cancel()
}
