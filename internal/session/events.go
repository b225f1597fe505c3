package session

import (
	"github.com/srg/blesensor/internal/device"
)

// Phase is the controller's position in the connection lifecycle.
type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseScanning
	PhaseConnecting
	PhaseDiscovering
	PhaseNegotiatingMTU
	PhaseSettingUpDelivery
	PhaseStreaming
	PhaseRetrying
	PhaseDisconnected
	PhaseFailed
	PhaseClosed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseScanning:
		return "scanning"
	case PhaseConnecting:
		return "connecting"
	case PhaseDiscovering:
		return "discovering"
	case PhaseNegotiatingMTU:
		return "negotiating-mtu"
	case PhaseSettingUpDelivery:
		return "setting-up-delivery"
	case PhaseStreaming:
		return "streaming"
	case PhaseRetrying:
		return "retrying"
	case PhaseDisconnected:
		return "disconnected"
	case PhaseFailed:
		return "failed"
	case PhaseClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// establishing reports whether a transport failure in p is retried.
func (p Phase) establishing() bool {
	return p >= PhaseConnecting && p <= PhaseSettingUpDelivery
}

type eventKind int

const (
	evScanMatch eventKind = iota
	evScanFailed
	evConnected
	evDiscovered
	evMTU
	evMTUTimeout
	evTransportFailed
	evNotifyFailed
	evValue
	evReadFailed
	evLinkLost
)

func (k eventKind) String() string {
	switch k {
	case evScanMatch:
		return "scan-match"
	case evScanFailed:
		return "scan-failed"
	case evConnected:
		return "connected"
	case evDiscovered:
		return "discovered"
	case evMTU:
		return "mtu"
	case evMTUTimeout:
		return "mtu-timeout"
	case evTransportFailed:
		return "transport-failed"
	case evNotifyFailed:
		return "notify-failed"
	case evValue:
		return "value"
	case evReadFailed:
		return "read-failed"
	case evLinkLost:
		return "link-lost"
	default:
		return "unknown"
	}
}

// event is a transport completion posted to the controller. gen ties it to
// the attempt that produced it; events from an earlier attempt are dropped.
type event struct {
	kind eventKind
	gen  uint64

	adv      device.Advertisement
	link     device.Link
	services []device.Service
	mtu      int
	data     []byte
	err      error
}

// User-visible progress and error messages.
const (
	msgScanning     = "scanning for %s..."
	msgConnecting   = "connecting to %s..."
	msgDiscovering  = "discovering services..."
	msgAdjustingMTU = "adjusting MTU..."
	msgAttempt      = "attempt %d/%d"

	errCouldNotConnect      = "could not connect to BLE device"
	errCharNotFound         = "characteristic not found"
	errCannotReadOrNotify   = "cannot read or notify"
	errEnableNotifications  = "failed to enable notifications"
	errReadFailed           = "failed to read data: %v"
	errBluetoothUnavailable = "bluetooth is disabled or unavailable: %v"
)
