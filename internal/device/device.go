package device

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// NotFoundError represents an error when a BLE resource is not found
type NotFoundError struct {
	Resource string   // "service", "characteristic", "descriptor"
	UUIDs    []string // One or more UUIDs (e.g., [serviceUUID] or [serviceUUID, charUUID])
}

func (e *NotFoundError) Error() string {
	if len(e.UUIDs) == 0 {
		return fmt.Sprintf("%s not found", e.Resource)
	}
	if len(e.UUIDs) == 1 {
		return fmt.Sprintf("%s %q not found", e.Resource, e.UUIDs[0])
	}
	parentResource := "service"
	if e.Resource == "descriptor" {
		parentResource = "characteristic"
	}
	return fmt.Sprintf("%s %q not found in %s %q", e.Resource, e.UUIDs[len(e.UUIDs)-1], parentResource, e.UUIDs[0])
}

// LinkState names the kind of connection failure carried by a ConnectionError
type LinkState string

const (
	NotConnected     LinkState = "not_connected"
	AlreadyConnected LinkState = "already_connected"
	NotInitialized   LinkState = "not_initialized"
	BluetoothOff     LinkState = "bluetooth_off"
)

// ConnectionError represents any connection-related problem
type ConnectionError struct {
	State LinkState
	Msg   string
}

func (e *ConnectionError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Msg == "" {
		return string(e.State)
	}
	return fmt.Sprintf("%s: %s", e.State, e.Msg)
}

// Is allows errors.Is to compare ConnectionError values by State
func (e *ConnectionError) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*ConnectionError)
	if !ok {
		return false
	}
	return e.State == t.State
}

// Predefined sentinel errors for connection states
var (
	ErrNotConnected     = &ConnectionError{State: NotConnected}
	ErrAlreadyConnected = &ConnectionError{State: AlreadyConnected}
	ErrNotInitialized   = &ConnectionError{State: NotInitialized}
	ErrBluetoothOff     = &ConnectionError{State: BluetoothOff, Msg: "bluetooth is disabled or unavailable"}
)

// Operation errors
var (
	ErrTimeout     = errors.New("timeout")
	ErrUnsupported = errors.New("unsupported")
)

// IsConnectionState reports whether err is a ConnectionError with the given state
func IsConnectionState(err error, state LinkState) bool {
	var cerr *ConnectionError
	if errors.As(err, &cerr) {
		return cerr.State == state
	}
	return false
}

// Advertisement is a single scan report.
type Advertisement interface {
	LocalName() string
	Addr() string
	RSSI() int
	Connectable() bool
}

// Central discovers and dials peripherals.
type Central interface {
	// Scan reports every advertisement, duplicates included, until ctx is done.
	// It returns nil when ctx ends the scan.
	Scan(ctx context.Context, handler func(Advertisement)) error
	// Dial connects to the peripheral with the given address.
	Dial(ctx context.Context, address string) (Link, error)
}

// Service is a discovered GATT service.
type Service interface {
	UUID() string
	Characteristics() []Characteristic
}

// Characteristic is a discovered GATT characteristic.
type Characteristic interface {
	UUID() string
	Properties() Properties
	// CCCD returns the client characteristic configuration descriptor, nil when absent.
	CCCD() Descriptor
}

// Descriptor is a discovered GATT descriptor.
type Descriptor interface {
	UUID() string
}

// Link is a live connection to one peripheral.
type Link interface {
	Address() string
	DiscoverServices(ctx context.Context) ([]Service, error)
	// ExchangeMTU requests mtu and returns the negotiated value.
	ExchangeMTU(mtu int) (int, error)
	Read(c Characteristic) ([]byte, error)
	// Subscribe registers handler for value pushes, as indications when indicate is set.
	Subscribe(c Characteristic, indicate bool, handler func([]byte)) error
	Unsubscribe(c Characteristic, indicate bool) error
	WriteDescriptor(d Descriptor, value []byte) error
	// Disconnected is closed when the peripheral drops the link.
	Disconnected() <-chan struct{}
	// Reconnect re-establishes a dropped link to the same peripheral.
	Reconnect(ctx context.Context) error
	Disconnect() error
}

// FindCharacteristic locates charUUID inside serviceUUID. UUIDs are normalized first.
func FindCharacteristic(services []Service, serviceUUID, charUUID string) (Characteristic, error) {
	wantSvc := NormalizeUUID(serviceUUID)
	wantChar := NormalizeUUID(charUUID)

	for _, svc := range services {
		if NormalizeUUID(svc.UUID()) != wantSvc {
			continue
		}
		for _, c := range svc.Characteristics() {
			if NormalizeUUID(c.UUID()) == wantChar {
				return c, nil
			}
		}
		return nil, &NotFoundError{Resource: "characteristic", UUIDs: []string{serviceUUID, charUUID}}
	}
	return nil, &NotFoundError{Resource: "service", UUIDs: []string{serviceUUID}}
}

// MatchesAddress compares two BLE addresses ignoring case and separators.
func MatchesAddress(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	strip := strings.NewReplacer(":", "", "-", "")
	return strings.EqualFold(strip.Replace(a), strip.Replace(b))
}
