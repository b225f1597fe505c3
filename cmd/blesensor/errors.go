package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/srg/blesensor/internal/device"
	"github.com/srg/blesensor/internal/sensor"
)

// Command-level errors
var (
	// ErrConnectionLost indicates the peripheral dropped the link while streaming.
	// Sessions do not reconnect on their own after that point.
	ErrConnectionLost = errors.New("connection lost")

	// ErrSessionFailed indicates a session ended with a terminal error envelope.
	ErrSessionFailed = errors.New("session failed")
)

// FormatUserError turns err into a message for the terminal: known failures
// get a hint, joined errors are listed one per line.
func FormatUserError(err error) string {
	if err == nil {
		return ""
	}

	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) && len(joined.Unwrap()) > 1 {
		var b strings.Builder
		b.WriteString("multiple problems:")
		for _, e := range joined.Unwrap() {
			for _, line := range strings.Split(e.Error(), "\n") {
				fmt.Fprintf(&b, "\n  - %s", line)
			}
		}
		return b.String()
	}

	var notFound *device.NotFoundError

	switch {
	case errors.Is(err, device.ErrBluetoothOff):
		return fmt.Sprintf("%s\n  Hint: make sure Bluetooth is turned on and this process may use the adapter", err)
	case errors.Is(err, sensor.ErrUnknownKind):
		return fmt.Sprintf("%s\n  Hint: run 'blesensor kinds' to list supported sensors", err)
	case errors.Is(err, ErrConnectionLost):
		return fmt.Sprintf("%s\n  Hint: the sensor went out of range or was switched off", err)
	case errors.As(err, &notFound):
		return fmt.Sprintf("%s\n  Hint: check the --service and --char UUIDs", err)
	default:
		return err.Error()
	}
}
