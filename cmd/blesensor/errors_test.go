package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/srg/blesensor/internal/device"
	"github.com/srg/blesensor/internal/sensor"
	"github.com/stretchr/testify/assert"
)

func TestFormatUserError(t *testing.T) {
	_, unknownKind := sensor.ParseKind("glucose")

	tests := []struct {
		name     string
		err      error
		contains []string
	}{
		{"nil", nil, nil},
		{"plain", errors.New("boom"), []string{"boom"}},
		{"bluetooth off", fmt.Errorf("scan: %w", device.ErrBluetoothOff), []string{"bluetooth_off", "Hint: make sure Bluetooth is turned on"}},
		{"unknown kind", unknownKind, []string{`"glucose"`, "blesensor kinds"}},
		{"connection lost", fmt.Errorf("strap: %w", ErrConnectionLost), []string{"strap: connection lost", "out of range"}},
		{"not found", &device.NotFoundError{Resource: "service", UUIDs: []string{"180d"}}, []string{`service "180d" not found`, "--service and --char"}},
		{"joined", errors.Join(errors.New("first"), errors.New("second")), []string{"multiple problems:", "\n  - first", "\n  - second"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatUserError(tt.err)
			if tt.err == nil {
				assert.Empty(t, got)
				return
			}
			for _, want := range tt.contains {
				assert.Contains(t, got, want)
			}
		})
	}
}

func TestFormatVersion(t *testing.T) {
	assert.Equal(t, "v1.2.3", formatVersion("1.2.3"))
	assert.Equal(t, "dev", formatVersion("dev"))
	assert.Equal(t, "", formatVersion(""))
}
