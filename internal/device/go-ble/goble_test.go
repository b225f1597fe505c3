package goble

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/go-ble/ble"
	"github.com/srg/blesensor/internal/device"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertProperties(t *testing.T) {
	tests := []struct {
		name string
		in   ble.Property
		want device.Properties
	}{
		{"none", 0, 0},
		{"read", ble.CharRead, device.PropRead},
		{"notify and read", ble.CharRead | ble.CharNotify, device.PropRead | device.PropNotify},
		{"indicate", ble.CharIndicate, device.PropIndicate},
		{"write variants", ble.CharWrite | ble.CharWriteNR, device.PropWrite | device.PropWriteNR},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, convertProperties(tt.in))
		})
	}
}

func TestNormalizeError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"darwin powered off", errors.New("central manager has invalid state: have=4 want=5: is Bluetooth turned on?"), device.ErrBluetoothOff},
		{"linux no adapter", errors.New("can't init hci: no devices available"), device.ErrBluetoothOff},
		{"not connected", errors.New("device not connected"), device.ErrNotConnected},
		{"already connected", errors.New("Device already connected"), device.ErrAlreadyConnected},
		{"mtu unsupported", errors.New("not implemented"), device.ErrUnsupported},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeError(tt.err)
			assert.ErrorIs(t, got, tt.want)
			assert.Contains(t, got.Error(), tt.err.Error(), "original message MUST be preserved")
		})
	}

	t.Run("nil stays nil", func(t *testing.T) {
		assert.NoError(t, NormalizeError(nil))
	})

	t.Run("unknown errors pass through", func(t *testing.T) {
		err := errors.New("att: invalid handle")
		assert.Same(t, err, NormalizeError(err))
	})

	t.Run("context errors pass through", func(t *testing.T) {
		err := fmt.Errorf("scan: %w", context.Canceled)
		assert.ErrorIs(t, NormalizeError(err), context.Canceled)
	})
}

func TestNewServices(t *testing.T) {
	hrm := &ble.Characteristic{
		UUID:     ble.UUID16(0x2a37),
		Property: ble.CharNotify,
		CCCD:     &ble.Descriptor{UUID: ble.UUID16(0x2902)},
	}
	location := &ble.Characteristic{
		UUID:     ble.UUID16(0x2a38),
		Property: ble.CharRead,
	}
	custom := &ble.Characteristic{
		UUID:        ble.MustParse("6217FF4A-B07D-5DEB-261E-2586752D942E"),
		Property:    ble.CharRead | ble.CharIndicate,
		Descriptors: []*ble.Descriptor{{UUID: ble.UUID16(0x2902)}},
	}

	profile := &ble.Profile{Services: []*ble.Service{
		{UUID: ble.MustParse("6217FF49-AC7B-547E-EECF-016A06970BA9"), Characteristics: []*ble.Characteristic{custom}},
		{UUID: ble.UUID16(0x180d), Characteristics: []*ble.Characteristic{location, hrm}},
	}}

	services := newServices(profile)
	require.Len(t, services, 2)
	assert.Equal(t, "180d", services[0].UUID(), "services MUST be sorted by UUID")
	assert.Equal(t, "6217ff49ac7b547eeecf016a06970ba9", services[1].UUID())

	chars := services[0].Characteristics()
	require.Len(t, chars, 2)
	assert.Equal(t, "2a37", chars[0].UUID())
	assert.True(t, chars[0].Properties().CanNotify())
	require.NotNil(t, chars[0].CCCD())
	assert.Equal(t, device.CCCDUUID, chars[0].CCCD().UUID())
	assert.Nil(t, chars[1].CCCD(), "read-only characteristic MUST have no CCCD")

	found, err := device.FindCharacteristic(services, "6217FF49-AC7B-547E-EECF-016A06970BA9", "6217ff4a-b07d-5deb-261e-2586752d942e")
	require.NoError(t, err)
	assert.True(t, found.Properties().CanIndicate())
	assert.NotNil(t, found.CCCD(), "CCCD listed only among descriptors MUST be picked up")

	assert.Empty(t, newServices(nil))
}

func TestRawCharacteristic_RejectsForeignTypes(t *testing.T) {
	_, err := rawCharacteristic(fakeChar{})
	assert.ErrorIs(t, err, device.ErrUnsupported)
}

type fakeChar struct{}

func (fakeChar) UUID() string                  { return "2a37" }
func (fakeChar) Properties() device.Properties { return device.PropNotify }
func (fakeChar) CCCD() device.Descriptor       { return nil }
