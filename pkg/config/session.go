package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/srg/blesensor/internal/device"
	"github.com/srg/blesensor/internal/scanner"
	"github.com/srg/blesensor/internal/sensor"
)

// Session configures one sensor session. Zero-valued tunables are filled from
// the `default` tags by ApplyDefaults.
type Session struct {
	Kind  sensor.Kind `yaml:"kind"`
	Label string      `yaml:"label,omitempty"`

	// Identity: the peripheral matches by Address OR Name.
	Address string `yaml:"address,omitempty"`
	Name    string `yaml:"name,omitempty"`

	Service        string `yaml:"service,omitempty"`
	Characteristic string `yaml:"characteristic,omitempty"`
	MTU            int    `yaml:"mtu,omitempty"`

	PollInterval          time.Duration `yaml:"poll_interval,omitempty" default:"1s"`
	MTUTimeout            time.Duration `yaml:"mtu_timeout,omitempty" default:"3s"`
	ConnectTimeout        time.Duration `yaml:"connect_timeout,omitempty"` // 0 waits for the transport
	MaxConnectionAttempts int           `yaml:"max_connection_attempts,omitempty" default:"5"`
	ResultBuffer          int           `yaml:"result_buffer,omitempty" default:"32"`
}

// preset is the known peripheral and GATT target for a sensor kind.
type preset struct {
	label, address, name    string
	service, characteristic string
	mtu                     int
}

var presets = map[sensor.Kind]preset{
	sensor.KindHeartRate: {
		label:          "Polar HR Sensor",
		name:           "Polar HR Sensor",
		service:        "0000180d-0000-1000-8000-00805f9b34fb",
		characteristic: "00002a37-0000-1000-8000-00805f9b34fb",
		mtu:            200,
	},
	sensor.KindTempHumidity: {
		label:          "temperature sensor",
		name:           "Polar HR Sensor",
		service:        "6217ff49-ac7b-547e-eecf-016a06970ba9",
		characteristic: "6217ff4a-b07d-5deb-261e-2586752d942e",
		mtu:            517,
	},
	sensor.KindPressure: {
		label:          "ESP32-C6 pressure sensor",
		address:        "40:4C:CA:47:11:6A",
		name:           "ESP32 HRM",
		service:        "123e4567-e89b-12d3-a456-426614174000",
		characteristic: "987f6543-21af-47d3-b8cd-526614174000",
		mtu:            517,
	},
	sensor.KindComposite: {
		label:          "ESP32 HRM data sensor",
		address:        "40:4C:CA:47:11:6A",
		name:           "ESP32 HRM",
		service:        "123e4567-e89b-12d3-a456-426614174000",
		characteristic: "987f6543-21af-47d3-b8cd-526614174000",
		mtu:            517,
	},
}

// Preset returns the fully defaulted session for kind.
func Preset(kind sensor.Kind) (Session, error) {
	if _, ok := presets[kind]; !ok {
		if _, err := sensor.ParseKind(string(kind)); err != nil {
			return Session{}, err
		}
		return Session{}, fmt.Errorf("no preset for sensor kind %q", kind)
	}
	s := Session{Kind: kind}
	s.ApplyDefaults()
	return s, nil
}

// ApplyDefaults fills empty identity, target and tunable fields from the
// kind preset and the `default` tags. An explicit Address or Name replaces
// the whole preset identity.
func (s *Session) ApplyDefaults() {
	defaults.SetDefaults(s)

	p, ok := presets[s.Kind]
	if !ok {
		return
	}
	if s.Label == "" {
		s.Label = p.label
	}
	if s.Address == "" && s.Name == "" {
		s.Address = p.address
		s.Name = p.name
	}
	if s.Service == "" {
		s.Service = p.service
	}
	if s.Characteristic == "" {
		s.Characteristic = p.characteristic
	}
	if s.MTU == 0 {
		s.MTU = p.mtu
	}
}

// Identity returns the scan target.
func (s Session) Identity() scanner.Identity {
	return scanner.Identity{Address: s.Address, Name: s.Name}
}

// DisplayLabel is the name used in progress messages.
func (s Session) DisplayLabel() string {
	if s.Label != "" {
		return s.Label
	}
	return s.Identity().String()
}

// Validate reports every problem with the session at once.
func (s *Session) Validate() error {
	var errs []error

	if _, err := sensor.ParseKind(string(s.Kind)); err != nil {
		errs = append(errs, err)
	}
	if err := s.Identity().Validate(); err != nil {
		errs = append(errs, err)
	}
	if _, err := device.ValidateUUID(s.Service, s.Characteristic); err != nil {
		errs = append(errs, fmt.Errorf("target: %w", err))
	}
	if s.MTU < 0 {
		errs = append(errs, fmt.Errorf("mtu must not be negative, got %d", s.MTU))
	}
	if s.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("poll_interval must be positive, got %v", s.PollInterval))
	}
	if s.MTUTimeout <= 0 {
		errs = append(errs, fmt.Errorf("mtu_timeout must be positive, got %v", s.MTUTimeout))
	}
	if s.ConnectTimeout < 0 {
		errs = append(errs, fmt.Errorf("connect_timeout must not be negative, got %v", s.ConnectTimeout))
	}
	if s.MaxConnectionAttempts < 1 {
		errs = append(errs, fmt.Errorf("max_connection_attempts must be at least 1, got %d", s.MaxConnectionAttempts))
	}
	if s.ResultBuffer < 1 {
		errs = append(errs, fmt.Errorf("result_buffer must be at least 1, got %d", s.ResultBuffer))
	}

	return errors.Join(errs...)
}
