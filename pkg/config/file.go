package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// File is the on-disk layout used by `blesensor run`.
//
//	log_level: info
//	metrics_addr: ":9100"
//	sessions:
//	  - kind: heart-rate
//	  - kind: pressure
//	    address: 40:4C:CA:47:11:6A
//	    poll_interval: 500ms
type File struct {
	LogLevel    string    `yaml:"log_level,omitempty"`
	MetricsAddr string    `yaml:"metrics_addr,omitempty"`
	Sessions    []Session `yaml:"sessions"`
}

// Load reads and parses the file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Parse decodes data, applies defaults to every session and validates the result.
// Unknown keys are rejected.
func Parse(data []byte) (*File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	for i := range f.Sessions {
		f.Sessions[i].ApplyDefaults()
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks the file-level settings and every session.
func (f *File) Validate() error {
	var errs []error

	if f.LogLevel != "" {
		if _, err := logrus.ParseLevel(f.LogLevel); err != nil {
			errs = append(errs, fmt.Errorf("log_level: %w", err))
		}
	}
	if len(f.Sessions) == 0 {
		errs = append(errs, errors.New("at least one session is required"))
	}
	for i := range f.Sessions {
		if err := f.Sessions[i].Validate(); err != nil {
			errs = append(errs, fmt.Errorf("sessions[%d] (%s): %w", i, f.Sessions[i].Kind, err))
		}
	}
	return errors.Join(errs...)
}

// Apply copies file-level settings onto cfg, leaving unset ones alone.
func (f *File) Apply(cfg *Config) {
	if f.LogLevel != "" {
		if lvl, err := logrus.ParseLevel(f.LogLevel); err == nil {
			cfg.LogLevel = lvl
		}
	}
	if f.MetricsAddr != "" {
		cfg.MetricsAddr = f.MetricsAddr
	}
}
