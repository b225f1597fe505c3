package main

import (
	"bytes"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/srg/blesensor/internal/device"
	"github.com/srg/blesensor/internal/devicefactory"
	"github.com/srg/blesensor/internal/testutils"
)

// syncBuffer is a bytes.Buffer safe for the writes of background goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// executeCommand runs the root command with args and returns stdout, stderr and the error.
func executeCommand(args ...string) (string, string, error) {
	stdout, stderr := &syncBuffer{}, &syncBuffer{}
	cmd := newRootCmd()
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

// useCentral routes every session of the test through central.
func useCentral(t *testing.T, central device.Central) {
	t.Helper()
	orig := devicefactory.CentralFactory
	devicefactory.CentralFactory = func(*logrus.Logger) device.Central { return central }
	t.Cleanup(func() { devicefactory.CentralFactory = orig })
}

const (
	hrAddress       = "AA:BB:CC:DD:EE:01"
	pressureAddress = "AA:BB:CC:DD:EE:02"
)

func heartRatePeripheral(props string) *testutils.FakePeripheral {
	return testutils.NewFakePeripheral(hrAddress, "Polar HR Sensor").
		WithService("180d").
		WithCharacteristic("2a37", props, []byte{0x00, 0x48})
}

func pressurePeripheral() *testutils.FakePeripheral {
	frame := make([]byte, 40)
	// raw ADC at full scale
	frame[36], frame[37], frame[38] = 0xFF, 0xFF, 0xFF
	return testutils.NewFakePeripheral(pressureAddress, "ESP32 HRM").
		WithService("123e4567-e89b-12d3-a456-426614174000").
		WithCharacteristic("987f6543-21af-47d3-b8cd-526614174000", "read", frame)
}
