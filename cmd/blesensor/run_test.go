package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/srg/blesensor/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sessions.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestRun_MultipleSessions(t *testing.T) {
	central := testutils.NewFakeCentral().
		WithPeripheral(heartRatePeripheral("read,notify")).
		WithPeripheral(pressurePeripheral())
	useCentral(t, central)

	path := writeConfig(t, `
sessions:
  - kind: heart-rate
    label: strap
    address: AA:BB:CC:DD:EE:01
    service: "180d"
    characteristic: 2a37
    poll_interval: 20ms
    mtu_timeout: 50ms
  - kind: pressure
    label: tank
    address: AA:BB:CC:DD:EE:02
    poll_interval: 20ms
    mtu_timeout: 50ms
`)

	stdout, _, err := executeCommand("run", "--config", path, "--duration", "400ms")
	require.NoError(t, err)

	assert.Contains(t, stdout, "strap")
	assert.Contains(t, stdout, "bpm=72")
	assert.Contains(t, stdout, "tank")
	assert.Contains(t, stdout, "psi=25")
	assert.Equal(t, 2, central.Dials(), "each session MUST dial its own peripheral once")
}

func TestRun_FailedSessionIsReported(t *testing.T) {
	central := testutils.NewFakeCentral().
		WithPeripheral(heartRatePeripheral("write")).
		WithPeripheral(pressurePeripheral())
	useCentral(t, central)

	path := writeConfig(t, `
sessions:
  - kind: heart-rate
    label: strap
    address: AA:BB:CC:DD:EE:01
    service: "180d"
    characteristic: 2a37
    mtu_timeout: 50ms
  - kind: pressure
    label: tank
    address: AA:BB:CC:DD:EE:02
    poll_interval: 20ms
    mtu_timeout: 50ms
`)

	stdout, stderr, err := executeCommand("run", "--config", path, "--duration", "400ms")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSessionFailed)
	assert.Contains(t, err.Error(), "strap")
	assert.Contains(t, stderr, "cannot read or notify")
	assert.Contains(t, stdout, "psi=25", "healthy sessions MUST keep running")
}

func TestRun_ConfigErrors(t *testing.T) {
	useCentral(t, testutils.NewFakeCentral())

	_, _, err := executeCommand("run")
	assert.ErrorContains(t, err, `required flag(s) "config" not set`)

	_, _, err = executeCommand("run", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config")

	path := writeConfig(t, "sessions:\n  - kind: heart-rate\n    polling: 1s\n")
	_, _, err = executeCommand("run", "--config", path)
	assert.ErrorContains(t, err, "failed to parse config")

	path = writeConfig(t, "sessions: []\n")
	_, _, err = executeCommand("run", "--config", path)
	assert.ErrorContains(t, err, "at least one session is required")
}
