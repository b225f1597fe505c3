package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"unicode"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// formatVersion adds 'v' prefix if version starts with a digit
func formatVersion(ver string) string {
	if len(ver) > 0 && unicode.IsDigit(rune(ver[0])) {
		return "v" + ver
	}
	return ver
}

// newRootCmd builds the command tree. Every call returns fresh flag state.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "blesensor",
		Short: "Stream decoded readings from BLE sensors",
		Long: `Connects to Bluetooth Low Energy sensors and streams their decoded readings:

- heart rate straps (standard Heart Rate Measurement)
- temperature sensors
- pressure transducers
- combined pressure, IMU and ECG data sensors

Each session scans for its peripheral, connects, negotiates the MTU and then
receives values by notification, polling or both, retrying failed connection
attempts a bounded number of times.`,
		Version: fmt.Sprintf("%s (commit %s, built %s)", formatVersion(version), commit, date),
		// main prints clean errors
		SilenceErrors: true,
	}

	root.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	root.PersistentFlags().Bool("verbose", false, "Enable debug logging (same as --log-level debug)")
	root.PersistentFlags().String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9100)")

	root.Flags().BoolP("version", "v", false, "Show version information")

	root.AddCommand(newWatchCmd())
	root.AddCommand(newRunCmd())
	root.AddCommand(newDecodeCmd())
	root.AddCommand(newKindsCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		// Ctrl+C is a normal exit, not an error - exit silently
		if errors.Is(err, context.Canceled) {
			return
		}
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", FormatUserError(err))
		os.Exit(1)
	}
}
