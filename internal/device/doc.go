// Package device defines the BLE transport a sensor session drives: a Central
// that scans and dials, and a Link to one connected peripheral with GATT
// discovery, MTU exchange, reads and value subscriptions.
//
// Concrete transports live in subpackages (go-ble for real adapters) and in
// internal/testutils for tests. The package also owns the error taxonomy
// shared by transports, UUID normalization and characteristic property bits.
package device
