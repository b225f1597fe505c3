// Package bledb names well-known Bluetooth SIG GATT services, characteristics
// and descriptors. It covers the attributes the supported sensors and their
// peripherals expose; vendor UUIDs are not listed.
package bledb

import (
	"strings"

	"github.com/srg/blesensor/internal/device"
)

var services = map[string]string{
	"1800": "Generic Access",
	"1801": "Generic Attribute",
	"180a": "Device Information",
	"180d": "Heart Rate",
	"180f": "Battery Service",
	"181a": "Environmental Sensing",
}

var characteristics = map[string]string{
	"2a00": "Device Name",
	"2a01": "Appearance",
	"2a05": "Service Changed",
	"2a19": "Battery Level",
	"2a24": "Model Number String",
	"2a26": "Firmware Revision String",
	"2a29": "Manufacturer Name String",
	"2a37": "Heart Rate Measurement",
	"2a38": "Body Sensor Location",
	"2a39": "Heart Rate Control Point",
	"2a6d": "Pressure",
	"2a6e": "Temperature",
	"2a6f": "Humidity",
}

var descriptors = map[string]string{
	"2900": "Characteristic Extended Properties",
	"2901": "Characteristic User Description",
	"2902": "Client Characteristic Configuration",
	"2903": "Server Characteristic Configuration",
	"2904": "Characteristic Presentation Format",
	"2906": "Valid Range",
}

// NormalizeUUID accepts the same forms as device.NormalizeUUID and also
// strips surrounding braces.
func NormalizeUUID(uuid string) string {
	return device.NormalizeUUID(strings.Trim(strings.TrimSpace(uuid), "{}"))
}

// LookupService returns the service name, or "" when unknown.
func LookupService(uuid string) string {
	return services[NormalizeUUID(uuid)]
}

// LookupCharacteristic returns the characteristic name, or "" when unknown.
func LookupCharacteristic(uuid string) string {
	return characteristics[NormalizeUUID(uuid)]
}

// LookupDescriptor returns the descriptor name, or "" when unknown.
func LookupDescriptor(uuid string) string {
	return descriptors[NormalizeUUID(uuid)]
}

// Describe formats uuid as "Name (uuid)" when the name is known in any table,
// otherwise as the normalized uuid.
func Describe(uuid string) string {
	n := NormalizeUUID(uuid)
	for _, table := range []map[string]string{services, characteristics, descriptors} {
		if name, ok := table[n]; ok {
			return name + " (" + n + ")"
		}
	}
	return n
}
