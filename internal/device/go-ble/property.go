package goble

import (
	"github.com/go-ble/ble"
	"github.com/srg/blesensor/internal/device"
)

var propertyBits = []struct {
	from ble.Property
	to   device.Properties
}{
	{ble.CharBroadcast, device.PropBroadcast},
	{ble.CharRead, device.PropRead},
	{ble.CharWriteNR, device.PropWriteNR},
	{ble.CharWrite, device.PropWrite},
	{ble.CharNotify, device.PropNotify},
	{ble.CharIndicate, device.PropIndicate},
	{ble.CharSignedWrite, device.PropSignedWrite},
	{ble.CharExtended, device.PropExtended},
}

// convertProperties translates go-ble property flags into device.Properties.
func convertProperties(p ble.Property) device.Properties {
	var out device.Properties
	for _, b := range propertyBits {
		if p&b.from != 0 {
			out |= b.to
		}
	}
	return out
}
