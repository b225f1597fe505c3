package device

import "strings"

// Properties is the GATT characteristic property bit set.
type Properties uint8

const (
	PropBroadcast Properties = 1 << iota
	PropRead
	PropWriteNR
	PropWrite
	PropNotify
	PropIndicate
	PropSignedWrite
	PropExtended
)

var propertyNames = []struct {
	bit  Properties
	name string
}{
	{PropBroadcast, "Broadcast"},
	{PropRead, "Read"},
	{PropWriteNR, "WriteWithoutResponse"},
	{PropWrite, "Write"},
	{PropNotify, "Notify"},
	{PropIndicate, "Indicate"},
	{PropSignedWrite, "AuthenticatedSignedWrites"},
	{PropExtended, "ExtendedProperties"},
}

func (p Properties) CanRead() bool     { return p&PropRead != 0 }
func (p Properties) CanNotify() bool   { return p&PropNotify != 0 }
func (p Properties) CanIndicate() bool { return p&PropIndicate != 0 }

// CanPush reports whether the peripheral can push values by notification or indication.
func (p Properties) CanPush() bool { return p.CanNotify() || p.CanIndicate() }

func (p Properties) String() string {
	if p == 0 {
		return "None"
	}
	var names []string
	for _, pn := range propertyNames {
		if p&pn.bit != 0 {
			names = append(names, pn.name)
		}
	}
	return strings.Join(names, "|")
}

// Client characteristic configuration descriptor.
const CCCDUUID = "2902"

// CCCD payloads, little-endian.
var (
	EnableNotificationValue  = []byte{0x01, 0x00}
	EnableIndicationValue    = []byte{0x02, 0x00}
	DisableNotificationValue = []byte{0x00, 0x00}
)

// EnableValue returns the CCCD payload that turns on indications or notifications.
func EnableValue(indicate bool) []byte {
	if indicate {
		return EnableIndicationValue
	}
	return EnableNotificationValue
}
