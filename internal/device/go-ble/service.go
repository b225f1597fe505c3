package goble

import (
	"sort"

	"github.com/go-ble/ble"
	"github.com/srg/blesensor/internal/device"
)

// ----------------------------
// GATT wrappers
// ----------------------------

type bleService struct {
	uuid  string
	chars []device.Characteristic
}

func (s *bleService) UUID() string                             { return s.uuid }
func (s *bleService) Characteristics() []device.Characteristic { return s.chars }

type bleCharacteristic struct {
	uuid  string
	props device.Properties
	cccd  device.Descriptor
	raw   *ble.Characteristic
}

func (c *bleCharacteristic) UUID() string                  { return c.uuid }
func (c *bleCharacteristic) Properties() device.Properties { return c.props }

// CCCD returns nil when the characteristic has no configuration descriptor.
func (c *bleCharacteristic) CCCD() device.Descriptor {
	return c.cccd
}

type bleDescriptor struct {
	uuid string
	raw  *ble.Descriptor
}

func (d *bleDescriptor) UUID() string { return d.uuid }

// newServices converts a discovered profile, sorted by UUID for consistent ordering.
func newServices(p *ble.Profile) []device.Service {
	if p == nil {
		return nil
	}

	result := make([]device.Service, 0, len(p.Services))
	for _, s := range p.Services {
		svc := &bleService{uuid: device.NormalizeUUID(s.UUID.String())}
		for _, c := range s.Characteristics {
			svc.chars = append(svc.chars, newCharacteristic(c))
		}
		sort.Slice(svc.chars, func(i, j int) bool {
			return svc.chars[i].UUID() < svc.chars[j].UUID()
		})
		result = append(result, svc)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].UUID() < result[j].UUID()
	})
	return result
}

func newCharacteristic(c *ble.Characteristic) *bleCharacteristic {
	char := &bleCharacteristic{
		uuid:  device.NormalizeUUID(c.UUID.String()),
		props: convertProperties(c.Property),
		raw:   c,
	}

	cccd := c.CCCD
	if cccd == nil {
		// some stacks only list the CCCD among the descriptors
		for _, d := range c.Descriptors {
			if device.NormalizeUUID(d.UUID.String()) == device.CCCDUUID {
				cccd = d
				break
			}
		}
	}
	if cccd != nil {
		char.cccd = &bleDescriptor{uuid: device.CCCDUUID, raw: cccd}
	}
	return char
}
