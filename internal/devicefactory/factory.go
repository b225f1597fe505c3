package devicefactory

import (
	"github.com/sirupsen/logrus"
	"github.com/srg/blesensor/internal/device"
	goble "github.com/srg/blesensor/internal/device/go-ble"
)

// CentralFactory creates the device.Central sessions scan and dial through.
// This is a variable so that it can be overridden in tests.
var CentralFactory = func(logger *logrus.Logger) device.Central {
	return goble.NewCentral(logger)
}

// NewCentral returns a Central from CentralFactory.
func NewCentral(logger *logrus.Logger) device.Central {
	return CentralFactory(logger)
}
