package sensor

import (
	"encoding/binary"
	"math"
)

const (
	// MaxPSI is the upper bound of the pressure transducer range.
	MaxPSI float32 = 25

	pressureRawOffset = 36
	pressureFrameLen  = pressureRawOffset + 4
	pressureFullScale = 16777215 // 24 bit ADC
)

// PressureCodec decodes the pressure sensor frame. Only the 32 bit raw ADC
// value at offset 36 is used; it is scaled from 24 bit full scale to 0..25 PSI.
type PressureCodec struct{}

func (PressureCodec) Kind() Kind { return KindPressure }

func (PressureCodec) Zero(state ConnectionState) Pressure {
	return Pressure{State: state}
}

func (c PressureCodec) Decode(data []byte) (Pressure, error) {
	zero := c.Zero(Connected)
	return decodeSafely(KindPressure, zero, func() (Pressure, error) {
		if len(data) < pressureFrameLen {
			return zero, shortFrame(KindPressure, pressureFrameLen, len(data))
		}

		raw := int32(binary.LittleEndian.Uint32(data[pressureRawOffset:]))
		psi := float32(raw) / pressureFullScale * MaxPSI

		return Pressure{PSI: clampPSI(psi), State: Connected}, nil
	})
}

func clampPSI(v float32) float32 {
	switch {
	case math.IsNaN(float64(v)):
		return 0
	case v < 0:
		return 0
	case v > MaxPSI:
		return MaxPSI
	default:
		return v
	}
}
