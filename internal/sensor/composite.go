package sensor

import (
	"encoding/binary"
	"math"
)

// KPaToPSI converts kilopascal to pounds per square inch.
const KPaToPSI float32 = 0.145038

// composite frame layout, little-endian
const (
	compStart     = 0
	compPressure  = 1
	compAccel     = 5
	compGyro      = 17
	compTimestamp = 29
	compECG       = 33
	compECGStride = 8
	compECGCount  = 4
	compEnd       = 53
	compFrameLen  = 54
)

// CompositeCodec decodes the 54 byte data frame:
//
//	0      start marker
//	1..4   pressure, float32 kPa
//	5..16  accelerometer X/Y/Z, float32
//	17..28 gyroscope X/Y/Z, float32
//	29..32 accelerometer timestamp, int32
//	33..   4 x (ECG int32, timestamp int32), 8 bytes apart
//	53     end marker
//
// The ECG block runs past the 54 byte frame: samples whose bytes are not
// present decode as 0. Markers are exposed on the reading but not checked.
type CompositeCodec struct{}

func (CompositeCodec) Kind() Kind { return KindComposite }

func (CompositeCodec) Zero(state ConnectionState) Composite {
	return Composite{ECG: []ECGSample{}, State: state}
}

func (c CompositeCodec) Decode(data []byte) (Composite, error) {
	zero := c.Zero(Connected)
	return decodeSafely(KindComposite, zero, func() (Composite, error) {
		if len(data) < compFrameLen {
			return zero, shortFrame(KindComposite, compFrameLen, len(data))
		}

		ecg := make([]ECGSample, 0, compECGCount)
		for i := 0; i < compECGCount; i++ {
			off := compECG + i*compECGStride
			ecg = append(ecg, ECGSample{
				Value:     int64(readInt32Padded(data, off)),
				Timestamp: int64(readInt32Padded(data, off+4)),
			})
		}

		return Composite{
			PSI:           clampPSI(readFloat32(data, compPressure) * KPaToPSI),
			Accelerometer: readVector3(data, compAccel),
			Gyroscope:     readVector3(data, compGyro),
			TimestampAcc:  int64(readInt32(data, compTimestamp)),
			ECG:           ecg,
			StartMarker:   data[compStart],
			EndMarker:     data[compEnd],
			State:         Connected,
		}, nil
	})
}

func readFloat32(data []byte, off int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(data[off:]))
}

func readInt32(data []byte, off int) int32 {
	return int32(binary.LittleEndian.Uint32(data[off:]))
}

// readInt32Padded reads an int32 at off, or 0 when the frame ends before off+4.
func readInt32Padded(data []byte, off int) int32 {
	if off+4 > len(data) {
		return 0
	}
	return readInt32(data, off)
}

func readVector3(data []byte, off int) Vector3 {
	return Vector3{
		X: readFloat32(data, off),
		Y: readFloat32(data, off+4),
		Z: readFloat32(data, off+8),
	}
}
