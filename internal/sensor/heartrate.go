package sensor

import "encoding/binary"

// heart rate measurement flags (0x2A37)
const hrFormatUint16 = 0x01

// HeartRateCodec decodes the standard Heart Rate Measurement characteristic.
//
// Layout: flags, then an 8 or 16 bit (LE) heart rate depending on bit 0 of the
// flags, then zero or more 16 bit LE RR intervals. A trailing odd byte is ignored.
type HeartRateCodec struct{}

func (HeartRateCodec) Kind() Kind { return KindHeartRate }

func (HeartRateCodec) Zero(state ConnectionState) HeartRate {
	return HeartRate{RRIntervals: []int{}, State: state}
}

func (c HeartRateCodec) Decode(data []byte) (HeartRate, error) {
	zero := c.Zero(Connected)
	return decodeSafely(KindHeartRate, zero, func() (HeartRate, error) {
		if len(data) == 0 {
			return zero, shortFrame(KindHeartRate, 2, 0)
		}

		offset := 1
		var bpm int
		if data[0]&hrFormatUint16 != 0 {
			if len(data) < offset+2 {
				return zero, shortFrame(KindHeartRate, offset+2, len(data))
			}
			bpm = int(binary.LittleEndian.Uint16(data[offset:]))
			offset += 2
		} else {
			if len(data) < offset+1 {
				return zero, shortFrame(KindHeartRate, offset+1, len(data))
			}
			bpm = int(data[offset])
			offset++
		}

		rr := make([]int, 0, (len(data)-offset)/2)
		for ; offset+1 < len(data); offset += 2 {
			rr = append(rr, int(binary.LittleEndian.Uint16(data[offset:])))
		}

		return HeartRate{BPM: bpm, RRIntervals: rr, State: Connected}, nil
	})
}
