package sensor

// FixedHumidity is reported for every temperature frame; the sensor does not
// transmit humidity yet.
const FixedHumidity float32 = 100 / 10.0

// TempHumidityCodec decodes the 3 byte temperature frame:
// sign flag, integer degrees, tenths of a degree.
type TempHumidityCodec struct{}

func (TempHumidityCodec) Kind() Kind { return KindTempHumidity }

func (TempHumidityCodec) Zero(state ConnectionState) TempHumidity {
	return TempHumidity{State: state}
}

func (c TempHumidityCodec) Decode(data []byte) (TempHumidity, error) {
	zero := c.Zero(Connected)
	return decodeSafely(KindTempHumidity, zero, func() (TempHumidity, error) {
		if len(data) < 3 {
			return zero, shortFrame(KindTempHumidity, 3, len(data))
		}

		sign := float32(1)
		if data[0] != 0 {
			sign = -1
		}
		// integer and fraction bytes are signed on the wire
		temperature := float32(int8(data[1])) + float32(int8(data[2]))/10

		return TempHumidity{
			Temperature: sign * temperature,
			Humidity:    FixedHumidity,
			State:       Connected,
		}, nil
	})
}
