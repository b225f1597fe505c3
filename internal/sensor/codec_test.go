package sensor

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeartRateCodec_Decode(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		wantBPM int
		wantRR  []int
		wantErr error
	}{
		{
			name:    "8-bit value",
			data:    []byte{0x00, 0x46},
			wantBPM: 70,
			wantRR:  []int{},
		},
		{
			name:    "16-bit value",
			data:    []byte{0x01, 0x46, 0x00},
			wantBPM: 70,
			wantRR:  []int{},
		},
		{
			name:    "16-bit value with one RR interval",
			data:    []byte{0x01, 0x46, 0x00, 0x20, 0x01},
			wantBPM: 70,
			wantRR:  []int{288},
		},
		{
			name:    "8-bit value with two RR intervals and trailing odd byte",
			data:    []byte{0x10, 0x50, 0x00, 0x04, 0x10, 0x04, 0xFF},
			wantBPM: 80,
			wantRR:  []int{1024, 1040},
		},
		{
			name:    "16-bit value above 255",
			data:    []byte{0x01, 0x2C, 0x01},
			wantBPM: 300,
			wantRR:  []int{},
		},
		{
			name:    "empty frame",
			data:    []byte{},
			wantRR:  []int{},
			wantErr: ErrShortFrame,
		},
		{
			name:    "nil frame",
			data:    nil,
			wantRR:  []int{},
			wantErr: ErrShortFrame,
		},
		{
			name:    "flag only, 8-bit",
			data:    []byte{0x00},
			wantRR:  []int{},
			wantErr: ErrShortFrame,
		},
		{
			name:    "16-bit flag with one value byte",
			data:    []byte{0x01, 0x46},
			wantRR:  []int{},
			wantErr: ErrShortFrame,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := HeartRateCodec{}.Decode(tt.data)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantBPM, got.BPM)
			assert.Equal(t, tt.wantRR, got.RRIntervals)
			assert.Equal(t, Connected, got.State)
		})
	}
}

func TestTempHumidityCodec_Decode(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		wantTemp float32
		wantHum  float32
		wantErr  error
	}{
		{
			name:     "positive temperature",
			data:     []byte{0x00, 21, 5},
			wantTemp: 21.5,
			wantHum:  10,
		},
		{
			name:     "negative temperature",
			data:     []byte{0x01, 3, 2},
			wantTemp: -3.2,
			wantHum:  10,
		},
		{
			name:     "any nonzero sign byte is negative",
			data:     []byte{0xFF, 10, 0},
			wantTemp: -10,
			wantHum:  10,
		},
		{
			name:     "extra bytes ignored",
			data:     []byte{0x00, 1, 1, 0xAA, 0xBB},
			wantTemp: 1.1,
			wantHum:  10,
		},
		{
			name:    "short frame",
			data:    []byte{0x00, 21},
			wantErr: ErrShortFrame,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := TempHumidityCodec{}.Decode(tt.data)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.InDelta(t, tt.wantTemp, got.Temperature, 0.0001)
			assert.Equal(t, tt.wantHum, got.Humidity)
			assert.Equal(t, Connected, got.State)
		})
	}
}

func pressureFrame(raw uint32) []byte {
	data := make([]byte, 40)
	binary.LittleEndian.PutUint32(data[36:], raw)
	return data
}

func TestPressureCodec_Decode(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		wantPSI float32
		wantErr error
	}{
		{
			name:    "zero raw value",
			data:    pressureFrame(0),
			wantPSI: 0,
		},
		{
			name:    "full 24-bit scale",
			data:    pressureFrame(0x00FFFFFF),
			wantPSI: 25,
		},
		{
			name:    "half scale",
			data:    pressureFrame(0x00800000),
			wantPSI: float32(0x00800000) / 16777215 * 25,
		},
		{
			name:    "above 24-bit scale is clamped",
			data:    pressureFrame(0x07FFE100),
			wantPSI: 25,
		},
		{
			name:    "negative signed raw is clamped",
			data:    pressureFrame(0xFFFFFFFF),
			wantPSI: 0,
		},
		{
			name:    "bytes before offset 36 are ignored",
			data:    append([]byte{0xFF, 0xFF, 0xFF, 0xFF}, pressureFrame(0)[4:]...),
			wantPSI: 0,
		},
		{
			name:    "39 bytes",
			data:    make([]byte, 39),
			wantErr: ErrShortFrame,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PressureCodec{}.Decode(tt.data)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.InDelta(t, tt.wantPSI, got.PSI, 0.0001)
			assert.LessOrEqual(t, got.PSI, MaxPSI)
			assert.GreaterOrEqual(t, got.PSI, float32(0))
			assert.Equal(t, Connected, got.State)
		})
	}
}

type compositeFrame []byte

func newCompositeFrame() compositeFrame {
	f := make(compositeFrame, 54)
	f[0] = 0x01
	f[53] = 0x02
	return f
}

func (f compositeFrame) float(off int, v float32) compositeFrame {
	binary.LittleEndian.PutUint32(f[off:], math.Float32bits(v))
	return f
}

func (f compositeFrame) int(off int, v int32) compositeFrame {
	binary.LittleEndian.PutUint32(f[off:], uint32(v))
	return f
}

func TestCompositeCodec_Decode(t *testing.T) {
	t.Run("all-zero payload", func(t *testing.T) {
		got, err := CompositeCodec{}.Decode(newCompositeFrame())

		require.NoError(t, err)
		assert.Equal(t, float32(0), got.PSI)
		assert.Equal(t, Vector3{}, got.Accelerometer)
		assert.Equal(t, Vector3{}, got.Gyroscope)
		assert.Equal(t, int64(0), got.TimestampAcc)
		assert.Equal(t, []ECGSample{{0, 0}, {0, 0}, {0, 0}, {0, 0}}, got.ECG)
		assert.Equal(t, byte(0x01), got.StartMarker)
		assert.Equal(t, byte(0x02), got.EndMarker)
		assert.Equal(t, Connected, got.State)
	})

	t.Run("populated fields", func(t *testing.T) {
		frame := newCompositeFrame().
			float(1, 100).
			float(5, 1.5).float(9, -2.25).float(13, 9.81).
			float(17, 0.1).float(21, 0.2).float(25, -0.3).
			int(29, 123456).
			int(33, -42).int(37, 1000).
			int(41, 17).int(45, 1004)

		got, err := CompositeCodec{}.Decode(frame)

		require.NoError(t, err)
		assert.InDelta(t, 100*0.145038, got.PSI, 0.0001)
		assert.Equal(t, Vector3{X: 1.5, Y: -2.25, Z: 9.81}, got.Accelerometer)
		assert.Equal(t, Vector3{X: 0.1, Y: 0.2, Z: -0.3}, got.Gyroscope)
		assert.Equal(t, int64(123456), got.TimestampAcc)
		require.Len(t, got.ECG, 4)
		assert.Equal(t, ECGSample{Value: -42, Timestamp: 1000}, got.ECG[0])
		assert.Equal(t, ECGSample{Value: 17, Timestamp: 1004}, got.ECG[1])
	})

	t.Run("ECG samples beyond the frame decode as zero", func(t *testing.T) {
		frame := newCompositeFrame().int(49, 99)

		got, err := CompositeCodec{}.Decode(frame)

		require.NoError(t, err)
		require.Len(t, got.ECG, 4)
		assert.Equal(t, ECGSample{Value: 99, Timestamp: 0}, got.ECG[2])
		assert.Equal(t, ECGSample{}, got.ECG[3])
	})

	t.Run("extended frame carries all ECG samples", func(t *testing.T) {
		frame := append(newCompositeFrame(), make([]byte, 11)...).
			int(49, 5).int(53, 1008).
			int(57, 6).int(61, 1012)

		got, err := CompositeCodec{}.Decode(frame)

		require.NoError(t, err)
		assert.Equal(t, ECGSample{Value: 5, Timestamp: 1008}, got.ECG[2])
		assert.Equal(t, ECGSample{Value: 6, Timestamp: 1012}, got.ECG[3])
	})

	t.Run("pressure is clamped", func(t *testing.T) {
		high, err := CompositeCodec{}.Decode(newCompositeFrame().float(1, 1000))
		require.NoError(t, err)
		assert.Equal(t, MaxPSI, high.PSI)

		low, err := CompositeCodec{}.Decode(newCompositeFrame().float(1, -50))
		require.NoError(t, err)
		assert.Equal(t, float32(0), low.PSI)

		nan, err := CompositeCodec{}.Decode(newCompositeFrame().float(1, float32(math.NaN())))
		require.NoError(t, err)
		assert.Equal(t, float32(0), nan.PSI)
	})

	t.Run("end marker is not validated", func(t *testing.T) {
		frame := newCompositeFrame()
		frame[53] = 0xEE

		got, err := CompositeCodec{}.Decode(frame)

		require.NoError(t, err)
		assert.Equal(t, byte(0xEE), got.EndMarker)
	})

	t.Run("short frame", func(t *testing.T) {
		got, err := CompositeCodec{}.Decode(make([]byte, 53))

		assert.ErrorIs(t, err, ErrShortFrame)
		assert.Equal(t, CompositeCodec{}.Zero(Connected), got)
	})
}

func TestDecoders_NeverPanicOnShortInput(t *testing.T) {
	for _, kind := range Kinds() {
		codec, err := Lookup(kind)
		require.NoError(t, err)

		for n := 0; n < 60; n++ {
			data := make([]byte, n)
			for i := range data {
				data[i] = byte(0xA5 + i)
			}
			assert.NotPanics(t, func() {
				r, _ := codec.Decode(data)
				assert.Equal(t, Connected, r.ConnectionState(), "%s with %d bytes", kind, n)
			})
		}
	}
}

func TestZero_TagsState(t *testing.T) {
	assert.Equal(t, Disconnected, HeartRateCodec{}.Zero(Disconnected).State)
	assert.Equal(t, Disconnected, TempHumidityCodec{}.Zero(Disconnected).State)
	assert.Equal(t, Disconnected, PressureCodec{}.Zero(Disconnected).State)
	assert.Equal(t, Disconnected, CompositeCodec{}.Zero(Disconnected).State)
}

func TestRegistry(t *testing.T) {
	assert.Equal(t, []Kind{KindHeartRate, KindTempHumidity, KindPressure, KindComposite}, Kinds())

	kind, err := ParseKind(" Heart-Rate ")
	require.NoError(t, err)
	assert.Equal(t, KindHeartRate, kind)

	_, err = ParseKind("thermostat")
	assert.True(t, errors.Is(err, ErrUnknownKind))

	codec, err := Lookup(KindPressure)
	require.NoError(t, err)
	r, err := codec.Decode(pressureFrame(0))
	require.NoError(t, err)
	assert.IsType(t, Pressure{}, r)
}

func TestDecodeSafely_RecoversPanic(t *testing.T) {
	got, err := decodeSafely(KindHeartRate, 7, func() (int, error) {
		var s []int
		return s[3], nil
	})

	assert.Equal(t, 7, got)
	assert.ErrorIs(t, err, ErrMalformedFrame)
}

func TestHexString(t *testing.T) {
	assert.Equal(t, "0x", HexString(nil))
	assert.Equal(t, "0x00 0x46 0xFF", HexString([]byte{0x00, 0x46, 0xFF}))
}
