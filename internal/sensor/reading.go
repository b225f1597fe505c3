package sensor

// ConnectionState is the link state a reading was observed in.
type ConnectionState int

const (
	Uninitialized ConnectionState = iota
	CurrentlyInitializing
	Connected
	Disconnected
)

func (s ConnectionState) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case CurrentlyInitializing:
		return "initializing"
	case Connected:
		return "connected"
	case Disconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Reading is implemented by every decoded sensor value.
type Reading interface {
	ConnectionState() ConnectionState
	// Fields returns the reading as flat key/value pairs for logs and CLI output.
	Fields() map[string]any
}

// HeartRate is a heart rate measurement with optional RR intervals (1/1024 s units).
type HeartRate struct {
	BPM         int
	RRIntervals []int
	State       ConnectionState
}

func (r HeartRate) ConnectionState() ConnectionState { return r.State }

func (r HeartRate) Fields() map[string]any {
	return map[string]any{
		"bpm":          r.BPM,
		"rr_intervals": r.RRIntervals,
		"state":        r.State.String(),
	}
}

// TempHumidity is a temperature reading in °C. Humidity is not carried by the
// sensor frame and is reported as a fixed value.
type TempHumidity struct {
	Temperature float32
	Humidity    float32
	State       ConnectionState
}

func (r TempHumidity) ConnectionState() ConnectionState { return r.State }

func (r TempHumidity) Fields() map[string]any {
	return map[string]any{
		"temperature": r.Temperature,
		"humidity":    r.Humidity,
		"state":       r.State.String(),
	}
}

// Pressure is a pressure reading in PSI, within [0, MaxPSI].
type Pressure struct {
	PSI   float32
	State ConnectionState
}

func (r Pressure) ConnectionState() ConnectionState { return r.State }

func (r Pressure) Fields() map[string]any {
	return map[string]any{
		"psi":   r.PSI,
		"state": r.State.String(),
	}
}

// Vector3 is an X/Y/Z triple from the IMU.
type Vector3 struct {
	X, Y, Z float32
}

// ECGSample is one ECG value with its device timestamp.
type ECGSample struct {
	Value     int64
	Timestamp int64
}

// Composite is the combined pressure, IMU and ECG frame of the data sensor.
type Composite struct {
	PSI           float32
	Accelerometer Vector3
	Gyroscope     Vector3
	TimestampAcc  int64
	ECG           []ECGSample
	StartMarker   byte
	EndMarker     byte
	State         ConnectionState
}

func (r Composite) ConnectionState() ConnectionState { return r.State }

func (r Composite) Fields() map[string]any {
	return map[string]any{
		"psi":           r.PSI,
		"accelerometer": r.Accelerometer,
		"gyroscope":     r.Gyroscope,
		"timestamp_acc": r.TimestampAcc,
		"ecg":           r.ECG,
		"state":         r.State.String(),
	}
}
