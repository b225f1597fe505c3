// Package sensor decodes the raw characteristic values of the supported BLE
// sensors into typed readings.
//
// Every decoder is total: a short or malformed frame yields the codec's zero
// reading tagged Connected together with an error describing the problem.
// Callers publish the reading either way and use the error for logging only.
package sensor

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Kind names a sensor frame format.
type Kind string

const (
	KindHeartRate    Kind = "heart-rate"
	KindTempHumidity Kind = "temp-humidity"
	KindPressure     Kind = "pressure"
	KindComposite    Kind = "data"
)

var (
	ErrShortFrame     = errors.New("short frame")
	ErrMalformedFrame = errors.New("malformed frame")
	ErrUnknownKind    = errors.New("unknown sensor kind")
)

// Codec converts raw characteristic bytes into a reading of type T.
type Codec[T any] interface {
	Kind() Kind
	// Decode never fails destructively: on error the returned reading is the
	// zero reading tagged Connected.
	Decode(data []byte) (T, error)
	// Zero returns the placeholder reading for the given state.
	Zero(state ConnectionState) T
}

type erased[T Reading] struct {
	codec Codec[T]
}

func (e erased[T]) Kind() Kind { return e.codec.Kind() }

func (e erased[T]) Decode(data []byte) (Reading, error) {
	r, err := e.codec.Decode(data)
	return r, err
}

func (e erased[T]) Zero(state ConnectionState) Reading { return e.codec.Zero(state) }

// Erase adapts a typed codec to one producing the Reading interface, for callers
// that pick the sensor kind at runtime.
func Erase[T Reading](c Codec[T]) Codec[Reading] {
	return erased[T]{codec: c}
}

var registry = orderedmap.New[Kind, Codec[Reading]]()

func init() {
	register[HeartRate](HeartRateCodec{})
	register[TempHumidity](TempHumidityCodec{})
	register[Pressure](PressureCodec{})
	register[Composite](CompositeCodec{})
}

func register[T Reading](c Codec[T]) {
	registry.Set(c.Kind(), Erase(c))
}

// Lookup returns the registered codec for kind.
func Lookup(kind Kind) (Codec[Reading], error) {
	c, ok := registry.Get(kind)
	if !ok {
		return nil, errors.Wrapf(ErrUnknownKind, "%q (supported: %s)", kind, strings.Join(KindNames(), ", "))
	}
	return c, nil
}

// Kinds lists registered kinds in registration order.
func Kinds() []Kind {
	kinds := make([]Kind, 0, registry.Len())
	for pair := registry.Oldest(); pair != nil; pair = pair.Next() {
		kinds = append(kinds, pair.Key)
	}
	return kinds
}

// KindNames is Kinds as plain strings.
func KindNames() []string {
	kinds := Kinds()
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	return names
}

// ParseKind accepts a kind name, case-insensitively.
func ParseKind(s string) (Kind, error) {
	kind := Kind(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := registry.Get(kind); !ok {
		return "", errors.Wrapf(ErrUnknownKind, "%q (supported: %s)", s, strings.Join(KindNames(), ", "))
	}
	return kind, nil
}

func shortFrame(kind Kind, need, got int) error {
	return errors.Wrapf(ErrShortFrame, "%s: need %d bytes, got %d", kind, need, got)
}

// decodeSafely converts a panic inside fn into ErrMalformedFrame and the zero reading.
func decodeSafely[T any](kind Kind, zero T, fn func() (T, error)) (r T, err error) {
	defer func() {
		if p := recover(); p != nil {
			r = zero
			err = errors.Wrapf(ErrMalformedFrame, "%s: %v", kind, p)
		}
	}()
	return fn()
}

// HexString formats a frame as "0x0A 0x1B ..." for debug logs.
func HexString(data []byte) string {
	if len(data) == 0 {
		return "0x"
	}
	var b strings.Builder
	for i, v := range data {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "0x%02X", v)
	}
	return b.String()
}
