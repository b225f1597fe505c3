package device

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testService struct {
	uuid  string
	chars []Characteristic
}

func (s testService) UUID() string                      { return s.uuid }
func (s testService) Characteristics() []Characteristic { return s.chars }

type testCharacteristic struct {
	uuid  string
	props Properties
}

func (c testCharacteristic) UUID() string           { return c.uuid }
func (c testCharacteristic) Properties() Properties { return c.props }
func (c testCharacteristic) CCCD() Descriptor       { return nil }

func TestFindCharacteristic(t *testing.T) {
	hrm := testCharacteristic{uuid: "2a37", props: PropNotify}
	services := []Service{
		testService{uuid: "180f", chars: []Characteristic{testCharacteristic{uuid: "2a19", props: PropRead}}},
		testService{uuid: "180d", chars: []Characteristic{hrm}},
		testService{uuid: "123e4567e89b12d3a456426614174000", chars: []Characteristic{
			testCharacteristic{uuid: "987f654321af47d3b8cd526614174000", props: PropRead | PropNotify},
		}},
	}

	t.Run("full SIG UUIDs match short forms", func(t *testing.T) {
		c, err := FindCharacteristic(services, "0000180D-0000-1000-8000-00805F9B34FB", "00002a37-0000-1000-8000-00805f9b34fb")
		require.NoError(t, err)
		assert.Equal(t, hrm, c)
	})

	t.Run("vendor UUIDs with dashes", func(t *testing.T) {
		c, err := FindCharacteristic(services, "123e4567-e89b-12d3-a456-426614174000", "987f6543-21af-47d3-b8cd-526614174000")
		require.NoError(t, err)
		assert.Equal(t, PropRead|PropNotify, c.Properties())
	})

	t.Run("missing characteristic", func(t *testing.T) {
		_, err := FindCharacteristic(services, "180d", "2a38")
		var nf *NotFoundError
		require.ErrorAs(t, err, &nf)
		assert.Equal(t, "characteristic", nf.Resource)
		assert.Equal(t, `characteristic "2a38" not found in service "180d"`, err.Error())
	})

	t.Run("missing service", func(t *testing.T) {
		_, err := FindCharacteristic(services, "181a", "2a6e")
		assert.EqualError(t, err, `service "181a" not found`)
	})

	t.Run("no services", func(t *testing.T) {
		_, err := FindCharacteristic(nil, "180d", "2a37")
		assert.Error(t, err)
	})
}

func TestMatchesAddress(t *testing.T) {
	assert.True(t, MatchesAddress("40:4C:CA:47:11:6A", "40:4c:ca:47:11:6a"))
	assert.True(t, MatchesAddress("40-4C-CA-47-11-6A", "40:4C:CA:47:11:6A"))
	assert.True(t, MatchesAddress("404CCA47116A", "40:4C:CA:47:11:6A"))
	assert.False(t, MatchesAddress("40:4C:CA:47:11:6B", "40:4C:CA:47:11:6A"))
	assert.False(t, MatchesAddress("", ""), "empty addresses MUST NOT match")
	assert.False(t, MatchesAddress("40:4C:CA:47:11:6A", ""))
}

func TestConnectionError(t *testing.T) {
	wrapped := fmt.Errorf("dial: %w", &ConnectionError{State: BluetoothOff, Msg: "hci0 down"})

	assert.ErrorIs(t, wrapped, ErrBluetoothOff, "MUST match sentinel by state")
	assert.NotErrorIs(t, wrapped, ErrNotConnected)
	assert.True(t, IsConnectionState(wrapped, BluetoothOff))
	assert.False(t, IsConnectionState(errors.New("other"), BluetoothOff))

	assert.Equal(t, "not_connected", ErrNotConnected.Error())
	assert.Equal(t, "bluetooth_off: bluetooth is disabled or unavailable", ErrBluetoothOff.Error())

	var nilErr *ConnectionError
	assert.Equal(t, "<nil>", nilErr.Error())
}

func TestNotFoundError(t *testing.T) {
	assert.Equal(t, "descriptor not found", (&NotFoundError{Resource: "descriptor"}).Error())
	assert.Equal(t, `service "180d" not found`, (&NotFoundError{Resource: "service", UUIDs: []string{"180d"}}).Error())
	assert.Equal(t, `descriptor "2902" not found in characteristic "2a37"`,
		(&NotFoundError{Resource: "descriptor", UUIDs: []string{"2a37", "2902"}}).Error())
}

func TestProperties(t *testing.T) {
	tests := []struct {
		props                   Properties
		read, notify, ind, push bool
		str                     string
	}{
		{0, false, false, false, false, "None"},
		{PropRead, true, false, false, false, "Read"},
		{PropNotify, false, true, false, true, "Notify"},
		{PropIndicate, false, false, true, true, "Indicate"},
		{PropRead | PropNotify | PropIndicate, true, true, true, true, "Read|Notify|Indicate"},
		{PropWrite | PropWriteNR, false, false, false, false, "WriteWithoutResponse|Write"},
	}

	for _, tt := range tests {
		t.Run(tt.str, func(t *testing.T) {
			assert.Equal(t, tt.read, tt.props.CanRead())
			assert.Equal(t, tt.notify, tt.props.CanNotify())
			assert.Equal(t, tt.ind, tt.props.CanIndicate())
			assert.Equal(t, tt.push, tt.props.CanPush())
			assert.Equal(t, tt.str, tt.props.String())
		})
	}
}

func TestEnableValue(t *testing.T) {
	assert.Equal(t, []byte{0x01, 0x00}, EnableValue(false))
	assert.Equal(t, []byte{0x02, 0x00}, EnableValue(true))
	assert.Equal(t, []byte{0x00, 0x00}, DisableNotificationValue)
}
