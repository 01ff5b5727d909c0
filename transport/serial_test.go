package transport

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSerialConfigValidate(t *testing.T) {
	assert := assert.New(t)

	assert.NoError(SerialConfig{Port: "/dev/ttyUSB1", Baud: DEFAULT_BAUD}.Validate())
	assert.ErrorIs(SerialConfig{Baud: DEFAULT_BAUD}.Validate(), ErrPortMissing)
	assert.ErrorIs(SerialConfig{Port: PORT_AUTO}.Validate(), ErrBaudInvalid)
	assert.ErrorIs(SerialConfig{Port: PORT_AUTO, Baud: -1}.Validate(), ErrBaudInvalid)
}

func TestSerialOpenerInvalid(t *testing.T) {
	assert := assert.New(t)

	o := NewOwner(SerialOpener(SerialConfig{}))
	err := o.Open(context.Background())
	assert.ErrorIs(err, ErrDeviceUnavailable)
	assert.ErrorIs(err, ErrPortMissing)
}

func TestPickFT2232(t *testing.T) {
	assert := assert.New(t)

	ft := func(name, serial string) PortInfo {
		return PortInfo{Name: name, USB: true, VID: "0403", PID: "6010", SerialNumber: serial}
	}
	other := PortInfo{Name: "/dev/ttyACM0", USB: true, VID: "2341", PID: "0043"}

	name, err := pickFT2232([]PortInfo{ft("/dev/ttyUSB1", "A"), other, ft("/dev/ttyUSB0", "A")})
	assert.NoError(err)
	assert.Equal("/dev/ttyUSB1", name)

	_, err = pickFT2232([]PortInfo{ft("/dev/ttyUSB0", "A"), other})
	assert.ErrorIs(err, ErrAutoDetect)

	_, err = pickFT2232([]PortInfo{ft("/dev/ttyUSB0", "A"), ft("/dev/ttyUSB1", "B")})
	assert.ErrorIs(err, ErrAutoDetect)

	lower := PortInfo{Name: "/dev/ttyUSB3", VID: "0403", PID: "6010", SerialNumber: "C"}
	name, err = pickFT2232([]PortInfo{lower, ft("/dev/ttyUSB2", "C")})
	assert.NoError(err)
	assert.Equal("/dev/ttyUSB3", name)
}
