package transport

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

const (
	PORT_AUTO    = "auto"
	DEFAULT_BAUD = 115200

	FT2232_VID = "0403"
	FT2232_PID = "6010"
)

// SerialConfig selects and configures the serial port.
type SerialConfig struct {
	Port string // Device path, or "auto".
	Baud int    // Baud rate, 8N1.
}

// Validate checks the configuration without touching the device.
func (sc SerialConfig) Validate() (err error) {
	if sc.Port == "" {
		err = ErrPortMissing
		return
	}
	if sc.Baud <= 0 {
		err = ErrBaudInvalid
		return
	}
	return
}

// SerialOpener returns an Opener for a real serial port.
func SerialOpener(sc SerialConfig) Opener {
	return func(ctx context.Context) (port Port, err error) {
		err = sc.Validate()
		if err != nil {
			return
		}

		name := sc.Port
		if name == PORT_AUTO {
			name, err = autodetect()
			if err != nil {
				return
			}
		}

		mode := &serial.Mode{
			BaudRate: sc.Baud,
			DataBits: 8,
			Parity:   serial.NoParity,
			StopBits: serial.OneStopBit,
		}

		port, err = serial.Open(name, mode)
		if err != nil {
			err = fmt.Errorf("%v: %w", name, err)
		}
		return
	}
}

// PortInfo describes a serial port found on the host.
type PortInfo struct {
	Name         string
	USB          bool
	VID          string
	PID          string
	SerialNumber string
	Product      string
}

// ListPorts enumerates the host's serial ports.
func ListPorts() (infos []PortInfo, err error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return
	}

	for _, detail := range details {
		infos = append(infos, PortInfo{
			Name:         detail.Name,
			USB:          detail.IsUSB,
			VID:          detail.VID,
			PID:          detail.PID,
			SerialNumber: detail.SerialNumber,
			Product:      detail.Product,
		})
	}

	slices.SortFunc(infos, func(a, b PortInfo) int { return strings.Compare(a.Name, b.Name) })

	return
}

func autodetect() (name string, err error) {
	infos, err := ListPorts()
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrAutoDetect, err)
		return
	}
	return pickFT2232(infos)
}

// pickFT2232 chooses the UART interface of an FT2232. The chip exposes two
// ports with the same serial number. The UART is the second interface.
func pickFT2232(infos []PortInfo) (name string, err error) {
	var found []PortInfo
	for _, info := range infos {
		if strings.EqualFold(info.VID, FT2232_VID) && strings.EqualFold(info.PID, FT2232_PID) {
			found = append(found, info)
		}
	}

	if len(found) != 2 {
		err = fmt.Errorf("%w: %v", ErrAutoDetect, f("expected two FT2232 ports, found %d", len(found)))
		return
	}

	if found[0].SerialNumber != found[1].SerialNumber {
		err = fmt.Errorf("%w: %v", ErrAutoDetect, f("FT2232 ports belong to different devices"))
		return
	}

	slices.SortFunc(found, func(a, b PortInfo) int { return strings.Compare(a.Name, b.Name) })
	name = found[1].Name

	return
}
