package serial

import (
	"fmt"

	"github.com/pkg/term"
)

// Port is an open serial device.
type Port struct {
	*term.Term
	Device string
}

// OpenPort opens device in raw mode. A baud of 0 leaves the line speed alone.
func OpenPort(device string, baud int) (*Port, error) {
	t, err := term.Open(device, term.RawMode)
	if err != nil {
		return nil, fmt.Errorf("opening serial port %s: %w", device, err)
	}

	switch baud {
	case 0:
	case 1200, 2400, 4800, 9600, 19200, 38400, 57600, 115200:
		if err := t.SetSpeed(baud); err != nil {
			t.Close()
			return nil, fmt.Errorf("setting %s to %d baud: %w", device, baud, err)
		}
	default:
		t.Close()
		return nil, fmt.Errorf("unsupported serial speed %d", baud)
	}

	return &Port{Term: t, Device: device}, nil
}
