package radio

import (
	"errors"
	"fmt"
)

// Datagram layout on air:
//
//	To (1) | From (1) | ID (1) | Flags (1) | Payload (0-251)
const (
	HeaderSize     = 4
	MaxMessageSize = 255
	MaxPayloadSize = MaxMessageSize - HeaderSize

	BroadcastAddress = 0xFF

	// FlagAck marks an acknowledgement and FlagRetry a retransmission. The
	// low nibble is free for the application; the firmware sets 0x7E on
	// everything it sends.
	FlagAck             = 0x80
	FlagRetry           = 0x40
	FlagApplicationMask = 0x0F
)

var (
	ErrTimeout        = errors.New("radio operation timed out")
	ErrNoAck          = errors.New("no acknowledgement from peer")
	ErrInvalidPayload = errors.New("invalid datagram payload size")
	ErrShortDatagram  = errors.New("datagram shorter than header")
)

type Datagram struct {
	To      uint8
	From    uint8
	ID      uint8
	Flags   uint8
	Payload []byte
}

func (d Datagram) IsAck() bool { return d.Flags&FlagAck != 0 }

func EncodeDatagram(d Datagram) ([]byte, error) {
	if len(d.Payload) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidPayload, len(d.Payload))
	}
	buf := make([]byte, HeaderSize+len(d.Payload))
	buf[0] = d.To
	buf[1] = d.From
	buf[2] = d.ID
	buf[3] = d.Flags
	copy(buf[HeaderSize:], d.Payload)
	return buf, nil
}

func DecodeDatagram(data []byte) (Datagram, error) {
	if len(data) < HeaderSize {
		return Datagram{}, ErrShortDatagram
	}
	d := Datagram{
		To:      data[0],
		From:    data[1],
		ID:      data[2],
		Flags:   data[3],
		Payload: make([]byte, len(data)-HeaderSize),
	}
	copy(d.Payload, data[HeaderSize:])
	return d, nil
}
