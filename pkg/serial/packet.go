// Package serial implements the node/port addressed packets exchanged with
// the host computer over a serial line.
//
// Every packet is the same size:
//
//	Node (1) | Port (1) | Payload (0..size-2) | zero padding
package serial

import (
	"errors"
	"fmt"
)

const (
	DefaultPacketSize = 100
	HeaderSize        = 2

	// Text messages travel on this node and port.
	MessageNode = 1
	MessagePort = 11
)

var (
	ErrShortRead       = errors.New("short serial packet")
	ErrPayloadTooLarge = errors.New("payload does not fit serial packet")
)

type Packet struct {
	Node    uint8
	Port    uint8
	Payload []byte
}

// Encode lays p out in a zero padded buffer of size bytes.
func Encode(p Packet, size int) ([]byte, error) {
	if len(p.Payload) > size-HeaderSize {
		return nil, fmt.Errorf("%w: %d bytes, room for %d", ErrPayloadTooLarge, len(p.Payload), size-HeaderSize)
	}
	buf := make([]byte, size)
	buf[0] = p.Node
	buf[1] = p.Port
	copy(buf[HeaderSize:], p.Payload)
	return buf, nil
}

// Decode splits a full packet. The payload keeps its padding; the packet
// carries no length.
func Decode(buf []byte) (Packet, error) {
	if len(buf) < HeaderSize {
		return Packet{}, ErrShortRead
	}
	p := Packet{
		Node:    buf[0],
		Port:    buf[1],
		Payload: make([]byte, len(buf)-HeaderSize),
	}
	copy(p.Payload, buf[HeaderSize:])
	return p, nil
}
