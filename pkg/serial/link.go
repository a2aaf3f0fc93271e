package serial

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/norasector/beacon/pkg/beacon"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Link sends and receives fixed-size packets over a byte stream.
type Link struct {
	rw     io.ReadWriter
	node   uint8
	port   uint8
	size   int
	logger zerolog.Logger
}

type LinkOption func(l *Link)

// WithAddress sets the node and port stamped on outgoing beacon packets.
func WithAddress(node, port uint8) LinkOption {
	return func(l *Link) {
		l.node = node
		l.port = port
	}
}

func WithPacketSize(size int) LinkOption {
	return func(l *Link) {
		if size > HeaderSize {
			l.size = size
		}
	}
}

func WithLogger(logger zerolog.Logger) LinkOption {
	return func(l *Link) {
		l.logger = logger
	}
}

func NewLink(rw io.ReadWriter, opts ...LinkOption) *Link {
	l := &Link{
		rw:     rw,
		size:   DefaultPacketSize,
		logger: log.Logger,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Link) PacketSize() int { return l.size }

// SendBeacon writes b in its native record layout.
func (l *Link) SendBeacon(b beacon.Beacon) error {
	record, err := b.MarshalBinary()
	if err != nil {
		return err
	}
	return l.Send(Packet{Node: l.node, Port: l.port, Payload: record})
}

// SendMessage writes a text packet on the message node and port.
func (l *Link) SendMessage(msg string) error {
	return l.Send(Packet{Node: MessageNode, Port: MessagePort, Payload: []byte(msg)})
}

func (l *Link) Send(p Packet) error {
	buf, err := Encode(p, l.size)
	if err != nil {
		return err
	}
	if _, err := l.rw.Write(buf); err != nil {
		return fmt.Errorf("writing serial packet: %w", err)
	}
	return nil
}

// ReadPacket blocks for one full packet. On a short read the zero packet is
// returned with ErrShortRead.
func (l *Link) ReadPacket() (Packet, error) {
	buf := make([]byte, l.size)
	n, err := io.ReadFull(l.rw, buf)
	switch {
	case err == io.ErrUnexpectedEOF:
		l.logger.Debug().Int("read_bytes", n).Int("packet_size", l.size).Msg("short serial packet")
		return Packet{}, fmt.Errorf("%w: %d of %d bytes", ErrShortRead, n, l.size)
	case err != nil:
		return Packet{}, err
	}
	return Decode(buf)
}

// Start reads packets into out until ctx is done or the stream fails.
func (l *Link) Start(ctx context.Context, out chan<- Packet) error {
	for {
		p, err := l.ReadPacket()
		switch {
		case err == nil:
		case ctx.Err() != nil:
			return ctx.Err()
		case err == io.EOF:
			return nil
		default:
			if errors.Is(err, ErrShortRead) {
				continue
			}
			return err
		}

		l.logger.Debug().Uint8("node", p.Node).Uint8("port", p.Port).Msg("serial packet")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case out <- p:
		}
	}
}

// Text returns a message payload without its padding.
func Text(p Packet) string {
	if idx := bytes.IndexByte(p.Payload, 0x00); idx >= 0 {
		return string(p.Payload[:idx])
	}
	return string(p.Payload)
}
