// Package udp simulates the RF link with UDP datagrams, one radio packet per
// UDP packet.
package udp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/norasector/beacon/pkg/radio"
	"github.com/rs/zerolog/log"
)

// pollInterval bounds how long a read blocks before the context is checked.
const pollInterval = 100 * time.Millisecond

type Driver struct {
	conn *net.UDPConn
	peer *net.UDPAddr
}

// New listens on listen and sends every datagram to peer. Both are
// host:port strings.
func New(listen, peer string, settings radio.Settings) (*Driver, error) {
	laddr, err := net.ResolveUDPAddr("udp", listen)
	if err != nil {
		return nil, fmt.Errorf("resolving listen address %q: %w", listen, err)
	}
	paddr, err := net.ResolveUDPAddr("udp", peer)
	if err != nil {
		return nil, fmt.Errorf("resolving peer address %q: %w", peer, err)
	}

	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("listen", conn.LocalAddr().String()).
		Str("peer", paddr.String()).
		Float64("frequency_mhz", settings.FrequencyMHz).
		Str("modem", settings.ModemConfig).
		Msg("udp radio simulation starting")

	return &Driver{conn: conn, peer: paddr}, nil
}

func (d *Driver) LocalAddr() net.Addr { return d.conn.LocalAddr() }

func (d *Driver) Send(ctx context.Context, data []byte) error {
	if len(data) > radio.MaxMessageSize {
		return fmt.Errorf("%w: %d bytes", radio.ErrInvalidPayload, len(data))
	}
	if deadline, ok := ctx.Deadline(); ok {
		if err := d.conn.SetWriteDeadline(deadline); err != nil {
			return err
		}
	}
	_, err := d.conn.WriteToUDP(data, d.peer)
	return err
}

func (d *Driver) Receive(ctx context.Context) ([]byte, error) {
	buf := make([]byte, radio.MaxMessageSize+1)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		deadline := time.Now().Add(pollInterval)
		if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
			deadline = ctxDeadline
		}
		if err := d.conn.SetReadDeadline(deadline); err != nil {
			return nil, err
		}

		n, _, err := d.conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				continue
			}
			return nil, err
		}
		if n > radio.MaxMessageSize {
			log.Warn().Int("bytes", n).Msg("dropping oversized datagram")
			continue
		}

		out := make([]byte, n)
		copy(out, buf[:n])
		return out, nil
	}
}

func (d *Driver) Close() error {
	return d.conn.Close()
}
