// Package loop is an in-memory radio link between two drivers in the same
// process.
package loop

import (
	"context"
	"errors"
	"sync"
)

var ErrClosed = errors.New("loop driver closed")

// Driver is one end of a Pair.
type Driver struct {
	in   chan []byte
	peer *Driver

	mu     sync.Mutex
	drop   func(data []byte) bool
	sent   [][]byte
	closed chan struct{}
	once   sync.Once
}

// NewPair returns two connected ends. Each end buffers up to size inbound
// datagrams; when the buffer is full new datagrams are lost, as on air.
func NewPair(size int) (*Driver, *Driver) {
	a := &Driver{in: make(chan []byte, size), closed: make(chan struct{})}
	b := &Driver{in: make(chan []byte, size), closed: make(chan struct{})}
	a.peer, b.peer = b, a
	return a, b
}

// SetDrop installs a filter that discards outgoing datagrams it returns
// true for.
func (d *Driver) SetDrop(drop func(data []byte) bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.drop = drop
}

// Sent returns copies of every datagram this end transmitted, dropped ones
// included.
func (d *Driver) Sent() [][]byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([][]byte, len(d.sent))
	copy(out, d.sent)
	return out
}

func (d *Driver) Send(ctx context.Context, data []byte) error {
	select {
	case <-d.closed:
		return ErrClosed
	default:
	}

	buf := make([]byte, len(data))
	copy(buf, data)

	d.mu.Lock()
	d.sent = append(d.sent, buf)
	drop := d.drop
	d.mu.Unlock()

	if drop != nil && drop(buf) {
		return nil
	}

	select {
	case d.peer.in <- buf:
	default:
	}
	return nil
}

func (d *Driver) Receive(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-d.closed:
		return nil, ErrClosed
	case data := <-d.in:
		return data, nil
	}
}

func (d *Driver) Close() error {
	d.once.Do(func() { close(d.closed) })
	return nil
}
