package radio

import "context"

// Driver moves raw datagrams over the air. Receive blocks until a datagram
// arrives or ctx is done.
type Driver interface {
	Send(ctx context.Context, data []byte) error
	Receive(ctx context.Context) ([]byte, error)
	Close() error
}
