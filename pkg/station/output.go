package station

import "context"

// Output handles decoded readings.
type Output interface {
	// Start runs until ctx is done or the output fails.
	Start(ctx context.Context) error
	// Receive returns the channel readings are delivered on. The station
	// never blocks on it.
	Receive() chan<- *Reading
}
