// Package replay plays back captured radio traffic and records live traffic
// into the same capture format.
//
// A capture holds one datagram per line as hex. Blank lines and lines
// starting with # are skipped.
package replay

import (
	"bufio"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/norasector/beacon/pkg/radio"
)

type Driver struct {
	file        io.Closer
	scanner     *bufio.Scanner
	timeBetween time.Duration
	line        int
	// next is when the following datagram is due. A Receive cancelled before
	// then leaves it in place for the next call.
	next time.Time
}

// Open replays the capture at path, returning one datagram every
// timeBetween. Receive returns io.EOF once the capture is exhausted.
func Open(path string, timeBetween time.Duration) (*Driver, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return New(f, timeBetween), nil
}

func New(r io.Reader, timeBetween time.Duration) *Driver {
	d := &Driver{
		scanner:     bufio.NewScanner(r),
		timeBetween: timeBetween,
	}
	if c, ok := r.(io.Closer); ok {
		d.file = c
	}
	return d
}

// Send discards data. Acknowledgements have nowhere to go on a capture.
func (d *Driver) Send(ctx context.Context, data []byte) error { return nil }

func (d *Driver) Receive(ctx context.Context) ([]byte, error) {
	if wait := time.Until(d.next); wait > 0 {
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	for d.scanner.Scan() {
		d.line++
		text := strings.TrimSpace(d.scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		data, err := hex.DecodeString(text)
		if err != nil {
			return nil, fmt.Errorf("capture line %d: %w", d.line, err)
		}
		if len(data) > radio.MaxMessageSize {
			return nil, fmt.Errorf("capture line %d: %w: %d bytes", d.line, radio.ErrInvalidPayload, len(data))
		}
		d.next = time.Now().Add(d.timeBetween)
		return data, nil
	}
	if err := d.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

func (d *Driver) Close() error {
	if d.file == nil {
		return nil
	}
	return d.file.Close()
}

// Recorder wraps a driver and writes every datagram it receives to w in
// capture format.
type Recorder struct {
	radio.Driver

	mu sync.Mutex
	w  io.Writer
}

func NewRecorder(d radio.Driver, w io.Writer) *Recorder {
	return &Recorder{Driver: d, w: w}
}

func (r *Recorder) Receive(ctx context.Context) ([]byte, error) {
	data, err := r.Driver.Receive(ctx)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := fmt.Fprintln(r.w, hex.EncodeToString(data)); err != nil {
		return nil, fmt.Errorf("recording datagram: %w", err)
	}
	return data, nil
}
