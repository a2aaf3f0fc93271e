// Package radio carries telemetry frames, beacon records and one-byte
// commands between the flight computer and the ground station over
// addressed, acknowledged datagrams.
package radio

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/norasector/beacon/pkg/beacon"
	"github.com/norasector/beacon/pkg/codec/frame"
	"github.com/norasector/beacon/pkg/codec/quant"
)

type MessageKind int

const (
	KindUnknown MessageKind = iota
	KindFrame
	KindCommand
	KindRecord
)

func (k MessageKind) String() string {
	switch k {
	case KindFrame:
		return "frame"
	case KindCommand:
		return "command"
	case KindRecord:
		return "record"
	default:
		return "unknown"
	}
}

var ErrUnexpectedMessage = errors.New("unexpected message kind")

// Command is a single-byte instruction sent to the flight computer.
type Command uint8

// recordOffset skips the serial node and port bytes that precede a
// forwarded beacon record.
const recordOffset = 2

// Message is one classified payload received from a peer.
type Message struct {
	From     uint8
	Received time.Time
	Kind     MessageKind
	Frame    frame.Frame
	Command  Command
	Record   beacon.Beacon
	Payload  []byte
}

// Measurements decodes the frame carried by a KindFrame message.
func (m Message) Measurements() frame.Measurements {
	return frame.Decode(m.Frame)
}

type Radio struct {
	mgr    *Manager
	peer   uint8
	policy quant.Policy
	now    func() time.Time
}

type Option func(r *Radio)

// WithPolicy sets the overflow policy used when encoding outgoing frames.
func WithPolicy(policy quant.Policy) Option {
	return func(r *Radio) {
		r.policy = policy
	}
}

// WithPeer overrides the destination address from the manager's settings.
func WithPeer(addr uint8) Option {
	return func(r *Radio) {
		r.peer = addr
	}
}

func WithNow(now func() time.Time) Option {
	return func(r *Radio) {
		r.now = now
	}
}

func New(mgr *Manager, opts ...Option) *Radio {
	r := &Radio{
		mgr:    mgr,
		peer:   mgr.Settings().PeerAddress,
		policy: quant.WrapSilently,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Radio) Manager() *Manager { return r.mgr }

func (r *Radio) Close() error { return r.mgr.Close() }

// SendMeasurements encodes m and sends it to the peer. Under Reject a frame
// with any out-of-range slot is not sent. Under ClampAndReport the clamped
// frame is sent and the slot errors are returned once delivery succeeds.
func (r *Radio) SendMeasurements(ctx context.Context, m frame.Measurements) error {
	f, encErr := frame.EncodePolicy(m, r.policy)
	if encErr != nil && r.policy == quant.Reject {
		return encErr
	}
	if err := r.mgr.SendToWait(ctx, r.peer, f[:]); err != nil {
		return err
	}
	return encErr
}

func (r *Radio) SendBeacon(ctx context.Context, b beacon.Beacon) error {
	return r.SendMeasurements(ctx, b.Measurements())
}

func (r *Radio) SendCommand(ctx context.Context, cmd Command) error {
	return r.mgr.SendToWait(ctx, r.peer, []byte{byte(cmd)})
}

// SendRecord forwards a native beacon record behind the serial node and
// port it was read from.
func (r *Radio) SendRecord(ctx context.Context, node, port uint8, b beacon.Beacon) error {
	record, err := b.MarshalBinary()
	if err != nil {
		return err
	}
	payload := append([]byte{node, port}, record...)
	return r.mgr.SendToWait(ctx, r.peer, payload)
}

// ReadMessage waits for the next datagram and classifies its payload by
// length.
func (r *Radio) ReadMessage(ctx context.Context) (Message, error) {
	d, err := r.mgr.RecvFromAck(ctx)
	if err != nil {
		return Message{}, err
	}
	return Classify(d, r.now()), nil
}

func Classify(d Datagram, received time.Time) Message {
	msg := Message{
		From:     d.From,
		Received: received,
		Payload:  d.Payload,
	}
	switch n := len(d.Payload); {
	case n == frame.Size:
		msg.Kind = KindFrame
		copy(msg.Frame[:], d.Payload)
	case n == 1:
		msg.Kind = KindCommand
		msg.Command = Command(d.Payload[0])
	case n >= recordOffset+beacon.RecordSize:
		if err := msg.Record.UnmarshalBinary(d.Payload[recordOffset:]); err == nil {
			msg.Kind = KindRecord
		}
	}
	return msg
}

func (r *Radio) read(ctx context.Context, want MessageKind) (Message, error) {
	msg, err := r.ReadMessage(ctx)
	if err != nil {
		return msg, err
	}
	if msg.Kind != want {
		return msg, fmt.Errorf("%w: want %s, got %s from %d", ErrUnexpectedMessage, want, msg.Kind, msg.From)
	}
	return msg, nil
}

func (r *Radio) ReadMeasurements(ctx context.Context) (frame.Measurements, error) {
	msg, err := r.read(ctx, KindFrame)
	if err != nil {
		return frame.Measurements{}, err
	}
	return msg.Measurements(), nil
}

func (r *Radio) ReadBeaconRecord(ctx context.Context) (beacon.Beacon, error) {
	msg, err := r.read(ctx, KindRecord)
	return msg.Record, err
}

func (r *Radio) ReadCommand(ctx context.Context) (Command, error) {
	msg, err := r.read(ctx, KindCommand)
	return msg.Command, err
}
