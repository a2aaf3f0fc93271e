package station

import (
	"time"

	"github.com/norasector/beacon/pkg/beacon"
	"github.com/norasector/beacon/pkg/codec/frame"
	"github.com/norasector/beacon/pkg/radio"
)

// Reading is one beacon received by the station.
type Reading struct {
	Sequence     uint64
	From         uint8
	Received     time.Time
	Kind         radio.MessageKind
	Frame        frame.Frame
	Measurements frame.Measurements
	Beacon       beacon.Beacon
}

// Fields lists the reading's values under their beacon names.
func (r *Reading) Fields() []beacon.Field {
	return beacon.Fields(r.Measurements)
}

// Value returns the value of the named beacon field.
func (r *Reading) Value(name string) (float64, bool) {
	slot, ok := beacon.SlotForField(name)
	if !ok {
		return 0, false
	}
	return r.Measurements.Value(slot), true
}

// NewReading decodes a frame or record message. Other kinds yield false.
func NewReading(msg radio.Message) (*Reading, bool) {
	r := &Reading{
		From:     msg.From,
		Received: msg.Received,
		Kind:     msg.Kind,
	}
	switch msg.Kind {
	case radio.KindFrame:
		r.Frame = msg.Frame
		r.Measurements = frame.Decode(msg.Frame)
		r.Beacon = beacon.FromMeasurements(r.Measurements)
	case radio.KindRecord:
		r.Beacon = msg.Record
		r.Measurements = msg.Record.Measurements()
		r.Frame = frame.Encode(r.Measurements)
	default:
		return nil, false
	}
	return r, true
}
