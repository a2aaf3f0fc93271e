package output

import (
	"errors"
	"fmt"
	"time"

	"github.com/norasector/beacon/pkg/codec/frame"
	"github.com/norasector/beacon/pkg/station"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Readings go out as a google.protobuf.Struct:
//
//	{
//	  "sequence": 1,
//	  "from": 2,
//	  "received": "2021-06-01T12:00:00.000000001Z",
//	  "frame": "3039...",
//	  "fields": [{"name": "temp1", "value": 123.45}, ...]
//	}
const (
	keySequence = "sequence"
	keyFrom     = "from"
	keyReceived = "received"
	keyFrame    = "frame"
	keyFields   = "fields"

	keyName  = "name"
	keyValue = "value"
)

var ErrMalformedReading = errors.New("malformed reading")

// WireField is one named value as carried on the stream.
type WireField struct {
	Name  string
	Value float64
}

// WireReading is a reading as decoded from the stream.
type WireReading struct {
	Sequence uint64
	From     uint8
	Received time.Time
	Frame    frame.Frame
	Fields   []WireField
}

func readingStruct(r *station.Reading) *structpb.Struct {
	fields := make([]*structpb.Value, 0, len(frame.Layout))
	for _, f := range r.Fields() {
		fields = append(fields, structpb.NewStructValue(&structpb.Struct{
			Fields: map[string]*structpb.Value{
				keyName:  structpb.NewStringValue(f.Name),
				keyValue: structpb.NewNumberValue(f.Value),
			},
		}))
	}

	return &structpb.Struct{
		Fields: map[string]*structpb.Value{
			keySequence: structpb.NewNumberValue(float64(r.Sequence)),
			keyFrom:     structpb.NewNumberValue(float64(r.From)),
			keyReceived: structpb.NewStringValue(r.Received.UTC().Format(time.RFC3339Nano)),
			keyFrame:    structpb.NewStringValue(r.Frame.String()),
			keyFields:   structpb.NewListValue(&structpb.ListValue{Values: fields}),
		},
	}
}

// MarshalReading encodes r deterministically, so equal readings produce
// equal packets.
func MarshalReading(r *station.Reading) ([]byte, error) {
	return proto.MarshalOptions{Deterministic: true}.Marshal(readingStruct(r))
}

func UnmarshalReading(b []byte) (WireReading, error) {
	var pb structpb.Struct
	if err := proto.Unmarshal(b, &pb); err != nil {
		return WireReading{}, fmt.Errorf("%w: %v", ErrMalformedReading, err)
	}

	var r WireReading
	seq, err := number(&pb, keySequence)
	if err != nil {
		return r, err
	}
	r.Sequence = uint64(seq)

	from, err := number(&pb, keyFrom)
	if err != nil {
		return r, err
	}
	if from < 0 || from > 255 {
		return r, fmt.Errorf("%w: from address %g", ErrMalformedReading, from)
	}
	r.From = uint8(from)

	received, err := str(&pb, keyReceived)
	if err != nil {
		return r, err
	}
	if r.Received, err = time.Parse(time.RFC3339Nano, received); err != nil {
		return r, fmt.Errorf("%w: %v", ErrMalformedReading, err)
	}

	hexFrame, err := str(&pb, keyFrame)
	if err != nil {
		return r, err
	}
	if r.Frame, err = frame.ParseHex(hexFrame); err != nil {
		return r, fmt.Errorf("%w: %v", ErrMalformedReading, err)
	}

	list := pb.Fields[keyFields].GetListValue()
	if list == nil {
		return r, fmt.Errorf("%w: missing %s", ErrMalformedReading, keyFields)
	}
	for i, v := range list.Values {
		s := v.GetStructValue()
		if s == nil {
			return r, fmt.Errorf("%w: field %d is not an object", ErrMalformedReading, i)
		}
		name, err := str(s, keyName)
		if err != nil {
			return r, err
		}
		value, err := number(s, keyValue)
		if err != nil {
			return r, err
		}
		r.Fields = append(r.Fields, WireField{Name: name, Value: value})
	}
	return r, nil
}

func number(s *structpb.Struct, key string) (float64, error) {
	v, ok := s.Fields[key].GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, fmt.Errorf("%w: %s is not a number", ErrMalformedReading, key)
	}
	return v.NumberValue, nil
}

func str(s *structpb.Struct, key string) (string, error) {
	v, ok := s.Fields[key].GetKind().(*structpb.Value_StringValue)
	if !ok {
		return "", fmt.Errorf("%w: %s is not a string", ErrMalformedReading, key)
	}
	return v.StringValue, nil
}
