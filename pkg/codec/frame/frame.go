// Package frame lays a Measurements set out as the fixed 42-byte telemetry
// frame and parses it back.
package frame

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/norasector/beacon/pkg/codec/quant"
)

var ErrFrameLength = errors.New("telemetry frame must be exactly 42 bytes")

// LengthError is returned by Parse for any buffer that is not Size bytes.
type LengthError struct {
	Got int
}

func (e *LengthError) Error() string {
	return fmt.Sprintf("telemetry frame is %d bytes, want %d", e.Got, Size)
}

func (e *LengthError) Is(target error) bool { return target == ErrFrameLength }

// FieldError ties a quantization error to the slot it came from.
type FieldError struct {
	Slot string
	Err  error
}

func (e *FieldError) Error() string { return e.Slot + ": " + e.Err.Error() }

func (e *FieldError) Unwrap() error { return e.Err }

// Measurements is the payload carried by one frame, in slot order.
type Measurements struct {
	Doubles [NumDoubles]float64
	Floats  [NumFloats]float32
	Bytes   [NumBytes]uint8
	Counter uint32

	// SingleDoubles marks Doubles as widened float32 values. They are then
	// scaled in single precision, like the float slots, so a float32 123.45
	// still encodes as 12345. Decode never sets it.
	SingleDoubles bool
}

// Frame is one encoded Measurements set.
type Frame [Size]byte

func (f Frame) Bytes() []byte {
	out := make([]byte, Size)
	copy(out, f[:])
	return out
}

func (f Frame) String() string {
	return hex.EncodeToString(f[:])
}

// Parse copies a transport buffer into a Frame. Nothing is decoded from a
// buffer of the wrong length.
func Parse(b []byte) (Frame, error) {
	var f Frame
	if len(b) != Size {
		return f, &LengthError{Got: len(b)}
	}
	copy(f[:], b)
	return f, nil
}

// ParseHex is Parse for a hex string, as printed by Frame.String.
func ParseHex(s string) (Frame, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Frame{}, fmt.Errorf("decoding hex frame: %w", err)
	}
	return Parse(b)
}

// Encode builds a frame with the firmware's wrap-silently semantics.
func Encode(m Measurements) Frame {
	f, _ := EncodePolicy(m, quant.WrapSilently)
	return f
}

// EncodePolicy builds a frame, applying policy to every quantized slot. All
// slot errors are returned joined; under ClampAndReport the frame is still
// complete, under Reject the offending slots are left zero.
func EncodePolicy(m Measurements, policy quant.Policy) (Frame, error) {
	var f Frame
	var errs []error
	for _, slot := range Layout {
		dst := f[slot.Offset : slot.Offset+slot.Width()]
		var err error
		switch slot.Kind {
		case KindDouble:
			if m.SingleDoubles {
				err = slot.Field.EncodeFloat32(dst, float32(m.Doubles[slot.Index]), policy)
			} else {
				err = slot.Field.Encode(dst, m.Doubles[slot.Index], policy)
			}
		case KindFloat:
			err = slot.Field.EncodeFloat32(dst, m.Floats[slot.Index], policy)
		case KindByte:
			dst[0] = m.Bytes[slot.Index]
		case KindCounter:
			binary.BigEndian.PutUint32(dst, m.Counter)
		}
		if err != nil {
			errs = append(errs, &FieldError{Slot: slot.Name, Err: err})
		}
	}
	return f, errors.Join(errs...)
}

// Decode is the inverse of Encode. Quantized slots are reconstructed
// unsigned; see package quant.
func Decode(f Frame) Measurements {
	var m Measurements
	for _, slot := range Layout {
		src := f[slot.Offset : slot.Offset+slot.Width()]
		switch slot.Kind {
		case KindDouble:
			m.Doubles[slot.Index] = slot.Field.Decode(src)
		case KindFloat:
			m.Floats[slot.Index] = slot.Field.DecodeFloat32(src)
		case KindByte:
			m.Bytes[slot.Index] = src[0]
		case KindCounter:
			m.Counter = binary.BigEndian.Uint32(src)
		}
	}
	return m
}

// Value returns the numeric value stored for slot, widened to float64.
func (m *Measurements) Value(slot Slot) float64 {
	switch slot.Kind {
	case KindDouble:
		return m.Doubles[slot.Index]
	case KindFloat:
		return float64(m.Floats[slot.Index])
	case KindByte:
		return float64(m.Bytes[slot.Index])
	default:
		return float64(m.Counter)
	}
}
