// Package quant converts real values to and from fixed-width, big-endian,
// fixed-point byte groups.
//
// A value is multiplied by the field's scale, truncated toward zero and the
// low Width bytes of the resulting two's-complement integer are emitted most
// significant byte first. Decoding concatenates the bytes as an unsigned
// integer and divides by the scale.
//
// Reconstruction is unsigned for every width. Only non-negative encoded
// magnitudes round-trip; a negative value encoded at width w decodes as
// (2^(8w) + raw) / scale. This matches the deployed firmware and is kept for
// wire compatibility.
package quant

import (
	"fmt"
	"math"
)

const (
	MinWidth = 2
	MaxWidth = 4
)

// Field is a per-slot width and scale contract.
type Field struct {
	Width int
	Scale float64
}

var (
	// Centi2 holds hundredths in 2 bytes.
	Centi2 = Field{Width: 2, Scale: 100}
	// Centi3 holds hundredths in 3 bytes.
	Centi3 = Field{Width: 3, Scale: 100}
	// Micro4 holds millionths in 4 bytes.
	Micro4 = Field{Width: 4, Scale: 1e6}
)

func (f Field) String() string {
	return fmt.Sprintf("%dB×%g", f.Width, f.Scale)
}

func (f Field) valid() bool {
	return f.Width >= MinWidth && f.Width <= MaxWidth && f.Scale > 0
}

// Max is the largest raw integer that decodes back to itself.
func (f Field) Max() int64 {
	return int64(1)<<(8*uint(f.Width)) - 1
}

// Min is the most negative raw integer whose two's-complement pattern fits
// the window. It does not round-trip.
func (f Field) Min() int64 {
	return -(int64(1) << (8*uint(f.Width) - 1))
}

// Resolution is the value of one least significant bit.
func (f Field) Resolution() float64 {
	return 1 / f.Scale
}

// Truncate returns the integer the firmware's truncating cast to a 32-bit
// int would produce for scaled, along with the untruncated integer part used
// for range checks. NaN and infinities have no integer image; ok is false.
func Truncate(scaled float64) (raw int32, whole float64, ok bool) {
	if math.IsNaN(scaled) || math.IsInf(scaled, 0) {
		return 0, 0, false
	}
	whole = math.Trunc(scaled)
	// math.Mod is exact, so this keeps the low 32 bits for any finite input.
	low := math.Mod(whole, 1<<32)
	return int32(uint32(int64(low))), whole, true
}

// Put writes the low Width bytes of raw into dst, most significant first.
func (f Field) Put(dst []byte, raw int32) {
	_ = dst[f.Width-1]
	for i := 0; i < f.Width; i++ {
		dst[i] = byte(raw >> (8 * uint(f.Width-1-i)))
	}
}

// Uint reassembles the Width bytes of src as an unsigned big-endian integer.
func (f Field) Uint(src []byte) uint32 {
	_ = src[f.Width-1]
	var v uint32
	for i := 0; i < f.Width; i++ {
		v = v<<8 + uint32(src[i])
	}
	return v
}

// Encode quantizes v into dst[:f.Width] according to policy.
func (f Field) Encode(dst []byte, v float64, policy Policy) error {
	return f.encodeScaled(dst, v, v*f.Scale, policy)
}

// EncodeFloat32 quantizes a single precision value. The product is formed in
// single precision, as the firmware does, so 123.45 still maps to 12345.
func (f Field) EncodeFloat32(dst []byte, v float32, policy Policy) error {
	return f.encodeScaled(dst, float64(v), float64(v*float32(f.Scale)), policy)
}

func (f Field) encodeScaled(dst []byte, v, scaled float64, policy Policy) error {
	if !f.valid() {
		return fmt.Errorf("quant: %w %v", ErrInvalidField, f)
	}
	raw, whole, ok := Truncate(scaled)

	var err error
	switch {
	case !ok:
		err = &OverflowError{Field: f, Value: v, Raw: whole}
	case whole > float64(f.Max()), whole < float64(f.Min()):
		err = &OverflowError{Field: f, Value: v, Raw: whole}
	case whole < 0:
		err = &SignError{Field: f, Value: v, Raw: int64(whole)}
	}

	switch policy {
	case WrapSilently:
		f.Put(dst, raw)
		return nil
	case ClampAndReport:
		if oe, isOverflow := err.(*OverflowError); isOverflow {
			raw = int32(f.clamp(oe.Raw))
		}
		f.Put(dst, raw)
		return err
	case Reject:
		if err != nil {
			return err
		}
		f.Put(dst, raw)
		return nil
	default:
		return fmt.Errorf("quant: unknown policy %d", int(policy))
	}
}

func (f Field) clamp(whole float64) int64 {
	if whole < 0 {
		return f.Min()
	}
	// NaN lands here too, with whole == 0.
	if whole == 0 {
		return 0
	}
	return f.Max()
}

// Decode reverses Encode for non-negative magnitudes.
func (f Field) Decode(src []byte) float64 {
	return float64(f.Uint(src)) / f.Scale
}

// DecodeFloat32 is Decode narrowed to single precision.
func (f Field) DecodeFloat32(src []byte) float32 {
	return float32(f.Decode(src))
}
