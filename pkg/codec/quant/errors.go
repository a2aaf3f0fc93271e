package quant

import (
	"errors"
	"fmt"
)

var (
	ErrOverflow      = errors.New("quantized value outside field window")
	ErrSignAmbiguity = errors.New("negative value will not decode as negative")
	ErrInvalidField  = errors.New("invalid field")
)

// OverflowError reports a value whose truncated integer does not fit the
// field's byte window. Raw is the untruncated integer part, or 0 for NaN and
// infinities.
type OverflowError struct {
	Field Field
	Value float64
	Raw   float64
}

func (e *OverflowError) Error() string {
	return fmt.Sprintf("value %g (raw %.0f) outside %v window [%d, %d]", e.Value, e.Raw, e.Field, e.Field.Min(), e.Field.Max())
}

func (e *OverflowError) Is(target error) bool { return target == ErrOverflow }

// SignError reports a negative value. It is encodable as a two's-complement
// pattern but decodes as a large positive number.
type SignError struct {
	Field Field
	Value float64
	Raw   int64
}

func (e *SignError) Error() string {
	decoded := float64(e.Raw+e.Field.Max()+1) / e.Field.Scale
	return fmt.Sprintf("value %g (raw %d) in %v will decode as %g", e.Value, e.Raw, e.Field, decoded)
}

func (e *SignError) Is(target error) bool { return target == ErrSignAmbiguity }
