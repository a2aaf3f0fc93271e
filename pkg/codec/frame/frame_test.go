package frame

import (
	"errors"
	"math"
	"testing"

	"github.com/norasector/beacon/pkg/codec/quant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// Values the flight computer sends in its self-test beacon.
var selfTest = Measurements{
	Doubles: [NumDoubles]float64{123.45, 956.76, -75.01, 98.3, 21.7, 87.80, 101.71, 43.87},
	Floats:  [NumFloats]float32{123.45, 956.76, 956.76, -75.01, -75.01, -75.01},
	Bytes:   [NumBytes]uint8{241, 32, 85, 255},
	Counter: 4294967295,
}

const selfTestHex = "30390175bcffe2b305dbf060014b1da0224c27bb1123303975bc75bce2b3e2b3e2b3f12055ffffffffff"

func TestLayoutIsContiguous(t *testing.T) {
	offset := 0
	counts := map[Kind]int{}
	for _, slot := range Layout {
		assert.Equal(t, offset, slot.Offset, "slot %s", slot.Name)
		assert.Equal(t, counts[slot.Kind], slot.Index, "slot %s", slot.Name)
		counts[slot.Kind]++
		offset += slot.Width()
	}
	assert.Equal(t, Size, offset)
	assert.Equal(t, NumDoubles, counts[KindDouble])
	assert.Equal(t, NumFloats, counts[KindFloat])
	assert.Equal(t, NumBytes, counts[KindByte])
	assert.Equal(t, 1, counts[KindCounter])
}

func TestEncodeSelfTest(t *testing.T) {
	f := Encode(selfTest)
	assert.Equal(t, selfTestHex, f.String())
}

func TestEncodeSingleDoubles(t *testing.T) {
	m := selfTest
	for i, v := range m.Doubles {
		m.Doubles[i] = float64(float32(v))
	}

	// Scaled in double precision the widened values lose a digit.
	f := Encode(m)
	assert.Equal(t, []byte{0x30, 0x38}, f[0:2])

	m.SingleDoubles = true
	f = Encode(m)
	assert.Equal(t, selfTestHex, f.String())
	assert.False(t, Decode(f).SingleDoubles)
}

func TestDecodeSelfTest(t *testing.T) {
	f, err := ParseHex(selfTestHex)
	require.NoError(t, err)

	got := Decode(f)
	want := Measurements{
		// Alt was negative and comes back unsigned.
		Doubles: [NumDoubles]float64{123.45, 956.76, 167697.15, 98.3, 21.7, 87.80, 101.71, 43.87},
		// Humidity and Temp3 wrapped in 2 bytes, IMUs were negative.
		Floats:  [NumFloats]float32{123.45, 301.4, 301.4, 580.35, 580.35, 580.35},
		Bytes:   selfTest.Bytes,
		Counter: selfTest.Counter,
	}
	for i := range want.Doubles {
		assert.InDelta(t, want.Doubles[i], got.Doubles[i], 1e-9, "double %d", i)
	}
	assert.Equal(t, want.Floats, got.Floats)
	assert.Equal(t, want.Bytes, got.Bytes)
	assert.Equal(t, want.Counter, got.Counter)
}

func TestEncodeSize(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		m := drawMeasurements(t, -1e12, 1e12)
		if got := len(Encode(m).Bytes()); got != Size {
			t.Fatalf("frame is %d bytes", got)
		}
	})
}

func TestFieldIsolation(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		m := drawMeasurements(t, -1e4, 1e4)
		changed := m
		changed.Doubles[3] = rapid.Float64Range(-1e4, 1e4).Draw(t, "d3")

		a, b := Encode(m), Encode(changed)
		for i := 0; i < Size; i++ {
			if i >= 8 && i < 12 {
				continue
			}
			if a[i] != b[i] {
				t.Fatalf("byte %d changed: %02x -> %02x", i, a[i], b[i])
			}
		}
	})
}

func TestRawRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		var m Measurements
		copy(m.Bytes[:], rapid.SliceOfN(rapid.Byte(), NumBytes, NumBytes).Draw(t, "bytes"))
		m.Counter = rapid.Uint32().Draw(t, "counter")

		got := Decode(Encode(m))
		if got.Bytes != m.Bytes || got.Counter != m.Counter {
			t.Fatalf("got %v/%d, want %v/%d", got.Bytes, got.Counter, m.Bytes, m.Counter)
		}
	})
}

func TestRoundTripInRange(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		var m Measurements
		for _, slot := range Layout {
			switch slot.Kind {
			case KindDouble:
				hi := float64(slot.Field.Max()-1) / slot.Field.Scale
				m.Doubles[slot.Index] = rapid.Float64Range(0, hi).Draw(t, slot.Name)
			case KindFloat:
				m.Floats[slot.Index] = float32(rapid.Float64Range(0, 600).Draw(t, slot.Name))
			}
		}

		f, err := EncodePolicy(m, quant.Reject)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		got := Decode(f)
		for _, slot := range Layout {
			if slot.Kind != KindDouble && slot.Kind != KindFloat {
				continue
			}
			// Truncation loses at most one step, plus float32 rounding on F slots.
			tol := slot.Field.Resolution() + 1e-4
			if diff := m.Value(slot) - got.Value(slot); diff < -1e-4 || diff > tol {
				t.Fatalf("%s: sent %v got %v", slot.Name, m.Value(slot), got.Value(slot))
			}
		}
	})
}

func TestParseLength(t *testing.T) {
	for _, n := range []int{0, 1, 41, 43, 100} {
		_, err := Parse(make([]byte, n))
		require.Error(t, err, "len %d", n)
		assert.True(t, errors.Is(err, ErrFrameLength))

		var lengthErr *LengthError
		require.True(t, errors.As(err, &lengthErr))
		assert.Equal(t, n, lengthErr.Got)
	}

	f, err := Parse(make([]byte, Size))
	require.NoError(t, err)
	assert.Equal(t, Frame{}, f)

	_, err = ParseHex("zz")
	assert.Error(t, err)
}

func TestEncodePolicyErrors(t *testing.T) {
	m := selfTest

	f, err := EncodePolicy(m, quant.ClampAndReport)
	require.Error(t, err)
	assert.True(t, errors.Is(err, quant.ErrOverflow))
	assert.True(t, errors.Is(err, quant.ErrSignAmbiguity))

	var fieldErr *FieldError
	require.True(t, errors.As(err, &fieldErr))
	assert.Equal(t, "D2", fieldErr.Slot)

	// Humidity (F1) saturates instead of wrapping.
	assert.Equal(t, []byte{0xff, 0xff}, f[24:26])
	for _, slot := range []string{"D2", "F1", "F2", "F3", "F4", "F5"} {
		assert.Contains(t, err.Error(), slot+":")
	}

	f, err = EncodePolicy(m, quant.Reject)
	require.Error(t, err)
	assert.Equal(t, []byte{0, 0, 0}, f[5:8])
	assert.Equal(t, []byte{0x30, 0x39}, f[0:2])
	assert.Equal(t, byte(241), f[34])

	_, err = EncodePolicy(m, quant.WrapSilently)
	assert.NoError(t, err)
}

func TestSlotByName(t *testing.T) {
	s, ok := SlotByName("D3")
	require.True(t, ok)
	assert.Equal(t, 8, s.Offset)
	assert.Equal(t, quant.Micro4, s.Field)

	_, ok = SlotByName("D9")
	assert.False(t, ok)
}

func TestValueNaN(t *testing.T) {
	m := Measurements{}
	m.Doubles[0] = math.NaN()
	got := Decode(Encode(m))
	assert.Equal(t, 0.0, got.Doubles[0])
}

func drawMeasurements(t *rapid.T, lo, hi float64) Measurements {
	var m Measurements
	for i := range m.Doubles {
		m.Doubles[i] = rapid.Float64Range(lo, hi).Draw(t, "double")
	}
	for i := range m.Floats {
		m.Floats[i] = float32(rapid.Float64Range(lo, hi).Draw(t, "float"))
	}
	copy(m.Bytes[:], rapid.SliceOfN(rapid.Byte(), NumBytes, NumBytes).Draw(t, "bytes"))
	m.Counter = rapid.Uint32().Draw(t, "counter")
	return m
}
