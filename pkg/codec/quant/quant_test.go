package quant

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		name  string
		field Field
		value float64
		want  []byte
	}{
		{"centi2 123.45", Centi2, 123.45, []byte{0x30, 0x39}},
		{"centi2 zero", Centi2, 0, []byte{0x00, 0x00}},
		{"centi2 max", Centi2, 655.35, []byte{0xff, 0xff}},
		{"centi2 truncates toward zero", Centi2, 1.239, []byte{0x00, 0x7b}},
		{"centi2 negative", Centi2, -75.01, []byte{0xe2, 0xb3}},
		{"centi2 wraps", Centi2, 700, []byte{0x11, 0x70}},
		{"centi3 956.76", Centi3, 956.76, []byte{0x01, 0x75, 0xbc}},
		{"centi3 negative", Centi3, -0.01, []byte{0xff, 0xff, 0xff}},
		{"micro4 98.3", Micro4, 98.3, []byte{0x05, 0xdb, 0xf0, 0x60}},
		{"micro4 negative", Micro4, -75.01, []byte{0xfb, 0x87, 0x70, 0x30}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := make([]byte, tt.field.Width)
			require.NoError(t, tt.field.Encode(got, tt.value, WrapSilently))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name  string
		field Field
		in    []byte
		want  float64
	}{
		{"centi2 123.45", Centi2, []byte{0x30, 0x39}, 123.45},
		{"centi3 956.76", Centi3, []byte{0x01, 0x75, 0xbc}, 956.76},
		{"micro4 98.3", Micro4, []byte{0x05, 0xdb, 0xf0, 0x60}, 98.3},
		{"centi2 all ones", Centi2, []byte{0xff, 0xff}, 655.35},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.field.Decode(tt.in))
		})
	}
}

// Negative values come back as large positives. This is the deployed wire
// behaviour and must not change silently.
func TestDecodeNegativeIsUnsigned(t *testing.T) {
	tests := []struct {
		name  string
		field Field
		value float64
		want  float64
	}{
		{"centi2", Centi2, -75.01, 580.35},
		{"centi3", Centi3, -75.01, 167697.15},
		{"micro4", Micro4, -75.01, 4219.957296},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := make([]byte, tt.field.Width)
			require.NoError(t, tt.field.Encode(buf, tt.value, WrapSilently))
			assert.InDelta(t, tt.want, tt.field.Decode(buf), 1e-9)
			assert.NotEqual(t, tt.value, tt.field.Decode(buf))
		})
	}
}

func TestEncodeFloat32(t *testing.T) {
	buf := make([]byte, 2)
	require.NoError(t, Centi2.EncodeFloat32(buf, 123.45, WrapSilently))
	assert.Equal(t, []byte{0x30, 0x39}, buf)
	assert.Equal(t, float32(123.45), Centi2.DecodeFloat32(buf))

	// Widening first would give 12344.9997 and truncate to 12344.
	require.NoError(t, Centi2.Encode(buf, float64(float32(123.45)), WrapSilently))
	assert.Equal(t, []byte{0x30, 0x38}, buf)
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in     float64
		want   int32
		wantOK bool
	}{
		{12345.9, 12345, true},
		{-7501.000000000001, -7501, true},
		{-0.5, 0, true},
		{1<<32 + 5, 5, true},
		{-(1<<32 + 1), -1, true},
		{1 << 31, math.MinInt32, true},
		{math.NaN(), 0, false},
		{math.Inf(1), 0, false},
		{math.Inf(-1), 0, false},
	}
	for _, tt := range tests {
		got, _, ok := Truncate(tt.in)
		assert.Equal(t, tt.wantOK, ok, "Truncate(%g)", tt.in)
		assert.Equal(t, tt.want, got, "Truncate(%g)", tt.in)
	}
}

func TestPolicies(t *testing.T) {
	tests := []struct {
		name    string
		field   Field
		value   float64
		policy  Policy
		want    []byte
		wantErr error
	}{
		{"wrap overflow", Centi2, 700, WrapSilently, []byte{0x11, 0x70}, nil},
		{"clamp overflow", Centi2, 700, ClampAndReport, []byte{0xff, 0xff}, ErrOverflow},
		{"clamp negative overflow", Centi2, -400, ClampAndReport, []byte{0x80, 0x00}, ErrOverflow},
		{"clamp micro4 overflow", Micro4, 5000, ClampAndReport, []byte{0xff, 0xff, 0xff, 0xff}, ErrOverflow},
		{"clamp negative", Centi2, -75.01, ClampAndReport, []byte{0xe2, 0xb3}, ErrSignAmbiguity},
		{"clamp in range", Centi2, 1.5, ClampAndReport, []byte{0x00, 0x96}, nil},
		{"clamp NaN", Centi2, math.NaN(), ClampAndReport, []byte{0x00, 0x00}, ErrOverflow},
		{"reject overflow", Centi3, 200000, Reject, []byte{0xaa, 0xaa, 0xaa}, ErrOverflow},
		{"reject negative", Micro4, -1, Reject, []byte{0xaa, 0xaa, 0xaa, 0xaa}, ErrSignAmbiguity},
		{"reject in range", Centi3, 1, Reject, []byte{0x00, 0x00, 0x64}, nil},
		{"wrap NaN", Centi2, math.NaN(), WrapSilently, []byte{0x00, 0x00}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := make([]byte, tt.field.Width)
			for i := range got {
				got[i] = 0xaa
			}
			err := tt.field.Encode(got, tt.value, tt.policy)
			if tt.wantErr == nil {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestErrorValues(t *testing.T) {
	buf := make([]byte, 2)
	err := Centi2.Encode(buf, -75.01, Reject)

	var signErr *SignError
	require.True(t, errors.As(err, &signErr))
	assert.Equal(t, int64(-7501), signErr.Raw)
	assert.Contains(t, err.Error(), "580.35")

	err = Centi2.Encode(buf, 700, Reject)
	var overflow *OverflowError
	require.True(t, errors.As(err, &overflow))
	assert.Equal(t, float64(70000), overflow.Raw)
	assert.False(t, errors.Is(err, ErrSignAmbiguity))
}

func TestEncodeInvalidField(t *testing.T) {
	buf := make([]byte, 4)
	for _, f := range []Field{{}, {Width: 5, Scale: 100}, {Width: 2, Scale: 0}, {Width: 2, Scale: -1}} {
		for _, policy := range []Policy{WrapSilently, ClampAndReport, Reject} {
			err := f.Encode(buf, 1, policy)
			require.Error(t, err, "%v %v", f, policy)
			assert.True(t, errors.Is(err, ErrInvalidField))
			assert.Equal(t, make([]byte, 4), buf)

			assert.True(t, errors.Is(f.EncodeFloat32(buf, 1, policy), ErrInvalidField))
		}
	}
}

func TestParsePolicy(t *testing.T) {
	for _, p := range []Policy{WrapSilently, ClampAndReport, Reject} {
		got, err := ParsePolicy(p.String())
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}

	got, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, WrapSilently, got)

	got, err = ParsePolicy(" Clamp ")
	require.NoError(t, err)
	assert.Equal(t, ClampAndReport, got)

	_, err = ParsePolicy("saturate")
	assert.Error(t, err)

	var flag Policy
	assert.Error(t, flag.UnmarshalText([]byte("nope")))
	require.NoError(t, flag.Set("reject"))
	assert.Equal(t, Reject, flag)
	assert.Equal(t, "policy", flag.Type())

	_, err = Policy(9).MarshalText()
	assert.Error(t, err)
}

func TestFieldBounds(t *testing.T) {
	assert.Equal(t, int64(65535), Centi2.Max())
	assert.Equal(t, int64(-32768), Centi2.Min())
	assert.Equal(t, int64(16777215), Centi3.Max())
	assert.Equal(t, int64(4294967295), Micro4.Max())
	assert.Equal(t, int64(math.MinInt32), Micro4.Min())
	assert.Equal(t, 0.01, Centi2.Resolution())
}

func TestRoundTripCenti2(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		v := rapid.Float64Range(0, 167.77).Draw(t, "v")
		checkTruncatedRoundTrip(t, Centi2, v)
	})
}

func TestRoundTripCenti3(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		v := rapid.Float64Range(0, 16777.17).Draw(t, "v")
		checkTruncatedRoundTrip(t, Centi3, v)
	})
}

func TestRoundTripMicro4(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		v := rapid.Float64Range(0, 2147.483646).Draw(t, "v")
		buf := make([]byte, Micro4.Width)
		if err := Micro4.Encode(buf, v, Reject); err != nil {
			t.Fatalf("encode %v: %v", v, err)
		}
		got := Micro4.Decode(buf)
		if math.Abs(got-v) > 1.000001e-6 {
			t.Fatalf("decode(encode(%v)) = %v", v, got)
		}
	})
}

func checkTruncatedRoundTrip(t *rapid.T, f Field, v float64) {
	buf := make([]byte, f.Width)
	if err := f.Encode(buf, v, Reject); err != nil {
		t.Fatalf("encode %v: %v", v, err)
	}
	want := math.Trunc(v*f.Scale) / f.Scale
	if got := f.Decode(buf); got != want {
		t.Fatalf("decode(encode(%v)) = %v, want %v", v, got, want)
	}
}

func TestPutUint(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		f := rapid.SampledFrom([]Field{Centi2, Centi3, Micro4}).Draw(t, "field")
		raw := rapid.Int32().Draw(t, "raw")
		buf := make([]byte, f.Width)
		f.Put(buf, raw)
		mask := uint32(f.Max())
		if got := f.Uint(buf); got != uint32(raw)&mask {
			t.Fatalf("Uint(Put(%d)) = %d", raw, got)
		}
	})
}
