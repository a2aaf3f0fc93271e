package frame

import "github.com/norasector/beacon/pkg/codec/quant"

// Layout: on air, big-endian, no tags or length.
//
//	D0(2) D1(3) D2(3) D3(4) D4(4) D5(2) D6(2) D7(2) | F0..F5(2 each) | U8[0..3](1 each) | U32(4)
//	0     2     5     8     12    16    18    20      22               34                 38..41
const (
	NumDoubles = 8
	NumFloats  = 6
	NumBytes   = 4

	Size = 42
)

type Kind uint8

const (
	KindDouble Kind = iota
	KindFloat
	KindByte
	KindCounter
)

func (k Kind) String() string {
	switch k {
	case KindDouble:
		return "double"
	case KindFloat:
		return "float"
	case KindByte:
		return "byte"
	case KindCounter:
		return "counter"
	default:
		return "unknown"
	}
}

// Slot is one positional field of the frame. Field is only meaningful for
// the quantized kinds.
type Slot struct {
	Name   string
	Kind   Kind
	Index  int
	Offset int
	Field  quant.Field
}

// Width is the number of frame bytes the slot occupies.
func (s Slot) Width() int {
	switch s.Kind {
	case KindByte:
		return 1
	case KindCounter:
		return 4
	default:
		return s.Field.Width
	}
}

// Layout is the wire contract shared with the flight firmware.
var Layout = [...]Slot{
	{Name: "D0", Kind: KindDouble, Index: 0, Offset: 0, Field: quant.Centi2},
	{Name: "D1", Kind: KindDouble, Index: 1, Offset: 2, Field: quant.Centi3},
	{Name: "D2", Kind: KindDouble, Index: 2, Offset: 5, Field: quant.Centi3},
	{Name: "D3", Kind: KindDouble, Index: 3, Offset: 8, Field: quant.Micro4},
	{Name: "D4", Kind: KindDouble, Index: 4, Offset: 12, Field: quant.Micro4},
	{Name: "D5", Kind: KindDouble, Index: 5, Offset: 16, Field: quant.Centi2},
	{Name: "D6", Kind: KindDouble, Index: 6, Offset: 18, Field: quant.Centi2},
	{Name: "D7", Kind: KindDouble, Index: 7, Offset: 20, Field: quant.Centi2},
	{Name: "F0", Kind: KindFloat, Index: 0, Offset: 22, Field: quant.Centi2},
	{Name: "F1", Kind: KindFloat, Index: 1, Offset: 24, Field: quant.Centi2},
	{Name: "F2", Kind: KindFloat, Index: 2, Offset: 26, Field: quant.Centi2},
	{Name: "F3", Kind: KindFloat, Index: 3, Offset: 28, Field: quant.Centi2},
	{Name: "F4", Kind: KindFloat, Index: 4, Offset: 30, Field: quant.Centi2},
	{Name: "F5", Kind: KindFloat, Index: 5, Offset: 32, Field: quant.Centi2},
	{Name: "U8_0", Kind: KindByte, Index: 0, Offset: 34},
	{Name: "U8_1", Kind: KindByte, Index: 1, Offset: 35},
	{Name: "U8_2", Kind: KindByte, Index: 2, Offset: 36},
	{Name: "U8_3", Kind: KindByte, Index: 3, Offset: 37},
	{Name: "U32", Kind: KindCounter, Index: 0, Offset: 38},
}

// SlotByName finds a slot in Layout.
func SlotByName(name string) (Slot, bool) {
	for _, s := range Layout {
		if s.Name == name {
			return s, true
		}
	}
	return Slot{}, false
}
