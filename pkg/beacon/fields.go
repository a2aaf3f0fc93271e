package beacon

import "github.com/norasector/beacon/pkg/codec/frame"

// FieldNames maps each frame slot to the metric name of its beacon field.
var FieldNames = map[string]string{
	"D0":   "temp1",
	"D1":   "pressure",
	"D2":   "altitude",
	"D3":   "gps_lat",
	"D4":   "gps_lng",
	"D5":   "gps_alt",
	"D6":   "gps_course",
	"D7":   "gps_speed",
	"F0":   "temp2",
	"F1":   "humidity",
	"F2":   "temp3",
	"F3":   "imu1",
	"F4":   "imu2",
	"F5":   "imu3",
	"U8_0": "gps_hour",
	"U8_1": "gps_minute",
	"U8_2": "gps_second",
	"U8_3": "gps_validity",
	"U32":  "gps_satellites",
}

// Field is one named value of a beacon.
type Field struct {
	Name  string
	Slot  frame.Slot
	Value float64
}

// Fields lists the values of m in frame slot order under their beacon names.
func Fields(m frame.Measurements) []Field {
	out := make([]Field, 0, len(frame.Layout))
	for _, slot := range frame.Layout {
		out = append(out, Field{
			Name:  FieldNames[slot.Name],
			Slot:  slot,
			Value: m.Value(slot),
		})
	}
	return out
}

// SlotForField is the reverse lookup of FieldNames.
func SlotForField(name string) (frame.Slot, bool) {
	for slotName, fieldName := range FieldNames {
		if fieldName == name {
			return frame.SlotByName(slotName)
		}
	}
	return frame.Slot{}, false
}
