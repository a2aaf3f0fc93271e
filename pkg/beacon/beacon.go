// Package beacon gives the positional frame slots their meaning.
package beacon

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/norasector/beacon/pkg/codec/frame"
)

// RecordSize is the size of the packed little-endian record the flight
// computer exchanges with its host over the serial link.
const RecordSize = 64

// Beacon is the flight computer's beacon record. Field order matches the
// native record.
type Beacon struct {
	Temp1     float32 `json:"temp1"`
	Pressure  float32 `json:"pressure"`
	Altitude  float32 `json:"altitude"`
	Temp2     float32 `json:"temp2"`
	Humidity  float32 `json:"humidity"`
	Temp3     float32 `json:"temp3"`
	IMU1      float32 `json:"imu1"`
	IMU2      float32 `json:"imu2"`
	IMU3      float32 `json:"imu3"`
	GPSLat    float32 `json:"gps_lat"`
	GPSLng    float32 `json:"gps_lng"`
	GPSAlt    float32 `json:"gps_alt"`
	GPSCourse float32 `json:"gps_course"`
	GPSSpeed  float32 `json:"gps_speed"`

	GPSHour     uint8 `json:"gps_hour"`
	GPSMinute   uint8 `json:"gps_minute"`
	GPSSecond   uint8 `json:"gps_second"`
	GPSValidity uint8 `json:"gps_validity"`

	GPSSatellites uint32 `json:"gps_satellites"`
}

// Test is the self-test beacon the flight computer sends when no sensors are
// attached.
func Test() Beacon {
	return Beacon{
		Temp1:         123.45,
		Pressure:      956.76,
		Altitude:      -75.01,
		Temp2:         123.45,
		Humidity:      956.76,
		Temp3:         956.76,
		IMU1:          -75.01,
		IMU2:          -75.01,
		IMU3:          -75.01,
		GPSLat:        98.3,
		GPSLng:        21.7,
		GPSAlt:        87.80,
		GPSCourse:     101.71,
		GPSSpeed:      43.87,
		GPSHour:       241,
		GPSMinute:     32,
		GPSSecond:     85,
		GPSValidity:   255,
		GPSSatellites: 4294967295,
	}
}

// FromMeasurements maps frame slots to beacon fields. Doubles are narrowed
// to single precision.
func FromMeasurements(m frame.Measurements) Beacon {
	return Beacon{
		Temp1:         float32(m.Doubles[0]),
		Pressure:      float32(m.Doubles[1]),
		Altitude:      float32(m.Doubles[2]),
		GPSLat:        float32(m.Doubles[3]),
		GPSLng:        float32(m.Doubles[4]),
		GPSAlt:        float32(m.Doubles[5]),
		GPSCourse:     float32(m.Doubles[6]),
		GPSSpeed:      float32(m.Doubles[7]),
		Temp2:         m.Floats[0],
		Humidity:      m.Floats[1],
		Temp3:         m.Floats[2],
		IMU1:          m.Floats[3],
		IMU2:          m.Floats[4],
		IMU3:          m.Floats[5],
		GPSHour:       m.Bytes[0],
		GPSMinute:     m.Bytes[1],
		GPSSecond:     m.Bytes[2],
		GPSValidity:   m.Bytes[3],
		GPSSatellites: m.Counter,
	}
}

// Measurements is the inverse of FromMeasurements. The record holds only
// single precision values, so double slots are quantized in single precision.
func (b Beacon) Measurements() frame.Measurements {
	return frame.Measurements{
		Doubles: [frame.NumDoubles]float64{
			float64(b.Temp1), float64(b.Pressure), float64(b.Altitude),
			float64(b.GPSLat), float64(b.GPSLng), float64(b.GPSAlt),
			float64(b.GPSCourse), float64(b.GPSSpeed),
		},
		Floats:  [frame.NumFloats]float32{b.Temp2, b.Humidity, b.Temp3, b.IMU1, b.IMU2, b.IMU3},
		Bytes:   [frame.NumBytes]uint8{b.GPSHour, b.GPSMinute, b.GPSSecond, b.GPSValidity},
		Counter: b.GPSSatellites,

		SingleDoubles: true,
	}
}

func (b Beacon) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(RecordSize)
	if err := binary.Write(&buf, binary.LittleEndian, b); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (b *Beacon) UnmarshalBinary(data []byte) error {
	if len(data) < RecordSize {
		return fmt.Errorf("beacon record is %d bytes, want %d", len(data), RecordSize)
	}
	return binary.Read(bytes.NewReader(data[:RecordSize]), binary.LittleEndian, b)
}
