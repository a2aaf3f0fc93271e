package output

import (
	"context"
	"fmt"

	"github.com/norasector/beacon/pkg/station"
	"github.com/rs/zerolog"
)

const receiveChannels = 8

// DisplayOutput writes one log event per reading, the way the flight
// computer prints its beacon on the console.
type DisplayOutput struct {
	logger   zerolog.Logger
	recvChan chan *station.Reading
}

func NewDisplayOutput(logger zerolog.Logger) *DisplayOutput {
	return &DisplayOutput{
		logger:   logger,
		recvChan: make(chan *station.Reading, receiveChannels),
	}
}

func (d *DisplayOutput) Receive() chan<- *station.Reading {
	return d.recvChan
}

func (d *DisplayOutput) Start(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case r := <-d.recvChan:
			d.Display(r)
		}
	}
}

// Display logs r immediately.
func (d *DisplayOutput) Display(r *station.Reading) {
	b := r.Beacon
	d.logger.Info().
		Uint64("seq", r.Sequence).
		Uint8("from", r.From).
		Str("kind", r.Kind.String()).
		Float32("temp1", b.Temp1).
		Float32("pressure", b.Pressure).
		Float32("altitude", b.Altitude).
		Float32("temp2", b.Temp2).
		Float32("humidity", b.Humidity).
		Float32("temp3", b.Temp3).
		Floats32("imu", []float32{b.IMU1, b.IMU2, b.IMU3}).
		Str("gps_lat", fmt.Sprintf("%.6f", b.GPSLat)).
		Str("gps_lng", fmt.Sprintf("%.6f", b.GPSLng)).
		Float32("gps_alt", b.GPSAlt).
		Float32("gps_course", b.GPSCourse).
		Float32("gps_speed", b.GPSSpeed).
		Str("gps_time", fmt.Sprintf("%02d:%02d:%02d", b.GPSHour, b.GPSMinute, b.GPSSecond)).
		Str("gps_validity", fmt.Sprintf("%08b", b.GPSValidity)).
		Uint32("gps_satellites", b.GPSSatellites).
		Msg("beacon")
}
