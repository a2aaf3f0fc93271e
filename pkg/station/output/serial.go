package output

import (
	"context"

	"github.com/norasector/beacon/pkg/beacon"
	"github.com/norasector/beacon/pkg/station"
	"github.com/rs/zerolog/log"
)

// BeaconSender is the part of serial.Link the forwarder needs.
type BeaconSender interface {
	SendBeacon(b beacon.Beacon) error
}

// SerialOutput forwards every reading to a host computer as a native
// beacon record packet.
type SerialOutput struct {
	link     BeaconSender
	recvChan chan *station.Reading
}

func NewSerialOutput(link BeaconSender) *SerialOutput {
	return &SerialOutput{
		link:     link,
		recvChan: make(chan *station.Reading, receiveChannels),
	}
}

func (s *SerialOutput) Receive() chan<- *station.Reading {
	return s.recvChan
}

func (s *SerialOutput) Start(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case r := <-s.recvChan:
			if err := s.link.SendBeacon(r.Beacon); err != nil {
				return err
			}
			log.Debug().Uint64("seq", r.Sequence).Msg("beacon forwarded to serial")
		}
	}
}
