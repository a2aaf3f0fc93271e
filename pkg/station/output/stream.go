package output

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"strconv"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/influxdata/influxdb-client-go/api"
	"github.com/norasector/beacon/pkg/station"
	"github.com/norasector/beacon/pkg/station/config"
	"github.com/norasector/beacon/pkg/util"
	"github.com/rs/zerolog/log"
)

// StreamOutput sends each reading to every destination as one UDP packet:
// a little-endian uint16 length followed by the protobuf encoded reading.
type StreamOutput struct {
	dests    []config.OutputDestination
	recvChan chan *station.Reading
	metrics  api.WriteAPI
}

func NewStreamOutput(dests []config.OutputDestination, metrics api.WriteAPI) *StreamOutput {
	return &StreamOutput{
		dests:    dests,
		recvChan: make(chan *station.Reading, receiveChannels),
		metrics:  metrics,
	}
}

func (s *StreamOutput) Receive() chan<- *station.Reading {
	return s.recvChan
}

// EncodePacket frames an encoded reading for the stream.
func EncodePacket(encoded []byte) ([]byte, error) {
	if len(encoded) > 0xFFFF {
		return nil, fmt.Errorf("encoded reading is %d bytes", len(encoded))
	}
	var msgBuf bytes.Buffer
	if err := binary.Write(&msgBuf, binary.LittleEndian, uint16(len(encoded))); err != nil {
		return nil, err
	}
	msgBuf.Write(encoded)
	return msgBuf.Bytes(), nil
}

// DecodePacket is the inverse of EncodePacket.
func DecodePacket(packet []byte) (WireReading, error) {
	if len(packet) < 2 {
		return WireReading{}, fmt.Errorf("%w: packet is %d bytes", ErrMalformedReading, len(packet))
	}
	size := int(binary.LittleEndian.Uint16(packet))
	if len(packet)-2 < size {
		return WireReading{}, fmt.Errorf("%w: header says %d bytes, have %d", ErrMalformedReading, size, len(packet)-2)
	}
	return UnmarshalReading(packet[2 : 2+size])
}

func (s *StreamOutput) Start(ctx context.Context) error {
	destAddrs := make([]*net.UDPAddr, 0, len(s.dests))
	for _, dest := range s.dests {
		ips, err := net.LookupIP(dest.Host)
		if err != nil {
			return err
		}
		if len(ips) == 0 {
			return fmt.Errorf("no IPs returned for %s", dest.Host)
		}

		destAddr := &net.UDPAddr{IP: ips[0], Port: dest.Port}
		destAddrs = append(destAddrs, destAddr)
		log.Info().IPAddr("dest_ip", destAddr.IP).Int("port", dest.Port).Msg("stream output starting")
	}

	conn, err := net.ListenUDP("udp", nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case r := <-s.recvChan:
			encoded, err := MarshalReading(r)
			if err != nil {
				log.Warn().Err(err).Msg("error marshaling protobuf")
				continue
			}
			packet, err := EncodePacket(encoded)
			if err != nil {
				log.Warn().Err(err).Msg("error encoding reading")
				continue
			}

			success := true
			var bytesWritten int
			for _, destAddr := range destAddrs {
				bytesWritten, err = conn.WriteToUDP(packet, destAddr)
				if err != nil {
					log.Error().Err(err).Msg("error writing")
					success = false
				}
			}

			go s.metrics.WritePoint(influxdb2.NewPoint("stream.sent_reading",
				map[string]string{
					"from": strconv.Itoa(int(r.From)),
				},
				map[string]interface{}{
					"bytes_written":  bytesWritten,
					"encoded_length": len(packet),
					"sent":           util.Count01(success),
					"dropped":        util.Count01(!success),
				}, time.Now()))
		}
	}
}
