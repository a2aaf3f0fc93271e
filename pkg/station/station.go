// Package station runs the ground station: it receives beacons over the
// radio, decodes them into readings and hands them to outputs.
package station

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/influxdata/influxdb-client-go/api"
	"github.com/norasector/beacon/pkg/radio"
	"github.com/norasector/beacon/pkg/util"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const commandQueueLength = 8

type Options struct {
	Outputs []Output
	// PollInterval bounds each receive so queued commands get airtime.
	PollInterval time.Duration
	// StatsInterval is how often link counters are written as metrics. Zero
	// disables them.
	StatsInterval time.Duration
}

type Station struct {
	radio    *radio.Radio
	opts     Options
	writeAPI api.WriteAPI
	logger   zerolog.Logger
	commands chan radio.Command

	mu     sync.RWMutex
	seq    uint64
	latest *Reading
}

type StationOption func(s *Station) error

func WithInfluxDB(writeAPI api.WriteAPI) StationOption {
	return func(s *Station) error {
		s.writeAPI = writeAPI
		return nil
	}
}

func WithLogger(logger zerolog.Logger) StationOption {
	return func(s *Station) error {
		s.logger = logger
		return nil
	}
}

func NewStation(r *radio.Radio, options Options, opts ...StationOption) (*Station, error) {
	s := &Station{
		radio:    r,
		opts:     options,
		writeAPI: &util.MockWriteAPI{}, // overwritten with option
		logger:   log.Logger,
		commands: make(chan radio.Command, commandQueueLength),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	if s.opts.PollInterval <= 0 {
		return nil, fmt.Errorf("must specify a positive poll interval")
	}

	return s, nil
}

// Start runs the receive loop and every output until ctx is done. It
// returns nil when the radio reaches the end of a replayed capture.
func (s *Station) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	eg, ctx := errgroup.WithContext(ctx)

	for _, output := range s.opts.Outputs {
		thisOutput := output
		eg.Go(func() error {
			return thisOutput.Start(ctx)
		})
	}

	if s.opts.StatsInterval > 0 {
		eg.Go(func() error {
			return s.reportStats(ctx)
		})
	}

	ended := false
	eg.Go(func() error {
		err := s.receive(ctx)
		if errors.Is(err, io.EOF) {
			s.logger.Info().Msg("radio stream ended")
			ended = true
			cancel()
			return nil
		}
		return err
	})

	s.logger.Info().
		Int("outputs", len(s.opts.Outputs)).
		Dur("poll_interval", s.opts.PollInterval).
		Msg("station starting")

	err := eg.Wait()
	if ended && errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (s *Station) Close() error {
	s.writeAPI.Flush()
	return s.radio.Close()
}

// SendCommand queues cmd for transmission to the flight computer between
// receive polls.
func (s *Station) SendCommand(ctx context.Context, cmd radio.Command) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case s.commands <- cmd:
		return nil
	}
}

// Latest returns the most recent reading, if any.
func (s *Station) Latest() (*Reading, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest, s.latest != nil
}

func (s *Station) receive(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		select {
		case cmd := <-s.commands:
			if err := s.sendCommand(ctx, cmd); err != nil {
				return err
			}
		default:
		}

		pollCtx, cancel := context.WithTimeout(ctx, s.opts.PollInterval)
		msg, err := s.radio.ReadMessage(pollCtx)
		cancel()
		switch {
		case err == nil:
		case ctx.Err() != nil:
			return ctx.Err()
		case errors.Is(err, context.DeadlineExceeded):
			continue
		case errors.Is(err, io.EOF):
			return err
		default:
			return fmt.Errorf("error receiving from radio: %w", err)
		}

		s.handle(msg)
	}
}

func (s *Station) sendCommand(ctx context.Context, cmd radio.Command) error {
	err := s.radio.SendCommand(ctx, cmd)
	switch {
	case err == nil:
		s.logger.Info().Uint8("command", uint8(cmd)).Msg("command sent")
	case errors.Is(err, radio.ErrNoAck):
		s.logger.Warn().Uint8("command", uint8(cmd)).Err(err).Msg("command not acknowledged")
	case ctx.Err() != nil:
		return ctx.Err()
	default:
		return fmt.Errorf("error sending command: %w", err)
	}

	go s.writeAPI.WritePoint(influxdb2.NewPoint("beacon.command",
		map[string]string{
			"command": strconv.Itoa(int(cmd)),
		},
		map[string]interface{}{
			"acked": util.Count01(err == nil),
		}, time.Now()))
	return nil
}

func (s *Station) handle(msg radio.Message) {
	var reading *Reading
	var ok bool
	decodeTime := util.TimeOperationMicroseconds(func() {
		reading, ok = NewReading(msg)
	})

	tags := map[string]string{
		"from": strconv.Itoa(int(msg.From)),
		"kind": msg.Kind.String(),
	}

	if !ok {
		if msg.Kind == radio.KindCommand {
			s.logger.Info().Uint8("from", msg.From).Uint8("command", uint8(msg.Command)).Msg("command received")
		} else {
			s.logger.Warn().Uint8("from", msg.From).Int("bytes", len(msg.Payload)).Msg("unrecognized payload")
		}
		go s.writeAPI.WritePoint(influxdb2.NewPoint("beacon.ignored", tags,
			map[string]interface{}{
				"bytes": len(msg.Payload),
			}, msg.Received))
		return
	}

	s.mu.Lock()
	s.seq++
	reading.Sequence = s.seq
	s.latest = reading
	s.mu.Unlock()

	skippedOutputs := 0
	for _, output := range s.opts.Outputs {
		select {
		case output.Receive() <- reading:
			// We will not wait on blocked channels.
		default:
			skippedOutputs++
		}
	}

	go s.writeAPI.WritePoint(influxdb2.NewPoint("beacon.received", tags,
		map[string]interface{}{
			"sequence":        int64(reading.Sequence),
			"bytes":           len(msg.Payload),
			"decode_us":       decodeTime,
			"skipped_outputs": skippedOutputs,
		}, msg.Received))
}

func (s *Station) reportStats(ctx context.Context) error {
	tick := time.NewTicker(s.opts.StatsInterval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
			stats := s.radio.Manager().Stats()
			s.writeAPI.WritePoint(influxdb2.NewPoint("radio.link",
				nil,
				map[string]interface{}{
					"sent":            int64(stats.Sent),
					"retransmissions": int64(stats.Retransmissions),
					"acks_received":   int64(stats.AcksReceived),
					"acks_sent":       int64(stats.AcksSent),
					"received":        int64(stats.Received),
					"duplicates":      int64(stats.Duplicates),
					"dropped":         int64(stats.Dropped),
				}, time.Now()))
		}
	}
}
