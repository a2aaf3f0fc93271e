// framedump decodes telemetry frames and radio captures and prints the
// beacons they carry. With --test it prints the frame of the test beacon.
package main

import (
	"bufio"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/norasector/beacon/pkg/beacon"
	"github.com/norasector/beacon/pkg/codec/frame"
	"github.com/norasector/beacon/pkg/codec/quant"
	"github.com/norasector/beacon/pkg/radio"
	"github.com/norasector/beacon/pkg/station"
	"github.com/norasector/beacon/pkg/station/output"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.InfoLevel)

	capture := pflag.BoolP("capture", "c", false, "input lines are radio datagrams with a header")
	test := pflag.Bool("test", false, "print the frame of the test beacon and exit")
	policy := quant.WrapSilently
	pflag.Var(&policy, "policy", "out-of-range handling for --test: wrap, clamp or reject")
	pflag.Parse()

	if *test {
		f, err := frame.EncodePolicy(beacon.Test().Measurements(), policy)
		if err != nil {
			for _, line := range strings.Split(err.Error(), "\n") {
				log.Warn().Str("policy", policy.String()).Msg(line)
			}
		}
		fmt.Println(f.String())
		return
	}

	var in io.Reader = os.Stdin
	if pflag.NArg() > 0 {
		in = strings.NewReader(strings.Join(pflag.Args(), "\n"))
	}

	display := output.NewDisplayOutput(log.Logger)
	if err := dump(in, *capture, display); err != nil {
		log.Fatal().Err(err).Msg("exited program")
	}
}

func dump(in io.Reader, capture bool, display *output.DisplayOutput) error {
	scanner := bufio.NewScanner(in)
	line := 0
	var seq uint64
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		data, err := hex.DecodeString(text)
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}

		var msg radio.Message
		if capture {
			d, err := radio.DecodeDatagram(data)
			if err != nil {
				log.Warn().Int("line", line).Err(err).Msg("skipping datagram")
				continue
			}
			msg = radio.Classify(d, time.Now())
		} else {
			f, err := frame.Parse(data)
			if errors.Is(err, frame.ErrFrameLength) {
				log.Warn().Int("line", line).Err(err).Msg("skipping frame")
				continue
			}
			msg = radio.Message{Kind: radio.KindFrame, Frame: f, Received: time.Now()}
		}

		r, ok := station.NewReading(msg)
		if !ok {
			log.Info().Int("line", line).Str("kind", msg.Kind.String()).Int("bytes", len(msg.Payload)).Msg("no beacon")
			continue
		}
		seq++
		r.Sequence = seq
		display.Display(r)
	}
	return scanner.Err()
}
