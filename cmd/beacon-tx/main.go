// beacon-tx plays the flight computer: it transmits beacons to the ground
// station over the simulated radio link and logs the commands it gets back.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/norasector/beacon/pkg/beacon"
	"github.com/norasector/beacon/pkg/codec/quant"
	"github.com/norasector/beacon/pkg/radio"
	"github.com/norasector/beacon/pkg/radio/driver/udp"
	"github.com/norasector/beacon/pkg/serial"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.InfoLevel)

	settings := radio.DefaultSettings()
	settings.Address, settings.PeerAddress = settings.PeerAddress, settings.Address

	listen := pflag.String("listen", ":4371", "UDP address to receive on")
	peer := pflag.String("peer", "127.0.0.1:4370", "UDP address of the ground station")
	interval := pflag.DurationP("interval", "i", 5*time.Second, "time between beacons")
	count := pflag.IntP("count", "n", 0, "beacons to send before exiting, 0 for no limit")
	device := pflag.String("serial", "", "read beacon records from this serial device instead of sending the test beacon")
	baud := pflag.Int("baud", 115200, "serial line speed")
	packetSize := pflag.Int("packet-size", serial.DefaultPacketSize, "serial packet size")
	debug := pflag.Bool("debug", false, "debug logging")
	policy := quant.WrapSilently
	pflag.Var(&policy, "policy", "out-of-range handling: wrap, clamp or reject")
	pflag.Uint8Var(&settings.Address, "address", settings.Address, "radio address")
	pflag.Uint8Var(&settings.PeerAddress, "peer-address", settings.PeerAddress, "ground station radio address")
	pflag.IntVar(&settings.Retries, "retries", settings.Retries, "retransmissions before giving up")
	pflag.IntVar(&settings.Bitrate, "bitrate", settings.Bitrate, "simulated air bitrate, 0 for unlimited")
	pflag.Parse()

	if *debug {
		log.Logger = log.Logger.Level(zerolog.DebugLevel)
	}

	driver, err := udp.New(*listen, *peer, settings)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open udp link")
	}
	mgr, err := radio.NewManager(driver, settings, radio.WithLogger(log.Logger))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to configure radio")
	}
	r := radio.New(mgr, radio.WithPolicy(policy))
	defer r.Close()

	eg, ctx := errgroup.WithContext(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	ctx, cancel := context.WithCancel(ctx)
	eg.Go(func() error {
		select {
		case <-sigChan:
		case <-ctx.Done():
		}
		cancel()
		return nil
	})

	beacons := make(chan beacon.Beacon)
	if *device != "" {
		port, err := serial.OpenPort(*device, *baud)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open serial port")
		}
		defer port.Close()
		link := serial.NewLink(port, serial.WithPacketSize(*packetSize), serial.WithLogger(log.Logger))
		eg.Go(func() error {
			defer close(beacons)
			return readSerial(ctx, link, beacons)
		})
	} else {
		eg.Go(func() error {
			defer close(beacons)
			return generate(ctx, *interval, beacons)
		})
	}

	eg.Go(func() error {
		defer cancel()
		return transmit(ctx, r, *interval, *count, beacons)
	})

	if err := eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("exited program")
	}
}

// generate emits the test beacon with a running clock.
func generate(ctx context.Context, interval time.Duration, out chan<- beacon.Beacon) error {
	start := time.Now()
	for {
		b := beacon.Test()
		elapsed := time.Since(start)
		b.GPSHour = uint8(elapsed / time.Hour % 24)
		b.GPSMinute = uint8(elapsed / time.Minute % 60)
		b.GPSSecond = uint8(elapsed / time.Second % 60)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case out <- b:
		}
	}
}

func readSerial(ctx context.Context, link *serial.Link, out chan<- beacon.Beacon) error {
	packets := make(chan serial.Packet)
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		defer close(packets)
		return link.Start(ctx, packets)
	})
	eg.Go(func() error {
		for p := range packets {
			if p.Node == serial.MessageNode && p.Port == serial.MessagePort {
				log.Info().Str("text", serial.Text(p)).Msg("host message")
				continue
			}
			var b beacon.Beacon
			if err := b.UnmarshalBinary(p.Payload); err != nil {
				log.Warn().Err(err).Uint8("node", p.Node).Uint8("port", p.Port).Msg("bad beacon record")
				continue
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case out <- b:
			}
		}
		return nil
	})
	return eg.Wait()
}

// transmit sends each beacon and listens for commands until the next one
// is due.
func transmit(ctx context.Context, r *radio.Radio, interval time.Duration, count int, beacons <-chan beacon.Beacon) error {
	sent := 0
	for b := range beacons {
		err := r.SendBeacon(ctx, b)
		switch {
		case err == nil:
			sent++
			log.Info().Int("sent", sent).Msg("beacon sent")
		case errors.Is(err, quant.ErrOverflow), errors.Is(err, quant.ErrSignAmbiguity):
			log.Warn().Err(err).Msg("beacon out of range")
		case errors.Is(err, radio.ErrNoAck):
			log.Warn().Err(err).Msg("beacon not acknowledged")
		default:
			return err
		}

		if count > 0 && sent >= count {
			return nil
		}
		if err := listen(ctx, r, interval); err != nil {
			return err
		}
	}
	return nil
}

func listen(ctx context.Context, r *radio.Radio, window time.Duration) error {
	listenCtx, cancel := context.WithTimeout(ctx, window)
	defer cancel()
	for {
		msg, err := r.ReadMessage(listenCtx)
		switch {
		case err == nil:
		case ctx.Err() != nil:
			return ctx.Err()
		case errors.Is(err, context.DeadlineExceeded):
			return nil
		default:
			return err
		}

		if msg.Kind == radio.KindCommand {
			log.Info().Uint8("from", msg.From).Uint8("command", uint8(msg.Command)).Msg("command received")
		} else {
			log.Debug().Uint8("from", msg.From).Str("kind", msg.Kind.String()).Msg("ignoring message")
		}
	}
}
