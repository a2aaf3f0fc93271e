package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/influxdata/influxdb-client-go/api"
	"github.com/norasector/beacon/pkg/radio"
	"github.com/norasector/beacon/pkg/radio/driver/replay"
	"github.com/norasector/beacon/pkg/radio/driver/udp"
	"github.com/norasector/beacon/pkg/serial"
	"github.com/norasector/beacon/pkg/station"
	"github.com/norasector/beacon/pkg/station/config"
	"github.com/norasector/beacon/pkg/station/output"
	"github.com/norasector/beacon/pkg/station/viz"
	"github.com/norasector/beacon/pkg/util"
	"golang.org/x/sync/errgroup"
)

const statsInterval = 10 * time.Second

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.InfoLevel)

	configFile := pflag.StringP("config", "c", "groundstation.yaml", "YAML config file")
	logLevel := pflag.String("log-level", "", "log level, overrides the config file")
	pflag.Parse()

	opts, err := config.Load(*configFile)
	if err != nil {
		log.Fatal().Err(err).Str("config", *configFile).Msg("error loading config")
	}

	level := opts.LogLevel
	if *logLevel != "" {
		level = *logLevel
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid log level")
	}
	log.Logger = log.Logger.Level(lvl)

	var driver radio.Driver
	switch opts.Radio.Driver {
	case config.DriverFile:
		log.Info().Str("driver", "file").Str("capture", opts.Radio.CaptureFile).Msg("initializing radio...")
		driver, err = replay.Open(opts.Radio.CaptureFile, opts.Radio.ReplayDelay)
		if err != nil {
			log.Fatal().Str("driver", "file").Err(err).Msg("failed to open capture")
		}
	default:
		log.Info().Str("driver", "udp").Msg("initializing radio...")
		driver, err = udp.New(opts.Radio.Listen, opts.Radio.Peer, opts.Radio.Settings)
		if err != nil {
			log.Fatal().Str("driver", "udp").Err(err).Msg("failed to open udp link")
		}
	}

	if opts.RecordLocation != "" {
		f, err := os.Create(opts.RecordLocation)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create recording file")
		}
		defer f.Close()
		driver = replay.NewRecorder(driver, f)
	}

	mgr, err := radio.NewManager(driver, opts.Radio.Settings, radio.WithLogger(log.Logger))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to configure radio")
	}

	var writeAPI api.WriteAPI = &util.MockWriteAPI{}
	if opts.InfluxDB.Host != "" {
		client := influxdb2.NewClient(opts.InfluxDB.Host, opts.InfluxDB.Token)
		defer client.Close()
		writeAPI = client.WriteAPI(opts.InfluxDB.Organization, opts.InfluxDB.Bucket)
	}

	outputs := []station.Output{
		output.NewDisplayOutput(log.Logger),
	}
	if opts.InfluxDB.Host != "" {
		outputs = append(outputs, output.NewInfluxOutput(writeAPI))
	}
	if len(opts.OutputDestinations) > 0 {
		outputs = append(outputs, output.NewStreamOutput(opts.OutputDestinations, writeAPI))
	}
	if opts.Serial.Enabled {
		port, err := serial.OpenPort(opts.Serial.Device, opts.Serial.Baud)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open serial port")
		}
		defer port.Close()
		link := serial.NewLink(port,
			serial.WithAddress(opts.Serial.Node, opts.Serial.Port),
			serial.WithPacketSize(opts.Serial.PacketSize),
			serial.WithLogger(log.Logger))
		outputs = append(outputs, output.NewSerialOutput(link))
	}
	if opts.HTTP.Port != 0 {
		outputs = append(outputs, viz.NewServer(opts.HTTP.Port, opts.HTTP.History, opts.HTTP.UpdateInterval))
	}

	st, err := station.NewStation(radio.New(mgr, radio.WithPolicy(opts.Codec.Policy)),
		station.Options{
			Outputs:       outputs,
			PollInterval:  opts.Radio.PollInterval,
			StatsInterval: statsInterval,
		},
		station.WithInfluxDB(writeAPI),
		station.WithLogger(log.Logger))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create station")
	}
	defer st.Close()

	ctx, cancel := context.WithCancel(context.Background())
	eg, ctx := errgroup.WithContext(ctx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	eg.Go(func() error {
		select {
		case <-sigChan:
		case <-ctx.Done():
		}
		cancel()
		return nil
	})

	eg.Go(func() error {
		err := st.Start(ctx)
		cancel()
		return err
	})

	if err := eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("exited program")
	}
}
