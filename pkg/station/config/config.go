// Package config loads the ground station YAML configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/norasector/beacon/pkg/codec/quant"
	"github.com/norasector/beacon/pkg/radio"
	"gopkg.in/yaml.v2"
)

type Config struct {
	LogLevel string `yaml:"log_level"`
	Radio    Radio  `yaml:"radio"`
	Codec    struct {
		Policy quant.Policy `yaml:"policy"`
	} `yaml:"codec"`
	Serial             Serial              `yaml:"serial"`
	HTTP               HTTP                `yaml:"http"`
	InfluxDB           InfluxDB            `yaml:"influxdb"`
	OutputDestinations []OutputDestination `yaml:"output_destinations"`
	RecordLocation     string              `yaml:"record_location"`
}

type Radio struct {
	radio.Settings `yaml:",inline"`

	Driver       string        `yaml:"driver"`
	Listen       string        `yaml:"listen"`
	Peer         string        `yaml:"peer"`
	CaptureFile  string        `yaml:"capture_file"`
	ReplayDelay  time.Duration `yaml:"replay_delay"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

type Serial struct {
	Enabled    bool   `yaml:"enabled"`
	Device     string `yaml:"device"`
	Baud       int    `yaml:"baud"`
	Node       uint8  `yaml:"node"`
	Port       uint8  `yaml:"port"`
	PacketSize int    `yaml:"packet_size"`
}

type HTTP struct {
	Port           int           `yaml:"port"`
	History        int           `yaml:"history"`
	UpdateInterval time.Duration `yaml:"update_interval"`
}

type InfluxDB struct {
	Host         string `yaml:"host"`
	Token        string `yaml:"token"`
	Organization string `yaml:"organization"`
	Bucket       string `yaml:"bucket"`
}

type OutputDestination struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

const (
	DriverUDP  = "udp"
	DriverFile = "file"
)

// Default is the configuration used for anything a file leaves unset.
func Default() Config {
	var c Config
	c.LogLevel = "info"
	c.Radio = Radio{
		Settings:     radio.DefaultSettings(),
		Driver:       DriverUDP,
		Listen:       ":4370",
		Peer:         "127.0.0.1:4371",
		ReplayDelay:  time.Second,
		PollInterval: 100 * time.Millisecond,
	}
	c.Codec.Policy = quant.WrapSilently
	c.Serial = Serial{
		Device:     "/dev/ttyUSB0",
		Baud:       115200,
		Node:       1,
		Port:       1,
		PacketSize: 100,
	}
	c.HTTP = HTTP{
		History:        600,
		UpdateInterval: 2 * time.Second,
	}
	return c
}

// Parse unmarshals data over the defaults and validates the result.
func Parse(data []byte) (Config, error) {
	c := Default()
	if err := yaml.UnmarshalStrict(data, &c); err != nil {
		return Config{}, fmt.Errorf("error unmarshaling yaml: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("error reading config file: %w", err)
	}
	return Parse(data)
}

func (c Config) Validate() error {
	if err := c.Radio.Settings.Validate(); err != nil {
		return fmt.Errorf("radio: %w", err)
	}
	switch c.Radio.Driver {
	case DriverUDP:
		if c.Radio.Listen == "" || c.Radio.Peer == "" {
			return fmt.Errorf("radio: udp driver needs listen and peer addresses")
		}
	case DriverFile:
		if c.Radio.CaptureFile == "" {
			return fmt.Errorf("radio: file driver needs a capture_file")
		}
	default:
		return fmt.Errorf("radio: unknown driver %q", c.Radio.Driver)
	}
	if c.Radio.PollInterval <= 0 {
		return fmt.Errorf("radio: poll_interval must be positive")
	}
	if c.Serial.Enabled && c.Serial.Device == "" {
		return fmt.Errorf("serial: device is required when enabled")
	}
	if c.HTTP.Port != 0 && c.HTTP.History <= 0 {
		return fmt.Errorf("http: history must be positive")
	}
	for _, dest := range c.OutputDestinations {
		if dest.Host == "" || dest.Port <= 0 {
			return fmt.Errorf("output destination %s:%d is incomplete", dest.Host, dest.Port)
		}
	}
	return nil
}
