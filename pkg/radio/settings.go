package radio

import (
	"fmt"
	"time"
)

// Settings is the RF configuration both ends must share. Simulation drivers
// only report it.
type Settings struct {
	Address      uint8         `yaml:"address"`
	PeerAddress  uint8         `yaml:"peer_address"`
	FrequencyMHz float64       `yaml:"frequency_mhz"`
	AFCMHz       float64       `yaml:"afc_mhz"`
	TxPowerDBm   int           `yaml:"tx_power_dbm"`
	ModemConfig  string        `yaml:"modem_config"`
	CRC          string        `yaml:"crc"`
	HeaderFlags  uint8         `yaml:"header_flags"`
	Bitrate      int           `yaml:"bitrate"`
	Retries      int           `yaml:"retries"`
	AckTimeout   time.Duration `yaml:"ack_timeout"`
}

// DefaultSettings is the flight configuration: 437.225 MHz, 2 kbps FSK with
// 5 kHz deviation, 20 dBm.
func DefaultSettings() Settings {
	return Settings{
		Address:      1,
		PeerAddress:  2,
		FrequencyMHz: 437.225,
		AFCMHz:       0.05,
		TxPowerDBm:   20,
		ModemConfig:  "FSK_Rb2Fd5",
		CRC:          "CCITT",
		HeaderFlags:  0x7E,
		Bitrate:      2000,
		Retries:      255,
		AckTimeout:   200 * time.Millisecond,
	}
}

func (s Settings) Validate() error {
	if s.Address == BroadcastAddress {
		return fmt.Errorf("radio address %#x is the broadcast address", s.Address)
	}
	if s.Address == s.PeerAddress {
		return fmt.Errorf("radio address and peer address are both %d", s.Address)
	}
	if s.Bitrate < 0 {
		return fmt.Errorf("bitrate must not be negative, got %d", s.Bitrate)
	}
	if s.Retries < 0 || s.Retries > 255 {
		return fmt.Errorf("retries must be in range 0 - 255, got %d", s.Retries)
	}
	if s.AckTimeout <= 0 {
		return fmt.Errorf("ack timeout must be positive")
	}
	return nil
}
