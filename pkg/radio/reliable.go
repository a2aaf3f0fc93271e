package radio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/juju/ratelimit"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var ackPayload = []byte{'!'}

// Stats counts link events since the manager was created.
type Stats struct {
	Sent            uint64
	Retransmissions uint64
	AcksReceived    uint64
	AcksSent        uint64
	Received        uint64
	Duplicates      uint64
	Dropped         uint64
}

// Manager provides addressed, acknowledged datagrams on top of a Driver.
// Send and receive calls are serialized; callers that need to do both
// should receive with a short deadline and send between polls.
type Manager struct {
	driver   Driver
	settings Settings
	bucket   *ratelimit.Bucket
	sleep    func(ctx context.Context, d time.Duration) error
	logger   zerolog.Logger

	mu       sync.Mutex
	seq      uint8
	pending  []Datagram
	lastID   map[uint8]uint8
	stats    Stats
	clock    ratelimit.Clock
	hasClock bool
}

type ManagerOption func(m *Manager)

func WithLogger(logger zerolog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithClock replaces the wall clock used for airtime accounting.
func WithClock(clock ratelimit.Clock) ManagerOption {
	return func(m *Manager) {
		m.clock = clock
		m.hasClock = true
		m.sleep = func(ctx context.Context, d time.Duration) error {
			clock.Sleep(d)
			return ctx.Err()
		}
	}
}

func NewManager(driver Driver, settings Settings, opts ...ManagerOption) (*Manager, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	m := &Manager{
		driver:   driver,
		settings: settings,
		sleep:    sleepContext,
		logger:   log.Logger,
		lastID:   make(map[uint8]uint8),
	}
	for _, opt := range opts {
		opt(m)
	}

	if settings.Bitrate > 0 {
		bytesPerSecond := float64(settings.Bitrate) / 8
		if m.hasClock {
			m.bucket = ratelimit.NewBucketWithRateAndClock(bytesPerSecond, MaxMessageSize, m.clock)
		} else {
			m.bucket = ratelimit.NewBucketWithRate(bytesPerSecond, MaxMessageSize)
		}
	}

	m.logger.Info().
		Uint8("address", settings.Address).
		Uint8("peer", settings.PeerAddress).
		Float64("frequency_mhz", settings.FrequencyMHz).
		Str("modem", settings.ModemConfig).
		Int("tx_power_dbm", settings.TxPowerDBm).
		Int("retries", settings.Retries).
		Msg("radio configured")

	return m, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (m *Manager) Settings() Settings { return m.settings }

func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

func (m *Manager) Close() error { return m.driver.Close() }

// transmit waits for enough airtime budget and hands raw to the driver.
func (m *Manager) transmit(ctx context.Context, raw []byte) error {
	if m.bucket != nil {
		if wait := m.bucket.Take(int64(len(raw))); wait > 0 {
			if err := m.sleep(ctx, wait); err != nil {
				return err
			}
		}
	}
	return m.driver.Send(ctx, raw)
}

// SendTo sends payload without waiting for an acknowledgement.
func (m *Manager) SendTo(ctx context.Context, to uint8, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	raw, err := EncodeDatagram(m.dataDatagram(to, m.seq, payload))
	if err != nil {
		return err
	}
	if err := m.transmit(ctx, raw); err != nil {
		return err
	}
	m.stats.Sent++
	return nil
}

// SendToWait sends payload to a node and retransmits until it is
// acknowledged or the retry budget is spent. Broadcasts are sent once.
func (m *Manager) SendToWait(ctx context.Context, to uint8, payload []byte) error {
	if to == BroadcastAddress {
		return m.SendTo(ctx, to, payload)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	d := m.dataDatagram(to, m.seq, payload)

	for attempt := 0; attempt <= m.settings.Retries; attempt++ {
		if attempt > 0 {
			d.Flags |= FlagRetry
			m.stats.Retransmissions++
		}
		raw, err := EncodeDatagram(d)
		if err != nil {
			return err
		}
		if err := m.transmit(ctx, raw); err != nil {
			return err
		}
		m.stats.Sent++

		acked, err := m.waitAck(ctx, to, d.ID)
		if err != nil {
			return err
		}
		if acked {
			return nil
		}
		m.logger.Debug().Uint8("to", to).Uint8("id", d.ID).Int("attempt", attempt).Msg("ack timeout")
	}

	return fmt.Errorf("%w %d after %d attempts", ErrNoAck, to, m.settings.Retries+1)
}

func (m *Manager) dataDatagram(to, id uint8, payload []byte) Datagram {
	return Datagram{
		To:      to,
		From:    m.settings.Address,
		ID:      id,
		Flags:   m.settings.HeaderFlags &^ (FlagAck | FlagRetry),
		Payload: payload,
	}
}

func (m *Manager) waitAck(ctx context.Context, to, id uint8) (bool, error) {
	waitCtx, cancel := context.WithTimeout(ctx, m.settings.AckTimeout)
	defer cancel()

	for {
		d, err := m.next(waitCtx)
		switch {
		case err == nil:
		case ctx.Err() != nil:
			return false, ctx.Err()
		case waitCtx.Err() != nil, errors.Is(err, ErrTimeout):
			return false, nil
		default:
			return false, err
		}

		if d.IsAck() {
			if d.From == to && d.ID == id {
				m.stats.AcksReceived++
				return true, nil
			}
			continue
		}

		// Data arriving while we wait is acknowledged now and delivered by
		// the next RecvFromAck.
		deliver, err := m.accept(ctx, d)
		if err != nil {
			return false, err
		}
		if deliver {
			m.pending = append(m.pending, d)
		}
	}
}

// RecvFromAck returns the next datagram addressed to this node,
// acknowledging it to the sender. Retransmissions of the last datagram
// from a node are acknowledged again but not returned.
func (m *Manager) RecvFromAck(ctx context.Context) (Datagram, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.pending) > 0 {
		d := m.pending[0]
		m.pending = m.pending[1:]
		m.stats.Received++
		return d, nil
	}

	for {
		d, err := m.next(ctx)
		if err != nil {
			return Datagram{}, err
		}
		if d.IsAck() {
			continue
		}
		deliver, err := m.accept(ctx, d)
		if err != nil {
			return Datagram{}, err
		}
		if deliver {
			m.stats.Received++
			return d, nil
		}
	}
}

// next returns the next well-formed datagram for this node.
func (m *Manager) next(ctx context.Context) (Datagram, error) {
	for {
		raw, err := m.driver.Receive(ctx)
		if err != nil {
			return Datagram{}, err
		}
		d, err := DecodeDatagram(raw)
		if err != nil {
			m.stats.Dropped++
			continue
		}
		if d.From == m.settings.Address {
			continue
		}
		if d.To != m.settings.Address && d.To != BroadcastAddress {
			continue
		}
		return d, nil
	}
}

func (m *Manager) accept(ctx context.Context, d Datagram) (bool, error) {
	if d.To != BroadcastAddress {
		ack, err := EncodeDatagram(Datagram{
			To:      d.From,
			From:    m.settings.Address,
			ID:      d.ID,
			Flags:   FlagAck,
			Payload: ackPayload,
		})
		if err != nil {
			return false, err
		}
		if err := m.transmit(ctx, ack); err != nil {
			return false, err
		}
		m.stats.AcksSent++
	}

	last, seen := m.lastID[d.From]
	if seen && last == d.ID && d.Flags&FlagRetry != 0 {
		m.stats.Duplicates++
		m.logger.Debug().Uint8("from", d.From).Uint8("id", d.ID).Msg("duplicate datagram")
		return false, nil
	}
	m.lastID[d.From] = d.ID
	return true, nil
}
