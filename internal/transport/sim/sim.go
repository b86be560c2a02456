// Package sim is an in-process transport backend that stands in for real
// wearables. Devices are announced on a timer, connect after a configurable
// delay (or fail to), and produce synthetic sinusoidal captures.
package sim

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goodtune/motioncoach/internal/config"
	"github.com/goodtune/motioncoach/internal/device"
	"github.com/rs/zerolog"
)

var (
	errNotConnected = errors.New("sim: device not connected")
	errCancelled    = errors.New("sim: connection cancelled")
)

// DeviceSpec describes one simulated wearable.
type DeviceSpec struct {
	Device      device.Device
	RepPeriod   time.Duration // zero yields a still capture
	Amplitude   float64
	FailConnect bool
}

// Config is the parsed simulator configuration.
type Config struct {
	ConnectDelay  time.Duration
	AnnounceDelay time.Duration
	SampleRate    int
	Devices       []DeviceSpec
}

// FromConfig converts the validated simulator section of the application
// configuration.
func FromConfig(cfg config.SimulatorConfig) (Config, error) {
	connectDelay, err := time.ParseDuration(cfg.ConnectDelay)
	if err != nil {
		return Config{}, fmt.Errorf("parse connect_delay: %w", err)
	}
	announceDelay, err := time.ParseDuration(cfg.AnnounceDelay)
	if err != nil {
		return Config{}, fmt.Errorf("parse announce_delay: %w", err)
	}

	out := Config{
		ConnectDelay:  connectDelay,
		AnnounceDelay: announceDelay,
		SampleRate:    cfg.SampleRate,
	}
	for _, d := range cfg.Devices {
		kind, err := device.ParseKind(d.Kind)
		if err != nil {
			return Config{}, fmt.Errorf("simulator device %s: %w", d.ID, err)
		}
		period, err := time.ParseDuration(d.RepPeriod)
		if err != nil {
			return Config{}, fmt.Errorf("simulator device %s: parse rep_period: %w", d.ID, err)
		}
		out.Devices = append(out.Devices, DeviceSpec{
			Device:      device.Device{ID: d.ID, Name: d.Name, Kind: kind},
			RepPeriod:   period,
			Amplitude:   d.Amplitude,
			FailConnect: d.FailConnect,
		})
	}
	return out, nil
}

type simDevice struct {
	spec      DeviceSpec
	announced bool
	connected bool
	capturing bool
	attempt   uint64
	startedAt time.Time
}

// Backend simulates a family of devices and implements device.Link for all
// of them. Discovery and link events reach the registry through its Inbox.
type Backend struct {
	cfg    Config
	inbox  *device.Inbox
	clock  device.Clock
	logger zerolog.Logger

	mu      sync.Mutex
	devices map[string]*simDevice
	order   []string
	timers  []*time.Timer
	stopped bool
}

// New creates a backend. Nothing is announced until Start.
func New(cfg Config, inbox *device.Inbox, clock device.Clock, logger zerolog.Logger) *Backend {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 50
	}
	if clock == nil {
		clock = device.RealClock{}
	}

	b := &Backend{
		cfg:     cfg,
		inbox:   inbox,
		clock:   clock,
		logger:  logger.With().Str("component", "sim").Logger(),
		devices: make(map[string]*simDevice, len(cfg.Devices)),
	}
	for _, spec := range cfg.Devices {
		b.devices[spec.Device.ID] = &simDevice{spec: spec}
		b.order = append(b.order, spec.Device.ID)
	}
	return b
}

// Start schedules the announcement of every configured device.
func (b *Backend) Start() {
	b.logger.Info().
		Int("devices", len(b.order)).
		Dur("announce_delay", b.cfg.AnnounceDelay).
		Msg("Starting simulator")

	for _, id := range b.order {
		id := id // per-iteration copy; go.mod targets go1.21 loop semantics
		b.schedule(b.cfg.AnnounceDelay, func() {
			if err := b.Announce(id); err != nil {
				b.logger.Warn().Err(err).Str("device", id).Msg("Announcement failed")
			}
		})
	}
}

// Stop cancels pending announcements and connection attempts.
func (b *Backend) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.stopped = true
	for _, t := range b.timers {
		t.Stop()
	}
	b.timers = nil
	b.logger.Info().Msg("Simulator stopped")
}

// Devices lists the configured device IDs and whether each is announced.
func (b *Backend) Devices() map[string]bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make(map[string]bool, len(b.devices))
	for id, d := range b.devices {
		out[id] = d.announced
	}
	return out
}

// Announce makes a configured device available. Announcing a device that
// is already available is a no-op.
func (b *Backend) Announce(id string) error {
	b.mu.Lock()
	d, ok := b.devices[id]
	if !ok {
		b.mu.Unlock()
		return fmt.Errorf("announce %s: %w", id, device.ErrUnknownDevice)
	}
	if d.announced {
		b.mu.Unlock()
		return nil
	}
	d.announced = true
	dev := d.spec.Device
	b.mu.Unlock()

	b.logger.Info().Str("device", id).Msg("Announcing device")
	b.inbox.Announce(&dev, b)
	return nil
}

// Withdraw makes an announced device unavailable, as if it went out of
// range.
func (b *Backend) Withdraw(id string) error {
	b.mu.Lock()
	d, ok := b.devices[id]
	if !ok || !d.announced {
		b.mu.Unlock()
		return fmt.Errorf("withdraw %s: %w", id, device.ErrUnknownDevice)
	}
	d.announced = false
	d.connected = false
	d.capturing = false
	d.attempt++
	b.mu.Unlock()

	b.logger.Info().Str("device", id).Msg("Withdrawing device")
	b.inbox.Withdraw(id)
	return nil
}

// DropLink severs an established link without withdrawing the device.
func (b *Backend) DropLink(id string) error {
	b.mu.Lock()
	d, ok := b.devices[id]
	if !ok || !d.connected {
		b.mu.Unlock()
		return fmt.Errorf("drop link %s: %w", id, errNotConnected)
	}
	d.connected = false
	d.capturing = false
	b.mu.Unlock()

	b.logger.Info().Str("device", id).Msg("Dropping link")
	b.inbox.LinkLost(id, errors.New("simulated link loss"))
	return nil
}

// Connect implements device.Link.
func (b *Backend) Connect(dev *device.Device, done func(err error)) {
	b.mu.Lock()
	d, ok := b.devices[dev.ID]
	if !ok {
		b.mu.Unlock()
		go done(fmt.Errorf("connect %s: %w", dev.ID, device.ErrUnknownDevice))
		return
	}
	d.attempt++
	attempt := d.attempt
	b.mu.Unlock()

	b.schedule(b.cfg.ConnectDelay, func() {
		done(b.finishConnect(dev.ID, attempt))
	})
}

func (b *Backend) finishConnect(id string, attempt uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	d := b.devices[id]
	if d.attempt != attempt {
		return errCancelled
	}
	if d.spec.FailConnect {
		return fmt.Errorf("%s did not respond", d.spec.Device.Name)
	}
	d.connected = true
	return nil
}

// Disconnect implements device.Link.
func (b *Backend) Disconnect(dev *device.Device) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if d, ok := b.devices[dev.ID]; ok {
		d.connected = false
		d.capturing = false
		d.attempt++
	}
}

// StartCapture implements device.Link.
func (b *Backend) StartCapture(dev *device.Device) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	d, ok := b.devices[dev.ID]
	if !ok {
		return device.ErrUnknownDevice
	}
	if !d.connected {
		return errNotConnected
	}
	d.capturing = true
	d.startedAt = b.clock.Now()
	return nil
}

// StopCapture implements device.Link.
func (b *Backend) StopCapture(dev *device.Device) []device.Sample {
	b.mu.Lock()
	defer b.mu.Unlock()

	d, ok := b.devices[dev.ID]
	if !ok || !d.capturing {
		return nil
	}
	d.capturing = false
	length := b.clock.Now().Sub(d.startedAt)
	return Synthesize(length, b.cfg.SampleRate, d.spec.RepPeriod, d.spec.Amplitude)
}

// schedule runs fn after delay on a timer goroutine unless the backend has
// been stopped.
func (b *Backend) schedule(delay time.Duration, fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.stopped {
		return
	}
	b.timers = append(b.timers, time.AfterFunc(delay, fn))
}

var _ device.Link = (*Backend)(nil)
