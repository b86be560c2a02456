package device

import (
	"fmt"

	"github.com/goodtune/motioncoach/internal/eventloop"
	"github.com/goodtune/motioncoach/internal/metrics"
	"github.com/rs/zerolog"
)

// AvailabilityEvent reports a device joining or leaving the available set.
// Index is the device's position in the registry order; on removal it is
// the position the device held before it was removed.
type AvailabilityEvent struct {
	Device    *Device
	Available bool
	Index     int
}

// Listener receives registry notifications on the event context, in
// subscription order.
type Listener interface {
	AvailabilityChanged(ev AvailabilityEvent)
	SessionListener
}

// Settler is an optional Listener extension. AvailabilitySettled runs once
// every subscriber has received AvailabilityChanged for the same event.
type Settler interface {
	AvailabilitySettled(ev AvailabilityEvent)
}

type entry struct {
	device  *Device
	session *Session
}

// Registry owns the ordered set of available devices and their sessions.
// Transport backends feed it through an Inbox; all other methods must be
// called on the event context.
type Registry struct {
	dispatch eventloop.Dispatcher
	clock    Clock
	base     zerolog.Logger
	logger   zerolog.Logger

	entries       []entry
	listeners     []Listener
	lastConnected string
}

// NewRegistry creates an empty registry.
func NewRegistry(dispatch eventloop.Dispatcher, clock Clock, logger zerolog.Logger) *Registry {
	if clock == nil {
		clock = RealClock{}
	}
	return &Registry{
		dispatch: dispatch,
		clock:    clock,
		base:     logger,
		logger:   logger.With().Str("component", "registry").Logger(),
	}
}

// Subscribe adds l to the end of the notification order.
func (r *Registry) Subscribe(l Listener) {
	r.listeners = append(r.listeners, l)
}

// Unsubscribe removes l. It is safe to call from inside a notification.
func (r *Registry) Unsubscribe(l Listener) {
	kept := make([]Listener, 0, len(r.listeners))
	for _, existing := range r.listeners {
		if existing != l {
			kept = append(kept, existing)
		}
	}
	r.listeners = kept
}

// Add registers dev with the link that drives it and notifies subscribers.
func (r *Registry) Add(dev *Device, link Link) error {
	if r.indexOf(dev.ID) >= 0 {
		return fmt.Errorf("add %s: %w", dev.ID, ErrDuplicateDevice)
	}

	session := NewSession(dev, link, r.dispatch, r.clock, r.base)
	session.AddListener(r)
	r.entries = append(r.entries, entry{device: dev, session: session})
	metrics.DevicesAvailable.Set(float64(len(r.entries)))

	r.logger.Info().
		Str("device_id", dev.ID).
		Str("name", dev.Name).
		Str("kind", string(dev.Kind)).
		Msg("Device available")

	r.notifyAvailability(AvailabilityEvent{Device: dev, Available: true, Index: len(r.entries) - 1})
	return nil
}

// Remove unregisters a device. Subscribers observe the removal before the
// device's session is torn down, and the teardown emits no session events.
func (r *Registry) Remove(id string) error {
	idx := r.indexOf(id)
	if idx < 0 {
		return fmt.Errorf("remove %s: %w", id, ErrUnknownDevice)
	}

	removed := r.entries[idx]
	r.entries = append(r.entries[:idx:idx], r.entries[idx+1:]...)
	metrics.DevicesAvailable.Set(float64(len(r.entries)))

	r.logger.Info().Str("device_id", id).Msg("Device unavailable")

	r.notifyAvailability(AvailabilityEvent{Device: removed.device, Available: false, Index: idx})
	removed.session.close()
	return nil
}

// Available returns the available devices in registry order.
func (r *Registry) Available() []*Device {
	devices := make([]*Device, len(r.entries))
	for i, e := range r.entries {
		devices[i] = e.device
	}
	return devices
}

// Len returns the number of available devices.
func (r *Registry) Len() int { return len(r.entries) }

// Device looks up an available device by ID.
func (r *Registry) Device(id string) (*Device, bool) {
	if idx := r.indexOf(id); idx >= 0 {
		return r.entries[idx].device, true
	}
	return nil, false
}

// Session looks up the session of an available device.
func (r *Registry) Session(id string) (*Session, bool) {
	if idx := r.indexOf(id); idx >= 0 {
		return r.entries[idx].session, true
	}
	return nil, false
}

// IndexOf returns the registry position of id, or -1.
func (r *Registry) IndexOf(id string) int { return r.indexOf(id) }

// LastConnected returns the most recent device to reach Connected, if it is
// still available.
func (r *Registry) LastConnected() (*Device, bool) {
	if r.lastConnected == "" {
		return nil, false
	}
	return r.Device(r.lastConnected)
}

// SessionChanged relays session transitions to subscribers.
func (r *Registry) SessionChanged(ev SessionEvent) {
	if ev.Kind == EventConnected {
		r.lastConnected = ev.Device.ID
	}
	for _, l := range r.snapshot() {
		l.SessionChanged(ev)
	}
}

// Inbox returns the marshalling entry point for transport backends.
func (r *Registry) Inbox() *Inbox {
	return &Inbox{registry: r, dispatch: r.dispatch, logger: r.logger}
}

func (r *Registry) notifyAvailability(ev AvailabilityEvent) {
	listeners := r.snapshot()
	for _, l := range listeners {
		l.AvailabilityChanged(ev)
	}
	for _, l := range listeners {
		if s, ok := l.(Settler); ok {
			s.AvailabilitySettled(ev)
		}
	}
}

// snapshot lets listeners unsubscribe mid-notification without disturbing
// the current fan-out.
func (r *Registry) snapshot() []Listener {
	return append([]Listener(nil), r.listeners...)
}

func (r *Registry) indexOf(id string) int {
	for i, e := range r.entries {
		if e.device.ID == id {
			return i
		}
	}
	return -1
}

var _ SessionListener = (*Registry)(nil)
