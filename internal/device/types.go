package device

import (
	"fmt"
	"strings"
	"time"
)

// Kind identifies the transport family a device belongs to.
type Kind string

const (
	KindPebble Kind = "pebble"
	KindBand   Kind = "band"
	KindWear   Kind = "wear"
	KindSim    Kind = "sim"
)

// ParseKind normalizes a kind name from configuration.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindPebble, KindBand, KindWear, KindSim:
		return k, nil
	default:
		return "", fmt.Errorf("invalid device kind: %s (must be pebble, band, wear, or sim)", s)
	}
}

// Device is a wearable endpoint. Its identity is ID; mutable connection and
// recording state lives in the device's Session.
type Device struct {
	ID   string
	Name string
	Kind Kind
}

func (d *Device) String() string {
	if d == nil {
		return "<none>"
	}
	return fmt.Sprintf("%s (%s)", d.Name, d.ID)
}

// State is the lifecycle state of a Session.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Recording
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Recording:
		return "recording"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// IsConnected reports whether the link is up (Connected or Recording).
func (s State) IsConnected() bool {
	return s == Connected || s == Recording
}

// Sample is one motion reading captured during a recording.
type Sample struct {
	Offset time.Duration `json:"offset"`
	Accel  [3]float64    `json:"accel"`
	Gyro   [3]float64    `json:"gyro"`
}

// Output is the immutable capture produced by exactly one recording.
type Output struct {
	ID        string    `json:"id"`
	DeviceID  string    `json:"device_id"`
	StartedAt time.Time `json:"started_at"`
	StoppedAt time.Time `json:"stopped_at"`
	Samples   []Sample  `json:"samples"`
}

// Duration is the wall-clock length of the recording.
func (o *Output) Duration() time.Duration {
	return o.StoppedAt.Sub(o.StartedAt)
}
