package coordinator

import (
	"fmt"
	"strings"

	"github.com/goodtune/motioncoach/internal/device"
	"github.com/goodtune/motioncoach/internal/motion"
)

// NoResult is the result text shown when an analysis found nothing or could
// not run.
const NoResult = "(no result)"

// State is a snapshot of everything the display shows.
type State struct {
	Status   string
	DeviceID string
	Device   device.State

	ConnectLabel   string
	ConnectEnabled bool
	RecordLabel    string
	RecordEnabled  bool
	TrainEnabled   bool
	ClearEnabled   bool

	Mode         Mode
	Analyzer     motion.Mode
	Movement     string
	RepCount     int
	ExampleCount int

	Results string
}

// ExamplesText is the training set summary line.
func (s State) ExamplesText() string {
	return fmt.Sprintf("Training data sets: %d", s.ExampleCount)
}

// State builds the current display snapshot.
func (c *Coordinator) State() State {
	count := c.library.Store(c.opts.Movement).Count()
	st := State{
		Status:       "no available devices",
		ConnectLabel: "Connect",
		RecordLabel:  "Start recording",
		TrainEnabled: count > 0,
		ClearEnabled: count > 0,
		Mode:         c.opts.Mode,
		Analyzer:     c.opts.Analyzer,
		Movement:     c.opts.Movement,
		RepCount:     c.opts.RepCount,
		ExampleCount: count,
		Results:      c.resultText,
	}

	session, ok := c.activeSession()
	if !ok {
		return st
	}

	dev := session.Device()
	state := session.State()
	st.DeviceID = dev.ID
	st.Device = state

	connected := "disconnected"
	if state.IsConnected() {
		connected = "connected"
	}
	st.Status = fmt.Sprintf("%s: %s", dev.Name, connected)

	switch state {
	case device.Connecting:
		st.ConnectLabel = "Connecting..."
	case device.Connected, device.Recording:
		st.ConnectLabel = "Disconnect"
		st.ConnectEnabled = true
	default:
		st.ConnectEnabled = true
	}

	if state.IsConnected() {
		st.RecordEnabled = true
		if state == device.Recording {
			st.RecordLabel = "Stop recording"
		}
	}
	return st
}

// formatResults renders results the way the display shows them.
func (c *Coordinator) formatResults(results []motion.Result) string {
	if len(results) == 0 {
		return NoResult
	}

	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n")
		}
		if r.IsResting() {
			fmt.Fprintf(&b, "Resting: %.2fs\n", r.Duration.Seconds())
			continue
		}
		fmt.Fprintf(&b, "%s\n", c.engine.DisplayName(r.Movement))
		fmt.Fprintf(&b, "  %d reps\n", r.RepCount)
		fmt.Fprintf(&b, "  duration %.2fs\n", r.Duration.Seconds())
		fmt.Fprintf(&b, "  rep time %.2f (%.2f-%.2f)\n",
			r.MeanRepTime.Seconds(), r.MinRepTime.Seconds(), r.MaxRepTime.Seconds())
		fmt.Fprintf(&b, "  variation %.2f\n", r.InternalVariation)
		if r.ReferenceVariation != nil {
			fmt.Fprintf(&b, "  ref variation %.2f\n", *r.ReferenceVariation)
			fmt.Fprintf(&b, "  ref rep time %.2f\n", r.ReferenceRepTime.Seconds())
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
