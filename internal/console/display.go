// Package console is the terminal front end: a colored renderer for the
// coordinator's display state and a line-oriented command reader.
package console

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/goodtune/motioncoach/internal/coordinator"
	"github.com/goodtune/motioncoach/internal/device"
)

// Display implements coordinator.Display on a terminal.
type Display struct {
	out io.Writer

	mu   sync.Mutex
	last string

	title  *color.Color
	label  *color.Color
	good   *color.Color
	warn   *color.Color
	danger *color.Color
}

// NewDisplay writes to out. Color is disabled automatically when out is
// not a terminal.
func NewDisplay(out io.Writer) *Display {
	return &Display{
		out:    out,
		title:  color.New(color.FgCyan, color.Bold),
		label:  color.New(color.Bold),
		good:   color.New(color.FgGreen, color.Bold),
		warn:   color.New(color.FgYellow),
		danger: color.New(color.FgRed, color.Bold),
	}
}

// Render prints the state unless it is identical to the last one printed.
func (d *Display) Render(st coordinator.State) {
	text := d.format(st)

	d.mu.Lock()
	defer d.mu.Unlock()
	if text == d.last {
		return
	}
	d.last = text
	fmt.Fprint(d.out, text)
}

// Alert prints a highlighted message.
func (d *Display) Alert(title, message string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	fmt.Fprintf(d.out, "%s %s\n", d.danger.Sprint("!! "+title), message)
	d.last = ""
}

// Feedback rings the terminal bell and notes the cue.
func (d *Display) Feedback(cue coordinator.Cue) {
	d.mu.Lock()
	defer d.mu.Unlock()

	fmt.Fprintf(d.out, "\a%s\n", d.label.Sprint("-- "+cue.String()))
}

func (d *Display) format(st coordinator.State) string {
	var b strings.Builder

	status := d.warn.Sprint(st.Status)
	if st.Device.IsConnected() {
		status = d.good.Sprint(st.Status)
	}
	fmt.Fprintf(&b, "%s %s\n", d.title.Sprint("=="), status)
	fmt.Fprintf(&b, "  %s %s  %s %s  %s %s  %s %d\n",
		d.label.Sprint("mode:"), st.Mode,
		d.label.Sprint("analyzer:"), st.Analyzer,
		d.label.Sprint("movement:"), st.Movement,
		d.label.Sprint("reps:"), st.RepCount)
	fmt.Fprintf(&b, "  %s\n", st.ExamplesText())
	fmt.Fprintf(&b, "  [%s] [%s] [%s] [%s]\n",
		button(st.ConnectLabel, st.ConnectEnabled),
		button(st.RecordLabel, st.RecordEnabled),
		button("Train", st.TrainEnabled),
		button("Clear", st.ClearEnabled))

	if st.Results != "" {
		for _, line := range strings.Split(st.Results, "\n") {
			fmt.Fprintf(&b, "  | %s\n", line)
		}
	}
	return b.String()
}

func button(label string, enabled bool) string {
	if enabled {
		return label
	}
	return label + " (disabled)"
}

// stateColor picks the color used for a device state in listings.
func (d *Display) stateColor(s device.State) *color.Color {
	switch s {
	case device.Connected, device.Recording:
		return d.good
	case device.Connecting:
		return d.warn
	default:
		return d.label
	}
}

var _ coordinator.Display = (*Display)(nil)
