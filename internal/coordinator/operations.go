package coordinator

import (
	"context"
	"fmt"

	"github.com/goodtune/motioncoach/internal/device"
	"github.com/goodtune/motioncoach/internal/motion"
)

// ToggleConnect connects the active device if it is disconnected and
// disconnects it otherwise.
func (c *Coordinator) ToggleConnect() error {
	defer c.render()

	session, ok := c.activeSession()
	if !ok {
		return ErrNoDevice
	}
	if session.State() == device.Disconnected {
		return session.Connect()
	}

	c.userDisconnect = true
	defer func() { c.userDisconnect = false }()
	return session.Disconnect()
}

// ToggleRecording starts a recording, or stops the one in progress.
func (c *Coordinator) ToggleRecording() error {
	defer c.render()

	session, ok := c.activeSession()
	if !ok {
		return ErrNoDevice
	}
	if session.IsRecording() {
		return session.StopRecording()
	}
	return session.StartRecording()
}

// Select makes an available device active without connecting it.
func (c *Coordinator) Select(id string) error {
	defer c.render()

	dev, ok := c.registry.Device(id)
	if !ok {
		return fmt.Errorf("select %s: %w", id, device.ErrUnknownDevice)
	}
	c.adopt(dev, false)
	return nil
}

// Train retrains the current movement from its full example set.
func (c *Coordinator) Train(ctx context.Context) error {
	defer c.render()
	return c.library.Store(c.opts.Movement).Train(ctx)
}

// ClearTraining discards the current movement's examples.
func (c *Coordinator) ClearTraining(ctx context.Context) error {
	defer c.render()
	return c.library.Store(c.opts.Movement).Reset(ctx)
}

// SetMode switches between training and recognition.
func (c *Coordinator) SetMode(m Mode) {
	c.opts.Mode = m
	c.resultText = ""
	c.render()
}

// SetAnalyzerMode selects single or multiple movement analysis.
func (c *Coordinator) SetAnalyzerMode(m motion.Mode) {
	c.opts.Analyzer = m
	c.render()
}

// SetMovement changes the movement label used for training and as the
// single-mode analysis hint.
func (c *Coordinator) SetMovement(label string) error {
	if label == "" {
		return fmt.Errorf("movement label is required")
	}
	c.opts.Movement = label
	c.render()
	return nil
}

// SetRepCount sets the rep count attached to new training examples.
func (c *Coordinator) SetRepCount(n int) error {
	if n < 0 {
		return fmt.Errorf("invalid rep count: %d", n)
	}
	c.opts.RepCount = n
	c.render()
	return nil
}

// ActiveDevice returns the active device, if any.
func (c *Coordinator) ActiveDevice() (*device.Device, bool) {
	if c.activeID == "" {
		return nil, false
	}
	return c.registry.Device(c.activeID)
}

// History returns recent analyses, newest first.
func (c *Coordinator) History() []Analysis {
	return c.history.list()
}
