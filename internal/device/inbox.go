package device

import (
	"github.com/goodtune/motioncoach/internal/eventloop"
	"github.com/rs/zerolog"
)

// Inbox is how transport backends, running on their own goroutines, report
// discovery and link events. Every call is posted to the event context.
type Inbox struct {
	registry *Registry
	dispatch eventloop.Dispatcher
	logger   zerolog.Logger
}

// Announce reports a newly discovered device.
func (i *Inbox) Announce(dev *Device, link Link) {
	i.dispatch.Post(func() {
		if err := i.registry.Add(dev, link); err != nil {
			i.logger.Warn().Err(err).Msg("Ignoring device announcement")
		}
	})
}

// Withdraw reports that a device is gone.
func (i *Inbox) Withdraw(id string) {
	i.dispatch.Post(func() {
		if err := i.registry.Remove(id); err != nil {
			i.logger.Warn().Err(err).Msg("Ignoring device withdrawal")
		}
	})
}

// LinkLost reports an unsolicited drop of an established link.
func (i *Inbox) LinkLost(id string, cause error) {
	i.dispatch.Post(func() {
		session, ok := i.registry.Session(id)
		if !ok {
			return
		}
		session.LinkLost(cause)
	})
}
