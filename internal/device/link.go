package device

// Link is the transport backend for one device family.
//
// Connect must not block. The backend calls done exactly once, from any
// goroutine, with nil on success or the failure cause; the session marshals
// that completion back onto the event context. Disconnect, StartCapture and
// StopCapture are called on the event context and must return promptly.
type Link interface {
	Connect(dev *Device, done func(err error))
	Disconnect(dev *Device)
	StartCapture(dev *Device) error
	StopCapture(dev *Device) []Sample
}
