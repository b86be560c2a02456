package sim

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/goodtune/motioncoach/internal/config"
	"github.com/goodtune/motioncoach/internal/device"
	"github.com/goodtune/motioncoach/internal/eventloop"
	"github.com/rs/zerolog"
)

type eventLog struct {
	avail []device.AvailabilityEvent
	kinds []device.EventKind
	errs  []error
}

func (l *eventLog) AvailabilityChanged(ev device.AvailabilityEvent) {
	l.avail = append(l.avail, ev)
}

func (l *eventLog) SessionChanged(ev device.SessionEvent) {
	l.kinds = append(l.kinds, ev.Kind)
	l.errs = append(l.errs, ev.Err)
}

type fixture struct {
	loop     *eventloop.Loop
	registry *device.Registry
	clock    *device.TestClock
	backend  *Backend
	events   *eventLog
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	loop := eventloop.New(16, zerolog.Nop())
	go loop.Run(ctx)
	t.Cleanup(cancel)

	clock := &device.TestClock{CurrentTime: time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)}
	registry := device.NewRegistry(loop, clock, zerolog.Nop())
	events := &eventLog{}
	registry.Subscribe(events)

	backend := New(cfg, registry.Inbox(), clock, zerolog.Nop())
	t.Cleanup(backend.Stop)

	return &fixture{loop: loop, registry: registry, clock: clock, backend: backend, events: events}
}

// on runs fn on the event context.
func (f *fixture) on(t *testing.T, fn func()) {
	t.Helper()
	if err := f.loop.Call(context.Background(), fn); err != nil {
		t.Fatalf("call: %v", err)
	}
}

func (f *fixture) waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		var ok bool
		f.on(t, func() { ok = cond() })
		if ok {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func band(id string) DeviceSpec {
	return DeviceSpec{
		Device:    device.Device{ID: id, Name: "Band " + id, Kind: device.KindSim},
		RepPeriod: 2 * time.Second,
	}
}

func TestBackendConnectAndCapture(t *testing.T) {
	f := newFixture(t, Config{SampleRate: 50, Devices: []DeviceSpec{band("a")}})
	f.backend.Start()
	f.waitFor(t, "announcement", func() bool { return f.registry.Len() == 1 })

	var session *device.Session
	f.on(t, func() {
		session, _ = f.registry.Session("a")
		if err := session.Connect(); err != nil {
			t.Errorf("connect: %v", err)
		}
	})
	f.waitFor(t, "connection", func() bool { return session.State() == device.Connected })

	var out *device.Output
	f.on(t, func() {
		if err := session.StartRecording(); err != nil {
			t.Errorf("start recording: %v", err)
			return
		}
		f.clock.Advance(10 * time.Second)
		if err := session.StopRecording(); err != nil {
			t.Errorf("stop recording: %v", err)
			return
		}
		out, _ = session.TakeOutput()
	})

	if out == nil {
		t.Fatal("expected an output")
	}
	if len(out.Samples) != 500 {
		t.Fatalf("expected 500 samples, got %d", len(out.Samples))
	}
	if out.Duration() != 10*time.Second {
		t.Fatalf("duration = %v, want 10s", out.Duration())
	}
}

func TestBackendConnectFailure(t *testing.T) {
	spec := band("a")
	spec.FailConnect = true
	f := newFixture(t, Config{Devices: []DeviceSpec{spec}})
	f.backend.Start()
	f.waitFor(t, "announcement", func() bool { return f.registry.Len() == 1 })

	f.on(t, func() {
		session, _ := f.registry.Session("a")
		if err := session.Connect(); err != nil {
			t.Errorf("connect: %v", err)
		}
	})
	f.waitFor(t, "failure", func() bool {
		n := len(f.events.kinds)
		return n > 0 && f.events.kinds[n-1] == device.EventConnectionFailed
	})

	f.on(t, func() {
		var cerr *device.ConnectionError
		if !errors.As(f.events.errs[len(f.events.errs)-1], &cerr) {
			t.Errorf("expected ConnectionError, got %v", f.events.errs)
			return
		}
		if cerr.Message != "Band a did not respond" {
			t.Errorf("message = %q", cerr.Message)
		}
	})
}

func TestBackendWithdrawAndDropLink(t *testing.T) {
	f := newFixture(t, Config{Devices: []DeviceSpec{band("a"), band("b")}})
	f.backend.Start()
	f.waitFor(t, "announcements", func() bool { return f.registry.Len() == 2 })

	var session *device.Session
	f.on(t, func() {
		session, _ = f.registry.Session("b")
		_ = session.Connect()
	})
	f.waitFor(t, "connection", func() bool { return session.State() == device.Connected })

	if err := f.backend.DropLink("b"); err != nil {
		t.Fatalf("drop link: %v", err)
	}
	f.waitFor(t, "link loss", func() bool { return session.State() == device.Disconnected })
	if err := f.backend.DropLink("b"); err == nil {
		t.Fatal("expected error dropping a link that is already down")
	}

	if err := f.backend.Withdraw("a"); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	f.waitFor(t, "withdrawal", func() bool { return f.registry.Len() == 1 })
	if f.backend.Devices()["a"] {
		t.Fatal("withdrawn device still reported as announced")
	}

	if err := f.backend.Announce("a"); err != nil {
		t.Fatalf("announce: %v", err)
	}
	f.waitFor(t, "re-announcement", func() bool { return f.registry.Len() == 2 })
	f.on(t, func() {
		if idx := f.registry.IndexOf("a"); idx != 1 {
			t.Errorf("re-announced device at index %d, want 1", idx)
		}
	})

	if err := f.backend.Announce("zzz"); !errors.Is(err, device.ErrUnknownDevice) {
		t.Fatalf("expected ErrUnknownDevice, got %v", err)
	}
}

func TestBackendStopCancelsAnnouncements(t *testing.T) {
	f := newFixture(t, Config{AnnounceDelay: time.Hour, Devices: []DeviceSpec{band("a")}})
	f.backend.Start()
	f.backend.Stop()

	if f.backend.Devices()["a"] {
		t.Fatal("device announced after stop")
	}
}

func TestSynthesize(t *testing.T) {
	tests := []struct {
		name    string
		length  time.Duration
		rate    int
		period  time.Duration
		samples int
	}{
		{name: "moving", length: 4 * time.Second, rate: 50, period: 2 * time.Second, samples: 200},
		{name: "still", length: time.Second, rate: 10, samples: 10},
		{name: "empty", length: 0, rate: 50, period: time.Second, samples: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Synthesize(tt.length, tt.rate, tt.period, 0)
			if len(got) != tt.samples {
				t.Fatalf("expected %d samples, got %d", tt.samples, len(got))
			}
			for _, s := range got {
				if tt.period == 0 && s.Accel[2] != gravity {
					t.Fatalf("still capture moved: %+v", s)
				}
				if math.Abs(s.Accel[2]-gravity) > defaultAmplitude+1e-9 {
					t.Fatalf("sample outside amplitude: %+v", s)
				}
			}
		})
	}
}

func TestFromConfig(t *testing.T) {
	cfg, err := FromConfig(config.SimulatorConfig{
		ConnectDelay:  "250ms",
		AnnounceDelay: "1s",
		SampleRate:    25,
		Devices: []config.SimulatedDeviceConfig{
			{ID: "left", Name: "Left", Kind: "band", RepPeriod: "1500ms", Amplitude: 3},
		},
	})
	if err != nil {
		t.Fatalf("from config: %v", err)
	}
	if cfg.ConnectDelay != 250*time.Millisecond || cfg.AnnounceDelay != time.Second {
		t.Fatalf("unexpected delays %+v", cfg)
	}
	if len(cfg.Devices) != 1 || cfg.Devices[0].Device.Kind != device.KindBand || cfg.Devices[0].RepPeriod != 1500*time.Millisecond {
		t.Fatalf("unexpected devices %+v", cfg.Devices)
	}

	_, err = FromConfig(config.SimulatorConfig{
		ConnectDelay:  "0s",
		AnnounceDelay: "0s",
		Devices:       []config.SimulatedDeviceConfig{{ID: "x", Kind: "toaster", RepPeriod: "1s"}},
	})
	if err == nil {
		t.Fatal("expected error for unknown kind")
	}
}
