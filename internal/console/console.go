package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/goodtune/motioncoach/internal/coordinator"
	"github.com/goodtune/motioncoach/internal/device"
	"github.com/goodtune/motioncoach/internal/motion"
	"github.com/rs/zerolog"
)

// ErrQuit is returned by Execute for the quit command.
var ErrQuit = errors.New("console: quit")

// Caller runs a function on the event context and waits for it.
// eventloop.Loop satisfies it.
type Caller interface {
	Call(ctx context.Context, fn func()) error
}

// Simulator controls the simulated transport, when one is running.
type Simulator interface {
	Announce(id string) error
	Withdraw(id string) error
	DropLink(id string) error
}

// Catalog lists the movements the engine knows.
type Catalog interface {
	Movements() []motion.Movement
}

// Options wires a Console.
type Options struct {
	Coordinator *coordinator.Coordinator
	Registry    *device.Registry
	Loop        Caller
	Display     *Display
	Catalog     Catalog   // optional
	Simulator   Simulator // optional
}

type command struct {
	args  string
	help  string
	nargs int
	run   func(ctx context.Context, args []string) error
}

// Console reads commands and applies them to the coordinator on the event
// context.
type Console struct {
	opts     Options
	out      io.Writer
	logger   zerolog.Logger
	commands map[string]command
}

// New creates a console.
func New(opts Options, logger zerolog.Logger) *Console {
	c := &Console{
		opts:   opts,
		out:    opts.Display.out,
		logger: logger.With().Str("component", "console").Logger(),
	}
	c.commands = map[string]command{
		"help":      {help: "show this help", run: c.help},
		"status":    {help: "show the current state", run: c.status},
		"connect":   {help: "connect or disconnect the active device", run: c.onLoop(func(context.Context, []string) error { return c.opts.Coordinator.ToggleConnect() })},
		"record":    {help: "start or stop recording", run: c.onLoop(func(context.Context, []string) error { return c.opts.Coordinator.ToggleRecording() })},
		"train":     {help: "retrain the current movement", run: c.onLoop(func(ctx context.Context, _ []string) error { return c.opts.Coordinator.Train(ctx) })},
		"clear":     {help: "discard the current movement's examples", run: c.onLoop(func(ctx context.Context, _ []string) error { return c.opts.Coordinator.ClearTraining(ctx) })},
		"mode":      {args: "training|recognition", help: "switch session mode", nargs: 1, run: c.onLoop(c.setMode)},
		"analyzer":  {args: "single|multiple", help: "switch analyzer mode", nargs: 1, run: c.onLoop(c.setAnalyzer)},
		"movement":  {args: "LABEL", help: "set the movement label", nargs: 1, run: c.onLoop(func(_ context.Context, args []string) error { return c.opts.Coordinator.SetMovement(args[0]) })},
		"reps":      {args: "N", help: "set the rep count for new examples", nargs: 1, run: c.onLoop(c.setReps)},
		"select":    {args: "ID", help: "make a device active", nargs: 1, run: c.onLoop(func(_ context.Context, args []string) error { return c.opts.Coordinator.Select(args[0]) })},
		"devices":   {help: "list available devices", run: c.onLoop(c.devices)},
		"history":   {help: "list recent analyses", run: c.onLoop(c.history)},
		"movements": {help: "list known movements", run: c.movements},
		"announce":  {args: "ID", help: "simulator: bring a device into range", nargs: 1, run: c.simulate(Simulator.Announce)},
		"withdraw":  {args: "ID", help: "simulator: take a device out of range", nargs: 1, run: c.simulate(Simulator.Withdraw)},
		"drop":      {args: "ID", help: "simulator: drop a device's link", nargs: 1, run: c.simulate(Simulator.DropLink)},
		"quit":      {help: "exit", run: func(context.Context, []string) error { return ErrQuit }},
	}
	return c
}

// Run reads commands from in until EOF, quit, or ctx is done.
func (c *Console) Run(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if err := c.Execute(ctx, line); err != nil {
				if errors.Is(err, ErrQuit) {
					return nil
				}
				fmt.Fprintf(c.out, "%s\n", c.opts.Display.danger.Sprint(err))
			}
		}
	}
}

// Execute runs one command line.
func (c *Console) Execute(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}

	name := strings.ToLower(fields[0])
	if name == "exit" {
		name = "quit"
	}
	cmd, ok := c.commands[name]
	if !ok {
		return fmt.Errorf("unknown command %q (try help)", fields[0])
	}
	args := fields[1:]
	if len(args) != cmd.nargs {
		return fmt.Errorf("usage: %s %s", name, cmd.args)
	}

	c.logger.Debug().Str("command", name).Strs("args", args).Msg("Executing command")
	return cmd.run(ctx, args)
}

// onLoop runs fn on the event context and returns its error.
func (c *Console) onLoop(fn func(ctx context.Context, args []string) error) func(context.Context, []string) error {
	return func(ctx context.Context, args []string) error {
		var err error
		if callErr := c.opts.Loop.Call(ctx, func() { err = fn(ctx, args) }); callErr != nil {
			return callErr
		}
		return err
	}
}

func (c *Console) simulate(fn func(Simulator, string) error) func(context.Context, []string) error {
	return func(_ context.Context, args []string) error {
		if c.opts.Simulator == nil {
			return fmt.Errorf("simulator is not enabled")
		}
		return fn(c.opts.Simulator, args[0])
	}
}

func (c *Console) help(context.Context, []string) error {
	names := make([]string, 0, len(c.commands))
	for name := range c.commands {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		cmd := c.commands[name]
		usage := strings.TrimSpace(name + " " + cmd.args)
		fmt.Fprintf(c.out, "  %-30s %s\n", c.opts.Display.label.Sprint(usage), cmd.help)
	}
	return nil
}

func (c *Console) status(ctx context.Context, _ []string) error {
	var st coordinator.State
	if err := c.opts.Loop.Call(ctx, func() { st = c.opts.Coordinator.State() }); err != nil {
		return err
	}
	fmt.Fprint(c.out, c.opts.Display.format(st))
	return nil
}

func (c *Console) setMode(_ context.Context, args []string) error {
	m, err := coordinator.ParseMode(args[0])
	if err != nil {
		return err
	}
	c.opts.Coordinator.SetMode(m)
	return nil
}

func (c *Console) setAnalyzer(_ context.Context, args []string) error {
	m, err := motion.ParseMode(args[0])
	if err != nil {
		return err
	}
	c.opts.Coordinator.SetAnalyzerMode(m)
	return nil
}

func (c *Console) setReps(_ context.Context, args []string) error {
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid rep count %q: %w", args[0], err)
	}
	return c.opts.Coordinator.SetRepCount(n)
}

func (c *Console) devices(context.Context, []string) error {
	devices := c.opts.Registry.Available()
	if len(devices) == 0 {
		fmt.Fprintln(c.out, "  no available devices")
		return nil
	}

	active, _ := c.opts.Coordinator.ActiveDevice()
	for _, dev := range devices {
		marker := " "
		if active != nil && active.ID == dev.ID {
			marker = "*"
		}
		state := device.Disconnected
		if session, ok := c.opts.Registry.Session(dev.ID); ok {
			state = session.State()
		}
		fmt.Fprintf(c.out, "  %s %-12s %-20s %-6s %s\n",
			marker, dev.ID, dev.Name, dev.Kind, c.opts.Display.stateColor(state).Sprint(state))
	}
	return nil
}

func (c *Console) history(context.Context, []string) error {
	entries := c.opts.Coordinator.History()
	if len(entries) == 0 {
		fmt.Fprintln(c.out, "  no analyses yet")
		return nil
	}

	for _, a := range entries {
		var parts []string
		for _, r := range a.Results {
			if r.IsResting() {
				parts = append(parts, fmt.Sprintf("resting %.2fs", r.Duration.Seconds()))
				continue
			}
			parts = append(parts, fmt.Sprintf("%s x%d", r.Movement, r.RepCount))
		}
		summary := coordinator.NoResult
		if len(parts) > 0 {
			summary = strings.Join(parts, ", ")
		}
		fmt.Fprintf(c.out, "  %s  %-8s %-8s %s\n", a.At.Format("15:04:05"), a.DeviceID, a.Mode, summary)
	}
	return nil
}

func (c *Console) movements(context.Context, []string) error {
	if c.opts.Catalog == nil {
		return fmt.Errorf("no movement catalog available")
	}
	for _, m := range c.opts.Catalog.Movements() {
		fmt.Fprintf(c.out, "  %-14s %s\n", m.ID, m.DisplayName)
	}
	return nil
}
