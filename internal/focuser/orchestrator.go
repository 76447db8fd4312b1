package focuser

import (
	"context"
	"fmt"
	"net/netip"
	"runtime/debug"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/focuserd/internal/history"
	"github.com/nerrad567/focuserd/internal/infrastructure/config"
	"github.com/nerrad567/focuserd/internal/motion"
)

// positionTolerance is the largest set/reported discrepancy accepted after a move.
const positionTolerance = 0.001

// Event kinds published through the Notifier.
const (
	EventInitialized    = "initialized"
	EventShutdown       = "shutdown"
	EventHomed          = "homed"
	EventChannelMoved   = "channel_moved"
	EventConnectionLost = "connection_lost"
)

// Logger is the subset of the application logger used by the orchestrator.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// PositionStore persists set positions. Save errors are logged and never
// fail a command.
type PositionStore interface {
	Load() map[string]float64
	Save(positions map[string]float64) error
}

// Recorder stores the outcome of every command.
type Recorder interface {
	Record(ctx context.Context, entry *history.Entry) error
}

// Notifier publishes lifecycle events to external listeners.
type Notifier interface {
	Notify(kind string, payload map[string]any)
}

// FanMonitor reports the cooling fan state for status snapshots.
type FanMonitor interface {
	Active() bool
}

type probeEntry struct {
	label string
	probe motion.Probe
}

type fanBox struct {
	monitor FanMonitor
}

// Orchestrator owns the focuser channels and serialises commands on them.
type Orchestrator struct {
	cfg    config.FocuserConfig
	ctrl   motion.Controller
	store  PositionStore
	policy Policy

	logger   Logger
	recorder Recorder
	notifier Notifier
	fan      atomic.Pointer[fanBox]

	// global serialises Initialize, Home and Shutdown.
	global sync.Mutex
	homing atomic.Bool
	state  atomic.Int32

	// persistMu orders snapshot and save so the file never regresses.
	persistMu sync.Mutex

	channels  map[string]*Channel
	keys      []string
	probes    map[string]probeEntry
	probeKeys []string
	light     motion.Output
	lightOn   atomic.Bool
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(logger Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithRecorder sets the command history recorder.
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

// WithNotifier sets the event notifier.
func WithNotifier(n Notifier) Option {
	return func(o *Orchestrator) { o.notifier = n }
}

// New creates an orchestrator for the steppers and probes described by
// mcu. Set positions are hydrated from store; channels missing from the
// store start at zero.
//
// Parameters:
//   - cfg: Timeouts and poll interval
//   - mcu: Stepper and probe definitions (labels, keys)
//   - ctrl: Motion controller providing the hardware handles
//   - store: Position persistence
//   - policy: Control policy checked by every command
//   - opts: Optional logger, recorder and notifier
//
// Returns:
//   - *Orchestrator: Ready orchestrator in the Disconnected state
//   - error: If a configured stepper or probe is unknown to ctrl
func New(cfg config.FocuserConfig, mcu config.MCUConfig, ctrl motion.Controller, store PositionStore, policy Policy, opts ...Option) (*Orchestrator, error) {
	o := &Orchestrator{
		cfg:      cfg,
		ctrl:     ctrl,
		store:    store,
		policy:   policy,
		logger:   noopLogger{},
		channels: make(map[string]*Channel, len(mcu.Steppers)),
		probes:   make(map[string]probeEntry, len(mcu.Probes)),
	}
	for _, opt := range opts {
		opt(o)
	}

	saved := store.Load()
	o.keys = mcu.StepperNames()
	for _, key := range o.keys {
		st, ok := ctrl.Stepper(key)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownStepper, key)
		}
		o.channels[key] = newChannel(key, mcu.Steppers[key].Label, st, saved[key])
	}

	for key, pc := range mcu.Probes {
		p, ok := ctrl.Probe(key)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownProbe, key)
		}
		label := pc.Label
		if label == "" {
			label = key
		}
		o.probes[key] = probeEntry{label: label, probe: p}
		o.probeKeys = append(o.probeKeys, key)
	}
	sort.Strings(o.probeKeys)

	if mcu.Light != nil {
		if light, ok := ctrl.Output(motion.OutputLight); ok {
			o.light = light
		}
	}

	ctrl.SetOnDisconnect(o.handleConnectionLoss)
	return o, nil
}

// SetFanMonitor attaches the thermal guard so snapshots report the fan state.
func (o *Orchestrator) SetFanMonitor(m FanMonitor) {
	if m == nil {
		o.fan.Store(nil)
		return
	}
	o.fan.Store(&fanBox{monitor: m})
}

func (o *Orchestrator) fanMonitor() FanMonitor {
	if box := o.fan.Load(); box != nil {
		return box.monitor
	}
	return nil
}

// Channels returns the channels in key order.
func (o *Orchestrator) Channels() []*Channel {
	out := make([]*Channel, 0, len(o.keys))
	for _, key := range o.keys {
		out = append(out, o.channels[key])
	}
	return out
}

func (o *Orchestrator) connState() connState {
	return connState(o.state.Load())
}

func (o *Orchestrator) setConnState(s connState) {
	o.state.Store(int32(s))
}

// handleConnectionLoss collapses the device to Disconnected when the
// controller link drops on its own.
func (o *Orchestrator) handleConnectionLoss(err error) {
	o.setConnState(stateDisconnected)
	o.lightOn.Store(false)
	o.logger.Error("controller connection lost", "error", err)
	o.notify(EventConnectionLost, map[string]any{"error": fmt.Sprint(err)})
}

// persist writes every set position. A failed save is logged and ignored.
func (o *Orchestrator) persist() {
	o.persistMu.Lock()
	defer o.persistMu.Unlock()

	positions := make(map[string]float64, len(o.keys))
	for _, key := range o.keys {
		positions[key] = o.channels[key].SetPosition()
	}
	if err := o.store.Save(positions); err != nil {
		o.logger.Warn("saving set positions", "error", err)
	}
}

func (o *Orchestrator) notify(kind string, payload map[string]any) {
	if o.notifier != nil {
		o.notifier.Notify(kind, payload)
	}
}

// command describes a command invocation for logging and history.
type command struct {
	name     string
	channel  string
	position *float64
	offset   bool
}

// run checks the control policy, executes fn and records the outcome. A
// panic inside fn is logged and reported as Failed; fn's own deferred
// cleanups have released its locks by then.
func (o *Orchestrator) run(ctx context.Context, cmd command, fn func() Result) (result Result) {
	start := time.Now()
	caller, _ := CallerFromContext(ctx)

	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("command panicked",
				"command", cmd.name,
				"channel", cmd.channel,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			result = Failed
		}
		o.finish(ctx, cmd, caller, result, time.Since(start))
	}()

	if !o.policy.Allowed(caller) {
		return InvalidControlIP
	}
	return fn()
}

func (o *Orchestrator) finish(ctx context.Context, cmd command, caller netip.Addr, result Result, elapsed time.Duration) {
	args := []any{
		"command", cmd.name,
		"caller", caller.String(),
		"result", int(result),
		"duration_ms", elapsed.Milliseconds(),
	}
	if cmd.channel != "" {
		args = append(args, "channel", cmd.channel)
	}

	switch {
	case result.Routine():
		o.logger.Debug("command rejected", args...)
	case result == Failed:
		o.logger.Error("command failed", args...)
	case result == Succeeded:
		o.logger.Info("command completed", args...)
	default:
		o.logger.Info("command refused", append(args, "reason", result.String())...)
	}

	if o.recorder == nil {
		return
	}
	entry := &history.Entry{
		Command:     cmd.name,
		Channel:     cmd.channel,
		Position:    cmd.position,
		Offset:      cmd.offset,
		Caller:      caller.String(),
		Result:      int(result),
		ResultLabel: result.String(),
		DurationMS:  elapsed.Milliseconds(),
	}
	if err := o.recorder.Record(context.WithoutCancel(ctx), entry); err != nil {
		o.logger.Warn("recording command history", "command", cmd.name, "error", err)
	}
}
