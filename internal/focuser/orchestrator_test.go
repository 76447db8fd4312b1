package focuser

import (
	"context"
	"errors"
	"net/netip"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/focuserd/internal/history"
	"github.com/nerrad567/focuserd/internal/infrastructure/config"
	"github.com/nerrad567/focuserd/internal/motion"
	"github.com/nerrad567/focuserd/internal/motion/sim"
	"github.com/nerrad567/focuserd/internal/positions"
)

// localCtx carries an authorised caller address.
var localCtx = WithCaller(context.Background(), netip.MustParseAddr("127.0.0.1"))

type fakeNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *fakeNotifier) Notify(kind string, _ map[string]any) {
	n.mu.Lock()
	n.events = append(n.events, kind)
	n.mu.Unlock()
}

func (n *fakeNotifier) has(kind string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, e := range n.events {
		if e == kind {
			return true
		}
	}
	return false
}

type fakeRecorder struct {
	mu      sync.Mutex
	entries []history.Entry
	err     error
}

func (r *fakeRecorder) Record(_ context.Context, e *history.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *e)
	return r.err
}

func (r *fakeRecorder) last() history.Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries[len(r.entries)-1]
}

type failingStore struct{}

func (failingStore) Load() map[string]float64      { return map[string]float64{} }
func (failingStore) Save(map[string]float64) error { return errors.New("disk full") }

func testFocuserConfig() config.FocuserConfig {
	return config.FocuserConfig{
		ID:           "test",
		PollInterval: time.Millisecond,
		HomeTimeout:  2 * time.Second,
		MoveTimeout:  2 * time.Second,
	}
}

// testMCU has channel A without an endstop and channel B with one.
func testMCU() config.MCUConfig {
	return config.MCUConfig{
		Backend: "sim",
		Steppers: map[string]config.StepperConfig{
			"A": {Label: "Camera", PositionMin: -50, PositionMax: 50, Speed: 1000},
			"B": {Label: "Tube", EndstopPin: "PB1", PositionMin: 0, PositionMax: 20, Speed: 1000, HomingBackoff: 1},
		},
		Probes: map[string]config.ProbeConfig{
			"ambient": {Label: "Ambient"},
			"mirror":  {},
		},
		Fan:   &config.OutputConfig{Pin: "PA8"},
		Light: &config.OutputConfig{Pin: "PA9"},
	}
}

type harness struct {
	o        *Orchestrator
	ctrl     *sim.Controller
	store    *positions.Store
	notifier *fakeNotifier
	recorder *fakeRecorder
}

func localPolicy() *AddressPolicy {
	return NewAddressPolicy([]netip.Prefix{
		netip.MustParsePrefix("127.0.0.1/32"),
		netip.MustParsePrefix("::1/128"),
	})
}

func newHarness(t *testing.T, mutate ...func(*config.FocuserConfig, *config.MCUConfig)) *harness {
	t.Helper()
	fcfg := testFocuserConfig()
	mcu := testMCU()
	for _, m := range mutate {
		m(&fcfg, &mcu)
	}

	h := &harness{
		ctrl:     sim.New(mcu, sim.WithTick(time.Millisecond)),
		store:    positions.New(filepath.Join(t.TempDir(), "positions.json")),
		notifier: &fakeNotifier{},
		recorder: &fakeRecorder{},
	}
	h.o = h.build(t, h.ctrl, fcfg, mcu)
	t.Cleanup(func() { _ = h.ctrl.Disconnect(context.Background()) })
	return h
}

func (h *harness) build(t *testing.T, ctrl motion.Controller, fcfg config.FocuserConfig, mcu config.MCUConfig) *Orchestrator {
	t.Helper()
	o, err := New(fcfg, mcu, ctrl, h.store, localPolicy(),
		WithNotifier(h.notifier),
		WithRecorder(h.recorder),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return o
}

func (h *harness) stepper(t *testing.T, key string) *sim.Stepper {
	t.Helper()
	st, ok := h.ctrl.Stepper(key)
	if !ok {
		t.Fatalf("stepper %q missing", key)
	}
	return st.(*sim.Stepper)
}

func (h *harness) initialize(t *testing.T) {
	t.Helper()
	if got := h.o.Initialize(localCtx); got != Succeeded {
		t.Fatalf("Initialize() = %v, want Succeeded", got)
	}
}

func (h *harness) home(t *testing.T) {
	t.Helper()
	if got := h.o.Home(localCtx); got != Succeeded {
		t.Fatalf("Home() = %v, want Succeeded", got)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

// assertUnlocked fails if any lock or the homing flag is still held.
func assertUnlocked(t *testing.T, o *Orchestrator) {
	t.Helper()
	if !o.global.TryLock() {
		t.Error("global lock still held")
	} else {
		o.global.Unlock()
	}
	for _, ch := range o.Channels() {
		if !ch.tryLock() {
			t.Errorf("channel %s lock still held", ch.Key())
			continue
		}
		ch.unlock()
	}
	if o.homing.Load() {
		t.Error("homing flag still set")
	}
}

func TestNew_UnknownStepper(t *testing.T) {
	mcu := testMCU()
	ctrl := sim.New(mcu)

	bigger := testMCU()
	bigger.Steppers["C"] = config.StepperConfig{PositionMax: 1, Speed: 1}

	_, err := New(testFocuserConfig(), bigger, ctrl, failingStore{}, localPolicy())
	if !errors.Is(err, ErrUnknownStepper) {
		t.Errorf("New() error = %v, want ErrUnknownStepper", err)
	}
}

func TestNew_UnknownProbe(t *testing.T) {
	ctrl := sim.New(testMCU())

	bigger := testMCU()
	bigger.Probes["heatsink"] = config.ProbeConfig{}

	_, err := New(testFocuserConfig(), bigger, ctrl, failingStore{}, localPolicy())
	if !errors.Is(err, ErrUnknownProbe) {
		t.Errorf("New() error = %v, want ErrUnknownProbe", err)
	}
}

func TestNew_HydratesSetPositions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "positions.json")
	if err := positions.New(path).Save(map[string]float64{"A": 3.5, "B": 7}); err != nil {
		t.Fatal(err)
	}

	o, err := New(testFocuserConfig(), testMCU(), sim.New(testMCU()), positions.New(path), localPolicy())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if got := o.channels["A"].SetPosition(); got != 3.5 {
		t.Errorf("A set position = %v, want 3.5", got)
	}
	if got := o.channels["B"].SetPosition(); got != 7 {
		t.Errorf("B set position = %v, want 7", got)
	}
}

func TestNew_ChannelsSorted(t *testing.T) {
	h := newHarness(t)
	chs := h.o.Channels()
	if len(chs) != 2 || chs[0].Key() != "A" || chs[1].Key() != "B" {
		t.Fatalf("Channels() = %v, want [A B]", chs)
	}
	if chs[1].Label() != "Tube" {
		t.Errorf("B label = %q, want Tube", chs[1].Label())
	}
}

// Two channels with no stored positions: A without an endstop, B with one.
func TestScenario_InitializeSetHomeAndOvertravel(t *testing.T) {
	h := newHarness(t)

	h.initialize(t)

	if got := h.o.SetChannel(localCtx, "A", 10.0, false); got != Succeeded {
		t.Fatalf("SetChannel(A, 10) = %v, want Succeeded", got)
	}
	if got := positions.New(h.store.Path()).Load()["A"]; got != 10.0 {
		t.Errorf("stored A = %v, want 10", got)
	}

	h.home(t)
	if got := h.o.channels["B"].Status(); got != motion.StatusIdle {
		t.Errorf("B status after home = %v, want IDLE", got)
	}

	if got := h.o.SetChannel(localCtx, "B", 999999, false); got != Failed {
		t.Fatalf("SetChannel(B, 999999) = %v, want Failed", got)
	}
	b := h.o.channels["B"]
	if b.SetPosition() != b.Position() {
		t.Errorf("B set position = %v, reported = %v, want rollback to reported", b.SetPosition(), b.Position())
	}
	if b.Position() != 20 {
		t.Errorf("B position = %v, want travel limit 20", b.Position())
	}
	if got := positions.New(h.store.Path()).Load()["B"]; got != 20 {
		t.Errorf("stored B = %v, want rolled-back 20", got)
	}
}

func TestCommands_RejectUnauthorisedCaller(t *testing.T) {
	h := newHarness(t)
	h.initialize(t)

	remote := WithCaller(context.Background(), netip.MustParseAddr("192.0.2.10"))
	anonymous := context.Background()

	for name, ctx := range map[string]context.Context{"remote": remote, "anonymous": anonymous} {
		t.Run(name, func(t *testing.T) {
			checks := map[string]Result{
				"initialize":  h.o.Initialize(ctx),
				"home":        h.o.Home(ctx),
				"set_channel": h.o.SetChannel(ctx, "A", 1, false),
				"stop":        h.o.Stop(ctx, ""),
				"shutdown":    h.o.Shutdown(ctx),
				"set_light":   h.o.SetLight(ctx, true),
			}
			for cmd, got := range checks {
				if got != InvalidControlIP {
					t.Errorf("%s = %v, want InvalidControlIP", cmd, got)
				}
			}
		})
	}

	if got := h.o.ReportStatus().Status; got != StatusConnected {
		t.Errorf("status = %v, want CONNECTED (rejected commands must not act)", got)
	}
	if got := h.o.channels["A"].SetPosition(); got != 0 {
		t.Errorf("A set position = %v, want 0", got)
	}
}

func TestCommands_NotConnected(t *testing.T) {
	h := newHarness(t)

	checks := map[string]Result{
		"home":        h.o.Home(localCtx),
		"set_channel": h.o.SetChannel(localCtx, "A", 1, false),
		"stop":        h.o.Stop(localCtx, ""),
		"shutdown":    h.o.Shutdown(localCtx),
		"set_light":   h.o.SetLight(localCtx, true),
	}
	for cmd, got := range checks {
		if got != NotConnected {
			t.Errorf("%s = %v, want NotConnected", cmd, got)
		}
	}
}

func TestCommands_GlobalLockBlocks(t *testing.T) {
	h := newHarness(t)

	h.o.global.Lock()
	if got := h.o.Initialize(localCtx); got != Blocked {
		t.Errorf("Initialize() = %v, want Blocked", got)
	}
	if got := h.o.Home(localCtx); got != Blocked {
		t.Errorf("Home() = %v, want Blocked", got)
	}
	if got := h.o.Shutdown(localCtx); got != Blocked {
		t.Errorf("Shutdown() = %v, want Blocked", got)
	}
	h.o.global.Unlock()

	if h.ctrl.Connected() {
		t.Error("blocked Initialize connected the controller")
	}
}

func TestCommands_RecordedInHistory(t *testing.T) {
	h := newHarness(t)
	h.initialize(t)

	h.o.SetChannel(localCtx, "A", 4.25, true)
	e := h.recorder.last()
	if e.Command != "set_channel" || e.Channel != "A" || !e.Offset {
		t.Errorf("entry = %+v", e)
	}
	if e.Position == nil || *e.Position != 4.25 {
		t.Errorf("Position = %v, want 4.25", e.Position)
	}
	if e.Result != int(Succeeded) || e.ResultLabel != Succeeded.String() {
		t.Errorf("Result = %d %q", e.Result, e.ResultLabel)
	}
	if e.Caller != "127.0.0.1" {
		t.Errorf("Caller = %q, want 127.0.0.1", e.Caller)
	}

	h.o.Home(WithCaller(context.Background(), netip.MustParseAddr("198.51.100.1")))
	if e := h.recorder.last(); e.Command != "home" || e.Result != int(InvalidControlIP) {
		t.Errorf("rejected home entry = %+v", e)
	}
}

func TestCommands_RecorderErrorIgnored(t *testing.T) {
	h := newHarness(t)
	h.recorder.err = errors.New("database is locked")

	if got := h.o.Initialize(localCtx); got != Succeeded {
		t.Errorf("Initialize() = %v, want Succeeded", got)
	}
}
