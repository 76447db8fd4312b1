package sim

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/nerrad567/focuserd/internal/infrastructure/config"
	"github.com/nerrad567/focuserd/internal/motion"
)

func testMCU() config.MCUConfig {
	return config.MCUConfig{
		Backend: "sim",
		Steppers: map[string]config.StepperConfig{
			"tube": {
				EndstopPin:    "PB1",
				PositionMin:   0,
				PositionMax:   20,
				Speed:         2000,
				HomingBackoff: 1,
			},
			"camera": {
				PositionMin: -5,
				PositionMax: 5,
				Speed:       2000,
			},
		},
		Probes: map[string]config.ProbeConfig{
			"ambient": {Label: "Ambient"},
		},
		Fan: &config.OutputConfig{Pin: "PA8"},
	}
}

func newConnected(t *testing.T) *Controller {
	t.Helper()
	c := New(testMCU(), WithTick(time.Millisecond))
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { _ = c.Disconnect(context.Background()) })
	return c
}

func stepper(t *testing.T, c *Controller, name string) *Stepper {
	t.Helper()
	st, ok := c.Stepper(name)
	if !ok {
		t.Fatalf("Stepper(%q) not found", name)
	}
	return st.(*Stepper)
}

func TestController_ConnectLifecycle(t *testing.T) {
	c := New(testMCU(), WithTick(time.Millisecond))
	ctx := context.Background()

	if err := c.Disconnect(ctx); !errors.Is(err, motion.ErrNotConnected) {
		t.Errorf("Disconnect() before Connect error = %v, want ErrNotConnected", err)
	}
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if !c.Connected() {
		t.Error("Connected() = false after Connect")
	}
	if err := c.Connect(ctx); !errors.Is(err, motion.ErrAlreadyConnected) {
		t.Errorf("second Connect() error = %v, want ErrAlreadyConnected", err)
	}
	if err := c.Disconnect(ctx); err != nil {
		t.Fatalf("Disconnect() error = %v", err)
	}
	if c.Connected() {
		t.Error("Connected() = true after Disconnect")
	}
}

func TestController_FailNextConnect(t *testing.T) {
	c := New(testMCU())
	boom := errors.New("no serial port")
	c.FailNextConnect(boom)

	if err := c.Connect(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("Connect() error = %v, want %v", err, boom)
	}
	if c.Connected() {
		t.Error("Connected() = true after failed Connect")
	}
	if err := c.Connect(context.Background()); err != nil {
		t.Errorf("Connect() after one-shot failure error = %v", err)
	}
}

func TestController_Lookups(t *testing.T) {
	c := New(testMCU())

	if _, ok := c.Stepper("missing"); ok {
		t.Error("Stepper(missing) ok = true")
	}
	if _, ok := c.Probe("ambient"); !ok {
		t.Error("Probe(ambient) ok = false")
	}
	if _, ok := c.Output(motion.OutputFan); !ok {
		t.Error("Output(fan) ok = false")
	}
	if _, ok := c.Output(motion.OutputLight); ok {
		t.Error("Output(light) ok = true with no light configured")
	}
}

func TestStepper_PowerOnStatus(t *testing.T) {
	c := New(testMCU())
	tube := stepper(t, c, "tube")
	camera := stepper(t, c, "camera")

	if got := tube.Status(); got != motion.StatusNotHomed {
		t.Errorf("tube.Status() disconnected = %v, want NOT HOMED", got)
	}

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if got := tube.Status(); got != motion.StatusNotHomed {
		t.Errorf("tube.Status() = %v, want NOT HOMED", got)
	}
	if got := camera.Status(); got != motion.StatusIdle {
		t.Errorf("camera.Status() = %v, want IDLE", got)
	}
}

func TestStepper_HomeBlocking(t *testing.T) {
	c := newConnected(t)
	tube := stepper(t, c, "tube")

	if err := tube.Home(true); err != nil {
		t.Fatalf("Home() error = %v", err)
	}
	if got := tube.Status(); got != motion.StatusIdle {
		t.Errorf("Status() = %v, want IDLE", got)
	}
	if got := tube.Position(); got != 0 {
		t.Errorf("Position() = %v, want 0", got)
	}
}

func TestStepper_HomeWithoutEndstop(t *testing.T) {
	c := newConnected(t)
	camera := stepper(t, c, "camera")

	if err := camera.Home(true); !errors.Is(err, motion.ErrNoEndstop) {
		t.Errorf("Home() error = %v, want ErrNoEndstop", err)
	}
}

func TestStepper_HomeMissEndstop(t *testing.T) {
	c := newConnected(t)
	tube := stepper(t, c, "tube")
	tube.SetMissEndstop(true)

	if err := tube.Home(true); !errors.Is(err, ErrEndstopNotTriggered) {
		t.Fatalf("Home() error = %v, want ErrEndstopNotTriggered", err)
	}
	if got := tube.Status(); got != motion.StatusNotHomed {
		t.Errorf("Status() = %v, want NOT HOMED", got)
	}
}

func TestStepper_StallThenStop(t *testing.T) {
	c := newConnected(t)
	tube := stepper(t, c, "tube")
	tube.SetStall(true)

	if err := tube.Home(false); err != nil {
		t.Fatalf("Home() error = %v", err)
	}
	if got := tube.Status(); got != motion.StatusHoming {
		t.Fatalf("Status() = %v, want HOMING", got)
	}
	if err := tube.Move(1, false); !errors.Is(err, motion.ErrBusy) {
		t.Errorf("Move() while homing error = %v, want ErrBusy", err)
	}
	if err := tube.Sync(1); !errors.Is(err, motion.ErrBusy) {
		t.Errorf("Sync() while homing error = %v, want ErrBusy", err)
	}

	if err := tube.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if got := tube.Status(); got != motion.StatusNotHomed {
		t.Errorf("Status() after Stop = %v, want NOT HOMED", got)
	}
}

func TestStepper_MoveWithinLimits(t *testing.T) {
	c := newConnected(t)
	tube := stepper(t, c, "tube")
	if err := tube.Home(true); err != nil {
		t.Fatalf("Home() error = %v", err)
	}

	if err := tube.Move(12.5, true); err != nil {
		t.Fatalf("Move() error = %v", err)
	}
	if got := tube.Position(); got != 12.5 {
		t.Errorf("Position() = %v, want 12.5", got)
	}
	if got := tube.Status(); got != motion.StatusIdle {
		t.Errorf("Status() = %v, want IDLE", got)
	}
}

func TestStepper_MoveClippedAtLimit(t *testing.T) {
	c := newConnected(t)
	camera := stepper(t, c, "camera")

	err := camera.Move(999999, true)
	if !errors.Is(err, motion.ErrTravelLimit) {
		t.Fatalf("Move() error = %v, want ErrTravelLimit", err)
	}
	if got := camera.Position(); got != 5 {
		t.Errorf("Position() = %v, want 5", got)
	}
}

func TestStepper_MoveWithAcceleration(t *testing.T) {
	mcu := testMCU()
	camera := mcu.Steppers["camera"]
	camera.Speed = 20
	camera.Acceleration = 40
	mcu.Steppers["camera"] = camera

	c := New(mcu, WithTick(time.Millisecond))
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { _ = c.Disconnect(context.Background()) })
	st := stepper(t, c, "camera")

	// 4 units: coast capped at sqrt(0.5*4*40) ~ 8.94, about 0.67s in total
	// against 0.2s at constant speed.
	start := time.Now()
	if err := st.Move(4, true); err != nil {
		t.Fatalf("Move() error = %v", err)
	}
	if got := st.Position(); got != 4 {
		t.Errorf("Position() = %v, want 4", got)
	}
	if elapsed := time.Since(start); elapsed < 600*time.Millisecond {
		t.Errorf("move took %v, want at least the 0.67s ramp profile", elapsed)
	}
}

func TestStepper_MoveNonFinite(t *testing.T) {
	c := newConnected(t)
	camera := stepper(t, c, "camera")

	for _, delta := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		if err := camera.Move(delta, true); !errors.Is(err, motion.ErrTravelLimit) {
			t.Errorf("Move(%v) error = %v, want ErrTravelLimit", delta, err)
		}
	}
	if got := camera.Position(); got != 0 {
		t.Errorf("Position() = %v, want 0", got)
	}
	if got := camera.Status(); got != motion.StatusIdle {
		t.Errorf("Status() = %v, want IDLE", got)
	}
}

func TestStepper_SyncShiftsFrame(t *testing.T) {
	c := newConnected(t)
	camera := stepper(t, c, "camera")

	if err := camera.Sync(3); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if got := camera.Position(); got != 3 {
		t.Errorf("Position() = %v, want 3", got)
	}
	if err := camera.Move(-1, true); err != nil {
		t.Fatalf("Move() error = %v", err)
	}
	if got := camera.Position(); got != 2 {
		t.Errorf("Position() = %v, want 2", got)
	}
}

func TestStepper_NotConnected(t *testing.T) {
	c := New(testMCU())
	tube := stepper(t, c, "tube")

	if err := tube.Move(1, true); !errors.Is(err, motion.ErrNotConnected) {
		t.Errorf("Move() error = %v, want ErrNotConnected", err)
	}
	if err := tube.Stop(); !errors.Is(err, motion.ErrNotConnected) {
		t.Errorf("Stop() error = %v, want ErrNotConnected", err)
	}
	if err := tube.Sync(0); !errors.Is(err, motion.ErrNotConnected) {
		t.Errorf("Sync() error = %v, want ErrNotConnected", err)
	}
}

func TestController_DropConnection(t *testing.T) {
	c := newConnected(t)
	tube := stepper(t, c, "tube")
	tube.SetStall(true)
	if err := tube.Home(false); err != nil {
		t.Fatalf("Home() error = %v", err)
	}

	var got error
	c.SetOnDisconnect(func(err error) { got = err })
	lost := errors.New("usb reset")
	c.DropConnection(lost)

	if !errors.Is(got, lost) {
		t.Errorf("disconnect callback err = %v, want %v", got, lost)
	}
	if c.Connected() {
		t.Error("Connected() = true after DropConnection")
	}
	if status := tube.Status(); status != motion.StatusNotHomed {
		t.Errorf("Status() = %v, want NOT HOMED", status)
	}

	got = nil
	c.DropConnection(lost)
	if got != nil {
		t.Error("callback fired for a link that was already down")
	}
}

func TestProbe_Temperature(t *testing.T) {
	c := New(testMCU())
	p, _ := c.Probe("ambient")
	probe := p.(*Probe)

	if _, ok := probe.Temperature(); ok {
		t.Error("Temperature() ok = true while disconnected")
	}
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	probe.SetTemperature(12.5)
	if v, ok := probe.Temperature(); !ok || v != 12.5 {
		t.Errorf("Temperature() = %v, %v, want 12.5, true", v, ok)
	}
	probe.SetInvalid()
	if _, ok := probe.Temperature(); ok {
		t.Error("Temperature() ok = true after SetInvalid")
	}
}

func TestOutput_Set(t *testing.T) {
	c := newConnected(t)
	o, _ := c.Output(motion.OutputFan)
	fan := o.(*Output)

	if err := fan.Set(true); err != nil {
		t.Fatalf("Set(true) error = %v", err)
	}
	if !fan.On() {
		t.Error("On() = false after Set(true)")
	}

	boom := errors.New("pin fault")
	fan.FailWith(boom)
	if err := fan.Set(false); !errors.Is(err, boom) {
		t.Errorf("Set(false) error = %v, want %v", err, boom)
	}
	if !fan.On() {
		t.Error("On() changed after a failed Set")
	}
}

func TestStepperStatus_String(t *testing.T) {
	tests := []struct {
		status motion.StepperStatus
		want   string
		active bool
	}{
		{motion.StatusNotHomed, "NOT HOMED", false},
		{motion.StatusIdle, "IDLE", false},
		{motion.StatusHoming, "HOMING", true},
		{motion.StatusMoving, "MOVING", true},
		{motion.StatusTracking, "TRACKING", true},
		{motion.StepperStatus(42), "UNKNOWN", false},
	}
	for _, tt := range tests {
		if got := tt.status.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
		if got := tt.status.IsActive(); got != tt.active {
			t.Errorf("%s.IsActive() = %v, want %v", tt.want, got, tt.active)
		}
	}
}
