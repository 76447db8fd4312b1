package motion

import (
	"context"
	"time"
)

// StepperStatus is the motion state reported by a stepper.
type StepperStatus int

// Stepper states. NotHomed and Idle are stable; Homing and Moving are
// transient. Tracking is a stable active state used by continuously
// driven channels.
const (
	StatusNotHomed StepperStatus = iota
	StatusIdle
	StatusHoming
	StatusMoving
	StatusTracking
)

// String returns the human-readable label used in status reports.
func (s StepperStatus) String() string {
	switch s {
	case StatusNotHomed:
		return "NOT HOMED"
	case StatusIdle:
		return "IDLE"
	case StatusHoming:
		return "HOMING"
	case StatusMoving:
		return "MOVING"
	case StatusTracking:
		return "TRACKING"
	default:
		return "UNKNOWN"
	}
}

// IsActive reports whether the stepper is currently driving its motor.
func (s StepperStatus) IsActive() bool {
	return s == StatusHoming || s == StatusMoving || s == StatusTracking
}

// Stepper controls one stepper channel.
type Stepper interface {
	// Home starts the endstop search. With blocking set it returns once
	// the stepper has left the Homing state.
	Home(blocking bool) error

	// Move starts a relative move of delta units. With blocking set it
	// returns once the move has finished.
	Move(delta float64, blocking bool) error

	// Stop aborts any motion in progress.
	Stop() error

	// Status returns the current motion state.
	Status() StepperStatus

	// Position returns the reported position in physical units.
	Position() float64

	// Sync overwrites the reported position without moving.
	Sync(position float64) error

	// HasEndstop reports whether the stepper has a limit switch.
	HasEndstop() bool
}

// Probe reads one temperature sensor.
type Probe interface {
	// Temperature returns the latest reading in degrees Celsius.
	// ok is false when no valid reading is available.
	Temperature() (celsius float64, ok bool)
}

// Output drives a digital output such as a fan or an indicator light.
type Output interface {
	Set(on bool) error
}

// Well-known output names.
const (
	OutputFan   = "fan"
	OutputLight = "light"
)

// Controller is the shared MCU connection.
type Controller interface {
	// Connect opens and configures the MCU link.
	Connect(ctx context.Context) error

	// Disconnect closes the MCU link.
	Disconnect(ctx context.Context) error

	// Connected reports whether the link is up.
	Connected() bool

	// SetOnDisconnect registers a callback invoked when the link drops
	// without a Disconnect call.
	SetOnDisconnect(callback func(err error))

	Stepper(name string) (Stepper, bool)
	Probe(name string) (Probe, bool)
	Output(name string) (Output, bool)

	// Now returns the host clock used for timeouts.
	Now() time.Time
}
