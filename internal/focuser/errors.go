package focuser

import "errors"

var (
	// ErrUnknownStepper is returned by New when a configured stepper is
	// missing from the motion controller.
	ErrUnknownStepper = errors.New("focuser: stepper not found on controller")

	// ErrUnknownProbe is returned by New when a configured probe is missing
	// from the motion controller.
	ErrUnknownProbe = errors.New("focuser: probe not found on controller")
)
