package motion

import "errors"

// Sentinel errors returned by Controller implementations.
var (
	// ErrNotConnected is returned when the MCU link is down.
	ErrNotConnected = errors.New("motion: not connected")

	// ErrAlreadyConnected is returned by Connect on an open link.
	ErrAlreadyConnected = errors.New("motion: already connected")

	// ErrBusy is returned when a stepper is already homing or moving.
	ErrBusy = errors.New("motion: stepper busy")

	// ErrNoEndstop is returned when homing a stepper without a limit switch.
	ErrNoEndstop = errors.New("motion: stepper has no endstop")

	// ErrTravelLimit is returned when a move was cut short at a travel limit.
	ErrTravelLimit = errors.New("motion: travel limit reached")

	// ErrStopped is returned by a blocking move or home interrupted by Stop.
	ErrStopped = errors.New("motion: stopped")
)
