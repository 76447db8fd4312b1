package sim

import "errors"

// ErrEndstopNotTriggered is returned when a homing pass ends without the
// limit switch closing.
var ErrEndstopNotTriggered = errors.New("sim: endstop not triggered")
