// Package sim is an in-memory motion.Controller.
//
// It models each stepper as a carriage travelling at its configured speed
// between two physical limits. Steppers with an endstop power up at an
// unknown point mid-travel and home in three passes: a fast approach to the
// switch, a half-speed backoff and a slow second approach. Moves beyond the
// travel limits stop at the limit and report motion.ErrTravelLimit.
//
// Fault injection hooks (FailNextConnect, DropConnection, Stepper.SetStall,
// Stepper.SetMissEndstop, Output.FailWith, Probe.SetInvalid) let tests drive
// the daemon through hardware failures.
package sim
