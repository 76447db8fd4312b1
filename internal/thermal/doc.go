// Package thermal runs the cooling fan of the focuser electronics.
//
// The Guard polls channel activity on a fixed tick. While any channel is
// homing, moving or tracking the fan runs, and it keeps running for an
// idle timeout after the last activity so the drivers can cool down:
//
//	tick:     active? -> disableAfter = now + idleTimeout
//	fan on  <=> now < disableAfter
//
// The fan output is written only when the wanted state changes. A failed
// write leaves the recorded state untouched so the next tick retries.
package thermal
