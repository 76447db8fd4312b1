// Package motion defines the contract between focuserd and the
// microcontroller that drives its stepper channels, temperature probes and
// digital outputs.
//
// The wire protocol to the microcontroller lives behind these interfaces.
// The daemon ships one implementation, package sim, which models the
// hardware in memory and is used for bench testing and by the test suite.
//
// # Lifecycle
//
//	ctrl.Connect(ctx)      // open the link, configure the MCU
//	st, _ := ctrl.Stepper("tube")
//	st.Home(false)         // start homing, poll st.Status()
//	ctrl.Disconnect(ctx)   // close the link
//
// Every method is safe for concurrent use. Callers serialise motion
// requests per stepper themselves; implementations reject a new move while
// one is in progress with ErrBusy.
package motion
