// Package focuser coordinates the stepper channels of a focuser behind a
// single microcontroller link.
//
// The Orchestrator owns every channel and exposes the command surface used
// by the HTTP API: Initialize, Home, SetChannel, Stop, Shutdown and SetLight,
// plus the lock-free ReportStatus and TemperatureLabels reads.
//
// # Locking
//
// Lifecycle commands (Initialize, Home, Shutdown) take a global lock and
// motion commands take a per-channel lock. Locks are only ever try-acquired:
// a command that finds its lock held returns Blocked at once and the caller
// retries. Home is the only command holding several locks at once. It
// acquires the endstop channel locks in sorted key order and releases them
// all in a deferred cleanup. Stop takes no lock so it can interrupt a move
// or a homing sequence in flight.
//
// # Positions
//
// Each channel remembers its set position, the last position it was
// commanded to. Set positions are persisted after every accepted
// SetChannel. Channels without an endstop have no absolute reference, so on
// Initialize their reported position is synced to the stored set position.
// Channels with an endstop must be homed before they can move.
package focuser
