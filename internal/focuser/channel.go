package focuser

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/nerrad567/focuserd/internal/motion"
)

// Channel is one stepper axis of the focuser.
//
// The command lock is only ever try-acquired by the Orchestrator and the
// motion helpers below assume it is held. Status, Position and
// SetPosition are safe to call without the lock.
type Channel struct {
	key     string
	label   string
	stepper motion.Stepper

	lock sync.Mutex

	// setBits holds the float64 set position so lock-free readers never tear it.
	setBits atomic.Uint64
}

func newChannel(key, label string, stepper motion.Stepper, setPosition float64) *Channel {
	if label == "" {
		label = key
	}
	c := &Channel{key: key, label: label, stepper: stepper}
	c.storeSetPosition(setPosition)
	return c
}

// Key returns the channel key.
func (c *Channel) Key() string { return c.key }

// Label returns the display name.
func (c *Channel) Label() string { return c.label }

// SetPosition returns the last commanded position.
func (c *Channel) SetPosition() float64 {
	return math.Float64frombits(c.setBits.Load())
}

func (c *Channel) storeSetPosition(v float64) {
	c.setBits.Store(math.Float64bits(v))
}

// Status returns the stepper motion state.
func (c *Channel) Status() motion.StepperStatus {
	return c.stepper.Status()
}

// Position returns the reported stepper position.
func (c *Channel) Position() float64 {
	return c.stepper.Position()
}

// HasEndstop reports whether the channel can be homed.
func (c *Channel) HasEndstop() bool {
	return c.stepper.HasEndstop()
}

// homed reports whether the channel may move. Channels without an endstop
// are always homed.
func (c *Channel) homed() bool {
	return !c.stepper.HasEndstop() || c.stepper.Status() != motion.StatusNotHomed
}

func (c *Channel) tryLock() bool { return c.lock.TryLock() }
func (c *Channel) unlock()       { c.lock.Unlock() }

func (c *Channel) move(delta float64, blocking bool) error {
	return c.stepper.Move(delta, blocking)
}

func (c *Channel) home(blocking bool) error {
	return c.stepper.Home(blocking)
}

func (c *Channel) stop() error {
	return c.stepper.Stop()
}

func (c *Channel) sync(position float64) error {
	return c.stepper.Sync(position)
}
