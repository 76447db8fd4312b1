package focuser

import (
	"context"
	"time"

	"github.com/nerrad567/focuserd/internal/motion"
)

// Home homes every channel with an endstop and returns each to its set
// position.
//
// The endstop search is bounded by home_timeout and a timeout fails the
// command. The return moves are bounded by move_timeout, but a timeout
// there only logs a warning since the channels are homed by then. Neither
// wait observes ctx; a client aborts homing by calling Stop.
func (o *Orchestrator) Home(ctx context.Context) Result {
	return o.run(ctx, command{name: "home"}, func() Result {
		if !o.global.TryLock() {
			return Blocked
		}
		defer o.global.Unlock()

		if o.connState() != stateConnected {
			return NotConnected
		}

		o.homing.Store(true)
		defer o.homing.Store(false)

		var locked []*Channel
		defer func() {
			for _, ch := range locked {
				ch.unlock()
			}
		}()

		// o.keys is sorted, which fixes the lock order.
		for _, key := range o.keys {
			ch := o.channels[key]
			if !ch.HasEndstop() {
				continue
			}
			if !ch.tryLock() {
				return Blocked
			}
			locked = append(locked, ch)
		}

		return o.homeLocked(locked)
	})
}

func (o *Orchestrator) homeLocked(channels []*Channel) Result {
	for _, ch := range channels {
		if err := ch.home(false); err != nil {
			o.logger.Error("starting home", "channel", ch.Key(), "error", err)
			o.stopChannels(channels)
			return Failed
		}
	}

	if !o.waitWhile(channels, motion.StatusHoming, o.cfg.HomeTimeout) {
		o.logger.Error("homing timed out", "timeout", o.cfg.HomeTimeout.String())
		o.stopChannels(channels)
		return Failed
	}

	failed := false
	for _, ch := range channels {
		if ch.Status() == motion.StatusNotHomed {
			o.logger.Error("channel failed to home", "channel", ch.Key())
			failed = true
		}
	}
	if failed {
		return Failed
	}

	for _, ch := range channels {
		if err := ch.move(ch.SetPosition()-ch.Position(), false); err != nil {
			o.logger.Warn("returning to set position", "channel", ch.Key(), "error", err)
		}
	}
	if !o.waitWhile(channels, motion.StatusMoving, o.cfg.MoveTimeout) {
		o.logger.Warn("return to set position timed out", "timeout", o.cfg.MoveTimeout.String())
	}

	o.notify(EventHomed, nil)
	return Succeeded
}

// waitWhile polls until no channel reports status or timeout elapses on
// the controller clock. It returns false on timeout.
func (o *Orchestrator) waitWhile(channels []*Channel, status motion.StepperStatus, timeout time.Duration) bool {
	deadline := o.ctrl.Now().Add(timeout)
	for {
		busy := false
		for _, ch := range channels {
			if ch.Status() == status {
				busy = true
				break
			}
		}
		if !busy {
			return true
		}
		if !o.ctrl.Now().Before(deadline) {
			return false
		}
		time.Sleep(o.cfg.PollInterval)
	}
}

func (o *Orchestrator) stopChannels(channels []*Channel) {
	for _, ch := range channels {
		o.stopChannel(ch)
	}
}
