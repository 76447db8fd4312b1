package focuser

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/nerrad567/focuserd/internal/motion"
)

// Initialize connects to the controller and restores the positions of
// channels without an endstop.
func (o *Orchestrator) Initialize(ctx context.Context) Result {
	return o.run(ctx, command{name: "initialize"}, func() Result {
		if !o.global.TryLock() {
			return Blocked
		}
		defer o.global.Unlock()

		if o.connState() != stateDisconnected {
			return NotDisconnected
		}

		o.setConnState(stateConnecting)
		connected := false
		defer func() {
			if !connected {
				o.setConnState(stateDisconnected)
			}
		}()

		if err := o.connect(ctx); err != nil {
			o.logger.Error("initializing focuser", "error", err)
			if derr := o.ctrl.Disconnect(context.WithoutCancel(ctx)); derr != nil && !errors.Is(derr, motion.ErrNotConnected) {
				o.logger.Warn("disconnecting after failed initialize", "error", derr)
			}
			return Failed
		}

		if !o.ctrl.Connected() || !o.state.CompareAndSwap(int32(stateConnecting), int32(stateConnected)) {
			o.logger.Error("controller link dropped while initializing")
			return Failed
		}
		connected = true
		o.lightOn.Store(false)
		o.logger.Info("focuser initialized", "channels", len(o.keys))
		o.notify(EventInitialized, nil)
		return Succeeded
	})
}

func (o *Orchestrator) connect(ctx context.Context) error {
	if err := o.ctrl.Connect(ctx); err != nil {
		return fmt.Errorf("connecting controller: %w", err)
	}
	for _, key := range o.keys {
		ch := o.channels[key]
		if ch.HasEndstop() {
			continue
		}
		if err := ch.sync(ch.SetPosition()); err != nil {
			return fmt.Errorf("syncing channel %s: %w", key, err)
		}
	}
	return nil
}

// SetChannel moves channel key to position, or by position relative to its
// current set position when offset is set. If the channel does not reach
// the new set position the set position is rolled back to where it
// stopped and the result is Failed.
func (o *Orchestrator) SetChannel(ctx context.Context, key string, position float64, offset bool) Result {
	cmd := command{name: "set_channel", channel: key, offset: offset}
	if finite(position) {
		cmd.position = &position
	}
	return o.run(ctx, cmd, func() Result {
		if o.connState() != stateConnected {
			return NotConnected
		}
		ch, ok := o.channels[key]
		if !ok {
			return InvalidChannel
		}
		if !ch.tryLock() {
			return Blocked
		}
		defer ch.unlock()

		if !ch.homed() {
			return ChannelNotHomed
		}

		target := position
		if offset {
			target += ch.SetPosition()
		}
		if !finite(target) {
			o.logger.Error("refusing non-finite set position",
				"channel", key,
				"position", fmt.Sprint(position),
				"offset", offset,
			)
			return Failed
		}
		ch.storeSetPosition(target)
		o.persist()

		moveErr := ch.move(target-ch.Position(), true)
		reported := ch.Position()
		if math.Abs(target-reported) > positionTolerance {
			o.logger.Error("channel did not reach set position",
				"channel", key,
				"set_position", target,
				"position", reported,
				"error", moveErr,
			)
			ch.storeSetPosition(reported)
			o.persist()
			return Failed
		}
		if moveErr != nil {
			o.logger.Warn("move reported an error but reached its target", "channel", key, "error", moveErr)
		}

		o.notify(EventChannelMoved, map[string]any{"channel": key, "set_position": target})
		return Succeeded
	})
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Stop halts channel key, or every channel when key is empty. It takes no
// lock so it can interrupt a move or homing sequence in progress.
func (o *Orchestrator) Stop(ctx context.Context, key string) Result {
	return o.run(ctx, command{name: "stop", channel: key}, func() Result {
		if o.connState() != stateConnected {
			return NotConnected
		}

		if key == "" {
			for _, k := range o.keys {
				o.stopChannel(o.channels[k])
			}
			return Succeeded
		}

		ch, ok := o.channels[key]
		if !ok {
			return InvalidChannel
		}
		o.stopChannel(ch)
		return Succeeded
	})
}

func (o *Orchestrator) stopChannel(ch *Channel) {
	if err := ch.stop(); err != nil {
		o.logger.Warn("stopping channel", "channel", ch.Key(), "error", err)
	}
}

// Shutdown disconnects from the controller.
func (o *Orchestrator) Shutdown(ctx context.Context) Result {
	return o.run(ctx, command{name: "shutdown"}, func() Result {
		if !o.global.TryLock() {
			return Blocked
		}
		defer o.global.Unlock()

		if o.connState() != stateConnected {
			return NotConnected
		}

		if err := o.ctrl.Disconnect(ctx); err != nil {
			o.logger.Error("disconnecting controller", "error", err)
			return Failed
		}

		o.setConnState(stateDisconnected)
		o.lightOn.Store(false)
		o.logger.Info("focuser shut down")
		o.notify(EventShutdown, nil)
		return Succeeded
	})
}

// SetLight switches the indicator light.
func (o *Orchestrator) SetLight(ctx context.Context, on bool) Result {
	return o.run(ctx, command{name: "set_light"}, func() Result {
		if o.connState() != stateConnected {
			return NotConnected
		}
		if o.light == nil {
			o.logger.Warn("no indicator light configured")
			return Failed
		}
		if err := o.light.Set(on); err != nil {
			o.logger.Error("switching indicator light", "on", on, "error", err)
			return Failed
		}
		o.lightOn.Store(on)
		return Succeeded
	})
}
