package sim

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/nerrad567/focuserd/internal/infrastructure/config"
	"github.com/nerrad567/focuserd/internal/motion"
)

// segment is one leg of a motion, run with a trapezoidal profile.
type segment struct {
	target float64
	speed  float64
	accel  float64
}

// motionRun tracks one motion in progress.
type motionRun struct {
	abort    chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	err      error
}

func (r *motionRun) stop() {
	r.stopOnce.Do(func() { close(r.abort) })
}

// Stepper is a simulated stepper channel.
type Stepper struct {
	ctrl *Controller
	cfg  config.StepperConfig

	mu       sync.Mutex
	status   motion.StepperStatus
	position float64
	// endstop is the switch location in reported coordinates.
	endstop     float64
	homed       bool
	active      *motionRun
	stall       bool
	missEndstop bool
}

func newStepper(ctrl *Controller, cfg config.StepperConfig) *Stepper {
	s := &Stepper{ctrl: ctrl, cfg: cfg}
	s.reset()
	return s
}

// reset puts the stepper in its power-on state: position zero with the
// carriage halfway along its travel.
func (s *Stepper) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.position = 0
	s.endstop = -s.travel() / 2
	s.homed = !s.cfg.HasEndstop()
	s.status = s.restStatus()
}

func (s *Stepper) travel() float64 {
	return s.cfg.PositionMax - s.cfg.PositionMin
}

// limits returns the reachable range in reported coordinates. Must be
// called with s.mu held.
func (s *Stepper) limits() (lo, hi float64) {
	if !s.cfg.HasEndstop() {
		return s.cfg.PositionMin, s.cfg.PositionMax
	}
	return s.endstop, s.endstop + s.travel()
}

// restStatus is the status of a stepper with no motion in progress. Must
// be called with s.mu held.
func (s *Stepper) restStatus() motion.StepperStatus {
	if s.homed {
		return motion.StatusIdle
	}
	return motion.StatusNotHomed
}

// HasEndstop reports whether the stepper has a limit switch.
func (s *Stepper) HasEndstop() bool {
	return s.cfg.HasEndstop()
}

// Status returns the motion state. A disconnected stepper reports NotHomed.
func (s *Stepper) Status() motion.StepperStatus {
	if !s.ctrl.Connected() {
		return motion.StatusNotHomed
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Position returns the reported position.
func (s *Stepper) Position() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.position
}

// Sync overwrites the reported position. The physical limits move with it.
func (s *Stepper) Sync(position float64) error {
	if !s.ctrl.Connected() {
		return motion.ErrNotConnected
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil {
		return motion.ErrBusy
	}
	if s.cfg.HasEndstop() {
		s.endstop += position - s.position
	}
	s.position = position
	return nil
}

// SetStall makes subsequent homing passes hang until stopped.
func (s *Stepper) SetStall(stall bool) {
	s.mu.Lock()
	s.stall = stall
	s.mu.Unlock()
}

// SetMissEndstop makes subsequent homing passes run the full travel
// without the switch closing.
func (s *Stepper) SetMissEndstop(miss bool) {
	s.mu.Lock()
	s.missEndstop = miss
	s.mu.Unlock()
}

// Home searches for the endstop. On success the position becomes
// position_min and the stepper is Idle.
func (s *Stepper) Home(blocking bool) error {
	if !s.cfg.HasEndstop() {
		return motion.ErrNoEndstop
	}

	speed := s.cfg.Speed
	accel := s.cfg.Acceleration
	backoff := s.cfg.HomingBackoff

	return s.start(motion.StatusHoming, blocking, func() ([]segment, func(aborted bool) error) {
		if s.stall {
			return []segment{{target: s.position - s.travel(), speed: 0}}, s.finishHome(false)
		}
		if s.missEndstop {
			return []segment{{target: s.position - s.travel(), speed: speed, accel: accel}}, s.finishHome(false)
		}
		return []segment{
			{target: s.endstop, speed: speed, accel: accel},
			{target: s.endstop + backoff, speed: speed / 2, accel: accel},
			{target: s.endstop, speed: speed / 10, accel: accel},
		}, s.finishHome(true)
	})
}

func (s *Stepper) finishHome(triggered bool) func(aborted bool) error {
	return func(aborted bool) error {
		if aborted || !triggered {
			s.homed = false
			s.status = motion.StatusNotHomed
			if aborted {
				return motion.ErrStopped
			}
			return ErrEndstopNotTriggered
		}
		s.position = s.cfg.PositionMin
		s.endstop = s.cfg.PositionMin
		s.homed = true
		s.status = motion.StatusIdle
		return nil
	}
}

// Move travels delta units from the current position. A target beyond the
// travel limits is clipped and the move reports motion.ErrTravelLimit; a
// non-finite delta is refused without moving.
func (s *Stepper) Move(delta float64, blocking bool) error {
	if math.IsNaN(delta) || math.IsInf(delta, 0) {
		return fmt.Errorf("%w: non-finite move %v", motion.ErrTravelLimit, delta)
	}
	return s.start(motion.StatusMoving, blocking, func() ([]segment, func(aborted bool) error) {
		want := s.position + delta
		lo, hi := s.limits()
		target := min(max(want, lo), hi)

		return []segment{{target: target, speed: s.cfg.Speed, accel: s.cfg.Acceleration}}, func(aborted bool) error {
			s.status = s.restStatus()
			if aborted {
				return motion.ErrStopped
			}
			if target != want {
				return fmt.Errorf("%w: target %.4f outside [%.4f, %.4f]", motion.ErrTravelLimit, want, lo, hi)
			}
			return nil
		}
	})
}

// Stop aborts the motion in progress and waits for the stepper to settle.
func (s *Stepper) Stop() error {
	if !s.ctrl.Connected() {
		return motion.ErrNotConnected
	}
	s.halt()
	return nil
}

func (s *Stepper) halt() {
	s.mu.Lock()
	r := s.active
	s.mu.Unlock()
	if r == nil {
		return
	}
	r.stop()
	<-r.done
}

// start launches a motion. plan runs with s.mu held and returns the legs
// to travel plus a finisher, also called with s.mu held, that sets the
// final state and returns the motion result.
func (s *Stepper) start(status motion.StepperStatus, blocking bool, plan func() ([]segment, func(aborted bool) error)) error {
	if !s.ctrl.Connected() {
		return motion.ErrNotConnected
	}

	s.mu.Lock()
	if s.active != nil {
		s.mu.Unlock()
		return motion.ErrBusy
	}
	segs, finish := plan()
	r := &motionRun{
		abort: make(chan struct{}),
		done:  make(chan struct{}),
	}
	s.active = r
	s.status = status
	s.mu.Unlock()

	go s.run(r, segs, finish)

	if !blocking {
		return nil
	}
	<-r.done
	return r.err
}

func (s *Stepper) run(r *motionRun, segs []segment, finish func(aborted bool) error) {
	defer close(r.done)

	ticker := time.NewTicker(s.ctrl.tick)
	defer ticker.Stop()

	complete := func(aborted bool) {
		s.mu.Lock()
		r.err = finish(aborted)
		s.active = nil
		s.mu.Unlock()
	}

	for _, seg := range segs {
		s.mu.Lock()
		from := s.position
		s.mu.Unlock()

		dir := 1.0
		if seg.target < from {
			dir = -1
		}
		p := newProfile(math.Abs(seg.target-from), seg.speed, seg.accel)
		began := time.Now()

		for {
			s.mu.Lock()
			arrived := s.position == seg.target
			s.mu.Unlock()
			if arrived {
				break
			}

			select {
			case <-r.abort:
				complete(true)
				return
			case now := <-ticker.C:
				d := p.travelled(now.Sub(began).Seconds())
				s.mu.Lock()
				if d >= p.distance {
					s.position = seg.target
				} else {
					s.position = from + dir*d
				}
				s.mu.Unlock()
			}
		}
	}
	complete(false)
}
