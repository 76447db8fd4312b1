package sim

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/focuserd/internal/infrastructure/config"
	"github.com/nerrad567/focuserd/internal/motion"
)

// defaultTick is the simulation step of carriage motion.
const defaultTick = 10 * time.Millisecond

// defaultTemperature is the reading of a freshly created probe.
const defaultTemperature = 20.0

// Option configures a Controller.
type Option func(*Controller)

// WithTick sets the simulation step. Tests use a short tick so moves finish quickly.
func WithTick(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.tick = d
		}
	}
}

// Controller is a simulated MCU link.
type Controller struct {
	tick      time.Duration
	connected atomic.Bool

	mu           sync.Mutex
	onDisconnect func(err error)
	connectErr   error

	steppers map[string]*Stepper
	probes   map[string]*Probe
	outputs  map[string]*Output
}

// New builds a simulated controller from the MCU configuration.
//
// Parameters:
//   - cfg: Steppers, probes, fan and light to model
//   - opts: Optional simulation settings
//
// Returns:
//   - *Controller: Disconnected controller
func New(cfg config.MCUConfig, opts ...Option) *Controller {
	c := &Controller{
		tick:     defaultTick,
		steppers: make(map[string]*Stepper, len(cfg.Steppers)),
		probes:   make(map[string]*Probe, len(cfg.Probes)),
		outputs:  make(map[string]*Output, 2),
	}
	for _, opt := range opts {
		opt(c)
	}

	for name, sc := range cfg.Steppers {
		c.steppers[name] = newStepper(c, sc)
	}
	for name := range cfg.Probes {
		c.probes[name] = &Probe{ctrl: c, celsius: defaultTemperature, valid: true}
	}
	if cfg.Fan != nil {
		c.outputs[motion.OutputFan] = &Output{ctrl: c}
	}
	if cfg.Light != nil {
		c.outputs[motion.OutputLight] = &Output{ctrl: c}
	}
	return c
}

// Connect opens the simulated link. Every stepper returns to its power-on
// state and every output switches off.
func (c *Controller) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.connectErr; err != nil {
		c.connectErr = nil
		return fmt.Errorf("sim: connecting: %w", err)
	}
	if c.connected.Load() {
		return motion.ErrAlreadyConnected
	}

	for _, s := range c.steppers {
		s.reset()
	}
	for _, o := range c.outputs {
		o.reset()
	}
	c.connected.Store(true)
	return nil
}

// Disconnect halts all motion and closes the link.
func (c *Controller) Disconnect(ctx context.Context) error {
	if !c.connected.CompareAndSwap(true, false) {
		return motion.ErrNotConnected
	}
	c.halt()
	return nil
}

// DropConnection simulates an unexpected link loss. The disconnect
// callback runs synchronously with err.
func (c *Controller) DropConnection(err error) {
	if !c.connected.CompareAndSwap(true, false) {
		return
	}
	c.halt()

	c.mu.Lock()
	cb := c.onDisconnect
	c.mu.Unlock()
	if cb != nil {
		cb(err)
	}
}

// FailNextConnect makes the next Connect call fail with err.
func (c *Controller) FailNextConnect(err error) {
	c.mu.Lock()
	c.connectErr = err
	c.mu.Unlock()
}

// Connected reports whether the link is up.
func (c *Controller) Connected() bool {
	return c.connected.Load()
}

// SetOnDisconnect registers the link loss callback.
func (c *Controller) SetOnDisconnect(callback func(err error)) {
	c.mu.Lock()
	c.onDisconnect = callback
	c.mu.Unlock()
}

// Stepper returns the named stepper.
func (c *Controller) Stepper(name string) (motion.Stepper, bool) {
	s, ok := c.steppers[name]
	if !ok {
		return nil, false
	}
	return s, true
}

// Probe returns the named temperature probe.
func (c *Controller) Probe(name string) (motion.Probe, bool) {
	p, ok := c.probes[name]
	if !ok {
		return nil, false
	}
	return p, true
}

// Output returns the named digital output.
func (c *Controller) Output(name string) (motion.Output, bool) {
	o, ok := c.outputs[name]
	if !ok {
		return nil, false
	}
	return o, true
}

// Now returns the host clock.
func (c *Controller) Now() time.Time {
	return time.Now()
}

func (c *Controller) halt() {
	for _, s := range c.steppers {
		s.halt()
	}
	for _, o := range c.outputs {
		o.reset()
	}
}
