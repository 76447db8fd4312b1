package sim

import (
	"sync"

	"github.com/nerrad567/focuserd/internal/motion"
)

// Probe is a simulated temperature sensor.
type Probe struct {
	ctrl *Controller

	mu      sync.Mutex
	celsius float64
	valid   bool
}

// Temperature returns the current reading. No reading is available while
// the link is down.
func (p *Probe) Temperature() (float64, bool) {
	if !p.ctrl.Connected() {
		return 0, false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.valid {
		return 0, false
	}
	return p.celsius, true
}

// SetTemperature sets the reading.
func (p *Probe) SetTemperature(celsius float64) {
	p.mu.Lock()
	p.celsius = celsius
	p.valid = true
	p.mu.Unlock()
}

// SetInvalid makes the probe report no reading, as an open thermistor would.
func (p *Probe) SetInvalid() {
	p.mu.Lock()
	p.valid = false
	p.mu.Unlock()
}

// Output is a simulated digital output.
type Output struct {
	ctrl *Controller

	mu   sync.Mutex
	on   bool
	fail error
}

// Set drives the output.
func (o *Output) Set(on bool) error {
	if !o.ctrl.Connected() {
		return motion.ErrNotConnected
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.fail != nil {
		return o.fail
	}
	o.on = on
	return nil
}

// On reports the output level.
func (o *Output) On() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.on
}

// FailWith makes every Set return err until called with nil.
func (o *Output) FailWith(err error) {
	o.mu.Lock()
	o.fail = err
	o.mu.Unlock()
}

func (o *Output) reset() {
	o.mu.Lock()
	o.on = false
	o.mu.Unlock()
}
