package thermal

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/nerrad567/focuserd/internal/infrastructure/config"
	"github.com/nerrad567/focuserd/internal/motion"
)

// Logger is the subset of the application logger used by the guard.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}

// StatusReader reports the motion state of one channel.
type StatusReader interface {
	Status() motion.StepperStatus
}

// Guard switches the fan according to channel activity.
type Guard struct {
	fan      motion.Output
	channels []StatusReader
	idle     time.Duration
	tick     time.Duration
	now      func() time.Time
	logger   Logger

	mu           sync.Mutex
	on           bool
	disableAfter time.Time
}

// Option configures a Guard.
type Option func(*Guard)

// WithClock replaces the wall clock, normally with motion.Controller.Now.
func WithClock(now func() time.Time) Option {
	return func(g *Guard) {
		if now != nil {
			g.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger Logger) Option {
	return func(g *Guard) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// New creates a guard for fan watching channels. The fan starts Off with
// its disable deadline at the current time.
func New(fan motion.Output, channels []StatusReader, cfg config.ThermalConfig, opts ...Option) *Guard {
	g := &Guard{
		fan:      fan,
		channels: channels,
		idle:     cfg.IdleTimeout,
		tick:     cfg.Tick,
		now:      time.Now,
		logger:   noopLogger{},
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.tick <= 0 {
		g.tick = time.Second
	}
	g.disableAfter = g.now()
	return g
}

// Active reports whether the fan is currently on.
func (g *Guard) Active() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.on
}

// Run polls until ctx is cancelled, then switches the fan off.
// It always returns nil so it can run under an errgroup.
func (g *Guard) Run(ctx context.Context) error {
	ticker := time.NewTicker(g.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			g.shutdown()
			return nil
		case <-ticker.C:
			g.step(g.now())
		}
	}
}

// step evaluates one tick at time now.
func (g *Guard) step(now time.Time) {
	active := false
	for _, ch := range g.channels {
		if ch.Status().IsActive() {
			active = true
			break
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if active {
		g.disableAfter = now.Add(g.idle)
	}
	want := now.Before(g.disableAfter)
	if want == g.on {
		return
	}

	if err := g.fan.Set(want); err != nil {
		if errors.Is(err, motion.ErrNotConnected) {
			g.logger.Debug("fan write skipped, controller not connected", "on", want)
		} else {
			g.logger.Warn("switching fan", "on", want, "error", err)
		}
		return
	}
	g.on = want
	g.logger.Info("fan switched", "on", want)
}

func (g *Guard) shutdown() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.on {
		return
	}
	if err := g.fan.Set(false); err != nil {
		g.logger.Debug("switching fan off on exit", "error", err)
		return
	}
	g.on = false
}
