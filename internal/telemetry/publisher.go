package telemetry

import (
	"context"
	"time"

	"github.com/nerrad567/focuserd/internal/focuser"
)

// eventQueueSize bounds the events waiting for delivery.
const eventQueueSize = 64

// Logger is the subset of the application logger used by the publisher.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}

// StatusSource produces status snapshots.
type StatusSource interface {
	ReportStatus() focuser.Status
}

// Sink receives status snapshots and events.
type Sink interface {
	PublishStatus(status any) error
	PublishEvent(kind string, payload any) error
}

// Metrics records time-series points. Writes never block.
type Metrics interface {
	WriteTemperature(probe string, celsius float64)
	WritePosition(channel string, position float64, setPosition *float64, status string)
	WriteFan(active bool)
}

// Event is the body published for a lifecycle event.
type Event struct {
	Kind      string         `json:"event"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   map[string]any `json:"payload,omitempty"`
}

type namedSink struct {
	name    string
	sink    Sink
	failing bool
}

// Publisher periodically publishes status and forwards events.
type Publisher struct {
	interval time.Duration
	sinks    []*namedSink
	metrics  Metrics
	logger   Logger
	events   chan Event
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithSink adds a named sink. Publish failures are logged once per outage
// under that name.
func WithSink(name string, sink Sink) Option {
	return func(p *Publisher) {
		if sink != nil {
			p.sinks = append(p.sinks, &namedSink{name: name, sink: sink})
		}
	}
}

// WithMetrics sets the time-series backend.
func WithMetrics(m Metrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(logger Logger) Option {
	return func(p *Publisher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New creates a publisher sampling every interval.
func New(interval time.Duration, opts ...Option) *Publisher {
	if interval <= 0 {
		interval = time.Second
	}
	p := &Publisher{
		interval: interval,
		logger:   noopLogger{},
		events:   make(chan Event, eventQueueSize),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Notify queues an event for delivery. It never blocks.
func (p *Publisher) Notify(kind string, payload map[string]any) {
	ev := Event{Kind: kind, Timestamp: time.Now().UTC(), Payload: payload}
	select {
	case p.events <- ev:
	default:
		p.logger.Warn("telemetry event queue full, dropping event", "event", kind)
	}
}

// Run publishes a snapshot immediately and then every interval until ctx
// is cancelled. Queued events are delivered as they arrive.
func (p *Publisher) Run(ctx context.Context, source StatusSource) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.publishStatus(source.ReportStatus())
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-p.events:
			p.publishEvent(ev)
		case <-ticker.C:
			p.publishStatus(source.ReportStatus())
		}
	}
}

func (p *Publisher) publishStatus(s focuser.Status) {
	for _, ns := range p.sinks {
		p.track(ns, "status", ns.sink.PublishStatus(s))
	}
	if p.metrics != nil {
		p.writeMetrics(s)
	}
}

func (p *Publisher) publishEvent(ev Event) {
	for _, ns := range p.sinks {
		p.track(ns, ev.Kind, ns.sink.PublishEvent(ev.Kind, ev))
	}
}

// track logs the first failure of an outage and the recovery.
func (p *Publisher) track(ns *namedSink, what string, err error) {
	switch {
	case err != nil && !ns.failing:
		ns.failing = true
		p.logger.Warn("telemetry publish failing", "sink", ns.name, "message", what, "error", err)
	case err != nil:
		p.logger.Debug("telemetry publish failed", "sink", ns.name, "message", what, "error", err)
	case ns.failing:
		ns.failing = false
		p.logger.Info("telemetry publish recovered", "sink", ns.name)
	}
}

func (p *Publisher) writeMetrics(s focuser.Status) {
	if s.Status == focuser.StatusDisconnected {
		return
	}
	for probe, v := range s.Temperature {
		if v != nil {
			p.metrics.WriteTemperature(probe, *v)
		}
	}
	for key, ch := range s.Channels {
		p.metrics.WritePosition(key, ch.Position, ch.SetPosition, ch.StatusLabel)
	}
	if s.FanActive != nil {
		p.metrics.WriteFan(*s.FanActive)
	}
}
