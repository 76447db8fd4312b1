package focuser

import "github.com/nerrad567/focuserd/internal/motion"

// DeviceStatus is the overall state reported in status snapshots.
type DeviceStatus int

const (
	StatusDisconnected DeviceStatus = iota
	StatusInitializing
	StatusConnected
)

// String returns the status label.
func (s DeviceStatus) String() string {
	switch s {
	case StatusDisconnected:
		return "DISCONNECTED"
	case StatusInitializing:
		return "INITIALIZING"
	case StatusConnected:
		return "CONNECTED"
	default:
		return "UNKNOWN"
	}
}

// connState is the state of the controller link.
type connState int32

const (
	stateDisconnected connState = iota
	stateConnecting
	stateConnected
)

// ChannelStatus is the snapshot of one channel.
type ChannelStatus struct {
	Label       string               `json:"label"`
	Status      motion.StepperStatus `json:"status"`
	StatusLabel string               `json:"status_label"`
	Position    float64              `json:"position"`

	// SetPosition is omitted while the channel is not homed.
	SetPosition *float64 `json:"set_position,omitempty"`
}

// Status is a point-in-time snapshot of the focuser. Temperature,
// Channels, FanActive and LightOn are only filled while connected.
type Status struct {
	Status      DeviceStatus `json:"status"`
	StatusLabel string       `json:"status_label"`

	// Temperature maps probe keys to readings. A nil value means no valid reading.
	Temperature map[string]*float64      `json:"temperature,omitempty"`
	Channels    map[string]ChannelStatus `json:"channels,omitempty"`
	FanActive   *bool                    `json:"fan_active,omitempty"`
	LightOn     *bool                    `json:"light_on,omitempty"`
}

// ReportStatus builds a status snapshot. It takes no locks and never
// blocks on a command in progress.
func (o *Orchestrator) ReportStatus() Status {
	device := o.deviceStatus()
	s := Status{
		Status:      device,
		StatusLabel: device.String(),
	}
	if o.connState() != stateConnected {
		return s
	}

	if len(o.probeKeys) > 0 {
		s.Temperature = make(map[string]*float64, len(o.probeKeys))
		for _, key := range o.probeKeys {
			if v, ok := o.probes[key].probe.Temperature(); ok {
				s.Temperature[key] = &v
			} else {
				s.Temperature[key] = nil
			}
		}
	}

	s.Channels = make(map[string]ChannelStatus, len(o.keys))
	for _, key := range o.keys {
		ch := o.channels[key]
		status := ch.Status()
		cs := ChannelStatus{
			Label:       ch.Label(),
			Status:      status,
			StatusLabel: status.String(),
			Position:    ch.Position(),
		}
		if status != motion.StatusNotHomed {
			set := ch.SetPosition()
			cs.SetPosition = &set
		}
		s.Channels[key] = cs
	}

	if fan := o.fanMonitor(); fan != nil {
		active := fan.Active()
		s.FanActive = &active
	}
	if o.light != nil {
		on := o.lightOn.Load()
		s.LightOn = &on
	}
	return s
}

// TemperatureLabels maps probe keys to their display labels.
func (o *Orchestrator) TemperatureLabels() map[string]string {
	labels := make(map[string]string, len(o.probes))
	for key, p := range o.probes {
		labels[key] = p.label
	}
	return labels
}

func (o *Orchestrator) deviceStatus() DeviceStatus {
	switch o.connState() {
	case stateConnecting:
		return StatusInitializing
	case stateConnected:
		if o.homing.Load() {
			return StatusInitializing
		}
		return StatusConnected
	default:
		return StatusDisconnected
	}
}
