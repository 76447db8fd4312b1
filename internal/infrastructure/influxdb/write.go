package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementTemperature = "focuser_temperature"
	MeasurementPosition    = "focuser_position"
	MeasurementFan         = "focuser_fan"
)

// WriteTemperature records one probe reading in degrees Celsius.
func (c *Client) WriteTemperature(probe string, celsius float64) {
	c.WritePoint(MeasurementTemperature,
		map[string]string{"probe": probe},
		map[string]interface{}{"celsius": celsius},
	)
}

// WritePosition records a channel's position and motion status.
//
// Parameters:
//   - channel: Channel key (e.g. "tube")
//   - position: Current position in travel units
//   - setPosition: Last commanded position, nil while not homed
//   - status: Status label (e.g. "IDLE", "MOVING")
func (c *Client) WritePosition(channel string, position float64, setPosition *float64, status string) {
	fields := map[string]interface{}{
		"position": position,
		"status":   status,
	}
	if setPosition != nil {
		fields["set_position"] = *setPosition
	}
	c.WritePoint(MeasurementPosition, map[string]string{"channel": channel}, fields)
}

// WriteFan records the fan state.
func (c *Client) WriteFan(active bool) {
	c.WritePoint(MeasurementFan, nil, map[string]interface{}{"active": active})
}

// WritePoint writes a point stamped now, adding the focuser tag.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	c.WritePointWithTime(measurement, tags, fields, time.Now())
}

// WritePointWithTime writes a point with an explicit timestamp, adding the
// focuser tag. It is a no-op when disconnected.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	all := make(map[string]string, len(tags)+1)
	for k, v := range tags {
		all[k] = v
	}
	all["focuser"] = c.focuserID

	c.writeAPI.WritePoint(write.NewPoint(measurement, all, fields, timestamp))
}
