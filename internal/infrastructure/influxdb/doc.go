// Package influxdb records focuser telemetry in InfluxDB.
//
// It wraps the official influxdb-client-go v2 library: token
// authentication, a connectivity ping at startup and the non-blocking
// batched write API. Three measurements are written, all tagged with the
// focuser ID:
//
//	focuser_temperature  probe=<name>        celsius
//	focuser_position     channel=<key>       position, set_position, status
//	focuser_fan          -                   active
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB, cfg.Focuser.ID)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteTemperature("tube", 12.5)
//
// # Error Handling
//
// Writes never block and never return errors; batch failures are delivered
// to the SetOnError callback. Connection and health check errors are
// returned directly.
package influxdb
