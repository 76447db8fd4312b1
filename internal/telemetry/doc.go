// Package telemetry fans focuser state out to external listeners.
//
// A Publisher samples the orchestrator's status snapshot every loop_delay
// and hands it to each configured Sink (the MQTT client, the WebSocket hub)
// and, when configured, writes temperature, position and fan points to a
// Metrics backend (InfluxDB).
//
// The Publisher also implements focuser.Notifier. Events are queued without
// blocking the command that raised them and delivered from the Run loop;
// when the queue is full the event is dropped and logged.
package telemetry
