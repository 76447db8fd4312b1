// Package mqtt publishes focuserd state to an MQTT broker.
//
// The daemon publishes three kinds of message under focuser/{id}:
//
//	focuser/{id}/status        retained status snapshot, every loop_delay
//	focuser/{id}/event/{kind}  lifecycle events (initialized, homed, ...)
//	focuser/{id}/online        retained online/offline marker, also the LWT
//
// The broker sets the online marker to offline through the Last Will if the
// daemon dies without closing the connection. The client reconnects with
// exponential backoff; publishes made while disconnected fail fast with
// ErrNotConnected and the next status tick catches up.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT, cfg.Focuser.ID)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.PublishJSON(client.Topics().Status(), snapshot, true)
package mqtt
