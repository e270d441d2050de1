// Package mqtt publishes runbook lifecycle events to an MQTT broker.
//
// Events are JSON documents on runbook/automation/{id}/{event}, where event
// is created, updated or executed. The client also keeps a retained
// online/offline document on runbook/system/status, backed by a Last Will
// so crashes are visible to subscribers.
//
// Usage:
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.PublishJSON(mqtt.Topics{}.AutomationEvent(7, mqtt.EventCreated), evt)
package mqtt
