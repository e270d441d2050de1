package agent

import (
	"time"

	"github.com/nerrad567/runbook-core/internal/automation"
	"github.com/nerrad567/runbook-core/internal/infrastructure/mqtt"
)

// Event is the JSON payload published on runbook/automation/{id}/{event}.
type Event struct {
	AutomationID int                   `json:"automation_id"`
	Event        string                `json:"event"`
	Actor        string                `json:"actor,omitempty"`
	Version      int                   `json:"version,omitempty"`
	ScriptType   automation.ScriptType `json:"script_type,omitempty"`
	ScriptHash   string                `json:"script_hash,omitempty"`
	Success      *bool                 `json:"success,omitempty"`
	Error        string                `json:"error,omitempty"`
	DurationMS   int64                 `json:"duration_ms,omitempty"`
	Timestamp    time.Time             `json:"timestamp"`
}

func (a *Agent) publish(id int, event string, evt Event) {
	if a.events == nil {
		return
	}
	evt.AutomationID = id
	evt.Event = event
	evt.Timestamp = a.now().UTC()

	topic := mqtt.Topics{}.AutomationEvent(id, event)
	if err := a.events.PublishJSON(topic, evt); err != nil {
		a.logger.Warn("publishing event", "topic", topic, "error", err)
	}
}
