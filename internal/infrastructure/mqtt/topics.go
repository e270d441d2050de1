package mqtt

import (
	"fmt"
	"strconv"
	"strings"
)

// Topic prefixes for runbook traffic.
const (
	TopicPrefix           = "runbook"
	TopicPrefixAutomation = "runbook/automation"
	TopicPrefixSystem     = "runbook/system"
)

// Automation lifecycle events.
const (
	EventCreated  = "created"
	EventUpdated  = "updated"
	EventExecuted = "executed"
)

// Topics provides builders for runbook MQTT topics.
//
//	topic := mqtt.Topics{}.AutomationEvent(7, mqtt.EventExecuted)
//	// Returns: "runbook/automation/7/executed"
type Topics struct{}

// AutomationEvent returns the topic for one lifecycle event of an automation.
func (Topics) AutomationEvent(id int, event string) string {
	return fmt.Sprintf("%s/%d/%s", TopicPrefixAutomation, id, event)
}

// AutomationEvents returns a wildcard matching every event of one automation.
//
// Example: runbook/automation/7/+
func (Topics) AutomationEvents(id int) string {
	return fmt.Sprintf("%s/%d/+", TopicPrefixAutomation, id)
}

// AllAutomationEvents returns a wildcard matching every automation event.
func (Topics) AllAutomationEvents() string {
	return TopicPrefixAutomation + "/#"
}

// SystemStatus returns the retained online/offline status topic.
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}

// ParseAutomationTopic extracts the automation ID and event from a topic
// built by AutomationEvent.
func ParseAutomationTopic(topic string) (id int, event string, ok bool) {
	rest, found := strings.CutPrefix(topic, TopicPrefixAutomation+"/")
	if !found {
		return 0, "", false
	}
	idStr, event, found := strings.Cut(rest, "/")
	if !found || event == "" || strings.Contains(event, "/") {
		return 0, "", false
	}
	id, err := strconv.Atoi(idStr)
	if err != nil || id <= 0 {
		return 0, "", false
	}
	return id, event, true
}
