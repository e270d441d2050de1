// Package agent is the facade over the automation catalog.
//
// It composes the token gate (internal/auth), the versioned store
// (internal/automation) and the execution engine (internal/execution),
// and fans successful operations out to the audit trail, MQTT lifecycle
// events and InfluxDB execution metrics when those are configured.
package agent
