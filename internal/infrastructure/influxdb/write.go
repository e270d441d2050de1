package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// MeasurementExecutions holds one point per automation run.
const MeasurementExecutions = "automation_executions"

// Execution describes one finished automation run.
type Execution struct {
	AutomationID int
	ScriptType   string
	Success      bool
	Duration     time.Duration
	At           time.Time
}

// executionPoint builds the line-protocol point for e.
func executionPoint(e Execution) *write.Point {
	at := e.At
	if at.IsZero() {
		at = time.Now()
	}
	return write.NewPoint(
		MeasurementExecutions,
		map[string]string{
			"automation_id": strconv.Itoa(e.AutomationID),
			"script_type":   e.ScriptType,
			"success":       strconv.FormatBool(e.Success),
		},
		map[string]interface{}{
			"duration_ms": float64(e.Duration) / float64(time.Millisecond),
		},
		at,
	)
}

// WriteExecution records an automation run. The write is non-blocking.
//
// Example:
//
//	client.WriteExecution(influxdb.Execution{
//	    AutomationID: 7,
//	    ScriptType:   "bash",
//	    Success:      true,
//	    Duration:     120 * time.Millisecond,
//	})
func (c *Client) WriteExecution(e Execution) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(executionPoint(e))
}
