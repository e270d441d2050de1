// Package influxdb records automation execution metrics in InfluxDB v2.
//
// Each run becomes one point in the automation_executions measurement,
// tagged by automation_id, script_type and success, with a duration_ms
// field. Writes are batched and non-blocking (batch_size and
// flush_interval in config.yaml).
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // metrics off
//	}
//	defer client.Close()
//
//	client.WriteExecution(influxdb.Execution{AutomationID: 7, ScriptType: "bash", Success: true})
package influxdb
