package influxdb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/runbook-core/internal/infrastructure/config"
)

// testConfig returns a configuration for a local dev InfluxDB.
func testConfig() config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           "http://127.0.0.1:8086",
		Token:         "runbook-dev-token",
		Org:           "runbook",
		Bucket:        "metrics",
		BatchSize:     100,
		FlushInterval: 1,
	}
}

// connectOrSkip skips the test if InfluxDB is not running.
func connectOrSkip(t *testing.T) *Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	client, err := Connect(ctx, testConfig())
	if err != nil {
		t.Skip("InfluxDB not available, skipping integration test")
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false

	_, err := Connect(context.Background(), cfg)
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	cfg := testConfig()
	cfg.URL = "http://127.0.0.1:1"

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := Connect(ctx, cfg)
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestExecutionPoint(t *testing.T) {
	at := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	p := executionPoint(Execution{
		AutomationID: 7,
		ScriptType:   "bash",
		Success:      true,
		Duration:     1500 * time.Microsecond,
		At:           at,
	})

	if p.Name() != MeasurementExecutions {
		t.Errorf("Name() = %q, want %q", p.Name(), MeasurementExecutions)
	}
	if !p.Time().Equal(at) {
		t.Errorf("Time() = %v, want %v", p.Time(), at)
	}

	tags := map[string]string{}
	for _, tag := range p.TagList() {
		tags[tag.Key] = tag.Value
	}
	want := map[string]string{"automation_id": "7", "script_type": "bash", "success": "true"}
	for k, v := range want {
		if tags[k] != v {
			t.Errorf("tag %s = %q, want %q", k, tags[k], v)
		}
	}

	fields := p.FieldList()
	if len(fields) != 1 || fields[0].Key != "duration_ms" {
		t.Fatalf("FieldList() = %+v, want duration_ms only", fields)
	}
	if fields[0].Value != 1.5 {
		t.Errorf("duration_ms = %v, want 1.5", fields[0].Value)
	}
}

func TestExecutionPoint_DefaultsTimeToNow(t *testing.T) {
	before := time.Now()
	p := executionPoint(Execution{AutomationID: 1, ScriptType: "lua"})
	if p.Time().Before(before) {
		t.Errorf("Time() = %v, want >= %v", p.Time(), before)
	}
}

func TestWriteOnClosedClientIsNoop(t *testing.T) {
	c := &Client{}
	c.WriteExecution(Execution{AutomationID: 1})
	c.Flush()
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
}

func TestWriteExecutionIntegration(t *testing.T) {
	client := connectOrSkip(t)

	var writeErr error
	client.SetOnError(func(err error) { writeErr = err })

	client.WriteExecution(Execution{AutomationID: 1, ScriptType: "bash", Success: true, Duration: time.Millisecond})
	client.Flush()

	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
	if writeErr != nil {
		t.Errorf("write error = %v", writeErr)
	}
}
