// Package logging provides structured logging for the runbook service.
//
// It wraps log/slog so that every record carries the service name and
// build version.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stderr"   # stderr, stdout, none
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0", os.Stderr)
//	logger.Info("automation added", "id", 3)
//	logger.Error("persisting catalog failed", "error", err)
//
// Never log tokens or passwords.
package logging
