// Package config handles loading and validating runbook configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with RUNBOOK_* environment variables
//   - Validation of required fields
//
// Security Considerations:
//   - Sensitive values (passwords, tokens) should be set via environment variables
//   - The config file should have restricted permissions (0600)
//   - The JWT secret has no default and must be at least 32 characters
//
// Usage:
//
//	cfg, err := config.Load("configs/runbook.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Catalog.Path)
package config
