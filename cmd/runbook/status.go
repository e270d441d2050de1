package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/runbook-core/internal/infrastructure/config"
	"github.com/nerrad567/runbook-core/internal/infrastructure/database"
	"github.com/nerrad567/runbook-core/migrations"
)

const healthCheckTimeout = 5 * time.Second

// componentStatus is one line of the status report.
type componentStatus struct {
	Enabled bool   `json:"enabled"`
	Healthy bool   `json:"healthy"`
	Error   string `json:"error,omitempty"`
}

type statusReport struct {
	Version  string          `json:"version"`
	Database componentStatus `json:"database"`
	MQTT     componentStatus `json:"mqtt"`
	InfluxDB componentStatus `json:"influxdb"`

	DatabasePath   string   `json:"database_path"`
	Migrations     []string `json:"migrations"`
	CatalogBackend string   `json:"catalog_backend"`
	CatalogPath    string   `json:"catalog_path"`
	Automations    int      `json:"automations"`
	Users          int      `json:"users"`
	AuthRequired   bool     `json:"auth_required"`
}

func newStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report component health and catalog size",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(a *app) error {
				report, err := a.status(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), report)
			})
		},
	}
}

// healthChecker is implemented by the database, MQTT and InfluxDB clients.
type healthChecker interface {
	HealthCheck(ctx context.Context) error
}

func check(ctx context.Context, enabled bool, hc healthChecker) componentStatus {
	st := componentStatus{Enabled: enabled}
	if !enabled {
		return st
	}
	if hc == nil {
		st.Error = "not connected"
		return st
	}
	checkCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()
	if err := hc.HealthCheck(checkCtx); err != nil {
		st.Error = err.Error()
		return st
	}
	st.Healthy = true
	return st
}

func (a *app) status(ctx context.Context) (*statusReport, error) {
	applied, _, err := a.db.MigrationStatus(ctx, migrations.FS)
	if err != nil {
		return nil, err
	}
	users, err := a.auth.ListUsers(ctx)
	if err != nil {
		return nil, err
	}

	report := &statusReport{
		Version:        version,
		Database:       check(ctx, true, a.db),
		DatabasePath:   a.db.Path(),
		CatalogBackend: a.cfg.Catalog.Backend,
		CatalogPath:    a.cfg.Catalog.Path,
		Automations:    a.store.Count(),
		Users:          len(users),
		AuthRequired:   a.cfg.Security.AuthRequired,
		Migrations:     make([]string, 0, len(applied)),
	}
	for _, m := range applied {
		report.Migrations = append(report.Migrations, m.Version)
	}

	// Typed nil pointers must not reach the interface.
	var mq, infl healthChecker
	if a.mqtt != nil {
		mq = a.mqtt
	}
	if a.influx != nil {
		infl = a.influx
	}
	report.MQTT = check(ctx, a.cfg.MQTT.Enabled, mq)
	report.InfluxDB = check(ctx, a.cfg.InfluxDB.Enabled, infl)

	return report, nil
}

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Inspect or roll back database schema migrations",
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "List applied and pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withDatabase(cmd, func(cfg *config.Config, db *database.DB) error {
				applied, pending, err := db.MigrationStatus(cmd.Context(), migrations.FS)
				if err != nil {
					return err
				}
				out := map[string][]string{"applied": {}, "pending": {}}
				for _, m := range applied {
					out["applied"] = append(out["applied"], m.Version)
				}
				for _, m := range pending {
					out["pending"] = append(out["pending"], m.Version+"_"+m.Name)
				}
				return printJSON(cmd.OutOrStdout(), out)
			})
		},
	}

	downCmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		Long:  "Roll back the most recent migration. Any other command reapplies pending migrations on start.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withDatabase(cmd, func(cfg *config.Config, db *database.DB) error {
				if err := db.MigrateDown(cmd.Context(), migrations.FS); err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]string{"database": cfg.Database.Path, "result": "rolled back"})
			})
		},
	}

	migrateCmd.AddCommand(statusCmd, downCmd)
	return migrateCmd
}
