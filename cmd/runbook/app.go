package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/nerrad567/runbook-core/internal/agent"
	"github.com/nerrad567/runbook-core/internal/audit"
	"github.com/nerrad567/runbook-core/internal/auth"
	"github.com/nerrad567/runbook-core/internal/automation"
	"github.com/nerrad567/runbook-core/internal/execution"
	"github.com/nerrad567/runbook-core/internal/infrastructure/config"
	"github.com/nerrad567/runbook-core/internal/infrastructure/database"
	"github.com/nerrad567/runbook-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/runbook-core/internal/infrastructure/logging"
	"github.com/nerrad567/runbook-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/runbook-core/internal/process"
	"github.com/nerrad567/runbook-core/migrations"
)

// Default configuration file path, used only when it exists.
const defaultConfigPath = "configs/config.yaml"

// app holds the wired components for one command invocation.
type app struct {
	cfg    *config.Config
	log    *logging.Logger
	db     *database.DB
	store  *automation.Store
	auth   *auth.Manager
	agent  *agent.Agent
	mqtt   *mqtt.Client
	influx *influxdb.Client
}

// resolveConfigPath picks the config file: flag, then RUNBOOK_CONFIG, then
// the default path if present. An empty result means defaults plus
// environment overrides.
func resolveConfigPath(flag string) string {
	if flag != "" {
		return flag
	}
	if path := os.Getenv("RUNBOOK_CONFIG"); path != "" {
		return path
	}
	if _, err := os.Stat(defaultConfigPath); err == nil {
		return defaultConfigPath
	}
	return ""
}

// openApp loads configuration and wires every component. Logs go to logOut.
func openApp(ctx context.Context, configPath string, logOut io.Writer) (a *app, err error) {
	cfg, err := config.Load(resolveConfigPath(configPath))
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	log := logging.New(cfg.Logging, version, logOut)
	a = &app{cfg: cfg, log: log}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	a.db, err = openDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err = a.db.Migrate(ctx, migrations.FS); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	a.auth, err = auth.NewManager(auth.NewUserRepository(a.db.DB), auth.ManagerConfig{
		Secret:   cfg.Security.JWT.Secret,
		TokenTTL: cfg.TokenTTL(),
	})
	if err != nil {
		return nil, fmt.Errorf("creating auth manager: %w", err)
	}

	backend, err := openBackend(cfg.Catalog)
	if err != nil {
		return nil, err
	}
	a.store = automation.NewStore(backend)
	a.store.SetLogger(log.With("component", "catalog"))
	if err = a.store.Load(ctx); err != nil {
		backend.Close() //nolint:errcheck // already failing
		a.store = nil
		return nil, err
	}

	engine, err := newEngine(cfg, a.store, a.auth, log)
	if err != nil {
		return nil, err
	}

	a.agent, err = agent.New(a.store, engine, a.auth, agent.Config{AuthRequired: cfg.Security.AuthRequired})
	if err != nil {
		return nil, fmt.Errorf("creating agent: %w", err)
	}
	a.agent.SetLogger(log.With("component", "agent"))
	a.agent.SetAuditRepository(audit.NewSQLiteRepository(a.db.DB))

	a.connectOptional(ctx)
	return a, nil
}

func openDatabase(ctx context.Context, cfg *config.Config) (*database.DB, error) {
	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return db, nil
}

func openBackend(cfg config.CatalogConfig) (automation.Backend, error) {
	switch cfg.Backend {
	case config.BackendBolt:
		b, err := automation.NewBoltBackend(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("opening catalog: %w", err)
		}
		return b, nil
	default:
		return automation.NewFileBackend(cfg.Path), nil
	}
}

func newEngine(cfg *config.Config, store *automation.Store, mgr *auth.Manager, log *logging.Logger) (*execution.Engine, error) {
	var authorizer execution.Authorizer
	if cfg.Security.AuthRequired {
		authorizer = mgr
	}
	engine := execution.NewEngine(store, authorizer, cfg.ExecutionTimeout())
	engine.SetLogger(log.With("component", "execution"))

	runner := process.NewRunner(cfg.Execution.MaxOutputBytes)
	runner.SetLogger(log.With("component", "process"))
	shell, err := execution.NewShellRunner(cfg.Execution.Shell, runner)
	if err != nil {
		return nil, fmt.Errorf("configuring shell runner: %w", err)
	}
	engine.Register(automation.ScriptShell, shell)

	lua := execution.NewLuaRunner()
	lua.SetMaxStringBytes(cfg.Execution.MaxOutputBytes)
	lua.SetLogger(log.With("component", "lua"))
	engine.Register(automation.ScriptLua, lua)

	return engine, nil
}

// connectOptional attaches MQTT and InfluxDB when enabled. Connection
// failures are logged; the catalog works without them.
func (a *app) connectOptional(ctx context.Context) {
	if a.cfg.MQTT.Enabled {
		client, err := mqtt.Connect(a.cfg.MQTT)
		if err != nil {
			a.log.Warn("MQTT unavailable, events disabled", "error", err)
		} else {
			client.SetLogger(a.log)
			a.mqtt = client
			a.agent.SetEventPublisher(client)
		}
	}

	client, err := influxdb.Connect(ctx, a.cfg.InfluxDB)
	switch {
	case errors.Is(err, influxdb.ErrDisabled):
	case err != nil:
		a.log.Warn("InfluxDB unavailable, metrics disabled", "error", err)
	default:
		client.SetOnError(func(err error) {
			a.log.Warn("InfluxDB write failed", "error", err)
		})
		a.influx = client
		a.agent.SetMetricsWriter(client)
	}
}

// Close releases everything openApp acquired, in reverse order.
func (a *app) Close() {
	if a.influx != nil {
		a.influx.Close() //nolint:errcheck // never fails
	}
	if a.mqtt != nil {
		a.mqtt.Close() //nolint:errcheck // never fails
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Error("closing catalog", "error", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Error("closing database", "error", err)
		}
	}
}
