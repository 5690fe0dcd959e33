package commands

import (
	"context"
	"os/user"
	"time"

	"github.com/spf13/cobra"

	"github.com/monctl/monctl/pkg/client"
	"github.com/monctl/monctl/pkg/config"
	"github.com/monctl/monctl/pkg/engine"
	"github.com/monctl/monctl/pkg/stores"
	"github.com/monctl/monctl/pkg/telemetry"
)

// app bundles what a command needs: configuration, telemetry and lazily opened backends.
type app struct {
	cfg   *config.Config
	tel   *telemetry.Telemetry
	store *stores.SQLiteStore
}

// newApp loads configuration and starts telemetry for cmd.
func newApp(cmd *cobra.Command) (*app, error) {
	path := configPath
	if path == "" {
		path = config.Discover()
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	tcfg := telemetry.DefaultConfig()
	tcfg.ServiceVersion = buildVersion
	tcfg.Logging.Level = cfg.Telemetry.LogLevel
	tcfg.Logging.Format = cfg.Telemetry.LogFormat
	if verbose {
		tcfg.Logging.Level = "debug"
	}
	tcfg.Metrics.ListenAddress = cfg.Telemetry.MetricsAddress
	if metricsAddr != "" {
		tcfg.Metrics.ListenAddress = metricsAddr
	}
	if cfg.Telemetry.TracingExporter != "none" {
		tcfg.Tracing.Enabled = true
		tcfg.Tracing.Exporter = cfg.Telemetry.TracingExporter
		tcfg.Tracing.Endpoint = cfg.Telemetry.TracingEndpoint
	}

	tel, err := telemetry.NewTelemetry(tcfg)
	if err != nil {
		return nil, err
	}
	tel.Logger.WithField("path", cfg.Path).Debug("Configuration loaded")

	if err := tel.StartMetricsServer(cmd.Context()); err != nil {
		return nil, err
	}

	return &app{cfg: cfg, tel: tel}, nil
}

// close releases backends and flushes telemetry.
func (a *app) close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.tel.Logger.WithError(err).Warn("Failed to close run history")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.tel.Shutdown(ctx); err != nil {
		a.tel.Logger.WithError(err).Warn("Failed to flush telemetry")
	}
}

// openStore opens and migrates the run history database.
func (a *app) openStore(ctx context.Context) (*stores.SQLiteStore, error) {
	if a.store != nil {
		return a.store, nil
	}
	store, err := stores.Open(ctx, a.cfg.Store.Path)
	if err != nil {
		return nil, err
	}
	a.store = store
	return store, nil
}

// loadResources reads every resource definition from the configured paths.
func (a *app) loadResources() ([]engine.Resource, error) {
	return config.LoadResources(a.cfg.Resources.Paths...)
}

// newClient builds the monitoring service client.
func (a *app) newClient() (*client.Client, error) {
	logger := a.tel.Logger.NewComponentLogger("client").Zerolog()
	return client.New(client.Config{
		BaseURL:   a.cfg.API.URL,
		Token:     a.cfg.API.Token,
		Timeout:   a.cfg.API.Timeout,
		RateLimit: a.cfg.API.RateLimit,
		Burst:     a.cfg.API.Burst,
		UserAgent: a.userAgent(),
		Logger:    &logger,
	})
}

func (a *app) userAgent() string {
	if a.cfg.API.UserAgent != "" {
		return a.cfg.API.UserAgent
	}
	return client.DefaultUserAgent + "/" + buildVersion
}

// newSyncer wires the executor with retry policy, telemetry and an optional store.
func (a *app) newSyncer(applier engine.Applier, store engine.RunStore) (*engine.Syncer, error) {
	policy, err := a.cfg.Execution.RetryPolicy(a.tel.Logger)
	if err != nil {
		return nil, err
	}

	opts := append(a.tel.SyncerOptions(),
		engine.WithRetryPolicy(policy),
		engine.WithSyncConcurrency(a.cfg.Execution.MaxConcurrency),
	)
	if store != nil {
		opts = append(opts, engine.WithRunStore(store))
	}
	return engine.NewSyncer(applier, opts...), nil
}

// currentUser names the person or system starting a run.
func currentUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "unknown"
}
