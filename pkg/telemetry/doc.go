// Package telemetry provides observability instrumentation for monctl.
//
// The telemetry package integrates structured logging (zerolog), distributed tracing
// (OpenTelemetry) and metrics (Prometheus) behind a single Telemetry value.
//
// # Usage
//
// Initialize telemetry at startup and hand it to the syncer:
//
//	cfg := telemetry.DefaultConfig()
//	cfg.Metrics.ListenAddress = ":9090"
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	if err := tel.StartMetricsServer(ctx); err != nil {
//	    return err
//	}
//
//	syncer := engine.NewSyncer(apiClient, tel.SyncerOptions()...)
//
// # Structured Logging
//
// Logger wraps zerolog and doubles as the engine's retry error sink: each
// retry report becomes a warn-level entry tagged event=retry.
//
//	logger := tel.Logger.NewComponentLogger("client")
//	logger.WithRunID(run.ID).Info("run recorded")
//
// # Metrics
//
// Metrics implements engine.Observer. Keys exposed:
//
//   - monctl_jobs_started_total
//   - monctl_jobs_finished_total{result}
//   - monctl_job_duration_seconds
//   - monctl_jobs_in_flight
//   - monctl_retries_total{kind}
//   - monctl_runs_completed_total{status,dry_run}
//   - monctl_run_duration_seconds
//   - monctl_resources_synced_total{kind,action,status}
//
// # Tracing
//
// Tracer implements engine.Tracer, producing one sync.resource span per
// resource. Exporters: "stdout", "otlp" (gRPC) and "none".
package telemetry
