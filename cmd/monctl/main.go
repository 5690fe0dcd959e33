package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/monctl/monctl/cmd/monctl/commands"
)

// Version information (set via ldflags during build)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// logLevelEnv selects the level of the bootstrap logger used before a config is loaded.
const logLevelEnv = "MONCTL_LOG_LEVEL"

func main() {
	log.Logger = newBootstrapLogger(os.Getenv(logLevelEnv))

	// Cancel the root context on the first interrupt so in-flight syncs finish their
	// current requests and record the run; a second interrupt exits immediately.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info().Msg("Received interrupt signal, finishing in-flight requests...")
		cancel()

		<-sigChan
		log.Warn().Msg("Received second interrupt signal, exiting")
		os.Exit(130)
	}()

	if err := commands.Execute(ctx, Version, Commit, BuildDate); err != nil {
		log.Error().Err(err).Msg("Command execution failed")
		os.Exit(1)
	}
}

// newBootstrapLogger builds the human-readable stderr logger. The level applies to this
// logger only; command loggers take theirs from monctl.yaml and --verbose.
func newBootstrapLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(lvl).
		With().
		Timestamp().
		Logger()
}
