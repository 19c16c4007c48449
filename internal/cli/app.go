package cli

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/karanuppal/halo/internal/config"
	"github.com/karanuppal/halo/internal/orchestrator"
	"github.com/karanuppal/halo/internal/store"
	"github.com/karanuppal/halo/internal/telemetry"
)

// app is the process wiring shared by every command that touches the
// database.
type app struct {
	cfg    config.Config
	logger *slog.Logger
	store  *store.Store
	orch   *orchestrator.Orchestrator

	closers []func() error
}

// openApp loads configuration, opens the database and builds the
// orchestrator with the configured collaborators.
func openApp(ctx context.Context, cmd *cobra.Command, opts *RootOptions) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load configuration", err)
	}
	if opts.Database != "" {
		cfg.DBPath = opts.Database
	}
	if err := cfg.Validate(); err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	logger := cfg.BuildLogger(cmd.ErrOrStderr(), opts.Verbose)
	a := &app{cfg: cfg, logger: logger}

	shutdown, err := telemetry.Setup(ctx, telemetry.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to set up tracing", err)
	}
	a.closers = append(a.closers, func() error { return shutdown(context.Background()) })

	extractor, err := cfg.BuildExtractor(logger)
	if err != nil {
		a.Close()
		return nil, WrapExitError(ExitCommandError, "failed to build intent extractor", err)
	}

	logger.Debug("opening database", "path", cfg.DBPath)
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		a.Close()
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	a.store = st
	a.closers = append(a.closers, st.Close)

	locker, closeLocker := cfg.BuildLocker(logger)
	a.closers = append(a.closers, closeLocker)

	a.orch = orchestrator.New(st, extractor, cfg.BuildReorderAdapter(), cfg.BuildBookingAdapter(),
		orchestrator.WithLogger(logger),
		orchestrator.WithMetrics(telemetry.MustMetrics()),
		orchestrator.WithLocker(locker),
		orchestrator.WithConfidenceThreshold(cfg.ConfidenceThreshold),
		orchestrator.WithTimeWindowCount(cfg.TimeWindowCount))
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if err := errors.Join(errs...); err != nil {
		a.logger.Error("error during shutdown", "error", err)
		return err
	}
	return nil
}

// withApp runs fn against a freshly opened app.
func withApp(cmd *cobra.Command, opts *RootOptions, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := openApp(ctx, cmd, opts)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}
