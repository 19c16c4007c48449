package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/karanuppal/halo/internal/httpapi"
)

const shutdownTimeout = 10 * time.Second

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr string

	// ready, when set, receives the bound address once the listener is up.
	ready chan<- string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Long: `Serve the command API over HTTP until interrupted.

The listen address comes from HALO_LISTEN_ADDR unless --addr is given.
SIGINT or SIGTERM drains in-flight requests before exiting.

Example:
  halo serve --db ./halo.db
  halo serve --addr :9090`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (default $HALO_LISTEN_ADDR)")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	cmd.SetContext(ctx)

	return withApp(cmd, opts.RootOptions, func(ctx context.Context, a *app) error {
		addr := opts.Addr
		if addr == "" {
			addr = a.cfg.ListenAddr
		}
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to listen", err)
		}

		api := httpapi.NewServer(a.orch,
			httpapi.WithLogger(a.logger),
			httpapi.WithHealth(a.store))
		srv := &http.Server{
			Handler:           api.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errc := make(chan error, 1)
		go func() {
			errc <- srv.Serve(ln)
		}()

		a.logger.Info("server started", "addr", ln.Addr().String(), "db", a.cfg.DBPath)
		fmt.Fprintf(cmd.OutOrStdout(), "Listening on http://%s\n", ln.Addr())
		if opts.ready != nil {
			opts.ready <- ln.Addr().String()
		}

		select {
		case err := <-errc:
			if !errors.Is(err, http.ErrServerClosed) {
				return WrapExitError(ExitFailure, "server error", err)
			}
			return nil
		case <-ctx.Done():
		}

		a.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return WrapExitError(ExitFailure, "shutdown failed", err)
		}
		a.logger.Info("server stopped gracefully")
		return nil
	})
}
