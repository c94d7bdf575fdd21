package cli

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/eshaffer321/receipt-reconciler/internal/api"
)

func newServeCommand(global *GlobalFlags) *cobra.Command {
	flags := &ServeFlags{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Serve the reconciliation API and Prometheus metrics.

Example:
  reconciler serve
  reconciler serve --port 9000 --config config.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return RunServe(cmd.Context(), cmd.ErrOrStderr(), global, flags)
		},
	}

	flags.Bind(cmd)
	return cmd
}

// RunServe runs the API server until ctx is cancelled.
func RunServe(ctx context.Context, logOut io.Writer, global *GlobalFlags, flags *ServeFlags) error {
	a, err := global.open(logOut, "api")
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	// Create API config
	apiCfg := api.Config{
		Port:           a.cfg.API.Port,
		AllowedOrigins: a.cfg.API.AllowedOrigins,
	}
	if flags.Port > 0 {
		apiCfg.Port = flags.Port
	}

	// Create and start server
	server := api.NewServer(apiCfg, a.service, a.recorder, a.logger)

	// Handle graceful shutdown
	done := make(chan struct{})
	go func() {
		<-ctx.Done()
		a.logger.Info("received shutdown signal")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("server shutdown error", slog.Any("error", err))
		}
		close(done)
	}()

	// Start server (blocks until shutdown)
	if err := server.Start(); err != nil {
		return err
	}

	<-done
	a.logger.Info("server stopped")
	return nil
}
