package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/player-dossier/internal/api"
	"github.com/JakeFAU/player-dossier/internal/app"
	"github.com/JakeFAU/player-dossier/internal/config"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the metadata snapshot and built PDFs over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := resolveEnv(cmd.Context())
			if err != nil {
				return err
			}
			store, closeStore, err := app.OpenMetadata(cmd.Context(), e.cfg, e.logger)
			if err != nil {
				return err
			}
			defer closeStore()

			srv := newHTTPServer(e.cfg.Server, api.NewServer(store, e.logger).Handler())
			return serve(cmd.Context(), srv, e.logger)
		},
	}
	flags := cmd.Flags()
	flags.Int("port", 8080, "HTTP listen port")
	flags.String("output-dir", "data", "directory holding the metadata snapshot")
	flags.String("metadata-backend", "file", "metadata backend (file or postgres)")
	flags.String("postgres-dsn", "", "Postgres DSN for the postgres metadata backend")
	return cmd
}

func newHTTPServer(cfg config.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              net.JoinHostPort("", strconv.Itoa(cfg.Port)),
		Handler:           handler,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
	}
}

// serve runs srv until ctx is canceled, then drains in-flight requests.
func serve(ctx context.Context, srv *http.Server, logger *zap.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	logger.Info("shutting down http server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
