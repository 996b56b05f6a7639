package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/CoachCoe/polkadot-sso/internal/app"
	"github.com/CoachCoe/polkadot-sso/tracing"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:               "serve",
	Short:             "Run the HTTP server and the expiry sweeper",
	PersistentPreRunE: loadConfig,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if cfg.TracingEnabled {
			tp, err := tracing.InitTracerProvider(cfg.OtelServiceName)
			if err != nil {
				return err
			}

			defer func() {
				if err := tp.Shutdown(context.Background()); err != nil {
					appLogger.Error(context.Background(), "TracerProvider shutdown error", err)
				}
			}()
		}

		a, err := app.New(ctx, cfg, appLogger)
		if err != nil {
			return err
		}

		defer func() {
			if err := a.Close(); err != nil {
				appLogger.Error(context.Background(), "Failed to release resources", err)
			}
		}()

		srv := a.HTTPServer()

		g, gctx := errgroup.WithContext(ctx)

		g.Go(func() error {
			appLogger.Info(gctx, "HTTP server listening", map[string]any{"addr": srv.Addr})

			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}

			return nil
		})

		g.Go(func() error {
			return a.Sweeper.Run(gctx)
		})

		g.Go(func() error {
			<-gctx.Done()
			appLogger.Info(context.Background(), "Shutting down HTTP server...")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			return srv.Shutdown(shutdownCtx)
		})

		if err := g.Wait(); err != nil {
			return err
		}

		appLogger.Info(context.Background(), "Server gracefully stopped.")

		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
