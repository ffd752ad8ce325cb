package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/ankittk/coord/internal/config"
	"github.com/ankittk/coord/internal/httpapi"
	"github.com/ankittk/coord/internal/otel"
)

func newServeCmd() *cobra.Command {
	var (
		addr       string
		apiKey     string
		dbDriver   string
		dbURL      string
		enableOtel bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the read-only HTTP API (tasks, sessions, workload, cycles, metrics)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			home := config.MustHomeFrom(ctx)
			settings, err := config.LoadSettings(home)
			if err != nil {
				return err
			}

			opts := httpapi.ServerOptions{
				Home:           home,
				Addr:           addr,
				APIKey:         apiKey,
				DBDriver:       dbDriver,
				DBURL:          dbURL,
				Members:        settings.Members,
				ConflictWindow: settings.ConflictWindow(),
			}
			if enableOtel {
				handler, err := otel.InitMeterProvider(ctx, "coord")
				if err != nil {
					return fmt.Errorf("init metrics: %w", err)
				}
				opts.MetricsHandler = handler
				opts.UseOtelHTTP = true
			}

			app, err := httpapi.NewApp(opts)
			if err != nil {
				return err
			}
			if enableOtel {
				taskCount := func() map[string]int64 {
					counts, err := app.Store.CountTasksByStatus(context.Background())
					if err != nil {
						return nil
					}
					return counts
				}
				if err := otel.InitMetricsWithTaskCount(ctx, taskCount); err != nil {
					return fmt.Errorf("init metrics: %w", err)
				}
			}

			errCh := make(chan error, 1)
			go func() {
				errCh <- app.Server.ListenAndServe()
			}()
			slog.Info("http api listening", "addr", addr)

			select {
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return app.Server.Shutdown(shutdownCtx)
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			}
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:3549", "Listen address")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "Require X-API-Key on API routes")
	cmd.Flags().StringVar(&dbDriver, "db-driver", "sqlite", "Store driver: sqlite or postgres")
	cmd.Flags().StringVar(&dbURL, "db-url", "", "DB connection string (for postgres; or set DATABASE_URL)")
	cmd.Flags().BoolVar(&enableOtel, "otel", true, "Enable OpenTelemetry metrics (Prometheus exporter)")
	return cmd
}
