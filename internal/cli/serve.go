package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pedropauloai/claude-agent-monitor/internal/config"
	"github.com/pedropauloai/claude-agent-monitor/internal/httpapi"
	"github.com/pedropauloai/claude-agent-monitor/internal/otel"
)

func newServeCmd() *cobra.Command {
	var (
		addr       string
		apiKey     string
		dev        bool
		dbDriver   string
		dbURL      string
		heartbeat  int
		enableOtel bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the monitor daemon (event ingestion, correlation, live stream)",
		RunE: func(cmd *cobra.Command, args []string) error {
			home := config.MustHomeFrom(cmd.Context())
			if err := os.MkdirAll(home, 0o755); err != nil {
				return err
			}

			cfg, err := config.Load(home)
			if err != nil {
				return err
			}
			// Flags override config.yaml.
			if cmd.Flags().Changed("addr") {
				cfg.Addr = addr
			}
			if cmd.Flags().Changed("api-key") {
				cfg.APIKey = apiKey
			}
			if cmd.Flags().Changed("db-driver") {
				cfg.DBDriver = dbDriver
			}
			if cmd.Flags().Changed("db-url") {
				cfg.DBURL = dbURL
			}
			if cmd.Flags().Changed("heartbeat") {
				cfg.HeartbeatSeconds = heartbeat
			}
			if cfg.APIKey == "" {
				cfg.APIKey = os.Getenv("AGENT_MONITOR_API_KEY")
			}

			var metricsHandler http.Handler
			if enableOtel {
				metricsHandler, err = otel.InitMeterProvider(cmd.Context(), "agent-monitor")
				if err != nil {
					return fmt.Errorf("init metrics: %w", err)
				}
				if err := otel.InitMetrics(cmd.Context()); err != nil {
					return fmt.Errorf("init metrics: %w", err)
				}
			}

			app, err := httpapi.NewApp(httpapi.ServerOptions{
				Home:           home,
				Addr:           cfg.Addr,
				Dev:            dev,
				APIKey:         cfg.APIKey,
				DBDriver:       cfg.DBDriver,
				DBURL:          cfg.DBURL,
				Heartbeat:      time.Duration(cfg.HeartbeatSeconds) * time.Second,
				MetricsHandler: metricsHandler,
				UseOtelHTTP:    enableOtel,
			})
			if err != nil {
				return err
			}

			errCh := make(chan error, 1)
			go func() {
				slog.Info("listening", "addr", cfg.Addr, "db_driver", cfg.DBDriver)
				if err := app.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
			select {
			case err := <-errCh:
				return err
			case sig := <-sigCh:
				slog.Info("shutting down", "signal", sig.String())
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return app.Server.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", config.DefaultAddr, "Listen address")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "Require X-API-Key on requests (or set AGENT_MONITOR_API_KEY)")
	cmd.Flags().BoolVar(&dev, "dev", false, "Enable dev mode (CORS for local viewers)")
	cmd.Flags().StringVar(&dbDriver, "db-driver", config.DefaultDBDriver, "Store driver: sqlite or postgres")
	cmd.Flags().StringVar(&dbURL, "db-url", "", "DB connection string (for postgres; or set DATABASE_URL)")
	cmd.Flags().IntVar(&heartbeat, "heartbeat", config.DefaultHeartbeatSeconds, "Stream heartbeat interval in seconds")
	cmd.Flags().BoolVar(&enableOtel, "otel", true, "Enable OpenTelemetry metrics (Prometheus exporter on /metrics)")

	return cmd
}
