package cmd

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/edgegate/edgegate/internal/core/ratelimit"
	"github.com/edgegate/edgegate/internal/core/requestlog"
	"github.com/edgegate/edgegate/internal/core/telemetry"
	"github.com/edgegate/edgegate/internal/observability"
	"github.com/edgegate/edgegate/internal/server"
	"github.com/edgegate/edgegate/internal/server/handlers"
)

var (
	servePort int
	serveHost string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gateway HTTP server",
	Long: `Start the gateway HTTP server with graceful shutdown support.

Quota admission, request snapshots, and traffic rollups all run against
the configured shared counter store. SIGINT or SIGTERM triggers a
graceful shutdown; in-flight requests get the configured drain window.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		observability.InitServerLogger("edgegate", cfg.Logging.Level)
		logger := observability.ServerLogger
		defer func() { _ = logger.Sync() }()

		logger.Info("Initializing gateway",
			zap.String("version", versionInfo.Version),
			zap.String("store_backend", cfg.Store.Backend),
			zap.String("host", cfg.Server.Host),
			zap.Int("port", cfg.Server.Port))

		counter, err := openCounter(cfg)
		if err != nil {
			logger.Error("Failed to open counter store", zap.Error(err))
			return err
		}
		defer func() { _ = counter.Close() }()

		if cfg.Store.Backend == "memory" {
			logger.Warn("Memory store cannot enforce quotas across replicas; use redis in production")
		}

		handlers.SetVersionInfo(versionInfo.Version, versionInfo.Commit, versionInfo.BuildDate)

		deps := server.Deps{
			Counter:    counter,
			Decider:    ratelimit.NewDecider(counter, logger, cfg.RateLimit.StoreTimeout),
			Aggregator: telemetry.NewAggregator(counter, logger, cfg.Telemetry.WriteTimeout),
			Correlator: requestlog.NewCorrelator(counter, logger, cfg.Requests),
			Policies:   cfg.RateLimit.Policies,
			Version:    versionInfo.Version,
		}
		srv := server.New(cfg.Server, deps)

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		errChan := make(chan error, 1)
		go func() {
			if err := srv.Start(); err != nil && err != http.ErrServerClosed {
				errChan <- err
			}
		}()

		select {
		case err := <-errChan:
			logger.Error("Server error", zap.Error(err))
			return err
		case <-ctx.Done():
		}

		shutdownTimeout := cfg.Server.ShutdownTimeout
		if shutdownTimeout <= 0 {
			shutdownTimeout = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Shutdown did not complete cleanly", zap.Error(err))
			return err
		}

		logger.Info("HTTP server stopped gracefully")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveHost, "host", "localhost", "server host")
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8080, "server port")

	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
}
