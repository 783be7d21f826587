// Command matchcore runs the matching core: it loads configuration,
// registers seed instruments, and starts the order-entry listener and
// the admin HTTP surface side by side.
package main

import (
	"context"
	"flag"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ccyyhlg/matchcore/internal/adminapi"
	"github.com/ccyyhlg/matchcore/internal/config"
	"github.com/ccyyhlg/matchcore/internal/engine"
	"github.com/ccyyhlg/matchcore/internal/session"
	"github.com/ccyyhlg/matchcore/internal/stats"
	"github.com/ccyyhlg/matchcore/internal/telemetry"
)

func main() {
	configPath := flag.String("config", "", "path to a matchcore YAML config file")
	flag.Parse()

	app := fx.New(
		fx.Supply(*configPath),
		fx.Provide(
			loadConfig,
			newLogger,
			newMetricsRegistry,
			newEngineMetrics,
			newEngine,
			newTape,
			newAdminServer,
		),
		fx.Invoke(seedInstruments, startOrderEntryListener, startAdminServer),
		fx.NopLogger,
	)
	app.Run()
}

func loadConfig(path string) (config.Config, error) {
	return config.Load(path)
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	return telemetry.NewLogger(cfg.LogLevel)
}

// newMetricsRegistry returns the process-wide default registry, which
// is the one internal/adminapi serves at /metrics.
func newMetricsRegistry() *prometheus.Registry {
	return prometheus.DefaultRegisterer.(*prometheus.Registry)
}

func newEngineMetrics(reg *prometheus.Registry) *telemetry.EngineMetrics {
	return telemetry.NewEngineMetrics(reg)
}

func newEngine(metrics *telemetry.EngineMetrics) *engine.Engine {
	return engine.New(engine.WithMetrics(metrics))
}

func newTape() *stats.Tape {
	return stats.New()
}

func newAdminServer(eng *engine.Engine, tape *stats.Tape, logger *zap.Logger) *adminapi.Server {
	return adminapi.NewServer(eng, tape, logger, 10)
}

func seedInstruments(cfg config.Config, eng *engine.Engine, logger *zap.Logger) {
	for _, ticker := range cfg.SeedInstruments {
		id := eng.AddNewInstrument(ticker)
		logger.Info("seeded instrument", zap.Uint32("instrument_id", id), zap.String("ticker", ticker))
	}
}

func startOrderEntryListener(lc fx.Lifecycle, cfg config.Config, eng *engine.Engine, tape *stats.Tape, logger *zap.Logger) error {
	listener, err := net.Listen(cfg.ListenNetwork, cfg.ListenAddress)
	if err != nil {
		return err
	}

	srv, err := session.NewServer(listener, eng, tape, logger, session.Config{
		PoolSize:   cfg.SessionPoolSize,
		FrameRate:  rate.Limit(cfg.FrameRatePerSecond),
		FrameBurst: cfg.FrameBurst,
	})
	if err != nil {
		return err
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("order-entry listener starting",
				zap.String("network", cfg.ListenNetwork), zap.String("address", cfg.ListenAddress))
			go func() {
				if err := srv.Serve(context.Background()); err != nil {
					logger.Error("order-entry listener stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			srv.Close()
			return listener.Close()
		},
	})
	return nil
}

func startAdminServer(lc fx.Lifecycle, cfg config.Config, admin *adminapi.Server, logger *zap.Logger) {
	httpServer := &http.Server{Addr: cfg.AdminListenAddress, Handler: admin.Handler()}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("admin HTTP surface starting", zap.String("address", cfg.AdminListenAddress))
			go func() {
				if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Error("admin HTTP surface stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return httpServer.Shutdown(ctx)
		},
	})
}
