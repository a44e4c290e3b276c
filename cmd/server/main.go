// Command server runs the strategy execution engine's HTTP/SSE API: it
// loads configuration, wires the session registry, metrics, and the
// strategy-session coordinator, and serves until told to shut down.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tradelayout/strategy-engine/internal/api"
	"github.com/tradelayout/strategy-engine/internal/config"
	"github.com/tradelayout/strategy-engine/internal/data"
	"github.com/tradelayout/strategy-engine/internal/fno"
	"github.com/tradelayout/strategy-engine/internal/metrics"
	"github.com/tradelayout/strategy-engine/internal/session"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (YAML/JSON/TOML)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg.Logging.Level, cfg.Logging.Encoding)
	defer logger.Sync()

	logger.Info("starting strategy engine",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.String("scheduler_mode", cfg.Scheduler.Mode),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calendar, err := fno.LoadCalendar(cfg.Data.ExpiryCalendarFile)
	if err != nil {
		logger.Fatal("failed to load expiry calendar", zap.Error(err))
	}

	tickStore, err := data.NewStore(logger, cfg.Data.Dir)
	if err != nil {
		logger.Fatal("failed to open tick store", zap.Error(err))
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(prometheus.DefaultRegisterer)
	}

	registry := session.NewRegistry(logger, cfg.Session.IdleTTL)
	go registry.Run(ctx, time.Minute)

	coordinator := NewCoordinator(logger, cfg, registry, calendar, tickStore, m)
	server := api.NewServer(logger, cfg, registry, coordinator, m)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.Start(); err != nil {
			logger.Error("api server error", zap.Error(err))
		}
	}()

	logger.Info("strategy engine started",
		zap.String("http", fmt.Sprintf("http://%s:%d/api/v1", cfg.Server.Host, cfg.Server.Port)),
	)

	<-sigChan
	logger.Info("shutdown signal received")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Stop(shutdownCtx); err != nil {
		logger.Error("error during server shutdown", zap.Error(err))
	}

	logger.Info("strategy engine stopped")
}

func setupLogger(level, encoding string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	if encoding == "" {
		encoding = "json"
	}

	cfg := zap.Config{
		Level:       zap.NewAtomicLevelAt(zapLevel),
		Development: false,
		Encoding:    encoding,
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "time",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.LowercaseLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.SecondsDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return logger
}
