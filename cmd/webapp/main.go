package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Suhaibinator/SPipeline/pkg/config"
	"github.com/Suhaibinator/SPipeline/pkg/telemetry"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "path to the configuration file (default: ./appsettings.{json,yaml,toml})")
	flag.Parse()

	if err := run(*configPath); err != nil {
		log.Fatalf("webapp: %v", err)
	}
}

func run(configPath string) error {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if cfg.Tracing.Enabled {
		shutdownTracer, err := telemetry.InitTracer(cfg.Tracing.ServiceName, logger)
		if err != nil {
			return fmt.Errorf("initializing tracer: %w", err)
		}
		defer func() {
			if err := shutdownTracer(context.Background()); err != nil {
				logger.Error("Failed to shut down tracer", zap.Error(err))
			}
		}()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	r, err := newRouter(cfg, logger, registry)
	if err != nil {
		return err
	}
	srv := newServer(cfg, r, logger)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Server listening",
			zap.String("addr", cfg.Server.Addr),
			zap.String("environment", cfg.Server.Environment),
			zap.Bool("show_debug_info", cfg.Features.ShowDebugInfo),
			zap.Bool("enable_logging", cfg.Features.EnableLogging),
		)
		if cfg.Server.TLSCertFile != "" {
			serveErr <- srv.ListenAndServeTLS(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile)
		} else {
			serveErr <- srv.ListenAndServe()
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving: %w", err)
		}
		return nil
	case sig := <-stop:
		logger.Info("Shutdown signal received", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Shut down the router first so new requests get 503 while in-flight ones drain
	if err := r.Shutdown(ctx); err != nil {
		logger.Warn("Router shutdown incomplete", zap.Error(err))
	}
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("Server gracefully stopped")
	return nil
}
