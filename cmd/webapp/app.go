package main

import (
	"fmt"
	"net/http"

	"github.com/Suhaibinator/SPipeline/pkg/config"
	"github.com/Suhaibinator/SPipeline/pkg/middleware"
	"github.com/Suhaibinator/SPipeline/pkg/pages"
	"github.com/Suhaibinator/SPipeline/pkg/router"
	"github.com/Suhaibinator/SPipeline/web"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// newLogger builds the zap logger for the configured environment and level.
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.Server.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("parsing log level: %w", err)
	}

	zc := zap.NewProductionConfig()
	if cfg.IsDevelopment() {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = level

	return zc.Build()
}

// newRouter wires the pages, static assets and optional /metrics endpoint behind the
// request pipeline.
func newRouter(cfg *config.Config, logger *zap.Logger, registry *prometheus.Registry) (*router.Router, error) {
	renderer, err := pages.NewTemplateRenderer(web.TemplatesFS())
	if err != nil {
		return nil, err
	}

	rc := router.NewRouterConfig(cfg, logger)
	rc.ErrorHandler = &pages.ErrorPage{Renderer: renderer, Logger: logger}

	if cfg.Metrics.Enabled {
		metrics, err := middleware.NewPrometheusMetrics(registry, cfg.Metrics.Namespace)
		if err != nil {
			return nil, fmt.Errorf("registering metrics: %w", err)
		}
		rc.Metrics = metrics
	}

	r := router.NewRouter(rc)

	r.RegisterRoute(router.RouteConfig{
		Path:    "/",
		Methods: []string{http.MethodGet, http.MethodHead},
		Handler: pages.NewIndexPage(cfg.Features, renderer, logger),
	})
	r.RegisterRoute(router.RouteConfig{
		Path:    "/privacy",
		Methods: []string{http.MethodGet, http.MethodHead},
		Handler: &pages.StaticPage{Name: "privacy", Title: "Privacy Policy", Renderer: renderer, Logger: logger},
	})
	r.RegisterRoute(router.RouteConfig{
		Path:      "/secure",
		Protected: true,
		Handler:   &pages.SecurePage{Renderer: renderer, Logger: logger},
	})
	if cfg.Metrics.Enabled {
		r.RegisterRoute(router.RouteConfig{
			Path:    cfg.Metrics.Path,
			Handler: middleware.PrometheusHandler(registry),
		})
	}
	r.ServeStatic(config.StaticPathPrefix, web.StaticFS())

	return r, nil
}

// newServer creates the HTTP server with the configured timeouts.
func newServer(cfg *config.Config, handler http.Handler, logger *zap.Logger) *http.Server {
	return &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		ErrorLog:     zap.NewStdLog(logger),
	}
}
