package router

import (
	"net/http"

	"github.com/Suhaibinator/SPipeline/pkg/common"
	"github.com/Suhaibinator/SPipeline/pkg/config"
	"github.com/Suhaibinator/SPipeline/pkg/middleware"
	"github.com/benbjohnson/clock"
	"go.uber.org/ratelimit"
	"go.uber.org/zap"
)

// RouterConfig defines the global configuration for the router.
// It decides which stages the request pipeline is assembled from.
type RouterConfig struct {
	Logger          *zap.Logger                   // Logger for all router operations
	Development     bool                          // Development mode: no HSTS, panic details on the error response
	Features        config.Features               // Feature flags, copied at construction
	Security        config.SecurityConfig         // HSTS and HTTPS redirection settings
	IPConfig        *middleware.IPConfig          // Configuration for client IP extraction
	ErrorHandler    http.Handler                  // Error page written when a handler panics
	NotFoundHandler http.Handler                  // Handler for unmatched paths, http.NotFoundHandler if nil
	Authorizer      middleware.Authorizer         // Authorizer for protected routes; nil rejects every protected request
	Metrics         *middleware.PrometheusMetrics // Prometheus request metrics; nil disables the stage
	EnableTracing   bool                          // Wrap requests in OpenTelemetry server spans
	ServiceName     string                        // Operation name used for server spans
	Limiter         ratelimit.Limiter             // Request pacing; nil disables throttling
	Clock           clock.Clock                   // Clock for the processing-time stage, the real clock if nil
	Middlewares     []common.Middleware           // Extra global middlewares, innermost in the pipeline
}

// RouteConfig defines a single route.
type RouteConfig struct {
	Path        string              // Route path in httprouter syntax, e.g. /users/:id
	Methods     []string            // HTTP methods this route handles, GET if empty
	Protected   bool                // Require authorization for this route
	Handler     http.Handler        // Handler serving the route
	Middlewares []common.Middleware // Middlewares applied to this specific route
}

// Middleware is an alias for common.Middleware.
type Middleware = common.Middleware

// NewRouterConfig derives a RouterConfig from the application settings. The Prometheus
// metrics, error page and not found handler depend on objects the caller owns and are left
// for the caller to set.
func NewRouterConfig(cfg *config.Config, logger *zap.Logger) RouterConfig {
	rc := RouterConfig{
		Logger:      logger,
		Development: cfg.IsDevelopment(),
		Features:    cfg.Features,
		Security:    cfg.Security,
		IPConfig: &middleware.IPConfig{
			Source:     middleware.IPSourceType(cfg.ClientIP.Source),
			TrustProxy: cfg.ClientIP.TrustProxy,
		},
		Authorizer:    &middleware.BearerTokenAuthorizer{Users: cfg.Auth.Users},
		EnableTracing: cfg.Tracing.Enabled,
		ServiceName:   cfg.Tracing.ServiceName,
	}
	if cfg.Throttle.RequestsPerSecond > 0 {
		rc.Limiter = middleware.NewLimiter(cfg.Throttle.RequestsPerSecond, clock.New())
	}
	return rc
}
