package config

import "time"

// EnvPrefix is the prefix of environment variables overriding configuration keys.
// SPIPELINE_FEATURES_SHOW_DEBUG_INFO overrides features.show_debug_info.
const EnvPrefix = "SPIPELINE"

// DefaultConfigName is the base name of the configuration file searched in the working directory.
const DefaultConfigName = "appsettings"

// DefaultAddr is the default listen address.
const DefaultAddr = ":8080"

// DefaultEnvironment is the environment assumed when none is configured.
const DefaultEnvironment = EnvironmentProduction

// DefaultLogLevel is the default log level.
const DefaultLogLevel = "info"

// DefaultShutdownTimeout bounds how long in-flight requests are drained on shutdown.
const DefaultShutdownTimeout = 15 * time.Second

// DefaultReadTimeout is the default HTTP server read timeout.
const DefaultReadTimeout = 15 * time.Second

// DefaultWriteTimeout is the default HTTP server write timeout.
const DefaultWriteTimeout = 30 * time.Second

// DefaultIdleTimeout is the default HTTP server idle timeout.
const DefaultIdleTimeout = 60 * time.Second

// DefaultHSTSMaxAge matches the 30 day max-age browsers are usually given.
const DefaultHSTSMaxAge = 30 * 24 * time.Hour

// DefaultMetricsPath is where Prometheus metrics are served when enabled.
const DefaultMetricsPath = "/metrics"

// StaticPathPrefix is where the embedded static assets are served.
const StaticPathPrefix = "/static"

// ReservedPaths are the page routes of the site. metrics.path may not reuse them.
var ReservedPaths = []string{"/", "/privacy", "/secure"}

// DefaultServiceName names the service in metrics and traces.
const DefaultServiceName = "spipeline"

// Environment names.
const (
	EnvironmentDevelopment = "development"
	EnvironmentStaging     = "staging"
	EnvironmentProduction  = "production"
)

// ValidEnvironments lists the accepted server.environment values.
var ValidEnvironments = []string{EnvironmentDevelopment, EnvironmentStaging, EnvironmentProduction}

// ValidLogLevels lists the accepted server.log_level values.
var ValidLogLevels = []string{"debug", "info", "warn", "error"}

// ValidIPSources lists the accepted client_ip.source values.
var ValidIPSources = []string{"remote_addr", "x_forwarded_for", "x_real_ip"}

// DefaultConfig returns a Config populated with defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            DefaultAddr,
			Environment:     DefaultEnvironment,
			LogLevel:        DefaultLogLevel,
			ShutdownTimeout: DefaultShutdownTimeout,
			ReadTimeout:     DefaultReadTimeout,
			WriteTimeout:    DefaultWriteTimeout,
			IdleTimeout:     DefaultIdleTimeout,
		},
		Features: Features{
			ShowDebugInfo: false,
			EnableLogging: true,
		},
		Security: SecurityConfig{
			HSTSMaxAge:            DefaultHSTSMaxAge,
			HSTSIncludeSubdomains: false,
			HTTPSRedirect:         false,
			HTTPSPort:             0,
		},
		ClientIP: ClientIPConfig{
			Source:     "remote_addr",
			TrustProxy: false,
		},
		Metrics: MetricsConfig{
			Enabled:   false,
			Path:      DefaultMetricsPath,
			Namespace: DefaultServiceName,
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: DefaultServiceName,
		},
		Throttle: ThrottleConfig{
			RequestsPerSecond: 0,
		},
		Auth: AuthConfig{
			Users: map[string]string{},
		},
	}
}
