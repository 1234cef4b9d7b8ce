// Package config loads the application settings and feature flags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Config is the top-level configuration. It is loaded once at startup and never modified
// afterwards; components receive the sections they need by value.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Features Features       `mapstructure:"features"`
	Security SecurityConfig `mapstructure:"security"`
	ClientIP ClientIPConfig `mapstructure:"client_ip"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
	Throttle ThrottleConfig `mapstructure:"throttle"`
	Auth     AuthConfig     `mapstructure:"auth"`
}

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	Environment     string        `mapstructure:"environment"`
	LogLevel        string        `mapstructure:"log_level"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	TLSCertFile     string        `mapstructure:"tls_cert_file"`
	TLSKeyFile      string        `mapstructure:"tls_key_file"`
}

// Features are the boolean flags gating optional behavior.
type Features struct {
	// ShowDebugInfo makes pages display a debug message.
	ShowDebugInfo bool `mapstructure:"show_debug_info"`
	// EnableLogging adds the request logging stage to the pipeline.
	EnableLogging bool `mapstructure:"enable_logging"`
}

// SecurityConfig controls HSTS and HTTPS redirection.
type SecurityConfig struct {
	HSTSMaxAge            time.Duration `mapstructure:"hsts_max_age"`
	HSTSIncludeSubdomains bool          `mapstructure:"hsts_include_subdomains"`
	HTTPSRedirect         bool          `mapstructure:"https_redirect"`
	HTTPSPort             int           `mapstructure:"https_port"`
}

// ClientIPConfig controls where the client address is read from.
type ClientIPConfig struct {
	Source     string `mapstructure:"source"`
	TrustProxy bool   `mapstructure:"trust_proxy"`
}

// MetricsConfig controls Prometheus metrics.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Path      string `mapstructure:"path"`
	Namespace string `mapstructure:"namespace"`
}

// TracingConfig controls OpenTelemetry tracing.
type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
}

// ThrottleConfig controls request pacing. Zero disables it.
type ThrottleConfig struct {
	RequestsPerSecond int `mapstructure:"requests_per_second"`
}

// AuthConfig lists the users allowed on protected pages and their bearer tokens.
// Keys are user names; viper lower-cases them.
type AuthConfig struct {
	Users map[string]string `mapstructure:"users"`
}

// IsDevelopment reports whether the server runs in the development environment.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Server.Environment, EnvironmentDevelopment)
}

// Load reads configuration with the following precedence:
//  1. Environment variables (SPIPELINE_ prefix, _ as separator)
//  2. The file at explicitPath if non-empty, otherwise ./appsettings.{json,yaml,toml} if present
//  3. Built-in defaults
//
// An explicit path that does not exist is an error; a missing default file is not.
//
// Keys are snake_case (features.show_debug_info). The feature flags are also accepted under
// their type names, Features.ShowDebugInfo and Features.EnableLogging; the snake_case key
// wins when a file has both.
func Load(explicitPath string) (*Config, error) {
	v := viper.New()

	setViperDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if explicitPath != "" {
		v.SetConfigFile(explicitPath)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName(DefaultConfigName)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicitPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	if err := applyKeyAliases(v); err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg, viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	)); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	cfg.Server.Environment = strings.ToLower(cfg.Server.Environment)
	cfg.Server.LogLevel = strings.ToLower(cfg.Server.LogLevel)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// keyAliases maps alternative file keys to the canonical keys they stand for.
var keyAliases = map[string]string{
	"features.showdebuginfo": "features.show_debug_info",
	"features.enablelogging": "features.enable_logging",
}

// applyKeyAliases copies values found under an alias in the config file to the canonical
// key. The copy goes into the file layer, so environment variables still take precedence.
func applyKeyAliases(v *viper.Viper) error {
	for alias, key := range keyAliases {
		if !v.InConfig(alias) || v.InConfig(key) {
			continue
		}
		section, name, _ := strings.Cut(key, ".")
		if err := v.MergeConfigMap(map[string]any{
			section: map[string]any{name: v.Get(alias)},
		}); err != nil {
			return fmt.Errorf("applying config key %s: %w", alias, err)
		}
	}
	return nil
}

// setViperDefaults registers every known key with viper so that env var binding
// works for all fields even when no config file is present.
func setViperDefaults(v *viper.Viper) {
	d := DefaultConfig()

	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.environment", d.Server.Environment)
	v.SetDefault("server.log_level", d.Server.LogLevel)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.idle_timeout", d.Server.IdleTimeout)
	v.SetDefault("server.tls_cert_file", d.Server.TLSCertFile)
	v.SetDefault("server.tls_key_file", d.Server.TLSKeyFile)

	v.SetDefault("features.show_debug_info", d.Features.ShowDebugInfo)
	v.SetDefault("features.enable_logging", d.Features.EnableLogging)

	v.SetDefault("security.hsts_max_age", d.Security.HSTSMaxAge)
	v.SetDefault("security.hsts_include_subdomains", d.Security.HSTSIncludeSubdomains)
	v.SetDefault("security.https_redirect", d.Security.HTTPSRedirect)
	v.SetDefault("security.https_port", d.Security.HTTPSPort)

	v.SetDefault("client_ip.source", d.ClientIP.Source)
	v.SetDefault("client_ip.trust_proxy", d.ClientIP.TrustProxy)

	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.path", d.Metrics.Path)
	v.SetDefault("metrics.namespace", d.Metrics.Namespace)

	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	v.SetDefault("tracing.service_name", d.Tracing.ServiceName)

	v.SetDefault("throttle.requests_per_second", d.Throttle.RequestsPerSecond)
}
