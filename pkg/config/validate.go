package config

import (
	"fmt"
	"path"
	"strings"
)

// validate checks the Config for invalid or out-of-range values.
// It returns a combined error if any checks fail.
func validate(cfg *Config) error {
	var errs []string

	if cfg.Server.Addr == "" {
		errs = append(errs, "server.addr must not be empty")
	}
	if !isValidEnum(cfg.Server.Environment, ValidEnvironments) {
		errs = append(errs, fmt.Sprintf("server.environment must be one of %v, got %q", ValidEnvironments, cfg.Server.Environment))
	}
	if !isValidEnum(cfg.Server.LogLevel, ValidLogLevels) {
		errs = append(errs, fmt.Sprintf("server.log_level must be one of %v, got %q", ValidLogLevels, cfg.Server.LogLevel))
	}
	if cfg.Server.ShutdownTimeout < 0 {
		errs = append(errs, fmt.Sprintf("server.shutdown_timeout must be non-negative, got %s", cfg.Server.ShutdownTimeout))
	}
	if cfg.Server.ReadTimeout < 0 {
		errs = append(errs, fmt.Sprintf("server.read_timeout must be non-negative, got %s", cfg.Server.ReadTimeout))
	}
	if cfg.Server.WriteTimeout < 0 {
		errs = append(errs, fmt.Sprintf("server.write_timeout must be non-negative, got %s", cfg.Server.WriteTimeout))
	}
	if cfg.Server.IdleTimeout < 0 {
		errs = append(errs, fmt.Sprintf("server.idle_timeout must be non-negative, got %s", cfg.Server.IdleTimeout))
	}
	if (cfg.Server.TLSCertFile == "") != (cfg.Server.TLSKeyFile == "") {
		errs = append(errs, "server.tls_cert_file and server.tls_key_file must be set together")
	}

	if cfg.Security.HSTSMaxAge < 0 {
		errs = append(errs, fmt.Sprintf("security.hsts_max_age must be non-negative, got %s", cfg.Security.HSTSMaxAge))
	}
	if cfg.Security.HTTPSPort < 0 || cfg.Security.HTTPSPort > 65535 {
		errs = append(errs, fmt.Sprintf("security.https_port must be between 0 and 65535, got %d", cfg.Security.HTTPSPort))
	}

	if !isValidEnum(cfg.ClientIP.Source, ValidIPSources) {
		errs = append(errs, fmt.Sprintf("client_ip.source must be one of %v, got %q", ValidIPSources, cfg.ClientIP.Source))
	}

	if cfg.Metrics.Enabled {
		if msg := checkMetricsPath(cfg.Metrics.Path); msg != "" {
			errs = append(errs, msg)
		}
	}
	if cfg.Tracing.Enabled && cfg.Tracing.ServiceName == "" {
		errs = append(errs, "tracing.service_name must be set when tracing is enabled")
	}

	if cfg.Throttle.RequestsPerSecond < 0 {
		errs = append(errs, fmt.Sprintf("throttle.requests_per_second must be non-negative, got %d", cfg.Throttle.RequestsPerSecond))
	}

	for user, token := range cfg.Auth.Users {
		if strings.TrimSpace(token) == "" {
			errs = append(errs, fmt.Sprintf("auth.users.%s must have a non-empty token", user))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// checkMetricsPath rejects paths the router cannot register next to the page routes.
func checkMetricsPath(p string) string {
	if !strings.HasPrefix(p, "/") {
		return fmt.Sprintf("metrics.path must start with /, got %q", p)
	}
	if strings.ContainsAny(p, ":*") {
		return fmt.Sprintf("metrics.path must not contain route parameters, got %q", p)
	}
	cleaned := path.Clean(p)
	if isValidEnum(cleaned, ReservedPaths) {
		return fmt.Sprintf("metrics.path %q is used by a page", p)
	}
	if cleaned == StaticPathPrefix || strings.HasPrefix(cleaned, StaticPathPrefix+"/") {
		return fmt.Sprintf("metrics.path %q is inside the static assets prefix %s", p, StaticPathPrefix)
	}
	return ""
}

func isValidEnum(value string, valid []string) bool {
	for _, v := range valid {
		if value == v {
			return true
		}
	}
	return false
}
