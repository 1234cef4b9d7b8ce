// Package middleware provides the pipeline stages used by the SPipeline framework.
package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
)

// IPSourceType defines the source for client IP addresses
type IPSourceType string

const (
	// IPSourceRemoteAddr uses the request's RemoteAddr field
	IPSourceRemoteAddr IPSourceType = "remote_addr"

	// IPSourceXForwardedFor uses the X-Forwarded-For header
	IPSourceXForwardedFor IPSourceType = "x_forwarded_for"

	// IPSourceXRealIP uses the X-Real-IP header
	IPSourceXRealIP IPSourceType = "x_real_ip"
)

// IPConfig defines configuration for IP extraction
type IPConfig struct {
	// Source specifies where to extract the client IP from
	Source IPSourceType

	// TrustProxy allows proxy headers to be used at all. When false, RemoteAddr is
	// always used regardless of Source.
	TrustProxy bool
}

// DefaultIPConfig returns the default IP configuration: the connection address, with proxy
// headers ignored.
func DefaultIPConfig() *IPConfig {
	return &IPConfig{
		Source:     IPSourceRemoteAddr,
		TrustProxy: false,
	}
}

type clientIPKey struct{}

// ClientIP returns the client IP stored by ClientIPMiddleware, or "" if none is stored.
func ClientIP(r *http.Request) string {
	if ip, ok := r.Context().Value(clientIPKey{}).(string); ok {
		return ip
	}
	return ""
}

// ClientIPMiddleware creates a middleware that resolves the client IP from the request
// and stores it in the request context.
func ClientIPMiddleware(config *IPConfig) Middleware {
	if config == nil {
		config = DefaultIPConfig()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), clientIPKey{}, extractClientIP(r, config))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func extractClientIP(r *http.Request, config *IPConfig) string {
	var ip string

	if config.TrustProxy {
		switch config.Source {
		case IPSourceXForwardedFor:
			// The leftmost entry is the original client.
			if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
				ip = strings.TrimSpace(strings.Split(xff, ",")[0])
			}
		case IPSourceXRealIP:
			ip = strings.TrimSpace(r.Header.Get("X-Real-IP"))
		}
	}

	if ip == "" {
		ip = r.RemoteAddr
	}
	return cleanIP(ip)
}

// cleanIP removes the port and any IPv6 brackets from an address.
func cleanIP(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return strings.TrimSuffix(strings.TrimPrefix(addr, "["), "]")
}
