package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// DefaultHSTSMaxAge is the max-age used when HSTS is given a non-positive duration.
const DefaultHSTSMaxAge = 30 * 24 * time.Hour

// DefaultSecurityHeaders returns the headers SecurityHeaders sets when called with nil.
func DefaultSecurityHeaders() map[string]string {
	return map[string]string{
		"X-Content-Type-Options":  "nosniff",
		"X-Frame-Options":         "DENY",
		"Referrer-Policy":         "strict-origin-when-cross-origin",
		"Content-Security-Policy": "default-src 'self'",
	}
}

// SecurityHeaders sets a fixed set of response headers before calling next. The values are
// written up front so that later stages and handlers can still replace them.
func SecurityHeaders(headers map[string]string) Middleware {
	if headers == nil {
		headers = DefaultSecurityHeaders()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			for k, v := range headers {
				if h.Get(k) == "" {
					h.Set(k, v)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// HSTS adds Strict-Transport-Security to responses served over TLS. Loopback hosts are
// skipped so local development is not pinned to HTTPS.
func HSTS(maxAge time.Duration, includeSubdomains bool) Middleware {
	if maxAge <= 0 {
		maxAge = DefaultHSTSMaxAge
	}
	value := "max-age=" + strconv.FormatInt(int64(maxAge/time.Second), 10)
	if includeSubdomains {
		value += "; includeSubDomains"
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.TLS != nil && !isLoopbackHost(r.Host) {
				w.Header().Set("Strict-Transport-Security", value)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// HTTPSRedirect redirects plain HTTP requests to the same URL over HTTPS with a
// 307 Temporary Redirect. Requests already forwarded as https by a proxy are passed through.
// httpsPort 0 or 443 produces a URL without an explicit port.
func HTTPSRedirect(httpsPort int) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
				next.ServeHTTP(w, r)
				return
			}

			host := r.Host
			if h, _, err := net.SplitHostPort(host); err == nil {
				host = h
			}
			host = strings.Trim(host, "[]")
			if strings.Contains(host, ":") {
				host = "[" + host + "]"
			}
			if httpsPort != 0 && httpsPort != 443 {
				host = fmt.Sprintf("%s:%d", host, httpsPort)
			}

			target := "https://" + host + r.URL.RequestURI()
			http.Redirect(w, r, target, http.StatusTemporaryRedirect)
		})
	}
}

func isLoopbackHost(host string) bool {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.Trim(host, "[]")
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
