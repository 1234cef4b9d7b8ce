package middleware

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSecurityHeaders(t *testing.T) {
	handler := SecurityHeaders(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "SAMEORIGIN")
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))

	if got := rr.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("Expected X-Content-Type-Options %q, got %q", "nosniff", got)
	}
	if got := rr.Header().Get("X-Frame-Options"); got != "SAMEORIGIN" {
		t.Errorf("Expected handler override %q, got %q", "SAMEORIGIN", got)
	}
	if got := rr.Header().Get("Content-Security-Policy"); got == "" {
		t.Errorf("Expected a Content-Security-Policy header")
	}
}

func TestSecurityHeadersCustom(t *testing.T) {
	handler := SecurityHeaders(map[string]string{"X-Custom": "1"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))

	if rr.Header().Get("X-Custom") != "1" {
		t.Errorf("Expected X-Custom header")
	}
	if rr.Header().Get("X-Frame-Options") != "" {
		t.Errorf("Expected only the custom headers")
	}
}

func TestHSTS(t *testing.T) {
	handler := HSTS(time.Hour, true)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	tests := []struct {
		name string
		host string
		tls  bool
		want string
	}{
		{name: "tls", host: "example.com", tls: true, want: "max-age=3600; includeSubDomains"},
		{name: "plain http", host: "example.com", tls: false, want: ""},
		{name: "localhost", host: "localhost:5001", tls: true, want: ""},
		{name: "loopback ip", host: "127.0.0.1", tls: true, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.Host = tt.host
			if tt.tls {
				req.TLS = &tls.ConnectionState{}
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if got := rr.Header().Get("Strict-Transport-Security"); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestHSTSDefaultMaxAge(t *testing.T) {
	handler := HSTS(0, false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Host = "example.com"
	req.TLS = &tls.ConnectionState{}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if got := rr.Header().Get("Strict-Transport-Security"); got != "max-age=2592000" {
		t.Errorf("Expected 30 day max-age, got %q", got)
	}
}

func TestHTTPSRedirect(t *testing.T) {
	tests := []struct {
		name     string
		port     int
		host     string
		target   string
		location string
	}{
		{name: "default port", port: 0, host: "example.com:8080", target: "/a?b=c", location: "https://example.com/a?b=c"},
		{name: "explicit port", port: 5001, host: "example.com", target: "/", location: "https://example.com:5001/"},
		{name: "ipv6", port: 443, host: "[::1]:8080", target: "/x", location: "https://[::1]/x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			handler := HTTPSRedirect(tt.port)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
			}))

			req := httptest.NewRequest("GET", tt.target, nil)
			req.Host = tt.host
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if called {
				t.Errorf("Expected the handler not to be called")
			}
			if rr.Code != http.StatusTemporaryRedirect {
				t.Errorf("Expected status code %d, got %d", http.StatusTemporaryRedirect, rr.Code)
			}
			if got := rr.Header().Get("Location"); got != tt.location {
				t.Errorf("Expected Location %q, got %q", tt.location, got)
			}
		})
	}
}

func TestHTTPSRedirectPassesSecureRequests(t *testing.T) {
	calls := 0
	handler := HTTPSRedirect(0)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))

	tlsReq := httptest.NewRequest("GET", "/", nil)
	tlsReq.TLS = &tls.ConnectionState{}
	handler.ServeHTTP(httptest.NewRecorder(), tlsReq)

	proxied := httptest.NewRequest("GET", "/", nil)
	proxied.Header.Set("X-Forwarded-Proto", "https")
	handler.ServeHTTP(httptest.NewRecorder(), proxied)

	if calls != 2 {
		t.Errorf("Expected 2 pass-through calls, got %d", calls)
	}
}
