package middleware

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Tracing is a middleware that starts an OpenTelemetry server span for each request using
// the globally registered tracer provider. Spans are named "<METHOD> <PATH>".
func Tracing(operation string, opts ...otelhttp.Option) Middleware {
	opts = append([]otelhttp.Option{
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	}, opts...)

	return func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, operation, opts...)
	}
}
