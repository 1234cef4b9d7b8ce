package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

// ElapsedTimeHeader is the response header that carries the processing time in milliseconds.
const ElapsedTimeHeader = "X-ElapsedTime"

// ErrResponseCommitted is returned when a header is set after the status line and headers
// have already been written to the client.
var ErrResponseCommitted = errors.New("response already committed")

// ProcessingTimeOption configures the ProcessingTime middleware.
type ProcessingTimeOption func(*processingTimeConfig)

type processingTimeConfig struct {
	clock  clock.Clock
	header string
}

// WithClock sets the clock used to measure elapsed time. Tests pass clock.NewMock().
func WithClock(c clock.Clock) ProcessingTimeOption {
	return func(cfg *processingTimeConfig) {
		if c != nil {
			cfg.clock = c
		}
	}
}

// WithHeaderName overrides the name of the elapsed time header.
func WithHeaderName(name string) ProcessingTimeOption {
	return func(cfg *processingTimeConfig) {
		if name != "" {
			cfg.header = name
		}
	}
}

// ProcessingTime is a middleware that measures how long the rest of the pipeline takes to
// handle a request. It logs the request, calls next exactly once, and only then computes the
// elapsed time. The response is buffered until next returns so the elapsed time header can be
// added before anything reaches the client.
//
// The whole body is held in memory until next returns, so handlers streaming large or
// unbounded responses should flush, which commits early and gives up the header.
//
// If next flushes the response itself the header can no longer be added; that is logged at
// Error level. Panics from next are not recovered: the buffered status, body and every
// header set downstream are discarded, the abort is logged, and the panic keeps unwinding
// to the caller.
func ProcessingTime(logger *zap.Logger, opts ...ProcessingTimeOption) Middleware {
	cfg := processingTimeConfig{
		clock:  clock.New(),
		header: ElapsedTimeHeader,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := GetRequestID(r)
			addr := remoteAddress(r)

			logger.Info(fmt.Sprintf("Request: %s %s from %s", r.Method, r.URL.Path, addr),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("remote_addr", addr),
				zap.String("request_id", requestID),
			)

			start := cfg.clock.Now()
			tw := newTimingWriter(w)

			completed := false
			defer func() {
				if completed {
					return
				}
				// Headers added downstream belong to the aborted response
				tw.discard()

				elapsed := cfg.clock.Since(start)
				logger.Error(fmt.Sprintf("Response: aborted after %sms", formatMillis(elapsed)),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Duration("elapsed", elapsed),
					zap.String("request_id", requestID),
				)
			}()

			next.ServeHTTP(tw, r)
			completed = true

			elapsed := cfg.clock.Since(start)
			millis := formatMillis(elapsed)

			if err := tw.SetHeader(cfg.header, millis); err != nil {
				logger.Error("Elapsed time header not sent",
					zap.Error(err),
					zap.String("header", cfg.header),
					zap.String("path", r.URL.Path),
					zap.String("request_id", requestID),
				)
			}
			if err := tw.commit(); err != nil {
				logger.Warn("Failed to write response",
					zap.Error(err),
					zap.String("path", r.URL.Path),
					zap.String("request_id", requestID),
				)
			}

			logger.Info(fmt.Sprintf("Response: %d in %sms", tw.Status(), millis),
				zap.Int("status", tw.Status()),
				zap.Duration("elapsed", elapsed),
				zap.String("request_id", requestID),
			)
		})
	}
}

// formatMillis renders d as a decimal number of milliseconds with no unit.
func formatMillis(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return strconv.FormatFloat(float64(d)/float64(time.Millisecond), 'f', -1, 64)
}

// remoteAddress prefers the address resolved by ClientIPMiddleware and falls back to the
// connection's remote address without its port.
func remoteAddress(r *http.Request) string {
	if ip := ClientIP(r); ip != "" {
		return ip
	}
	return cleanIP(r.RemoteAddr)
}
