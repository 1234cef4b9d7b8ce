package middleware

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/Suhaibinator/SPipeline/pkg/common"
	"go.uber.org/zap"
)

// Use the Middleware type from the common package
type Middleware = common.Middleware

// SlowRequestThreshold is the duration above which Logging reports a request at Warn level.
const SlowRequestThreshold = time.Second

// Chain chains multiple middlewares together into one
func Chain(middlewares ...Middleware) Middleware {
	return func(next http.Handler) http.Handler {
		return common.NewMiddlewareChain(middlewares...).Then(next)
	}
}

// Recovery is the exception handling middleware. It recovers from panics raised further
// down the pipeline, logs them, and produces a 500 response. In development the panic and
// stack are written to the client; otherwise errorHandler renders the error page. A nil
// errorHandler falls back to a plain text response.
//
// http.ErrAbortHandler is re-raised so net/http can abort the connection as intended.
func Recovery(logger *zap.Logger, errorHandler http.Handler, development bool) Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				// Recovery usually runs outside RequestID, so the id is only visible on the
				// response header at this point.
				requestID := GetRequestID(r)
				if requestID == "" {
					if requestID = w.Header().Get(RequestIDHeader); requestID != "" {
						r = r.WithContext(context.WithValue(r.Context(), requestIDKey{}, requestID))
					}
				}

				stack := debug.Stack()
				logger.Error("Panic recovered",
					zap.Any("panic", rec),
					zap.ByteString("stack", stack),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.String("request_id", requestID),
				)

				switch {
				case development:
					http.Error(w, fmt.Sprintf("panic: %v\n\n%s", rec, stack), http.StatusInternalServerError)
				case errorHandler != nil:
					errorHandler.ServeHTTP(w, r)
				default:
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// Logging is a middleware that logs completed requests. The level follows the outcome:
// server errors at Error, client errors and slow requests at Warn, everything else at Info.
func Logging(logger *zap.Logger) Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := newStatusWriter(w)

			next.ServeHTTP(sw, r)

			duration := time.Since(start)
			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", sw.statusCode),
				zap.Duration("duration", duration),
				zap.Int64("bytes", sw.bytesWritten),
				zap.String("remote_addr", remoteAddress(r)),
				zap.String("user_agent", r.UserAgent()),
			}
			if id := GetRequestID(r); id != "" {
				fields = append([]zap.Field{zap.String("request_id", id)}, fields...)
			}

			switch {
			case sw.statusCode >= 500:
				logger.Error("Server error", fields...)
			case sw.statusCode >= 400:
				logger.Warn("Client error", fields...)
			case duration > SlowRequestThreshold:
				logger.Warn("Slow request", fields...)
			default:
				logger.Info("Request", fields...)
			}
		})
	}
}
