package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newObservedLogger(level zap.AtomicLevel) (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return zap.New(core), logs
}

// slowHandler advances the mock clock by d before writing status and body.
func slowHandler(mock *clock.Mock, d time.Duration, status int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.Add(d)
		w.WriteHeader(status)
		_, _ = w.Write([]byte("done"))
	})
}

func TestProcessingTimeMeasuresDownstream(t *testing.T) {
	logger, _ := newObservedLogger(zap.NewAtomicLevelAt(zap.InfoLevel))
	mock := clock.NewMock()

	handler := ProcessingTime(logger, WithClock(mock))(slowHandler(mock, 50*time.Millisecond, http.StatusOK))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))

	// Result() snapshots the headers at the time WriteHeader reached the recorder, so the
	// header must have been set before the response was committed.
	res := rr.Result()
	if got := res.Header.Values(ElapsedTimeHeader); len(got) != 1 || got[0] != "50" {
		t.Errorf("Expected a single %s header of %q, got %v", ElapsedTimeHeader, "50", got)
	}
	if res.StatusCode != http.StatusOK {
		t.Errorf("Expected status code %d, got %d", http.StatusOK, res.StatusCode)
	}
	if rr.Body.String() != "done" {
		t.Errorf("Expected body %q, got %q", "done", rr.Body.String())
	}
}

func TestProcessingTimeConcreteScenario(t *testing.T) {
	logger, logs := newObservedLogger(zap.NewAtomicLevelAt(zap.InfoLevel))

	handler := ProcessingTime(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "203.0.113.5:51234"
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	res := rr.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("Expected status code %d, got %d", http.StatusOK, res.StatusCode)
	}
	elapsed, err := strconv.ParseFloat(res.Header.Get(ElapsedTimeHeader), 64)
	if err != nil {
		t.Fatalf("Expected a decimal %s header, got %q: %v", ElapsedTimeHeader, res.Header.Get(ElapsedTimeHeader), err)
	}
	if elapsed < 50 {
		t.Errorf("Expected elapsed time >= 50ms, got %v", elapsed)
	}

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("Expected 2 log entries, got %d", len(entries))
	}
	if entries[0].Message != "Request: GET / from 203.0.113.5" {
		t.Errorf("Unexpected request log %q", entries[0].Message)
	}
	msg := entries[1].Message
	if !strings.HasPrefix(msg, "Response: 200 in ") || !strings.HasSuffix(msg, "ms") {
		t.Fatalf("Unexpected response log %q", msg)
	}
	logged, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimPrefix(msg, "Response: 200 in "), "ms"), 64)
	if err != nil {
		t.Fatalf("Could not parse elapsed time from %q: %v", msg, err)
	}
	if logged < 50 {
		t.Errorf("Expected logged elapsed time >= 50ms, got %v", logged)
	}
}

func TestProcessingTimeLogOrder(t *testing.T) {
	logger, logs := newObservedLogger(zap.NewAtomicLevelAt(zap.InfoLevel))
	mock := clock.NewMock()

	handler := ProcessingTime(logger, WithClock(mock))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Info("handler")
		w.WriteHeader(http.StatusNotFound)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", "/missing", nil))

	entries := logs.All()
	want := []string{"Request: POST /missing from 192.0.2.1", "handler", "Response: 404 in 0ms"}
	if len(entries) != len(want) {
		t.Fatalf("Expected %d log entries, got %d", len(want), len(entries))
	}
	for i, w := range want {
		if entries[i].Message != w {
			t.Errorf("Expected log %d to be %q, got %q", i, w, entries[i].Message)
		}
	}

	fields := entries[2].ContextMap()
	if fields["status"] != int64(http.StatusNotFound) {
		t.Errorf("Expected status field %d, got %v", http.StatusNotFound, fields["status"])
	}
}

func TestProcessingTimeIndependentRequests(t *testing.T) {
	mock := clock.NewMock()
	delays := []time.Duration{10 * time.Millisecond, 30 * time.Millisecond}
	call := 0

	handler := ProcessingTime(zap.NewNop(), WithClock(mock))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.Add(delays[call])
		call++
	}))

	for i, want := range []string{"10", "30"} {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))
		if got := rr.Result().Header.Values(ElapsedTimeHeader); len(got) != 1 || got[0] != want {
			t.Errorf("Request %d: expected %s %q, got %v", i, ElapsedTimeHeader, want, got)
		}
	}
}

func TestProcessingTimeFractionalMillis(t *testing.T) {
	mock := clock.NewMock()
	handler := ProcessingTime(nil, WithClock(mock))(slowHandler(mock, 1500*time.Microsecond, http.StatusOK))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))

	if got := rr.Result().Header.Get(ElapsedTimeHeader); got != "1.5" {
		t.Errorf("Expected %s %q, got %q", ElapsedTimeHeader, "1.5", got)
	}
}

func TestProcessingTimeNestedStagesSetOneHeader(t *testing.T) {
	mock := clock.NewMock()
	inner := ProcessingTime(nil, WithClock(mock))
	outer := ProcessingTime(nil, WithClock(mock))

	handler := Chain(outer, inner)(slowHandler(mock, 20*time.Millisecond, http.StatusOK))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))

	if got := rr.Result().Header.Values(ElapsedTimeHeader); len(got) != 1 || got[0] != "20" {
		t.Errorf("Expected a single %s of %q, got %v", ElapsedTimeHeader, "20", got)
	}
}

func TestProcessingTimeCustomHeader(t *testing.T) {
	mock := clock.NewMock()
	handler := ProcessingTime(nil, WithClock(mock), WithHeaderName("X-Took"))(slowHandler(mock, 7*time.Millisecond, http.StatusOK))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))

	res := rr.Result()
	if got := res.Header.Get("X-Took"); got != "7" {
		t.Errorf("Expected X-Took %q, got %q", "7", got)
	}
	if res.Header.Get(ElapsedTimeHeader) != "" {
		t.Errorf("Expected no %s header when renamed", ElapsedTimeHeader)
	}
}

func TestProcessingTimeFlushedResponseFailsLoudly(t *testing.T) {
	logger, logs := newObservedLogger(zap.NewAtomicLevelAt(zap.InfoLevel))
	mock := clock.NewMock()

	handler := ProcessingTime(logger, WithClock(mock))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("chunk"))
		w.(http.Flusher).Flush()
		mock.Add(5 * time.Millisecond)
		_, _ = w.Write([]byte("-more"))
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/stream", nil))

	if got := rr.Result().Header.Get(ElapsedTimeHeader); got != "" {
		t.Errorf("Expected no %s header on a flushed response, got %q", ElapsedTimeHeader, got)
	}
	if rr.Body.String() != "chunk-more" {
		t.Errorf("Expected body %q, got %q", "chunk-more", rr.Body.String())
	}
	if !rr.Flushed {
		t.Errorf("Expected the recorder to be flushed")
	}

	errorLogs := logs.FilterLevelExact(zap.ErrorLevel).FilterMessage("Elapsed time header not sent").All()
	if len(errorLogs) != 1 {
		t.Fatalf("Expected 1 error log, got %d", len(errorLogs))
	}
	if msg, _ := errorLogs[0].ContextMap()["error"].(string); !strings.Contains(msg, ErrResponseCommitted.Error()) {
		t.Errorf("Expected error field to mention %q, got %q", ErrResponseCommitted, msg)
	}
}

func TestProcessingTimePropagatesPanic(t *testing.T) {
	logger, logs := newObservedLogger(zap.NewAtomicLevelAt(zap.InfoLevel))
	mock := clock.NewMock()

	handler := ProcessingTime(logger, WithClock(mock))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("partial"))
		mock.Add(5 * time.Millisecond)
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	func() {
		defer func() {
			if rec := recover(); rec != "boom" {
				t.Errorf("Expected panic %q to propagate, got %v", "boom", rec)
			}
		}()
		handler.ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))
	}()

	if rr.Body.Len() != 0 {
		t.Errorf("Expected buffered body to be discarded, got %q", rr.Body.String())
	}
	if rr.Header().Get(ElapsedTimeHeader) != "" {
		t.Errorf("Expected no %s header after a panic", ElapsedTimeHeader)
	}
	if logs.FilterMessage("Response: aborted after 5ms").Len() != 1 {
		t.Errorf("Expected an abort log entry, got %v", logs.All())
	}
}

func TestProcessingTimePanicRestoresHeaders(t *testing.T) {
	handler := Chain(
		RequestID(),
		ProcessingTime(nil),
	)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "7")
		w.Header().Set("Content-Disposition", `attachment; filename="report.csv"`)
		w.Header().Add(RequestIDHeader, "downstream")
		_, _ = w.Write([]byte("partial"))
		panic("boom")
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(RequestIDHeader, "req-9")
	rr := httptest.NewRecorder()
	func() {
		defer func() { _ = recover() }()
		handler.ServeHTTP(rr, req)
	}()

	for _, key := range []string{"Content-Length", "Content-Disposition"} {
		if got := rr.Header().Get(key); got != "" {
			t.Errorf("Expected %s to be dropped after a panic, got %q", key, got)
		}
	}
	if got := rr.Header().Values(RequestIDHeader); len(got) != 1 || got[0] != "req-9" {
		t.Errorf("Expected headers set before the stage to survive, got %s %v", RequestIDHeader, got)
	}
}

func TestProcessingTimeLargeBody(t *testing.T) {
	body := strings.Repeat("0123456789abcdef", 1<<16)
	handler := ProcessingTime(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for i := 0; i < len(body); i += 4096 {
			_, _ = w.Write([]byte(body[i : i+4096]))
		}
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/big", nil))

	if rr.Body.Len() != len(body) || rr.Body.String() != body {
		t.Errorf("Expected %d body bytes intact, got %d", len(body), rr.Body.Len())
	}
	if rr.Result().Header.Get(ElapsedTimeHeader) == "" {
		t.Errorf("Expected %s header on a large buffered body", ElapsedTimeHeader)
	}
}

func TestProcessingTimeConcurrentRequests(t *testing.T) {
	logger, logs := newObservedLogger(zap.NewAtomicLevelAt(zap.InfoLevel))
	handler := ProcessingTime(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Path", r.URL.Path)
		time.Sleep(5 * time.Millisecond)
		_, _ = w.Write([]byte(r.URL.Path))
	}))

	const n = 16
	t.Run("group", func(t *testing.T) {
		for i := 0; i < n; i++ {
			path := "/req/" + strconv.Itoa(i)
			t.Run(path, func(t *testing.T) {
				t.Parallel()

				rr := httptest.NewRecorder()
				handler.ServeHTTP(rr, httptest.NewRequest("GET", path, nil))

				res := rr.Result()
				values := res.Header.Values(ElapsedTimeHeader)
				if len(values) != 1 {
					t.Fatalf("Expected exactly one %s header, got %v", ElapsedTimeHeader, values)
				}
				if ms, err := strconv.ParseFloat(values[0], 64); err != nil || ms < 5 {
					t.Errorf("Expected elapsed >= 5ms, got %q", values[0])
				}
				if res.Header.Get("X-Path") != path || rr.Body.String() != path {
					t.Errorf("Expected response for %s, got header %q body %q", path, res.Header.Get("X-Path"), rr.Body.String())
				}
			})
		}
	})

	if got := logs.FilterMessageSnippet("Response: 200 in ").Len(); got != n {
		t.Errorf("Expected %d response log entries, got %d", n, got)
	}
}

func TestProcessingTimeUsesResolvedClientIP(t *testing.T) {
	logger, logs := newObservedLogger(zap.NewAtomicLevelAt(zap.InfoLevel))

	handler := Chain(
		RequestID(),
		ClientIPMiddleware(&IPConfig{Source: IPSourceXForwardedFor, TrustProxy: true}),
		ProcessingTime(logger),
	)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest("GET", "/about", nil)
	req.Header.Set("X-Forwarded-For", "198.51.100.7, 10.0.0.1")
	req.Header.Set(RequestIDHeader, "req-42")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("Expected 2 log entries, got %d", len(entries))
	}
	if entries[0].Message != "Request: GET /about from 198.51.100.7" {
		t.Errorf("Unexpected request log %q", entries[0].Message)
	}
	for _, e := range entries {
		if e.ContextMap()["request_id"] != "req-42" {
			t.Errorf("Expected request_id field %q on %q, got %v", "req-42", e.Message, e.ContextMap()["request_id"])
		}
	}
}

func TestTimingWriterSetHeaderAfterCommit(t *testing.T) {
	rr := httptest.NewRecorder()
	tw := newTimingWriter(rr)

	if err := tw.SetHeader("X-Before", "1"); err != nil {
		t.Fatalf("Unexpected error before commit: %v", err)
	}
	if err := tw.commit(); err != nil {
		t.Fatalf("Unexpected commit error: %v", err)
	}
	if !tw.Committed() {
		t.Fatalf("Expected writer to be committed")
	}

	err := tw.SetHeader("X-After", "2")
	if !errors.Is(err, ErrResponseCommitted) {
		t.Errorf("Expected ErrResponseCommitted, got %v", err)
	}
	if rr.Result().Header.Get("X-After") != "" {
		t.Errorf("Expected X-After not to reach the client")
	}
	if rr.Result().Header.Get("X-Before") != "1" {
		t.Errorf("Expected X-Before to reach the client")
	}
}

func TestTimingWriterStatus(t *testing.T) {
	rr := httptest.NewRecorder()
	tw := newTimingWriter(rr)

	if tw.Status() != http.StatusOK {
		t.Errorf("Expected default status %d, got %d", http.StatusOK, tw.Status())
	}

	tw.WriteHeader(http.StatusCreated)
	tw.WriteHeader(http.StatusTeapot)
	if tw.Status() != http.StatusCreated {
		t.Errorf("Expected first status %d to win, got %d", http.StatusCreated, tw.Status())
	}
	if rr.Code != http.StatusOK || rr.Body.Len() != 0 {
		t.Errorf("Expected nothing written before commit")
	}

	_, _ = tw.Write([]byte("x"))
	_ = tw.commit()
	_ = tw.commit()
	if rr.Code != http.StatusCreated || rr.Body.String() != "x" {
		t.Errorf("Expected %d %q, got %d %q", http.StatusCreated, "x", rr.Code, rr.Body.String())
	}
	if tw.Unwrap() != rr {
		t.Errorf("Expected Unwrap to return the underlying writer")
	}
}
