package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
)

type countingLimiter struct {
	takes int
}

func (l *countingLimiter) Take() time.Time {
	l.takes++
	return time.Now()
}

func TestThrottleTakesBeforeHandling(t *testing.T) {
	limiter := &countingLimiter{}
	var takesSeen int

	handler := Throttle(limiter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		takesSeen = limiter.takes
	}))

	for i := 0; i < 3; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))
	}

	if limiter.takes != 3 {
		t.Errorf("Expected 3 takes, got %d", limiter.takes)
	}
	if takesSeen != 3 {
		t.Errorf("Expected the slot to be taken before the handler ran, got %d", takesSeen)
	}
}

func TestThrottleNilLimiter(t *testing.T) {
	rr := httptest.NewRecorder()
	Throttle(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})).ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))

	if rr.Code != http.StatusNoContent {
		t.Errorf("Expected status code %d, got %d", http.StatusNoContent, rr.Code)
	}
}

func TestNewLimiterUnlimited(t *testing.T) {
	limiter := NewLimiter(0, nil)

	start := time.Now()
	for i := 0; i < 100; i++ {
		limiter.Take()
	}
	if time.Since(start) > time.Second {
		t.Errorf("Expected an unlimited limiter not to wait")
	}
}

func TestNewLimiterWithClock(t *testing.T) {
	mock := clock.NewMock()
	mock.Add(time.Hour)
	limiter := NewLimiter(10, mock)

	// The first take is never delayed.
	first := limiter.Take()
	if !first.Equal(mock.Now()) {
		t.Errorf("Expected the first take at %v, got %v", mock.Now(), first)
	}
}
