package health

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestProbeHealthyEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := NewProber(time.Second, discardLogger())
	if !p.Probe(context.Background(), srv.URL) {
		t.Error("expected probe of healthy endpoint to succeed")
	}
}

func TestProbeNon2xxStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := NewProber(time.Second, discardLogger())
	if p.Probe(context.Background(), srv.URL) {
		t.Error("expected probe of 503 endpoint to fail")
	}
}

func TestProbeConnectionRefused(t *testing.T) {
	// Bind and close to get a port nothing listens on.
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	p := NewProber(200*time.Millisecond, discardLogger())
	if p.Probe(context.Background(), url) {
		t.Error("expected probe of closed port to fail")
	}
}

func TestProbeTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(500 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := NewProber(50*time.Millisecond, discardLogger())
	if p.Probe(context.Background(), srv.URL) {
		t.Error("expected slow endpoint to time out")
	}
}

func TestPollSucceedsOnceEndpointComesUp(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := NewProber(time.Second, discardLogger())
	if !p.Poll(context.Background(), srv.URL, 5*time.Millisecond, 10) {
		t.Fatal("expected poll to succeed on the third attempt")
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("endpoint probed %d times, want 3", got)
	}
}

func TestPollExhaustsAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := NewProber(time.Second, discardLogger())
	if p.Poll(context.Background(), srv.URL, time.Millisecond, 5) {
		t.Fatal("expected poll to fail")
	}
	if got := calls.Load(); got != 5 {
		t.Errorf("endpoint probed %d times, want exactly 5", got)
	}
}

func TestPollCancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewProber(time.Second, discardLogger())
	start := time.Now()
	if p.Poll(ctx, srv.URL, time.Second, 30) {
		t.Fatal("expected poll with cancelled context to fail")
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("cancelled poll took %s, want immediate return", elapsed)
	}
}

func TestPollUntilAttemptNumbers(t *testing.T) {
	var seen []int
	ok := PollUntil(context.Background(), time.Millisecond, 3, func(attempt int) bool {
		seen = append(seen, attempt)
		return false
	})
	if ok {
		t.Fatal("expected PollUntil to fail")
	}
	if len(seen) != 3 || seen[0] != 1 || seen[2] != 3 {
		t.Errorf("attempts = %v, want [1 2 3]", seen)
	}
}

func TestPollUntilNoSleepAfterLastAttempt(t *testing.T) {
	start := time.Now()
	PollUntil(context.Background(), 200*time.Millisecond, 1, func(int) bool {
		return false
	})
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("single-attempt poll slept %s after the last attempt", elapsed)
	}
}
