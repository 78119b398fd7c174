package supervisor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRequestShutdownSuccess(t *testing.T) {
	var gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewNegotiator(time.Second, discardLogger())
	if !n.RequestShutdown(context.Background(), srv.URL+"/api/shutdown") {
		t.Error("expected shutdown request to succeed")
	}
	if gotMethod != http.MethodPost {
		t.Errorf("method = %q, want POST", gotMethod)
	}
}

func TestRequestShutdownNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := NewNegotiator(time.Second, discardLogger())
	if n.RequestShutdown(context.Background(), srv.URL) {
		t.Error("expected failure for a 500 response")
	}
}

func TestRequestShutdownConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	url := srv.URL
	srv.Close()

	n := NewNegotiator(time.Second, discardLogger())
	if n.RequestShutdown(context.Background(), url) {
		t.Error("expected failure when nothing is listening")
	}
}

func TestRequestShutdownTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer srv.Close()

	n := NewNegotiator(50*time.Millisecond, discardLogger())
	if n.RequestShutdown(context.Background(), srv.URL) {
		t.Error("expected failure when the backend hangs")
	}
}
