package app

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWithRequestLogging_PassthroughAndStatusCapture(t *testing.T) {
	t.Parallel()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	h := WithRequestLogging(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}), log)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rr.Code != http.StatusTeapot {
		t.Fatalf("status=%d want=%d", rr.Code, http.StatusTeapot)
	}
	if rr.Body.String() != "short and stout" {
		t.Fatalf("body=%q", rr.Body.String())
	}
}

func TestLoggingResponseWriter_DefaultsTo200(t *testing.T) {
	t.Parallel()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	h := WithRequestLogging(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		// Implicit WriteHeader(200) on first Write.
		_, _ = w.Write([]byte("ok"))
	}), log)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d want=%d", rr.Code, http.StatusOK)
	}
}

func TestLoggingResponseWriter_Unwrap(t *testing.T) {
	t.Parallel()

	rr := httptest.NewRecorder()
	lrw := &loggingResponseWriter{ResponseWriter: rr, status: http.StatusOK}

	if lrw.Unwrap() != rr {
		t.Fatalf("Unwrap did not return the underlying writer")
	}

	// The websocket upgrade path needs http.Hijacker discovery to not be
	// masked by the wrapper; a recorder cannot hijack, so this must error
	// rather than panic.
	if _, _, err := lrw.Hijack(); err == nil {
		t.Fatalf("expected hijack error on non-hijackable writer")
	}
}
