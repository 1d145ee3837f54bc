package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hamed0406/watchdog/internal/domain"
)

func target(url string) domain.Target {
	return domain.Target{
		Name:           "t1",
		URL:            url,
		Method:         http.MethodGet,
		ExpectedStatus: 200,
		Timeout:        2 * time.Second,
		Enabled:        true,
	}
}

func TestHTTPChecker_Success(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
		w.Write([]byte("all good"))
	}))
	defer s.Close()

	out := NewHTTPChecker().Check(context.Background(), target(s.URL))
	if out.Status != domain.StatusSuccess {
		t.Fatalf("want success, got %+v", out)
	}
	if out.HTTPStatus != 200 {
		t.Fatalf("want status 200, got %d", out.HTTPStatus)
	}
	if out.ID == "" || out.CheckedAt.IsZero() {
		t.Fatalf("outcome identity not set: %+v", out)
	}
	if out.LatencyMS < 0 {
		t.Fatalf("latency should be >= 0, got %f", out.LatencyMS)
	}
}

func TestHTTPChecker_StatusMismatch(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", 500)
	}))
	defer s.Close()

	out := NewHTTPChecker().Check(context.Background(), target(s.URL))
	if out.Status != domain.StatusFailure {
		t.Fatalf("want failure, got %+v", out)
	}
	if out.HTTPStatus != 500 {
		t.Fatalf("want observed status 500, got %d", out.HTTPStatus)
	}
	if !strings.Contains(out.Detail, "expected status 200") {
		t.Fatalf("detail should name the mismatch, got %q", out.Detail)
	}
}

func TestHTTPChecker_ContainsCheck(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
		w.Write([]byte(`{"status":"degraded"}`))
	}))
	defer s.Close()

	tgt := target(s.URL)
	tgt.Contains = `"status":"ok"`
	out := NewHTTPChecker().Check(context.Background(), tgt)
	if out.Status != domain.StatusFailure {
		t.Fatalf("want failure on missing content, got %+v", out)
	}
	if !strings.Contains(out.Detail, "not found") {
		t.Fatalf("detail should name missing content, got %q", out.Detail)
	}

	// matching content passes
	tgt.Contains = "degraded"
	out = NewHTTPChecker().Check(context.Background(), tgt)
	if out.Status != domain.StatusSuccess {
		t.Fatalf("want success on matching content, got %+v", out)
	}
}

func TestHTTPChecker_Timeout(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(200)
	}))
	defer s.Close()

	tgt := target(s.URL)
	tgt.Timeout = 50 * time.Millisecond
	out := NewHTTPChecker().Check(context.Background(), tgt)
	if out.Status != domain.StatusTimeout {
		t.Fatalf("want timeout, got %+v", out)
	}
	if out.HTTPStatus != 0 {
		t.Fatalf("want no observed status on timeout, got %d", out.HTTPStatus)
	}
	if out.Detail == "" {
		t.Fatal("want non-empty detail")
	}
}

func TestHTTPChecker_TransportError(t *testing.T) {
	// closed server -> connection refused
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := s.URL
	s.Close()

	out := NewHTTPChecker().Check(context.Background(), target(url))
	if out.Status != domain.StatusError {
		t.Fatalf("want error, got %+v", out)
	}
	if out.Detail == "" {
		t.Fatal("want non-empty detail")
	}
	if out.LatencyMS < 0 {
		t.Fatalf("latency recorded regardless of outcome, got %f", out.LatencyMS)
	}
}
