package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hamed0406/watchdog/internal/domain"
)

const (
	defaultTimeout = 10 * time.Second
	// maxBodyBytes caps how much of the response we read for the
	// substring check.
	maxBodyBytes = 1 << 20
)

type HTTPChecker struct {
	Client *http.Client
}

func NewHTTPChecker() *HTTPChecker {
	// No client-level timeout: each target carries its own, applied via
	// the request context in Check.
	return &HTTPChecker{Client: &http.Client{}}
}

func (h *HTTPChecker) Check(ctx context.Context, t domain.Target) domain.CheckOutcome {
	out := domain.CheckOutcome{
		ID:         uuid.NewString(),
		TargetName: t.Name,
		CheckedAt:  time.Now().UTC(),
	}

	timeout := t.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	method := t.Method
	if method == "" {
		method = http.MethodGet
	}

	start := time.Now()
	req, err := http.NewRequestWithContext(cctx, method, t.URL, nil)
	if err != nil {
		out.LatencyMS = sinceMS(start)
		out.Status = domain.StatusError
		out.Detail = err.Error()
		return out
	}

	resp, err := h.Client.Do(req)
	out.LatencyMS = sinceMS(start)
	if err != nil {
		if isTimeout(err) {
			out.Status = domain.StatusTimeout
			out.Detail = fmt.Sprintf("timeout after %s", timeout)
		} else {
			out.Status = domain.StatusError
			out.Detail = err.Error()
		}
		return out
	}
	defer resp.Body.Close()

	out.HTTPStatus = resp.StatusCode

	if resp.StatusCode != t.ExpectedStatus {
		out.Status = domain.StatusFailure
		out.Detail = fmt.Sprintf("expected status %d, got %d", t.ExpectedStatus, resp.StatusCode)
		return out
	}

	if t.Contains != "" {
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			out.Status = domain.StatusError
			out.Detail = fmt.Sprintf("read body: %v", err)
			return out
		}
		if !strings.Contains(string(body), t.Contains) {
			out.Status = domain.StatusFailure
			out.Detail = fmt.Sprintf("expected content %q not found", t.Contains)
			return out
		}
	}

	out.Status = domain.StatusSuccess
	return out
}

func sinceMS(start time.Time) float64 {
	return time.Since(start).Seconds() * 1000
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
