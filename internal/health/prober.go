package health

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Result is the outcome of a single readiness probe. Results are
// transient: they feed logging inside a polling loop and are never
// stored beyond it.
type Result struct {
	Ready     bool
	Attempt   int
	Timestamp time.Time
}

// Prober issues bounded-timeout readiness checks against a backend
// health endpoint. A failed probe is an expected condition while the
// backend is starting, never an error.
type Prober struct {
	client *http.Client
	logger *slog.Logger
}

// NewProber creates a prober whose individual requests time out after
// the given duration.
func NewProber(timeout time.Duration, logger *slog.Logger) *Prober {
	return &Prober{
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Probe performs a single GET against the endpoint. Any non-2xx status,
// connection error, or timeout yields false.
func (p *Prober) Probe(ctx context.Context, endpoint string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// Poll probes the endpoint up to maxAttempts times, sleeping interval
// between attempts and short-circuiting on the first success. Returns
// false once attempts are exhausted or the context is cancelled.
func (p *Prober) Poll(ctx context.Context, endpoint string, interval time.Duration, maxAttempts int) bool {
	return PollUntil(ctx, interval, maxAttempts, func(attempt int) bool {
		res := Result{
			Ready:     p.Probe(ctx, endpoint),
			Attempt:   attempt,
			Timestamp: time.Now(),
		}
		if res.Ready {
			p.logger.Info("Endpoint is ready", "endpoint", endpoint, "attempt", res.Attempt)
		} else {
			p.logger.Debug("Endpoint not ready", "endpoint", endpoint, "attempt", res.Attempt)
		}
		return res.Ready
	})
}

// PollUntil evaluates cond up to maxAttempts times, sleeping interval
// between attempts. It returns true the iteration cond first succeeds
// and never evaluates cond more than maxAttempts times. The sleep is
// cancellable; a cancelled context returns false immediately.
//
// The service controller reuses this loop shape with a status query in
// place of an HTTP probe.
func PollUntil(ctx context.Context, interval time.Duration, maxAttempts int, cond func(attempt int) bool) bool {
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if cond(attempt) {
			return true
		}
		if attempt == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(interval):
		}
	}
	return false
}
