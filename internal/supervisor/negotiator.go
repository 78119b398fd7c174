package supervisor

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Negotiator requests graceful backend termination through the control
// endpoint before the supervisor escalates to force kill.
type Negotiator struct {
	client *http.Client
	logger *slog.Logger
}

// NewNegotiator creates a negotiator whose shutdown request times out
// after the given duration.
func NewNegotiator(timeout time.Duration, logger *slog.Logger) *Negotiator {
	return &Negotiator{
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// RequestShutdown issues a single termination request. A non-2xx
// response or any transport failure yields false but is never fatal: a
// backend already mid-shutdown may drop the connection before
// responding, and the caller proceeds to the grace period regardless.
func (n *Negotiator) RequestShutdown(ctx context.Context, endpoint string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return false
	}

	resp, err := n.client.Do(req)
	if err != nil {
		n.logger.Warn("Failed to send shutdown request", "error", err)
		return false
	}
	defer resp.Body.Close()

	n.logger.Info("Shutdown request sent", "status", resp.StatusCode)
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
