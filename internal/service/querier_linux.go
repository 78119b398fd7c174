//go:build linux

package service

import (
	"context"
	"log/slog"
	"time"
)

// dbusConnectTimeout bounds the system-bus connection attempt so a
// missing or hung bus never delays controller construction.
const dbusConnectTimeout = 2 * time.Second

// defaultQuerier prefers the systemd D-Bus API and falls back to the
// command querier when the system bus is unreachable (containers,
// non-systemd hosts).
func defaultQuerier(logger *slog.Logger) StatusQuerier {
	ctx, cancel := context.WithTimeout(context.Background(), dbusConnectTimeout)
	defer cancel()

	q, err := NewDBusQuerier(ctx)
	if err != nil {
		logger.Debug("system bus unavailable, using systemctl", "error", err)
		return NewCommandQuerier()
	}
	return q
}
