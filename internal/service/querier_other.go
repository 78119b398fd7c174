//go:build !linux

package service

import "log/slog"

// defaultQuerier returns the command querier: only Linux has a
// service-manager API worth a native client.
func defaultQuerier(_ *slog.Logger) StatusQuerier {
	return NewCommandQuerier()
}
