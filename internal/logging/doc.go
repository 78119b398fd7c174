// Package logging provides structured logging with per-module log level
// configuration.
//
// The system uses Go's slog package with automatic output routing: logs
// go to the systemd journal when available, to stdout when a terminal,
// pipe, or file is connected, and always into an in-memory ring buffer.
// The ring buffer serves the /api/logs endpoint and supplies the log
// tail attached to supervisor and service-operation failures.
//
// Initialize the logging system once at startup:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",
//		Format: "text",
//		Modules: map[string]string{
//			"supervisor": "debug",
//			"api":        "warn",
//		},
//	})
//
// Get a logger for your module:
//
//	logger := logging.GetLogger("supervisor")
//	logger.Info("Backend ready", "port", 4096)
//
// When running under systemd, logs can be inspected with:
//
//	journalctl -t warden -f
//	journalctl -t warden MODULE=supervisor
package logging
