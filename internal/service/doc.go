// Package service registers the backend as an OS service and drives
// its lifecycle with elevated privileges.
//
// Each operation (install, uninstall, start, stop) renders a single
// privileged script for the current platform, runs it through the
// platform's elevation mechanism (pkexec or sudo on Linux, UAC via
// PowerShell on Windows), then polls the service manager until the
// reported status converges on the operation's expected outcome.
// Bundling the whole privileged surface into one script keeps the
// user at exactly one elevation prompt per operation.
//
// Status queries never require elevation and classify the raw service
// manager output by substring matching, so the same code path covers
// systemctl text and sc.exe query blocks. On Linux the controller
// queries over the systemd D-Bus API when the system bus is reachable
// and falls back to systemctl output otherwise.
package service
