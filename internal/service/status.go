package service

import (
	"bytes"
	"context"
	"os/exec"
	"runtime"
	"strings"
)

// Status is the queryable state of the registered service entry.
type Status string

// Service statuses.
const (
	StatusNotInstalled Status = "not-installed"
	StatusStopped      Status = "stopped"
	StatusRunning      Status = "running"
	StatusUnknown      Status = "unknown"
)

// Descriptor describes the registered service entry. It is built fresh
// from a status query and never cached beyond one operation.
type Descriptor struct {
	Name           string `json:"name"`
	ExecutablePath string `json:"executable_path,omitempty"`
	Status         Status `json:"status"`
	StartType      string `json:"start_type,omitempty"`
}

// notInstalledTokens mark a service entry that does not exist. "1060"
// is the Windows service-manager error code for a missing service.
var notInstalledTokens = []string{
	"could not be found",
	"not-found",
	"no such file",
	"does not exist",
	"1060",
}

var stoppedTokens = []string{"inactive", "dead", "stopped", "failed", "exited"}

var runningTokens = []string{"running", "active"}

// ClassifyStatus maps raw service-manager output onto a Status by
// substring matching on well-known tokens. Token order matters:
// "inactive" contains "active", so stopped tokens are checked first.
func ClassifyStatus(raw string) Status {
	out := strings.ToLower(raw)

	for _, token := range notInstalledTokens {
		if strings.Contains(out, token) {
			return StatusNotInstalled
		}
	}
	for _, token := range stoppedTokens {
		if strings.Contains(out, token) {
			return StatusStopped
		}
	}
	for _, token := range runningTokens {
		if strings.Contains(out, token) {
			return StatusRunning
		}
	}
	return StatusUnknown
}

// StatusQuerier queries the OS service manager for the current status
// of a named service. Queries never require elevation.
type StatusQuerier interface {
	// Query returns the classified status plus the raw output it was
	// derived from, kept for diagnostic context.
	Query(ctx context.Context, name string) (Status, string, error)
}

// StartTypeQuerier is implemented by queriers that can also report how
// the service is configured to start: automatic, manual, or disabled.
type StartTypeQuerier interface {
	StartType(ctx context.Context, name string) (string, error)
}

// CommandQuerier queries service status by running the platform's
// service-manager CLI and classifying its output text.
type CommandQuerier struct{}

// NewCommandQuerier creates a CLI-based status querier.
func NewCommandQuerier() *CommandQuerier {
	return &CommandQuerier{}
}

// Query runs the status command and classifies its combined output.
// Command failure is expected for missing or stopped services; the
// output text still classifies, so no error is returned for it.
func (q *CommandQuerier) Query(ctx context.Context, name string) (Status, string, error) {
	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.CommandContext(ctx, "sc", "query", name)
	} else {
		cmd = exec.CommandContext(ctx, "systemctl", "is-active", name+".service")
	}

	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	err := cmd.Run()

	raw := strings.TrimSpace(buf.String())
	if raw == "" && err != nil {
		return StatusUnknown, raw, newError(ErrCodeQueryFailed, "service status query produced no output", err)
	}

	// systemctl exits non-zero for anything but active; the output
	// text is authoritative. "inactive" with an unknown unit needs the
	// unit-file check to distinguish stopped from not installed.
	status := ClassifyStatus(raw)
	if status == StatusStopped && runtime.GOOS != "windows" && !q.unitFileExists(ctx, name) {
		return StatusNotInstalled, raw, nil
	}
	return status, raw, nil
}

// unitFileExists reports whether the unit is known to systemd at all.
func (q *CommandQuerier) unitFileExists(ctx context.Context, name string) bool {
	var buf bytes.Buffer
	cmd := exec.CommandContext(ctx, "systemctl", "cat", name+".service")
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	return cmd.Run() == nil
}

// StartType reports the configured start behavior of the service.
func (q *CommandQuerier) StartType(ctx context.Context, name string) (string, error) {
	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.CommandContext(ctx, "sc", "qc", name)
	} else {
		cmd = exec.CommandContext(ctx, "systemctl", "is-enabled", name+".service")
	}

	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	_ = cmd.Run()

	out := strings.ToLower(buf.String())
	switch {
	case strings.Contains(out, "auto_start"), strings.Contains(out, "enabled"):
		return "automatic", nil
	case strings.Contains(out, "demand_start"), strings.Contains(out, "disabled"):
		return "manual", nil
	case strings.Contains(out, "masked"):
		return "disabled", nil
	default:
		return "", nil
	}
}
