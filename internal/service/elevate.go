package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
	"strings"
)

// Elevator runs a script with administrator privileges. The concrete
// mechanism differs per platform; all of them may prompt the user and
// all of them distinguish "user said no" from "the script failed".
type Elevator interface {
	RunElevated(ctx context.Context, scriptPath string) error
}

// NewElevator returns the platform's default elevation mechanism.
func NewElevator(logger *slog.Logger) Elevator {
	if runtime.GOOS == "windows" {
		return &windowsElevator{logger: logger}
	}
	return &unixElevator{logger: logger}
}

// unixElevator elevates via pkexec, falling back to non-interactive
// sudo when no polkit agent is available (headless installs).
type unixElevator struct {
	logger *slog.Logger
}

func (e *unixElevator) RunElevated(ctx context.Context, scriptPath string) error {
	if _, err := exec.LookPath("pkexec"); err == nil {
		return e.run(ctx, "pkexec", "/bin/sh", scriptPath)
	}
	if _, err := exec.LookPath("sudo"); err == nil {
		return e.run(ctx, "sudo", "-n", "/bin/sh", scriptPath)
	}
	return newError(ErrCodeElevationFailed, "no elevation mechanism available (need pkexec or sudo)", nil)
}

func (e *unixElevator) run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	e.logger.Debug("running elevated script", "mechanism", name)
	err := cmd.Run()
	if err == nil {
		return nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		// pkexec exits 126 when the user dismisses the prompt and 127
		// when authorization is denied outright.
		code := exitErr.ExitCode()
		if name == "pkexec" && (code == 126 || code == 127) {
			return newError(ErrCodeElevationDenied, "authorization was not granted", err)
		}
		if name == "sudo" && strings.Contains(stderr.String(), "password is required") {
			return newError(ErrCodeElevationDenied, "sudo requires a password and no prompt is available", err)
		}
		return newError(ErrCodeScriptFailed,
			fmt.Sprintf("elevated script exited with code %d: %s", code, strings.TrimSpace(stderr.String())), err)
	}
	return newError(ErrCodeElevationFailed, "launching elevated script", err)
}

// windowsElevator elevates through PowerShell's RunAs verb, which
// triggers the UAC consent dialog.
type windowsElevator struct {
	logger *slog.Logger
}

func (e *windowsElevator) RunElevated(ctx context.Context, scriptPath string) error {
	// -Wait blocks until the elevated process exits so status polling
	// starts only after the script has run.
	psCommand := fmt.Sprintf(
		`$p = Start-Process -FilePath 'cmd.exe' -ArgumentList '/c','%s' -Verb RunAs -WindowStyle Hidden -Wait -PassThru; exit $p.ExitCode`,
		scriptPath)

	cmd := exec.CommandContext(ctx, "powershell", "-NoProfile", "-NonInteractive", "-Command", psCommand)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	e.logger.Debug("running elevated script", "mechanism", "powershell")
	err := cmd.Run()
	if err == nil {
		return nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if strings.Contains(stderr.String(), "canceled by the user") {
			return newError(ErrCodeElevationDenied, "the elevation prompt was dismissed", err)
		}
		return newError(ErrCodeScriptFailed,
			fmt.Sprintf("elevated script exited with code %d", exitErr.ExitCode()), err)
	}
	return newError(ErrCodeElevationFailed, "launching elevated script", err)
}
