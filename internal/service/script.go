package service

import (
	"fmt"
	"runtime"
)

// Operation names a lifecycle action on the registered service.
type Operation string

// Lifecycle operations.
const (
	OpInstall   Operation = "install"
	OpUninstall Operation = "uninstall"
	OpStart     Operation = "start"
	OpStop      Operation = "stop"
)

// desiredStatus is the status an operation converges to.
func (op Operation) desiredStatus() Status {
	switch op {
	case OpInstall, OpStart:
		return StatusRunning
	case OpStop:
		return StatusStopped
	case OpUninstall:
		return StatusNotInstalled
	default:
		return StatusUnknown
	}
}

// acceptableStatus reports soft-success states: install registers the
// service even when it has not come up yet, and stopping an absent
// service is already done.
func (op Operation) acceptableStatus(s Status) bool {
	switch op {
	case OpInstall:
		return s == StatusStopped
	case OpStop:
		return s == StatusNotInstalled
	default:
		return false
	}
}

// buildScript renders the privileged script for one operation. The
// whole privileged surface of an operation is a single script so the
// user sees exactly one elevation prompt. The service entry runs
// warden in service-host mode, which launches and supervises the
// resolved backend executable.
func buildScript(op Operation, cfg Config, hostPath, execPath string) string {
	if runtime.GOOS == "windows" {
		return buildWindowsScript(op, cfg, hostPath, execPath)
	}
	return buildUnixScript(op, cfg, hostPath, execPath)
}

func buildUnixScript(op Operation, cfg Config, hostPath, execPath string) string {
	unit := cfg.ServiceName + ".service"

	switch op {
	case OpInstall:
		return fmt.Sprintf(`#!/bin/sh
set -e
cat > /etc/systemd/system/%s << 'EOF'
[Unit]
Description=%s
After=network.target

[Service]
Type=notify
ExecStart=%s service-host --executable %s --port %d
Restart=on-failure
RestartSec=5

[Install]
WantedBy=multi-user.target
EOF
systemctl daemon-reload
systemctl enable %s
systemctl start %s
`, unit, cfg.Description, hostPath, execPath, cfg.ServicePort, unit, unit)

	case OpUninstall:
		return fmt.Sprintf(`#!/bin/sh
systemctl stop %s 2>/dev/null || true
systemctl disable %s 2>/dev/null || true
rm -f /etc/systemd/system/%s
systemctl daemon-reload
`, unit, unit, unit)

	case OpStart:
		return fmt.Sprintf("#!/bin/sh\nset -e\nsystemctl start %s\n", unit)

	case OpStop:
		return fmt.Sprintf("#!/bin/sh\nset -e\nsystemctl stop %s\n", unit)
	}
	return ""
}

func buildWindowsScript(op Operation, cfg Config, hostPath, execPath string) string {
	name := cfg.ServiceName

	switch op {
	case OpInstall:
		// sc.exe needs the space after each option's equals sign, and
		// binPath quoting survives the batch layer via backslashes.
		return fmt.Sprintf(`@echo off
sc create %s binPath= "\"%s\" service-host --executable \"%s\" --port %d" start= auto DisplayName= "%s"
if errorlevel 1 exit /b 1
sc description %s "%s"
sc failure %s reset= 86400 actions= restart/5000/restart/5000/restart/5000
sc start %s
exit /b 0
`, name, hostPath, execPath, cfg.ServicePort, cfg.DisplayName, name, cfg.Description, name, name)

	case OpUninstall:
		return fmt.Sprintf(`@echo off
sc stop %s >nul 2>&1
sc delete %s
`, name, name)

	case OpStart:
		return fmt.Sprintf("@echo off\nsc start %s\n", name)

	case OpStop:
		return fmt.Sprintf("@echo off\nsc stop %s\n", name)
	}
	return ""
}

// scriptExtension is the temp-script suffix per platform.
func scriptExtension() string {
	if runtime.GOOS == "windows" {
		return ".bat"
	}
	return ".sh"
}
