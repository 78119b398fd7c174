//go:build !windows

package process

import "syscall"

// sysProcAttr puts the backend in its own process group so signals
// aimed at warden do not propagate to it directly.
func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}
