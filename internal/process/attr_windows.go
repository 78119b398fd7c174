//go:build windows

package process

import "syscall"

// sysProcAttr has nothing to configure on Windows: process-group
// semantics do not apply and the default attributes suffice.
func sysProcAttr() *syscall.SysProcAttr {
	return nil
}
