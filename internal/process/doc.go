// Package process launches the backend server as a child process.
//
// Launcher wraps os/exec:
//   - Deployment mode and port are passed via environment variables
//   - stdout/stderr are streamed into the logging system with pluggable
//     level parsing, never parsed for control purposes
//   - The returned Handle supports non-blocking exit detection, blocking
//     wait, signalling, and unconditional force-terminate
//
// The Handle is owned exclusively by the supervisor that launched it.
package process
