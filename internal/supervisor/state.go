package supervisor

import "time"

// State represents the supervisor's position in the backend lifecycle.
type State string

// Supervisor states. Stopped and Failed are terminal.
const (
	StateIdle             State = "idle"              // No backend under management
	StateStarting         State = "starting"          // Spawned, awaiting readiness
	StateRunning          State = "running"           // Healthy
	StateCrashed          State = "crashed"           // Exited unexpectedly
	StateRestarting       State = "restarting"        // Backoff and relaunch in progress
	StateStoppingGraceful State = "stopping-graceful" // Shutdown negotiated, grace period running
	StateStoppingForced   State = "stopping-forced"   // Force kill issued, awaiting reap
	StateStopped          State = "stopped"           // Terminated on request
	StateFailed           State = "failed"            // Gave up: launch failure, readiness timeout, or restart bound hit
)

// Mode is the backend deployment mode.
type Mode string

// Deployment modes.
const (
	// ModeSelfManaged means the supervisor spawned the backend and owns
	// its process handle.
	ModeSelfManaged Mode = "self-managed"
	// ModeExternalService means an independently managed instance
	// answered the health check; the supervisor attached without owning
	// its lifecycle and will never terminate it.
	ModeExternalService Mode = "external-service"
)

// Info is a point-in-time snapshot of the supervised backend.
type Info struct {
	State        State     `json:"state"`
	Mode         Mode      `json:"mode"`
	Port         int       `json:"port"`
	PID          int       `json:"pid,omitempty"`
	RestartCount int       `json:"restart_count"`
	LastExitCode int       `json:"last_exit_code"`
	StartedAt    time.Time `json:"started_at,omitempty"`
}
