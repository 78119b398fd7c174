package events

// Event type constants for kelindar/event.
const (
	TypeSupervisorStateChanged uint32 = iota + 1
	TypeServiceStatusChanged
	TypeBackendLog
	TypeLogEntry
	TypeUpdateStateChanged
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// SupervisorStateChangedEvent is emitted synchronously on every supervisor
// state transition.
type SupervisorStateChangedEvent struct {
	From         string `json:"from" example:"starting" doc:"Previous supervisor state"`
	To           string `json:"to" example:"running" doc:"New supervisor state"`
	Mode         string `json:"mode" example:"self-managed" doc:"Deployment mode"`
	RestartCount int    `json:"restart_count" example:"0" doc:"Restarts so far this session"`
	ExitCode     int    `json:"exit_code" example:"0" doc:"Last known backend exit code"`
	Timestamp    string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Transition timestamp"`
}

// Type returns the event type identifier for SupervisorStateChangedEvent.
func (e SupervisorStateChangedEvent) Type() uint32 { return TypeSupervisorStateChanged }

// ServiceStatusChangedEvent is emitted when a privileged service operation
// observes a status change.
type ServiceStatusChangedEvent struct {
	Service   string `json:"service" example:"zerobyte" doc:"Service name"`
	Status    string `json:"status" example:"running" doc:"Observed service status"`
	Operation string `json:"operation" example:"install" doc:"Operation that triggered the observation"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for ServiceStatusChangedEvent.
func (e ServiceStatusChangedEvent) Type() uint32 { return TypeServiceStatusChanged }

// BackendLogEvent carries one line of backend process output.
type BackendLogEvent struct {
	Source    string `json:"source" example:"stderr" doc:"Output stream: stdout or stderr"`
	Line      string `json:"line" doc:"Raw output line"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Capture timestamp"`
}

// Type returns the event type identifier for BackendLogEvent.
func (e BackendLogEvent) Type() uint32 { return TypeBackendLog }

// LogEntryEvent mirrors a warden log entry for SSE streaming.
type LogEntryEvent struct {
	Timestamp  string         `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"supervisor" doc:"Originating module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured attributes"`
}

// Type returns the event type identifier for LogEntryEvent.
func (e LogEntryEvent) Type() uint32 { return TypeLogEntry }

// UpdateStateChangedEvent is emitted when the self-updater changes state.
type UpdateStateChangedEvent struct {
	State     string `json:"state" example:"downloading" doc:"Updater state"`
	Version   string `json:"version,omitempty" example:"1.2.0" doc:"Target version, when known"`
	Error     string `json:"error,omitempty" doc:"Error detail for the error state"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for UpdateStateChangedEvent.
func (e UpdateStateChangedEvent) Type() uint32 { return TypeUpdateStateChanged }
