package models

// Health check models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
}

type HealthResponse struct {
	Body HealthData
}

// Version models
type VersionData struct {
	Version   string `json:"version" example:"1.0.0" doc:"Application version"`
	GitCommit string `json:"git_commit" example:"abc123" doc:"Git commit hash"`
	BuildDate string `json:"build_date" example:"2025-01-27" doc:"Build date"`
	GoVersion string `json:"go_version" example:"go1.24.0" doc:"Go version used to build"`
	Platform  string `json:"platform" example:"linux/amd64" doc:"Build platform"`
}

type VersionResponse struct {
	Body VersionData
}

// Supervisor status models
type SupervisorStatusData struct {
	State        string `json:"state" example:"running" doc:"Supervisor state"`
	Mode         string `json:"mode" example:"self-managed" doc:"Deployment mode"`
	Port         int    `json:"port" example:"4096" doc:"Backend port"`
	PID          int    `json:"pid,omitempty" example:"12345" doc:"Backend process ID, when owned"`
	RestartCount int    `json:"restart_count" example:"0" doc:"Restarts this session"`
	LastExitCode int    `json:"last_exit_code" example:"0" doc:"Last observed backend exit code"`
	StartedAt    string `json:"started_at,omitempty" example:"2025-01-27T10:30:00Z" doc:"When the backend came up"`
	BackendURL   string `json:"backend_url" example:"http://127.0.0.1:4096" doc:"Base URL of the supervised backend"`
}

type SupervisorStatusResponse struct {
	Body SupervisorStatusData
}
