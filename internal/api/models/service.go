package models

// ServiceStatusData contains the OS service status for the backend.
type ServiceStatusData struct {
	Service   string `json:"service" example:"zerobyte" doc:"Service name"`
	Status    string `json:"status" example:"running" doc:"Service status (not-installed, stopped, running, unknown)"`
	StartType string `json:"start_type,omitempty" example:"automatic" doc:"Configured start behavior"`
}

// ServiceStatusResponse wraps ServiceStatusData for API responses.
type ServiceStatusResponse struct {
	Body ServiceStatusData
}

// ServiceActionData contains the result of a service lifecycle operation.
type ServiceActionData struct {
	Service string `json:"service" example:"zerobyte" doc:"Service name"`
	Action  string `json:"action" example:"install" doc:"Operation performed (install, uninstall, start, stop)"`
	Status  string `json:"status" example:"running" doc:"Service status after the operation"`
}

// ServiceActionResponse wraps ServiceActionData for API responses.
type ServiceActionResponse struct {
	Body ServiceActionData
}
