package models

// LogEntryData is one captured log entry.
type LogEntryData struct {
	Timestamp  string         `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"supervisor" doc:"Originating module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured attributes"`
}

// LogsData contains recent log entries from the ring buffer.
type LogsData struct {
	Entries []LogEntryData `json:"entries" doc:"Recent log entries, oldest first"`
	Count   int            `json:"count" example:"50" doc:"Number of entries returned"`
}

// LogsResponse wraps LogsData for API responses.
type LogsResponse struct {
	Body LogsData
}
