package models

import "time"

// UpdateCheckData is the outcome of an update check against the release
// repository.
type UpdateCheckData struct {
	CurrentVersion  string    `json:"current_version" example:"1.0.0" doc:"Running version"`
	LatestVersion   string    `json:"latest_version" example:"1.1.0" doc:"Newest published version"`
	ReleaseNotes    string    `json:"release_notes,omitempty" doc:"Markdown release notes"`
	ReleaseURL      string    `json:"release_url,omitempty" doc:"Release page URL"`
	PublishedAt     time.Time `json:"published_at,omitzero" doc:"Release publication time"`
	AssetSize       int       `json:"asset_size,omitempty" example:"5242880" doc:"Download size in bytes"`
	UpdateAvailable bool      `json:"update_available" example:"true" doc:"Whether the latest version is newer"`
}

// UpdateCheckResponse wraps UpdateCheckData for API responses.
type UpdateCheckResponse struct {
	Body UpdateCheckData
}

// UpdateStatusData reports the update state machine and rollback
// availability.
type UpdateStatusData struct {
	State           string     `json:"state" example:"idle" doc:"Updater state"`
	CurrentVersion  string     `json:"current_version" example:"1.0.0" doc:"Running version"`
	TargetVersion   string     `json:"target_version,omitempty" example:"1.1.0" doc:"Version being installed"`
	Error           string     `json:"error,omitempty" doc:"Detail when in the error state"`
	LastChecked     *time.Time `json:"last_checked,omitempty" doc:"Time of the last check"`
	BackupAvailable bool       `json:"backup_available" example:"true" doc:"Whether a rollback snapshot exists"`
	BackupVersion   string     `json:"backup_version,omitempty" example:"1.0.0" doc:"Version of the snapshot"`
}

// UpdateStatusResponse wraps UpdateStatusData for API responses.
type UpdateStatusResponse struct {
	Body UpdateStatusData
}

// MessageData is a bare human-readable acknowledgement.
type MessageData struct {
	Message string `json:"message" example:"Update applied, restarting..." doc:"Status message"`
}

// MessageResponse wraps MessageData for operations whose only output is
// an acknowledgement.
type MessageResponse struct {
	Body MessageData
}
