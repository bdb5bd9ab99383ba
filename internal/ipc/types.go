package ipc

import (
	"time"

	"wallp/internal/acquire"
	"wallp/internal/scheduler"
	"wallp/internal/sources"
	"wallp/internal/store"
)

// StopRequest stops the daemon process.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// DependencyStatus describes availability of an external binary.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail"`
}

// StatusResponse represents daemon and scheduler status information.
type StatusResponse struct {
	Running        bool               `json:"running"`
	PID            int                `json:"pid"`
	LockPath       string             `json:"lock_path"`
	DatabasePath   string             `json:"database_path"`
	LogPath        string             `json:"log_path"`
	Jobs           []scheduler.Job    `json:"jobs"`
	Stats          scheduler.Stats    `json:"stats"`
	LastPath       string             `json:"last_path,omitempty"`
	LastError      string             `json:"last_error,omitempty"`
	LastAttemptAt  time.Time          `json:"last_attempt_at,omitzero"`
	LastChangeTime time.Time          `json:"last_change_time,omitzero"`
	LastSource     string             `json:"last_source,omitempty"`
	Dependencies   []DependencyStatus `json:"dependencies"`
}

// ChangeRequest asks for a wallpaper change now. ProgressPath names the
// socket the caller listens on; empty means no progress reports.
type ChangeRequest struct {
	Spec         acquire.Spec `json:"spec"`
	ProgressPath string       `json:"progress_path,omitempty"`
}

// ChangeResponse reports whether the change was queued.
type ChangeResponse struct {
	Queued    bool   `json:"queued"`
	Coalesced bool   `json:"coalesced"`
	Message   string `json:"message"`
}

// ScheduleSetRequest installs or replaces the timed change.
type ScheduleSetRequest struct {
	Frequency string       `json:"frequency"`
	Spec      acquire.Spec `json:"spec"`
}

// ScheduleSetResponse returns the installed job.
type ScheduleSetResponse struct {
	Jobs []scheduler.Job `json:"jobs"`
}

// ScheduleRemoveRequest removes the timed change.
type ScheduleRemoveRequest struct{}

// ScheduleRemoveResponse reports whether a job was removed.
type ScheduleRemoveResponse struct {
	Removed bool `json:"removed"`
}

// ScheduleListRequest lists scheduled jobs.
type ScheduleListRequest struct{}

// ScheduleListResponse contains scheduled jobs.
type ScheduleListResponse struct {
	Jobs []scheduler.Job `json:"jobs"`
}

// HistoryRequest fetches recently staged images.
type HistoryRequest struct {
	Limit int `json:"limit"`
}

// HistoryResponse contains image records, newest first.
type HistoryResponse struct {
	Images []store.ImageRecord `json:"images"`
}

// SourcesRequest lists image sources.
type SourcesRequest struct{}

// SourcesResponse contains registered sources.
type SourcesResponse struct {
	Sources []sources.Info `json:"sources"`
}

// LogTailRequest fetches log lines based on offset and follow semantics.
type LogTailRequest struct {
	Offset     int64 `json:"offset"`
	Limit      int   `json:"limit"`
	Follow     bool  `json:"follow"`
	WaitMillis int   `json:"wait_millis"`
}

// LogTailResponse returns log lines and the next offset.
type LogTailResponse struct {
	Lines  []string `json:"lines"`
	Offset int64    `json:"offset"`
}

// TestNotificationRequest triggers a notification test.
type TestNotificationRequest struct{}

// TestNotificationResponse reports notification test outcome.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}
