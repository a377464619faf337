package entity

import "time"

// DownloadStatus is the closed set of visible job states. Idle is the absence of a job.
type DownloadStatus string

const (
	DownloadStatusDownloading DownloadStatus = "downloading"
	DownloadStatusCompleted   DownloadStatus = "completed"
	DownloadStatusError       DownloadStatus = "error"
)

func (s DownloadStatus) IsTerminal() bool {
	return s == DownloadStatusCompleted || s == DownloadStatusError
}

// DownloadJob is a point-in-time copy of a session's model pull.
type DownloadJob struct {
	Id              string         `json:"id"`
	SessionId       string         `json:"session_id"`
	ModelName       string         `json:"model_name"`
	Status          DownloadStatus `json:"status"`
	ProgressPercent int            `json:"progress"`
	Message         string         `json:"message"`
	StartedAt       time.Time      `json:"started_at"`
	FinishedAt      *time.Time     `json:"finished_at,omitempty"`
}

// Supersedes reports whether j may replace prev in a snapshot store. A
// snapshot of the same job never moves a finished job back to downloading
// and never lowers progress; a snapshot of an older job never replaces a
// newer one.
func (j DownloadJob) Supersedes(prev *DownloadJob) bool {
	if prev == nil {
		return true
	}
	if j.Id != prev.Id {
		return !j.StartedAt.Before(prev.StartedAt)
	}
	if prev.Status.IsTerminal() {
		return false
	}
	if j.Status.IsTerminal() {
		return true
	}
	return j.ProgressPercent >= prev.ProgressPercent
}
