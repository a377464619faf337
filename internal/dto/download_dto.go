package dto

import (
	"time"

	"ollama-chat-be/internal/entity"
)

type StartDownloadRequest struct {
	ModelName string `json:"model_name" validate:"required,max=200"`
}

// DownloadStatus adds "idle" to the job states for responses.
type DownloadStatus string

const (
	DownloadStatusIdle        DownloadStatus = "idle"
	DownloadStatusDownloading DownloadStatus = DownloadStatus(entity.DownloadStatusDownloading)
	DownloadStatusCompleted   DownloadStatus = DownloadStatus(entity.DownloadStatusCompleted)
	DownloadStatusError       DownloadStatus = DownloadStatus(entity.DownloadStatusError)
)

type DownloadJobResponse struct {
	Status    DownloadStatus `json:"status"`
	JobId     string         `json:"job_id,omitempty"`
	ModelName string         `json:"model_name,omitempty"`
	Progress  int            `json:"progress"`
	Message   string         `json:"message"`
	StartedAt *time.Time     `json:"started_at,omitempty"`
}

func IdleDownload() *DownloadJobResponse {
	return &DownloadJobResponse{Status: DownloadStatusIdle, Message: "No download in progress"}
}

func NewDownloadJobResponse(job entity.DownloadJob) *DownloadJobResponse {
	startedAt := job.StartedAt
	return &DownloadJobResponse{
		Status:    DownloadStatus(job.Status),
		JobId:     job.Id,
		ModelName: job.ModelName,
		Progress:  job.ProgressPercent,
		Message:   job.Message,
		StartedAt: &startedAt,
	}
}
