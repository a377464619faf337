package events

import (
	"time"

	"ollama-chat-be/internal/entity"
)

// NewDownloadEvent wraps a job snapshot.
func NewDownloadEvent(eventType string, job entity.DownloadJob, at time.Time) BaseEvent {
	return BaseEvent{
		Type: eventType,
		Data: map[string]interface{}{
			"job_id":     job.Id,
			"session_id": job.SessionId,
			"model_name": job.ModelName,
			"status":     string(job.Status),
			"progress":   job.ProgressPercent,
			"message":    job.Message,
			"started_at": job.StartedAt,
		},
		OccurredAt: at,
	}
}

// DownloadJobFromPayload rebuilds the snapshot fields carried by a download
// event. Numbers may arrive as float64 after a JSON round trip.
func DownloadJobFromPayload(data map[string]interface{}) entity.DownloadJob {
	job := entity.DownloadJob{
		Id:        stringField(data, "job_id"),
		SessionId: stringField(data, "session_id"),
		ModelName: stringField(data, "model_name"),
		Status:    entity.DownloadStatus(stringField(data, "status")),
		Message:   stringField(data, "message"),
	}
	switch v := data["progress"].(type) {
	case int:
		job.ProgressPercent = v
	case float64:
		job.ProgressPercent = int(v)
	}
	switch v := data["started_at"].(type) {
	case time.Time:
		job.StartedAt = v
	case string:
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			job.StartedAt = t
		}
	}
	return job
}

func stringField(data map[string]interface{}, key string) string {
	if v, ok := data[key].(string); ok {
		return v
	}
	return ""
}
