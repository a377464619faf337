package contract

import (
	"context"

	"ollama-chat-be/internal/entity"
)

// JobSnapshotRepository mirrors download job snapshots outside the process
// so any instance can answer a poll.
type JobSnapshotRepository interface {
	Save(ctx context.Context, job entity.DownloadJob) error
	Get(ctx context.Context, sessionId string) (*entity.DownloadJob, error)
	Delete(ctx context.Context, sessionId string) error
}
