package implementation

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"ollama-chat-be/internal/entity"
	"ollama-chat-be/internal/repository/contract"

	"github.com/redis/go-redis/v9"
)

const (
	jobKeyPrefix = "download_job:"
	// JobEventsChannel receives every saved snapshot for cluster listeners.
	JobEventsChannel = "download_events"

	defaultActiveJobTTL = 10 * time.Minute
	maxSaveAttempts     = 3
)

// JobSnapshotRepositoryImpl stores the latest snapshot per session in Redis.
// Live jobs are refreshed on every update; finished jobs live for the
// retention window only.
type JobSnapshotRepositoryImpl struct {
	client    *redis.Client
	retention time.Duration
}

func NewJobSnapshotRepository(client *redis.Client, retention time.Duration) contract.JobSnapshotRepository {
	return &JobSnapshotRepositoryImpl{client: client, retention: retention}
}

// Save stores job unless the mirrored snapshot is newer. Bus delivery is not
// ordered, so the compare and the write run in one WATCH transaction.
func (r *JobSnapshotRepositoryImpl) Save(ctx context.Context, job entity.DownloadJob) error {
	val, err := json.Marshal(job)
	if err != nil {
		return err
	}

	ttl := defaultActiveJobTTL
	if job.Status.IsTerminal() && r.retention > 0 {
		ttl = r.retention
	}

	key := r.key(job.SessionId)
	txf := func(tx *redis.Tx) error {
		current, err := r.read(ctx, tx, key)
		if err != nil {
			return err
		}
		if !job.Supersedes(current) {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, val, ttl)
			pipe.Publish(ctx, JobEventsChannel, val)
			return nil
		})
		return err
	}

	for i := 0; i < maxSaveAttempts; i++ {
		err = r.client.Watch(ctx, txf, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return err
}

// Get returns nil when nothing is mirrored for the session.
func (r *JobSnapshotRepositoryImpl) Get(ctx context.Context, sessionId string) (*entity.DownloadJob, error) {
	return r.read(ctx, r.client, r.key(sessionId))
}

func (r *JobSnapshotRepositoryImpl) read(ctx context.Context, c redis.Cmdable, key string) (*entity.DownloadJob, error) {
	val, err := c.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var job entity.DownloadJob
	if err := json.Unmarshal([]byte(val), &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *JobSnapshotRepositoryImpl) Delete(ctx context.Context, sessionId string) error {
	return r.client.Del(ctx, r.key(sessionId)).Err()
}

func (r *JobSnapshotRepositoryImpl) key(sessionId string) string {
	return jobKeyPrefix + sessionId
}
