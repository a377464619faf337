package service

import (
	"context"
	"time"

	"ollama-chat-be/internal/dto"
	"ollama-chat-be/internal/pkg/logger"
	"ollama-chat-be/internal/repository/contract"
	"ollama-chat-be/pkg/download"

	"github.com/patrickmn/go-cache"
)

// retiredJobTTL outlives the mirror's live-job TTL so a late event for a
// dropped job can never resurrect it.
const retiredJobTTL = 15 * time.Minute

type IDownloadService interface {
	Start(ctx context.Context, sessionId string, request *dto.StartDownloadRequest) (*dto.DownloadJobResponse, error)
	Poll(ctx context.Context, sessionId string) *dto.DownloadJobResponse
	Cancel(ctx context.Context, sessionId string) (*dto.DownloadJobResponse, error)
	Forget(ctx context.Context, sessionIds ...string)
	PurgeFinished(ctx context.Context) int
	// IsRetired reports a job this instance cancelled or forgot.
	IsRetired(jobId string) bool
}

type downloadService struct {
	supervisor *download.Supervisor
	// nil when no Redis is configured
	mirror  contract.JobSnapshotRepository
	retired *cache.Cache
	logger  logger.ILogger
}

func NewDownloadService(supervisor *download.Supervisor, mirror contract.JobSnapshotRepository, log logger.ILogger) IDownloadService {
	return &downloadService{
		supervisor: supervisor,
		mirror:     mirror,
		retired:    cache.New(retiredJobTTL, retiredJobTTL),
		logger:     log,
	}
}

func (s *downloadService) Start(ctx context.Context, sessionId string, request *dto.StartDownloadRequest) (*dto.DownloadJobResponse, error) {
	job, err := s.supervisor.Start(ctx, sessionId, request.ModelName)
	if err != nil {
		return nil, err
	}
	return dto.NewDownloadJobResponse(job), nil
}

// Poll answers from the local supervisor first, then from the shared mirror
// so a job started through another instance is still visible.
func (s *downloadService) Poll(ctx context.Context, sessionId string) *dto.DownloadJobResponse {
	if job, ok := s.supervisor.Poll(sessionId); ok {
		return dto.NewDownloadJobResponse(job)
	}
	if s.mirror == nil {
		return dto.IdleDownload()
	}

	job, err := s.mirror.Get(ctx, sessionId)
	if err != nil {
		s.logger.Warn("DOWNLOAD", "Mirror lookup failed", map[string]interface{}{
			"session_id": sessionId,
			"error":      err.Error(),
		})
		return dto.IdleDownload()
	}
	if job == nil || s.IsRetired(job.Id) {
		return dto.IdleDownload()
	}
	return dto.NewDownloadJobResponse(*job)
}

// Cancel drops the local job and its mirrored snapshot before returning, so
// the next poll reports idle without waiting for the cancel event.
func (s *downloadService) Cancel(ctx context.Context, sessionId string) (*dto.DownloadJobResponse, error) {
	job, err := s.supervisor.Cancel(ctx, sessionId)
	if err != nil {
		return nil, err
	}
	s.retire(job.Id)
	s.dropMirror(ctx, sessionId)
	return dto.NewDownloadJobResponse(job), nil
}

func (s *downloadService) Forget(ctx context.Context, sessionIds ...string) {
	for _, id := range sessionIds {
		if jobId, ok := s.supervisor.Forget(id); ok {
			s.retire(jobId)
		}
		s.dropMirror(ctx, id)
	}
}

func (s *downloadService) PurgeFinished(ctx context.Context) int {
	return s.supervisor.PurgeFinished()
}

func (s *downloadService) IsRetired(jobId string) bool {
	_, found := s.retired.Get(jobId)
	return found
}

func (s *downloadService) retire(jobId string) {
	s.retired.SetDefault(jobId, struct{}{})
}

func (s *downloadService) dropMirror(ctx context.Context, sessionId string) {
	if s.mirror == nil {
		return
	}
	if err := s.mirror.Delete(ctx, sessionId); err != nil {
		s.logger.Warn("DOWNLOAD", "Failed to drop mirrored job", map[string]interface{}{
			"session_id": sessionId,
			"error":      err.Error(),
		})
	}
}
