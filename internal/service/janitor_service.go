package service

import (
	"context"
	"time"

	"ollama-chat-be/internal/pkg/logger"
	"ollama-chat-be/internal/repository/memory"
	"ollama-chat-be/pkg/events"
)

type IJanitorService interface {
	Run(ctx context.Context) error
	Sweep(ctx context.Context)
}

type janitorService struct {
	sessions  *memory.SessionRepository
	downloads IDownloadService
	publisher events.Publisher
	interval  time.Duration
	logger    logger.ILogger
}

// NewJanitorService reclaims sessions over capacity and finished download
// jobs on a fixed interval.
func NewJanitorService(
	sessions *memory.SessionRepository,
	downloads IDownloadService,
	publisher events.Publisher,
	interval time.Duration,
	log logger.ILogger,
) IJanitorService {
	if interval <= 0 {
		interval = time.Minute
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &janitorService{
		sessions:  sessions,
		downloads: downloads,
		publisher: publisher,
		interval:  interval,
		logger:    log,
	}
}

// Run blocks until ctx is cancelled.
func (j *janitorService) Run(ctx context.Context) error {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			j.Sweep(ctx)
		}
	}
}

func (j *janitorService) Sweep(ctx context.Context) {
	if evicted := j.sessions.EvictIfOverCapacity(); len(evicted) > 0 {
		evt := events.BaseEvent{
			Type:       events.TypeSessionsEvicted,
			Data:       map[string]interface{}{"session_ids": evicted},
			OccurredAt: time.Now(),
		}
		if err := j.publisher.Publish(ctx, evt); err != nil {
			j.logger.Warn("JANITOR", "Failed to publish eviction event", map[string]interface{}{"error": err.Error()})
		}
		j.logger.Info("JANITOR", "Evicted sessions", map[string]interface{}{"count": len(evicted)})
	}

	if purged := j.downloads.PurgeFinished(ctx); purged > 0 {
		j.logger.Debug("JANITOR", "Purged finished downloads", map[string]interface{}{"count": purged})
	}
}
