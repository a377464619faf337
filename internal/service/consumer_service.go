package service

import (
	"context"

	"ollama-chat-be/internal/pkg/logger"
	"ollama-chat-be/internal/repository/contract"
	"ollama-chat-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill/message"
)

type IConsumerService interface {
	Consume(ctx context.Context) error
}

type consumerService struct {
	bus       *events.Bus
	eventLog  logger.ILogger
	forwarder events.Publisher
	mirror    contract.JobSnapshotRepository
	downloads IDownloadService
	models    IModelService
}

// NewConsumerService fans bus events out to the event log, the cross-instance
// publisher and the job mirror. forwarder and mirror may be nil.
func NewConsumerService(
	bus *events.Bus,
	eventLog logger.ILogger,
	forwarder events.Publisher,
	mirror contract.JobSnapshotRepository,
	downloads IDownloadService,
	models IModelService,
) IConsumerService {
	return &consumerService{
		bus:       bus,
		eventLog:  eventLog,
		forwarder: forwarder,
		mirror:    mirror,
		downloads: downloads,
		models:    models,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.bus.Subscribe(ctx)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

// processMessage always acks: delivery to the side channels is best effort
// and a redelivered event would only repeat the same failure.
func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	defer msg.Ack()

	evt, err := events.DecodeMessage(msg)
	if err != nil {
		cs.eventLog.Error("EVENT", "Failed to decode event", map[string]interface{}{
			"message_id": msg.UUID,
			"error":      err.Error(),
		})
		return
	}

	cs.eventLog.Info("EVENT", evt.Type, evt.Data)

	switch evt.Type {
	case events.TypeDownloadStarted, events.TypeDownloadProgress, events.TypeDownloadFailed:
		cs.mirrorJob(ctx, evt)
	case events.TypeDownloadCompleted:
		cs.mirrorJob(ctx, evt)
		if cs.models != nil {
			cs.models.Invalidate()
		}
	case events.TypeDownloadCancelled:
		job := events.DownloadJobFromPayload(evt.Data)
		if cs.mirror != nil {
			if err := cs.mirror.Delete(ctx, job.SessionId); err != nil {
				cs.warn("Failed to drop mirrored job", err)
			}
		}
	case events.TypeSessionsEvicted:
		if cs.downloads != nil {
			cs.downloads.Forget(ctx, sessionIdsFromPayload(evt.Data)...)
		}
	}

	if cs.forwarder != nil {
		if err := cs.forwarder.Publish(ctx, evt); err != nil {
			cs.warn("Failed to forward event", err)
		}
	}
}

func (cs *consumerService) mirrorJob(ctx context.Context, evt events.BaseEvent) {
	if cs.mirror == nil {
		return
	}
	job := events.DownloadJobFromPayload(evt.Data)
	if job.SessionId == "" {
		return
	}
	// A late event for a cancelled job must not bring its snapshot back.
	if cs.downloads != nil && cs.downloads.IsRetired(job.Id) {
		return
	}
	if err := cs.mirror.Save(ctx, job); err != nil {
		cs.warn("Failed to mirror job", err)
	}
}

func (cs *consumerService) warn(message string, err error) {
	cs.eventLog.Warn("EVENT", message, map[string]interface{}{"error": err.Error()})
}

func sessionIdsFromPayload(data map[string]interface{}) []string {
	switch v := data["session_ids"].(type) {
	case []string:
		return v
	case []interface{}:
		ids := make([]string, 0, len(v))
		for _, item := range v {
			if id, ok := item.(string); ok {
				ids = append(ids, id)
			}
		}
		return ids
	}
	return nil
}
