package events

import (
	"context"
	"time"
)

// Event type codes.
const (
	TypeDownloadStarted   = "DOWNLOAD_STARTED"
	TypeDownloadProgress  = "DOWNLOAD_PROGRESS"
	TypeDownloadCompleted = "DOWNLOAD_COMPLETED"
	TypeDownloadFailed    = "DOWNLOAD_FAILED"
	TypeDownloadCancelled = "DOWNLOAD_CANCELLED"

	TypeCharactersReloaded = "CHARACTERS_RELOADED"
	TypeSessionsEvicted    = "SESSIONS_EVICTED"
)

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "DOWNLOAD_STARTED").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// BaseEvent helps embed common logic if needed,
// strictly creating valid implementations is preferred though.
type BaseEvent struct {
	Type       string                 `json:"type"`
	Data       map[string]interface{} `json:"data"`
	OccurredAt time.Time              `json:"occurred_at"`
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// Publisher accepts events for delivery.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NopPublisher drops everything.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, event Event) error

func (f PublisherFunc) Publish(ctx context.Context, event Event) error {
	return f(ctx, event)
}
