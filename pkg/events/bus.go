package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// DefaultTopic carries every in-process event.
const DefaultTopic = "chat_events"

// Bus is the in-process event bus. Publishing never waits for consumers.
type Bus struct {
	pubSub *gochannel.GoChannel
	topic  string
}

func NewBus(topic string, logger watermill.LoggerAdapter) *Bus {
	if topic == "" {
		topic = DefaultTopic
	}
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	return &Bus{
		pubSub: gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 256}, logger),
		topic:  topic,
	}
}

func (b *Bus) Topic() string {
	return b.topic
}

// Publish implements Publisher.
func (b *Bus) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(BaseEvent{
		Type:       event.EventType(),
		Data:       event.Payload(),
		OccurredAt: event.Timestamp(),
	})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	if err := b.pubSub.Publish(b.topic, msg); err != nil {
		return fmt.Errorf("publish event %s: %w", event.EventType(), err)
	}
	return nil
}

// Subscribe returns a channel of raw messages; each must be acked.
func (b *Bus) Subscribe(ctx context.Context) (<-chan *message.Message, error) {
	return b.pubSub.Subscribe(ctx, b.topic)
}

func (b *Bus) Close() error {
	return b.pubSub.Close()
}

// DecodeMessage turns a bus message back into an event.
func DecodeMessage(msg *message.Message) (BaseEvent, error) {
	var evt BaseEvent
	if err := json.Unmarshal(msg.Payload, &evt); err != nil {
		return BaseEvent{}, fmt.Errorf("unmarshal event: %w", err)
	}
	return evt, nil
}
