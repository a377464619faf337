package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"ollama-chat-be/internal/pkg/logger"
	"ollama-chat-be/internal/repository/contract"
	"ollama-chat-be/internal/repository/implementation"
	"ollama-chat-be/internal/repository/memory"
	"ollama-chat-be/pkg/events"
	"ollama-chat-be/pkg/llm"

	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	mu sync.Mutex

	reply      string
	caption    string
	chatErr    error
	captionErr error
	// block makes Chat wait for ctx to end
	block bool
	// echo answers each chat with the last turn it was sent
	echo bool

	models    []llm.ModelInfo
	listErr   error
	deleteErr error

	chatCalls    [][]llm.Message
	chatModels   []string
	chatOptions  []llm.Options
	captionModel string
	captionOpts  llm.Options
	instruction  string
	listCalls    int
}

func (f *fakeBackend) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	f.mu.Lock()
	options := &llm.Options{}
	for _, opt := range opts {
		opt(options)
	}
	f.chatCalls = append(f.chatCalls, append([]llm.Message(nil), history...))
	f.chatModels = append(f.chatModels, options.Model)
	f.chatOptions = append(f.chatOptions, *options)
	block, reply, err := f.block, f.reply, f.chatErr
	if f.echo && len(history) > 0 {
		reply = "re: " + history[len(history)-1].Content
	}
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return reply, err
}

func (f *fakeBackend) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	return f.Chat(ctx, []llm.Message{{Role: "user", Content: prompt}}, opts...)
}

func (f *fakeBackend) Caption(ctx context.Context, imagePath, instruction string, opts ...llm.Option) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	options := &llm.Options{}
	for _, opt := range opts {
		opt(options)
	}
	f.captionModel = options.Model
	f.captionOpts = *options
	f.instruction = instruction
	return f.caption, f.captionErr
}

func (f *fakeBackend) ListModels(ctx context.Context) ([]llm.ModelInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	return f.models, f.listErr
}

func (f *fakeBackend) DeleteModel(ctx context.Context, name string) error {
	return f.deleteErr
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) ofType(eventType string) []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []events.Event
	for _, e := range p.events {
		if e.EventType() == eventType {
			out = append(out, e)
		}
	}
	return out
}

type fixture struct {
	backend      *fakeBackend
	publisher    *recordingPublisher
	sessions     *memory.SessionRepository
	characters   contract.CharacterRepository
	models       IModelService
	conversation IConversationService
	character    ICharacterService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	characters := implementation.NewCharacterRepository(filepath.Join(t.TempDir(), "characters.json"))
	_, err := characters.Load(context.Background())
	require.NoError(t, err)

	backend := &fakeBackend{
		reply:   "Hello!",
		caption: "a red bicycle",
		models: []llm.ModelInfo{
			{Name: "llama3:8b"},
			{Name: "mistral:latest"},
			{Name: "llava:7b"},
		},
	}
	log := logger.NewNopLogger()
	publisher := &recordingPublisher{}
	sessions := memory.NewSessionRepository(4, 2, 0)
	models := NewModelService(backend, time.Minute, "llama3:8b", "llava:7b", log)
	conversation := NewConversationService(sessions, characters, backend, models, publisher, log, ConversationConfig{
		DefaultChatModel:    "llama3:8b",
		DefaultCaptionModel: "llava:7b",
		RequestTimeout:      time.Second,
		Temperature:         0.3,
		MaxTokens:           256,
	})

	return &fixture{
		backend:      backend,
		publisher:    publisher,
		sessions:     sessions,
		characters:   characters,
		models:       models,
		conversation: conversation,
		character:    NewCharacterService(characters, conversation, publisher, log),
	}
}

func strPtr(s string) *string { return &s }
