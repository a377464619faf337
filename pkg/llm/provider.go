package llm

import (
	"context"
	"time"
)

// Message represents a chat message in a provider-agnostic format
type Message struct {
	Role    string // "user", "assistant", "system"
	Content string
}

// Option allows for optional parameters like Temperature, MaxTokens, etc.
type Option func(*Options)

type Options struct {
	Temperature float64
	MaxTokens   int
	Model       string // Override default model
}

func WithTemperature(temp float64) Option {
	return func(o *Options) {
		o.Temperature = temp
	}
}

func WithModel(model string) Option {
	return func(o *Options) {
		o.Model = model
	}
}

func WithMaxTokens(n int) Option {
	return func(o *Options) {
		o.MaxTokens = n
	}
}

// LLMProvider defines the contract for any LLM backend
type LLMProvider interface {
	// Chat sends a chat history to the model and returns the response
	Chat(ctx context.Context, history []Message, options ...Option) (string, error)

	// Generate sends a single prompt to the model (convenience method)
	Generate(ctx context.Context, prompt string, options ...Option) (string, error)
}

// Captioner describes images with a vision-capable model.
type Captioner interface {
	Caption(ctx context.Context, imagePath, instruction string, options ...Option) (string, error)
}

// ModelInfo is one locally installed model.
type ModelInfo struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	Digest     string    `json:"digest"`
	ModifiedAt time.Time `json:"modified_at"`
}

// ModelInventory lists and removes locally installed models.
type ModelInventory interface {
	ListModels(ctx context.Context) ([]ModelInfo, error)
	DeleteModel(ctx context.Context, name string) error
}

// Backend is everything the chat service needs from a local model server.
type Backend interface {
	LLMProvider
	Captioner
	ModelInventory
}
