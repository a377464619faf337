package factory

import (
	"fmt"
	"time"

	"ollama-chat-be/internal/constant"
	"ollama-chat-be/pkg/llm"
	"ollama-chat-be/pkg/llm/ollama"
)

func NewBackend(providerType, modelName, baseURL string, timeout time.Duration) (llm.Backend, error) {
	switch providerType {
	case "", "ollama":
		if baseURL == "" {
			baseURL = constant.OllamaDefaultBaseURL
		}
		return ollama.NewOllamaProvider(baseURL, modelName, timeout), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", providerType)
	}
}
