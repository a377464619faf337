//go:build integration

package ollama

import (
	"context"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"ollama-chat-be/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs against a live server: go test -tags integration ./pkg/llm/ollama
// OLLAMA_URL and OLLAMA_TEST_MODEL override the defaults.

func liveProvider(t *testing.T) *OllamaProvider {
	t.Helper()
	baseURL := os.Getenv("OLLAMA_URL")
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	model := os.Getenv("OLLAMA_TEST_MODEL")
	if model == "" {
		model = "gemma:2b"
	}

	client := &http.Client{Timeout: 5 * time.Second}
	res, err := client.Get(baseURL)
	if err != nil {
		t.Skipf("Ollama not running at %s: %v", baseURL, err)
	}
	res.Body.Close()

	return NewOllamaProvider(baseURL, model, 120*time.Second)
}

func TestLiveListModels(t *testing.T) {
	p := liveProvider(t)

	models, err := p.ListModels(context.Background())
	require.NoError(t, err)
	for _, m := range models {
		t.Logf("installed: %s (%d bytes)", m.Name, m.Size)
	}
}

func TestLiveMultiTurnConversation(t *testing.T) {
	p := liveProvider(t)
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	reply, err := p.Chat(ctx, []llm.Message{
		{Role: "system", Content: "You are a helpful AI assistant."},
		{Role: "user", Content: "My name is John"},
		{Role: "assistant", Content: "Nice to meet you, John!"},
		{Role: "user", Content: "What is my name?"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, reply)

	if !strings.Contains(reply, "John") {
		t.Logf("reply may not remember the name: %s", reply)
	}
}
