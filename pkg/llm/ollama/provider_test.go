package ollama

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"ollama-chat-be/internal/constant"
	"ollama-chat-be/pkg/apperror"
	"ollama-chat-be/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaProvider_Chat(t *testing.T) {
	var got ollamaChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, constant.OllamaChatEndpoint, r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(ollamaChatResponse{
			Model:   got.Model,
			Message: ollamaMessage{Role: "assistant", Content: "Hello there"},
			Done:    true,
		})
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "llama3:8b", time.Second)
	reply, err := p.Chat(context.Background(), []llm.Message{
		{Role: "system", Content: "Be nice."},
		{Role: "user", Content: "Hi"},
		{Role: "model", Content: "Hey"},
	}, llm.WithModel("mistral:latest"))
	require.NoError(t, err)

	assert.Equal(t, "Hello there", reply)
	assert.Equal(t, "mistral:latest", got.Model)
	assert.False(t, got.Stream)
	require.Len(t, got.Messages, 3)
	assert.Equal(t, "assistant", got.Messages[2].Role)
}

func TestOllamaProvider_ChatStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"model not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "missing", time.Second)
	_, err := p.Chat(context.Background(), []llm.Message{{Role: "user", Content: "Hi"}})

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
}

func TestOllamaProvider_SamplingOptions(t *testing.T) {
	tests := []struct {
		name            string
		opts            []llm.Option
		wantTemperature float64
		wantNumPredict  int
	}{
		{name: "defaults", wantTemperature: 0.7},
		{name: "explicit zero temperature", opts: []llm.Option{llm.WithTemperature(0)}, wantTemperature: 0},
		{name: "max tokens", opts: []llm.Option{llm.WithTemperature(0.2), llm.WithMaxTokens(64)}, wantTemperature: 0.2, wantNumPredict: 64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got ollamaChatRequest
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
				_ = json.NewEncoder(w).Encode(ollamaChatResponse{Message: ollamaMessage{Content: "ok"}})
			}))
			defer srv.Close()

			reply, err := NewOllamaProvider(srv.URL, "llama3", time.Second).Generate(context.Background(), "Hi", tt.opts...)
			require.NoError(t, err)
			assert.Equal(t, "ok", reply)
			require.NotNil(t, got.Options)
			require.NotNil(t, got.Options.Temperature)
			assert.Equal(t, tt.wantTemperature, *got.Options.Temperature)
			assert.Equal(t, tt.wantNumPredict, got.Options.NumPredict)
			require.Len(t, got.Messages, 1)
			assert.Equal(t, "user", got.Messages[0].Role)
		})
	}
}

func TestOllamaProvider_ChatUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewOllamaProvider(url, "llama3", time.Second).Generate(context.Background(), "Hi")
	assert.Error(t, err)
}

func TestOllamaProvider_Caption(t *testing.T) {
	imagePath := filepath.Join(t.TempDir(), "cat.png")
	require.NoError(t, os.WriteFile(imagePath, []byte("not-really-a-png"), 0644))

	var got ollamaChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(ollamaChatResponse{Message: ollamaMessage{Content: "a cat"}})
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "llama3", time.Second)
	caption, err := p.Caption(context.Background(), imagePath, "Describe it", llm.WithModel("llava:7b"))
	require.NoError(t, err)

	assert.Equal(t, "a cat", caption)
	assert.Equal(t, "llava:7b", got.Model)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "Describe it", got.Messages[0].Content)
	assert.Equal(t, []string{base64.StdEncoding.EncodeToString([]byte("not-really-a-png"))}, got.Messages[0].Images)
}

func TestOllamaProvider_CaptionMissingFile(t *testing.T) {
	p := NewOllamaProvider("http://127.0.0.1:1", "llava", time.Second)
	_, err := p.Caption(context.Background(), filepath.Join(t.TempDir(), "nope.png"), "Describe")
	assert.Error(t, err)
}

func TestOllamaProvider_ListModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, constant.OllamaTagsEndpoint, r.URL.Path)
		_, _ = w.Write([]byte(`{"models":[
			{"name":"llama3:8b","model":"llama3:8b","size":4661224676,"digest":"abc"},
			{"name":"llava:7b","size":10}
		]}`))
	}))
	defer srv.Close()

	models, err := NewOllamaProvider(srv.URL, "", time.Second).ListModels(context.Background())
	require.NoError(t, err)
	require.Len(t, models, 2)
	assert.Equal(t, "llama3:8b", models[0].Name)
	assert.Equal(t, int64(4661224676), models[0].Size)
	assert.Equal(t, "llava:7b", models[1].Name)
}

func TestOllamaProvider_DeleteModel(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		wantErr  bool
		wantKind apperror.Kind
	}{
		{name: "deleted", status: http.StatusOK},
		{name: "not installed", status: http.StatusNotFound, wantErr: true, wantKind: apperror.KindNotFound},
		{name: "server error", status: http.StatusInternalServerError, wantErr: true, wantKind: apperror.KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body ollamaDeleteRequest
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodDelete, r.Method)
				assert.Equal(t, constant.OllamaDeleteEndpoint, r.URL.Path)
				_ = json.NewDecoder(r.Body).Decode(&body)
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			err := NewOllamaProvider(srv.URL, "", time.Second).DeleteModel(context.Background(), "llama3:8b")
			assert.Equal(t, "llama3:8b", body.Model)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, apperror.KindOf(err))
		})
	}
}
