package config

import (
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	App        AppConfig
	Ai         AIConfig
	Session    SessionConfig
	Download   DownloadConfig
	Characters CharacterConfig
}

type AppConfig struct {
	Port               string `env:"APP_PORT" envDefault:"5000"`
	Environment        string `env:"GO_ENV" envDefault:"development"`
	LogFilePath        string `env:"LOG_FILE_PATH" envDefault:"logs/app.log"`
	DownloadLogPath    string `env:"DOWNLOAD_LOG_PATH" envDefault:"logs/downloads.log"`
	CorsAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:"http://localhost:3000"`
	StaticDir          string `env:"STATIC_DIR" envDefault:"static/build"`
	UploadDir          string `env:"UPLOAD_DIR" envDefault:"uploads"`
	BodyLimitMB        int    `env:"BODY_LIMIT_MB" envDefault:"16"`
	NatsURL            string `env:"NATS_URL"`
	RedisURL           string `env:"REDIS_URL"`
	OtelEnabled        bool   `env:"OTEL_ENABLED" envDefault:"false"`
	OtelEndpoint       string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
}

type AIConfig struct {
	OllamaBaseURL       string        `env:"OLLAMA_BASE_URL" envDefault:"http://localhost:11434"`
	DefaultChatModel    string        `env:"DEFAULT_CHAT_MODEL" envDefault:"wizard-vicuna-uncensored:7b"`
	DefaultCaptionModel string        `env:"DEFAULT_CAPTION_MODEL" envDefault:"aha2025/llama-joycaption-beta-one-hf-llava:Q4_K_M"`
	RequestTimeout      time.Duration `env:"AI_REQUEST_TIMEOUT" envDefault:"120s"`
	ModelCacheTTL       time.Duration `env:"MODEL_CACHE_TTL" envDefault:"1m"`
	Temperature         float64       `env:"AI_TEMPERATURE" envDefault:"0.7"`
	MaxTokens           int           `env:"AI_MAX_TOKENS" envDefault:"0"` // 0 leaves the reply length to the model
	PullBinary          string        `env:"OLLAMA_BINARY" envDefault:"ollama"`
}

type SessionConfig struct {
	MaxSessions     int           `env:"SESSION_MAX" envDefault:"100"`
	EvictBatch      int           `env:"SESSION_EVICT_BATCH" envDefault:"50"`
	IdleTTL         time.Duration `env:"SESSION_IDLE_TTL" envDefault:"0s"`
	JanitorInterval time.Duration `env:"SESSION_JANITOR_INTERVAL" envDefault:"1m"`
}

type DownloadConfig struct {
	Retention   time.Duration `env:"DOWNLOAD_RETENTION" envDefault:"30s"`
	StrictNames bool          `env:"DOWNLOAD_STRICT_NAMES" envDefault:"true"`
}

type CharacterConfig struct {
	FilePath string `env:"CHARACTERS_FILE" envDefault:"characters.json"`
}

// Load reads .env (if present) and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Session.MaxSessions <= 0 {
		return nil, fmt.Errorf("SESSION_MAX must be positive, got %d", cfg.Session.MaxSessions)
	}
	if cfg.Ai.Temperature < 0 || cfg.Ai.Temperature > 2 {
		return nil, fmt.Errorf("AI_TEMPERATURE must be within [0, 2], got %g", cfg.Ai.Temperature)
	}
	if cfg.Ai.MaxTokens < 0 {
		return nil, fmt.Errorf("AI_MAX_TOKENS must not be negative, got %d", cfg.Ai.MaxTokens)
	}
	if cfg.Session.EvictBatch <= 0 || cfg.Session.EvictBatch > cfg.Session.MaxSessions {
		cfg.Session.EvictBatch = max(1, cfg.Session.MaxSessions/2)
	}
	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}
