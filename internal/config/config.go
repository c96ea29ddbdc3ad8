package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config содержит полную конфигурацию сервера, читаемую из окружения.
type Config struct {
	ServerPort string `envconfig:"SERVER_PORT" default:"5000"`

	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogEncoding string `envconfig:"LOG_ENCODING" default:"json"`

	GeminiAPIKey string        `envconfig:"GEMINI_API_KEY" required:"true"`
	GeminiModel  string        `envconfig:"GEMINI_MODEL" default:"gemini-2.5-flash"`
	AIBaseURL    string        `envconfig:"AI_BASE_URL" default:"https://generativelanguage.googleapis.com/v1beta/openai"`
	AITimeout    time.Duration `envconfig:"AI_TIMEOUT" default:"120s"`
	AIMaxRetries int           `envconfig:"AI_MAX_RETRIES" default:"3"`

	FreesoundAPIKey string `envconfig:"FREESOUND_API_KEY"`

	// StoryStore выбирает бэкенд хранилища историй: memory или redis.
	StoryStore    string        `envconfig:"STORY_STORE" default:"memory"`
	RedisAddr     string        `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD"`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
	// StoryTTL ограничивает время жизни историй в redis; 0 — без истечения.
	StoryTTL time.Duration `envconfig:"STORY_TTL" default:"0"`

	CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// LoadConfig читает конфигурацию из переменных окружения.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment config: %w", err)
	}

	if cfg.StoryStore != "memory" && cfg.StoryStore != "redis" {
		return nil, fmt.Errorf("invalid STORY_STORE %q: expected memory or redis", cfg.StoryStore)
	}

	return &cfg, nil
}
