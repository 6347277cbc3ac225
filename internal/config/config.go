// Package config provides configuration management for Factum.
// Settings come from an optional YAML file plus environment variables with
// the FACTUM_ prefix; an environment variable always wins over the file so
// deployments can override a checked-in config without editing it.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/factumhq/factum/internal/embedding"
)

// Config holds all configuration settings for the Factum application.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Security  SecurityConfig  `yaml:"security"`
	User      UserConfig      `yaml:"user"`
}

// ServerConfig contains dashboard HTTP server configuration.
type ServerConfig struct {
	Host      string  `yaml:"host"`       // dashboard host (default: 127.0.0.1)
	Port      int     `yaml:"port"`       // dashboard port (default: 8735)
	RateLimit float64 `yaml:"rate_limit"` // requests per second per client (default: 10)
	RateBurst int     `yaml:"rate_burst"` // burst allowance (default: 20)
}

// StorageConfig contains database configuration.
type StorageConfig struct {
	Engine      string `yaml:"engine"`       // storage engine: sqlite, postgres (default: sqlite)
	DataPath    string `yaml:"data_path"`    // sqlite data directory (default: ./data)
	PostgresDSN string `yaml:"postgres_dsn"` // postgres connection string
}

// EmbeddingConfig contains embedding provider credentials and model names.
// With no credentials set the application runs in lexical-only mode.
type EmbeddingConfig struct {
	Provider      string `yaml:"provider"` // force a provider: gemini, openai, cohere
	GeminiAPIKey  string `yaml:"gemini_api_key"`
	GeminiModel   string `yaml:"gemini_model"`
	OpenAIAPIKey  string `yaml:"openai_api_key"`
	OpenAIModel   string `yaml:"openai_model"`
	OpenAIBaseURL string `yaml:"openai_base_url"` // any OpenAI-compatible endpoint
	CohereAPIKey  string `yaml:"cohere_api_key"`
	CohereModel   string `yaml:"cohere_model"`
}

// SecurityConfig contains dashboard authentication settings.
type SecurityConfig struct {
	APIToken string `yaml:"api_token"` // bearer token for the dashboard API; empty disables auth
}

// UserConfig identifies the memory namespace this instance serves.
type UserConfig struct {
	UserID string `yaml:"user_id"` // namespace key (default: "default")
}

// Load builds the configuration from environment variables alone.
func Load() (*Config, error) {
	cfg := defaults()
	applyEnv(cfg)
	return cfg, nil
}

// LoadFile reads a YAML configuration file and layers FACTUM_ environment
// variables on top. A missing file is not an error; the result is the same
// as Load.
func LoadFile(path string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	applyEnv(cfg)
	return cfg, nil
}

// EmbeddingProviderConfig converts the embedding section into the provider
// factory's input.
func (c *Config) EmbeddingProviderConfig() embedding.Config {
	return embedding.Config{
		Provider:      c.Embedding.Provider,
		GeminiAPIKey:  c.Embedding.GeminiAPIKey,
		GeminiModel:   c.Embedding.GeminiModel,
		OpenAIAPIKey:  c.Embedding.OpenAIAPIKey,
		OpenAIModel:   c.Embedding.OpenAIModel,
		OpenAIBaseURL: c.Embedding.OpenAIBaseURL,
		CohereAPIKey:  c.Embedding.CohereAPIKey,
		CohereModel:   c.Embedding.CohereModel,
	}
}

// Validate rejects configurations that cannot produce a working store.
func (c *Config) Validate() error {
	switch c.Storage.Engine {
	case "sqlite":
		if c.Storage.DataPath == "" {
			return fmt.Errorf("config: storage.data_path is required for the sqlite engine")
		}
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("config: storage.postgres_dsn is required for the postgres engine")
		}
	default:
		return fmt.Errorf("config: unknown storage engine %q", c.Storage.Engine)
	}
	if c.User.UserID == "" {
		return fmt.Errorf("config: user.user_id must not be empty")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d out of range", c.Server.Port)
	}
	return nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:      "127.0.0.1",
			Port:      8735,
			RateLimit: 10,
			RateBurst: 20,
		},
		Storage: StorageConfig{
			Engine:   "sqlite",
			DataPath: "./data",
		},
		User: UserConfig{
			UserID: "default",
		},
	}
}

// applyEnv overlays FACTUM_ environment variables onto cfg. Unset variables
// leave the current value (file or default) untouched.
func applyEnv(cfg *Config) {
	setString(&cfg.Server.Host, "FACTUM_HOST")
	setInt(&cfg.Server.Port, "FACTUM_PORT")
	setFloat(&cfg.Server.RateLimit, "FACTUM_RATE_LIMIT")
	setInt(&cfg.Server.RateBurst, "FACTUM_RATE_BURST")

	setString(&cfg.Storage.Engine, "FACTUM_STORAGE_ENGINE")
	setString(&cfg.Storage.DataPath, "FACTUM_DATA_PATH")
	setString(&cfg.Storage.PostgresDSN, "FACTUM_POSTGRES_DSN")

	setString(&cfg.Embedding.Provider, "FACTUM_EMBEDDING_PROVIDER")
	setString(&cfg.Embedding.GeminiAPIKey, "FACTUM_GEMINI_API_KEY")
	setString(&cfg.Embedding.GeminiModel, "FACTUM_GEMINI_MODEL")
	setString(&cfg.Embedding.OpenAIAPIKey, "FACTUM_OPENAI_API_KEY")
	setString(&cfg.Embedding.OpenAIModel, "FACTUM_OPENAI_MODEL")
	setString(&cfg.Embedding.OpenAIBaseURL, "FACTUM_OPENAI_BASE_URL")
	setString(&cfg.Embedding.CohereAPIKey, "FACTUM_COHERE_API_KEY")
	setString(&cfg.Embedding.CohereModel, "FACTUM_COHERE_MODEL")

	setString(&cfg.Security.APIToken, "FACTUM_API_TOKEN")
	setString(&cfg.User.UserID, "FACTUM_USER_ID")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}
