package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultBaseURL      = "https://router.huggingface.co/v1"
	DefaultModel        = "HuggingFaceTB/SmolLM3-3B:hf-inference"
	DefaultSystemPrompt = "You are Verona, a smart AI assistant. Provide accurate and helpful answers. Think before answering, but never reveal internal reasoning."
)

type Config struct {
	// Server
	Port string `yaml:"port"`
	Env  string `yaml:"env"`

	// Inference provider
	HFToken                string        `yaml:"-"`
	HFBaseURL              string        `yaml:"hf_base_url"`
	ModelID                string        `yaml:"model_id"`
	ProviderTimeout        time.Duration `yaml:"provider_timeout"`
	ProviderConcurrentReqs int           `yaml:"provider_concurrent_requests"`

	// Conversation
	SystemPrompt       string        `yaml:"system_prompt"`
	WindowSize         int           `yaml:"window_size"`
	SessionIdleTimeout time.Duration `yaml:"session_idle_timeout"`

	// Snapshots
	SnapshotBackend string        `yaml:"snapshot_backend"`
	SnapshotDir     string        `yaml:"snapshot_dir"`
	SnapshotTTL     time.Duration `yaml:"snapshot_ttl"`

	// Redis
	RedisURL string `yaml:"redis_url"`

	// JWT (tokens issued by the identity provider)
	JWTSecret string `yaml:"-"`

	// HTTP
	FrontendURL        string `yaml:"frontend_url"`
	RateLimitPerMinute int    `yaml:"rate_limit_per_minute"`
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:                   getEnvOrDefault("PORT", "8080"),
		Env:                    getEnvOrDefault("ENV", "development"),
		HFToken:                mustGetEnv("HF_TOKEN"),
		HFBaseURL:              getEnvOrDefault("HF_BASE_URL", DefaultBaseURL),
		ModelID:                getEnvOrDefault("MODEL_ID", DefaultModel),
		ProviderTimeout:        getEnvAsDurationOrDefault("PROVIDER_TIMEOUT", 60*time.Second),
		ProviderConcurrentReqs: getEnvAsIntOrDefault("PROVIDER_CONCURRENT_REQUESTS", 5),
		SystemPrompt:           getEnvOrDefault("SYSTEM_PROMPT", DefaultSystemPrompt),
		WindowSize:             getEnvAsIntOrDefault("WINDOW_SIZE", 8),
		SessionIdleTimeout:     getEnvAsDurationOrDefault("SESSION_IDLE_TIMEOUT", 30*time.Minute),
		SnapshotBackend:        getEnvOrDefault("SNAPSHOT_BACKEND", "file"),
		SnapshotDir:            getEnvOrDefault("SNAPSHOT_DIR", "./conversations"),
		SnapshotTTL:            getEnvAsDurationOrDefault("SNAPSHOT_TTL", 0),
		RedisURL:               getEnvOrDefault("REDIS_URL", ""),
		JWTSecret:              getEnvOrDefault("JWT_SECRET", ""),
		FrontendURL:            getEnvOrDefault("FRONTEND_URL", "http://localhost:5173"),
		RateLimitPerMinute:     getEnvAsIntOrDefault("RATE_LIMIT_PER_MINUTE", 30),
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			panic(err.Error())
		}
	}

	return cfg
}

// LoadFile overlays the keys present in a YAML document onto cfg. Unknown
// keys are rejected. Secrets are only read from the environment.
func (c *Config) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) Validate() error {
	if c.WindowSize < 1 {
		return fmt.Errorf("window size must be at least 1, got %d", c.WindowSize)
	}
	if c.ProviderTimeout <= 0 {
		return fmt.Errorf("provider timeout must be positive, got %s", c.ProviderTimeout)
	}
	switch c.SnapshotBackend {
	case "file":
	case "redis":
		if c.RedisURL == "" {
			return errors.New("snapshot backend redis requires REDIS_URL")
		}
	default:
		return fmt.Errorf("unknown snapshot backend %q", c.SnapshotBackend)
	}
	return nil
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvAsDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}
	return d
}
