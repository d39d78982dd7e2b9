package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all lisan configuration.
type Config struct {
	Listen     string           `yaml:"listen"`
	Log        LogConfig        `yaml:"log"`
	Auth       AuthConfig       `yaml:"auth"`
	Generation GenerationConfig `yaml:"generation"`
	Cache      CacheConfig      `yaml:"cache"`
	Worker     WorkerConfig     `yaml:"worker"`
	Retry      RetryConfig      `yaml:"retry"`
	Events     EventsConfig     `yaml:"events"`
	RateLimit  RateLimitConfig  `yaml:"ratelimit"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	Server     ServerConfig     `yaml:"server"`
}

// LogConfig controls the root logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" (default) or "console"
}

// AuthConfig controls bearer token issuance and validation.
type AuthConfig struct {
	Secret    string        `yaml:"secret"`
	Algorithm string        `yaml:"algorithm"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
	Issuer    string        `yaml:"issuer"`
}

// GenerationConfig defines the upstream text generation backend.
type GenerationConfig struct {
	URL     string        `yaml:"url"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

// CacheConfig sizes the two result caches.
type CacheConfig struct {
	Capacity int           `yaml:"capacity"`
	TTL      time.Duration `yaml:"ttl"`
}

// WorkerConfig sizes the background task pool.
type WorkerConfig struct {
	Workers   int `yaml:"workers"`
	QueueSize int `yaml:"queue_size"`
}

// RetryConfig controls the background regeneration after a failed synchronous attempt.
type RetryConfig struct {
	MaxAttempts  int           `yaml:"max_attempts"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
}

// EventsConfig selects the audit event transport.
// Transport is one of "kafka", "redis", "sqlite" or "none".
type EventsConfig struct {
	Transport     string        `yaml:"transport"`
	Brokers       []string      `yaml:"brokers"`
	Topic         string        `yaml:"topic"`
	RedisAddr     string        `yaml:"redis_addr"`
	JournalPath   string        `yaml:"journal_path"`
	RetentionDays int           `yaml:"retention_days"`
	AckTimeout    time.Duration `yaml:"ack_timeout"`
}

// RateLimitConfig controls per-principal request throttling.
type RateLimitConfig struct {
	Enabled           bool    `yaml:"enabled"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// TelemetryConfig controls metrics and tracing export.
type TelemetryConfig struct {
	ServiceName   string `yaml:"service_name"`
	Metrics       bool   `yaml:"metrics"`
	TraceExporter string `yaml:"trace_exporter"` // stdout|otlp|none
}

// ServerConfig holds HTTP server timeouts.
type ServerConfig struct {
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Listen: ":8080",
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Auth: AuthConfig{
			Secret:    "your-secret-key",
			Algorithm: "HS256",
			TokenTTL:  30 * time.Minute,
		},
		Generation: GenerationConfig{
			URL:     "http://localhost:11434",
			Model:   "llama3",
			Timeout: 60 * time.Second,
		},
		Cache: CacheConfig{
			Capacity: 100,
			TTL:      time.Hour,
		},
		Worker: WorkerConfig{
			Workers:   4,
			QueueSize: 256,
		},
		Retry: RetryConfig{
			MaxAttempts:  1,
			InitialDelay: 500 * time.Millisecond,
			MaxDelay:     10 * time.Second,
		},
		Events: EventsConfig{
			Transport:     "kafka",
			Brokers:       []string{"kafka:9092"},
			Topic:         "translator_requests",
			RedisAddr:     "localhost:6379",
			JournalPath:   "lisan-events.db",
			RetentionDays: 30,
			AckTimeout:    60 * time.Second,
		},
		RateLimit: RateLimitConfig{
			Enabled:           false,
			RequestsPerSecond: 5,
			Burst:             10,
		},
		Telemetry: TelemetryConfig{
			ServiceName:   "lisan",
			Metrics:       true,
			TraceExporter: "none",
		},
		Server: ServerConfig{
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    90 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MaxBodyBytes:    1 << 20,
		},
	}
}

// Load reads a YAML config file, expands environment variables and applies
// environment overrides. An empty path skips the file and uses defaults.
func Load(path string) (*Config, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}

		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("LISAN_LISTEN"); v != "" {
		c.Listen = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		c.Auth.Secret = v
	}
	if v := os.Getenv("JWT_ALGORITHM"); v != "" {
		c.Auth.Algorithm = v
	}
	if v := os.Getenv("KAFKA_BOOTSTRAP_SERVERS"); v != "" {
		c.Events.Brokers = splitList(v)
	}
	if v := os.Getenv("OLLAMA_HOST"); v != "" {
		if !strings.Contains(v, "://") {
			v = "http://" + v
		}
		c.Generation.URL = v
	}
}

var validTransports = map[string]bool{
	"kafka":  true,
	"redis":  true,
	"sqlite": true,
	"none":   true,
	"":       true,
}

var validAlgorithms = map[string]bool{
	"HS256": true,
	"HS384": true,
	"HS512": true,
}

// Validate checks the configuration for values the service cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Auth.Secret == "" {
		errs = append(errs, errors.New("auth.secret is required"))
	}
	if !validAlgorithms[c.Auth.Algorithm] {
		errs = append(errs, fmt.Errorf("auth.algorithm %q is not supported", c.Auth.Algorithm))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("auth.token_ttl must be positive"))
	}
	if c.Generation.URL == "" {
		errs = append(errs, errors.New("generation.url is required"))
	}
	if c.Cache.Capacity <= 0 {
		errs = append(errs, errors.New("cache.capacity must be positive"))
	}
	if c.Cache.TTL <= 0 {
		errs = append(errs, errors.New("cache.ttl must be positive"))
	}
	if c.Worker.Workers <= 0 {
		errs = append(errs, errors.New("worker.workers must be positive"))
	}
	if c.Retry.MaxAttempts <= 0 {
		errs = append(errs, errors.New("retry.max_attempts must be positive"))
	}
	if !validTransports[c.Events.Transport] {
		errs = append(errs, fmt.Errorf("events.transport %q is not supported", c.Events.Transport))
	}
	if c.Events.Transport == "kafka" && len(c.Events.Brokers) == 0 {
		errs = append(errs, errors.New("events.brokers is required for the kafka transport"))
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("server.shutdown_timeout must be positive"))
	}
	if c.RateLimit.Enabled && c.RateLimit.RequestsPerSecond <= 0 {
		errs = append(errs, errors.New("ratelimit.requests_per_second must be positive"))
	}
	return errors.Join(errs...)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
