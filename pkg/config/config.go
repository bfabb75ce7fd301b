// Package config loads the YAML service configuration. Secrets may come
// from the file or from the environment; the environment wins when both are
// set, so deployments never need keys on disk.
package config

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

// Config is the top-level service configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Queue       QueueConfig       `yaml:"queue"`
	Storage     StorageConfig     `yaml:"storage"`
	OpenAI      OpenAIConfig      `yaml:"openai"`
	Deepgram    DeepgramConfig    `yaml:"deepgram"`
	Transcriber TranscriberConfig `yaml:"transcriber"`
	Output      OutputConfig      `yaml:"output"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port          int    `yaml:"port"`
	MaxUploadSize int64  `yaml:"max_upload_size"` // bytes
	UploadDir     string `yaml:"upload_dir"`
}

// QueueConfig selects and tunes the job queue.
type QueueConfig struct {
	Type       string         `yaml:"type"` // "memory" or "rabbitmq"
	BufferSize int            `yaml:"buffer_size"`
	RabbitMQ   RabbitMQConfig `yaml:"rabbitmq"`
}

// RabbitMQConfig configures the broker-backed queue.
type RabbitMQConfig struct {
	URL       string `yaml:"url"`
	QueueName string `yaml:"queue_name"`
	Prefetch  int    `yaml:"prefetch"`
}

// StorageConfig selects and tunes job persistence.
type StorageConfig struct {
	Type     string         `yaml:"type"` // "memory", "redis", "postgres" or "hybrid"
	Redis    RedisConfig    `yaml:"redis"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// RedisConfig configures the hot job store.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	TTLHours int    `yaml:"ttl_hours"`
}

// PostgresConfig configures the durable job store.
type PostgresConfig struct {
	ConnString string `yaml:"conn_string"`
}

// OpenAIConfig holds the hosted whisper credential.
type OpenAIConfig struct {
	APIKey string `yaml:"api_key"`
}

// DeepgramConfig holds the secondary provider credential.
type DeepgramConfig struct {
	APIKey string `yaml:"api_key"`
}

// TranscriberConfig tunes engine selection and concurrency.
type TranscriberConfig struct {
	WorkerPoolSize  int    `yaml:"worker_pool_size"` // concurrent jobs
	ChunkWorkers    int    `yaml:"chunk_workers"`    // concurrent chunks per job
	SegmentDuration int    `yaml:"segment_duration"` // seconds per chunk
	MaxRetries      int    `yaml:"max_retries"`
	RetryDelaySecs  int    `yaml:"retry_delay_seconds"`
	ForceCloud      bool   `yaml:"force_cloud"`
	Fallback        string `yaml:"fallback"` // cloud engine to try after local
	Language        string `yaml:"language"`
	ScratchDir      string `yaml:"scratch_dir"`
}

// OutputConfig sets rendering defaults.
type OutputConfig struct {
	Formats           []string `yaml:"formats"`
	Dir               string   `yaml:"dir"`
	IncludeTimestamps bool     `yaml:"include_timestamps"`
	IncludeSpeakers   bool     `yaml:"include_speakers"`
	IncludeConfidence bool     `yaml:"include_confidence"`
	LineWidth         int      `yaml:"line_width"`
}

// Load reads, parses and normalizes the configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

// Validate fills defaults and resolves environment overrides. Missing cloud
// credentials are not fatal here: the transcriber treats an engine without a
// key as unavailable.
func (c *Config) Validate() error {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.OpenAI.APIKey = key
	}
	if key := os.Getenv("DEEPGRAM_API_KEY"); key != "" {
		c.Deepgram.APIKey = key
	}

	if c.Server.Port <= 0 {
		c.Server.Port = 8080
	}
	if c.Server.MaxUploadSize <= 0 {
		c.Server.MaxUploadSize = 500 << 20
	}
	if c.Server.UploadDir == "" {
		c.Server.UploadDir = "uploads"
	}

	if c.Queue.Type == "" {
		c.Queue.Type = "memory"
	}
	if c.Queue.BufferSize <= 0 {
		c.Queue.BufferSize = 100
	}
	if c.Queue.Type == "rabbitmq" && c.Queue.RabbitMQ.URL == "" {
		return fmt.Errorf("queue type is rabbitmq but no broker URL is set")
	}
	if c.Queue.RabbitMQ.QueueName == "" {
		c.Queue.RabbitMQ.QueueName = "vox_jobs"
	}

	if c.Storage.Type == "" {
		c.Storage.Type = "memory"
	}
	switch c.Storage.Type {
	case "memory":
	case "redis", "hybrid":
		if c.Storage.Redis.Addr == "" {
			return fmt.Errorf("storage type %s requires a redis address", c.Storage.Type)
		}
		if c.Storage.Redis.TTLHours <= 0 {
			c.Storage.Redis.TTLHours = 24
		}
		if c.Storage.Type == "hybrid" && c.Storage.Postgres.ConnString == "" {
			return fmt.Errorf("hybrid storage requires a postgres connection string")
		}
	case "postgres":
		if c.Storage.Postgres.ConnString == "" {
			return fmt.Errorf("storage type postgres requires a connection string")
		}
	default:
		return fmt.Errorf("unknown storage type %q", c.Storage.Type)
	}

	if c.Transcriber.WorkerPoolSize <= 0 {
		c.Transcriber.WorkerPoolSize = 2
	}
	if c.Transcriber.ChunkWorkers <= 0 {
		c.Transcriber.ChunkWorkers = 3
	}
	if c.Transcriber.SegmentDuration <= 0 {
		c.Transcriber.SegmentDuration = 600
	}
	if c.Transcriber.MaxRetries <= 0 {
		c.Transcriber.MaxRetries = 3
	}
	if c.Transcriber.RetryDelaySecs <= 0 {
		c.Transcriber.RetryDelaySecs = 2
	}
	if c.Transcriber.Fallback == "" {
		c.Transcriber.Fallback = "openai"
	}

	if len(c.Output.Formats) == 0 {
		c.Output.Formats = []string{"txt"}
	}
	return nil
}
