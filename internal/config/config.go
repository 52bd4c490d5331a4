// Package config loads the aris configuration: YAML file first, then
// ARIS_* environment variables (with .env support) on top.
package config

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/aretw0/aris/pkg/retry"
)

// DefaultPath is read when no config file is given. It may be absent.
const DefaultPath = "aris.yaml"

// Checkpoint backends.
const (
	BackendNone   = "none"
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

type Config struct {
	Log        LogConfig              `yaml:"log"`
	Engine     EngineConfig           `yaml:"engine"`
	Retry      map[string]RetryConfig `yaml:"retry"`
	Search     SearchConfig           `yaml:"search"`
	Fetch      FetchConfig            `yaml:"fetch"`
	LLM        LLMConfig              `yaml:"llm"`
	Tools      ToolsConfig            `yaml:"tools"`
	Checkpoint CheckpointConfig       `yaml:"checkpoint"`
	HTTP       HTTPConfig             `yaml:"http"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

type EngineConfig struct {
	MaxSteps             int  `yaml:"max_steps"`
	MaxValidationRetries int  `yaml:"max_validation_retries"`
	Validate             bool `yaml:"validate"`
	Concurrency          int  `yaml:"concurrency"`
	// ValidationThreshold is the passing score of the heuristic validator.
	ValidationThreshold float64 `yaml:"validation_threshold"`
	// MaxQuerySize caps submitted queries, in bytes.
	MaxQuerySize int `yaml:"max_query_size"`
}

// RetryConfig is the file form of a retry.Policy. Keys of Config.Retry are
// search, fetch, generate, tool and validate.
type RetryConfig struct {
	Tries          int           `yaml:"tries"`
	Delay          time.Duration `yaml:"delay"`
	Multiplier     float64       `yaml:"multiplier"`
	MaxDelay       time.Duration `yaml:"max_delay"`
	AttemptTimeout time.Duration `yaml:"attempt_timeout"`
}

// Policy converts the entry to a retry policy.
func (r RetryConfig) Policy() retry.Policy {
	return retry.Policy{
		Tries:          r.Tries,
		Delay:          r.Delay,
		Multiplier:     r.Multiplier,
		MaxDelay:       r.MaxDelay,
		AttemptTimeout: r.AttemptTimeout,
	}
}

type SearchConfig struct {
	// SearXNGURL enables web research. Empty disables the search step unless
	// a knowledge index is configured.
	SearXNGURL string   `yaml:"searxng_url"`
	MaxResults int      `yaml:"max_results"`
	Expand     bool     `yaml:"expand"`
	Facets     []string `yaml:"facets"`
	Categories string   `yaml:"categories"`
	// Corpus is a fixed set of pages searched offline when no SearXNG URL
	// is set.
	Corpus []CorpusPage `yaml:"corpus"`
}

type CorpusPage struct {
	Source  string `yaml:"source"`
	Title   string `yaml:"title"`
	Content string `yaml:"content"`
}

type FetchConfig struct {
	Timeout   time.Duration `yaml:"timeout"`
	MaxBytes  int64         `yaml:"max_bytes"`
	UserAgent string        `yaml:"user_agent"`
	// Tool registers fetch_url so the model can read pages on demand.
	Tool bool `yaml:"tool"`
}

type LLMConfig struct {
	Provider    string   `yaml:"provider"` // ollama or scripted
	Host        string   `yaml:"host"`
	Model       string   `yaml:"model"`
	Temperature *float64 `yaml:"temperature"`
	// Script is the reply list of the scripted provider, for demos and tests.
	Script []string `yaml:"script"`
}

type ToolsConfig struct {
	File           string `yaml:"file"`
	KnowledgeIndex string `yaml:"knowledge_index"`
	KnowledgeDir   string `yaml:"knowledge_dir"`
	// Confirm asks on the terminal before each tool call.
	Confirm bool `yaml:"confirm"`
}

type CheckpointConfig struct {
	Backend        string        `yaml:"backend"`
	Dir            string        `yaml:"dir"`
	RedisAddr      string        `yaml:"redis_addr"`
	RedisPassword  string        `yaml:"redis_password"`
	RedisDB        int           `yaml:"redis_db"`
	SQLitePath     string        `yaml:"sqlite_path"`
	TTL            time.Duration `yaml:"ttl"`
	EncryptionKey  string        `yaml:"encryption_key"`
	RedactPatterns []string      `yaml:"redact_patterns"`
	// DistributedLock guards runs with a redis lock (redis backend only).
	DistributedLock bool `yaml:"distributed_lock"`
}

type HTTPConfig struct {
	Addr        string        `yaml:"addr"`
	TaskTimeout time.Duration `yaml:"task_timeout"`
	Metrics     bool          `yaml:"metrics"`
}

func defaultRetry() RetryConfig {
	p := retry.Default()
	return RetryConfig{Tries: p.Tries, Delay: p.Delay, Multiplier: p.Multiplier, MaxDelay: p.MaxDelay}
}

// New returns the defaults.
func New() *Config {
	return &Config{
		Log: LogConfig{Level: "info", Format: "text"},
		Engine: EngineConfig{
			MaxSteps:             50,
			MaxValidationRetries: 2,
			Validate:             true,
			Concurrency:          4,
			ValidationThreshold:  0.6,
			MaxQuerySize:         4096,
		},
		Retry: map[string]RetryConfig{
			"search":   defaultRetry(),
			"fetch":    defaultRetry(),
			"generate": defaultRetry(),
			"tool":     defaultRetry(),
			"validate": {Tries: 1},
		},
		Search: SearchConfig{MaxResults: 10},
		Fetch: FetchConfig{
			Timeout:   20 * time.Second,
			MaxBytes:  2 << 20,
			UserAgent: "Mozilla/5.0 (compatible; aris/1.0)",
		},
		LLM: LLMConfig{
			Provider: "ollama",
			Host:     "http://localhost:11434",
			Model:    "llama3.1",
		},
		Tools: ToolsConfig{File: "tools.yaml"},
		Checkpoint: CheckpointConfig{
			Backend:    BackendMemory,
			Dir:        ".aris/checkpoints",
			RedisAddr:  "localhost:6379",
			SQLitePath: ".aris/checkpoints.db",
		},
		HTTP: HTTPConfig{Addr: ":8080", Metrics: true},
	}
}

// Load reads .env (if present), the YAML file at path and the environment.
// An empty path reads DefaultPath when it exists.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := New()
	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := cfg.Decode(data); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Decode merges a YAML document into cfg. Unknown keys are rejected.
// Retry entries merge per key, so a partial entry keeps the other defaults.
func (c *Config) Decode(data []byte) error {
	defaults := c.Retry
	c.Retry = nil

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		c.Retry = defaults
		return err
	}

	merged := defaults
	for k, v := range c.Retry {
		base := merged[k]
		if v.Tries != 0 {
			base.Tries = v.Tries
		}
		if v.Delay != 0 {
			base.Delay = v.Delay
		}
		if v.Multiplier != 0 {
			base.Multiplier = v.Multiplier
		}
		if v.MaxDelay != 0 {
			base.MaxDelay = v.MaxDelay
		}
		if v.AttemptTimeout != 0 {
			base.AttemptTimeout = v.AttemptTimeout
		}
		merged[k] = base
	}
	c.Retry = merged
	return nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	var errs []error
	switch c.Checkpoint.Backend {
	case BackendNone, BackendMemory, BackendFile, BackendRedis, BackendSQLite:
	default:
		errs = append(errs, fmt.Errorf("checkpoint.backend: unknown backend %q", c.Checkpoint.Backend))
	}
	if c.Checkpoint.DistributedLock && c.Checkpoint.Backend != BackendRedis {
		errs = append(errs, errors.New("checkpoint.distributed_lock requires the redis backend"))
	}
	if c.Checkpoint.EncryptionKey != "" {
		if _, err := c.Checkpoint.Key(); err != nil {
			errs = append(errs, err)
		}
	}
	switch c.LLM.Provider {
	case "ollama", "scripted":
	default:
		errs = append(errs, fmt.Errorf("llm.provider: unknown provider %q", c.LLM.Provider))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format: must be text or json, got %q", c.Log.Format))
	}
	if c.Engine.MaxSteps < 0 {
		errs = append(errs, errors.New("engine.max_steps: must not be negative"))
	}
	if c.Engine.MaxValidationRetries < 0 {
		errs = append(errs, errors.New("engine.max_validation_retries: must not be negative"))
	}
	if c.Engine.MaxQuerySize < 0 {
		errs = append(errs, errors.New("engine.max_query_size: must not be negative"))
	}
	for name := range c.Retry {
		switch name {
		case "search", "fetch", "generate", "tool", "validate":
		default:
			errs = append(errs, fmt.Errorf("retry: unknown capability %q", name))
		}
	}
	return errors.Join(errs...)
}

// Key decodes the encryption key. It accepts 64 hex characters or
// standard base64, and must yield 32 bytes.
func (c CheckpointConfig) Key() ([]byte, error) {
	raw := c.EncryptionKey
	if key, err := hex.DecodeString(raw); err == nil && len(key) == 32 {
		return key, nil
	}
	if key, err := base64.StdEncoding.DecodeString(raw); err == nil && len(key) == 32 {
		return key, nil
	}
	return nil, errors.New("checkpoint.encryption_key: must be 32 bytes, hex or base64 encoded")
}
