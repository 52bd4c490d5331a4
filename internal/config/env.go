package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

type envBinding struct {
	keys []string
	set  func(c *Config, v string) error
}

func str(dst func(*Config) *string) func(*Config, string) error {
	return func(c *Config, v string) error {
		*dst(c) = v
		return nil
	}
}

func integer(dst func(*Config) *int) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*dst(c) = n
		return nil
	}
}

func boolean(dst func(*Config) *bool) func(*Config, string) error {
	return func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*dst(c) = b
		return nil
	}
}

func duration(dst func(*Config) *time.Duration) func(*Config, string) error {
	return func(c *Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*dst(c) = d
		return nil
	}
}

// The first key found wins. OLLAMA_HOST and OLLAMA_MODEL are honoured as
// the Ollama tooling itself uses them.
var envBindings = []envBinding{
	{[]string{"ARIS_LOG_LEVEL"}, str(func(c *Config) *string { return &c.Log.Level })},
	{[]string{"ARIS_LOG_FORMAT"}, str(func(c *Config) *string { return &c.Log.Format })},
	{[]string{"ARIS_MAX_STEPS"}, integer(func(c *Config) *int { return &c.Engine.MaxSteps })},
	{[]string{"ARIS_MAX_VALIDATION_RETRIES"}, integer(func(c *Config) *int { return &c.Engine.MaxValidationRetries })},
	{[]string{"ARIS_VALIDATE"}, boolean(func(c *Config) *bool { return &c.Engine.Validate })},
	{[]string{"ARIS_CONCURRENCY"}, integer(func(c *Config) *int { return &c.Engine.Concurrency })},
	{[]string{"ARIS_MAX_QUERY_SIZE"}, integer(func(c *Config) *int { return &c.Engine.MaxQuerySize })},
	{[]string{"ARIS_SEARXNG_URL"}, str(func(c *Config) *string { return &c.Search.SearXNGURL })},
	{[]string{"ARIS_SEARCH_MAX_RESULTS"}, integer(func(c *Config) *int { return &c.Search.MaxResults })},
	{[]string{"ARIS_SEARCH_EXPAND"}, boolean(func(c *Config) *bool { return &c.Search.Expand })},
	{[]string{"ARIS_FETCH_TIMEOUT"}, duration(func(c *Config) *time.Duration { return &c.Fetch.Timeout })},
	{[]string{"ARIS_FETCH_USER_AGENT"}, str(func(c *Config) *string { return &c.Fetch.UserAgent })},
	{[]string{"ARIS_FETCH_TOOL"}, boolean(func(c *Config) *bool { return &c.Fetch.Tool })},
	{[]string{"ARIS_LLM_PROVIDER"}, str(func(c *Config) *string { return &c.LLM.Provider })},
	{[]string{"ARIS_OLLAMA_HOST", "OLLAMA_HOST"}, str(func(c *Config) *string { return &c.LLM.Host })},
	{[]string{"ARIS_OLLAMA_MODEL", "OLLAMA_MODEL"}, str(func(c *Config) *string { return &c.LLM.Model })},
	{[]string{"ARIS_TOOLS_FILE"}, str(func(c *Config) *string { return &c.Tools.File })},
	{[]string{"ARIS_KNOWLEDGE_INDEX"}, str(func(c *Config) *string { return &c.Tools.KnowledgeIndex })},
	{[]string{"ARIS_KNOWLEDGE_DIR"}, str(func(c *Config) *string { return &c.Tools.KnowledgeDir })},
	{[]string{"ARIS_CHECKPOINT_BACKEND"}, str(func(c *Config) *string { return &c.Checkpoint.Backend })},
	{[]string{"ARIS_CHECKPOINT_DIR"}, str(func(c *Config) *string { return &c.Checkpoint.Dir })},
	{[]string{"ARIS_CHECKPOINT_TTL"}, duration(func(c *Config) *time.Duration { return &c.Checkpoint.TTL })},
	{[]string{"ARIS_REDIS_ADDR"}, str(func(c *Config) *string { return &c.Checkpoint.RedisAddr })},
	{[]string{"ARIS_REDIS_PASSWORD"}, str(func(c *Config) *string { return &c.Checkpoint.RedisPassword })},
	{[]string{"ARIS_REDIS_DB"}, integer(func(c *Config) *int { return &c.Checkpoint.RedisDB })},
	{[]string{"ARIS_SQLITE_PATH"}, str(func(c *Config) *string { return &c.Checkpoint.SQLitePath })},
	{[]string{"ARIS_ENCRYPTION_KEY"}, str(func(c *Config) *string { return &c.Checkpoint.EncryptionKey })},
	{[]string{"ARIS_HTTP_ADDR"}, str(func(c *Config) *string { return &c.HTTP.Addr })},
	{[]string{"ARIS_TASK_TIMEOUT"}, duration(func(c *Config) *time.Duration { return &c.HTTP.TaskTimeout })},
}

// ApplyEnv overrides fields from the environment. Malformed values are
// reported together.
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	var errs []error
	for _, b := range envBindings {
		for _, key := range b.keys {
			v, ok := lookup(key)
			if !ok {
				continue
			}
			if err := b.set(c, strings.TrimSpace(v)); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
			}
			break
		}
	}
	if v, ok := lookup("ARIS_REDACT_PATTERNS"); ok && v != "" {
		c.Checkpoint.RedactPatterns = strings.Split(v, ",")
	}
	return errors.Join(errs...)
}
