// Package config holds engine configuration with file and environment
// loading. JSON and YAML files are supported, selected by extension.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the engine-wide configuration.
type Config struct {
	// MaxMessageBytes caps the serialized size of a whole event.
	MaxMessageBytes int `json:"maxMessageBytes" yaml:"maxMessageBytes"`
	// MaxPayloadBytes caps the serialized size of the payload alone.
	MaxPayloadBytes int `json:"maxPayloadBytes" yaml:"maxPayloadBytes"`
	// SubscriberBuffer is the capacity of each consumer delivery channel.
	SubscriberBuffer int `json:"subscriberBuffer" yaml:"subscriberBuffer"`
	// PollInterval is the stream-mode consumer sleep between batches.
	PollInterval time.Duration `json:"pollIntervalMs" yaml:"pollIntervalMs"`
	// MaxEmptyPolls is the consecutive-empty-batch threshold after which the
	// consumer loop backs off sharply.
	MaxEmptyPolls int `json:"maxEmptyPolls" yaml:"maxEmptyPolls"`
	// BackoffCap bounds the consumer poll backoff.
	BackoffCap time.Duration `json:"backoffCapMs" yaml:"backoffCapMs"`
	// DefaultVisibilityTimeout applies to queues that do not set their own.
	DefaultVisibilityTimeout time.Duration `json:"defaultVisibilityTimeoutMs" yaml:"defaultVisibilityTimeoutMs"`
	// DefaultBatchSize applies to subscriptions that do not set their own.
	DefaultBatchSize int `json:"defaultBatchSize" yaml:"defaultBatchSize"`
	// DeadLetterCap bounds each dead-letter buffer.
	DeadLetterCap int `json:"deadLetterCap" yaml:"deadLetterCap"`
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		MaxMessageBytes:          1 << 20,
		MaxPayloadBytes:          512 << 10,
		SubscriberBuffer:         1024,
		PollInterval:             50 * time.Millisecond,
		MaxEmptyPolls:            10,
		BackoffCap:               5 * time.Second,
		DefaultVisibilityTimeout: 30 * time.Second,
		DefaultBatchSize:         100,
		DeadLetterCap:            10_000,
	}
}

// durations in files are expressed in milliseconds; normalize after decode.
func (c *Config) normalizeDurations() {
	if c.PollInterval > 0 && c.PollInterval < time.Millisecond {
		c.PollInterval *= time.Millisecond
	}
	if c.BackoffCap > 0 && c.BackoffCap < time.Millisecond {
		c.BackoffCap *= time.Millisecond
	}
	if c.DefaultVisibilityTimeout > 0 && c.DefaultVisibilityTimeout < time.Millisecond {
		c.DefaultVisibilityTimeout *= time.Millisecond
	}
}

// Load reads configuration from a JSON or YAML file by extension. An empty
// path returns defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse yaml config: %w", err)
		}
	default:
		if err := json.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse json config: %w", err)
		}
	}
	cfg.normalizeDurations()
	return cfg, nil
}

// FromEnv overlays KEEL_* environment variables onto the config.
// Recognized: KEEL_MAX_MESSAGE_BYTES, KEEL_MAX_PAYLOAD_BYTES,
// KEEL_SUBSCRIBER_BUFFER, KEEL_POLL_INTERVAL_MS, KEEL_MAX_EMPTY_POLLS.
func FromEnv(cfg Config) Config {
	if v := os.Getenv("KEEL_MAX_MESSAGE_BYTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxMessageBytes = n
		}
	}
	if v := os.Getenv("KEEL_MAX_PAYLOAD_BYTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxPayloadBytes = n
		}
	}
	if v := os.Getenv("KEEL_SUBSCRIBER_BUFFER"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.SubscriberBuffer = n
		}
	}
	if v := os.Getenv("KEEL_POLL_INTERVAL_MS"); v != "" {
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil && ms > 0 {
			cfg.PollInterval = time.Duration(ms) * time.Millisecond
		}
	}
	if v := os.Getenv("KEEL_MAX_EMPTY_POLLS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxEmptyPolls = n
		}
	}
	return cfg
}
