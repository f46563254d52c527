package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg != Default() {
		t.Fatalf("empty path should yield defaults: %+v", cfg)
	}
	if cfg.MaxMessageBytes != 1<<20 || cfg.DefaultBatchSize != 100 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadJSONOverlaysDefaults(t *testing.T) {
	path := writeFile(t, "keel.json", `{
		"maxMessageBytes": 2048,
		"pollIntervalMs": 25,
		"defaultVisibilityTimeoutMs": 60000
	}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.MaxMessageBytes != 2048 {
		t.Fatalf("maxMessageBytes: %d", cfg.MaxMessageBytes)
	}
	if cfg.PollInterval != 25*time.Millisecond {
		t.Fatalf("pollInterval: %v", cfg.PollInterval)
	}
	if cfg.DefaultVisibilityTimeout != time.Minute {
		t.Fatalf("visibility: %v", cfg.DefaultVisibilityTimeout)
	}
	// untouched keys keep defaults
	if cfg.SubscriberBuffer != Default().SubscriberBuffer {
		t.Fatalf("subscriberBuffer changed: %d", cfg.SubscriberBuffer)
	}
}

func TestLoadYAMLOverlaysDefaults(t *testing.T) {
	path := writeFile(t, "keel.yaml", "maxPayloadBytes: 4096\nbackoffCapMs: 250\ndeadLetterCap: 42\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.MaxPayloadBytes != 4096 {
		t.Fatalf("maxPayloadBytes: %d", cfg.MaxPayloadBytes)
	}
	if cfg.BackoffCap != 250*time.Millisecond {
		t.Fatalf("backoffCap: %v", cfg.BackoffCap)
	}
	if cfg.DeadLetterCap != 42 {
		t.Fatalf("deadLetterCap: %d", cfg.DeadLetterCap)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatalf("missing file should error")
	}
	path := writeFile(t, "bad.yaml", "maxPayloadBytes: [not a number\n")
	if _, err := Load(path); err == nil {
		t.Fatalf("malformed yaml should error")
	}
}

func TestFromEnvOverlays(t *testing.T) {
	t.Setenv("KEEL_MAX_MESSAGE_BYTES", "777")
	t.Setenv("KEEL_POLL_INTERVAL_MS", "5")
	t.Setenv("KEEL_MAX_EMPTY_POLLS", "not-a-number")

	cfg := FromEnv(Default())
	if cfg.MaxMessageBytes != 777 {
		t.Fatalf("maxMessageBytes: %d", cfg.MaxMessageBytes)
	}
	if cfg.PollInterval != 5*time.Millisecond {
		t.Fatalf("pollInterval: %v", cfg.PollInterval)
	}
	if cfg.MaxEmptyPolls != Default().MaxEmptyPolls {
		t.Fatalf("bad env value should be ignored: %d", cfg.MaxEmptyPolls)
	}
}

func TestFromEnvIgnoresZeroPollInterval(t *testing.T) {
	t.Setenv("KEEL_POLL_INTERVAL_MS", "0")
	cfg := FromEnv(Default())
	if cfg.PollInterval != Default().PollInterval {
		t.Fatalf("zero poll interval accepted: %v", cfg.PollInterval)
	}
}
