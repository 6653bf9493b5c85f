package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, entry := range os.Environ() {
		if strings.HasPrefix(entry, EnvPrefix) {
			key := strings.SplitN(entry, "=", 2)[0]
			t.Setenv(key, "")
			os.Unsetenv(key)
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, _, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("expected default http addr :8080, got %q", cfg.HTTPAddr)
	}
	if cfg.MinimumDurationMinutes != 3 {
		t.Fatalf("expected default minimum duration 3, got %d", cfg.MinimumDurationMinutes)
	}
	if got := cfg.ParsedCompletionTimeout(); got != 15*time.Minute {
		t.Fatalf("expected default completion timeout 15m, got %s", got)
	}
	if got := cfg.ParsedGraceDelay(); got != 5*time.Second {
		t.Fatalf("expected default grace delay 5s, got %s", got)
	}
}

func TestLoadYAMLFileAndEnvOverrides(t *testing.T) {
	clearEnv(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := []byte("http_addr: \":9090\"\nminimum_duration_minutes: 8\ncompletion_timeout: 10m\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	t.Setenv(EnvPrefix+"MINIMUM_DURATION_MINUTES", "4")

	cfg, _, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.HTTPAddr != ":9090" {
		t.Fatalf("expected yaml http addr :9090, got %q", cfg.HTTPAddr)
	}
	if cfg.MinimumDurationMinutes != 4 {
		t.Fatalf("expected env override to win, got %d", cfg.MinimumDurationMinutes)
	}
	if got := cfg.ParsedCompletionTimeout(); got != 10*time.Minute {
		t.Fatalf("expected completion timeout 10m, got %s", got)
	}
}

func TestLoadMissingFileIsNotAnError(t *testing.T) {
	clearEnv(t)

	if _, _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err != nil {
		t.Fatalf("expected missing file to be tolerated, got %v", err)
	}
}

func TestSecretsComeFromEnvOnly(t *testing.T) {
	clearEnv(t)

	t.Setenv(EnvPrefix+"EDGE_API_KEY", "edge-key")
	t.Setenv(EnvPrefix+"DEEPGRAM_API_KEY", "dg-key")
	t.Setenv(EnvPrefix+"GEMINI_API_KEY", "gm-key")

	cfg, warnings, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if !cfg.Valid() {
		t.Fatalf("expected config to be valid, warnings: %v", warnings)
	}
	if cfg.EdgeAPIKey != "edge-key" || cfg.DeepgramAPIKey != "dg-key" {
		t.Fatalf("expected secrets loaded from env, got %+v", cfg)
	}
}

func TestValidateWarnsOnMissingKeys(t *testing.T) {
	clearEnv(t)

	_, warnings, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	joined := strings.Join(warnings, "\n")
	for _, want := range []string{"EDGE_API_KEY", "DEEPGRAM_API_KEY", "LLM API key"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("expected warning mentioning %q, got:\n%s", want, joined)
		}
	}
}

func TestActiveModelPrefersGemini(t *testing.T) {
	cfg := Config{GeminiAPIKey: "gm", OpenAIAPIKey: "oa"}
	if got := cfg.ActiveModel(); got != "gemini/gemini-2.5-flash" {
		t.Fatalf("expected gemini default, got %q", got)
	}

	cfg = Config{OpenAIAPIKey: "oa"}
	if got := cfg.ActiveModel(); got != "openai/gpt-4o-mini" {
		t.Fatalf("expected openai fallback, got %q", got)
	}

	cfg = Config{LLMModel: "openai/gpt-4.1", GeminiAPIKey: "gm"}
	if got := cfg.ActiveModel(); got != "openai/gpt-4.1" {
		t.Fatalf("expected explicit model to win, got %q", got)
	}
}

func TestInvalidDurationsFallBack(t *testing.T) {
	cfg := Config{CompletionTimeout: "soon", GraceDelay: "-1x"}
	if got := cfg.ParsedCompletionTimeout(); got != 15*time.Minute {
		t.Fatalf("expected fallback completion timeout, got %s", got)
	}
	if got := cfg.ParsedGraceDelay(); got != 5*time.Second {
		t.Fatalf("expected fallback grace delay, got %s", got)
	}
}
