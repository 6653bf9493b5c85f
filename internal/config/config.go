package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the namespace prefix for all SyncHire agent environment variables.
const EnvPrefix = "SYNCHIRE_"

// Config holds all application configuration. Secrets (API keys) are loaded
// exclusively from environment variables and never appear in the config file.
type Config struct {
	HTTPAddr               string `yaml:"http_addr"`
	DBPath                 string `yaml:"db_path"`
	WebhookBaseURL         string `yaml:"webhook_base_url"`
	EdgeURL                string `yaml:"edge_url"`
	LLMModel               string `yaml:"llm_model"`
	AvatarID               string `yaml:"avatar_id"`
	AvatarQuality          string `yaml:"avatar_quality"`
	MinimumDurationMinutes int    `yaml:"minimum_duration_minutes"`
	CompletionTimeout      string `yaml:"completion_timeout"`
	GraceDelay             string `yaml:"grace_delay"`
	InstructionsPath       string `yaml:"instructions_path"`
	DeepgramLanguage       string `yaml:"deepgram_language"`
	DeepgramSampleRate     int    `yaml:"deepgram_sample_rate"`
	GDriveFolderID         string `yaml:"gdrive_folder_id"`
	GoogleCredentialsFile  string `yaml:"google_credentials_file"`

	// Secrets — env vars only, never serialized to YAML.
	EdgeAPIKey      string `yaml:"-"`
	EdgeAPISecret   string `yaml:"-"`
	DeepgramAPIKey  string `yaml:"-"`
	OpenAIAPIKey    string `yaml:"-"`
	GeminiAPIKey    string `yaml:"-"`
	AnthropicAPIKey string `yaml:"-"`
	AvatarAPIKey    string `yaml:"-"`
}

func defaults() Config {
	return Config{
		HTTPAddr:               ":8080",
		DBPath:                 "data/interviews.db",
		WebhookBaseURL:         "http://localhost:3000",
		EdgeURL:                "wss://edge.synchire.dev/rtc",
		AvatarQuality:          "low",
		MinimumDurationMinutes: 3,
		CompletionTimeout:      "15m",
		GraceDelay:             "5s",
		InstructionsPath:       "interview_instructions.md",
		DeepgramLanguage:       "en-US",
		DeepgramSampleRate:     48000,
		GoogleCredentialsFile:  "./service-account.json",
	}
}

// Load reads configuration from a YAML file (if it exists), applies
// environment variable overrides, loads secrets, and validates the result.
// It returns the config, any validation warnings, and an error if the file
// exists but cannot be read or parsed.
func Load(path string) (Config, []string, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, nil, fmt.Errorf("read config file: %w", err)
			}
		} else {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	applyEnvOverrides(&cfg)
	loadSecrets(&cfg)

	warnings := validate(&cfg)
	return cfg, warnings, nil
}

// Valid reports whether every credential required to run an interview is
// present. Checked at startup and again before each session start; a false
// result rejects the start request rather than crashing the process.
func (c *Config) Valid() bool {
	return c.EdgeAPIKey != "" &&
		c.DeepgramAPIKey != "" &&
		c.WebhookBaseURL != "" &&
		(c.GeminiAPIKey != "" || c.OpenAIAPIKey != "" || c.AnthropicAPIKey != "")
}

// ActiveModel returns the configured provider/model string, or the default
// for whichever provider has an API key. Gemini is preferred, then OpenAI,
// then Anthropic.
func (c *Config) ActiveModel() string {
	if c.LLMModel != "" {
		return c.LLMModel
	}
	switch {
	case c.GeminiAPIKey != "":
		return "gemini/gemini-2.5-flash"
	case c.OpenAIAPIKey != "":
		return "openai/gpt-4o-mini"
	case c.AnthropicAPIKey != "":
		return "anthropic/claude-sonnet-4-20250514"
	}
	return ""
}

// APIKeyFor returns the secret for the given LLM provider.
func (c *Config) APIKeyFor(provider string) string {
	switch provider {
	case "gemini":
		return c.GeminiAPIKey
	case "openai":
		return c.OpenAIAPIKey
	case "anthropic":
		return c.AnthropicAPIKey
	}
	return ""
}

// ParsedCompletionTimeout returns CompletionTimeout as a time.Duration,
// falling back to 15m if the value is invalid.
func (c *Config) ParsedCompletionTimeout() time.Duration {
	d, err := time.ParseDuration(c.CompletionTimeout)
	if err != nil || d <= 0 {
		return 15 * time.Minute
	}
	return d
}

// ParsedGraceDelay returns GraceDelay as a time.Duration, falling back to
// 5s if the value is invalid.
func (c *Config) ParsedGraceDelay() time.Duration {
	d, err := time.ParseDuration(c.GraceDelay)
	if err != nil || d < 0 {
		return 5 * time.Second
	}
	return d
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvPrefix + "HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := os.Getenv(EnvPrefix + "DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv(EnvPrefix + "WEBHOOK_BASE_URL"); v != "" {
		cfg.WebhookBaseURL = v
	}
	if v := os.Getenv(EnvPrefix + "EDGE_URL"); v != "" {
		cfg.EdgeURL = v
	}
	if v := os.Getenv(EnvPrefix + "LLM_MODEL"); v != "" {
		cfg.LLMModel = v
	}
	if v := os.Getenv(EnvPrefix + "AVATAR_ID"); v != "" {
		cfg.AvatarID = v
	}
	if v := os.Getenv(EnvPrefix + "AVATAR_QUALITY"); v != "" {
		cfg.AvatarQuality = v
	}
	if v := os.Getenv(EnvPrefix + "MINIMUM_DURATION_MINUTES"); v != "" {
		if mins, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && mins >= 0 {
			cfg.MinimumDurationMinutes = mins
		}
	}
	if v := os.Getenv(EnvPrefix + "COMPLETION_TIMEOUT"); v != "" {
		cfg.CompletionTimeout = v
	}
	if v := os.Getenv(EnvPrefix + "GRACE_DELAY"); v != "" {
		cfg.GraceDelay = v
	}
	if v := os.Getenv(EnvPrefix + "INSTRUCTIONS_PATH"); v != "" {
		cfg.InstructionsPath = v
	}
	if v := os.Getenv(EnvPrefix + "DEEPGRAM_LANGUAGE"); v != "" {
		cfg.DeepgramLanguage = v
	}
	if v := os.Getenv(EnvPrefix + "DEEPGRAM_SAMPLE_RATE"); v != "" {
		if rate, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && rate > 0 {
			cfg.DeepgramSampleRate = rate
		}
	}
	if v := os.Getenv(EnvPrefix + "GDRIVE_FOLDER_ID"); v != "" {
		cfg.GDriveFolderID = v
	}
	if v := os.Getenv(EnvPrefix + "GOOGLE_CREDENTIALS_FILE"); v != "" {
		cfg.GoogleCredentialsFile = v
	}
}

func loadSecrets(cfg *Config) {
	cfg.EdgeAPIKey = os.Getenv(EnvPrefix + "EDGE_API_KEY")
	cfg.EdgeAPISecret = os.Getenv(EnvPrefix + "EDGE_API_SECRET")
	cfg.DeepgramAPIKey = os.Getenv(EnvPrefix + "DEEPGRAM_API_KEY")
	cfg.OpenAIAPIKey = os.Getenv(EnvPrefix + "OPENAI_API_KEY")
	cfg.GeminiAPIKey = os.Getenv(EnvPrefix + "GEMINI_API_KEY")
	cfg.AnthropicAPIKey = os.Getenv(EnvPrefix + "ANTHROPIC_API_KEY")
	cfg.AvatarAPIKey = os.Getenv(EnvPrefix + "AVATAR_API_KEY")
}

func validate(cfg *Config) []string {
	var warnings []string

	if cfg.EdgeAPIKey == "" {
		warnings = append(warnings, "Edge API key not configured — the agent cannot join calls. Set "+EnvPrefix+"EDGE_API_KEY.")
	}
	if cfg.DeepgramAPIKey == "" {
		warnings = append(warnings, "Deepgram API key not configured — candidate transcription is disabled. Set "+EnvPrefix+"DEEPGRAM_API_KEY.")
	}
	if cfg.GeminiAPIKey == "" && cfg.OpenAIAPIKey == "" && cfg.AnthropicAPIKey == "" {
		warnings = append(warnings, "No LLM API key configured — set "+EnvPrefix+"GEMINI_API_KEY, "+EnvPrefix+"OPENAI_API_KEY or "+EnvPrefix+"ANTHROPIC_API_KEY.")
	}
	if cfg.AvatarAPIKey == "" {
		warnings = append(warnings, "Avatar API key not configured — interviews will be audio-only.")
	}
	if _, err := time.ParseDuration(cfg.CompletionTimeout); err != nil {
		warnings = append(warnings, fmt.Sprintf("Invalid completion_timeout %q — using default 15m.", cfg.CompletionTimeout))
	}
	if _, err := time.ParseDuration(cfg.GraceDelay); err != nil {
		warnings = append(warnings, fmt.Sprintf("Invalid grace_delay %q — using default 5s.", cfg.GraceDelay))
	}

	return warnings
}
