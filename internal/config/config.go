package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the relay.
type Config struct {
	General   GeneralConfig   `json:"general" yaml:"general"`
	Webhook   WebhookConfig   `json:"webhook" yaml:"webhook"`
	Platform  PlatformConfig  `json:"platform" yaml:"platform"`
	Assistant AssistantConfig `json:"assistant" yaml:"assistant"`
	Relay     RelayConfig     `json:"relay" yaml:"relay"`
	History   HistoryConfig   `json:"history" yaml:"history"`
	Alerts    AlertsConfig    `json:"alerts" yaml:"alerts"`
	Metrics   MetricsConfig   `json:"metrics" yaml:"metrics"`
}

type GeneralConfig struct {
	LogLevel string `json:"logLevel" yaml:"logLevel"` // debug | info | warn | error
	LogFile  string `json:"logFile,omitempty" yaml:"logFile,omitempty"`
}

// WebhookConfig configures the inbound HTTP listener for platform events.
type WebhookConfig struct {
	Host        string `json:"host" yaml:"host"`
	Port        int    `json:"port" yaml:"port"`
	Path        string `json:"path" yaml:"path"`
	VerifyToken string `json:"verifyToken" yaml:"verifyToken"`
	AppSecret   string `json:"appSecret,omitempty" yaml:"appSecret,omitempty"` // enables X-Hub-Signature-256 checks
}

// PlatformConfig configures the outbound Graph messaging API.
type PlatformConfig struct {
	APIBase     string `json:"apiBase" yaml:"apiBase"`
	PageID      string `json:"pageId" yaml:"pageId"`
	AccessToken string `json:"accessToken" yaml:"accessToken"`
}

// AssistantConfig configures the OpenAI Assistants backend.
type AssistantConfig struct {
	APIBase     string `json:"apiBase" yaml:"apiBase"`
	APIKey      string `json:"apiKey" yaml:"apiKey"`
	AssistantID string `json:"assistantId" yaml:"assistantId"`
}

// RelayConfig tunes the conversation relay core.
type RelayConfig struct {
	PollIntervalMs    int `json:"pollIntervalMs" yaml:"pollIntervalMs"`       // run status poll cadence
	RunTimeoutSeconds int `json:"runTimeoutSeconds" yaml:"runTimeoutSeconds"` // max wait for a run to finish
	ChunkSize         int `json:"chunkSize" yaml:"chunkSize"`                 // max characters per outbound message
}

type HistoryConfig struct {
	Enabled       bool   `json:"enabled" yaml:"enabled"`
	DBPath        string `json:"dbPath" yaml:"dbPath"`
	RetentionDays int    `json:"retentionDays" yaml:"retentionDays"`
}

// AlertsConfig configures operator notifications for fatal relay errors.
type AlertsConfig struct {
	Telegram TelegramAlertConfig `json:"telegram" yaml:"telegram"`
}

type TelegramAlertConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Token   string `json:"token,omitempty" yaml:"token,omitempty"`
	ChatID  int64  `json:"chatId,omitempty" yaml:"chatId,omitempty"`
}

type MetricsConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	Endpoint string `json:"endpoint" yaml:"endpoint"`
}

// DefaultConfigDir returns the default config directory (~/.instarelay).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".instarelay"
	}
	return filepath.Join(home, ".instarelay")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

// Load reads, env-expands, parses, and validates a config file. JSON and
// YAML are both accepted, selected by file extension.
func Load(path string) (*Config, error) {
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	cfg.History.DBPath = ExpandPath(cfg.History.DBPath)
	cfg.General.LogFile = ExpandPath(cfg.General.LogFile)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// Supports default values: ${VAR:-default} uses "default" when VAR is unset or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultVal := ""
		hasDefault := len(groups) >= 3 && groups[2] != ""
		if hasDefault {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match // Keep original if no env var and no default
		}
		return val
	})
}

func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

// Validate checks that the config has valid values.
func Validate(cfg *Config) error {
	var errs []string

	switch cfg.General.LogLevel {
	case "", "debug", "info", "warn", "error":
		// valid
	default:
		errs = append(errs, "general.logLevel must be one of: debug, info, warn, error")
	}

	if cfg.Webhook.Port < 0 || cfg.Webhook.Port > 65535 {
		errs = append(errs, "webhook.port must be between 0 and 65535")
	}
	if !strings.HasPrefix(cfg.Webhook.Path, "/") {
		errs = append(errs, "webhook.path must start with /")
	}

	if cfg.Platform.APIBase == "" {
		errs = append(errs, "platform.apiBase is required")
	}
	if cfg.Assistant.APIBase == "" {
		errs = append(errs, "assistant.apiBase is required")
	}

	if cfg.Relay.PollIntervalMs < 1 {
		errs = append(errs, "relay.pollIntervalMs must be >= 1")
	}
	if cfg.Relay.RunTimeoutSeconds < 1 {
		errs = append(errs, "relay.runTimeoutSeconds must be >= 1")
	}
	if cfg.Relay.ChunkSize < 1 {
		errs = append(errs, "relay.chunkSize must be >= 1")
	}

	if cfg.History.Enabled && cfg.History.RetentionDays < 1 {
		errs = append(errs, "history.retentionDays must be >= 1 when history is enabled")
	}
	if cfg.Alerts.Telegram.Enabled && cfg.Alerts.Telegram.Token == "" {
		errs = append(errs, "alerts.telegram.token is required when telegram alerts are enabled")
	}
	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Endpoint, "/") {
		errs = append(errs, "metrics.endpoint must start with /")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
