// Package config loads and validates the bot's on-disk configuration.
//
// The bot token is never stored in the file; it always comes from the
// TELEGRAM_BOT_TOKEN environment variable.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Armin-FalDiS/task-list-bot/internal/tasklist"
)

const (
	TransportLongPoll = "longpoll"
	TransportWebhook  = "webhook"

	// EnvBotToken carries the Telegram bot token.
	EnvBotToken = "TELEGRAM_BOT_TOKEN"

	// EnvTaskFile overrides the task store path. Kept for compatibility with
	// deployments of the original bot.
	EnvTaskFile = "TASK_FILE"
)

// Config is the on-disk configuration for task-list-bot.
type Config struct {
	// ListenAddr is the local address for the webhook + status server.
	ListenAddr string `yaml:"listen_addr"`

	// Transport is "longpoll" or "webhook".
	Transport string `yaml:"transport"`

	Webhook Webhook `yaml:"webhook"`

	// DataDir holds the task store, lock file and audit database.
	// If empty, ~/.task-list-bot is used.
	DataDir string `yaml:"data_dir,omitempty"`

	// TaskFile overrides the task store path. The TASK_FILE env var wins
	// over both this and DataDir.
	TaskFile string `yaml:"task_file,omitempty"`

	// MaxTasks caps each chat's list. 0 means the engine default.
	MaxTasks int `yaml:"max_tasks,omitempty"`

	// MaxTaskTextLen caps task text length in runes. 0 means the engine default.
	MaxTaskTextLen int `yaml:"max_task_text_len,omitempty"`

	// LogFormat is "json" or "text".
	LogFormat string `yaml:"log_format,omitempty"`
	// LogLevel is "debug|info|warn|error".
	LogLevel string `yaml:"log_level,omitempty"`
}

// Webhook configures the webhook transport.
type Webhook struct {
	// PublicURL is the externally reachable base URL registered with the
	// Bot API. Required when Transport is "webhook".
	PublicURL string `yaml:"public_url,omitempty"`

	// Path is the local endpoint path. Defaults to /telegram/webhook.
	Path string `yaml:"path,omitempty"`

	// SecretToken, when set, is registered with setWebhook and verified on
	// every inbound request.
	SecretToken string `yaml:"secret_token,omitempty"`
}

// Default returns a config with the defaults the init subcommand writes.
func Default() *Config {
	return &Config{
		ListenAddr:     "127.0.0.1:8090",
		Transport:      TransportLongPoll,
		Webhook:        Webhook{Path: "/telegram/webhook"},
		MaxTasks:       tasklist.DefaultMaxTasks,
		MaxTaskTextLen: tasklist.DefaultMaxTextLen,
		LogFormat:      "text",
		LogLevel:       "info",
	}
}

func (c *Config) Validate() error {
	if c == nil {
		return errors.New("nil config")
	}
	if strings.TrimSpace(c.ListenAddr) == "" {
		return errors.New("missing listen_addr")
	}
	switch strings.TrimSpace(c.Transport) {
	case TransportLongPoll:
	case TransportWebhook:
		if strings.TrimSpace(c.Webhook.PublicURL) == "" {
			return errors.New("webhook transport requires webhook.public_url")
		}
		if !strings.HasPrefix(strings.TrimSpace(c.Webhook.PublicURL), "https://") {
			return errors.New("webhook.public_url must be https")
		}
	default:
		return fmt.Errorf("invalid transport %q (longpoll|webhook)", c.Transport)
	}
	if c.MaxTasks < 0 {
		return errors.New("max_tasks must be >= 0")
	}
	if c.MaxTaskTextLen < 0 {
		return errors.New("max_task_text_len must be >= 0")
	}
	switch strings.TrimSpace(c.LogFormat) {
	case "", "json", "text":
	default:
		return fmt.Errorf("invalid log_format %q (json|text)", c.LogFormat)
	}
	switch strings.TrimSpace(c.LogLevel) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log_level %q (debug|info|warn|error)", c.LogLevel)
	}
	return nil
}

// DefaultConfigPath returns the default config path:
//
//	~/.task-list-bot/config.yaml
func DefaultConfigPath() string {
	return filepath.Join(defaultDataDir(), "config.yaml")
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || strings.TrimSpace(home) == "" {
		return ".task-list-bot"
	}
	return filepath.Join(home, ".task-list-bot")
}

// ResolvedDataDir returns the effective data directory.
func (c *Config) ResolvedDataDir() string {
	if c != nil {
		if dir := strings.TrimSpace(c.DataDir); dir != "" {
			return filepath.Clean(dir)
		}
	}
	return defaultDataDir()
}

// ResolvedTaskFile returns the effective task store path: TASK_FILE env,
// then task_file from the config, then <data-dir>/task_list.json.
func (c *Config) ResolvedTaskFile() string {
	if env := strings.TrimSpace(os.Getenv(EnvTaskFile)); env != "" {
		return filepath.Clean(env)
	}
	if c != nil {
		if f := strings.TrimSpace(c.TaskFile); f != "" {
			return filepath.Clean(f)
		}
	}
	return filepath.Join(c.ResolvedDataDir(), "task_list.json")
}

// WebhookPath returns the configured webhook endpoint path.
func (c *Config) WebhookPath() string {
	if c != nil {
		if p := strings.TrimSpace(c.Webhook.Path); p != "" {
			if !strings.HasPrefix(p, "/") {
				p = "/" + p
			}
			return p
		}
	}
	return "/telegram/webhook"
}

// BotToken reads the bot token from the environment.
func BotToken() (string, error) {
	token := strings.TrimSpace(os.Getenv(EnvBotToken))
	if token == "" {
		return "", fmt.Errorf("%s environment variable not set", EnvBotToken)
	}
	return token, nil
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errors.New("nil config")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}

	b, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	// Write atomically.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
