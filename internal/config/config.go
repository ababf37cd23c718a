// Package config handles application configuration.
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

// Config defines the structure for all application configuration.
type Config struct {
	LogLevel string      `yaml:"log_level"`
	Backend  BackendConf `yaml:"backend"`
	Control  ControlConf `yaml:"control"`
	Profile  ProfileConf `yaml:"profile"`
	Push     PushConf    `yaml:"push"`
	Loops    LoopsConf   `yaml:"loops"`
	Views    ViewsConf   `yaml:"views"`
	Alert    AlertConf   `yaml:"alert"`

	APIKey    string `yaml:"-"` // Loaded from env
	APISecret string `yaml:"-"` // Loaded from env
}

// BackendConf points at the bot backend the dashboard mirrors.
type BackendConf struct {
	BaseURL string `yaml:"base_url"`
	// Timeout bounds a single HTTP request. Zero leaves requests unbounded.
	Timeout Millis `yaml:"timeout"`
}

// ControlConf configures the operator control API.
type ControlConf struct {
	Listen string `yaml:"listen"`
}

// ProfileConf configures where the operator profile is persisted.
type ProfileConf struct {
	Store     string `yaml:"store"` // "file", "sqlite", "postgres" or "memory"
	Path      string `yaml:"path"`  // file and sqlite backends
	DSN       string `yaml:"dsn"`   // postgres backend
	Autosave  Millis `yaml:"autosave_debounce"`
	DraftFile string `yaml:"draft_file"`
}

// PushConf configures the push channel transport.
type PushConf struct {
	Transport string   `yaml:"transport"` // "sse", "websocket" or "none"
	Path      string   `yaml:"path"`
	Reconnect FlexBool `yaml:"reconnect"`
}

// LoopsConf holds the per-view refresh intervals.
type LoopsConf struct {
	Price   Millis `yaml:"price"`
	Status  Millis `yaml:"status"`
	Logs    Millis `yaml:"logs"`
	History Millis `yaml:"history"`
	Health  Millis `yaml:"health"`
}

// ViewsConf holds options for the individual views.
type ViewsConf struct {
	HistoryLimit int `yaml:"history_limit"`
	LogLines     int `yaml:"log_lines"`
}

// AlertConf configures where command failures are reported besides the log.
type AlertConf struct {
	Discord DiscordConf `yaml:"discord"`
}

// DiscordConf configures the Discord DM notifier. It is enabled when both the
// bot token and the user ID are set.
type DiscordConf struct {
	BotToken       string `yaml:"-"` // Loaded from env
	UserID         string `yaml:"user_id"`
	BufferInterval Millis `yaml:"buffer_interval"`
}

// Enabled reports whether the Discord notifier should be built.
func (d DiscordConf) Enabled() bool {
	return d.BotToken != "" && d.UserID != ""
}

// Default returns a configuration with every field populated.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Backend: BackendConf{
			BaseURL: "http://127.0.0.1:5000",
		},
		Control: ControlConf{Listen: "127.0.0.1:8090"},
		Profile: ProfileConf{
			Store:    "file",
			Path:     "data/profile.json",
			Autosave: Millis(250 * time.Millisecond),
		},
		Push: PushConf{
			Transport: "sse",
			Path:      "/stream",
		},
		Loops: LoopsConf{
			Price:   Millis(3000 * time.Millisecond),
			Status:  Millis(2000 * time.Millisecond),
			Logs:    Millis(1500 * time.Millisecond),
			History: Millis(5000 * time.Millisecond),
			Health:  Millis(5000 * time.Millisecond),
		},
		Views: ViewsConf{
			HistoryLimit: 500,
			LogLines:     1000,
		},
		Alert: AlertConf{
			Discord: DiscordConf{BufferInterval: Millis(time.Minute)},
		},
	}
}

// LoadConfig loads configuration from the specified YAML file path
// and environment variables. A missing file is not an error; the
// defaults and environment still apply.
func LoadConfig(configPath string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := Default()

	file, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(file, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %q: %w", configPath, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config %q: %w", configPath, err)
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("BACKEND_URL"); v != "" {
		cfg.Backend.BaseURL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("PROFILE_STORE"); v != "" {
		cfg.Profile.Store = v
	}
	if v := os.Getenv("PROFILE_DSN"); v != "" {
		cfg.Profile.DSN = v
	}
	if v := os.Getenv("CONTROL_LISTEN"); v != "" {
		cfg.Control.Listen = v
	}
	if v := os.Getenv("PUSH_TRANSPORT"); v != "" {
		cfg.Push.Transport = v
	}
	if v := os.Getenv("BINGX_API_KEY"); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv("BINGX_API_SECRET"); v != "" {
		cfg.APISecret = v
	}
	if v := os.Getenv("DISCORD_BOT_TOKEN"); v != "" {
		cfg.Alert.Discord.BotToken = v
	}
	if v := os.Getenv("DISCORD_USER_ID"); v != "" {
		cfg.Alert.Discord.UserID = v
	}
}

// Validate performs basic configuration validation.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Backend.BaseURL) == "" {
		return fmt.Errorf("backend base_url cannot be empty")
	}
	switch c.Profile.Store {
	case "file", "sqlite":
		if c.Profile.Path == "" {
			return fmt.Errorf("profile path cannot be empty for %s store", c.Profile.Store)
		}
	case "postgres":
		if c.Profile.DSN == "" {
			return fmt.Errorf("profile dsn cannot be empty for postgres store")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown profile store %q", c.Profile.Store)
	}
	switch c.Push.Transport {
	case "sse", "websocket", "none":
	default:
		return fmt.Errorf("unknown push transport %q", c.Push.Transport)
	}
	for name, d := range map[string]Millis{
		"price":   c.Loops.Price,
		"status":  c.Loops.Status,
		"logs":    c.Loops.Logs,
		"history": c.Loops.History,
		"health":  c.Loops.Health,
	} {
		if d <= 0 {
			return fmt.Errorf("loop interval %s must be greater than 0", name)
		}
	}
	if c.Profile.Autosave < 0 {
		return fmt.Errorf("autosave debounce cannot be negative")
	}
	if c.Views.HistoryLimit <= 0 {
		return fmt.Errorf("history_limit must be greater than 0")
	}
	return nil
}
