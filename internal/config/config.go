// Package config provides YAML-based configuration loading for evbot.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level evbot configuration, loaded from evbot.yaml.
type Config struct {
	City      string          `yaml:"city"`
	SeedFile  string          `yaml:"seed_file"`
	Database  DatabaseConfig  `yaml:"database"`
	Server    ServerConfig    `yaml:"server"`
	Chat      ChatConfig      `yaml:"chat"`
	Telegraph TelegraphConfig `yaml:"telegraph"`
}

// DatabaseConfig selects the storage driver and its connection settings.
// The sqlite driver uses Path; mysql uses the network fields.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // "sqlite" or "mysql"
	Path     string `yaml:"path"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Port    int    `yaml:"port"`
	BaseURL string `yaml:"base_url"` // used to build booking page links in chat replies

	// Per-client request budget for /api routes.
	RatePerMin int `yaml:"rate_per_min"`
	RateBurst  int `yaml:"rate_burst"`
}

// ChatConfig tunes the conversational core.
type ChatConfig struct {
	DirectoryTimeoutSec int    `yaml:"directory_timeout_sec"`
	SlotsReadyTimeoutMs int    `yaml:"slots_ready_timeout_ms"`
	TranscriptTTLMin    int    `yaml:"transcript_ttl_min"`
	PendingTTLMin       int    `yaml:"pending_ttl_min"`
	SweepCron           string `yaml:"sweep_cron"`
	MaxList             int    `yaml:"max_list"`
}

// TelegraphConfig configures the chat platform bridge.
type TelegraphConfig struct {
	Platform string        `yaml:"platform"` // "slack", "discord", or empty to disable
	Channel  string        `yaml:"channel"`
	Slack    SlackConfig   `yaml:"slack"`
	Discord  DiscordConfig `yaml:"discord"`
}

// SlackConfig holds Slack Socket Mode credentials.
type SlackConfig struct {
	AppToken string `yaml:"app_token"`
	BotToken string `yaml:"bot_token"`
}

// DiscordConfig holds Discord Gateway credentials.
type DiscordConfig struct {
	BotToken string `yaml:"bot_token"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a validated configuration with every default applied,
// suitable for running against a local sqlite file without a config file.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.City == "" {
		c.City = "Jaipur"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Driver == "sqlite" && c.Database.Path == "" {
		c.Database.Path = "evbot.db"
	}
	if c.Database.Driver == "mysql" {
		if c.Database.Host == "" {
			c.Database.Host = "127.0.0.1"
		}
		if c.Database.Port == 0 {
			c.Database.Port = 3306
		}
		if c.Database.Name == "" {
			c.Database.Name = "evbot"
		}
		if c.Database.User == "" {
			c.Database.User = "root"
		}
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.BaseURL == "" {
		c.Server.BaseURL = fmt.Sprintf("http://localhost:%d", c.Server.Port)
	}
	c.Server.BaseURL = strings.TrimRight(c.Server.BaseURL, "/")
	if c.Server.RatePerMin == 0 {
		c.Server.RatePerMin = 120
	}
	if c.Server.RateBurst == 0 {
		c.Server.RateBurst = 20
	}
	if c.Chat.DirectoryTimeoutSec == 0 {
		c.Chat.DirectoryTimeoutSec = 5
	}
	if c.Chat.SlotsReadyTimeoutMs == 0 {
		c.Chat.SlotsReadyTimeoutMs = 1500
	}
	if c.Chat.TranscriptTTLMin == 0 {
		c.Chat.TranscriptTTLMin = 60
	}
	if c.Chat.PendingTTLMin == 0 {
		c.Chat.PendingTTLMin = 10
	}
	if c.Chat.SweepCron == "" {
		c.Chat.SweepCron = "*/10 * * * *"
	}
	if c.Chat.MaxList == 0 {
		c.Chat.MaxList = 10
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.Database.Driver {
	case "sqlite", "mysql":
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q must be sqlite or mysql", c.Database.Driver))
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port %d out of range", c.Server.Port))
	}
	if c.Server.RatePerMin < 0 || c.Server.RateBurst < 0 {
		errs = append(errs, "server.rate_per_min and server.rate_burst must not be negative")
	}
	if c.Chat.DirectoryTimeoutSec < 0 {
		errs = append(errs, "chat.directory_timeout_sec must not be negative")
	}
	if c.Chat.SlotsReadyTimeoutMs < 0 {
		errs = append(errs, "chat.slots_ready_timeout_ms must not be negative")
	}
	if c.Chat.TranscriptTTLMin < 0 {
		errs = append(errs, "chat.transcript_ttl_min must not be negative")
	}
	switch c.Telegraph.Platform {
	case "":
	case "slack":
		if c.Telegraph.Slack.AppToken == "" {
			errs = append(errs, "telegraph.slack.app_token is required for platform slack")
		}
		if c.Telegraph.Slack.BotToken == "" {
			errs = append(errs, "telegraph.slack.bot_token is required for platform slack")
		}
	case "discord":
		if c.Telegraph.Discord.BotToken == "" {
			errs = append(errs, "telegraph.discord.bot_token is required for platform discord")
		}
	default:
		errs = append(errs, fmt.Sprintf("telegraph.platform %q must be slack or discord", c.Telegraph.Platform))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// DirectoryTimeout is the per-call budget for station directory lookups.
func (c ChatConfig) DirectoryTimeout() time.Duration {
	return time.Duration(c.DirectoryTimeoutSec) * time.Second
}

// SlotsReadyTimeout bounds how long the booking bridge waits for the form
// to regenerate its slot list.
func (c ChatConfig) SlotsReadyTimeout() time.Duration {
	return time.Duration(c.SlotsReadyTimeoutMs) * time.Millisecond
}

// TranscriptTTL is how long a conversation transcript survives its last write.
func (c ChatConfig) TranscriptTTL() time.Duration {
	return time.Duration(c.TranscriptTTLMin) * time.Minute
}

// PendingTTL is how long a deferred booking payload waits for the form to open.
func (c ChatConfig) PendingTTL() time.Duration {
	return time.Duration(c.PendingTTLMin) * time.Minute
}
