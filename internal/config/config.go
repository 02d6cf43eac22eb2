// File: internal/config/config.go

// Package config defines the runtime configuration for kzfleet, loaded via
// viper from file, environment, and flags.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Config is the root configuration object.
type Config struct {
	Target   TargetConfig   `mapstructure:"target"`
	Timeouts TimeoutConfig  `mapstructure:"timeouts"`
	Fleet    FleetConfig    `mapstructure:"fleet"`
	Browser  BrowserConfig  `mapstructure:"browser"`
	Accounts AccountsConfig `mapstructure:"accounts"`
	Bot      BotConfig      `mapstructure:"bot"`
	Health   HealthConfig   `mapstructure:"health"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// TargetConfig describes the site under automation: entry URLs, element
// selectors, and the popup keyword lists.
type TargetConfig struct {
	LoginURL  string `mapstructure:"login_url"`
	SubmitURL string `mapstructure:"submit_url"`

	Selectors SelectorConfig `mapstructure:"selectors"`

	SuccessPatterns []string `mapstructure:"success_patterns"`
	ErrorPatterns   []string `mapstructure:"error_patterns"`
}

// SelectorConfig holds the CSS selectors for every element the workflow
// touches. SubmitButtons is an ordered fallback list; earlier entries are
// tried first.
type SelectorConfig struct {
	EmailInput    string   `mapstructure:"email_input"`
	PasswordInput string   `mapstructure:"password_input"`
	LoginButton   string   `mapstructure:"login_button"`
	CodeInput     string   `mapstructure:"code_input"`
	SubmitButtons []string `mapstructure:"submit_buttons"`
	PopupContent  string   `mapstructure:"popup_content"`
}

// TimeoutConfig holds every budget the workflow observes.
type TimeoutConfig struct {
	Run     time.Duration `mapstructure:"run"`
	Account time.Duration `mapstructure:"account"`
	Element time.Duration `mapstructure:"element"`
	Popup   time.Duration `mapstructure:"popup"`
}

// FleetConfig controls scheduling across accounts.
type FleetConfig struct {
	MaxConcurrent   int           `mapstructure:"max_concurrent"`
	SubmitInterval  time.Duration `mapstructure:"submit_interval"`
	SubmitBurst     int           `mapstructure:"submit_burst"`
	KeepResults     bool          `mapstructure:"keep_results"`
	ScreenshotOnErr bool          `mapstructure:"screenshot_on_error"`
	ScreenshotDir   string        `mapstructure:"screenshot_dir"`
}

// BrowserConfig controls the shared Chrome process.
type BrowserConfig struct {
	Headless    bool     `mapstructure:"headless"`
	ExecPath    string   `mapstructure:"exec_path"`
	UserAgent   string   `mapstructure:"user_agent"`
	BlockedURLs []string `mapstructure:"blocked_urls"`
}

// AccountsConfig selects and parameterizes the credential store.
// Backend is "file" or "postgres".
type AccountsConfig struct {
	Backend     string `mapstructure:"backend"`
	FilePath    string `mapstructure:"file_path"`
	PostgresDSN string `mapstructure:"postgres_dsn"`
}

// BotConfig configures the Telegram control surface.
type BotConfig struct {
	Token     string `mapstructure:"token"`
	AdminCode string `mapstructure:"admin_code"`
	Debug     bool   `mapstructure:"debug"`
}

// HealthConfig configures the HTTP health endpoint.
type HealthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// LoggingConfig configures structured logging and file rotation.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// SetDefaults registers the default value for every key on the given viper
// instance. Call before ReadInConfig so file values override them.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("target.login_url", "https://kz8s.vip/pc/#/pages/login/login")
	v.SetDefault("target.submit_url", "https://kz8s.vip/pc/#/pages/mining/btc")
	v.SetDefault("target.selectors.email_input", "input[placeholder*='email' i]")
	v.SetDefault("target.selectors.password_input", "input[type='password']")
	v.SetDefault("target.selectors.login_button", "button.login-btn")
	v.SetDefault("target.selectors.code_input", "input.code-input")
	v.SetDefault("target.selectors.submit_buttons", []string{"button.submit-btn", "#gendan_btn"})
	v.SetDefault("target.selectors.popup_content", "div.dream-msg-content")
	v.SetDefault("target.success_patterns", []string{"success", "successful", "completed", "réussi"})
	v.SetDefault("target.error_patterns", []string{"error", "failed", "invalid", "expired", "incorrect", "erreur"})

	v.SetDefault("timeouts.run", 10*time.Minute)
	v.SetDefault("timeouts.account", 90*time.Second)
	v.SetDefault("timeouts.element", 5*time.Second)
	v.SetDefault("timeouts.popup", 3*time.Second)

	v.SetDefault("fleet.max_concurrent", 1)
	v.SetDefault("fleet.submit_interval", 500*time.Millisecond)
	v.SetDefault("fleet.submit_burst", 1)
	v.SetDefault("fleet.keep_results", true)
	v.SetDefault("fleet.screenshot_on_error", true)
	v.SetDefault("fleet.screenshot_dir", "screenshots")

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("browser.user_agent", "")
	v.SetDefault("browser.blocked_urls", []string{
		"*.png", "*.jpg", "*.jpeg", "*.gif", "*.webp", "*.svg",
		"*.woff", "*.woff2", "*.ttf",
		"*google-analytics.com*", "*googletagmanager.com*",
	})

	v.SetDefault("accounts.backend", "file")
	v.SetDefault("accounts.file_path", defaultAccountsPath())
	v.SetDefault("accounts.postgres_dsn", "")

	v.SetDefault("bot.token", "")
	v.SetDefault("bot.admin_code", "")
	v.SetDefault("bot.debug", false)

	v.SetDefault("health.enabled", false)
	v.SetDefault("health.addr", ":8787")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", 50)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age_days", 14)
	v.SetDefault("logging.compress", true)
}

// Load unmarshals and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints that viper cannot express.
func (c *Config) Validate() error {
	if c.Target.LoginURL == "" {
		return fmt.Errorf("target.login_url must not be empty")
	}
	if c.Target.SubmitURL == "" {
		return fmt.Errorf("target.submit_url must not be empty")
	}
	if len(c.Target.Selectors.SubmitButtons) == 0 {
		return fmt.Errorf("target.selectors.submit_buttons needs at least one selector")
	}
	if c.Timeouts.Run <= 0 {
		return fmt.Errorf("timeouts.run must be positive, got %s", c.Timeouts.Run)
	}
	if c.Timeouts.Account <= 0 {
		return fmt.Errorf("timeouts.account must be positive, got %s", c.Timeouts.Account)
	}
	if c.Timeouts.Account > c.Timeouts.Run {
		return fmt.Errorf("timeouts.account (%s) must not exceed timeouts.run (%s)", c.Timeouts.Account, c.Timeouts.Run)
	}
	if c.Fleet.MaxConcurrent < 1 {
		return fmt.Errorf("fleet.max_concurrent must be at least 1, got %d", c.Fleet.MaxConcurrent)
	}
	if c.Fleet.SubmitInterval < 0 {
		return fmt.Errorf("fleet.submit_interval must not be negative")
	}
	switch c.Accounts.Backend {
	case "file":
		if c.Accounts.FilePath == "" {
			return fmt.Errorf("accounts.file_path must be set for the file backend")
		}
	case "postgres":
		if c.Accounts.PostgresDSN == "" {
			return fmt.Errorf("accounts.postgres_dsn must be set for the postgres backend")
		}
	default:
		return fmt.Errorf("accounts.backend must be \"file\" or \"postgres\", got %q", c.Accounts.Backend)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format %q is not one of console, json", c.Logging.Format)
	}
	return nil
}

func defaultAccountsPath() string {
	home, err := homedir.Dir()
	if err != nil {
		return "accounts.json"
	}
	return filepath.Join(home, ".kzfleet", "accounts.json")
}
