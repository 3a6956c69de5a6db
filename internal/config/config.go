package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"meetlens/internal/classify"
)

// NOTE: Load reads through viper so every key can be overridden with a
// MEETLENS_* environment variable (MEETLENS_OUTLOOK_TOKEN, ...). Save always
// writes plain YAML with 0600 permissions, since the file can hold tokens.

const envPrefix = "MEETLENS"

// ICSConfig describes a single ICS subscription source.
type ICSConfig struct {
	// URL is the ICS subscription endpoint.
	URL string `yaml:"url" json:"url" mapstructure:"url"`
	// ID is an internal identifier used for de-dup and logging.
	ID string `yaml:"id" json:"id" mapstructure:"id"`
	// Name is a human-friendly label.
	Name string `yaml:"name" json:"name" mapstructure:"name"`
}

// OutlookConfig points at the Outlook REST endpoint. Token takes precedence
// over TokenFile.
type OutlookConfig struct {
	BaseURL   string        `yaml:"base_url" json:"base_url" mapstructure:"base_url"`
	Token     string        `yaml:"token,omitempty" json:"-" mapstructure:"token"`
	TokenFile string        `yaml:"token_file,omitempty" json:"token_file,omitempty" mapstructure:"token_file"`
	Timeout   time.Duration `yaml:"timeout" json:"timeout" mapstructure:"timeout"`
}

// Enabled reports whether a token is configured.
func (o OutlookConfig) Enabled() bool {
	return o.BaseURL != "" && (o.Token != "" || o.TokenFile != "")
}

type CacheConfig struct {
	Path string        `yaml:"path" json:"path" mapstructure:"path"`
	TTL  time.Duration `yaml:"ttl" json:"ttl" mapstructure:"ttl"`
}

// Preferences are the user-facing settings, editable from the dashboard.
type Preferences struct {
	DefaultRangeDays int    `yaml:"default_range_days" json:"default_range_days" mapstructure:"default_range_days"`
	MeetingsPerPage  int    `yaml:"meetings_per_page" json:"meetings_per_page" mapstructure:"meetings_per_page"`
	AutoLoad         bool   `yaml:"auto_load" json:"auto_load" mapstructure:"auto_load"`
	Theme            string `yaml:"theme" json:"theme" mapstructure:"theme"`

	// ClassificationRules, if set, replaces the built-in rules.
	ClassificationRules *classify.RulesConfig `yaml:"classification_rules,omitempty" json:"classification_rules,omitempty" mapstructure:"classification_rules"`
}

type LoggingConfig struct {
	Level string `yaml:"level" json:"level" mapstructure:"level"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the Web UI/API.
// PasswordHash is a bcrypt hash and wins over Password.
type BasicAuthConfig struct {
	Username     string `yaml:"username" json:"username" mapstructure:"username"`
	Password     string `yaml:"password,omitempty" json:"-" mapstructure:"password"`
	PasswordHash string `yaml:"password_hash,omitempty" json:"-" mapstructure:"password_hash"`
}

// NotifyConfig drives the Telegram statistics digest.
type NotifyConfig struct {
	Enabled    bool   `yaml:"enabled" json:"enabled" mapstructure:"enabled"`
	BotToken   string `yaml:"bot_token,omitempty" json:"-" mapstructure:"bot_token"`
	ChatID     string `yaml:"chat_id" json:"chat_id" mapstructure:"chat_id"`
	DigestCron string `yaml:"digest_cron" json:"digest_cron" mapstructure:"digest_cron"`
}

// CaptureConfig drives the headless dashboard screenshot. An empty URL
// means the local /dashboard page.
type CaptureConfig struct {
	Enabled    bool   `yaml:"enabled" json:"enabled" mapstructure:"enabled"`
	URL        string `yaml:"url,omitempty" json:"url,omitempty" mapstructure:"url"`
	OutputPath string `yaml:"output_path" json:"output_path" mapstructure:"output_path"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the Web UI and API.
	Listen string `yaml:"listen" json:"listen" mapstructure:"listen"`

	// Timezone is the IANA timezone used for display and hour statistics
	// (e.g. "Europe/Paris").
	Timezone string `yaml:"timezone" json:"timezone" mapstructure:"timezone"`

	// RefreshCron is a cron-style schedule string (e.g. "*/15 * * * *")
	// used for periodic refresh.
	RefreshCron string `yaml:"refresh" json:"refresh" mapstructure:"refresh"`

	// HorizonDays is how many days ahead of now a refresh looks.
	HorizonDays int `yaml:"horizon_days" json:"horizon_days" mapstructure:"horizon_days"`

	// ICS is the list of subscribed ICS sources.
	ICS []ICSConfig `yaml:"ics" json:"ics" mapstructure:"ics"`

	Outlook     OutlookConfig `yaml:"outlook" json:"outlook" mapstructure:"outlook"`
	Cache       CacheConfig   `yaml:"cache" json:"cache" mapstructure:"cache"`
	Preferences Preferences   `yaml:"preferences" json:"preferences" mapstructure:"preferences"`
	Logging     LoggingConfig `yaml:"logging" json:"logging" mapstructure:"logging"`
	Notify      NotifyConfig  `yaml:"notify" json:"notify" mapstructure:"notify"`
	Capture     CaptureConfig `yaml:"capture" json:"capture" mapstructure:"capture"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty" mapstructure:"basic_auth"`
}

// DefaultPreferences returns the preferences of a fresh install.
func DefaultPreferences() Preferences {
	return Preferences{
		DefaultRangeDays: 30,
		MeetingsPerPage:  20,
		AutoLoad:         false,
		Theme:            "light",
	}
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:      "127.0.0.1:8080",
		Timezone:    "Europe/Paris",
		RefreshCron: "*/15 * * * *",
		HorizonDays: 7,
		ICS:         []ICSConfig{},
		Outlook: OutlookConfig{
			BaseURL: "https://outlook.office.com/api",
			Timeout: 30 * time.Second,
		},
		Cache: CacheConfig{
			Path: "./data/cache.db",
			TTL:  5 * time.Minute,
		},
		Preferences: DefaultPreferences(),
		Logging:     LoggingConfig{Level: "info"},
		Notify:      NotifyConfig{DigestCron: "0 8 * * 1"},
		Capture:     CaptureConfig{OutputPath: "./data/dashboard.png"},
	}
}

// setDefaults mirrors DefaultConfig into viper so that env overrides apply
// to keys absent from the file.
func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("listen", d.Listen)
	v.SetDefault("timezone", d.Timezone)
	v.SetDefault("refresh", d.RefreshCron)
	v.SetDefault("horizon_days", d.HorizonDays)

	v.SetDefault("outlook.base_url", d.Outlook.BaseURL)
	v.SetDefault("outlook.token", "")
	v.SetDefault("outlook.token_file", "")
	v.SetDefault("outlook.timeout", d.Outlook.Timeout.String())

	v.SetDefault("cache.path", d.Cache.Path)
	v.SetDefault("cache.ttl", d.Cache.TTL.String())

	v.SetDefault("preferences.default_range_days", d.Preferences.DefaultRangeDays)
	v.SetDefault("preferences.meetings_per_page", d.Preferences.MeetingsPerPage)
	v.SetDefault("preferences.auto_load", d.Preferences.AutoLoad)
	v.SetDefault("preferences.theme", d.Preferences.Theme)

	v.SetDefault("logging.level", d.Logging.Level)

	v.SetDefault("notify.enabled", false)
	v.SetDefault("notify.bot_token", "")
	v.SetDefault("notify.chat_id", "")
	v.SetDefault("notify.digest_cron", d.Notify.DigestCron)

	v.SetDefault("capture.enabled", false)
	v.SetDefault("capture.url", "")
	v.SetDefault("capture.output_path", d.Capture.OutputPath)
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs (e.g., older versions) still behave correctly.
func (c *Config) Normalize() {
	d := DefaultConfig()
	if c.Listen == "" {
		c.Listen = d.Listen
	}
	if c.Timezone == "" {
		c.Timezone = d.Timezone
	}
	if c.RefreshCron == "" {
		c.RefreshCron = d.RefreshCron
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = d.HorizonDays
	}
	if c.ICS == nil {
		c.ICS = []ICSConfig{}
	}
	for i := range c.ICS {
		if c.ICS[i].ID == "" {
			c.ICS[i].ID = fmt.Sprintf("ics-%d", i+1)
		}
	}
	if c.Outlook.Timeout <= 0 {
		c.Outlook.Timeout = d.Outlook.Timeout
	}
	if c.Cache.Path == "" {
		c.Cache.Path = d.Cache.Path
	}
	if c.Cache.TTL <= 0 {
		c.Cache.TTL = d.Cache.TTL
	}
	c.Preferences.Normalize()
	if c.Logging.Level == "" {
		c.Logging.Level = d.Logging.Level
	}
	if c.Notify.DigestCron == "" {
		c.Notify.DigestCron = d.Notify.DigestCron
	}
	if c.Capture.OutputPath == "" {
		c.Capture.OutputPath = d.Capture.OutputPath
	}
	if c.BasicAuth != nil && c.BasicAuth.Username == "" {
		c.BasicAuth = nil
	}
}

// Normalize resets out-of-range preferences to their defaults.
func (p *Preferences) Normalize() {
	d := DefaultPreferences()
	if p.DefaultRangeDays <= 0 {
		p.DefaultRangeDays = d.DefaultRangeDays
	}
	if p.MeetingsPerPage <= 0 {
		p.MeetingsPerPage = d.MeetingsPerPage
	}
	switch p.Theme {
	case "light", "dark", "auto":
	default:
		p.Theme = d.Theme
	}
}

// Location resolves Timezone, falling back to the local zone.
func (c *Config) Location() *time.Location {
	if loc, err := time.LoadLocation(c.Timezone); err == nil {
		return loc
	}
	return time.Local
}

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Validate rejects values Normalize cannot repair.
func (c *Config) Validate() error {
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	if _, err := cronParser.Parse(c.RefreshCron); err != nil {
		return fmt.Errorf("refresh %q: %w", c.RefreshCron, err)
	}
	if c.Preferences.MeetingsPerPage > 500 {
		return fmt.Errorf("preferences.meetings_per_page must be at most 500")
	}
	if c.Preferences.DefaultRangeDays > 366 {
		return fmt.Errorf("preferences.default_range_days must be at most 366")
	}
	if c.Preferences.ClassificationRules != nil {
		if _, err := classify.FromConfig(*c.Preferences.ClassificationRules); err != nil {
			return fmt.Errorf("preferences.classification_rules: %w", err)
		}
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	for i, src := range c.ICS {
		if src.URL == "" {
			return fmt.Errorf("ics[%d].url is required", i)
		}
	}
	if c.Notify.Enabled {
		if c.Notify.BotToken == "" {
			return fmt.Errorf("notify.bot_token is required when notify is enabled")
		}
		if c.Notify.ChatID == "" {
			return fmt.Errorf("notify.chat_id is required when notify is enabled")
		}
		if _, err := cronParser.Parse(c.Notify.DigestCron); err != nil {
			return fmt.Errorf("notify.digest_cron %q: %w", c.Notify.DigestCron, err)
		}
	}
	if c.BasicAuth != nil && c.BasicAuth.Password == "" && c.BasicAuth.PasswordHash == "" {
		return fmt.Errorf("basic_auth.password or basic_auth.password_hash is required")
	}
	return nil
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config (env overrides still applied)
//   - If the file exists:
//   - read YAML through viper, apply MEETLENS_* overrides
//   - normalize defaults and validate
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	if _, err := os.Stat(path); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		// First run: create default config file.
		if err := Save(path, DefaultConfig()); err != nil {
			return DefaultConfig(), err
		}
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	// Atomic write: write to temp file in same directory then rename.
	tmp, err := os.CreateTemp(dir, ".meetlens-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
