package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"fansite/internal/schedule"
)

// DefaultPath is where the CLI looks for the config file.
const DefaultPath = "/etc/fansite/config.yaml"

// FeedConfig describes one subscribed ICS feed.
type FeedConfig struct {
	// ID is stored with every imported event and must be stable.
	ID   string `yaml:"id" json:"id" validate:"required,excludesall=/"`
	Name string `yaml:"name" json:"name"`
	URL  string `yaml:"url" json:"url" validate:"required,url"`
	// Category applied to the feed's events; empty means "other".
	Category string `yaml:"category" json:"category" validate:"omitempty,oneof=event stage broadcast streaming voice_guide other"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username" validate:"required"`
	Password string `yaml:"password" json:"password" validate:"required"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen" json:"listen" validate:"required,hostname_port"`

	// Timezone is the IANA site zone (e.g. "Asia/Tokyo"). When the zone
	// database is unavailable, UTCOffsetHours is used as a fixed zone.
	Timezone       string `yaml:"timezone" json:"timezone" validate:"required"`
	UTCOffsetHours int    `yaml:"utc_offset_hours" json:"utc_offset_hours" validate:"min=-12,max=14"`

	SiteName string `yaml:"site_name" json:"site_name" validate:"required"`
	SiteURL  string `yaml:"site_url" json:"site_url" validate:"required,url"`

	// CalendarBaseURL is the external calendar "add event" endpoint.
	CalendarBaseURL string `yaml:"calendar_base_url" json:"calendar_base_url" validate:"required,url"`

	Database string `yaml:"database" json:"database" validate:"required"`
	CacheDir string `yaml:"cache_dir" json:"cache_dir" validate:"required"`

	// RefreshCron is a standard 5-field cron spec for feed import.
	RefreshCron string `yaml:"refresh" json:"refresh" validate:"required"`

	// FetchTimeoutSeconds bounds each section load and each feed download.
	FetchTimeoutSeconds int `yaml:"fetch_timeout_seconds" json:"fetch_timeout_seconds" validate:"gt=0,lte=300"`
	// CacheTTLSeconds is the API response cache lifetime; 0 disables it.
	CacheTTLSeconds int `yaml:"cache_ttl_seconds" json:"cache_ttl_seconds" validate:"gte=0"`

	LogLevel  string `yaml:"log_level" json:"log_level" validate:"oneof=debug info warn error"`
	LogFormat string `yaml:"log_format" json:"log_format" validate:"oneof=json console"`

	Feeds []FeedConfig `yaml:"feeds" json:"feeds" validate:"unique=ID,dive"`

	// BasicAuth, if set, protects every endpoint except /health and /metrics.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:              "127.0.0.1:8080",
		Timezone:            "Asia/Tokyo",
		UTCOffsetHours:      9,
		SiteName:            "佐藤拓也 スケジュール",
		SiteURL:             "http://127.0.0.1:8080",
		CalendarBaseURL:     schedule.DefaultCalendarBaseURL,
		Database:            "/var/lib/fansite/fansite.db",
		CacheDir:            "/var/lib/fansite/feed-cache",
		RefreshCron:         "*/30 * * * *",
		FetchTimeoutSeconds: 5,
		CacheTTLSeconds:     60,
		LogLevel:            "info",
		LogFormat:           "json",
		Feeds:               []FeedConfig{},
	}
}

// Normalize fills zero values with defaults so partially filled configs
// still behave. UTCOffsetHours is only defaulted together with Timezone
// since 0 is a valid offset.
func (c *Config) Normalize() {
	d := DefaultConfig()
	if c.Listen == "" {
		c.Listen = d.Listen
	}
	if c.Timezone == "" {
		c.Timezone = d.Timezone
		c.UTCOffsetHours = d.UTCOffsetHours
	}
	if c.SiteName == "" {
		c.SiteName = d.SiteName
	}
	if c.SiteURL == "" {
		c.SiteURL = d.SiteURL
	}
	c.SiteURL = strings.TrimRight(c.SiteURL, "/")
	if c.CalendarBaseURL == "" {
		c.CalendarBaseURL = d.CalendarBaseURL
	}
	if c.Database == "" {
		c.Database = d.Database
	}
	if c.CacheDir == "" {
		c.CacheDir = d.CacheDir
	}
	if c.RefreshCron == "" {
		c.RefreshCron = d.RefreshCron
	}
	if c.FetchTimeoutSeconds <= 0 {
		c.FetchTimeoutSeconds = d.FetchTimeoutSeconds
	}
	if c.CacheTTLSeconds < 0 {
		c.CacheTTLSeconds = 0
	}
	c.LogLevel = strings.ToLower(c.LogLevel)
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
	c.LogFormat = strings.ToLower(c.LogFormat)
	if c.LogFormat == "" {
		c.LogFormat = d.LogFormat
	}
	if c.Feeds == nil {
		c.Feeds = []FeedConfig{}
	}
	for i := range c.Feeds {
		if c.Feeds[i].Name == "" {
			c.Feeds[i].Name = c.Feeds[i].ID
		}
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and the cron spec.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q (got %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := cron.ParseStandard(c.RefreshCron); err != nil {
		return fmt.Errorf("invalid config: refresh %q: %w", c.RefreshCron, err)
	}
	return nil
}

// Location resolves the site zone. The IANA zone wins; a fixed zone built
// from UTCOffsetHours is the fallback.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err == nil {
		return loc, nil
	}
	name := fmt.Sprintf("UTC%+d", c.UTCOffsetHours)
	return time.FixedZone(name, c.UTCOffsetHours*60*60), fmt.Errorf("load timezone %q: %w", c.Timezone, err)
}

func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSeconds) * time.Second
}

func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// Load reads the YAML config at path, normalizes and validates it. When the
// file does not exist a default config is written (0600) and returned.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600
// permissions, creating the parent directory (0700) if needed.
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

	tmp, err := os.CreateTemp(dir, ".fansite-config-*.tmp")
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
