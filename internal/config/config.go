// Package config loads eventbell's settings from a YAML file, an optional
// .env file and EVENTBELL_* environment variables, in that order of
// increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/dukerupert/eventbell/internal/model"
)

// Source kinds.
const (
	SourceHTTP   = "http"
	SourceICS    = "ics"
	SourceStatic = "static"
)

const (
	defaultListen       = ":8080"
	defaultDBPath       = "eventbell.db"
	defaultTick         = 10 * time.Second
	defaultRefresh      = "@every 1m"
	defaultBackupCron   = "0 3 * * *"
	defaultCleanupCron  = "@every 5m"
	defaultRetention    = 30
	defaultBackupPrefix = "eventbell"
)

// StaticEvent is an event written directly in the config file. Active, when
// set, becomes a boolean status; Status, when set, an enum status.
type StaticEvent struct {
	ID       string `yaml:"id"`
	Title    string `yaml:"title"`
	Date     string `yaml:"date"`
	Time     string `yaml:"time"`
	Location string `yaml:"location,omitempty"`
	Active   *bool  `yaml:"active,omitempty"`
	Status   string `yaml:"status,omitempty"`
}

// Event converts e to the engine's record.
func (e StaticEvent) Event() model.Event {
	ev := model.Event{ID: e.ID, Title: e.Title, Date: e.Date, Time: e.Time, Location: e.Location}
	switch {
	case e.Active != nil:
		ev.Status = model.FlagStatus(*e.Active)
	case e.Status != "":
		ev.Status = model.EnumStatus(e.Status)
	}
	return ev
}

type SourceConfig struct {
	// Kind is one of http, ics or static.
	Kind string `yaml:"kind"`
	// URL is the REST base URL (http) or the calendar feed URL (ics).
	URL string `yaml:"url,omitempty"`
	// Refresh is a cron spec for remote sources.
	Refresh string        `yaml:"refresh"`
	Events  []StaticEvent `yaml:"events,omitempty"`
}

type AuthConfig struct {
	// TokenHashes are bcrypt hashes of accepted API tokens, made with
	// -hash-token. An empty list leaves the API open.
	TokenHashes []string `yaml:"token_hashes,omitempty"`
}

type PushConfig struct {
	VAPIDPublicKey  string `yaml:"vapid_public_key,omitempty"`
	VAPIDPrivateKey string `yaml:"vapid_private_key,omitempty"`
	Subscriber      string `yaml:"subscriber,omitempty"`
}

type EmailConfig struct {
	PostmarkToken string   `yaml:"postmark_token,omitempty"`
	From          string   `yaml:"from,omitempty"`
	To            []string `yaml:"to,omitempty"`
	// DashboardURL is linked from every reminder email.
	DashboardURL string `yaml:"dashboard_url,omitempty"`
}

func (c EmailConfig) Enabled() bool {
	return c.PostmarkToken != "" && c.From != "" && len(c.To) > 0
}

type S3Config struct {
	Endpoint  string `yaml:"endpoint,omitempty"`
	Bucket    string `yaml:"bucket,omitempty"`
	Region    string `yaml:"region,omitempty"`
	AccessKey string `yaml:"access_key,omitempty"`
	SecretKey string `yaml:"secret_key,omitempty"`
}

type BackupConfig struct {
	Schedule      string   `yaml:"schedule"`
	Passphrase    string   `yaml:"passphrase,omitempty"`
	Prefix        string   `yaml:"prefix"`
	RetentionDays int      `yaml:"retention_days"`
	S3            S3Config `yaml:"s3"`
}

// Config is the top-level application configuration.
type Config struct {
	Listen string `yaml:"listen"`
	// Timezone is the IANA zone event wall-clock times are read in. Empty
	// means the host zone.
	Timezone  string `yaml:"timezone,omitempty"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
	// Database is the SQLite path. ":memory:" keeps the feed and the fired
	// ledger in process memory only.
	Database     string        `yaml:"database"`
	TickInterval time.Duration `yaml:"tick_interval"`
	CleanupCron  string        `yaml:"cleanup"`
	Source       SourceConfig  `yaml:"source"`
	Auth         AuthConfig    `yaml:"auth"`
	Push         PushConfig    `yaml:"push"`
	Email        EmailConfig   `yaml:"email"`
	Backup       BackupConfig  `yaml:"backup"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:       defaultListen,
		LogLevel:     "info",
		LogFormat:    "text",
		Database:     defaultDBPath,
		TickInterval: defaultTick,
		CleanupCron:  defaultCleanupCron,
		Source: SourceConfig{
			Kind:    SourceHTTP,
			URL:     "http://localhost:3000/api",
			Refresh: defaultRefresh,
		},
		Backup: BackupConfig{
			Schedule:      defaultBackupCron,
			Prefix:        defaultBackupPrefix,
			RetentionDays: defaultRetention,
		},
	}
}

// Normalize fills in missing values so partially written files still work.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "text"
	}
	if c.Database == "" {
		c.Database = defaultDBPath
	}
	if c.TickInterval <= 0 {
		c.TickInterval = defaultTick
	}
	if c.CleanupCron == "" {
		c.CleanupCron = defaultCleanupCron
	}
	c.Source.Kind = strings.ToLower(strings.TrimSpace(c.Source.Kind))
	if c.Source.Kind == "" {
		c.Source.Kind = SourceHTTP
	}
	if c.Source.Refresh == "" {
		c.Source.Refresh = defaultRefresh
	}
	if c.Backup.Schedule == "" {
		c.Backup.Schedule = defaultBackupCron
	}
	if c.Backup.Prefix == "" {
		c.Backup.Prefix = defaultBackupPrefix
	}
	if c.Backup.RetentionDays <= 0 {
		c.Backup.RetentionDays = defaultRetention
	}
}

// Validate reports settings that cannot be normalized away.
func (c *Config) Validate() error {
	switch c.Source.Kind {
	case SourceHTTP, SourceICS:
		if c.Source.URL == "" {
			return fmt.Errorf("source %s needs a url", c.Source.Kind)
		}
	case SourceStatic:
	default:
		return fmt.Errorf("unknown source kind %q", c.Source.Kind)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves Timezone, defaulting to the host zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Persistent reports whether the feed is kept in SQLite on disk.
func (c *Config) Persistent() bool {
	return c.Database != ":memory:"
}

// Load reads the .env file if present, then the YAML file at path, then
// applies EVENTBELL_* overrides. A missing file is created with defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	cfg, err := readFile(path)
	if err != nil {
		return nil, err
	}
	applyEnv(cfg, os.Getenv)
	cfg.Normalize()
	return cfg, nil
}

func readFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return nil, fmt.Errorf("write default config: %w", err)
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.Normalize()
	return &cfg, nil
}

// applyEnv overrides file settings with any EVENTBELL_* variables that are set.
func applyEnv(cfg *Config, getenv func(string) string) {
	str := func(key string, dst *string) {
		if v := getenv("EVENTBELL_" + key); v != "" {
			*dst = v
		}
	}
	list := func(key string, dst *[]string) {
		if v := getenv("EVENTBELL_" + key); v != "" {
			*dst = splitList(v)
		}
	}

	str("LISTEN", &cfg.Listen)
	str("TIMEZONE", &cfg.Timezone)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("LOG_FORMAT", &cfg.LogFormat)
	str("DB_PATH", &cfg.Database)
	if v := getenv("EVENTBELL_TICK_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.TickInterval = d
		}
	}

	str("SOURCE_KIND", &cfg.Source.Kind)
	str("SOURCE_URL", &cfg.Source.URL)
	str("SOURCE_REFRESH", &cfg.Source.Refresh)

	list("API_TOKEN_HASHES", &cfg.Auth.TokenHashes)

	str("VAPID_PUBLIC_KEY", &cfg.Push.VAPIDPublicKey)
	str("VAPID_PRIVATE_KEY", &cfg.Push.VAPIDPrivateKey)
	str("VAPID_SUBSCRIBER", &cfg.Push.Subscriber)

	str("POSTMARK_TOKEN", &cfg.Email.PostmarkToken)
	str("EMAIL_FROM", &cfg.Email.From)
	list("EMAIL_TO", &cfg.Email.To)
	str("DASHBOARD_URL", &cfg.Email.DashboardURL)

	str("BACKUP_SCHEDULE", &cfg.Backup.Schedule)
	str("BACKUP_PASSPHRASE", &cfg.Backup.Passphrase)
	str("BACKUP_PREFIX", &cfg.Backup.Prefix)
	if v := getenv("EVENTBELL_BACKUP_RETENTION_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Backup.RetentionDays = n
		}
	}
	str("S3_ENDPOINT", &cfg.Backup.S3.Endpoint)
	str("S3_BUCKET", &cfg.Backup.S3.Bucket)
	str("S3_REGION", &cfg.Backup.S3.Region)
	str("S3_ACCESS_KEY", &cfg.Backup.S3.AccessKey)
	str("S3_SECRET_KEY", &cfg.Backup.S3.SecretKey)
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Save writes cfg to path atomically with 0600 permissions. The file holds
// secrets, so the parent directory is created 0700.
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
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".eventbell-config-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp config: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp config: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp config: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return fmt.Errorf("chmod config: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename config: %w", err)
	}
	return nil
}
