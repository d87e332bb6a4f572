package trendengine

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// SiteConfig holds all configuration for a trendengine site.
type SiteConfig struct {
	Name        string `mapstructure:"name" yaml:"name"`               // Site name (default "Trends")
	URL         string `mapstructure:"url" yaml:"url"`                 // Canonical URL (default "http://localhost:3000")
	Description string `mapstructure:"description" yaml:"description"` // Site description for RSS and meta tags
	Author      string `mapstructure:"author" yaml:"author"`           // Publisher name for JSON-LD

	Addr        string `mapstructure:"addr" yaml:"addr"`                 // Listen address (default ":3000")
	StaticDir   string `mapstructure:"static_dir" yaml:"static_dir"`     // Static assets (default "public")
	WWWRedirect string `mapstructure:"www_redirect" yaml:"www_redirect"` // "www", "non-www" or "" for none

	Database DatabaseConfig `mapstructure:"database" yaml:"database"`

	AdminUsername string `mapstructure:"admin_username" yaml:"admin_username"` // Default "admin"
	AdminPassword string `mapstructure:"admin_password" yaml:"admin_password"`
	APIToken      string `mapstructure:"api_token" yaml:"api_token"` // Bearer token for scripted writes
	SessionSecret string `mapstructure:"session_secret" yaml:"session_secret"`
	CookieSecure  bool   `mapstructure:"cookie_secure" yaml:"cookie_secure"` // Set true for HTTPS

	CORSOrigins []string      `mapstructure:"cors_origins" yaml:"cors_origins"` // Allowed origins for /api (default: URL)
	CacheTTL    time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`       // Read cache TTL (default 5m)

	Blob     BlobConfig     `mapstructure:"blob" yaml:"blob"`
	Indexing IndexingConfig `mapstructure:"indexing" yaml:"indexing"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver" yaml:"driver"` // "sqlite" (default) or "postgres"
	DSN    string `mapstructure:"dsn" yaml:"dsn"`       // SQLite path or Postgres URL (default "data/trends.db")
}

type BlobConfig struct {
	Driver  string        `mapstructure:"driver" yaml:"driver"` // "local" (default) or "s3"
	Dir     string        `mapstructure:"dir" yaml:"dir"`       // Local upload dir (default "public/uploads")
	BaseURL string        `mapstructure:"base_url" yaml:"base_url"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"` // Per-upload timeout (default 30s)
	S3      S3Config      `mapstructure:"s3" yaml:"s3"`
}

type S3Config struct {
	Bucket          string `mapstructure:"bucket" yaml:"bucket"`
	Region          string `mapstructure:"region" yaml:"region"`
	Prefix          string `mapstructure:"prefix" yaml:"prefix"`
	PublicBaseURL   string `mapstructure:"public_base_url" yaml:"public_base_url"`
	Endpoint        string `mapstructure:"endpoint" yaml:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"secret_access_key"`
}

type IndexingConfig struct {
	Timeout               time.Duration `mapstructure:"timeout" yaml:"timeout"`       // Per-notification timeout (default 10s)
	QueueSize             int           `mapstructure:"queue_size" yaml:"queue_size"` // Default 64
	GoogleCredentialsFile string        `mapstructure:"google_credentials_file" yaml:"google_credentials_file"`
	IndexNowKey           string        `mapstructure:"indexnow_key" yaml:"indexnow_key"`
	IndexNowEndpoint      string        `mapstructure:"indexnow_endpoint" yaml:"indexnow_endpoint"`
	NATSURL               string        `mapstructure:"nats_url" yaml:"nats_url"`
	NATSSubject           string        `mapstructure:"nats_subject" yaml:"nats_subject"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`   // debug, info, warn, error (default info)
	Format string `mapstructure:"format" yaml:"format"` // json (default) or console
}

func (c *SiteConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "Trends"
	}
	if c.URL == "" {
		c.URL = "http://localhost:3000"
	}
	c.URL = strings.TrimRight(c.URL, "/")
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.StaticDir == "" {
		c.StaticDir = "public"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = string(DialectSQLite)
	}
	if c.Database.DSN == "" && c.Database.Driver == string(DialectSQLite) {
		c.Database.DSN = "data/trends.db"
	}
	if c.AdminUsername == "" {
		c.AdminUsername = "admin"
	}
	if len(c.CORSOrigins) == 0 {
		c.CORSOrigins = []string{c.URL}
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = 5 * time.Minute
	}
	if c.Blob.Driver == "" {
		c.Blob.Driver = "local"
	}
	if c.Blob.Dir == "" {
		c.Blob.Dir = c.StaticDir + "/uploads"
	}
	if c.Blob.BaseURL == "" {
		c.Blob.BaseURL = "/uploads"
	}
	if c.Blob.Timeout == 0 {
		c.Blob.Timeout = 30 * time.Second
	}
	if c.Indexing.Timeout == 0 {
		c.Indexing.Timeout = 10 * time.Second
	}
	if c.Indexing.QueueSize == 0 {
		c.Indexing.QueueSize = 64
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
}

// Validate reports configuration that would keep the server from running.
func (c SiteConfig) Validate() error {
	var errs []error
	if c.AdminPassword == "" && c.APIToken == "" {
		errs = append(errs, errors.New("one of admin_password (ADMIN_PASSWORD) or api_token (API_TOKEN) is required"))
	}
	if c.SessionSecret == "" {
		errs = append(errs, errors.New("session_secret (SESSION_SECRET) is required"))
	}
	switch Dialect(c.Database.Driver) {
	case DialectSQLite, DialectPostgres:
	default:
		errs = append(errs, fmt.Errorf("unsupported database driver %q", c.Database.Driver))
	}
	if c.Database.DSN == "" {
		errs = append(errs, errors.New("database dsn (DATABASE_URL) is required"))
	}
	switch c.Blob.Driver {
	case "local":
	case "s3":
		if c.Blob.S3.Bucket == "" {
			errs = append(errs, errors.New("blob.s3.bucket (S3_BUCKET) is required for the s3 driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported blob driver %q", c.Blob.Driver))
	}
	switch c.WWWRedirect {
	case "", "www", "non-www":
	default:
		errs = append(errs, fmt.Errorf("www_redirect must be \"www\", \"non-www\" or empty, got %q", c.WWWRedirect))
	}
	return errors.Join(errs...)
}

// Redacted returns a copy with secrets masked, for printing.
func (c SiteConfig) Redacted() SiteConfig {
	mask := func(s *string) {
		if *s != "" {
			*s = "********"
		}
	}
	mask(&c.AdminPassword)
	mask(&c.APIToken)
	mask(&c.SessionSecret)
	mask(&c.Blob.S3.SecretAccessKey)
	if c.Database.Driver == string(DialectPostgres) {
		mask(&c.Database.DSN)
	}
	return c
}

// envBindings maps config keys to the environment variables that set them.
var envBindings = map[string]string{
	"name":                             "SITE_NAME",
	"url":                              "SITE_URL",
	"description":                      "SITE_DESCRIPTION",
	"author":                           "SITE_AUTHOR",
	"addr":                             "ADDR",
	"static_dir":                       "STATIC_DIR",
	"www_redirect":                     "WWW_REDIRECT",
	"database.driver":                  "DATABASE_DRIVER",
	"database.dsn":                     "DATABASE_URL",
	"admin_username":                   "ADMIN_USERNAME",
	"admin_password":                   "ADMIN_PASSWORD",
	"api_token":                        "API_TOKEN",
	"session_secret":                   "SESSION_SECRET",
	"cookie_secure":                    "COOKIE_SECURE",
	"cors_origins":                     "CORS_ORIGINS",
	"cache_ttl":                        "CACHE_TTL",
	"blob.driver":                      "BLOB_DRIVER",
	"blob.dir":                         "BLOB_DIR",
	"blob.base_url":                    "BLOB_BASE_URL",
	"blob.timeout":                     "BLOB_TIMEOUT",
	"blob.s3.bucket":                   "S3_BUCKET",
	"blob.s3.region":                   "AWS_REGION",
	"blob.s3.prefix":                   "S3_PREFIX",
	"blob.s3.public_base_url":          "S3_PUBLIC_BASE_URL",
	"blob.s3.endpoint":                 "S3_ENDPOINT",
	"blob.s3.access_key_id":            "AWS_ACCESS_KEY_ID",
	"blob.s3.secret_access_key":        "AWS_SECRET_ACCESS_KEY",
	"indexing.timeout":                 "INDEXING_TIMEOUT",
	"indexing.queue_size":              "INDEXING_QUEUE_SIZE",
	"indexing.google_credentials_file": "GOOGLE_APPLICATION_CREDENTIALS",
	"indexing.indexnow_key":            "INDEXNOW_KEY",
	"indexing.indexnow_endpoint":       "INDEXNOW_ENDPOINT",
	"indexing.nats_url":                "NATS_URL",
	"indexing.nats_subject":            "NATS_SUBJECT",
	"log.level":                        "LOG_LEVEL",
	"log.format":                       "LOG_FORMAT",
}

// LoadConfig reads configuration from, in increasing priority: built-in
// defaults, the optional config file at path (YAML, JSON or TOML), a .env
// file in the working directory and the process environment.
func LoadConfig(path string) (SiteConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return SiteConfig{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return SiteConfig{}, err
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return SiteConfig{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg SiteConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return SiteConfig{}, fmt.Errorf("decode config: %w", err)
	}
	if len(cfg.CORSOrigins) == 1 && strings.Contains(cfg.CORSOrigins[0], ",") {
		cfg.CORSOrigins = FilterEmpty(strings.Split(cfg.CORSOrigins[0], ","))
	}
	cfg.setDefaults()
	return cfg, nil
}

// Option configures additional App behavior.
type Option func(*App)

// WithCustomRoutes registers additional routes on the Echo instance.
// The callback receives the App before the server starts.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}
