package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       App
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Log       LogConfig
	Queue     QueueConfig
	Webhook   WebhookConfig
	Sync      SyncConfig
	HubSpot   HubSpotConfig
	AWS       AWSConfig
	HTTP      HTTPConfig
	Scheduler SchedulerConfig
}

// App holds application-specific settings
type App struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// JWTConfig holds settings for the admin API tokens
type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// QueueConfig holds the durable event queue settings
type QueueConfig struct {
	Workers          int
	PollInterval     time.Duration
	LeaseDuration    time.Duration
	MaxDeliveries    int
	DedupWindow      time.Duration
	CleanupEnabled   bool
	CleanupRetention time.Duration
}

// WebhookConfig holds webhook receiver settings. A secret left empty
// disables signature verification for that source.
type WebhookConfig struct {
	Secrets     map[string]string // source -> HMAC secret
	MaxBodySize int64
}

// SyncConfig holds cross-cutting sync pipeline settings
type SyncConfig struct {
	TriggerTag       string
	DefaultPipeline  string
	ConflictPageSize int
	IdempotencyTTL   time.Duration
}

// HubSpotConfig holds the CRM API client settings
type HubSpotConfig struct {
	BaseURL     string
	AccessToken string
	Timeout     time.Duration
}

// AWSConfig holds the Partner Central client settings
type AWSConfig struct {
	Region          string
	Catalog         string // "AWS" or "Sandbox"
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string // override for tests
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int
	TrustedProxies []string
}

// SchedulerConfig holds the reconciliation poller configuration
type SchedulerConfig struct {
	Enabled       bool
	PollInterval  time.Duration
	LookbackSlack time.Duration
	JobTimeout    time.Duration
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with DEALSYNC_ prefix (e.g., DEALSYNC_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./backend")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("DEALSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: App{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret:     v.GetString("jwt.secret"),
			Expiration: v.GetDuration("jwt.expiration"),
			Issuer:     v.GetString("jwt.issuer"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Queue: QueueConfig{
			Workers:          v.GetInt("queue.workers"),
			PollInterval:     v.GetDuration("queue.poll_interval"),
			LeaseDuration:    v.GetDuration("queue.lease_duration"),
			MaxDeliveries:    v.GetInt("queue.max_deliveries"),
			DedupWindow:      v.GetDuration("queue.dedup_window"),
			CleanupEnabled:   v.GetBool("queue.cleanup_enabled"),
			CleanupRetention: v.GetDuration("queue.cleanup_retention"),
		},
		Webhook: WebhookConfig{
			Secrets:     v.GetStringMapString("webhook.secrets"),
			MaxBodySize: v.GetInt64("webhook.max_body_size"),
		},
		Sync: SyncConfig{
			TriggerTag:       v.GetString("sync.trigger_tag"),
			DefaultPipeline:  v.GetString("sync.default_pipeline"),
			ConflictPageSize: v.GetInt("sync.conflict_page_size"),
			IdempotencyTTL:   v.GetDuration("sync.idempotency_ttl"),
		},
		HubSpot: HubSpotConfig{
			BaseURL:     v.GetString("hubspot.base_url"),
			AccessToken: v.GetString("hubspot.access_token"),
			Timeout:     v.GetDuration("hubspot.timeout"),
		},
		AWS: AWSConfig{
			Region:          v.GetString("aws.region"),
			Catalog:         v.GetString("aws.catalog"),
			AccessKeyID:     v.GetString("aws.access_key_id"),
			SecretAccessKey: v.GetString("aws.secret_access_key"),
			Endpoint:        v.GetString("aws.endpoint"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:    v.GetDuration("http.read_timeout"),
			WriteTimeout:   v.GetDuration("http.write_timeout"),
			IdleTimeout:    v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes: v.GetInt("http.max_header_bytes"),
			TrustedProxies: v.GetStringSlice("http.trusted_proxies"),
		},
		Scheduler: SchedulerConfig{
			Enabled:       v.GetBool("scheduler.enabled"),
			PollInterval:  v.GetDuration("scheduler.poll_interval"),
			LookbackSlack: v.GetDuration("scheduler.lookback_slack"),
			JobTimeout:    v.GetDuration("scheduler.job_timeout"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "dealbridge"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "dealbridge"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.JWT.Expiration == 0 {
		cfg.JWT.Expiration = time.Hour
	}
	if cfg.JWT.Issuer == "" {
		cfg.JWT.Issuer = "dealbridge"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.Queue.Workers == 0 {
		cfg.Queue.Workers = 4
	}
	if cfg.Queue.PollInterval == 0 {
		cfg.Queue.PollInterval = time.Second
	}
	if cfg.Queue.LeaseDuration == 0 {
		cfg.Queue.LeaseDuration = 5 * time.Minute
	}
	if cfg.Queue.MaxDeliveries == 0 {
		cfg.Queue.MaxDeliveries = 5
	}
	if cfg.Queue.DedupWindow == 0 {
		cfg.Queue.DedupWindow = 5 * time.Minute
	}
	if cfg.Queue.CleanupRetention == 0 {
		cfg.Queue.CleanupRetention = 168 * time.Hour
	}
	if cfg.Webhook.MaxBodySize == 0 {
		cfg.Webhook.MaxBodySize = 1 << 20 // 1MB
	}
	if cfg.Sync.TriggerTag == "" {
		cfg.Sync.TriggerTag = "#AWS"
	}
	if cfg.Sync.DefaultPipeline == "" {
		cfg.Sync.DefaultPipeline = "default"
	}
	if cfg.Sync.ConflictPageSize == 0 {
		cfg.Sync.ConflictPageSize = 50
	}
	if cfg.Sync.IdempotencyTTL == 0 {
		cfg.Sync.IdempotencyTTL = 24 * time.Hour
	}
	if cfg.HubSpot.BaseURL == "" {
		cfg.HubSpot.BaseURL = "https://api.hubapi.com"
	}
	if cfg.HubSpot.Timeout == 0 {
		cfg.HubSpot.Timeout = 10 * time.Second
	}
	if cfg.AWS.Region == "" {
		cfg.AWS.Region = "us-east-1"
	}
	if cfg.AWS.Catalog == "" {
		cfg.AWS.Catalog = "Sandbox"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.Scheduler.PollInterval == 0 {
		cfg.Scheduler.PollInterval = 15 * time.Minute
	}
	if cfg.Scheduler.LookbackSlack == 0 {
		cfg.Scheduler.LookbackSlack = 5 * time.Minute
	}
	if cfg.Scheduler.JobTimeout == 0 {
		cfg.Scheduler.JobTimeout = 10 * time.Minute
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}
	if c.Queue.Workers <= 0 {
		return fmt.Errorf("queue.workers must be positive")
	}
	if c.Queue.MaxDeliveries <= 0 {
		return fmt.Errorf("queue.max_deliveries must be positive")
	}
	if c.AWS.Catalog != "AWS" && c.AWS.Catalog != "Sandbox" {
		return fmt.Errorf("aws.catalog must be 'AWS' or 'Sandbox', got %q", c.AWS.Catalog)
	}

	// Production-specific validations
	if c.App.Env == "production" {
		if c.JWT.Secret == "" {
			return fmt.Errorf("jwt.secret is required in production")
		}
		if len(c.JWT.Secret) < 32 {
			return fmt.Errorf("jwt.secret must be at least 32 characters in production")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		if c.HubSpot.AccessToken == "" {
			return fmt.Errorf("hubspot.access_token is required in production")
		}
		if len(c.Webhook.Secrets) == 0 {
			return fmt.Errorf("webhook.secrets must configure at least one source in production")
		}
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Addr returns the Redis host:port address.
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// SecretFor returns the webhook HMAC secret for a source, or "" when
// verification is disabled for it.
func (w *WebhookConfig) SecretFor(source string) string {
	return w.Secrets[source]
}
