// Package config loads process configuration once at startup.
//
// Sources, lowest to highest precedence: built-in defaults, an optional
// config file (CONFIG_FILE), a .env file in the working directory, and the
// process environment. The resulting Config is treated as immutable.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"partscatalog/internal/core/security"
)

// Config is the root configuration.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Storage  StorageConfig  `mapstructure:"storage"`
	AI       AIConfig       `mapstructure:"ai"`
	Mail     MailConfig     `mapstructure:"mail"`
	Broker   BrokerConfig   `mapstructure:"broker"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	Features FeaturesConfig `mapstructure:"features"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     string        `mapstructure:"cors_origins"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type DatabaseConfig struct {
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type StorageConfig struct {
	Bucket          string `mapstructure:"bucket"`
	ProjectID       string `mapstructure:"project_id"`
	CredentialsFile string `mapstructure:"credentials_file"`
	URLExpiryHours  int    `mapstructure:"url_expiry_hours"`
	MaxUploadBytes  int64  `mapstructure:"max_upload_bytes"`
}

type AIConfig struct {
	AnthropicAPIKey string `mapstructure:"anthropic_api_key"`
	Model           string `mapstructure:"model"`
	MaxTokens       int64  `mapstructure:"max_tokens"`
}

type MailConfig struct {
	SendGridAPIKey string `mapstructure:"sendgrid_api_key"`
	From           string `mapstructure:"from"`
	FromName       string `mapstructure:"from_name"`
}

type BrokerConfig struct {
	URL      string `mapstructure:"url"`
	Exchange string `mapstructure:"exchange"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
}

type WorkerConfig struct {
	Concurrency  int           `mapstructure:"concurrency"`
	MaxAttempts  int           `mapstructure:"max_attempts"`
	BackoffBase  time.Duration `mapstructure:"backoff_base"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	// JobTimeout is how long a claimed job may run before it is reclaimed
	JobTimeout     time.Duration `mapstructure:"job_timeout"`
	RelayInterval  time.Duration `mapstructure:"relay_interval"`
	RelayBatchSize int           `mapstructure:"relay_batch_size"`
}

type FeaturesConfig struct {
	FileUploads bool `mapstructure:"file_uploads"`
	AIAnalysis  bool `mapstructure:"ai_analysis"`
	EventRelay  bool `mapstructure:"event_relay"`
}

// envBindings maps config keys to the environment variable names operators use.
var envBindings = map[string]string{
	"app.env":                  "APP_ENV",
	"server.port":              "PORT",
	"server.read_timeout":      "SERVER_READ_TIMEOUT",
	"server.write_timeout":     "SERVER_WRITE_TIMEOUT",
	"server.idle_timeout":      "SERVER_IDLE_TIMEOUT",
	"server.shutdown_timeout":  "SERVER_SHUTDOWN_TIMEOUT",
	"server.cors_origins":      "CORS_ALLOWED_ORIGINS",
	"log.level":                "LOG_LEVEL",
	"database.url":             "DATABASE_URL",
	"database.host":            "DB_HOST",
	"database.port":            "DB_PORT",
	"database.user":            "DB_USER",
	"database.password":        "DB_PASSWORD",
	"database.name":            "DB_NAME",
	"database.sslmode":         "DB_SSLMODE",
	"database.max_conns":       "DB_MAX_CONNS",
	"database.min_conns":       "DB_MIN_CONNS",
	"redis.host":               "REDIS_HOST",
	"redis.port":               "REDIS_PORT",
	"redis.password":           "REDIS_PASSWORD",
	"redis.db":                 "REDIS_DB",
	"storage.bucket":           "GCS_BUCKET_NAME",
	"storage.project_id":       "GCP_PROJECT_ID",
	"storage.credentials_file": "GOOGLE_APPLICATION_CREDENTIALS",
	"storage.url_expiry_hours": "CDN_URL_EXPIRY_HOURS",
	"storage.max_upload_bytes": "MAX_UPLOAD_BYTES",
	"ai.anthropic_api_key":     "ANTHROPIC_API_KEY",
	"ai.model":                 "ANTHROPIC_MODEL",
	"ai.max_tokens":            "ANTHROPIC_MAX_TOKENS",
	"mail.sendgrid_api_key":    "SENDGRID_API_KEY",
	"mail.from":                "MAIL_FROM",
	"mail.from_name":           "MAIL_FROM_NAME",
	"broker.url":               "RABBITMQ_URL",
	"broker.exchange":          "RABBITMQ_EXCHANGE",
	"auth.jwt_secret":          "JWT_SECRET",
	"auth.issuer":              "JWT_ISSUER",
	"worker.concurrency":       "WORKER_CONCURRENCY",
	"worker.max_attempts":      "JOB_MAX_ATTEMPTS",
	"worker.backoff_base":      "JOB_BACKOFF_BASE",
	"worker.poll_interval":     "WORKER_POLL_INTERVAL",
	"worker.job_timeout":       "JOB_TIMEOUT",
	"worker.relay_interval":    "OUTBOX_RELAY_INTERVAL",
	"worker.relay_batch_size":  "OUTBOX_RELAY_BATCH_SIZE",
	"features.file_uploads":    "ENABLE_FILE_UPLOADS",
	"features.ai_analysis":     "ENABLE_AI_ANALYSIS",
	"features.event_relay":     "ENABLE_EVENT_RELAY",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "partscatalog")
	v.SetDefault("app.env", "development")

	v.SetDefault("server.port", 3000)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.cors_origins", "*")

	v.SetDefault("log.level", "info")

	v.SetDefault("database.url", "")
	v.SetDefault("database.host", "")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 25)
	v.SetDefault("database.min_conns", 2)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.project_id", "")
	v.SetDefault("storage.credentials_file", "")
	v.SetDefault("storage.url_expiry_hours", 24)
	v.SetDefault("storage.max_upload_bytes", 10<<20)

	v.SetDefault("ai.anthropic_api_key", "")
	v.SetDefault("ai.model", "claude-sonnet-4-5")
	v.SetDefault("ai.max_tokens", 4096)

	v.SetDefault("mail.sendgrid_api_key", "")
	v.SetDefault("mail.from", "no-reply@partscatalog.local")
	v.SetDefault("mail.from_name", "Parts Catalog")

	v.SetDefault("broker.url", "")
	v.SetDefault("broker.exchange", "partscatalog.events")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "partscatalog")

	v.SetDefault("worker.concurrency", 5)
	v.SetDefault("worker.max_attempts", 3)
	v.SetDefault("worker.backoff_base", 2*time.Second)
	v.SetDefault("worker.poll_interval", time.Second)
	v.SetDefault("worker.job_timeout", 5*time.Minute)
	v.SetDefault("worker.relay_interval", 5*time.Second)
	v.SetDefault("worker.relay_batch_size", 100)

	v.SetDefault("features.file_uploads", false)
	v.SetDefault("features.ai_analysis", false)
	v.SetDefault("features.event_relay", false)
}

// Load reads configuration. A missing .env file is not an error.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	_ = v.BindEnv("config_file", "CONFIG_FILE")
	if file := strings.TrimSpace(v.GetString("config_file")); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the settings every process needs.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Database.URL == "" && (c.Database.Host == "" || c.Database.Name == "" || c.Database.User == "") {
		return errors.New("database is not configured: set DATABASE_URL or DB_HOST, DB_USER and DB_NAME")
	}
	if c.Worker.Concurrency <= 0 {
		return fmt.Errorf("worker concurrency must be positive, got %d", c.Worker.Concurrency)
	}
	if c.Worker.MaxAttempts <= 0 {
		return fmt.Errorf("job max attempts must be positive, got %d", c.Worker.MaxAttempts)
	}
	if c.Storage.URLExpiryHours <= 0 {
		return fmt.Errorf("url expiry hours must be positive, got %d", c.Storage.URLExpiryHours)
	}
	return nil
}

// IsProduction reports whether error details must be hidden from clients.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.App.Env, "production")
}

// DSN returns DATABASE_URL, or a URL assembled from the DB_* settings.
func (c *DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:   "/" + c.Name,
	}
	q := u.Query()
	q.Set("sslmode", c.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Addr returns host:port for the Redis client.
func (c *RedisConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// URLExpiry returns the lifetime of signed download URLs.
func (c *StorageConfig) URLExpiry() time.Duration {
	return time.Duration(c.URLExpiryHours) * time.Hour
}

// AllowedOrigins splits CORS_ALLOWED_ORIGINS on commas.
func (c *ServerConfig) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// Flags builds the feature flag provider.
func (c *Config) Flags() *security.StaticFlags {
	return security.NewStaticFlags(map[string]bool{
		security.FlagFileUploads: c.Features.FileUploads,
		security.FlagAIAnalysis:  c.Features.AIAnalysis,
		security.FlagEventRelay:  c.Features.EventRelay,
	})
}
