package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/fx"
)

// Storage constants
const (
	StorageDriverLocal  = "local"
	StorageDriverRemote = "remote"

	AuthTypeOAuth2 = "oauth2"
	AuthTypeHMAC   = "hmac"
)

var Module = fx.Module("config",
	fx.Provide(NewConfig),
)

type Config struct {
	App          AppConfig          `mapstructure:"app"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Storage      StorageConfig      `mapstructure:"storage"`
	Signing      SigningConfig      `mapstructure:"signing"`
	Notification NotificationConfig `mapstructure:"notification"`
	Logging      LoggingConfig      `mapstructure:"logging"`
}

type AppConfig struct {
	Name    string `mapstructure:"name"`
	Port    int    `mapstructure:"port"`
	Env     string `mapstructure:"env"`
	BaseURL string `mapstructure:"base_url"`
}

type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// StorageConfig points at the document/blob store collaborator.
type StorageConfig struct {
	Driver     string            `mapstructure:"driver"`    // "local" or "remote"
	BasePath   string            `mapstructure:"base_path"` // local driver root
	BaseURL    string            `mapstructure:"base_url"`  // remote driver API
	TokenURL   string            `mapstructure:"token_url"` // remote driver, oauth2 only
	AuthType   string            `mapstructure:"auth_type"` // "oauth2" or "hmac"
	Timeout    time.Duration     `mapstructure:"timeout"`
	ReadURLTTL time.Duration     `mapstructure:"read_url_ttl"`
	OAuth2     OAuth2Credentials `mapstructure:"oauth2"`
	HMAC       HMACCredentials   `mapstructure:"hmac"`
}

// OAuth2Credentials stores OAuth2 client credentials
type OAuth2Credentials struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	Scope        string `mapstructure:"scope"`
}

// HMACCredentials stores HMAC client credentials
type HMACCredentials struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
}

// IsOAuth2 returns true if auth type is OAuth2
func (s *StorageConfig) IsOAuth2() bool {
	return s.AuthType == AuthTypeOAuth2 || s.AuthType == ""
}

// IsHMAC returns true if auth type is HMAC
func (s *StorageConfig) IsHMAC() bool {
	return s.AuthType == AuthTypeHMAC
}

type SigningConfig struct {
	MaxEvidenceBytes int           `mapstructure:"max_evidence_bytes"`
	HashTimeout      time.Duration `mapstructure:"hash_timeout"`
	BaselineRetries  uint64        `mapstructure:"baseline_retries"`
	ExpirySweep      string        `mapstructure:"expiry_sweep"` // cron spec, empty disables
}

type NotificationConfig struct {
	QueueKey      string        `mapstructure:"queue_key"`
	EmailRelayURL string        `mapstructure:"email_relay_url"`
	EmailUser     string        `mapstructure:"email_user"`
	EmailPassword string        `mapstructure:"email_password"`
	Timeout       time.Duration `mapstructure:"timeout"`
	MaxRetries    uint64        `mapstructure:"max_retries"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func NewConfig() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Enable environment variable override
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.normalize()

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "signflow")
	v.SetDefault("app.port", 8080)
	v.SetDefault("app.env", "development")
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("storage.driver", StorageDriverLocal)
	v.SetDefault("storage.base_path", "./documents")
	v.SetDefault("storage.timeout", 30)
	v.SetDefault("storage.read_url_ttl", 300)
	v.SetDefault("signing.max_evidence_bytes", 500*1024)
	v.SetDefault("signing.hash_timeout", 60)
	v.SetDefault("signing.baseline_retries", 3)
	v.SetDefault("notification.queue_key", "signflow:notifications")
	v.SetDefault("notification.timeout", 15)
	v.SetDefault("notification.max_retries", 3)
	v.SetDefault("logging.level", "info")
}

// normalize converts second-valued durations and fills empty values.
func (c *Config) normalize() {
	c.Storage.Timeout = c.Storage.Timeout * time.Second
	c.Storage.ReadURLTTL = c.Storage.ReadURLTTL * time.Second
	c.Signing.HashTimeout = c.Signing.HashTimeout * time.Second
	c.Notification.Timeout = c.Notification.Timeout * time.Second

	if c.Storage.AuthType == "" {
		c.Storage.AuthType = AuthTypeOAuth2
	}
	if c.Signing.MaxEvidenceBytes <= 0 {
		c.Signing.MaxEvidenceBytes = 500 * 1024
	}
}

func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}
