// Package config loads the formflow server configuration from YAML files
// and FORMFLOW_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. FORMFLOW_SERVER_ADDR.
const EnvPrefix = "FORMFLOW"

// Config is the server configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Forms    FormsConfig    `mapstructure:"forms"`
	Session  SessionConfig  `mapstructure:"session"`
	Uploads  UploadsConfig  `mapstructure:"uploads"`
	Mail     MailConfig     `mapstructure:"mail"`
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	MetricsPath     string        `mapstructure:"metrics_path"`
	CookieName      string        `mapstructure:"cookie_name"`
	SecureCookie    bool          `mapstructure:"secure_cookie"`
	MaxBodySize     int64         `mapstructure:"max_body_size"`
	TempDir         string        `mapstructure:"temp_dir"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	StrictSinks     bool          `mapstructure:"strict_sinks"`
	BaseURL         string        `mapstructure:"base_url"`
}

// FormsConfig locates the form definitions, translations and template
// overrides.
type FormsConfig struct {
	Dir          string `mapstructure:"dir"`
	Translations string `mapstructure:"translations"`
	Templates    string `mapstructure:"templates"`
}

// SessionConfig selects the session backend.
type SessionConfig struct {
	Backend       string        `mapstructure:"backend"`
	TTL           time.Duration `mapstructure:"ttl"`
	ValueTTL      time.Duration `mapstructure:"value_ttl"`
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	RedisPrefix   string        `mapstructure:"redis_prefix"`
}

// UploadsConfig configures the upload manager.
type UploadsConfig struct {
	StagingDir     string   `mapstructure:"staging_dir"`
	Manifest       string   `mapstructure:"manifest"`
	MaxFileSize    int64    `mapstructure:"max_file_size"`
	MaxImageWidth  int      `mapstructure:"max_image_width"`
	MaxImageHeight int      `mapstructure:"max_image_height"`
	Extensions     []string `mapstructure:"extensions"`
}

// MailConfig configures the SMTP mailer. An empty host disables e-mail.
type MailConfig struct {
	Host       string        `mapstructure:"host"`
	Port       int           `mapstructure:"port"`
	Username   string        `mapstructure:"username"`
	Password   string        `mapstructure:"password"`
	From       string        `mapstructure:"from"`
	FromName   string        `mapstructure:"from_name"`
	RequireTLS bool          `mapstructure:"require_tls"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// DatabaseConfig configures the postgres sink. An empty DSN disables it.
type DatabaseConfig struct {
	DSN     string        `mapstructure:"dsn"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// LogConfig configures zap.
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.metrics_path", "/metrics")
	v.SetDefault("server.cookie_name", "formflow_session")
	v.SetDefault("server.max_body_size", 32<<20)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("forms.dir", "forms")
	v.SetDefault("session.backend", "memory")
	v.SetDefault("session.ttl", 24*time.Hour)
	v.SetDefault("session.redis_addr", "localhost:6379")
	v.SetDefault("session.redis_prefix", "formflow:")
	v.SetDefault("uploads.max_file_size", 2<<20)
	v.SetDefault("uploads.max_image_width", 800)
	v.SetDefault("uploads.max_image_height", 600)
	v.SetDefault("mail.port", 587)
	v.SetDefault("mail.timeout", 10*time.Second)
	v.SetDefault("database.timeout", 5*time.Second)
	v.SetDefault("log.level", "info")
}

// New returns a viper instance with defaults and environment binding. When
// file is empty, formflow.yaml is searched in the working directory.
func New(file string) *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("formflow")
		v.SetConfigType("yaml")
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Unmarshal only sees environment values for keys viper already knows.
	for _, key := range envOnlyKeys {
		_ = v.BindEnv(key)
	}
	return v
}

var envOnlyKeys = []string{
	"server.secure_cookie", "server.temp_dir", "server.strict_sinks", "server.base_url",
	"forms.translations", "forms.templates",
	"session.value_ttl", "session.redis_password", "session.redis_db",
	"uploads.staging_dir", "uploads.manifest", "uploads.extensions",
	"mail.host", "mail.username", "mail.password", "mail.from", "mail.from_name", "mail.require_tls",
	"database.dsn",
	"log.development",
}

// Load reads the configuration file, if any, and decodes v. A missing
// default file is not an error; a missing explicit file is.
func Load(v *viper.Viper) (Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("config: read: %w", err)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects combinations the server cannot start with.
func (c Config) Validate() error {
	switch strings.ToLower(c.Session.Backend) {
	case "memory", "redis":
	default:
		return fmt.Errorf("config: unknown session backend %q", c.Session.Backend)
	}
	if c.Mail.Host != "" && strings.TrimSpace(c.Mail.From) == "" {
		return errors.New("config: mail.from is required when mail.host is set")
	}
	if strings.TrimSpace(c.Forms.Dir) == "" {
		return errors.New("config: forms.dir is required")
	}
	return nil
}
