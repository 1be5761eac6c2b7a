// Package main provides the CollabHub API server CLI.
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the server configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Auth        AuthConfig        `yaml:"auth"`
	RateLimit   RateLimitConfig   `yaml:"rate_limit"`
	Database    DatabaseConfig    `yaml:"database"`
	Redis       RedisConfig       `yaml:"redis"`
	SMTP        SMTPConfig        `yaml:"smtp"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Maintenance MaintenanceConfig `yaml:"maintenance"`
	Log         LogConfig         `yaml:"log"`
	Verbose     bool              `yaml:"-"` // set via CLI flag
}

// ServerConfig contains HTTP listener settings.
type ServerConfig struct {
	Address        string    `yaml:"address"`         // HTTP listen address (default: :5000)
	CORSOrigins    []string  `yaml:"cors_origins"`    // Browser origins allowed to call the API
	TrustedProxies []string  `yaml:"trusted_proxies"` // Proxy IPs/CIDRs whose X-Forwarded-For is trusted
	TLS            TLSConfig `yaml:"tls"`
}

// TLSConfig contains HTTPS settings for the API listener.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// AuthConfig contains token and password settings.
type AuthConfig struct {
	JWTSecret        string `yaml:"jwt_secret"`
	AccessTokenTTL   string `yaml:"access_token_ttl"`  // default 15m
	RefreshTokenTTL  string `yaml:"refresh_token_ttl"` // default 168h
	BcryptCost       int    `yaml:"bcrypt_cost"`
	LockoutThreshold int    `yaml:"lockout_threshold"`
	LockoutDuration  string `yaml:"lockout_duration"` // default 30m
	ResetURL         string `yaml:"reset_url"`        // frontend page receiving reset tokens
}

// RateLimitConfig contains request limits.
type RateLimitConfig struct {
	PerIP       int    `yaml:"per_ip"`        // public auth requests per ip_window
	IPWindow    string `yaml:"ip_window"`     // default 15m
	PerUser     int    `yaml:"per_user"`      // authenticated requests per minute
	MailPerHour int    `yaml:"mail_per_hour"` // reset emails per recipient per hour
}

// DatabaseConfig contains SQLite settings.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// RedisConfig enables the shared lockout store when Addr is set.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// SMTPConfig configures password reset email. Empty Host logs links instead.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// MetricsConfig controls the Prometheus listener.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

// MaintenanceConfig controls scheduled cleanup.
type MaintenanceConfig struct {
	Schedule string `yaml:"schedule"` // cron spec, default @hourly
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// LoadConfig loads configuration from a YAML file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.setDefaults()
	return &cfg, nil
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	return cfg
}

// setDefaults sets default values for missing config fields.
func (c *Config) setDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = ":5000"
	}
	if c.Server.CORSOrigins == nil {
		c.Server.CORSOrigins = []string{"http://localhost:3000", "http://localhost:5173"}
	}
	if c.Auth.AccessTokenTTL == "" {
		c.Auth.AccessTokenTTL = "15m"
	}
	if c.Auth.RefreshTokenTTL == "" {
		c.Auth.RefreshTokenTTL = "168h"
	}
	if c.Auth.BcryptCost == 0 {
		c.Auth.BcryptCost = 10
	}
	if c.Auth.LockoutThreshold == 0 {
		c.Auth.LockoutThreshold = 5
	}
	if c.Auth.LockoutDuration == "" {
		c.Auth.LockoutDuration = "30m"
	}
	if c.Auth.ResetURL == "" {
		c.Auth.ResetURL = "http://localhost:3000/reset-password"
	}
	if c.RateLimit.PerIP == 0 {
		c.RateLimit.PerIP = 20
	}
	if c.RateLimit.IPWindow == "" {
		c.RateLimit.IPWindow = "15m"
	}
	if c.RateLimit.PerUser == 0 {
		c.RateLimit.PerUser = 100
	}
	if c.RateLimit.MailPerHour == 0 {
		c.RateLimit.MailPerHour = 3
	}
	if c.Database.Path == "" {
		c.Database.Path = "./data/collabhub.db"
	}
	if c.SMTP.Port == 0 {
		c.SMTP.Port = 587
	}
	if c.Metrics.Address == "" {
		c.Metrics.Address = ":9100"
	}
	if c.Maintenance.Schedule == "" {
		c.Maintenance.Schedule = "@hourly"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// ApplyEnv overrides config values from COLLABHUB_* variables. PORT and
// JWT_SECRET are honoured for deployments that only set those.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v, ok := lookup(k); ok && v != "" {
				*dst = v
				return
			}
		}
	}
	num := func(dst *int, key string) error {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = n
		}
		return nil
	}
	list := func(dst *[]string, key string) {
		if v, ok := lookup(key); ok {
			*dst = splitList(v)
		}
	}

	if v, ok := lookup("PORT"); ok && v != "" {
		c.Server.Address = ":" + v
	}
	str(&c.Server.Address, "COLLABHUB_ADDRESS")
	list(&c.Server.CORSOrigins, "COLLABHUB_CORS_ORIGINS")
	list(&c.Server.TrustedProxies, "COLLABHUB_TRUSTED_PROXIES")
	str(&c.Auth.JWTSecret, "COLLABHUB_JWT_SECRET", "JWT_SECRET")
	str(&c.Auth.ResetURL, "COLLABHUB_RESET_URL")
	str(&c.Database.Path, "COLLABHUB_DB_PATH")
	str(&c.Redis.Addr, "COLLABHUB_REDIS_ADDR")
	str(&c.Redis.Password, "COLLABHUB_REDIS_PASSWORD")
	str(&c.SMTP.Host, "COLLABHUB_SMTP_HOST")
	str(&c.SMTP.Username, "COLLABHUB_SMTP_USERNAME")
	str(&c.SMTP.Password, "COLLABHUB_SMTP_PASSWORD")
	str(&c.SMTP.From, "COLLABHUB_SMTP_FROM")
	str(&c.Log.Level, "COLLABHUB_LOG_LEVEL")
	str(&c.Log.File, "COLLABHUB_LOG_FILE")

	for key, dst := range map[string]*int{
		"COLLABHUB_REDIS_DB":    &c.Redis.DB,
		"COLLABHUB_SMTP_PORT":   &c.SMTP.Port,
		"COLLABHUB_BCRYPT_COST": &c.Auth.BcryptCost,
	} {
		if err := num(dst, key); err != nil {
			return err
		}
	}

	if v, ok := lookup("COLLABHUB_METRICS_ENABLED"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("COLLABHUB_METRICS_ENABLED: %w", err)
		}
		c.Metrics.Enabled = b
	}
	return nil
}

func splitList(s string) []string {
	out := []string{}
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Durations holds parsed duration settings.
type Durations struct {
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	LockoutDuration time.Duration
	IPWindow        time.Duration
}

// ParseDurations parses every duration setting.
func (c *Config) ParseDurations() (Durations, error) {
	var d Durations
	for _, f := range []struct {
		key string
		val string
		dst *time.Duration
	}{
		{"auth.access_token_ttl", c.Auth.AccessTokenTTL, &d.AccessTokenTTL},
		{"auth.refresh_token_ttl", c.Auth.RefreshTokenTTL, &d.RefreshTokenTTL},
		{"auth.lockout_duration", c.Auth.LockoutDuration, &d.LockoutDuration},
		{"rate_limit.ip_window", c.RateLimit.IPWindow, &d.IPWindow},
	} {
		v, err := time.ParseDuration(f.val)
		if err != nil {
			return d, fmt.Errorf("%s: %w", f.key, err)
		}
		if v <= 0 {
			return d, fmt.Errorf("%s must be positive", f.key)
		}
		*f.dst = v
	}
	return d, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Address == "" {
		return fmt.Errorf("server.address is required")
	}
	if len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("auth.jwt_secret must be at least 32 characters (set COLLABHUB_JWT_SECRET)")
	}
	if _, err := c.ParseDurations(); err != nil {
		return err
	}
	if c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31 {
		return fmt.Errorf("auth.bcrypt_cost must be between 4 and 31")
	}
	if c.Server.TLS.Enabled {
		if c.Server.TLS.CertFile == "" {
			return fmt.Errorf("server.tls.cert_file is required when TLS is enabled")
		}
		if c.Server.TLS.KeyFile == "" {
			return fmt.Errorf("server.tls.key_file is required when TLS is enabled")
		}
	}
	if c.SMTP.Host != "" && c.SMTP.From == "" {
		return fmt.Errorf("smtp.from is required when smtp.host is set")
	}
	return nil
}
