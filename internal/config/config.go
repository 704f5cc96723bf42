// Package config loads service settings from an optional YAML file, a
// .env file and the process environment, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port     string `mapstructure:"port"`
	Env      string `mapstructure:"env"`
	LogLevel string `mapstructure:"log_level"`

	DatabaseURL   string `mapstructure:"database_url"`
	MongoURI      string `mapstructure:"mongodb_uri"`
	MongoDatabase string `mapstructure:"mongodb_database"`
	RedisURL      string `mapstructure:"redis_url"`

	JWTSecret    string        `mapstructure:"jwt_secret"`
	JWTKeys      string        `mapstructure:"jwt_keys"` // kid:secret,kid2:secret2
	JWTActiveKid string        `mapstructure:"jwt_active_kid"`
	TokenTTL     time.Duration `mapstructure:"token_ttl"`

	RateLimitRPM   int `mapstructure:"rate_limit_rpm"`
	RateLimitBurst int `mapstructure:"rate_limit_burst"`

	Timezone       string        `mapstructure:"timezone"`
	CORSOrigins    []string      `mapstructure:"cors_origins"`
	MaxUploadBytes int64         `mapstructure:"max_upload_bytes"`
	PresenceTTL    time.Duration `mapstructure:"presence_ttl"`
}

var defaults = map[string]any{
	"port":             "8080",
	"env":              "development",
	"log_level":        "info",
	"database_url":     "",
	"mongodb_uri":      "",
	"mongodb_database": "chat_db",
	"redis_url":        "",
	"jwt_secret":       "",
	"jwt_keys":         "",
	"jwt_active_kid":   "",
	"token_ttl":        24 * time.Hour,
	"rate_limit_rpm":   10,
	"rate_limit_burst": 3,
	"timezone":         "Local",
	"cors_origins":     []string{"*"},
	"max_upload_bytes": int64(10 << 20),
	"presence_ttl":     2 * time.Minute,
}

// Load reads configuration. filename names a YAML file (without
// extension) under ./config; a missing file is not an error.
func Load(filename string) (*Config, error) {
	// .env is optional, used in development
	_ = godotenv.Load()

	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if filename != "" {
		v.SetConfigName(filename)
		v.SetConfigType("yaml")
		v.AddConfigPath("config")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	c.CORSOrigins = splitList(c.CORSOrigins)

	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) validate() error {
	if c.JWTSecret == "" && c.JWTKeys == "" {
		return errors.New("either JWT_SECRET or JWT_KEYS must be set")
	}
	if c.IsProduction() && c.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required in production")
	}
	if c.RateLimitRPM <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPM must be positive, got %d", c.RateLimitRPM)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Location resolves Timezone, used for calendar-day grouping.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// SigningKeys parses JWTKeys into kid -> secret.
func (c *Config) SigningKeys() (map[string]string, error) {
	keys := map[string]string{}
	for _, p := range strings.Split(c.JWTKeys, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		parts := strings.SplitN(p, ":", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("invalid JWT_KEYS entry: %s", p)
		}
		keys[parts[0]] = parts[1]
	}
	return keys, nil
}

// env values arrive as a single comma separated string
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
