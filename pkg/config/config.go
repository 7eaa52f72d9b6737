// Package config loads the loader configuration from the environment,
// an optional .env file and an optional config file.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/Sternrassler/nsi-loader/pkg/logging"
	"github.com/Sternrassler/nsi-loader/pkg/pagination"
	"github.com/Sternrassler/nsi-loader/pkg/registry"
)

// ErrMissingUserKey is returned when no registry access key is configured.
var ErrMissingUserKey = errors.New("USER_KEY is required")

// Config is the process configuration. It is loaded once and passed by value.
type Config struct {
	BaseURL            string
	UserKey            string
	PageSize           int
	RequestTimeout     time.Duration
	MaxPages           int
	InsecureSkipVerify bool
	Dictionaries       []string

	DatabaseURL string
	RedisURL    string

	Port      int
	LogLevel  string
	LogPretty bool
}

// Load reads .env (if present), the optional config file and the
// environment. Environment variables take precedence over the file.
func Load(configFile string) (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found, using system environment variables")
	}

	v := viper.New()
	v.AutomaticEnv()
	SetDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	return FromViper(v)
}

// FromViper builds and validates a Config from a prepared viper instance.
func FromViper(v *viper.Viper) (Config, error) {
	timeout, err := parseTimeout(v.GetString("request_timeout"))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		BaseURL:            v.GetString("nsi_base_url"),
		UserKey:            strings.TrimSpace(v.GetString("user_key")),
		PageSize:           v.GetInt("page_size"),
		RequestTimeout:     timeout,
		MaxPages:           v.GetInt("max_pages"),
		InsecureSkipVerify: v.GetBool("registry_insecure_skip_verify"),
		Dictionaries:       splitList(v.GetStringSlice("dictionaries")),
		DatabaseURL:        v.GetString("database_url"),
		RedisURL:           v.GetString("redis_url"),
		Port:               v.GetInt("port"),
		LogLevel:           v.GetString("log_level"),
		LogPretty:          v.GetBool("log_pretty"),
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = buildDatabaseURL(
			v.GetString("db_host"),
			v.GetString("db_port"),
			v.GetString("db_name"),
			v.GetString("db_user"),
			v.GetString("db_password"),
		)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks required values and ranges.
func (c Config) Validate() error {
	if c.UserKey == "" {
		return ErrMissingUserKey
	}
	if c.BaseURL == "" {
		return fmt.Errorf("NSI_BASE_URL must not be empty")
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("PAGE_SIZE must be positive, got %d", c.PageSize)
	}
	if c.MaxPages < 0 {
		return fmt.Errorf("MAX_PAGES must not be negative, got %d", c.MaxPages)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive, got %s", c.RequestTimeout)
	}
	if err := logging.ValidateLevel(logging.LogLevel(c.LogLevel)); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT out of range: %d", c.Port)
	}
	return nil
}

// Registry returns the registry client configuration.
func (c Config) Registry() registry.Config {
	rc := registry.DefaultConfig(c.UserKey)
	rc.BaseURL = c.BaseURL
	rc.Timeout = c.RequestTimeout
	rc.InsecureSkipVerify = c.InsecureSkipVerify
	return rc
}

// Pagination returns the downloader configuration.
func (c Config) Pagination() pagination.Config {
	return pagination.Config{
		PageSize: c.PageSize,
		MaxPages: c.MaxPages,
	}
}

// Logging returns the logger configuration.
func (c Config) Logging() logging.Config {
	lc := logging.DefaultConfig()
	lc.Level = logging.LogLevel(c.LogLevel)
	lc.Pretty = c.LogPretty
	return lc
}

// Addr returns the HTTP listen address.
func (c Config) Addr() string {
	return ":" + strconv.Itoa(c.Port)
}

// parseTimeout accepts Go durations ("90s") or plain seconds ("60").
func parseTimeout(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if secs, err := strconv.Atoi(s); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid REQUEST_TIMEOUT %q: %w", s, err)
	}
	return d, nil
}

// splitList flattens comma and whitespace separated entries.
func splitList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func buildDatabaseURL(host, port, name, user, password string) string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(user, password),
		Host:     net.JoinHostPort(host, port),
		Path:     "/" + name,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}
