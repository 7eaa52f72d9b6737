package config

import (
	"time"

	"github.com/spf13/viper"

	"github.com/Sternrassler/nsi-loader/pkg/pagination"
	"github.com/Sternrassler/nsi-loader/pkg/registry"
)

// DefaultDictionaries is the batch list used when DICTIONARIES is unset.
var DefaultDictionaries = []string{
	"1.2.643.5.1.13.13.11.1040",
	"1.2.643.5.1.13.13.11.1486",
	"1.2.643.5.1.13.13.99.2.647",
	"1.2.643.5.1.13.13.99.2.1047",
}

// SetDefaults configures default values for all configuration options.
func SetDefaults(v *viper.Viper) {
	// Registry
	v.SetDefault("nsi_base_url", registry.DefaultBaseURL)
	v.SetDefault("user_key", "")
	v.SetDefault("page_size", pagination.DefaultPageSize)
	v.SetDefault("request_timeout", (60 * time.Second).String())
	v.SetDefault("max_pages", 0) // unbounded
	v.SetDefault("registry_insecure_skip_verify", false)
	v.SetDefault("dictionaries", DefaultDictionaries)

	// Database
	v.SetDefault("database_url", "")
	v.SetDefault("db_host", "localhost")
	v.SetDefault("db_port", 5432)
	v.SetDefault("db_name", "dictionaries")
	v.SetDefault("db_user", "postgres")
	v.SetDefault("db_password", "postgres")

	// Redis report history, disabled when empty
	v.SetDefault("redis_url", "")

	// Server and logging
	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_pretty", false)
}
