package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/conduit-lang/mapping/internal/rdbms"
	"github.com/conduit-lang/mapping/internal/validation"
)

// Config is the configuration of the mapping tool
type Config struct {
	Domain     DomainConfig     `mapstructure:"domain"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Validation ValidationConfig `mapstructure:"validation"`
	Server     ServerConfig     `mapstructure:"server"`
	Reload     ReloadConfig     `mapstructure:"reload"`
	Log        LogConfig        `mapstructure:"log"`
}

// DomainConfig lists the YAML files describing the domain
type DomainConfig struct {
	Files []string `mapstructure:"files"`
}

// StorageConfig describes the storage providers
type StorageConfig struct {
	DefaultProvider string           `mapstructure:"default_provider"`
	Providers       []ProviderConfig `mapstructure:"providers"`
}

// ProviderConfig describes one storage provider
type ProviderConfig struct {
	Name          string   `mapstructure:"name"`
	Dialect       string   `mapstructure:"dialect"`
	DSN           string   `mapstructure:"dsn"`
	StorageGroups []string `mapstructure:"storage_groups"`
	// Driver overrides the database/sql driver used to verify the schema
	Driver string `mapstructure:"driver"`
}

// DriverName returns the database/sql driver of the provider: "pgx" for
// PostgreSQL and "sqlite3" for SQLite unless Driver is set
func (p ProviderConfig) DriverName() string {
	if p.Driver != "" {
		return p.Driver
	}
	dialect, err := rdbms.ParseDialect(p.Dialect)
	if err != nil {
		return p.Dialect
	}
	if dialect.Name() == "sqlite" {
		return "sqlite3"
	}
	return "pgx"
}

// ValidationConfig tunes the standard validator
type ValidationConfig struct {
	SkipSortExpressions bool `mapstructure:"skip_sort_expressions"`
}

// ServerConfig configures the introspection server
type ServerConfig struct {
	Port      int    `mapstructure:"port"`
	Host      string `mapstructure:"host"`
	APIPrefix string `mapstructure:"api_prefix"`
	// TokenSecret enables bearer token checks on reloads when set
	TokenSecret string `mapstructure:"token_secret"`
}

// ReloadConfig controls how a serving instance picks up domain changes
type ReloadConfig struct {
	Watch    bool          `mapstructure:"watch"`
	Debounce time.Duration `mapstructure:"debounce"`
	RedisURL string        `mapstructure:"redis_url"`
	Channel  string        `mapstructure:"channel"`
}

// LogConfig configures logging
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// Load reads mapping.yaml from the current directory, or path when given.
// Environment variables prefixed with MAPPING_ override file values.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("storage.default_provider", "default")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.api_prefix", "")
	v.SetDefault("reload.debounce", "200ms")
	v.SetDefault("reload.channel", "mapping:reload")
	v.SetDefault("log.level", "info")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("mapping")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("MAPPING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if len(config.Storage.Providers) == 0 {
		config.Storage.Providers = []ProviderConfig{{
			Name:    config.Storage.DefaultProvider,
			Dialect: "postgres",
			DSN:     os.Getenv("DATABASE_URL"),
		}}
	}
	if file := v.ConfigFileUsed(); file != "" {
		config.resolveDomainFiles(filepath.Dir(file))
	}

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// resolveDomainFiles makes relative domain file paths relative to the
// directory of the config file
func (c *Config) resolveDomainFiles(dir string) {
	for i, file := range c.Domain.Files {
		if !filepath.IsAbs(file) {
			c.Domain.Files[i] = filepath.Join(dir, file)
		}
	}
}

// Provider returns the provider configuration with the given name
func (c *Config) Provider(name string) (ProviderConfig, bool) {
	for _, p := range c.Storage.Providers {
		if p.Name == name {
			return p, true
		}
	}
	return ProviderConfig{}, false
}

// ProviderRegistry builds the storage provider registry
func (c *Config) ProviderRegistry() (*rdbms.ProviderRegistry, error) {
	definitions := make(map[string]*rdbms.ProviderDefinition, len(c.Storage.Providers))
	for _, p := range c.Storage.Providers {
		dialect, err := rdbms.ParseDialect(p.Dialect)
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", p.Name, err)
		}
		definitions[p.Name] = &rdbms.ProviderDefinition{Name: p.Name, Dialect: dialect}
	}

	defaultProvider, ok := definitions[c.Storage.DefaultProvider]
	if !ok {
		return nil, fmt.Errorf("default provider %s is not configured", c.Storage.DefaultProvider)
	}

	registry := rdbms.NewProviderRegistry(defaultProvider)
	for _, p := range c.Storage.Providers {
		if err := registry.Register(definitions[p.Name], p.StorageGroups...); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

// ValidationOptions returns the options of the standard validator
func (c *Config) ValidationOptions(logger *zap.Logger) validation.Options {
	return validation.Options{
		SkipSortExpressions: c.Validation.SkipSortExpressions,
		Logger:              logger,
	}
}

// NewLogger builds the zap logger described by the log section
func (c *Config) NewLogger() (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", c.Log.Level, err)
	}

	zapConfig := zap.NewProductionConfig()
	if c.Log.Development {
		zapConfig = zap.NewDevelopmentConfig()
	}
	zapConfig.Level = zap.NewAtomicLevelAt(level)
	return zapConfig.Build()
}

// Address returns host:port of the introspection server
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func validateConfig(cfg *Config) error {
	if cfg.Server.APIPrefix != "" {
		if !strings.HasPrefix(cfg.Server.APIPrefix, "/") {
			return fmt.Errorf("server.api_prefix must start with '/', got: %s", cfg.Server.APIPrefix)
		}
		if strings.HasSuffix(cfg.Server.APIPrefix, "/") {
			return fmt.Errorf("server.api_prefix must not end with '/', got: %s", cfg.Server.APIPrefix)
		}
	}
	if cfg.Server.TokenSecret != "" && len(cfg.Server.TokenSecret) < 16 {
		return fmt.Errorf("server.token_secret must be at least 16 characters")
	}
	if cfg.Reload.Debounce <= 0 {
		return fmt.Errorf("reload.debounce must be positive, got: %s", cfg.Reload.Debounce)
	}
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got: %d", cfg.Server.Port)
	}

	seen := make(map[string]bool, len(cfg.Storage.Providers))
	for i, p := range cfg.Storage.Providers {
		if p.Name == "" {
			return fmt.Errorf("storage.providers[%d] has no name", i)
		}
		if seen[p.Name] {
			return fmt.Errorf("storage provider %s is configured more than once", p.Name)
		}
		seen[p.Name] = true
		if _, err := rdbms.ParseDialect(p.Dialect); err != nil {
			return fmt.Errorf("storage provider %s: %w", p.Name, err)
		}
	}
	if !seen[cfg.Storage.DefaultProvider] {
		return fmt.Errorf("storage.default_provider %s is not configured", cfg.Storage.DefaultProvider)
	}

	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		return fmt.Errorf("log.level is invalid: %s", cfg.Log.Level)
	}

	return nil
}
