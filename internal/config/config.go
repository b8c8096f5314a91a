// Package config loads msgboxctl configuration from a YAML file and
// MSGBOX_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment overrides, e.g. MSGBOX_STORE_DRIVER.
const EnvPrefix = "MSGBOX"

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

// Config is the effective msgboxctl configuration.
type Config struct {
	Store   StoreConfig   `mapstructure:"store" yaml:"store"`
	Redis   RedisConfig   `mapstructure:"redis" yaml:"redis"`
	Service ServiceConfig `mapstructure:"service" yaml:"service"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
}

// StoreConfig selects and configures the backend.
type StoreConfig struct {
	Driver   string         `mapstructure:"driver" yaml:"driver"`
	Postgres PostgresConfig `mapstructure:"postgres" yaml:"postgres"`
	Mongo    MongoConfig    `mapstructure:"mongo" yaml:"mongo"`
}

type PostgresConfig struct {
	DSN           string        `mapstructure:"dsn" yaml:"dsn"`
	MessagesTable string        `mapstructure:"messages_table" yaml:"messages_table"`
	StatesTable   string        `mapstructure:"states_table" yaml:"states_table"`
	Timeout       time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type MongoConfig struct {
	URI                string        `mapstructure:"uri" yaml:"uri"`
	Database           string        `mapstructure:"database" yaml:"database"`
	MessagesCollection string        `mapstructure:"messages_collection" yaml:"messages_collection"`
	StatesCollection   string        `mapstructure:"states_collection" yaml:"states_collection"`
	Timeout            time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// RedisConfig enables the counts cache and the redis event transport.
// Both are off when Addr is empty.
type RedisConfig struct {
	Addr        string        `mapstructure:"addr" yaml:"addr"`
	Password    string        `mapstructure:"password" yaml:"password,omitempty"`
	DB          int           `mapstructure:"db" yaml:"db"`
	CacheCounts bool          `mapstructure:"cache_counts" yaml:"cache_counts"`
	CachePrefix string        `mapstructure:"cache_prefix" yaml:"cache_prefix"`
	CacheTTL    time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`
	Events      bool          `mapstructure:"events" yaml:"events"`
}

type ServiceConfig struct {
	Name                string        `mapstructure:"name" yaml:"name"`
	AtomicCreate        bool          `mapstructure:"atomic_create" yaml:"atomic_create"`
	MaxBodySize         int           `mapstructure:"max_body_size" yaml:"max_body_size"`
	MaxQueryLimit       int           `mapstructure:"max_query_limit" yaml:"max_query_limit"`
	NotificationTimeout time.Duration `mapstructure:"notification_timeout" yaml:"notification_timeout"`
	OTel                bool          `mapstructure:"otel" yaml:"otel"`
}

// LogConfig configures the slog handler. Format is text or json.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.driver", DriverMemory)
	v.SetDefault("store.postgres.messages_table", "messages")
	v.SetDefault("store.postgres.states_table", "message_states")
	v.SetDefault("store.postgres.timeout", "10s")
	v.SetDefault("store.mongo.database", "msgbox")
	v.SetDefault("store.mongo.messages_collection", "messages")
	v.SetDefault("store.mongo.states_collection", "message_states")
	v.SetDefault("store.mongo.timeout", "10s")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.cache_counts", true)
	v.SetDefault("redis.cache_prefix", "msgbox")
	v.SetDefault("redis.cache_ttl", "5m")
	v.SetDefault("redis.events", false)
	v.SetDefault("service.name", "msgbox")
	v.SetDefault("service.atomic_create", true)
	v.SetDefault("service.max_body_size", 64*1024)
	v.SetDefault("service.max_query_limit", 100)
	v.SetDefault("service.notification_timeout", "10s")
	v.SetDefault("service.otel", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads the config file at path, or msgbox.yaml from the working
// directory when path is empty, then applies environment overrides.
// A missing default file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("msgbox")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks driver-specific requirements.
func (c *Config) Validate() error {
	var errs []error
	switch c.Store.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.Store.Postgres.DSN == "" {
			errs = append(errs, errors.New("store.postgres.dsn is required for the postgres driver"))
		}
	case DriverMongo:
		if c.Store.Mongo.URI == "" {
			errs = append(errs, errors.New("store.mongo.uri is required for the mongo driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store.driver %q", c.Store.Driver))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log.format %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

// Dump writes the effective configuration as YAML. The redis password is masked.
func (c *Config) Dump(w io.Writer) error {
	out := *c
	if out.Redis.Password != "" {
		out.Redis.Password = "****"
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&out); err != nil {
		return err
	}
	return enc.Close()
}

// NewLogger builds the slog logger described by c, writing to stderr.
func (c LogConfig) NewLogger() *slog.Logger {
	return c.newLogger(os.Stderr)
}

func (c LogConfig) newLogger(w io.Writer) *slog.Logger {
	lvl := slog.LevelInfo
	switch strings.ToLower(c.Level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.ToLower(c.Format) == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
