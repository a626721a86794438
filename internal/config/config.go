// Package config loads service settings from an optional YAML file, a .env
// file and the process environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"

	FeedMemory = "memory"
	FeedNATS   = "nats"
	FeedRedis  = "redis"
)

type Config struct {
	Server   ServerConfig `yaml:"server"`
	Store    StoreConfig  `yaml:"store"`
	Feed     FeedConfig   `yaml:"feed"`
	LogLevel string       `yaml:"log_level"`
	SeedDemo bool         `yaml:"seed_demo"`
}

type ServerConfig struct {
	Port            string        `yaml:"port"`
	CORSOrigins     []string      `yaml:"cors_origins"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type StoreConfig struct {
	Driver      string `yaml:"driver"`
	DatabaseURL string `yaml:"database_url"`
}

type FeedConfig struct {
	Driver           string `yaml:"driver"`
	NATSURL          string `yaml:"nats_url"`
	RedisAddr        string `yaml:"redis_addr"`
	RedisPassword    string `yaml:"redis_password"`
	RedisDB          int    `yaml:"redis_db"`
	SubscriberBuffer int    `yaml:"subscriber_buffer"`
}

// Default returns settings for a single in-memory instance
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:            "8080",
			CORSOrigins:     []string{"*"},
			ShutdownTimeout: 10 * time.Second,
		},
		Store: StoreConfig{Driver: StoreMemory},
		Feed: FeedConfig{
			Driver:           FeedMemory,
			NATSURL:          "nats://localhost:4222",
			RedisAddr:        "localhost:6379",
			SubscriberBuffer: 64,
		},
		LogLevel: "info",
	}
}

// Load reads .env (if present), then the YAML file at path (if path is not
// empty), then environment overrides. The result is validated.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("config: load .env: %w", err)
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: failed to parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.Server.Port = getEnv("PORT", c.Server.Port)
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		c.Server.CORSOrigins = splitList(origins)
	}
	c.Store.Driver = getEnv("STORE_DRIVER", c.Store.Driver)
	c.Store.DatabaseURL = getEnv("DATABASE_URL", c.Store.DatabaseURL)
	c.Feed.Driver = getEnv("FEED_DRIVER", c.Feed.Driver)
	c.Feed.NATSURL = getEnv("NATS_URL", c.Feed.NATSURL)
	c.Feed.RedisAddr = getEnv("REDIS_ADDR", c.Feed.RedisAddr)
	c.Feed.RedisPassword = getEnv("REDIS_PASSWORD", c.Feed.RedisPassword)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)

	if v := os.Getenv("REDIS_DB"); v != "" {
		db, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: REDIS_DB must be an integer: %w", err)
		}
		c.Feed.RedisDB = db
	}
	if v := os.Getenv("SEED_DEMO"); v != "" {
		seed, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: SEED_DEMO must be a boolean: %w", err)
		}
		c.SeedDemo = seed
	}
	return nil
}

// Validate rejects unknown drivers and missing connection settings
func (c Config) Validate() error {
	switch c.Store.Driver {
	case StoreMemory:
	case StorePostgres:
		if c.Store.DatabaseURL == "" {
			return errors.New("config: DATABASE_URL is required for the postgres store")
		}
	default:
		return fmt.Errorf("config: unknown store driver %q", c.Store.Driver)
	}

	switch c.Feed.Driver {
	case FeedMemory:
	case FeedNATS:
		if c.Feed.NATSURL == "" {
			return errors.New("config: NATS_URL is required for the nats feed")
		}
	case FeedRedis:
		if c.Feed.RedisAddr == "" {
			return errors.New("config: REDIS_ADDR is required for the redis feed")
		}
	default:
		return fmt.Errorf("config: unknown feed driver %q", c.Feed.Driver)
	}

	if c.Server.Port == "" {
		return errors.New("config: port is required")
	}
	return nil
}

// Addr is the listen address for the HTTP server
func (c Config) Addr() string {
	return ":" + strings.TrimPrefix(c.Server.Port, ":")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
