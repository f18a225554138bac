// Copyright (c) 2025, the flowdeck contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the main configuration structure
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Cache    CacheConfig    `toml:"cache"`
	Database DatabaseConfig `toml:"database"`
	N8N      N8NConfig      `toml:"n8n"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	ListenAddr string `toml:"listen_addr" env:"FLOWDECK__LISTEN_ADDR"`
}

// CacheConfig holds cache-related configuration
type CacheConfig struct {
	Type  string      `toml:"type" env:"CACHE_TYPE"`
	Redis RedisConfig `toml:"redis"`
}

// RedisConfig holds Redis-specific configuration
type RedisConfig struct {
	Host string `toml:"host" env:"REDIS_HOST"`
	Port int    `toml:"port" env:"REDIS_PORT"`
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Type     string `toml:"type" env:"FLOWDECK__DB_TYPE"`
	Path     string `toml:"path" env:"FLOWDECK__DB_PATH"`
	Host     string `toml:"host" env:"FLOWDECK__DB_HOST"`
	Port     int    `toml:"port" env:"FLOWDECK__DB_PORT"`
	User     string `toml:"user" env:"FLOWDECK__DB_USER"`
	Password string `toml:"password" env:"FLOWDECK__DB_PASSWORD"`
	Name     string `toml:"name" env:"FLOWDECK__DB_NAME"`
}

// N8NConfig holds defaults for talking to registered n8n instances
type N8NConfig struct {
	HealthPath     string `toml:"health_path" env:"FLOWDECK__N8N_HEALTH_PATH"`
	TimeoutSeconds int    `toml:"timeout_seconds" env:"FLOWDECK__N8N_TIMEOUT"`
}

// LoadConfig loads the configuration from a TOML file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	config := &Config{}
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("error decoding config file: %w", err)
	}

	if err := LoadEnvOverrides(config); err != nil {
		return nil, fmt.Errorf("error loading environment variables: %w", err)
	}

	return config, nil
}

// HasRequiredEnvVars reports whether the server can be configured from
// the environment alone, without a config file.
func HasRequiredEnvVars() bool {
	return os.Getenv("FLOWDECK__LISTEN_ADDR") != ""
}

// LoadEnvOverrides checks for environment variables and overrides config values
func LoadEnvOverrides(config *Config) error {
	// Server
	if env := os.Getenv("FLOWDECK__LISTEN_ADDR"); env != "" {
		config.Server.ListenAddr = env
	}

	// Cache
	if env := os.Getenv("CACHE_TYPE"); env != "" {
		config.Cache.Type = env
	}
	if env := os.Getenv("REDIS_HOST"); env != "" {
		config.Cache.Redis.Host = env
	}
	if env := os.Getenv("REDIS_PORT"); env != "" {
		if port, err := strconv.Atoi(env); err == nil {
			config.Cache.Redis.Port = port
		}
	}

	// Database
	if env := os.Getenv("FLOWDECK__DB_TYPE"); env != "" {
		config.Database.Type = env
	}
	if env := os.Getenv("FLOWDECK__DB_PATH"); env != "" {
		config.Database.Path = env
	}
	if env := os.Getenv("FLOWDECK__DB_HOST"); env != "" {
		config.Database.Host = env
	}
	if env := os.Getenv("FLOWDECK__DB_PORT"); env != "" {
		if port, err := strconv.Atoi(env); err == nil {
			config.Database.Port = port
		}
	}
	if env := os.Getenv("FLOWDECK__DB_USER"); env != "" {
		config.Database.User = env
	}
	if env := os.Getenv("FLOWDECK__DB_PASSWORD"); env != "" {
		config.Database.Password = env
	}
	if env := os.Getenv("FLOWDECK__DB_NAME"); env != "" {
		config.Database.Name = env
	}

	// n8n client
	if env := os.Getenv("FLOWDECK__N8N_HEALTH_PATH"); env != "" {
		config.N8N.HealthPath = env
	}
	if env := os.Getenv("FLOWDECK__N8N_TIMEOUT"); env != "" {
		if secs, err := strconv.Atoi(env); err == nil {
			config.N8N.TimeoutSeconds = secs
		}
	}

	return nil
}
