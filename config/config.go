// Copyright (c) 2024-2025 Darcy Buskermolen <darcy@dbitech.ca>
// SPDX-License-Identifier: BSD-3-Clause

package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage drivers accepted in storage.driver
const (
	DriverMemory   = "memory"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

type Config struct {
	Server struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"server"`

	Backend struct {
		BaseURL string        `yaml:"base_url"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"backend"`

	Cache struct {
		Capacity      int            `yaml:"capacity"`
		DefaultTTL    time.Duration  `yaml:"default_ttl"`
		SafetyMargin  *time.Duration `yaml:"safety_margin"` // nil means 5m, 0 disables
		SweepInterval time.Duration  `yaml:"sweep_interval"`
	} `yaml:"cache"`

	Storage struct {
		Driver string `yaml:"driver"` // memory, redis or postgres
		Redis  struct {
			Host      string `yaml:"host"`
			Port      int    `yaml:"port"`
			DB        int    `yaml:"db"`
			Password  string `yaml:"password"`
			KeyPrefix string `yaml:"key_prefix"`
			KeyTTL    int    `yaml:"key_ttl"` // TTL in seconds, 0 keeps keys forever
		} `yaml:"redis"`
		Postgres struct {
			Host     string `yaml:"host"`
			Port     int    `yaml:"port"`
			User     string `yaml:"user"`
			Password string `yaml:"password"`
			DBName   string `yaml:"dbname"`
			Table    string `yaml:"table"`
		} `yaml:"postgres"`
	} `yaml:"storage"`

	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`

	Log struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"log"`
}

func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	config := &Config{}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	config.SetDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// SetDefaults fills every unset field with the value the client ships with.
func (c *Config) SetDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8081
	}
	if c.Server.Host == "" {
		c.Server.Host = "localhost"
	}
	if c.Backend.BaseURL == "" {
		c.Backend.BaseURL = "http://localhost:8080"
	}
	if c.Backend.Timeout == 0 {
		c.Backend.Timeout = 10 * time.Second
	}
	if c.Cache.Capacity == 0 {
		c.Cache.Capacity = 50
	}
	if c.Cache.DefaultTTL == 0 {
		c.Cache.DefaultTTL = 30 * time.Minute
	}
	if c.Cache.SafetyMargin == nil {
		margin := 5 * time.Minute
		c.Cache.SafetyMargin = &margin
	}
	if c.Cache.SweepInterval == 0 {
		c.Cache.SweepInterval = 5 * time.Minute
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = DriverMemory
	}
	if c.Storage.Redis.Port == 0 {
		c.Storage.Redis.Port = 6379
	}
	if c.Storage.Redis.KeyPrefix == "" {
		c.Storage.Redis.KeyPrefix = "skillswap:session:"
	}
	if c.Storage.Postgres.Port == 0 {
		c.Storage.Postgres.Port = 5432
	}
	if c.Storage.Postgres.Table == "" {
		c.Storage.Postgres.Table = "client_storage"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverMemory, DriverRedis, DriverPostgres:
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Cache.Capacity < 0 {
		return fmt.Errorf("cache capacity must not be negative, got %d", c.Cache.Capacity)
	}
	if (c.Cache.SafetyMargin != nil && *c.Cache.SafetyMargin < 0) || c.Cache.DefaultTTL < 0 {
		return fmt.Errorf("cache durations must not be negative")
	}
	return nil
}
