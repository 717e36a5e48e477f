package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Log struct {
		Level      string `yaml:"level"`
		File       string `yaml:"file"`
		MaxSize    int    `yaml:"max_size"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAge     int    `yaml:"max_age"`
		Compress   bool   `yaml:"compress"`
	} `yaml:"log"`
	Database struct {
		Driver string `yaml:"driver"` // postgres or sqlite
		URL    string `yaml:"url"`
		// ReplicaURL serves rating reads; falls back to URL.
		ReplicaURL string `yaml:"replica_url"`
	} `yaml:"database"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Catalog struct {
		TTL string `yaml:"ttl"`
	} `yaml:"catalog"`
	Rating struct {
		CacheTTL string `yaml:"cache_ttl"`
	} `yaml:"rating"`
	Session struct {
		PausePenalty string `yaml:"pause_penalty"`
		BindBatch    int    `yaml:"bind_batch"`
	} `yaml:"session"`
}

// Load reads YAML config from path.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Driver returns the configured SQL driver, defaulting to postgres.
func (c Config) Driver() string {
	if c.Database.Driver == "" {
		return "postgres"
	}
	return c.Database.Driver
}

// ReplicaURL returns the database used for rating reads.
func (c Config) ReplicaURL() string {
	if c.Database.ReplicaURL != "" {
		return c.Database.ReplicaURL
	}
	return c.Database.URL
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
