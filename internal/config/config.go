// Package config holds the static service configuration loaded at startup
// plus the live key/value store wrapper used for runtime tunables.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the static service configuration.
type Config struct {
	// HTTPAddr is the listen address of the API server.
	HTTPAddr string `yaml:"http_addr"`

	// DatabasePath is the sqlite database file.
	DatabasePath string `yaml:"database_path"`

	// BrokerNotifyURL is the broker's outbound notification endpoint.
	BrokerNotifyURL string `yaml:"broker_notify_url"`

	// BrokerStreamURL is the broker's inbound event stream endpoint.
	BrokerStreamURL string `yaml:"broker_stream_url"`

	// JWTSecret signs API tokens.
	JWTSecret string `yaml:"jwt_secret"`

	// EventLogCapacity bounds the in-memory event log. Default 500.
	EventLogCapacity int `yaml:"event_log_capacity"`

	// OutboxCapacity bounds the outbound broker queue. Default 1024.
	OutboxCapacity int `yaml:"outbox_capacity"`

	// LogLevel is the zerolog level name ("debug", "info", ...).
	LogLevel string `yaml:"log_level"`

	// Roles maps user ids to their role tags. Role assignments live in the
	// main backend; this service receives a static projection of them.
	Roles map[string][]string `yaml:"roles"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		HTTPAddr:         ":8080",
		DatabasePath:     "comanda.db",
		BrokerNotifyURL:  "http://127.0.0.1:9100/notify",
		BrokerStreamURL:  "http://127.0.0.1:9100/stream",
		EventLogCapacity: 500,
		OutboxCapacity:   1024,
		LogLevel:         "info",
	}
}

// FromFile loads a YAML configuration file over the defaults.
func FromFile(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration for obviously unusable values.
func (c Config) Validate() error {
	if c.HTTPAddr == "" {
		return fmt.Errorf("http_addr cannot be empty")
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("database_path cannot be empty")
	}
	if c.BrokerNotifyURL == "" || c.BrokerStreamURL == "" {
		return fmt.Errorf("broker endpoints cannot be empty")
	}
	return nil
}
