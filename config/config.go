// Package config loads the fsindex configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/mwantia/fsindex/store"
)

var ErrNoStore = errors.New("config: no store configured")

type Config struct {
	Root    string        `yaml:"root"`
	Store   StoreConfig   `yaml:"store"`
	Log     LogConfig     `yaml:"log"`
	Watch   WatchConfig   `yaml:"watch"`
	Metrics MetricsConfig `yaml:"metrics"`
	Export  ExportConfig  `yaml:"export"`
}

// StoreConfig selects the relational store. Address takes precedence over
// the individual connection settings.
type StoreConfig struct {
	Address  string `yaml:"address"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	Schema   string `yaml:"schema"`
	Table    string `yaml:"table"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	JSON       bool   `yaml:"json"`
	NoColor    bool   `yaml:"no_color"`
	NoTerminal bool   `yaml:"no_terminal"`
}

type WatchConfig struct {
	PairWindow   time.Duration `yaml:"pair_window"`
	DeletePolicy string        `yaml:"delete_policy"`
}

type MetricsConfig struct {
	Address string `yaml:"address"`
}

type ExportConfig struct {
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	Bucket    string `yaml:"bucket"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl"`
}

func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Port:  store.DefaultPostgresPort,
			Table: store.DefaultTableName,
		},
		Log: LogConfig{
			Level: "info",
		},
		Watch: WatchConfig{
			PairWindow:   50 * time.Millisecond,
			DeletePolicy: "always",
		},
	}
}

// Load reads path on top of the defaults. An empty path returns the
// defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(content, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config '%s': %w", path, err)
	}

	return cfg, nil
}

// ConnString returns the store address, building a postgres URL from the
// individual settings when no address is set.
func (s StoreConfig) ConnString() (string, error) {
	if s.Address != "" {
		return s.Address, nil
	}
	if s.Host == "" || s.Database == "" {
		return "", ErrNoStore
	}

	return store.PostgresConnString(s.Host, s.Port, s.User, s.Password, s.Database), nil
}

// TableRef returns the validated table the index lives in.
func (s StoreConfig) TableRef() (store.Table, error) {
	return store.NewTable(s.Schema, s.Table)
}
