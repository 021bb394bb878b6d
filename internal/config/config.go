package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

const (
	appName        = "dong"
	configFileName = "config.yaml"
	logFileName    = "dong.log"
	dbFileName     = "dong.db"
)

// Config is the application config file. Timer defaults live in the store.
type Config struct {
	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`
	DBPath   string `yaml:"db_path"`
	Listen   string `yaml:"listen"` // headless HTTP address, empty disables it
}

func Default() Config {
	return Config{LogLevel: "info"}
}

// Dir returns <user config dir>/dong.
func Dir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve user config dir: %w", err)
	}
	return filepath.Join(configDir, appName), nil
}

func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}

// Load reads the config file at path. If the file does not exist, defaults
// are returned.
func Load(path string) (Config, error) {
	cfg := Default()

	rawData, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config file: %w", err)
	}

	var fileData Config
	if err := yaml.Unmarshal(rawData, &fileData); err != nil {
		return cfg, fmt.Errorf("parse config yaml: %w", err)
	}

	apply(&cfg, fileData)
	if err := cfg.Validate(); err != nil {
		return Default(), err
	}
	return cfg, nil
}

// Save writes cfg to path, creating the directory if needed.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	serialized, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config yaml: %w", err)
	}

	if err := os.WriteFile(path, serialized, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

func (c Config) Validate() error {
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level %q: %w", c.LogLevel, err)
	}
	if c.Listen != "" {
		if _, _, err := net.SplitHostPort(c.Listen); err != nil {
			return fmt.Errorf("listen %q: %w", c.Listen, err)
		}
	}
	return nil
}

// WithPaths fills empty file locations with paths under dir.
func (c Config) WithPaths(dir string) Config {
	if c.LogFile == "" {
		c.LogFile = filepath.Join(dir, logFileName)
	}
	if c.DBPath == "" {
		c.DBPath = filepath.Join(dir, dbFileName)
	}
	return c
}

func apply(cfg *Config, fileData Config) {
	if fileData.LogLevel != "" {
		cfg.LogLevel = fileData.LogLevel
	}
	if fileData.LogFile != "" {
		cfg.LogFile = fileData.LogFile
	}
	if fileData.DBPath != "" {
		cfg.DBPath = fileData.DBPath
	}
	cfg.Listen = fileData.Listen
}
