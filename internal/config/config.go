package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// Config holds the inference service settings read from the environment.
type Config struct {
	Port           string
	ModelPath      string
	MetadataPath   string
	RuntimeLibrary string
	GinMode        string
	LogLevel       logrus.Level
	LogPredictions bool
}

// ProjectRoot returns the directory that holds models/ and data/. When a
// binary is started from cmd/<name> it walks up two levels.
func ProjectRoot() (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get working directory: %w", err)
	}
	if filepath.Base(filepath.Dir(wd)) == "cmd" {
		wd = filepath.Join(wd, "../..")
	}
	return filepath.Clean(wd), nil
}

// Load builds a Config from environment variables, falling back to defaults
// rooted at ProjectRoot.
func Load() (*Config, error) {
	root, err := ProjectRoot()
	if err != nil {
		return nil, err
	}
	return FromLookup(root, os.LookupEnv)
}

// FromLookup builds a Config using lookup for variable access.
func FromLookup(root string, lookup func(string) (string, bool)) (*Config, error) {
	get := func(key, def string) string {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return def
	}

	cfg := &Config{
		Port:           get("PORT", "5000"),
		ModelPath:      get("MODEL_PATH", filepath.Join(root, "models", "model.onnx")),
		MetadataPath:   get("METADATA_PATH", filepath.Join(root, "models", "model_metadata.json")),
		RuntimeLibrary: get("ONNXRUNTIME_LIB", ""),
		GinMode:        get("GIN_MODE", "release"),
	}

	if _, err := strconv.ParseUint(cfg.Port, 10, 16); err != nil {
		return nil, fmt.Errorf("invalid PORT %q: %w", cfg.Port, err)
	}

	level, err := logrus.ParseLevel(get("LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	cfg.LogLevel = level

	if v := get("LOG_PREDICTIONS", ""); v != "" {
		cfg.LogPredictions, err = strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid LOG_PREDICTIONS %q: %w", v, err)
		}
	}

	return cfg, nil
}

// Addr is the listen address on all interfaces.
func (c *Config) Addr() string {
	return ":" + c.Port
}
