// Package config provides configuration loading for the viewer core.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Loading parameters
	Loading struct {
		// DecodeWorkers is how many slice files decode concurrently
		DecodeWorkers int `yaml:"decodeWorkers"`
	} `yaml:"loading"`

	// Structure extraction tunables
	Structures struct {
		// GroupGapMM starts a new ROI group when consecutive contour
		// depths are further apart than this
		GroupGapMM float64 `yaml:"groupGapMM"`

		// DedupDepthTolMM collapses contours whose depths differ by
		// less than this when point counts match
		DedupDepthTolMM float64 `yaml:"dedupDepthTolMM"`

		// DuplicateRadiusMM collapses projected points closer than this
		DuplicateRadiusMM float64 `yaml:"duplicateRadiusMM"`
	} `yaml:"structures"`

	// Logging parameters
	Logging struct {
		// Level is DEBUG, INFO, WARN or ERROR
		Level string `yaml:"level"`

		// File, when set, adds a rotating JSON log sink
		File string `yaml:"file"`
	} `yaml:"logging"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.Loading.DecodeWorkers = runtime.NumCPU()
	cfg.Structures.GroupGapMM = 10.0
	cfg.Structures.DedupDepthTolMM = 0.01
	cfg.Structures.DuplicateRadiusMM = 1.0
	cfg.Logging.Level = "INFO"
	return cfg
}

// Load loads configuration from a YAML file. A missing file yields the
// default configuration.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.Loading.DecodeWorkers <= 0 {
		cfg.Loading.DecodeWorkers = runtime.NumCPU()
	}
	return cfg, nil
}
