// Package config provides configuration loading and management for the
// TAVI planning engine. It handles loading configuration from YAML files
// and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Config represents the engine configuration loaded from YAML
type Config struct {
	// Reformation parameters
	Reformation struct {
		// WidthMm is the default lateral extent of reformatted images in mm
		WidthMm float64 `yaml:"widthMm"`

		// RotationDeg is the default frame rotation about the tangent in degrees
		RotationDeg float64 `yaml:"rotationDeg"`

		// Projection selects the default slab projection: none, average, max, min
		Projection string `yaml:"projection"`

		// SlabThicknessMm is the default slab thickness in mm
		SlabThicknessMm float64 `yaml:"slabThicknessMm"`

		// SlabSamples is the default number of samples across the slab
		SlabSamples int `yaml:"slabSamples"`

		// Layout selects the default column layout: stretched or straightened
		Layout string `yaml:"layout"`

		// LateralSpacingMm is the mm covered by one pixel
		LateralSpacingMm float64 `yaml:"lateralSpacingMm"`

		// Workers is the number of goroutines rendering columns
		Workers int `yaml:"workers"`

		// CacheTTLSeconds is how long rendered images stay cached
		CacheTTLSeconds int `yaml:"cacheTtlSeconds"`
	} `yaml:"reformation"`

	// Centerline parameters
	Centerline struct {
		// SampleCount is the number of samples in built centerlines
		SampleCount int `yaml:"sampleCount"`
	} `yaml:"centerline"`

	// Logging parameters
	Logging struct {
		// Development switches to the human-readable console format
		Development bool `yaml:"development"`

		// FilePath, when set, adds a rotating JSON log file
		FilePath string `yaml:"filePath"`
	} `yaml:"logging"`

	// Workflow parameters
	Workflow struct {
		// DefinitionPath points at the step-list YAML; empty uses the
		// built-in TAVI sequence
		DefinitionPath string `yaml:"definitionPath"`
	} `yaml:"workflow"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Set default reformation parameters
	cfg.Reformation.WidthMm = 40
	cfg.Reformation.RotationDeg = 0
	cfg.Reformation.Projection = "none"
	cfg.Reformation.SlabThicknessMm = 2
	cfg.Reformation.SlabSamples = 5
	cfg.Reformation.Layout = "straightened"
	cfg.Reformation.LateralSpacingMm = 0.5
	cfg.Reformation.Workers = runtime.NumCPU()
	cfg.Reformation.CacheTTLSeconds = 120

	// Set default centerline parameters
	cfg.Centerline.SampleCount = 64

	// Set default logging parameters
	cfg.Logging.Development = true
	cfg.Logging.FilePath = ""

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	// Marshal config to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	// Write to file
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
