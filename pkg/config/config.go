// Package config provides configuration loading and management for mincslice.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/lumberjack"
	"gopkg.in/yaml.v3"

	"mincslice/pkg/blend"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Viewer parameters
	Viewer struct {
		// Axis is the default slicing axis: x, y or z
		Axis string `yaml:"axis"`

		// Zoom scales rendered slices beyond their physical size
		Zoom float64 `yaml:"zoom"`

		// ColorMap is a path to a colour map file. Empty means greyscale.
		ColorMap string `yaml:"colorMap"`

		// AutoRange uses the data range as the intensity window
		AutoRange bool `yaml:"autoRange"`

		// Min and Max fix the intensity window when AutoRange is off
		Min float64 `yaml:"min"`
		Max float64 `yaml:"max"`
	} `yaml:"viewer"`

	// Overlay parameters
	Overlay struct {
		// BlendRatios weights each overlaid volume. Empty means equal weights.
		BlendRatios []float64 `yaml:"blendRatios"`
	} `yaml:"overlay"`

	// Output parameters
	Output struct {
		// Format is the image format for slice sequences: png or jpg
		Format string `yaml:"format"`

		// Directory receives rendered slices
		Directory string `yaml:"directory"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`

	// Metrics parameters
	Metrics struct {
		// Textfile receives slice cache metrics in Prometheus text format
		// when a command finishes. Empty disables the export.
		Textfile string `yaml:"textfile"`
	} `yaml:"metrics"`

	Log LogConfig `yaml:"log"`
}

// LogConfig sends log output to a rotating file
type LogConfig struct {
	Logfile string `yaml:"logfile"`
	MaxSize int    `yaml:"maxLogSize"`
	MaxAge  int    `yaml:"maxLogAge"`
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// SetLogger redirects the standard logger to the configured rotating log
// file. Without a log file, output stays on stderr. The returned Closer
// closes the file.
func (c *LogConfig) SetLogger() io.Closer {
	if c == nil || c.Logfile == "" {
		return nopCloser{}
	}
	l := &lumberjack.Logger{
		Filename: c.Logfile,
		MaxSize:  c.MaxSize, // megabytes
		MaxAge:   c.MaxAge,  // days
	}
	log.SetOutput(l)
	return l
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Viewer.Axis = "z"
	cfg.Viewer.Zoom = 1.0
	cfg.Viewer.AutoRange = true
	cfg.Viewer.Min = 0
	cfg.Viewer.Max = 255

	cfg.Output.Format = "png"
	cfg.Output.Directory = "slices"
	cfg.Output.Verbose = true

	cfg.Log.MaxSize = 100
	cfg.Log.MaxAge = 30

	return cfg
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Viewer.Axis) {
	case "x", "y", "z", "xspace", "yspace", "zspace":
	default:
		return fmt.Errorf("invalid viewer axis %q", c.Viewer.Axis)
	}
	if c.Viewer.Zoom <= 0 {
		return fmt.Errorf("viewer zoom must be positive, got %v", c.Viewer.Zoom)
	}
	if !c.Viewer.AutoRange && c.Viewer.Max <= c.Viewer.Min {
		return fmt.Errorf("viewer max %v must exceed min %v", c.Viewer.Max, c.Viewer.Min)
	}
	if len(c.Overlay.BlendRatios) > 0 {
		if err := blend.ValidateAlphas(c.Overlay.BlendRatios); err != nil {
			return fmt.Errorf("overlay: %w", err)
		}
	}
	switch strings.ToLower(c.Output.Format) {
	case "png", "jpg", "jpeg":
	default:
		return fmt.Errorf("unsupported output format %q", c.Output.Format)
	}
	if c.Log.MaxSize < 0 || c.Log.MaxAge < 0 {
		return fmt.Errorf("log size and age must not be negative")
	}
	return nil
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	return SaveConfig(DefaultConfig(), configPath)
}
