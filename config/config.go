package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"
	"github.com/k1LoW/expand"
)

var (
	homePath       string
	configHomePath string
	dataHomePath   string
	stateHomePath  string
)

type Config struct {
	// Caption font size in pixels
	FontSize *float64 `yaml:"fontSize,omitempty" json:"fontSize,omitempty"`
	// Caption fill color (#rgb or #rrggbb)
	Color string `yaml:"color,omitempty" json:"color,omitempty"`
	// Whether to render into a fixed 512x512 sticker canvas
	Sticker *bool `yaml:"sticker,omitempty" json:"sticker,omitempty"`
	// Font families in priority order. A family may also be a path to a font file.
	Fonts []string `yaml:"fonts,omitempty" json:"fonts,omitempty"`
	// Additional directories searched for font files
	FontDirs []string `yaml:"fontDirs,omitempty" json:"fontDirs,omitempty"`
	// Directory exported images are written to
	OutputDir string `yaml:"outputDir,omitempty" json:"outputDir,omitempty"`
	// command that receives exported images on stdin instead of writing them to outputDir
	ExportCommand string `yaml:"exportCommand,omitempty" json:"exportCommand,omitempty"`
	// number of retries for exportCommand
	ExportRetries int `yaml:"exportRetries,omitempty" json:"exportRetries,omitempty"`
	// Conditions for default
	Defaults []DefaultCondition `yaml:"defaults,omitempty" json:"defaults,omitempty"`
}

// DefaultCondition overrides render settings when its condition matches the loaded image.
// The condition is a CEL expression over width, height, aspect and format.
type DefaultCondition struct {
	If       string   `yaml:"if" json:"if"`                                 // condition to check
	FontSize *float64 `yaml:"fontSize,omitempty" json:"fontSize,omitempty"` // font size to apply if condition is true
	Color    string   `yaml:"color,omitempty" json:"color,omitempty"`       // color to apply if condition is true
	Sticker  *bool    `yaml:"sticker,omitempty" json:"sticker,omitempty"`   // sticker mode to apply if condition is true
}

func init() {
	var err error
	homePath, err = os.UserHomeDir()
	if err != nil {
		panic(fmt.Sprintf("failed to get home directory: %v", err))
	}
}

// Load loads the configuration from the config file.
// It searches for config files in the following order:
// 1. $XDG_CONFIG_HOME/meme/config-{profile}.yml
// 2. $XDG_CONFIG_HOME/meme/config.yml
// If no config file is found, it returns an empty Config struct.
// Environment variables in the file are expanded.
func Load(profile string) (*Config, error) {
	var configBasePaths []string
	if profile != "" {
		configBasePaths = append(configBasePaths, filepath.Join(configPath(), fmt.Sprintf("config-%s", profile)))
	}
	configBasePaths = append(configBasePaths, filepath.Join(configPath(), "config"))
	cfg := &Config{}
	for _, basePath := range configBasePaths {
		for _, ext := range []string{".yml", ".yaml"} {
			configPath := basePath + ext
			if b, err := os.ReadFile(configPath); err == nil {
				if err := yaml.Unmarshal(expand.ExpandenvYAMLBytes(b), cfg); err != nil {
					return nil, fmt.Errorf("failed to unmarshal config: %w", err)
				}
				return cfg, nil
			}
		}
	}
	return cfg, nil
}

// configPath returns the path to the configuration directory.
func configPath() string {
	if configHomePath != "" {
		return configHomePath
	}
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		configHomePath = filepath.Join(v, "meme")
	} else {
		configHomePath = filepath.Join(homePath, ".config", "meme")
	}
	return configHomePath
}

// ConfigHomePath returns the path to the configuration directory.
func ConfigHomePath() string {
	return configPath()
}

// DataHomePath returns the path to the data home directory.
// Fonts placed under $XDG_DATA_HOME/meme/fonts are always searched.
func DataHomePath() string {
	if dataHomePath != "" {
		return dataHomePath
	}
	if v := os.Getenv("XDG_DATA_HOME"); v != "" {
		dataHomePath = filepath.Join(v, "meme")
	} else {
		dataHomePath = filepath.Join(homePath, ".local", "share", "meme")
	}
	return dataHomePath
}

func StateHomePath() string {
	if stateHomePath != "" {
		return stateHomePath
	}
	if v := os.Getenv("XDG_STATE_HOME"); v != "" {
		stateHomePath = filepath.Join(v, "meme")
	} else {
		stateHomePath = filepath.Join(homePath, ".local", "state", "meme")
	}
	return stateHomePath
}
