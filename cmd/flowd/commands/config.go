package commands

import (
	"os"
	"path/filepath"
)

// CLIConfig contains the configuration shared by all commands. Values are
// read from the flags and from an optional flowd.toml file in the home
// directory.
type CLIConfig struct {
	Home     string   `mapstructure:"home"`
	LogLevel string   `mapstructure:"log-level"`
	As       []string `mapstructure:"as"`
	Time     string   `mapstructure:"time"`
	Listen   string   `mapstructure:"listen"`
}

// NewDefaultCLIConfig creates a CLIConfig with default values
func NewDefaultCLIConfig() *CLIConfig {
	return &CLIConfig{
		Home:     DefaultHome(),
		LogLevel: "info",
		Listen:   "127.0.0.1:9090",
	}
}

// DefaultHome returns the directory used when --home is not given.
func DefaultHome() string {
	return filepath.Join(os.ExpandEnv("$HOME"), ".flowd")
}
