package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

var v *viper.Viper

func init() {
	v = viper.New()

	// Set default values
	v.SetDefault("listen.addr", ":8080")
	v.SetDefault("mux.doctype", "webm")
	v.SetDefault("mux.min_cluster_duration", "1s")
	v.SetDefault("mux.writing_app", "")

	// Set default mkvmux home directory
	v.SetDefault("mkvmux.home", filepath.Join(xdg.Home, ".mkvmux"))

	// Preset file path is resolved from mkvmux.home when not set explicitly
	v.SetDefault("preset.path", "")

	// Environment variables
	v.AutomaticEnv()
	v.BindEnv("listen.addr", "MKVMUX_LISTEN_ADDR")
	v.BindEnv("mux.doctype", "MKVMUX_DOCTYPE")
	v.BindEnv("mux.min_cluster_duration", "MKVMUX_MIN_CLUSTER_DURATION")
	v.BindEnv("mux.writing_app", "MKVMUX_WRITING_APP")
	v.BindEnv("mkvmux.home", "MKVMUX_HOME")
	v.BindEnv("preset.path", "MKVMUX_PRESET_PATH")

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// Look for config in the following paths
	configPaths := []string{
		".",
		"$HOME/.mkvmux",
		"/etc/mkvmux",
	}

	for _, path := range configPaths {
		expandedPath := os.ExpandEnv(path)
		v.AddConfigPath(expandedPath)
	}

	// Read config file if it exists
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// Config file was found but another error was produced
			panic(fmt.Sprintf("Fatal error reading config file: %s", err))
		}
		// Config file not found; ignore error and use defaults
	}
}

// GetListenAddr returns the streaming server listen address
func GetListenAddr() string {
	return v.GetString("listen.addr")
}

// GetDocType returns the default output doctype ("webm" or "matroska")
func GetDocType() string {
	return v.GetString("mux.doctype")
}

// GetMinClusterDuration returns the minimum cluster duration
func GetMinClusterDuration() time.Duration {
	return v.GetDuration("mux.min_cluster_duration")
}

// GetWritingApp returns the WritingApp override, empty for the built-in default
func GetWritingApp() string {
	return v.GetString("mux.writing_app")
}

// GetMkvmuxHome returns the mkvmux home directory
func GetMkvmuxHome() string {
	return v.GetString("mkvmux.home")
}

// GetPresetPath returns the preset file path
func GetPresetPath() string {
	// If preset.path is explicitly set, use it
	if presetPath := v.GetString("preset.path"); presetPath != "" {
		return presetPath
	}

	// Otherwise, use mkvmux.home + "/presets.toml"
	return filepath.Join(GetMkvmuxHome(), "presets.toml")
}
