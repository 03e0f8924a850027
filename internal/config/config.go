// Package config loads and validates configuration for the compositor and
// the WCL host from a viper-backed file/env layer.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/viper"

	"github.com/citc-os/workstation/internal/logging"
)

var log = logging.L("config")

// CompositorConfig configures the display server (cmd/citc-compositor).
type CompositorConfig struct {
	SocketPath     string `mapstructure:"socket_path"`
	ScreenWidth    int    `mapstructure:"screen_width"`
	ScreenHeight   int    `mapstructure:"screen_height"`
	TitlebarHeight int    `mapstructure:"titlebar_height"`
	MinWindowW     int    `mapstructure:"min_window_w"`
	MinWindowH     int    `mapstructure:"min_window_h"`
	MaxClients     int    `mapstructure:"max_clients"`
	MaxSurfaces    int    `mapstructure:"max_surfaces"`
	FramebufferDev string `mapstructure:"framebuffer_device"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
	LogFile   string `mapstructure:"log_file"`

	AudioSocketPath string `mapstructure:"audio_socket_path"`
}

// WCLConfig configures the Windows-compatibility host (cmd/wcl-run).
type WCLConfig struct {
	DisplaySocketPath string `mapstructure:"display_socket_path"`
	AudioSocketPath   string `mapstructure:"audio_socket_path"`
	AllowUnresolved   bool   `mapstructure:"allow_unresolved_imports"`
	HeadlessFallback  bool   `mapstructure:"headless_fallback"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

// DefaultCompositor returns the compositor's default configuration.
func DefaultCompositor() *CompositorConfig {
	return &CompositorConfig{
		SocketPath:     "/tmp/citc-display-0",
		ScreenWidth:    1280,
		ScreenHeight:   800,
		TitlebarHeight: 24,
		MinWindowW:     120,
		MinWindowH:     60,
		MaxClients:     64,
		MaxSurfaces:    128,
		FramebufferDev: "/dev/fb0",
		LogLevel:       "info",
		LogFormat:      "text",
		AudioSocketPath: "/tmp/citc-audio-0",
	}
}

// DefaultWCL returns the WCL host's default configuration.
func DefaultWCL() *WCLConfig {
	return &WCLConfig{
		DisplaySocketPath: "/tmp/citc-display-0",
		AudioSocketPath:   "/tmp/citc-audio-0",
		AllowUnresolved:   false,
		HeadlessFallback:  true,
		LogLevel:          "info",
		LogFormat:         "text",
	}
}

// LoadCompositor reads a compositor config file (if present), overlays
// CITC_-prefixed environment variables, and validates the result.
func LoadCompositor(cfgFile string) (*CompositorConfig, error) {
	v := newViper("compositor", cfgFile)

	cfg := DefaultCompositor()
	if err := readInto(v, cfg); err != nil {
		return nil, err
	}

	result := cfg.Validate()
	for _, w := range result.Warnings {
		log.Warn("config validation", "error", w)
	}
	if result.HasFatals() {
		return nil, fmt.Errorf("config has fatal validation errors: %v", result.Fatals[0])
	}
	return cfg, nil
}

// LoadWCL reads a WCL host config file (if present) over the defaults.
// Unlike LoadCompositor it applies no validation.
func LoadWCL(cfgFile string) (*WCLConfig, error) {
	v := newViper("wcl", cfgFile)

	cfg := DefaultWCL()
	if err := readInto(v, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newViper(name, cfgFile string) *viper.Viper {
	v := viper.New()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(name)
		v.SetConfigType("yaml")
		v.AddConfigPath(configDir())
		v.AddConfigPath(".")
	}
	v.AutomaticEnv()
	v.SetEnvPrefix("CITC")
	return v
}

func readInto(v *viper.Viper, cfg any) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("config: read: %w", err)
		}
	}
	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("config: unmarshal: %w", err)
	}
	return nil
}

// GetDataDir returns the platform-specific data directory for the workstation.
func GetDataDir() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("ProgramData"), "CITC", "data")
	case "darwin":
		return "/Library/Application Support/CITC/data"
	default:
		return "/var/lib/citc"
	}
}

func configDir() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("ProgramData"), "CITC")
	case "darwin":
		return "/Library/Application Support/CITC"
	default:
		return "/etc/citc"
	}
}
