package config

import (
	"fmt"
	"strings"
)

// ValidationResult separates config problems that must abort startup
// (Fatals) from ones that are safe to clamp-and-continue (Warnings).
type ValidationResult struct {
	Fatals   []error
	Warnings []error
}

func (r ValidationResult) HasFatals() bool { return len(r.Fatals) > 0 }

var validLogLevels = map[string]bool{
	"debug": true, "info": true, "warn": true, "warning": true, "error": true,
}

// Validate checks the compositor config. Geometry values that would panic
// downstream (e.g. a zero-sized screen) are fatal; everything else is
// clamped to a safe default and reported as a warning.
func (c *CompositorConfig) Validate() ValidationResult {
	var r ValidationResult

	if c.SocketPath == "" {
		r.Fatals = append(r.Fatals, fmt.Errorf("socket_path must not be empty"))
	}
	if c.ScreenWidth <= 0 || c.ScreenHeight <= 0 {
		r.Fatals = append(r.Fatals, fmt.Errorf("screen dimensions %dx%d are invalid", c.ScreenWidth, c.ScreenHeight))
	}

	if c.TitlebarHeight < 0 {
		r.Warnings = append(r.Warnings, fmt.Errorf("titlebar_height %d is negative, clamping to 0", c.TitlebarHeight))
		c.TitlebarHeight = 0
	}
	if c.MinWindowW < 1 {
		r.Warnings = append(r.Warnings, fmt.Errorf("min_window_w %d is below minimum 1, clamping", c.MinWindowW))
		c.MinWindowW = 1
	}
	if c.MinWindowH < 1 {
		r.Warnings = append(r.Warnings, fmt.Errorf("min_window_h %d is below minimum 1, clamping", c.MinWindowH))
		c.MinWindowH = 1
	}
	if c.MaxClients < 1 {
		r.Warnings = append(r.Warnings, fmt.Errorf("max_clients %d is below minimum 1, clamping", c.MaxClients))
		c.MaxClients = 1
	} else if c.MaxClients > 4096 {
		r.Warnings = append(r.Warnings, fmt.Errorf("max_clients %d exceeds maximum 4096, clamping", c.MaxClients))
		c.MaxClients = 4096
	}
	if c.MaxSurfaces < c.MaxClients {
		r.Warnings = append(r.Warnings, fmt.Errorf("max_surfaces %d is below max_clients %d, raising", c.MaxSurfaces, c.MaxClients))
		c.MaxSurfaces = c.MaxClients
	}

	if c.LogLevel != "" && !validLogLevels[strings.ToLower(c.LogLevel)] {
		r.Warnings = append(r.Warnings, fmt.Errorf("log_level %q is not valid (use debug, info, warn, error)", c.LogLevel))
		c.LogLevel = "info"
	}
	if c.LogFormat != "" && c.LogFormat != "text" && c.LogFormat != "json" {
		r.Warnings = append(r.Warnings, fmt.Errorf("log_format %q is not valid (use text or json)", c.LogFormat))
		c.LogFormat = "text"
	}

	return r
}
