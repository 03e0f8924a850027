package config

import (
	"strings"
	"testing"
)

func TestValidateEmptySocketPathIsFatal(t *testing.T) {
	cfg := DefaultCompositor()
	cfg.SocketPath = ""
	result := cfg.Validate()
	if !result.HasFatals() {
		t.Fatal("expected fatal for empty socket_path")
	}
}

func TestValidateZeroScreenIsFatal(t *testing.T) {
	cfg := DefaultCompositor()
	cfg.ScreenWidth = 0
	result := cfg.Validate()
	if !result.HasFatals() {
		t.Fatal("expected fatal for zero screen width")
	}
}

func TestValidateNegativeTitlebarIsWarningAndClamped(t *testing.T) {
	cfg := DefaultCompositor()
	cfg.TitlebarHeight = -5
	result := cfg.Validate()
	if result.HasFatals() {
		t.Fatalf("expected no fatals, got %v", result.Fatals)
	}
	if len(result.Warnings) == 0 {
		t.Fatal("expected a warning")
	}
	if cfg.TitlebarHeight != 0 {
		t.Fatalf("expected titlebar_height clamped to 0, got %d", cfg.TitlebarHeight)
	}
}

func TestValidateConcurrencyClamping(t *testing.T) {
	cfg := DefaultCompositor()
	cfg.MaxClients = 0
	result := cfg.Validate()
	if result.HasFatals() {
		t.Fatalf("clamped max_clients should be warning: %v", result.Fatals)
	}
	if cfg.MaxClients != 1 {
		t.Fatalf("MaxClients = %d, want 1", cfg.MaxClients)
	}
}

func TestValidateMaxSurfacesRaisedToMaxClients(t *testing.T) {
	cfg := DefaultCompositor()
	cfg.MaxClients = 10
	cfg.MaxSurfaces = 2
	cfg.Validate()
	if cfg.MaxSurfaces != 10 {
		t.Fatalf("expected max_surfaces raised to 10, got %d", cfg.MaxSurfaces)
	}
}

func TestValidateUnknownLogLevelIsWarning(t *testing.T) {
	cfg := DefaultCompositor()
	cfg.LogLevel = "verbose"
	result := cfg.Validate()
	if result.HasFatals() {
		t.Fatal("unknown log level should not be fatal")
	}
	found := false
	for _, err := range result.Warnings {
		if strings.Contains(err.Error(), "log_level") {
			found = true
		}
	}
	if !found {
		t.Fatal("expected warning about unknown log level")
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("expected log_level reset to info, got %q", cfg.LogLevel)
	}
}

func TestValidateInvalidLogFormatIsWarning(t *testing.T) {
	cfg := DefaultCompositor()
	cfg.LogFormat = "xml"
	result := cfg.Validate()
	if result.HasFatals() {
		t.Fatal("invalid log format should not be fatal")
	}
	if len(result.Warnings) == 0 {
		t.Fatal("expected warning for invalid log format")
	}
}

func TestHasFatals(t *testing.T) {
	var r ValidationResult
	if r.HasFatals() {
		t.Fatal("HasFatals() on empty result should be false")
	}
	cfg := DefaultCompositor()
	cfg.ScreenWidth = 0
	r = cfg.Validate()
	if !r.HasFatals() {
		t.Fatal("HasFatals() should be true with a fatal error")
	}
}

func TestValidConfigHasNoErrors(t *testing.T) {
	cfg := DefaultCompositor()
	result := cfg.Validate()
	if result.HasFatals() {
		t.Fatalf("default config has fatals: %v", result.Fatals)
	}
	if len(result.Warnings) > 0 {
		t.Fatalf("default config has warnings: %v", result.Warnings)
	}
}
