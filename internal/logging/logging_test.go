package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestPreInitLoggerUsesConfiguredHandler(t *testing.T) {
	logger := L("cdp-server")

	var buf bytes.Buffer
	Init("text", "info", &buf)

	logger.Info("client connected", "addr", "/tmp/citc-display-0")

	out := buf.String()
	if strings.Contains(out, `msg="INFO client connected`) {
		t.Fatalf("unexpected nested severity prefix in message: %s", out)
	}
	if !strings.Contains(out, "msg=\"client connected\"") {
		t.Fatalf("expected plain message, got: %s", out)
	}
	if !strings.Contains(out, "component=cdp-server") {
		t.Fatalf("expected component field, got: %s", out)
	}
}

func TestPreInitLoggerRespectsConfiguredLevel(t *testing.T) {
	logger := L("cdp-server")

	var buf bytes.Buffer
	Init("text", "warn", &buf)

	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info log should be filtered at warn level: %s", out)
	}
	if !strings.Contains(out, "shown") {
		t.Fatalf("warn log should be emitted: %s", out)
	}
}

func TestWithSurfaceAttachesFields(t *testing.T) {
	var buf bytes.Buffer
	Init("text", "debug", &buf)

	logger := WithSurface(L("cdp-server"), 3, 1)
	logger.Info("commit")

	out := buf.String()
	if !strings.Contains(out, "surfaceId=3") || !strings.Contains(out, "clientIdx=1") {
		t.Fatalf("expected surface/client fields, got: %s", out)
	}
}
