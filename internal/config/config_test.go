package config

import (
	"strings"
	"testing"

	"github.com/kapu/untranslate-go/internal/domain"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}

	if cfg.Restore.GuardMode != domain.GuardEnable {
		t.Fatalf("expected guard mode to default to enable, got %q", cfg.Restore.GuardMode)
	}
	if !cfg.Restore.Titles || !cfg.Restore.Descriptions {
		t.Fatalf("expected restore toggles to default on, got %+v", cfg.Restore)
	}
	if cfg.Redis.Enabled || cfg.Postgres.Enabled {
		t.Fatalf("expected optional backends to default off")
	}
	if cfg.YouTube.HasCredential() {
		t.Fatalf("expected no credential by default")
	}
}

func TestLoadRejectsInvalidGuardMode(t *testing.T) {
	t.Setenv("GUARD_MODE", "maybe")

	_, err := Load()
	if err == nil {
		t.Fatalf("expected invalid guard mode to fail validation")
	}
	if !strings.Contains(err.Error(), "GUARD_MODE") {
		t.Fatalf("expected GUARD_MODE in error, got %v", err)
	}
}

func TestLoadRejectsDoubleCredential(t *testing.T) {
	t.Setenv("YOUTUBE_API_KEY", "key")
	t.Setenv("YOUTUBE_OAUTH_TOKEN", "token")

	_, err := Load()
	if err == nil {
		t.Fatalf("expected ambiguous credentials to fail validation")
	}
}

func TestLoadReadsOverrides(t *testing.T) {
	t.Setenv("GUARD_MODE", "disable")
	t.Setenv("RESTORE_TITLES", "false")
	t.Setenv("BRIDGE_ADDR", "127.0.0.1:9000")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("REDIS_PORT", "6380")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected overrides to validate, got %v", err)
	}
	if cfg.Restore.GuardMode != domain.GuardDisable {
		t.Fatalf("expected guard mode disable, got %q", cfg.Restore.GuardMode)
	}
	if cfg.Restore.Titles {
		t.Fatalf("expected title restoration off")
	}
	if cfg.Bridge.Addr != "127.0.0.1:9000" {
		t.Fatalf("expected bridge addr override, got %q", cfg.Bridge.Addr)
	}
	if !cfg.Redis.Enabled || cfg.Redis.Port != 6380 {
		t.Fatalf("expected redis override, got %+v", cfg.Redis)
	}
}
