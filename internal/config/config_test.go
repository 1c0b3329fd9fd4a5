package config

import "testing"

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")
	t.Setenv("MANAGER_PIN", "")

	cfg := Load()
	if cfg.AuthSecret != "" {
		t.Fatalf("expected empty AUTH_SECRET when unset, got %q", cfg.AuthSecret)
	}
	if cfg.ManagerPIN != "" {
		t.Fatalf("expected empty MANAGER_PIN when unset, got %q", cfg.ManagerPIN)
	}
}

func TestLoadClampsSettingsTTL(t *testing.T) {
	t.Setenv("SETTINGS_TTL_SECONDS", "-5")

	cfg := Load()
	if cfg.SettingsTTLSeconds != 30 {
		t.Fatalf("expected fallback TTL 30, got %d", cfg.SettingsTTLSeconds)
	}
}
