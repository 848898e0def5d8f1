package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFileWithEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 9000
  read_timeout: 5s
supabase:
  url: https://project.supabase.co
  anon_key: file-anon
  service_key: file-service
logging:
  level: debug
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("SUPABASE_ANON_KEY", "env-anon")
	t.Setenv("SUPABASE_JWT_SECRET", "env-secret")
	t.Setenv("PORT", "9100")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("port = %d, env should override file", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 5*time.Second {
		t.Errorf("readTimeout = %v", cfg.Server.ReadTimeout)
	}
	if cfg.Supabase.AnonKey != "env-anon" {
		t.Errorf("anonKey = %q, env should override file", cfg.Supabase.AnonKey)
	}
	if cfg.Supabase.ServiceKey != "file-service" {
		t.Errorf("serviceKey = %q", cfg.Supabase.ServiceKey)
	}
	if cfg.Auth.JWTSecret != "env-secret" {
		t.Errorf("jwtSecret = %q, env should set it", cfg.Auth.JWTSecret)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("logLevel = %q", cfg.Logging.Level)
	}
}

func TestLoadMissingFileUsesEnv(t *testing.T) {
	t.Setenv("SUPABASE_URL", "https://project.supabase.co")
	t.Setenv("SUPABASE_ANON_KEY", "anon")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d, want default 8080", cfg.Server.Port)
	}
	if cfg.Limits.RequestsPerSecond != 20 {
		t.Errorf("rps = %d, want default 20", cfg.Limits.RequestsPerSecond)
	}
}

func TestLoadRejectsIncompleteConfig(t *testing.T) {
	t.Setenv("SUPABASE_URL", "")
	t.Setenv("SUPABASE_ANON_KEY", "")

	if _, err := Load(""); err == nil {
		t.Fatal("expected error for missing backend settings")
	}
}
