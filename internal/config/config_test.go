package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadExpandsEnvPlaceholders(t *testing.T) {
	t.Setenv("TEST_ADMIN_USER", "administrator")
	t.Setenv("TEST_ADMIN_PASS", "s3cret")

	raw := `
server:
  host: 0.0.0.0
  port: 8090
backend:
  baseURL: http://backend:8000
  adminUser: ${TEST_ADMIN_USER}
  adminPass: ${TEST_ADMIN_PASS}
  routePrefixes:
    - /admin/api
    - /api/integration
    - ""
poller:
  initialIntervalMs: 800
  intervalStepMs: 400
  maxIntervalMs: 4000
auth:
  enabled: true
  user: dashboard
  password: ${TEST_ADMIN_PASS}
retention:
  enabled: true
  runDays: 30
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := Load(path)

	if cfg.Backend.AdminUser != "administrator" {
		t.Errorf("adminUser = %q", cfg.Backend.AdminUser)
	}
	if cfg.Backend.AdminPass != "s3cret" {
		t.Errorf("adminPass = %q", cfg.Backend.AdminPass)
	}
	if cfg.Auth.Password != "s3cret" {
		t.Errorf("auth password = %q", cfg.Auth.Password)
	}
	if cfg.Server.Port != 8090 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if len(cfg.Backend.RoutePrefixes) != 3 || cfg.Backend.RoutePrefixes[0] != "/admin/api" {
		t.Errorf("routePrefixes = %v", cfg.Backend.RoutePrefixes)
	}
	if cfg.Poller.InitialIntervalMs != 800 || cfg.Poller.MaxIntervalMs != 4000 {
		t.Errorf("poller = %+v", cfg.Poller)
	}
	if cfg.Poller.MaxDurationMs != 0 {
		t.Errorf("maxDurationMs should default to unbounded, got %d", cfg.Poller.MaxDurationMs)
	}
	if !cfg.Retention.Enabled || cfg.Retention.RunDays != 30 {
		t.Errorf("retention = %+v", cfg.Retention)
	}
}
