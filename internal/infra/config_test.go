package infra

import (
	"os"
	"path/filepath"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"APP_ENV", "HOST", "PORT", "PUBLIC", "STORAGE_PATH", "METRICS_DB_PATH",
		"ENGINE_BASE_URL", "DEVICE_OVERRIDE", "FFMPEG_PATH", "WEB_PASSWORD",
		"WEB_PASSWORD_FILE", "GEOIP_DB_PATH", "RATE_LIMIT_PER_MINUTE",
		"STAGE_TIMEOUT_SECONDS", "ARTIFACT_TTL_SECONDS", "MAX_UPLOAD_BYTES",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Addr() != "127.0.0.1:8080" {
		t.Fatalf("default addr %q", cfg.Addr())
	}
	if cfg.AppEnv != "development" {
		t.Fatalf("default env %q", cfg.AppEnv)
	}
	if cfg.RateLimitPerMin != 30 {
		t.Fatalf("default rate limit %d", cfg.RateLimitPerMin)
	}
	if !filepath.IsAbs(cfg.StoragePath) {
		t.Fatalf("storage path should be absolute: %q", cfg.StoragePath)
	}
}

func TestLoadConfigPublicRequiresPassword(t *testing.T) {
	clearEnv(t)
	t.Setenv("PUBLIC", "true")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("PUBLIC=true without a password must fail")
	}

	t.Setenv("WEB_PASSWORD", "secret")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Host != "0.0.0.0" {
		t.Fatalf("public host %q, want 0.0.0.0", cfg.Host)
	}
}

func TestLoadConfigPasswordFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "password")
	if err := os.WriteFile(path, []byte("  from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("WEB_PASSWORD_FILE", path)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.WebPassword != "from-file" {
		t.Fatalf("password %q, want trimmed file contents", cfg.WebPassword)
	}
}

func TestLoadConfigPasswordEnvWins(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "password")
	if err := os.WriteFile(path, []byte("file-password"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("WEB_PASSWORD", "env-password")
	t.Setenv("WEB_PASSWORD_FILE", path)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.WebPassword != "env-password" {
		t.Fatalf("password %q, WEB_PASSWORD should take precedence", cfg.WebPassword)
	}
}

func TestLoadConfigTimeouts(t *testing.T) {
	clearEnv(t)
	t.Setenv("STAGE_TIMEOUT_SECONDS", "42")
	t.Setenv("ARTIFACT_TTL_SECONDS", "120")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.StageTimeout.Seconds() != 42 {
		t.Fatalf("stage timeout %v", cfg.StageTimeout)
	}
	if cfg.ArtifactTTL.Seconds() != 120 {
		t.Fatalf("artifact ttl %v", cfg.ArtifactTTL)
	}
}
