package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/iho/stockledger/internal/infrastructure/config"
)

func isolate(t *testing.T) {
	t.Helper()

	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)
	t.Setenv("DATABASE_URL", "")
	t.Setenv("STORE_DRIVER", "")
	os.Unsetenv("STORE_DRIVER")
	os.Unsetenv("DATABASE_URL")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("unexpected error loading config: %v", err)
	}

	if cfg.DatabaseURL == "" {
		t.Fatalf("expected default database URL to be set")
	}

	if cfg.StoreDriver != config.DriverSQLite {
		t.Fatalf("expected default driver sqlite, got %q", cfg.StoreDriver)
	}

	if cfg.HTTPPort != "8080" {
		t.Fatalf("expected default HTTP port 8080, got %s", cfg.HTTPPort)
	}

	if cfg.AppendTimeout != 5*time.Second || cfg.CacheCapacity != 4096 {
		t.Fatalf("unexpected ledger defaults: timeout=%s capacity=%d", cfg.AppendTimeout, cfg.CacheCapacity)
	}

	if cfg.PeriodCloseSchedule != "" {
		t.Fatalf("expected scheduled close to be disabled by default")
	}
}

func TestLoadOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("REDIS_URL", "redis://example")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("APPEND_TIMEOUT", "750ms")
	t.Setenv("PERIOD_CLOSE_SCHEDULE", "0 0 1 * *")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("unexpected error loading config: %v", err)
	}

	if cfg.StoreDriver != config.DriverPostgres || cfg.DatabaseURL != "postgres://example" {
		t.Fatalf("expected postgres override, got %s %s", cfg.StoreDriver, cfg.DatabaseURL)
	}

	if cfg.RedisURL != "redis://example" || !cfg.RedisEnabled {
		t.Fatalf("expected redis override, got %s enabled=%v", cfg.RedisURL, cfg.RedisEnabled)
	}

	if cfg.HTTPPort != "9090" {
		t.Fatalf("expected HTTP port 9090, got %s", cfg.HTTPPort)
	}

	if cfg.AppendTimeout != 750*time.Millisecond {
		t.Fatalf("expected append timeout 750ms, got %s", cfg.AppendTimeout)
	}

	if cfg.PeriodCloseSchedule != "0 0 1 * *" {
		t.Fatalf("unexpected schedule %q", cfg.PeriodCloseSchedule)
	}
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	isolate(t)
	t.Setenv("STORE_DRIVER", "mongo")

	if _, err := config.Load(); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}

func TestLoadInvalidDuration(t *testing.T) {
	isolate(t)
	t.Setenv("APPEND_TIMEOUT", "soon")

	if _, err := config.Load(); err == nil {
		t.Fatalf("expected parse error for invalid duration")
	}
}

func TestLoadReadsDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("HTTP_PORT=7070\nCACHE_CAPACITY=16\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	t.Setenv("ENV_FILE", path)
	t.Setenv("HTTP_PORT", "")
	os.Unsetenv("HTTP_PORT")
	t.Setenv("CACHE_CAPACITY", "")
	os.Unsetenv("CACHE_CAPACITY")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("unexpected error loading config: %v", err)
	}

	if cfg.HTTPPort != "7070" || cfg.CacheCapacity != 16 {
		t.Fatalf("expected values from env file, got port=%s capacity=%d", cfg.HTTPPort, cfg.CacheCapacity)
	}
}
