package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_Success(t *testing.T) {
	setMinimalEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}

	if cfg.App.Env != "prod" {
		t.Fatalf("expected App.Env to be prod, got %q", cfg.App.Env)
	}
	if cfg.Device.ID != "register-1" {
		t.Fatalf("unexpected device id %q", cfg.Device.ID)
	}
	if got := cfg.Search.Debounce; got != 300*time.Millisecond {
		t.Fatalf("expected default debounce 300ms, got %v", got)
	}
	if got := cfg.Search.Limit; got != 20 {
		t.Fatalf("expected default search limit 20, got %d", got)
	}
	if !cfg.DB.IsSQLite() {
		t.Fatalf("expected sqlite to be the default driver, got %q", cfg.DB.Driver)
	}
	if cfg.DB.DSN != "terminal.db" {
		t.Fatalf("expected sqlite path as DSN, got %q", cfg.DB.DSN)
	}
	if cfg.Redis.Enabled() {
		t.Fatalf("redis should be disabled without an url")
	}
	if cfg.PubSub.Enabled() {
		t.Fatalf("pubsub should be disabled without a subscription")
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	setMinimalEnv(t)
	if err := os.Unsetenv(EnvDeviceID); err != nil {
		t.Fatalf("failed to unset %s: %v", EnvDeviceID, err)
	}

	if _, err := Load(); err == nil {
		t.Fatal("expected missing required env to return an error")
	}
}

func TestLoad_PostgresBuildsDSN(t *testing.T) {
	setMinimalEnv(t)
	t.Setenv(EnvDBDriver, DBDriverPostgres)
	t.Setenv(EnvDBHost, "localhost")
	t.Setenv(EnvDBUser, "pos")
	t.Setenv(EnvDBName, "terminal")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}
	want := "postgres://pos@localhost:5432/terminal?sslmode=disable"
	if cfg.DB.DSN != want {
		t.Fatalf("expected dsn %q, got %q", want, cfg.DB.DSN)
	}
}

func TestLoad_PostgresMissingHost(t *testing.T) {
	setMinimalEnv(t)
	t.Setenv(EnvDBDriver, DBDriverPostgres)
	t.Setenv(EnvDBUser, "pos")
	t.Setenv(EnvDBName, "terminal")

	if _, err := Load(); err == nil {
		t.Fatal("expected missing host to fail dsn construction")
	}
}

func setMinimalEnv(t *testing.T) {
	t.Helper()

	t.Setenv(EnvAppEnv, "prod")
	t.Setenv(EnvDeviceID, "register-1")
	t.Setenv(EnvDeviceSecret, "secret")
	t.Setenv(EnvRemoteBaseURL, "https://backend.example.com")
}

func TestAppConfigEnvHelpers(t *testing.T) {
	devConfig := AppConfig{Env: "DEV"}
	if !devConfig.IsDev() {
		t.Fatalf("expected IsDev true for %q", devConfig.Env)
	}
	if devConfig.IsProd() {
		t.Fatalf("expected IsProd false for %q", devConfig.Env)
	}

	prodConfig := AppConfig{Env: "prod"}
	if !prodConfig.IsProd() {
		t.Fatalf("expected IsProd true for %q", prodConfig.Env)
	}
	if prodConfig.IsDev() {
		t.Fatalf("expected IsDev false for %q", prodConfig.Env)
	}
}
