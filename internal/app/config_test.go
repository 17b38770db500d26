package app

import (
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	for _, key := range []string{
		"RIPPLE_HTTP_ADDR", "RIPPLE_LOG_LEVEL", "RIPPLE_LOG_FORMAT",
		"RIPPLE_DATABASE_URL", "RIPPLE_DB_SCHEMA", "RIPPLE_REDIS_URL",
		"RIPPLE_AUTH_HMAC_KEY", "RIPPLE_REQUIRE_AUTH",
	} {
		t.Setenv(key, "")
	}

	cfg := LoadConfig()

	if cfg.HTTPAddr != "0.0.0.0:8080" {
		t.Fatalf("HTTPAddr=%q", cfg.HTTPAddr)
	}
	if cfg.LogLevel != "info" || cfg.LogFormat != "json" {
		t.Fatalf("log defaults: level=%q format=%q", cfg.LogLevel, cfg.LogFormat)
	}
	if cfg.DBSchema != "ripple" {
		t.Fatalf("DBSchema=%q", cfg.DBSchema)
	}
	if cfg.DatabaseURL != "" || cfg.RedisURL != "" {
		t.Fatalf("backends should default to disabled")
	}
	if cfg.RequireAuth || cfg.ReadinessRequireDB {
		t.Fatalf("strict modes should default off")
	}
	if cfg.ReadHeaderTimeout != 5*time.Second {
		t.Fatalf("ReadHeaderTimeout=%v", cfg.ReadHeaderTimeout)
	}
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("RIPPLE_HTTP_ADDR", "127.0.0.1:9999")
	t.Setenv("RIPPLE_LOG_FORMAT", "pretty")
	t.Setenv("RIPPLE_DB_SCHEMA", "chat_test")
	t.Setenv("RIPPLE_REQUIRE_AUTH", "true")
	t.Setenv("RIPPLE_HTTP_READ_TIMEOUT", "45s")

	cfg := LoadConfig()

	if cfg.HTTPAddr != "127.0.0.1:9999" {
		t.Fatalf("HTTPAddr=%q", cfg.HTTPAddr)
	}
	if cfg.LogFormat != "pretty" {
		t.Fatalf("LogFormat=%q", cfg.LogFormat)
	}
	if cfg.DBSchema != "chat_test" {
		t.Fatalf("DBSchema=%q", cfg.DBSchema)
	}
	if !cfg.RequireAuth {
		t.Fatalf("RequireAuth not picked up")
	}
	if cfg.ReadTimeout != 45*time.Second {
		t.Fatalf("ReadTimeout=%v", cfg.ReadTimeout)
	}
}

func TestNewAuthenticator_Policy(t *testing.T) {
	t.Parallel()

	log := NewLogger("error", "json")

	// Missing key + strict mode fails startup.
	if _, err := newAuthenticator(Config{RequireAuth: true}, log); err == nil {
		t.Fatalf("expected startup failure with RequireAuth and no key")
	}

	// Missing key without strict mode falls back to the dev verifier.
	auth, err := newAuthenticator(Config{}, log)
	if err != nil || auth == nil {
		t.Fatalf("dev fallback: auth=%v err=%v", auth, err)
	}

	// Short key is rejected even without strict mode.
	if _, err := newAuthenticator(Config{AuthHMACKey: "short"}, log); err == nil {
		t.Fatalf("expected short-key rejection")
	}
}
