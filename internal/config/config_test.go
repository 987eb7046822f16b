package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"PORT", "ALLOWED_ORIGIN", "DATABASE_URL", "REDIS_ADDR", "REDIS_DB",
		"CACHE_TTL_SECONDS", "AUTH_SECRET", "ACCESS_TOKEN_TTL_MINUTES",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port 8080, got %s", cfg.Port)
	}
	if cfg.Address() != ":8080" {
		t.Fatalf("expected :8080, got %s", cfg.Address())
	}
	if cfg.CacheTTLSeconds != 30 {
		t.Fatalf("expected cache TTL 30, got %d", cfg.CacheTTLSeconds)
	}
	if cfg.AccessTokenTTLMinutes != 480 {
		t.Fatalf("expected token TTL 480, got %d", cfg.AccessTokenTTLMinutes)
	}
	if cfg.DatabaseURL != "" || cfg.RedisAddr != "" {
		t.Fatalf("database and redis must default to unset")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("ALLOWED_ORIGIN", "https://shop.example")
	t.Setenv("DATABASE_URL", "postgres://app@db/dukani")
	t.Setenv("REDIS_ADDR", "127.0.0.1:6379")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("CACHE_TTL_SECONDS", "120")
	t.Setenv("AUTH_SECRET", "  secret-with-padding  ")
	t.Setenv("ACCESS_TOKEN_TTL_MINUTES", "60")

	cfg := Load()
	if cfg.Port != "9000" || cfg.AllowedOrigin != "https://shop.example" {
		t.Fatalf("unexpected server config: %+v", cfg)
	}
	if cfg.DatabaseURL != "postgres://app@db/dukani" || cfg.RedisAddr != "127.0.0.1:6379" || cfg.RedisDB != 3 {
		t.Fatalf("unexpected backend config: %+v", cfg)
	}
	if cfg.CacheTTLSeconds != 120 || cfg.AccessTokenTTLMinutes != 60 {
		t.Fatalf("unexpected TTL config: %+v", cfg)
	}
	if cfg.AuthSecret != "secret-with-padding" {
		t.Fatalf("auth secret must be trimmed, got %q", cfg.AuthSecret)
	}
}

func TestLoadRejectsBadNumbers(t *testing.T) {
	t.Setenv("CACHE_TTL_SECONDS", "not-a-number")
	t.Setenv("ACCESS_TOKEN_TTL_MINUTES", "-5")

	cfg := Load()
	if cfg.CacheTTLSeconds != 30 {
		t.Fatalf("bad cache TTL should fall back to 30, got %d", cfg.CacheTTLSeconds)
	}
	if cfg.AccessTokenTTLMinutes != 480 {
		t.Fatalf("negative token TTL should fall back to 480, got %d", cfg.AccessTokenTTLMinutes)
	}
}
