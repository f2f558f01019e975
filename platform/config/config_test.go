package config

import (
	"testing"
	"time"
)

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_ACCESS_SECRET", "secret")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when DATABASE_URL is empty")
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/qualification")
	t.Setenv("JWT_ACCESS_SECRET", "secret")
	t.Setenv("CORS_ORIGINS", "http://localhost:4200")
	t.Setenv("REDIS_URL", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.GetStrategyCacheTTL() != 30*time.Second {
		t.Fatalf("expected 30s strategy cache TTL, got %s", cfg.GetStrategyCacheTTL())
	}
	if cfg.IsStrictCadenceEnforcement() {
		t.Fatal("strict enforcement must be opt-in")
	}
	if cfg.IsEligibilityRecheckEnabled() {
		t.Fatal("rechecks need redis; expected disabled without REDIS_URL")
	}
	if cfg.IsCacheBusEnabled() {
		t.Fatal("cache bus needs redis; expected disabled without REDIS_URL")
	}
}

func TestLoadRejectsWildcardWithCredentials(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/qualification")
	t.Setenv("JWT_ACCESS_SECRET", "secret")
	t.Setenv("CORS_ORIGINS", "*")
	t.Setenv("CORS_ALLOW_CREDENTIALS", "true")

	if _, err := Load(); err == nil {
		t.Fatal("expected wildcard CORS with credentials to be rejected")
	}
}

func TestLoadRejectsStrategyCacheTTLBelowOneSecond(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/qualification")
	t.Setenv("JWT_ACCESS_SECRET", "secret")
	t.Setenv("CORS_ORIGINS", "http://localhost:4200")

	for _, ttl := range []string{"0", "0s", "50ns", "999ms", "-5s", "soon"} {
		t.Setenv("CADENCE_STRATEGY_CACHE_TTL", ttl)
		if _, err := Load(); err == nil {
			t.Fatalf("expected CADENCE_STRATEGY_CACHE_TTL=%q to be rejected", ttl)
		}
	}

	t.Setenv("CADENCE_STRATEGY_CACHE_TTL", "1s")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error for 1s: %v", err)
	}
	if cfg.GetStrategyCacheTTL() != time.Second {
		t.Fatalf("expected 1s, got %s", cfg.GetStrategyCacheTTL())
	}
}
