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
	t.Setenv("DATABASE_URL", "postgres://localhost/crm")
	t.Setenv("JWT_ACCESS_SECRET", "secret")
	t.Setenv("CORS_ORIGINS", "http://a.test, http://b.test")
	t.Setenv("EVOLUTION_API_BASE_URL", "https://evo.test/")
	t.Setenv("EVOLUTION_API_KEY", "key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.GetEvolutionTimeout() != 10*time.Second {
		t.Errorf("expected 10s gateway timeout, got %s", cfg.GetEvolutionTimeout())
	}
	if cfg.GetEvolutionBaseURL() != "https://evo.test" {
		t.Errorf("expected trailing slash trimmed, got %q", cfg.GetEvolutionBaseURL())
	}
	if len(cfg.GetCORSOrigins()) != 2 {
		t.Errorf("expected 2 CORS origins, got %v", cfg.GetCORSOrigins())
	}
	if cfg.GetPhoneDefaultRegion() != "BR" {
		t.Errorf("unexpected default region %q", cfg.GetPhoneDefaultRegion())
	}
}

func TestLoadRejectsEvolutionWithoutKey(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/crm")
	t.Setenv("JWT_ACCESS_SECRET", "secret")
	t.Setenv("EVOLUTION_API_BASE_URL", "https://evo.test")
	t.Setenv("EVOLUTION_API_KEY", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when the provider key is missing")
	}
}

func TestLoadRejectsWildcardWithCredentials(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/crm")
	t.Setenv("JWT_ACCESS_SECRET", "secret")
	t.Setenv("CORS_ORIGINS", "*")
	t.Setenv("CORS_ALLOW_CREDENTIALS", "true")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for wildcard origins with credentials")
	}
}
