package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr default: got %q", cfg.HTTPAddr)
	}
	if cfg.JWTIssuer != "quizdeck-auth" || cfg.JWTAudience != "quizdeck-api" {
		t.Errorf("JWT defaults: got %q %q", cfg.JWTIssuer, cfg.JWTAudience)
	}
	if cfg.BcryptCost != 12 {
		t.Errorf("BcryptCost default: got %d", cfg.BcryptCost)
	}
	if cfg.AccessTTL() != 720*time.Hour {
		t.Errorf("AccessTTL default: got %v", cfg.AccessTTL())
	}
	if cfg.CodeTTL() != 15*time.Minute {
		t.Errorf("CodeTTL default: got %v", cfg.CodeTTL())
	}
}

func TestLoad_RequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	if _, err := Load(); err == nil {
		t.Fatal("Load without JWT_SECRET should fail")
	}
}

func TestLoad_BcryptCostBounds(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("BCRYPT_COST", "50")
	if _, err := Load(); err == nil {
		t.Fatal("out-of-range BCRYPT_COST should fail")
	}
}

func TestConfig_TTLFallbacks(t *testing.T) {
	c := &Config{JWTAccessTTL: "nonsense", RestoreCodeTTL: "-5m"}
	if c.AccessTTL() != 720*time.Hour {
		t.Errorf("invalid access TTL should fall back, got %v", c.AccessTTL())
	}
	if c.CodeTTL() != 15*time.Minute {
		t.Errorf("negative code TTL should fall back, got %v", c.CodeTTL())
	}
}
