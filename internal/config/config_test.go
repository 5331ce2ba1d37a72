package config

import (
	"testing"
)

func TestValidate_DevAllowsEmptySecret(t *testing.T) {
	cfg := &Config{Env: "development", JWTTTLHours: 12}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_ProductionRequiresSecret(t *testing.T) {
	cfg := &Config{Env: "production", JWTTTLHours: 12}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for missing JWT_SECRET in production")
	}
}

func TestValidate_ProductionWithSecret(t *testing.T) {
	cfg := &Config{
		Env:         "production",
		JWTSecret:   "0123456789abcdef0123456789abcdef",
		JWTTTLHours: 12,
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_TaxRateBounds(t *testing.T) {
	cfg := &Config{Env: "development", JWTTTLHours: 12}
	cfg.Store.TaxRate = 130
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for tax rate above 100")
	}
	cfg.Store.TaxRate = -1
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for negative tax rate")
	}
}

func TestValidate_TTLMustBePositive(t *testing.T) {
	cfg := &Config{Env: "development", JWTTTLHours: 0}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for zero JWT TTL")
	}
}

func TestLoad_RequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	if _, err := Load(); err == nil {
		t.Error("expected error for missing DATABASE_URL")
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/sewa")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "8000" {
		t.Errorf("expected default port 8000, got %s", cfg.Port)
	}
	if cfg.Store.Currency != "Rs." {
		t.Errorf("expected default currency Rs., got %s", cfg.Store.Currency)
	}
	if !cfg.IsDev() {
		t.Error("expected development mode by default")
	}
}
