// Copyright (c) 2025-2026 Verso Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"strings"
	"testing"
)

const testSecret = "Abc123!xyz-long-enough-secret-00"

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("VERSO_SESSION_SECRET", testSecret)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.DBPath != "./data/verso.db" {
		t.Errorf("DBPath = %q", cfg.DBPath)
	}
	if cfg.ServerAddr() != "localhost:8080" {
		t.Errorf("ServerAddr = %q", cfg.ServerAddr())
	}
	if !cfg.IsDevelopment() {
		t.Error("default env should be development")
	}
	if cfg.UseRedisCache() {
		t.Error("Redis should be off by default")
	}
	if cfg.DoSeed {
		t.Error("seeding should be off by default")
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("VERSO_SESSION_SECRET", testSecret)
	t.Setenv("VERSO_SERVER_HOST", "0.0.0.0")
	t.Setenv("VERSO_SERVER_PORT", "9000")
	t.Setenv("VERSO_ENV", "production")
	t.Setenv("VERSO_REDIS_URL", "redis://localhost:6379/0")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.ServerAddr() != "0.0.0.0:9000" {
		t.Errorf("ServerAddr = %q", cfg.ServerAddr())
	}
	if cfg.IsDevelopment() {
		t.Error("production env reports development")
	}
	if !cfg.UseRedisCache() {
		t.Error("Redis URL set but UseRedisCache is false")
	}
}

func TestLoad_MissingSecret(t *testing.T) {
	t.Setenv("VERSO_SESSION_SECRET", "")

	if _, err := Load(); err == nil {
		t.Fatal("missing secret accepted")
	}
}

func TestLoad_ShortSecret(t *testing.T) {
	t.Setenv("VERSO_SESSION_SECRET", "too-short")

	_, err := Load()
	if err == nil {
		t.Fatal("short secret accepted")
	}
	if !strings.Contains(err.Error(), "VERSO_SESSION_SECRET") {
		t.Errorf("error does not name the variable: %v", err)
	}
}

func TestLoad_KnownWeakSecret(t *testing.T) {
	t.Setenv("VERSO_SESSION_SECRET", "change-me-to-32-byte-secret-key!")

	if _, err := Load(); err == nil {
		t.Fatal("known default secret accepted")
	}
}

func TestHasMinimumEntropy(t *testing.T) {
	tests := []struct {
		secret string
		want   bool
	}{
		{"Abc123!xyz", true},
		{"alllowercaseforever", false},
		{"lower-and-UPPER-and-123", true},
		{"1234567890", false},
	}
	for _, tt := range tests {
		if got := hasMinimumEntropy(tt.secret); got != tt.want {
			t.Errorf("hasMinimumEntropy(%q) = %v, want %v", tt.secret, got, tt.want)
		}
	}
}
