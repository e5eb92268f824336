package config

import (
	"testing"
	"time"
)

func TestEnvStrFallback(t *testing.T) {
	t.Setenv("TEST_STR", "value")
	if v := envStr("TEST_STR", "default"); v != "value" {
		t.Fatalf("expected value, got %q", v)
	}
	if v := envStr("TEST_STR_MISSING", "default"); v != "default" {
		t.Fatalf("expected default, got %q", v)
	}
}

func TestEnvIntInvalidFallsBack(t *testing.T) {
	t.Setenv("TEST_INT_BAD", "abc")
	if v := envInt("TEST_INT_BAD", 7); v != 7 {
		t.Fatalf("expected fallback 7, got %d", v)
	}
}

func TestEnvBool(t *testing.T) {
	t.Setenv("TEST_BOOL", "true")
	if !envBool("TEST_BOOL", false) {
		t.Fatal("expected true")
	}
	t.Setenv("TEST_BOOL", "not-a-bool")
	if envBool("TEST_BOOL", false) {
		t.Fatal("expected fallback false for invalid value")
	}
}

func TestEnvDuration(t *testing.T) {
	t.Setenv("TEST_DUR", "5s")
	if v := envDuration("TEST_DUR", 0); v != 5*time.Second {
		t.Fatalf("expected 5s, got %s", v)
	}
	if v := envDuration("TEST_DUR_MISSING", time.Minute); v != time.Minute {
		t.Fatalf("expected fallback 1m, got %s", v)
	}
}

func TestEnvListSplitsAndTrims(t *testing.T) {
	t.Setenv("TEST_LIST", "a, b ,,c")
	got := envList("TEST_LIST")
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
	if envList("TEST_LIST_MISSING") != nil {
		t.Fatal("expected nil for unset list")
	}
}

func TestLoadSucceedsWithDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected Load() to succeed with defaults, got: %v", err)
	}
	if cfg.Port != 8090 {
		t.Fatalf("expected default port 8090, got %d", cfg.Port)
	}
	if cfg.ServiceName != "renderlog" {
		t.Fatalf("unexpected service name %q", cfg.ServiceName)
	}
}

func TestValidateRejectsEmptyDatabaseURL(t *testing.T) {
	cfg := Config{Port: 8090}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for empty DATABASE_URL")
	}
}

func TestValidateRejectsBadPort(t *testing.T) {
	cfg := Config{DatabaseURL: "postgres://x", Port: 0}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for port 0")
	}
}
