package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "5000" {
		t.Errorf("Port = %q, want 5000", cfg.Port)
	}
	if cfg.SessionDuration() != 8*time.Hour {
		t.Errorf("SessionDuration = %v, want 8h", cfg.SessionDuration())
	}
	if cfg.BcryptCost != 12 {
		t.Errorf("BcryptCost = %d, want 12", cfg.BcryptCost)
	}
	if cfg.LoginRateLimit != 10 || cfg.RateWindow() != time.Minute {
		t.Errorf("rate limit = %d/%v", cfg.LoginRateLimit, cfg.RateWindow())
	}
}

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error without JWT_SECRET")
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := map[string]map[string]string{
		"driver":   {"STORE_DRIVER": "postgres"},
		"cost":     {"BCRYPT_COST": "3"},
		"ttl":      {"SESSION_TTL": "eight hours"},
		"timezone": {"REPORT_TIMEZONE": "Mars/Olympus"},
		"admin":    {"ADMIN_EMAIL": "root@example.com", "ADMIN_PASSWORD": ""},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("JWT_SECRET", "test-secret")
			for k, v := range env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestLists(t *testing.T) {
	cfg := &Config{CORSOrigins: "https://a.example, ,https://b.example", AdminNotifyEmails: ""}
	got := cfg.CORSOriginList()
	if len(got) != 2 || got[1] != "https://b.example" {
		t.Fatalf("CORSOriginList = %v", got)
	}
	if len(cfg.AdminNotifyList()) != 0 {
		t.Fatal("empty notify list expected")
	}
}
