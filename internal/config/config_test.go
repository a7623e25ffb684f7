package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gated.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const minimalConfig = `
instance:
  id: gated-test
database:
  host: localhost
  name: pulsar
  user: pulsar
  password: secret
symbols:
  - NIFTY
`

func TestLoadAndValidateDefaults(t *testing.T) {
	cfg, err := LoadAndValidate(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("LoadAndValidate() error = %v", err)
	}

	if cfg.Session.Timezone != "Asia/Kolkata" {
		t.Errorf("Session.Timezone = %q, want Asia/Kolkata", cfg.Session.Timezone)
	}
	if cfg.Session.NoNewAfter != "14:45" {
		t.Errorf("Session.NoNewAfter = %q, want 14:45", cfg.Session.NoNewAfter)
	}
	if cfg.Freshness.Bars != 90*time.Second {
		t.Errorf("Freshness.Bars = %v, want 90s", cfg.Freshness.Bars)
	}
	if cfg.Freshness.BreadthVIX != 300*time.Second {
		t.Errorf("Freshness.BreadthVIX = %v, want 300s", cfg.Freshness.BreadthVIX)
	}
	if cfg.Rails.MinRiskReward != 1.2 {
		t.Errorf("Rails.MinRiskReward = %v, want 1.2", cfg.Rails.MinRiskReward)
	}
	if cfg.Rails.MaxPositions != 2 {
		t.Errorf("Rails.MaxPositions = %v, want 2", cfg.Rails.MaxPositions)
	}
	if cfg.Scheduler.IBCadence != 45*time.Second {
		t.Errorf("Scheduler.IBCadence = %v, want 45s", cfg.Scheduler.IBCadence)
	}
	if cfg.Scheduler.MiddayCadence != 75*time.Second {
		t.Errorf("Scheduler.MiddayCadence = %v, want 75s", cfg.Scheduler.MiddayCadence)
	}
	if cfg.Agent.Mode != "rule" {
		t.Errorf("Agent.Mode = %q, want rule", cfg.Agent.Mode)
	}
	if cfg.Database.Port != 5432 {
		t.Errorf("Database.Port = %d, want 5432", cfg.Database.Port)
	}
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("GATED_TEST_PASSWORD", "s3cret")

	cfg, err := LoadAndValidate(writeConfig(t, strings.Replace(
		minimalConfig, "password: secret", "password: ${GATED_TEST_PASSWORD}", 1)))
	if err != nil {
		t.Fatalf("LoadAndValidate() error = %v", err)
	}
	if cfg.Database.Password != "s3cret" {
		t.Errorf("Database.Password = %q, want expanded env value", cfg.Database.Password)
	}
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := LoadAndValidate(writeConfig(t, minimalConfig+`
freshness:
  bars: 45s
rails:
  min_risk_reward: 1.5
scheduler:
  ib_cadence: 30s
`))
	if err != nil {
		t.Fatalf("LoadAndValidate() error = %v", err)
	}
	if cfg.Freshness.Bars != 45*time.Second {
		t.Errorf("Freshness.Bars = %v, want 45s", cfg.Freshness.Bars)
	}
	if cfg.Rails.MinRiskReward != 1.5 {
		t.Errorf("Rails.MinRiskReward = %v, want 1.5", cfg.Rails.MinRiskReward)
	}
	if cfg.Scheduler.IBCadence != 30*time.Second {
		t.Errorf("Scheduler.IBCadence = %v, want 30s", cfg.Scheduler.IBCadence)
	}
	// Untouched fields keep their defaults.
	if cfg.Freshness.OpenInterest != 120*time.Second {
		t.Errorf("Freshness.OpenInterest = %v, want default 120s", cfg.Freshness.OpenInterest)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := LoadAndValidate(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("LoadAndValidate() on missing file expected error, got nil")
	}
}

func TestValidateFailures(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*GateConfig)
		wantSub string
	}{
		{
			name:    "missing instance id",
			mutate:  func(c *GateConfig) { c.Instance.ID = "" },
			wantSub: "instance.id",
		},
		{
			name:    "no symbols",
			mutate:  func(c *GateConfig) { c.Symbols = nil },
			wantSub: "symbols",
		},
		{
			name:    "missing db password",
			mutate:  func(c *GateConfig) { c.Database.Password = "" },
			wantSub: "database.password",
		},
		{
			name:    "bad timezone",
			mutate:  func(c *GateConfig) { c.Session.Timezone = "Mars/Olympus" },
			wantSub: "session.timezone",
		},
		{
			name:    "bad session time",
			mutate:  func(c *GateConfig) { c.Session.Open = "quarter past nine" },
			wantSub: "session.open",
		},
		{
			name:    "zero freshness budget",
			mutate:  func(c *GateConfig) { c.Freshness.Bars = -time.Second },
			wantSub: "freshness",
		},
		{
			name:    "sub-second cadence",
			mutate:  func(c *GateConfig) { c.Scheduler.IBCadence = 100 * time.Millisecond },
			wantSub: "cadences",
		},
		{
			name:    "remote agent without url",
			mutate:  func(c *GateConfig) { c.Agent.Mode = "remote" },
			wantSub: "agent.url",
		},
		{
			name:    "unknown agent mode",
			mutate:  func(c *GateConfig) { c.Agent.Mode = "oracle" },
			wantSub: "agent.mode",
		},
		{
			name:    "min conns above max",
			mutate:  func(c *GateConfig) { c.Database.MinConns = 50 },
			wantSub: "min_conns",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadWithDefaults(writeConfig(t, minimalConfig))
			if err != nil {
				t.Fatalf("LoadWithDefaults() error = %v", err)
			}
			tt.mutate(cfg)

			err = cfg.Validate()
			if err == nil {
				t.Fatal("Validate() expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("Validate() error = %q, want it to mention %q", err, tt.wantSub)
			}
		})
	}
}
