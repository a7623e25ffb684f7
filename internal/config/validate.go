package config

import (
	"errors"
	"fmt"
	"time"
)

// Validate checks that all required fields are set and values are valid.
func (c *GateConfig) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if len(c.Symbols) == 0 {
		return errors.New("symbols must list at least one symbol")
	}

	if err := c.Database.validate("database"); err != nil {
		return err
	}

	if _, err := time.LoadLocation(c.Session.Timezone); err != nil {
		return fmt.Errorf("session.timezone %q is not a valid location: %w", c.Session.Timezone, err)
	}
	for _, f := range []struct{ name, v string }{
		{"session.open", c.Session.Open},
		{"session.ib_end", c.Session.IBEnd},
		{"session.no_new_after", c.Session.NoNewAfter},
		{"session.close", c.Session.Close},
		{"session.baseline_cutoff", c.Session.BaselineCutoff},
	} {
		if _, err := time.Parse("15:04", f.v); err != nil {
			return fmt.Errorf("%s must be HH:MM, got %q", f.name, f.v)
		}
	}

	if c.Freshness.Bars <= 0 || c.Freshness.OpenInterest <= 0 ||
		c.Freshness.OptionChain <= 0 || c.Freshness.BreadthVIX <= 0 {
		return errors.New("freshness budgets must be positive")
	}

	if c.Rails.MinRiskReward <= 0 {
		return errors.New("rails.min_risk_reward must be > 0")
	}
	if c.Rails.MaxPositions < 1 {
		return errors.New("rails.max_positions must be >= 1")
	}
	if c.Rails.WallDistanceEM <= 0 {
		return errors.New("rails.wall_distance_em must be > 0")
	}

	if c.Scheduler.IBCadence < time.Second || c.Scheduler.MiddayCadence < time.Second ||
		c.Scheduler.LateCadence < time.Second {
		return errors.New("scheduler cadences must be at least 1s")
	}

	switch c.Agent.Mode {
	case "rule":
	case "remote":
		if c.Agent.URL == "" {
			return errors.New("agent.url is required when agent.mode is remote")
		}
	default:
		return fmt.Errorf("agent.mode must be rule or remote, got %q", c.Agent.Mode)
	}

	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port)
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
