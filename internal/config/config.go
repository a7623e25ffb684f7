package config

import "time"

// GateConfig is the root configuration for a decision-gate instance.
type GateConfig struct {
	Instance  InstanceConfig  `yaml:"instance"`
	Database  DBConfig        `yaml:"database"`
	Symbols   []string        `yaml:"symbols"`
	Session   SessionConfig   `yaml:"session"`
	Freshness FreshnessConfig `yaml:"freshness"`
	Rails     RailsConfig     `yaml:"rails"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Agent     AgentConfig     `yaml:"agent"`
	Publish   PublishConfig   `yaml:"publish"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// InstanceConfig identifies this gate instance.
type InstanceConfig struct {
	ID string `yaml:"id"`
	AZ string `yaml:"az"`
}

// DBConfig holds the time-series database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// SessionConfig describes the trading session in market-local time.
// Times are "HH:MM" strings in the configured timezone.
type SessionConfig struct {
	Timezone       string `yaml:"timezone"`
	Open           string `yaml:"open"`
	IBEnd          string `yaml:"ib_end"`
	NoNewAfter     string `yaml:"no_new_after"`
	Close          string `yaml:"close"`
	BaselineCutoff string `yaml:"baseline_cutoff"`
}

// FreshnessConfig holds per-category SLA budgets.
type FreshnessConfig struct {
	Bars         time.Duration `yaml:"bars"`
	OpenInterest time.Duration `yaml:"open_interest"`
	OptionChain  time.Duration `yaml:"option_chain"`
	BreadthVIX   time.Duration `yaml:"breadth_vix"`
}

// RailsConfig holds safety-rail thresholds.
type RailsConfig struct {
	MinRiskReward  float64 `yaml:"min_risk_reward"`
	MaxPositions   int     `yaml:"max_positions"`
	WallDistanceEM float64 `yaml:"wall_distance_em"` // min entry-to-wall distance, in expected moves
}

// SchedulerConfig holds tick cadences per session phase.
type SchedulerConfig struct {
	IBCadence     time.Duration `yaml:"ib_cadence"`
	MiddayCadence time.Duration `yaml:"midday_cadence"`
	LateCadence   time.Duration `yaml:"late_cadence"`
	Timeframe     string        `yaml:"timeframe"` // short-bar timeframe driving evaluation
}

// AgentConfig selects and configures the proposal agent.
type AgentConfig struct {
	Mode       string        `yaml:"mode"` // "rule" or "remote"
	URL        string        `yaml:"url"`
	APIKey     string        `yaml:"api_key"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
	RatePerMin int           `yaml:"rate_per_min"`
}

// PublishConfig holds the decision publish (websocket) endpoint settings.
type PublishConfig struct {
	Path         string        `yaml:"path"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// MetricsConfig holds the health/metrics HTTP settings.
type MetricsConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}
