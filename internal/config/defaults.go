package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultTimezone       = "Asia/Kolkata"
	DefaultSessionOpen    = "09:15"
	DefaultIBEnd          = "10:15"
	DefaultNoNewAfter     = "14:45"
	DefaultSessionClose   = "15:30"
	DefaultBaselineCutoff = "09:20"

	DefaultDBPort    = 5432
	DefaultDBSSLMode = "prefer"
	DefaultMaxConns  = 10
	DefaultMinConns  = 2

	DefaultBarsBudget         = 90 * time.Second
	DefaultOpenInterestBudget = 120 * time.Second
	DefaultOptionChainBudget  = 180 * time.Second
	DefaultBreadthVIXBudget   = 300 * time.Second

	DefaultMinRiskReward  = 1.2
	DefaultMaxPositions   = 2
	DefaultWallDistanceEM = 0.3

	// Cadences sit inside the 30-60s IB / 60-90s post-IB operating bands.
	DefaultIBCadence     = 45 * time.Second
	DefaultMiddayCadence = 75 * time.Second
	DefaultLateCadence   = 60 * time.Second
	DefaultTimeframe     = "5m"

	DefaultAgentMode    = "rule"
	DefaultAgentTimeout = 20 * time.Second
	DefaultAgentRetries = 2
	DefaultAgentRate    = 30 // calls per minute

	DefaultPublishPath    = "/decisions"
	DefaultPublishTimeout = 5 * time.Second
	DefaultMetricsPort    = 9090
	DefaultMetricsPath    = "/metrics"
)

func (c *GateConfig) applyDefaults() {
	// Session defaults
	if c.Session.Timezone == "" {
		c.Session.Timezone = DefaultTimezone
	}
	if c.Session.Open == "" {
		c.Session.Open = DefaultSessionOpen
	}
	if c.Session.IBEnd == "" {
		c.Session.IBEnd = DefaultIBEnd
	}
	if c.Session.NoNewAfter == "" {
		c.Session.NoNewAfter = DefaultNoNewAfter
	}
	if c.Session.Close == "" {
		c.Session.Close = DefaultSessionClose
	}
	if c.Session.BaselineCutoff == "" {
		c.Session.BaselineCutoff = DefaultBaselineCutoff
	}

	// Database defaults
	if c.Database.Port == 0 {
		c.Database.Port = DefaultDBPort
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = DefaultDBSSLMode
	}
	if c.Database.MaxConns == 0 {
		c.Database.MaxConns = DefaultMaxConns
	}
	if c.Database.MinConns == 0 {
		c.Database.MinConns = DefaultMinConns
	}

	// Freshness defaults
	if c.Freshness.Bars == 0 {
		c.Freshness.Bars = DefaultBarsBudget
	}
	if c.Freshness.OpenInterest == 0 {
		c.Freshness.OpenInterest = DefaultOpenInterestBudget
	}
	if c.Freshness.OptionChain == 0 {
		c.Freshness.OptionChain = DefaultOptionChainBudget
	}
	if c.Freshness.BreadthVIX == 0 {
		c.Freshness.BreadthVIX = DefaultBreadthVIXBudget
	}

	// Rails defaults
	if c.Rails.MinRiskReward == 0 {
		c.Rails.MinRiskReward = DefaultMinRiskReward
	}
	if c.Rails.MaxPositions == 0 {
		c.Rails.MaxPositions = DefaultMaxPositions
	}
	if c.Rails.WallDistanceEM == 0 {
		c.Rails.WallDistanceEM = DefaultWallDistanceEM
	}

	// Scheduler defaults
	if c.Scheduler.IBCadence == 0 {
		c.Scheduler.IBCadence = DefaultIBCadence
	}
	if c.Scheduler.MiddayCadence == 0 {
		c.Scheduler.MiddayCadence = DefaultMiddayCadence
	}
	if c.Scheduler.LateCadence == 0 {
		c.Scheduler.LateCadence = DefaultLateCadence
	}
	if c.Scheduler.Timeframe == "" {
		c.Scheduler.Timeframe = DefaultTimeframe
	}

	// Agent defaults
	if c.Agent.Mode == "" {
		c.Agent.Mode = DefaultAgentMode
	}
	if c.Agent.Timeout == 0 {
		c.Agent.Timeout = DefaultAgentTimeout
	}
	if c.Agent.MaxRetries == 0 {
		c.Agent.MaxRetries = DefaultAgentRetries
	}
	if c.Agent.RatePerMin == 0 {
		c.Agent.RatePerMin = DefaultAgentRate
	}

	// Publish/metrics defaults
	if c.Publish.Path == "" {
		c.Publish.Path = DefaultPublishPath
	}
	if c.Publish.WriteTimeout == 0 {
		c.Publish.WriteTimeout = DefaultPublishTimeout
	}
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
}
