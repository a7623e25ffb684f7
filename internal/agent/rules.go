package agent

import (
	"context"
	"fmt"

	"github.com/pulsar-neuron/gate/internal/model"
)

// RuleConfig holds the rule agent's fixed parameters.
type RuleConfig struct {
	RiskReward float64 // RR attached to every directional proposal
}

// DefaultRuleConfig returns the standard rule parameters.
func DefaultRuleConfig() RuleConfig {
	return RuleConfig{RiskReward: 2.0}
}

// RuleAgent is the deterministic proposal agent. It reads only the
// pack's hint block, so identical packs always yield identical
// proposals.
type RuleAgent struct {
	cfg RuleConfig
}

// NewRuleAgent creates a rule-based agent.
func NewRuleAgent(cfg RuleConfig) *RuleAgent {
	if cfg.RiskReward <= 0 {
		cfg.RiskReward = DefaultRuleConfig().RiskReward
	}
	return &RuleAgent{cfg: cfg}
}

// Propose scans the ORB and trend setups, in that priority. Mixed or
// missing evidence yields wait.
func (a *RuleAgent) Propose(_ context.Context, pack model.ContextPack) (model.Proposal, error) {
	hints := pack.Payload.Hints
	bar := pack.Payload.LastBar
	if bar == nil || hints.SMA20 == 0 {
		return model.WaitProposal("insufficient bar history"), nil
	}

	last := bar.Close

	// ORB breakout with trend agreement.
	if hints.ORBState == "breakout_up" && hints.Slope5 > 0 {
		return a.directional(model.ActionLong, "orb_breakout", last, 70,
			fmt.Sprintf("close %.1f above IB high, slope %.2f confirming", last, hints.Slope5),
			"failure back inside the IB range invalidates"), nil
	}
	if hints.ORBState == "breakout_down" && hints.Slope5 < 0 {
		return a.directional(model.ActionShort, "orb_breakout", last, 70,
			"failure back inside the IB range invalidates",
			fmt.Sprintf("close %.1f below IB low, slope %.2f confirming", last, hints.Slope5)), nil
	}

	// Trend continuation.
	if last > hints.SMA20 && hints.Slope5 > 0 {
		return a.directional(model.ActionLong, "trend_continuation", last, 60,
			fmt.Sprintf("close %.1f above sma20 %.1f with positive slope", last, hints.SMA20),
			"loss of sma20 flips bias"), nil
	}
	if last < hints.SMA20 && hints.Slope5 < 0 {
		return a.directional(model.ActionShort, "trend_continuation", last, 60,
			"reclaim of sma20 flips bias",
			fmt.Sprintf("close %.1f below sma20 %.1f with negative slope", last, hints.SMA20)), nil
	}

	p := model.WaitProposal("mixed or weak evidence")
	p.Confidence = 40
	return p, nil
}

func (a *RuleAgent) directional(action model.Action, strategy string, entry float64, confidence int, bull, bear string) model.Proposal {
	return model.Proposal{
		Action:         action,
		Confidence:     confidence,
		ChosenStrategy: strategy,
		Entry:          entry,
		RiskReward:     a.cfg.RiskReward,
		BullCase:       []string{bull},
		BearCase:       []string{bear},
	}
}
