package agent

import (
	"context"
	"reflect"
	"testing"

	"github.com/pulsar-neuron/gate/internal/model"
)

func packWith(hints model.ContextHints, close float64) model.ContextPack {
	return model.ContextPack{
		Symbol: "NIFTY",
		OK:     true,
		Payload: model.ContextPayload{
			LastBar: &model.Bar{Symbol: "NIFTY", Close: close},
			Hints:   hints,
		},
	}
}

func TestRuleAgentPropose(t *testing.T) {
	a := NewRuleAgent(DefaultRuleConfig())

	tests := []struct {
		name         string
		pack         model.ContextPack
		wantAction   model.Action
		wantStrategy string
	}{
		{
			name:         "orb breakout up",
			pack:         packWith(model.ContextHints{SMA20: 22400, Slope5: 1.5, ORBState: "breakout_up"}, 22550),
			wantAction:   model.ActionLong,
			wantStrategy: "orb_breakout",
		},
		{
			name:         "orb breakout down",
			pack:         packWith(model.ContextHints{SMA20: 22600, Slope5: -1.5, ORBState: "breakout_down"}, 22450),
			wantAction:   model.ActionShort,
			wantStrategy: "orb_breakout",
		},
		{
			name:         "breakout without slope agreement waits",
			pack:         packWith(model.ContextHints{SMA20: 22400, Slope5: -0.5, ORBState: "breakout_up"}, 22450),
			wantAction:   model.ActionWait,
			wantStrategy: "",
		},
		{
			name:         "trend continuation long",
			pack:         packWith(model.ContextHints{SMA20: 22400, Slope5: 0.8, ORBState: "inside"}, 22500),
			wantAction:   model.ActionLong,
			wantStrategy: "trend_continuation",
		},
		{
			name:         "trend continuation short",
			pack:         packWith(model.ContextHints{SMA20: 22600, Slope5: -0.8, ORBState: "inside"}, 22500),
			wantAction:   model.ActionShort,
			wantStrategy: "trend_continuation",
		},
		{
			name:       "mixed evidence waits",
			pack:       packWith(model.ContextHints{SMA20: 22400, Slope5: -0.2, ORBState: "inside"}, 22500),
			wantAction: model.ActionWait,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prop, err := a.Propose(context.Background(), tt.pack)
			if err != nil {
				t.Fatalf("Propose() error = %v", err)
			}
			if prop.Action != tt.wantAction {
				t.Errorf("Action = %q, want %q", prop.Action, tt.wantAction)
			}
			if prop.ChosenStrategy != tt.wantStrategy {
				t.Errorf("ChosenStrategy = %q, want %q", prop.ChosenStrategy, tt.wantStrategy)
			}
			if prop.Action.Opens() && prop.RiskReward != 2.0 {
				t.Errorf("RiskReward = %v, want 2.0", prop.RiskReward)
			}
		})
	}
}

func TestRuleAgentNoHistoryWaits(t *testing.T) {
	a := NewRuleAgent(DefaultRuleConfig())

	prop, err := a.Propose(context.Background(), model.ContextPack{Symbol: "NIFTY", OK: true})
	if err != nil {
		t.Fatalf("Propose() error = %v", err)
	}
	if prop.Action != model.ActionWait {
		t.Errorf("Action = %q, want wait without bar history", prop.Action)
	}
}

// Identical packs must yield identical proposals.
func TestRuleAgentDeterministic(t *testing.T) {
	a := NewRuleAgent(DefaultRuleConfig())
	pack := packWith(model.ContextHints{SMA20: 22400, Slope5: 1.5, ORBState: "breakout_up"}, 22550)

	first, err := a.Propose(context.Background(), pack)
	if err != nil {
		t.Fatalf("Propose() error = %v", err)
	}
	second, err := a.Propose(context.Background(), pack)
	if err != nil {
		t.Fatalf("Propose() error = %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Propose() not deterministic:\n first = %+v\nsecond = %+v", first, second)
	}
}
