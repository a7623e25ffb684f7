package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/pulsar-neuron/gate/internal/agent"
	"github.com/pulsar-neuron/gate/internal/config"
	"github.com/pulsar-neuron/gate/internal/contextpack"
	"github.com/pulsar-neuron/gate/internal/feedstore"
	"github.com/pulsar-neuron/gate/internal/freshness"
	"github.com/pulsar-neuron/gate/internal/model"
	"github.com/pulsar-neuron/gate/internal/rails"
	"github.com/pulsar-neuron/gate/internal/session"
	"github.com/pulsar-neuron/gate/internal/sink"
)

func istNow(t *testing.T) time.Time {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	return time.Date(2025, 6, 2, 11, 0, 0, 0, loc)
}

// seedFresh fills the store so every category is fresh at now and a
// baseline already exists for the day.
func seedFresh(t *testing.T, store *feedstore.Memory, now time.Time) {
	t.Helper()
	ctx := context.Background()

	// Backfill with the clock parked before the first bar window, then
	// pin it at now once the history is in.
	store.SetClock(func() time.Time { return time.Time{} })
	defer store.SetClock(func() time.Time { return now })

	lastOpen := now.Add(-30 * time.Second).Add(-5 * time.Minute)
	for i := 24; i >= 0; i-- {
		bar := model.Bar{
			Symbol:    "NIFTY",
			Timestamp: lastOpen.Add(-time.Duration(i) * 5 * time.Minute),
			Timeframe: model.TF5m,
			High:      22530 + float64(24-i),
			Low:       22470 + float64(24-i),
			Close:     22500 + float64(24-i),
		}
		if err := store.AppendBar(ctx, bar); err != nil {
			t.Fatalf("AppendBar() error = %v", err)
		}
	}

	if err := store.AppendOpenInterest(ctx, model.OpenInterestPoint{
		Symbol: "NIFTY", Timestamp: now.Add(-time.Minute), OpenInterest: 1_500_000,
	}); err != nil {
		t.Fatalf("AppendOpenInterest() error = %v", err)
	}

	chainTS := now.Add(-time.Minute)
	expiry := now.Add(72 * time.Hour)
	if err := store.AppendChain(ctx, []model.OptionChainRow{
		{Symbol: "NIFTY", Timestamp: chainTS, Expiry: expiry, Strike: 22500, Side: model.SideCE, LastPrice: 120, OpenInterest: 100},
		{Symbol: "NIFTY", Timestamp: chainTS, Expiry: expiry, Strike: 22500, Side: model.SidePE, LastPrice: 110, OpenInterest: 100},
		{Symbol: "NIFTY", Timestamp: chainTS, Expiry: expiry, Strike: 22800, Side: model.SideCE, LastPrice: 30, OpenInterest: 900},
		{Symbol: "NIFTY", Timestamp: chainTS, Expiry: expiry, Strike: 22200, Side: model.SidePE, LastPrice: 25, OpenInterest: 800},
	}); err != nil {
		t.Fatalf("AppendChain() error = %v", err)
	}

	if err := store.AppendPulse(ctx, model.MarketPulse{
		Timestamp: now.Add(-2 * time.Minute), Advances: 30, Declines: 20, VIX: 13,
	}); err != nil {
		t.Fatalf("AppendPulse() error = %v", err)
	}

	if err := store.WriteBaseline(ctx, model.DailyBaseline{
		Symbol:     "NIFTY",
		TradingDay: "2025-06-02",
		FuturesOI:  1_400_000,
		IBHigh:     22510,
		IBLow:      22420,
	}); err != nil {
		t.Fatalf("WriteBaseline() error = %v", err)
	}
}

func newScheduler(store *feedstore.Memory, proposer agent.Agent) *Scheduler {
	logger := slog.Default()
	cal := session.Default()
	assembler := contextpack.New(store, freshness.DefaultBudgets(), nil, model.TF5m, cal.Loc, logger)
	verifier := rails.New(rails.DefaultConfig(), cal)
	decisionSink := sink.New(store, nil, cal.Loc, logger)

	return New(config.SchedulerConfig{}, []string{"NIFTY"}, cal, Deps{
		Store:     store,
		Assembler: assembler,
		Agent:     proposer,
		Verifier:  verifier,
		Positions: rails.NewMemoryBook(),
		Sink:      decisionSink,
		Logger:    logger,
	})
}

// storedDecision fetches the decision persisted for (symbol, ts) via a
// sentinel insert that is expected to lose.
func storedDecision(t *testing.T, store *feedstore.Memory, symbol string, ts time.Time) model.Decision {
	t.Helper()
	d, inserted, err := store.InsertDecision(context.Background(), model.Decision{Symbol: symbol, Timestamp: ts})
	if err != nil {
		t.Fatalf("InsertDecision() sentinel error = %v", err)
	}
	if inserted {
		t.Fatal("no decision was persisted for the tick")
	}
	return d
}

func TestRunTickApprovedAction(t *testing.T) {
	now := istNow(t)
	store := feedstore.NewMemory()
	seedFresh(t, store, now)

	proposer := agent.Func(func(_ context.Context, pack model.ContextPack) (model.Proposal, error) {
		return model.Proposal{
			Action:         model.ActionLong,
			Confidence:     70,
			ChosenStrategy: "orb_breakout",
			RiskReward:     2.0,
		}, nil
	})

	s := newScheduler(store, proposer)
	s.SetClock(func() time.Time { return now })
	s.runTick(context.Background(), s.logger, "NIFTY", now, session.PhaseMidday)

	d := storedDecision(t, store, "NIFTY", now)
	if d.Action != model.ActionLong {
		t.Errorf("Action = %q, want long", d.Action)
	}
	if d.Confidence != 70 || d.ChosenStrategy != "orb_breakout" {
		t.Errorf("decision = %+v", d)
	}
	if len(d.Reasons) != 0 {
		t.Errorf("Reasons = %v, want empty on approval", d.Reasons)
	}
	if !d.ContextRef.Equal(now) {
		t.Errorf("ContextRef = %v, want %v", d.ContextRef, now)
	}
}

func TestRunTickStalePackSkipsAgent(t *testing.T) {
	now := istNow(t)
	store := feedstore.NewMemory() // empty: every category missing

	agentCalled := false
	proposer := agent.Func(func(_ context.Context, _ model.ContextPack) (model.Proposal, error) {
		agentCalled = true
		return model.Proposal{Action: model.ActionLong, RiskReward: 2}, nil
	})

	s := newScheduler(store, proposer)
	s.runTick(context.Background(), s.logger, "NIFTY", now, session.PhaseMidday)

	if agentCalled {
		t.Error("agent was called for a stale pack")
	}

	d := storedDecision(t, store, "NIFTY", now)
	if d.Action != model.ActionWait {
		t.Errorf("Action = %q, want wait", d.Action)
	}
	if len(d.Reasons) == 0 || d.Reasons[0] != string(rails.ReasonFreshnessFail) {
		t.Errorf("Reasons = %v, want [FreshnessFail]", d.Reasons)
	}
}

func TestRunTickAgentUnavailable(t *testing.T) {
	now := istNow(t)
	store := feedstore.NewMemory()
	seedFresh(t, store, now)

	proposer := agent.Func(func(_ context.Context, _ model.ContextPack) (model.Proposal, error) {
		return model.Proposal{}, agent.ErrUnavailable
	})

	s := newScheduler(store, proposer)
	s.SetClock(func() time.Time { return now })
	s.runTick(context.Background(), s.logger, "NIFTY", now, session.PhaseMidday)

	d := storedDecision(t, store, "NIFTY", now)
	if d.Action != model.ActionWait {
		t.Errorf("Action = %q, want wait", d.Action)
	}
	if len(d.Reasons) == 0 || d.Reasons[0] != "AgentUnavailable" {
		t.Errorf("Reasons = %v, want [AgentUnavailable]", d.Reasons)
	}
}

func TestRunTickRejectedByRails(t *testing.T) {
	now := istNow(t)
	store := feedstore.NewMemory()
	seedFresh(t, store, now)

	proposer := agent.Func(func(_ context.Context, _ model.ContextPack) (model.Proposal, error) {
		return model.Proposal{Action: model.ActionLong, Confidence: 80, RiskReward: 0.9}, nil
	})

	s := newScheduler(store, proposer)
	s.SetClock(func() time.Time { return now })
	s.runTick(context.Background(), s.logger, "NIFTY", now, session.PhaseMidday)

	d := storedDecision(t, store, "NIFTY", now)
	if d.Action != model.ActionWait {
		t.Errorf("Action = %q, want wait after rejection", d.Action)
	}
	if len(d.Reasons) == 0 || d.Reasons[0] != string(rails.ReasonRiskRewardTooLow) {
		t.Errorf("Reasons = %v, want [RiskRewardTooLow]", d.Reasons)
	}
	if len(d.Overrides) == 0 {
		t.Error("Overrides empty, want the guard detail preserved")
	}
}

func TestRunTickDuplicateKeepsFirstDecision(t *testing.T) {
	now := istNow(t)
	store := feedstore.NewMemory()
	seedFresh(t, store, now)

	actions := []model.Action{model.ActionLong, model.ActionShort}
	call := 0
	proposer := agent.Func(func(_ context.Context, _ model.ContextPack) (model.Proposal, error) {
		a := actions[call]
		call++
		return model.Proposal{Action: a, Confidence: 70, RiskReward: 2}, nil
	})

	s := newScheduler(store, proposer)
	s.SetClock(func() time.Time { return now })
	s.runTick(context.Background(), s.logger, "NIFTY", now, session.PhaseMidday)
	s.runTick(context.Background(), s.logger, "NIFTY", now, session.PhaseMidday)

	d := storedDecision(t, store, "NIFTY", now)
	if d.Action != model.ActionLong {
		t.Errorf("Action = %q, want the first writer's long", d.Action)
	}
}

// A halt landing while a tick is in flight must discard that tick:
// nothing persisted, nothing published.
func TestHaltMidTickDiscardsDecision(t *testing.T) {
	now := istNow(t)
	store := feedstore.NewMemory()
	seedFresh(t, store, now)

	var s *Scheduler
	proposer := agent.Func(func(_ context.Context, _ model.ContextPack) (model.Proposal, error) {
		s.Halt()
		return model.Proposal{Action: model.ActionLong, Confidence: 70, RiskReward: 2}, nil
	})
	s = newScheduler(store, proposer)
	s.SetClock(func() time.Time { return now })
	s.runTick(context.Background(), s.logger, "NIFTY", now, session.PhaseMidday)

	// A sentinel insert landing means no decision was written for the tick.
	_, inserted, err := store.InsertDecision(context.Background(), model.Decision{Symbol: "NIFTY", Timestamp: now})
	if err != nil {
		t.Fatalf("InsertDecision() sentinel error = %v", err)
	}
	if !inserted {
		t.Error("a decision was persisted after the kill switch engaged mid-tick")
	}
}

func TestMaybeCaptureBaseline(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	open := time.Date(2025, 6, 2, 9, 15, 0, 0, loc)
	now := time.Date(2025, 6, 2, 10, 20, 0, 0, loc)

	store := feedstore.NewMemory()
	store.SetClock(func() time.Time { return time.Time{} })
	ctx := context.Background()

	// Bars spanning the initial balance window.
	for i := 0; i < 12; i++ {
		bar := model.Bar{
			Symbol:    "NIFTY",
			Timestamp: open.Add(time.Duration(i) * 5 * time.Minute),
			Timeframe: model.TF5m,
			High:      22500 + float64(i*10),
			Low:       22400 - float64(i*5),
			Close:     22450,
		}
		if err := store.AppendBar(ctx, bar); err != nil {
			t.Fatalf("AppendBar() error = %v", err)
		}
	}

	// Open interest on record before the 09:20 cutoff.
	if err := store.AppendOpenInterest(ctx, model.OpenInterestPoint{
		Symbol: "NIFTY", Timestamp: open.Add(3 * time.Minute), OpenInterest: 1_234_567,
	}); err != nil {
		t.Fatalf("AppendOpenInterest() error = %v", err)
	}

	s := newScheduler(store, agent.Func(func(_ context.Context, _ model.ContextPack) (model.Proposal, error) {
		return model.WaitProposal("noop"), nil
	}))
	s.SetClock(func() time.Time { return now })
	s.maybeCaptureBaseline(ctx, s.logger, "NIFTY", now)

	b, ok, err := store.Baseline(ctx, "NIFTY", "2025-06-02")
	if err != nil || !ok {
		t.Fatalf("Baseline() = %v, %v", ok, err)
	}
	if b.IBHigh != 22610 { // highest of bars 0..11 (11*10 over 22500)
		t.Errorf("IBHigh = %v, want 22610", b.IBHigh)
	}
	if b.IBLow != 22345 { // lowest of bars 0..11 (11*5 under 22400)
		t.Errorf("IBLow = %v, want 22345", b.IBLow)
	}
	if b.FuturesOI != 1_234_567 {
		t.Errorf("FuturesOI = %v, want the pre-cutoff point", b.FuturesOI)
	}
}

func TestMaybeCaptureBaselineBeforeIBEnd(t *testing.T) {
	loc, _ := time.LoadLocation("Asia/Kolkata")
	now := time.Date(2025, 6, 2, 9, 45, 0, 0, loc)

	store := feedstore.NewMemory()
	s := newScheduler(store, agent.Func(func(_ context.Context, _ model.ContextPack) (model.Proposal, error) {
		return model.WaitProposal("noop"), nil
	}))
	s.maybeCaptureBaseline(context.Background(), s.logger, "NIFTY", now)

	if _, ok, _ := store.Baseline(context.Background(), "NIFTY", "2025-06-02"); ok {
		t.Error("baseline captured before the IB window closed")
	}
}

func TestCadenceFor(t *testing.T) {
	s := newScheduler(feedstore.NewMemory(), nil)

	tests := []struct {
		phase session.Phase
		want  time.Duration
	}{
		{session.PhaseInitialBalance, 45 * time.Second},
		{session.PhaseMidday, 75 * time.Second},
		{session.PhaseLate, 60 * time.Second},
	}
	for _, tt := range tests {
		if got := s.cadenceFor(tt.phase); got != tt.want {
			t.Errorf("cadenceFor(%v) = %v, want %v", tt.phase, got, tt.want)
		}
	}
}

func TestKillSwitch(t *testing.T) {
	s := newScheduler(feedstore.NewMemory(), nil)

	if s.Halted() {
		t.Fatal("Halted() = true before Halt()")
	}
	s.Halt()
	if !s.Halted() {
		t.Fatal("Halted() = false after Halt()")
	}
	s.Resume()
	if s.Halted() {
		t.Fatal("Halted() = true after Resume()")
	}
}

func TestAbandoned(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	if abandoned(ctx, errors.New("other")) {
		t.Error("abandoned() = true for live context and unrelated error")
	}
	cancel()
	if !abandoned(ctx, nil) {
		t.Error("abandoned() = false for cancelled context")
	}
	if !abandoned(context.Background(), context.DeadlineExceeded) {
		t.Error("abandoned() = false for DeadlineExceeded")
	}
}
