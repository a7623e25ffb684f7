package contextpack

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pulsar-neuron/gate/internal/feedstore"
	"github.com/pulsar-neuron/gate/internal/freshness"
	"github.com/pulsar-neuron/gate/internal/model"
)

// Hint derivation windows, in bars.
const (
	smaWindow   = 20
	slopeWindow = 5
	recentBars  = 60
)

// Assembler builds context packs from the feed store.
type Assembler struct {
	store   feedstore.Store
	budgets freshness.Budgets
	levels  LevelSource
	tf      model.Timeframe
	loc     *time.Location
	logger  *slog.Logger
}

// New creates an Assembler. A nil levels source falls back to ChainLevels,
// a nil location to UTC.
func New(store feedstore.Store, budgets freshness.Budgets, levels LevelSource, tf model.Timeframe, loc *time.Location, logger *slog.Logger) *Assembler {
	if levels == nil {
		levels = ChainLevels{}
	}
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{
		store:   store,
		budgets: budgets,
		levels:  levels,
		tf:      tf,
		loc:     loc,
		logger:  logger,
	}
}

// Build assembles and persists the pack for (symbol, now). When a pack
// for that key already exists the stored pack is returned as-is and no
// second row is written.
func (a *Assembler) Build(ctx context.Context, symbol string, now time.Time) (model.ContextPack, error) {
	var payload model.ContextPayload

	// Bars. Age is measured from the bar's window close, the instant the
	// closed bar becomes publishable.
	bar, haveBar, err := a.store.LatestBar(ctx, symbol, a.tf, now)
	if err != nil {
		return model.ContextPack{}, fmt.Errorf("latest bar: %w", err)
	}
	var barAt time.Time
	if haveBar {
		payload.LastBar = &bar
		barAt = bar.WindowClose()
	}
	barRep := a.budgets.Evaluate(model.CategoryBars, barAt, now)
	payload.Freshness.Bars = barRep.CategoryAge()

	// Open interest.
	oi, haveOI, err := a.store.LatestOpenInterest(ctx, symbol, now)
	if err != nil {
		return model.ContextPack{}, fmt.Errorf("latest open interest: %w", err)
	}
	var oiAt time.Time
	if haveOI {
		payload.OpenInterest = &oi
		oiAt = oi.Timestamp
	}
	oiRep := a.budgets.Evaluate(model.CategoryOpenInterest, oiAt, now)
	payload.Freshness.OpenInterest = oiRep.CategoryAge()

	// Option chain.
	chain, haveChain, err := a.store.LatestChain(ctx, symbol, now)
	if err != nil {
		return model.ContextPack{}, fmt.Errorf("latest chain: %w", err)
	}
	var chainAt time.Time
	if haveChain {
		chainAt = chain[0].Timestamp
		payload.ChainAt = chainAt
		payload.ChainRows = len(chain)
	}
	chainRep := a.budgets.Evaluate(model.CategoryOptionChain, chainAt, now)
	payload.Freshness.OptionChain = chainRep.CategoryAge()

	// Breadth/VIX.
	pulse, havePulse, err := a.store.LatestPulse(ctx, now)
	if err != nil {
		return model.ContextPack{}, fmt.Errorf("latest pulse: %w", err)
	}
	var pulseAt time.Time
	if havePulse {
		payload.Pulse = &pulse
		pulseAt = pulse.Timestamp
	}
	pulseRep := a.budgets.Evaluate(model.CategoryBreadthVIX, pulseAt, now)
	payload.Freshness.BreadthVIX = pulseRep.CategoryAge()

	// Day baseline: looked up, never recomputed here.
	day := now.In(a.loc).Format("2006-01-02")
	baseline, haveBaseline, err := a.store.Baseline(ctx, symbol, day)
	if err != nil {
		return model.ContextPack{}, fmt.Errorf("baseline: %w", err)
	}
	if haveBaseline {
		payload.Baseline = &baseline
	}

	payload.Hints = a.deriveHints(ctx, symbol, now, payload, chain)

	pack := model.ContextPack{
		Symbol:    symbol,
		Timestamp: now,
		OK:        barRep.OK && oiRep.OK && chainRep.OK && pulseRep.OK,
		Payload:   payload,
	}

	stored, inserted, err := a.store.InsertContextPack(ctx, pack)
	if err != nil {
		return model.ContextPack{}, fmt.Errorf("persist context pack: %w", err)
	}
	if !inserted {
		a.logger.Debug("duplicate tick, returning stored pack",
			"symbol", symbol,
			"ts", now,
		)
	}
	return stored, nil
}

// deriveHints computes the agent-facing hint block: SMA/slope over the
// short-bar tail, ORB state against the day's initial balance, and the
// chain-derived wall/expected-move geometry.
func (a *Assembler) deriveHints(ctx context.Context, symbol string, now time.Time, payload model.ContextPayload, chain []model.OptionChainRow) model.ContextHints {
	var hints model.ContextHints

	bars, err := a.store.RecentBars(ctx, symbol, a.tf, now, recentBars)
	if err != nil {
		a.logger.Warn("recent bars unavailable for hints", "symbol", symbol, "err", err)
	}
	if len(bars) >= smaWindow {
		sum := 0.0
		for _, b := range bars[len(bars)-smaWindow:] {
			sum += b.Close
		}
		hints.SMA20 = sum / smaWindow
	}
	if len(bars) >= slopeWindow {
		hints.Slope5 = (bars[len(bars)-1].Close - bars[len(bars)-slopeWindow].Close) / slopeWindow
	}
	if vwap, ok := volumeWeightedPrice(bars); ok && payload.LastBar != nil {
		switch {
		case payload.LastBar.Close > vwap:
			hints.PriceVsVWAP = "above"
		case payload.LastBar.Close < vwap:
			hints.PriceVsVWAP = "below"
		default:
			hints.PriceVsVWAP = "at"
		}
	}

	if payload.LastBar != nil && payload.Baseline != nil {
		switch {
		case payload.LastBar.Close > payload.Baseline.IBHigh:
			hints.ORBState = "breakout_up"
		case payload.LastBar.Close < payload.Baseline.IBLow:
			hints.ORBState = "breakout_down"
		default:
			hints.ORBState = "inside"
		}
	}

	if payload.LastBar != nil {
		lv := a.levels.Levels(chain, payload.LastBar.Close)
		if lv.OK {
			hints.ExpectedMovePts = lv.ExpectedMove
			hints.WallAbove = lv.WallAbove
			hints.WallBelow = lv.WallBelow
		}
	}

	return hints
}

// volumeWeightedPrice approximates session VWAP from the bar tail.
// ok is false when no volume traded.
func volumeWeightedPrice(bars []model.Bar) (float64, bool) {
	var notional float64
	var volume int64
	for _, b := range bars {
		notional += b.Close * float64(b.Volume)
		volume += b.Volume
	}
	if volume == 0 {
		return 0, false
	}
	return notional / float64(volume), true
}
