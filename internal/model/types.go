package model

import (
	"time"

	"github.com/google/uuid"
)

// -----------------------------------------------------------------------------
// Enums
// -----------------------------------------------------------------------------

// Action is the trading action recommended for a symbol.
type Action string

const (
	ActionLong  Action = "long"
	ActionShort Action = "short"
	ActionWait  Action = "wait"
)

// Opens reports whether the action would open a new position.
func (a Action) Opens() bool {
	return a == ActionLong || a == ActionShort
}

// Valid reports whether the action is one of the known values.
func (a Action) Valid() bool {
	return a == ActionLong || a == ActionShort || a == ActionWait
}

// OptionSide is the option type of a chain row.
type OptionSide string

const (
	SideCE OptionSide = "CE" // call
	SidePE OptionSide = "PE" // put
)

// BaselineTag classifies an open-interest point within the trading day.
type BaselineTag string

const (
	TagOpenBaseline BaselineTag = "open_baseline" // assigned once per day at the 09:20 cutoff
	TagIntraday     BaselineTag = "intraday"
	TagClose        BaselineTag = "close"
)

// Category identifies a feed data category for freshness accounting.
type Category string

const (
	CategoryBars         Category = "bars"
	CategoryOpenInterest Category = "open_interest"
	CategoryOptionChain  Category = "option_chain"
	CategoryBreadthVIX   Category = "breadth_vix"
)

// Categories lists every category required for a context pack, in
// evaluation order.
var Categories = []Category{
	CategoryBars,
	CategoryOpenInterest,
	CategoryOptionChain,
	CategoryBreadthVIX,
}

// Timeframe is a bar aggregation window.
type Timeframe string

const (
	TF1m  Timeframe = "1m"
	TF5m  Timeframe = "5m"
	TF15m Timeframe = "15m"
)

// Duration returns the wall-clock span of one bar.
func (tf Timeframe) Duration() time.Duration {
	switch tf {
	case TF1m:
		return time.Minute
	case TF5m:
		return 5 * time.Minute
	case TF15m:
		return 15 * time.Minute
	}
	return 0
}

// -----------------------------------------------------------------------------
// Time-Series Types
// -----------------------------------------------------------------------------

// BarImmutableGrace is how long after a bar's window closes that writes
// to it are still accepted (late feed publishes).
const BarImmutableGrace = 10 * time.Second

// Bar is a single OHLCV candle. Bars are append-only: once the window
// has closed plus BarImmutableGrace, the stored row never changes.
type Bar struct {
	Symbol    string    `json:"symbol"`
	Timestamp time.Time `json:"ts"` // bar open time
	Timeframe Timeframe `json:"tf"`
	Open      float64   `json:"o"`
	High      float64   `json:"h"`
	Low       float64   `json:"l"`
	Close     float64   `json:"c"`
	Volume    int64     `json:"v"`
}

// WindowClose returns the instant the bar's window ends.
func (b Bar) WindowClose() time.Time {
	return b.Timestamp.Add(b.Timeframe.Duration())
}

// ImmutableAt returns the instant after which the bar may no longer be written.
func (b Bar) ImmutableAt() time.Time {
	return b.WindowClose().Add(BarImmutableGrace)
}

// OpenInterestPoint is a futures open-interest observation.
// One row per (symbol, timestamp).
type OpenInterestPoint struct {
	Symbol       string      `json:"symbol"`
	Timestamp    time.Time   `json:"ts"`
	Price        float64     `json:"price"`
	OpenInterest int64       `json:"oi"`
	BaselineTag  BaselineTag `json:"baseline_tag"`
}

// Greeks holds option sensitivities supplied by the feature library.
type Greeks struct {
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Theta float64 `json:"theta"`
	Vega  float64 `json:"vega"`
}

// OptionChainRow is one strike/side of an option chain snapshot.
// A full snapshot is the set of rows sharing (symbol, timestamp, expiry).
type OptionChainRow struct {
	Symbol       string     `json:"symbol"`
	Timestamp    time.Time  `json:"ts"`
	Expiry       time.Time  `json:"expiry"`
	Strike       float64    `json:"strike"`
	Side         OptionSide `json:"side"`
	LastPrice    float64    `json:"last_price"`
	ImpliedVol   float64    `json:"iv"`
	OpenInterest int64      `json:"oi"`
	DeltaOI      int64      `json:"delta_oi"`
	Volume       int64      `json:"volume"`
	Greeks       Greeks     `json:"greeks"`
}

// MarketPulse is a market-wide breadth/volatility observation.
type MarketPulse struct {
	Timestamp time.Time `json:"ts"`
	Advances  int       `json:"advances"`
	Declines  int       `json:"declines"`
	VIX       float64   `json:"vix"`
}

// -----------------------------------------------------------------------------
// Daily Reference Types
// -----------------------------------------------------------------------------

// DailyBaseline holds per-day reference levels. Written at most once per
// (symbol, trading day), immutable thereafter.
type DailyBaseline struct {
	Symbol     string    `json:"symbol"`
	TradingDay string    `json:"trading_day"` // YYYY-MM-DD in market time
	FuturesOI  int64     `json:"futures_oi"`  // open-interest baseline at the 09:20 cutoff
	IBHigh     float64   `json:"ib_high"`     // initial-balance window high
	IBLow      float64   `json:"ib_low"`      // initial-balance window low
	CapturedAt time.Time `json:"captured_at"`
}

// -----------------------------------------------------------------------------
// Decision Pipeline Types
// -----------------------------------------------------------------------------

// CategoryAge records how stale one category was at evaluation time.
type CategoryAge struct {
	AgeSeconds float64 `json:"age_s"`
	OK         bool    `json:"ok"`
	Missing    bool    `json:"missing,omitempty"`
}

// FreshnessSnapshot is the per-category freshness verdict folded into a pack.
type FreshnessSnapshot struct {
	Bars         CategoryAge `json:"bars"`
	OpenInterest CategoryAge `json:"open_interest"`
	OptionChain  CategoryAge `json:"option_chain"`
	BreadthVIX   CategoryAge `json:"breadth_vix"`
}

// ContextHints are the derived values shared with the proposal agent.
type ContextHints struct {
	SMA20       float64 `json:"sma20_5m"`
	Slope5      float64 `json:"slope_5m"`
	PriceVsVWAP string  `json:"price_vs_vwap,omitempty"`
	ORBState    string  `json:"orb,omitempty"`

	// Level geometry from the option chain. Zero values mean "unknown";
	// the wall rail passes when geometry is unknown rather than guess.
	ExpectedMovePts float64 `json:"expected_move_pts,omitempty"`
	WallAbove       float64 `json:"wall_above,omitempty"`
	WallBelow       float64 `json:"wall_below,omitempty"`
}

// ContextPayload is the structured snapshot carried by a ContextPack.
type ContextPayload struct {
	LastBar      *Bar               `json:"last_bar,omitempty"`
	OpenInterest *OpenInterestPoint `json:"open_interest,omitempty"`
	ChainAt      time.Time          `json:"chain_at,omitzero"`
	ChainRows    int                `json:"chain_rows,omitempty"`
	Pulse        *MarketPulse       `json:"pulse,omitempty"`
	Baseline     *DailyBaseline     `json:"baseline,omitempty"`
	Freshness    FreshnessSnapshot  `json:"freshness"`
	Hints        ContextHints       `json:"hints"`
}

// ContextPack is the immutable market snapshot for one (symbol, tick).
// OK is the AND of every category's freshness verdict; when false the
// payload still records which categories breached.
type ContextPack struct {
	Symbol    string         `json:"symbol"`
	Timestamp time.Time      `json:"ts"`
	OK        bool           `json:"ok"`
	Payload   ContextPayload `json:"payload"`
}

// Proposal is a candidate action produced by a proposal agent.
type Proposal struct {
	Action         Action   `json:"action"`
	Confidence     int      `json:"confidence"` // 0..100
	ChosenStrategy string   `json:"chosen_strategy,omitempty"`
	Entry          float64  `json:"entry,omitempty"` // proposed entry level
	RiskReward     float64  `json:"risk_reward"`
	BullCase       []string `json:"bull_case,omitempty"`
	BearCase       []string `json:"bear_case,omitempty"`
	Reasons        []string `json:"reasons,omitempty"`
}

// WaitProposal returns a wait proposal carrying a single reason.
func WaitProposal(reason string) Proposal {
	return Proposal{Action: ActionWait, Reasons: []string{reason}}
}

// Decision is the final persisted outcome of one tick. It references
// exactly one ContextPack by (Symbol, ContextRef); a non-wait action
// only exists when that pack was OK and every rail passed.
type Decision struct {
	ID             uuid.UUID `json:"id"`
	Symbol         string    `json:"symbol"`
	Timestamp      time.Time `json:"ts"`
	Action         Action    `json:"action"`
	Confidence     int       `json:"confidence"`
	ChosenStrategy string    `json:"chosen_strategy,omitempty"`
	Reasons        []string  `json:"reasons,omitempty"`
	BullCase       []string  `json:"bull_case,omitempty"`
	BearCase       []string  `json:"bear_case,omitempty"`
	Overrides      []string  `json:"overrides,omitempty"`
	ContextRef     time.Time `json:"context_ref"` // timestamp of the referenced pack
}

// PrimaryReason returns the reason rendered in the one-line summary:
// the first recorded reason, else the chosen strategy, else the action.
func (d Decision) PrimaryReason() string {
	if len(d.Reasons) > 0 {
		return d.Reasons[0]
	}
	if d.ChosenStrategy != "" {
		return d.ChosenStrategy
	}
	return string(d.Action)
}
