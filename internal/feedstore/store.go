package feedstore

import (
	"context"
	"errors"
	"time"

	"github.com/pulsar-neuron/gate/internal/model"
)

// ErrBarClosed is returned when a bar write arrives after the bar's
// immutability deadline (window close + grace).
var ErrBarClosed = errors.New("feedstore: bar window closed, write rejected")

// Reader is the query surface consumed by the context assembler.
type Reader interface {
	// LatestBar returns the most recent bar at or before the given instant.
	LatestBar(ctx context.Context, symbol string, tf model.Timeframe, atOrBefore time.Time) (model.Bar, bool, error)

	// RecentBars returns up to n bars at or before the given instant,
	// oldest first.
	RecentBars(ctx context.Context, symbol string, tf model.Timeframe, atOrBefore time.Time, n int) ([]model.Bar, error)

	// LatestOpenInterest returns the most recent open-interest point.
	LatestOpenInterest(ctx context.Context, symbol string, atOrBefore time.Time) (model.OpenInterestPoint, bool, error)

	// LatestChain returns the full chain snapshot (all rows sharing the
	// most recent snapshot timestamp at or before the given instant).
	LatestChain(ctx context.Context, symbol string, atOrBefore time.Time) ([]model.OptionChainRow, bool, error)

	// LatestPulse returns the most recent market-wide breadth/VIX row.
	// Pulses are not keyed by symbol.
	LatestPulse(ctx context.Context, atOrBefore time.Time) (model.MarketPulse, bool, error)

	// Baseline returns the daily baseline for a (symbol, trading day).
	Baseline(ctx context.Context, symbol, tradingDay string) (model.DailyBaseline, bool, error)

	// InitialBalance returns the high/low over bars whose windows fall
	// inside [from, to). ok is false when no bars cover the window.
	InitialBalance(ctx context.Context, symbol string, tf model.Timeframe, from, to time.Time) (hi, lo float64, ok bool, err error)
}

// Writer is the persistence surface. Ingest adapters share the Append
// methods; the core itself only writes baselines, packs and decisions.
type Writer interface {
	// AppendBar inserts a bar. Duplicate (symbol, ts, tf) keys are
	// silently ignored; writes past the immutability deadline return
	// ErrBarClosed and leave the stored row unchanged.
	AppendBar(ctx context.Context, bar model.Bar) error

	// AppendOpenInterest inserts an open-interest point, ignoring duplicates.
	AppendOpenInterest(ctx context.Context, p model.OpenInterestPoint) error

	// AppendChain inserts a chain snapshot's rows, ignoring duplicates.
	AppendChain(ctx context.Context, rows []model.OptionChainRow) error

	// AppendPulse inserts a breadth/VIX row, ignoring duplicates.
	AppendPulse(ctx context.Context, p model.MarketPulse) error

	// WriteBaseline records the daily baseline. The first write per
	// (symbol, trading day) wins; later writes are no-ops.
	WriteBaseline(ctx context.Context, b model.DailyBaseline) error

	// InsertContextPack persists a pack keyed by (symbol, ts). On a key
	// collision the stored pack is returned with inserted=false, so
	// duplicate ticks observe the first writer's result.
	InsertContextPack(ctx context.Context, pack model.ContextPack) (model.ContextPack, bool, error)

	// InsertDecision persists a decision keyed by (symbol, ts) with the
	// same insert-or-fetch semantics as InsertContextPack.
	InsertDecision(ctx context.Context, d model.Decision) (model.Decision, bool, error)
}

// Store combines the read and write surfaces.
type Store interface {
	Reader
	Writer
}
