package feedstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pulsar-neuron/gate/internal/model"
)

// Memory is an in-memory Store used by tests and offline replay. It
// enforces the same key-uniqueness and immutability contract as the
// Postgres store.
type Memory struct {
	mu sync.RWMutex

	bars      map[string][]model.Bar // key: symbol|tf, sorted by ts
	oi        map[string][]model.OpenInterestPoint
	chains    map[string][]model.OptionChainRow // sorted by ts, then strike/side
	pulses    []model.MarketPulse
	baselines map[string]model.DailyBaseline // key: symbol|day
	packs     map[string]model.ContextPack   // key: symbol|ts
	decisions map[string]model.Decision

	now func() time.Time
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		bars:      make(map[string][]model.Bar),
		oi:        make(map[string][]model.OpenInterestPoint),
		chains:    make(map[string][]model.OptionChainRow),
		baselines: make(map[string]model.DailyBaseline),
		packs:     make(map[string]model.ContextPack),
		decisions: make(map[string]model.Decision),
		now:       time.Now,
	}
}

// SetClock overrides the wall clock used for bar immutability checks.
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
}

func barKey(symbol string, tf model.Timeframe) string { return symbol + "|" + string(tf) }

func tsKey(symbol string, ts time.Time) string {
	return symbol + "|" + ts.UTC().Format(time.RFC3339Nano)
}

// -----------------------------------------------------------------------------
// Writer
// -----------------------------------------------------------------------------

func (m *Memory) AppendBar(_ context.Context, bar model.Bar) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.now().After(bar.ImmutableAt()) {
		return ErrBarClosed
	}

	key := barKey(bar.Symbol, bar.Timeframe)
	rows := m.bars[key]
	for _, r := range rows {
		if r.Timestamp.Equal(bar.Timestamp) {
			return nil // duplicate key, first write wins
		}
	}
	rows = append(rows, bar)
	sort.Slice(rows, func(i, j int) bool { return rows[i].Timestamp.Before(rows[j].Timestamp) })
	m.bars[key] = rows
	return nil
}

func (m *Memory) AppendOpenInterest(_ context.Context, p model.OpenInterestPoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rows := m.oi[p.Symbol]
	for _, r := range rows {
		if r.Timestamp.Equal(p.Timestamp) {
			return nil
		}
	}
	rows = append(rows, p)
	sort.Slice(rows, func(i, j int) bool { return rows[i].Timestamp.Before(rows[j].Timestamp) })
	m.oi[p.Symbol] = rows
	return nil
}

func (m *Memory) AppendChain(_ context.Context, rows []model.OptionChainRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, row := range rows {
		existing := m.chains[row.Symbol]
		dup := false
		for _, r := range existing {
			if r.Timestamp.Equal(row.Timestamp) && r.Expiry.Equal(row.Expiry) &&
				r.Strike == row.Strike && r.Side == row.Side {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		existing = append(existing, row)
		sort.Slice(existing, func(i, j int) bool {
			if !existing[i].Timestamp.Equal(existing[j].Timestamp) {
				return existing[i].Timestamp.Before(existing[j].Timestamp)
			}
			if existing[i].Strike != existing[j].Strike {
				return existing[i].Strike < existing[j].Strike
			}
			return existing[i].Side < existing[j].Side
		})
		m.chains[row.Symbol] = existing
	}
	return nil
}

func (m *Memory) AppendPulse(_ context.Context, p model.MarketPulse) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.pulses {
		if r.Timestamp.Equal(p.Timestamp) {
			return nil
		}
	}
	m.pulses = append(m.pulses, p)
	sort.Slice(m.pulses, func(i, j int) bool { return m.pulses[i].Timestamp.Before(m.pulses[j].Timestamp) })
	return nil
}

func (m *Memory) WriteBaseline(_ context.Context, b model.DailyBaseline) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := b.Symbol + "|" + b.TradingDay
	if _, exists := m.baselines[key]; exists {
		return nil // first write wins
	}
	m.baselines[key] = b
	return nil
}

func (m *Memory) InsertContextPack(_ context.Context, pack model.ContextPack) (model.ContextPack, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := tsKey(pack.Symbol, pack.Timestamp)
	if existing, ok := m.packs[key]; ok {
		return existing, false, nil
	}
	m.packs[key] = pack
	return pack, true, nil
}

func (m *Memory) InsertDecision(_ context.Context, d model.Decision) (model.Decision, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := tsKey(d.Symbol, d.Timestamp)
	if existing, ok := m.decisions[key]; ok {
		return existing, false, nil
	}
	m.decisions[key] = d
	return d, true, nil
}

// -----------------------------------------------------------------------------
// Reader
// -----------------------------------------------------------------------------

func (m *Memory) LatestBar(_ context.Context, symbol string, tf model.Timeframe, atOrBefore time.Time) (model.Bar, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rows := m.bars[barKey(symbol, tf)]
	for i := len(rows) - 1; i >= 0; i-- {
		if !rows[i].Timestamp.After(atOrBefore) {
			return rows[i], true, nil
		}
	}
	return model.Bar{}, false, nil
}

func (m *Memory) RecentBars(_ context.Context, symbol string, tf model.Timeframe, atOrBefore time.Time, n int) ([]model.Bar, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rows := m.bars[barKey(symbol, tf)]
	var out []model.Bar
	for _, r := range rows {
		if !r.Timestamp.After(atOrBefore) {
			out = append(out, r)
		}
	}
	if len(out) > n {
		out = out[len(out)-n:]
	}
	return append([]model.Bar(nil), out...), nil
}

func (m *Memory) LatestOpenInterest(_ context.Context, symbol string, atOrBefore time.Time) (model.OpenInterestPoint, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rows := m.oi[symbol]
	for i := len(rows) - 1; i >= 0; i-- {
		if !rows[i].Timestamp.After(atOrBefore) {
			return rows[i], true, nil
		}
	}
	return model.OpenInterestPoint{}, false, nil
}

func (m *Memory) LatestChain(_ context.Context, symbol string, atOrBefore time.Time) ([]model.OptionChainRow, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rows := m.chains[symbol]
	var latest time.Time
	for _, r := range rows {
		if !r.Timestamp.After(atOrBefore) && r.Timestamp.After(latest) {
			latest = r.Timestamp
		}
	}
	if latest.IsZero() {
		return nil, false, nil
	}
	var snap []model.OptionChainRow
	for _, r := range rows {
		if r.Timestamp.Equal(latest) {
			snap = append(snap, r)
		}
	}
	return snap, true, nil
}

func (m *Memory) LatestPulse(_ context.Context, atOrBefore time.Time) (model.MarketPulse, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := len(m.pulses) - 1; i >= 0; i-- {
		if !m.pulses[i].Timestamp.After(atOrBefore) {
			return m.pulses[i], true, nil
		}
	}
	return model.MarketPulse{}, false, nil
}

func (m *Memory) Baseline(_ context.Context, symbol, tradingDay string) (model.DailyBaseline, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.baselines[symbol+"|"+tradingDay]
	return b, ok, nil
}

func (m *Memory) InitialBalance(_ context.Context, symbol string, tf model.Timeframe, from, to time.Time) (float64, float64, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var hi, lo float64
	found := false
	for _, r := range m.bars[barKey(symbol, tf)] {
		if r.Timestamp.Before(from) || !r.Timestamp.Before(to) {
			continue
		}
		if !found {
			hi, lo = r.High, r.Low
			found = true
			continue
		}
		if r.High > hi {
			hi = r.High
		}
		if r.Low < lo {
			lo = r.Low
		}
	}
	return hi, lo, found, nil
}

var _ Store = (*Memory)(nil)
