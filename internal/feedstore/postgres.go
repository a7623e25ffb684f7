package feedstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pulsar-neuron/gate/internal/model"
)

// Postgres is the production Store backed by a pgx pool. Every insert
// uses ON CONFLICT DO NOTHING so duplicate keys are ignored, never raced
// on overwrite.
type Postgres struct {
	db     *pgxpool.Pool
	logger *slog.Logger
	now    func() time.Time
}

// NewPostgres creates a Postgres-backed store.
func NewPostgres(db *pgxpool.Pool, logger *slog.Logger) *Postgres {
	if logger == nil {
		logger = slog.Default()
	}
	return &Postgres{db: db, logger: logger, now: time.Now}
}

// SetClock overrides the wall clock used for bar immutability checks.
func (s *Postgres) SetClock(now func() time.Time) { s.now = now }

// -----------------------------------------------------------------------------
// Writer
// -----------------------------------------------------------------------------

func (s *Postgres) AppendBar(ctx context.Context, bar model.Bar) error {
	if s.now().After(bar.ImmutableAt()) {
		return ErrBarClosed
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO bars (symbol, ts, timeframe, open, high, low, close, volume)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (symbol, ts, timeframe) DO NOTHING
	`, bar.Symbol, bar.Timestamp, string(bar.Timeframe), bar.Open, bar.High, bar.Low, bar.Close, bar.Volume)
	if err != nil {
		return fmt.Errorf("insert bar: %w", err)
	}
	return nil
}

func (s *Postgres) AppendOpenInterest(ctx context.Context, p model.OpenInterestPoint) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO open_interest (symbol, ts, price, oi, baseline_tag)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (symbol, ts) DO NOTHING
	`, p.Symbol, p.Timestamp, p.Price, p.OpenInterest, string(p.BaselineTag))
	if err != nil {
		return fmt.Errorf("insert open interest: %w", err)
	}
	return nil
}

func (s *Postgres) AppendChain(ctx context.Context, rows []model.OptionChainRow) error {
	if len(rows) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, r := range rows {
		greeks, err := json.Marshal(r.Greeks)
		if err != nil {
			return fmt.Errorf("marshal greeks: %w", err)
		}
		batch.Queue(`
			INSERT INTO option_chain (symbol, ts, expiry, strike, side, last_price, iv, oi, delta_oi, volume, greeks)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (symbol, ts, expiry, strike, side) DO NOTHING
		`, r.Symbol, r.Timestamp, r.Expiry, r.Strike, string(r.Side), r.LastPrice, r.ImpliedVol, r.OpenInterest, r.DeltaOI, r.Volume, greeks)
	}

	results := s.db.SendBatch(ctx, batch)
	defer results.Close()

	conflicts := 0
	for range rows {
		ct, err := results.Exec()
		if err != nil {
			return fmt.Errorf("insert chain row: %w", err)
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}
	if conflicts > 0 {
		s.logger.Debug("chain insert skipped duplicates", "conflicts", conflicts, "rows", len(rows))
	}
	return nil
}

func (s *Postgres) AppendPulse(ctx context.Context, p model.MarketPulse) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO market_pulse (ts, advances, declines, vix)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (ts) DO NOTHING
	`, p.Timestamp, p.Advances, p.Declines, p.VIX)
	if err != nil {
		return fmt.Errorf("insert pulse: %w", err)
	}
	return nil
}

func (s *Postgres) WriteBaseline(ctx context.Context, b model.DailyBaseline) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO baselines (symbol, trading_day, futures_oi, ib_high, ib_low, captured_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (symbol, trading_day) DO NOTHING
	`, b.Symbol, b.TradingDay, b.FuturesOI, b.IBHigh, b.IBLow, b.CapturedAt)
	if err != nil {
		return fmt.Errorf("insert baseline: %w", err)
	}
	return nil
}

func (s *Postgres) InsertContextPack(ctx context.Context, pack model.ContextPack) (model.ContextPack, bool, error) {
	payload, err := json.Marshal(pack.Payload)
	if err != nil {
		return model.ContextPack{}, false, fmt.Errorf("marshal pack payload: %w", err)
	}

	ct, err := s.db.Exec(ctx, `
		INSERT INTO context_packs (symbol, ts, ok, payload)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (symbol, ts) DO NOTHING
	`, pack.Symbol, pack.Timestamp, pack.OK, payload)
	if err != nil {
		return model.ContextPack{}, false, fmt.Errorf("insert context pack: %w", err)
	}
	if ct.RowsAffected() > 0 {
		return pack, true, nil
	}

	// Duplicate tick: return the winner unchanged.
	existing, err := s.readContextPack(ctx, pack.Symbol, pack.Timestamp)
	if err != nil {
		return model.ContextPack{}, false, err
	}
	return existing, false, nil
}

func (s *Postgres) readContextPack(ctx context.Context, symbol string, ts time.Time) (model.ContextPack, error) {
	var (
		pack    model.ContextPack
		payload []byte
	)
	err := s.db.QueryRow(ctx, `
		SELECT symbol, ts, ok, payload
		FROM context_packs
		WHERE symbol = $1 AND ts = $2
	`, symbol, ts).Scan(&pack.Symbol, &pack.Timestamp, &pack.OK, &payload)
	if err != nil {
		return model.ContextPack{}, fmt.Errorf("read context pack: %w", err)
	}
	if err := json.Unmarshal(payload, &pack.Payload); err != nil {
		return model.ContextPack{}, fmt.Errorf("unmarshal pack payload: %w", err)
	}
	return pack, nil
}

func (s *Postgres) InsertDecision(ctx context.Context, d model.Decision) (model.Decision, bool, error) {
	doc, err := json.Marshal(d)
	if err != nil {
		return model.Decision{}, false, fmt.Errorf("marshal decision: %w", err)
	}

	ct, err := s.db.Exec(ctx, `
		INSERT INTO decisions (symbol, ts, action, confidence, context_ref, doc)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (symbol, ts) DO NOTHING
	`, d.Symbol, d.Timestamp, string(d.Action), d.Confidence, d.ContextRef, doc)
	if err != nil {
		return model.Decision{}, false, fmt.Errorf("insert decision: %w", err)
	}
	if ct.RowsAffected() > 0 {
		return d, true, nil
	}

	var existingDoc []byte
	err = s.db.QueryRow(ctx, `
		SELECT doc FROM decisions WHERE symbol = $1 AND ts = $2
	`, d.Symbol, d.Timestamp).Scan(&existingDoc)
	if err != nil {
		return model.Decision{}, false, fmt.Errorf("read decision: %w", err)
	}
	var existing model.Decision
	if err := json.Unmarshal(existingDoc, &existing); err != nil {
		return model.Decision{}, false, fmt.Errorf("unmarshal decision: %w", err)
	}
	return existing, false, nil
}

// -----------------------------------------------------------------------------
// Reader
// -----------------------------------------------------------------------------

func (s *Postgres) LatestBar(ctx context.Context, symbol string, tf model.Timeframe, atOrBefore time.Time) (model.Bar, bool, error) {
	var b model.Bar
	var tfStr string
	err := s.db.QueryRow(ctx, `
		SELECT symbol, ts, timeframe, open, high, low, close, volume
		FROM bars
		WHERE symbol = $1 AND timeframe = $2 AND ts <= $3
		ORDER BY ts DESC
		LIMIT 1
	`, symbol, string(tf), atOrBefore).Scan(&b.Symbol, &b.Timestamp, &tfStr, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Bar{}, false, nil
	}
	if err != nil {
		return model.Bar{}, false, fmt.Errorf("query latest bar: %w", err)
	}
	b.Timeframe = model.Timeframe(tfStr)
	return b, true, nil
}

func (s *Postgres) RecentBars(ctx context.Context, symbol string, tf model.Timeframe, atOrBefore time.Time, n int) ([]model.Bar, error) {
	rows, err := s.db.Query(ctx, `
		SELECT symbol, ts, timeframe, open, high, low, close, volume
		FROM (
			SELECT * FROM bars
			WHERE symbol = $1 AND timeframe = $2 AND ts <= $3
			ORDER BY ts DESC
			LIMIT $4
		) recent
		ORDER BY ts ASC
	`, symbol, string(tf), atOrBefore, n)
	if err != nil {
		return nil, fmt.Errorf("query recent bars: %w", err)
	}
	defer rows.Close()

	var out []model.Bar
	for rows.Next() {
		var b model.Bar
		var tfStr string
		if err := rows.Scan(&b.Symbol, &b.Timestamp, &tfStr, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		b.Timeframe = model.Timeframe(tfStr)
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *Postgres) LatestOpenInterest(ctx context.Context, symbol string, atOrBefore time.Time) (model.OpenInterestPoint, bool, error) {
	var p model.OpenInterestPoint
	var tag string
	err := s.db.QueryRow(ctx, `
		SELECT symbol, ts, price, oi, baseline_tag
		FROM open_interest
		WHERE symbol = $1 AND ts <= $2
		ORDER BY ts DESC
		LIMIT 1
	`, symbol, atOrBefore).Scan(&p.Symbol, &p.Timestamp, &p.Price, &p.OpenInterest, &tag)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.OpenInterestPoint{}, false, nil
	}
	if err != nil {
		return model.OpenInterestPoint{}, false, fmt.Errorf("query latest oi: %w", err)
	}
	p.BaselineTag = model.BaselineTag(tag)
	return p, true, nil
}

func (s *Postgres) LatestChain(ctx context.Context, symbol string, atOrBefore time.Time) ([]model.OptionChainRow, bool, error) {
	rows, err := s.db.Query(ctx, `
		SELECT symbol, ts, expiry, strike, side, last_price, iv, oi, delta_oi, volume, greeks
		FROM option_chain
		WHERE symbol = $1
		  AND ts = (SELECT max(ts) FROM option_chain WHERE symbol = $1 AND ts <= $2)
		ORDER BY strike, side
	`, symbol, atOrBefore)
	if err != nil {
		return nil, false, fmt.Errorf("query latest chain: %w", err)
	}
	defer rows.Close()

	var out []model.OptionChainRow
	for rows.Next() {
		var r model.OptionChainRow
		var side string
		var greeks []byte
		if err := rows.Scan(&r.Symbol, &r.Timestamp, &r.Expiry, &r.Strike, &side, &r.LastPrice, &r.ImpliedVol, &r.OpenInterest, &r.DeltaOI, &r.Volume, &greeks); err != nil {
			return nil, false, fmt.Errorf("scan chain row: %w", err)
		}
		r.Side = model.OptionSide(side)
		if len(greeks) > 0 {
			if err := json.Unmarshal(greeks, &r.Greeks); err != nil {
				return nil, false, fmt.Errorf("unmarshal greeks: %w", err)
			}
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}
	return out, len(out) > 0, nil
}

func (s *Postgres) LatestPulse(ctx context.Context, atOrBefore time.Time) (model.MarketPulse, bool, error) {
	var p model.MarketPulse
	err := s.db.QueryRow(ctx, `
		SELECT ts, advances, declines, vix
		FROM market_pulse
		WHERE ts <= $1
		ORDER BY ts DESC
		LIMIT 1
	`, atOrBefore).Scan(&p.Timestamp, &p.Advances, &p.Declines, &p.VIX)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.MarketPulse{}, false, nil
	}
	if err != nil {
		return model.MarketPulse{}, false, fmt.Errorf("query latest pulse: %w", err)
	}
	return p, true, nil
}

func (s *Postgres) Baseline(ctx context.Context, symbol, tradingDay string) (model.DailyBaseline, bool, error) {
	var b model.DailyBaseline
	err := s.db.QueryRow(ctx, `
		SELECT symbol, trading_day, futures_oi, ib_high, ib_low, captured_at
		FROM baselines
		WHERE symbol = $1 AND trading_day = $2
	`, symbol, tradingDay).Scan(&b.Symbol, &b.TradingDay, &b.FuturesOI, &b.IBHigh, &b.IBLow, &b.CapturedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.DailyBaseline{}, false, nil
	}
	if err != nil {
		return model.DailyBaseline{}, false, fmt.Errorf("query baseline: %w", err)
	}
	return b, true, nil
}

func (s *Postgres) InitialBalance(ctx context.Context, symbol string, tf model.Timeframe, from, to time.Time) (float64, float64, bool, error) {
	var hi, lo *float64
	err := s.db.QueryRow(ctx, `
		SELECT max(high), min(low)
		FROM bars
		WHERE symbol = $1 AND timeframe = $2 AND ts >= $3 AND ts < $4
	`, symbol, string(tf), from, to).Scan(&hi, &lo)
	if err != nil {
		return 0, 0, false, fmt.Errorf("query initial balance: %w", err)
	}
	if hi == nil || lo == nil {
		return 0, 0, false, nil
	}
	return *hi, *lo, true, nil
}

var _ Store = (*Postgres)(nil)
