package session

import (
	"fmt"
	"time"

	"github.com/pulsar-neuron/gate/internal/config"
)

// Phase is the portion of the trading day a given instant falls in.
type Phase int

const (
	PhaseClosed         Phase = iota // outside market hours
	PhaseInitialBalance              // open through IB end
	PhaseMidday                      // IB end through the no-new cutoff
	PhaseLate                        // no-new cutoff through close
)

func (p Phase) String() string {
	switch p {
	case PhaseInitialBalance:
		return "initial_balance"
	case PhaseMidday:
		return "midday"
	case PhaseLate:
		return "late"
	}
	return "closed"
}

// Calendar holds session boundaries as minutes from local midnight.
type Calendar struct {
	Loc *time.Location

	Open           int
	IBEnd          int
	NoNewAfter     int
	Close          int
	BaselineCutoff int
}

// NewCalendar builds a Calendar from session config.
func NewCalendar(cfg config.SessionConfig) (Calendar, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return Calendar{}, fmt.Errorf("load timezone: %w", err)
	}

	c := Calendar{Loc: loc}
	for _, f := range []struct {
		v    string
		dest *int
	}{
		{cfg.Open, &c.Open},
		{cfg.IBEnd, &c.IBEnd},
		{cfg.NoNewAfter, &c.NoNewAfter},
		{cfg.Close, &c.Close},
		{cfg.BaselineCutoff, &c.BaselineCutoff},
	} {
		t, err := time.Parse("15:04", f.v)
		if err != nil {
			return Calendar{}, fmt.Errorf("parse session time %q: %w", f.v, err)
		}
		*f.dest = t.Hour()*60 + t.Minute()
	}
	return c, nil
}

// Default returns the standard IST index-derivatives session:
// 09:15 open, 10:15 IB end, 14:45 no-new cutoff, 15:30 close,
// 09:20 baseline capture.
func Default() Calendar {
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		panic(err) // tzdata missing; nothing sensible to do
	}
	return Calendar{
		Loc:            loc,
		Open:           9*60 + 15,
		IBEnd:          10*60 + 15,
		NoNewAfter:     14*60 + 45,
		Close:          15*60 + 30,
		BaselineCutoff: 9*60 + 20,
	}
}

func (c Calendar) minuteOfDay(t time.Time) int {
	lt := t.In(c.Loc)
	return lt.Hour()*60 + lt.Minute()
}

// PhaseAt returns the session phase for an instant.
func (c Calendar) PhaseAt(t time.Time) Phase {
	m := c.minuteOfDay(t)
	switch {
	case m < c.Open || m >= c.Close:
		return PhaseClosed
	case m < c.IBEnd:
		return PhaseInitialBalance
	case m < c.NoNewAfter:
		return PhaseMidday
	default:
		return PhaseLate
	}
}

// PastNoNew reports whether new positions may no longer be opened.
// The cutoff itself counts: at exactly 14:45 opening is blocked.
func (c Calendar) PastNoNew(t time.Time) bool {
	return c.minuteOfDay(t) >= c.NoNewAfter
}

// TradingDay returns the YYYY-MM-DD trading day for an instant.
func (c Calendar) TradingDay(t time.Time) string {
	return t.In(c.Loc).Format("2006-01-02")
}

// at returns the instant on t's trading day at the given minute of day.
func (c Calendar) at(t time.Time, minute int) time.Time {
	lt := t.In(c.Loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), minute/60, minute%60, 0, 0, c.Loc)
}

// OpenAt returns the session open instant on t's trading day.
func (c Calendar) OpenAt(t time.Time) time.Time { return c.at(t, c.Open) }

// IBEndAt returns the initial-balance end instant on t's trading day.
func (c Calendar) IBEndAt(t time.Time) time.Time { return c.at(t, c.IBEnd) }

// BaselineCutoffAt returns the baseline capture instant on t's trading day.
func (c Calendar) BaselineCutoffAt(t time.Time) time.Time { return c.at(t, c.BaselineCutoff) }

// CloseAt returns the session close instant on t's trading day.
func (c Calendar) CloseAt(t time.Time) time.Time { return c.at(t, c.Close) }

// NextOpen returns the next session open strictly after t.
// Weekends and holidays are the ingest calendar's concern; here every
// day is a candidate trading day.
func (c Calendar) NextOpen(t time.Time) time.Time {
	open := c.OpenAt(t)
	if t.Before(open) {
		return open
	}
	return open.Add(24 * time.Hour)
}
