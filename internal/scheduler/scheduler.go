package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/pulsar-neuron/gate/internal/agent"
	"github.com/pulsar-neuron/gate/internal/config"
	"github.com/pulsar-neuron/gate/internal/contextpack"
	"github.com/pulsar-neuron/gate/internal/feedstore"
	"github.com/pulsar-neuron/gate/internal/model"
	"github.com/pulsar-neuron/gate/internal/rails"
	"github.com/pulsar-neuron/gate/internal/session"
	"github.com/pulsar-neuron/gate/internal/sink"
)

// Tick lifecycle stages, logged as the tick progresses.
const (
	stageIngested  = "INGESTED"
	stageAssembled = "ASSEMBLED"
	stageProposed  = "PROPOSED"
	stageVerified  = "VERIFIED"
	stagePersisted = "PERSISTED"
	stageAbandoned = "TICK_ABANDONED"
)

// Deps are the scheduler's collaborators.
type Deps struct {
	Store     feedstore.Store
	Assembler *contextpack.Assembler
	Agent     agent.Agent
	Verifier  *rails.Verifier
	Positions rails.PositionState
	Sink      *sink.Sink
	Logger    *slog.Logger
}

// Scheduler owns the tick loops for a set of symbols.
type Scheduler struct {
	symbols []string
	cal     session.Calendar
	tf      model.Timeframe

	ibCadence     time.Duration
	middayCadence time.Duration
	lateCadence   time.Duration

	store     feedstore.Store
	assembler *contextpack.Assembler
	agent     agent.Agent
	verifier  *rails.Verifier
	positions rails.PositionState
	sink      *sink.Sink
	logger    *slog.Logger

	now    func() time.Time
	halted atomic.Bool
}

// New creates a Scheduler.
func New(cfg config.SchedulerConfig, symbols []string, cal session.Calendar, deps Deps) *Scheduler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		symbols:       symbols,
		cal:           cal,
		tf:            model.Timeframe(cfg.Timeframe),
		ibCadence:     cfg.IBCadence,
		middayCadence: cfg.MiddayCadence,
		lateCadence:   cfg.LateCadence,
		store:         deps.Store,
		assembler:     deps.Assembler,
		agent:         deps.Agent,
		verifier:      deps.Verifier,
		positions:     deps.Positions,
		sink:          deps.Sink,
		logger:        logger,
		now:           time.Now,
	}
	if s.tf == "" {
		s.tf = model.TF5m
	}
	if s.ibCadence <= 0 {
		s.ibCadence = 45 * time.Second
	}
	if s.middayCadence <= 0 {
		s.middayCadence = 75 * time.Second
	}
	if s.lateCadence <= 0 {
		s.lateCadence = 60 * time.Second
	}
	return s
}

// SetClock overrides the time source. Used in tests.
func (s *Scheduler) SetClock(now func() time.Time) {
	s.now = now
}

// Halt engages the kill switch: loops keep running but produce no
// decisions until Resume.
func (s *Scheduler) Halt() {
	if !s.halted.Swap(true) {
		s.logger.Warn("kill switch engaged, decision output suspended")
	}
}

// Resume releases the kill switch.
func (s *Scheduler) Resume() {
	if s.halted.Swap(false) {
		s.logger.Info("kill switch released")
	}
}

// Halted reports whether the kill switch is engaged.
func (s *Scheduler) Halted() bool {
	return s.halted.Load()
}

// Run starts one loop per symbol and blocks until the context is
// cancelled or a loop fails.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler starting",
		"symbols", s.symbols,
		"timeframe", string(s.tf),
	)

	g, ctx := errgroup.WithContext(ctx)
	for _, symbol := range s.symbols {
		symbol := symbol
		g.Go(func() error {
			return s.symbolLoop(ctx, symbol)
		})
	}
	return g.Wait()
}

// symbolLoop is the single writer for one symbol's packs and decisions.
func (s *Scheduler) symbolLoop(ctx context.Context, symbol string) error {
	logger := s.logger.With("symbol", symbol)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		now := s.now()
		phase := s.cal.PhaseAt(now)

		if phase == session.PhaseClosed {
			next := s.cal.NextOpen(now)
			logger.Info("market closed, sleeping until open", "next_open", next)
			if err := sleepUntil(ctx, next.Sub(now)); err != nil {
				return err
			}
			continue
		}

		cadence := s.cadenceFor(phase)
		deadline := now.Add(cadence)

		if s.halted.Load() {
			logger.Debug("tick skipped, kill switch engaged")
		} else {
			tickCtx, cancel := context.WithDeadline(ctx, deadline)
			s.runTick(tickCtx, logger, symbol, now, phase)
			cancel()
		}

		if err := sleepUntil(ctx, deadline.Sub(s.now())); err != nil {
			return err
		}
	}
}

func (s *Scheduler) cadenceFor(phase session.Phase) time.Duration {
	switch phase {
	case session.PhaseInitialBalance:
		return s.ibCadence
	case session.PhaseLate:
		return s.lateCadence
	default:
		return s.middayCadence
	}
}

// runTick executes one tick end to end. Errors never escape: a failed
// tick is logged and the loop waits for the next one.
func (s *Scheduler) runTick(ctx context.Context, logger *slog.Logger, symbol string, now time.Time, phase session.Phase) {
	logger.Debug("tick started",
		"stage", stageIngested,
		"ts", now,
		"phase", phase.String(),
	)

	s.maybeCaptureBaseline(ctx, logger, symbol, now)

	pack, err := s.assembler.Build(ctx, symbol, now)
	if err != nil {
		if abandoned(ctx, err) {
			logger.Warn("tick deadline exceeded during assembly", "stage", stageAbandoned, "ts", now)
			return
		}
		logger.Error("context assembly failed", "ts", now, "err", err)
		return
	}
	logger.Debug("context pack ready", "stage", stageAssembled, "ts", pack.Timestamp, "ok", pack.OK)

	// A stale pack never reaches the agent; the freshness rail converts
	// it to a wait decision below.
	var candidate model.Proposal
	if !pack.OK {
		candidate = model.WaitProposal("stale context")
	} else {
		candidate, err = s.agent.Propose(ctx, pack)
		if err != nil {
			if abandoned(ctx, err) {
				logger.Warn("tick deadline exceeded during proposal", "stage", stageAbandoned, "ts", now)
				return
			}
			logger.Warn("proposal agent unavailable", "ts", now, "err", err)
			candidate = model.WaitProposal("AgentUnavailable")
		}
	}
	logger.Debug("candidate ready", "stage", stageProposed, "action", candidate.Action)

	result := s.verifier.Verify(pack, candidate, s.positions)
	logger.Debug("rails evaluated",
		"stage", stageVerified,
		"approved", result.Approved,
		"reason", string(result.Reason),
	)

	// The kill switch cancels in-flight ticks too: a halt during
	// assembly or proposal discards the tick before anything is
	// persisted or published.
	if s.halted.Load() {
		logger.Warn("tick discarded, kill switch engaged mid-tick", "stage", stageAbandoned, "ts", now)
		return
	}

	d := s.decision(pack, candidate, result)

	stored, err := s.sink.Persist(ctx, d)
	if err != nil {
		if abandoned(ctx, err) {
			logger.Warn("tick deadline exceeded during persist", "stage", stageAbandoned, "ts", now)
			return
		}
		logger.Error("decision persist failed", "ts", now, "err", err)
		return
	}
	s.sink.Publish(stored)

	logger.Info("tick complete",
		"stage", stagePersisted,
		"ts", now,
		"action", stored.Action,
		"reason", stored.PrimaryReason(),
	)
}

// decision materializes the persisted outcome. A rail rejection always
// yields wait, with the rail reason as the primary reason and the guard
// detail preserved in overrides.
func (s *Scheduler) decision(pack model.ContextPack, candidate model.Proposal, result rails.Result) model.Decision {
	d := model.Decision{
		ID:         uuid.New(),
		Symbol:     pack.Symbol,
		Timestamp:  pack.Timestamp,
		BullCase:   candidate.BullCase,
		BearCase:   candidate.BearCase,
		ContextRef: pack.Timestamp,
	}

	if result.Approved {
		d.Action = candidate.Action
		d.Confidence = candidate.Confidence
		d.ChosenStrategy = candidate.ChosenStrategy
		d.Reasons = candidate.Reasons
		return d
	}

	d.Action = model.ActionWait
	d.Reasons = []string{string(result.Reason)}
	if result.Detail != "" {
		d.Overrides = []string{result.Detail}
	}
	return d
}

// maybeCaptureBaseline writes the daily baseline once the initial
// balance window has closed. The store's first-write-wins contract makes
// repeats harmless; the existence check just avoids the extra queries.
func (s *Scheduler) maybeCaptureBaseline(ctx context.Context, logger *slog.Logger, symbol string, now time.Time) {
	ibEnd := s.cal.IBEndAt(now)
	if now.Before(ibEnd) {
		return
	}

	day := s.cal.TradingDay(now)
	if _, exists, err := s.store.Baseline(ctx, symbol, day); err != nil {
		logger.Warn("baseline lookup failed", "day", day, "err", err)
		return
	} else if exists {
		return
	}

	hi, lo, ok, err := s.store.InitialBalance(ctx, symbol, s.tf, s.cal.OpenAt(now), ibEnd)
	if err != nil {
		logger.Warn("initial balance query failed", "day", day, "err", err)
		return
	}
	if !ok {
		logger.Debug("no bars in initial balance window yet", "day", day)
		return
	}

	// The open-interest baseline is the value on record at the capture
	// cutoff, regardless of when this runs.
	var futOI int64
	oi, haveOI, err := s.store.LatestOpenInterest(ctx, symbol, s.cal.BaselineCutoffAt(now))
	if err != nil {
		logger.Warn("baseline open interest query failed", "day", day, "err", err)
	} else if haveOI {
		futOI = oi.OpenInterest
	}

	b := model.DailyBaseline{
		Symbol:     symbol,
		TradingDay: day,
		FuturesOI:  futOI,
		IBHigh:     hi,
		IBLow:      lo,
		CapturedAt: now,
	}
	if err := s.store.WriteBaseline(ctx, b); err != nil {
		logger.Warn("baseline write failed", "day", day, "err", err)
		return
	}
	logger.Info("daily baseline captured",
		"day", day,
		"ib_high", hi,
		"ib_low", lo,
		"futures_oi", futOI,
	)
}

// abandoned reports whether the error (or the context) marks a tick
// that overran its deadline or a scheduler shutdown.
func abandoned(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}

func sleepUntil(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
