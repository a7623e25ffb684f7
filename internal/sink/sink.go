package sink

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pulsar-neuron/gate/internal/feedstore"
	"github.com/pulsar-neuron/gate/internal/model"
)

// Sink is the decision sink. Persist is idempotent on (symbol, ts);
// Publish is best-effort fan-out.
type Sink struct {
	store  feedstore.Writer
	hub    *Hub
	loc    *time.Location
	logger *slog.Logger
}

// New creates a Sink. The hub may be nil when publishing is disabled.
func New(store feedstore.Writer, hub *Hub, loc *time.Location, logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{store: store, hub: hub, loc: loc, logger: logger}
}

// Persist writes the decision. A duplicate (symbol, ts) key returns the
// stored decision unchanged; the collision is a local no-op, not a failure.
func (s *Sink) Persist(ctx context.Context, d model.Decision) (model.Decision, error) {
	stored, inserted, err := s.store.InsertDecision(ctx, d)
	if err != nil {
		return model.Decision{}, fmt.Errorf("persist decision: %w", err)
	}
	if !inserted {
		s.logger.Debug("duplicate decision tick ignored",
			"symbol", d.Symbol,
			"ts", d.Timestamp,
		)
	}
	return stored, nil
}

// Publish logs the one-line summary and fans the decision out to
// websocket subscribers.
func (s *Sink) Publish(d model.Decision) {
	s.logger.Info(Summary(d, s.loc),
		"symbol", d.Symbol,
		"action", d.Action,
		"confidence", d.Confidence,
	)
	if s.hub != nil {
		s.hub.Broadcast(d)
	}
}

// Summary renders the canonical one-line form:
//
//	"<SYMBOL> <HH:MM> | <ACTION> | Reason=<primary_reason>"
func Summary(d model.Decision, loc *time.Location) string {
	return fmt.Sprintf("%s %s | %s | Reason=%s",
		d.Symbol,
		d.Timestamp.In(loc).Format("15:04"),
		strings.ToUpper(string(d.Action)),
		d.PrimaryReason(),
	)
}

// ExtendedSummary adds confidence, strategy and override segments when
// present.
func ExtendedSummary(d model.Decision, loc *time.Location) string {
	parts := []string{
		d.Symbol,
		d.Timestamp.In(loc).Format("15:04"),
		strings.ToUpper(string(d.Action)),
		fmt.Sprintf("Conf=%d%%", d.Confidence),
	}
	if d.ChosenStrategy != "" {
		parts = append(parts, "Strat="+d.ChosenStrategy)
	}
	if len(d.Reasons) > 0 {
		parts = append(parts, "Reason="+d.Reasons[0])
	}
	if len(d.Overrides) > 0 {
		parts = append(parts, "Overrides="+d.Overrides[0])
	}
	return strings.Join(parts, " | ")
}
