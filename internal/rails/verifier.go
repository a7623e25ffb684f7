package rails

import (
	"fmt"
	"math"
	"sync"

	"github.com/pulsar-neuron/gate/internal/model"
	"github.com/pulsar-neuron/gate/internal/session"
)

// Reason names a rail rejection. Order of declaration is precedence order.
type Reason string

const (
	ReasonFreshnessFail       Reason = "FreshnessFail"
	ReasonTimeCutoff          Reason = "TimeCutoff"
	ReasonRiskRewardTooLow    Reason = "RiskRewardTooLow"
	ReasonMaxPositionsReached Reason = "MaxPositionsReached"
	ReasonWallTooClose        Reason = "WallTooClose"
)

// Config holds rail thresholds. Injected at construction so tests can
// pin arbitrary values; never read from ambient state.
type Config struct {
	MinRiskReward  float64 // rail 3: candidate RR must be >= this
	MaxPositions   int     // rail 4: open positions per symbol
	WallDistanceEM float64 // rail 5: min entry-to-wall distance in expected moves
}

// DefaultConfig returns the standard rail thresholds.
func DefaultConfig() Config {
	return Config{
		MinRiskReward:  1.2,
		MaxPositions:   2,
		WallDistanceEM: 0.3,
	}
}

// PositionState exposes the open-position count consulted by rail 4.
type PositionState interface {
	OpenCount(symbol string) int
}

// Result is the verifier outcome: an approval carrying the candidate
// unchanged, or a single rejection reason with its guard detail.
type Result struct {
	Approved bool
	Reason   Reason
	Detail   string
}

// Verifier applies the rails to a (pack, candidate) pair.
type Verifier struct {
	cfg Config
	cal session.Calendar
}

// New creates a Verifier.
func New(cfg Config, cal session.Calendar) *Verifier {
	return &Verifier{cfg: cfg, cal: cal}
}

// Verify runs the rails in precedence order against the pack's
// evaluation instant. A wait candidate passes rails 2-5 trivially but
// still crosses the freshness gate for audit consistency.
func (v *Verifier) Verify(pack model.ContextPack, candidate model.Proposal, positions PositionState) Result {
	// 1. Freshness gate.
	if !pack.OK {
		return Result{
			Reason: ReasonFreshnessFail,
			Detail: fmt.Sprintf("Freshness guard triggered: %s", staleCategories(pack.Payload.Freshness)),
		}
	}

	if !candidate.Action.Opens() {
		return Result{Approved: true}
	}

	// 2. Time cutoff: no new positions at or past the cutoff.
	if v.cal.PastNoNew(pack.Timestamp) {
		return Result{
			Reason: ReasonTimeCutoff,
			Detail: fmt.Sprintf("Time guard triggered: %s >= cutoff", pack.Timestamp.In(v.cal.Loc).Format("15:04")),
		}
	}

	// 3. Risk-reward.
	if candidate.RiskReward < v.cfg.MinRiskReward {
		return Result{
			Reason: ReasonRiskRewardTooLow,
			Detail: fmt.Sprintf("RR guard triggered: %.2f < %.2f", candidate.RiskReward, v.cfg.MinRiskReward),
		}
	}

	// 4. Position cap.
	if open := positions.OpenCount(pack.Symbol); open >= v.cfg.MaxPositions {
		return Result{
			Reason: ReasonMaxPositionsReached,
			Detail: fmt.Sprintf("Positions guard triggered: %d/%d", open, v.cfg.MaxPositions),
		}
	}

	// 5. Wall distance. Unknown geometry (no expected move) passes:
	// there is no known wall to be close to.
	if dist, known := wallDistanceEM(pack, candidate); known && dist < v.cfg.WallDistanceEM {
		return Result{
			Reason: ReasonWallTooClose,
			Detail: fmt.Sprintf("Wall guard triggered: %.2f < %.2f", dist, v.cfg.WallDistanceEM),
		}
	}

	return Result{Approved: true}
}

// wallDistanceEM returns the distance from the candidate entry to the
// nearest known wall, in expected-move units.
func wallDistanceEM(pack model.ContextPack, candidate model.Proposal) (float64, bool) {
	hints := pack.Payload.Hints
	if hints.ExpectedMovePts <= 0 {
		return 0, false
	}

	entry := candidate.Entry
	if entry == 0 && pack.Payload.LastBar != nil {
		entry = pack.Payload.LastBar.Close
	}
	if entry == 0 {
		return 0, false
	}

	dist := math.Inf(1)
	for _, wall := range []float64{hints.WallAbove, hints.WallBelow} {
		if wall == 0 {
			continue
		}
		if d := math.Abs(entry - wall); d < dist {
			dist = d
		}
	}
	if math.IsInf(dist, 1) {
		return 0, false
	}
	return dist / hints.ExpectedMovePts, true
}

func staleCategories(f model.FreshnessSnapshot) string {
	out := ""
	for _, c := range []struct {
		name string
		age  model.CategoryAge
	}{
		{"bars", f.Bars},
		{"open_interest", f.OpenInterest},
		{"option_chain", f.OptionChain},
		{"breadth_vix", f.BreadthVIX},
	} {
		if c.age.OK {
			continue
		}
		if out != "" {
			out += ","
		}
		if c.age.Missing {
			out += c.name + "=missing"
		} else {
			out += fmt.Sprintf("%s=%.0fs", c.name, c.age.AgeSeconds)
		}
	}
	if out == "" {
		return "none"
	}
	return out
}

// MemoryBook is a thread-safe in-memory PositionState. Broker-side
// accounting is out of scope; this tracks counts fed to it.
type MemoryBook struct {
	mu     sync.RWMutex
	counts map[string]int
}

// NewMemoryBook creates an empty position book.
func NewMemoryBook() *MemoryBook {
	return &MemoryBook{counts: make(map[string]int)}
}

// Set pins the open-position count for a symbol.
func (b *MemoryBook) Set(symbol string, n int) {
	b.mu.Lock()
	b.counts[symbol] = n
	b.mu.Unlock()
}

// OpenCount returns the open-position count for a symbol.
func (b *MemoryBook) OpenCount(symbol string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.counts[symbol]
}
