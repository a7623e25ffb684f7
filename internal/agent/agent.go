package agent

import (
	"context"
	"errors"

	"github.com/pulsar-neuron/gate/internal/model"
)

// ErrUnavailable wraps proposal failures: transport errors, timeouts,
// or malformed responses. The tick degrades to wait/AgentUnavailable.
var ErrUnavailable = errors.New("agent: proposal unavailable")

// Agent produces a candidate action for a context pack.
type Agent interface {
	Propose(ctx context.Context, pack model.ContextPack) (model.Proposal, error)
}

// Func adapts a function to an Agent.
type Func func(ctx context.Context, pack model.ContextPack) (model.Proposal, error)

func (f Func) Propose(ctx context.Context, pack model.ContextPack) (model.Proposal, error) {
	return f(ctx, pack)
}
