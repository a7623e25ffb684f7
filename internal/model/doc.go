// Package model defines the core domain types shared across the decision
// gate: feed time-series rows (bars, open interest, option chain, breadth),
// daily baselines, context packs, proposals, and decisions.
//
// Types here are plain data with no behavior beyond derived accessors;
// persistence and validation live with their owning components.
package model
