// Package feedstore provides the feed-store contract: append-only
// time-series persistence for bars, open interest, option chains,
// breadth/VIX pulses and daily baselines, plus insert-or-fetch semantics
// for context packs and decisions.
//
// All writes are idempotent under duplicate primary keys (ignore on
// conflict, never overwrite). Bars become immutable once their window
// has closed plus the grace period; later writes are rejected.
package feedstore
