// Package freshness computes per-category staleness verdicts.
//
// The evaluator is pure and total: it never errors, and "no record at all"
// is a normal, representable state (infinite age, not fresh). Missing and
// stale data collapse into the same ok=false outcome so callers cannot
// fail open on absent feeds.
package freshness
