// Package contextpack assembles the immutable per-tick market snapshot.
//
// One ContextPack exists per (symbol, evaluation timestamp). The
// assembler pulls the latest qualifying record per feed category, folds
// per-category freshness verdicts into the pack's ok flag, and attaches
// the day's baseline references. Builds are idempotent: a duplicate tick
// observes the first writer's pack unchanged.
package contextpack
