// Package scheduler drives the per-symbol tick loops. Each symbol has
// exactly one loop goroutine, so pack assembly and decision persistence
// for a symbol are naturally serialized. The loop cadence follows the
// session phase, and every tick runs under a deadline equal to the next
// tick's start: a tick that overruns is abandoned, never queued.
package scheduler
