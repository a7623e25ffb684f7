// Package rails runs the ordered battery of safety checks that gates
// every candidate action before it may be persisted.
//
// Checks run in fixed precedence and short-circuit on the first failure,
// so a rejection reason is deterministic and reproducible. The verifier
// does no I/O: callers persist the outcome.
package rails
