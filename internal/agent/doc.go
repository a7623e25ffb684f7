// Package agent provides the proposal capability: given a context pack,
// produce a candidate action with supporting rationale.
//
// Two constructions exist, selected at wiring time rather than by
// runtime type inspection: a deterministic rule-based agent and a
// remote (LLM bridge) agent. Callers treat any error as "no proposal"
// and degrade to a wait decision.
package agent
