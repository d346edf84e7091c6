// Package phase holds the round state machine and the readiness evaluator.
//
// Evaluate is the single source of truth for which commands are legal: the
// engine guards every command with it and callers render it as-is.
package phase
