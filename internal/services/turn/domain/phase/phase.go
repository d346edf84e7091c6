package phase

import (
	"fmt"
	"strings"
)

// Phase is a named stage of a round.
type Phase string

const (
	Setup             Phase = "setup"
	ExternalGenerated Phase = "external_generated"
	ActionsGenerated  Phase = "actions_generated"
	ActionsPublished  Phase = "actions_published"
	// Resolved is transient: a resolving round leaves it for the next round's
	// setup or for game over within the same operation.
	Resolved Phase = "resolved"
	GameOver Phase = "game_over"
)

// RoundSequence is the ordered lifecycle of one round.
func RoundSequence() []Phase {
	return []Phase{Setup, ExternalGenerated, ActionsGenerated, ActionsPublished, Resolved}
}

// Parse resolves a stored phase name.
func Parse(value string) (Phase, error) {
	p := Phase(strings.TrimSpace(value))
	if !p.Valid() {
		return "", fmt.Errorf("unknown phase %q", value)
	}
	return p, nil
}

// Valid reports whether p is a known phase.
func (p Phase) Valid() bool {
	switch p {
	case Setup, ExternalGenerated, ActionsGenerated, ActionsPublished, Resolved, GameOver:
		return true
	default:
		return false
	}
}

// Terminal reports whether no transition leaves p.
func (p Phase) Terminal() bool {
	return p == GameOver
}

// CanTransition reports whether to directly follows from.
//
// Resolved may move to Setup only as the start of the next round; callers
// pair that transition with a round increment.
func CanTransition(from, to Phase) bool {
	switch from {
	case Setup:
		return to == ExternalGenerated
	case ExternalGenerated:
		return to == ActionsGenerated
	case ActionsGenerated:
		return to == ActionsPublished
	case ActionsPublished:
		return to == Resolved
	case Resolved:
		return to == Setup || to == GameOver
	default:
		return false
	}
}
