package phase

import (
	"fmt"
	"slices"
)

// Command is one caller-issued operation.
type Command string

const (
	CommandAdvanceExternal Command = "advance_external"
	CommandGenerateActions Command = "generate_actions"
	CommandPublish         Command = "publish"
	CommandCommitLock      Command = "commit_lock"
	CommandResolve         Command = "resolve"
)

// Commands lists every command in lifecycle order.
func Commands() []Command {
	return []Command{
		CommandAdvanceExternal,
		CommandGenerateActions,
		CommandPublish,
		CommandCommitLock,
		CommandResolve,
	}
}

// RequiredExternalEvents is the number of external moves a round must carry.
const RequiredExternalEvents = 3

// Facts are the stored completeness predicates readiness is derived from.
type Facts struct {
	Phase Phase
	// ExternalEvents counts stored external events for the round.
	ExternalEvents int
	// ActiveCountries counts countries in play.
	ActiveCountries int
	// CountriesWithActions counts active countries holding all three variants.
	CountriesWithActions int
	// LockedCountries counts active countries with a committed lock.
	LockedCountries int
}

// CommandSet is an ordered set of legal commands.
type CommandSet []Command

// Has reports whether c is legal.
func (s CommandSet) Has(c Command) bool {
	return slices.Contains(s, c)
}

// Strings returns the command names.
func (s CommandSet) Strings() []string {
	out := make([]string, len(s))
	for i, c := range s {
		out[i] = string(c)
	}
	return out
}

const (
	RejectionCodePhaseMismatch      = "PHASE_MISMATCH"
	RejectionCodeGameOver           = "GAME_OVER"
	RejectionCodeExternalIncomplete = "EXTERNAL_EVENTS_INCOMPLETE"
	RejectionCodeActionsIncomplete  = "ACTIONS_INCOMPLETE"
	RejectionCodeLocksIncomplete    = "LOCKS_INCOMPLETE"
	RejectionCodeNoCountries        = "NO_ACTIVE_COUNTRIES"
)

// Rejection describes why a command is not legal.
type Rejection struct {
	Code    string
	Message string
}

// Check evaluates one command against the facts and returns nil when legal.
func Check(f Facts, c Command) *Rejection {
	if f.Phase.Terminal() {
		return &Rejection{Code: RejectionCodeGameOver, Message: "game is over"}
	}
	want, ok := requiredPhase(c)
	if !ok {
		return &Rejection{Code: RejectionCodePhaseMismatch, Message: fmt.Sprintf("unknown command %q", c)}
	}
	if f.Phase != want {
		return &Rejection{
			Code:    RejectionCodePhaseMismatch,
			Message: fmt.Sprintf("%s requires phase %s, current phase is %s", c, want, f.Phase),
		}
	}
	if f.ActiveCountries <= 0 {
		return &Rejection{Code: RejectionCodeNoCountries, Message: "no active countries"}
	}

	switch c {
	case CommandGenerateActions:
		if f.ExternalEvents != RequiredExternalEvents {
			return externalIncomplete(f)
		}
	case CommandPublish:
		if f.ExternalEvents != RequiredExternalEvents {
			return externalIncomplete(f)
		}
		if f.CountriesWithActions != f.ActiveCountries {
			return &Rejection{
				Code: RejectionCodeActionsIncomplete,
				Message: fmt.Sprintf("%d of %d countries have all action variants",
					f.CountriesWithActions, f.ActiveCountries),
			}
		}
	case CommandResolve:
		if f.LockedCountries != f.ActiveCountries {
			return &Rejection{
				Code:    RejectionCodeLocksIncomplete,
				Message: fmt.Sprintf("%d of %d countries are locked", f.LockedCountries, f.ActiveCountries),
			}
		}
	}
	return nil
}

// Evaluate returns every command legal under the facts.
func Evaluate(f Facts) CommandSet {
	set := CommandSet{}
	for _, c := range Commands() {
		if Check(f, c) == nil {
			set = append(set, c)
		}
	}
	return set
}

func requiredPhase(c Command) (Phase, bool) {
	switch c {
	case CommandAdvanceExternal:
		return Setup, true
	case CommandGenerateActions:
		return ExternalGenerated, true
	case CommandPublish:
		return ActionsGenerated, true
	case CommandCommitLock, CommandResolve:
		return ActionsPublished, true
	default:
		return "", false
	}
}

func externalIncomplete(f Facts) *Rejection {
	return &Rejection{
		Code:    RejectionCodeExternalIncomplete,
		Message: fmt.Sprintf("round has %d external events, want %d", f.ExternalEvents, RequiredExternalEvents),
	}
}
