// Package prompt renders the German prompts for every content call kind.
package prompt

import (
	"github.com/louisbranch/euroturn/internal/services/turn/domain/content"
	"github.com/louisbranch/euroturn/internal/services/turn/domain/state"
)

// Country is one country as a prompt sees it.
type Country struct {
	Key      string
	Display  string
	Ambition string
	Metrics  state.Metrics
	// RecentActions are the newest public action texts, newest first.
	RecentActions []string
}

// Choice is one locked action.
type Choice struct {
	Country string
	Display string
	Variant state.Variant
	Text    string
}

// ExternalInput feeds the external moves prompt.
type ExternalInput struct {
	Round     int
	EU        state.EU
	Craziness map[state.Actor]int
	// Summaries are the most recent round summaries, newest first.
	Summaries []state.Summary
}

// DomesticInput feeds the domestic events prompt.
type DomesticInput struct {
	Round     int
	EU        state.EU
	External  []state.ExternalEvent
	Countries []Country
	Summaries []state.Summary
}

// ActionInput feeds one country's action prompt.
type ActionInput struct {
	Round    int
	Country  Country
	EU       state.EU
	External []state.ExternalEvent
	// Domestic is the country's headline; empty means nothing was reported.
	Domestic string
}

// ResolutionInput feeds the round resolution prompt.
type ResolutionInput struct {
	Round     int
	EU        state.EU
	Countries []Country
	Choices   []Choice
	External  []state.ExternalEvent
	Domestic  []state.DomesticEvent
	Summaries []state.Summary
}

// SummaryInput feeds the round summary prompt.
type SummaryInput struct {
	Round      int
	EUBefore   state.EU
	EUAfter    state.EU
	Choices    []Choice
	Resolution content.RoundResolution
	External   []state.ExternalEvent
	Domestic   []state.DomesticEvent
	Summaries  []state.Summary
}
