package mcpserver

import (
	"sort"

	"github.com/louisbranch/euroturn/internal/services/turn/domain/engine"
	"github.com/louisbranch/euroturn/internal/services/turn/domain/phase"
	"github.com/louisbranch/euroturn/internal/services/turn/domain/state"
)

// EUView is the EU state as tools report it.
type EUView struct {
	Cohesion          int    `json:"cohesion" jsonschema:"EU cohesion percentage"`
	GlobalContext     string `json:"global_context" jsonschema:"one-line description of the world situation"`
	ThreatLevel       int    `json:"threat_level"`
	FrontlinePressure int    `json:"frontline_pressure"`
	EnergyPressure    int    `json:"energy_pressure"`
	MigrationPressure int    `json:"migration_pressure"`
	DisinfoPressure   int    `json:"disinfo_pressure"`
	TradeWarPressure  int    `json:"trade_war_pressure"`
}

func euView(eu state.EU) EUView {
	return EUView{
		Cohesion:          eu.Cohesion,
		GlobalContext:     eu.GlobalContext,
		ThreatLevel:       eu.ThreatLevel,
		FrontlinePressure: eu.FrontlinePressure,
		EnergyPressure:    eu.EnergyPressure,
		MigrationPressure: eu.MigrationPressure,
		DisinfoPressure:   eu.DisinfoPressure,
		TradeWarPressure:  eu.TradeWarPressure,
	}
}

// CountryView is one country's metrics.
type CountryView struct {
	Country  string         `json:"country" jsonschema:"internal country key"`
	Metrics  map[string]int `json:"metrics" jsonschema:"metric values keyed by military, stability, economy, diplomatic_influence, public_approval"`
	Ambition string         `json:"ambition,omitempty"`
}

// StandingView is one snapshot row.
type StandingView struct {
	Round    int     `json:"round"`
	Country  string  `json:"country"`
	Progress float64 `json:"victory_progress" jsonschema:"progress toward victory in [0,1]"`
	IsWinner bool    `json:"is_winner"`
}

// SummaryView is one round summary.
type SummaryView struct {
	Round int    `json:"round"`
	Text  string `json:"text"`
}

// ExternalView is one external move.
type ExternalView struct {
	Actor     string `json:"actor"`
	Headline  string `json:"headline"`
	Quote     string `json:"quote,omitempty"`
	Craziness int    `json:"craziness"`
}

// DomesticView is one domestic headline.
type DomesticView struct {
	Country   string `json:"country"`
	Headline  string `json:"headline"`
	Details   string `json:"details,omitempty"`
	Craziness int    `json:"craziness"`
}

// OptionView is one action variant.
type OptionView struct {
	Variant string `json:"variant" jsonschema:"aggressiv, moderate or passiv"`
	Text    string `json:"text"`
}

// ActionsView is one country's action variants.
type ActionsView struct {
	Country string       `json:"country"`
	Options []OptionView `json:"options"`
}

// TurnView is one country's resolved turn.
type TurnView struct {
	Country string         `json:"country"`
	Variant string         `json:"variant"`
	Action  string         `json:"action"`
	Deltas  map[string]int `json:"deltas" jsonschema:"metric deltas keyed like country metrics"`
}

func externalViews(events []state.ExternalEvent) []ExternalView {
	out := make([]ExternalView, len(events))
	for i, e := range events {
		out[i] = ExternalView{Actor: string(e.Actor), Headline: e.Headline, Quote: e.Quote, Craziness: e.Craziness}
	}
	return out
}

func domesticViews(events []state.DomesticEvent) []DomesticView {
	out := make([]DomesticView, len(events))
	for i, e := range events {
		out[i] = DomesticView{Country: e.Country, Headline: e.Headline, Details: e.Details, Craziness: e.Craziness}
	}
	return out
}

func actionsViews(sets map[string]state.ActionSet) []ActionsView {
	keys := make([]string, 0, len(sets))
	for key := range sets {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	out := make([]ActionsView, 0, len(keys))
	for _, key := range keys {
		view := ActionsView{Country: key}
		for _, v := range state.Variants() {
			if option, ok := sets[key].Options[v]; ok {
				view.Options = append(view.Options, OptionView{Variant: string(v), Text: option.Text})
			}
		}
		out = append(out, view)
	}
	return out
}

func rejectionViews(r engine.Readiness) map[string]string {
	out := make(map[string]string, len(r.Rejections))
	for _, cmd := range phase.Commands() {
		if rejection, ok := r.Rejections[cmd]; ok {
			out[string(cmd)] = rejection.Code + ": " + rejection.Message
		}
	}
	return out
}
