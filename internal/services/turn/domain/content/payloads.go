package content

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/louisbranch/euroturn/internal/services/turn/domain/state"
)

// SummaryPlaceholder replaces an empty round summary.
const SummaryPlaceholder = "- (Keine Summary generiert)"

// ExternalMove is one validated actor move.
type ExternalMove struct {
	Actor     state.Actor
	Headline  string
	Quote     string
	Modifiers state.Modifiers
}

// ExternalMoves is the validated external moves payload, one move per actor
// in actor order.
type ExternalMoves struct {
	GlobalContext string
	Moves         []ExternalMove
}

func (ExternalMoves) Kind() Kind { return KindExternalMoves }

// DomesticEvent is one validated domestic headline.
type DomesticEvent struct {
	Headline  string
	Details   string
	Craziness int
}

// DomesticEvents is the validated domestic events payload keyed by country.
type DomesticEvents struct {
	Events map[string]DomesticEvent
}

func (DomesticEvents) Kind() Kind { return KindDomesticEvents }

// CountryActions is the validated three-variant action payload.
type CountryActions struct {
	Options map[state.Variant]state.ActionOption
}

func (CountryActions) Kind() Kind { return KindCountryActions }

// RoundResolution is the validated per-round outcome for every country.
type RoundResolution struct {
	CohesionDelta int
	// GlobalContext is empty when the response left the context unchanged.
	GlobalContext string
	Deltas        map[string]state.Metrics
	Notes         string
}

func (RoundResolution) Kind() Kind { return KindRoundResolution }

// RoundSummary is the validated narrative recap.
type RoundSummary struct {
	Text string
}

func (RoundSummary) Kind() Kind { return KindRoundSummary }

const externalMovesSchema = `
{
  "global_context": "1 Zeile",
  "moves": [
    {
      "actor": "Russia",
      "headline": "...",
      "quote": "...",
      "modifiers": {
        "eu_cohesion_delta": 0,
        "threat_delta": 0,
        "frontline_delta": 0,
        "energy_delta": 0,
        "migration_delta": 0,
        "disinfo_delta": 0,
        "trade_war_delta": 0
      }
    },
    {"actor":"USA","headline":"...","quote":"...","modifiers":{...}},
    {"actor":"China","headline":"...","quote":"...","modifiers":{...}}
  ]
}`

// ExternalMovesContract validates exactly one move for each external actor.
func ExternalMovesContract() Contract[ExternalMoves] {
	return Contract[ExternalMoves]{
		Kind:            KindExternalMoves,
		Schema:          externalMovesSchema,
		RepairMaxTokens: 900,
		Validate:        validateExternalMoves,
	}
}

type externalMovesWire struct {
	GlobalContext *string `json:"global_context"`
	Moves         []struct {
		Actor     string              `json:"actor"`
		Headline  string              `json:"headline"`
		Quote     string              `json:"quote"`
		Modifiers *map[string]integer `json:"modifiers"`
	} `json:"moves"`
}

func validateExternalMoves(raw json.RawMessage) (ExternalMoves, error) {
	var wire externalMovesWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return ExternalMoves{}, fmt.Errorf("external moves: %w", err)
	}
	if wire.GlobalContext == nil {
		return ExternalMoves{}, errors.New(`"global_context" is required`)
	}
	if len(wire.Moves) != len(state.Actors()) {
		return ExternalMoves{}, fmt.Errorf(`"moves" must hold exactly %d entries, got %d`, len(state.Actors()), len(wire.Moves))
	}

	byActor := make(map[state.Actor]ExternalMove, len(wire.Moves))
	var seen []string
	for i, m := range wire.Moves {
		seen = append(seen, m.Actor)
		actor, err := state.ParseActor(m.Actor)
		if err != nil {
			return ExternalMoves{}, fmt.Errorf("moves[%d]: %w", i, err)
		}
		if _, dup := byActor[actor]; dup {
			continue
		}
		headline := strings.TrimSpace(m.Headline)
		if headline == "" {
			return ExternalMoves{}, fmt.Errorf("moves[%d]: headline is required", i)
		}
		if m.Modifiers == nil {
			return ExternalMoves{}, fmt.Errorf("moves[%d]: modifiers are required", i)
		}
		modifiers, err := parseModifiers(*m.Modifiers)
		if err != nil {
			return ExternalMoves{}, fmt.Errorf("moves[%d]: %w", i, err)
		}
		byActor[actor] = ExternalMove{
			Actor:     actor,
			Headline:  headline,
			Quote:     strings.TrimSpace(m.Quote),
			Modifiers: modifiers,
		}
	}
	if len(byActor) != len(state.Actors()) {
		return ExternalMoves{}, fmt.Errorf("actors must be exactly %v, got %v", state.Actors(), seen)
	}

	out := ExternalMoves{GlobalContext: strings.TrimSpace(*wire.GlobalContext)}
	for _, actor := range state.Actors() {
		out.Moves = append(out.Moves, byActor[actor])
	}
	return out, nil
}

// modifierKeys lists the deltas every external move must carry.
var modifierKeys = []string{
	"eu_cohesion_delta",
	"threat_delta",
	"frontline_delta",
	"energy_delta",
	"migration_delta",
	"disinfo_delta",
	"trade_war_delta",
}

func parseModifiers(values map[string]integer) (state.Modifiers, error) {
	var m state.Modifiers
	for name, v := range values {
		switch name {
		case "eu_cohesion_delta":
			m.EUCohesion = int(v)
		case "threat_delta":
			m.Threat = int(v)
		case "frontline_delta":
			m.Frontline = int(v)
		case "energy_delta":
			m.Energy = int(v)
		case "migration_delta":
			m.Migration = int(v)
		case "disinfo_delta":
			m.Disinfo = int(v)
		case "trade_war_delta":
			m.TradeWar = int(v)
		default:
			return state.Modifiers{}, fmt.Errorf("unknown modifier %q", name)
		}
	}
	var missing []string
	for _, name := range modifierKeys {
		if _, ok := values[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return state.Modifiers{}, fmt.Errorf("missing modifiers %v", missing)
	}
	return m, nil
}

const domesticEventsSchema = `
{
  "events": {
    "Germany": {"headline": "...", "details": "...", "craziness": 0}
  }
}`

// DomesticEventsContract validates one domestic event per active country.
func DomesticEventsContract(countries []string) Contract[DomesticEvents] {
	active := slices.Clone(countries)
	return Contract[DomesticEvents]{
		Kind:            KindDomesticEvents,
		Schema:          domesticEventsSchema,
		RepairMaxTokens: 1400,
		Validate: func(raw json.RawMessage) (DomesticEvents, error) {
			return validateDomesticEvents(raw, active)
		},
	}
}

func validateDomesticEvents(raw json.RawMessage, countries []string) (DomesticEvents, error) {
	var wire struct {
		Events map[string]*struct {
			Headline  string  `json:"headline"`
			Details   string  `json:"details"`
			Craziness integer `json:"craziness"`
		} `json:"events"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return DomesticEvents{}, fmt.Errorf("domestic events: %w", err)
	}
	if wire.Events == nil {
		return DomesticEvents{}, errors.New(`"events" is required`)
	}
	if err := sameKeys("events", keysOf(wire.Events), countries); err != nil {
		return DomesticEvents{}, err
	}

	out := DomesticEvents{Events: make(map[string]DomesticEvent, len(countries))}
	for _, country := range countries {
		e := wire.Events[country]
		if e == nil || strings.TrimSpace(e.Headline) == "" {
			return DomesticEvents{}, fmt.Errorf("events.%s: headline is required", country)
		}
		out.Events[country] = DomesticEvent{
			Headline:  strings.TrimSpace(e.Headline),
			Details:   strings.TrimSpace(e.Details),
			Craziness: int(e.Craziness),
		}
	}
	return out, nil
}

const countryActionsSchema = `
{
  "aggressiv": {
    "aktion": "...",
    "folgen": {
      "land": {"militär": 0, "stabilität": 0, "wirtschaft": 0, "diplomatie": 0, "öffentliche_zustimmung": 0},
      "eu": {"kohäsion": 0},
      "global_context": "..."
    }
  },
  "moderate": { ... },
  "passiv": { ... }
}`

// CountryActionsContract validates exactly the three action variants.
func CountryActionsContract() Contract[CountryActions] {
	return Contract[CountryActions]{
		Kind:            KindCountryActions,
		Schema:          countryActionsSchema,
		RepairMaxTokens: 1400,
		Validate:        validateCountryActions,
	}
}

type actionWire struct {
	Aktion *string `json:"aktion"`
	Folgen *struct {
		Land          *map[string]integer `json:"land"`
		EU            *map[string]integer `json:"eu"`
		GlobalContext *string             `json:"global_context"`
	} `json:"folgen"`
}

func validateCountryActions(raw json.RawMessage) (CountryActions, error) {
	var wire map[string]json.RawMessage
	if err := json.Unmarshal(raw, &wire); err != nil {
		return CountryActions{}, fmt.Errorf("country actions: %w", err)
	}
	want := make([]string, 0, len(state.Variants()))
	for _, v := range state.Variants() {
		want = append(want, string(v))
	}
	if err := sameKeys("actions", keysOf(wire), want); err != nil {
		return CountryActions{}, err
	}

	out := CountryActions{Options: make(map[state.Variant]state.ActionOption, len(want))}
	for _, variant := range state.Variants() {
		option, err := decodeAction(variant, wire[string(variant)])
		if err != nil {
			return CountryActions{}, err
		}
		out.Options[variant] = option
	}
	return out, nil
}

func decodeAction(variant state.Variant, raw json.RawMessage) (state.ActionOption, error) {
	var a actionWire
	if err := json.Unmarshal(raw, &a); err != nil {
		return state.ActionOption{}, fmt.Errorf("%s: %w", variant, err)
	}
	if a.Aktion == nil || strings.TrimSpace(*a.Aktion) == "" {
		return state.ActionOption{}, fmt.Errorf("%s: \"aktion\" is required", variant)
	}
	if a.Folgen == nil {
		return state.ActionOption{}, fmt.Errorf("%s: \"folgen\" is required", variant)
	}
	if a.Folgen.Land == nil || a.Folgen.EU == nil || a.Folgen.GlobalContext == nil {
		return state.ActionOption{}, fmt.Errorf("%s.folgen must contain land, eu and global_context", variant)
	}
	land, err := metricDeltas(*a.Folgen.Land)
	if err != nil {
		return state.ActionOption{}, fmt.Errorf("%s.folgen.land: %w", variant, err)
	}
	var cohesion int
	for name, v := range *a.Folgen.EU {
		if name != "kohäsion" {
			return state.ActionOption{}, fmt.Errorf("%s.folgen.eu: unknown key %q", variant, name)
		}
		cohesion = int(v)
	}
	return state.ActionOption{
		Variant: variant,
		Text:    strings.TrimSpace(*a.Aktion),
		Consequences: state.Consequences{
			Land:          land,
			EUCohesion:    cohesion,
			GlobalContext: strings.TrimSpace(*a.Folgen.GlobalContext),
		},
	}, nil
}

const roundResolutionSchema = `
{
  "eu": {"kohäsion_delta": 0, "global_context": "..."},
  "länder": {
    "Germany": {"militär": 0, "stabilität": 0, "wirtschaft": 0, "diplomatie": 0, "öffentliche_zustimmung": 0}
  },
  "notizen": "kurz"
}`

// RoundResolutionContract validates one delta map for every active country.
func RoundResolutionContract(countries []string) Contract[RoundResolution] {
	active := slices.Clone(countries)
	return Contract[RoundResolution]{
		Kind:            KindRoundResolution,
		Schema:          roundResolutionSchema,
		RepairMaxTokens: 1400,
		Validate: func(raw json.RawMessage) (RoundResolution, error) {
			return validateRoundResolution(raw, active)
		},
	}
}

func validateRoundResolution(raw json.RawMessage, countries []string) (RoundResolution, error) {
	var wire struct {
		EU *struct {
			CohesionDelta integer `json:"kohäsion_delta"`
			GlobalContext *string `json:"global_context"`
		} `json:"eu"`
		Countries map[string]map[string]integer `json:"länder"`
		Notes     json.RawMessage               `json:"notizen"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return RoundResolution{}, fmt.Errorf("round resolution: %w", err)
	}
	if wire.EU == nil {
		return RoundResolution{}, errors.New(`"eu" is required`)
	}
	if wire.Countries == nil {
		return RoundResolution{}, errors.New(`"länder" is required`)
	}
	if err := sameKeys("länder", keysOf(wire.Countries), countries); err != nil {
		return RoundResolution{}, err
	}

	out := RoundResolution{
		CohesionDelta: int(wire.EU.CohesionDelta),
		Deltas:        make(map[string]state.Metrics, len(countries)),
		Notes:         stringOrEmpty(wire.Notes),
	}
	if wire.EU.GlobalContext != nil {
		out.GlobalContext = strings.TrimSpace(*wire.EU.GlobalContext)
	}
	for _, country := range countries {
		deltas, err := metricDeltas(wire.Countries[country])
		if err != nil {
			return RoundResolution{}, fmt.Errorf("länder.%s: %w", country, err)
		}
		out.Deltas[country] = deltas
	}
	return out, nil
}

const roundSummarySchema = `{ "summary": "..." }`

// RoundSummaryContract accepts any summary string, substituting a placeholder
// for an empty one.
func RoundSummaryContract() Contract[RoundSummary] {
	return Contract[RoundSummary]{
		Kind:            KindRoundSummary,
		Schema:          roundSummarySchema,
		RepairMaxTokens: 600,
		Validate:        validateRoundSummary,
	}
}

func validateRoundSummary(raw json.RawMessage) (RoundSummary, error) {
	var wire struct {
		Summary json.RawMessage `json:"summary"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return RoundSummary{}, fmt.Errorf("round summary: %w", err)
	}
	text := ""
	if len(wire.Summary) > 0 && !bytes.Equal(wire.Summary, []byte("null")) {
		if err := json.Unmarshal(wire.Summary, &text); err != nil {
			return RoundSummary{}, errors.New(`"summary" must be a string`)
		}
	}
	text = strings.TrimSpace(text)
	if text == "" {
		text = SummaryPlaceholder
	}
	return RoundSummary{Text: text}, nil
}

func metricDeltas(values map[string]integer) (state.Metrics, error) {
	plain := make(map[string]int, len(values))
	for name, v := range values {
		plain[name] = int(v)
	}
	return state.MetricsFromMap(plain)
}

func stringOrEmpty(raw json.RawMessage) string {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

func keysOf[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// sameKeys reports a schema problem unless got and want hold the same set.
func sameKeys(field string, got, want []string) error {
	wantSet := make(map[string]struct{}, len(want))
	for _, k := range want {
		wantSet[k] = struct{}{}
	}
	var missing, extra []string
	gotSet := make(map[string]struct{}, len(got))
	for _, k := range got {
		gotSet[k] = struct{}{}
		if _, ok := wantSet[k]; !ok {
			extra = append(extra, k)
		}
	}
	for _, k := range want {
		if _, ok := gotSet[k]; !ok {
			missing = append(missing, k)
		}
	}
	if len(missing) == 0 && len(extra) == 0 {
		return nil
	}
	sort.Strings(missing)
	return fmt.Errorf("%q keys must be exactly %v (missing %v, unexpected %v)", field, want, missing, extra)
}
