package state

import (
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/euroturn/internal/services/turn/domain/phase"
)

// Actor is an external power acting on the EU each round.
type Actor string

const (
	ActorUSA    Actor = "USA"
	ActorChina  Actor = "China"
	ActorRussia Actor = "Russia"
)

// Actors lists the external powers; every round carries one move for each.
func Actors() []Actor {
	return []Actor{ActorUSA, ActorChina, ActorRussia}
}

// ParseActor resolves an actor name exactly as generated payloads spell it.
func ParseActor(value string) (Actor, error) {
	actor := Actor(strings.TrimSpace(value))
	for _, known := range Actors() {
		if actor == known {
			return known, nil
		}
	}
	return "", fmt.Errorf("unknown actor %q", value)
}

// Variant tags one of the three action intensities offered per round.
type Variant string

const (
	VariantAggressive Variant = "aggressiv"
	VariantModerate   Variant = "moderate"
	VariantPassive    Variant = "passiv"
)

// Variants lists the action intensities in display order.
func Variants() []Variant {
	return []Variant{VariantAggressive, VariantModerate, VariantPassive}
}

// ParseVariant resolves a variant tag.
func ParseVariant(value string) (Variant, error) {
	variant := Variant(strings.ToLower(strings.TrimSpace(value)))
	for _, known := range Variants() {
		if variant == known {
			return known, nil
		}
	}
	return "", fmt.Errorf("unknown variant %q", value)
}

// Modifiers are the EU-wide deltas carried by one external move.
type Modifiers struct {
	EUCohesion int `json:"eu_cohesion_delta"`
	Threat     int `json:"threat_delta"`
	Frontline  int `json:"frontline_delta"`
	Energy     int `json:"energy_delta"`
	Migration  int `json:"migration_delta"`
	Disinfo    int `json:"disinfo_delta"`
	TradeWar   int `json:"trade_war_delta"`
}

// ExternalEvent is one actor's move in a round.
type ExternalEvent struct {
	Round     int
	Actor     Actor
	Headline  string
	Modifiers Modifiers
	Quote     string
	Craziness int
}

// DomesticEvent is one country's domestic headline in a round.
type DomesticEvent struct {
	Round     int
	Country   string
	Headline  string
	Details   string
	Craziness int
}

// Consequences are the projected effects attached to an action option.
type Consequences struct {
	Land          Metrics `json:"land"`
	EUCohesion    int     `json:"eu_cohesion"`
	GlobalContext string  `json:"global_context"`
}

// ActionOption is one generated variant offered to a country.
type ActionOption struct {
	Variant      Variant      `json:"variant"`
	Text         string       `json:"text"`
	Consequences Consequences `json:"consequences"`
}

// ActionSet holds the options generated for one country in one round.
type ActionSet struct {
	Round   int
	Country string
	Options map[Variant]ActionOption
}

// Complete reports whether every variant has an option.
func (s ActionSet) Complete() bool {
	if len(s.Options) != len(Variants()) {
		return false
	}
	for _, variant := range Variants() {
		if _, ok := s.Options[variant]; !ok {
			return false
		}
	}
	return true
}

// Lock is a country's committed choice for a round.
type Lock struct {
	Round       int
	Country     string
	Variant     Variant
	CommittedAt time.Time
}

// HistoryEntry is the append-only record of one country's resolved turn.
type HistoryEntry struct {
	Country       string
	Round         int
	Variant       Variant
	ActionText    string
	Deltas        Metrics
	GlobalContext string
	RecordedAt    time.Time
}

// Snapshot copies one country's metrics and victory standing for a round.
type Snapshot struct {
	Round           int
	Country         string
	Metrics         Metrics
	VictoryProgress float64
	IsWinner        bool
}

// Summary is the narrative recap of a resolved round.
type Summary struct {
	Round     int
	Text      string
	CreatedAt time.Time
}

// GameOverReasonWinConditions marks a game ended by a victory evaluation.
const GameOverReasonWinConditions = "win_conditions"

// Meta is the game-wide round pointer.
type Meta struct {
	Round         int
	Phase         phase.Phase
	GameOver      bool
	WinnerCountry string
	WinnerRound   int
	Reason        string
	UpdatedAt     time.Time
}
