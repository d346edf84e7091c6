package country

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/louisbranch/euroturn/internal/services/turn/domain/state"
)

//go:embed default.yaml
var defaultCatalog []byte

// Range is an inclusive integer interval.
type Range struct {
	Min int `yaml:"min"`
	Max int `yaml:"max"`
}

// Actor configures one external power.
type Actor struct {
	Name      state.Actor `yaml:"name"`
	Craziness Range       `yaml:"craziness"`
}

// Condition is one victory requirement for a country.
//
// A condition is either a threshold on one metric (Metric and Min) or a Lua
// expression (Script) evaluated against the country's metrics.
type Condition struct {
	Name   string `yaml:"name"`
	Metric string `yaml:"metric,omitempty"`
	Min    int    `yaml:"min,omitempty"`
	Script string `yaml:"script,omitempty"`
}

// StartMetrics are the metrics a country starts the game with.
type StartMetrics struct {
	Military            int `yaml:"military"`
	Stability           int `yaml:"stability"`
	Economy             int `yaml:"economy"`
	DiplomaticInfluence int `yaml:"diplomatic_influence"`
	PublicApproval      int `yaml:"public_approval"`
}

// Definition is the static description of one country.
type Definition struct {
	Key        string       `yaml:"key"`
	Display    string       `yaml:"display"`
	Ambition   string       `yaml:"ambition"`
	Start      StartMetrics `yaml:"start"`
	Conditions []Condition  `yaml:"conditions"`
}

// Metrics returns the starting metrics as engine values.
func (d Definition) Metrics() state.Metrics {
	return state.Metrics{
		Military:            d.Start.Military,
		Stability:           d.Start.Stability,
		Economy:             d.Start.Economy,
		DiplomaticInfluence: d.Start.DiplomaticInfluence,
		PublicApproval:      d.Start.PublicApproval,
	}
}

// StartEU is the EU state a fresh game starts from.
type StartEU struct {
	Cohesion          int    `yaml:"cohesion"`
	GlobalContext     string `yaml:"global_context"`
	ThreatLevel       int    `yaml:"threat_level"`
	FrontlinePressure int    `yaml:"frontline_pressure"`
	EnergyPressure    int    `yaml:"energy_pressure"`
	MigrationPressure int    `yaml:"migration_pressure"`
	DisinfoPressure   int    `yaml:"disinfo_pressure"`
	TradeWarPressure  int    `yaml:"trade_war_pressure"`
}

// Catalog is the full static game definition.
//
// Country order is significant: it is the iteration order for prompts,
// resolution and the victory tie-break.
type Catalog struct {
	EU        StartEU      `yaml:"eu"`
	Actors    []Actor      `yaml:"actors"`
	Countries []Definition `yaml:"countries"`
}

// Default returns the embedded catalog.
func Default() (Catalog, error) {
	return Parse(defaultCatalog)
}

// Load reads a catalog from path, or the embedded default when path is empty.
func Load(path string) (Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML catalog.
func Parse(data []byte) (Catalog, error) {
	var catalog Catalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return Catalog{}, fmt.Errorf("decode catalog: %w", err)
	}
	if err := catalog.Validate(); err != nil {
		return Catalog{}, err
	}
	return catalog, nil
}

// Validate checks catalog invariants.
func (c Catalog) Validate() error {
	if len(c.Countries) == 0 {
		return fmt.Errorf("catalog requires at least one country")
	}
	seen := make(map[string]struct{}, len(c.Countries))
	for _, def := range c.Countries {
		key := strings.TrimSpace(def.Key)
		if key == "" {
			return fmt.Errorf("country key is required")
		}
		if key != def.Key {
			return fmt.Errorf("country key %q has surrounding whitespace", def.Key)
		}
		if _, ok := seen[key]; ok {
			return fmt.Errorf("duplicate country %q", key)
		}
		seen[key] = struct{}{}
		for _, cond := range def.Conditions {
			if err := validateCondition(key, cond); err != nil {
				return err
			}
		}
	}

	actors := make(map[state.Actor]struct{}, len(c.Actors))
	for _, actor := range c.Actors {
		if _, err := state.ParseActor(string(actor.Name)); err != nil {
			return fmt.Errorf("catalog actor: %w", err)
		}
		if actor.Craziness.Min > actor.Craziness.Max {
			return fmt.Errorf("actor %s craziness min %d exceeds max %d", actor.Name, actor.Craziness.Min, actor.Craziness.Max)
		}
		actors[actor.Name] = struct{}{}
	}
	if len(actors) != len(state.Actors()) || len(c.Actors) != len(state.Actors()) {
		return fmt.Errorf("catalog must configure each of %v exactly once", state.Actors())
	}
	return nil
}

func validateCondition(country string, cond Condition) error {
	if strings.TrimSpace(cond.Name) == "" {
		return fmt.Errorf("country %s: condition name is required", country)
	}
	hasMetric := strings.TrimSpace(cond.Metric) != ""
	hasScript := strings.TrimSpace(cond.Script) != ""
	if hasMetric == hasScript {
		return fmt.Errorf("country %s condition %s: exactly one of metric or script is required", country, cond.Name)
	}
	if hasMetric {
		if _, err := MetricField(cond.Metric); err != nil {
			return fmt.Errorf("country %s condition %s: %w", country, cond.Name, err)
		}
	}
	return nil
}

// MetricField resolves a catalog metric field name.
func MetricField(name string) (state.Metric, error) {
	switch strings.TrimSpace(name) {
	case "military":
		return state.MetricMilitary, nil
	case "stability":
		return state.MetricStability, nil
	case "economy":
		return state.MetricEconomy, nil
	case "diplomatic_influence":
		return state.MetricDiplomaticInfluence, nil
	case "public_approval":
		return state.MetricPublicApproval, nil
	default:
		return "", fmt.Errorf("unknown metric field %q", name)
	}
}

// Keys returns the country keys in catalog order.
func (c Catalog) Keys() []string {
	keys := make([]string, len(c.Countries))
	for i, def := range c.Countries {
		keys[i] = def.Key
	}
	return keys
}

// Lookup returns the definition for key.
func (c Catalog) Lookup(key string) (Definition, bool) {
	for _, def := range c.Countries {
		if def.Key == key {
			return def, true
		}
	}
	return Definition{}, false
}

// Display returns the display name for key, falling back to the key.
func (c Catalog) Display(key string) string {
	if def, ok := c.Lookup(key); ok && strings.TrimSpace(def.Display) != "" {
		return def.Display
	}
	return key
}

// Craziness returns the configured range for actor.
func (c Catalog) Craziness(actor state.Actor) (Range, bool) {
	for _, a := range c.Actors {
		if a.Name == actor {
			return a.Craziness, true
		}
	}
	return Range{}, false
}

// InitialEU returns the starting EU state.
func (c Catalog) InitialEU() state.EU {
	return state.EU{
		Cohesion:          c.EU.Cohesion,
		GlobalContext:     c.EU.GlobalContext,
		ThreatLevel:       c.EU.ThreatLevel,
		FrontlinePressure: c.EU.FrontlinePressure,
		EnergyPressure:    c.EU.EnergyPressure,
		MigrationPressure: c.EU.MigrationPressure,
		DisinfoPressure:   c.EU.DisinfoPressure,
		TradeWarPressure:  c.EU.TradeWarPressure,
	}
}

// InitialCountries returns the starting state for every country in order.
func (c Catalog) InitialCountries() []state.CountryMetrics {
	out := make([]state.CountryMetrics, len(c.Countries))
	for i, def := range c.Countries {
		out[i] = state.CountryMetrics{Country: def.Key, Metrics: def.Metrics(), Ambition: def.Ambition}
	}
	return out
}
