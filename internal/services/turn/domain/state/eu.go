package state

// EU is the singleton EU-wide state.
type EU struct {
	Cohesion          int    `json:"cohesion"`
	GlobalContext     string `json:"global_context"`
	ThreatLevel       int    `json:"threat_level"`
	FrontlinePressure int    `json:"frontline_pressure"`
	EnergyPressure    int    `json:"energy_pressure"`
	MigrationPressure int    `json:"migration_pressure"`
	DisinfoPressure   int    `json:"disinfo_pressure"`
	TradeWarPressure  int    `json:"trade_war_pressure"`

	// ExternalRound is the last round whose external modifiers were applied.
	ExternalRound int `json:"external_round"`
	// ResolvedRound is the last round whose resolution delta was applied.
	ResolvedRound int `json:"resolved_round"`
}

// Pressure names one EU pressure gauge.
type Pressure string

const (
	PressureThreat    Pressure = "threat_level"
	PressureFrontline Pressure = "frontline_pressure"
	PressureEnergy    Pressure = "energy_pressure"
	PressureMigration Pressure = "migration_pressure"
	PressureDisinfo   Pressure = "disinfo_pressure"
	PressureTradeWar  Pressure = "trade_war_pressure"
)

// Pressures lists the gauges in display order.
func Pressures() []Pressure {
	return []Pressure{
		PressureThreat,
		PressureFrontline,
		PressureEnergy,
		PressureMigration,
		PressureDisinfo,
		PressureTradeWar,
	}
}

// Pressure returns one gauge value.
func (e EU) Pressure(p Pressure) int {
	switch p {
	case PressureThreat:
		return e.ThreatLevel
	case PressureFrontline:
		return e.FrontlinePressure
	case PressureEnergy:
		return e.EnergyPressure
	case PressureMigration:
		return e.MigrationPressure
	case PressureDisinfo:
		return e.DisinfoPressure
	case PressureTradeWar:
		return e.TradeWarPressure
	default:
		return 0
	}
}

// WithPressure returns a copy of e with one gauge replaced.
func (e EU) WithPressure(p Pressure, value int) EU {
	switch p {
	case PressureThreat:
		e.ThreatLevel = value
	case PressureFrontline:
		e.FrontlinePressure = value
	case PressureEnergy:
		e.EnergyPressure = value
	case PressureMigration:
		e.MigrationPressure = value
	case PressureDisinfo:
		e.DisinfoPressure = value
	case PressureTradeWar:
		e.TradeWarPressure = value
	}
	return e
}
