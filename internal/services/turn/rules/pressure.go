package rules

import (
	"strings"

	"github.com/louisbranch/euroturn/internal/services/turn/domain/content"
	"github.com/louisbranch/euroturn/internal/services/turn/domain/state"
)

const (
	// PressureMin and PressureMax bound every EU pressure gauge.
	PressureMin = 0
	PressureMax = 100

	decayPercent = 10
)

// DecayPressures eases every pressure toward zero by 10%, at least one point.
func DecayPressures(eu state.EU) state.EU {
	for _, p := range state.Pressures() {
		value := eu.Pressure(p)
		if value <= PressureMin {
			continue
		}
		step := max(1, value*decayPercent/100)
		eu = eu.WithPressure(p, max(PressureMin, value-step))
	}
	return eu
}

// ApplyExternalModifiers adds every move's modifiers to eu. Pressures are
// clamped to their gauge range; cohesion is not. A non-blank global context
// replaces the current one.
func ApplyExternalModifiers(eu state.EU, moves content.ExternalMoves) state.EU {
	var sum state.Modifiers
	for _, m := range moves.Moves {
		sum.EUCohesion += m.Modifiers.EUCohesion
		sum.Threat += m.Modifiers.Threat
		sum.Frontline += m.Modifiers.Frontline
		sum.Energy += m.Modifiers.Energy
		sum.Migration += m.Modifiers.Migration
		sum.Disinfo += m.Modifiers.Disinfo
		sum.TradeWar += m.Modifiers.TradeWar
	}

	eu.Cohesion += sum.EUCohesion
	eu.ThreatLevel = clampPressure(eu.ThreatLevel + sum.Threat)
	eu.FrontlinePressure = clampPressure(eu.FrontlinePressure + sum.Frontline)
	eu.EnergyPressure = clampPressure(eu.EnergyPressure + sum.Energy)
	eu.MigrationPressure = clampPressure(eu.MigrationPressure + sum.Migration)
	eu.DisinfoPressure = clampPressure(eu.DisinfoPressure + sum.Disinfo)
	eu.TradeWarPressure = clampPressure(eu.TradeWarPressure + sum.TradeWar)
	if ctx := strings.TrimSpace(moves.GlobalContext); ctx != "" {
		eu.GlobalContext = ctx
	}
	return eu
}

func clampPressure(value int) int {
	return min(PressureMax, max(PressureMin, value))
}
