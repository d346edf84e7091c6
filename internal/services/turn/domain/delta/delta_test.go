package delta

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/louisbranch/euroturn/internal/platform/errors"
	"github.com/louisbranch/euroturn/internal/services/turn/domain/content"
	"github.com/louisbranch/euroturn/internal/services/turn/domain/state"
	"github.com/louisbranch/euroturn/internal/services/turn/storage/memory"
)

func TestApplyCountryDeltasRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	require.NoError(t, store.PutCountry(ctx, state.CountryMetrics{Country: "Germany", Metrics: state.Metrics{Military: 80}}))
	engine := NewEngine(store)

	got, err := engine.ApplyCountryDeltas(ctx, "Germany", state.Metrics{Military: 5})
	require.NoError(t, err)
	assert.Equal(t, 85, got.Military)

	got, err = engine.ApplyCountryDeltas(ctx, "Germany", state.Metrics{Military: -5})
	require.NoError(t, err)
	assert.Equal(t, 80, got.Military)
}

func TestApplyCountryDeltasUnknownCountry(t *testing.T) {
	_, err := NewEngine(memory.New()).ApplyCountryDeltas(context.Background(), "Atlantis", state.Metrics{Military: 1})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestRecordTurnSkipsDuplicate(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	require.NoError(t, store.PutCountry(ctx, state.CountryMetrics{Country: "Germany", Metrics: state.Metrics{Economy: 95}}))
	engine := NewEngine(store)
	entry := state.HistoryEntry{Country: "Germany", Round: 3, Deltas: state.Metrics{Economy: -2}}

	applied, err := engine.RecordTurn(ctx, entry)
	require.NoError(t, err)
	assert.True(t, applied)
	applied, err = engine.RecordTurn(ctx, entry)
	require.NoError(t, err)
	assert.False(t, applied)

	countries, err := store.GetCountries(ctx, []string{"Germany"})
	require.NoError(t, err)
	assert.Equal(t, 93, countries["Germany"].Metrics.Economy)
}

func TestApplyEUDelta(t *testing.T) {
	eu := state.EU{Cohesion: 70, GlobalContext: "alt", ThreatLevel: 50, ExternalRound: 3, ResolvedRound: 2}
	halve := func(in state.EU) state.EU {
		in.ThreatLevel /= 2
		in.ResolvedRound = 99
		return in
	}

	got := ApplyEUDelta(eu, -1, "  neu  ", halve)
	assert.Equal(t, 69, got.Cohesion)
	assert.Equal(t, "neu", got.GlobalContext)
	assert.Equal(t, 25, got.ThreatLevel)
	assert.Equal(t, 2, got.ResolvedRound, "decay cannot touch bookkeeping")

	got = ApplyEUDelta(eu, 2, " ", nil)
	assert.Equal(t, 72, got.Cohesion)
	assert.Equal(t, "alt", got.GlobalContext)
	assert.Equal(t, 50, got.ThreatLevel)
}

func TestBuildPlan(t *testing.T) {
	in := planInput()

	plan, err := BuildPlan(in)
	require.NoError(t, err)

	assert.Equal(t, 69, plan.EUAfter.Cohesion)
	assert.Equal(t, 3, plan.EUAfter.ResolvedRound)
	assert.Equal(t, 70, plan.EUBefore.Cohesion)
	require.Len(t, plan.Turns, 1)
	turn := plan.Turns[0]
	assert.Equal(t, "Germany", turn.Country)
	assert.Equal(t, state.VariantModerate, turn.Variant)
	assert.Equal(t, "Vermitteln", turn.ActionText)
	assert.Equal(t, state.Metrics{Economy: -2}, turn.Deltas)
	assert.Equal(t, "Neue Lage", turn.GlobalContext)
	assert.Equal(t, 93, plan.MetricsAfter["Germany"].Economy)
}

func TestBuildPlanRejectsMissingInputs(t *testing.T) {
	tests := map[string]func(*PlanInput){
		"missing lock":       func(in *PlanInput) { in.Locks = nil },
		"missing metrics":    func(in *PlanInput) { in.Metrics = nil },
		"missing action":     func(in *PlanInput) { in.Actions = nil },
		"missing resolution": func(in *PlanInput) { in.Resolution.Deltas = nil },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			in := planInput()
			mutate(&in)
			_, err := BuildPlan(in)
			assert.Error(t, err)
		})
	}
}

func planInput() PlanInput {
	return PlanInput{
		Round:     3,
		Countries: []string{"Germany"},
		EU:        state.EU{Cohesion: 70, GlobalContext: "alt"},
		Metrics: map[string]state.CountryMetrics{
			"Germany": {Country: "Germany", Metrics: state.Metrics{Economy: 95}},
		},
		Locks: map[string]state.Lock{"Germany": {Round: 3, Country: "Germany", Variant: state.VariantModerate}},
		Actions: map[string]state.ActionSet{"Germany": {Options: map[state.Variant]state.ActionOption{
			state.VariantModerate: {Variant: state.VariantModerate, Text: "Vermitteln"},
		}}},
		Resolution: content.RoundResolution{
			CohesionDelta: -1,
			GlobalContext: "Neue Lage",
			Deltas:        map[string]state.Metrics{"Germany": {Economy: -2}},
		},
	}
}
