package state

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsAddRoundTrip(t *testing.T) {
	start := Metrics{Military: 80, Stability: 90, Economy: 95, DiplomaticInfluence: 95, PublicApproval: 85}

	up := start.Add(Metrics{Military: 5})
	assert.Equal(t, 85, up.Military)
	assert.Equal(t, start, up.Add(Metrics{Military: -5}))
	assert.Equal(t, start, up.Add(Metrics{Military: 5}.Negate()))
}

func TestMetricsAreNotClamped(t *testing.T) {
	m := Metrics{Economy: 98}.Add(Metrics{Economy: 10})
	assert.Equal(t, 108, m.Economy)

	m = Metrics{Stability: 3}.Add(Metrics{Stability: -10})
	assert.Equal(t, -7, m.Stability)
}

func TestMetricsFromMap(t *testing.T) {
	m, err := MetricsFromMap(map[string]int{"wirtschaft": -2, "militär": 4})
	require.NoError(t, err)
	assert.Equal(t, Metrics{Economy: -2, Military: 4}, m)

	_, err = MetricsFromMap(map[string]int{"economy": 1})
	require.Error(t, err)
}

func TestMetricsToMapCoversAllNames(t *testing.T) {
	m := Metrics{Military: 1, Stability: 2, Economy: 3, DiplomaticInfluence: 4, PublicApproval: 5}
	values := m.ToMap()

	require.Len(t, values, 5)
	back, err := MetricsFromMap(values)
	require.NoError(t, err)
	assert.Equal(t, m, back)
}

func TestMetricsNamedMatchesJSONFields(t *testing.T) {
	m := Metrics{Military: 1, Stability: 2, Economy: 3, DiplomaticInfluence: 4, PublicApproval: -5}

	data, err := json.Marshal(m)
	require.NoError(t, err)
	var fromJSON map[string]int
	require.NoError(t, json.Unmarshal(data, &fromJSON))

	assert.Equal(t, fromJSON, m.Named())
	assert.Equal(t, 3, m.Named()["economy"])
}

func TestParseVariant(t *testing.T) {
	v, err := ParseVariant(" Moderate ")
	require.NoError(t, err)
	assert.Equal(t, VariantModerate, v)

	_, err = ParseVariant("aggressive")
	assert.Error(t, err)
}

func TestParseActorIsCaseSensitive(t *testing.T) {
	a, err := ParseActor("Russia")
	require.NoError(t, err)
	assert.Equal(t, ActorRussia, a)

	_, err = ParseActor("russia")
	assert.Error(t, err)
	_, err = ParseActor("Russland")
	assert.Error(t, err)
}

func TestActionSetComplete(t *testing.T) {
	set := ActionSet{Options: map[Variant]ActionOption{
		VariantAggressive: {Variant: VariantAggressive},
		VariantModerate:   {Variant: VariantModerate},
	}}
	assert.False(t, set.Complete())

	set.Options[VariantPassive] = ActionOption{Variant: VariantPassive}
	assert.True(t, set.Complete())
}

func TestEUPressureAccessors(t *testing.T) {
	eu := EU{}
	for i, p := range Pressures() {
		eu = eu.WithPressure(p, i+10)
	}
	for i, p := range Pressures() {
		assert.Equal(t, i+10, eu.Pressure(p), string(p))
	}
}
