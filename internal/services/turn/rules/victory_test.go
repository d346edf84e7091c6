package rules

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/louisbranch/euroturn/internal/services/turn/domain/country"
	"github.com/louisbranch/euroturn/internal/services/turn/domain/state"
	"github.com/louisbranch/euroturn/internal/services/turn/domain/victory"
)

func testCatalog(conditions ...country.Condition) country.Catalog {
	return country.Catalog{
		Countries: []country.Definition{{Key: "Germany", Conditions: conditions}},
	}
}

func TestLuaEvaluatorThresholdProgress(t *testing.T) {
	catalog := testCatalog(country.Condition{Name: "economy", Metric: "economy", Min: 100})
	metrics := map[string]state.Metrics{"Germany": {Economy: 75}}

	got, err := LuaEvaluator{}.Evaluate(context.Background(), metrics, state.EU{}, catalog)
	require.NoError(t, err)

	eval := got["Germany"]
	assert.False(t, eval.IsWinner)
	require.Len(t, eval.Results, 1)
	assert.InDelta(t, 0.75, eval.Results[0].Progress, 1e-9)
}

func TestLuaEvaluatorScriptSeesMetricsAndEU(t *testing.T) {
	catalog := testCatalog(
		country.Condition{Name: "lead", Script: "return diplomatic_influence >= 110 and eu.cohesion >= 75"},
		country.Condition{Name: "economy", Metric: "economy", Min: 110},
	)
	metrics := map[string]state.Metrics{"Germany": {DiplomaticInfluence: 111, Economy: 110}}

	got, err := LuaEvaluator{}.Evaluate(context.Background(), metrics, state.EU{Cohesion: 75}, catalog)
	require.NoError(t, err)
	assert.True(t, got["Germany"].IsWinner)

	got, err = LuaEvaluator{}.Evaluate(context.Background(), metrics, state.EU{Cohesion: 74}, catalog)
	require.NoError(t, err)
	assert.False(t, got["Germany"].IsWinner)
}

func TestLuaEvaluatorNumericScriptIsProgress(t *testing.T) {
	catalog := testCatalog(country.Condition{Name: "half", Script: "return stability / 100"})
	metrics := map[string]state.Metrics{"Germany": {Stability: 50}}

	got, err := LuaEvaluator{}.Evaluate(context.Background(), metrics, state.EU{}, catalog)
	require.NoError(t, err)

	result := got["Germany"].Results[0]
	assert.False(t, result.Met)
	assert.InDelta(t, 0.5, result.Progress, 1e-9)
}

func TestLuaEvaluatorRejectsBadScripts(t *testing.T) {
	for _, script := range []string{"return 'yes'", "return (", "error('boom')"} {
		catalog := testCatalog(country.Condition{Name: "bad", Script: script})
		_, err := LuaEvaluator{}.Evaluate(context.Background(), map[string]state.Metrics{"Germany": {}}, state.EU{}, catalog)
		assert.Error(t, err, script)
	}
}

func TestLuaEvaluatorScriptsCannotReachOS(t *testing.T) {
	catalog := testCatalog(country.Condition{Name: "os", Script: "return os.time() > 0"})
	_, err := LuaEvaluator{}.Evaluate(context.Background(), map[string]state.Metrics{"Germany": {}}, state.EU{}, catalog)
	assert.Error(t, err)
}

func TestLuaEvaluatorStopsLoopingScriptAtDeadline(t *testing.T) {
	catalog := testCatalog(country.Condition{Name: "forever", Script: "while true do end return true"})
	metrics := map[string]state.Metrics{"Germany": {}}
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := LuaEvaluator{Budget: math.MaxInt32}.Evaluate(ctx, metrics, state.EU{}, catalog)
		done <- err
	}()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.True(t, errors.Is(err, context.DeadlineExceeded), err.Error())
	case <-time.After(5 * time.Second):
		t.Fatal("looping script outlived its context")
	}
}

func TestLuaEvaluatorStopsScriptOverBudget(t *testing.T) {
	catalog := testCatalog(country.Condition{Name: "forever", Script: "while true do end return true"})
	metrics := map[string]state.Metrics{"Germany": {}}

	_, err := LuaEvaluator{Budget: 50_000}.Evaluate(context.Background(), metrics, state.EU{}, catalog)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeded 50000 instructions")

	catalog = testCatalog(country.Condition{Name: "short", Script: "local n = 0 for i = 1, 100 do n = n + i end return n >= 5050"})
	got, err := LuaEvaluator{Budget: 50_000}.Evaluate(context.Background(), metrics, state.EU{}, catalog)
	require.NoError(t, err)
	assert.True(t, got["Germany"].IsWinner)
}

func TestLuaEvaluatorNoConditionsNeverWins(t *testing.T) {
	got, err := LuaEvaluator{}.Evaluate(context.Background(), map[string]state.Metrics{"Germany": {}}, state.EU{}, testCatalog())
	require.NoError(t, err)
	assert.False(t, got["Germany"].IsWinner)
}

func TestLuaEvaluatorDefaultCatalog(t *testing.T) {
	catalog, err := country.Default()
	require.NoError(t, err)

	metrics := make(map[string]state.Metrics)
	for _, c := range catalog.InitialCountries() {
		metrics[c.Country] = c.Metrics
	}
	got, err := LuaEvaluator{}.Evaluate(context.Background(), metrics, catalog.InitialEU(), catalog)
	require.NoError(t, err)
	assert.Len(t, got, len(catalog.Countries))
	for key, eval := range got {
		assert.False(t, eval.IsWinner, key)
	}
}

func TestProgressFromConditions(t *testing.T) {
	assert.Zero(t, ProgressFromConditions(nil))
	assert.InDelta(t, 0.75, ProgressFromConditions([]victory.ConditionResult{
		{Progress: 1}, {Progress: 0.5},
	}), 1e-9)
	assert.InDelta(t, 0.5, ProgressFromConditions([]victory.ConditionResult{
		{Progress: 2}, {Progress: -1},
	}), 1e-9)
}
