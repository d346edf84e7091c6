package rules

import (
	"context"
	"fmt"
	"math"

	"github.com/Shopify/go-lua"

	"github.com/louisbranch/euroturn/internal/services/turn/domain/country"
	"github.com/louisbranch/euroturn/internal/services/turn/domain/state"
	"github.com/louisbranch/euroturn/internal/services/turn/domain/victory"
)

const (
	// DefaultScriptBudget caps the instructions one condition script may
	// execute when LuaEvaluator.Budget is zero.
	DefaultScriptBudget = 1_000_000
	// scriptCheckEvery is how often, in instructions, the budget and
	// context are checked.
	scriptCheckEvery = 1_000
)

// LuaEvaluator evaluates catalog win conditions.
//
// Threshold conditions compare one metric against a minimum. Script
// conditions run a Lua chunk with the country's metrics as globals
// (military, stability, economy, diplomatic_influence, public_approval) and
// the EU state as the table eu. A boolean result is met or unmet; a numeric
// result is progress, met at 1 or above. A script is stopped when ctx ends or
// it exceeds its instruction budget. A country with at least one condition
// wins when all are met.
type LuaEvaluator struct {
	// Budget is the per-script instruction limit; zero means
	// DefaultScriptBudget.
	Budget int
}

var _ victory.Evaluator = LuaEvaluator{}

// Evaluate checks every country present in metrics.
func (e LuaEvaluator) Evaluate(ctx context.Context, metrics map[string]state.Metrics, eu state.EU, catalog country.Catalog) (map[string]victory.Evaluation, error) {
	budget := e.Budget
	if budget <= 0 {
		budget = DefaultScriptBudget
	}
	out := make(map[string]victory.Evaluation, len(metrics))
	for _, def := range catalog.Countries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		m, ok := metrics[def.Key]
		if !ok {
			continue
		}
		eval := victory.Evaluation{}
		allMet := len(def.Conditions) > 0
		for _, cond := range def.Conditions {
			result, err := evaluateCondition(ctx, cond, m, eu, budget)
			if err != nil {
				return nil, fmt.Errorf("country %s condition %s: %w", def.Key, cond.Name, err)
			}
			allMet = allMet && result.Met
			eval.Results = append(eval.Results, result)
		}
		eval.IsWinner = allMet
		out[def.Key] = eval
	}
	return out, nil
}

func evaluateCondition(ctx context.Context, cond country.Condition, m state.Metrics, eu state.EU, budget int) (victory.ConditionResult, error) {
	if cond.Script != "" {
		return evaluateScript(ctx, cond, m, eu, budget)
	}
	metric, err := country.MetricField(cond.Metric)
	if err != nil {
		return victory.ConditionResult{}, err
	}
	value := m.Get(metric)
	result := victory.ConditionResult{Name: cond.Name, Met: value >= cond.Min}
	switch {
	case result.Met:
		result.Progress = 1
	case cond.Min > 0:
		result.Progress = math.Max(0, float64(value)/float64(cond.Min))
	}
	return result, nil
}

func evaluateScript(ctx context.Context, cond country.Condition, m state.Metrics, eu state.EU, budget int) (victory.ConditionResult, error) {
	l := newSandbox()
	pushMetrics(l, m)
	pushEU(l, eu)

	if err := lua.LoadString(l, cond.Script); err != nil {
		return victory.ConditionResult{}, fmt.Errorf("compile script: %w", err)
	}
	limitScript(ctx, l, budget)
	if err := l.ProtectedCall(0, 1, 0); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return victory.ConditionResult{}, fmt.Errorf("run script: %w", ctxErr)
		}
		return victory.ConditionResult{}, fmt.Errorf("run script: %w", err)
	}
	defer l.Pop(1)

	result := victory.ConditionResult{Name: cond.Name}
	switch l.TypeOf(-1) {
	case lua.TypeBoolean:
		result.Met = l.ToBoolean(-1)
		if result.Met {
			result.Progress = 1
		}
	case lua.TypeNumber:
		n, _ := l.ToNumber(-1)
		if math.IsNaN(n) {
			n = 0
		}
		result.Progress = math.Max(0, math.Min(1, n))
		result.Met = n >= 1
	default:
		return victory.ConditionResult{}, fmt.Errorf("script must return a boolean or number, got %s", lua.TypeNameOf(l, -1))
	}
	return result, nil
}

// limitScript raises a Lua error once ctx ends or the budget is spent.
func limitScript(ctx context.Context, l *lua.State, budget int) {
	executed := 0
	lua.SetDebugHook(l, func(l *lua.State, _ lua.Debug) {
		executed += scriptCheckEvery
		if err := ctx.Err(); err != nil {
			lua.Errorf(l, "%s", "script interrupted: "+err.Error())
		}
		if executed > budget {
			lua.Errorf(l, "%s", fmt.Sprintf("script exceeded %d instructions", budget))
		}
	}, lua.MaskCount, scriptCheckEvery)
}

func newSandbox() *lua.State {
	l := lua.NewState()
	for _, lib := range []struct {
		name string
		open lua.Function
	}{
		{"_G", lua.BaseOpen},
		{"math", lua.MathOpen},
		{"string", lua.StringOpen},
		{"table", lua.TableOpen},
	} {
		lua.Require(l, lib.name, lib.open, true)
		l.Pop(1)
	}
	return l
}

func pushMetrics(l *lua.State, m state.Metrics) {
	for name, value := range m.Named() {
		l.PushInteger(value)
		l.SetGlobal(name)
	}
}

func pushEU(l *lua.State, eu state.EU) {
	l.NewTable()
	l.PushInteger(eu.Cohesion)
	l.SetField(-2, "cohesion")
	for _, p := range state.Pressures() {
		l.PushInteger(eu.Pressure(p))
		l.SetField(-2, string(p))
	}
	l.PushString(eu.GlobalContext)
	l.SetField(-2, "global_context")
	l.SetGlobal("eu")
}

// ProgressFromConditions is the mean condition progress, clamped to [0,1].
func ProgressFromConditions(results []victory.ConditionResult) float64 {
	if len(results) == 0 {
		return 0
	}
	var sum float64
	for _, r := range results {
		sum += math.Max(0, math.Min(1, r.Progress))
	}
	return sum / float64(len(results))
}
