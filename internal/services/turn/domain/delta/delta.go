// Package delta applies validated numeric deltas to simulation state and
// plans a round's writes from a single resolution response.
package delta

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/louisbranch/euroturn/internal/platform/errors"
	"github.com/louisbranch/euroturn/internal/services/turn/domain/content"
	"github.com/louisbranch/euroturn/internal/services/turn/domain/state"
	"github.com/louisbranch/euroturn/internal/services/turn/storage"
)

// DecayFunc transforms EU pressures once per resolved round.
type DecayFunc func(eu state.EU) state.EU

// Store is the persistence surface the engine mutates.
type Store interface {
	storage.CountryStore
	storage.HistoryStore
}

// Engine applies deltas through a store.
type Engine struct {
	store Store
	now   func() time.Time
}

// NewEngine returns an engine over store.
func NewEngine(store Store) *Engine {
	return &Engine{store: store, now: func() time.Time { return time.Now().UTC() }}
}

// ApplyCountryDeltas adds deltas to country's stored metrics.
func (e *Engine) ApplyCountryDeltas(ctx context.Context, country string, deltas state.Metrics) (state.Metrics, error) {
	if strings.TrimSpace(country) == "" {
		return state.Metrics{}, apperrors.New(apperrors.CodeInvalidArgument, "country is required")
	}
	metrics, err := e.store.ApplyCountryDeltas(ctx, country, deltas)
	if errors.Is(err, storage.ErrNotFound) {
		return state.Metrics{}, apperrors.Wrap(apperrors.CodeNotFound, fmt.Sprintf("country %s", country), err)
	}
	if err != nil {
		return state.Metrics{}, apperrors.Store(fmt.Sprintf("apply deltas for %s", country), err)
	}
	return metrics, nil
}

// RecordTurn applies one country's turn and appends its history entry.
//
// A turn already recorded for the same country and round is skipped and
// reported as not applied.
func (e *Engine) RecordTurn(ctx context.Context, entry state.HistoryEntry) (bool, error) {
	if entry.RecordedAt.IsZero() {
		entry.RecordedAt = e.now()
	}
	applied, err := e.store.RecordCountryTurn(ctx, entry)
	if err != nil {
		return false, apperrors.Store(fmt.Sprintf("record turn for %s", entry.Country), err)
	}
	return applied, nil
}

// ApplyEUDelta adds the cohesion delta, replaces the global context when
// newContext is not blank, then applies decay when set.
func ApplyEUDelta(eu state.EU, cohesionDelta int, newContext string, decay DecayFunc) state.EU {
	out := eu
	out.Cohesion += cohesionDelta
	if ctx := strings.TrimSpace(newContext); ctx != "" {
		out.GlobalContext = ctx
	}
	if decay != nil {
		external, resolved := out.ExternalRound, out.ResolvedRound
		out = decay(out)
		out.ExternalRound, out.ResolvedRound = external, resolved
	}
	return out
}

// Plan is every write a resolution implies, computed before any is made.
type Plan struct {
	Round    int
	EUBefore state.EU
	EUAfter  state.EU
	// Turns are in country order.
	Turns []state.HistoryEntry
	// MetricsAfter are the projected country metrics once every turn applies.
	MetricsAfter map[string]state.Metrics
}

// PlanInput gathers the state a resolution is planned against.
type PlanInput struct {
	Round      int
	Countries  []string
	EU         state.EU
	Metrics    map[string]state.CountryMetrics
	Locks      map[string]state.Lock
	Actions    map[string]state.ActionSet
	Resolution content.RoundResolution
	Decay      DecayFunc
}

// BuildPlan derives every delta of a round from one resolution response.
func BuildPlan(in PlanInput) (Plan, error) {
	plan := Plan{
		Round:        in.Round,
		EUBefore:     in.EU,
		MetricsAfter: make(map[string]state.Metrics, len(in.Countries)),
	}
	plan.EUAfter = ApplyEUDelta(in.EU, in.Resolution.CohesionDelta, in.Resolution.GlobalContext, in.Decay)
	plan.EUAfter.ResolvedRound = in.Round

	for _, country := range in.Countries {
		current, ok := in.Metrics[country]
		if !ok {
			return Plan{}, apperrors.Newf(apperrors.CodeNotFound, "country %s has no stored metrics", country)
		}
		lock, ok := in.Locks[country]
		if !ok {
			return Plan{}, apperrors.Newf(apperrors.CodePrecondition, "country %s is not locked", country)
		}
		option, ok := in.Actions[country].Options[lock.Variant]
		if !ok {
			return Plan{}, apperrors.Newf(apperrors.CodePrecondition, "country %s has no %s action", country, lock.Variant)
		}
		deltas, ok := in.Resolution.Deltas[country]
		if !ok {
			return Plan{}, apperrors.Newf(apperrors.CodeContentSchema, "resolution has no deltas for %s", country)
		}

		plan.Turns = append(plan.Turns, state.HistoryEntry{
			Country:       country,
			Round:         in.Round,
			Variant:       lock.Variant,
			ActionText:    option.Text,
			Deltas:        deltas,
			GlobalContext: plan.EUAfter.GlobalContext,
		})
		plan.MetricsAfter[country] = current.Metrics.Add(deltas)
	}
	return plan, nil
}
