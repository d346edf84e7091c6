// Package victory snapshots per-round country standings and evaluates win
// conditions through an injected evaluator.
package victory

import (
	"context"
	"fmt"
	"math"

	apperrors "github.com/louisbranch/euroturn/internal/platform/errors"
	"github.com/louisbranch/euroturn/internal/services/turn/domain/country"
	"github.com/louisbranch/euroturn/internal/services/turn/domain/state"
	"github.com/louisbranch/euroturn/internal/services/turn/storage"
)

// BaselineRound is the round the pre-game snapshot is recorded under.
const BaselineRound = 0

// ConditionResult is the outcome of one win condition.
type ConditionResult struct {
	Name     string
	Met      bool
	Progress float64
}

// Evaluation is one country's win-condition outcome.
type Evaluation struct {
	IsWinner bool
	Results  []ConditionResult
}

// Evaluator checks win conditions for every country at once.
type Evaluator interface {
	Evaluate(ctx context.Context, metrics map[string]state.Metrics, eu state.EU, catalog country.Catalog) (map[string]Evaluation, error)
}

// EvaluatorFunc adapts a function to Evaluator.
type EvaluatorFunc func(ctx context.Context, metrics map[string]state.Metrics, eu state.EU, catalog country.Catalog) (map[string]Evaluation, error)

// Evaluate calls f.
func (f EvaluatorFunc) Evaluate(ctx context.Context, metrics map[string]state.Metrics, eu state.EU, catalog country.Catalog) (map[string]Evaluation, error) {
	return f(ctx, metrics, eu, catalog)
}

// ProgressFunc maps condition results to a scalar in [0,1].
type ProgressFunc func(results []ConditionResult) float64

// Standing is one country's evaluated position in a round.
type Standing struct {
	Country  string
	Metrics  state.Metrics
	Progress float64
	IsWinner bool
}

// Standings are every country's position in one round, in catalog order.
type Standings struct {
	Round     int
	Countries []Standing
	// Winners lists every country meeting its conditions, in catalog order.
	Winners []string
}

// Winner returns the winner of record: the first winner in catalog order.
func (s Standings) Winner() (string, bool) {
	if len(s.Winners) == 0 {
		return "", false
	}
	return s.Winners[0], true
}

// Snapshots converts the standings into snapshot rows.
func (s Standings) Snapshots() []state.Snapshot {
	out := make([]state.Snapshot, len(s.Countries))
	for i, standing := range s.Countries {
		out[i] = state.Snapshot{
			Round:           s.Round,
			Country:         standing.Country,
			Metrics:         standing.Metrics,
			VictoryProgress: standing.Progress,
			IsWinner:        standing.IsWinner,
		}
	}
	return out
}

// Tracker evaluates and records standings.
type Tracker struct {
	store     storage.SnapshotStore
	catalog   country.Catalog
	evaluator Evaluator
	progress  ProgressFunc
}

// NewTracker returns a tracker. A nil evaluator treats every country as a
// non-winner with zero progress.
func NewTracker(store storage.SnapshotStore, catalog country.Catalog, evaluator Evaluator, progress ProgressFunc) *Tracker {
	return &Tracker{store: store, catalog: catalog, evaluator: evaluator, progress: progress}
}

// Evaluate computes standings for round without writing anything.
func (t *Tracker) Evaluate(ctx context.Context, round int, metrics map[string]state.Metrics, eu state.EU) (Standings, error) {
	var evaluations map[string]Evaluation
	if t.evaluator != nil {
		var err error
		evaluations, err = t.evaluator.Evaluate(ctx, metrics, eu, t.catalog)
		if err != nil {
			return Standings{}, apperrors.Wrap(apperrors.CodeUnknown, "evaluate win conditions", err)
		}
	}

	standings := Standings{Round: round}
	for _, key := range t.catalog.Keys() {
		m, ok := metrics[key]
		if !ok {
			continue
		}
		standing := Standing{Country: key, Metrics: m}
		if eval, ok := evaluations[key]; ok {
			standing.IsWinner = eval.IsWinner
			standing.Progress = t.scalar(eval.Results)
		}
		if standing.IsWinner {
			standings.Winners = append(standings.Winners, key)
		}
		standings.Countries = append(standings.Countries, standing)
	}
	return standings, nil
}

func (t *Tracker) scalar(results []ConditionResult) float64 {
	if t.progress == nil {
		return 0
	}
	p := t.progress(results)
	if math.IsNaN(p) {
		return 0
	}
	return math.Max(0, math.Min(1, p))
}

// NeedsBaseline reports whether no snapshot exists yet.
func (t *Tracker) NeedsBaseline(ctx context.Context) (bool, error) {
	_, ok, err := t.store.MaxSnapshotRound(ctx)
	if err != nil {
		return false, apperrors.Store("max snapshot round", err)
	}
	return !ok, nil
}

// Record persists one snapshot row per standing.
func (t *Tracker) Record(ctx context.Context, standings Standings) error {
	for _, snapshot := range standings.Snapshots() {
		if err := t.store.UpsertSnapshot(ctx, snapshot); err != nil {
			return apperrors.Store(fmt.Sprintf("snapshot %s round %d", snapshot.Country, snapshot.Round), err)
		}
	}
	return nil
}

// EnsureBaseline writes the round-0 snapshot from pre-resolution state when
// no snapshot exists yet. It reports whether one was written.
func (t *Tracker) EnsureBaseline(ctx context.Context, metrics map[string]state.Metrics, eu state.EU) (bool, error) {
	need, err := t.NeedsBaseline(ctx)
	if err != nil || !need {
		return false, err
	}
	standings, err := t.Evaluate(ctx, BaselineRound, metrics, eu)
	if err != nil {
		return false, err
	}
	if err := t.Record(ctx, standings); err != nil {
		return false, err
	}
	return true, nil
}

// SnapshotAndEvaluate evaluates round and persists its snapshots.
func (t *Tracker) SnapshotAndEvaluate(ctx context.Context, round int, metrics map[string]state.Metrics, eu state.EU) (Standings, error) {
	standings, err := t.Evaluate(ctx, round, metrics, eu)
	if err != nil {
		return Standings{}, err
	}
	if err := t.Record(ctx, standings); err != nil {
		return Standings{}, err
	}
	return standings, nil
}
