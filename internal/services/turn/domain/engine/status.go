package engine

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	apperrors "github.com/louisbranch/euroturn/internal/platform/errors"
	"github.com/louisbranch/euroturn/internal/services/turn/domain/phase"
	"github.com/louisbranch/euroturn/internal/services/turn/domain/state"
	"github.com/louisbranch/euroturn/internal/services/turn/storage"
)

// Readiness lists the commands legal for a round and why the others are not.
type Readiness struct {
	Round      int
	Phase      phase.Phase
	Facts      phase.Facts
	Commands   phase.CommandSet
	Rejections map[phase.Command]phase.Rejection
}

// Readiness evaluates round. A round <= 0 means the current round; past
// rounds report no legal commands.
func (e *Engine) Readiness(ctx context.Context, round int) (Readiness, error) {
	meta, err := e.meta(ctx)
	if err != nil {
		return Readiness{}, err
	}
	if round <= 0 {
		round = meta.Round
	}
	if round > meta.Round {
		return Readiness{}, apperrors.WithMetadata(apperrors.CodeInvalidArgument, "round has not started",
			map[string]string{"round": fmt.Sprint(round), "current": fmt.Sprint(meta.Round)})
	}
	view := meta
	if round < meta.Round {
		view.Phase = phase.Resolved
	}
	s, err := e.loadRound(ctx, view, round)
	if err != nil {
		return Readiness{}, err
	}

	out := Readiness{
		Round:      round,
		Phase:      view.Phase,
		Facts:      s.facts,
		Commands:   phase.Evaluate(s.facts),
		Rejections: make(map[phase.Command]phase.Rejection),
	}
	for _, cmd := range phase.Commands() {
		if r := phase.Check(s.facts, cmd); r != nil {
			out.Rejections[cmd] = *r
		}
	}
	return out, nil
}

// Status is a read-only view of the whole game.
type Status struct {
	Meta      state.Meta
	EU        state.EU
	Countries []state.CountryMetrics
	External  []state.ExternalEvent
	Domestic  []state.DomesticEvent
	Actions   map[string]state.ActionSet
	Locks     map[string]state.Lock
	Summaries []state.Summary
	// Snapshots are the latest recorded standings, if any.
	Snapshots []state.Snapshot
	Commands  phase.CommandSet
}

// Status reads the current game state.
func (e *Engine) Status(ctx context.Context) (Status, error) {
	s, err := e.load(ctx)
	if err != nil {
		return Status{}, err
	}
	round := s.meta.Round
	eu, err := e.euState(ctx)
	if err != nil {
		return Status{}, err
	}
	_, metrics, err := e.countryViews(ctx, 0)
	if err != nil {
		return Status{}, err
	}
	external, err := e.store.ListExternalEvents(ctx, round)
	if err != nil {
		return Status{}, apperrors.Store("list external events", err)
	}
	domestic, err := e.store.ListDomesticEvents(ctx, round)
	if err != nil {
		return Status{}, apperrors.Store("list domestic events", err)
	}
	summaries, err := e.recentSummaries(ctx)
	if err != nil {
		return Status{}, err
	}

	out := Status{
		Meta:      s.meta,
		EU:        eu,
		External:  external,
		Domestic:  domestic,
		Actions:   s.actions,
		Locks:     s.locks,
		Summaries: summaries,
		Commands:  phase.Evaluate(s.facts),
	}
	for _, key := range e.catalog.Keys() {
		out.Countries = append(out.Countries, metrics[key])
	}
	if latest, ok, err := e.store.MaxSnapshotRound(ctx); err != nil {
		return Status{}, apperrors.Store("max snapshot round", err)
	} else if ok {
		out.Snapshots, err = e.store.ListSnapshots(ctx, latest)
		if err != nil {
			return Status{}, apperrors.Store("list snapshots", err)
		}
	}
	return out, nil
}

// Init seeds countries, EU state and round 1 from the catalog. Without reset
// an initialized game is left alone.
func (e *Engine) Init(ctx context.Context, reset bool) error {
	return e.run(ctx, "init", func(ctx context.Context, log *zap.Logger) error {
		if reset {
			if err := e.store.Reset(ctx); err != nil {
				return apperrors.Store("reset store", err)
			}
		} else {
			_, err := e.store.GetMeta(ctx)
			if err == nil {
				return apperrors.New(apperrors.CodeAlreadyExists, "game is already initialized")
			}
			if !errors.Is(err, storage.ErrNotFound) {
				return apperrors.Store("get game meta", err)
			}
		}

		for _, c := range e.catalog.InitialCountries() {
			if err := e.store.PutCountry(ctx, c); err != nil {
				return apperrors.Store("put country "+c.Country, err)
			}
		}
		if err := e.store.PutEUState(ctx, e.catalog.InitialEU()); err != nil {
			return apperrors.Store("put eu state", err)
		}
		if err := e.store.PutMeta(ctx, state.Meta{Round: 1, Phase: phase.Setup, UpdatedAt: e.now()}); err != nil {
			return apperrors.Store("put game meta", err)
		}
		log.Info("game initialized", zap.Bool("reset", reset), zap.Int("countries", len(e.catalog.Countries)))
		return nil
	})
}
