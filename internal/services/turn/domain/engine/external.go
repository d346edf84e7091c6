package engine

import (
	"context"
	"strings"

	"go.uber.org/zap"

	apperrors "github.com/louisbranch/euroturn/internal/platform/errors"
	"github.com/louisbranch/euroturn/internal/services/turn/domain/content"
	"github.com/louisbranch/euroturn/internal/services/turn/domain/phase"
	"github.com/louisbranch/euroturn/internal/services/turn/domain/state"
	"github.com/louisbranch/euroturn/internal/services/turn/prompt"
)

// ExternalResult is what AdvanceExternal stored.
type ExternalResult struct {
	Round    int
	EU       state.EU
	External []state.ExternalEvent
	Domestic []state.DomesticEvent
}

// AdvanceExternal generates the round's external moves and domestic events,
// folds the moves into the EU state and moves the round to
// external_generated.
func (e *Engine) AdvanceExternal(ctx context.Context) (ExternalResult, error) {
	var result ExternalResult
	err := e.run(ctx, "advance_external", func(ctx context.Context, log *zap.Logger) error {
		s, err := e.load(ctx)
		if err != nil {
			return err
		}
		if err := permit(s, phase.CommandAdvanceExternal); err != nil {
			return err
		}
		log = log.With(roundFields(s.meta)...)
		spanRound(ctx, s.meta)
		round := s.meta.Round

		eu, err := e.euState(ctx)
		if err != nil {
			return err
		}
		summaries, err := e.recentSummaries(ctx)
		if err != nil {
			return err
		}
		craziness := e.drawCraziness()
		moves, err := content.Run(ctx, e.pipeline, e.prompts.External(prompt.ExternalInput{
			Round:     round,
			EU:        eu,
			Craziness: craziness,
			Summaries: summaries,
		}), content.ExternalMovesContract())
		if err != nil {
			return err
		}

		euAfter := eu
		if eu.ExternalRound != round {
			euAfter = e.applyModifiers(eu, moves)
			euAfter.ExternalRound = round
		} else {
			log.Info("external modifiers already applied, keeping eu state")
		}

		external := make([]state.ExternalEvent, len(moves.Moves))
		for i, m := range moves.Moves {
			external[i] = state.ExternalEvent{
				Round:     round,
				Actor:     m.Actor,
				Headline:  m.Headline,
				Quote:     m.Quote,
				Modifiers: m.Modifiers,
				Craziness: craziness[m.Actor],
			}
		}

		views, _, err := e.countryViews(ctx, domesticHistory)
		if err != nil {
			return err
		}
		keys := e.catalog.Keys()
		events, err := content.Run(ctx, e.pipeline, e.prompts.Domestic(prompt.DomesticInput{
			Round:     round,
			EU:        euAfter,
			External:  external,
			Countries: views,
			Summaries: summaries,
		}), content.DomesticEventsContract(keys))
		if err != nil {
			return err
		}
		domestic := make([]state.DomesticEvent, 0, len(keys))
		for _, key := range keys {
			ev := events.Events[key]
			domestic = append(domestic, state.DomesticEvent{
				Round:     round,
				Country:   key,
				Headline:  ev.Headline,
				Details:   ev.Details,
				Craziness: ev.Craziness,
			})
		}

		if round > 1 {
			if err := e.store.ClearRoundData(ctx, round-1); err != nil {
				return apperrors.Store("clear previous round data", err)
			}
		}
		if err := e.store.ClearExternalEvents(ctx, round); err != nil {
			return apperrors.Store("clear external events", err)
		}
		for _, ev := range external {
			if err := e.store.UpsertExternalEvent(ctx, ev); err != nil {
				return apperrors.Store("upsert external event", err)
			}
		}
		if err := e.store.ClearDomesticEvents(ctx, round); err != nil {
			return apperrors.Store("clear domestic events", err)
		}
		for _, ev := range domestic {
			if err := e.store.UpsertDomesticEvent(ctx, ev); err != nil {
				return apperrors.Store("upsert domestic event", err)
			}
		}
		if euAfter != eu {
			if err := e.store.PutEUState(ctx, euAfter); err != nil {
				return apperrors.Store("put eu state", err)
			}
		}
		if err := e.advance(ctx, s.meta, state.Meta{Round: round, Phase: phase.ExternalGenerated}); err != nil {
			return err
		}

		log.Info("external moves stored",
			zap.Int("cohesion", euAfter.Cohesion),
			zap.Int("threat_level", euAfter.ThreatLevel),
			zap.Int("domestic_events", len(domestic)),
		)
		result = ExternalResult{Round: round, EU: euAfter, External: external, Domestic: domestic}
		return nil
	})
	return result, err
}

func (e *Engine) drawCraziness() map[state.Actor]int {
	out := make(map[state.Actor]int, len(state.Actors()))
	for _, actor := range state.Actors() {
		if r, ok := e.catalog.Craziness(actor); ok {
			out[actor] = e.random.Between(r.Min, r.Max)
		}
	}
	return out
}

func (e *Engine) applyModifiers(eu state.EU, moves content.ExternalMoves) state.EU {
	if e.modifiers != nil {
		return e.modifiers(eu, moves)
	}
	if ctx := strings.TrimSpace(moves.GlobalContext); ctx != "" {
		eu.GlobalContext = ctx
	}
	return eu
}
