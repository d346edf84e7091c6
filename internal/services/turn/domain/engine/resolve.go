package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	apperrors "github.com/louisbranch/euroturn/internal/platform/errors"
	"github.com/louisbranch/euroturn/internal/services/turn/domain/content"
	"github.com/louisbranch/euroturn/internal/services/turn/domain/delta"
	"github.com/louisbranch/euroturn/internal/services/turn/domain/phase"
	"github.com/louisbranch/euroturn/internal/services/turn/domain/state"
	"github.com/louisbranch/euroturn/internal/services/turn/domain/victory"
	"github.com/louisbranch/euroturn/internal/services/turn/prompt"
)

// ResolveResult is the outcome of one resolved round.
type ResolveResult struct {
	Round     int
	EUBefore  state.EU
	EUAfter   state.EU
	Turns     []state.HistoryEntry
	Summary   string
	Standings victory.Standings
	// Baseline is set when this resolve wrote the round-0 snapshots.
	Baseline bool
	GameOver bool
	Winner   string
	// NextRound is the round now in setup; zero once the game is over.
	NextRound int
}

// Resolve computes the round outcome from one resolution request and one
// summary request, then writes it.
//
// Nothing is written until both requests validated and the standings are
// evaluated. The writes run as: baseline snapshots, EU state, country turns,
// summary, round snapshots, game meta, ephemeral clear.
func (e *Engine) Resolve(ctx context.Context) (ResolveResult, error) {
	var result ResolveResult
	err := e.run(ctx, "resolve", func(ctx context.Context, log *zap.Logger) error {
		s, err := e.load(ctx)
		if err != nil {
			return err
		}
		if err := permit(s, phase.CommandResolve); err != nil {
			return err
		}
		log = log.With(roundFields(s.meta)...)
		spanRound(ctx, s.meta)
		round := s.meta.Round
		keys := e.catalog.Keys()

		eu, err := e.euState(ctx)
		if err != nil {
			return err
		}
		summaries, err := e.recentSummaries(ctx)
		if err != nil {
			return err
		}
		external, err := e.store.ListExternalEvents(ctx, round)
		if err != nil {
			return apperrors.Store("list external events", err)
		}
		domestic, err := e.store.ListDomesticEvents(ctx, round)
		if err != nil {
			return apperrors.Store("list domestic events", err)
		}
		views, metrics, err := e.countryViews(ctx, 0)
		if err != nil {
			return err
		}
		recorded, err := e.recordedTurns(ctx, round)
		if err != nil {
			return err
		}

		choices := make([]prompt.Choice, 0, len(keys))
		for _, key := range keys {
			l := s.locks[key]
			choices = append(choices, prompt.Choice{
				Country: key,
				Display: e.catalog.Display(key),
				Variant: l.Variant,
				Text:    s.actions[key].Options[l.Variant].Text,
			})
		}

		resolution, err := content.Run(ctx, e.pipeline, e.prompts.Resolution(prompt.ResolutionInput{
			Round:     round,
			EU:        eu,
			Countries: views,
			Choices:   choices,
			External:  external,
			Domestic:  domestic,
			Summaries: summaries,
		}), content.RoundResolutionContract(keys))
		if err != nil {
			return err
		}

		plan, err := delta.BuildPlan(delta.PlanInput{
			Round:      round,
			Countries:  keys,
			EU:         eu,
			Metrics:    metrics,
			Locks:      s.locks,
			Actions:    s.actions,
			Resolution: resolution,
			Decay:      e.decay,
		})
		if err != nil {
			return err
		}
		if eu.ResolvedRound == round {
			plan.EUAfter = eu
			log.Info("eu delta already applied for round")
		}
		for i, turn := range plan.Turns {
			if prior, ok := recorded[turn.Country]; ok {
				plan.Turns[i] = prior
				plan.MetricsAfter[turn.Country] = metrics[turn.Country].Metrics
			}
		}

		summary, err := content.Run(ctx, e.pipeline, e.prompts.Summary(prompt.SummaryInput{
			Round:      round,
			EUBefore:   eu,
			EUAfter:    plan.EUAfter,
			Choices:    choices,
			Resolution: resolution,
			External:   external,
			Domestic:   domestic,
			Summaries:  summaries,
		}), content.RoundSummaryContract())
		if err != nil {
			return err
		}

		needBaseline, err := e.tracker.NeedsBaseline(ctx)
		if err != nil {
			return err
		}
		var baseline victory.Standings
		if needBaseline {
			before := make(map[string]state.Metrics, len(metrics))
			for key, m := range metrics {
				before[key] = m.Metrics
			}
			baseline, err = e.tracker.Evaluate(ctx, victory.BaselineRound, before, eu)
			if err != nil {
				return err
			}
		}
		standings, err := e.tracker.Evaluate(ctx, round, plan.MetricsAfter, plan.EUAfter)
		if err != nil {
			return err
		}

		next := state.Meta{Round: round + 1, Phase: phase.Setup}
		winner, gameOver := standings.Winner()
		if gameOver {
			next = state.Meta{
				Round:         round,
				Phase:         phase.GameOver,
				GameOver:      true,
				WinnerCountry: winner,
				WinnerRound:   round,
				Reason:        state.GameOverReasonWinConditions,
			}
		}

		if needBaseline {
			if err := e.tracker.Record(ctx, baseline); err != nil {
				return err
			}
		}
		if eu.ResolvedRound != round {
			if err := e.store.PutEUState(ctx, plan.EUAfter); err != nil {
				return apperrors.Store("put eu state", err)
			}
		}
		applied := 0
		for _, turn := range plan.Turns {
			ok, err := e.deltas.RecordTurn(ctx, turn)
			if err != nil {
				return err
			}
			if ok {
				applied++
			}
		}
		if err := e.store.UpsertRoundSummary(ctx, state.Summary{Round: round, Text: summary.Text, CreatedAt: e.now()}); err != nil {
			return apperrors.Store("upsert round summary", err)
		}
		if err := e.tracker.Record(ctx, standings); err != nil {
			return err
		}
		if err := e.advance(ctx, s.meta, next); err != nil {
			return err
		}
		if err := e.store.ClearRoundData(ctx, round); err != nil {
			return apperrors.Store(fmt.Sprintf("clear round %d data", round), err)
		}

		log.Info("round resolved",
			zap.Int("turns_applied", applied),
			zap.Int("cohesion", plan.EUAfter.Cohesion),
			zap.Bool("baseline", needBaseline),
			zap.Strings("winners", standings.Winners),
		)
		result = ResolveResult{
			Round:     round,
			EUBefore:  eu,
			EUAfter:   plan.EUAfter,
			Turns:     plan.Turns,
			Summary:   summary.Text,
			Standings: standings,
			Baseline:  needBaseline,
			GameOver:  gameOver,
			Winner:    winner,
		}
		if !gameOver {
			result.NextRound = next.Round
		}
		return nil
	})
	return result, err
}

// recordedTurns returns the history entries already written for round.
func (e *Engine) recordedTurns(ctx context.Context, round int) (map[string]state.HistoryEntry, error) {
	out := make(map[string]state.HistoryEntry)
	for _, key := range e.catalog.Keys() {
		history, err := e.store.ListHistory(ctx, key, 1)
		if err != nil {
			return nil, apperrors.Store("list history for "+key, err)
		}
		if len(history) > 0 && history[0].Round == round {
			out[key] = history[0]
		}
	}
	return out, nil
}
