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

// GenerateActions requests three action variants for every country, stores
// them once all are valid and moves the round to actions_generated.
func (e *Engine) GenerateActions(ctx context.Context) (map[string]state.ActionSet, error) {
	var result map[string]state.ActionSet
	err := e.run(ctx, "generate_actions", func(ctx context.Context, log *zap.Logger) error {
		s, err := e.load(ctx)
		if err != nil {
			return err
		}
		if err := permit(s, phase.CommandGenerateActions); err != nil {
			return err
		}
		log = log.With(roundFields(s.meta)...)
		spanRound(ctx, s.meta)
		round := s.meta.Round

		eu, err := e.euState(ctx)
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
		headlines := make(map[string]string, len(domestic))
		for _, ev := range domestic {
			headlines[ev.Country] = ev.Headline
		}
		views, _, err := e.countryViews(ctx, actionHistory)
		if err != nil {
			return err
		}

		sets := make(map[string]state.ActionSet, len(views))
		for _, view := range views {
			payload, err := content.Run(ctx, e.pipeline, e.prompts.Actions(prompt.ActionInput{
				Round:    round,
				Country:  view,
				EU:       eu,
				External: external,
				Domestic: headlines[view.Key],
			}), content.CountryActionsContract())
			if err != nil {
				return apperrors.WrapWithMetadata(apperrors.CodeOf(err),
					"generate actions for "+view.Key,
					map[string]string{"country": view.Key},
					err)
			}
			sets[view.Key] = state.ActionSet{Round: round, Country: view.Key, Options: payload.Options}
		}

		for _, key := range e.catalog.Keys() {
			if err := e.store.UpsertRoundActions(ctx, sets[key]); err != nil {
				return apperrors.Store("upsert round actions for "+key, err)
			}
		}
		if err := e.advance(ctx, s.meta, state.Meta{Round: round, Phase: phase.ActionsGenerated}); err != nil {
			return err
		}
		log.Info("actions stored", zap.Int("countries", len(sets)))
		result = sets
		return nil
	})
	return result, err
}

// Publish re-checks the stored actions and external events and moves the
// round to actions_published.
func (e *Engine) Publish(ctx context.Context) error {
	return e.run(ctx, "publish", func(ctx context.Context, log *zap.Logger) error {
		s, err := e.load(ctx)
		if err != nil {
			return err
		}
		if err := permit(s, phase.CommandPublish); err != nil {
			return err
		}
		spanRound(ctx, s.meta)
		if err := e.advance(ctx, s.meta, state.Meta{Round: s.meta.Round, Phase: phase.ActionsPublished}); err != nil {
			return err
		}
		log.Info("actions published", roundFields(s.meta)...)
		return nil
	})
}

// CommitLock records country's chosen variant for the current round.
func (e *Engine) CommitLock(ctx context.Context, countryKey, variant string) (state.Lock, error) {
	var result state.Lock
	err := e.run(ctx, "commit_lock", func(ctx context.Context, log *zap.Logger) error {
		countryKey = strings.TrimSpace(countryKey)
		if _, ok := e.catalog.Lookup(countryKey); !ok {
			return apperrors.WithMetadata(apperrors.CodeInvalidArgument, "unknown country",
				map[string]string{"country": countryKey})
		}
		v, err := state.ParseVariant(variant)
		if err != nil {
			return apperrors.Wrap(apperrors.CodeInvalidArgument, "invalid variant", err)
		}

		s, err := e.load(ctx)
		if err != nil {
			return err
		}
		if err := permit(s, phase.CommandCommitLock); err != nil {
			return err
		}
		spanRound(ctx, s.meta)
		if _, ok := s.actions[countryKey].Options[v]; !ok {
			return apperrors.WithMetadata(apperrors.CodePrecondition, "variant was not generated for country",
				map[string]string{"country": countryKey, "variant": string(v)})
		}

		l, err := e.locks.Commit(ctx, s.meta.Round, countryKey, v)
		if err != nil {
			return err
		}
		log.Info("lock committed",
			append(roundFields(s.meta), zap.String("country", countryKey), zap.String("variant", string(v)))...)
		result = l
		return nil
	})
	return result, err
}
