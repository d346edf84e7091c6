// Package engine is the phase controller: it sequences content requests,
// validation and state mutation for one round at a time.
//
// Every command validates and computes before its first write. Writes are
// ordered so a command interrupted part way can be issued again.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	apperrors "github.com/louisbranch/euroturn/internal/platform/errors"
	"github.com/louisbranch/euroturn/internal/platform/id"
	"github.com/louisbranch/euroturn/internal/platform/timeouts"
	"github.com/louisbranch/euroturn/internal/random"
	"github.com/louisbranch/euroturn/internal/services/turn/domain/content"
	"github.com/louisbranch/euroturn/internal/services/turn/domain/country"
	"github.com/louisbranch/euroturn/internal/services/turn/domain/delta"
	"github.com/louisbranch/euroturn/internal/services/turn/domain/lock"
	"github.com/louisbranch/euroturn/internal/services/turn/domain/phase"
	"github.com/louisbranch/euroturn/internal/services/turn/domain/state"
	"github.com/louisbranch/euroturn/internal/services/turn/domain/victory"
	"github.com/louisbranch/euroturn/internal/services/turn/prompt"
	"github.com/louisbranch/euroturn/internal/services/turn/storage"
)

const (
	// summaryMemory is how many recent round summaries feed a prompt.
	summaryMemory = 3
	// domesticHistory and actionHistory bound the action texts per country
	// fed to the domestic and action prompts.
	domesticHistory = 6
	actionHistory   = 12
)

// PromptBuilder renders the prompt of every content call kind.
type PromptBuilder interface {
	External(in prompt.ExternalInput) content.Prompt
	Domestic(in prompt.DomesticInput) content.Prompt
	Actions(in prompt.ActionInput) content.Prompt
	Resolution(in prompt.ResolutionInput) content.Prompt
	Summary(in prompt.SummaryInput) content.Prompt
}

// ExternalModifierFunc folds validated external moves into the EU state.
type ExternalModifierFunc func(eu state.EU, moves content.ExternalMoves) state.EU

// Config wires an Engine. Store, Pipeline and Prompts are required.
type Config struct {
	Store    storage.Store
	Catalog  country.Catalog
	Pipeline *content.Pipeline
	Prompts  PromptBuilder

	// Evaluator may be nil: every country is then a non-winner.
	Evaluator         victory.Evaluator
	Progress          victory.ProgressFunc
	Decay             delta.DecayFunc
	ExternalModifiers ExternalModifierFunc
	// Random draws actor craziness; nil seeds one from crypto/rand.
	Random random.Source

	Logger *zap.Logger
	Tracer trace.Tracer
	Now    func() time.Time
}

// Engine runs the round lifecycle.
type Engine struct {
	store     storage.Store
	catalog   country.Catalog
	pipeline  *content.Pipeline
	prompts   PromptBuilder
	locks     *lock.Coordinator
	deltas    *delta.Engine
	tracker   *victory.Tracker
	decay     delta.DecayFunc
	modifiers ExternalModifierFunc
	random    random.Source
	logger    *zap.Logger
	tracer    trace.Tracer
	now       func() time.Time

	// guard admits one command at a time.
	guard *semaphore.Weighted
}

// New validates cfg and returns an Engine.
func New(cfg Config) (*Engine, error) {
	if cfg.Store == nil {
		return nil, errors.New("engine: store is required")
	}
	if cfg.Pipeline == nil {
		return nil, errors.New("engine: content pipeline is required")
	}
	if cfg.Prompts == nil {
		return nil, errors.New("engine: prompt builder is required")
	}
	if err := cfg.Catalog.Validate(); err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	e := &Engine{
		store:     cfg.Store,
		catalog:   cfg.Catalog,
		pipeline:  cfg.Pipeline,
		prompts:   cfg.Prompts,
		locks:     lock.NewCoordinator(cfg.Store),
		deltas:    delta.NewEngine(cfg.Store),
		tracker:   victory.NewTracker(cfg.Store, cfg.Catalog, cfg.Evaluator, cfg.Progress),
		decay:     cfg.Decay,
		modifiers: cfg.ExternalModifiers,
		random:    cfg.Random,
		logger:    cfg.Logger,
		tracer:    cfg.Tracer,
		now:       cfg.Now,
		guard:     semaphore.NewWeighted(1),
	}
	if e.random == nil {
		r, err := random.NewFromCrypto()
		if err != nil {
			return nil, fmt.Errorf("engine: %w", err)
		}
		e.random = r
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	if e.tracer == nil {
		e.tracer = otel.Tracer("github.com/louisbranch/euroturn/engine")
	}
	if e.now == nil {
		e.now = func() time.Time { return time.Now().UTC() }
	}
	return e, nil
}

// deadline bounds op by its worst-case provider calls: every primary
// request may be followed by one repair.
func (e *Engine) deadline(op string) time.Duration {
	switch op {
	case "generate_actions":
		return timeouts.ForProviderCalls(2 * len(e.catalog.Countries))
	case "advance_external", "resolve":
		return timeouts.ForProviderCalls(4)
	default:
		return timeouts.Operation
	}
}

// run executes one command under the single-flight guard with an op id,
// a span and a bounded context.
func (e *Engine) run(ctx context.Context, op string, fn func(ctx context.Context, log *zap.Logger) error) error {
	if !e.guard.TryAcquire(1) {
		return apperrors.WithMetadata(apperrors.CodePrecondition,
			"another command is in progress",
			map[string]string{"op": op})
	}
	defer e.guard.Release(1)

	opID, err := id.NewID()
	if err != nil {
		return apperrors.Wrap(apperrors.CodeUnknown, "generate op id", err)
	}
	ctx, cancel := context.WithTimeout(ctx, e.deadline(op))
	defer cancel()
	ctx, span := e.tracer.Start(ctx, "turn."+op, trace.WithAttributes(
		attribute.String("turn.op", op),
		attribute.String("turn.op_id", opID),
	))
	defer span.End()

	log := e.logger.With(zap.String("op", op), zap.String("op_id", opID))
	start := time.Now()
	if err := fn(ctx, log); err != nil {
		code := apperrors.CodeOf(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, string(code))
		log.Warn("command failed",
			zap.String("code", string(code)),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return err
	}
	log.Info("command completed", zap.Duration("elapsed", time.Since(start)))
	return nil
}

// snapshot is the stored state a command is checked against.
type snapshot struct {
	meta    state.Meta
	facts   phase.Facts
	actions map[string]state.ActionSet
	locks   map[string]state.Lock
}

func (e *Engine) meta(ctx context.Context) (state.Meta, error) {
	meta, err := e.store.GetMeta(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return state.Meta{}, apperrors.New(apperrors.CodePrecondition, "game is not initialized")
	}
	if err != nil {
		return state.Meta{}, apperrors.Store("get game meta", err)
	}
	return meta, nil
}

// load reads the facts of the current round.
func (e *Engine) load(ctx context.Context) (snapshot, error) {
	meta, err := e.meta(ctx)
	if err != nil {
		return snapshot{}, err
	}
	return e.loadRound(ctx, meta, meta.Round)
}

func (e *Engine) loadRound(ctx context.Context, meta state.Meta, round int) (snapshot, error) {
	external, err := e.store.ListExternalEvents(ctx, round)
	if err != nil {
		return snapshot{}, apperrors.Store("list external events", err)
	}
	actions, err := e.store.GetRoundActions(ctx, round)
	if err != nil {
		return snapshot{}, apperrors.Store("get round actions", err)
	}
	locks, err := e.locks.Locks(ctx, round)
	if err != nil {
		return snapshot{}, err
	}

	keys := e.catalog.Keys()
	facts := phase.Facts{
		Phase:           meta.Phase,
		ExternalEvents:  len(external),
		ActiveCountries: len(keys),
	}
	for _, key := range keys {
		if set, ok := actions[key]; ok && set.Complete() {
			facts.CountriesWithActions++
		}
		if _, ok := locks[key]; ok {
			facts.LockedCountries++
		}
	}
	return snapshot{meta: meta, facts: facts, actions: actions, locks: locks}, nil
}

// permit rejects cmd unless the facts allow it.
func permit(s snapshot, cmd phase.Command) error {
	rejection := phase.Check(s.facts, cmd)
	if rejection == nil {
		return nil
	}
	return apperrors.WithMetadata(apperrors.CodePrecondition, rejection.Message, map[string]string{
		"command":   string(cmd),
		"rejection": rejection.Code,
		"phase":     string(s.facts.Phase),
		"round":     fmt.Sprint(s.meta.Round),
	})
}

// advance writes the round pointer after checking every step of the
// transition is legal. A published round passes through resolved.
func (e *Engine) advance(ctx context.Context, from state.Meta, next state.Meta) error {
	path := []phase.Phase{from.Phase}
	if from.Phase == phase.ActionsPublished {
		path = append(path, phase.Resolved)
	}
	path = append(path, next.Phase)
	for i := 1; i < len(path); i++ {
		if !phase.CanTransition(path[i-1], path[i]) {
			return apperrors.Newf(apperrors.CodePrecondition, "illegal transition %s -> %s", path[i-1], path[i])
		}
	}
	if next.Phase == phase.Setup && next.Round != from.Round+1 {
		return apperrors.Newf(apperrors.CodePrecondition, "setup must start round %d, got %d", from.Round+1, next.Round)
	}
	next.UpdatedAt = e.now()
	if err := e.store.PutMeta(ctx, next); err != nil {
		return apperrors.Store("put game meta", err)
	}
	return nil
}

func (e *Engine) countryViews(ctx context.Context, historyLimit int) ([]prompt.Country, map[string]state.CountryMetrics, error) {
	keys := e.catalog.Keys()
	metrics, err := e.store.GetCountries(ctx, keys)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil, apperrors.Wrap(apperrors.CodePrecondition, "countries are not initialized", err)
	}
	if err != nil {
		return nil, nil, apperrors.Store("get countries", err)
	}
	views := make([]prompt.Country, 0, len(keys))
	for _, key := range keys {
		def, _ := e.catalog.Lookup(key)
		view := prompt.Country{
			Key:      key,
			Display:  e.catalog.Display(key),
			Ambition: def.Ambition,
			Metrics:  metrics[key].Metrics,
		}
		if historyLimit > 0 {
			history, err := e.store.ListHistory(ctx, key, historyLimit)
			if err != nil {
				return nil, nil, apperrors.Store(fmt.Sprintf("list history for %s", key), err)
			}
			for _, h := range history {
				if h.ActionText != "" {
					view.RecentActions = append(view.RecentActions, h.ActionText)
				}
			}
		}
		views = append(views, view)
	}
	return views, metrics, nil
}

func (e *Engine) recentSummaries(ctx context.Context) ([]state.Summary, error) {
	summaries, err := e.store.ListRecentSummaries(ctx, summaryMemory)
	if err != nil {
		return nil, apperrors.Store("list recent summaries", err)
	}
	return summaries, nil
}

func (e *Engine) euState(ctx context.Context) (state.EU, error) {
	eu, err := e.store.GetEUState(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return state.EU{}, apperrors.New(apperrors.CodePrecondition, "eu state is not initialized")
	}
	if err != nil {
		return state.EU{}, apperrors.Store("get eu state", err)
	}
	return eu, nil
}

func roundFields(meta state.Meta) []zap.Field {
	return []zap.Field{zap.Int("round", meta.Round), zap.String("phase", string(meta.Phase))}
}

func spanRound(ctx context.Context, meta state.Meta) {
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.Int("turn.round", meta.Round),
		attribute.String("turn.phase", string(meta.Phase)),
	)
}
