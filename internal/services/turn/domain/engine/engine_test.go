package engine_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	apperrors "github.com/louisbranch/euroturn/internal/platform/errors"
	"github.com/louisbranch/euroturn/internal/random"
	"github.com/louisbranch/euroturn/internal/services/turn/domain/content"
	"github.com/louisbranch/euroturn/internal/services/turn/domain/country"
	"github.com/louisbranch/euroturn/internal/services/turn/domain/engine"
	"github.com/louisbranch/euroturn/internal/services/turn/domain/phase"
	"github.com/louisbranch/euroturn/internal/services/turn/domain/state"
	"github.com/louisbranch/euroturn/internal/services/turn/domain/victory"
	"github.com/louisbranch/euroturn/internal/services/turn/prompt"
	"github.com/louisbranch/euroturn/internal/services/turn/provider/providertest"
	"github.com/louisbranch/euroturn/internal/services/turn/rules"
	"github.com/louisbranch/euroturn/internal/services/turn/storage/memory"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const germanyCatalog = `
eu:
  cohesion: 70
  global_context: "Start"
  threat_level: 55
  frontline_pressure: 50
  energy_pressure: 45
  migration_pressure: 40
  disinfo_pressure: 45
  trade_war_pressure: 35
actors:
  - {name: USA, craziness: {min: 30, max: 75}}
  - {name: China, craziness: {min: 20, max: 55}}
  - {name: Russia, craziness: {min: 45, max: 90}}
countries:
  - key: Germany
    display: Deutschland
    ambition: "Weaken far-right, lead EU, energy transition"
    start: {military: 80, stability: 90, economy: 95, diplomatic_influence: 95, public_approval: 85}
    conditions:
      - {name: wirtschaftsmotor, metric: economy, min: 110}
`

const (
	movesJSON = `{"global_context":"Neue Lage","moves":[
		{"actor":"USA","headline":"Zölle","quote":"Deal?","modifiers":{"eu_cohesion_delta":-1,"threat_delta":2,"frontline_delta":0,"energy_delta":0,"migration_delta":0,"disinfo_delta":0,"trade_war_delta":0}},
		{"actor":"China","headline":"Investitionen","modifiers":{"eu_cohesion_delta":0,"threat_delta":0,"frontline_delta":0,"energy_delta":0,"migration_delta":0,"disinfo_delta":0,"trade_war_delta":3}},
		{"actor":"Russia","headline":"Manöver","modifiers":{"eu_cohesion_delta":0,"threat_delta":0,"frontline_delta":4,"energy_delta":0,"migration_delta":0,"disinfo_delta":0,"trade_war_delta":0}}]}`
	domesticJSON = `{"events":{"Germany":{"headline":"Streik","details":"Bahn steht","craziness":10}}}`
	actionsJSON  = `{
		"aggressiv":{"aktion":"Sanktionen verschärfen","folgen":{"land":{"militär":3},"eu":{"kohäsion":-1},"global_context":"Härte"}},
		"moderate":{"aktion":"Gasdeal verhandeln","folgen":{"land":{"wirtschaft":2},"eu":{"kohäsion":1},"global_context":"Entspannung"}},
		"passiv":{"aktion":"Abwarten","folgen":{"land":{},"eu":{"kohäsion":0},"global_context":"Stillstand"}}}`
	summaryJSON = `{"summary":"- Runde vorbei"}`
)

func resolutionJSON(cohesion, economy int) string {
	return fmt.Sprintf(`{"eu":{"kohäsion_delta":%d,"global_context":"Ruhiger"},"länder":{"Germany":{"wirtschaft":%d}},"notizen":"kurz"}`, cohesion, economy)
}

type harness struct {
	engine   *engine.Engine
	store    *memory.Store
	provider *providertest.Scripted
}

func newHarness(t *testing.T, evaluator victory.Evaluator) harness {
	t.Helper()
	catalog, err := country.Parse([]byte(germanyCatalog))
	require.NoError(t, err)

	store := memory.New()
	provider := providertest.NewScripted()
	e, err := engine.New(engine.Config{
		Store:             store,
		Catalog:           catalog,
		Pipeline:          content.NewPipeline(provider, "mistral-small"),
		Prompts:           prompt.NewGerman(),
		Evaluator:         evaluator,
		Progress:          rules.ProgressFromConditions,
		Decay:             rules.DecayPressures,
		ExternalModifiers: rules.ApplyExternalModifiers,
		Random:            random.Fixed{Value: 50},
	})
	require.NoError(t, err)
	require.NoError(t, e.Init(context.Background(), false))
	return harness{engine: e, store: store, provider: provider}
}

func (h harness) meta(t *testing.T) state.Meta {
	t.Helper()
	meta, err := h.store.GetMeta(context.Background())
	require.NoError(t, err)
	return meta
}

func (h harness) eu(t *testing.T) state.EU {
	t.Helper()
	eu, err := h.store.GetEUState(context.Background())
	require.NoError(t, err)
	return eu
}

func (h harness) germany(t *testing.T) state.Metrics {
	t.Helper()
	got, err := h.store.GetCountries(context.Background(), []string{"Germany"})
	require.NoError(t, err)
	return got["Germany"].Metrics
}

// publishedAt puts the game at round with Germany's actions published.
func (h harness) publishedAt(t *testing.T, round int) {
	t.Helper()
	ctx := context.Background()
	actions, err := content.CountryActionsContract().Validate([]byte(actionsJSON))
	require.NoError(t, err)
	require.NoError(t, h.store.UpsertRoundActions(ctx, state.ActionSet{Round: round, Country: "Germany", Options: actions.Options}))
	require.NoError(t, h.store.PutMeta(ctx, state.Meta{Round: round, Phase: phase.ActionsPublished}))
}

func TestFullRoundFollowsPhaseSequence(t *testing.T) {
	h := newHarness(t, rules.LuaEvaluator{})
	ctx := context.Background()
	var seen []phase.Phase
	seen = append(seen, h.meta(t).Phase)

	h.provider.Push(providertest.Text(movesJSON), providertest.Text(domesticJSON))
	ext, err := h.engine.AdvanceExternal(ctx)
	require.NoError(t, err)
	seen = append(seen, h.meta(t).Phase)
	assert.Len(t, ext.External, 3)
	assert.Equal(t, 50, ext.External[0].Craziness)
	assert.Equal(t, 69, ext.EU.Cohesion)
	assert.Equal(t, 57, ext.EU.ThreatLevel)
	assert.Equal(t, "Neue Lage", ext.EU.GlobalContext)
	assert.Equal(t, 1, h.eu(t).ExternalRound)

	h.provider.Push(providertest.Text(actionsJSON))
	sets, err := h.engine.GenerateActions(ctx)
	require.NoError(t, err)
	require.True(t, sets["Germany"].Complete())
	seen = append(seen, h.meta(t).Phase)

	require.NoError(t, h.engine.Publish(ctx))
	seen = append(seen, h.meta(t).Phase)

	_, err = h.engine.CommitLock(ctx, "Germany", "Moderate")
	require.NoError(t, err)

	h.provider.Push(providertest.Text(resolutionJSON(0, 2)), providertest.Text(summaryJSON))
	res, err := h.engine.Resolve(ctx)
	require.NoError(t, err)

	assert.Equal(t, []phase.Phase{phase.Setup, phase.ExternalGenerated, phase.ActionsGenerated, phase.ActionsPublished}, seen)
	assert.Equal(t, state.Meta{Round: 2, Phase: phase.Setup}, stripTime(h.meta(t)))
	assert.Equal(t, 2, res.NextRound)
	assert.True(t, res.Baseline)
	assert.Equal(t, 97, h.germany(t).Economy)
	assert.Equal(t, 0, h.provider.Remaining())

	// ephemeral round data is gone
	locks, err := h.store.GetLocks(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, locks)
	external, err := h.store.ListExternalEvents(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, external)
}

func TestGermanyRoundThreeEndToEnd(t *testing.T) {
	h := newHarness(t, rules.LuaEvaluator{})
	ctx := context.Background()
	h.publishedAt(t, 3)

	_, err := h.engine.CommitLock(ctx, "Germany", "moderate")
	require.NoError(t, err)

	h.provider.Push(providertest.Text(resolutionJSON(-1, -2)), providertest.Text(summaryJSON))
	res, err := h.engine.Resolve(ctx)
	require.NoError(t, err)

	assert.Equal(t, 93, h.germany(t).Economy)
	assert.Equal(t, 80, h.germany(t).Military)
	eu := h.eu(t)
	assert.Equal(t, 69, eu.Cohesion)
	assert.Equal(t, "Ruhiger", eu.GlobalContext)
	assert.Equal(t, 50, eu.ThreatLevel)
	assert.Equal(t, 3, eu.ResolvedRound)
	assert.Equal(t, 1, h.store.HistoryCount("Germany", 3))
	assert.Equal(t, state.Meta{Round: 4, Phase: phase.Setup}, stripTime(h.meta(t)))

	history, err := h.store.ListHistory(ctx, "Germany", 1)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "Gasdeal verhandeln", history[0].ActionText)
	assert.Equal(t, state.VariantModerate, history[0].Variant)
	assert.Equal(t, "- Runde vorbei", res.Summary)
	assert.False(t, res.GameOver)
}

func TestResolveRejectedWithoutLocks(t *testing.T) {
	h := newHarness(t, nil)
	h.publishedAt(t, 1)

	_, err := h.engine.Resolve(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodePrecondition))
	assert.Equal(t, 0, h.provider.Calls())
	assert.Equal(t, phase.ActionsPublished, h.meta(t).Phase)
}

func TestResolveDoubleParseFailureChangesNothing(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.publishedAt(t, 1)
	_, err := h.engine.CommitLock(ctx, "Germany", "passiv")
	require.NoError(t, err)
	euBefore, metricsBefore, metaBefore := h.eu(t), h.germany(t), h.meta(t)

	h.provider.Push(providertest.Text("Das Ergebnis ist gut."), providertest.Text("Immer noch kein JSON"))
	_, err = h.engine.Resolve(ctx)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeContentParse, apperrors.CodeOf(err))
	assert.Equal(t, 2, h.provider.Calls())

	assert.Equal(t, euBefore, h.eu(t))
	assert.Equal(t, metricsBefore, h.germany(t))
	assert.Equal(t, metaBefore, h.meta(t))
	locks, err := h.store.GetLocks(ctx, 1)
	require.NoError(t, err)
	assert.Contains(t, locks, "Germany")
	_, ok, err := h.store.MaxSnapshotRound(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResolveWritesBaselineBeforeRoundSnapshots(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.publishedAt(t, 1)
	_, err := h.engine.CommitLock(ctx, "Germany", "passiv")
	require.NoError(t, err)

	h.store.FailOn = func(op string) error {
		if op == "PutEUState" {
			return errors.New("disk full")
		}
		return nil
	}
	h.provider.Push(providertest.Text(resolutionJSON(0, 0)), providertest.Text(summaryJSON))
	_, err = h.engine.Resolve(ctx)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeStore, apperrors.CodeOf(err))

	baseline, err := h.store.ListSnapshots(ctx, victory.BaselineRound)
	require.NoError(t, err)
	require.Len(t, baseline, 1)
	assert.Equal(t, 95, baseline[0].Metrics.Economy)
	first, err := h.store.ListSnapshots(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, first)
}

func TestResolveRetryAfterCrashAppliesOnce(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.publishedAt(t, 3)
	_, err := h.engine.CommitLock(ctx, "Germany", "moderate")
	require.NoError(t, err)

	h.store.FailOn = func(op string) error {
		if op == "UpsertRoundSummary" {
			return errors.New("connection reset")
		}
		return nil
	}
	h.provider.Push(providertest.Text(resolutionJSON(-1, -2)), providertest.Text(summaryJSON))
	_, err = h.engine.Resolve(ctx)
	require.Error(t, err)
	assert.Equal(t, phase.ActionsPublished, h.meta(t).Phase)
	assert.Equal(t, 93, h.germany(t).Economy)

	h.store.FailOn = nil
	h.provider.Push(providertest.Text(resolutionJSON(-5, -7)), providertest.Text(summaryJSON))
	res, err := h.engine.Resolve(ctx)
	require.NoError(t, err)

	assert.Equal(t, 93, h.germany(t).Economy)
	assert.Equal(t, 69, h.eu(t).Cohesion)
	assert.Equal(t, 1, h.store.HistoryCount("Germany", 3))
	assert.Equal(t, -2, res.Turns[0].Deltas.Economy)
	assert.Equal(t, state.Meta{Round: 4, Phase: phase.Setup}, stripTime(h.meta(t)))
}

func TestGameOverIsTerminal(t *testing.T) {
	winsAll := victory.EvaluatorFunc(func(_ context.Context, metrics map[string]state.Metrics, _ state.EU, _ country.Catalog) (map[string]victory.Evaluation, error) {
		out := make(map[string]victory.Evaluation)
		for key := range metrics {
			out[key] = victory.Evaluation{IsWinner: true, Results: []victory.ConditionResult{{Name: "all", Met: true, Progress: 1}}}
		}
		return out, nil
	})
	h := newHarness(t, winsAll)
	ctx := context.Background()
	h.publishedAt(t, 2)
	_, err := h.engine.CommitLock(ctx, "Germany", "aggressiv")
	require.NoError(t, err)

	h.provider.Push(providertest.Text(resolutionJSON(0, 1)), providertest.Text(summaryJSON))
	res, err := h.engine.Resolve(ctx)
	require.NoError(t, err)
	assert.True(t, res.GameOver)
	assert.Equal(t, "Germany", res.Winner)
	assert.Zero(t, res.NextRound)

	meta := h.meta(t)
	assert.Equal(t, phase.GameOver, meta.Phase)
	assert.True(t, meta.GameOver)
	assert.Equal(t, "Germany", meta.WinnerCountry)
	assert.Equal(t, 2, meta.WinnerRound)
	assert.Equal(t, state.GameOverReasonWinConditions, meta.Reason)

	_, err = h.engine.AdvanceExternal(ctx)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodePrecondition))
	assert.Equal(t, 2, h.provider.Calls())

	readiness, err := h.engine.Readiness(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, readiness.Commands)
	assert.Equal(t, phase.RejectionCodeGameOver, readiness.Rejections[phase.CommandResolve].Code)
}

func TestCommitLockRejectsChangeAndUnknownInput(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.publishedAt(t, 1)

	_, err := h.engine.CommitLock(ctx, "Germany", "moderate")
	require.NoError(t, err)
	_, err = h.engine.CommitLock(ctx, "Germany", "moderate")
	require.NoError(t, err)

	_, err = h.engine.CommitLock(ctx, "Germany", "passiv")
	assert.True(t, apperrors.HasCode(err, apperrors.CodePrecondition))
	_, err = h.engine.CommitLock(ctx, "Atlantis", "passiv")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidArgument))
	_, err = h.engine.CommitLock(ctx, "Germany", "wild")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidArgument))
}

func TestCommandsRejectedOutOfPhase(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	_, err := h.engine.GenerateActions(ctx)
	assert.True(t, apperrors.HasCode(err, apperrors.CodePrecondition))
	assert.True(t, apperrors.HasCode(h.engine.Publish(ctx), apperrors.CodePrecondition))
	_, err = h.engine.CommitLock(ctx, "Germany", "moderate")
	assert.True(t, apperrors.HasCode(err, apperrors.CodePrecondition))
	assert.Equal(t, 0, h.provider.Calls())

	readiness, err := h.engine.Readiness(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, phase.CommandSet{phase.CommandAdvanceExternal}, readiness.Commands)
}

func TestAdvanceExternalRejectsDuplicateActorsAfterRepair(t *testing.T) {
	h := newHarness(t, nil)
	dup := `{"global_context":"x","moves":[
		{"actor":"USA","headline":"a","modifiers":{"eu_cohesion_delta":0,"threat_delta":0,"frontline_delta":0,"energy_delta":0,"migration_delta":0,"disinfo_delta":0,"trade_war_delta":0}},
		{"actor":"China","headline":"b","modifiers":{"eu_cohesion_delta":0,"threat_delta":0,"frontline_delta":0,"energy_delta":0,"migration_delta":0,"disinfo_delta":0,"trade_war_delta":0}},
		{"actor":"USA","headline":"c","modifiers":{"eu_cohesion_delta":0,"threat_delta":0,"frontline_delta":0,"energy_delta":0,"migration_delta":0,"disinfo_delta":0,"trade_war_delta":0}}]}`
	h.provider.Push(providertest.Text(dup), providertest.Text(dup))

	_, err := h.engine.AdvanceExternal(context.Background())
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeContentSchema, apperrors.CodeOf(err))
	assert.Equal(t, phase.Setup, h.meta(t).Phase)
	assert.Equal(t, 0, h.eu(t).ExternalRound)
}

func TestConcurrentCommandIsRejected(t *testing.T) {
	catalog, err := country.Parse([]byte(germanyCatalog))
	require.NoError(t, err)
	started := make(chan struct{})
	release := make(chan struct{})
	provider := content.ProviderFunc(func(ctx context.Context, _ content.Request) (string, error) {
		close(started)
		<-release
		return "", errors.New("provider down")
	})
	store := memory.New()
	e, err := engine.New(engine.Config{
		Store:    store,
		Catalog:  catalog,
		Pipeline: content.NewPipeline(provider, "m"),
		Prompts:  prompt.NewGerman(),
		Random:   random.Fixed{Value: 40},
	})
	require.NoError(t, err)
	require.NoError(t, e.Init(context.Background(), false))

	done := make(chan error, 1)
	go func() {
		_, err := e.AdvanceExternal(context.Background())
		done <- err
	}()
	<-started

	err = e.Publish(context.Background())
	assert.True(t, apperrors.HasCode(err, apperrors.CodePrecondition))
	assert.Contains(t, err.Error(), "another command is in progress")

	close(release)
	assert.True(t, apperrors.HasCode(<-done, apperrors.CodeProvider))
}

func TestInitRefusesSecondRunWithoutReset(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	err := h.engine.Init(ctx, false)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeAlreadyExists))

	h.publishedAt(t, 5)
	require.NoError(t, h.engine.Init(ctx, true))
	assert.Equal(t, state.Meta{Round: 1, Phase: phase.Setup}, stripTime(h.meta(t)))
}

func TestStatusReportsLatestSnapshots(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.publishedAt(t, 1)
	_, err := h.engine.CommitLock(ctx, "Germany", "moderate")
	require.NoError(t, err)
	h.provider.Push(providertest.Text(resolutionJSON(0, 1)), providertest.Text(`{"summary":""}`))
	_, err = h.engine.Resolve(ctx)
	require.NoError(t, err)

	status, err := h.engine.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, status.Meta.Round)
	require.Len(t, status.Countries, 1)
	assert.Equal(t, 96, status.Countries[0].Metrics.Economy)
	require.Len(t, status.Snapshots, 1)
	assert.Equal(t, 1, status.Snapshots[0].Round)
	require.Len(t, status.Summaries, 1)
	assert.Equal(t, content.SummaryPlaceholder, status.Summaries[0].Text)
	assert.Equal(t, phase.CommandSet{phase.CommandAdvanceExternal}, status.Commands)

	past, err := h.engine.Readiness(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, phase.Resolved, past.Phase)
	assert.Empty(t, past.Commands)

	_, err = h.engine.Readiness(ctx, 9)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidArgument))
}

func stripTime(m state.Meta) state.Meta {
	m.UpdatedAt = time.Time{}
	return m
}
