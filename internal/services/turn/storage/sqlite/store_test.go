package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/louisbranch/euroturn/internal/services/turn/domain/phase"
	"github.com/louisbranch/euroturn/internal/services/turn/domain/state"
	"github.com/louisbranch/euroturn/internal/services/turn/storage"
)

func TestEUAndMetaRoundTrip(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	if _, err := store.GetEUState(ctx); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("get eu before put: err = %v, want ErrNotFound", err)
	}
	if _, err := store.GetMeta(ctx); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("get meta before put: err = %v, want ErrNotFound", err)
	}

	eu := state.EU{
		Cohesion:          70,
		GlobalContext:     "ruhig",
		ThreatLevel:       55,
		FrontlinePressure: 50,
		EnergyPressure:    45,
		MigrationPressure: 40,
		DisinfoPressure:   35,
		TradeWarPressure:  30,
		ExternalRound:     2,
		ResolvedRound:     1,
	}
	if err := store.PutEUState(ctx, eu); err != nil {
		t.Fatalf("put eu: %v", err)
	}
	got, err := store.GetEUState(ctx)
	if err != nil {
		t.Fatalf("get eu: %v", err)
	}
	if diff := cmp.Diff(eu, got); diff != "" {
		t.Fatalf("eu mismatch (-want +got):\n%s", diff)
	}

	updated := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	meta := state.Meta{Round: 4, Phase: phase.GameOver, GameOver: true, WinnerCountry: "Germany", WinnerRound: 4, Reason: state.GameOverReasonWinConditions, UpdatedAt: updated}
	if err := store.PutMeta(ctx, meta); err != nil {
		t.Fatalf("put meta: %v", err)
	}
	gotMeta, err := store.GetMeta(ctx)
	if err != nil {
		t.Fatalf("get meta: %v", err)
	}
	if diff := cmp.Diff(meta, gotMeta); diff != "" {
		t.Fatalf("meta mismatch (-want +got):\n%s", diff)
	}
}

func TestPutMetaRejectsUnknownPhase(t *testing.T) {
	store := openTempStore(t)
	if err := store.PutMeta(context.Background(), state.Meta{Round: 1, Phase: "lobby"}); err == nil {
		t.Fatal("expected error for unknown phase")
	}
}

func TestApplyCountryDeltasRoundTrip(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	seedGermany(t, store)

	got, err := store.ApplyCountryDeltas(ctx, "Germany", state.Metrics{Military: 5})
	if err != nil {
		t.Fatalf("apply +5: %v", err)
	}
	if got.Military != 85 {
		t.Fatalf("military = %d, want 85", got.Military)
	}
	got, err = store.ApplyCountryDeltas(ctx, "Germany", state.Metrics{Military: -5})
	if err != nil {
		t.Fatalf("apply -5: %v", err)
	}
	if got.Military != 80 {
		t.Fatalf("military = %d, want 80", got.Military)
	}

	if _, err := store.ApplyCountryDeltas(ctx, "Atlantis", state.Metrics{Military: 1}); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("apply unknown country: err = %v, want ErrNotFound", err)
	}
}

func TestRecordCountryTurnAppliesOnce(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	seedGermany(t, store)

	entry := state.HistoryEntry{
		Country:       "Germany",
		Round:         3,
		Variant:       state.VariantModerate,
		ActionText:    "Energiepartnerschaft",
		Deltas:        state.Metrics{Economy: -2},
		GlobalContext: "angespannt",
	}
	for i, want := range []bool{true, false} {
		applied, err := store.RecordCountryTurn(ctx, entry)
		if err != nil {
			t.Fatalf("record turn #%d: %v", i, err)
		}
		if applied != want {
			t.Fatalf("record turn #%d: applied = %v, want %v", i, applied, want)
		}
	}

	countries, err := store.GetCountries(ctx, []string{"Germany"})
	if err != nil {
		t.Fatalf("get countries: %v", err)
	}
	if countries["Germany"].Metrics.Economy != 93 {
		t.Fatalf("economy = %d, want 93", countries["Germany"].Metrics.Economy)
	}

	history, err := store.ListHistory(ctx, "Germany", 12)
	if err != nil {
		t.Fatalf("list history: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("history len = %d, want 1", len(history))
	}
	if history[0].Variant != state.VariantModerate || history[0].Deltas.Economy != -2 {
		t.Fatalf("history[0] = %+v", history[0])
	}
}

func TestRecordCountryTurnUnknownCountryRollsBack(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	_, err := store.RecordCountryTurn(ctx, state.HistoryEntry{Country: "Atlantis", Round: 1})
	if err == nil {
		t.Fatal("expected error for unknown country")
	}
	history, err := store.ListHistory(ctx, "Atlantis", 1)
	if err != nil {
		t.Fatalf("list history: %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("history len = %d, want 0", len(history))
	}
}

func TestRoundDataLifecycle(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	for _, actor := range []state.Actor{state.ActorRussia, state.ActorUSA, state.ActorChina} {
		if err := store.UpsertExternalEvent(ctx, state.ExternalEvent{
			Round:     2,
			Actor:     actor,
			Headline:  string(actor) + " handelt",
			Modifiers: state.Modifiers{Threat: 3},
			Craziness: 40,
		}); err != nil {
			t.Fatalf("upsert external %s: %v", actor, err)
		}
	}
	events, err := store.ListExternalEvents(ctx, 2)
	if err != nil {
		t.Fatalf("list external: %v", err)
	}
	if len(events) != 3 || events[0].Actor != state.ActorUSA || events[2].Modifiers.Threat != 3 {
		t.Fatalf("external events = %+v", events)
	}

	if err := store.UpsertDomesticEvent(ctx, state.DomesticEvent{Round: 2, Country: "Germany", Headline: "Streik"}); err != nil {
		t.Fatalf("upsert domestic: %v", err)
	}

	set := state.ActionSet{Round: 2, Country: "Germany", Options: map[state.Variant]state.ActionOption{
		state.VariantAggressive: {Text: "a", Consequences: state.Consequences{Land: state.Metrics{Military: 3}}},
		state.VariantModerate:   {Text: "m"},
		state.VariantPassive:    {Text: "p", Consequences: state.Consequences{EUCohesion: -1, GlobalContext: "ruhig"}},
	}}
	if err := store.UpsertRoundActions(ctx, set); err != nil {
		t.Fatalf("upsert actions: %v", err)
	}
	actions, err := store.GetRoundActions(ctx, 2)
	if err != nil {
		t.Fatalf("get actions: %v", err)
	}
	got := actions["Germany"]
	if !got.Complete() {
		t.Fatalf("actions incomplete: %+v", got)
	}
	if got.Options[state.VariantAggressive].Consequences.Land.Military != 3 {
		t.Fatalf("aggressive option = %+v", got.Options[state.VariantAggressive])
	}
	if got.Options[state.VariantPassive].Variant != state.VariantPassive {
		t.Fatalf("passive option variant = %q", got.Options[state.VariantPassive].Variant)
	}

	if err := store.PutLock(ctx, state.Lock{Round: 2, Country: "Germany", Variant: state.VariantPassive}); err != nil {
		t.Fatalf("put lock: %v", err)
	}
	locks, err := store.GetLocks(ctx, 2)
	if err != nil {
		t.Fatalf("get locks: %v", err)
	}
	if locks["Germany"].Variant != state.VariantPassive {
		t.Fatalf("lock = %+v", locks["Germany"])
	}

	if err := store.ClearRoundData(ctx, 2); err != nil {
		t.Fatalf("clear round data: %v", err)
	}
	events, _ = store.ListExternalEvents(ctx, 2)
	domestic, _ := store.ListDomesticEvents(ctx, 2)
	actions, _ = store.GetRoundActions(ctx, 2)
	locks, _ = store.GetLocks(ctx, 2)
	if len(events)+len(domestic)+len(actions)+len(locks) != 0 {
		t.Fatalf("round data not cleared: %d %d %d %d", len(events), len(domestic), len(actions), len(locks))
	}
}

func TestSnapshotsAndSummaries(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	if _, ok, err := store.MaxSnapshotRound(ctx); err != nil || ok {
		t.Fatalf("max snapshot round on empty store: ok = %v err = %v", ok, err)
	}
	for _, round := range []int{0, 1} {
		if err := store.UpsertSnapshot(ctx, state.Snapshot{
			Round:           round,
			Country:         "Germany",
			Metrics:         state.Metrics{Economy: 95 - round},
			VictoryProgress: 0.25 * float64(round),
			IsWinner:        round == 1,
		}); err != nil {
			t.Fatalf("upsert snapshot %d: %v", round, err)
		}
	}
	maxRound, ok, err := store.MaxSnapshotRound(ctx)
	if err != nil || !ok || maxRound != 1 {
		t.Fatalf("max snapshot round = %d ok = %v err = %v", maxRound, ok, err)
	}
	snapshots, err := store.ListSnapshots(ctx, 1)
	if err != nil {
		t.Fatalf("list snapshots: %v", err)
	}
	if len(snapshots) != 1 || !snapshots[0].IsWinner || snapshots[0].VictoryProgress != 0.25 {
		t.Fatalf("snapshots = %+v", snapshots)
	}

	for round := 1; round <= 4; round++ {
		if err := store.UpsertRoundSummary(ctx, state.Summary{Round: round, Text: "- Runde"}); err != nil {
			t.Fatalf("upsert summary %d: %v", round, err)
		}
	}
	summaries, err := store.ListRecentSummaries(ctx, 3)
	if err != nil {
		t.Fatalf("list summaries: %v", err)
	}
	if len(summaries) != 3 || summaries[0].Round != 4 || summaries[2].Round != 2 {
		t.Fatalf("summaries = %+v", summaries)
	}
}

func TestResetWipesEverything(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	seedGermany(t, store)
	if err := store.PutMeta(ctx, state.Meta{Round: 1, Phase: phase.Setup}); err != nil {
		t.Fatalf("put meta: %v", err)
	}

	if err := store.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if _, err := store.GetMeta(ctx); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("meta after reset: err = %v, want ErrNotFound", err)
	}
	if _, err := store.GetCountries(ctx, []string{"Germany"}); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("country after reset: err = %v, want ErrNotFound", err)
	}
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "turn.db")
	ctx := context.Background()

	store, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := store.PutEUState(ctx, state.EU{Cohesion: 42}); err != nil {
		t.Fatalf("put eu: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	store, err = Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer store.Close()
	eu, err := store.GetEUState(ctx)
	if err != nil {
		t.Fatalf("get eu: %v", err)
	}
	if eu.Cohesion != 42 {
		t.Fatalf("cohesion = %d, want 42", eu.Cohesion)
	}
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open(context.Background(), " "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func seedGermany(t *testing.T, store *Store) {
	t.Helper()
	if err := store.PutCountry(context.Background(), state.CountryMetrics{
		Country:  "Germany",
		Metrics:  state.Metrics{Military: 80, Stability: 90, Economy: 95, DiplomaticInfluence: 95, PublicApproval: 85},
		Ambition: "Weaken far-right, lead EU, energy transition",
	}); err != nil {
		t.Fatalf("seed germany: %v", err)
	}
}

func openTempStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "turn.db")
	store, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	return store
}
