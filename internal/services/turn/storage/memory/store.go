// Package memory provides an in-process Store for tests and dry runs.
package memory

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/louisbranch/euroturn/internal/services/turn/domain/state"
	"github.com/louisbranch/euroturn/internal/services/turn/storage"
)

// Store keeps every record in memory.
//
// FailOn, when set, is consulted before each mutating call with the method
// name; a non-nil result is returned without touching state.
type Store struct {
	mu sync.Mutex

	FailOn func(op string) error

	eu        *state.EU
	meta      *state.Meta
	countries map[string]state.CountryMetrics
	external  map[int]map[state.Actor]state.ExternalEvent
	domestic  map[int]map[string]state.DomesticEvent
	actions   map[int]map[string]state.ActionSet
	locks     map[int]map[string]state.Lock
	history   []state.HistoryEntry
	summaries map[int]state.Summary
	snapshots map[int]map[string]state.Snapshot
}

// New returns an empty store.
func New() *Store {
	s := &Store{}
	s.reset()
	return s
}

func (s *Store) reset() {
	s.eu = nil
	s.meta = nil
	s.countries = make(map[string]state.CountryMetrics)
	s.external = make(map[int]map[state.Actor]state.ExternalEvent)
	s.domestic = make(map[int]map[string]state.DomesticEvent)
	s.actions = make(map[int]map[string]state.ActionSet)
	s.locks = make(map[int]map[string]state.Lock)
	s.history = nil
	s.summaries = make(map[int]state.Summary)
	s.snapshots = make(map[int]map[string]state.Snapshot)
}

func (s *Store) check(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.FailOn != nil {
		return s.FailOn(op)
	}
	return nil
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

// Reset wipes every record.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx, "Reset"); err != nil {
		return err
	}
	s.reset()
	return nil
}

func (s *Store) GetEUState(ctx context.Context) (state.EU, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return state.EU{}, err
	}
	if s.eu == nil {
		return state.EU{}, storage.ErrNotFound
	}
	return *s.eu, nil
}

func (s *Store) PutEUState(ctx context.Context, eu state.EU) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx, "PutEUState"); err != nil {
		return err
	}
	s.eu = &eu
	return nil
}

func (s *Store) ListExternalEvents(ctx context.Context, round int) ([]state.ExternalEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []state.ExternalEvent
	for _, actor := range state.Actors() {
		if event, ok := s.external[round][actor]; ok {
			out = append(out, event)
		}
	}
	return out, nil
}

func (s *Store) UpsertExternalEvent(ctx context.Context, event state.ExternalEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx, "UpsertExternalEvent"); err != nil {
		return err
	}
	if s.external[event.Round] == nil {
		s.external[event.Round] = make(map[state.Actor]state.ExternalEvent)
	}
	s.external[event.Round][event.Actor] = event
	return nil
}

func (s *Store) ClearExternalEvents(ctx context.Context, round int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx, "ClearExternalEvents"); err != nil {
		return err
	}
	delete(s.external, round)
	return nil
}

func (s *Store) ListDomesticEvents(ctx context.Context, round int) ([]state.DomesticEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]state.DomesticEvent, 0, len(s.domestic[round]))
	for _, event := range s.domestic[round] {
		out = append(out, event)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Country < out[j].Country })
	return out, nil
}

func (s *Store) UpsertDomesticEvent(ctx context.Context, event state.DomesticEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx, "UpsertDomesticEvent"); err != nil {
		return err
	}
	if s.domestic[event.Round] == nil {
		s.domestic[event.Round] = make(map[string]state.DomesticEvent)
	}
	s.domestic[event.Round][event.Country] = event
	return nil
}

func (s *Store) ClearDomesticEvents(ctx context.Context, round int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx, "ClearDomesticEvents"); err != nil {
		return err
	}
	delete(s.domestic, round)
	return nil
}

func (s *Store) GetRoundActions(ctx context.Context, round int) (map[string]state.ActionSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make(map[string]state.ActionSet, len(s.actions[round]))
	for country, set := range s.actions[round] {
		out[country] = cloneActionSet(set)
	}
	return out, nil
}

func (s *Store) UpsertRoundActions(ctx context.Context, set state.ActionSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx, "UpsertRoundActions"); err != nil {
		return err
	}
	if s.actions[set.Round] == nil {
		s.actions[set.Round] = make(map[string]state.ActionSet)
	}
	s.actions[set.Round][set.Country] = cloneActionSet(set)
	return nil
}

func (s *Store) GetLocks(ctx context.Context, round int) (map[string]state.Lock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return maps.Clone(s.locksFor(round)), nil
}

func (s *Store) locksFor(round int) map[string]state.Lock {
	if s.locks[round] == nil {
		return map[string]state.Lock{}
	}
	return s.locks[round]
}

func (s *Store) PutLock(ctx context.Context, lock state.Lock) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx, "PutLock"); err != nil {
		return err
	}
	if s.locks[lock.Round] == nil {
		s.locks[lock.Round] = make(map[string]state.Lock)
	}
	s.locks[lock.Round][lock.Country] = lock
	return nil
}

func (s *Store) PutCountry(ctx context.Context, country state.CountryMetrics) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx, "PutCountry"); err != nil {
		return err
	}
	s.countries[country.Country] = country
	return nil
}

func (s *Store) GetCountries(ctx context.Context, countries []string) (map[string]state.CountryMetrics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make(map[string]state.CountryMetrics, len(countries))
	for _, key := range countries {
		country, ok := s.countries[key]
		if !ok {
			return nil, fmt.Errorf("country %s: %w", key, storage.ErrNotFound)
		}
		out[key] = country
	}
	return out, nil
}

func (s *Store) ApplyCountryDeltas(ctx context.Context, country string, deltas state.Metrics) (state.Metrics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx, "ApplyCountryDeltas"); err != nil {
		return state.Metrics{}, err
	}
	return s.applyLocked(country, deltas)
}

func (s *Store) applyLocked(country string, deltas state.Metrics) (state.Metrics, error) {
	current, ok := s.countries[country]
	if !ok {
		return state.Metrics{}, fmt.Errorf("country %s: %w", country, storage.ErrNotFound)
	}
	current.Metrics = current.Metrics.Add(deltas)
	s.countries[country] = current
	return current.Metrics, nil
}

func (s *Store) RecordCountryTurn(ctx context.Context, entry state.HistoryEntry) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx, "RecordCountryTurn"); err != nil {
		return false, err
	}
	for _, existing := range s.history {
		if existing.Country == entry.Country && existing.Round == entry.Round {
			return false, nil
		}
	}
	if _, err := s.applyLocked(entry.Country, entry.Deltas); err != nil {
		return false, err
	}
	if entry.RecordedAt.IsZero() {
		entry.RecordedAt = time.Now().UTC()
	}
	s.history = append(s.history, entry)
	return true, nil
}

func (s *Store) ListHistory(ctx context.Context, country string, limit int) ([]state.HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}
	var out []state.HistoryEntry
	for i := len(s.history) - 1; i >= 0 && len(out) < limit; i-- {
		if s.history[i].Country == country {
			out = append(out, s.history[i])
		}
	}
	return out, nil
}

func (s *Store) UpsertRoundSummary(ctx context.Context, summary state.Summary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx, "UpsertRoundSummary"); err != nil {
		return err
	}
	if summary.CreatedAt.IsZero() {
		summary.CreatedAt = time.Now().UTC()
	}
	s.summaries[summary.Round] = summary
	return nil
}

func (s *Store) ListRecentSummaries(ctx context.Context, limit int) ([]state.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}
	rounds := make([]int, 0, len(s.summaries))
	for round := range s.summaries {
		rounds = append(rounds, round)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(rounds)))
	if len(rounds) > limit {
		rounds = rounds[:limit]
	}
	out := make([]state.Summary, len(rounds))
	for i, round := range rounds {
		out[i] = s.summaries[round]
	}
	return out, nil
}

func (s *Store) UpsertSnapshot(ctx context.Context, snapshot state.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx, "UpsertSnapshot"); err != nil {
		return err
	}
	if s.snapshots[snapshot.Round] == nil {
		s.snapshots[snapshot.Round] = make(map[string]state.Snapshot)
	}
	s.snapshots[snapshot.Round][snapshot.Country] = snapshot
	return nil
}

func (s *Store) ListSnapshots(ctx context.Context, round int) ([]state.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]state.Snapshot, 0, len(s.snapshots[round]))
	for _, snapshot := range s.snapshots[round] {
		out = append(out, snapshot)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Country < out[j].Country })
	return out, nil
}

func (s *Store) MaxSnapshotRound(ctx context.Context) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}
	maxRound, found := 0, false
	for round, rows := range s.snapshots {
		if len(rows) == 0 {
			continue
		}
		if !found || round > maxRound {
			maxRound, found = round, true
		}
	}
	return maxRound, found, nil
}

func (s *Store) GetMeta(ctx context.Context) (state.Meta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return state.Meta{}, err
	}
	if s.meta == nil {
		return state.Meta{}, storage.ErrNotFound
	}
	return *s.meta, nil
}

func (s *Store) PutMeta(ctx context.Context, meta state.Meta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx, "PutMeta"); err != nil {
		return err
	}
	if meta.UpdatedAt.IsZero() {
		meta.UpdatedAt = time.Now().UTC()
	}
	s.meta = &meta
	return nil
}

func (s *Store) ClearRoundData(ctx context.Context, round int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx, "ClearRoundData"); err != nil {
		return err
	}
	delete(s.external, round)
	delete(s.domestic, round)
	delete(s.actions, round)
	delete(s.locks, round)
	return nil
}

// HistoryCount returns the number of history entries for country and round.
func (s *Store) HistoryCount(country string, round int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, entry := range s.history {
		if entry.Country == country && entry.Round == round {
			count++
		}
	}
	return count
}

func cloneActionSet(set state.ActionSet) state.ActionSet {
	set.Options = maps.Clone(set.Options)
	return set
}

var _ storage.Store = (*Store)(nil)
