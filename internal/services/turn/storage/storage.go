// Package storage defines the entity-scoped persistence contracts used by the
// turn engine.
//
// Every call is atomic on its own entity. The engine never assumes a
// transaction spanning calls; it orders writes so a crash between two calls
// leaves a state the same command can be re-issued against.
package storage

import (
	"context"
	"errors"

	"github.com/louisbranch/euroturn/internal/services/turn/domain/state"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New("record not found")

// ErrAlreadyExists indicates an append-only record already exists.
var ErrAlreadyExists = errors.New("record already exists")

// EUStore persists the EU singleton.
type EUStore interface {
	GetEUState(ctx context.Context) (state.EU, error)
	PutEUState(ctx context.Context, eu state.EU) error
}

// EventStore persists per-round external and domestic events.
type EventStore interface {
	ListExternalEvents(ctx context.Context, round int) ([]state.ExternalEvent, error)
	UpsertExternalEvent(ctx context.Context, event state.ExternalEvent) error
	ClearExternalEvents(ctx context.Context, round int) error
	ListDomesticEvents(ctx context.Context, round int) ([]state.DomesticEvent, error)
	UpsertDomesticEvent(ctx context.Context, event state.DomesticEvent) error
	ClearDomesticEvents(ctx context.Context, round int) error
}

// ActionStore persists generated action variants.
type ActionStore interface {
	// GetRoundActions returns the stored action sets keyed by country.
	GetRoundActions(ctx context.Context, round int) (map[string]state.ActionSet, error)
	UpsertRoundActions(ctx context.Context, set state.ActionSet) error
}

// LockStore persists committed choices.
type LockStore interface {
	// GetLocks returns the round's locks keyed by country.
	GetLocks(ctx context.Context, round int) (map[string]state.Lock, error)
	PutLock(ctx context.Context, lock state.Lock) error
}

// CountryStore persists country metrics.
type CountryStore interface {
	PutCountry(ctx context.Context, country state.CountryMetrics) error
	// GetCountries returns the requested countries; a missing one is ErrNotFound.
	GetCountries(ctx context.Context, countries []string) (map[string]state.CountryMetrics, error)
	// ApplyCountryDeltas adds deltas to the stored metrics and returns the result.
	ApplyCountryDeltas(ctx context.Context, country string, deltas state.Metrics) (state.Metrics, error)
}

// HistoryStore persists the append-only turn history.
type HistoryStore interface {
	// RecordCountryTurn applies the entry's deltas to its country and appends
	// the entry as one unit. When an entry for the same country and round
	// already exists nothing changes and applied is false.
	RecordCountryTurn(ctx context.Context, entry state.HistoryEntry) (applied bool, err error)
	// ListHistory returns up to limit entries for country, newest first.
	ListHistory(ctx context.Context, country string, limit int) ([]state.HistoryEntry, error)
}

// SummaryStore persists round summaries.
type SummaryStore interface {
	UpsertRoundSummary(ctx context.Context, summary state.Summary) error
	// ListRecentSummaries returns up to limit summaries, newest round first.
	ListRecentSummaries(ctx context.Context, limit int) ([]state.Summary, error)
}

// SnapshotStore persists per-round country snapshots.
type SnapshotStore interface {
	UpsertSnapshot(ctx context.Context, snapshot state.Snapshot) error
	ListSnapshots(ctx context.Context, round int) ([]state.Snapshot, error)
	// MaxSnapshotRound returns the highest snapshotted round; ok is false when
	// no snapshot exists.
	MaxSnapshotRound(ctx context.Context) (round int, ok bool, err error)
}

// MetaStore persists the game metadata singleton.
type MetaStore interface {
	GetMeta(ctx context.Context) (state.Meta, error)
	PutMeta(ctx context.Context, meta state.Meta) error
}

// RoundDataStore clears ephemeral per-round data.
type RoundDataStore interface {
	// ClearRoundData removes the round's events, actions and locks.
	ClearRoundData(ctx context.Context, round int) error
}

// Resetter wipes every game record.
type Resetter interface {
	Reset(ctx context.Context) error
}

// Store is the full persistence surface of the turn engine.
type Store interface {
	EUStore
	EventStore
	ActionStore
	LockStore
	CountryStore
	HistoryStore
	SummaryStore
	SnapshotStore
	MetaStore
	RoundDataStore
	Resetter
	Close() error
}
