// Package lock coordinates per-country committed choices for a round.
package lock

import (
	"context"
	"strings"
	"time"

	apperrors "github.com/louisbranch/euroturn/internal/platform/errors"
	"github.com/louisbranch/euroturn/internal/services/turn/domain/state"
	"github.com/louisbranch/euroturn/internal/services/turn/storage"
)

// Coordinator commits and inspects locks. There is no unlock.
type Coordinator struct {
	store storage.LockStore
	now   func() time.Time
}

// NewCoordinator returns a coordinator over store.
func NewCoordinator(store storage.LockStore) *Coordinator {
	return &Coordinator{store: store, now: func() time.Time { return time.Now().UTC() }}
}

// Commit records country's choice for round.
//
// Re-committing the same variant is a no-op; a different variant for a
// country that is already locked is rejected.
func (c *Coordinator) Commit(ctx context.Context, round int, country string, variant state.Variant) (state.Lock, error) {
	country = strings.TrimSpace(country)
	if country == "" {
		return state.Lock{}, apperrors.New(apperrors.CodeInvalidArgument, "country is required")
	}
	if _, err := state.ParseVariant(string(variant)); err != nil {
		return state.Lock{}, apperrors.Wrap(apperrors.CodeInvalidArgument, "invalid variant", err)
	}

	locks, err := c.store.GetLocks(ctx, round)
	if err != nil {
		return state.Lock{}, apperrors.Store("get locks", err)
	}
	if existing, ok := locks[country]; ok {
		if existing.Variant == variant {
			return existing, nil
		}
		return state.Lock{}, apperrors.WithMetadata(apperrors.CodePrecondition,
			"country is already locked for this round",
			map[string]string{"country": country, "locked": string(existing.Variant), "requested": string(variant)})
	}

	lock := state.Lock{Round: round, Country: country, Variant: variant, CommittedAt: c.now()}
	if err := c.store.PutLock(ctx, lock); err != nil {
		return state.Lock{}, apperrors.Store("put lock", err)
	}
	return lock, nil
}

// AllLocked reports whether every country in countries holds a lock for round.
func (c *Coordinator) AllLocked(ctx context.Context, round int, countries []string) (bool, error) {
	locked, err := c.Locked(ctx, round, countries)
	if err != nil {
		return false, err
	}
	return len(countries) > 0 && locked == len(countries), nil
}

// Locked counts the countries in countries that hold a lock for round.
func (c *Coordinator) Locked(ctx context.Context, round int, countries []string) (int, error) {
	locks, err := c.store.GetLocks(ctx, round)
	if err != nil {
		return 0, apperrors.Store("get locks", err)
	}
	count := 0
	for _, country := range countries {
		if _, ok := locks[country]; ok {
			count++
		}
	}
	return count, nil
}

// Locks returns round's locks keyed by country.
func (c *Coordinator) Locks(ctx context.Context, round int) (map[string]state.Lock, error) {
	locks, err := c.store.GetLocks(ctx, round)
	if err != nil {
		return nil, apperrors.Store("get locks", err)
	}
	return locks, nil
}
