package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/louisbranch/euroturn/internal/services/turn/domain/state"
)

// ListExternalEvents lists a round's external events in actor order.
func (s *Store) ListExternalEvents(ctx context.Context, round int) ([]state.ExternalEvent, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT
	actor,
	headline,
	eu_cohesion_delta,
	threat_delta,
	frontline_delta,
	energy_delta,
	migration_delta,
	disinfo_delta,
	trade_war_delta,
	quote,
	craziness
FROM external_events
WHERE round_no = ?
`, round)
	if err != nil {
		return nil, fmt.Errorf("list external events: %w", err)
	}
	defer rows.Close()

	byActor := make(map[state.Actor]state.ExternalEvent)
	for rows.Next() {
		event := state.ExternalEvent{Round: round}
		var actor string
		mod := &event.Modifiers
		if err := rows.Scan(
			&actor,
			&event.Headline,
			&mod.EUCohesion,
			&mod.Threat,
			&mod.Frontline,
			&mod.Energy,
			&mod.Migration,
			&mod.Disinfo,
			&mod.TradeWar,
			&event.Quote,
			&event.Craziness,
		); err != nil {
			return nil, fmt.Errorf("scan external event: %w", err)
		}
		event.Actor = state.Actor(actor)
		byActor[event.Actor] = event
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate external events: %w", err)
	}

	events := make([]state.ExternalEvent, 0, len(byActor))
	for _, actor := range state.Actors() {
		if event, ok := byActor[actor]; ok {
			events = append(events, event)
		}
	}
	return events, nil
}

// UpsertExternalEvent stores one actor's move for a round.
func (s *Store) UpsertExternalEvent(ctx context.Context, event state.ExternalEvent) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	mod := event.Modifiers
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO external_events (
	round_no,
	actor,
	headline,
	eu_cohesion_delta,
	threat_delta,
	frontline_delta,
	energy_delta,
	migration_delta,
	disinfo_delta,
	trade_war_delta,
	quote,
	craziness
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(round_no, actor) DO UPDATE SET
	headline = excluded.headline,
	eu_cohesion_delta = excluded.eu_cohesion_delta,
	threat_delta = excluded.threat_delta,
	frontline_delta = excluded.frontline_delta,
	energy_delta = excluded.energy_delta,
	migration_delta = excluded.migration_delta,
	disinfo_delta = excluded.disinfo_delta,
	trade_war_delta = excluded.trade_war_delta,
	quote = excluded.quote,
	craziness = excluded.craziness
`,
		event.Round,
		string(event.Actor),
		event.Headline,
		mod.EUCohesion,
		mod.Threat,
		mod.Frontline,
		mod.Energy,
		mod.Migration,
		mod.Disinfo,
		mod.TradeWar,
		event.Quote,
		event.Craziness,
	)
	if err != nil {
		return fmt.Errorf("upsert external event: %w", err)
	}
	return nil
}

// ClearExternalEvents removes a round's external events.
func (s *Store) ClearExternalEvents(ctx context.Context, round int) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if _, err := s.sqlDB.ExecContext(ctx, "DELETE FROM external_events WHERE round_no = ?", round); err != nil {
		return fmt.Errorf("clear external events: %w", err)
	}
	return nil
}

// ListDomesticEvents lists a round's domestic events by country.
func (s *Store) ListDomesticEvents(ctx context.Context, round int) ([]state.DomesticEvent, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT country, headline, details, craziness
FROM domestic_events
WHERE round_no = ?
ORDER BY country
`, round)
	if err != nil {
		return nil, fmt.Errorf("list domestic events: %w", err)
	}
	defer rows.Close()

	var events []state.DomesticEvent
	for rows.Next() {
		event := state.DomesticEvent{Round: round}
		if err := rows.Scan(&event.Country, &event.Headline, &event.Details, &event.Craziness); err != nil {
			return nil, fmt.Errorf("scan domestic event: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate domestic events: %w", err)
	}
	return events, nil
}

// UpsertDomesticEvent stores one country's domestic headline for a round.
func (s *Store) UpsertDomesticEvent(ctx context.Context, event state.DomesticEvent) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO domestic_events (round_no, country, headline, details, craziness)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(round_no, country) DO UPDATE SET
	headline = excluded.headline,
	details = excluded.details,
	craziness = excluded.craziness
`, event.Round, event.Country, event.Headline, event.Details, event.Craziness)
	if err != nil {
		return fmt.Errorf("upsert domestic event: %w", err)
	}
	return nil
}

// ClearDomesticEvents removes a round's domestic events.
func (s *Store) ClearDomesticEvents(ctx context.Context, round int) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if _, err := s.sqlDB.ExecContext(ctx, "DELETE FROM domestic_events WHERE round_no = ?", round); err != nil {
		return fmt.Errorf("clear domestic events: %w", err)
	}
	return nil
}

// GetRoundActions loads every stored action set for a round.
func (s *Store) GetRoundActions(ctx context.Context, round int) (map[string]state.ActionSet, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT country, options_json
FROM round_actions
WHERE round_no = ?
`, round)
	if err != nil {
		return nil, fmt.Errorf("get round actions: %w", err)
	}
	defer rows.Close()

	sets := make(map[string]state.ActionSet)
	for rows.Next() {
		var country, raw string
		if err := rows.Scan(&country, &raw); err != nil {
			return nil, fmt.Errorf("scan round actions: %w", err)
		}
		var options []state.ActionOption
		if err := json.Unmarshal([]byte(raw), &options); err != nil {
			return nil, fmt.Errorf("decode round actions %s: %w", country, err)
		}
		set := state.ActionSet{Round: round, Country: country, Options: make(map[state.Variant]state.ActionOption, len(options))}
		for _, option := range options {
			set.Options[option.Variant] = option
		}
		sets[country] = set
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate round actions: %w", err)
	}
	return sets, nil
}

// UpsertRoundActions stores one country's action set for a round.
func (s *Store) UpsertRoundActions(ctx context.Context, set state.ActionSet) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	options := make([]state.ActionOption, 0, len(set.Options))
	for _, variant := range state.Variants() {
		if option, ok := set.Options[variant]; ok {
			option.Variant = variant
			options = append(options, option)
		}
	}
	raw, err := json.Marshal(options)
	if err != nil {
		return fmt.Errorf("encode round actions: %w", err)
	}
	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO round_actions (round_no, country, options_json)
VALUES (?, ?, ?)
ON CONFLICT(round_no, country) DO UPDATE SET options_json = excluded.options_json
`, set.Round, set.Country, string(raw))
	if err != nil {
		return fmt.Errorf("upsert round actions: %w", err)
	}
	return nil
}

// GetLocks loads a round's committed locks.
func (s *Store) GetLocks(ctx context.Context, round int) (map[string]state.Lock, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT country, variant, committed_at
FROM round_locks
WHERE round_no = ?
`, round)
	if err != nil {
		return nil, fmt.Errorf("get locks: %w", err)
	}
	defer rows.Close()

	locks := make(map[string]state.Lock)
	for rows.Next() {
		var (
			lock        = state.Lock{Round: round}
			variant     string
			committedAt int64
		)
		if err := rows.Scan(&lock.Country, &variant, &committedAt); err != nil {
			return nil, fmt.Errorf("scan lock: %w", err)
		}
		lock.Variant = state.Variant(variant)
		lock.CommittedAt = time.UnixMilli(committedAt).UTC()
		locks[lock.Country] = lock
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate locks: %w", err)
	}
	return locks, nil
}

// PutLock upserts one country's lock.
func (s *Store) PutLock(ctx context.Context, lock state.Lock) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if lock.CommittedAt.IsZero() {
		lock.CommittedAt = s.now()
	}
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO round_locks (round_no, country, variant, committed_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(round_no, country) DO UPDATE SET
	variant = excluded.variant,
	committed_at = excluded.committed_at
`, lock.Round, lock.Country, string(lock.Variant), lock.CommittedAt.UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("put lock: %w", err)
	}
	return nil
}

// ClearRoundData removes a round's events, actions and locks in one transaction.
func (s *Store) ClearRoundData(ctx context.Context, round int) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin clear round data: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"external_events", "domestic_events", "round_actions", "round_locks"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE round_no = ?", round); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit clear round data: %w", err)
	}
	return nil
}
