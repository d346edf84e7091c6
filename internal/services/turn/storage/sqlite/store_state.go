package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/euroturn/internal/services/turn/domain/phase"
	"github.com/louisbranch/euroturn/internal/services/turn/domain/state"
	"github.com/louisbranch/euroturn/internal/services/turn/storage"
)

// GetEUState loads the EU singleton.
func (s *Store) GetEUState(ctx context.Context) (state.EU, error) {
	if err := s.ready(ctx); err != nil {
		return state.EU{}, err
	}
	var eu state.EU
	err := s.sqlDB.QueryRowContext(ctx, `
SELECT
	cohesion,
	global_context,
	threat_level,
	frontline_pressure,
	energy_pressure,
	migration_pressure,
	disinfo_pressure,
	trade_war_pressure,
	external_round,
	resolved_round
FROM eu_state
WHERE id = 1
`).Scan(
		&eu.Cohesion,
		&eu.GlobalContext,
		&eu.ThreatLevel,
		&eu.FrontlinePressure,
		&eu.EnergyPressure,
		&eu.MigrationPressure,
		&eu.DisinfoPressure,
		&eu.TradeWarPressure,
		&eu.ExternalRound,
		&eu.ResolvedRound,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return state.EU{}, storage.ErrNotFound
	}
	if err != nil {
		return state.EU{}, fmt.Errorf("get eu state: %w", err)
	}
	return eu, nil
}

// PutEUState upserts the EU singleton.
func (s *Store) PutEUState(ctx context.Context, eu state.EU) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO eu_state (
	id,
	cohesion,
	global_context,
	threat_level,
	frontline_pressure,
	energy_pressure,
	migration_pressure,
	disinfo_pressure,
	trade_war_pressure,
	external_round,
	resolved_round,
	updated_at
) VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	cohesion = excluded.cohesion,
	global_context = excluded.global_context,
	threat_level = excluded.threat_level,
	frontline_pressure = excluded.frontline_pressure,
	energy_pressure = excluded.energy_pressure,
	migration_pressure = excluded.migration_pressure,
	disinfo_pressure = excluded.disinfo_pressure,
	trade_war_pressure = excluded.trade_war_pressure,
	external_round = excluded.external_round,
	resolved_round = excluded.resolved_round,
	updated_at = excluded.updated_at
`,
		eu.Cohesion,
		eu.GlobalContext,
		eu.ThreatLevel,
		eu.FrontlinePressure,
		eu.EnergyPressure,
		eu.MigrationPressure,
		eu.DisinfoPressure,
		eu.TradeWarPressure,
		eu.ExternalRound,
		eu.ResolvedRound,
		s.now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("put eu state: %w", err)
	}
	return nil
}

// GetMeta loads the game metadata singleton.
func (s *Store) GetMeta(ctx context.Context) (state.Meta, error) {
	if err := s.ready(ctx); err != nil {
		return state.Meta{}, err
	}
	var (
		meta      state.Meta
		phaseName string
		gameOver  int
		updatedAt int64
	)
	err := s.sqlDB.QueryRowContext(ctx, `
SELECT round_no, phase, game_over, winner_country, winner_round, reason, updated_at
FROM game_meta
WHERE id = 1
`).Scan(&meta.Round, &phaseName, &gameOver, &meta.WinnerCountry, &meta.WinnerRound, &meta.Reason, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return state.Meta{}, storage.ErrNotFound
	}
	if err != nil {
		return state.Meta{}, fmt.Errorf("get meta: %w", err)
	}
	meta.Phase, err = phase.Parse(phaseName)
	if err != nil {
		return state.Meta{}, fmt.Errorf("get meta: %w", err)
	}
	meta.GameOver = gameOver != 0
	meta.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return meta, nil
}

// PutMeta upserts the game metadata singleton.
func (s *Store) PutMeta(ctx context.Context, meta state.Meta) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if !meta.Phase.Valid() {
		return fmt.Errorf("phase %q is invalid", meta.Phase)
	}
	if meta.UpdatedAt.IsZero() {
		meta.UpdatedAt = s.now()
	}
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO game_meta (id, round_no, phase, game_over, winner_country, winner_round, reason, updated_at)
VALUES (1, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	round_no = excluded.round_no,
	phase = excluded.phase,
	game_over = excluded.game_over,
	winner_country = excluded.winner_country,
	winner_round = excluded.winner_round,
	reason = excluded.reason,
	updated_at = excluded.updated_at
`,
		meta.Round,
		string(meta.Phase),
		boolToInt(meta.GameOver),
		meta.WinnerCountry,
		meta.WinnerRound,
		meta.Reason,
		meta.UpdatedAt.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("put meta: %w", err)
	}
	return nil
}

// PutCountry upserts one country's metrics and ambition.
func (s *Store) PutCountry(ctx context.Context, country state.CountryMetrics) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	country.Country = strings.TrimSpace(country.Country)
	if country.Country == "" {
		return fmt.Errorf("country is required")
	}
	m := country.Metrics
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO countries (name, military, stability, economy, diplomatic_influence, public_approval, ambition)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(name) DO UPDATE SET
	military = excluded.military,
	stability = excluded.stability,
	economy = excluded.economy,
	diplomatic_influence = excluded.diplomatic_influence,
	public_approval = excluded.public_approval,
	ambition = excluded.ambition
`, country.Country, m.Military, m.Stability, m.Economy, m.DiplomaticInfluence, m.PublicApproval, country.Ambition)
	if err != nil {
		return fmt.Errorf("put country %s: %w", country.Country, err)
	}
	return nil
}

// GetCountries loads the requested countries.
func (s *Store) GetCountries(ctx context.Context, countries []string) (map[string]state.CountryMetrics, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	out := make(map[string]state.CountryMetrics, len(countries))
	for _, key := range countries {
		var (
			c state.CountryMetrics
			m state.Metrics
		)
		err := s.sqlDB.QueryRowContext(ctx, `
SELECT name, military, stability, economy, diplomatic_influence, public_approval, ambition
FROM countries
WHERE name = ?
`, key).Scan(&c.Country, &m.Military, &m.Stability, &m.Economy, &m.DiplomaticInfluence, &m.PublicApproval, &c.Ambition)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("country %s: %w", key, storage.ErrNotFound)
		}
		if err != nil {
			return nil, fmt.Errorf("get country %s: %w", key, err)
		}
		c.Metrics = m
		out[key] = c
	}
	return out, nil
}

// ApplyCountryDeltas adds deltas to one country's metrics.
func (s *Store) ApplyCountryDeltas(ctx context.Context, country string, deltas state.Metrics) (state.Metrics, error) {
	if err := s.ready(ctx); err != nil {
		return state.Metrics{}, err
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return state.Metrics{}, fmt.Errorf("begin apply deltas: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := applyDeltasTx(ctx, tx, country, deltas); err != nil {
		return state.Metrics{}, err
	}
	var m state.Metrics
	if err := tx.QueryRowContext(ctx, `
SELECT military, stability, economy, diplomatic_influence, public_approval
FROM countries
WHERE name = ?
`, country).Scan(&m.Military, &m.Stability, &m.Economy, &m.DiplomaticInfluence, &m.PublicApproval); err != nil {
		return state.Metrics{}, fmt.Errorf("reload country %s: %w", country, err)
	}
	if err := tx.Commit(); err != nil {
		return state.Metrics{}, fmt.Errorf("commit apply deltas: %w", err)
	}
	return m, nil
}

func applyDeltasTx(ctx context.Context, tx *sql.Tx, country string, d state.Metrics) error {
	res, err := tx.ExecContext(ctx, `
UPDATE countries SET
	military = military + ?,
	stability = stability + ?,
	economy = economy + ?,
	diplomatic_influence = diplomatic_influence + ?,
	public_approval = public_approval + ?
WHERE name = ?
`, d.Military, d.Stability, d.Economy, d.DiplomaticInfluence, d.PublicApproval, country)
	if err != nil {
		return fmt.Errorf("apply deltas %s: %w", country, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("apply deltas %s: %w", country, err)
	}
	if affected == 0 {
		return fmt.Errorf("country %s: %w", country, storage.ErrNotFound)
	}
	return nil
}

// RecordCountryTurn appends one history entry and applies its deltas together.
func (s *Store) RecordCountryTurn(ctx context.Context, entry state.HistoryEntry) (bool, error) {
	if err := s.ready(ctx); err != nil {
		return false, err
	}
	if strings.TrimSpace(entry.Country) == "" {
		return false, fmt.Errorf("country is required")
	}
	if entry.RecordedAt.IsZero() {
		entry.RecordedAt = s.now()
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin record turn: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	d := entry.Deltas
	res, err := tx.ExecContext(ctx, `
INSERT INTO turn_history (
	country,
	round_no,
	variant,
	action_public,
	military,
	stability,
	economy,
	diplomatic_influence,
	public_approval,
	global_context,
	recorded_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(country, round_no) DO NOTHING
`,
		entry.Country,
		entry.Round,
		string(entry.Variant),
		entry.ActionText,
		d.Military,
		d.Stability,
		d.Economy,
		d.DiplomaticInfluence,
		d.PublicApproval,
		entry.GlobalContext,
		entry.RecordedAt.UTC().UnixMilli(),
	)
	if err != nil {
		return false, fmt.Errorf("insert turn history: %w", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert turn history: %w", err)
	}
	if inserted == 0 {
		return false, nil
	}
	if err := applyDeltasTx(ctx, tx, entry.Country, d); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit record turn: %w", err)
	}
	return true, nil
}

// ListHistory lists newest-first history entries for one country.
func (s *Store) ListHistory(ctx context.Context, country string, limit int) ([]state.HistoryEntry, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT
	country,
	round_no,
	variant,
	action_public,
	military,
	stability,
	economy,
	diplomatic_influence,
	public_approval,
	global_context,
	recorded_at
FROM turn_history
WHERE country = ?
ORDER BY round_no DESC, id DESC
LIMIT ?
`, country, limit)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	entries := make([]state.HistoryEntry, 0, limit)
	for rows.Next() {
		var (
			entry      state.HistoryEntry
			variant    string
			recordedAt int64
		)
		if err := rows.Scan(
			&entry.Country,
			&entry.Round,
			&variant,
			&entry.ActionText,
			&entry.Deltas.Military,
			&entry.Deltas.Stability,
			&entry.Deltas.Economy,
			&entry.Deltas.DiplomaticInfluence,
			&entry.Deltas.PublicApproval,
			&entry.GlobalContext,
			&recordedAt,
		); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		entry.Variant = state.Variant(variant)
		entry.RecordedAt = time.UnixMilli(recordedAt).UTC()
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return entries, nil
}
