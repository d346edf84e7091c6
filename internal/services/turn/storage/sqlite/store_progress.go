package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/louisbranch/euroturn/internal/services/turn/domain/state"
)

// UpsertRoundSummary stores the narrative summary of a round.
func (s *Store) UpsertRoundSummary(ctx context.Context, summary state.Summary) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if summary.CreatedAt.IsZero() {
		summary.CreatedAt = s.now()
	}
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO round_summaries (round_no, summary, created_at)
VALUES (?, ?, ?)
ON CONFLICT(round_no) DO UPDATE SET
	summary = excluded.summary,
	created_at = excluded.created_at
`, summary.Round, summary.Text, summary.CreatedAt.UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("upsert round summary: %w", err)
	}
	return nil
}

// ListRecentSummaries lists newest-round-first summaries.
func (s *Store) ListRecentSummaries(ctx context.Context, limit int) ([]state.Summary, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT round_no, summary, created_at
FROM round_summaries
ORDER BY round_no DESC
LIMIT ?
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list summaries: %w", err)
	}
	defer rows.Close()

	summaries := make([]state.Summary, 0, limit)
	for rows.Next() {
		var (
			summary   state.Summary
			createdAt int64
		)
		if err := rows.Scan(&summary.Round, &summary.Text, &createdAt); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		summary.CreatedAt = time.UnixMilli(createdAt).UTC()
		summaries = append(summaries, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate summaries: %w", err)
	}
	return summaries, nil
}

// UpsertSnapshot stores one country's snapshot for a round.
func (s *Store) UpsertSnapshot(ctx context.Context, snapshot state.Snapshot) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	m := snapshot.Metrics
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO country_snapshots (
	round_no,
	country,
	military,
	stability,
	economy,
	diplomatic_influence,
	public_approval,
	victory_progress,
	is_winner
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(round_no, country) DO UPDATE SET
	military = excluded.military,
	stability = excluded.stability,
	economy = excluded.economy,
	diplomatic_influence = excluded.diplomatic_influence,
	public_approval = excluded.public_approval,
	victory_progress = excluded.victory_progress,
	is_winner = excluded.is_winner
`,
		snapshot.Round,
		snapshot.Country,
		m.Military,
		m.Stability,
		m.Economy,
		m.DiplomaticInfluence,
		m.PublicApproval,
		snapshot.VictoryProgress,
		boolToInt(snapshot.IsWinner),
	)
	if err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}
	return nil
}

// ListSnapshots lists a round's snapshots by country.
func (s *Store) ListSnapshots(ctx context.Context, round int) ([]state.Snapshot, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT
	country,
	military,
	stability,
	economy,
	diplomatic_influence,
	public_approval,
	victory_progress,
	is_winner
FROM country_snapshots
WHERE round_no = ?
ORDER BY country
`, round)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []state.Snapshot
	for rows.Next() {
		var (
			snapshot = state.Snapshot{Round: round}
			m        = &snapshot.Metrics
			isWinner int
		)
		if err := rows.Scan(
			&snapshot.Country,
			&m.Military,
			&m.Stability,
			&m.Economy,
			&m.DiplomaticInfluence,
			&m.PublicApproval,
			&snapshot.VictoryProgress,
			&isWinner,
		); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snapshot.IsWinner = isWinner != 0
		snapshots = append(snapshots, snapshot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return snapshots, nil
}

// MaxSnapshotRound returns the highest snapshotted round.
func (s *Store) MaxSnapshotRound(ctx context.Context) (int, bool, error) {
	if err := s.ready(ctx); err != nil {
		return 0, false, err
	}
	var maxRound sql.NullInt64
	if err := s.sqlDB.QueryRowContext(ctx, "SELECT MAX(round_no) FROM country_snapshots").Scan(&maxRound); err != nil {
		return 0, false, fmt.Errorf("max snapshot round: %w", err)
	}
	if !maxRound.Valid {
		return 0, false, nil
	}
	return int(maxRound.Int64), true, nil
}
