package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/flor3z/faction-bot/internal/report"
)

var contributionUpsert = upsert{
	table: "member_contributions",
	columns: []string{
		"war_id", "member_id", "name", "war_hits", "under_threshold_hits",
		"off_target_hits", "assists", "losses", "respect",
	},
	conflict: []string{"war_id", "member_id"},
}

// SaveWarReport stores a report summary and replaces its contributions
func (r *Repository) SaveWarReport(ctx context.Context, rep *report.Report) error {
	_, err := r.exec(ctx,
		`INSERT INTO war_reports (war_id, faction_id, opponent_id, opponent_name, start_at, end_at,
			total_hits, total_assists, total_respect, generated_by, generated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (war_id) DO UPDATE SET
			faction_id = excluded.faction_id,
			opponent_id = excluded.opponent_id,
			opponent_name = excluded.opponent_name,
			start_at = excluded.start_at,
			end_at = excluded.end_at,
			total_hits = excluded.total_hits,
			total_assists = excluded.total_assists,
			total_respect = excluded.total_respect,
			generated_by = excluded.generated_by,
			generated_at = excluded.generated_at`,
		rep.WarID, rep.FactionID, rep.OpponentID, rep.OpponentName, rep.Start, rep.End,
		rep.TotalHits, rep.TotalAssists, rep.TotalRespect, rep.GeneratedBy, rep.GeneratedAt,
	)
	if err != nil {
		return fmt.Errorf("save war report %d: %w", rep.WarID, err)
	}

	// Regeneration may drop members, so clear before writing
	if _, err := r.exec(ctx, `DELETE FROM member_contributions WHERE war_id = ?`, rep.WarID); err != nil {
		return fmt.Errorf("clear contributions for war %d: %w", rep.WarID, err)
	}

	rows := make([][]any, 0, len(rep.Contributions))
	for _, c := range rep.Contributions {
		rows = append(rows, []any{
			rep.WarID, c.MemberID, c.Name, c.WarHits, c.UnderThresholdHits,
			c.OffTargetHits, c.Assists, c.Losses, c.Respect,
		})
	}
	return r.upsertBatched(ctx, contributionUpsert, rows)
}

// GetWarReport loads a report with its contributions
func (r *Repository) GetWarReport(ctx context.Context, warID int64) (*report.Report, error) {
	rep := &report.Report{}
	err := r.queryRow(ctx,
		`SELECT war_id, faction_id, opponent_id, opponent_name, start_at, end_at,
			total_hits, total_assists, total_respect, generated_by, generated_at
		 FROM war_reports WHERE war_id = ?`,
		warID,
	).Scan(&rep.WarID, &rep.FactionID, &rep.OpponentID, &rep.OpponentName, &rep.Start, &rep.End,
		&rep.TotalHits, &rep.TotalAssists, &rep.TotalRespect, &rep.GeneratedBy, &rep.GeneratedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("war %d: %w", warID, report.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.query(ctx,
		`SELECT war_id, member_id, name, war_hits, under_threshold_hits, off_target_hits, assists, losses, respect
		 FROM member_contributions WHERE war_id = ?
		 ORDER BY respect DESC, member_id`,
		warID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var c report.Contribution
		if err := rows.Scan(&c.WarID, &c.MemberID, &c.Name, &c.WarHits, &c.UnderThresholdHits,
			&c.OffTargetHits, &c.Assists, &c.Losses, &c.Respect); err != nil {
			return nil, err
		}
		rep.Contributions = append(rep.Contributions, c)
	}

	return rep, rows.Err()
}

// ListWarReports returns report summaries, newest war first
func (r *Repository) ListWarReports(ctx context.Context, limit int) ([]report.Summary, error) {
	rows, err := r.query(ctx,
		`SELECT war_id, faction_id, opponent_id, opponent_name, start_at, end_at,
			total_hits, total_assists, total_respect, generated_by, generated_at
		 FROM war_reports ORDER BY start_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []report.Summary
	for rows.Next() {
		var s report.Summary
		if err := rows.Scan(&s.WarID, &s.FactionID, &s.OpponentID, &s.OpponentName, &s.Start, &s.End,
			&s.TotalHits, &s.TotalAssists, &s.TotalRespect, &s.GeneratedBy, &s.GeneratedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
