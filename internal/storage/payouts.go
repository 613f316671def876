package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/flor3z/faction-bot/internal/payout"
)

var lineItemUpsert = upsert{
	table: "payout_line_items",
	columns: []string{
		"war_id", "member_id", "name", "war_hits", "under_threshold_hits", "off_target_hits",
		"assists", "points", "payment", "paid", "paid_by", "paid_at",
	},
	conflict: []string{"war_id", "member_id"},
}

// SaveLedger stores a ledger summary and replaces its line items
func (r *Repository) SaveLedger(ctx context.Context, l *payout.Ledger) error {
	_, err := r.exec(ctx,
		`INSERT INTO payout_summaries (war_id, pool, fraction, payout, total_points, rate,
			war_hit_points, under_threshold_points, off_target_points, assist_points, created_by, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (war_id) DO UPDATE SET
			pool = excluded.pool,
			fraction = excluded.fraction,
			payout = excluded.payout,
			total_points = excluded.total_points,
			rate = excluded.rate,
			war_hit_points = excluded.war_hit_points,
			under_threshold_points = excluded.under_threshold_points,
			off_target_points = excluded.off_target_points,
			assist_points = excluded.assist_points,
			created_by = excluded.created_by,
			created_at = excluded.created_at`,
		l.WarID, l.Pool, l.Fraction, l.Payout, l.TotalPoints, l.Rate,
		l.Weights.WarHit, l.Weights.UnderThreshold, l.Weights.OffTarget, l.Weights.Assist,
		l.CreatedBy, l.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save payout summary %d: %w", l.WarID, err)
	}

	if _, err := r.exec(ctx, `DELETE FROM payout_line_items WHERE war_id = ?`, l.WarID); err != nil {
		return fmt.Errorf("clear line items for war %d: %w", l.WarID, err)
	}

	rows := make([][]any, 0, len(l.Items))
	for _, item := range l.Items {
		rows = append(rows, []any{
			l.WarID, item.MemberID, item.Name, item.Counters.WarHits, item.Counters.UnderThresholdHits,
			item.Counters.OffTargetHits, item.Counters.Assists, item.Points, item.Payment,
			item.Paid, item.PaidBy, nullTime(item.PaidAt),
		})
	}
	return r.upsertBatched(ctx, lineItemUpsert, rows)
}

// GetLedger loads a ledger with its line items
func (r *Repository) GetLedger(ctx context.Context, warID int64) (*payout.Ledger, error) {
	l := &payout.Ledger{}
	err := r.queryRow(ctx,
		`SELECT war_id, pool, fraction, payout, total_points, rate,
			war_hit_points, under_threshold_points, off_target_points, assist_points, created_by, created_at
		 FROM payout_summaries WHERE war_id = ?`,
		warID,
	).Scan(&l.WarID, &l.Pool, &l.Fraction, &l.Payout, &l.TotalPoints, &l.Rate,
		&l.Weights.WarHit, &l.Weights.UnderThreshold, &l.Weights.OffTarget, &l.Weights.Assist,
		&l.CreatedBy, &l.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("war %d: %w", warID, payout.ErrLedgerNotFound)
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.query(ctx,
		`SELECT member_id, name, war_hits, under_threshold_hits, off_target_hits, assists,
			points, payment, paid, paid_by, paid_at
		 FROM payout_line_items WHERE war_id = ?
		 ORDER BY payment DESC, member_id`,
		warID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var item payout.LineItem
		var paidAt sql.NullTime
		if err := rows.Scan(&item.MemberID, &item.Name, &item.Counters.WarHits, &item.Counters.UnderThresholdHits,
			&item.Counters.OffTargetHits, &item.Counters.Assists, &item.Points, &item.Payment,
			&item.Paid, &item.PaidBy, &paidAt); err != nil {
			return nil, err
		}
		if paidAt.Valid {
			item.PaidAt = paidAt.Time
		}
		l.Items = append(l.Items, item)
	}

	return l, rows.Err()
}

// UpdateLineItemPaid persists one item's paid flag and audit fields
func (r *Repository) UpdateLineItemPaid(ctx context.Context, warID int64, item *payout.LineItem) error {
	res, err := r.exec(ctx,
		`UPDATE payout_line_items SET paid = ?, paid_by = ?, paid_at = ? WHERE war_id = ? AND member_id = ?`,
		item.Paid, item.PaidBy, nullTime(item.PaidAt), warID, item.MemberID,
	)
	if err != nil {
		return fmt.Errorf("update paid status: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("war %d member %d: %w", warID, item.MemberID, payout.ErrUnknownMember)
	}
	return nil
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}
