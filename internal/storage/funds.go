package storage

import (
	"context"
	"fmt"

	"github.com/flor3z/faction-bot/internal/funds"
)

// SaveFundsSnapshot inserts a funds snapshot
func (r *Repository) SaveFundsSnapshot(ctx context.Context, s *funds.Snapshot) error {
	_, err := r.exec(ctx,
		`INSERT INTO funds_snapshots (id, money, points, member_money, members, taken_by, taken_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.Money, s.Points, s.MemberMoney, s.Members, s.TakenBy, s.TakenAt,
	)
	if err != nil {
		return fmt.Errorf("save funds snapshot: %w", err)
	}
	return nil
}

// ListFundsSnapshots returns the newest snapshots first
func (r *Repository) ListFundsSnapshots(ctx context.Context, limit int) ([]funds.Snapshot, error) {
	rows, err := r.query(ctx,
		`SELECT id, money, points, member_money, members, taken_by, taken_at
		 FROM funds_snapshots ORDER BY taken_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []funds.Snapshot
	for rows.Next() {
		var s funds.Snapshot
		if err := rows.Scan(&s.ID, &s.Money, &s.Points, &s.MemberMoney, &s.Members, &s.TakenBy, &s.TakenAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// SaveFundsTransaction inserts a bookkeeping transaction
func (r *Repository) SaveFundsTransaction(ctx context.Context, t *funds.Transaction) error {
	_, err := r.exec(ctx,
		`INSERT INTO funds_transactions (id, kind, amount, member_id, war_id, note, created_by, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, string(t.Kind), t.Amount, t.MemberID, t.WarID, t.Note, t.CreatedBy, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save funds transaction: %w", err)
	}
	return nil
}

// ListFundsTransactions returns the newest transactions first
func (r *Repository) ListFundsTransactions(ctx context.Context, limit int) ([]funds.Transaction, error) {
	rows, err := r.query(ctx,
		`SELECT id, kind, amount, member_id, war_id, note, created_by, created_at
		 FROM funds_transactions ORDER BY created_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []funds.Transaction
	for rows.Next() {
		var t funds.Transaction
		var kind string
		if err := rows.Scan(&t.ID, &kind, &t.Amount, &t.MemberID, &t.WarID, &t.Note, &t.CreatedBy, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.Kind = funds.Kind(kind)
		out = append(out, t)
	}
	return out, rows.Err()
}
