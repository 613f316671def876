package storage

import (
	"context"
	"time"

	"github.com/flor3z/faction-bot/internal/torn"
)

// FactionMember is a stored member of our own faction
type FactionMember struct {
	MemberID  int64
	Name      string
	Level     int
	Status    string
	UpdatedAt time.Time
}

var memberUpsert = upsert{
	table:    "faction_members",
	columns:  []string{"member_id", "name", "level", "status", "updated_at"},
	conflict: []string{"member_id"},
}

// UpsertFactionMembers syncs the roster in batches and returns the row count
func (r *Repository) UpsertFactionMembers(ctx context.Context, members []torn.Member) (int, error) {
	now := time.Now().UTC()
	rows := make([][]any, 0, len(members))
	for _, m := range members {
		rows = append(rows, []any{m.ID, m.Name, m.Level, m.Status.State, now})
	}
	if err := r.upsertBatched(ctx, memberUpsert, rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}

// ListFactionMembers returns stored members ordered by name
func (r *Repository) ListFactionMembers(ctx context.Context) ([]FactionMember, error) {
	rows, err := r.query(ctx,
		`SELECT member_id, name, level, status, updated_at FROM faction_members ORDER BY name`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FactionMember
	for rows.Next() {
		var m FactionMember
		if err := rows.Scan(&m.MemberID, &m.Name, &m.Level, &m.Status, &m.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
