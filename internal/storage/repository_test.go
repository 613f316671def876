package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/flor3z/faction-bot/internal/funds"
	"github.com/flor3z/faction-bot/internal/payout"
	"github.com/flor3z/faction-bot/internal/report"
	"github.com/flor3z/faction-bot/internal/torn"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewRepository(DriverSQLite, filepath.Join(t.TempDir(), "data", "bot.db"), 2)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestRebind(t *testing.T) {
	pg := &Repository{driver: DriverPostgres}
	assert.Equal(t, "SELECT a FROM t WHERE x = $1 AND y = $2", pg.rebind("SELECT a FROM t WHERE x = ? AND y = ?"))

	lite := &Repository{driver: DriverSQLite}
	assert.Equal(t, "SELECT ?", lite.rebind("SELECT ?"))
}

func TestUpsertStatement(t *testing.T) {
	u := upsert{table: "t", columns: []string{"id", "a", "b"}, conflict: []string{"id"}}
	assert.Equal(t,
		"INSERT INTO t (id, a, b) VALUES (?, ?, ?), (?, ?, ?) ON CONFLICT (id) DO UPDATE SET a = excluded.a, b = excluded.b",
		u.statement(2),
	)

	keyOnly := upsert{table: "k", columns: []string{"id"}, conflict: []string{"id"}}
	assert.Equal(t, "INSERT INTO k (id) VALUES (?) ON CONFLICT (id) DO NOTHING", keyOnly.statement(1))
}

func TestNewRepositoryRejectsUnknownDriver(t *testing.T) {
	_, err := NewRepository("mysql", "x", 0)
	assert.Error(t, err)
}

func TestFactionMembersBatched(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	members := []torn.Member{
		{ID: 3, Name: "Carol", Level: 30},
		{ID: 1, Name: "Alice", Level: 10},
		{ID: 2, Name: "Bob", Level: 20},
		{ID: 4, Name: "Dave", Level: 40},
		{ID: 5, Name: "Eve", Level: 50},
	}
	n, err := repo.UpsertFactionMembers(ctx, members)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	// Renames overwrite by key
	_, err = repo.UpsertFactionMembers(ctx, []torn.Member{{ID: 1, Name: "Alicia", Level: 11}})
	require.NoError(t, err)

	stored, err := repo.ListFactionMembers(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 5)

	names := make([]string, len(stored))
	for i, m := range stored {
		names[i] = m.Name
	}
	assert.Equal(t, []string{"Alicia", "Bob", "Carol", "Dave", "Eve"}, names)
	assert.Equal(t, 11, stored[0].Level)
}

func TestWarReportRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	start := time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC)
	rep := &report.Report{
		Summary: report.Summary{
			WarID: 77, FactionID: 1, OpponentID: 2, OpponentName: "Rivals",
			Start: start, End: start.Add(24 * time.Hour),
			TotalHits: 6, TotalAssists: 1, TotalRespect: 30.5,
			GeneratedBy: "op", GeneratedAt: start.Add(48 * time.Hour),
		},
		Contributions: []report.Contribution{
			{WarID: 77, MemberID: 10, Name: "a", WarHits: 3, Respect: 20},
			{WarID: 77, MemberID: 11, Name: "b", WarHits: 2, UnderThresholdHits: 1, Assists: 1, Respect: 10.5},
			{WarID: 77, MemberID: 12, Name: "c", Losses: 2},
		},
	}
	require.NoError(t, repo.SaveWarReport(ctx, rep))

	got, err := repo.GetWarReport(ctx, 77)
	require.NoError(t, err)
	if diff := cmp.Diff(rep.Contributions, got.Contributions); diff != "" {
		t.Errorf("contributions mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "Rivals", got.OpponentName)
	assert.True(t, got.Start.Equal(start))

	// Regeneration drops members that no longer appear
	rep.Contributions = rep.Contributions[:1]
	require.NoError(t, repo.SaveWarReport(ctx, rep))
	got, err = repo.GetWarReport(ctx, 77)
	require.NoError(t, err)
	assert.Len(t, got.Contributions, 1)

	_, err = repo.GetWarReport(ctx, 78)
	assert.ErrorIs(t, err, report.ErrNotFound)

	summaries, err := repo.ListWarReports(ctx, 10)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, int64(77), summaries[0].WarID)
}

func TestLedgerRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	l, err := payout.Compute(5, []payout.Contributor{
		{MemberID: 1, Name: "a", Counters: payout.Counters{WarHits: 10}},
		{MemberID: 2, Name: "b", Counters: payout.Counters{WarHits: 20}},
		{MemberID: 3, Name: "c", Counters: payout.Counters{WarHits: 30}},
	}, 600, 1, payout.DefaultWeights())
	require.NoError(t, err)
	l.CreatedBy = "op"
	l.CreatedAt = time.Date(2025, 2, 3, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.SaveLedger(ctx, l))

	got, err := repo.GetLedger(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, l.Payout, got.Payout)
	assert.Equal(t, l.Weights, got.Weights)
	require.Len(t, got.Items, 3)
	assert.Equal(t, int64(300), got.Items[0].Payment)
	assert.True(t, got.Items[0].PaidAt.IsZero())

	paidAt := time.Date(2025, 2, 4, 0, 0, 0, 0, time.UTC)
	require.NoError(t, got.MarkPaid(2, "admin", paidAt))
	item, _ := got.Item(2)
	require.NoError(t, repo.UpdateLineItemPaid(ctx, 5, item))

	got, err = repo.GetLedger(ctx, 5)
	require.NoError(t, err)
	item, ok := got.Item(2)
	require.True(t, ok)
	assert.True(t, item.Paid)
	assert.Equal(t, "admin", item.PaidBy)
	assert.True(t, item.PaidAt.Equal(paidAt))

	missing := &payout.LineItem{MemberID: 99}
	assert.ErrorIs(t, repo.UpdateLineItemPaid(ctx, 5, missing), payout.ErrUnknownMember)

	_, err = repo.GetLedger(ctx, 6)
	assert.ErrorIs(t, err, payout.ErrLedgerNotFound)
}

func TestLedgerRecomputeKeepsPaid(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	svc := payout.NewService(repo)

	contributors := []payout.Contributor{
		{MemberID: 1, Name: "a", Counters: payout.Counters{WarHits: 10}},
		{MemberID: 2, Name: "b", Counters: payout.Counters{WarHits: 20}},
	}
	_, err := svc.Compute(ctx, 9, contributors, 3000, 1, payout.DefaultWeights(), "op")
	require.NoError(t, err)
	_, err = svc.MarkPaid(ctx, 9, 2, "admin")
	require.NoError(t, err)

	_, err = svc.Compute(ctx, 9, contributors, 6000, 1, payout.DefaultWeights(), "op")
	require.NoError(t, err)

	l, err := repo.GetLedger(ctx, 9)
	require.NoError(t, err)
	item, ok := l.Item(2)
	require.True(t, ok)
	assert.True(t, item.Paid)
	assert.Equal(t, "admin", item.PaidBy)
	assert.False(t, item.PaidAt.IsZero())
	assert.Equal(t, int64(6000), l.Pool)
}

func TestFundsRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.SaveFundsSnapshot(ctx, &funds.Snapshot{ID: "s1", Money: 100, Members: 3, TakenAt: base}))
	require.NoError(t, repo.SaveFundsSnapshot(ctx, &funds.Snapshot{ID: "s2", Money: 200, Members: 3, TakenAt: base.Add(time.Hour)}))

	snaps, err := repo.ListFundsSnapshots(ctx, 10)
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, "s2", snaps[0].ID)

	require.NoError(t, repo.SaveFundsTransaction(ctx, &funds.Transaction{
		ID: "t1", Kind: funds.KindDeposit, Amount: 500, Note: "seed", CreatedBy: "op", CreatedAt: base,
	}))
	require.NoError(t, repo.SaveFundsTransaction(ctx, &funds.Transaction{
		ID: "t2", Kind: funds.KindPayout, Amount: 200, WarID: 5, CreatedBy: "op", CreatedAt: base.Add(time.Minute),
	}))

	txs, err := repo.ListFundsTransactions(ctx, 1)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, funds.KindPayout, txs[0].Kind)
	assert.Equal(t, int64(5), txs[0].WarID)
}

func TestConfigValues(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	values, err := repo.GetConfigValues(ctx)
	require.NoError(t, err)
	assert.Empty(t, values)

	require.NoError(t, repo.UpsertConfigValue(ctx, "payout_fraction", 0.5, "share"))
	require.NoError(t, repo.UpsertConfigValue(ctx, "payout_fraction", 0.6, "share"))

	values, err = repo.GetConfigValues(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"payout_fraction": 0.6}, values)
}
