package bot

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/flor3z/faction-bot/internal/config"
	"github.com/flor3z/faction-bot/internal/monitor"
	"github.com/flor3z/faction-bot/internal/storage"
	"github.com/flor3z/faction-bot/internal/torn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const (
	ourFaction   int64 = 100
	enemyFaction int64 = 200
)

var warStart = time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)

type fakeAPI struct {
	mu      sync.Mutex
	members []torn.Member
	wars    []torn.RankedWar
	attacks []torn.Attack
	news    []torn.NewsEntry
	balance *torn.Balance
}

func (f *fakeAPI) FactionID() int64 { return ourFaction }

func (f *fakeAPI) FactionMembers(context.Context, int64) ([]torn.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]torn.Member(nil), f.members...), nil
}

func (f *fakeAPI) RankedWars(context.Context, int64) ([]torn.RankedWar, error) {
	return f.wars, nil
}

func (f *fakeAPI) RankedWar(_ context.Context, _, warID int64) (*torn.RankedWar, error) {
	for i := range f.wars {
		if f.wars[i].ID == warID {
			return &f.wars[i], nil
		}
	}
	return nil, torn.ErrNotFound
}

func (f *fakeAPI) Attacks(context.Context, time.Time, time.Time) ([]torn.Attack, error) {
	return f.attacks, nil
}

func (f *fakeAPI) News(context.Context, string, time.Time, time.Time) ([]torn.NewsEntry, error) {
	return f.news, nil
}

func (f *fakeAPI) Balance(context.Context) (*torn.Balance, error) {
	return f.balance, nil
}

type nopMessenger struct {
	mu   sync.Mutex
	sent int
}

func (m *nopMessenger) Send(context.Context, *monitor.Message) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent++
	return fmt.Sprintf("m%d", m.sent), nil
}

func (m *nopMessenger) Edit(context.Context, string, *monitor.Message) error { return nil }

func (m *nopMessenger) Delete(context.Context, string) error { return nil }

func newTestBot(t *testing.T, api *fakeAPI) *Bot {
	t.Helper()

	repo, err := storage.NewRepository(storage.DriverSQLite, filepath.Join(t.TempDir(), "bot.db"), 0)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	cfg := &config.Config{
		CommandPrefix:          "!",
		AlertChannelID:         "alerts",
		PollingIntervalSeconds: 3600,
	}
	b := newBot(cfg, nil, repo, api)
	b.newMessenger = func(string) monitor.Messenger { return &nopMessenger{} }
	b.now = func() time.Time { return warStart.Add(72 * time.Hour) }
	return b
}

func run(t *testing.T, b *Bot, admin bool, line string) *call {
	t.Helper()
	args, ok := parseCommandLine(b.config.CommandPrefix, line)
	require.True(t, ok, line)

	c := &call{userID: "u1", userName: "Op", channelID: "chan", admin: admin}
	b.execute(context.Background(), c, args)
	return c
}

func party(id int64, name string, faction int64) *torn.AttackParty {
	p := &torn.AttackParty{ID: id, Name: name}
	p.Faction = &struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	}{ID: faction}
	return p
}

func warAPI() *fakeAPI {
	alice := party(1, "alice", ourFaction)
	bob := party(2, "bob", ourFaction)
	enemy := party(50, "enemy", enemyFaction)

	hit := func(id int64, attacker *torn.AttackParty) torn.Attack {
		return torn.Attack{
			ID:          id,
			Started:     warStart.Add(time.Duration(id) * time.Minute).Unix(),
			Attacker:    attacker,
			Defender:    enemy,
			Result:      "Hospitalized",
			RespectGain: 5,
			IsRankedWar: true,
		}
	}

	return &fakeAPI{
		wars: []torn.RankedWar{
			{
				ID:    8,
				Start: warStart.Add(-30 * 24 * time.Hour).Unix(),
				End:   warStart.Add(-29 * 24 * time.Hour).Unix(),
				Factions: []torn.WarFaction{
					{ID: ourFaction, Name: "Us"},
					{ID: 300, Name: "Old"},
				},
			},
			{
				ID:    9,
				Start: warStart.Unix(),
				Factions: []torn.WarFaction{
					{ID: ourFaction, Name: "Us"},
					{ID: enemyFaction, Name: "Them"},
				},
			},
		},
		attacks: []torn.Attack{hit(1, alice), hit(2, alice), hit(3, alice), hit(4, bob)},
		members: []torn.Member{
			{ID: 1, Name: "alice", Level: 20},
			{ID: 2, Name: "bob", Level: 30},
		},
	}
}

func TestParseCommandLine(t *testing.T) {
	tests := []struct {
		name    string
		prefix  string
		content string
		want    []string
		ok      bool
	}{
		{"simple", "!", "!monitor status", []string{"monitor", "status"}, true},
		{"extra spaces", "!", "  !payout   show 9 ", []string{"payout", "show", "9"}, true},
		{"lowercases command", "!", "!Report show 9", []string{"report", "show", "9"}, true},
		{"no prefix", "!", "monitor status", nil, false},
		{"prefix only", "!", "!", nil, false},
		{"other prefix", "?", "?claim 5", []string{"claim", "5"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseCommandLine(tt.prefix, tt.content)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseCustomID(t *testing.T) {
	tests := []struct {
		customID string
		action   buttonAction
		id       int64
		ok       bool
	}{
		{"claim_123", actionClaim, 123, true},
		{"payout_verify_9", actionPayoutVerify, 9, true},
		{"payout_csv_9", actionPayoutCSV, 9, true},
		{"payout_csv_", 0, 0, false},
		{"claim_abc", 0, 0, false},
		{"unknown_1", 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.customID, func(t *testing.T) {
			action, id, ok := parseCustomID(tt.customID)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.action, action)
			assert.Equal(t, tt.id, id)
		})
	}
}

func TestParseMoney(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"1500000", 1_500_000, false},
		{"1,500,000", 1_500_000, false},
		{"$2,000", 2_000, false},
		{"1.5m", 1_500_000, false},
		{"750k", 750_000, false},
		{"2B", 2_000_000_000, false},
		{"", 0, true},
		{"lots", 0, true},
		{"-5", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseMoney(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAdminCommandsRejected(t *testing.T) {
	b := newTestBot(t, warAPI())

	c := run(t, b, false, "!config set payout_fraction 0.5")
	assert.Contains(t, c.out.String(), errNotAdmin.Error())

	// Read-only commands stay open
	c = run(t, b, false, "!config show")
	assert.Contains(t, c.out.String(), "payout_fraction")
	assert.NotContains(t, c.out.String(), "Error")
}

func TestConfigSet(t *testing.T) {
	b := newTestBot(t, warAPI())

	c := run(t, b, true, "!config set payout_fraction 0.5")
	assert.Contains(t, c.out.String(), "set to 0.5")
	assert.Equal(t, 0.5, b.settings.PayoutFraction(context.Background()))

	c = run(t, b, true, "!config set payout_fraction 2")
	assert.Contains(t, c.out.String(), "Error")

	c = run(t, b, true, "!config set nonsense 1")
	assert.Contains(t, c.out.String(), "unknown key")
}

func TestReportPayoutVerifyFlow(t *testing.T) {
	api := warAPI()
	b := newTestBot(t, api)
	ctx := context.Background()

	c := run(t, b, true, "!payout compute 9 --pool 4000")
	assert.Contains(t, c.out.String(), "no report for war 9")

	c = run(t, b, true, "!report generate 9")
	assert.Contains(t, c.out.String(), "vs Them [200]")

	c = run(t, b, true, "!report generate 9")
	assert.Contains(t, c.out.String(), "already exists")

	c = run(t, b, false, "!report csv 9")
	require.Len(t, c.files, 1)
	assert.Equal(t, "war_9_report.csv", c.files[0].Name)

	c = run(t, b, true, "!payout compute 9 --pool 4,000 --fraction 1")
	assert.Contains(t, c.out.String(), "$3,000")
	assert.Contains(t, c.out.String(), "$1,000")
	require.NotEmpty(t, c.components)

	api.news = []torn.NewsEntry{
		{ID: "n1", Text: "Op increased alice [1]'s money balance by $3,000 from $0 to $3,000", Timestamp: warStart.Add(50 * time.Hour).Unix()},
		{ID: "n2", Text: "Someone deposited $5,000", Timestamp: warStart.Add(51 * time.Hour).Unix()},
	}
	c = run(t, b, true, "!payout verify 9")
	assert.Contains(t, c.out.String(), "Verified 1 of 2, newly marked paid 1")
	assert.Contains(t, c.out.String(), "bob [2] $1,000")

	l, err := b.payouts.Get(ctx, 9)
	require.NoError(t, err)
	item, ok := l.Item(1)
	require.True(t, ok)
	assert.True(t, item.Paid)
	assert.Equal(t, "auto:Op", item.PaidBy)

	c = run(t, b, true, "!payout paid 9 2")
	assert.Contains(t, c.out.String(), "Marked bob [2] paid $1,000")

	c = run(t, b, true, "!payout paid 9 2")
	assert.Contains(t, c.out.String(), "already paid")

	c = run(t, b, true, "!payout reset 9 2")
	assert.Contains(t, c.out.String(), "Reset bob [2] to unpaid")

	c = run(t, b, true, "!payout compute 9 --pool 4000 --fraction 1")
	assert.Contains(t, c.out.String(), "[x] alice", "recompute keeps verified payments")
	assert.Contains(t, c.out.String(), "[ ] bob")

	c = run(t, b, false, "!payout csv 9")
	require.Len(t, c.files, 1)
	assert.Equal(t, "war_9_payout.csv", c.files[0].Name)
}

func TestPayoutVerifyAll(t *testing.T) {
	api := warAPI()
	api.news = []torn.NewsEntry{
		{ID: "n1", Text: "Op increased alice [1]'s money balance by $3,000 from $0 to $3,000", Timestamp: warStart.Unix()},
		{ID: "n2", Text: "Ann increased alice [1]'s money balance by $3,000 from $3,000 to $6,000", Timestamp: warStart.Add(time.Hour).Unix()},
		{ID: "n3", Text: "Op increased bob [2]'s money balance by $1,000 from $0 to $1,000", Timestamp: warStart.Unix()},
	}
	b := newTestBot(t, api)

	c := run(t, b, false, "!payout verifyall --days 10")
	out := c.out.String()
	assert.Contains(t, out, "3 transfers checked")
	assert.Contains(t, out, "alice [1]: $3,000 x2")
	assert.NotContains(t, out, "bob")
}

func TestMonitorLifecycle(t *testing.T) {
	b := newTestBot(t, warAPI())

	c := run(t, b, false, "!claim 50")
	assert.Contains(t, c.out.String(), "not running")

	c = run(t, b, true, "!monitor start")
	assert.Contains(t, c.out.String(), "Current war opponent: Them [200]")
	assert.Contains(t, c.out.String(), "Monitoring faction 200 in <#alerts>")

	c = run(t, b, true, "!monitor start 300")
	assert.Contains(t, c.out.String(), errMonitorRunning.Error())

	c = run(t, b, false, "!claim 50")
	assert.Contains(t, c.out.String(), "You claimed")
	assert.Equal(t, "Already claimed by Op.", b.toggleClaim(50, "u2", "Other"))

	c = run(t, b, false, "!monitor status")
	assert.Contains(t, c.out.String(), "faction 200")
	assert.Contains(t, c.out.String(), "claims: 1")

	c = run(t, b, true, "!monitor stop")
	assert.Contains(t, c.out.String(), "Monitor stopped.")

	c = run(t, b, true, "!monitor stop")
	assert.Contains(t, c.out.String(), errMonitorNotRunning.Error())
}

func TestFundsCommands(t *testing.T) {
	api := warAPI()
	api.balance = &torn.Balance{Members: []torn.MemberBalance{{ID: 1, Money: 250}, {ID: 2, Money: 750}}}
	api.balance.Faction.Money = 10_000
	b := newTestBot(t, api)

	c := run(t, b, true, "!funds add deposit 1.5m seed money --war 9")
	assert.Contains(t, c.out.String(), "Recorded deposit of $1,500,000")

	c = run(t, b, true, "!funds add payout 500k")
	assert.Contains(t, c.out.String(), "Recorded payout of $500,000")

	c = run(t, b, true, "!funds add bribe 5")
	assert.Contains(t, c.out.String(), "unknown transaction kind")

	c = run(t, b, false, "!funds history")
	assert.Contains(t, c.out.String(), "seed money")
	assert.Contains(t, c.out.String(), "Net of listed: $1,000,000")

	c = run(t, b, true, "!funds snapshot")
	assert.Contains(t, c.out.String(), "Faction money $10,000")
	assert.Contains(t, c.out.String(), "held for 2 members $1,000")

	c = run(t, b, false, "!funds snapshots")
	assert.Contains(t, c.out.String(), "money $10,000")
}

func TestMembersSync(t *testing.T) {
	b := newTestBot(t, warAPI())

	c := run(t, b, false, "!members list")
	assert.Contains(t, c.out.String(), "No members stored")

	c = run(t, b, true, "!members sync")
	assert.Contains(t, c.out.String(), "Synced 2 members.")

	c = run(t, b, false, "!members list")
	assert.Contains(t, c.out.String(), "alice")
	assert.Contains(t, c.out.String(), "bob")
}

func TestHelpAndUnknown(t *testing.T) {
	b := newTestBot(t, warAPI())

	c := run(t, b, false, "!help")
	assert.Contains(t, c.out.String(), "payout")

	c = run(t, b, false, "!bogus")
	assert.Contains(t, c.out.String(), "Error")
}

func TestMessageSendAttachesLongOutput(t *testing.T) {
	c := &call{}
	c.out.WriteString(strings.Repeat("x", messageLimit+1))

	send := c.messageSend()
	assert.Equal(t, "Output attached.", send.Content)
	require.Len(t, send.Files, 1)
	assert.Equal(t, "output.txt", send.Files[0].Name)

	empty := (&call{}).messageSend()
	assert.Equal(t, "Done.", empty.Content)
}
