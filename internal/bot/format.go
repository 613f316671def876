package bot

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/dustin/go-humanize"
	"github.com/flor3z/faction-bot/internal/funds"
	"github.com/flor3z/faction-bot/internal/monitor"
	"github.com/flor3z/faction-bot/internal/payout"
	"github.com/flor3z/faction-bot/internal/reconcile"
	"github.com/flor3z/faction-bot/internal/report"
	"github.com/flor3z/faction-bot/internal/settings"
	"github.com/flor3z/faction-bot/internal/storage"
)

// Button custom id prefixes
const (
	payoutVerifyPrefix = "payout_verify_"
	payoutCSVPrefix    = "payout_csv_"
)

type buttonAction int

const (
	actionClaim buttonAction = iota
	actionPayoutVerify
	actionPayoutCSV
)

// parseCustomID splits a button id into its action and numeric argument
func parseCustomID(customID string) (buttonAction, int64, bool) {
	prefixes := []struct {
		prefix string
		action buttonAction
	}{
		{monitor.ClaimButtonPrefix, actionClaim},
		{payoutVerifyPrefix, actionPayoutVerify},
		{payoutCSVPrefix, actionPayoutCSV},
	}

	for _, p := range prefixes {
		rest, ok := strings.CutPrefix(customID, p.prefix)
		if !ok {
			continue
		}
		id, err := strconv.ParseInt(rest, 10, 64)
		if err != nil || id <= 0 {
			return 0, 0, false
		}
		return p.action, id, true
	}
	return 0, 0, false
}

func ledgerComponents(warID int64) []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{
					Label:    "Verify payments",
					Style:    discordgo.PrimaryButton,
					CustomID: fmt.Sprintf("%s%d", payoutVerifyPrefix, warID),
				},
				discordgo.Button{
					Label:    "Download CSV",
					Style:    discordgo.SecondaryButton,
					CustomID: fmt.Sprintf("%s%d", payoutCSVPrefix, warID),
				},
			},
		},
	}
}

func formatMoney(n int64) string {
	if n < 0 {
		return "-$" + humanize.Comma(-n)
	}
	return "$" + humanize.Comma(n)
}

func formatCount(n int64) string {
	return humanize.Comma(n)
}

func formatMonitorStatus(s monitor.Status, now time.Time) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "**Monitor** faction %d\n", s.FactionID)
	fmt.Fprintf(&sb, "Running: %t, cycles: %d", s.Running, s.Cycles)
	if !s.LastCycle.IsZero() {
		fmt.Fprintf(&sb, ", last cycle %s", humanize.RelTime(s.LastCycle, now, "ago", "from now"))
	}
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "Alerts: %d (%d leaving hospital, %d available), claims: %d\n",
		s.Tracked, s.InWindow, s.Available, s.Claims)
	fmt.Fprintf(&sb, "Horizon: %s, level cap: %s, show available: %t",
		s.Policy.Horizon, levelCap(s.Policy.MaxLevel), s.Policy.ShowAvailable)
	if s.LastError != "" {
		fmt.Fprintf(&sb, "\nLast error: %s", s.LastError)
	}
	return sb.String()
}

func levelCap(n int) string {
	if n <= 0 {
		return "none"
	}
	return strconv.Itoa(n)
}

func formatReport(r *report.Report) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "**War %d** vs %s [%d]\n", r.WarID, r.OpponentName, r.OpponentID)
	fmt.Fprintf(&sb, "%s to %s\n", r.Start.Format(time.DateTime), endLabel(r.End))
	fmt.Fprintf(&sb, "Hits: %d, assists: %d, respect: %.2f\n", r.TotalHits, r.TotalAssists, r.TotalRespect)

	sb.WriteString("```\n")
	fmt.Fprintf(&sb, "%-18s %5s %5s %5s %5s %5s %8s\n", "Member", "War", "Under", "Off", "Ast", "Loss", "Respect")
	for _, c := range r.Contributions {
		fmt.Fprintf(&sb, "%-18s %5d %5d %5d %5d %5d %8.2f\n",
			truncate(c.Name, 18), c.WarHits, c.UnderThresholdHits, c.OffTargetHits, c.Assists, c.Losses, c.Respect)
	}
	sb.WriteString("```")
	return sb.String()
}

func endLabel(t time.Time) string {
	if t.IsZero() {
		return "ongoing"
	}
	return t.Format(time.DateTime)
}

func formatReportList(summaries []report.Summary) string {
	if len(summaries) == 0 {
		return "No reports stored."
	}
	var sb strings.Builder
	sb.WriteString("**War reports**\n")
	for _, s := range summaries {
		fmt.Fprintf(&sb, "`%d` vs %s, %d hits, %.2f respect (%s)\n",
			s.WarID, s.OpponentName, s.TotalHits, s.TotalRespect, s.Start.Format(time.DateOnly))
	}
	return sb.String()
}

func formatLedger(l *payout.Ledger) string {
	paid, unpaid := l.Totals()

	var sb strings.Builder
	fmt.Fprintf(&sb, "**Payout for war %d**\n", l.WarID)
	fmt.Fprintf(&sb, "Pool %s x %s = %s over %s points (%s per point)\n",
		formatMoney(l.Pool), strconv.FormatFloat(l.Fraction, 'f', -1, 64), formatMoney(l.Payout),
		strconv.FormatFloat(l.TotalPoints, 'f', -1, 64), formatMoney(int64(l.Rate+0.5)))
	fmt.Fprintf(&sb, "Paid %s, unpaid %s\n", formatMoney(paid), formatMoney(unpaid))

	if len(l.Items) == 0 {
		sb.WriteString("No member earned points.")
		return sb.String()
	}

	sb.WriteString("```\n")
	for _, item := range l.Items {
		mark := " "
		if item.Paid {
			mark = "x"
		}
		fmt.Fprintf(&sb, "[%s] %-18s %9d %7s %15s\n",
			mark, truncate(item.Name, 18), item.MemberID,
			strconv.FormatFloat(item.Points, 'f', -1, 64), formatMoney(item.Payment))
	}
	sb.WriteString("```")
	return sb.String()
}

func formatVerification(warID int64, rep reconcile.Report, marked int) string {
	verified := rep.Verified()
	unverified := rep.Unverified()
	doubles := rep.DoublePayments()

	var sb strings.Builder
	fmt.Fprintf(&sb, "**Verification for war %d**\n", warID)
	fmt.Fprintf(&sb, "Verified %d of %d, newly marked paid %d", len(verified), len(rep.Verifications), marked)
	if rep.Unparsed > 0 {
		fmt.Fprintf(&sb, ", %d news lines not understood", rep.Unparsed)
	}
	sb.WriteString("\n")

	if len(doubles) > 0 {
		sb.WriteString("\n**Double payments**\n")
		for _, v := range doubles {
			admins := make([]string, 0, len(v.Matches))
			for _, t := range v.Matches {
				admins = append(admins, fmt.Sprintf("%s <t:%d:f>", t.Admin, t.At.Unix()))
			}
			fmt.Fprintf(&sb, "%s [%d] %s paid %d times: %s\n",
				v.Name, v.MemberID, formatMoney(v.Amount), len(v.Matches), strings.Join(admins, ", "))
		}
	}

	if len(unverified) > 0 {
		sb.WriteString("\n**Not found**\n")
		for _, v := range unverified {
			fmt.Fprintf(&sb, "%s [%d] %s\n", v.Name, v.MemberID, formatMoney(v.Amount))
		}
	}
	return sb.String()
}

func formatDuplicates(groups []reconcile.DuplicateGroup, transfers, unparsed, days int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "**Repeated transfers, last %d days**\n", days)
	fmt.Fprintf(&sb, "%d transfers checked", transfers)
	if unparsed > 0 {
		fmt.Fprintf(&sb, ", %d news lines not understood", unparsed)
	}
	sb.WriteString("\n")

	if len(groups) == 0 {
		sb.WriteString("No repeated transfers found.")
		return sb.String()
	}

	sb.WriteString("These may be separate payouts; review before acting.\n")
	for _, g := range groups {
		who := g.Recipient
		if g.RecipientID > 0 {
			who = fmt.Sprintf("%s [%d]", g.Recipient, g.RecipientID)
		}
		times := make([]string, 0, len(g.Transfers))
		for _, t := range g.Transfers {
			times = append(times, fmt.Sprintf("%s <t:%d:d>", t.Admin, t.At.Unix()))
		}
		fmt.Fprintf(&sb, "%s: %s x%d (%s)\n", who, formatMoney(g.Amount), g.Count(), strings.Join(times, ", "))
	}
	return sb.String()
}

func formatSettings(all []settings.Setting) string {
	var sb strings.Builder
	sb.WriteString("**Settings**\n")
	for _, s := range all {
		fmt.Fprintf(&sb, "`%s` = %s: %s\n", s.Key, strconv.FormatFloat(s.Value, 'f', -1, 64), s.Description)
	}
	return sb.String()
}

func formatTransactions(ts []funds.Transaction, now time.Time) string {
	if len(ts) == 0 {
		return "No transactions recorded."
	}

	var sb strings.Builder
	sb.WriteString("**Transactions**\n")
	for _, t := range ts {
		fmt.Fprintf(&sb, "%s %s by %s %s", t.Kind, formatMoney(t.Amount), t.CreatedBy,
			humanize.RelTime(t.CreatedAt, now, "ago", "from now"))
		if t.WarID > 0 {
			fmt.Fprintf(&sb, ", war %d", t.WarID)
		}
		if t.MemberID > 0 {
			fmt.Fprintf(&sb, ", member %d", t.MemberID)
		}
		if t.Note != "" {
			fmt.Fprintf(&sb, ": %s", t.Note)
		}
		sb.WriteString("\n")
	}
	fmt.Fprintf(&sb, "Net of listed: %s", formatMoney(funds.Net(ts)))
	return sb.String()
}

func formatSnapshots(snaps []funds.Snapshot, now time.Time) string {
	if len(snaps) == 0 {
		return "No snapshots taken."
	}

	var sb strings.Builder
	sb.WriteString("**Balance snapshots**\n")
	for _, s := range snaps {
		fmt.Fprintf(&sb, "%s: money %s, points %s, members hold %s (by %s)\n",
			humanize.RelTime(s.TakenAt, now, "ago", "from now"),
			formatMoney(s.Money), formatCount(s.Points), formatMoney(s.MemberMoney), s.TakenBy)
	}
	return sb.String()
}

func formatMembers(members []storage.FactionMember) string {
	if len(members) == 0 {
		return "No members stored; run members sync."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "**Members** (%d)\n```\n", len(members))
	for _, m := range members {
		fmt.Fprintf(&sb, "%-18s %9d lvl %3d %s\n", truncate(m.Name, 18), m.MemberID, m.Level, m.Status)
	}
	sb.WriteString("```")
	return sb.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
