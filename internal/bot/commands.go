package bot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/flor3z/faction-bot/internal/funds"
	"github.com/flor3z/faction-bot/internal/monitor"
	"github.com/flor3z/faction-bot/internal/payout"
	"github.com/flor3z/faction-bot/internal/reconcile"
	"github.com/flor3z/faction-bot/internal/report"
	"github.com/flor3z/faction-bot/internal/torn"
	"github.com/spf13/cobra"
)

const adminAnnotation = "admin"

var (
	errNotAdmin          = errors.New("this command needs the Manage Server permission")
	errMonitorRunning    = errors.New("the monitor is already running, stop it first")
	errMonitorNotRunning = errors.New("the monitor is not running")
)

// messageLimit is the longest reply sent inline; longer output is attached
const messageLimit = 1900

// call carries one command invocation and collects its reply
type call struct {
	userID      string
	userName    string
	channelID   string
	attachments []*discordgo.MessageAttachment
	admin       bool

	out        bytes.Buffer
	files      []*discordgo.File
	components []discordgo.MessageComponent
}

func (c *call) attach(name string, data []byte) {
	c.files = append(c.files, &discordgo.File{
		Name:        name,
		ContentType: "text/csv",
		Reader:      bytes.NewReader(data),
	})
}

func (c *call) messageSend() *discordgo.MessageSend {
	content := strings.TrimSpace(c.out.String())
	send := &discordgo.MessageSend{Files: c.files, Components: c.components}

	if len(content) > messageLimit {
		send.Content = "Output attached."
		send.Files = append(send.Files, &discordgo.File{
			Name:        "output.txt",
			ContentType: "text/plain",
			Reader:      strings.NewReader(content),
		})
		return send
	}
	if content == "" && len(c.files) == 0 {
		content = "Done."
	}
	send.Content = content
	return send
}

// execute parses args against a fresh command tree and runs the match.
// Failures are written to the reply.
func (b *Bot) execute(ctx context.Context, c *call, args []string) {
	root := b.commandTree(c)
	root.SetArgs(args)
	root.SetOut(&c.out)
	root.SetErr(&c.out)

	if err := root.ExecuteContext(ctx); err != nil {
		slog.Warn("Command failed", "args", args, "user", c.userName, "error", err)
		fmt.Fprintf(&c.out, "\nError: %s", err)
	}
}

func (b *Bot) commandTree(c *call) *cobra.Command {
	root := &cobra.Command{
		Use:           b.config.CommandPrefix,
		Short:         "Faction war, payout and funds tools",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Annotations[adminAnnotation] == "true" && !c.admin {
				return errNotAdmin
			}
			return nil
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true

	root.AddCommand(
		b.monitorCommand(c),
		b.claimCommand(c),
		b.reportCommand(c),
		b.payoutCommand(c),
		b.configCommand(c),
		b.fundsCommand(c),
		b.membersCommand(c),
	)
	return root
}

func admin() map[string]string {
	return map[string]string{adminAnnotation: "true"}
}

func (b *Bot) monitorCommand(c *call) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Post and maintain alerts for an enemy faction's targets",
	}

	start := &cobra.Command{
		Use:         "start [factionID]",
		Short:       "Start monitoring a faction (defaults to the current war opponent)",
		Args:        cobra.MaximumNArgs(1),
		Annotations: admin(),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var factionID int64
			if len(args) == 1 {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				factionID = id
			} else {
				opponent, err := b.currentOpponent(ctx)
				if err != nil {
					return err
				}
				factionID = opponent.ID
				fmt.Fprintf(cmd.OutOrStdout(), "Current war opponent: %s [%d]\n", opponent.Name, opponent.ID)
			}

			channelID := b.config.AlertChannelID
			if channelID == "" {
				channelID = c.channelID
			}

			policy := b.settings.MonitorPolicy(ctx)
			if err := b.startMonitor(factionID, channelID, policy); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Monitoring faction %d in <#%s>, alerting %s before release.",
				factionID, channelID, policy.Horizon)
			return nil
		},
	}

	stop := &cobra.Command{
		Use:         "stop",
		Short:       "Stop monitoring and delete every alert",
		Args:        cobra.NoArgs,
		Annotations: admin(),
		RunE: func(cmd *cobra.Command, _ []string) error {
			b.mu.Lock()
			m := b.monitor
			b.monitor = nil
			b.mu.Unlock()

			if m == nil {
				return errMonitorNotRunning
			}
			m.Stop(cmd.Context())
			fmt.Fprint(cmd.OutOrStdout(), "Monitor stopped.")
			return nil
		},
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "Show the monitor state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m := b.currentMonitor()
			if m == nil {
				fmt.Fprint(cmd.OutOrStdout(), "The monitor is not running.")
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), formatMonitorStatus(m.Status(), b.now()))
			return nil
		},
	}

	cmd.AddCommand(start, stop, status)
	return cmd
}

func (b *Bot) claimCommand(c *call) *cobra.Command {
	return &cobra.Command{
		Use:   "claim <memberID>",
		Short: "Claim a target, or release your claim",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), b.toggleClaim(id, c.userID, c.userName))
			return nil
		},
	}
}

func (b *Bot) reportCommand(c *call) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Ranked war reports",
	}

	var force bool
	generate := &cobra.Command{
		Use:         "generate <warID>",
		Short:       "Build the report for a ranked war from the attack log",
		Args:        cobra.ExactArgs(1),
		Annotations: admin(),
		RunE: func(cmd *cobra.Command, args []string) error {
			warID, err := parseID(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			threshold := b.settings.RespectThreshold(ctx)
			r, err := b.reports.Generate(ctx, warID, threshold, force, c.userName)
			if errors.Is(err, report.ErrReportExists) {
				fmt.Fprintf(cmd.OutOrStdout(), "A report for war %d already exists; use --force to rebuild it.\n\n", warID)
				fmt.Fprint(cmd.OutOrStdout(), formatReport(r))
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatReport(r))
			return nil
		},
	}
	generate.Flags().BoolVar(&force, "force", false, "replace an existing report")

	show := &cobra.Command{
		Use:   "show <warID>",
		Short: "Show a stored report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := b.loadReport(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatReport(r))
			return nil
		},
	}

	csvCmd := &cobra.Command{
		Use:   "csv <warID>",
		Short: "Export a stored report as CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := b.loadReport(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			var buf bytes.Buffer
			if err := report.WriteCSV(&buf, r); err != nil {
				return err
			}
			c.attach(fmt.Sprintf("war_%d_report.csv", r.WarID), buf.Bytes())
			fmt.Fprintf(cmd.OutOrStdout(), "Report for war %d (%d members).", r.WarID, len(r.Contributions))
			return nil
		},
	}

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List stored reports, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			summaries, err := b.repo.ListWarReports(cmd.Context(), limit)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatReportList(summaries))
			return nil
		},
	}
	list.Flags().IntVar(&limit, "limit", 10, "number of reports to list")

	cmd.AddCommand(generate, show, csvCmd, list)
	return cmd
}

func (b *Bot) payoutCommand(c *call) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "payout",
		Short: "War payout ledgers and payment verification",
	}

	var pool string
	var fraction float64
	compute := &cobra.Command{
		Use:         "compute <warID> --pool <amount>",
		Short:       "Split a cash pool by war contribution points",
		Args:        cobra.ExactArgs(1),
		Annotations: admin(),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			r, err := b.loadReport(ctx, args[0])
			if err != nil {
				return err
			}

			amount, err := parseMoney(pool)
			if err != nil {
				return fmt.Errorf("invalid --pool: %w", err)
			}
			if !cmd.Flags().Changed("fraction") {
				fraction = b.settings.PayoutFraction(ctx)
			}

			l, err := b.payouts.Compute(ctx, r.WarID, r.Contributors(), amount, fraction, b.settings.Weights(ctx), c.userName)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatLedger(l))
			c.components = ledgerComponents(l.WarID)
			return nil
		},
	}
	compute.Flags().StringVar(&pool, "pool", "", "cash pool, e.g. 1500000000 or 1,500,000,000")
	compute.Flags().Float64Var(&fraction, "fraction", 0, "share of the pool to pay out (default from config)")
	_ = compute.MarkFlagRequired("pool")

	show := &cobra.Command{
		Use:   "show <warID>",
		Short: "Show a stored ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := b.loadLedger(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatLedger(l))
			c.components = ledgerComponents(l.WarID)
			return nil
		},
	}

	csvCmd := &cobra.Command{
		Use:   "csv <warID>",
		Short: "Export a ledger as CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := b.loadLedger(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			var buf bytes.Buffer
			if err := payout.WriteCSV(&buf, l); err != nil {
				return err
			}
			c.attach(fmt.Sprintf("war_%d_payout.csv", l.WarID), buf.Bytes())
			fmt.Fprintf(cmd.OutOrStdout(), "Payout for war %d: %d members, %s total.", l.WarID, len(l.Items), formatMoney(l.Distributed()))
			return nil
		},
	}

	paid := &cobra.Command{
		Use:         "paid <warID> <memberID>",
		Short:       "Mark a member paid",
		Args:        cobra.ExactArgs(2),
		Annotations: admin(),
		RunE: func(cmd *cobra.Command, args []string) error {
			warID, memberID, err := parseIDPair(args)
			if err != nil {
				return err
			}
			item, err := b.payouts.MarkPaid(cmd.Context(), warID, memberID, c.userName)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Marked %s [%d] paid %s.", item.Name, item.MemberID, formatMoney(item.Payment))
			return nil
		},
	}

	reset := &cobra.Command{
		Use:         "reset <warID> <memberID>",
		Short:       "Clear a member's paid flag",
		Args:        cobra.ExactArgs(2),
		Annotations: admin(),
		RunE: func(cmd *cobra.Command, args []string) error {
			warID, memberID, err := parseIDPair(args)
			if err != nil {
				return err
			}
			item, err := b.payouts.ResetPaid(cmd.Context(), warID, memberID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Reset %s [%d] to unpaid.", item.Name, item.MemberID)
			return nil
		},
	}

	var verifyDays int
	verify := &cobra.Command{
		Use:         "verify <warID>",
		Short:       "Match a ledger against the faction funds news and mark verified payments",
		Args:        cobra.ExactArgs(1),
		Annotations: admin(),
		RunE: func(cmd *cobra.Command, args []string) error {
			warID, err := parseID(args[0])
			if err != nil {
				return err
			}
			rep, marked, err := b.verifyLedger(cmd.Context(), warID, verifyDays)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatVerification(warID, rep, marked))
			return nil
		},
	}
	verify.Flags().IntVar(&verifyDays, "days", 7, "days of news to search")

	var allDays int
	verifyAll := &cobra.Command{
		Use:   "verifyall",
		Short: "Flag repeated transfers of the same amount to the same member",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			to := b.now().UTC()
			entries, err := b.fundsNews(cmd.Context(), to.AddDate(0, 0, -allDays), to)
			if err != nil {
				return err
			}
			transfers, unparsed := reconcile.ParseFeed(entries)
			groups := reconcile.FindDuplicates(transfers)
			fmt.Fprint(cmd.OutOrStdout(), formatDuplicates(groups, len(transfers), unparsed, allDays))
			return nil
		},
	}
	verifyAll.Flags().IntVar(&allDays, "days", 30, "days of news to search")

	importCmd := &cobra.Command{
		Use:         "import <warID>",
		Short:       "Mark members paid from an attached ledger CSV",
		Args:        cobra.ExactArgs(1),
		Annotations: admin(),
		RunE: func(cmd *cobra.Command, args []string) error {
			warID, err := parseID(args[0])
			if err != nil {
				return err
			}
			att := csvAttachment(c.attachments)
			if att == nil {
				return errors.New("attach the ledger CSV to the command message")
			}

			body, err := b.download(cmd.Context(), att.URL)
			if err != nil {
				return err
			}
			defer body.Close()

			rows, bad, err := payout.ReadCSV(body)
			if err != nil {
				return err
			}
			marked, skipped, err := b.payouts.ImportPaid(cmd.Context(), warID, rows, c.userName)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %s: %d marked paid, %d skipped, %d unreadable rows.",
				att.Filename, marked, skipped, bad)
			return nil
		},
	}

	cmd.AddCommand(compute, show, csvCmd, paid, reset, verify, verifyAll, importCmd)
	return cmd
}

func (b *Bot) configCommand(_ *call) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Payout and monitor settings",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "List every setting",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			all, err := b.settings.All(cmd.Context())
			if err != nil {
				fmt.Fprintln(cmd.OutOrStdout(), "Settings store unavailable, showing defaults.")
			}
			fmt.Fprint(cmd.OutOrStdout(), formatSettings(all))
			return nil
		},
	}

	set := &cobra.Command{
		Use:         "set <key> <value>",
		Short:       "Change a setting",
		Args:        cobra.ExactArgs(2),
		Annotations: admin(),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("invalid value %q", args[1])
			}
			if err := b.settings.Set(cmd.Context(), args[0], value); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "`%s` set to %s.", args[0], strconv.FormatFloat(value, 'f', -1, 64))
			return nil
		},
	}

	cmd.AddCommand(show, set)
	return cmd
}

func (b *Bot) fundsCommand(c *call) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "funds",
		Short: "Faction funds bookkeeping",
	}

	snapshot := &cobra.Command{
		Use:         "snapshot",
		Short:       "Record the current faction balance",
		Args:        cobra.NoArgs,
		Annotations: admin(),
		RunE: func(cmd *cobra.Command, _ []string) error {
			snap, err := b.funds.TakeSnapshot(cmd.Context(), c.userName)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Faction money %s, points %s, held for %d members %s.",
				formatMoney(snap.Money), formatCount(snap.Points), snap.Members, formatMoney(snap.MemberMoney))
			return nil
		},
	}

	var memberID, warID int64
	add := &cobra.Command{
		Use:         "add <deposit|withdrawal|payout> <amount> [note...]",
		Short:       "Record a transaction",
		Args:        cobra.MinimumNArgs(2),
		Annotations: admin(),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := funds.ParseKind(args[0])
			if err != nil {
				return err
			}
			amount, err := parseMoney(args[1])
			if err != nil {
				return err
			}
			note := strings.Join(args[2:], " ")

			t, err := b.funds.Record(cmd.Context(), kind, amount, memberID, warID, note, c.userName)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Recorded %s of %s (`%s`).", t.Kind, formatMoney(t.Amount), t.ID)
			return nil
		},
	}
	add.Flags().Int64Var(&memberID, "member", 0, "member the transaction concerns")
	add.Flags().Int64Var(&warID, "war", 0, "war the transaction concerns")

	var historyLimit int
	history := &cobra.Command{
		Use:   "history",
		Short: "List recent transactions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ts, err := b.funds.History(cmd.Context(), historyLimit)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatTransactions(ts, b.now()))
			return nil
		},
	}
	history.Flags().IntVar(&historyLimit, "limit", 15, "number of transactions")

	var snapshotLimit int
	snapshots := &cobra.Command{
		Use:   "snapshots",
		Short: "List recent balance snapshots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			snaps, err := b.funds.Snapshots(cmd.Context(), snapshotLimit)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatSnapshots(snaps, b.now()))
			return nil
		},
	}
	snapshots.Flags().IntVar(&snapshotLimit, "limit", 10, "number of snapshots")

	cmd.AddCommand(snapshot, add, history, snapshots)
	return cmd
}

func (b *Bot) membersCommand(_ *call) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "members",
		Short: "Our faction roster",
	}

	syncCmd := &cobra.Command{
		Use:         "sync",
		Short:       "Refresh the stored roster from the game",
		Args:        cobra.NoArgs,
		Annotations: admin(),
		RunE: func(cmd *cobra.Command, _ []string) error {
			members, err := b.api.FactionMembers(cmd.Context(), b.api.FactionID())
			if err != nil {
				return err
			}
			n, err := b.repo.UpsertFactionMembers(cmd.Context(), members)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Synced %d members.", n)
			return nil
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List the stored roster",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			members, err := b.repo.ListFactionMembers(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatMembers(members))
			return nil
		},
	}

	cmd.AddCommand(syncCmd, list)
	return cmd
}

// startMonitor creates and starts the monitor unless one is running
func (b *Bot) startMonitor(factionID int64, channelID string, policy monitor.Policy) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.monitor != nil {
		return errMonitorRunning
	}

	m := monitor.New(b.api, b.newMessenger(channelID), monitor.Config{
		FactionID: factionID,
		Interval:  b.config.PollingInterval(),
		Policy:    policy,
	})
	m.Start(b.ctx)
	b.monitor = m

	slog.Info("Monitor started", "faction", factionID, "channel", channelID, "horizon", policy.Horizon)
	return nil
}

func (b *Bot) currentMonitor() *monitor.Monitor {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.monitor
}

// toggleClaim applies a claim click and describes the outcome
func (b *Bot) toggleClaim(memberID int64, userID, userName string) string {
	m := b.currentMonitor()
	if m == nil {
		return "The monitor is not running."
	}

	outcome, claim := m.Claims().Toggle(memberID, userID, userName, b.now())
	switch outcome {
	case monitor.ClaimTaken:
		return fmt.Sprintf("You claimed [%d](%s).", memberID, monitor.ProfileURL(memberID))
	case monitor.ClaimReleased:
		return fmt.Sprintf("You released your claim on [%d](%s).", memberID, monitor.ProfileURL(memberID))
	default:
		return fmt.Sprintf("Already claimed by %s.", claim.UserName)
	}
}

// currentOpponent finds the faction we are fighting in the newest ranked war
// that has not ended
func (b *Bot) currentOpponent(ctx context.Context) (torn.WarFaction, error) {
	wars, err := b.api.RankedWars(ctx, b.api.FactionID())
	if err != nil {
		return torn.WarFaction{}, err
	}

	now := b.now()
	var current *torn.RankedWar
	for i := range wars {
		w := &wars[i]
		if end := w.EndTime(); !end.IsZero() && end.Before(now) {
			continue
		}
		if current == nil || w.Start > current.Start {
			current = w
		}
	}
	if current == nil {
		return torn.WarFaction{}, errors.New("no ranked war in progress; pass a faction id")
	}

	opponent, ok := current.Opponent(b.api.FactionID())
	if !ok {
		return torn.WarFaction{}, fmt.Errorf("war %d has no opponent", current.ID)
	}
	return opponent, nil
}

// verifyLedger matches a stored ledger against recent funds news and
// persists the items it auto-marks
func (b *Bot) verifyLedger(ctx context.Context, warID int64, days int) (reconcile.Report, int, error) {
	l, err := b.payouts.Get(ctx, warID)
	if err != nil {
		return reconcile.Report{}, 0, err
	}

	to := b.now().UTC()
	entries, err := b.fundsNews(ctx, to.AddDate(0, 0, -days), to)
	if err != nil {
		return reconcile.Report{}, 0, err
	}

	wasPaid := make(map[int64]bool, len(l.Items))
	for _, item := range l.Items {
		wasPaid[item.MemberID] = item.Paid
	}

	rep := reconcile.VerifyFeed(reconcile.ExpectedFromLedger(l), entries)
	marked := reconcile.ApplyToLedger(l, rep)

	var changed []int64
	for _, item := range l.Items {
		if item.Paid && !wasPaid[item.MemberID] {
			changed = append(changed, item.MemberID)
		}
	}
	if err := b.payouts.ApplyPaid(ctx, l, changed); err != nil {
		return rep, 0, err
	}

	slog.Info("Verified payout",
		"war", warID,
		"news", len(entries),
		"verified", len(rep.Verified()),
		"doubles", len(rep.DoublePayments()),
		"marked", marked,
	)
	return rep, marked, nil
}

func (b *Bot) fundsNews(ctx context.Context, from, to time.Time) ([]reconcile.Entry, error) {
	news, err := b.api.News(ctx, torn.NewsGiveFunds, from, to)
	if err != nil {
		return nil, err
	}
	entries := make([]reconcile.Entry, 0, len(news))
	for _, n := range news {
		entries = append(entries, reconcile.Entry{Text: n.Text, At: n.Time()})
	}
	return entries, nil
}

func (b *Bot) loadReport(ctx context.Context, arg string) (*report.Report, error) {
	warID, err := parseID(arg)
	if err != nil {
		return nil, err
	}
	r, err := b.reports.Get(ctx, warID)
	if errors.Is(err, report.ErrNotFound) {
		return nil, fmt.Errorf("no report for war %d; run report generate first", warID)
	}
	return r, err
}

func (b *Bot) loadLedger(ctx context.Context, arg string) (*payout.Ledger, error) {
	warID, err := parseID(arg)
	if err != nil {
		return nil, err
	}
	l, err := b.payouts.Get(ctx, warID)
	if errors.Is(err, payout.ErrLedgerNotFound) {
		return nil, fmt.Errorf("no payout for war %d; run payout compute first", warID)
	}
	return l, err
}

func (b *Bot) download(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download attachment: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("download attachment: status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

func csvAttachment(atts []*discordgo.MessageAttachment) *discordgo.MessageAttachment {
	for _, a := range atts {
		if strings.HasSuffix(strings.ToLower(a.Filename), ".csv") || strings.HasPrefix(a.ContentType, "text/csv") {
			return a
		}
	}
	return nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.Trim(s, "[]"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func parseIDPair(args []string) (int64, int64, error) {
	first, err := parseID(args[0])
	if err != nil {
		return 0, 0, err
	}
	second, err := parseID(args[1])
	if err != nil {
		return 0, 0, err
	}
	return first, second, nil
}

// parseMoney accepts "1500000", "1,500,000", "$1.5m", "2b" and "750k"
func parseMoney(s string) (int64, error) {
	s = strings.ToLower(strings.NewReplacer("$", "", ",", "", "_", "").Replace(strings.TrimSpace(s)))
	if s == "" {
		return 0, errors.New("empty amount")
	}

	mult := 1.0
	switch s[len(s)-1] {
	case 'k':
		mult = 1e3
	case 'm':
		mult = 1e6
	case 'b':
		mult = 1e9
	}
	if mult != 1 {
		s = s[:len(s)-1]
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	return int64(v*mult + 0.5), nil
}
