package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/flor3z/faction-bot/internal/bot"
	"github.com/flor3z/faction-bot/internal/config"
	"github.com/flor3z/faction-bot/internal/payout"
	"github.com/flor3z/faction-bot/internal/reconcile"
	"github.com/flor3z/faction-bot/internal/report"
	"github.com/flor3z/faction-bot/internal/storage"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		slog.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "bot",
		Short:         "Faction war monitor and payout bot",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			setupLogging(os.Getenv("LOG_LEVEL"))
		},
	}

	root.AddCommand(newRunCommand(), newVerifyCommand(), newExportCommand())
	return root
}

func newRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Connect to Discord and serve commands",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			// Load configuration
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			// Set up logging
			setupLogging(cfg.LogLevel)

			slog.Info("Starting faction bot", "faction", cfg.FactionID, "database", cfg.DatabaseDriver)

			// Create context that cancels on interrupt
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			// Create and start the bot
			b, err := bot.New(cfg)
			if err != nil {
				return fmt.Errorf("failed to create bot: %w", err)
			}

			if err := b.Start(ctx); err != nil {
				return fmt.Errorf("failed to start bot: %w", err)
			}

			slog.Info("Bot is running. Press Ctrl+C to stop.")

			// Wait for interrupt signal
			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
			<-sigChan

			slog.Info("Shutting down...")

			// Stop the bot gracefully before cancelling so monitor messages get cleaned up
			if err := b.Stop(); err != nil {
				slog.Error("Error during shutdown", "error", err)
			}
			cancel()

			slog.Info("Bot stopped")
			return nil
		},
	}
}

func newVerifyCommand() *cobra.Command {
	var ledgerPath, feedPath string
	var duplicates bool

	cmd := &cobra.Command{
		Use:   "verify --ledger ledger.csv --feed news.txt",
		Short: "Match an exported ledger against a saved funds news feed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			feedFile, err := os.Open(feedPath)
			if err != nil {
				return err
			}
			defer feedFile.Close()

			entries, skippedLines, err := reconcile.ReadFeed(feedFile)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if duplicates {
				transfers, unparsed := reconcile.ParseFeed(entries)
				printDuplicates(out, reconcile.FindDuplicates(transfers), len(transfers), unparsed+skippedLines)
				return nil
			}

			if ledgerPath == "" {
				return errors.New("--ledger is required unless --duplicates is set")
			}
			ledgerFile, err := os.Open(ledgerPath)
			if err != nil {
				return err
			}
			defer ledgerFile.Close()

			rows, badRows, err := payout.ReadCSV(ledgerFile)
			if err != nil {
				return err
			}
			if badRows > 0 {
				slog.Warn("Skipped unreadable ledger rows", "count", badRows)
			}

			rep := reconcile.VerifyFeed(reconcile.ExpectedFromCSV(rows), entries)
			rep.Unparsed += skippedLines
			printVerification(out, rep)
			return nil
		},
	}

	cmd.Flags().StringVar(&ledgerPath, "ledger", "", "ledger CSV exported by the bot")
	cmd.Flags().StringVar(&feedPath, "feed", "", "news feed file of <unix-ts>\\t<text> lines")
	cmd.Flags().BoolVar(&duplicates, "duplicates", false, "flag repeated transfers instead of checking a ledger")
	_ = cmd.MarkFlagRequired("feed")
	return cmd
}

func newExportCommand() *cobra.Command {
	var warID int64
	var warReport bool
	var outPath string

	cmd := &cobra.Command{
		Use:   "export --war N",
		Short: "Write a stored payout ledger or war report as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			repo, err := storage.NewRepository(cfg.DatabaseDriver, cfg.DatabaseURL, cfg.UpsertBatchSize)
			if err != nil {
				return fmt.Errorf("failed to initialize storage: %w", err)
			}
			defer repo.Close()

			out := cmd.OutOrStdout()
			if outPath != "" {
				f, err := os.Create(outPath)
				if err != nil {
					return err
				}
				defer f.Close()
				out = f
			}

			ctx := cmd.Context()
			if warReport {
				r, err := repo.GetWarReport(ctx, warID)
				if err != nil {
					return err
				}
				return report.WriteCSV(out, r)
			}

			l, err := repo.GetLedger(ctx, warID)
			if err != nil {
				return err
			}
			return payout.WriteCSV(out, l)
		},
	}

	cmd.Flags().Int64Var(&warID, "war", 0, "ranked war id")
	cmd.Flags().BoolVar(&warReport, "report", false, "export the war report instead of the payout ledger")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (default stdout)")
	_ = cmd.MarkFlagRequired("war")
	return cmd
}

func printVerification(w io.Writer, rep reconcile.Report) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "MEMBER\tNAME\tAMOUNT\tSTATUS\tBY\tAT")
	for _, v := range rep.Verifications {
		status, by, at := "missing", "", ""
		if v.Verified {
			status = "verified"
			by = v.VerifiedBy
			at = v.VerifiedAt.Format("2006-01-02 15:04")
		}
		if v.Double() {
			status = fmt.Sprintf("double x%d", len(v.Matches))
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\t%s\n", v.MemberID, v.Name, v.Amount, status, by, at)
	}
	tw.Flush()

	fmt.Fprintf(w, "\nverified %d, missing %d, double %d, unparsed lines %d\n",
		len(rep.Verified()), len(rep.Unverified()), len(rep.DoublePayments()), rep.Unparsed)
}

func printDuplicates(w io.Writer, groups []reconcile.DuplicateGroup, transfers, unparsed int) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RECIPIENT\tID\tAMOUNT\tCOUNT\tADMINS")
	for _, g := range groups {
		admins := ""
		for i, t := range g.Transfers {
			if i > 0 {
				admins += ", "
			}
			admins += t.Admin
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%s\n", g.Recipient, g.RecipientID, g.Amount, g.Count(), admins)
	}
	tw.Flush()

	fmt.Fprintf(w, "\n%d transfers, %d repeated groups, unparsed lines %d\n", transfers, len(groups), unparsed)
}

func setupLogging(level string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}
