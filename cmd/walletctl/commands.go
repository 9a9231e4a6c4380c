package main

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"walletlens/internal/backend"
	"walletlens/internal/cli"
	"walletlens/internal/core"
	apphttp "walletlens/internal/http"
	"walletlens/internal/notify"
	"walletlens/internal/services"
	"walletlens/internal/storage/sqlite"
)

const dayLayout = "2006-01-02"

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func newSummaryCmd(a *app) *cobra.Command {
	var from, to string

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print income, expense and per-category totals (default: current month)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rng, err := apphttp.ParseRangeParams(url.Values{"from": {from}, "to": {to}}, a.now())
			if err != nil {
				return err
			}
			store, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}

			agg := services.NewAggregator(store, store, services.AggregatorOptions{
				StoreTimeout: a.cfg.StoreTimeout,
				Now:          a.now,
				Logger:       a.logger,
			})
			sum := agg.Summary(cmd.Context(), rng)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s .. %s\n", sum.Range.Start.Format(dayLayout), sum.Range.End.Format(dayLayout))
			fmt.Fprintf(out, "Income:  %s\nExpense: %s\nBalance: %s\n",
				core.FormatAmount(sum.TotalIncome),
				core.FormatAmount(sum.TotalExpense),
				core.FormatAmount(sum.Balance))
			if len(sum.Categories) == 0 {
				return nil
			}
			tw := newTable(out)
			fmt.Fprintln(tw, "\nCATEGORY\tEXPENSE")
			for _, ct := range sum.Categories {
				fmt.Fprintf(tw, "%s\t%s\n", ct.Category, core.FormatAmount(ct.Amount))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "first day, YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "last day (inclusive), YYYY-MM-DD")
	return cmd
}

func newBudgetsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "budgets",
		Short: "Inspect and check budgets",
	}

	evaluator := func(cmd *cobra.Command, dispatcher notify.Dispatcher) (*services.BudgetEvaluator, error) {
		store, err := a.openStore(cmd.Context())
		if err != nil {
			return nil, err
		}
		return services.NewBudgetEvaluator(store, store, dispatcher, services.BudgetEvaluatorOptions{
			Concurrency:  a.cfg.BudgetCheckConcurrency,
			StoreTimeout: a.cfg.StoreTimeout,
			Now:          a.now,
			Logger:       a.logger,
		}), nil
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "Show spending against every active budget",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := evaluator(cmd, notify.NewLog(a.logger))
			if err != nil {
				return err
			}
			statuses, err := e.Statuses(cmd.Context())
			if err != nil {
				return err
			}
			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintln(tw, "CATEGORY\tPERIOD\tLIMIT\tSPENT\tUSED\tTIER")
			for _, s := range statuses {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s%%\t%s\n",
					s.Budget.Category, s.Budget.Period,
					core.FormatAmount(s.Budget.Limit), core.FormatAmount(s.Spent),
					s.PercentUsed.StringFixed(1), s.Tier)
			}
			return tw.Flush()
		},
	}

	check := &cobra.Command{
		Use:   "check",
		Short: "Evaluate every active budget and send warnings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dispatchers, err := cli.NewDispatchers(a.logger, a.cfg)
			if err != nil {
				return err
			}
			defer dispatchers.Close()

			e, err := evaluator(cmd, dispatchers)
			if err != nil {
				return err
			}
			rep := e.CheckAll(cmd.Context())
			if rep.Unavailable {
				return errors.New("budgets could not be loaded")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "evaluated %d, warned %d, failed %d\n", rep.Evaluated, rep.Warned, rep.Failed)
			if rep.Failed > 0 {
				return fmt.Errorf("%d budget(s) could not be evaluated", rep.Failed)
			}
			return nil
		},
	}

	cmd.AddCommand(status, check)
	return cmd
}

func newRemindersCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reminders",
		Short: "Inspect payment reminders",
	}

	var upcoming bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List active reminders ordered by due date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			svc := services.NewReminderService(store, a.logger)

			var list []core.Reminder
			if upcoming {
				list, err = svc.Upcoming(cmd.Context(), a.now(), a.cfg.ReminderLookahead)
			} else {
				list, err = svc.ListActive(cmd.Context(), core.DateRange{})
			}
			if err != nil {
				return err
			}

			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintln(tw, "ID\tDUE\tTITLE\tAMOUNT\tREPEATS")
			for _, r := range list {
				repeats := "-"
				if r.Recurring {
					repeats = string(r.Interval)
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n",
					r.ID, r.Due.Format(dayLayout), r.Title, core.FormatAmount(r.Amount), repeats)
			}
			return tw.Flush()
		},
	}
	list.Flags().BoolVar(&upcoming, "upcoming", false, "only reminders due within REMINDER_LOOKAHEAD")

	cmd.AddCommand(list)
	return cmd
}

func newReceiptCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "receipt",
		Short: "Work with recognised receipt text",
	}

	parse := &cobra.Command{
		Use:   "parse <file|->",
		Short: "Extract amount, merchant, date and a category from receipt text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				data []byte
				err  error
			)
			if args[0] == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(args[0])
			}
			if err != nil {
				return fmt.Errorf("read receipt: %w", err)
			}

			parser, err := cli.NewReceiptParser(a.logger, a.cfg)
			if err != nil {
				return err
			}
			g := parser.Parse(string(data))

			out := cmd.OutOrStdout()
			amount := "-"
			if g.Amount.IsPositive() {
				amount = core.FormatAmount(g.Amount)
			}
			date := "-"
			if !g.Date.IsZero() {
				date = g.Date.Format(dayLayout)
			}
			fmt.Fprintf(out, "Merchant: %s\nAmount:   %s\nDate:     %s\nCategory: %s\n",
				g.Merchant, amount, date, g.SuggestedCategory)
			for _, item := range g.Items {
				fmt.Fprintf(out, "  - %s\n", item)
			}
			return nil
		},
	}

	cmd.AddCommand(parse)
	return cmd
}

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending SQLite schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if backend.BackendType(a.cfg.DataBackend) != backend.SQLiteBackend {
				return errors.New("migrate requires DATA_BACKEND=sqlite")
			}
			version, err := sqlite.RunMigrations(a.cfg.SQLiteDBPath)
			if err != nil {
				return err
			}
			a.logger.Info("Migrations applied", "db_path", a.cfg.SQLiteDBPath, "version", version)
			fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d\n", version)
			return nil
		},
	}
}
