package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"walletlens/internal/backend"
	"walletlens/internal/cli"
	"walletlens/internal/config"
	"walletlens/internal/log"
	"walletlens/internal/storage"
)

// app carries what every subcommand needs. The store is opened lazily so
// commands that never touch it work without a database.
type app struct {
	cfg     *config.Config
	logger  *log.Logger
	store   storage.Store
	cleanup backend.CleanupFunc
	now     func() time.Time
}

func newLogger(level string, w io.Writer) *log.Logger {
	handler := charmlog.NewWithOptions(w, charmlog.Options{
		ReportTimestamp: true,
		Prefix:          "walletctl",
		Level:           charmlog.Level(log.ParseLevel(level)),
	})
	return log.New(log.Config{Component: log.ComponentCLI, Handler: handler})
}

func (a *app) openStore(ctx context.Context) (storage.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	bcfg, err := backend.FromAppConfig(a.cfg)
	if err != nil {
		return nil, err
	}
	res, err := backend.NewFactory(a.logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, err
	}
	a.store, a.cleanup = res.Store, res.Cleanup
	return a.store, nil
}

func (a *app) close() {
	if a.cleanup != nil {
		if err := a.cleanup(); err != nil {
			a.logger.Warn("Failed to close store", log.FieldError, err)
		}
	}
}

func newRootCmd(a *app) *cobra.Command {
	var logLevel, dbPath string

	root := &cobra.Command{
		Use:           "walletctl",
		Short:         "WalletLens command-line interface",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			if cmd.Flags().Changed("log-level") || a.logger == nil {
				a.logger = newLogger(logLevel, cmd.ErrOrStderr())
			}
			if dbPath != "" {
				a.cfg.SQLiteDBPath = dbPath
			}
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", a.cfg.LogLevel, "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (default: SQLITE_DB_PATH)")

	root.AddCommand(
		newSummaryCmd(a),
		newBudgetsCmd(a),
		newRemindersCmd(a),
		newReceiptCmd(a),
		newMigrateCmd(a),
	)
	return root
}

func main() {
	cli.LoadEnvFile()
	cfg := config.Load()

	a := &app{cfg: cfg, now: time.Now}
	defer a.close()

	if err := newRootCmd(a).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		a.close()
		os.Exit(1)
	}
}
