package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"walletlens/internal/amqp"
	"walletlens/internal/cli"
	"walletlens/internal/config"
	apphttp "walletlens/internal/http"
	"walletlens/internal/log"
	"walletlens/internal/notify"
	"walletlens/internal/scheduler"
	"walletlens/internal/services"
	"walletlens/internal/storage"
	"walletlens/internal/worker"
)

const dashboardTTL = 30 * time.Second

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig()

	logger.Info("Starting walletlens")

	root, cancelRoot := context.WithCancel(context.Background())
	defer cancelRoot()

	store := cli.InitStore(root, logger, cfg)
	defer store.Cleanup()

	// Without a broker the background work runs in this process; with one,
	// walletlens-worker does it and sends notifications back over AMQP.
	amqpClient, err := cli.NewAMQPClient(logger, cfg)
	if err != nil {
		logger.Warn("Failed to initialize AMQP client, continuing in SQLite-only mode", log.FieldError, err)
		amqpClient = nil
	}

	hub := notify.NewHub(logger)

	var extra []notify.Dispatcher
	if amqpClient != nil {
		extra = append(extra, notify.NewBroker(amqpClient))
	} else {
		extra = append(extra, hub)
	}
	dispatchers, err := cli.NewDispatchers(logger, cfg, extra...)
	if err != nil {
		logger.Error("Failed to initialize notifications", log.FieldError, err)
		os.Exit(1)
	}
	defer dispatchers.Close()

	parser, err := cli.NewReceiptParser(logger, cfg)
	if err != nil {
		logger.Error("Failed to load category rules", log.FieldError, err, "file", cfg.CategoryRulesFile)
		os.Exit(1)
	}

	transactions := services.NewTransactionService(store.Store, logger)
	budgets := services.NewBudgetService(store.Store, logger)
	reminders := services.NewReminderService(store.Store, logger)
	evaluator := services.NewBudgetEvaluator(store.Store, store.Store, dispatchers, services.BudgetEvaluatorOptions{
		Concurrency:  cfg.BudgetCheckConcurrency,
		StoreTimeout: cfg.StoreTimeout,
		Logger:       logger,
	})
	aggregator := services.NewAggregator(store.Store, store.Store, services.AggregatorOptions{
		StoreTimeout:       cfg.StoreTimeout,
		MaxChartCategories: cfg.MaxChartCategories,
		ReminderLookahead:  cfg.ReminderLookahead,
		Logger:             logger,
	})
	dashboard := services.NewDashboard(aggregator, dashboardTTL)
	transactions.AddHook(dashboard)
	reminders.AddHook(dashboard)

	var background *worker.Runtime
	if amqpClient != nil {
		publisher := amqp.NewEventPublisher(amqpClient)
		transactions.AddHook(publisher)
		reminders.AddHook(publisher)

		go func() {
			if err := amqpClient.ConsumeNotifications(root, hub.Dispatch); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Notification consumption failed", log.FieldError, err)
			}
		}()
		logger.Info("AMQP enabled - background work runs in walletlens-worker")
	} else {
		background, err = newRuntime(root, logger, cfg, store.Store, transactions, reminders, evaluator, dispatchers)
		if err != nil {
			logger.Error("Failed to start background runtime", log.FieldError, err)
			os.Exit(1)
		}
	}

	srv, err := apphttp.NewServer(":"+cfg.Port, apphttp.Services{
		Transactions:  transactions,
		Budgets:       budgets,
		Reminders:     reminders,
		Evaluator:     evaluator,
		Aggregator:    aggregator,
		Dashboard:     dashboard,
		Receipts:      parser,
		Notifications: hub,
		Ready:         cli.ReadyCheck(store.Store),
	}, apphttp.Options{
		Logger:            logger,
		RateLimitRPM:      cfg.RateLimitRPM,
		ReminderLookahead: cfg.ReminderLookahead,
	})
	if err != nil {
		logger.Error("Failed to create HTTP server", log.FieldError, err)
		os.Exit(1)
	}
	transactions.AddHook(srv)

	ctx, done := cli.GracefulShutdown(root, logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		if background != nil {
			if err := background.Stop(ctx); err != nil {
				logger.Error("Runtime shutdown error", log.FieldError, err)
			}
		}
		hub.Close()
		if amqpClient != nil {
			amqpClient.Close()
		}
	})

	logger.Info("Starting walletlens server", "port", cfg.Port, "backend", cfg.DataBackend, "amqp", amqpClient != nil)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}

// newRuntime wires reminder fires, budget checks, recurring transactions and
// the export queue into this process.
func newRuntime(ctx context.Context, logger *log.Logger, cfg *config.Config, store storage.Store, transactions *services.TransactionService, reminders *services.ReminderService, evaluator *services.BudgetEvaluator, dispatcher notify.Dispatcher) (*worker.Runtime, error) {
	tasks := scheduler.New(scheduler.Config{Timeout: time.Minute, MaxRetries: 10, Logger: logger})
	reminderScheduler := services.NewReminderScheduler(store, tasks, dispatcher, services.ReminderSchedulerOptions{
		StoreTimeout: cfg.StoreTimeout,
		Logger:       logger,
	})
	reminders.AddHook(reminderScheduler)
	transactions.AddHook(evaluator)

	export, err := cli.NewExportProcessor(ctx, logger, cfg)
	if err != nil {
		return nil, err
	}
	if export != nil {
		transactions.AddHook(export)
	}

	rt := worker.NewRuntime(tasks, reminderScheduler, evaluator,
		services.NewRecurringProcessor(store, transactions, logger), export,
		worker.Intervals{
			BudgetCheck:    cfg.BudgetCheckInterval,
			Recurring:      cfg.RecurringInterval,
			ReminderRescan: cfg.ReminderRescanInterval,
			ExportRetry:    cfg.ExportRetryInterval,
		}, logger)
	if err := rt.Start(ctx); err != nil {
		return nil, err
	}
	return rt, nil
}
