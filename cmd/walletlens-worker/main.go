package main

import (
	"context"
	"errors"
	"os"
	"time"

	"walletlens/internal/cli"
	"walletlens/internal/log"
	"walletlens/internal/notify"
	"walletlens/internal/scheduler"
	"walletlens/internal/services"
	"walletlens/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig()
	logger = logger.WithComponent(log.ComponentWorker)

	logger.Info("Starting walletlens-worker")

	if !cfg.AMQPEnabled() {
		logger.Error("AMQP_URL is required; without a broker walletlens runs the background work itself")
		os.Exit(1)
	}

	root, cancelRoot := context.WithCancel(context.Background())
	defer cancelRoot()

	store := cli.InitStore(root, logger, cfg)
	defer store.Cleanup()

	amqpClient, err := cli.NewAMQPClient(logger, cfg)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	// Notifications go back to the API for its websocket clients.
	dispatchers, err := cli.NewDispatchers(logger, cfg, notify.NewBroker(amqpClient))
	if err != nil {
		logger.Error("Failed to initialize notifications", log.FieldError, err)
		os.Exit(1)
	}
	defer dispatchers.Close()

	export, err := cli.NewExportProcessor(root, logger, cfg)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets export", log.FieldError, err)
		os.Exit(1)
	}

	evaluator := services.NewBudgetEvaluator(store.Store, store.Store, dispatchers, services.BudgetEvaluatorOptions{
		Concurrency:  cfg.BudgetCheckConcurrency,
		StoreTimeout: cfg.StoreTimeout,
		Logger:       logger,
	})
	hooks := []services.TransactionHook{evaluator}
	if export != nil {
		hooks = append(hooks, export)
	}

	// Recurring transactions are created here, so their hooks run locally
	// instead of round-tripping through the broker.
	transactions := services.NewTransactionService(store.Store, logger, hooks...)

	tasks := scheduler.New(scheduler.Config{Timeout: time.Minute, MaxRetries: 10, Logger: logger})
	reminderScheduler := services.NewReminderScheduler(store.Store, tasks, dispatchers, services.ReminderSchedulerOptions{
		StoreTimeout: cfg.StoreTimeout,
		Logger:       logger,
	})

	runtime := worker.NewRuntime(tasks, reminderScheduler, evaluator,
		services.NewRecurringProcessor(store.Store, transactions, logger), export,
		worker.Intervals{
			BudgetCheck:    cfg.BudgetCheckInterval,
			Recurring:      cfg.RecurringInterval,
			ReminderRescan: cfg.ReminderRescanInterval,
			ExportRetry:    cfg.ExportRetryInterval,
		}, logger)
	if err := runtime.Start(root); err != nil {
		logger.Error("Failed to start worker runtime", log.FieldError, err)
		os.Exit(1)
	}

	events := worker.NewEventWorker(store.Store, store.Store, reminderScheduler, logger, hooks...)

	ctx, done := cli.GracefulShutdown(root, logger, 30*time.Second, func(ctx context.Context) {
		logger.Info("Shutting down worker...")
		if err := runtime.Stop(ctx); err != nil {
			logger.Error("Runtime shutdown error", log.FieldError, err)
		}
	})

	go func() {
		if err := amqpClient.ConsumeEvents(ctx, events.HandleEvent); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Event consumption failed", log.FieldError, err)
			cancelRoot()
		}
	}()

	logger.Info("Worker ready",
		"events_queue", cfg.AMQPEventsQueue,
		"notifications_queue", cfg.AMQPNotificationsQueue,
		"export", export != nil,
		"discord", cfg.DiscordEnabled())

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker shutdown complete")
}
