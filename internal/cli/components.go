package cli

import (
	"context"
	"fmt"

	"walletlens/internal/amqp"
	"walletlens/internal/config"
	"walletlens/internal/log"
	"walletlens/internal/notify"
	"walletlens/internal/receipt"
	"walletlens/internal/services"
	gsheet "walletlens/internal/sheets/google"
)

// NewAMQPClient connects to the configured broker. It returns nil without an
// error when AMQP is disabled.
func NewAMQPClient(logger *log.Logger, cfg *config.Config) (*amqp.Client, error) {
	if !cfg.AMQPEnabled() {
		return nil, nil
	}
	return amqp.NewClient(amqp.Options{
		URL:                cfg.AMQPURL,
		Exchange:           cfg.AMQPExchange,
		EventsQueue:        cfg.AMQPEventsQueue,
		NotificationsQueue: cfg.AMQPNotificationsQueue,
		Logger:             logger,
	})
}

// Dispatchers bundles the notification fan-out with the channels that hold
// resources.
type Dispatchers struct {
	notify.Dispatcher
	discord *notify.Discord
}

// Close releases the Discord session, if any
func (d *Dispatchers) Close() error {
	if d.discord == nil {
		return nil
	}
	return d.discord.Close()
}

// NewDispatchers fans notifications out to the log, Discord when configured,
// and the extra channels.
func NewDispatchers(logger *log.Logger, cfg *config.Config, extra ...notify.Dispatcher) (*Dispatchers, error) {
	channels := append([]notify.Dispatcher{notify.NewLog(logger)}, extra...)

	d := &Dispatchers{}
	if cfg.DiscordEnabled() {
		discord, err := notify.NewDiscord(cfg.DiscordBotToken, cfg.DiscordChannelID)
		if err != nil {
			return nil, err
		}
		d.discord = discord
		channels = append(channels, discord)
		logger.Info("Discord notifications enabled", "channel_id", cfg.DiscordChannelID)
	}

	d.Dispatcher = notify.NewMulti(logger, channels...)
	return d, nil
}

// NewExportProcessor builds the spreadsheet export queue. It returns nil
// without an error when no spreadsheet is configured.
func NewExportProcessor(ctx context.Context, logger *log.Logger, cfg *config.Config) (*services.ExportProcessor, error) {
	if !cfg.SheetsEnabled() {
		logger.Info("Google Sheets export disabled - no GOOGLE_SPREADSHEET_ID provided")
		return nil, nil
	}
	client, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("google sheets client: %w", err)
	}
	logger.Info("Google Sheets export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	return services.NewExportProcessor(client, services.DefaultExportProcessorConfig(), logger), nil
}

// NewReceiptParser loads the category rules file, falling back to the
// built-in rules.
func NewReceiptParser(logger *log.Logger, cfg *config.Config) (*receipt.RegexParser, error) {
	rules, err := receipt.LoadRulesFile(cfg.CategoryRulesFile)
	if err != nil {
		return nil, err
	}
	logger.Debug("Category rules loaded", "rules", len(rules.Rules), "file", cfg.CategoryRulesFile)
	return receipt.NewRegexParser(rules), nil
}
