package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"walletlens/internal/core"
	"walletlens/internal/log"
	"walletlens/internal/sheets"
)

// ExportProcessorConfig holds configuration for the export processor
type ExportProcessorConfig struct {
	// PollInterval is how often pending items are exported (default: 10s)
	PollInterval time.Duration

	// BatchSize is the max number of items exported per poll cycle (default: 10)
	BatchSize int

	// MaxRetries is the attempt count after which an item is parked as failed (default: 3)
	MaxRetries int
}

// DefaultExportProcessorConfig returns sensible defaults
func DefaultExportProcessorConfig() ExportProcessorConfig {
	return ExportProcessorConfig{
		PollInterval: 10 * time.Second,
		BatchSize:    10,
		MaxRetries:   3,
	}
}

type exportItem struct {
	tx        core.Transaction
	attempts  int
	notBefore time.Time
	lastErr   string
}

// ExportStats is a point-in-time view of the export queue
type ExportStats struct {
	Pending  int
	Failed   int
	Exported int64
}

// ExportProcessor exports created transactions to a spreadsheet in the
// background, retrying failures with exponential backoff.
type ExportProcessor struct {
	exporter sheets.Exporter
	config   ExportProcessorConfig
	logger   *log.Logger
	now      func() time.Time

	mu       sync.Mutex
	pending  []exportItem
	failed   []exportItem
	exported int64
	running  bool
	stopCh   chan struct{}
	doneCh   chan struct{}
}

func NewExportProcessor(exporter sheets.Exporter, config ExportProcessorConfig, logger *log.Logger) *ExportProcessor {
	def := DefaultExportProcessorConfig()
	if config.PollInterval <= 0 {
		config.PollInterval = def.PollInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = def.BatchSize
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = def.MaxRetries
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &ExportProcessor{
		exporter: exporter,
		config:   config,
		logger:   logger.WithComponent(log.ComponentSheets),
		now:      time.Now,
	}
}

// Enqueue adds t to the export queue
func (p *ExportProcessor) Enqueue(t core.Transaction) {
	p.mu.Lock()
	p.pending = append(p.pending, exportItem{tx: t})
	p.mu.Unlock()
}

// TransactionChanged queues every created transaction
func (p *ExportProcessor) TransactionChanged(_ context.Context, c TransactionChange) error {
	if c.Kind == ChangeCreated {
		p.Enqueue(c.Transaction)
	}
	return nil
}

// Start begins the processing loop. Returns an error if already running.
func (p *ExportProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("export processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	p.logger.InfoContext(ctx, "Export processor started",
		"poll_interval", p.config.PollInterval,
		"batch_size", p.config.BatchSize)
	return nil
}

// Stop signals the loop and waits for the batch in flight to finish.
func (p *ExportProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	stopCh, doneCh := p.stopCh, p.doneCh
	p.running = false
	p.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		p.logger.InfoContext(ctx, "Export processor stopped gracefully")
		return nil
	case <-ctx.Done():
		p.logger.WarnContext(ctx, "Export processor stop timed out")
		return ctx.Err()
	}
}

func (p *ExportProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *ExportProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.processBatch(ctx)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.processBatch(ctx)
		}
	}
}

// take removes up to BatchSize items that are ready at now
func (p *ExportProcessor) take(now time.Time) []exportItem {
	p.mu.Lock()
	defer p.mu.Unlock()

	var batch []exportItem
	rest := p.pending[:0]
	for _, it := range p.pending {
		if len(batch) < p.config.BatchSize && !now.Before(it.notBefore) {
			batch = append(batch, it)
			continue
		}
		rest = append(rest, it)
	}
	p.pending = rest
	return batch
}

// processBatch exports one batch and returns how many items succeeded
func (p *ExportProcessor) processBatch(ctx context.Context) int {
	batch := p.take(p.now())
	if len(batch) == 0 {
		return 0
	}
	p.logger.DebugContext(ctx, "Processing export batch", "count", len(batch))

	ok := 0
	for i, item := range batch {
		if ctx.Err() != nil {
			p.requeue(batch[i:])
			return ok
		}
		ref, err := p.exporter.Export(ctx, item.tx)
		if err != nil {
			p.handleFailure(ctx, item, err)
			continue
		}
		ok++
		p.mu.Lock()
		p.exported++
		p.mu.Unlock()
		p.logger.DebugContext(ctx, "Exported transaction",
			log.FieldTransactionID, item.tx.ID, "row_ref", ref)
	}
	return ok
}

func (p *ExportProcessor) requeue(items []exportItem) {
	p.mu.Lock()
	p.pending = append(p.pending, items...)
	p.mu.Unlock()
}

// handleFailure re-queues with backoff or parks the item once retries run out
func (p *ExportProcessor) handleFailure(ctx context.Context, item exportItem, exportErr error) {
	item.attempts++
	item.lastErr = exportErr.Error()

	p.logger.WarnContext(ctx, "Export failed",
		log.FieldTransactionID, item.tx.ID,
		"attempt", item.attempts,
		log.FieldError, exportErr)

	if item.attempts >= p.config.MaxRetries {
		p.mu.Lock()
		p.failed = append(p.failed, item)
		p.mu.Unlock()
		p.logger.ErrorContext(ctx, "Export failed permanently after max retries",
			log.FieldTransactionID, item.tx.ID,
			"attempts", item.attempts)
		return
	}

	item.notBefore = p.now().Add(p.config.PollInterval << (item.attempts - 1))
	p.requeue([]exportItem{item})
}

func (p *ExportProcessor) Stats() ExportStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return ExportStats{Pending: len(p.pending), Failed: len(p.failed), Exported: p.exported}
}

// RetryFailed moves every parked item back to the queue with a fresh budget
func (p *ExportProcessor) RetryFailed() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := len(p.failed)
	for _, it := range p.failed {
		p.pending = append(p.pending, exportItem{tx: it.tx})
	}
	p.failed = nil
	return n
}
