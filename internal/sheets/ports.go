package sheets

import (
	"context"

	"walletlens/internal/core"
)

// Ports for outbound adapters.
type (
	// Exporter appends a stored transaction to an external ledger.
	Exporter interface {
		Export(ctx context.Context, t core.Transaction) (rowRef string, err error)
	}

	// ExporterFunc adapts a function to Exporter.
	ExporterFunc func(ctx context.Context, t core.Transaction) (string, error)
)

func (f ExporterFunc) Export(ctx context.Context, t core.Transaction) (string, error) {
	return f(ctx, t)
}
