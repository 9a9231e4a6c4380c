package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"walletlens/internal/core"
	"walletlens/internal/log"
	ports "walletlens/internal/sheets"
)

// DefaultSheetName is the base tab name; the transaction year is prefixed.
const DefaultSheetName = "Transactions"

// Config selects the spreadsheet and the service account used to write it.
type Config struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetBase     string
	logger        *log.Logger
}

var _ ports.Exporter = (*Client)(nil)

// New creates a Sheets client authenticated with a service account. Extra
// options are appended after the credentials.
func New(ctx context.Context, cfg Config, logger *log.Logger, opts ...goption.ClientOption) (*Client, error) {
	spreadsheetID := strings.TrimSpace(cfg.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentSheets)

	base := strings.TrimSpace(cfg.SheetName)
	if base == "" {
		base = DefaultSheetName
	}

	svc, err := newSheetsService(ctx, cfg, logger, opts)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetBase:     base,
		logger:        logger,
	}, nil
}

// credentials returns the service account key from inline JSON, a file, or
// GOOGLE_APPLICATION_CREDENTIALS, in that order. nil means none configured.
func credentials(cfg Config) ([]byte, error) {
	inline := strings.TrimSpace(cfg.CredentialsJSON)
	file := strings.TrimSpace(cfg.CredentialsFile)
	if inline == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case inline != "":
		return []byte(inline), nil
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return data, nil
	default:
		return nil, nil
	}
}

func newSheetsService(ctx context.Context, cfg Config, logger *log.Logger, extra []goption.ClientOption) (*gsheet.Service, error) {
	credentialsJSON, err := credentials(cfg)
	if err != nil {
		return nil, err
	}

	var opts []goption.ClientOption
	if credentialsJSON != nil {
		logger.InfoContext(ctx, "Creating Google Sheets service with service account",
			"credentials_size", len(credentialsJSON))
		opts = append(opts,
			goption.WithCredentialsJSON(credentialsJSON),
			goption.WithScopes(gsheet.SpreadsheetsScope))
	} else if len(extra) == 0 {
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
	opts = append(opts, extra...)

	service, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// Export appends t as one row to the tab of t's year and returns the
// updated range.
func (c *Client) Export(ctx context.Context, t core.Transaction) (string, error) {
	if err := t.Validate(); err != nil {
		return "", fmt.Errorf("validation failed: %w", err)
	}
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	sheet := yearPrefixedName(c.sheetBase, t.Timestamp.Year())
	rng := fmt.Sprintf("'%s'!A:F", sheet)
	vr := &gsheet.ValueRange{Values: [][]any{rowValues(t)}}

	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to sheet %s: %w", sheet, err)
	}

	ref := rng
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		ref = resp.Updates.UpdatedRange
	}
	c.logger.InfoContext(ctx, "Transaction exported",
		log.FieldTransactionID, t.ID, "range", ref)
	return ref, nil
}

// rowValues lays out A:F as date, type, category, description, amount, id
func rowValues(t core.Transaction) []any {
	return []any{
		t.Timestamp.Format("2006-01-02"),
		string(t.Type),
		t.Category,
		t.Description,
		t.Amount.StringFixed(2),
		t.ID,
	}
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
