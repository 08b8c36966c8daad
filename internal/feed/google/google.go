// Package google reads transactions from a Google Sheets tab.
//
// The tab needs a header row; columns are matched by name so their order does
// not matter: ID, Date, Type, Category, Amount, Owner, Description.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"budgetboard/internal/core"
	"budgetboard/internal/feed"
	"budgetboard/internal/remote"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Ensure interface conformance
var _ feed.TransactionSource = (*Client)(nil)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheet         string
}

// Options configures the Sheets client.
type Options struct {
	SpreadsheetID      string
	SheetName          string // default "Transactions"
	ServiceAccountJSON string
	ServiceAccountFile string
}

// New creates a read-only Sheets client using service account credentials.
func New(ctx context.Context, opts Options) (*Client, error) {
	spreadsheetID := strings.TrimSpace(opts.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	sheet := strings.TrimSpace(opts.SheetName)
	if sheet == "" {
		sheet = "Transactions"
	}
	svc, err := newSheetsService(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return &Client{svc: svc, spreadsheetID: spreadsheetID, sheet: sheet}, nil
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
// Falls back to GOOGLE_APPLICATION_CREDENTIALS when neither option is set.
func newSheetsService(ctx context.Context, opts Options) (*gsheet.Service, error) {
	saJSON := strings.TrimSpace(opts.ServiceAccountJSON)
	saFile := strings.TrimSpace(opts.ServiceAccountFile)
	if saJSON == "" && saFile == "" {
		saFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	switch {
	case saJSON != "":
		credentialsJSON = []byte(saJSON)
	case saFile != "":
		data, err := os.ReadFile(saFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = data
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	slog.InfoContext(ctx, "Creating Google Sheets service with Service Account",
		"credentials_size", len(credentialsJSON),
		"scope", gsheet.SpreadsheetsReadonlyScope)

	return gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsReadonlyScope))
}

// FetchTransactions reads the whole tab and applies f. The sheet is shared by
// the family, so personal scope requires f.Owner to be set by the caller.
func (c *Client) FetchTransactions(ctx context.Context, token string, f feed.Filter) ([]core.Transaction, error) {
	if strings.TrimSpace(token) == "" {
		return nil, remote.ErrUnauthorized
	}
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	rng := fmt.Sprintf("%s!A:Z", c.sheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, &remote.NetworkError{Op: "GET", URL: "sheets:" + rng, Err: err}
	}
	txs, err := parseRows(resp.Values)
	if err != nil {
		return nil, err
	}
	return f.Apply(txs), nil
}
