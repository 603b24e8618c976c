package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"saldo/internal/core"
	ports "saldo/internal/sheets"
)

const (
	DefaultTransactionsSheet = "Transactions"
	DefaultGoalsSheet        = "Goals"
	defaultCacheTTL          = 5 * time.Minute
)

// Config selects the spreadsheet and credentials. Credentials fall back to
// GOOGLE_APPLICATION_CREDENTIALS when neither JSON nor file is set.
type Config struct {
	SpreadsheetID     string
	TransactionsSheet string
	GoalsSheet        string
	CredentialsJSON   string
	CredentialsFile   string
	CacheTTL          time.Duration
}

// Client mirrors transactions and goals into two sheets, one row per entity
// keyed by the id in column A.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	txSheet       string
	goalSheet     string

	mu                 sync.Mutex
	cacheValidDuration time.Duration
	rowCache           map[string]rowIndex
	sheetIDs           map[string]int64
}

type rowIndex struct {
	rows      map[string]int
	next      int
	expiresAt time.Time
}

var _ ports.Mirror = (*Client)(nil)

// New creates a Sheets client. Extra options replace the credential lookup,
// which lets tests point the client at a local endpoint.
func New(ctx context.Context, cfg Config, opts ...goption.ClientOption) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	if cfg.TransactionsSheet == "" {
		cfg.TransactionsSheet = DefaultTransactionsSheet
	}
	if cfg.GoalsSheet == "" {
		cfg.GoalsSheet = DefaultGoalsSheet
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultCacheTTL
	}

	if len(opts) == 0 {
		creds, err := loadCredentials(ctx, cfg)
		if err != nil {
			return nil, err
		}
		opts = []goption.ClientOption{
			goption.WithCredentialsJSON(creds),
			goption.WithScopes(gsheet.SpreadsheetsScope),
		}
	}

	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets mirror ready",
		"spreadsheet_id", cfg.SpreadsheetID,
		"transactions_sheet", cfg.TransactionsSheet,
		"goals_sheet", cfg.GoalsSheet)

	return &Client{
		svc:                svc,
		spreadsheetID:      cfg.SpreadsheetID,
		txSheet:            cfg.TransactionsSheet,
		goalSheet:          cfg.GoalsSheet,
		cacheValidDuration: cfg.CacheTTL,
		rowCache:           map[string]rowIndex{},
		sheetIDs:           map[string]int64{},
	}, nil
}

func loadCredentials(ctx context.Context, cfg Config) ([]byte, error) {
	inline := strings.TrimSpace(cfg.CredentialsJSON)
	file := strings.TrimSpace(cfg.CredentialsFile)
	if inline == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case inline != "":
		slog.InfoContext(ctx, "Using inline JSON credentials")
		return []byte(inline), nil
	case file != "":
		slog.InfoContext(ctx, "Reading credentials from file", "path", file)
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return data, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// EnsureHeaders writes the header row of each mirrored sheet that lacks one.
func (c *Client) EnsureHeaders(ctx context.Context) error {
	for sheet, headers := range map[string][]string{
		c.txSheet:   ports.TransactionHeaders,
		c.goalSheet: ports.GoalHeaders,
	} {
		resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rowRange(sheet, 1)).Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("read header of %s: %w", sheet, err)
		}
		if len(resp.Values) > 0 && len(resp.Values[0]) > 0 && toStrings(resp.Values[0])[0] != "" {
			continue
		}
		vr := &gsheet.ValueRange{Values: [][]any{headerRow(headers)}}
		if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rowRange(sheet, 1), vr).
			ValueInputOption("RAW").Context(ctx).Do(); err != nil {
			return fmt.Errorf("write header of %s: %w", sheet, err)
		}
		c.invalidateRowCache(sheet)
		slog.InfoContext(ctx, "Wrote sheet header", "sheet", sheet)
	}
	return nil
}

func (c *Client) UpsertTransaction(ctx context.Context, t core.Transaction) error {
	return c.upsertRow(ctx, c.txSheet, t.ID, transactionRow(t))
}

func (c *Client) UpsertGoal(ctx context.Context, g core.Goal) error {
	return c.upsertRow(ctx, c.goalSheet, g.ID, goalRow(g))
}

// DeleteTransaction removes the transaction row, shifting the rows below it up.
func (c *Client) DeleteTransaction(ctx context.Context, id string) error {
	idx, err := c.rows(ctx, c.txSheet)
	if err != nil {
		return err
	}
	row, ok := idx.rows[id]
	if !ok {
		slog.DebugContext(ctx, "Transaction row already absent", "sheet", c.txSheet, "transaction_id", id)
		return nil
	}

	sheetID, err := c.sheetID(ctx, c.txSheet)
	if err != nil {
		return err
	}
	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			DeleteDimension: &gsheet.DeleteDimensionRequest{
				Range: &gsheet.DimensionRange{
					SheetId:         sheetID,
					Dimension:       "ROWS",
					StartIndex:      int64(row - 1),
					EndIndex:        int64(row),
					ForceSendFields: []string{"SheetId", "StartIndex"},
				},
			},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("delete row %d in sheet %s: %w", row, c.txSheet, err)
	}
	c.invalidateRowCache(c.txSheet)
	return nil
}

func (c *Client) upsertRow(ctx context.Context, sheet, id string, values []any) error {
	idx, err := c.rows(ctx, sheet)
	if err != nil {
		return err
	}
	vr := &gsheet.ValueRange{Values: [][]any{values}}

	if row, ok := idx.rows[id]; ok {
		if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rowRange(sheet, row), vr).
			ValueInputOption("USER_ENTERED").Context(ctx).Do(); err != nil {
			return fmt.Errorf("update row %d in sheet %s: %w", row, sheet, err)
		}
		return nil
	}

	if _, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, columnRange(sheet), vr).
		ValueInputOption("USER_ENTERED").InsertDataOption("INSERT_ROWS").Context(ctx).Do(); err != nil {
		return fmt.Errorf("append row to sheet %s: %w", sheet, err)
	}

	c.mu.Lock()
	if cached, ok := c.rowCache[sheet]; ok && time.Now().Before(cached.expiresAt) {
		cached.rows[id] = cached.next
		cached.next++
		c.rowCache[sheet] = cached
	}
	c.mu.Unlock()
	return nil
}

// rows returns the id index of sheet, reading column A when the cache expired.
func (c *Client) rows(ctx context.Context, sheet string) (rowIndex, error) {
	c.mu.Lock()
	cached, ok := c.rowCache[sheet]
	c.mu.Unlock()
	if ok && time.Now().Before(cached.expiresAt) {
		return cached, nil
	}

	rng := fmt.Sprintf("%s!A:A", quoteSheet(sheet))
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return rowIndex{}, fmt.Errorf("read ids of sheet %s: %w", sheet, err)
	}
	idx := rowIndex{
		rows:      indexRows(resp.Values),
		next:      len(resp.Values) + 1,
		expiresAt: time.Now().Add(c.cacheValidDuration),
	}

	c.mu.Lock()
	c.rowCache[sheet] = idx
	c.mu.Unlock()
	return idx, nil
}

func (c *Client) invalidateRowCache(sheet string) {
	c.mu.Lock()
	delete(c.rowCache, sheet)
	c.mu.Unlock()
}

func (c *Client) sheetID(ctx context.Context, title string) (int64, error) {
	c.mu.Lock()
	id, ok := c.sheetIDs[title]
	c.mu.Unlock()
	if ok {
		return id, nil
	}

	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("read spreadsheet properties: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range ss.Sheets {
		if s.Properties != nil {
			c.sheetIDs[s.Properties.Title] = s.Properties.SheetId
		}
	}
	id, ok = c.sheetIDs[title]
	if !ok {
		return 0, fmt.Errorf("sheet %q not found in spreadsheet", title)
	}
	return id, nil
}
