// Package sheets adapts a Google Spreadsheet into the remote mutation
// gateway: one row per expense, owner-scoped reads and writes, idempotent
// inserts keyed by the idempotency column.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"kharcha/internal/core"
	"kharcha/internal/remote"
)

// Column layout of the expenses sheet, A through N.
const (
	colID = iota
	colOwnerID
	colAmountCents
	colCurrency
	colCategory
	colDescription
	colMerchant
	colDate
	colTime
	colIsRecurring
	colPeriod
	colTags
	colIdempotencyKey
	colCreatedAt
	colCount
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

var (
	_ remote.Gateway = (*Client)(nil)
	_ remote.Lister  = (*Client)(nil)
	_ remote.Prober  = (*Client)(nil)
)

// NewFromEnv creates a Sheets gateway using environment variables.
// Required: GOOGLE_SPREADSHEET_ID. Auth comes from
// GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or ADC via
// GOOGLE_APPLICATION_CREDENTIALS.
func NewFromEnv(ctx context.Context) (*Client, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	sheetName := strings.TrimSpace(os.Getenv("GOOGLE_SHEET_NAME"))
	if sheetName == "" {
		sheetName = "Expenses"
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
	}, nil
}

func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))

	switch {
	case serviceAccountJSON != "":
		return gsheet.NewService(ctx,
			goption.WithCredentialsJSON([]byte(serviceAccountJSON)),
			goption.WithScopes(gsheet.SpreadsheetsScope))
	case serviceAccountFile != "":
		return gsheet.NewService(ctx,
			goption.WithCredentialsFile(serviceAccountFile),
			goption.WithScopes(gsheet.SpreadsheetsScope))
	default:
		// Application Default Credentials
		return gsheet.NewService(ctx, goption.WithScopes(gsheet.SpreadsheetsScope))
	}
}

// Probe checks spreadsheet reachability.
func (c *Client) Probe(ctx context.Context) error {
	_, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("spreadsheetId").Context(ctx).Do()
	if err != nil {
		return classify(err)
	}
	return nil
}

// Insert appends a new expense row. A request whose idempotency key already
// exists returns the existing expense instead of appending a duplicate.
func (c *Client) Insert(ctx context.Context, req remote.InsertRequest) (core.Expense, error) {
	if req.OwnerID == "" {
		return core.Expense{}, remote.ErrAuth
	}
	if err := req.Fields.Validate(); err != nil {
		return core.Expense{}, fmt.Errorf("%w: %v", remote.ErrValidation, err)
	}

	rows, err := c.readRows(ctx)
	if err != nil {
		return core.Expense{}, err
	}
	if req.IdempotencyKey != "" {
		for _, r := range rows {
			if r.idempotencyKey == req.IdempotencyKey {
				slog.InfoContext(ctx, "Insert already applied, returning existing row",
					"idempotency_key", req.IdempotencyKey,
					"expense_id", r.expense.ID)
				return r.expense, nil
			}
		}
	}

	e := core.Expense{
		ID:        uuid.NewString(),
		OwnerID:   req.OwnerID,
		Fields:    req.Fields,
		CreatedAt: time.Now().UTC(),
	}

	vr := &gsheet.ValueRange{Values: [][]interface{}{rowValues(e, req.IdempotencyKey)}}
	_, err = c.svc.Spreadsheets.Values.
		Append(c.spreadsheetID, c.sheetName+"!A:N", vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return core.Expense{}, classify(err)
	}

	slog.InfoContext(ctx, "Expense appended to sheet",
		"expense_id", e.ID,
		"amount_cents", e.Fields.Amount.Cents)

	return e, nil
}

// Update rewrites the row holding the expense, after the ownership check.
func (c *Client) Update(ctx context.Context, ownerID, id string, fields core.ExpenseFields) (core.Expense, error) {
	if ownerID == "" {
		return core.Expense{}, remote.ErrAuth
	}
	if err := fields.Validate(); err != nil {
		return core.Expense{}, fmt.Errorf("%w: %v", remote.ErrValidation, err)
	}

	row, err := c.findRow(ctx, ownerID, id)
	if err != nil {
		return core.Expense{}, err
	}

	e := row.expense
	e.Fields = fields

	vr := &gsheet.ValueRange{Values: [][]interface{}{rowValues(e, row.idempotencyKey)}}
	rangeRef := fmt.Sprintf("%s!A%d:N%d", c.sheetName, row.number, row.number)
	_, err = c.svc.Spreadsheets.Values.
		Update(c.spreadsheetID, rangeRef, vr).
		ValueInputOption("RAW").
		Context(ctx).Do()
	if err != nil {
		return core.Expense{}, classify(err)
	}
	return e, nil
}

// Delete removes the row holding the expense, after the ownership check.
func (c *Client) Delete(ctx context.Context, ownerID, id string) error {
	if ownerID == "" {
		return remote.ErrAuth
	}

	row, err := c.findRow(ctx, ownerID, id)
	if err != nil {
		return err
	}

	sheetID, err := c.sheetID(ctx)
	if err != nil {
		return err
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			DeleteDimension: &gsheet.DeleteDimensionRequest{
				Range: &gsheet.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "ROWS",
					StartIndex: row.number - 1, // zero-based, inclusive
					EndIndex:   row.number,
				},
			},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return classify(err)
	}
	return nil
}

// List returns the owner's expenses in descending date order, ties broken
// by descending creation time.
func (c *Client) List(ctx context.Context, ownerID string, r core.DateRange) ([]core.Expense, error) {
	if ownerID == "" {
		return nil, remote.ErrAuth
	}

	rows, err := c.readRows(ctx)
	if err != nil {
		return nil, err
	}

	var out []core.Expense
	for _, row := range rows {
		if row.expense.OwnerID != ownerID {
			continue
		}
		if !r.Contains(row.expense.Fields.Date) {
			continue
		}
		out = append(out, row.expense)
	}
	sort.Slice(out, func(i, j int) bool {
		di, dj := out[i].Fields.Date.Time, out[j].Fields.Date.Time
		if !di.Equal(dj) {
			return di.After(dj)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

type sheetRow struct {
	number         int64 // 1-based sheet row number
	expense        core.Expense
	idempotencyKey string
}

func (c *Client) readRows(ctx context.Context) ([]sheetRow, error) {
	resp, err := c.svc.Spreadsheets.Values.
		Get(c.spreadsheetID, c.sheetName+"!A:N").
		Context(ctx).Do()
	if err != nil {
		return nil, classify(err)
	}

	var rows []sheetRow
	for i, vals := range resp.Values {
		e, key, ok := parseRow(vals)
		if !ok {
			continue // header or malformed row
		}
		rows = append(rows, sheetRow{number: int64(i + 1), expense: e, idempotencyKey: key})
	}
	return rows, nil
}

func (c *Client) findRow(ctx context.Context, ownerID, id string) (sheetRow, error) {
	rows, err := c.readRows(ctx)
	if err != nil {
		return sheetRow{}, err
	}
	for _, r := range rows {
		if r.expense.ID == id {
			if r.expense.OwnerID != ownerID {
				return sheetRow{}, remote.ErrNotFoundOrUnauthorized
			}
			return r, nil
		}
	}
	return sheetRow{}, remote.ErrNotFoundOrUnauthorized
}

func (c *Client) sheetID(ctx context.Context) (int64, error) {
	meta, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return 0, classify(err)
	}
	for _, s := range meta.Sheets {
		if s.Properties != nil && s.Properties.Title == c.sheetName {
			return s.Properties.SheetId, nil
		}
	}
	return 0, fmt.Errorf("%w: sheet %q not found", remote.ErrTransport, c.sheetName)
}

func rowValues(e core.Expense, idempotencyKey string) []interface{} {
	return []interface{}{
		e.ID,
		e.OwnerID,
		strconv.FormatInt(e.Fields.Amount.Cents, 10),
		e.Fields.Currency,
		e.Fields.Category,
		e.Fields.Description,
		e.Fields.Merchant,
		e.Fields.Date.String(),
		e.Fields.Time,
		strconv.FormatBool(e.Fields.IsRecurring),
		string(e.Fields.Period),
		strings.Join(e.Fields.Tags, ","),
		idempotencyKey,
		e.CreatedAt.Format(time.RFC3339),
	}
}

func parseRow(vals []interface{}) (core.Expense, string, bool) {
	if len(vals) < colCount {
		return core.Expense{}, "", false
	}
	str := func(i int) string {
		s, _ := vals[i].(string)
		return s
	}

	cents, err := strconv.ParseInt(str(colAmountCents), 10, 64)
	if err != nil {
		return core.Expense{}, "", false
	}
	date, err := core.ParseDate(str(colDate))
	if err != nil {
		return core.Expense{}, "", false
	}
	createdAt, _ := time.Parse(time.RFC3339, str(colCreatedAt))

	var tags []string
	if raw := str(colTags); raw != "" {
		tags = strings.Split(raw, ",")
	}

	return core.Expense{
		ID:      str(colID),
		OwnerID: str(colOwnerID),
		Fields: core.ExpenseFields{
			Amount:      core.Money{Cents: cents},
			Currency:    str(colCurrency),
			Category:    str(colCategory),
			Description: str(colDescription),
			Merchant:    str(colMerchant),
			Date:        date,
			Time:        str(colTime),
			IsRecurring: str(colIsRecurring) == "true",
			Period:      core.RecurrencePeriod(str(colPeriod)),
			Tags:        tags,
		},
		CreatedAt: createdAt,
	}, str(colIdempotencyKey), true
}

// classify maps transport-level errors onto the gateway failure taxonomy.
func classify(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", remote.ErrTransport, err)
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "401") || strings.Contains(msg, "403"):
		return fmt.Errorf("%w: %v", remote.ErrAuth, err)
	case strings.Contains(msg, "400"):
		return fmt.Errorf("%w: %v", remote.ErrValidation, err)
	default:
		return fmt.Errorf("%w: %v", remote.ErrTransport, err)
	}
}
