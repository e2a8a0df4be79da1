package ledger

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ariefcatur/go-pharma-orders/internal/orders"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

func NewSheetsService(ctx context.Context, credentialsJSON string) (*sheets.Service, error) {
	if credentialsJSON == "" {
		return nil, errors.New("GOOGLE_CREDENTIALS_JSON is not set")
	}
	return sheets.NewService(ctx,
		option.WithCredentialsJSON([]byte(credentialsJSON)),
		option.WithScopes(sheets.SpreadsheetsScope),
	)
}

// Sheets appends order rows to one worksheet, creating the worksheet and its
// header row on first use.
type Sheets struct {
	svc           *sheets.Service
	spreadsheetID string
	worksheet     string
	loc           *time.Location

	mu    sync.Mutex
	ready bool
}

func NewSheets(svc *sheets.Service, spreadsheetID, worksheet string, loc *time.Location) *Sheets {
	return &Sheets{svc: svc, spreadsheetID: spreadsheetID, worksheet: worksheet, loc: loc}
}

func (s *Sheets) Publish(ctx context.Context, o orders.Order) (int, error) {
	if err := s.ensureWorksheet(ctx); err != nil {
		return 0, err
	}
	resp, err := s.svc.Spreadsheets.Values.
		Append(s.spreadsheetID, s.a1("A1"), &sheets.ValueRange{Values: [][]any{FormatRow(o, s.loc)}}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("append row: %w", err)
	}
	if resp.Updates == nil {
		return 0, errors.New("append row: response carries no update range")
	}
	return rowFromRange(resp.Updates.UpdatedRange)
}

func (s *Sheets) a1(cell string) string {
	return fmt.Sprintf("'%s'!%s", strings.ReplaceAll(s.worksheet, "'", "''"), cell)
}

func (s *Sheets) ensureWorksheet(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		return nil
	}

	ss, err := s.svc.Spreadsheets.Get(s.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("open spreadsheet: %w", err)
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil && sh.Properties.Title == s.worksheet {
			s.ready = true
			return nil
		}
	}

	_, err = s.svc.Spreadsheets.BatchUpdate(s.spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{Properties: &sheets.SheetProperties{
				Title:          s.worksheet,
				GridProperties: &sheets.GridProperties{RowCount: 1000, ColumnCount: 20},
			}},
		}},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("add worksheet %q: %w", s.worksheet, err)
	}

	_, err = s.svc.Spreadsheets.Values.
		Append(s.spreadsheetID, s.a1("A1"), &sheets.ValueRange{Values: [][]any{Header}}).
		ValueInputOption("RAW").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	s.ready = true
	return nil
}

// rowFromRange extracts the first row number from an A1 range such as
// "'Заявки'!A5:K5".
func rowFromRange(r string) (int, error) {
	if i := strings.LastIndex(r, "!"); i >= 0 {
		r = r[i+1:]
	}
	if i := strings.Index(r, ":"); i >= 0 {
		r = r[:i]
	}
	digits := strings.TrimLeft(r, "ABCDEFGHIJKLMNOPQRSTUVWXYZ")
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, fmt.Errorf("parse updated range %q: %w", r, err)
	}
	return n, nil
}
