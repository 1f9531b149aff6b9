// Package gsheets implements table.Workbook on a Google spreadsheet, one tab
// per sheet, with the header in row 1.
package gsheets

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/existflow/cowork/internal/table"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// Values are written as typed so nothing is reformatted into dates or numbers
const valueInput = "RAW"

// Workbook is one spreadsheet
type Workbook struct {
	srv *sheets.Service
	id  string

	mu  sync.Mutex
	ids map[string]int64 // tab title -> sheet id
}

// Open authenticates with a service account key file and opens the spreadsheet
func Open(ctx context.Context, credentialsFile, spreadsheetID string) (*Workbook, error) {
	return New(ctx, spreadsheetID,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(sheets.SpreadsheetsScope))
}

// New opens the spreadsheet with explicit client options
func New(ctx context.Context, spreadsheetID string, opts ...option.ClientOption) (*Workbook, error) {
	srv, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets client: %w", err)
	}
	w := &Workbook{srv: srv, id: spreadsheetID, ids: make(map[string]int64)}
	if err := w.refresh(ctx); err != nil {
		return nil, err
	}
	return w, nil
}

// refresh reloads the tab list
func (w *Workbook) refresh(ctx context.Context) error {
	doc, err := w.srv.Spreadsheets.Get(w.id).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to open spreadsheet %s: %w", w.id, err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.ids = make(map[string]int64, len(doc.Sheets))
	for _, s := range doc.Sheets {
		if s.Properties != nil {
			w.ids[s.Properties.Title] = s.Properties.SheetId
		}
	}
	return nil
}

// Sheet implements table.Workbook
func (w *Workbook) Sheet(ctx context.Context, title string) (table.Sheet, error) {
	w.mu.Lock()
	id, ok := w.ids[title]
	w.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", table.ErrSheetNotFound, title)
	}
	return &Sheet{wb: w, title: title, sheetID: id}, nil
}

// AddSheet implements table.Workbook
func (w *Workbook) AddSheet(ctx context.Context, title string, header []string) (table.Sheet, error) {
	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{Properties: &sheets.SheetProperties{Title: title}},
		}},
	}
	resp, err := w.srv.Spreadsheets.BatchUpdate(w.id, req).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to add sheet %s: %w", title, err)
	}

	var id int64
	if len(resp.Replies) > 0 && resp.Replies[0].AddSheet != nil && resp.Replies[0].AddSheet.Properties != nil {
		id = resp.Replies[0].AddSheet.Properties.SheetId
	}
	w.mu.Lock()
	w.ids[title] = id
	w.mu.Unlock()

	s := &Sheet{wb: w, title: title, sheetID: id}
	if err := s.writeRow(ctx, 1, header); err != nil {
		return nil, err
	}
	return s, nil
}

// Close implements table.Workbook. The HTTP client needs no teardown.
func (w *Workbook) Close() error {
	return nil
}

// Sheet is one tab
type Sheet struct {
	wb      *Workbook
	title   string
	sheetID int64
}

// Title implements table.Sheet
func (s *Sheet) Title() string { return s.title }

// Header implements table.Sheet
func (s *Sheet) Header(ctx context.Context) ([]string, error) {
	vr, err := s.wb.srv.Spreadsheets.Values.Get(s.wb.id, s.a1("1:1")).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s header: %w", s.title, err)
	}
	if len(vr.Values) == 0 {
		return []string{}, nil
	}
	return cells(vr.Values[0]), nil
}

// Rows implements table.Sheet. Rows after the last non-empty one are not returned.
func (s *Sheet) Rows(ctx context.Context) ([][]string, error) {
	vr, err := s.wb.srv.Spreadsheets.Values.Get(s.wb.id, quote(s.title)).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s rows: %w", s.title, err)
	}
	out := [][]string{}
	for i, row := range vr.Values {
		if i == 0 {
			continue // header
		}
		out = append(out, cells(row))
	}
	return out, nil
}

// AppendRow implements table.Sheet
func (s *Sheet) AppendRow(ctx context.Context, values []string) error {
	vr := &sheets.ValueRange{Values: [][]interface{}{row(values)}}
	_, err := s.wb.srv.Spreadsheets.Values.Append(s.wb.id, s.a1("A1"), vr).
		ValueInputOption(valueInput).
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to append to %s: %w", s.title, err)
	}
	return nil
}

// UpdateRow implements table.Sheet. Data row i lives on sheet row i+2.
func (s *Sheet) UpdateRow(ctx context.Context, index int, values []string) error {
	if index < 0 {
		return fmt.Errorf("%w: %d", table.ErrRowOutOfRange, index)
	}
	return s.writeRow(ctx, index+2, values)
}

// DeleteRow implements table.Sheet
func (s *Sheet) DeleteRow(ctx context.Context, index int) error {
	if index < 0 {
		return fmt.Errorf("%w: %d", table.ErrRowOutOfRange, index)
	}
	start := int64(index + 1) // 0-based grid index, skipping the header
	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			DeleteDimension: &sheets.DeleteDimensionRequest{
				Range: &sheets.DimensionRange{
					SheetId:         s.sheetID,
					Dimension:       "ROWS",
					StartIndex:      start,
					EndIndex:        start + 1,
					ForceSendFields: []string{"SheetId", "StartIndex"},
				},
			},
		}},
	}
	if _, err := s.wb.srv.Spreadsheets.BatchUpdate(s.wb.id, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to delete row %d of %s: %w", index, s.title, err)
	}
	return nil
}

// Reset implements table.Sheet
func (s *Sheet) Reset(ctx context.Context, header []string) error {
	if _, err := s.wb.srv.Spreadsheets.Values.Clear(s.wb.id, quote(s.title), &sheets.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to clear %s: %w", s.title, err)
	}
	return s.writeRow(ctx, 1, header)
}

// writeRow overwrites a 1-based sheet row starting at column A
func (s *Sheet) writeRow(ctx context.Context, n int, values []string) error {
	vr := &sheets.ValueRange{Values: [][]interface{}{row(values)}}
	_, err := s.wb.srv.Spreadsheets.Values.Update(s.wb.id, s.a1(fmt.Sprintf("A%d", n)), vr).
		ValueInputOption(valueInput).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to write row %d of %s: %w", n, s.title, err)
	}
	return nil
}

func (s *Sheet) a1(r string) string {
	return quote(s.title) + "!" + r
}

// quote wraps a tab title for A1 notation
func quote(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}

func row(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func cells(values []interface{}) []string {
	out := make([]string, len(values))
	for i, v := range values {
		if v == nil {
			continue
		}
		out[i] = fmt.Sprint(v)
	}
	return out
}
