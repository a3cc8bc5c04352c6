package records

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const (
	// Submitted rows are stored verbatim: a phone number keeps its leading
	// zero and a leading "=" stays text.
	appendInputOption = "RAW"
	// Admin edits are parsed as if typed, so applyDate becomes a date cell.
	batchInputOption = "USER_ENTERED"
)

// SheetsTable is a Table backed by one sheet of a Google spreadsheet.
type SheetsTable struct {
	svc           *sheets.Service
	spreadsheetID string
	sheet         string
}

// NewSheetsTable creates a SheetsTable for the named sheet.  Pass
// option.WithTokenSource (or option.WithHTTPClient) for credentials.
func NewSheetsTable(ctx context.Context, spreadsheetID, sheet string, opts ...option.ClientOption) (*SheetsTable, error) {
	if spreadsheetID == "" {
		return nil, fmt.Errorf("sheets table: spreadsheet id must not be empty")
	}
	if sheet == "" {
		sheet = "Sheet1"
	}
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("sheets table: %w", err)
	}
	return &SheetsTable{svc: svc, spreadsheetID: spreadsheetID, sheet: sheet}, nil
}

// Migrate writes Header into the first row when the sheet has none, so the
// first data row lands below it.  An existing first row is left alone.
func (t *SheetsTable) Migrate(ctx context.Context) error {
	rng := A1Range(t.sheet, 0, 0, NumColumns)
	resp, err := t.svc.Spreadsheets.Values.Get(t.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("sheets table: read header: %w", err)
	}
	if len(resp.Values) > 0 {
		return nil
	}
	vr := &sheets.ValueRange{Values: [][]interface{}{toCells(Header)}}
	_, err = t.svc.Spreadsheets.Values.Update(t.spreadsheetID, rng, vr).
		ValueInputOption(appendInputOption).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("sheets table: write header: %w", err)
	}
	return nil
}

func (t *SheetsTable) Rows(ctx context.Context) ([][]string, error) {
	resp, err := t.svc.Spreadsheets.Values.Get(t.spreadsheetID, ColumnsRange(t.sheet)).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("sheets table: get: %w", err)
	}
	out := make([][]string, len(resp.Values))
	for i, row := range resp.Values {
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = fmt.Sprint(v)
		}
		out[i] = cells
	}
	return out, nil
}

func (t *SheetsTable) Append(ctx context.Context, row []string) error {
	vr := &sheets.ValueRange{Values: [][]interface{}{toCells(row)}}
	_, err := t.svc.Spreadsheets.Values.Append(t.spreadsheetID, ColumnsRange(t.sheet), vr).
		ValueInputOption(appendInputOption).
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("sheets table: append: %w", err)
	}
	return nil
}

func (t *SheetsTable) BatchWrite(ctx context.Context, writes []RangeWrite) error {
	req := &sheets.BatchUpdateValuesRequest{ValueInputOption: batchInputOption}
	for _, w := range writes {
		req.Data = append(req.Data, &sheets.ValueRange{
			Range:  A1Range(t.sheet, w.Row, w.Col, len(w.Values)),
			Values: [][]interface{}{toCells(w.Values)},
		})
	}
	if _, err := t.svc.Spreadsheets.Values.BatchUpdate(t.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("sheets table: batch update: %w", err)
	}
	return nil
}

func toCells(row []string) []interface{} {
	cells := make([]interface{}, len(row))
	for i, v := range row {
		cells[i] = v
	}
	return cells
}

// ColumnsRange returns the A1 range spanning every column of sheet.
func ColumnsRange(sheet string) string {
	return fmt.Sprintf("%s!A:%s", quoteSheet(sheet), ColumnLetter(NumColumns-1))
}

// A1Range returns the single-row A1 range starting at 0-based (row, col) and
// spanning n columns.
func A1Range(sheet string, row, col, n int) string {
	return fmt.Sprintf("%s!%s%d:%s%d", quoteSheet(sheet),
		ColumnLetter(col), row+1, ColumnLetter(col+n-1), row+1)
}

// ColumnLetter converts a 0-based column index to its A1 letters.
func ColumnLetter(col int) string {
	var b []byte
	for col >= 0 {
		b = append([]byte{byte('A' + col%26)}, b...)
		col = col/26 - 1
	}
	return string(b)
}

func quoteSheet(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}
