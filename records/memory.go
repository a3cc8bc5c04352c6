package records

import (
	"context"
	"fmt"
	"sync"
)

// MemoryTable is an in-process Table.  It starts with the header row.
type MemoryTable struct {
	mu   sync.RWMutex
	rows [][]string
}

// NewMemoryTable returns a MemoryTable holding only the header row.
func NewMemoryTable() *MemoryTable {
	return &MemoryTable{rows: [][]string{append([]string(nil), Header...)}}
}

func (t *MemoryTable) Rows(ctx context.Context) ([][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([][]string, len(t.rows))
	for i, r := range t.rows {
		out[i] = append([]string(nil), r...)
	}
	return out, nil
}

func (t *MemoryTable) Append(ctx context.Context, row []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.Lock()
	t.rows = append(t.rows, append([]string(nil), row...))
	t.mu.Unlock()
	return nil
}

// Insert puts row at index at, shifting later rows down, the way a person
// inserting a row in a spreadsheet would.
func (t *MemoryTable) Insert(at int, row []string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if at < 1 || at > len(t.rows) {
		return fmt.Errorf("memory table: insert at %d out of range", at)
	}
	t.rows = append(t.rows, nil)
	copy(t.rows[at+1:], t.rows[at:])
	t.rows[at] = append([]string(nil), row...)
	return nil
}

func (t *MemoryTable) BatchWrite(ctx context.Context, writes []RangeWrite) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, w := range writes {
		if w.Row < 0 || w.Row >= len(t.rows) {
			return fmt.Errorf("memory table: row %d out of range", w.Row)
		}
		if w.Col < 0 || w.Col+len(w.Values) > NumColumns {
			return fmt.Errorf("memory table: columns %d..%d out of range", w.Col, w.Col+len(w.Values)-1)
		}
	}
	for _, w := range writes {
		row := t.rows[w.Row]
		if len(row) < w.Col+len(w.Values) {
			row = append(row, make([]string, w.Col+len(w.Values)-len(row))...)
		}
		copy(row[w.Col:], w.Values)
		t.rows[w.Row] = row
	}
	return nil
}
