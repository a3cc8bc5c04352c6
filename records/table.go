package records

import "context"

// Table is a row-oriented backing store.  Row indexes are 0-based and count
// the header row.
type Table interface {
	// Rows returns every row, header included, in stored order.
	Rows(ctx context.Context) ([][]string, error)
	// Append adds row after the last row.
	Append(ctx context.Context, row []string) error
	// BatchWrite applies all writes in one request: it either succeeds or
	// fails as a whole.
	BatchWrite(ctx context.Context, writes []RangeWrite) error
}

// RangeWrite overwrites len(Values) adjacent cells of one row starting at
// column Col.
type RangeWrite struct {
	Row    int
	Col    int
	Values []string
}
