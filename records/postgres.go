package records

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// sqlColumns are the Postgres column names for each Table column.
var sqlColumns = [NumColumns]string{
	ColTime:           "time",
	ColGroupID:        "group_id",
	ColName:           "name",
	ColPhone:          "phone",
	ColExternalUserID: "external_user_id",
	ColFileLink:       "file_link",
	ColStatus:         "status",
	ColPurpose:        "purpose",
	ColApplyDate:      "apply_date",
	ColRecordID:       "record_id",
}

// PostgresTable emulates a sheet on a Postgres table: rows are ordered by an
// insertion sequence and Rows reports a synthetic header row first.
type PostgresTable struct {
	pool  *pgxpool.Pool
	table string
}

// NewPool constructs a pgx connection pool using the provided connection string.
func NewPool(ctx context.Context, connString string) (*pgxpool.Pool, error) {
	if connString == "" {
		return nil, fmt.Errorf("postgres table: empty connection string")
	}
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("postgres table: parse config: %w", err)
	}
	return pgxpool.NewWithConfig(ctx, cfg)
}

// NewPostgresTable returns a PostgresTable over the named table.
func NewPostgresTable(pool *pgxpool.Pool, table string) *PostgresTable {
	if table == "" {
		table = "submissions"
	}
	return &PostgresTable{pool: pool, table: pgx.Identifier{table}.Sanitize()}
}

// Migrate creates the table when it does not exist.
func (t *PostgresTable) Migrate(ctx context.Context) error {
	cols := make([]string, 0, NumColumns)
	for _, c := range sqlColumns {
		cols = append(cols, c+" TEXT NOT NULL DEFAULT ''")
	}
	stmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (row_no BIGSERIAL PRIMARY KEY, %s)",
		t.table, strings.Join(cols, ", "))
	if _, err := t.pool.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("postgres table: migrate: %w", err)
	}
	return nil
}

func (t *PostgresTable) Rows(ctx context.Context) ([][]string, error) {
	q := fmt.Sprintf("SELECT %s FROM %s ORDER BY row_no", strings.Join(sqlColumns[:], ", "), t.table)
	rows, err := t.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("postgres table: query: %w", err)
	}
	defer rows.Close()

	out := [][]string{append([]string(nil), Header...)}
	for rows.Next() {
		row := make([]string, NumColumns)
		dest := make([]any, NumColumns)
		for i := range row {
			dest[i] = &row[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("postgres table: scan: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres table: rows: %w", err)
	}
	return out, nil
}

func (t *PostgresTable) Append(ctx context.Context, row []string) error {
	args := make([]any, NumColumns)
	marks := make([]string, NumColumns)
	for i := range args {
		args[i] = ""
		if i < len(row) {
			args[i] = row[i]
		}
		marks[i] = fmt.Sprintf("$%d", i+1)
	}
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		t.table, strings.Join(sqlColumns[:], ", "), strings.Join(marks, ", "))
	if _, err := t.pool.Exec(ctx, q, args...); err != nil {
		return fmt.Errorf("postgres table: insert: %w", err)
	}
	return nil
}

var errRowMissing = errors.New("postgres table: row does not exist")

// BatchWrite runs every write in one transaction; a write that hits no row
// rolls the whole batch back.
func (t *PostgresTable) BatchWrite(ctx context.Context, writes []RangeWrite) error {
	batch := &pgx.Batch{}
	for _, w := range writes {
		q, args, err := t.updateStmt(w)
		if err != nil {
			return err
		}
		batch.Queue(q, args...)
	}

	return pgx.BeginFunc(ctx, t.pool, func(tx pgx.Tx) error {
		br := tx.SendBatch(ctx, batch)
		for i := range writes {
			tag, err := br.Exec()
			if err != nil {
				br.Close()
				return fmt.Errorf("postgres table: update row %d: %w", writes[i].Row, err)
			}
			if tag.RowsAffected() == 0 {
				br.Close()
				return fmt.Errorf("%w: %d", errRowMissing, writes[i].Row)
			}
		}
		return br.Close()
	})
}

// updateStmt addresses the row by its offset so the table behaves like a
// sheet; row HeaderRows is the first data row.
func (t *PostgresTable) updateStmt(w RangeWrite) (string, []any, error) {
	if w.Row < HeaderRows {
		return "", nil, fmt.Errorf("postgres table: row %d is the header", w.Row)
	}
	if w.Col < 0 || w.Col+len(w.Values) > NumColumns || len(w.Values) == 0 {
		return "", nil, fmt.Errorf("postgres table: columns %d..%d out of range", w.Col, w.Col+len(w.Values)-1)
	}
	sets := make([]string, len(w.Values))
	args := make([]any, 0, len(w.Values)+1)
	for i, v := range w.Values {
		sets[i] = fmt.Sprintf("%s = $%d", sqlColumns[w.Col+i], i+1)
		args = append(args, v)
	}
	args = append(args, w.Row-HeaderRows)
	q := fmt.Sprintf(
		"UPDATE %s SET %s WHERE row_no = (SELECT row_no FROM %s ORDER BY row_no OFFSET $%d LIMIT 1)",
		t.table, strings.Join(sets, ", "), t.table, len(args))
	return q, args, nil
}
