package records

import (
	"context"
	"fmt"
	"sort"

	apperrors "github.com/Skryldev/doc-intake/errors"
)

// HeaderRows is the number of rows above the first submission.
const HeaderRows = 1

// Update holds the admin-editable fields written by a batch update.
type Update struct {
	Purpose   string
	ApplyDate string
}

// Repository lists and updates submissions stored in a Table.
//
// Positional ids are not locked between List and BatchUpdate: a row inserted
// or deleted above an id in the meantime makes the update land on a
// different submission.  BatchUpdateByRecordID narrows that window to a
// single read-then-write.
type Repository struct {
	table Table
}

// NewRepository creates a Repository over t.
func NewRepository(t Table) *Repository {
	return &Repository{table: t}
}

// List returns every submission in stored order with ID set to its offset.
func (r *Repository) List(ctx context.Context) ([]Submission, error) {
	rows, err := r.table.Rows(ctx)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryRepository, "records.list", err)
	}
	if len(rows) <= HeaderRows {
		return []Submission{}, nil
	}
	data := rows[HeaderRows:]
	out := make([]Submission, len(data))
	for i, row := range data {
		out[i] = fromRow(i, row)
	}
	return out, nil
}

// Append stores s as a new row.  s.ID is ignored.
func (r *Repository) Append(ctx context.Context, s Submission) error {
	if err := r.table.Append(ctx, s.row()); err != nil {
		return apperrors.Wrap(apperrors.CategoryRepository, "records.append", err)
	}
	return nil
}

// BatchUpdate marks the submissions at the given positional ids processed
// and overwrites their purpose and apply date in one backing-store request.
// No other column is touched.  Repeating an identical update is a no-op.
func (r *Repository) BatchUpdate(ctx context.Context, ids []int, u Update) error {
	if len(ids) == 0 {
		return apperrors.New(apperrors.CategoryValidation, "records.batch_update", apperrors.ErrEmptyIDs)
	}
	for _, id := range ids {
		if id < 0 {
			return apperrors.Validation("records.batch_update", "invalid id %d", id)
		}
	}
	return r.write(ctx, "records.batch_update", dedupe(ids), u)
}

// BatchUpdateByRecordID resolves stable record ids against a fresh snapshot
// and then applies the same write as BatchUpdate.
func (r *Repository) BatchUpdateByRecordID(ctx context.Context, recordIDs []string, u Update) error {
	const op = "records.batch_update_by_record_id"
	if len(recordIDs) == 0 {
		return apperrors.New(apperrors.CategoryValidation, op, apperrors.ErrEmptyIDs)
	}
	subs, err := r.List(ctx)
	if err != nil {
		return err
	}
	index := make(map[string]int, len(subs))
	for _, s := range subs {
		if s.RecordID != "" {
			index[s.RecordID] = s.ID
		}
	}
	ids := make([]int, 0, len(recordIDs))
	for _, rid := range recordIDs {
		id, ok := index[rid]
		if !ok {
			return apperrors.New(apperrors.CategoryValidation, op, fmt.Errorf("%w: %s", apperrors.ErrUnknownRecord, rid))
		}
		ids = append(ids, id)
	}
	return r.write(ctx, op, dedupe(ids), u)
}

func (r *Repository) write(ctx context.Context, op string, ids []int, u Update) error {
	writes := make([]RangeWrite, len(ids))
	for i, id := range ids {
		writes[i] = RangeWrite{
			Row:    HeaderRows + id,
			Col:    ColStatus,
			Values: []string{string(StatusProcessed), u.Purpose, u.ApplyDate},
		}
	}
	if err := r.table.BatchWrite(ctx, writes); err != nil {
		return apperrors.Wrap(apperrors.CategoryRepository, op, err)
	}
	return nil
}

func dedupe(ids []int) []int {
	seen := make(map[int]struct{}, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}
