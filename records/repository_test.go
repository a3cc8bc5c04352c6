package records

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Skryldev/doc-intake/errors"
)

// countingTable records how often the backing store is touched.
type countingTable struct {
	Table
	reads, appends, writes int
	writeErr               error
}

func (c *countingTable) Rows(ctx context.Context) ([][]string, error) {
	c.reads++
	return c.Table.Rows(ctx)
}

func (c *countingTable) Append(ctx context.Context, row []string) error {
	c.appends++
	return c.Table.Append(ctx, row)
}

func (c *countingTable) BatchWrite(ctx context.Context, w []RangeWrite) error {
	c.writes++
	if c.writeErr != nil {
		return c.writeErr
	}
	return c.Table.BatchWrite(ctx, w)
}

func seed(t *testing.T, repo *Repository, names ...string) {
	t.Helper()
	for _, n := range names {
		require.NoError(t, repo.Append(context.Background(), Submission{
			RecordID: "rid-" + n,
			Time:     "2026-01-01 10:00:00",
			GroupID:  "G1",
			Name:     n,
			Phone:    "0912000000",
			FileLink: "https://files/" + n,
			Status:   StatusPending,
		}))
	}
}

func TestListAssignsPositionalIDs(t *testing.T) {
	repo := NewRepository(NewMemoryTable())
	seed(t, repo, "a", "b", "c")

	subs, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, subs, 3)
	for i, s := range subs {
		assert.Equal(t, i, s.ID)
	}
	assert.Equal(t, "b", subs[1].Name)
	assert.Equal(t, StatusPending, subs[1].Status)
	assert.Equal(t, "rid-b", subs[1].RecordID)
}

func TestListEmptyTable(t *testing.T) {
	subs, err := NewRepository(NewMemoryTable()).List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, subs)
	assert.Empty(t, subs)
}

func TestBatchUpdateTouchesOnlyAdminColumns(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(NewMemoryTable())
	seed(t, repo, "a", "b", "c")

	before, err := repo.List(ctx)
	require.NoError(t, err)

	require.NoError(t, repo.BatchUpdate(ctx, []int{1}, Update{Purpose: "Visa", ApplyDate: "2026-01-01"}))

	after, err := repo.List(ctx)
	require.NoError(t, err)

	want := before[1]
	want.Status = StatusProcessed
	want.Purpose = "Visa"
	want.ApplyDate = "2026-01-01"
	assert.Equal(t, want, after[1])
	assert.Equal(t, before[0], after[0])
	assert.Equal(t, before[2], after[2])
}

func TestBatchUpdateEmptyIDsSkipsStore(t *testing.T) {
	table := &countingTable{Table: NewMemoryTable()}
	repo := NewRepository(table)

	err := repo.BatchUpdate(context.Background(), nil, Update{Purpose: "Visa"})
	require.Error(t, err)
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryValidation))
	assert.ErrorIs(t, err, apperrors.ErrEmptyIDs)
	assert.Zero(t, table.reads+table.appends+table.writes)

	err = repo.BatchUpdateByRecordID(context.Background(), []string{}, Update{})
	assert.ErrorIs(t, err, apperrors.ErrEmptyIDs)
	assert.Zero(t, table.reads+table.appends+table.writes)
}

func TestBatchUpdateRejectsNegativeID(t *testing.T) {
	table := &countingTable{Table: NewMemoryTable()}
	err := NewRepository(table).BatchUpdate(context.Background(), []int{-1}, Update{})
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryValidation))
	assert.Zero(t, table.writes)
}

func TestBatchUpdateIsOneRequest(t *testing.T) {
	table := &countingTable{Table: NewMemoryTable()}
	repo := NewRepository(table)
	seed(t, repo, "a", "b", "c")

	require.NoError(t, repo.BatchUpdate(context.Background(), []int{2, 0, 2}, Update{Purpose: "Visa"}))
	assert.Equal(t, 1, table.writes)
}

func TestBatchUpdateOutOfRangeFailsWholeBatch(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(NewMemoryTable())
	seed(t, repo, "a")

	err := repo.BatchUpdate(ctx, []int{0, 5}, Update{Purpose: "Visa"})
	require.Error(t, err)
	assert.Equal(t, apperrors.KindRepository, apperrors.Kind(err))

	subs, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, subs[0].Status)
}

func TestBatchUpdateStoreFailureIsRepositoryError(t *testing.T) {
	table := &countingTable{Table: NewMemoryTable(), writeErr: errors.New("quota exceeded")}
	repo := NewRepository(table)
	seed(t, repo, "a")

	err := repo.BatchUpdate(context.Background(), []int{0}, Update{})
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryRepository))
}

func TestBatchUpdateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(NewMemoryTable())
	seed(t, repo, "a", "b")
	u := Update{Purpose: "Visa", ApplyDate: "2026-01-01"}

	require.NoError(t, repo.BatchUpdate(ctx, []int{0}, u))
	once, err := repo.List(ctx)
	require.NoError(t, err)

	require.NoError(t, repo.BatchUpdate(ctx, []int{0}, u))
	twice, err := repo.List(ctx)
	require.NoError(t, err)

	assert.Equal(t, once, twice)
}

// Positional ids go stale when rows move between List and BatchUpdate.  The
// update lands on whatever row now sits at that offset.
func TestStalePositionalIDHitsDifferentRow(t *testing.T) {
	ctx := context.Background()
	table := NewMemoryTable()
	repo := NewRepository(table)
	seed(t, repo, "a", "b", "c")

	snapshot, err := repo.List(ctx)
	require.NoError(t, err)
	require.Equal(t, "c", snapshot[2].Name)

	// Someone inserts a row above "c" in the sheet.
	inserted := Submission{Name: "x", Status: StatusPending}
	require.NoError(t, table.Insert(HeaderRows+1, inserted.row()))

	require.NoError(t, repo.BatchUpdate(ctx, []int{snapshot[2].ID}, Update{Purpose: "Visa"}))

	now, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, now, 4)
	assert.Equal(t, "b", now[2].Name)
	assert.Equal(t, StatusProcessed, now[2].Status)
	assert.Equal(t, "c", now[3].Name)
	assert.Equal(t, StatusPending, now[3].Status)
}

func TestBatchUpdateByRecordIDSurvivesInsert(t *testing.T) {
	ctx := context.Background()
	table := NewMemoryTable()
	repo := NewRepository(table)
	seed(t, repo, "a", "b", "c")

	inserted := Submission{Name: "x", RecordID: "rid-x", Status: StatusPending}
	require.NoError(t, table.Insert(HeaderRows, inserted.row()))

	require.NoError(t, repo.BatchUpdateByRecordID(ctx, []string{"rid-c"}, Update{Purpose: "Visa"}))

	subs, err := repo.List(ctx)
	require.NoError(t, err)
	for _, s := range subs {
		if s.Name == "c" {
			assert.Equal(t, StatusProcessed, s.Status)
			assert.Equal(t, "Visa", s.Purpose)
		} else {
			assert.Equal(t, StatusPending, s.Status, s.Name)
		}
	}
}

func TestBatchUpdateByRecordIDUnknown(t *testing.T) {
	table := &countingTable{Table: NewMemoryTable()}
	repo := NewRepository(table)
	seed(t, repo, "a")

	err := repo.BatchUpdateByRecordID(context.Background(), []string{"rid-a", "nope"}, Update{})
	assert.ErrorIs(t, err, apperrors.ErrUnknownRecord)
	assert.Equal(t, apperrors.KindValidation, apperrors.Kind(err))
	assert.Zero(t, table.writes)
}
