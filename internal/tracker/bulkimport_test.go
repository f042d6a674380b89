package tracker

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBulkImportAppendPartialFailure(t *testing.T) {
	svc, _ := newTestService(t)
	tr := seedTracker(t, svc)

	rows := []map[string]any{
		{"sku": "SKU-1", "qty": 1},
		{"qty": 2}, // missing required sku
		{"sku": "SKU-3", "qty": 3},
	}
	sum, err := svc.BulkImport(context.Background(), owner, tr.ID, rows, ModeAppend)
	require.NoError(t, err)

	assert.Equal(t, 2, sum.Imported)
	assert.Zero(t, sum.Updated)
	require.Len(t, sum.Failed, 1)
	assert.Equal(t, 1, sum.Failed[0].Index)
}

func TestBulkImportAppendFirstOccurrenceWins(t *testing.T) {
	svc, st := newTestService(t)
	tr := seedTracker(t, svc)
	ctx := context.Background()

	rows := []map[string]any{
		{"sku": "SKU-1", "qty": 1},
		{"sku": "SKU-1", "qty": 99},
	}
	sum, err := svc.BulkImport(ctx, owner, tr.ID, rows, ModeAppend)
	require.NoError(t, err)

	assert.Equal(t, 1, sum.Imported)
	require.Len(t, sum.Failed, 1)
	assert.Equal(t, 1, sum.Failed[0].Index)

	kept, err := st.GetRow(ctx, tr.ID, "SKU-1")
	require.NoError(t, err)
	assert.Equal(t, float64(1), kept.Data["qty"], "first occurrence wins")
}

func TestBulkImportUpdateUpserts(t *testing.T) {
	svc, st := newTestService(t)
	tr := seedTracker(t, svc)
	ctx := context.Background()

	_, err := svc.AddRow(ctx, owner, tr.ID, map[string]any{"sku": "SKU-1", "qty": 1, "status": "pending"})
	require.NoError(t, err)

	rows := []map[string]any{
		{"sku": "SKU-1", "qty": 10},
		{"sku": "SKU-2", "qty": 2},
	}
	sum, err := svc.BulkImport(ctx, owner, tr.ID, rows, ModeUpdate)
	require.NoError(t, err)

	assert.Equal(t, 1, sum.Imported)
	assert.Equal(t, 1, sum.Updated)
	assert.Empty(t, sum.Failed)

	patched, err := st.GetRow(ctx, tr.ID, "SKU-1")
	require.NoError(t, err)
	assert.Equal(t, float64(10), patched.Data["qty"])
	assert.Equal(t, "pending", patched.Data["status"], "untouched fields survive the patch")
}

func TestBulkImportReplaceDeletesFirst(t *testing.T) {
	svc, st := newTestService(t)
	tr := seedTracker(t, svc)
	ctx := context.Background()

	_, err := svc.AddRow(ctx, owner, tr.ID, map[string]any{"sku": "OLD-1"})
	require.NoError(t, err)
	_, err = svc.AddRow(ctx, owner, tr.ID, map[string]any{"sku": "OLD-2"})
	require.NoError(t, err)

	sum, err := svc.BulkImport(ctx, owner, tr.ID, []map[string]any{
		{"sku": "NEW-1"},
	}, ModeReplace)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Imported)

	n, err := st.CountRows(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	_, err = st.GetRow(ctx, tr.ID, "NEW-1")
	assert.NoError(t, err)
}

func TestBulkImportBatchSizePreflight(t *testing.T) {
	svc, st := newTestService(t)
	tr := seedTracker(t, svc)
	ctx := context.Background()

	rows := make([]map[string]any, 101)
	for i := range rows {
		rows[i] = map[string]any{"sku": "SKU"}
	}
	_, err := svc.BulkImport(ctx, owner, tr.ID, rows, ModeAppend)
	var sizeErr *SizeLimitError
	require.ErrorAs(t, err, &sizeErr)
	assert.Equal(t, "batch rows", sizeErr.What)

	n, err := st.CountRows(ctx, tr.ID)
	require.NoError(t, err)
	assert.Zero(t, n, "rejected wholesale before any row is touched")
}

func TestBulkImportCellLengthPreflight(t *testing.T) {
	svc, st := newTestService(t)
	tr := seedTracker(t, svc)
	ctx := context.Background()

	rows := []map[string]any{
		{"sku": "SKU-1"},
		{"sku": strings.Repeat("x", 101)},
	}
	_, err := svc.BulkImport(ctx, owner, tr.ID, rows, ModeAppend)
	var sizeErr *SizeLimitError
	require.ErrorAs(t, err, &sizeErr)
	assert.Equal(t, "cell text", sizeErr.What)

	n, err := st.CountRows(ctx, tr.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestBulkImportUnknownMode(t *testing.T) {
	svc, _ := newTestService(t)
	tr := seedTracker(t, svc)

	_, err := svc.BulkImport(context.Background(), owner, tr.ID, nil, ImportMode("merge"))
	var malErr *MalformedInputError
	require.ErrorAs(t, err, &malErr)
}

func TestImportCSV(t *testing.T) {
	svc, st := newTestService(t)
	tr := seedTracker(t, svc)
	ctx := context.Background()

	text := "SKU,Quantity,Status\nSKU-1,5,pending\nSKU-2,8,shipped\n"
	sum, err := svc.ImportCSV(ctx, owner, tr.ID, text, ModeAppend)
	require.NoError(t, err)

	assert.Equal(t, 2, sum.Imported)
	assert.Empty(t, sum.Failed)

	row, err := st.GetRow(ctx, tr.ID, "SKU-1")
	require.NoError(t, err)
	assert.Equal(t, float64(5), row.Data["qty"])
	assert.Equal(t, "pending", row.Data["status"])
}

func TestImportCSVSanitizesFormulaCells(t *testing.T) {
	svc, st := newTestService(t)
	tr := seedTracker(t, svc)
	ctx := context.Background()

	text := "SKU,Quantity\n=HYPERLINK(1),3\n"
	sum, err := svc.ImportCSV(ctx, owner, tr.ID, text, ModeAppend)
	require.NoError(t, err)
	require.Equal(t, 1, sum.Imported)

	row, err := st.GetRow(ctx, tr.ID, "'=HYPERLINK(1)")
	require.NoError(t, err)
	assert.Equal(t, "'=HYPERLINK(1)", row.Data["sku"])
}

func TestImportCSVSizePreflight(t *testing.T) {
	svc, _ := newTestService(t)
	tr := seedTracker(t, svc)

	text := "SKU\n" + strings.Repeat("a\n", 4096)
	_, err := svc.ImportCSV(context.Background(), owner, tr.ID, text, ModeAppend)
	var sizeErr *SizeLimitError
	require.ErrorAs(t, err, &sizeErr)
	assert.Equal(t, "csv bytes", sizeErr.What)
}
