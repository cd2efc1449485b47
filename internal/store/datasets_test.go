package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/mapforms/pkg/types"
)

func TestDatasets(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name  string
		check func(t *testing.T, b *Backend)
	}{
		{
			name: "create and get dataset",
			check: func(t *testing.T, b *Backend) {
				ds, err := b.CreateDataset(ctx, testTeamspace, "  Trees ")
				require.NoError(t, err)
				assert.NotEmpty(t, ds.DatasetID)
				assert.Equal(t, "Trees", ds.Name)

				got, err := b.GetDataset(ctx, ds.DatasetID)
				require.NoError(t, err)
				assert.Equal(t, ds.DatasetID, got.DatasetID)
				assert.Equal(t, testTeamspace, got.TeamspaceID)
			},
		},
		{
			name: "create dataset rejects empty name and teamspace",
			check: func(t *testing.T, b *Backend) {
				_, err := b.CreateDataset(ctx, testTeamspace, " ")
				assert.ErrorIs(t, err, types.ErrInvalidName)
				_, err = b.CreateDataset(ctx, "", "Trees")
				assert.ErrorIs(t, err, types.ErrInvalidID)
			},
		},
		{
			name: "get missing dataset returns ErrNotFound",
			check: func(t *testing.T, b *Backend) {
				_, err := b.GetDataset(ctx, "nope")
				assert.ErrorIs(t, err, types.ErrNotFound)
			},
		},
		{
			name: "list datasets filters by teamspace",
			check: func(t *testing.T, b *Backend) {
				_, err := b.CreateDataset(ctx, testTeamspace, "A")
				require.NoError(t, err)
				_, err = b.CreateDataset(ctx, testTeamspace, "B")
				require.NoError(t, err)
				_, err = b.CreateDataset(ctx, "other", "C")
				require.NoError(t, err)

				mine, err := b.ListDatasets(ctx, testTeamspace)
				require.NoError(t, err)
				require.Len(t, mine, 2)
				assert.Equal(t, "A", mine[0].Name)
				assert.Equal(t, "B", mine[1].Name)

				all, err := b.ListDatasets(ctx, "")
				require.NoError(t, err)
				assert.Len(t, all, 3)
			},
		},
		{
			name: "delete dataset removes rows and cells",
			check: func(t *testing.T, b *Backend) {
				f := newFixture(t, b)
				row, err := b.CreateRow(ctx, f.dataset.DatasetID)
				require.NoError(t, err)
				require.NoError(t, b.UpsertCell(ctx, row.RowID, f.name.ColumnID, "Oak"))

				require.NoError(t, b.DeleteDataset(ctx, f.dataset.DatasetID))
				_, err = b.GetDataset(ctx, f.dataset.DatasetID)
				assert.ErrorIs(t, err, types.ErrNotFound)
				_, err = b.GetRow(ctx, row.RowID)
				assert.ErrorIs(t, err, types.ErrNotFound)
				assert.Equal(t, 0, countCells(t, b, "string_cells", row.RowID, f.name.ColumnID))
			},
		},
		{
			name: "delete dataset referenced by a layer returns ErrDatasetInUse",
			check: func(t *testing.T, b *Backend) {
				f := newFixture(t, b)
				f.pointLayer(t, b, "Sites")
				err := b.DeleteDataset(ctx, f.dataset.DatasetID)
				assert.ErrorIs(t, err, types.ErrDatasetInUse)
				_, err = b.GetDataset(ctx, f.dataset.DatasetID)
				assert.NoError(t, err)
			},
		},
		{
			name: "delete dataset clears page submission targets",
			check: func(t *testing.T, b *Backend) {
				f := newFixture(t, b)
				page := newPage(t, b)
				require.NoError(t, b.SetSubmissionTarget(ctx, page.PageID, f.dataset.DatasetID))
				require.NoError(t, b.DeleteDataset(ctx, f.dataset.DatasetID))

				got, err := b.GetPage(ctx, page.PageID)
				require.NoError(t, err)
				assert.Empty(t, got.SubmissionDatasetID)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := setupBackend(t)
			tt.check(t, b)
		})
	}
}

func TestColumns(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name  string
		check func(t *testing.T, b *Backend)
	}{
		{
			name: "columns get increasing ordinals",
			check: func(t *testing.T, b *Backend) {
				f := newFixture(t, b)
				cols, err := b.ListColumns(ctx, f.dataset.DatasetID)
				require.NoError(t, err)
				require.Len(t, cols, 5)
				for i, c := range cols {
					assert.Equal(t, i, c.Ordinal)
				}
				assert.Equal(t, "loc", cols[0].Name)
				assert.Equal(t, types.KindPoint, cols[0].Kind)
			},
		},
		{
			name: "duplicate column name returns ErrDuplicateColumn",
			check: func(t *testing.T, b *Backend) {
				f := newFixture(t, b)
				_, err := b.CreateColumn(ctx, f.dataset.DatasetID, "name", types.KindNumber)
				assert.ErrorIs(t, err, types.ErrDuplicateColumn)
			},
		},
		{
			name: "same column name in another dataset is allowed",
			check: func(t *testing.T, b *Backend) {
				newFixture(t, b)
				other, err := b.CreateDataset(ctx, testTeamspace, "Other")
				require.NoError(t, err)
				_, err = b.CreateColumn(ctx, other.DatasetID, "name", types.KindString)
				assert.NoError(t, err)
			},
		},
		{
			name: "unknown kind returns ErrInvalidKind",
			check: func(t *testing.T, b *Backend) {
				f := newFixture(t, b)
				_, err := b.CreateColumn(ctx, f.dataset.DatasetID, "x", types.Kind("blob"))
				assert.ErrorIs(t, err, types.ErrInvalidKind)
			},
		},
		{
			name: "column on missing dataset returns ErrNotFound",
			check: func(t *testing.T, b *Backend) {
				_, err := b.CreateColumn(ctx, "missing", "x", types.KindString)
				assert.ErrorIs(t, err, types.ErrNotFound)
			},
		},
		{
			name: "rename column checks duplicates",
			check: func(t *testing.T, b *Backend) {
				f := newFixture(t, b)
				assert.ErrorIs(t, b.RenameColumn(ctx, f.name.ColumnID, "age"), types.ErrDuplicateColumn)
				require.NoError(t, b.RenameColumn(ctx, f.name.ColumnID, "name"))
				require.NoError(t, b.RenameColumn(ctx, f.name.ColumnID, "label"))
				got, err := b.GetColumn(ctx, f.name.ColumnID)
				require.NoError(t, err)
				assert.Equal(t, "label", got.Name)
				assert.Equal(t, types.KindString, got.Kind)
			},
		},
		{
			name: "delete column removes its cells and no others",
			check: func(t *testing.T, b *Backend) {
				f := newFixture(t, b)
				other, err := b.CreateColumn(ctx, f.dataset.DatasetID, "nickname", types.KindString)
				require.NoError(t, err)
				row, err := b.CreateRow(ctx, f.dataset.DatasetID)
				require.NoError(t, err)
				require.NoError(t, b.BatchUpsert(ctx, row.RowID, map[string]any{
					f.name.ColumnID: "Oak",
					other.ColumnID:  "Oaky",
					f.age.ColumnID:  12,
					f.loc.ColumnID:  map[string]any{"lat": 1.0, "lng": 2.0},
				}))

				require.NoError(t, b.DeleteColumn(ctx, f.name.ColumnID))

				got, err := b.GetRow(ctx, row.RowID)
				require.NoError(t, err)
				assert.NotContains(t, got.Cells, f.name.ColumnID)
				assert.Equal(t, types.StringValue("Oaky"), got.Cells[other.ColumnID])
				assert.Equal(t, types.NumberValue(12), got.Cells[f.age.ColumnID])
				assert.Equal(t, types.PointValue{Lat: 1, Lng: 2}, got.Cells[f.loc.ColumnID])
				_, err = b.GetColumn(ctx, f.name.ColumnID)
				assert.ErrorIs(t, err, types.ErrNotFound)
			},
		},
		{
			name: "delete column bound as geometry returns ErrColumnInUse",
			check: func(t *testing.T, b *Backend) {
				f := newFixture(t, b)
				f.pointLayer(t, b, "Sites")
				assert.ErrorIs(t, b.DeleteColumn(ctx, f.loc.ColumnID), types.ErrColumnInUse)
			},
		},
		{
			name: "delete column clears optional layer roles",
			check: func(t *testing.T, b *Backend) {
				f := newFixture(t, b)
				layer := f.pointLayer(t, b, "Sites")
				require.NoError(t, b.DeleteColumn(ctx, f.name.ColumnID))
				roles, err := b.ResolveRoles(ctx, layer.LayerID)
				require.NoError(t, err)
				assert.Empty(t, roles.Title)
				assert.Equal(t, f.loc.ColumnID, roles.Geometry)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := setupBackend(t)
			tt.check(t, b)
		})
	}
}

func TestRows(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name  string
		check func(t *testing.T, b *Backend)
	}{
		{
			name: "list rows returns cells in creation order",
			check: func(t *testing.T, b *Backend) {
				f := newFixture(t, b)
				var ids []string
				for _, n := range []string{"a", "b", "c"} {
					row, err := b.CreateRow(ctx, f.dataset.DatasetID)
					require.NoError(t, err)
					require.NoError(t, b.UpsertCell(ctx, row.RowID, f.name.ColumnID, n))
					ids = append(ids, row.RowID)
				}
				rows, err := b.ListRows(ctx, f.dataset.DatasetID)
				require.NoError(t, err)
				require.Len(t, rows, 3)
				for i, r := range rows {
					assert.Equal(t, ids[i], r.RowID)
				}
				assert.Equal(t, types.StringValue("b"), rows[1].Cells[f.name.ColumnID])
			},
		},
		{
			name: "delete rows is all or nothing",
			check: func(t *testing.T, b *Backend) {
				f := newFixture(t, b)
				r1, err := b.CreateRow(ctx, f.dataset.DatasetID)
				require.NoError(t, err)
				r2, err := b.CreateRow(ctx, f.dataset.DatasetID)
				require.NoError(t, err)
				require.NoError(t, b.UpsertCell(ctx, r1.RowID, f.name.ColumnID, "x"))

				err = b.DeleteRows(ctx, []string{r1.RowID, "missing"})
				assert.ErrorIs(t, err, types.ErrNotFound)
				_, err = b.GetRow(ctx, r1.RowID)
				require.NoError(t, err)

				require.NoError(t, b.DeleteRows(ctx, []string{r1.RowID, r2.RowID}))
				rows, err := b.ListRows(ctx, f.dataset.DatasetID)
				require.NoError(t, err)
				assert.Empty(t, rows)
				assert.Equal(t, 0, countCells(t, b, "string_cells", r1.RowID, f.name.ColumnID))
			},
		},
		{
			name: "duplicate rows deep copies cells",
			check: func(t *testing.T, b *Backend) {
				f := newFixture(t, b)
				page := newPage(t, b)
				require.NoError(t, b.SetSubmissionTarget(ctx, page.PageID, f.dataset.DatasetID))
				res, err := b.SubmitPage(ctx, page.PageID, "sub-9", map[string]any{
					"name": "Elm",
					"loc":  "10,20",
				})
				require.NoError(t, err)

				copies, err := b.DuplicateRows(ctx, []string{res.RowID})
				require.NoError(t, err)
				require.Len(t, copies, 1)
				assert.NotEqual(t, res.RowID, copies[0])

				dup, err := b.GetRow(ctx, copies[0])
				require.NoError(t, err)
				assert.Empty(t, dup.SubmissionID)
				assert.Equal(t, types.StringValue("Elm"), dup.Cells[f.name.ColumnID])
				assert.Equal(t, types.PointValue{Lat: 10, Lng: 20}, dup.Cells[f.loc.ColumnID])

				require.NoError(t, b.UpsertCell(ctx, copies[0], f.name.ColumnID, "Ash"))
				orig, err := b.GetCell(ctx, res.RowID, f.name.ColumnID)
				require.NoError(t, err)
				assert.Equal(t, types.StringValue("Elm"), orig)
			},
		},
		{
			name: "duplicate missing row returns ErrNotFound",
			check: func(t *testing.T, b *Backend) {
				_, err := b.DuplicateRows(ctx, []string{"missing"})
				assert.ErrorIs(t, err, types.ErrNotFound)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := setupBackend(t)
			tt.check(t, b)
		})
	}
}
