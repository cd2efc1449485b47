package store

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/mapforms/pkg/types"
)

func TestResolvePageData(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name  string
		check func(t *testing.T, b *Backend, f fixture)
	}{
		{
			name: "submitted point appears as a render record",
			check: func(t *testing.T, b *Backend, f fixture) {
				row, err := b.CreateRow(ctx, f.dataset.DatasetID)
				require.NoError(t, err)
				page := newPage(t, b)
				require.NoError(t, b.SetSubmissionTarget(ctx, page.PageID, f.dataset.DatasetID))
				layer := f.pointLayer(t, b, "Sites")
				_, err = b.AttachLayer(ctx, page.PageID, layer.LayerID)
				require.NoError(t, err)

				res, err := b.SubmitPage(ctx, page.PageID, row.RowID, map[string]any{
					"loc": map[string]any{"lat": 40.7, "lng": -74.0},
				})
				require.NoError(t, err)
				assert.Equal(t, row.RowID, res.RowID)
				assert.False(t, res.Created)

				bundle, err := b.ResolvePageData(ctx, page.PageID, 0)
				require.NoError(t, err)
				require.Len(t, bundle.Layers, 1)
				records := bundle.Layers[0].Records
				require.Len(t, records, 1)
				assert.Equal(t, row.RowID, records[0].RowID)
				assert.Equal(t, types.PointValue{Lat: 40.7, Lng: -74.0}, records[0].Geometry)
				assert.Nil(t, records[0].Title)
			},
		},
		{
			name: "tracked layer is hidden outside its range",
			check: func(t *testing.T, b *Backend, f fixture) {
				page, ids := attachN(t, b, f, 2)
				_, err := b.CreateDataTrack(ctx, page.PageID, 0, 2, 1)
				require.NoError(t, err)

				bundle, err := b.ResolvePageData(ctx, page.PageID, 5)
				require.NoError(t, err)
				require.Len(t, bundle.Layers, 1)
				assert.Equal(t, ids[0], bundle.Layers[0].Layer.LayerID)
				assert.Equal(t, 0, bundle.Layers[0].Position)

				bundle, err = b.ResolvePageData(ctx, page.PageID, 2)
				require.NoError(t, err)
				require.Len(t, bundle.Layers, 2)
				assert.Equal(t, ids[1], bundle.Layers[1].Layer.LayerID)
			},
		},
		{
			name: "rows without geometry are skipped and optional roles filled",
			check: func(t *testing.T, b *Backend, f fixture) {
				layer, err := b.CreateLayer(ctx, f.dataset.DatasetID, "Sites", types.LayerPoint, types.Roles{
					Geometry:    f.loc.ColumnID,
					Title:       f.name.ColumnID,
					Description: f.notes.ColumnID,
					Icon:        f.icon.ColumnID,
				})
				require.NoError(t, err)
				page := newPage(t, b)
				_, err = b.AttachLayer(ctx, page.PageID, layer.LayerID)
				require.NoError(t, err)

				full, err := b.CreateRow(ctx, f.dataset.DatasetID)
				require.NoError(t, err)
				require.NoError(t, b.BatchUpsert(ctx, full.RowID, map[string]any{
					f.loc.ColumnID:   "1,1",
					f.name.ColumnID:  "Full",
					f.notes.ColumnID: `{"type":"doc"}`,
					f.icon.ColumnID:  "star",
				}))
				bare, err := b.CreateRow(ctx, f.dataset.DatasetID)
				require.NoError(t, err)
				require.NoError(t, b.UpsertCell(ctx, bare.RowID, f.loc.ColumnID, "2,2"))
				hidden, err := b.CreateRow(ctx, f.dataset.DatasetID)
				require.NoError(t, err)
				require.NoError(t, b.UpsertCell(ctx, hidden.RowID, f.name.ColumnID, "No geometry"))

				bundle, err := b.ResolvePageData(ctx, page.PageID, 0)
				require.NoError(t, err)
				records := bundle.Layers[0].Records
				require.Len(t, records, 2)
				assert.Equal(t, full.RowID, records[0].RowID)
				assert.Equal(t, types.StringValue("Full"), records[0].Title)
				assert.Equal(t, types.RichTextValue(`{"type":"doc"}`), records[0].Description)
				assert.Equal(t, types.IconValue("star"), records[0].Icon)
				assert.Equal(t, bare.RowID, records[1].RowID)
				assert.Nil(t, records[1].Title)
				assert.Nil(t, records[1].Icon)
			},
		},
		{
			name: "bundle carries blocks in order",
			check: func(t *testing.T, b *Backend, f fixture) {
				page := newPage(t, b)
				_, err := b.AddBlock(ctx, page.PageID, "heading", json.RawMessage(`{"text":"Hi"}`), "")
				require.NoError(t, err)
				_, err = b.AddBlock(ctx, page.PageID, "input", nil, f.name.ColumnID)
				require.NoError(t, err)

				bundle, err := b.ResolvePageData(ctx, page.PageID, 0)
				require.NoError(t, err)
				require.Len(t, bundle.Blocks, 2)
				assert.Equal(t, "heading", bundle.Blocks[0].Kind)
				assert.JSONEq(t, `{"text":"Hi"}`, string(bundle.Blocks[0].Content))
				assert.Equal(t, f.name.ColumnID, bundle.Blocks[1].ColumnID)
				assert.Empty(t, bundle.Layers)
			},
		},
		{
			name: "negative step and missing page are rejected",
			check: func(t *testing.T, b *Backend, f fixture) {
				page := newPage(t, b)
				_, err := b.ResolvePageData(ctx, page.PageID, -1)
				assert.ErrorIs(t, err, types.ErrInvalidStepRange)
				_, err = b.ResolvePageData(ctx, "missing", 0)
				assert.ErrorIs(t, err, types.ErrNotFound)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := setupBackend(t)
			tt.check(t, b, newFixture(t, b))
		})
	}
}

func TestResolveSingleRow(t *testing.T) {
	ctx := context.Background()
	b := setupBackend(t)
	f := newFixture(t, b)
	layer := f.pointLayer(t, b, "Sites")
	row, err := b.CreateRow(ctx, f.dataset.DatasetID)
	require.NoError(t, err)
	require.NoError(t, b.BatchUpsert(ctx, row.RowID, map[string]any{
		f.loc.ColumnID:  "5,6",
		f.name.ColumnID: "Pier",
		f.age.ColumnID:  3,
	}))

	rec, err := b.ResolveLayerPoint(ctx, layer.LayerID, row.RowID)
	require.NoError(t, err)
	assert.Equal(t, types.PointValue{Lat: 5, Lng: 6}, rec.Geometry)
	assert.Equal(t, types.StringValue("Pier"), rec.Title)
	assert.Nil(t, rec.Attributes)

	marker, err := b.ResolveLayerMarker(ctx, layer.LayerID, row.RowID)
	require.NoError(t, err)
	assert.Equal(t, map[string]types.Value{
		"loc":  types.PointValue{Lat: 5, Lng: 6},
		"name": types.StringValue("Pier"),
		"age":  types.NumberValue(3),
	}, marker.Attributes)

	empty, err := b.CreateRow(ctx, f.dataset.DatasetID)
	require.NoError(t, err)
	_, err = b.ResolveLayerPoint(ctx, layer.LayerID, empty.RowID)
	assert.ErrorIs(t, err, types.ErrNotFound)
	_, err = b.ResolveLayerMarker(ctx, "missing", row.RowID)
	assert.ErrorIs(t, err, types.ErrNotFound)

	path, err := b.CreateColumn(ctx, f.dataset.DatasetID, "path", types.KindLine)
	require.NoError(t, err)
	route, err := b.CreateLayer(ctx, f.dataset.DatasetID, "Route", types.LayerLine, types.Roles{Geometry: path.ColumnID})
	require.NoError(t, err)
	_, err = b.ResolveLayerPoint(ctx, route.LayerID, row.RowID)
	assert.ErrorIs(t, err, types.ErrNotFound)
	assert.ErrorIs(t, err, types.ErrInvalidLayerType)
}
