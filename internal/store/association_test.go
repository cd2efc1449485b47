package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/mapforms/pkg/types"
)

// attachN creates n point layers and attaches them to a fresh page in
// order.
func attachN(t *testing.T, b *Backend, f fixture, n int) (*types.Page, []string) {
	t.Helper()
	page := newPage(t, b)
	ids := make([]string, n)
	for i := range ids {
		layer := f.pointLayer(t, b, "L")
		_, err := b.AttachLayer(context.Background(), page.PageID, layer.LayerID)
		require.NoError(t, err)
		ids[i] = layer.LayerID
	}
	return page, ids
}

// foreignDataset creates a dataset with a point column, a point layer and one
// located row in a teamspace other than the fixture's.
func foreignDataset(t *testing.T, b *Backend) (*types.Dataset, *types.Column, *types.Layer) {
	t.Helper()
	ctx := context.Background()
	ds, err := b.CreateDataset(ctx, "team-2", "Private")
	require.NoError(t, err)
	loc, err := b.CreateColumn(ctx, ds.DatasetID, "loc", types.KindPoint)
	require.NoError(t, err)
	layer, err := b.CreateLayer(ctx, ds.DatasetID, "Private", types.LayerPoint, types.Roles{Geometry: loc.ColumnID})
	require.NoError(t, err)
	row, err := b.CreateRow(ctx, ds.DatasetID)
	require.NoError(t, err)
	require.NoError(t, b.UpsertCell(ctx, row.RowID, loc.ColumnID, "1,1"))
	return ds, loc, layer
}

func pageOrder(t *testing.T, b *Backend, pageID string) []string {
	t.Helper()
	atts, err := b.ListPageLayers(context.Background(), pageID)
	require.NoError(t, err)
	out := make([]string, len(atts))
	for i, a := range atts {
		require.Equal(t, i, a.Position)
		out[i] = a.LayerID
	}
	return out
}

func TestPageLayers(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name  string
		check func(t *testing.T, b *Backend, f fixture)
	}{
		{
			name: "attach appends at the next position",
			check: func(t *testing.T, b *Backend, f fixture) {
				page, ids := attachN(t, b, f, 3)
				assert.Equal(t, ids, pageOrder(t, b, page.PageID))
			},
		},
		{
			name: "layer from another teamspace is not attached",
			check: func(t *testing.T, b *Backend, f fixture) {
				page := newPage(t, b)
				_, _, layer := foreignDataset(t, b)
				_, err := b.AttachLayer(ctx, page.PageID, layer.LayerID)
				assert.ErrorIs(t, err, types.ErrNotFound)

				assert.Empty(t, pageOrder(t, b, page.PageID))
				bundle, err := b.ResolvePageData(ctx, page.PageID, 0)
				require.NoError(t, err)
				assert.Empty(t, bundle.Layers)
			},
		},
		{
			name: "attaching twice returns ErrLayerAttached",
			check: func(t *testing.T, b *Backend, f fixture) {
				page, ids := attachN(t, b, f, 1)
				_, err := b.AttachLayer(ctx, page.PageID, ids[0])
				assert.ErrorIs(t, err, types.ErrLayerAttached)
			},
		},
		{
			name: "attach missing layer returns ErrNotFound",
			check: func(t *testing.T, b *Backend, f fixture) {
				page := newPage(t, b)
				_, err := b.AttachLayer(ctx, page.PageID, "missing")
				assert.ErrorIs(t, err, types.ErrNotFound)
			},
		},
		{
			name: "detach compacts positions",
			check: func(t *testing.T, b *Backend, f fixture) {
				page, ids := attachN(t, b, f, 3)
				require.NoError(t, b.DetachLayer(ctx, page.PageID, ids[1]))
				assert.Equal(t, []string{ids[0], ids[2]}, pageOrder(t, b, page.PageID))
			},
		},
		{
			name: "detach unattached layer returns ErrNotFound",
			check: func(t *testing.T, b *Backend, f fixture) {
				page, _ := attachN(t, b, f, 1)
				other := f.pointLayer(t, b, "Other")
				assert.ErrorIs(t, b.DetachLayer(ctx, page.PageID, other.LayerID), types.ErrNotFound)
			},
		},
		{
			name: "reorder with a permutation rewrites positions",
			check: func(t *testing.T, b *Backend, f fixture) {
				page, ids := attachN(t, b, f, 3)
				order := []string{ids[2], ids[0], ids[1]}
				require.NoError(t, b.ReorderLayers(ctx, page.PageID, order))
				assert.Equal(t, order, pageOrder(t, b, page.PageID))
			},
		},
		{
			name: "reorder missing a layer returns ErrIncompleteOrder and keeps order",
			check: func(t *testing.T, b *Backend, f fixture) {
				page, ids := attachN(t, b, f, 3)
				err := b.ReorderLayers(ctx, page.PageID, []string{ids[2], ids[0]})
				assert.ErrorIs(t, err, types.ErrIncompleteOrder)
				assert.Equal(t, ids, pageOrder(t, b, page.PageID))
			},
		},
		{
			name: "reorder with duplicates returns ErrIncompleteOrder",
			check: func(t *testing.T, b *Backend, f fixture) {
				page, ids := attachN(t, b, f, 2)
				err := b.ReorderLayers(ctx, page.PageID, []string{ids[0], ids[0]})
				assert.ErrorIs(t, err, types.ErrIncompleteOrder)
			},
		},
		{
			name: "reorder that retargets a track is rejected",
			check: func(t *testing.T, b *Backend, f fixture) {
				page, ids := attachN(t, b, f, 2)
				track, err := b.CreateDataTrack(ctx, page.PageID, 0, 2, 1)
				require.NoError(t, err)
				assert.Equal(t, ids[1], track.LayerID)

				err = b.ReorderLayers(ctx, page.PageID, []string{ids[1], ids[0]})
				require.ErrorIs(t, err, types.ErrStaleDataTrackReference)
				var stale *types.StaleTrackError
				require.True(t, errors.As(err, &stale))
				assert.Equal(t, track.TrackID, stale.TrackID)
				assert.Equal(t, ids, pageOrder(t, b, page.PageID))
			},
		},
		{
			name: "detach that shifts a tracked layer is rejected",
			check: func(t *testing.T, b *Backend, f fixture) {
				page, ids := attachN(t, b, f, 3)
				_, err := b.CreateDataTrack(ctx, page.PageID, 1, 4, 2)
				require.NoError(t, err)
				err = b.DetachLayer(ctx, page.PageID, ids[0])
				assert.ErrorIs(t, err, types.ErrStaleDataTrackReference)
				assert.Equal(t, ids, pageOrder(t, b, page.PageID))
			},
		},
		{
			name: "detaching a tracked layer removes its tracks",
			check: func(t *testing.T, b *Backend, f fixture) {
				page, ids := attachN(t, b, f, 2)
				_, err := b.CreateDataTrack(ctx, page.PageID, 0, 1, 1)
				require.NoError(t, err)
				require.NoError(t, b.DetachLayer(ctx, page.PageID, ids[1]))
				tracks, err := b.ListDataTracks(ctx, page.PageID)
				require.NoError(t, err)
				assert.Empty(t, tracks)
			},
		},
		{
			name: "track range and index are validated",
			check: func(t *testing.T, b *Backend, f fixture) {
				page, _ := attachN(t, b, f, 1)
				_, err := b.CreateDataTrack(ctx, page.PageID, 3, 2, 0)
				assert.ErrorIs(t, err, types.ErrInvalidStepRange)
				_, err = b.CreateDataTrack(ctx, page.PageID, -1, 2, 0)
				assert.ErrorIs(t, err, types.ErrInvalidStepRange)
				_, err = b.CreateDataTrack(ctx, page.PageID, 0, 2, 1)
				assert.ErrorIs(t, err, types.ErrNotFound)
			},
		},
		{
			name: "delete track",
			check: func(t *testing.T, b *Backend, f fixture) {
				page, _ := attachN(t, b, f, 1)
				track, err := b.CreateDataTrack(ctx, page.PageID, 0, 0, 0)
				require.NoError(t, err)
				require.NoError(t, b.DeleteDataTrack(ctx, track.TrackID))
				assert.ErrorIs(t, b.DeleteDataTrack(ctx, track.TrackID), types.ErrNotFound)
			},
		},
		{
			name: "delete page removes attachments and compacts page order",
			check: func(t *testing.T, b *Backend, f fixture) {
				page, _ := attachN(t, b, f, 1)
				second, err := b.CreatePage(ctx, page.ProjectID)
				require.NoError(t, err)
				require.Equal(t, 1, second.Ordinal)

				require.NoError(t, b.DeletePage(ctx, page.PageID))
				pages, err := b.ListPages(ctx, page.ProjectID)
				require.NoError(t, err)
				require.Len(t, pages, 1)
				assert.Equal(t, second.PageID, pages[0].PageID)
				assert.Equal(t, 0, pages[0].Ordinal)
				_, err = b.ListPageLayers(ctx, page.PageID)
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
