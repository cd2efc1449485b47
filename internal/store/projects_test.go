package store

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/mapforms/pkg/types"
)

func TestProjects(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name  string
		check func(t *testing.T, b *Backend, f fixture)
	}{
		{
			name: "create and get project",
			check: func(t *testing.T, b *Backend, f fixture) {
				p, err := b.CreateProject(ctx, testTeamspace, "  Harbor  ")
				require.NoError(t, err)
				assert.Equal(t, "Harbor", p.Name)

				got, err := b.GetProject(ctx, p.ProjectID)
				require.NoError(t, err)
				assert.Equal(t, p.ProjectID, got.ProjectID)
				assert.Equal(t, testTeamspace, got.TeamspaceID)
				assert.Equal(t, p.CreatedAt.Unix(), got.CreatedAt.Unix())
			},
		},
		{
			name: "project needs a teamspace and a name",
			check: func(t *testing.T, b *Backend, f fixture) {
				_, err := b.CreateProject(ctx, "", "Harbor")
				assert.ErrorIs(t, err, types.ErrInvalidID)
				_, err = b.CreateProject(ctx, testTeamspace, " ")
				assert.ErrorIs(t, err, types.ErrInvalidName)
				_, err = b.GetProject(ctx, "missing")
				assert.ErrorIs(t, err, types.ErrNotFound)
			},
		},
		{
			name: "pages are appended in order",
			check: func(t *testing.T, b *Backend, f fixture) {
				first := newPage(t, b)
				second, err := b.CreatePage(ctx, first.ProjectID)
				require.NoError(t, err)
				assert.Equal(t, 0, first.Ordinal)
				assert.Equal(t, 1, second.Ordinal)

				pages, err := b.ListPages(ctx, first.ProjectID)
				require.NoError(t, err)
				require.Len(t, pages, 2)
				assert.Equal(t, first.PageID, pages[0].PageID)
				assert.Equal(t, second.PageID, pages[1].PageID)

				_, err = b.CreatePage(ctx, "missing")
				assert.ErrorIs(t, err, types.ErrNotFound)
				_, err = b.ListPages(ctx, "missing")
				assert.ErrorIs(t, err, types.ErrNotFound)
			},
		},
		{
			name: "deleting a page removes its blocks and compacts ordinals",
			check: func(t *testing.T, b *Backend, f fixture) {
				first := newPage(t, b)
				second, err := b.CreatePage(ctx, first.ProjectID)
				require.NoError(t, err)
				third, err := b.CreatePage(ctx, first.ProjectID)
				require.NoError(t, err)
				_, err = b.AddBlock(ctx, second.PageID, "heading", nil, "")
				require.NoError(t, err)
				layer := f.pointLayer(t, b, "Sites")
				_, err = b.AttachLayer(ctx, second.PageID, layer.LayerID)
				require.NoError(t, err)

				require.NoError(t, b.DeletePage(ctx, second.PageID))

				_, err = b.GetPage(ctx, second.PageID)
				assert.ErrorIs(t, err, types.ErrNotFound)
				got, err := b.GetPage(ctx, third.PageID)
				require.NoError(t, err)
				assert.Equal(t, 1, got.Ordinal)

				var n int
				require.NoError(t, b.db.QueryRow("SELECT COUNT(*) FROM blocks WHERE page_id = ?", second.PageID).Scan(&n))
				assert.Zero(t, n)
				require.NoError(t, b.db.QueryRow("SELECT COUNT(*) FROM layers_to_pages WHERE page_id = ?", second.PageID).Scan(&n))
				assert.Zero(t, n)
			},
		},
		{
			name: "submission target can be set and cleared",
			check: func(t *testing.T, b *Backend, f fixture) {
				page := newPage(t, b)
				require.NoError(t, b.SetSubmissionTarget(ctx, page.PageID, f.dataset.DatasetID))
				got, err := b.GetPage(ctx, page.PageID)
				require.NoError(t, err)
				assert.Equal(t, f.dataset.DatasetID, got.SubmissionDatasetID)

				require.NoError(t, b.SetSubmissionTarget(ctx, page.PageID, ""))
				got, err = b.GetPage(ctx, page.PageID)
				require.NoError(t, err)
				assert.Empty(t, got.SubmissionDatasetID)

				err = b.SetSubmissionTarget(ctx, page.PageID, "missing")
				assert.ErrorIs(t, err, types.ErrNotFound)
			},
		},
		{
			name: "datasets of another teamspace cannot back a page",
			check: func(t *testing.T, b *Backend, f fixture) {
				page := newPage(t, b)
				ds, loc, _ := foreignDataset(t, b)

				err := b.SetSubmissionTarget(ctx, page.PageID, ds.DatasetID)
				assert.ErrorIs(t, err, types.ErrNotFound)
				got, err := b.GetPage(ctx, page.PageID)
				require.NoError(t, err)
				assert.Empty(t, got.SubmissionDatasetID)

				_, err = b.AddBlock(ctx, page.PageID, "input", nil, loc.ColumnID)
				assert.ErrorIs(t, err, types.ErrNotFound)
				blocks, err := b.ListBlocks(ctx, page.PageID)
				require.NoError(t, err)
				assert.Empty(t, blocks)
			},
		},
		{
			name: "blocks are validated and ordered",
			check: func(t *testing.T, b *Backend, f fixture) {
				page := newPage(t, b)
				_, err := b.AddBlock(ctx, page.PageID, "", nil, "")
				assert.ErrorIs(t, err, types.ErrInvalidName)
				_, err = b.AddBlock(ctx, page.PageID, "text", json.RawMessage(`{broken`), "")
				assert.ErrorIs(t, err, types.ErrInvalidValue)
				_, err = b.AddBlock(ctx, page.PageID, "input", nil, "missing")
				assert.ErrorIs(t, err, types.ErrNotFound)

				heading, err := b.AddBlock(ctx, page.PageID, "heading", json.RawMessage(`{"text":"Hi"}`), "")
				require.NoError(t, err)
				input, err := b.AddBlock(ctx, page.PageID, "input", nil, f.name.ColumnID)
				require.NoError(t, err)
				assert.Equal(t, 0, heading.Ordinal)
				assert.Equal(t, 1, input.Ordinal)

				blocks, err := b.ListBlocks(ctx, page.PageID)
				require.NoError(t, err)
				require.Len(t, blocks, 2)
				assert.Equal(t, heading.BlockID, blocks[0].BlockID)
				assert.Nil(t, blocks[1].Content)
				assert.Equal(t, f.name.ColumnID, blocks[1].ColumnID)
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
