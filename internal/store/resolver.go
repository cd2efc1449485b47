package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/mesh-intelligence/mapforms/pkg/types"
)

// ResolvePageData assembles the blocks and visible layer features of a page
// at step. All reads share one transaction.
func (b *Backend) ResolvePageData(ctx context.Context, pageID string, step int) (*types.PageDataBundle, error) {
	if step < 0 {
		return nil, fmt.Errorf("%w: step %d", types.ErrInvalidStepRange, step)
	}
	var bundle *types.PageDataBundle
	err := b.withReadTx(ctx, func(tx *sql.Tx) error {
		page, err := b.getPage(ctx, tx, pageID)
		if err != nil {
			return err
		}
		blocks, err := b.listBlocks(ctx, tx, pageID)
		if err != nil {
			return err
		}
		atts, err := b.listAttachments(ctx, tx, pageID)
		if err != nil {
			return err
		}
		tracks, err := b.listTracks(ctx, tx, pageID)
		if err != nil {
			return err
		}

		bundle = &types.PageDataBundle{
			Page:   *page,
			Step:   step,
			Blocks: blocks,
			Layers: []types.ResolvedLayer{},
		}
		for _, pos := range visiblePositions(len(atts), step, tracks) {
			layer, err := b.getLayer(ctx, tx, atts[pos].LayerID)
			if err != nil {
				return err
			}
			records, err := b.layerRecords(ctx, tx, layer)
			if err != nil {
				return err
			}
			bundle.Layers = append(bundle.Layers, types.ResolvedLayer{
				Layer:    *layer,
				Position: pos,
				Records:  records,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	b.log.Debug().Str("page_id", pageID).Int("step", step).Int("layers", len(bundle.Layers)).Msg("page resolved")
	return bundle, nil
}

// layerRecords builds one record per row holding a geometry cell, ordered
// by row ID. Each optional role costs one query for the whole layer.
func (b *Backend) layerRecords(ctx context.Context, tx *sql.Tx, layer *types.Layer) ([]types.RenderRecord, error) {
	geomCol, err := b.getColumn(ctx, tx, layer.Roles.Geometry)
	if err != nil {
		return nil, err
	}
	geoms, err := b.columnCells(ctx, tx, geomCol)
	if err != nil {
		return nil, err
	}

	optional := map[types.Role]map[string]types.Value{}
	for _, binding := range layer.Roles.Bindings() {
		if binding.Role == types.RoleGeometry {
			continue
		}
		col, err := b.getColumn(ctx, tx, binding.ColumnID)
		if err != nil {
			return nil, err
		}
		if optional[binding.Role], err = b.columnCells(ctx, tx, col); err != nil {
			return nil, err
		}
	}

	rowIDs := make([]string, 0, len(geoms))
	for id := range geoms {
		rowIDs = append(rowIDs, id)
	}
	sort.Strings(rowIDs)

	records := make([]types.RenderRecord, 0, len(rowIDs))
	for _, id := range rowIDs {
		records = append(records, types.RenderRecord{
			RowID:       id,
			LayerID:     layer.LayerID,
			Geometry:    geoms[id],
			Title:       optional[types.RoleTitle][id],
			Description: optional[types.RoleDescription][id],
			Icon:        optional[types.RoleIcon][id],
		})
	}
	return records, nil
}

// ResolveLayerPoint returns the record of one row on a point layer. A layer
// of another type has no point records: the error matches both ErrNotFound
// and ErrInvalidLayerType.
func (b *Backend) ResolveLayerPoint(ctx context.Context, layerID, rowID string) (*types.RenderRecord, error) {
	var rec *types.RenderRecord
	err := b.withReadTx(ctx, func(tx *sql.Tx) error {
		layer, err := b.getLayer(ctx, tx, layerID)
		if err != nil {
			return err
		}
		if layer.Type != types.LayerPoint {
			return fmt.Errorf("point of %s layer %s: %w: %w", layer.Type, layerID, types.ErrNotFound, types.ErrInvalidLayerType)
		}
		rec, err = b.rowRecord(ctx, tx, layer, rowID)
		return err
	})
	return rec, err
}

// ResolveLayerMarker returns the record of one row on any layer together
// with all of the row's values keyed by column name.
func (b *Backend) ResolveLayerMarker(ctx context.Context, layerID, rowID string) (*types.RenderRecord, error) {
	var rec *types.RenderRecord
	err := b.withReadTx(ctx, func(tx *sql.Tx) error {
		layer, err := b.getLayer(ctx, tx, layerID)
		if err != nil {
			return err
		}
		if rec, err = b.rowRecord(ctx, tx, layer, rowID); err != nil {
			return err
		}
		cols, err := b.listColumns(ctx, tx, layer.DatasetID)
		if err != nil {
			return err
		}
		cells, err := b.rowCells(ctx, tx, rowID)
		if err != nil {
			return err
		}
		rec.Attributes = make(map[string]types.Value, len(cells))
		for _, c := range cols {
			if v, ok := cells[c.ColumnID]; ok {
				rec.Attributes[c.Name] = v
			}
		}
		return nil
	})
	return rec, err
}

// rowRecord builds the record of one row. The row must belong to the
// layer's dataset and hold a geometry.
func (b *Backend) rowRecord(ctx context.Context, tx *sql.Tx, layer *types.Layer, rowID string) (*types.RenderRecord, error) {
	row, err := b.getRow(ctx, tx, rowID)
	if err != nil {
		return nil, err
	}
	if row.DatasetID != layer.DatasetID {
		return nil, fmt.Errorf("row %s on layer %s: %w", rowID, layer.LayerID, types.ErrNotFound)
	}
	rec := &types.RenderRecord{RowID: rowID, LayerID: layer.LayerID}
	for _, binding := range layer.Roles.Bindings() {
		col, err := b.getColumn(ctx, tx, binding.ColumnID)
		if err != nil {
			return nil, err
		}
		v, err := b.readCell(ctx, tx, rowID, col)
		if err != nil {
			if binding.Role != types.RoleGeometry && isNotFound(err) {
				continue
			}
			return nil, err
		}
		switch binding.Role {
		case types.RoleGeometry:
			rec.Geometry = v
		case types.RoleTitle:
			rec.Title = v
		case types.RoleDescription:
			rec.Description = v
		case types.RoleIcon:
			rec.Icon = v
		}
	}
	return rec, nil
}
