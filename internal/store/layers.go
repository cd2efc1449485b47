package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"

	"github.com/mesh-intelligence/mapforms/pkg/types"
)

var layerFields = []string{
	"layer_id", "dataset_id", "name", "layer_type",
	"geometry_column_id", "title_column_id", "description_column_id", "icon_column_id",
	"created_at",
}

// CreateLayer creates a layer over a dataset. Every bound column must belong
// to the dataset and fit its role.
func (b *Backend) CreateLayer(ctx context.Context, datasetID, name string, t types.LayerType, roles types.Roles) (*types.Layer, error) {
	name = strings.TrimSpace(name)
	if !types.ValidLayerType(t) {
		return nil, fmt.Errorf("%w: %q", types.ErrInvalidLayerType, t)
	}
	if name == "" {
		return nil, fmt.Errorf("layer: %w", types.ErrInvalidName)
	}
	var layer *types.Layer
	err := b.withTx(ctx, func(tx *sql.Tx) error {
		if err := b.authorizeDataset(ctx, tx, datasetID); err != nil {
			return err
		}
		if err := b.checkRoles(ctx, tx, datasetID, t, roles); err != nil {
			return err
		}
		layer = &types.Layer{
			LayerID:   generateID(),
			DatasetID: datasetID,
			Name:      name,
			Type:      t,
			Roles:     roles,
			CreatedAt: now(),
		}
		_, err := execSQL(ctx, tx, b.qb.Insert("layers").Columns(layerFields...).Values(
			layer.LayerID, layer.DatasetID, layer.Name, string(layer.Type),
			roles.Geometry, nullString(roles.Title), nullString(roles.Description), nullString(roles.Icon),
			formatTime(layer.CreatedAt),
		))
		if err != nil {
			return fmt.Errorf("inserting layer: %w", err)
		}
		return nil
	})
	if err != nil {
		b.log.Warn().Err(err).Str("dataset_id", datasetID).Msg("layer rejected")
		return nil, err
	}
	b.log.Debug().Str("layer_id", layer.LayerID).Str("type", string(t)).Msg("layer created")
	return layer, nil
}

// UpdateLayer renames a layer and rebinds its roles. An empty name keeps
// the current one. The type is fixed at creation.
func (b *Backend) UpdateLayer(ctx context.Context, layerID, name string, t types.LayerType, roles types.Roles) (*types.Layer, error) {
	var layer *types.Layer
	err := b.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		if layer, err = b.getLayer(ctx, tx, layerID); err != nil {
			return err
		}
		if t != "" && t != layer.Type {
			return fmt.Errorf("layer %s is %s, not %s: %w", layerID, layer.Type, t, types.ErrLayerTypeImmutable)
		}
		if err := b.authorizeDataset(ctx, tx, layer.DatasetID); err != nil {
			return err
		}
		if err := b.checkRoles(ctx, tx, layer.DatasetID, layer.Type, roles); err != nil {
			return err
		}
		if n := strings.TrimSpace(name); n != "" {
			layer.Name = n
		}
		layer.Roles = roles
		_, err = execSQL(ctx, tx, b.qb.Update("layers").SetMap(map[string]any{
			"name":                  layer.Name,
			"geometry_column_id":    roles.Geometry,
			"title_column_id":       nullString(roles.Title),
			"description_column_id": nullString(roles.Description),
			"icon_column_id":        nullString(roles.Icon),
		}).Where(squirrel.Eq{"layer_id": layerID}))
		if err != nil {
			return fmt.Errorf("updating layer: %w", err)
		}
		return nil
	})
	if err != nil {
		b.log.Warn().Err(err).Str("layer_id", layerID).Msg("layer update rejected")
		return nil, err
	}
	b.log.Debug().Str("layer_id", layerID).Msg("layer updated")
	return layer, nil
}

// checkRoles verifies that every bound column exists in datasetID and that
// its kind fits the role on a layer of type t.
func (b *Backend) checkRoles(ctx context.Context, tx *sql.Tx, datasetID string, t types.LayerType, roles types.Roles) error {
	if roles.Geometry == "" {
		return fmt.Errorf("%w: geometry column is required", types.ErrRoleTypeMismatch)
	}
	for _, binding := range roles.Bindings() {
		col, err := b.getColumn(ctx, tx, binding.ColumnID)
		if err != nil {
			return fmt.Errorf("%s role: %w", binding.Role, err)
		}
		if col.DatasetID != datasetID {
			return fmt.Errorf("%s role: column %s not in dataset %s: %w",
				binding.Role, col.ColumnID, datasetID, types.ErrNotFound)
		}
		if err := types.CheckRole(t, binding.Role, types.KindOf(col)); err != nil {
			return err
		}
	}
	return nil
}

// GetLayer returns a layer by ID.
func (b *Backend) GetLayer(ctx context.Context, layerID string) (*types.Layer, error) {
	var layer *types.Layer
	err := b.withReadTx(ctx, func(tx *sql.Tx) error {
		var err error
		layer, err = b.getLayer(ctx, tx, layerID)
		return err
	})
	return layer, err
}

func (b *Backend) getLayer(ctx context.Context, tx *sql.Tx, layerID string) (*types.Layer, error) {
	if layerID == "" {
		return nil, fmt.Errorf("layer: %w", types.ErrInvalidID)
	}
	var layer *types.Layer
	q := b.qb.Select(layerFields...).From("layers").Where(squirrel.Eq{"layer_id": layerID})
	err := getOne(ctx, tx, q, "layer", layerID, func(s scanner) error {
		var err error
		layer, err = hydrateLayer(s)
		return err
	})
	return layer, err
}

// ListLayers returns the layers over a dataset. An empty datasetID lists
// every layer.
func (b *Backend) ListLayers(ctx context.Context, datasetID string) ([]*types.Layer, error) {
	results := []*types.Layer{}
	err := b.withReadTx(ctx, func(tx *sql.Tx) error {
		q := b.qb.Select(layerFields...).From("layers").OrderBy("created_at", "layer_id")
		if datasetID != "" {
			q = q.Where(squirrel.Eq{"dataset_id": datasetID})
		}
		rows, err := querySQL(ctx, tx, q)
		if err != nil {
			return fmt.Errorf("listing layers: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			layer, err := hydrateLayer(rows)
			if err != nil {
				return err
			}
			results = append(results, layer)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// ResolveRoles returns the column bindings of a layer.
func (b *Backend) ResolveRoles(ctx context.Context, layerID string) (types.Roles, error) {
	layer, err := b.GetLayer(ctx, layerID)
	if err != nil {
		return types.Roles{}, err
	}
	return layer.Roles, nil
}

// DeleteLayer detaches a layer from every page and removes it. It fails
// with ErrStaleDataTrackReference if any detach would retarget a data
// track.
func (b *Backend) DeleteLayer(ctx context.Context, layerID string) error {
	err := b.withTx(ctx, func(tx *sql.Tx) error {
		layer, err := b.getLayer(ctx, tx, layerID)
		if err != nil {
			return err
		}
		if err := b.authorizeDataset(ctx, tx, layer.DatasetID); err != nil {
			return err
		}
		pageIDs, err := b.pagesWithLayer(ctx, tx, layerID)
		if err != nil {
			return err
		}
		for _, pageID := range pageIDs {
			if err := b.detach(ctx, tx, pageID, layerID); err != nil {
				return err
			}
		}
		if _, err := execSQL(ctx, tx, b.qb.Delete("layers").Where(squirrel.Eq{"layer_id": layerID})); err != nil {
			return fmt.Errorf("deleting layer: %w", err)
		}
		return nil
	})
	if err != nil {
		b.log.Warn().Err(err).Str("layer_id", layerID).Msg("layer delete rejected")
		return err
	}
	b.log.Debug().Str("layer_id", layerID).Msg("layer deleted")
	return nil
}

func hydrateLayer(s scanner) (*types.Layer, error) {
	var (
		layer                    types.Layer
		layerType, created       string
		title, description, icon sql.NullString
	)
	err := s.Scan(&layer.LayerID, &layer.DatasetID, &layer.Name, &layerType,
		&layer.Roles.Geometry, &title, &description, &icon, &created)
	if err != nil {
		return nil, err
	}
	t, err := parseTime(created)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	layer.Type = types.LayerType(layerType)
	layer.Roles.Title = title.String
	layer.Roles.Description = description.String
	layer.Roles.Icon = icon.String
	layer.CreatedAt = t
	return &layer, nil
}
