package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"

	"github.com/mesh-intelligence/mapforms/pkg/types"
)

var (
	attachmentFields = []string{"page_id", "layer_id", "position", "attached_at"}
	trackFields      = []string{"track_id", "page_id", "layer_id", "layer_index", "start_step", "end_step", "created_at"}
)

// AttachLayer appends a layer to the end of a page's layer list.
func (b *Backend) AttachLayer(ctx context.Context, pageID, layerID string) (*types.LayerAttachment, error) {
	var att *types.LayerAttachment
	err := b.withTx(ctx, func(tx *sql.Tx) error {
		layer, err := b.getLayer(ctx, tx, layerID)
		if err != nil {
			return err
		}
		if _, err := b.authorizePageDataset(ctx, tx, pageID, layer.DatasetID, types.ActionReadDataset); err != nil {
			return err
		}
		current, err := b.listAttachments(ctx, tx, pageID)
		if err != nil {
			return err
		}
		for _, a := range current {
			if a.LayerID == layerID {
				return fmt.Errorf("layer %s on page %s: %w", layerID, pageID, types.ErrLayerAttached)
			}
		}
		att = &types.LayerAttachment{
			PageID:     pageID,
			LayerID:    layerID,
			Position:   len(current),
			AttachedAt: now(),
		}
		_, err = execSQL(ctx, tx, b.qb.Insert("layers_to_pages").Columns(attachmentFields...).
			Values(pageID, layerID, att.Position, formatTime(att.AttachedAt)))
		if err != nil {
			return fmt.Errorf("attaching layer: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	b.log.Debug().Str("page_id", pageID).Str("layer_id", layerID).Int("position", att.Position).Msg("layer attached")
	return att, nil
}

// DetachLayer removes a layer from a page and shifts later layers down. Data
// tracks pinned to the layer are removed with it.
func (b *Backend) DetachLayer(ctx context.Context, pageID, layerID string) error {
	err := b.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := b.authorizePage(ctx, tx, pageID); err != nil {
			return err
		}
		return b.detach(ctx, tx, pageID, layerID)
	})
	if err != nil {
		b.logRejected(err, pageID, "detach rejected")
		return err
	}
	b.log.Debug().Str("page_id", pageID).Str("layer_id", layerID).Msg("layer detached")
	return nil
}

func (b *Backend) detach(ctx context.Context, tx *sql.Tx, pageID, layerID string) error {
	current, err := b.listAttachments(ctx, tx, pageID)
	if err != nil {
		return err
	}
	order := attachmentOrder(current)
	next := without(order, layerID)
	if len(next) == len(order) {
		return fmt.Errorf("layer %s on page %s: %w", layerID, pageID, types.ErrNotFound)
	}
	tracks, err := b.listTracks(ctx, tx, pageID)
	if err != nil {
		return err
	}
	if stale := staleTrack(tracks, next, layerID); stale != nil {
		return stale
	}
	_, err = execSQL(ctx, tx, b.qb.Delete("data_tracks").
		Where(squirrel.Eq{"page_id": pageID, "layer_id": layerID}))
	if err != nil {
		return fmt.Errorf("deleting tracks: %w", err)
	}
	return b.writeOrder(ctx, tx, pageID, current, next)
}

// ReorderLayers rewrites a page's layer positions to match layerIDs.
func (b *Backend) ReorderLayers(ctx context.Context, pageID string, layerIDs []string) error {
	err := b.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := b.authorizePage(ctx, tx, pageID); err != nil {
			return err
		}
		current, err := b.listAttachments(ctx, tx, pageID)
		if err != nil {
			return err
		}
		if err := checkOrder(attachmentOrder(current), layerIDs); err != nil {
			return err
		}
		tracks, err := b.listTracks(ctx, tx, pageID)
		if err != nil {
			return err
		}
		if stale := staleTrack(tracks, layerIDs, ""); stale != nil {
			return stale
		}
		return b.writeOrder(ctx, tx, pageID, current, layerIDs)
	})
	if err != nil {
		b.logRejected(err, pageID, "reorder rejected")
		return err
	}
	b.log.Debug().Str("page_id", pageID).Strs("order", layerIDs).Msg("layers reordered")
	return nil
}

// writeOrder replaces a page's attachments with order, keeping each
// layer's original attach time.
func (b *Backend) writeOrder(ctx context.Context, tx *sql.Tx, pageID string, current []*types.LayerAttachment, order []string) error {
	attachedAt := make(map[string]string, len(current))
	for _, a := range current {
		attachedAt[a.LayerID] = formatTime(a.AttachedAt)
	}
	if _, err := execSQL(ctx, tx, b.qb.Delete("layers_to_pages").Where(squirrel.Eq{"page_id": pageID})); err != nil {
		return fmt.Errorf("clearing positions: %w", err)
	}
	if len(order) == 0 {
		return nil
	}
	ins := b.qb.Insert("layers_to_pages").Columns(attachmentFields...)
	for i, id := range order {
		ins = ins.Values(pageID, id, i, attachedAt[id])
	}
	if _, err := execSQL(ctx, tx, ins); err != nil {
		return fmt.Errorf("writing positions: %w", err)
	}
	return nil
}

// ListPageLayers returns a page's attachments in position order.
func (b *Backend) ListPageLayers(ctx context.Context, pageID string) ([]*types.LayerAttachment, error) {
	var out []*types.LayerAttachment
	err := b.withReadTx(ctx, func(tx *sql.Tx) error {
		if _, err := b.getPage(ctx, tx, pageID); err != nil {
			return err
		}
		var err error
		out, err = b.listAttachments(ctx, tx, pageID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (b *Backend) listAttachments(ctx context.Context, tx *sql.Tx, pageID string) ([]*types.LayerAttachment, error) {
	rows, err := querySQL(ctx, tx, b.qb.Select(attachmentFields...).From("layers_to_pages").
		Where(squirrel.Eq{"page_id": pageID}).OrderBy("position"))
	if err != nil {
		return nil, fmt.Errorf("listing attachments: %w", err)
	}
	defer rows.Close()
	out := []*types.LayerAttachment{}
	for rows.Next() {
		var (
			a        types.LayerAttachment
			attached string
		)
		if err := rows.Scan(&a.PageID, &a.LayerID, &a.Position, &attached); err != nil {
			return nil, err
		}
		t, err := parseTime(attached)
		if err != nil {
			return nil, fmt.Errorf("parsing attached_at: %w", err)
		}
		a.AttachedAt = t
		out = append(out, &a)
	}
	return out, rows.Err()
}

// pagesWithLayer returns the IDs of pages the layer is attached to.
func (b *Backend) pagesWithLayer(ctx context.Context, tx *sql.Tx, layerID string) ([]string, error) {
	rows, err := querySQL(ctx, tx, b.qb.Select("page_id").From("layers_to_pages").
		Where(squirrel.Eq{"layer_id": layerID}).OrderBy("page_id"))
	if err != nil {
		return nil, fmt.Errorf("listing pages of layer: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func attachmentOrder(atts []*types.LayerAttachment) []string {
	ids := make([]string, len(atts))
	for i, a := range atts {
		ids[i] = a.LayerID
	}
	return ids
}

// CreateDataTrack limits the layer at layerIndex to steps start through
// end. The track remembers which layer the index held.
func (b *Backend) CreateDataTrack(ctx context.Context, pageID string, start, end, layerIndex int) (*types.DataTrack, error) {
	if start < 0 || end < start {
		return nil, fmt.Errorf("%w: [%d, %d]", types.ErrInvalidStepRange, start, end)
	}
	var track *types.DataTrack
	err := b.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := b.authorizePage(ctx, tx, pageID); err != nil {
			return err
		}
		current, err := b.listAttachments(ctx, tx, pageID)
		if err != nil {
			return err
		}
		if layerIndex < 0 || layerIndex >= len(current) {
			return fmt.Errorf("layer index %d on page %s: %w", layerIndex, pageID, types.ErrNotFound)
		}
		track = &types.DataTrack{
			TrackID:        generateID(),
			PageID:         pageID,
			LayerID:        current[layerIndex].LayerID,
			LayerIndex:     layerIndex,
			StartStepIndex: start,
			EndStepIndex:   end,
			CreatedAt:      now(),
		}
		_, err = execSQL(ctx, tx, b.qb.Insert("data_tracks").Columns(trackFields...).Values(
			track.TrackID, pageID, track.LayerID, layerIndex, start, end, formatTime(track.CreatedAt)))
		if err != nil {
			return fmt.Errorf("inserting track: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	b.log.Debug().Str("page_id", pageID).Str("track_id", track.TrackID).Int("layer_index", layerIndex).Msg("data track created")
	return track, nil
}

// DeleteDataTrack removes a track.
func (b *Backend) DeleteDataTrack(ctx context.Context, trackID string) error {
	if trackID == "" {
		return fmt.Errorf("track: %w", types.ErrInvalidID)
	}
	return b.withTx(ctx, func(tx *sql.Tx) error {
		var pageID string
		q := b.qb.Select("page_id").From("data_tracks").Where(squirrel.Eq{"track_id": trackID})
		if err := getOne(ctx, tx, q, "track", trackID, func(s scanner) error { return s.Scan(&pageID) }); err != nil {
			return err
		}
		if _, err := b.authorizePage(ctx, tx, pageID); err != nil {
			return err
		}
		if _, err := execSQL(ctx, tx, b.qb.Delete("data_tracks").Where(squirrel.Eq{"track_id": trackID})); err != nil {
			return fmt.Errorf("deleting track: %w", err)
		}
		return nil
	})
}

// ListDataTracks returns a page's tracks ordered by layer index, then start
// step.
func (b *Backend) ListDataTracks(ctx context.Context, pageID string) ([]*types.DataTrack, error) {
	var out []*types.DataTrack
	err := b.withReadTx(ctx, func(tx *sql.Tx) error {
		if _, err := b.getPage(ctx, tx, pageID); err != nil {
			return err
		}
		var err error
		out, err = b.listTracks(ctx, tx, pageID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (b *Backend) listTracks(ctx context.Context, tx *sql.Tx, pageID string) ([]*types.DataTrack, error) {
	rows, err := querySQL(ctx, tx, b.qb.Select(trackFields...).From("data_tracks").
		Where(squirrel.Eq{"page_id": pageID}).OrderBy("layer_index", "start_step", "track_id"))
	if err != nil {
		return nil, fmt.Errorf("listing tracks: %w", err)
	}
	defer rows.Close()
	out := []*types.DataTrack{}
	for rows.Next() {
		var (
			t       types.DataTrack
			created string
		)
		if err := rows.Scan(&t.TrackID, &t.PageID, &t.LayerID, &t.LayerIndex,
			&t.StartStepIndex, &t.EndStepIndex, &created); err != nil {
			return nil, err
		}
		ts, err := parseTime(created)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		t.CreatedAt = ts
		out = append(out, &t)
	}
	return out, rows.Err()
}

// logRejected records authoring operations refused to keep tracks or
// order consistent.
func (b *Backend) logRejected(err error, pageID, msg string) {
	if errors.Is(err, types.ErrStaleDataTrackReference) || errors.Is(err, types.ErrIncompleteOrder) {
		b.log.Warn().Err(err).Str("page_id", pageID).Msg(msg)
	}
}
