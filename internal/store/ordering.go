package store

import (
	"fmt"

	"github.com/mesh-intelligence/mapforms/pkg/types"
)

// checkOrder returns ErrIncompleteOrder unless ordered is a permutation of
// attached.
func checkOrder(attached, ordered []string) error {
	if len(attached) != len(ordered) {
		return fmt.Errorf("%w: got %d layers, page has %d", types.ErrIncompleteOrder, len(ordered), len(attached))
	}
	want := make(map[string]bool, len(attached))
	for _, id := range attached {
		want[id] = true
	}
	seen := make(map[string]bool, len(ordered))
	for _, id := range ordered {
		if seen[id] {
			return fmt.Errorf("%w: layer %s listed twice", types.ErrIncompleteOrder, id)
		}
		if !want[id] {
			return fmt.Errorf("%w: layer %s is not attached", types.ErrIncompleteOrder, id)
		}
		seen[id] = true
	}
	return nil
}

// without returns order with id removed.
func without(order []string, id string) []string {
	out := make([]string, 0, len(order))
	for _, o := range order {
		if o != id {
			out = append(out, o)
		}
	}
	return out
}

// staleTrack returns the first track that would point at a different layer
// under order. Tracks pinned to dropped are skipped; they go away with it.
func staleTrack(tracks []*types.DataTrack, order []string, dropped string) *types.StaleTrackError {
	for _, t := range tracks {
		if dropped != "" && t.LayerID == dropped {
			continue
		}
		if t.LayerIndex < 0 || t.LayerIndex >= len(order) || order[t.LayerIndex] != t.LayerID {
			return &types.StaleTrackError{TrackID: t.TrackID, LayerIndex: t.LayerIndex}
		}
	}
	return nil
}
