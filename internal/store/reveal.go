package store

import "github.com/mesh-intelligence/mapforms/pkg/types"

// visibleAt reports whether the layer at position is shown at step. A layer
// no track targets is always shown; otherwise one covering track suffices.
func visibleAt(position, step int, tracks []*types.DataTrack) bool {
	targeted := false
	for _, t := range tracks {
		if t.LayerIndex != position {
			continue
		}
		if t.Covers(step) {
			return true
		}
		targeted = true
	}
	return !targeted
}

// visiblePositions returns the positions in [0, n) shown at step, in order.
func visiblePositions(n, step int, tracks []*types.DataTrack) []int {
	out := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if visibleAt(i, step, tracks) {
			out = append(out, i)
		}
	}
	return out
}
