package store

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mesh-intelligence/mapforms/pkg/types"
)

func TestCheckOrder(t *testing.T) {
	attached := []string{"a", "b", "c"}
	tests := []struct {
		name    string
		ordered []string
		wantErr bool
	}{
		{"same order", []string{"a", "b", "c"}, false},
		{"permutation", []string{"c", "a", "b"}, false},
		{"missing layer", []string{"a", "b"}, true},
		{"extra layer", []string{"a", "b", "c", "d"}, true},
		{"duplicate", []string{"a", "a", "b"}, true},
		{"unknown layer", []string{"a", "b", "x"}, true},
		{"empty", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkOrder(attached, tt.ordered)
			if tt.wantErr {
				assert.ErrorIs(t, err, types.ErrIncompleteOrder)
				return
			}
			assert.NoError(t, err)
		})
	}

	assert.NoError(t, checkOrder(nil, nil))
}

func TestStaleTrack(t *testing.T) {
	tracks := []*types.DataTrack{
		{TrackID: "t0", LayerID: "a", LayerIndex: 0},
		{TrackID: "t2", LayerID: "c", LayerIndex: 2},
	}
	tests := []struct {
		name    string
		order   []string
		dropped string
		want    string
	}{
		{"unchanged", []string{"a", "b", "c"}, "", ""},
		{"moving a tracked layer", []string{"b", "a", "c"}, "", "t0"},
		{"index past the end", []string{"a", "b"}, "", "t2"},
		{"dropped layer tracks are ignored", []string{"b", "c"}, "a", "t2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := staleTrack(tracks, tt.order, tt.dropped)
			if tt.want == "" {
				assert.Nil(t, got)
				return
			}
			if assert.NotNil(t, got) {
				assert.Equal(t, tt.want, got.TrackID)
				assert.ErrorIs(t, got, types.ErrStaleDataTrackReference)
			}
		})
	}
}

func TestWithout(t *testing.T) {
	assert.Equal(t, []string{"a", "c"}, without([]string{"a", "b", "c"}, "b"))
	assert.Equal(t, []string{"a"}, without([]string{"a"}, "x"))
	assert.Empty(t, without([]string{"a"}, "a"))
}
