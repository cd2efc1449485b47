package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckRole(t *testing.T) {
	tests := []struct {
		name  string
		layer LayerType
		role  Role
		kind  Kind
		ok    bool
	}{
		{"point geometry", LayerPoint, RoleGeometry, KindPoint, true},
		{"line geometry", LayerLine, RoleGeometry, KindLine, true},
		{"polygon geometry", LayerPolygon, RoleGeometry, KindPolygon, true},
		{"point layer rejects line geometry", LayerPoint, RoleGeometry, KindLine, false},
		{"geometry must be spatial", LayerLine, RoleGeometry, KindString, false},
		{"title from string", LayerLine, RoleTitle, KindString, true},
		{"title from number", LayerPoint, RoleTitle, KindNumber, true},
		{"title from date", LayerPolygon, RoleTitle, KindDate, true},
		{"title rejects rich text", LayerPoint, RoleTitle, KindRichText, false},
		{"description from rich text", LayerPoint, RoleDescription, KindRichText, true},
		{"description rejects bool", LayerPoint, RoleDescription, KindBool, false},
		{"icon on point layer", LayerPoint, RoleIcon, KindIcon, true},
		{"icon rejects string", LayerPoint, RoleIcon, KindString, false},
		{"icon on line layer", LayerLine, RoleIcon, KindIcon, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckRole(tt.layer, tt.role, tt.kind)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrRoleTypeMismatch)
		})
	}
}

func TestRolesBindings(t *testing.T) {
	r := Roles{Geometry: "g", Icon: "i"}
	assert.Equal(t, []RoleBinding{{RoleGeometry, "g"}, {RoleIcon, "i"}}, r.Bindings())
	assert.Empty(t, Roles{}.Bindings())
}

func TestDataTrackCovers(t *testing.T) {
	d := DataTrack{StartStepIndex: 2, EndStepIndex: 4}
	assert.False(t, d.Covers(1))
	assert.True(t, d.Covers(2))
	assert.True(t, d.Covers(4))
	assert.False(t, d.Covers(5))
}

func TestValidLayerType(t *testing.T) {
	assert.True(t, ValidLayerType(LayerPolygon))
	assert.False(t, ValidLayerType("raster"))
}
