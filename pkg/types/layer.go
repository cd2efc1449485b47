package types

import (
	"fmt"
	"time"
)

// LayerType is the geometry shape a layer renders.
type LayerType string

// Layer types.
const (
	LayerPoint   LayerType = "point"
	LayerLine    LayerType = "line"
	LayerPolygon LayerType = "polygon"
)

// ValidLayerType reports whether t is a recognized layer type.
func ValidLayerType(t LayerType) bool {
	return t == LayerPoint || t == LayerLine || t == LayerPolygon
}

// GeometryKind returns the column kind a layer of this type binds as its
// geometry.
func (t LayerType) GeometryKind() Kind {
	return Kind(t)
}

// Role names a semantic slot of a layer.
type Role string

// Layer roles.
const (
	RoleGeometry    Role = "geometry"
	RoleTitle       Role = "title"
	RoleDescription Role = "description"
	RoleIcon        Role = "icon"
)

// Roles binds dataset columns to layer roles. Only Geometry is required.
type Roles struct {
	Geometry    string `json:"geometry_column_id" yaml:"geometry"`
	Title       string `json:"title_column_id,omitempty" yaml:"title,omitempty"`
	Description string `json:"description_column_id,omitempty" yaml:"description,omitempty"`
	Icon        string `json:"icon_column_id,omitempty" yaml:"icon,omitempty"`
}

// Bindings returns the bound roles in a fixed order, skipping empty ones.
func (r Roles) Bindings() []RoleBinding {
	var out []RoleBinding
	for _, b := range []RoleBinding{
		{RoleGeometry, r.Geometry},
		{RoleTitle, r.Title},
		{RoleDescription, r.Description},
		{RoleIcon, r.Icon},
	} {
		if b.ColumnID != "" {
			out = append(out, b)
		}
	}
	return out
}

// RoleBinding is one (role, column) pair.
type RoleBinding struct {
	Role     Role
	ColumnID string
}

// Layer is a typed geospatial view over a dataset.
type Layer struct {
	LayerID   string    `json:"layer_id"`
	DatasetID string    `json:"dataset_id"`
	Name      string    `json:"name"`
	Type      LayerType `json:"type"`
	Roles     Roles     `json:"roles"`
	CreatedAt time.Time `json:"created_at"`
}

// roleKinds lists the column kinds each non-geometry role accepts.
var roleKinds = map[Role][]Kind{
	RoleTitle:       {KindString, KindNumber, KindDate},
	RoleDescription: {KindString, KindRichText},
	RoleIcon:        {KindIcon},
}

// CheckRole reports whether a column of kind k may fill role on a layer of
// type t. It returns an error wrapping ErrRoleTypeMismatch when it may not.
func CheckRole(t LayerType, role Role, k Kind) error {
	if role == RoleGeometry {
		if k != t.GeometryKind() {
			return fmt.Errorf("%w: %s layer geometry needs a %s column, got %s",
				ErrRoleTypeMismatch, t, t.GeometryKind(), k)
		}
		return nil
	}
	if role == RoleIcon && t != LayerPoint {
		return fmt.Errorf("%w: icon role is only available on point layers", ErrRoleTypeMismatch)
	}
	for _, allowed := range roleKinds[role] {
		if k == allowed {
			return nil
		}
	}
	return fmt.Errorf("%w: %s role does not accept %s columns", ErrRoleTypeMismatch, role, k)
}
