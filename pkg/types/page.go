package types

import (
	"encoding/json"
	"time"
)

// Project is an ordered collection of pages owned by a teamspace.
type Project struct {
	ProjectID   string    `json:"project_id"`
	TeamspaceID string    `json:"teamspace_id"`
	Name        string    `json:"name"`
	CreatedAt   time.Time `json:"created_at"`
}

// Page is one step of a project. SubmissionDatasetID names the dataset form
// submissions on this page write to; empty means the page takes no input.
type Page struct {
	PageID              string    `json:"page_id"`
	ProjectID           string    `json:"project_id"`
	Ordinal             int       `json:"ordinal"`
	SubmissionDatasetID string    `json:"submission_dataset_id,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
}

// Block is page content. The engine stores blocks opaquely; ColumnID binds
// an input block to the column its answers are written to.
type Block struct {
	BlockID  string          `json:"block_id"`
	PageID   string          `json:"page_id"`
	Ordinal  int             `json:"ordinal"`
	Kind     string          `json:"kind"`
	Content  json.RawMessage `json:"content,omitempty"`
	ColumnID string          `json:"column_id,omitempty"`
}

// LayerAttachment is one entry of a page's ordered layer list. Positions of
// a page are always 0..n-1.
type LayerAttachment struct {
	PageID     string    `json:"page_id"`
	LayerID    string    `json:"layer_id"`
	Position   int       `json:"position"`
	AttachedAt time.Time `json:"attached_at"`
}

// DataTrack reveals the layer at LayerIndex only while the step index lies in
// [StartStepIndex, EndStepIndex]. LayerID records which layer the index
// pointed at when the track was created.
type DataTrack struct {
	TrackID        string    `json:"track_id"`
	PageID         string    `json:"page_id"`
	LayerID        string    `json:"layer_id"`
	LayerIndex     int       `json:"layer_index"`
	StartStepIndex int       `json:"start_step_index"`
	EndStepIndex   int       `json:"end_step_index"`
	CreatedAt      time.Time `json:"created_at"`
}

// Covers reports whether step falls inside the track's range.
func (d DataTrack) Covers(step int) bool {
	return d.StartStepIndex <= step && step <= d.EndStepIndex
}

// RenderRecord is one map feature. Optional fields are nil when the role is
// unbound or the row has no cell for it.
type RenderRecord struct {
	RowID       string           `json:"row_id"`
	LayerID     string           `json:"layer_id"`
	Geometry    Value            `json:"geometry"`
	Title       Value            `json:"title,omitempty"`
	Description Value            `json:"description,omitempty"`
	Icon        Value            `json:"icon,omitempty"`
	Attributes  map[string]Value `json:"attributes,omitempty"` // Marker details only, keyed by column name.
}

// ResolvedLayer is a visible layer with its features.
type ResolvedLayer struct {
	Layer    Layer          `json:"layer"`
	Position int            `json:"position"`
	Records  []RenderRecord `json:"records"`
}

// PageDataBundle is the render-ready payload of one page view.
type PageDataBundle struct {
	Page   Page            `json:"page"`
	Step   int             `json:"step"`
	Blocks []Block         `json:"blocks"`
	Layers []ResolvedLayer `json:"layers"`
}

// SubmitResult reports the row a submission landed in.
type SubmitResult struct {
	RowID   string `json:"row_id"`
	Created bool   `json:"created"`
}
