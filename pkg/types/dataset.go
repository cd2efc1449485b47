package types

import "time"

// Dataset is a named container of typed columns and rows, owned by a
// teamspace. Deleting a dataset deletes its columns, rows and cells.
type Dataset struct {
	DatasetID   string    `json:"dataset_id"`
	TeamspaceID string    `json:"teamspace_id"`
	Name        string    `json:"name"`
	CreatedAt   time.Time `json:"created_at"`
}

// Column is a typed field of a dataset. Name is unique within the dataset and
// Kind never changes after creation.
type Column struct {
	ColumnID  string    `json:"column_id"`
	DatasetID string    `json:"dataset_id"`
	Name      string    `json:"name"`
	Kind      Kind      `json:"kind"`
	Ordinal   int       `json:"ordinal"`
	CreatedAt time.Time `json:"created_at"`
}

// Row is one record of a dataset. Rows are sparse: Cells only holds the
// columns that have a value.
type Row struct {
	RowID        string           `json:"row_id"`
	DatasetID    string           `json:"dataset_id"`
	SubmissionID string           `json:"submission_id,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	Cells        map[string]Value `json:"cells,omitempty"` // Keyed by column ID.
}
