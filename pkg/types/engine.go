package types

import (
	"context"
	"encoding/json"
	"errors"
)

// DatasetStore manages datasets, their columns and rows.
type DatasetStore interface {
	CreateDataset(ctx context.Context, teamspaceID, name string) (*Dataset, error)
	GetDataset(ctx context.Context, datasetID string) (*Dataset, error)
	ListDatasets(ctx context.Context, teamspaceID string) ([]*Dataset, error)

	// DeleteDataset removes the dataset with its columns, rows and cells.
	// Returns ErrDatasetInUse while a layer references it.
	DeleteDataset(ctx context.Context, datasetID string) error

	// CreateColumn returns ErrDuplicateColumn if name is taken in the dataset.
	CreateColumn(ctx context.Context, datasetID, name string, kind Kind) (*Column, error)
	GetColumn(ctx context.Context, columnID string) (*Column, error)
	ListColumns(ctx context.Context, datasetID string) ([]*Column, error)
	RenameColumn(ctx context.Context, columnID, name string) error

	// DeleteColumn removes the column and every cell keyed by it.
	DeleteColumn(ctx context.Context, columnID string) error

	CreateRow(ctx context.Context, datasetID string) (*Row, error)
	GetRow(ctx context.Context, rowID string) (*Row, error)
	ListRows(ctx context.Context, datasetID string) ([]*Row, error)

	// DeleteRows and DuplicateRows apply to every listed row or to none.
	DeleteRows(ctx context.Context, rowIDs []string) error
	DuplicateRows(ctx context.Context, rowIDs []string) ([]string, error)
}

// CellStore reads and writes typed cells.
type CellStore interface {
	// GetCell returns ErrNotFound when the row has no value for the column.
	GetCell(ctx context.Context, rowID, columnID string) (Value, error)

	// UpsertCell validates raw against the column's kind and writes it,
	// replacing any previous value. Repeating a call changes nothing.
	UpsertCell(ctx context.Context, rowID, columnID string, raw any) error

	// BatchUpsert validates every entry (keyed by column ID) before writing
	// any. On failure it returns ValidationErrors and writes nothing.
	BatchUpsert(ctx context.Context, rowID string, payload map[string]any) error

	DeleteCell(ctx context.Context, rowID, columnID string) error
}

// LayerRegistry manages layers and their role bindings.
type LayerRegistry interface {
	CreateLayer(ctx context.Context, datasetID, name string, t LayerType, roles Roles) (*Layer, error)

	// UpdateLayer rebinds roles and renames. A different t returns
	// ErrLayerTypeImmutable.
	UpdateLayer(ctx context.Context, layerID, name string, t LayerType, roles Roles) (*Layer, error)
	GetLayer(ctx context.Context, layerID string) (*Layer, error)
	ListLayers(ctx context.Context, datasetID string) ([]*Layer, error)
	ResolveRoles(ctx context.Context, layerID string) (Roles, error)
	DeleteLayer(ctx context.Context, layerID string) error
}

// PageLayers maintains the ordered layer list of each page and its data
// tracks.
type PageLayers interface {
	AttachLayer(ctx context.Context, pageID, layerID string) (*LayerAttachment, error)
	DetachLayer(ctx context.Context, pageID, layerID string) error

	// ReorderLayers returns ErrIncompleteOrder unless layerIDs is exactly the
	// attached set.
	ReorderLayers(ctx context.Context, pageID string, layerIDs []string) error
	ListPageLayers(ctx context.Context, pageID string) ([]*LayerAttachment, error)

	CreateDataTrack(ctx context.Context, pageID string, start, end, layerIndex int) (*DataTrack, error)
	DeleteDataTrack(ctx context.Context, trackID string) error
	ListDataTracks(ctx context.Context, pageID string) ([]*DataTrack, error)
}

// ProjectStore manages projects, pages and page content blocks.
type ProjectStore interface {
	CreateProject(ctx context.Context, teamspaceID, name string) (*Project, error)
	GetProject(ctx context.Context, projectID string) (*Project, error)
	CreatePage(ctx context.Context, projectID string) (*Page, error)
	GetPage(ctx context.Context, pageID string) (*Page, error)
	ListPages(ctx context.Context, projectID string) ([]*Page, error)
	DeletePage(ctx context.Context, pageID string) error
	SetSubmissionTarget(ctx context.Context, pageID, datasetID string) error
	AddBlock(ctx context.Context, pageID, kind string, content json.RawMessage, columnID string) (*Block, error)
	ListBlocks(ctx context.Context, pageID string) ([]Block, error)
}

// PageResolver is the read path for page views.
type PageResolver interface {
	ResolvePageData(ctx context.Context, pageID string, step int) (*PageDataBundle, error)
	ResolveLayerPoint(ctx context.Context, layerID, rowID string) (*RenderRecord, error)
	ResolveLayerMarker(ctx context.Context, layerID, rowID string) (*RenderRecord, error)
}

// SubmissionPipeline is the write path for form submissions.
type SubmissionPipeline interface {
	// SubmitPage writes payload into the row identified by submissionID.
	// Keys are block IDs, column IDs or column names. On failure it returns
	// ValidationErrors and writes nothing.
	SubmitPage(ctx context.Context, pageID, submissionID string, payload map[string]any) (*SubmitResult, error)
}

// Snapshots exports and imports whole datasets.
type Snapshots interface {
	ExportDataset(ctx context.Context, datasetID, path string) error
	ImportDataset(ctx context.Context, teamspaceID, path string) (*Dataset, error)
}

// Engine is the full set of operations of an attached backend.
type Engine interface {
	DatasetStore
	CellStore
	LayerRegistry
	PageLayers
	ProjectStore
	PageResolver
	SubmissionPipeline
	Snapshots

	// Attach connects to the backend described by config and creates the
	// schema if needed. Returns ErrAlreadyAttached if already attached.
	Attach(config Config) error

	// Detach releases backend resources. Idempotent.
	Detach() error
}

// Engine lifecycle errors.
var (
	ErrBackendDetached = errors.New("backend is detached")
	ErrAlreadyAttached = errors.New("backend is already attached")
)
