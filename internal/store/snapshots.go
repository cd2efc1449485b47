package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/mesh-intelligence/mapforms/pkg/types"
)

// Snapshot record types, one per JSONL line.
const (
	recordDataset = "dataset"
	recordColumn  = "column"
	recordRow     = "row"
)

// snapshotRecord is one line of a dataset snapshot. Cells hold raw values
// keyed by the exported column ID.
type snapshotRecord struct {
	Type         string         `json:"type"`
	DatasetID    string         `json:"dataset_id,omitempty"`
	Name         string         `json:"name,omitempty"`
	ColumnID     string         `json:"column_id,omitempty"`
	Kind         types.Kind     `json:"kind,omitempty"`
	Ordinal      int            `json:"ordinal,omitempty"`
	RowID        string         `json:"row_id,omitempty"`
	SubmissionID string         `json:"submission_id,omitempty"`
	Cells        map[string]any `json:"cells,omitempty"`
}

// ExportDataset writes a dataset, its columns and its rows to a JSONL file.
func (b *Backend) ExportDataset(ctx context.Context, datasetID, path string) error {
	var records []json.RawMessage
	err := b.withReadTx(ctx, func(tx *sql.Tx) error {
		ds, err := b.getDataset(ctx, tx, datasetID)
		if err != nil {
			return err
		}
		cols, err := b.listColumns(ctx, tx, datasetID)
		if err != nil {
			return err
		}
		rows, err := b.listRows(ctx, tx, datasetID)
		if err != nil {
			return err
		}

		add := func(rec snapshotRecord) error {
			data, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("encoding %s record: %w", rec.Type, err)
			}
			records = append(records, data)
			return nil
		}
		if err := add(snapshotRecord{Type: recordDataset, DatasetID: ds.DatasetID, Name: ds.Name}); err != nil {
			return err
		}
		for _, c := range cols {
			rec := snapshotRecord{Type: recordColumn, ColumnID: c.ColumnID, Name: c.Name, Kind: c.Kind, Ordinal: c.Ordinal}
			if err := add(rec); err != nil {
				return err
			}
		}
		for _, r := range rows {
			cells := make(map[string]any, len(r.Cells))
			for id, v := range r.Cells {
				cells[id] = v.Raw()
			}
			rec := snapshotRecord{Type: recordRow, RowID: r.RowID, SubmissionID: r.SubmissionID, Cells: cells}
			if err := add(rec); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if err := writeJSONL(path, records); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	b.log.Debug().Str("dataset_id", datasetID).Str("path", path).Int("records", len(records)).Msg("dataset exported")
	return nil
}

// ImportDataset creates a new dataset in teamspaceID from a snapshot. All
// IDs are fresh and every cell is validated again; one bad cell aborts the
// import with ValidationErrors.
func (b *Backend) ImportDataset(ctx context.Context, teamspaceID, path string) (*types.Dataset, error) {
	lines, err := readJSONL(path)
	if err != nil {
		return nil, err
	}
	var (
		header *snapshotRecord
		cols   []snapshotRecord
		rows   []snapshotRecord
	)
	for _, line := range lines {
		var rec snapshotRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			continue
		}
		switch rec.Type {
		case recordDataset:
			if header == nil {
				header = &rec
			}
		case recordColumn:
			cols = append(cols, rec)
		case recordRow:
			rows = append(rows, rec)
		}
	}
	if header == nil {
		return nil, fmt.Errorf("%s has no dataset record: %w", path, types.ErrInvalidValue)
	}
	sort.SliceStable(cols, func(i, j int) bool { return cols[i].Ordinal < cols[j].Ordinal })

	var ds *types.Dataset
	err = b.withTx(ctx, func(tx *sql.Tx) error {
		if ds, err = b.createDataset(ctx, tx, teamspaceID, header.Name); err != nil {
			return err
		}
		mapped := make(map[string]*types.Column, len(cols))
		for _, rec := range cols {
			col, err := b.createColumn(ctx, tx, ds.DatasetID, rec.Name, rec.Kind)
			if err != nil {
				return fmt.Errorf("column %q: %w", rec.Name, err)
			}
			mapped[rec.ColumnID] = col
		}
		for _, rec := range rows {
			writes, err := b.validatePayload(rec.Cells, func(key string) (*types.Column, string) {
				if c, ok := mapped[key]; ok {
					return c, ""
				}
				return nil, "cell references an unknown column"
			})
			if err != nil {
				return fmt.Errorf("row %s: %w", rec.RowID, err)
			}
			row, err := b.insertRow(ctx, tx, ds.DatasetID, rec.SubmissionID)
			if err != nil {
				return err
			}
			for _, w := range writes {
				if err := b.writeCell(ctx, tx, row.RowID, w.columnID, w.value); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	b.log.Debug().Str("dataset_id", ds.DatasetID).Str("path", path).Int("rows", len(rows)).Msg("dataset imported")
	return ds, nil
}
