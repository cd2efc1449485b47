package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"

	"github.com/mesh-intelligence/mapforms/pkg/types"
)

var (
	datasetFields = []string{"dataset_id", "teamspace_id", "name", "created_at"}
	columnFields  = []string{"column_id", "dataset_id", "name", "kind", "ordinal", "created_at"}
	rowFields     = []string{"row_id", "dataset_id", "submission_id", "created_at"}
)

// CreateDataset creates an empty dataset owned by teamspaceID.
func (b *Backend) CreateDataset(ctx context.Context, teamspaceID, name string) (*types.Dataset, error) {
	var ds *types.Dataset
	err := b.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		ds, err = b.createDataset(ctx, tx, teamspaceID, name)
		return err
	})
	if err != nil {
		return nil, err
	}
	b.log.Debug().Str("dataset_id", ds.DatasetID).Str("teamspace_id", teamspaceID).Msg("dataset created")
	return ds, nil
}

func (b *Backend) createDataset(ctx context.Context, tx *sql.Tx, teamspaceID, name string) (*types.Dataset, error) {
	name = strings.TrimSpace(name)
	if teamspaceID == "" {
		return nil, fmt.Errorf("teamspace: %w", types.ErrInvalidID)
	}
	if name == "" {
		return nil, fmt.Errorf("dataset: %w", types.ErrInvalidName)
	}
	if err := b.authorize(ctx, teamspaceID, types.ActionWriteDataset); err != nil {
		return nil, err
	}
	ds := &types.Dataset{
		DatasetID:   generateID(),
		TeamspaceID: teamspaceID,
		Name:        name,
		CreatedAt:   now(),
	}
	_, err := execSQL(ctx, tx, b.qb.Insert("datasets").Columns(datasetFields...).
		Values(ds.DatasetID, ds.TeamspaceID, ds.Name, formatTime(ds.CreatedAt)))
	if err != nil {
		return nil, fmt.Errorf("inserting dataset: %w", err)
	}
	return ds, nil
}

// GetDataset returns a dataset by ID.
func (b *Backend) GetDataset(ctx context.Context, datasetID string) (*types.Dataset, error) {
	var ds *types.Dataset
	err := b.withReadTx(ctx, func(tx *sql.Tx) error {
		var err error
		ds, err = b.getDataset(ctx, tx, datasetID)
		return err
	})
	return ds, err
}

func (b *Backend) getDataset(ctx context.Context, tx *sql.Tx, datasetID string) (*types.Dataset, error) {
	if datasetID == "" {
		return nil, fmt.Errorf("dataset: %w", types.ErrInvalidID)
	}
	var ds *types.Dataset
	q := b.qb.Select(datasetFields...).From("datasets").Where(squirrel.Eq{"dataset_id": datasetID})
	err := getOne(ctx, tx, q, "dataset", datasetID, func(s scanner) error {
		var err error
		ds, err = hydrateDataset(s)
		return err
	})
	return ds, err
}

// ListDatasets returns the datasets of a teamspace in creation order. An
// empty teamspaceID lists every dataset.
func (b *Backend) ListDatasets(ctx context.Context, teamspaceID string) ([]*types.Dataset, error) {
	results := []*types.Dataset{}
	err := b.withReadTx(ctx, func(tx *sql.Tx) error {
		q := b.qb.Select(datasetFields...).From("datasets").OrderBy("created_at", "dataset_id")
		if teamspaceID != "" {
			q = q.Where(squirrel.Eq{"teamspace_id": teamspaceID})
		}
		rows, err := querySQL(ctx, tx, q)
		if err != nil {
			return fmt.Errorf("listing datasets: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			ds, err := hydrateDataset(rows)
			if err != nil {
				return err
			}
			results = append(results, ds)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// DeleteDataset removes a dataset with its columns, rows and cells. Pages
// that submitted into it lose their submission target.
func (b *Backend) DeleteDataset(ctx context.Context, datasetID string) error {
	err := b.withTx(ctx, func(tx *sql.Tx) error {
		ds, err := b.getDataset(ctx, tx, datasetID)
		if err != nil {
			return err
		}
		inUse, err := exists(ctx, tx, b.qb.Select("layer_id").From("layers").
			Where(squirrel.Eq{"dataset_id": datasetID}))
		if err != nil {
			return fmt.Errorf("checking layers: %w", err)
		}
		if inUse {
			return fmt.Errorf("dataset %s: %w", datasetID, types.ErrDatasetInUse)
		}
		if err := b.authorize(ctx, ds.TeamspaceID, types.ActionWriteDataset); err != nil {
			return err
		}

		for _, kind := range types.Kinds {
			c := codecs[kind]
			_, err := execSQL(ctx, tx, b.qb.Delete(c.table).
				Where("row_id IN (SELECT row_id FROM dataset_rows WHERE dataset_id = ?)", datasetID))
			if err != nil {
				return fmt.Errorf("deleting %s: %w", c.table, err)
			}
		}
		_, err = execSQL(ctx, tx, b.qb.Update("blocks").Set("column_id", nil).
			Where("column_id IN (SELECT column_id FROM dataset_columns WHERE dataset_id = ?)", datasetID))
		if err != nil {
			return fmt.Errorf("unbinding blocks: %w", err)
		}
		_, err = execSQL(ctx, tx, b.qb.Update("pages").Set("submission_dataset_id", nil).
			Where(squirrel.Eq{"submission_dataset_id": datasetID}))
		if err != nil {
			return fmt.Errorf("clearing submission targets: %w", err)
		}
		for _, table := range []string{"dataset_rows", "dataset_columns", "datasets"} {
			if _, err := execSQL(ctx, tx, b.qb.Delete(table).Where(squirrel.Eq{"dataset_id": datasetID})); err != nil {
				return fmt.Errorf("deleting %s: %w", table, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	b.log.Debug().Str("dataset_id", datasetID).Msg("dataset deleted")
	return nil
}

// CreateColumn adds a typed column to a dataset. The kind is fixed for the
// life of the column.
func (b *Backend) CreateColumn(ctx context.Context, datasetID, name string, kind types.Kind) (*types.Column, error) {
	var col *types.Column
	err := b.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		col, err = b.createColumn(ctx, tx, datasetID, name, kind)
		return err
	})
	if err != nil {
		return nil, err
	}
	b.log.Debug().Str("dataset_id", datasetID).Str("column_id", col.ColumnID).
		Str("kind", string(kind)).Msg("column created")
	return col, nil
}

func (b *Backend) createColumn(ctx context.Context, tx *sql.Tx, datasetID, name string, kind types.Kind) (*types.Column, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("column: %w", types.ErrInvalidName)
	}
	if !types.ValidKind(kind) {
		return nil, fmt.Errorf("%w: %q", types.ErrInvalidKind, kind)
	}
	ds, err := b.getDataset(ctx, tx, datasetID)
	if err != nil {
		return nil, err
	}
	if err := b.authorize(ctx, ds.TeamspaceID, types.ActionWriteDataset); err != nil {
		return nil, err
	}
	if err := b.checkColumnName(ctx, tx, datasetID, name, ""); err != nil {
		return nil, err
	}
	ordinal, err := b.nextOrdinal(ctx, tx, "dataset_columns", "ordinal", squirrel.Eq{"dataset_id": datasetID})
	if err != nil {
		return nil, err
	}
	col := &types.Column{
		ColumnID:  generateID(),
		DatasetID: datasetID,
		Name:      name,
		Kind:      kind,
		Ordinal:   ordinal,
		CreatedAt: now(),
	}
	_, err = execSQL(ctx, tx, b.qb.Insert("dataset_columns").Columns(columnFields...).
		Values(col.ColumnID, col.DatasetID, col.Name, string(col.Kind), col.Ordinal, formatTime(col.CreatedAt)))
	if err != nil {
		return nil, fmt.Errorf("inserting column: %w", err)
	}
	return col, nil
}

// checkColumnName returns ErrDuplicateColumn when another column of the
// dataset, other than exceptID, already uses name.
func (b *Backend) checkColumnName(ctx context.Context, tx *sql.Tx, datasetID, name, exceptID string) error {
	q := b.qb.Select("column_id").From("dataset_columns").
		Where(squirrel.Eq{"dataset_id": datasetID, "name": name})
	if exceptID != "" {
		q = q.Where(squirrel.NotEq{"column_id": exceptID})
	}
	taken, err := exists(ctx, tx, q)
	if err != nil {
		return fmt.Errorf("checking column name: %w", err)
	}
	if taken {
		return fmt.Errorf("column %q: %w", name, types.ErrDuplicateColumn)
	}
	return nil
}

// GetColumn returns a column by ID.
func (b *Backend) GetColumn(ctx context.Context, columnID string) (*types.Column, error) {
	var col *types.Column
	err := b.withReadTx(ctx, func(tx *sql.Tx) error {
		var err error
		col, err = b.getColumn(ctx, tx, columnID)
		return err
	})
	return col, err
}

func (b *Backend) getColumn(ctx context.Context, tx *sql.Tx, columnID string) (*types.Column, error) {
	if columnID == "" {
		return nil, fmt.Errorf("column: %w", types.ErrInvalidID)
	}
	var col *types.Column
	q := b.qb.Select(columnFields...).From("dataset_columns").Where(squirrel.Eq{"column_id": columnID})
	err := getOne(ctx, tx, q, "column", columnID, func(s scanner) error {
		var err error
		col, err = hydrateColumn(s)
		return err
	})
	return col, err
}

// ListColumns returns a dataset's columns in ordinal order.
func (b *Backend) ListColumns(ctx context.Context, datasetID string) ([]*types.Column, error) {
	var cols []*types.Column
	err := b.withReadTx(ctx, func(tx *sql.Tx) error {
		if _, err := b.getDataset(ctx, tx, datasetID); err != nil {
			return err
		}
		var err error
		cols, err = b.listColumns(ctx, tx, datasetID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return cols, nil
}

func (b *Backend) listColumns(ctx context.Context, tx *sql.Tx, datasetID string) ([]*types.Column, error) {
	rows, err := querySQL(ctx, tx, b.qb.Select(columnFields...).From("dataset_columns").
		Where(squirrel.Eq{"dataset_id": datasetID}).OrderBy("ordinal"))
	if err != nil {
		return nil, fmt.Errorf("listing columns: %w", err)
	}
	defer rows.Close()
	cols := []*types.Column{}
	for rows.Next() {
		col, err := hydrateColumn(rows)
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
	}
	return cols, rows.Err()
}

// RenameColumn changes a column's name. Its kind and cells are untouched.
func (b *Backend) RenameColumn(ctx context.Context, columnID, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("column: %w", types.ErrInvalidName)
	}
	return b.withTx(ctx, func(tx *sql.Tx) error {
		col, err := b.getColumn(ctx, tx, columnID)
		if err != nil {
			return err
		}
		if err := b.authorizeDataset(ctx, tx, col.DatasetID); err != nil {
			return err
		}
		if err := b.checkColumnName(ctx, tx, col.DatasetID, name, columnID); err != nil {
			return err
		}
		_, err = execSQL(ctx, tx, b.qb.Update("dataset_columns").Set("name", name).
			Where(squirrel.Eq{"column_id": columnID}))
		if err != nil {
			return fmt.Errorf("renaming column: %w", err)
		}
		return nil
	})
}

// DeleteColumn removes a column and its cells. Optional layer roles bound to
// it are cleared; a geometry binding blocks the delete with ErrColumnInUse.
func (b *Backend) DeleteColumn(ctx context.Context, columnID string) error {
	err := b.withTx(ctx, func(tx *sql.Tx) error {
		col, err := b.getColumn(ctx, tx, columnID)
		if err != nil {
			return err
		}
		bound, err := exists(ctx, tx, b.qb.Select("layer_id").From("layers").
			Where(squirrel.Eq{"geometry_column_id": columnID}))
		if err != nil {
			return fmt.Errorf("checking layers: %w", err)
		}
		if bound {
			return fmt.Errorf("column %s: %w", columnID, types.ErrColumnInUse)
		}
		if err := b.authorizeDataset(ctx, tx, col.DatasetID); err != nil {
			return err
		}

		for _, role := range []string{"title_column_id", "description_column_id", "icon_column_id"} {
			_, err := execSQL(ctx, tx, b.qb.Update("layers").Set(role, nil).Where(squirrel.Eq{role: columnID}))
			if err != nil {
				return fmt.Errorf("clearing %s: %w", role, err)
			}
		}
		if _, err := execSQL(ctx, tx, b.qb.Update("blocks").Set("column_id", nil).
			Where(squirrel.Eq{"column_id": columnID})); err != nil {
			return fmt.Errorf("unbinding blocks: %w", err)
		}
		c, err := codecFor(col.Kind)
		if err != nil {
			return err
		}
		if _, err := execSQL(ctx, tx, b.qb.Delete(c.table).Where(squirrel.Eq{"column_id": columnID})); err != nil {
			return fmt.Errorf("deleting cells: %w", err)
		}
		if _, err := execSQL(ctx, tx, b.qb.Delete("dataset_columns").Where(squirrel.Eq{"column_id": columnID})); err != nil {
			return fmt.Errorf("deleting column: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	b.log.Debug().Str("column_id", columnID).Msg("column deleted")
	return nil
}

// CreateRow appends an empty row to a dataset.
func (b *Backend) CreateRow(ctx context.Context, datasetID string) (*types.Row, error) {
	var row *types.Row
	err := b.withTx(ctx, func(tx *sql.Tx) error {
		if err := b.authorizeDataset(ctx, tx, datasetID); err != nil {
			return err
		}
		var err error
		row, err = b.insertRow(ctx, tx, datasetID, "")
		return err
	})
	if err != nil {
		return nil, err
	}
	b.log.Debug().Str("dataset_id", datasetID).Str("row_id", row.RowID).Msg("row created")
	return row, nil
}

func (b *Backend) insertRow(ctx context.Context, tx *sql.Tx, datasetID, submissionID string) (*types.Row, error) {
	row := &types.Row{
		RowID:        generateID(),
		DatasetID:    datasetID,
		SubmissionID: submissionID,
		CreatedAt:    now(),
		Cells:        map[string]types.Value{},
	}
	_, err := execSQL(ctx, tx, b.qb.Insert("dataset_rows").Columns(rowFields...).
		Values(row.RowID, row.DatasetID, nullString(submissionID), formatTime(row.CreatedAt)))
	if err != nil {
		return nil, fmt.Errorf("inserting row: %w", err)
	}
	return row, nil
}

// GetRow returns a row with every cell it holds.
func (b *Backend) GetRow(ctx context.Context, rowID string) (*types.Row, error) {
	var row *types.Row
	err := b.withReadTx(ctx, func(tx *sql.Tx) error {
		var err error
		if row, err = b.getRow(ctx, tx, rowID); err != nil {
			return err
		}
		row.Cells, err = b.rowCells(ctx, tx, rowID)
		return err
	})
	return row, err
}

func (b *Backend) getRow(ctx context.Context, tx *sql.Tx, rowID string) (*types.Row, error) {
	if rowID == "" {
		return nil, fmt.Errorf("row: %w", types.ErrInvalidID)
	}
	var row *types.Row
	q := b.qb.Select(rowFields...).From("dataset_rows").Where(squirrel.Eq{"row_id": rowID})
	err := getOne(ctx, tx, q, "row", rowID, func(s scanner) error {
		var err error
		row, err = hydrateRow(s)
		return err
	})
	return row, err
}

// ListRows returns a dataset's rows with their cells, oldest first.
func (b *Backend) ListRows(ctx context.Context, datasetID string) ([]*types.Row, error) {
	var rows []*types.Row
	err := b.withReadTx(ctx, func(tx *sql.Tx) error {
		if _, err := b.getDataset(ctx, tx, datasetID); err != nil {
			return err
		}
		var err error
		rows, err = b.listRows(ctx, tx, datasetID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (b *Backend) listRows(ctx context.Context, tx *sql.Tx, datasetID string) ([]*types.Row, error) {
	rs, err := querySQL(ctx, tx, b.qb.Select(rowFields...).From("dataset_rows").
		Where(squirrel.Eq{"dataset_id": datasetID}).OrderBy("row_id"))
	if err != nil {
		return nil, fmt.Errorf("listing rows: %w", err)
	}
	results := []*types.Row{}
	for rs.Next() {
		row, err := hydrateRow(rs)
		if err != nil {
			rs.Close()
			return nil, err
		}
		results = append(results, row)
	}
	if err := rs.Err(); err != nil {
		rs.Close()
		return nil, err
	}
	rs.Close()

	cells, err := b.datasetCells(ctx, tx, datasetID)
	if err != nil {
		return nil, err
	}
	for _, row := range results {
		if c, ok := cells[row.RowID]; ok {
			row.Cells = c
		}
	}
	return results, nil
}

// DeleteRows removes rows and their cells. Every ID must exist; otherwise
// nothing is deleted.
func (b *Backend) DeleteRows(ctx context.Context, rowIDs []string) error {
	if len(rowIDs) == 0 {
		return nil
	}
	err := b.withTx(ctx, func(tx *sql.Tx) error {
		if err := b.authorizeRows(ctx, tx, rowIDs); err != nil {
			return err
		}
		for _, kind := range types.Kinds {
			c := codecs[kind]
			if _, err := execSQL(ctx, tx, b.qb.Delete(c.table).Where(squirrel.Eq{"row_id": rowIDs})); err != nil {
				return fmt.Errorf("deleting %s: %w", c.table, err)
			}
		}
		if _, err := execSQL(ctx, tx, b.qb.Delete("dataset_rows").Where(squirrel.Eq{"row_id": rowIDs})); err != nil {
			return fmt.Errorf("deleting rows: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	b.log.Debug().Int("count", len(rowIDs)).Msg("rows deleted")
	return nil
}

// DuplicateRows copies rows and all their cells under new IDs, returning
// the new IDs in input order. Copies carry no submission ID.
func (b *Backend) DuplicateRows(ctx context.Context, rowIDs []string) ([]string, error) {
	copies := make([]string, 0, len(rowIDs))
	err := b.withTx(ctx, func(tx *sql.Tx) error {
		if err := b.authorizeRows(ctx, tx, rowIDs); err != nil {
			return err
		}
		for _, id := range rowIDs {
			src, err := b.getRow(ctx, tx, id)
			if err != nil {
				return err
			}
			cells, err := b.rowCells(ctx, tx, id)
			if err != nil {
				return err
			}
			dst, err := b.insertRow(ctx, tx, src.DatasetID, "")
			if err != nil {
				return err
			}
			for columnID, v := range cells {
				if err := b.writeCell(ctx, tx, dst.RowID, columnID, v); err != nil {
					return err
				}
			}
			copies = append(copies, dst.RowID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	b.log.Debug().Int("count", len(copies)).Msg("rows duplicated")
	return copies, nil
}

// authorizeDataset checks write access to the teamspace owning datasetID.
func (b *Backend) authorizeDataset(ctx context.Context, tx *sql.Tx, datasetID string) error {
	ds, err := b.getDataset(ctx, tx, datasetID)
	if err != nil {
		return err
	}
	return b.authorize(ctx, ds.TeamspaceID, types.ActionWriteDataset)
}

// authorizeRows checks that every row exists and that the caller may write
// each owning dataset.
func (b *Backend) authorizeRows(ctx context.Context, tx *sql.Tx, rowIDs []string) error {
	seen := map[string]bool{}
	for _, id := range rowIDs {
		row, err := b.getRow(ctx, tx, id)
		if err != nil {
			return err
		}
		if seen[row.DatasetID] {
			continue
		}
		seen[row.DatasetID] = true
		if err := b.authorizeDataset(ctx, tx, row.DatasetID); err != nil {
			return err
		}
	}
	return nil
}

func hydrateDataset(s scanner) (*types.Dataset, error) {
	var (
		ds      types.Dataset
		created string
	)
	if err := s.Scan(&ds.DatasetID, &ds.TeamspaceID, &ds.Name, &created); err != nil {
		return nil, err
	}
	t, err := parseTime(created)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	ds.CreatedAt = t
	return &ds, nil
}

func hydrateColumn(s scanner) (*types.Column, error) {
	var (
		col     types.Column
		kind    string
		created string
	)
	if err := s.Scan(&col.ColumnID, &col.DatasetID, &col.Name, &kind, &col.Ordinal, &created); err != nil {
		return nil, err
	}
	t, err := parseTime(created)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	col.Kind = types.Kind(kind)
	col.CreatedAt = t
	return &col, nil
}

func hydrateRow(s scanner) (*types.Row, error) {
	var (
		row        types.Row
		submission sql.NullString
		created    string
	)
	if err := s.Scan(&row.RowID, &row.DatasetID, &submission, &created); err != nil {
		return nil, err
	}
	t, err := parseTime(created)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	row.SubmissionID = submission.String
	row.CreatedAt = t
	row.Cells = map[string]types.Value{}
	return &row, nil
}
