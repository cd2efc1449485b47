package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/Masterminds/squirrel"

	"github.com/mesh-intelligence/mapforms/pkg/types"
)

// cellWrite is a validated value bound for one column.
type cellWrite struct {
	columnID string
	value    types.Value
}

// GetCell returns the value a row holds for a column.
func (b *Backend) GetCell(ctx context.Context, rowID, columnID string) (types.Value, error) {
	var v types.Value
	err := b.withReadTx(ctx, func(tx *sql.Tx) error {
		_, col, err := b.rowAndColumn(ctx, tx, rowID, columnID)
		if err != nil {
			return err
		}
		v, err = b.readCell(ctx, tx, rowID, col)
		return err
	})
	return v, err
}

// UpsertCell validates raw against the column kind and stores it.
func (b *Backend) UpsertCell(ctx context.Context, rowID, columnID string, raw any) error {
	err := b.withTx(ctx, func(tx *sql.Tx) error {
		row, col, err := b.rowAndColumn(ctx, tx, rowID, columnID)
		if err != nil {
			return err
		}
		v, err := b.validate(col, columnID, raw)
		if err != nil {
			return err
		}
		if err := b.authorizeDataset(ctx, tx, row.DatasetID); err != nil {
			return err
		}
		return b.writeCell(ctx, tx, rowID, columnID, v)
	})
	if err != nil {
		return err
	}
	b.log.Debug().Str("row_id", rowID).Str("column_id", columnID).Msg("cell upserted")
	return nil
}

// BatchUpsert validates every entry, keyed by column ID, and writes them all
// in one transaction. Any invalid entry aborts the batch with
// ValidationErrors.
func (b *Backend) BatchUpsert(ctx context.Context, rowID string, payload map[string]any) error {
	err := b.withTx(ctx, func(tx *sql.Tx) error {
		row, err := b.getRow(ctx, tx, rowID)
		if err != nil {
			return err
		}
		cols, err := b.listColumns(ctx, tx, row.DatasetID)
		if err != nil {
			return err
		}
		byID := make(map[string]*types.Column, len(cols))
		for _, c := range cols {
			byID[c.ColumnID] = c
		}
		writes, err := b.validatePayload(payload, func(key string) (*types.Column, string) {
			if c, ok := byID[key]; ok {
				return c, ""
			}
			return nil, "unknown column"
		})
		if err != nil {
			return err
		}
		if err := b.authorizeDataset(ctx, tx, row.DatasetID); err != nil {
			return err
		}
		for _, w := range writes {
			if err := b.writeCell(ctx, tx, rowID, w.columnID, w.value); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	b.log.Debug().Str("row_id", rowID).Int("cells", len(payload)).Msg("cells upserted")
	return nil
}

// DeleteCell clears a row's value for a column. Clearing an empty cell is
// not an error.
func (b *Backend) DeleteCell(ctx context.Context, rowID, columnID string) error {
	return b.withTx(ctx, func(tx *sql.Tx) error {
		row, col, err := b.rowAndColumn(ctx, tx, rowID, columnID)
		if err != nil {
			return err
		}
		if err := b.authorizeDataset(ctx, tx, row.DatasetID); err != nil {
			return err
		}
		c, err := codecFor(col.Kind)
		if err != nil {
			return err
		}
		_, err = execSQL(ctx, tx, b.qb.Delete(c.table).
			Where(squirrel.Eq{"row_id": rowID, "column_id": columnID}))
		if err != nil {
			return fmt.Errorf("deleting cell: %w", err)
		}
		return nil
	})
}

// validate parses raw for col, tagging a failure with the column and the
// payload key it arrived under.
func (b *Backend) validate(col *types.Column, key string, raw any) (types.Value, error) {
	v, err := b.registry.Validate(types.KindOf(col), raw)
	if err != nil {
		var verr *types.ValidationError
		if errors.As(err, &verr) {
			verr.ColumnID = col.ColumnID
			if key != col.ColumnID {
				verr.Key = key
			}
			return nil, verr
		}
		return nil, err
	}
	return v, nil
}

// validatePayload resolves and validates every entry before returning. A
// nil column from resolve marks the key as unknown with the given reason.
// Keys are processed in sorted order so errors are stable. A second key
// resolving to a column already seen is rejected.
func (b *Backend) validatePayload(payload map[string]any, resolve func(key string) (*types.Column, string)) ([]cellWrite, error) {
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var (
		writes []cellWrite
		errs   types.ValidationErrors
		seen   = make(map[string]string, len(keys))
	)
	for _, key := range keys {
		col, reason := resolve(key)
		if col == nil {
			errs = append(errs, &types.ValidationError{Key: key, Reason: reason})
			continue
		}
		if first, dup := seen[col.ColumnID]; dup {
			errs = append(errs, &types.ValidationError{
				ColumnID: col.ColumnID,
				Key:      key,
				Kind:     col.Kind,
				Reason:   fmt.Sprintf("column given twice, also as %q", first),
			})
			continue
		}
		seen[col.ColumnID] = key
		v, err := b.validate(col, key, payload[key])
		if err != nil {
			var verr *types.ValidationError
			if !errors.As(err, &verr) {
				return nil, err
			}
			errs = append(errs, verr)
			continue
		}
		writes = append(writes, cellWrite{columnID: col.ColumnID, value: v})
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return writes, nil
}

// rowAndColumn loads a row and a column and checks they share a dataset.
func (b *Backend) rowAndColumn(ctx context.Context, tx *sql.Tx, rowID, columnID string) (*types.Row, *types.Column, error) {
	row, err := b.getRow(ctx, tx, rowID)
	if err != nil {
		return nil, nil, err
	}
	col, err := b.getColumn(ctx, tx, columnID)
	if err != nil {
		return nil, nil, err
	}
	if row.DatasetID != col.DatasetID {
		return nil, nil, fmt.Errorf("column %s in dataset of row %s: %w", columnID, rowID, types.ErrNotFound)
	}
	return row, col, nil
}

// writeCell upserts v into the cell table of its kind.
func (b *Backend) writeCell(ctx context.Context, tx *sql.Tx, rowID, columnID string, v types.Value) error {
	c, err := codecFor(v.Kind())
	if err != nil {
		return err
	}
	vals, err := c.encode(v)
	if err != nil {
		return err
	}
	cols := append([]string{"row_id", "column_id"}, c.cols...)
	args := append([]any{rowID, columnID}, vals...)
	q := b.qb.Insert(c.table).Columns(cols...).Values(args...).
		Suffix(b.dialect.upsert([]string{"row_id", "column_id"}, c.cols))
	if _, err := execSQL(ctx, tx, q); err != nil {
		return fmt.Errorf("upserting %s: %w", c.table, err)
	}
	return nil
}

// readCell returns the value of one cell, or ErrNotFound.
func (b *Backend) readCell(ctx context.Context, tx *sql.Tx, rowID string, col *types.Column) (types.Value, error) {
	c, err := codecFor(col.Kind)
	if err != nil {
		return nil, err
	}
	var v types.Value
	q := b.qb.Select(c.cols...).From(c.table).Where(squirrel.Eq{"row_id": rowID, "column_id": col.ColumnID})
	err = getOne(ctx, tx, q, "cell", rowID+"/"+col.ColumnID, func(s scanner) error {
		dest := c.newDest()
		if err := s.Scan(dest...); err != nil {
			return err
		}
		var err error
		v, err = c.decode(dest)
		return err
	})
	return v, err
}

// rowCells returns every cell of a row keyed by column ID.
func (b *Backend) rowCells(ctx context.Context, tx *sql.Tx, rowID string) (map[string]types.Value, error) {
	out := map[string]types.Value{}
	for _, kind := range types.Kinds {
		err := b.scanCells(ctx, tx, kind, "column_id", squirrel.Eq{"row_id": rowID}, func(key string, v types.Value) {
			out[key] = v
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// columnCells returns every cell of a column keyed by row ID.
func (b *Backend) columnCells(ctx context.Context, tx *sql.Tx, col *types.Column) (map[string]types.Value, error) {
	out := map[string]types.Value{}
	err := b.scanCells(ctx, tx, col.Kind, "row_id", squirrel.Eq{"column_id": col.ColumnID}, func(key string, v types.Value) {
		out[key] = v
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// datasetCells returns every cell of a dataset keyed by row ID, then
// column ID.
func (b *Backend) datasetCells(ctx context.Context, tx *sql.Tx, datasetID string) (map[string]map[string]types.Value, error) {
	out := map[string]map[string]types.Value{}
	where := squirrel.Expr("row_id IN (SELECT row_id FROM dataset_rows WHERE dataset_id = ?)", datasetID)
	for _, kind := range types.Kinds {
		c := codecs[kind]
		rows, err := querySQL(ctx, tx, b.qb.Select(append([]string{"row_id", "column_id"}, c.cols...)...).
			From(c.table).Where(where))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", c.table, err)
		}
		for rows.Next() {
			var rowID, columnID string
			dest := c.newDest()
			if err := rows.Scan(append([]any{&rowID, &columnID}, dest...)...); err != nil {
				rows.Close()
				return nil, err
			}
			v, err := c.decode(dest)
			if err != nil {
				rows.Close()
				return nil, err
			}
			if out[rowID] == nil {
				out[rowID] = map[string]types.Value{}
			}
			out[rowID][columnID] = v
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// scanCells selects keyCol plus the value columns from the table of kind
// and hands each decoded cell to fn.
func (b *Backend) scanCells(ctx context.Context, tx *sql.Tx, kind types.Kind, keyCol string, where squirrel.Eq, fn func(key string, v types.Value)) error {
	c, err := codecFor(kind)
	if err != nil {
		return err
	}
	rows, err := querySQL(ctx, tx, b.qb.Select(append([]string{keyCol}, c.cols...)...).From(c.table).Where(where))
	if err != nil {
		return fmt.Errorf("reading %s: %w", c.table, err)
	}
	defer rows.Close()
	for rows.Next() {
		var key string
		dest := c.newDest()
		if err := rows.Scan(append([]any{&key}, dest...)...); err != nil {
			return err
		}
		v, err := c.decode(dest)
		if err != nil {
			return err
		}
		fn(key, v)
	}
	return rows.Err()
}
