package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Masterminds/squirrel"

	"github.com/mesh-intelligence/mapforms/pkg/types"
)

// SubmitPage writes a form submission into the page's submission dataset.
// The row is found by ID, then by submission ID, and created only when
// neither matches, so resubmitting updates the same row. Payload keys may be
// block IDs, column IDs or column names.
func (b *Backend) SubmitPage(ctx context.Context, pageID, submissionID string, payload map[string]any) (*types.SubmitResult, error) {
	if submissionID == "" {
		return nil, fmt.Errorf("submission: %w", types.ErrInvalidID)
	}
	var result *types.SubmitResult
	err := b.withTx(ctx, func(tx *sql.Tx) error {
		page, err := b.getPage(ctx, tx, pageID)
		if err != nil {
			return err
		}
		datasetID := page.SubmissionDatasetID
		if datasetID == "" {
			return fmt.Errorf("page %s: %w", pageID, types.ErrNoSubmissionTarget)
		}
		resolve, err := b.submissionKeys(ctx, tx, pageID, datasetID)
		if err != nil {
			return err
		}
		writes, err := b.validatePayload(payload, resolve)
		if err != nil {
			return err
		}
		if err := b.authorizeDataset(ctx, tx, datasetID); err != nil {
			return err
		}
		if result, err = b.submissionRow(ctx, tx, datasetID, submissionID); err != nil {
			return err
		}
		for _, w := range writes {
			if err := b.writeCell(ctx, tx, result.RowID, w.columnID, w.value); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	b.log.Debug().Str("page_id", pageID).Str("row_id", result.RowID).
		Bool("created", result.Created).Int("cells", len(payload)).Msg("submission stored")
	return result, nil
}

// submissionKeys returns a resolver from payload keys to columns of
// datasetID. Block IDs win over column IDs, which win over column names.
func (b *Backend) submissionKeys(ctx context.Context, tx *sql.Tx, pageID, datasetID string) (func(string) (*types.Column, string), error) {
	cols, err := b.listColumns(ctx, tx, datasetID)
	if err != nil {
		return nil, err
	}
	blocks, err := b.listBlocks(ctx, tx, pageID)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*types.Column, len(cols))
	byName := make(map[string]*types.Column, len(cols))
	for _, c := range cols {
		byID[c.ColumnID] = c
		byName[c.Name] = c
	}
	blockCols := make(map[string]string, len(blocks))
	for _, blk := range blocks {
		if blk.ColumnID != "" {
			blockCols[blk.BlockID] = blk.ColumnID
		}
	}

	return func(key string) (*types.Column, string) {
		if columnID, ok := blockCols[key]; ok {
			if c, ok := byID[columnID]; ok {
				return c, ""
			}
			return nil, "block column is not in the submission dataset"
		}
		if c, ok := byID[key]; ok {
			return c, ""
		}
		if c, ok := byName[key]; ok {
			return c, ""
		}
		return nil, "no block or column matches this key"
	}, nil
}

// submissionRow finds or creates the row a submission writes to.
func (b *Backend) submissionRow(ctx context.Context, tx *sql.Tx, datasetID, submissionID string) (*types.SubmitResult, error) {
	byRowID := b.qb.Select("row_id").From("dataset_rows").
		Where(squirrel.Eq{"row_id": submissionID, "dataset_id": datasetID})
	found, err := exists(ctx, tx, byRowID)
	if err != nil {
		return nil, fmt.Errorf("looking up row: %w", err)
	}
	if found {
		return &types.SubmitResult{RowID: submissionID}, nil
	}

	bySubmission := b.qb.Select("row_id").From("dataset_rows").
		Where(squirrel.Eq{"dataset_id": datasetID, "submission_id": submissionID})
	var rowID string
	err = getOne(ctx, tx, bySubmission, "submission", submissionID, func(s scanner) error { return s.Scan(&rowID) })
	if err == nil {
		return &types.SubmitResult{RowID: rowID}, nil
	}
	if !isNotFound(err) {
		return nil, err
	}

	newID := generateID()
	ins := b.dialect.insertIgnore(b.qb.Insert("dataset_rows").Columns(rowFields...).
		Values(newID, datasetID, submissionID, formatTime(now())))
	if _, err := execSQL(ctx, tx, ins); err != nil {
		return nil, fmt.Errorf("inserting submission row: %w", err)
	}
	if err := getOne(ctx, tx, bySubmission, "submission", submissionID, func(s scanner) error { return s.Scan(&rowID) }); err != nil {
		return nil, err
	}
	return &types.SubmitResult{RowID: rowID, Created: rowID == newID}, nil
}
