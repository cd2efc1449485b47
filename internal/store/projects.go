package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"

	"github.com/mesh-intelligence/mapforms/pkg/types"
)

var (
	projectFields = []string{"project_id", "teamspace_id", "name", "created_at"}
	pageFields    = []string{"page_id", "project_id", "ordinal", "submission_dataset_id", "created_at"}
	blockFields   = []string{"block_id", "page_id", "ordinal", "kind", "content", "column_id"}
)

// CreateProject creates an empty project owned by teamspaceID.
func (b *Backend) CreateProject(ctx context.Context, teamspaceID, name string) (*types.Project, error) {
	name = strings.TrimSpace(name)
	if teamspaceID == "" {
		return nil, fmt.Errorf("teamspace: %w", types.ErrInvalidID)
	}
	if name == "" {
		return nil, fmt.Errorf("project: %w", types.ErrInvalidName)
	}
	p := &types.Project{
		ProjectID:   generateID(),
		TeamspaceID: teamspaceID,
		Name:        name,
		CreatedAt:   now(),
	}
	err := b.withTx(ctx, func(tx *sql.Tx) error {
		if err := b.authorize(ctx, teamspaceID, types.ActionWriteProject); err != nil {
			return err
		}
		_, err := execSQL(ctx, tx, b.qb.Insert("projects").Columns(projectFields...).
			Values(p.ProjectID, p.TeamspaceID, p.Name, formatTime(p.CreatedAt)))
		if err != nil {
			return fmt.Errorf("inserting project: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	b.log.Debug().Str("project_id", p.ProjectID).Msg("project created")
	return p, nil
}

// GetProject returns a project by ID.
func (b *Backend) GetProject(ctx context.Context, projectID string) (*types.Project, error) {
	var p *types.Project
	err := b.withReadTx(ctx, func(tx *sql.Tx) error {
		var err error
		p, err = b.getProject(ctx, tx, projectID)
		return err
	})
	return p, err
}

func (b *Backend) getProject(ctx context.Context, tx *sql.Tx, projectID string) (*types.Project, error) {
	if projectID == "" {
		return nil, fmt.Errorf("project: %w", types.ErrInvalidID)
	}
	var p types.Project
	q := b.qb.Select(projectFields...).From("projects").Where(squirrel.Eq{"project_id": projectID})
	err := getOne(ctx, tx, q, "project", projectID, func(s scanner) error {
		var created string
		if err := s.Scan(&p.ProjectID, &p.TeamspaceID, &p.Name, &created); err != nil {
			return err
		}
		t, err := parseTime(created)
		p.CreatedAt = t
		return err
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CreatePage appends a page to a project.
func (b *Backend) CreatePage(ctx context.Context, projectID string) (*types.Page, error) {
	var page *types.Page
	err := b.withTx(ctx, func(tx *sql.Tx) error {
		p, err := b.getProject(ctx, tx, projectID)
		if err != nil {
			return err
		}
		if err := b.authorize(ctx, p.TeamspaceID, types.ActionWriteProject); err != nil {
			return err
		}
		ordinal, err := b.nextOrdinal(ctx, tx, "pages", "ordinal", squirrel.Eq{"project_id": projectID})
		if err != nil {
			return err
		}
		page = &types.Page{
			PageID:    generateID(),
			ProjectID: projectID,
			Ordinal:   ordinal,
			CreatedAt: now(),
		}
		_, err = execSQL(ctx, tx, b.qb.Insert("pages").Columns(pageFields...).
			Values(page.PageID, page.ProjectID, page.Ordinal, nullString(""), formatTime(page.CreatedAt)))
		if err != nil {
			return fmt.Errorf("inserting page: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	b.log.Debug().Str("project_id", projectID).Str("page_id", page.PageID).Msg("page created")
	return page, nil
}

// GetPage returns a page by ID.
func (b *Backend) GetPage(ctx context.Context, pageID string) (*types.Page, error) {
	var page *types.Page
	err := b.withReadTx(ctx, func(tx *sql.Tx) error {
		var err error
		page, err = b.getPage(ctx, tx, pageID)
		return err
	})
	return page, err
}

func (b *Backend) getPage(ctx context.Context, tx *sql.Tx, pageID string) (*types.Page, error) {
	if pageID == "" {
		return nil, fmt.Errorf("page: %w", types.ErrInvalidID)
	}
	var page *types.Page
	q := b.qb.Select(pageFields...).From("pages").Where(squirrel.Eq{"page_id": pageID})
	err := getOne(ctx, tx, q, "page", pageID, func(s scanner) error {
		var err error
		page, err = hydratePage(s)
		return err
	})
	return page, err
}

// ListPages returns a project's pages in order.
func (b *Backend) ListPages(ctx context.Context, projectID string) ([]*types.Page, error) {
	results := []*types.Page{}
	err := b.withReadTx(ctx, func(tx *sql.Tx) error {
		if _, err := b.getProject(ctx, tx, projectID); err != nil {
			return err
		}
		rows, err := querySQL(ctx, tx, b.qb.Select(pageFields...).From("pages").
			Where(squirrel.Eq{"project_id": projectID}).OrderBy("ordinal"))
		if err != nil {
			return fmt.Errorf("listing pages: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			page, err := hydratePage(rows)
			if err != nil {
				return err
			}
			results = append(results, page)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// DeletePage removes a page with its blocks, layer attachments and data
// tracks, then closes the gap in the project's page order.
func (b *Backend) DeletePage(ctx context.Context, pageID string) error {
	err := b.withTx(ctx, func(tx *sql.Tx) error {
		page, err := b.authorizePage(ctx, tx, pageID)
		if err != nil {
			return err
		}
		for _, table := range []string{"blocks", "data_tracks", "layers_to_pages", "pages"} {
			if _, err := execSQL(ctx, tx, b.qb.Delete(table).Where(squirrel.Eq{"page_id": pageID})); err != nil {
				return fmt.Errorf("deleting %s: %w", table, err)
			}
		}
		_, err = execSQL(ctx, tx, b.qb.Update("pages").Set("ordinal", squirrel.Expr("ordinal - 1")).
			Where(squirrel.Eq{"project_id": page.ProjectID}).
			Where(squirrel.Gt{"ordinal": page.Ordinal}))
		if err != nil {
			return fmt.Errorf("compacting pages: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	b.log.Debug().Str("page_id", pageID).Msg("page deleted")
	return nil
}

// SetSubmissionTarget points a page's form submissions at a dataset. An
// empty datasetID clears the target.
func (b *Backend) SetSubmissionTarget(ctx context.Context, pageID, datasetID string) error {
	return b.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		if datasetID == "" {
			_, err = b.authorizePage(ctx, tx, pageID)
		} else {
			_, err = b.authorizePageDataset(ctx, tx, pageID, datasetID, types.ActionWriteDataset)
		}
		if err != nil {
			return err
		}
		_, err = execSQL(ctx, tx, b.qb.Update("pages").Set("submission_dataset_id", nullString(datasetID)).
			Where(squirrel.Eq{"page_id": pageID}))
		if err != nil {
			return fmt.Errorf("setting submission target: %w", err)
		}
		return nil
	})
}

// AddBlock appends a content block to a page. Content must be JSON when
// present; columnID, when set, binds the block to an input column.
func (b *Backend) AddBlock(ctx context.Context, pageID, kind string, content json.RawMessage, columnID string) (*types.Block, error) {
	kind = strings.TrimSpace(kind)
	if kind == "" {
		return nil, fmt.Errorf("block kind: %w", types.ErrInvalidName)
	}
	if len(content) > 0 && !json.Valid(content) {
		return nil, fmt.Errorf("block content is not JSON: %w", types.ErrInvalidValue)
	}
	var block *types.Block
	err := b.withTx(ctx, func(tx *sql.Tx) error {
		if columnID == "" {
			if _, err := b.authorizePage(ctx, tx, pageID); err != nil {
				return err
			}
		} else {
			col, err := b.getColumn(ctx, tx, columnID)
			if err != nil {
				return err
			}
			if _, err := b.authorizePageDataset(ctx, tx, pageID, col.DatasetID, types.ActionReadDataset); err != nil {
				return err
			}
		}
		ordinal, err := b.nextOrdinal(ctx, tx, "blocks", "ordinal", squirrel.Eq{"page_id": pageID})
		if err != nil {
			return err
		}
		block = &types.Block{
			BlockID:  generateID(),
			PageID:   pageID,
			Ordinal:  ordinal,
			Kind:     kind,
			Content:  content,
			ColumnID: columnID,
		}
		_, err = execSQL(ctx, tx, b.qb.Insert("blocks").Columns(blockFields...).
			Values(block.BlockID, pageID, ordinal, kind, nullString(string(content)), nullString(columnID)))
		if err != nil {
			return fmt.Errorf("inserting block: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return block, nil
}

// ListBlocks returns a page's blocks in order.
func (b *Backend) ListBlocks(ctx context.Context, pageID string) ([]types.Block, error) {
	var blocks []types.Block
	err := b.withReadTx(ctx, func(tx *sql.Tx) error {
		if _, err := b.getPage(ctx, tx, pageID); err != nil {
			return err
		}
		var err error
		blocks, err = b.listBlocks(ctx, tx, pageID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return blocks, nil
}

func (b *Backend) listBlocks(ctx context.Context, tx *sql.Tx, pageID string) ([]types.Block, error) {
	rows, err := querySQL(ctx, tx, b.qb.Select(blockFields...).From("blocks").
		Where(squirrel.Eq{"page_id": pageID}).OrderBy("ordinal"))
	if err != nil {
		return nil, fmt.Errorf("listing blocks: %w", err)
	}
	defer rows.Close()
	blocks := []types.Block{}
	for rows.Next() {
		var (
			blk             types.Block
			content, column sql.NullString
		)
		if err := rows.Scan(&blk.BlockID, &blk.PageID, &blk.Ordinal, &blk.Kind, &content, &column); err != nil {
			return nil, err
		}
		if content.Valid {
			blk.Content = json.RawMessage(content.String)
		}
		blk.ColumnID = column.String
		blocks = append(blocks, blk)
	}
	return blocks, rows.Err()
}

// authorizePage loads a page and checks write access to its project's
// teamspace.
func (b *Backend) authorizePage(ctx context.Context, tx *sql.Tx, pageID string) (*types.Page, error) {
	page, err := b.getPage(ctx, tx, pageID)
	if err != nil {
		return nil, err
	}
	p, err := b.getProject(ctx, tx, page.ProjectID)
	if err != nil {
		return nil, err
	}
	if err := b.authorize(ctx, p.TeamspaceID, types.ActionWriteProject); err != nil {
		return nil, err
	}
	return page, nil
}

// authorizePageDataset checks write access to a page and that a dataset it
// uses belongs to the same teamspace as the page's project. A dataset from
// another teamspace is reported as not found.
func (b *Backend) authorizePageDataset(ctx context.Context, tx *sql.Tx, pageID, datasetID, action string) (*types.Page, error) {
	page, err := b.getPage(ctx, tx, pageID)
	if err != nil {
		return nil, err
	}
	p, err := b.getProject(ctx, tx, page.ProjectID)
	if err != nil {
		return nil, err
	}
	if err := b.authorize(ctx, p.TeamspaceID, types.ActionWriteProject); err != nil {
		return nil, err
	}
	ds, err := b.getDataset(ctx, tx, datasetID)
	if err != nil {
		return nil, err
	}
	if ds.TeamspaceID != p.TeamspaceID {
		return nil, fmt.Errorf("dataset %s in teamspace %s: %w", datasetID, p.TeamspaceID, types.ErrNotFound)
	}
	if err := b.authorize(ctx, ds.TeamspaceID, action); err != nil {
		return nil, err
	}
	return page, nil
}

func hydratePage(s scanner) (*types.Page, error) {
	var (
		page    types.Page
		target  sql.NullString
		created string
	)
	if err := s.Scan(&page.PageID, &page.ProjectID, &page.Ordinal, &target, &created); err != nil {
		return nil, err
	}
	t, err := parseTime(created)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	page.SubmissionDatasetID = target.String
	page.CreatedAt = t
	return &page, nil
}
