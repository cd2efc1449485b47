package manifest

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mesh-intelligence/mapforms/pkg/types"
)

// Result maps manifest names to the IDs Apply created.
type Result struct {
	Project  *types.Project               `json:"project,omitempty"`
	Datasets map[string]string            `json:"datasets"`
	Columns  map[string]map[string]string `json:"columns"` // dataset name -> column name -> ID
	Layers   map[string]string            `json:"layers"`
	Pages    []string                     `json:"pages"`
	Rows     int                          `json:"rows"`
}

// Apply creates everything the manifest declares through the engine's public
// operations, in dependency order. It is not atomic: on error the entities
// created so far remain and the partial Result is returned with the error.
func Apply(ctx context.Context, engine types.Engine, m *Manifest) (*Result, error) {
	res := &Result{
		Datasets: map[string]string{},
		Columns:  map[string]map[string]string{},
		Layers:   map[string]string{},
	}

	for _, decl := range m.Datasets {
		if err := applyDataset(ctx, engine, m.Teamspace, decl, res); err != nil {
			return res, err
		}
	}

	for _, decl := range m.Layers {
		roles, err := layerRoles(decl, res.Columns[decl.Dataset])
		if err != nil {
			return res, err
		}
		layer, err := engine.CreateLayer(ctx, res.Datasets[decl.Dataset], decl.Name, decl.Type, roles)
		if err != nil {
			return res, fmt.Errorf("layer %q: %w", decl.Name, err)
		}
		res.Layers[decl.Name] = layer.LayerID
	}

	if m.Project == "" {
		return res, nil
	}
	project, err := engine.CreateProject(ctx, m.Teamspace, m.Project)
	if err != nil {
		return res, fmt.Errorf("project %q: %w", m.Project, err)
	}
	res.Project = project

	for i, decl := range m.Pages {
		pageID, err := applyPage(ctx, engine, project.ProjectID, decl, res)
		if err != nil {
			return res, fmt.Errorf("page %d: %w", i, err)
		}
		res.Pages = append(res.Pages, pageID)
	}
	return res, nil
}

// layerRoles maps the column names a layer binds to the created column IDs.
func layerRoles(decl Layer, cols map[string]string) (types.Roles, error) {
	var roles types.Roles
	slots := map[types.Role]*string{
		types.RoleGeometry:    &roles.Geometry,
		types.RoleTitle:       &roles.Title,
		types.RoleDescription: &roles.Description,
		types.RoleIcon:        &roles.Icon,
	}
	for _, b := range decl.Roles.Bindings() {
		id, ok := cols[b.ColumnID]
		if !ok {
			return types.Roles{}, invalidf("layer %q binds %s to unknown column %q", decl.Name, b.Role, b.ColumnID)
		}
		*slots[b.Role] = id
	}
	return roles, nil
}

func applyDataset(ctx context.Context, engine types.Engine, teamspaceID string, decl Dataset, res *Result) error {
	ds, err := engine.CreateDataset(ctx, teamspaceID, decl.Name)
	if err != nil {
		return fmt.Errorf("dataset %q: %w", decl.Name, err)
	}
	res.Datasets[decl.Name] = ds.DatasetID
	cols := make(map[string]string, len(decl.Columns))
	res.Columns[decl.Name] = cols
	for _, c := range decl.Columns {
		col, err := engine.CreateColumn(ctx, ds.DatasetID, c.Name, c.Kind)
		if err != nil {
			return fmt.Errorf("dataset %q column %q: %w", decl.Name, c.Name, err)
		}
		cols[c.Name] = col.ColumnID
	}

	for i, values := range decl.Rows {
		row, err := engine.CreateRow(ctx, ds.DatasetID)
		if err != nil {
			return fmt.Errorf("dataset %q row %d: %w", decl.Name, i, err)
		}
		payload := make(map[string]any, len(values))
		for name, v := range values {
			payload[cols[name]] = v
		}
		if err := engine.BatchUpsert(ctx, row.RowID, payload); err != nil {
			return fmt.Errorf("dataset %q row %d: %w", decl.Name, i, err)
		}
		res.Rows++
	}
	return nil
}

func applyPage(ctx context.Context, engine types.Engine, projectID string, decl Page, res *Result) (string, error) {
	page, err := engine.CreatePage(ctx, projectID)
	if err != nil {
		return "", err
	}
	if decl.SubmitTo != "" {
		if err := engine.SetSubmissionTarget(ctx, page.PageID, res.Datasets[decl.SubmitTo]); err != nil {
			return page.PageID, err
		}
	}
	for _, b := range decl.Blocks {
		var content json.RawMessage
		if b.Content != nil {
			if content, err = json.Marshal(b.Content); err != nil {
				return page.PageID, fmt.Errorf("block %q content: %w", b.Kind, err)
			}
		}
		columnID := ""
		if b.Column != "" {
			columnID = res.Columns[decl.SubmitTo][b.Column]
		}
		if _, err := engine.AddBlock(ctx, page.PageID, b.Kind, content, columnID); err != nil {
			return page.PageID, fmt.Errorf("block %q: %w", b.Kind, err)
		}
	}
	for _, name := range decl.Layers {
		if _, err := engine.AttachLayer(ctx, page.PageID, res.Layers[name]); err != nil {
			return page.PageID, fmt.Errorf("attaching %q: %w", name, err)
		}
	}
	for _, t := range decl.Tracks {
		if _, err := engine.CreateDataTrack(ctx, page.PageID, t.Start, t.End, t.Layer); err != nil {
			return page.PageID, fmt.Errorf("track on layer %d: %w", t.Layer, err)
		}
	}
	return page.PageID, nil
}
