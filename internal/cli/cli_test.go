package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/mapforms/internal/manifest"
	"github.com/mesh-intelligence/mapforms/pkg/types"
)

// workspace is a config and data directory pair shared by the commands of
// one test.
type workspace struct {
	configDir string
	dataDir   string
}

func newWorkspace(t *testing.T) workspace {
	t.Helper()
	dir := t.TempDir()
	return workspace{
		configDir: filepath.Join(dir, "config"),
		dataDir:   filepath.Join(dir, "data"),
	}
}

// run executes one command in JSON mode and returns its stdout.
func (ws workspace) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append([]string{"--config-dir", ws.configDir, "--data-dir", ws.dataDir, "--json"}, args...))
	err := root.Execute()
	return out.String(), err
}

// mustRun executes a command and decodes its JSON output into v.
func (ws workspace) mustRun(t *testing.T, v any, args ...string) {
	t.Helper()
	out, err := ws.run(t, args...)
	require.NoError(t, err, "mapforms %v", args)
	if v != nil {
		require.NoError(t, json.Unmarshal([]byte(out), v), "output: %s", out)
	}
}

func TestInitWritesConfig(t *testing.T) {
	ws := newWorkspace(t)
	var out map[string]string
	ws.mustRun(t, &out, "init")

	assert.Equal(t, ws.configDir, out["config_dir"])
	assert.Equal(t, ws.dataDir, out["data_dir"])
	assert.Equal(t, types.BackendSQLite, out["backend"])

	data, err := os.ReadFile(filepath.Join(ws.configDir, "config.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "backend: sqlite")
	assert.Contains(t, string(data), "teamspace: default")
	assert.DirExists(t, ws.dataDir)
}

func TestVersion(t *testing.T) {
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "mapforms v")
	assert.Contains(t, out.String(), modulePath)
}

func TestMapWorkflow(t *testing.T) {
	ws := newWorkspace(t)

	var ds types.Dataset
	ws.mustRun(t, &ds, "dataset", "create", "Sites")
	assert.Equal(t, "default", ds.TeamspaceID)

	var loc, name, age types.Column
	ws.mustRun(t, &loc, "column", "add", ds.DatasetID, "loc", "point")
	ws.mustRun(t, &name, "column", "add", ds.DatasetID, "name", "string")
	ws.mustRun(t, &age, "column", "add", ds.DatasetID, "age", "number")
	assert.Equal(t, 2, age.Ordinal)

	var row types.Row
	ws.mustRun(t, &row, "row", "add", ds.DatasetID, "--data", `{"loc":"1,2","name":"Pier","age":40}`)

	var shown map[string]any
	ws.mustRun(t, &shown, "row", "show", row.RowID)
	cells := shown["cells"].(map[string]any)
	assert.Equal(t, "Pier", cells[name.ColumnID])
	assert.Equal(t, map[string]any{"lat": 1.0, "lng": 2.0}, cells[loc.ColumnID])

	var layer types.Layer
	ws.mustRun(t, &layer, "layer", "create", ds.DatasetID, "Sites",
		"--geometry", loc.ColumnID, "--title", name.ColumnID)
	assert.Equal(t, types.LayerPoint, layer.Type)

	var project types.Project
	ws.mustRun(t, &project, "project", "create", "Harbor")
	var page types.Page
	ws.mustRun(t, &page, "page", "create", project.ProjectID)
	ws.mustRun(t, nil, "page", "target", page.PageID, ds.DatasetID)
	ws.mustRun(t, nil, "page", "attach", page.PageID, layer.LayerID)
	ws.mustRun(t, nil, "page", "block", "add", page.PageID, "heading", "--content", `{"text":"Hi"}`)

	var bundle map[string]any
	ws.mustRun(t, &bundle, "resolve", page.PageID, "--step", "0")
	layers := bundle["layers"].([]any)
	require.Len(t, layers, 1)
	records := layers[0].(map[string]any)["records"].([]any)
	require.Len(t, records, 1)
	rec := records[0].(map[string]any)
	assert.Equal(t, row.RowID, rec["row_id"])
	assert.Equal(t, "Pier", rec["title"])
	assert.Len(t, bundle["blocks"], 1)

	var res types.SubmitResult
	ws.mustRun(t, &res, "submit", page.PageID, "visitor-1", "--data", `{"loc":"3,4","name":"Ann"}`)
	assert.True(t, res.Created)

	var marker map[string]any
	ws.mustRun(t, &marker, "resolve", "marker", layer.LayerID, res.RowID)
	assert.Equal(t, map[string]any{
		"loc":  map[string]any{"lat": 3.0, "lng": 4.0},
		"name": "Ann",
	}, marker["attributes"])

	var rows []map[string]any
	ws.mustRun(t, &rows, "row", "list", ds.DatasetID)
	assert.Len(t, rows, 2)
}

func TestSubmitRejectsInvalidAnswers(t *testing.T) {
	ws := newWorkspace(t)
	var ds types.Dataset
	ws.mustRun(t, &ds, "dataset", "create", "Survey")
	ws.mustRun(t, nil, "column", "add", ds.DatasetID, "age", "number")
	var project types.Project
	ws.mustRun(t, &project, "project", "create", "Census")
	var page types.Page
	ws.mustRun(t, &page, "page", "create", project.ProjectID)

	_, err := ws.run(t, "submit", page.PageID, "s-1", "--data", `{"age":"old"}`)
	assert.ErrorIs(t, err, types.ErrNoSubmissionTarget)

	ws.mustRun(t, nil, "page", "target", page.PageID, ds.DatasetID)
	_, err = ws.run(t, "submit", page.PageID, "s-1", "--data", `{"age":"old"}`)
	require.ErrorIs(t, err, types.ErrInvalidValue)
	assert.Equal(t, exitUserError, exitCode(err))

	var rows []map[string]any
	ws.mustRun(t, &rows, "row", "list", ds.DatasetID)
	assert.Empty(t, rows)
}

func TestRowAddRejectsUnknownColumn(t *testing.T) {
	ws := newWorkspace(t)
	var ds types.Dataset
	ws.mustRun(t, &ds, "dataset", "create", "Sites")
	ws.mustRun(t, nil, "column", "add", ds.DatasetID, "name", "string")

	_, err := ws.run(t, "row", "add", ds.DatasetID, "--data", `{"colour":"red"}`)
	assert.ErrorIs(t, err, types.ErrNotFound)

	_, err = ws.run(t, "row", "add", ds.DatasetID, "--data", `not json`)
	assert.Error(t, err)

	var rows []map[string]any
	ws.mustRun(t, &rows, "row", "list", ds.DatasetID)
	assert.Empty(t, rows)
}

func TestApplyManifest(t *testing.T) {
	ws := newWorkspace(t)
	var res manifest.Result
	ws.mustRun(t, &res, "apply", "-f", filepath.Join("..", "manifest", "testdata", "harbor.yaml"))

	assert.Len(t, res.Datasets, 2)
	assert.Equal(t, 2, res.Rows)
	require.Len(t, res.Pages, 2)
	require.NotNil(t, res.Project)

	var bundle map[string]any
	ws.mustRun(t, &bundle, "resolve", res.Pages[1], "--step", "0")
	assert.Len(t, bundle["layers"], 1)
	ws.mustRun(t, &bundle, "resolve", res.Pages[1], "--step", "2")
	assert.Len(t, bundle["layers"], 2)

	_, err := ws.run(t, "apply", "-f", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestTrackCommands(t *testing.T) {
	ws := newWorkspace(t)
	var res manifest.Result
	ws.mustRun(t, &res, "apply", "-f", filepath.Join("..", "manifest", "testdata", "harbor.yaml"))
	page := res.Pages[0]

	var track types.DataTrack
	ws.mustRun(t, &track, "track", "add", page, "--layer", "0", "--start", "4", "--end", "6")
	assert.Equal(t, res.Layers["Sites"], track.LayerID)

	_, err := ws.run(t, "track", "add", page, "--layer", "3", "--end", "1")
	assert.ErrorIs(t, err, types.ErrNotFound)

	var tracks []types.DataTrack
	ws.mustRun(t, &tracks, "track", "list", page)
	require.Len(t, tracks, 1)

	ws.mustRun(t, nil, "track", "rm", track.TrackID)
	ws.mustRun(t, &tracks, "track", "list", page)
	assert.Empty(t, tracks)
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, exitSuccess},
		{"bad input", types.ErrInvalidValue, exitUserError},
		{"wrapped unavailable", fmt.Errorf("attach backend: %w", types.ErrUnavailable), exitSysError},
		{"plain error", errors.New("boom"), exitUserError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		in   string
		want any
	}{
		{"Pier", "Pier"},
		{"40.7,-74", "40.7,-74"},
		{"", ""},
		{`{"lat":1,"lng":2}`, map[string]any{"lat": json.Number("1"), "lng": json.Number("2")}},
		{`[1,2]`, []any{json.Number("1"), json.Number("2")}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseValue(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := parseValue("{broken")
	assert.Error(t, err)
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "Pier", formatValue(types.StringValue("Pier")))
	assert.Equal(t, "7", formatValue(types.NumberValue(7)))
	assert.Equal(t, `{"lat":1,"lng":2}`, formatValue(types.PointValue{Lat: 1, Lng: 2}))
	assert.Contains(t, formatValue(nil), "-")
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, loadDotEnv(dir))

	t.Setenv("MAPFORMS_DOTENV_CHECK", "")
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("MAPFORMS_DOTENV_CHECK=from-file\n"), 0o644))
	require.NoError(t, os.Unsetenv("MAPFORMS_DOTENV_CHECK"))
	require.NoError(t, loadDotEnv(dir))
	assert.Equal(t, "from-file", os.Getenv("MAPFORMS_DOTENV_CHECK"))

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.local"), []byte("BAD$KEY=1\n"), 0o644))
	err := loadDotEnv(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), ".env.local")
}
