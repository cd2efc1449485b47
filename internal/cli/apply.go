package cli

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/mapforms/internal/manifest"
	"github.com/mesh-intelligence/mapforms/pkg/types"
)

func newApplyCmd(a *app) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Create datasets, layers and pages from a YAML manifest",
		Long: `Apply reads a manifest and creates everything it declares. The manifest is
validated before anything is written; if the engine rejects an entity part
way through, what was already created stays and is reported.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := manifest.Load(file)
			if err != nil {
				return err
			}
			return a.withEngine(cmd, func(ctx context.Context, engine types.Engine) error {
				res, applyErr := manifest.Apply(ctx, engine, m)
				if err := a.emit(cmd, res, func(w io.Writer) { printApplied(w, res) }); err != nil {
					return err
				}
				return applyErr
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "manifest file")
	cmd.MarkFlagRequired("file")
	return cmd
}

func printApplied(w io.Writer, res *manifest.Result) {
	names := make([]string, 0, len(res.Datasets))
	for name := range res.Datasets {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		printCreated(w, "dataset "+name, res.Datasets[name])
	}
	if res.Rows > 0 {
		printDone(w, "Seeded %d rows", res.Rows)
	}
	names = names[:0]
	for name := range res.Layers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		printCreated(w, "layer "+name, res.Layers[name])
	}
	if res.Project != nil {
		printCreated(w, "project "+res.Project.Name, res.Project.ProjectID)
	}
	for i, id := range res.Pages {
		printCreated(w, fmt.Sprintf("page %d", i), id)
	}
}
