package cli

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/mapforms/pkg/types"
)

func newResolveCmd(a *app) *cobra.Command {
	var step int
	cmd := &cobra.Command{
		Use:   "resolve <page-id>",
		Short: "Resolve what a page shows at a step",
		Long: `Resolve a page into its blocks and the render records of every layer
visible at --step. Layers whose data tracks do not cover the step are left out.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withEngine(cmd, func(ctx context.Context, engine types.Engine) error {
				bundle, err := engine.ResolvePageData(ctx, args[0], step)
				if err != nil {
					return err
				}
				return a.emit(cmd, bundle, func(w io.Writer) { printBundle(w, bundle) })
			})
		},
	}
	cmd.Flags().IntVar(&step, "step", 0, "step index")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "point <layer-id> <row-id>",
			Short: "Resolve one row of a point layer",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withEngine(cmd, func(ctx context.Context, engine types.Engine) error {
					rec, err := engine.ResolveLayerPoint(ctx, args[0], args[1])
					if err != nil {
						return err
					}
					return a.emit(cmd, rec, func(w io.Writer) { printRecord(w, rec) })
				})
			},
		},
		&cobra.Command{
			Use:   "marker <layer-id> <row-id>",
			Short: "Resolve one row of a layer with every column for a detail view",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withEngine(cmd, func(ctx context.Context, engine types.Engine) error {
					rec, err := engine.ResolveLayerMarker(ctx, args[0], args[1])
					if err != nil {
						return err
					}
					return a.emit(cmd, rec, func(w io.Writer) { printRecord(w, rec) })
				})
			},
		},
	)
	return cmd
}

func newSubmitCmd(a *app) *cobra.Command {
	var data string
	cmd := &cobra.Command{
		Use:   "submit <page-id> <submission-id>",
		Short: "Submit form answers to a page's dataset",
		Long: `Submit writes --data into the row identified by the submission ID,
creating it on first submission. Keys may be block IDs, column IDs or column
names. Nothing is written if any answer is invalid.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := parseObject("data", data)
			if err != nil {
				return err
			}
			return a.withEngine(cmd, func(ctx context.Context, engine types.Engine) error {
				res, err := engine.SubmitPage(ctx, args[0], args[1], payload)
				if err != nil {
					return err
				}
				return a.emit(cmd, res, func(w io.Writer) {
					if res.Created {
						printCreated(w, "row", res.RowID)
						return
					}
					printDone(w, "Updated row %s", res.RowID)
				})
			})
		},
	}
	cmd.Flags().StringVar(&data, "data", "", "answers as a JSON object")
	cmd.MarkFlagRequired("data")
	return cmd
}

func printBundle(w io.Writer, b *types.PageDataBundle) {
	field(w, "Page", b.Page.PageID)
	field(w, "Step", strconv.Itoa(b.Step))
	if b.Page.SubmissionDatasetID != "" {
		field(w, "Submits to", b.Page.SubmissionDatasetID)
	}
	if len(b.Blocks) > 0 {
		fmt.Fprintln(w)
		rows := [][]string{{"#", "KIND", "COLUMN", "CONTENT"}}
		for _, blk := range b.Blocks {
			rows = append(rows, []string{strconv.Itoa(blk.Ordinal), blk.Kind, blk.ColumnID, string(blk.Content)})
		}
		table(w, rows)
	}
	for _, l := range b.Layers {
		fmt.Fprintf(w, "\n%s %s %s\n", headColor.Sprintf("[%d]", l.Position), l.Layer.Name, dimColor.Sprintf("(%s, %d records)", l.Layer.Type, len(l.Records)))
		rows := [][]string{{"ROW", "GEOMETRY", "TITLE", "ICON"}}
		for _, r := range l.Records {
			rows = append(rows, []string{r.RowID, formatValue(r.Geometry), formatValue(r.Title), formatValue(r.Icon)})
		}
		table(w, rows)
	}
}

func printRecord(w io.Writer, r *types.RenderRecord) {
	field(w, "Row", r.RowID)
	field(w, "Layer", r.LayerID)
	field(w, "Geometry", formatValue(r.Geometry))
	field(w, "Title", formatValue(r.Title))
	field(w, "Description", formatValue(r.Description))
	field(w, "Icon", formatValue(r.Icon))
	if len(r.Attributes) == 0 {
		return
	}
	names := make([]string, 0, len(r.Attributes))
	for name := range r.Attributes {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Fprintln(w)
	for _, name := range names {
		field(w, name, formatValue(r.Attributes[name]))
	}
}
