package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/mapforms/pkg/types"
)

func newDatasetCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "dataset",
		Aliases: []string{"ds"},
		Short:   "Manage datasets",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "create <name>",
			Short: "Create a dataset in the current teamspace",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withEngine(cmd, func(ctx context.Context, engine types.Engine) error {
					ds, err := engine.CreateDataset(ctx, a.teamspace, args[0])
					if err != nil {
						return err
					}
					return a.emit(cmd, ds, func(w io.Writer) { printCreated(w, "dataset", ds.DatasetID) })
				})
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List datasets of the current teamspace",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withEngine(cmd, func(ctx context.Context, engine types.Engine) error {
					all, err := engine.ListDatasets(ctx, a.teamspace)
					if err != nil {
						return err
					}
					return a.emit(cmd, all, func(w io.Writer) {
						rows := [][]string{{"ID", "NAME", "CREATED"}}
						for _, ds := range all {
							rows = append(rows, []string{ds.DatasetID, ds.Name, formatTime(ds.CreatedAt)})
						}
						table(w, rows)
					})
				})
			},
		},
		&cobra.Command{
			Use:   "show <dataset-id>",
			Short: "Show a dataset and its columns",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withEngine(cmd, func(ctx context.Context, engine types.Engine) error {
					ds, err := engine.GetDataset(ctx, args[0])
					if err != nil {
						return err
					}
					cols, err := engine.ListColumns(ctx, ds.DatasetID)
					if err != nil {
						return err
					}
					out := struct {
						*types.Dataset
						Columns []*types.Column `json:"columns"`
					}{ds, cols}
					return a.emit(cmd, out, func(w io.Writer) {
						field(w, "ID", ds.DatasetID)
						field(w, "Name", ds.Name)
						field(w, "Teamspace", ds.TeamspaceID)
						field(w, "Created", formatTime(ds.CreatedAt))
						fmt.Fprintln(w)
						printColumns(w, cols)
					})
				})
			},
		},
		&cobra.Command{
			Use:   "rm <dataset-id>",
			Short: "Delete a dataset with its columns, rows and cells",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withEngine(cmd, func(ctx context.Context, engine types.Engine) error {
					if err := engine.DeleteDataset(ctx, args[0]); err != nil {
						return err
					}
					printDone(cmd.OutOrStdout(), "Deleted dataset %s", args[0])
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "export <dataset-id> <file.jsonl>",
			Short: "Write a dataset snapshot to a JSONL file",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withEngine(cmd, func(ctx context.Context, engine types.Engine) error {
					if err := engine.ExportDataset(ctx, args[0], args[1]); err != nil {
						return err
					}
					printDone(cmd.OutOrStdout(), "Exported %s to %s", args[0], args[1])
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "import <file.jsonl>",
			Short: "Create a dataset from a JSONL snapshot",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withEngine(cmd, func(ctx context.Context, engine types.Engine) error {
					ds, err := engine.ImportDataset(ctx, a.teamspace, args[0])
					if err != nil {
						return err
					}
					return a.emit(cmd, ds, func(w io.Writer) { printCreated(w, "dataset", ds.DatasetID) })
				})
			},
		},
	)
	return cmd
}

func newColumnCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "column",
		Aliases: []string{"col"},
		Short:   "Manage dataset columns",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "add <dataset-id> <name> <kind>",
			Short: "Add a typed column",
			Long:  "Add a column. Kinds: point, line, polygon, string, number, richtext, bool, date, icon.",
			Args:  cobra.ExactArgs(3),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withEngine(cmd, func(ctx context.Context, engine types.Engine) error {
					col, err := engine.CreateColumn(ctx, args[0], args[1], types.Kind(args[2]))
					if err != nil {
						return err
					}
					return a.emit(cmd, col, func(w io.Writer) { printCreated(w, "column", col.ColumnID) })
				})
			},
		},
		&cobra.Command{
			Use:   "list <dataset-id>",
			Short: "List the columns of a dataset",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withEngine(cmd, func(ctx context.Context, engine types.Engine) error {
					cols, err := engine.ListColumns(ctx, args[0])
					if err != nil {
						return err
					}
					return a.emit(cmd, cols, func(w io.Writer) { printColumns(w, cols) })
				})
			},
		},
		&cobra.Command{
			Use:   "rename <column-id> <name>",
			Short: "Rename a column",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withEngine(cmd, func(ctx context.Context, engine types.Engine) error {
					if err := engine.RenameColumn(ctx, args[0], args[1]); err != nil {
						return err
					}
					printDone(cmd.OutOrStdout(), "Renamed column %s to %s", args[0], args[1])
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "rm <column-id>",
			Short: "Delete a column and its cells",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withEngine(cmd, func(ctx context.Context, engine types.Engine) error {
					if err := engine.DeleteColumn(ctx, args[0]); err != nil {
						return err
					}
					printDone(cmd.OutOrStdout(), "Deleted column %s", args[0])
					return nil
				})
			},
		},
	)
	return cmd
}

func printColumns(w io.Writer, cols []*types.Column) {
	rows := [][]string{{"#", "ID", "NAME", "KIND"}}
	for _, c := range cols {
		rows = append(rows, []string{strconv.Itoa(c.Ordinal), c.ColumnID, c.Name, string(c.Kind)})
	}
	table(w, rows)
}
