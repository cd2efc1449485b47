package cli

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/mapforms/pkg/types"
)

func newRowCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "row",
		Short: "Manage dataset rows",
	}

	var data string
	add := &cobra.Command{
		Use:   "add <dataset-id>",
		Short: "Add a row, optionally with cell values",
		Long: `Add a row. --data takes a JSON object keyed by column ID or column name;
every value is validated before the row is written.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := parseObject("data", data)
			if err != nil {
				return err
			}
			return a.withEngine(cmd, func(ctx context.Context, engine types.Engine) error {
				byID, err := columnKeys(ctx, engine, args[0], payload)
				if err != nil {
					return err
				}
				row, err := engine.CreateRow(ctx, args[0])
				if err != nil {
					return err
				}
				if len(byID) > 0 {
					if err := engine.BatchUpsert(ctx, row.RowID, byID); err != nil {
						if rmErr := engine.DeleteRows(ctx, []string{row.RowID}); rmErr != nil {
							a.log.Warn().Err(rmErr).Str("row_id", row.RowID).Msg("could not remove rejected row")
						}
						return err
					}
				}
				return a.emit(cmd, row, func(w io.Writer) { printCreated(w, "row", row.RowID) })
			})
		},
	}
	add.Flags().StringVar(&data, "data", "", "cell values as a JSON object")

	cmd.AddCommand(
		add,
		&cobra.Command{
			Use:   "list <dataset-id>",
			Short: "List rows with their values",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withEngine(cmd, func(ctx context.Context, engine types.Engine) error {
					cols, err := engine.ListColumns(ctx, args[0])
					if err != nil {
						return err
					}
					rows, err := engine.ListRows(ctx, args[0])
					if err != nil {
						return err
					}
					return a.emit(cmd, rows, func(w io.Writer) {
						header := []string{"ID"}
						for _, c := range cols {
							header = append(header, strings.ToUpper(c.Name))
						}
						out := [][]string{header}
						for _, r := range rows {
							line := []string{r.RowID}
							for _, c := range cols {
								line = append(line, formatValue(r.Cells[c.ColumnID]))
							}
							out = append(out, line)
						}
						table(w, out)
					})
				})
			},
		},
		&cobra.Command{
			Use:   "show <row-id>",
			Short: "Show one row",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withEngine(cmd, func(ctx context.Context, engine types.Engine) error {
					row, err := engine.GetRow(ctx, args[0])
					if err != nil {
						return err
					}
					cols, err := engine.ListColumns(ctx, row.DatasetID)
					if err != nil {
						return err
					}
					return a.emit(cmd, row, func(w io.Writer) {
						field(w, "ID", row.RowID)
						field(w, "Dataset", row.DatasetID)
						if row.SubmissionID != "" {
							field(w, "Submission", row.SubmissionID)
						}
						field(w, "Created", formatTime(row.CreatedAt))
						fmt.Fprintln(w)
						for _, c := range cols {
							if v, ok := row.Cells[c.ColumnID]; ok {
								field(w, c.Name, formatValue(v))
							}
						}
					})
				})
			},
		},
		&cobra.Command{
			Use:   "rm <row-id>...",
			Short: "Delete rows and their cells",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withEngine(cmd, func(ctx context.Context, engine types.Engine) error {
					if err := engine.DeleteRows(ctx, args); err != nil {
						return err
					}
					printDone(cmd.OutOrStdout(), "Deleted %d rows", len(args))
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "dup <row-id>...",
			Short: "Duplicate rows with all their cells",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withEngine(cmd, func(ctx context.Context, engine types.Engine) error {
					ids, err := engine.DuplicateRows(ctx, args)
					if err != nil {
						return err
					}
					return a.emit(cmd, ids, func(w io.Writer) {
						for _, id := range ids {
							printCreated(w, "row", id)
						}
					})
				})
			},
		},
	)
	return cmd
}

// columnKeys rewrites payload keys given as column names into column IDs.
// A key that names no column of the dataset is an error.
func columnKeys(ctx context.Context, engine types.Engine, datasetID string, payload map[string]any) (map[string]any, error) {
	if len(payload) == 0 {
		return nil, nil
	}
	cols, err := engine.ListColumns(ctx, datasetID)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]string, len(cols))
	isID := make(map[string]bool, len(cols))
	for _, c := range cols {
		byName[c.Name] = c.ColumnID
		isID[c.ColumnID] = true
	}
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[string]any, len(payload))
	for _, k := range keys {
		switch {
		case isID[k]:
			out[k] = payload[k]
		case byName[k] != "":
			out[byName[k]] = payload[k]
		default:
			return nil, fmt.Errorf("dataset %s has no column %q: %w", datasetID, k, types.ErrNotFound)
		}
	}
	return out, nil
}
