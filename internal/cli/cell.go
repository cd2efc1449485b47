package cli

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/mapforms/pkg/types"
)

func newCellCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cell",
		Short: "Read and write single cells",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "set <row-id> <column-id> <value>",
			Short: "Validate and write a cell value",
			Long: `Write a cell. JSON objects and arrays are decoded first; any other text is
parsed by the column's kind (for example "40.7,-74.0" for a point).`,
			Args: cobra.ExactArgs(3),
			RunE: func(cmd *cobra.Command, args []string) error {
				raw, err := parseValue(args[2])
				if err != nil {
					return err
				}
				return a.withEngine(cmd, func(ctx context.Context, engine types.Engine) error {
					if err := engine.UpsertCell(ctx, args[0], args[1], raw); err != nil {
						return err
					}
					v, err := engine.GetCell(ctx, args[0], args[1])
					if err != nil {
						return err
					}
					return a.emit(cmd, v, func(w io.Writer) { printDone(w, "Set %s = %s", args[1], formatValue(v)) })
				})
			},
		},
		&cobra.Command{
			Use:   "get <row-id> <column-id>",
			Short: "Print a cell value",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withEngine(cmd, func(ctx context.Context, engine types.Engine) error {
					v, err := engine.GetCell(ctx, args[0], args[1])
					if err != nil {
						return err
					}
					return a.emit(cmd, v, func(w io.Writer) { io.WriteString(w, formatValue(v)+"\n") })
				})
			},
		},
		&cobra.Command{
			Use:   "rm <row-id> <column-id>",
			Short: "Clear a cell",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withEngine(cmd, func(ctx context.Context, engine types.Engine) error {
					if err := engine.DeleteCell(ctx, args[0], args[1]); err != nil {
						return err
					}
					printDone(cmd.OutOrStdout(), "Cleared %s", args[1])
					return nil
				})
			},
		},
	)
	return cmd
}
