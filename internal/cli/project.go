package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/mapforms/pkg/types"
)

func newProjectCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Manage projects",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "create <name>",
			Short: "Create a project in the current teamspace",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withEngine(cmd, func(ctx context.Context, engine types.Engine) error {
					p, err := engine.CreateProject(ctx, a.teamspace, args[0])
					if err != nil {
						return err
					}
					return a.emit(cmd, p, func(w io.Writer) { printCreated(w, "project", p.ProjectID) })
				})
			},
		},
		&cobra.Command{
			Use:   "show <project-id>",
			Short: "Show a project and its pages",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withEngine(cmd, func(ctx context.Context, engine types.Engine) error {
					p, err := engine.GetProject(ctx, args[0])
					if err != nil {
						return err
					}
					pages, err := engine.ListPages(ctx, p.ProjectID)
					if err != nil {
						return err
					}
					out := struct {
						*types.Project
						Pages []*types.Page `json:"pages"`
					}{p, pages}
					return a.emit(cmd, out, func(w io.Writer) {
						field(w, "ID", p.ProjectID)
						field(w, "Name", p.Name)
						field(w, "Teamspace", p.TeamspaceID)
						fmt.Fprintln(w)
						printPages(w, pages)
					})
				})
			},
		},
	)
	return cmd
}

func newPageCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "page",
		Short: "Manage project pages, their blocks and layers",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "create <project-id>",
			Short: "Append a page to a project",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withEngine(cmd, func(ctx context.Context, engine types.Engine) error {
					page, err := engine.CreatePage(ctx, args[0])
					if err != nil {
						return err
					}
					return a.emit(cmd, page, func(w io.Writer) { printCreated(w, "page", page.PageID) })
				})
			},
		},
		&cobra.Command{
			Use:   "list <project-id>",
			Short: "List the pages of a project in order",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withEngine(cmd, func(ctx context.Context, engine types.Engine) error {
					pages, err := engine.ListPages(ctx, args[0])
					if err != nil {
						return err
					}
					return a.emit(cmd, pages, func(w io.Writer) { printPages(w, pages) })
				})
			},
		},
		&cobra.Command{
			Use:   "rm <page-id>",
			Short: "Delete a page with its blocks, layers and tracks",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withEngine(cmd, func(ctx context.Context, engine types.Engine) error {
					if err := engine.DeletePage(ctx, args[0]); err != nil {
						return err
					}
					printDone(cmd.OutOrStdout(), "Deleted page %s", args[0])
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "target <page-id> <dataset-id>",
			Short: "Set the dataset form submissions on a page write to",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withEngine(cmd, func(ctx context.Context, engine types.Engine) error {
					if err := engine.SetSubmissionTarget(ctx, args[0], args[1]); err != nil {
						return err
					}
					printDone(cmd.OutOrStdout(), "Page %s submits to %s", args[0], args[1])
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "attach <page-id> <layer-id>",
			Short: "Attach a layer on top of the page's layer stack",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withEngine(cmd, func(ctx context.Context, engine types.Engine) error {
					att, err := engine.AttachLayer(ctx, args[0], args[1])
					if err != nil {
						return err
					}
					return a.emit(cmd, att, func(w io.Writer) {
						printDone(w, "Attached %s at position %d", att.LayerID, att.Position)
					})
				})
			},
		},
		&cobra.Command{
			Use:   "detach <page-id> <layer-id>",
			Short: "Detach a layer and close the gap it leaves",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withEngine(cmd, func(ctx context.Context, engine types.Engine) error {
					if err := engine.DetachLayer(ctx, args[0], args[1]); err != nil {
						return err
					}
					printDone(cmd.OutOrStdout(), "Detached %s", args[1])
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "reorder <page-id> <layer-id>...",
			Short: "Replace the layer order of a page",
			Long:  "Reorder layers. The IDs must name every attached layer exactly once.",
			Args:  cobra.MinimumNArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withEngine(cmd, func(ctx context.Context, engine types.Engine) error {
					if err := engine.ReorderLayers(ctx, args[0], args[1:]); err != nil {
						return err
					}
					printDone(cmd.OutOrStdout(), "Reordered %d layers", len(args)-1)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "layers <page-id>",
			Short: "List the layers attached to a page",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withEngine(cmd, func(ctx context.Context, engine types.Engine) error {
					atts, err := engine.ListPageLayers(ctx, args[0])
					if err != nil {
						return err
					}
					return a.emit(cmd, atts, func(w io.Writer) {
						rows := [][]string{{"POS", "LAYER", "ATTACHED"}}
						for _, att := range atts {
							rows = append(rows, []string{strconv.Itoa(att.Position), att.LayerID, formatTime(att.AttachedAt)})
						}
						table(w, rows)
					})
				})
			},
		},
		newBlockCmd(a),
	)
	return cmd
}

func newBlockCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "block",
		Short: "Manage page content blocks",
	}

	var content, column string
	add := &cobra.Command{
		Use:   "add <page-id> <kind>",
		Short: "Append a content block to a page",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var raw json.RawMessage
			if content != "" {
				if !json.Valid([]byte(content)) {
					return fmt.Errorf("--content must be JSON: %w", types.ErrInvalidValue)
				}
				raw = json.RawMessage(content)
			}
			return a.withEngine(cmd, func(ctx context.Context, engine types.Engine) error {
				blk, err := engine.AddBlock(ctx, args[0], args[1], raw, column)
				if err != nil {
					return err
				}
				return a.emit(cmd, blk, func(w io.Writer) { printCreated(w, "block", blk.BlockID) })
			})
		},
	}
	add.Flags().StringVar(&content, "content", "", "block content as JSON")
	add.Flags().StringVar(&column, "column", "", "column ID an input block writes to")

	cmd.AddCommand(
		add,
		&cobra.Command{
			Use:   "list <page-id>",
			Short: "List the blocks of a page in order",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withEngine(cmd, func(ctx context.Context, engine types.Engine) error {
					blocks, err := engine.ListBlocks(ctx, args[0])
					if err != nil {
						return err
					}
					return a.emit(cmd, blocks, func(w io.Writer) {
						rows := [][]string{{"#", "ID", "KIND", "COLUMN"}}
						for _, b := range blocks {
							rows = append(rows, []string{strconv.Itoa(b.Ordinal), b.BlockID, b.Kind, b.ColumnID})
						}
						table(w, rows)
					})
				})
			},
		},
	)
	return cmd
}

func printPages(w io.Writer, pages []*types.Page) {
	rows := [][]string{{"#", "ID", "SUBMITS TO"}}
	for _, p := range pages {
		rows = append(rows, []string{strconv.Itoa(p.Ordinal), p.PageID, p.SubmissionDatasetID})
	}
	table(w, rows)
}
