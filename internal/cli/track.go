package cli

import (
	"context"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/mapforms/pkg/types"
)

func newTrackCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "track",
		Short: "Manage data tracks that reveal layers step by step",
	}

	var layer, start, end int
	add := &cobra.Command{
		Use:   "add <page-id>",
		Short: "Reveal the layer at --layer only during steps --start..--end",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withEngine(cmd, func(ctx context.Context, engine types.Engine) error {
				track, err := engine.CreateDataTrack(ctx, args[0], start, end, layer)
				if err != nil {
					return err
				}
				return a.emit(cmd, track, func(w io.Writer) { printCreated(w, "track", track.TrackID) })
			})
		},
	}
	add.Flags().IntVar(&layer, "layer", 0, "layer position on the page")
	add.Flags().IntVar(&start, "start", 0, "first step the layer is shown")
	add.Flags().IntVar(&end, "end", 0, "last step the layer is shown")
	add.MarkFlagRequired("layer")
	add.MarkFlagRequired("end")

	cmd.AddCommand(
		add,
		&cobra.Command{
			Use:   "list <page-id>",
			Short: "List the data tracks of a page",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withEngine(cmd, func(ctx context.Context, engine types.Engine) error {
					tracks, err := engine.ListDataTracks(ctx, args[0])
					if err != nil {
						return err
					}
					return a.emit(cmd, tracks, func(w io.Writer) {
						rows := [][]string{{"ID", "POS", "LAYER", "STEPS"}}
						for _, t := range tracks {
							steps := strconv.Itoa(t.StartStepIndex) + ".." + strconv.Itoa(t.EndStepIndex)
							rows = append(rows, []string{t.TrackID, strconv.Itoa(t.LayerIndex), t.LayerID, steps})
						}
						table(w, rows)
					})
				})
			},
		},
		&cobra.Command{
			Use:   "rm <track-id>",
			Short: "Delete a data track",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withEngine(cmd, func(ctx context.Context, engine types.Engine) error {
					if err := engine.DeleteDataTrack(ctx, args[0]); err != nil {
						return err
					}
					printDone(cmd.OutOrStdout(), "Deleted track %s", args[0])
					return nil
				})
			},
		},
	)
	return cmd
}
