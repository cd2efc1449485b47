package cli

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/mapforms/pkg/types"
)

// layerFlags are the role bindings shared by layer create and update.
type layerFlags struct {
	name      string
	layerType string
	roles     types.Roles
}

func (f *layerFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.layerType, "type", string(types.LayerPoint), "layer type: point, line or polygon")
	cmd.Flags().StringVar(&f.roles.Geometry, "geometry", "", "geometry column ID")
	cmd.Flags().StringVar(&f.roles.Title, "title", "", "title column ID")
	cmd.Flags().StringVar(&f.roles.Description, "description", "", "description column ID")
	cmd.Flags().StringVar(&f.roles.Icon, "icon", "", "icon column ID (point layers only)")
}

func newLayerCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "layer",
		Short: "Manage map layers over datasets",
	}

	var createFlags layerFlags
	create := &cobra.Command{
		Use:   "create <dataset-id> <name>",
		Short: "Create a layer and bind its roles",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withEngine(cmd, func(ctx context.Context, engine types.Engine) error {
				layer, err := engine.CreateLayer(ctx, args[0], args[1], types.LayerType(createFlags.layerType), createFlags.roles)
				if err != nil {
					return err
				}
				return a.emit(cmd, layer, func(w io.Writer) { printCreated(w, "layer", layer.LayerID) })
			})
		},
	}
	createFlags.register(create)
	create.MarkFlagRequired("geometry")

	var updateFlags layerFlags
	update := &cobra.Command{
		Use:   "update <layer-id>",
		Short: "Rename a layer or rebind its roles",
		Long:  "Update a layer. Role flags that are not given keep their current binding.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withEngine(cmd, func(ctx context.Context, engine types.Engine) error {
				current, err := engine.GetLayer(ctx, args[0])
				if err != nil {
					return err
				}
				roles := current.Roles
				flags := cmd.Flags()
				if flags.Changed("geometry") {
					roles.Geometry = updateFlags.roles.Geometry
				}
				if flags.Changed("title") {
					roles.Title = updateFlags.roles.Title
				}
				if flags.Changed("description") {
					roles.Description = updateFlags.roles.Description
				}
				if flags.Changed("icon") {
					roles.Icon = updateFlags.roles.Icon
				}
				t := current.Type
				if flags.Changed("type") {
					t = types.LayerType(updateFlags.layerType)
				}
				layer, err := engine.UpdateLayer(ctx, args[0], updateFlags.name, t, roles)
				if err != nil {
					return err
				}
				return a.emit(cmd, layer, func(w io.Writer) { printDone(w, "Updated layer %s", layer.LayerID) })
			})
		},
	}
	updateFlags.register(update)
	update.Flags().StringVar(&updateFlags.name, "name", "", "new layer name")

	cmd.AddCommand(
		create,
		update,
		&cobra.Command{
			Use:   "list <dataset-id>",
			Short: "List the layers over a dataset",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withEngine(cmd, func(ctx context.Context, engine types.Engine) error {
					layers, err := engine.ListLayers(ctx, args[0])
					if err != nil {
						return err
					}
					return a.emit(cmd, layers, func(w io.Writer) {
						rows := [][]string{{"ID", "NAME", "TYPE", "GEOMETRY"}}
						for _, l := range layers {
							rows = append(rows, []string{l.LayerID, l.Name, string(l.Type), l.Roles.Geometry})
						}
						table(w, rows)
					})
				})
			},
		},
		&cobra.Command{
			Use:   "show <layer-id>",
			Short: "Show a layer and its role bindings",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withEngine(cmd, func(ctx context.Context, engine types.Engine) error {
					layer, err := engine.GetLayer(ctx, args[0])
					if err != nil {
						return err
					}
					return a.emit(cmd, layer, func(w io.Writer) {
						field(w, "ID", layer.LayerID)
						field(w, "Name", layer.Name)
						field(w, "Type", string(layer.Type))
						field(w, "Dataset", layer.DatasetID)
						for _, b := range layer.Roles.Bindings() {
							field(w, string(b.Role), b.ColumnID)
						}
					})
				})
			},
		},
		&cobra.Command{
			Use:   "rm <layer-id>",
			Short: "Delete a layer and detach it from every page",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withEngine(cmd, func(ctx context.Context, engine types.Engine) error {
					if err := engine.DeleteLayer(ctx, args[0]); err != nil {
						return err
					}
					printDone(cmd.OutOrStdout(), "Deleted layer %s", args[0])
					return nil
				})
			},
		},
	)
	return cmd
}
