package cli

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/mapforms/pkg/types"
)

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize mapforms storage",
		Long:  "Create the configuration and data directories and the database schema.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			err := a.withEngine(cmd, func(ctx context.Context, engine types.Engine) error { return nil })
			if err != nil {
				return err
			}
			out := map[string]string{
				"config_dir": a.configDir,
				"data_dir":   a.dataDir,
				"backend":    a.config.Backend,
			}
			return a.emit(cmd, out, func(w io.Writer) {
				printDone(w, "mapforms initialized")
				field(w, "config", a.configDir)
				field(w, "data", a.dataDir)
				field(w, "backend", a.config.Backend)
			})
		},
	}
}
