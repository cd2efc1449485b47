package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/mapforms/pkg/mapforms"
)

const modulePath = "github.com/mesh-intelligence/mapforms"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the mapforms version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "mapforms v%s\nmodule: %s\n", mapforms.Version, modulePath)
			return nil
		},
	}
}
