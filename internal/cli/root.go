// Package cli implements the mapforms command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/mapforms/pkg/mapforms"
	"github.com/mesh-intelligence/mapforms/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// app holds the state shared by one invocation of the command tree.
type app struct {
	configDir string
	dataDir   string
	teamspace string
	jsonMode  bool

	config types.Config
	log    zerolog.Logger
}

// NewRootCmd creates the top-level "mapforms" command with global flags and
// every subcommand registered.
func NewRootCmd() *cobra.Command {
	a := &app{log: zerolog.Nop()}
	root := &cobra.Command{
		Use:   "mapforms",
		Short: "Typed datasets, map layers and form pages",
		Long: `mapforms stores typed datasets, binds their columns to map layers and
resolves project pages into render-ready map data. Form submissions on a
page are written back into a dataset.`,
		Version:           mapforms.Version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	root.PersistentFlags().StringVar(&a.configDir, "config-dir", "", "configuration directory (default: ./.mapforms or the per-user config dir)")
	root.PersistentFlags().StringVar(&a.dataDir, "data-dir", "", "data directory (default: ./.mapforms-db)")
	root.PersistentFlags().StringVar(&a.teamspace, "teamspace", "", "teamspace that owns new datasets and projects")
	root.PersistentFlags().BoolVar(&a.jsonMode, "json", false, "output in JSON format")

	root.AddCommand(
		newVersionCmd(),
		newInitCmd(a),
		newDatasetCmd(a),
		newColumnCmd(a),
		newRowCmd(a),
		newCellCmd(a),
		newLayerCmd(a),
		newProjectCmd(a),
		newPageCmd(a),
		newTrackCmd(a),
		newResolveCmd(a),
		newSubmitCmd(a),
		newApplyCmd(a),
	)
	return root
}

// Execute runs the root command and exits with a code that separates bad
// input from storage failures.
func Execute() {
	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		color.New(color.FgRed).Fprintln(os.Stderr, "error:", err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitSuccess
	case errors.Is(err, types.ErrUnavailable):
		return exitSysError
	default:
		return exitUserError
	}
}

// setup loads configuration and the logger before any subcommand runs.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	if cmd.Name() == "version" {
		return nil
	}
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	a.config = cfg
	a.log = newLogger(cmd.ErrOrStderr(), cfg.LogLevel)
	return nil
}

// withEngine attaches the configured engine for the duration of fn.
func (a *app) withEngine(cmd *cobra.Command, fn func(ctx context.Context, engine types.Engine) error) error {
	engine := mapforms.NewBackend(mapforms.WithLogger(a.log))
	if err := engine.Attach(a.config); err != nil {
		return fmt.Errorf("attach backend: %w", err)
	}
	defer engine.Detach()
	return fn(cmd.Context(), engine)
}

// newLogger writes human-readable log lines to w at the named level.
// Unknown or empty levels fall back to warn.
func newLogger(w io.Writer, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.WarnLevel
	}
	out := zerolog.ConsoleWriter{Out: w, NoColor: color.NoColor, TimeFormat: "15:04:05"}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}
