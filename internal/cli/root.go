// Package cli implements the pcbforge command-line interface.
//
// Commands cover the full board workflow: init scaffolds a job file,
// build turns Gerber and drill artwork into machine G-code, inspect
// renders a single layer's classified contours, serve previews the
// job in a browser, and cache manages the local output cache.
//
// All commands support --verbose (-v) for debug-level logging.
// Loggers travel through context.Context so library code can report
// structured progress.
package cli

import (
	"context"
	"os"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/pcbforge/pcbforge/pkg/buildinfo"
)

// Execute runs the pcbforge CLI and returns an error if any command
// fails. Cancelling ctx stops long-running commands like serve.
// Version information comes from pkg/buildinfo, injected via ldflags
// at build time.
func Execute(ctx context.Context) error {
	var verbose bool

	root := &cobra.Command{
		Use:          "pcbforge",
		Short:        "pcbforge turns PCB artwork into CNC and laser toolpaths",
		Long:         `pcbforge reads Gerber copper layers and Excellon drill files and plans isolation, engraving, cutting, and drilling G-code for hobby CNC routers and laser engravers.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := charmlog.InfoLevel
			if verbose {
				level = charmlog.DebugLevel
			}
			ctx := withLogger(cmd.Context(), newLogger(os.Stderr, level))
			cmd.SetContext(ctx)
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")

	root.AddCommand(newInitCmd())
	root.AddCommand(newBuildCmd())
	root.AddCommand(newInspectCmd())
	root.AddCommand(newServeCmd())
	root.AddCommand(newCacheCmd())
	root.AddCommand(newCompletionCmd())

	return root.ExecuteContext(ctx)
}
