package cli

import (
	"context"
	"os"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/phylotrace/phylotrace/pkg/buildinfo"
)

// Execute runs the phylotrace CLI and returns an error if any command
// fails. This is the main entry point for the application.
//
// Logging:
//   - Default: info level (logs to stderr)
//   - With --verbose (-v): debug level
//
// The logger is attached to the context and accessible to all commands via
// loggerFromContext.
func Execute(ctx context.Context) error {
	var verbose bool

	root := &cobra.Command{
		Use:          "phylotrace",
		Short:        "phylotrace reconstructs ancestral states on phylogenetic trees",
		Long:         `phylotrace labels the internal nodes of a fixed phylogenetic tree with minimum-cost ancestral states (Sankoff parsimony), given leaf states and a transition cost matrix.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := charmlog.InfoLevel
			if verbose {
				level = charmlog.DebugLevel
			}
			cmd.SetContext(withLogger(cmd.Context(), newLogger(os.Stderr, level)))
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")

	root.AddCommand(newLabelCmd())
	root.AddCommand(newRunCmd())
	root.AddCommand(newShowCmd())
	root.AddCommand(newServeCmd())
	root.AddCommand(newCacheCmd())

	return root.ExecuteContext(ctx)
}
