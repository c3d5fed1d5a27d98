package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/phylotrace/phylotrace/pkg/newick"
	"github.com/phylotrace/phylotrace/pkg/tree"
)

// newShowCmd creates the show command, which pretty-prints a tree file.
func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <topology-file>",
		Short: "Print a tree file as ASCII art",
		Long: `Parse a nested-parenthesis tree file and print its structure as an
ASCII sketch. Useful for eyeballing a topology or a labeled output file.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read topology: %w", err)
			}

			t, err := newick.Parse(strings.TrimSpace(string(data)))
			if err != nil {
				return err
			}

			fmt.Print(tree.Sketch(t, tree.NameLabeler))
			printDetail("%d nodes, %d leaves", t.NodeCount(), len(t.Leaves()))
			return nil
		},
	}
}
