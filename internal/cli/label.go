package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/phylotrace/phylotrace/pkg/cache"
	"github.com/phylotrace/phylotrace/pkg/pipeline"
	"github.com/phylotrace/phylotrace/pkg/tips"
)

// labelOpts holds the command-line flags for the label command.
type labelOpts struct {
	tipsPath     string // leaf→label tip file (required)
	matrixPath   string // cost matrix CSV; empty selects the equal-cost matrix
	translate    string // optional label translation table
	delimiter    string // matrix field separator
	expandStates bool   // state space from the matrix alphabet
	workers      int    // engine fan-out
	output       string // output file path (stdout if empty)
	refresh      bool   // bypass cache read
	noCache      bool   // disable the cache entirely
	verify       bool   // re-check labeling cost against the forward minimum
}

// newLabelCmd creates the label command: one topology, one tip mapping,
// one optional cost matrix.
func newLabelCmd() *cobra.Command {
	opts := labelOpts{delimiter: ",", workers: 1}

	cmd := &cobra.Command{
		Use:   "label <topology-file>",
		Short: "Reconstruct ancestral states for a tree",
		Long: `Reconstruct minimum-cost ancestral states for a tree.

Reads a nested-parenthesis topology, a tab-separated tip file assigning a
state to every leaf, and optionally a cost matrix CSV. Without a matrix,
every state change costs 1 (Fitch-style minimum-change labeling).

Examples:
  phylotrace label tree.phy --tips tipdata.txt
  phylotrace label tree.phy --tips tipdata.txt --matrix geographic.csv -o labeled.phy
  phylotrace label tree.phy --tips tipdata.txt --matrix effective.csv --expand-states`,
		Args: cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return runLabel(c.Context(), args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.tipsPath, "tips", "", "tab-separated leaf→state file (required)")
	cmd.Flags().StringVar(&opts.matrixPath, "matrix", "", "cost matrix CSV (default: equal costs)")
	cmd.Flags().StringVar(&opts.translate, "translate", "", "label translation table, e.g. airport→country")
	cmd.Flags().StringVar(&opts.delimiter, "delimiter", opts.delimiter, "matrix field separator")
	cmd.Flags().BoolVar(&opts.expandStates, "expand-states", false, "build the state space from the matrix alphabet")
	cmd.Flags().IntVar(&opts.workers, "workers", opts.workers, "engine worker fan-out per tree level")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (stdout if empty)")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "recompute even if a cached result exists")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable the result cache")
	cmd.Flags().BoolVar(&opts.verify, "verify", false, "re-check the labeling cost after the run")
	_ = cmd.MarkFlagRequired("tips")

	return cmd
}

func runLabel(ctx context.Context, topologyPath string, opts labelOpts) error {
	logger := loggerFromContext(ctx)

	pipeOpts, err := buildOptions(topologyPath, opts)
	if err != nil {
		return err
	}
	pipeOpts.Logger = logger

	c, err := labelCache(opts.noCache)
	if err != nil {
		printWarning("Caching disabled: %v", err)
		c = cache.NewNullCache()
	}
	defer c.Close()

	prog := newProgress(logger)
	res, err := pipeline.NewRunner(c).Execute(ctx, *pipeOpts)
	if err != nil {
		return err
	}
	prog.done(fmt.Sprintf("Labeled %d nodes", res.Stats.NodeCount))

	for label, cost := range res.RootCosts {
		logger.Debug("root cost", "state", label, "cost", cost)
	}

	if err := emit(res.Labeled, opts.output); err != nil {
		return err
	}

	printSuccess("Root state %s, total cost %g", res.RootState, res.MinCost)
	printStats(res.Stats.NodeCount, res.Stats.StateCount, res.CacheHit)
	if opts.output != "" {
		printFile(opts.output)
	}
	return nil
}

// buildOptions loads all input files into pipeline options.
func buildOptions(topologyPath string, opts labelOpts) (*pipeline.Options, error) {
	topology, err := os.ReadFile(topologyPath)
	if err != nil {
		return nil, fmt.Errorf("read topology: %w", err)
	}

	mapping, err := tips.ReadFile(opts.tipsPath)
	if err != nil {
		return nil, err
	}
	if opts.translate != "" {
		table, err := tips.ReadTranslationFile(opts.translate)
		if err != nil {
			return nil, err
		}
		mapping, err = mapping.Translate(table)
		if err != nil {
			return nil, err
		}
	}

	var matrixCSV []byte
	if opts.matrixPath != "" {
		matrixCSV, err = os.ReadFile(opts.matrixPath)
		if err != nil {
			return nil, fmt.Errorf("read cost matrix: %w", err)
		}
	}

	delim := []rune(opts.delimiter)
	if len(delim) != 1 {
		return nil, fmt.Errorf("delimiter must be a single character, got %q", opts.delimiter)
	}

	return &pipeline.Options{
		Topology:     strings.TrimSpace(string(topology)),
		Tips:         mapping,
		MatrixCSV:    matrixCSV,
		Delimiter:    delim[0],
		ExpandStates: opts.expandStates,
		Workers:      opts.workers,
		Refresh:      opts.refresh,
		Verify:       opts.verify,
	}, nil
}

// labelCache picks the default file cache unless caching is disabled.
func labelCache(noCache bool) (cache.Cache, error) {
	if noCache {
		return cache.NewNullCache(), nil
	}
	dir, err := defaultCacheDir()
	if err != nil {
		return nil, err
	}
	return cache.NewFileCache(dir)
}

// defaultCacheDir returns ~/.cache/phylotrace.
func defaultCacheDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", "phylotrace"), nil
}

// emit writes the labeled tree to a file or stdout.
func emit(labeled, output string) error {
	if output == "" {
		fmt.Println(labeled)
		return nil
	}
	if err := os.WriteFile(output, []byte(labeled+"\n"), 0644); err != nil {
		return fmt.Errorf("write %s: %w", output, err)
	}
	return nil
}
