package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/phylotrace/phylotrace/pkg/cache"
	"github.com/phylotrace/phylotrace/pkg/config"
	"github.com/phylotrace/phylotrace/pkg/pipeline"
	"github.com/phylotrace/phylotrace/pkg/tips"
)

// runOpts holds the command-line flags for the run command.
type runOpts struct {
	interactive bool // pick a single variant via TUI
	refresh     bool // recompute even if output files and cache entries exist
	outputDir   string
	workers     int
}

// newRunCmd creates the run command, which executes every variant of a
// TOML batch config against one topology.
func newRunCmd() *cobra.Command {
	var opts runOpts

	cmd := &cobra.Command{
		Use:   "run <config.toml>",
		Short: "Run every matrix variant of a batch config",
		Long: `Run the reconstruction pipeline for each [[variant]] in a TOML config.

Each variant pairs the shared topology and tip file with its own cost
matrix and optional label translation. Outputs land in the configured
output directory as <variant>.labeled.phy; variants whose output file
already exists are skipped unless --refresh is given.

Example config:
  topology   = "data/pH1N1_rooted.phy"
  tips       = "data/tipdata.txt"
  output_dir = "out"

  [[variant]]
  name   = "airport_geographic"
  matrix = "data/geographic.distance.matrix.csv"`,
		Args: cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return runBatch(c.Context(), args[0], opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.interactive, "interactive", "i", false, "pick a single variant interactively")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "recompute even if outputs exist")
	cmd.Flags().StringVarP(&opts.outputDir, "output-dir", "o", "", "override the config output directory")
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "override the config worker fan-out")

	return cmd
}

func runBatch(ctx context.Context, configPath string, opts runOpts) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if opts.outputDir != "" {
		cfg.OutputDir = opts.outputDir
	}
	if opts.workers > 0 {
		cfg.Workers = opts.workers
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = "."
	}
	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	variants := cfg.Variants
	if opts.interactive {
		v, ok, err := pickVariant(variants)
		if err != nil {
			return err
		}
		if !ok {
			printInfo("No variant selected")
			return nil
		}
		variants = []config.Variant{*v}
	}

	topology, err := os.ReadFile(cfg.Topology)
	if err != nil {
		return fmt.Errorf("read topology: %w", err)
	}
	baseTips, err := tips.ReadFile(cfg.Tips)
	if err != nil {
		return err
	}

	c, err := openCache(ctx, cfg.Cache)
	if err != nil {
		return err
	}
	defer c.Close()

	runner := pipeline.NewRunner(c)
	if cfg.Cache.TTLHours > 0 {
		runner = runner.WithTTL(time.Duration(cfg.Cache.TTLHours) * time.Hour)
	}

	var failed int
	for _, v := range variants {
		if err := ctx.Err(); err != nil {
			return err
		}
		out := filepath.Join(cfg.OutputDir, v.Name+".labeled.phy")
		if !opts.refresh {
			if _, err := os.Stat(out); err == nil {
				printInfo("%s: output exists, skipping", v.Name)
				continue
			}
		}

		printInfo("Running variant %s", v.Name)
		if err := runVariant(ctx, runner, cfg, v, string(topology), baseTips, out, opts.refresh); err != nil {
			printError("%s: %v", v.Name, err)
			failed++
			continue
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d variants failed", failed, len(variants))
	}
	printSuccess("All %d variants complete", len(variants))
	return nil
}

// runVariant executes one variant and writes its labeled tree.
func runVariant(ctx context.Context, runner *pipeline.Runner, cfg *config.Config,
	v config.Variant, topology string, baseTips tips.Mapping, out string,
	refresh bool) error {

	mapping := baseTips
	if v.Translate != "" {
		table, err := tips.ReadTranslationFile(v.Translate)
		if err != nil {
			return err
		}
		mapping, err = baseTips.Translate(table)
		if err != nil {
			return err
		}
	}

	matrixCSV, err := os.ReadFile(v.Matrix)
	if err != nil {
		return fmt.Errorf("read matrix: %w", err)
	}

	res, err := runner.Execute(ctx, pipeline.Options{
		Topology:     strings.TrimSpace(topology),
		Tips:         mapping,
		MatrixCSV:    matrixCSV,
		Delimiter:    cfg.DelimiterRune(),
		ExpandStates: v.ExpandStates,
		Workers:      cfg.Workers,
		Refresh:      refresh,
		Logger:       loggerFromContext(ctx),
	})
	if err != nil {
		return err
	}

	if err := os.WriteFile(out, []byte(res.Labeled+"\n"), 0644); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}

	printSuccess("%s: root %s, cost %g", v.Name, res.RootState, res.MinCost)
	printStats(res.Stats.NodeCount, res.Stats.StateCount, res.CacheHit)
	printFile(out)
	return nil
}

// pickVariant runs the interactive variant picker.
func pickVariant(variants []config.Variant) (*config.Variant, bool, error) {
	model := NewVariantListModel(variants)
	final, err := tea.NewProgram(model).Run()
	if err != nil {
		return nil, false, fmt.Errorf("variant picker: %w", err)
	}
	m, ok := final.(VariantListModel)
	if !ok || m.Selected == nil {
		return nil, false, nil
	}
	return m.Selected, true, nil
}

// openCache builds the cache backend described by the config.
func openCache(ctx context.Context, conf config.CacheConf) (cache.Cache, error) {
	switch conf.Backend {
	case config.BackendFile:
		dir := conf.Dir
		if dir == "" {
			var err error
			dir, err = defaultCacheDir()
			if err != nil {
				return nil, err
			}
		}
		return cache.NewFileCache(dir)
	case config.BackendRedis:
		return cache.NewRedisCache(conf.Addr, conf.Password, conf.DB), nil
	case config.BackendMongo:
		return cache.NewMongoCache(ctx, conf.URI, conf.Database, conf.Coll)
	default:
		return cache.NewNullCache(), nil
	}
}
