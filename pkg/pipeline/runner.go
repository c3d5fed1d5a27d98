package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/phylotrace/phylotrace/pkg/cache"
	"github.com/phylotrace/phylotrace/pkg/errors"
	"github.com/phylotrace/phylotrace/pkg/newick"
	"github.com/phylotrace/phylotrace/pkg/observability"
	"github.com/phylotrace/phylotrace/pkg/sankoff"
	"github.com/phylotrace/phylotrace/pkg/states"
	"github.com/phylotrace/phylotrace/pkg/tree"
)

// Runner executes the reconstruction pipeline with a shared cache.
type Runner struct {
	cache cache.Cache
	ttl   time.Duration
}

// NewRunner creates a runner. A nil cache disables caching.
func NewRunner(c cache.Cache) *Runner {
	if c == nil {
		c = cache.NewNullCache()
	}
	return &Runner{cache: c, ttl: DefaultTTL}
}

// WithTTL overrides how long written cache entries stay fresh. A zero or
// negative ttl keeps entries forever.
func (r *Runner) WithTTL(ttl time.Duration) *Runner {
	r.ttl = ttl
	return r
}

// Execute runs the pipeline for the given options.
//
// The cache is consulted first: a hit skips the engine entirely and the
// stored output is returned as-is, which is safe because the key is a
// content hash of every input that influences the result.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Result, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	runID := uuid.NewString()

	key := cache.ResultKey(opts.Topology, opts.Tips, opts.MatrixCSV,
		cache.ResultKeyOpts{ExpandStates: opts.ExpandStates, Delimiter: string(opts.Delimiter)})

	if !opts.Refresh {
		if res, ok := r.lookup(ctx, key); ok {
			logger.Debug("cache hit", "run", runID, "key", key[:16])
			observability.Cache().OnCacheHit(ctx, "result")
			res.RunID = runID
			res.CacheHit = true
			return res, nil
		}
		observability.Cache().OnCacheMiss(ctx, "result")
	}

	res, err := r.compute(ctx, opts, runID)
	if err != nil {
		return nil, err
	}

	if data, err := encodeCached(res); err == nil {
		if err := r.cache.Set(ctx, key, data, r.ttl); err != nil {
			logger.Warn("cache write failed", "error", err)
		} else {
			observability.Cache().OnCacheSet(ctx, "result", len(data))
		}
	}
	return res, nil
}

// compute runs parse → states → matrix → engine → serialize.
func (r *Runner) compute(ctx context.Context, opts Options, runID string) (*Result, error) {
	logger := opts.Logger

	observability.Engine().OnParseStart(ctx)
	parseStart := time.Now()
	t, err := newick.Parse(opts.Topology)
	parseTime := time.Since(parseStart)
	if err != nil {
		observability.Engine().OnParseComplete(ctx, 0, 0, parseTime, err)
		return nil, err
	}
	leafCount := len(t.Leaves())
	observability.Engine().OnParseComplete(ctx, t.NodeCount(), leafCount, parseTime, nil)
	logger.Debug("parsed topology", "run", runID, "nodes", t.NodeCount(), "leaves", leafCount)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	space, matrix, err := resolve(opts)
	if err != nil {
		return nil, err
	}
	logger.Debug("resolved state space", "run", runID, "states", space.Size())

	observability.Engine().OnLabelStart(ctx, t.NodeCount(), space.Size())
	labelStart := time.Now()
	engineRes, err := sankoff.Run(t, space, matrix, opts.Tips, sankoff.Options{Workers: opts.Workers})
	labelTime := time.Since(labelStart)
	if err != nil {
		observability.Engine().OnLabelComplete(ctx, 0, labelTime, err)
		return nil, err
	}
	observability.Engine().OnLabelComplete(ctx, engineRes.MinCost, labelTime, nil)

	if opts.Verify {
		if err := Verify(t, matrix, engineRes.MinCost); err != nil {
			return nil, err
		}
	}

	labeled := newick.Write(t, stateLabeler(space))

	rootCosts := make(map[string]float64, space.Size())
	for s, c := range engineRes.RootCosts {
		rootCosts[space.Label(s)] = c
	}

	return &Result{
		RunID:     runID,
		Labeled:   labeled,
		RootState: space.Label(engineRes.RootState),
		MinCost:   engineRes.MinCost,
		RootCosts: rootCosts,
		Stats: Stats{
			NodeCount:  t.NodeCount(),
			LeafCount:  leafCount,
			StateCount: space.Size(),
			ParseTime:  parseTime,
			LabelTime:  labelTime,
		},
	}, nil
}

// resolve builds the state space and cost matrix from the options.
func resolve(opts Options) (*states.Space, *states.Matrix, error) {
	if len(opts.MatrixCSV) == 0 {
		// No matrix supplied: equal-cost reconstruction over the leaf labels.
		space, err := states.SpaceFromAssignments(opts.Tips)
		if err != nil {
			return nil, nil, err
		}
		return space, states.EqualCostMatrix(space), nil
	}

	table, err := states.ReadTable(bytes.NewReader(opts.MatrixCSV), opts.Delimiter)
	if err != nil {
		return nil, nil, err
	}

	var space *states.Space
	if opts.ExpandStates {
		space, err = states.NewSpace(table.Labels)
	} else {
		space, err = states.SpaceFromAssignments(opts.Tips)
	}
	if err != nil {
		return nil, nil, err
	}

	matrix, err := states.NewMatrix(space, table)
	if err != nil {
		return nil, nil, err
	}
	return space, matrix, nil
}

// stateLabeler annotates nodes with their assigned states: leaves keep
// their identifier, unnamed internal nodes take the state label, and named
// internal nodes keep both, joined by an underscore.
func stateLabeler(space *states.Space) tree.Labeler {
	return func(n *tree.Node) string {
		if n.IsLeaf() || n.State == tree.NoState {
			return n.Name
		}
		label := space.Label(n.State)
		if n.Name == "" {
			return label
		}
		return n.Name + "_" + label
	}
}

// cachedResult is the cache payload. Root costs are serialized as strings
// because the unreachable sentinel (+Inf) has no JSON number form.
type cachedResult struct {
	Labeled   string            `json:"labeled"`
	RootState string            `json:"root_state"`
	MinCost   float64           `json:"min_cost"`
	RootCosts map[string]string `json:"root_costs"`
	Stats     Stats             `json:"stats"`
}

func encodeCached(res *Result) ([]byte, error) {
	costs := make(map[string]string, len(res.RootCosts))
	for label, c := range res.RootCosts {
		costs[label] = strconv.FormatFloat(c, 'g', -1, 64)
	}
	return json.Marshal(cachedResult{
		Labeled:   res.Labeled,
		RootState: res.RootState,
		MinCost:   res.MinCost,
		RootCosts: costs,
		Stats:     res.Stats,
	})
}

// lookup decodes a cached entry. Undecodable entries are treated as misses.
func (r *Runner) lookup(ctx context.Context, key string) (*Result, bool) {
	data, hit, err := r.cache.Get(ctx, key)
	if err != nil || !hit {
		return nil, false
	}
	var c cachedResult
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, false
	}
	costs := make(map[string]float64, len(c.RootCosts))
	for label, s := range c.RootCosts {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			v = math.Inf(1)
		}
		costs[label] = v
	}
	return &Result{
		Labeled:   c.Labeled,
		RootState: c.RootState,
		MinCost:   c.MinCost,
		RootCosts: costs,
		Stats:     c.Stats,
	}, true
}

// Verify recomputes the total edge cost of a labeled tree and checks it
// against the engine's reported minimum. Used by tests and the CLI's
// --verify flag; a mismatch indicates engine corruption.
func Verify(t *tree.Tree, m *states.Matrix, minCost float64) error {
	total := sankoff.TotalCost(t, m)
	if total != minCost {
		return errors.New(errors.ErrCodeInternal,
			"labeling cost %v does not match forward minimum %v", total, minCost)
	}
	return nil
}
