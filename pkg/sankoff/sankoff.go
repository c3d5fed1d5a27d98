// Package sankoff implements minimum-cost parsimony reconstruction of
// ancestral states on a fixed tree topology (Sankoff's algorithm).
//
// The engine runs in two phases over a parsed tree:
//
//  1. Forward pass (post-order): for every node, compute a cost vector
//     where entry s is the minimum total subtree cost when the node is
//     assigned state s.
//  2. Backward pass (pre-order): assign a concrete state to every node,
//     starting with the minimum-cost root state.
//
// Ties are broken by the lowest state-space index. This is an explicit,
// documented policy: different valid tie-breaks yield different but equally
// optimal labelings, and only a fixed rule makes runs reproducible.
//
// Both passes are scheduled by depth level with no recursion. Every child
// is one level below its parent, so processing levels bottom-up satisfies
// the post-order dependency and top-down the pre-order one. Within a level
// nodes are independent, which is also what makes the optional worker
// fan-out safe: workers share no mutable state beyond their disjoint nodes.
//
// All input validation happens before the forward pass starts; the engine
// itself never fails mid-computation. The single degenerate outcome - a
// root cost vector that is entirely unreachable - is reported as an
// UNREACHABLE error after the forward pass.
package sankoff

import (
	"sync"

	"github.com/phylotrace/phylotrace/pkg/errors"
	"github.com/phylotrace/phylotrace/pkg/states"
	"github.com/phylotrace/phylotrace/pkg/tips"
	"github.com/phylotrace/phylotrace/pkg/tree"
)

// Options configures a reconstruction run.
type Options struct {
	// Workers bounds the per-level fan-out of both passes. Values below 2
	// select the sequential path. The result is identical either way.
	Workers int
}

// Result summarizes a completed reconstruction. The labeled tree itself is
// the engine's in-place output: every node's State field is set.
type Result struct {
	// RootCosts is a copy of the root's forward cost vector, indexed by
	// state-space index.
	RootCosts []float64

	// RootState is the assigned root state index.
	RootState int

	// MinCost is the minimum total cost, i.e. RootCosts[RootState].
	MinCost float64
}

// Run executes both passes on t, which it mutates in place: cost vectors
// during the forward pass, assigned states during the backward pass.
//
// Leaves take their known state from the mapping; their assignment is fixed
// and the backward pass never overrides it. Every leaf must be covered by
// the mapping and every label must belong to the space - both are checked
// up front, so the passes themselves cannot fail.
func Run(t *tree.Tree, space *states.Space, m *states.Matrix, leafStates tips.Mapping, opts Options) (Result, error) {
	if t.Root() == tree.NoParent {
		return Result{}, errors.New(errors.ErrCodeInvalidInput, "empty tree")
	}
	if m.Space() != space {
		return Result{}, errors.New(errors.ErrCodeDimensionMismatch, "cost matrix is indexed through a different state space")
	}

	leafIdx, err := resolveLeaves(t, space, leafStates)
	if err != nil {
		return Result{}, err
	}

	levels := levelSchedule(t)

	forward(t, space, m, leafIdx, levels, opts.Workers)

	root := t.Node(t.Root())
	rootState := argmin(root.Costs)
	if rootState < 0 {
		return Result{}, errors.New(errors.ErrCodeUnreachable, "no finite-cost labeling exists for the root")
	}

	backward(t, space, m, levels, rootState, opts.Workers)

	costs := make([]float64, len(root.Costs))
	copy(costs, root.Costs)
	return Result{
		RootCosts: costs,
		RootState: rootState,
		MinCost:   costs[rootState],
	}, nil
}

// resolveLeaves maps every leaf to its known state index, validating the
// mapping against the tree and the space.
func resolveLeaves(t *tree.Tree, space *states.Space, leafStates tips.Mapping) (map[int]int, error) {
	if err := leafStates.Check(t); err != nil {
		return nil, err
	}
	byNode := make(map[int]int)
	for _, i := range t.Leaves() {
		label := leafStates[t.Node(i).Name]
		s, err := space.Index(label)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeUnknownLabel, err, "leaf %q", t.Node(i).Name)
		}
		byNode[i] = s
	}
	return byNode, nil
}

// levelSchedule groups node indexes by depth, shallowest first. Children
// always sit exactly one level below their parent, so iterating levels
// bottom-up (forward) or top-down (backward) respects both traversal
// orders while exposing per-level parallelism.
func levelSchedule(t *tree.Tree) [][]int {
	depths := t.Depths()
	max := 0
	for _, d := range depths {
		if d > max {
			max = d
		}
	}
	levels := make([][]int, max+1)
	// PreOrder keeps siblings in topology text order within each level.
	for _, i := range t.PreOrder() {
		levels[depths[i]] = append(levels[depths[i]], i)
	}
	return levels
}

// forward computes the per-state cost vector of every node, leaves first.
//
// Leaf with known state ℓ: cost[s] = 0 if s == ℓ, unreachable otherwise.
// Internal node: cost[s] = Σ over children c of min over s' of
// (c.cost[s'] + cost(s→s')). The sentinel propagates through both the
// addition and the minimization, so an entirely unreachable child makes the
// parent entry unreachable too.
func forward(t *tree.Tree, space *states.Space, m *states.Matrix, leafIdx map[int]int, levels [][]int, workers int) {
	k := space.Size()

	for depth := len(levels) - 1; depth >= 0; depth-- {
		eachNode(levels[depth], workers, func(i int) {
			n := t.Node(i)
			costs := make([]float64, k)

			if n.IsLeaf() {
				known := leafIdx[i]
				for s := range costs {
					if s != known {
						costs[s] = tree.Unreachable()
					}
				}
				n.Costs = costs
				return
			}

			for s := 0; s < k; s++ {
				total := 0.0
				for _, c := range n.Children {
					child := t.Node(c)
					best := tree.Unreachable()
					for sc := 0; sc < k; sc++ {
						if v := child.Costs[sc] + m.Cost(s, sc); v < best {
							best = v
						}
					}
					total += best
				}
				costs[s] = total
			}
			n.Costs = costs
		})
	}
}

// backward assigns states top-down. The root takes the precomputed argmin;
// every other internal node takes argmin over s of cost[s] +
// cost(parentState→s). Leaves keep their known state: the formula would
// agree anyway (all entries but one are unreachable), but the assignment is
// fixed by contract, not recomputed.
func backward(t *tree.Tree, space *states.Space, m *states.Matrix, levels [][]int, rootState int, workers int) {
	k := space.Size()
	t.Node(t.Root()).State = rootState

	for depth := 1; depth < len(levels); depth++ {
		eachNode(levels[depth], workers, func(i int) {
			n := t.Node(i)
			if n.IsLeaf() {
				n.State = argmin(n.Costs) // the known state: its only finite entry
				return
			}
			p := t.Node(n.Parent).State
			best, bestCost := -1, tree.Unreachable()
			for s := 0; s < k; s++ {
				if v := n.Costs[s] + m.Cost(p, s); v < bestCost {
					best, bestCost = s, v
				}
			}
			n.State = best
		})
	}
}

// eachNode runs fn over the node indexes, fanning out across workers when
// asked to. The per-level barrier is an explicit join: the next level never
// starts before every node of this one is done.
func eachNode(nodes []int, workers int, fn func(i int)) {
	if workers < 2 || len(nodes) < 2 {
		for _, i := range nodes {
			fn(i)
		}
		return
	}
	if workers > len(nodes) {
		workers = len(nodes)
	}
	var wg sync.WaitGroup
	work := make(chan int)
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range work {
				fn(i)
			}
		}()
	}
	for _, i := range nodes {
		work <- i
	}
	close(work)
	wg.Wait()
}

// argmin returns the index of the smallest finite entry, lowest index on
// ties, or -1 when every entry is unreachable.
func argmin(costs []float64) int {
	best, bestCost := -1, tree.Unreachable()
	for s, v := range costs {
		if v < bestCost {
			best, bestCost = s, v
		}
	}
	return best
}

// TotalCost sums cost(parentState→childState) over every edge of a fully
// labeled tree. For an optimal labeling this equals the minimum root cost;
// kept separate from Run so callers and tests can verify that property
// independently.
func TotalCost(t *tree.Tree, m *states.Matrix) float64 {
	total := 0.0
	for _, i := range t.PreOrder() {
		n := t.Node(i)
		if n.Parent == tree.NoParent {
			continue
		}
		total += m.Cost(t.Node(n.Parent).State, n.State)
	}
	return total
}
