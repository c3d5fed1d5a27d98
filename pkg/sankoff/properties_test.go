package sankoff

import (
	"testing"

	"github.com/phylotrace/phylotrace/pkg/newick"
	"github.com/phylotrace/phylotrace/pkg/states"
	"github.com/phylotrace/phylotrace/pkg/tips"
)

// Splitting leaves across more distinct states can only raise the minimum
// number of changes, never lower it.
func TestMonotonicStateCount(t *testing.T) {
	topology := "((a,b),(c,d));"
	mappings := []tips.Mapping{
		{"a": "X", "b": "X", "c": "X", "d": "X"},
		{"a": "X", "b": "X", "c": "X", "d": "Y"},
		{"a": "X", "b": "X", "c": "Y", "d": "Z"},
		{"a": "X", "b": "W", "c": "Y", "d": "Z"},
	}

	prev := -1.0
	for _, mapping := range mappings {
		tr, err := newick.Parse(topology)
		if err != nil {
			t.Fatalf("Parse() error: %v", err)
		}
		space, err := states.SpaceFromAssignments(mapping)
		if err != nil {
			t.Fatalf("SpaceFromAssignments() error: %v", err)
		}
		res, err := Run(tr, space, states.EqualCostMatrix(space), mapping, Options{})
		if err != nil {
			t.Fatalf("Run() error: %v", err)
		}
		if res.MinCost < prev {
			t.Errorf("%d states: MinCost %v below previous %v", space.Size(), res.MinCost, prev)
		}
		prev = res.MinCost
	}
}

// A node whose leaf children are split between X and Y, with both states
// equidistant from a third state Z that the rest of the tree pins the root
// to: X and Y tie at that node (cost 2+3 either way against Z's own 6), and
// the fixed rule must pick X, the lower index, on every run.
func TestTieScenarioEquidistantStates(t *testing.T) {
	space, err := states.NewSpace([]string{"X", "Y", "Z"})
	if err != nil {
		t.Fatalf("NewSpace() error: %v", err)
	}
	m, err := states.NewMatrix(space, states.Table{
		Labels: []string{"X", "Y", "Z"},
		Values: [][]float64{
			{0, 2, 3},
			{2, 0, 3},
			{3, 3, 0},
		},
	})
	if err != nil {
		t.Fatalf("NewMatrix() error: %v", err)
	}
	mapping := tips.Mapping{
		"l1": "X", "l2": "Y",
		"zig": "Z", "zag": "Z",
	}

	for run := 0; run < 5; run++ {
		tr, err := newick.Parse("((l1,l2)mid,zig,zag);")
		if err != nil {
			t.Fatalf("Parse() error: %v", err)
		}
		res, err := Run(tr, space, m, mapping, Options{})
		if err != nil {
			t.Fatalf("Run() error: %v", err)
		}
		if got := space.Label(res.RootState); got != "Z" {
			t.Fatalf("root state = %q, want Z", got)
		}

		root := tr.Node(tr.Root())
		mid := tr.Node(root.Children[0])
		// The tie is in the backward step: cost[X]+M(Z,X) == cost[Y]+M(Z,Y).
		if mid.Costs[0]+m.Cost(2, 0) != mid.Costs[1]+m.Cost(2, 1) {
			t.Fatalf("expected X/Y tie at mid, costs %v", mid.Costs)
		}
		if got := space.Label(mid.State); got != "X" {
			t.Errorf("run %d: mid state = %q, want X (lowest index on tie)", run, got)
		}
	}
}
