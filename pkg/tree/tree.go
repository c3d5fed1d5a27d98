// Package tree implements the rooted tree model used by the ancestral state
// reconstruction engine.
//
// Nodes live in an arena owned by the Tree. Children are stored as ordered
// index lists (insertion order equals topology text order) and the parent is
// a plain index back-reference, never a second ownership edge. Node indexes
// are stable for the lifetime of the tree: nodes are constructed once by the
// parser, mutated in place by the engine (cost vectors, then assigned
// states), and never deleted or re-parented.
//
// Both traversal orders are produced iteratively with explicit stacks, so
// trees with thousands of leaves do not risk deep call stacks.
package tree

import (
	"errors"
	"math"
)

var (
	// ErrUnknownParent is returned by [Tree.AddChild] when the parent index
	// does not refer to a node in the arena.
	ErrUnknownParent = errors.New("unknown parent node")

	// ErrDuplicateRoot is returned by [Tree.AddRoot] when the tree already
	// has a root. A tree owns exactly one root.
	ErrDuplicateRoot = errors.New("tree already has a root")

	// ErrNoRoot is returned by traversal methods on an empty tree.
	ErrNoRoot = errors.New("tree has no root")
)

// NoParent marks the root's parent index.
const NoParent = -1

// NoState marks a node whose state has not been assigned yet.
const NoState = -1

// Node is a vertex in the arena. The zero value is not usable on its own -
// nodes are created through [Tree.AddRoot] and [Tree.AddChild].
type Node struct {
	Name      string  // identifier from the topology text; may be empty for internal nodes
	Parent    int     // arena index of the parent, NoParent for the root
	Children  []int   // ordered arena indexes, topology text order
	Length    float64 // branch length to the parent; meaningful only if HasLength
	HasLength bool

	// Costs is the per-state minimum subtree cost vector, populated by the
	// forward pass. Entries are finite or the unreachable sentinel (+Inf).
	Costs []float64

	// State is the assigned state index, populated by the backward pass.
	// NoState until assignment.
	State int
}

// IsLeaf reports whether the node has no children.
func (n *Node) IsLeaf() bool { return len(n.Children) == 0 }

// Unreachable is the sentinel cost for a state that cannot label a subtree.
// IEEE +Inf behaves correctly under addition and minimization, so no magic
// finite value is ever involved.
func Unreachable() float64 { return math.Inf(1) }

// IsUnreachable reports whether a cost is the unreachable sentinel.
func IsUnreachable(cost float64) bool { return math.IsInf(cost, 1) }

// Tree exclusively owns its node arena. The zero value is not usable -
// use New.
//
// Tree is not safe for concurrent mutation; the engine coordinates its own
// parallelism over disjoint nodes.
type Tree struct {
	nodes []Node
	root  int
}

// New creates an empty tree.
func New() *Tree {
	return &Tree{root: NoParent}
}

// AddRoot creates the root node and returns its arena index.
// Returns ErrDuplicateRoot if the tree already has a root.
func (t *Tree) AddRoot(name string) (int, error) {
	if t.root != NoParent {
		return 0, ErrDuplicateRoot
	}
	t.nodes = append(t.nodes, Node{Name: name, Parent: NoParent, State: NoState})
	t.root = 0
	return 0, nil
}

// AddChild creates a node under parent and returns its arena index.
// The new node is appended to the parent's child list, so insertion order
// is preserved for serialization and deterministic tie-breaking.
func (t *Tree) AddChild(parent int, name string) (int, error) {
	if parent < 0 || parent >= len(t.nodes) {
		return 0, ErrUnknownParent
	}
	idx := len(t.nodes)
	t.nodes = append(t.nodes, Node{Name: name, Parent: parent, State: NoState})
	t.nodes[parent].Children = append(t.nodes[parent].Children, idx)
	return idx, nil
}

// Root returns the root's arena index, or NoParent for an empty tree.
func (t *Tree) Root() int { return t.root }

// Node returns the node at the given arena index. The pointer refers to the
// arena entry, so mutations are visible to the tree.
func (t *Tree) Node(i int) *Node { return &t.nodes[i] }

// NodeCount returns the number of nodes in the arena.
func (t *Tree) NodeCount() int { return len(t.nodes) }

// Leaves returns the arena indexes of all leaves in post-order.
func (t *Tree) Leaves() []int {
	var leaves []int
	for _, i := range t.PostOrder() {
		if t.nodes[i].IsLeaf() {
			leaves = append(leaves, i)
		}
	}
	return leaves
}

// PostOrder returns all node indexes so that every node appears after all
// of its children. Sibling subtrees keep topology text order. Returns nil
// for an empty tree.
func (t *Tree) PostOrder() []int {
	if t.root == NoParent {
		return nil
	}
	order := make([]int, 0, len(t.nodes))
	stack := []int{t.root}
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		order = append(order, i)
		stack = append(stack, t.nodes[i].Children...)
	}
	// Two-stack trick: reversing a right-to-left pre-order yields a
	// post-order with siblings back in text order.
	for l, r := 0, len(order)-1; l < r; l, r = l+1, r-1 {
		order[l], order[r] = order[r], order[l]
	}
	return order
}

// PreOrder returns all node indexes so that every node appears before all
// of its children, siblings in topology text order. Returns nil for an
// empty tree.
func (t *Tree) PreOrder() []int {
	if t.root == NoParent {
		return nil
	}
	order := make([]int, 0, len(t.nodes))
	stack := []int{t.root}
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		order = append(order, i)
		children := t.nodes[i].Children
		for c := len(children) - 1; c >= 0; c-- {
			stack = append(stack, children[c])
		}
	}
	return order
}

// Depths returns the depth of every node (root = 0), indexed by arena index.
func (t *Tree) Depths() []int {
	depths := make([]int, len(t.nodes))
	for _, i := range t.PreOrder() {
		if p := t.nodes[i].Parent; p != NoParent {
			depths[i] = depths[p] + 1
		}
	}
	return depths
}

// Validate checks arena integrity: exactly one root, parent/child links
// consistent, and every non-root node reachable from the root by exactly
// one path. Construction through AddRoot/AddChild cannot violate these,
// so a failure indicates corruption.
func (t *Tree) Validate() error {
	if t.root == NoParent {
		if len(t.nodes) == 0 {
			return nil
		}
		return ErrNoRoot
	}
	seen := make([]bool, len(t.nodes))
	for _, i := range t.PreOrder() {
		if seen[i] {
			return errors.New("node visited twice: shared ownership or cycle")
		}
		seen[i] = true
		for _, c := range t.nodes[i].Children {
			if c < 0 || c >= len(t.nodes) {
				return errors.New("child index out of range")
			}
			if t.nodes[c].Parent != i {
				return errors.New("child parent link mismatch")
			}
		}
	}
	for i, ok := range seen {
		if !ok {
			return errors.New("node unreachable from root: " + t.nodes[i].Name)
		}
	}
	return nil
}
