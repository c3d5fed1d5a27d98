package newick

import (
	"strconv"
	"strings"

	"github.com/phylotrace/phylotrace/pkg/tree"
)

// Write serializes the tree back into nested-parenthesis notation,
// terminated by ';'. Children are emitted in stored order, so the grouping
// structure of the output is identical to that of the parsed input. A pure
// function of the tree: nothing is mutated, and there are no failure modes.
//
// The label parameter decides the text emitted for every node. Passing nil
// emits the original identifiers, which makes Write(Parse(x)) reproduce the
// topology of x. Callers that ran the reconstruction engine typically pass
// a labeler that annotates internal nodes with their assigned state.
func Write(t *tree.Tree, label tree.Labeler) string {
	if t.Root() == tree.NoParent {
		return ";"
	}
	if label == nil {
		label = tree.NameLabeler
	}

	var b strings.Builder

	// Explicit stack rather than recursion; frames track how many children
	// have been emitted so far.
	type frame struct {
		idx  int
		next int
	}
	stack := []frame{{idx: t.Root()}}
	for len(stack) > 0 {
		f := &stack[len(stack)-1]
		n := t.Node(f.idx)

		if n.IsLeaf() {
			writeNode(&b, n, label)
			stack = stack[:len(stack)-1]
			continue
		}

		switch {
		case f.next == 0:
			b.WriteByte('(')
		case f.next < len(n.Children):
			b.WriteByte(',')
		}

		if f.next < len(n.Children) {
			child := n.Children[f.next]
			f.next++
			stack = append(stack, frame{idx: child})
			continue
		}

		b.WriteByte(')')
		writeNode(&b, n, label)
		stack = stack[:len(stack)-1]
	}

	b.WriteByte(';')
	return b.String()
}

// writeNode emits the node's label and, when present, its branch length.
func writeNode(b *strings.Builder, n *tree.Node, label tree.Labeler) {
	b.WriteString(label(n))
	if n.HasLength {
		b.WriteByte(':')
		b.WriteString(strconv.FormatFloat(n.Length, 'g', -1, 64))
	}
}
