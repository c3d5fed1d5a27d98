package tree

import "strings"

// Labeler converts a node into its display text. Used by Sketch and by the
// newick serializer to decide how identifiers and assigned states appear.
type Labeler func(n *Node) string

// NameLabeler displays the node identifier as-is.
func NameLabeler(n *Node) string { return n.Name }

// Sketch renders the tree as indented ASCII art, one node per line, using
// box-drawing connectors. Purely a debugging and CLI convenience; the
// canonical output format is the newick serializer.
//
//	└─ root
//	   ├─ a
//	   └─ b
func Sketch(t *Tree, label Labeler) string {
	if t.Root() == NoParent {
		return ""
	}
	if label == nil {
		label = NameLabeler
	}

	var b strings.Builder

	type frame struct {
		idx    int
		prefix string
		last   bool
	}
	stack := []frame{{idx: t.Root(), prefix: "", last: true}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		connector := "├─ "
		childPrefix := f.prefix + "│  "
		if f.last {
			connector = "└─ "
			childPrefix = f.prefix + "   "
		}
		b.WriteString(f.prefix)
		b.WriteString(connector)
		b.WriteString(label(t.Node(f.idx)))
		b.WriteByte('\n')

		children := t.Node(f.idx).Children
		for c := len(children) - 1; c >= 0; c-- {
			stack = append(stack, frame{
				idx:    children[c],
				prefix: childPrefix,
				last:   c == len(children)-1,
			})
		}
	}
	return b.String()
}
