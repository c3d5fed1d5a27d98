package newick

import (
	"strings"
	"testing"

	"github.com/phylotrace/phylotrace/pkg/errors"
)

func TestParseValid(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		nodes  int
		leaves int
	}{
		{"single node", "a;", 1, 1},
		{"pair", "(a,b);", 3, 2},
		{"named root", "(a,b)r;", 3, 2},
		{"nested", "(((A,C),G),(C2,G2));", 9, 5},
		{"multifurcation", "(a,b,c,d);", 5, 4},
		{"branch lengths", "(a:3.2,b:0.5)r:1;", 3, 2},
		{"whitespace", " ( a , b ) r ;\n", 3, 2},
		{"deeply nested", strings.Repeat("(", 50) + "x" + strings.Repeat(",y)", 0) + strings.Repeat(")", 50) + ";", 51, 1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tr, err := Parse(tc.input)
			if err != nil {
				t.Fatalf("Parse(%q) error: %v", tc.input, err)
			}
			if got := tr.NodeCount(); got != tc.nodes {
				t.Errorf("NodeCount() = %d, want %d", got, tc.nodes)
			}
			if got := len(tr.Leaves()); got != tc.leaves {
				t.Errorf("leaves = %d, want %d", got, tc.leaves)
			}
			if err := tr.Validate(); err != nil {
				t.Errorf("Validate() error: %v", err)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"whitespace only", "   "},
		{"missing semicolon", "(a,b)"},
		{"empty group", "();"},
		{"empty child before comma", "(,b);"},
		{"empty child before paren", "(a,);"},
		{"unbalanced open", "((a,b);"},
		{"unbalanced close", "(a,b));"},
		{"comma outside group", "a,b;"},
		{"two trees", "(a)(b);"},
		{"text after semicolon", "(a,b); extra"},
		{"duplicate leaf names", "(a,a);"},
		{"missing comma", "(a b);"},
		{"bad branch length", "(a:x,b);"},
		{"infinite branch length", "(a:Inf,b);"},
		{"nan branch length", "(a:NaN,b);"},
		{"duplicate branch length", "(a:1:2,b);"},
		{"length without node", "(:1,b);"},
		{"semicolon only", ";"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(tc.input)
			if err == nil {
				t.Fatalf("Parse(%q) succeeded, want error", tc.input)
			}
			if !errors.Is(err, errors.ErrCodeMalformedTopology) {
				t.Errorf("Parse(%q) error code = %v, want MALFORMED_TOPOLOGY", tc.input, errors.GetCode(err))
			}
		})
	}
}

func TestParseChildOrder(t *testing.T) {
	tr, err := Parse("((a,b)x,c)r;")
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	root := tr.Node(tr.Root())
	if root.Name != "r" {
		t.Errorf("root name = %q, want r", root.Name)
	}
	if len(root.Children) != 2 {
		t.Fatalf("root children = %d, want 2", len(root.Children))
	}
	if got := tr.Node(root.Children[0]).Name; got != "x" {
		t.Errorf("first child = %q, want x", got)
	}
	if got := tr.Node(root.Children[1]).Name; got != "c" {
		t.Errorf("second child = %q, want c", got)
	}
}

func TestParseRepeatedInternalNames(t *testing.T) {
	// Labeled output assigns the same state label to many ancestors; the
	// parser must accept it.
	for _, input := range []string{
		"(((A,C)A2,G)G2,(C2,G3)G4)G5;",
		"((a,b)usa,(c,d)usa)usa;",
	} {
		tr, err := Parse(input)
		if err != nil {
			t.Errorf("Parse(%q) error: %v", input, err)
			continue
		}
		if err := tr.Validate(); err != nil {
			t.Errorf("Validate() error: %v", err)
		}
	}
}

func TestParseUnnamedInternal(t *testing.T) {
	tr, err := Parse("((a,b),c);")
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	root := tr.Node(tr.Root())
	if root.Name != "" {
		t.Errorf("root name = %q, want empty", root.Name)
	}
	inner := tr.Node(root.Children[0])
	if inner.Name != "" {
		t.Errorf("internal name = %q, want empty", inner.Name)
	}
}

func TestParseBranchLengths(t *testing.T) {
	tr, err := Parse("(a:3.25,b)r:0.5;")
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	root := tr.Node(tr.Root())
	if !root.HasLength || root.Length != 0.5 {
		t.Errorf("root length = (%v, %v), want (0.5, true)", root.Length, root.HasLength)
	}
	a := tr.Node(root.Children[0])
	if !a.HasLength || a.Length != 3.25 {
		t.Errorf("leaf a length = (%v, %v), want (3.25, true)", a.Length, a.HasLength)
	}
	b := tr.Node(root.Children[1])
	if b.HasLength {
		t.Errorf("leaf b has a branch length, want none")
	}
}
