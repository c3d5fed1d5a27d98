package tree

import (
	"strings"
	"testing"
)

// buildSample constructs ((a,b)x,c)root by hand and returns the tree with
// the arena indexes of all five nodes.
func buildSample(t *testing.T) (*Tree, map[string]int) {
	t.Helper()
	tr := New()
	idx := map[string]int{}

	root, err := tr.AddRoot("root")
	if err != nil {
		t.Fatalf("AddRoot() error: %v", err)
	}
	idx["root"] = root

	x, err := tr.AddChild(root, "x")
	if err != nil {
		t.Fatalf("AddChild(x) error: %v", err)
	}
	idx["x"] = x

	for _, name := range []string{"a", "b"} {
		i, err := tr.AddChild(x, name)
		if err != nil {
			t.Fatalf("AddChild(%s) error: %v", name, err)
		}
		idx[name] = i
	}

	c, err := tr.AddChild(root, "c")
	if err != nil {
		t.Fatalf("AddChild(c) error: %v", err)
	}
	idx["c"] = c

	return tr, idx
}

func names(tr *Tree, order []int) string {
	parts := make([]string, len(order))
	for i, n := range order {
		parts[i] = tr.Node(n).Name
	}
	return strings.Join(parts, " ")
}

func TestAddRootTwice(t *testing.T) {
	tr := New()
	if _, err := tr.AddRoot("r"); err != nil {
		t.Fatalf("AddRoot() error: %v", err)
	}
	if _, err := tr.AddRoot("again"); err != ErrDuplicateRoot {
		t.Errorf("second AddRoot() error = %v, want ErrDuplicateRoot", err)
	}
}

func TestAddChildUnknownParent(t *testing.T) {
	tr := New()
	if _, err := tr.AddChild(0, "orphan"); err != ErrUnknownParent {
		t.Errorf("AddChild(0) on empty tree error = %v, want ErrUnknownParent", err)
	}
	if _, err := tr.AddRoot("r"); err != nil {
		t.Fatalf("AddRoot() error: %v", err)
	}
	if _, err := tr.AddChild(5, "orphan"); err != ErrUnknownParent {
		t.Errorf("AddChild(5) error = %v, want ErrUnknownParent", err)
	}
}

func TestEmptyTree(t *testing.T) {
	tr := New()
	if got := tr.Root(); got != NoParent {
		t.Errorf("Root() = %d, want NoParent", got)
	}
	if got := tr.PostOrder(); got != nil {
		t.Errorf("PostOrder() = %v, want nil", got)
	}
	if got := tr.PreOrder(); got != nil {
		t.Errorf("PreOrder() = %v, want nil", got)
	}
	if err := tr.Validate(); err != nil {
		t.Errorf("Validate() on empty tree error: %v", err)
	}
}

func TestPostOrder(t *testing.T) {
	tr, _ := buildSample(t)
	if got, want := names(tr, tr.PostOrder()), "a b x c root"; got != want {
		t.Errorf("PostOrder() = %q, want %q", got, want)
	}
}

func TestPreOrder(t *testing.T) {
	tr, _ := buildSample(t)
	if got, want := names(tr, tr.PreOrder()), "root x a b c"; got != want {
		t.Errorf("PreOrder() = %q, want %q", got, want)
	}
}

func TestPostOrderParentAfterChildren(t *testing.T) {
	tr, _ := buildSample(t)
	seen := map[int]bool{}
	for _, i := range tr.PostOrder() {
		for _, c := range tr.Node(i).Children {
			if !seen[c] {
				t.Fatalf("node %q visited before child %q", tr.Node(i).Name, tr.Node(c).Name)
			}
		}
		seen[i] = true
	}
}

func TestLeaves(t *testing.T) {
	tr, _ := buildSample(t)
	if got, want := names(tr, tr.Leaves()), "a b c"; got != want {
		t.Errorf("Leaves() = %q, want %q", got, want)
	}
}

func TestDepths(t *testing.T) {
	tr, idx := buildSample(t)
	depths := tr.Depths()
	want := map[string]int{"root": 0, "x": 1, "a": 2, "b": 2, "c": 1}
	for name, d := range want {
		if depths[idx[name]] != d {
			t.Errorf("depth(%s) = %d, want %d", name, depths[idx[name]], d)
		}
	}
}

func TestValidate(t *testing.T) {
	tr, idx := buildSample(t)
	if err := tr.Validate(); err != nil {
		t.Fatalf("Validate() error: %v", err)
	}

	// Corrupt a parent link and expect Validate to notice.
	tr.Node(idx["a"]).Parent = idx["c"]
	if err := tr.Validate(); err == nil {
		t.Error("Validate() accepted a corrupted parent link")
	}
}

func TestUnreachableSentinel(t *testing.T) {
	u := Unreachable()
	if !IsUnreachable(u) {
		t.Error("IsUnreachable(Unreachable()) = false")
	}
	if IsUnreachable(0) || IsUnreachable(1e300) {
		t.Error("IsUnreachable() true for a finite cost")
	}
	// The sentinel must survive addition and lose every minimization.
	if !IsUnreachable(u + 5) {
		t.Error("Unreachable()+5 is not unreachable")
	}
	if v := min(u, 3.0); v != 3.0 {
		t.Errorf("min(unreachable, 3) = %v, want 3", v)
	}
}

func TestNewNodeState(t *testing.T) {
	tr, idx := buildSample(t)
	for name, i := range idx {
		if got := tr.Node(i).State; got != NoState {
			t.Errorf("fresh node %q State = %d, want NoState", name, got)
		}
	}
}

func TestSketch(t *testing.T) {
	tr, _ := buildSample(t)
	got := Sketch(tr, nil)
	want := "└─ root\n" +
		"   ├─ x\n" +
		"   │  ├─ a\n" +
		"   │  └─ b\n" +
		"   └─ c\n"
	if got != want {
		t.Errorf("Sketch() =\n%s\nwant\n%s", got, want)
	}
}

func TestSketchEmpty(t *testing.T) {
	if got := Sketch(New(), nil); got != "" {
		t.Errorf("Sketch(empty) = %q, want empty", got)
	}
}
