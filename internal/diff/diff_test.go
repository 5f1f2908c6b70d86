package diff

import "testing"

type fixtureTree struct {
	nodes map[int64]NodeView
	steps map[int64]string
	root  int64
}

func (f *fixtureTree) Node(key int64) (NodeView, bool) {
	n, ok := f.nodes[key]
	return n, ok
}
func (f *fixtureTree) Root() int64         { return f.root }
func (f *fixtureTree) Step(key int64) string { return f.steps[key] }

// Shape shared by the old/new fixtures below:
//
//	1 (root)
//	└─ 2
//	   ├─ 3
//	   └─ 4 (rightSibling of 3)
func baseTree() *fixtureTree {
	return &fixtureTree{
		root: 1,
		nodes: map[int64]NodeView{
			1: {NodeKey: 1, ParentKey: noKey, Hash: 100, FirstChild: 2, RightSibling: noKey},
			2: {NodeKey: 2, ParentKey: 1, Hash: 200, FirstChild: 3, RightSibling: noKey},
			3: {NodeKey: 3, ParentKey: 2, Hash: 300, FirstChild: noKey, RightSibling: 4},
			4: {NodeKey: 4, ParentKey: 2, Hash: 400, FirstChild: noKey, RightSibling: noKey},
		},
	}
}

func TestDiffIdenticalTreesAllSame(t *testing.T) {
	old := baseTree()
	new_ := baseTree()

	var got []Tuple
	Diff(old, new_, func(tu Tuple) { got = append(got, tu) })

	for _, tu := range got {
		if tu.Kind != Same {
			t.Fatalf("expected all tuples SAME for identical trees, got %v", tu)
		}
	}
	if len(got) != 4 {
		t.Fatalf("got %d tuples, want 4", len(got))
	}
}

func TestDiffDetectsInsertedSubtree(t *testing.T) {
	old := baseTree()
	new_ := baseTree()
	// Add node 5 as a new child of 2, after 4.
	new_.nodes[4] = NodeView{NodeKey: 4, ParentKey: 2, Hash: 400, FirstChild: noKey, RightSibling: 5}
	new_.nodes[5] = NodeView{NodeKey: 5, ParentKey: 2, Hash: 500, FirstChild: noKey, RightSibling: noKey}

	var got []Tuple
	Diff(old, new_, func(tu Tuple) { got = append(got, tu) })

	found := false
	for _, tu := range got {
		if tu.Kind == Inserted && tu.NewNodeKey == 5 {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected an INSERTED tuple for node 5, got %v", got)
	}
}

func TestDiffDetectsDeletedSubtree(t *testing.T) {
	old := baseTree()
	new_ := baseTree()
	// Remove node 4 from new: 3 becomes the last child.
	new_.nodes[3] = NodeView{NodeKey: 3, ParentKey: 2, Hash: 300, FirstChild: noKey, RightSibling: noKey}
	delete(new_.nodes, 4)

	var got []Tuple
	Diff(old, new_, func(tu Tuple) { got = append(got, tu) })

	found := false
	for _, tu := range got {
		if tu.Kind == Deleted && tu.OldNodeKey == 4 {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a DELETED tuple for node 4, got %v", got)
	}
}

func TestDiffDetectsUpdatedHash(t *testing.T) {
	old := baseTree()
	new_ := baseTree()
	n := new_.nodes[3]
	n.Hash = 999
	new_.nodes[3] = n

	var got []Tuple
	Diff(old, new_, func(tu Tuple) { got = append(got, tu) })

	for _, tu := range got {
		if tu.OldNodeKey == 3 && tu.NewNodeKey == 3 {
			if tu.Kind != Updated {
				t.Fatalf("expected node 3 tuple to be UPDATED, got %v", tu.Kind)
			}
			return
		}
	}
	t.Fatalf("expected a tuple for node 3, got %v", got)
}

func TestResolvePathRewritesArrayPositions(t *testing.T) {
	f := &fixtureTree{
		root: 1,
		nodes: map[int64]NodeView{
			1: {NodeKey: 1, ParentKey: noKey, FirstChild: 2, RightSibling: noKey},
			2: {NodeKey: 2, ParentKey: 1, FirstChild: 3, RightSibling: noKey},
			3: {NodeKey: 3, ParentKey: 2, FirstChild: noKey, RightSibling: 4},
			4: {NodeKey: 4, ParentKey: 2, FirstChild: noKey, RightSibling: 5},
			5: {NodeKey: 5, ParentKey: 2, FirstChild: noKey, RightSibling: noKey},
		},
		steps: map[int64]string{
			1: "",
			2: "items",
			3: "[]",
			4: "[]",
			5: "[]",
		},
	}

	if got := ResolvePath(f, 3); got != "/items[0]" {
		t.Fatalf("ResolvePath(3) = %q, want /items[0]", got)
	}
	if got := ResolvePath(f, 4); got != "/items[1]" {
		t.Fatalf("ResolvePath(4) = %q, want /items[1]", got)
	}
	if got := ResolvePath(f, 5); got != "/items[2]" {
		t.Fatalf("ResolvePath(5) = %q, want /items[2]", got)
	}
}

func TestJSONSerializerOmitsSameWhenNotEmittingFromAlgorithm(t *testing.T) {
	tuples := []Tuple{
		{Kind: Same, OldNodeKey: 1, NewNodeKey: 1, Depth: 0},
		{Kind: Updated, OldNodeKey: 2, NewNodeKey: 2, Depth: 1},
	}
	tree := &fixtureTree{
		nodes: map[int64]NodeView{
			1: {NodeKey: 1, ParentKey: noKey, FirstChild: 2},
			2: {NodeKey: 2, ParentKey: 1},
		},
		steps: map[int64]string{1: "", 2: "name"},
		root:  1,
	}
	ser := NewJSONSerializer(tuples, tree, tree)

	out, err := ser.Serialize(false)
	if err != nil {
		t.Fatalf("Serialize error: %v", err)
	}
	if got := out; got == "" {
		t.Fatalf("expected non-empty JSON output")
	}
	if contains(out, "SAME") {
		t.Fatalf("expected SAME tuple to be omitted, got %s", out)
	}
	if !contains(out, `"newPath":"/name"`) {
		t.Fatalf("expected the UPDATED tuple's entry present, got %s", out)
	}
}

func TestJSONSerializerIncludesEverythingFromAlgorithm(t *testing.T) {
	tuples := []Tuple{
		{Kind: Same, OldNodeKey: 1, NewNodeKey: 1, Depth: 0},
	}
	tree := &fixtureTree{
		nodes: map[int64]NodeView{1: {NodeKey: 1, ParentKey: noKey}},
		steps: map[int64]string{1: ""},
		root:  1,
	}
	ser := NewJSONSerializer(tuples, tree, tree)

	out, err := ser.Serialize(true)
	if err != nil {
		t.Fatalf("Serialize error: %v", err)
	}
	if !contains(out, "SAME") {
		t.Fatalf("expected SAME tuple present when emitFromDiffAlgorithm is true, got %s", out)
	}
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
