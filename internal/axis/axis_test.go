package axis

import "testing"

// fakeNode models a minimal tree shape for axis tests: each node knows
// its first child, right sibling, and (for the JSON tests) nothing
// more — the axes only ever touch that navigation triangle.
type fakeNode struct {
	key           int64
	firstChild    int64
	rightSibling  int64
}

type fakeCursor struct {
	nodes map[int64]fakeNode
	at    int64
}

func newFakeCursor(nodes []fakeNode, start int64) *fakeCursor {
	m := make(map[int64]fakeNode, len(nodes))
	for _, n := range nodes {
		m[n.key] = n
	}
	return &fakeCursor{nodes: m, at: start}
}

func (c *fakeCursor) NodeKey() int64 { return c.at }
func (c *fakeCursor) MoveTo(key int64) bool {
	if _, ok := c.nodes[key]; !ok && key != -1 {
		return false
	}
	c.at = key
	return true
}
func (c *fakeCursor) MoveToFirstChild() bool {
	fc := c.nodes[c.at].firstChild
	if fc == -1 {
		return false
	}
	c.at = fc
	return true
}
func (c *fakeCursor) MoveToRightSibling() bool {
	rs := c.nodes[c.at].rightSibling
	if rs == -1 {
		return false
	}
	c.at = rs
	return true
}
func (c *fakeCursor) FirstChildKey() int64   { return c.nodes[c.at].firstChild }
func (c *fakeCursor) RightSiblingKey() int64 { return c.nodes[c.at].rightSibling }

// Tree shape:
//
//	1 (root)
//	└─ 2
//	   ├─ 3
//	   │  ├─ 5
//	   │  └─ 6 (rightSibling of 5)
//	   └─ 4 (rightSibling of 3)
func sampleTree() []fakeNode {
	return []fakeNode{
		{key: 1, firstChild: 2, rightSibling: -1},
		{key: 2, firstChild: 3, rightSibling: -1},
		{key: 3, firstChild: 5, rightSibling: 4},
		{key: 4, firstChild: -1, rightSibling: -1},
		{key: 5, firstChild: -1, rightSibling: 6},
		{key: 6, firstChild: -1, rightSibling: -1},
	}
}

func collect(a *DescendantAxis) []int64 {
	var got []int64
	for {
		k, ok := a.Next()
		if !ok {
			break
		}
		got = append(got, k)
	}
	return got
}

func TestDescendantAxisPreorderExcludingSelf(t *testing.T) {
	cursor := newFakeCursor(sampleTree(), 1)
	axis := NewDescendantAxis(cursor, false)
	got := collect(axis)
	want := []int64{2, 3, 5, 6, 4}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestDescendantAxisIncludeSelf(t *testing.T) {
	cursor := newFakeCursor(sampleTree(), 1)
	axis := NewDescendantAxis(cursor, true)
	got := collect(axis)
	want := []int64{1, 2, 3, 5, 6, 4}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestDescendantAxisRewindsCursorOnFinish(t *testing.T) {
	cursor := newFakeCursor(sampleTree(), 3)
	axis := NewDescendantAxis(cursor, false)
	collect(axis)
	if cursor.NodeKey() != 3 {
		t.Fatalf("expected cursor rewound to start key 3, got %d", cursor.NodeKey())
	}
}

func TestDescendantAxisStopsAtSubtreeBoundary(t *testing.T) {
	// Starting at 3, the axis must not cross into 3's right sibling (4).
	cursor := newFakeCursor(sampleTree(), 3)
	axis := NewDescendantAxis(cursor, false)
	got := collect(axis)
	want := []int64{5, 6}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestJSONDescendantAxisTracksDepth(t *testing.T) {
	cursor := newFakeCursor(sampleTree(), 1)
	axis := NewJSONDescendantAxis(cursor, false)

	depths := make(map[int64]int)
	for {
		k, ok := axis.Next()
		if !ok {
			break
		}
		depths[k] = axis.Depth()
	}
	want := map[int64]int{2: 1, 3: 2, 5: 3, 6: 3, 4: 2}
	for k, d := range want {
		if depths[k] != d {
			t.Fatalf("depth[%d] = %d, want %d", k, depths[k], d)
		}
	}
}

func TestBatchDescendantAxisNextBatchRespectsMax(t *testing.T) {
	cursor := newFakeCursor(sampleTree(), 1)
	inner := NewDescendantAxis(cursor, false)
	batch := NewBatchDescendantAxis(inner, cursor)

	out, exhausted := batch.NextBatch(nil, 2)
	if exhausted {
		t.Fatalf("expected more nodes after first batch of 2")
	}
	if len(out) != 2 {
		t.Fatalf("NextBatch returned %d items, want 2", len(out))
	}

	out, exhausted = batch.NextBatch(out, 10)
	if !exhausted {
		t.Fatalf("expected axis exhausted after draining remaining nodes")
	}
	if len(out) != 5 {
		t.Fatalf("total collected %d, want 5", len(out))
	}
}

func threeLevelTree() []fakeNode {
	return []fakeNode{
		{key: 1, firstChild: 2, rightSibling: -1},
		{key: 2, firstChild: 4, rightSibling: 3},
		{key: 3, firstChild: 5, rightSibling: -1},
		{key: 4, firstChild: 6, rightSibling: -1},
		{key: 5, firstChild: 7, rightSibling: -1},
		{key: 6, firstChild: -1, rightSibling: -1},
		{key: 7, firstChild: -1, rightSibling: -1},
	}
}

func TestLimitedJSONDescendantAxisPrunesByLevelAndChildren(t *testing.T) {
	cursor := newFakeCursor(threeLevelTree(), 1)
	axis := NewLimitedJSONDescendantAxis(cursor, false, 2, 2, nil)

	var got []int64
	for {
		k, ok := axis.Next()
		if !ok {
			break
		}
		got = append(got, k)
	}

	want := []int64{2, 4, 3, 5}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
	for _, k := range got {
		if k == 6 || k == 7 {
			t.Fatalf("level-3 node %d must not be visited", k)
		}
	}
}

func TestBatchDescendantAxisAppliesFilter(t *testing.T) {
	cursor := newFakeCursor(sampleTree(), 1)
	inner := NewDescendantAxis(cursor, false)
	onlyEven := func(c Cursor) bool { return c.NodeKey()%2 == 0 }
	batch := NewBatchDescendantAxis(inner, cursor, onlyEven)

	out, exhausted := batch.NextBatch(nil, 100)
	if !exhausted {
		t.Fatalf("expected axis exhausted")
	}
	for _, k := range out {
		if k%2 != 0 {
			t.Fatalf("filter leaked odd key %d into batch", k)
		}
	}
	if len(out) != 3 { // 2, 6, 4 are the even keys in the subtree
		t.Fatalf("got %d filtered results, want 3: %v", len(out), out)
	}
}
