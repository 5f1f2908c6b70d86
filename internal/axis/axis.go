// Package axis implements C8: the preorder descendant axes, all built
// on the same right-sibling-key stack technique (§4.8). The stack-based
// O(1)-amortized-per-step walk is the idiomatic analogue of
// sirgallo-mari's Iterate.go, which threads a similar explicit
// continuation stack through its trie traversal instead of recursing.
package axis

// Cursor is the minimal navigation surface the axes need — a subset of
// the full cursor contract (C6) restricted to what preorder descent
// touches. moveTo* methods follow the contract's post-condition: either
// they move the cursor and return true, or they leave it at the prior
// key and return false.
type Cursor interface {
	NodeKey() int64
	MoveTo(nodeKey int64) bool
	MoveToFirstChild() bool
	MoveToRightSibling() bool
	FirstChildKey() int64
	RightSiblingKey() int64
}

// DescendantAxis walks the subtree rooted at a starting node in
// preorder, first-child before right-sibling, using an explicit stack
// of right-sibling keys instead of recursion (§4.8 "Basic").
type DescendantAxis struct {
	cursor Cursor

	startKey             int64
	startRightSiblingKey int64
	includeSelf          bool
	first                bool
	done                 bool
	stack                []int64
}

// NewDescendantAxis resets the axis at cursor's current position.
func NewDescendantAxis(cursor Cursor, includeSelf bool) *DescendantAxis {
	return &DescendantAxis{
		cursor:               cursor,
		includeSelf:          includeSelf,
		first:                true,
		startKey:             cursor.NodeKey(),
		startRightSiblingKey: cursor.RightSiblingKey(),
	}
}

// HasNext reports whether another call to Next would yield a node.
func (a *DescendantAxis) HasNext() bool { return !a.done }

// Next advances to and returns the next node key in preorder, or
// (-1, false) when the axis is exhausted. On exhaustion the cursor is
// rewound to the start key (§4.8 step 5 "done() rewinds cursor to
// startKey").
func (a *DescendantAxis) Next() (int64, bool) {
	if a.done {
		return -1, false
	}

	if a.first {
		a.first = false
		if a.includeSelf {
			a.cursor.MoveTo(a.startKey)
			return a.startKey, true
		}
		if !a.cursor.MoveToFirstChild() {
			return a.finish()
		}
		return a.cursor.NodeKey(), true
	}

	// The cursor currently sits on the previously emitted node.
	if a.cursor.FirstChildKey() != -1 {
		if rs := a.cursor.RightSiblingKey(); rs != -1 {
			a.stack = append(a.stack, rs)
		}
		a.cursor.MoveToFirstChild()
		return a.cursor.NodeKey(), true
	}

	if rs := a.cursor.RightSiblingKey(); rs != -1 {
		if rs == a.startRightSiblingKey {
			return a.finish()
		}
		a.cursor.MoveToRightSibling()
		return a.cursor.NodeKey(), true
	}

	for len(a.stack) > 0 {
		k := a.stack[len(a.stack)-1]
		a.stack = a.stack[:len(a.stack)-1]
		if k == a.startRightSiblingKey {
			return a.finish()
		}
		a.cursor.MoveTo(k)
		return k, true
	}

	return a.finish()
}

func (a *DescendantAxis) finish() (int64, bool) {
	a.done = true
	a.cursor.MoveTo(a.startKey)
	return -1, false
}
