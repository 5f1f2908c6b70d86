package axis

// entry pairs a stacked right-sibling key with the depth it was pushed
// at, the extra bit the JSON-aware variants need over the basic axis
// (§4.8 "JSON-aware").
type entry struct {
	key   int64
	depth int
}

// JSONDescendantAxis is DescendantAxis generalized with depth tracking:
// popping a stack entry whose depth is 0 signals termination, which
// lets an axis anchored at a non-root node stop correctly even when
// that node's right-sibling key coincides with an ancestor's.
type JSONDescendantAxis struct {
	cursor Cursor

	startKey    int64
	includeSelf bool
	first       bool
	done        bool
	depth       int
	stack       []entry
}

func NewJSONDescendantAxis(cursor Cursor, includeSelf bool) *JSONDescendantAxis {
	return &JSONDescendantAxis{
		cursor:      cursor,
		includeSelf: includeSelf,
		first:       true,
		startKey:    cursor.NodeKey(),
	}
}

func (a *JSONDescendantAxis) HasNext() bool { return !a.done }

func (a *JSONDescendantAxis) Depth() int { return a.depth }

func (a *JSONDescendantAxis) Next() (int64, bool) {
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
		a.depth = 1
		return a.cursor.NodeKey(), true
	}

	if a.cursor.FirstChildKey() != -1 {
		if rs := a.cursor.RightSiblingKey(); rs != -1 {
			a.stack = append(a.stack, entry{key: rs, depth: a.depth})
		}
		a.cursor.MoveToFirstChild()
		a.depth++
		return a.cursor.NodeKey(), true
	}

	if rs := a.cursor.RightSiblingKey(); rs != -1 {
		if a.depth == 0 {
			return a.finish()
		}
		a.cursor.MoveToRightSibling()
		return a.cursor.NodeKey(), true
	}

	for len(a.stack) > 0 {
		e := a.stack[len(a.stack)-1]
		a.stack = a.stack[:len(a.stack)-1]
		if e.depth == 0 {
			return a.finish()
		}
		a.depth = e.depth
		a.cursor.MoveTo(e.key)
		return e.key, true
	}

	return a.finish()
}

func (a *JSONDescendantAxis) finish() (int64, bool) {
	a.done = true
	a.cursor.MoveTo(a.startKey)
	return -1, false
}

// LimitedJSONDescendantAxis adds the maxLevel/maxChildren cut-offs of
// §4.8 "Limited" on top of JSONDescendantAxis's depth-tracked walk by
// filtering candidates the inner axis produces; isKeyToValueTransition
// lets the caller flag an OBJECT_KEY -> value edge, which per the spec
// does not increment depth (a key and its value are conceptually one
// level).
type LimitedJSONDescendantAxis struct {
	inner                   *JSONDescendantAxis
	maxLevel                int
	maxChildren             int
	isKeyToValueTransition  func(parentKey, childKey int64) bool
	childCountAtDepth       map[int]int
}

func NewLimitedJSONDescendantAxis(cursor Cursor, includeSelf bool, maxLevel, maxChildren int, isKeyToValueTransition func(parentKey, childKey int64) bool) *LimitedJSONDescendantAxis {
	return &LimitedJSONDescendantAxis{
		inner:                  NewJSONDescendantAxis(cursor, includeSelf),
		maxLevel:               maxLevel,
		maxChildren:            maxChildren,
		isKeyToValueTransition: isKeyToValueTransition,
		childCountAtDepth:      make(map[int]int),
	}
}

// Next returns the next node key honoring both cut-offs, or (-1, false)
// once the axis is exhausted or every remaining candidate is pruned.
func (a *LimitedJSONDescendantAxis) Next() (int64, bool) {
	for {
		parentKey := a.inner.cursor.NodeKey()
		key, ok := a.inner.Next()
		if !ok {
			return -1, false
		}

		depth := a.inner.Depth()
		if a.isKeyToValueTransition != nil && a.isKeyToValueTransition(parentKey, key) {
			depth--
			a.inner.depth = depth
		}

		if depth > a.maxLevel {
			continue
		}

		if a.maxChildren > 0 {
			count := a.childCountAtDepth[depth]
			if count >= a.maxChildren {
				continue
			}
			a.childCountAtDepth[depth] = count + 1
		}

		return key, true
	}
}

func (a *LimitedJSONDescendantAxis) HasNext() bool { return a.inner.HasNext() }
