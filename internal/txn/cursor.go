package txn

import "github.com/arbordb/arbor/internal/node"

// Cursor is the shared contract both read-only and write transactions'
// cursors satisfy (§4.6). Every moveTo* either moves the cursor and
// returns true, or leaves it exactly where it was and returns false.
// NodeKey/MoveTo/MoveToFirstChild/RightSiblingKey/FirstChildKey also
// satisfy internal/axis.Cursor, so a *ReadCursor or *WriteCursor can
// drive a DescendantAxis directly without an adapter.
type Cursor interface {
	NodeKey() int64

	MoveTo(nodeKey int64) bool
	MoveToFirstChild() bool
	MoveToLastChild() bool
	MoveToLeftSibling() bool
	MoveToRightSibling() bool
	MoveToParent() bool
	MoveToPrevious() bool
	MoveToNext() bool
	MoveToDocumentRoot() bool
	MoveToNextFollowing() bool

	NodeKind() node.Kind
	FirstChildKey() int64
	LastChildKey() int64
	LeftSiblingKey() int64
	RightSiblingKey() int64
	ChildCount() int64
	DescendantCount() int64
	Hash() uint64
	PathNodeKey() int64
}

// DocumentRootKey is the fixed node key of the root/document node every
// resource's tree is rooted at.
const DocumentRootKey int64 = 0

// pageAddress splits a node key into the record page it lives on and
// its slot within that page.
func pageAddress(nodeKey int64, capacity int) (pageKey int64, slot int) {
	return nodeKey / int64(capacity), int(nodeKey % int64(capacity))
}

// cursorBase implements every Cursor method that only needs to fetch
// nodes by key, shared by ReadCursor and WriteCursor via embedding plus
// a nodeAt hook each supplies.
type cursorBase struct {
	at     int64
	nodeAt func(key int64) (*node.Node, error)
}

func (c *cursorBase) NodeKey() int64 { return c.at }

func (c *cursorBase) current() *node.Node {
	n, err := c.nodeAt(c.at)
	if err != nil || n == nil {
		return nil
	}
	return n
}

func (c *cursorBase) MoveTo(key int64) bool {
	if key == node.NoKey {
		return false
	}
	n, err := c.nodeAt(key)
	if err != nil || n == nil {
		return false
	}
	c.at = key
	return true
}

func (c *cursorBase) MoveToFirstChild() bool {
	n := c.current()
	if n == nil || n.FirstChildKey == node.NoKey {
		return false
	}
	return c.MoveTo(n.FirstChildKey)
}

func (c *cursorBase) MoveToLastChild() bool {
	n := c.current()
	if n == nil || n.LastChildKey == node.NoKey {
		return false
	}
	return c.MoveTo(n.LastChildKey)
}

func (c *cursorBase) MoveToLeftSibling() bool {
	n := c.current()
	if n == nil || n.LeftSiblingKey == node.NoKey {
		return false
	}
	return c.MoveTo(n.LeftSiblingKey)
}

func (c *cursorBase) MoveToRightSibling() bool {
	n := c.current()
	if n == nil || n.RightSiblingKey == node.NoKey {
		return false
	}
	return c.MoveTo(n.RightSiblingKey)
}

func (c *cursorBase) MoveToParent() bool {
	n := c.current()
	if n == nil || n.ParentKey == node.NoKey {
		return false
	}
	return c.MoveTo(n.ParentKey)
}

func (c *cursorBase) MoveToDocumentRoot() bool {
	return c.MoveTo(DocumentRootKey)
}

// MoveToNext moves to the preorder successor: first child if any,
// otherwise the nearest ancestor's right sibling.
func (c *cursorBase) MoveToNext() bool {
	start := c.at
	if c.MoveToFirstChild() {
		return true
	}
	if c.MoveToNextFollowing() {
		return true
	}
	c.at = start
	return false
}

// MoveToNextFollowing moves to the next node in preorder that is not a
// descendant of the current node: the current node's right sibling, or
// failing that its ancestors' right siblings, walking upward.
func (c *cursorBase) MoveToNextFollowing() bool {
	start := c.at
	for {
		n := c.current()
		if n == nil {
			c.at = start
			return false
		}
		if n.RightSiblingKey != node.NoKey {
			return c.MoveTo(n.RightSiblingKey)
		}
		if n.ParentKey == node.NoKey {
			c.at = start
			return false
		}
		c.at = n.ParentKey
	}
}

// MoveToPrevious moves to the preorder predecessor: the left sibling's
// last (deepest rightmost) descendant, or the parent if there is no
// left sibling.
func (c *cursorBase) MoveToPrevious() bool {
	start := c.at
	n := c.current()
	if n == nil {
		return false
	}
	if n.LeftSiblingKey == node.NoKey {
		return c.MoveToParent()
	}
	if !c.MoveTo(n.LeftSiblingKey) {
		c.at = start
		return false
	}
	for c.MoveToLastChild() {
	}
	return true
}

func (c *cursorBase) NodeKind() node.Kind {
	if n := c.current(); n != nil {
		return n.Kind
	}
	return node.KindUnknown
}

func (c *cursorBase) FirstChildKey() int64 {
	if n := c.current(); n != nil {
		return n.FirstChildKey
	}
	return node.NoKey
}

func (c *cursorBase) LastChildKey() int64 {
	if n := c.current(); n != nil {
		return n.LastChildKey
	}
	return node.NoKey
}

func (c *cursorBase) LeftSiblingKey() int64 {
	if n := c.current(); n != nil {
		return n.LeftSiblingKey
	}
	return node.NoKey
}

func (c *cursorBase) RightSiblingKey() int64 {
	if n := c.current(); n != nil {
		return n.RightSiblingKey
	}
	return node.NoKey
}

func (c *cursorBase) ChildCount() int64 {
	if n := c.current(); n != nil {
		return n.ChildCount
	}
	return 0
}

func (c *cursorBase) DescendantCount() int64 {
	if n := c.current(); n != nil {
		return n.DescendantCount
	}
	return 0
}

func (c *cursorBase) Hash() uint64 {
	if n := c.current(); n != nil {
		return n.Hash
	}
	return 0
}

func (c *cursorBase) PathNodeKey() int64 {
	if n := c.current(); n != nil {
		return n.PathNodeKey
	}
	return node.NoKey
}
