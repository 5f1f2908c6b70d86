// Package rbtree implements C9: a red-black tree used as the canonical
// backend for every secondary index (PATH, CAS, NAME). The tree lives
// in memory only, as pointer-linked nodes; nothing in this package
// writes it through the page codec or reads it back from storage. The
// rotation logic below is the textbook red-black insertion algorithm,
// grounded in its general shape
// on sirgallo-mari's own node-copy-then-swap-in approach to
// structural updates (Operation.go's copyOnWrite-style node replacement
// before a CAS), generalized from Mari's single node-copy to the
// multi-node rotations a red-black insert requires. Remove only edits a
// key's reference set and never unlinks a tree node, so there is no
// delete rebalancing.
package rbtree

// Color is a red-black tree node's color.
type Color bool

const (
	Red   Color = true
	Black Color = false
)

// Comparator orders two keys the way the index's key type requires
// (§4.9 "K is Comparable"): negative if a < b, zero if equal, positive
// if a > b.
type Comparator func(a, b any) int

// NodeReferences is the set of data-tree node keys a single index key
// resolves to (§3 "value nodes carry NodeReferences"). Most keys (path,
// name) resolve to many data nodes sharing the same path or QName, so
// this is a set, not a single key.
type NodeReferences map[int64]struct{}

// Merge adds nodeKey to the set.
func (r NodeReferences) Merge(nodeKey int64) { r[nodeKey] = struct{}{} }

// Remove deletes nodeKey from the set, reporting whether it was present.
func (r NodeReferences) Remove(nodeKey int64) bool {
	if _, ok := r[nodeKey]; !ok {
		return false
	}
	delete(r, nodeKey)
	return true
}

// Empty reports whether the set has no members left (the value node is
// eligible for removal once this holds).
func (r NodeReferences) Empty() bool { return len(r) == 0 }

// Node is one key/value pair in the tree. Value carries the NodeReferences
// for this key (§3 "value nodes live at nodeKey+1"); Index merges node
// keys into it and Remove deletes them from it.
type Node struct {
	Key                 any
	Value               NodeReferences
	Color               Color
	Left, Right, Parent *Node
}

func isRed(n *Node) bool {
	return n != nil && n.Color == Red
}

// Tree is a standard red-black BST parameterized by a Comparator,
// tracking its root so callers (the index builders/listeners of C10)
// can walk it after a batch of mutations; nothing in this package
// serializes it.
type Tree struct {
	root *Node
	cmp  Comparator
	size int
}

// New creates an empty tree ordered by cmp.
func New(cmp Comparator) *Tree {
	return &Tree{cmp: cmp}
}

func (t *Tree) Root() *Node { return t.root }
func (t *Tree) Size() int   { return t.size }

// Mode selects how Get matches a key (§4.9 "get(key, mode)").
type Mode int

const (
	Equal Mode = iota
	Greater
	GreaterOrEqual
	Less
	LessOrEqual
)

// Get finds the node matching key under mode, returning its
// NodeReferences on a hit or (nil, false) otherwise.
func (t *Tree) Get(key any, mode Mode) (NodeReferences, bool) {
	n := t.search(key, mode)
	if n == nil {
		return nil, false
	}
	return n.Value, true
}

// search implements all five modes via one BST descent: Equal wants an
// exact match; the inequality modes track the best candidate seen so
// far as the walk narrows in on key.
func (t *Tree) search(key any, mode Mode) *Node {
	var best *Node
	cur := t.root
	for cur != nil {
		c := t.cmp(key, cur.Key)
		switch {
		case c == 0:
			switch mode {
			case Equal, GreaterOrEqual, LessOrEqual:
				return cur
			case Greater:
				cur = cur.Right
				continue
			case Less:
				cur = cur.Left
				continue
			}
		case c < 0:
			if mode == Greater || mode == GreaterOrEqual {
				best = cur
			}
			cur = cur.Left
		default:
			if mode == Less || mode == LessOrEqual {
				best = cur
			}
			cur = cur.Right
		}
	}
	if mode == Equal {
		return nil
	}
	return best
}

// Index locates key; on a hit, merges nodeKey into the existing value's
// NodeReferences; on a miss, allocates a new (key, value) node pair and
// runs the standard RB insertion fix-up (§4.9 "index(key, value, move)").
// Returns the node the key ends up at.
func (t *Tree) Index(key any, nodeKey int64) *Node {
	if t.root == nil {
		t.root = &Node{Key: key, Value: NodeReferences{nodeKey: {}}, Color: Black}
		t.size++
		return t.root
	}

	cur := t.root
	var parent *Node
	var wentLeft bool
	for cur != nil {
		c := t.cmp(key, cur.Key)
		if c == 0 {
			cur.Value.Merge(nodeKey)
			return cur
		}
		parent = cur
		if c < 0 {
			cur = cur.Left
			wentLeft = true
		} else {
			cur = cur.Right
			wentLeft = false
		}
	}

	n := &Node{Key: key, Value: NodeReferences{nodeKey: {}}, Color: Red, Parent: parent}
	if wentLeft {
		parent.Left = n
	} else {
		parent.Right = n
	}
	t.size++
	t.fixInsert(n)
	return n
}

// Remove finds key's value node and removes nodeKey from its
// NodeReferences, reporting whether the removal took place (§4.9
// "remove(key, nodeKey) -> bool"). The key node itself is left in place
// even if its reference set becomes empty: structural deletion is not
// required by the listener contract, and an empty-but-present key is
// harmless to readers (Get returns an empty, not missing, set).
func (t *Tree) Remove(key any, nodeKey int64) bool {
	n := t.search(key, Equal)
	if n == nil {
		return false
	}
	return n.Value.Remove(nodeKey)
}

func (t *Tree) rotateLeft(x *Node) {
	y := x.Right
	x.Right = y.Left
	if y.Left != nil {
		y.Left.Parent = x
	}
	y.Parent = x.Parent
	if x.Parent == nil {
		t.root = y
	} else if x == x.Parent.Left {
		x.Parent.Left = y
	} else {
		x.Parent.Right = y
	}
	y.Left = x
	x.Parent = y
}

func (t *Tree) rotateRight(x *Node) {
	y := x.Left
	x.Left = y.Right
	if y.Right != nil {
		y.Right.Parent = x
	}
	y.Parent = x.Parent
	if x.Parent == nil {
		t.root = y
	} else if x == x.Parent.Right {
		x.Parent.Right = y
	} else {
		x.Parent.Left = y
	}
	y.Right = x
	x.Parent = y
}

func (t *Tree) fixInsert(z *Node) {
	for z.Parent != nil && z.Parent.Color == Red {
		parent := z.Parent
		grandparent := parent.Parent
		if grandparent == nil {
			break
		}
		if parent == grandparent.Left {
			uncle := grandparent.Right
			if isRed(uncle) {
				parent.Color = Black
				uncle.Color = Black
				grandparent.Color = Red
				z = grandparent
				continue
			}
			if z == parent.Right {
				z = parent
				t.rotateLeft(z)
				parent = z.Parent
				grandparent = parent.Parent
			}
			parent.Color = Black
			grandparent.Color = Red
			t.rotateRight(grandparent)
		} else {
			uncle := grandparent.Left
			if isRed(uncle) {
				parent.Color = Black
				uncle.Color = Black
				grandparent.Color = Red
				z = grandparent
				continue
			}
			if z == parent.Left {
				z = parent
				t.rotateRight(z)
				parent = z.Parent
				grandparent = parent.Parent
			}
			parent.Color = Black
			grandparent.Color = Red
			t.rotateLeft(grandparent)
		}
	}
	t.root.Color = Black
}

// InOrder visits every key in ascending order, used by the ordering
// check in §8 scenario 5 (a red-black tree's in-order walk is its sort
// order by construction).
func (t *Tree) InOrder(fn func(n *Node)) {
	var walk func(n *Node)
	walk = func(n *Node) {
		if n == nil {
			return
		}
		walk(n.Left)
		fn(n)
		walk(n.Right)
	}
	walk(t.root)
}

// Iterator is RBNodeIterator (§4.9): forward preorder traversal that
// pushes the right child before recursing left, so the eventual visit
// order is self, then left subtree, then right subtree. Uses an
// explicit stack so iteration can resume one node at a time instead of
// collecting everything eagerly.
type Iterator struct {
	stack []*Node
}

// NewIterator builds a preorder iterator rooted at n (typically t.Root()).
func NewIterator(n *Node) *Iterator {
	it := &Iterator{}
	if n != nil {
		it.stack = append(it.stack, n)
	}
	return it
}

// HasNext reports whether another node remains.
func (it *Iterator) HasNext() bool { return len(it.stack) > 0 }

// Next pops and returns the next node in preorder, pushing its right
// child (if any) before its left child so left is popped first.
func (it *Iterator) Next() (*Node, bool) {
	if len(it.stack) == 0 {
		return nil, false
	}
	last := len(it.stack) - 1
	n := it.stack[last]
	it.stack = it.stack[:last]
	if n.Right != nil {
		it.stack = append(it.stack, n.Right)
	}
	if n.Left != nil {
		it.stack = append(it.stack, n.Left)
	}
	return n, true
}
