// Package diff implements C12: the revision diff engine. It co-walks
// two revisions of the same resource in preorder and classifies every
// node pair it encounters, the way a three-way merge tool walks two
// trees side by side rather than computing a general tree-edit
// distance — tractable because both trees share the same node-key
// address space across revisions (a node's key never changes once
// assigned), so "the same node" is an identity check, not a similarity
// heuristic.
package diff

// Kind classifies one diff tuple (§4.12).
type Kind int

const (
	Inserted Kind = iota
	Deleted
	ReplacedNew
	ReplacedOld
	Updated
	Same
	SameHash
)

func (k Kind) String() string {
	switch k {
	case Inserted:
		return "INSERTED"
	case Deleted:
		return "DELETED"
	case ReplacedNew:
		return "REPLACEDNEW"
	case ReplacedOld:
		return "REPLACEDOLD"
	case Updated:
		return "UPDATED"
	case Same:
		return "SAME"
	case SameHash:
		return "SAMEHASH"
	default:
		return "UNKNOWN"
	}
}

// Tuple is one row of the diff stream (§4.12
// "{kind, oldNodeKey, newNodeKey, depth}").
type Tuple struct {
	Kind       Kind
	OldNodeKey int64
	NewNodeKey int64
	Depth      int
}

// NodeView is the minimal per-node information the diff walk needs,
// kept independent of the concrete node/cursor types so it can be fed
// by a real read-only transaction cursor or, in tests, by a plain
// fixture map.
type NodeView struct {
	NodeKey      int64
	ParentKey    int64
	Hash         uint64
	FirstChild   int64
	RightSibling int64
}

const noKey int64 = -1

// Tree is a read-only view into one revision's structural shape,
// addressed by node key. Implementations are expected to be cheap,
// cached lookups (a read transaction cursor moved around, or an
// in-memory map in tests).
type Tree interface {
	Node(key int64) (NodeView, bool)
	Root() int64
}

// Diff co-walks oldTree and newTree in preorder starting at each root,
// calling emit once per classified node pair. It never crosses a
// subtree boundary established by emitting a whole-subtree
// INSERTED/DELETED: once a node is classified as purely inserted or
// deleted, none of its descendants are walked against the other tree —
// they're reported as INSERTED/DELETED too, via the recursive calls
// below, not matched against unrelated nodes in the other tree.
func Diff(oldTree, newTree Tree, emit func(Tuple)) {
	walk(oldTree, newTree, oldTree.Root(), newTree.Root(), 0, emit)
}

func walk(oldTree, newTree Tree, oldKey, newKey int64, depth int, emit func(Tuple)) {
	oldNode, oldOK := nodeOrNone(oldTree, oldKey)
	newNode, newOK := nodeOrNone(newTree, newKey)

	switch {
	case oldOK && !newOK:
		emitSubtree(oldTree, oldKey, depth, Deleted, emit)
		return
	case !oldOK && newOK:
		emitSubtree(newTree, newKey, depth, Inserted, emit)
		return
	case !oldOK && !newOK:
		return
	}

	classifyAndEmit(oldNode, newNode, depth, emit)

	// Walk children in lockstep by position; a real resolver (the path
	// summary plus sibling counting in the full serializer) is what
	// turns this positional walk into the array-index-aware diff the
	// serializer exposes, but structural classification itself only
	// needs "does a child at this position exist in both trees".
	oldChild, newChild := oldNode.FirstChild, newNode.FirstChild
	for oldChild != noKey || newChild != noKey {
		walk(oldTree, newTree, oldChild, newChild, depth+1, emit)

		if oldChild != noKey {
			if n, ok := oldTree.Node(oldChild); ok {
				oldChild = n.RightSibling
			} else {
				oldChild = noKey
			}
		}
		if newChild != noKey {
			if n, ok := newTree.Node(newChild); ok {
				newChild = n.RightSibling
			} else {
				newChild = noKey
			}
		}
	}
}

func nodeOrNone(tree Tree, key int64) (NodeView, bool) {
	if key == noKey {
		return NodeView{}, false
	}
	return tree.Node(key)
}

func classifyAndEmit(oldNode, newNode NodeView, depth int, emit func(Tuple)) {
	kind := Updated
	switch {
	case oldNode.NodeKey == newNode.NodeKey && oldNode.Hash == newNode.Hash:
		kind = Same
	case oldNode.NodeKey == newNode.NodeKey:
		kind = Updated
	case oldNode.Hash == newNode.Hash:
		kind = SameHash
	default:
		kind = ReplacedNew
	}
	emit(Tuple{Kind: kind, OldNodeKey: oldNode.NodeKey, NewNodeKey: newNode.NodeKey, Depth: depth})
	if kind == ReplacedNew {
		emit(Tuple{Kind: ReplacedOld, OldNodeKey: oldNode.NodeKey, NewNodeKey: newNode.NodeKey, Depth: depth})
	}
}

// emitSubtree emits kind for key and every one of its descendants, in
// preorder, used when one side of a position has no counterpart at all
// in the other tree.
func emitSubtree(tree Tree, key int64, depth int, kind Kind, emit func(Tuple)) {
	n, ok := tree.Node(key)
	if !ok {
		return
	}
	var t Tuple
	if kind == Deleted {
		t = Tuple{Kind: kind, OldNodeKey: key, NewNodeKey: noKey, Depth: depth}
	} else {
		t = Tuple{Kind: kind, OldNodeKey: noKey, NewNodeKey: key, Depth: depth}
	}
	emit(t)

	child := n.FirstChild
	for child != noKey {
		emitSubtree(tree, child, depth+1, kind, emit)
		cn, ok := tree.Node(child)
		if !ok {
			break
		}
		child = cn.RightSibling
	}
}
