package index

import "github.com/arbordb/arbor/internal/rbtree"

// ChangeType distinguishes an incremental index update from an
// insertion from a removal (§4.10 "Listeners receive (ChangeType,
// node, pathNodeKey)").
type ChangeType int

const (
	Insert ChangeType = iota
	Delete
)

// Backend is the contract both the canonical red-black backend and the
// alternative trie ("HOT") backend satisfy, so a builder or listener
// never needs to know which one backs a given resource's index
// (§4.10 "both must satisfy the same listener and iterator contracts").
type Backend interface {
	// Apply performs an INSERT (merge nodeKey into key's reference set,
	// creating the key if absent) or a DELETE (remove nodeKey from
	// key's reference set, a no-op if absent), returning whether it
	// changed anything.
	Apply(change ChangeType, key []byte, nodeKey int64) bool
	// Get returns the reference set stored under key, if present.
	Get(key []byte) (rbtree.NodeReferences, bool)
	// All walks every (key, references) pair in ascending key order,
	// stopping early if fn returns false.
	All(fn func(key []byte, refs rbtree.NodeReferences) bool)
}

// RBTreeBackend adapts rbtree.Tree to Backend using byte-lexicographic
// key ordering, the canonical backend named in §4.10.
type RBTreeBackend struct {
	tree *rbtree.Tree
}

// NewRBTreeBackend creates an empty canonical backend.
func NewRBTreeBackend() *RBTreeBackend {
	return &RBTreeBackend{tree: rbtree.New(rbtree.BytesComparator)}
}

func (b *RBTreeBackend) Apply(change ChangeType, key []byte, nodeKey int64) bool {
	switch change {
	case Insert:
		before, existed := b.tree.Get(key, rbtree.Equal)
		if existed {
			if _, already := before[nodeKey]; already {
				return false
			}
		}
		b.tree.Index(key, nodeKey)
		return true
	case Delete:
		return b.tree.Remove(key, nodeKey)
	default:
		return false
	}
}

func (b *RBTreeBackend) Get(key []byte) (rbtree.NodeReferences, bool) {
	return b.tree.Get(key, rbtree.Equal)
}

// Range exposes the ordered-query modes unique to the RB backend
// (GREATER/LESS and their or-equal variants); callers that need this
// must type-assert to *RBTreeBackend since the trie backend cannot
// support it without a full key scan.
func (b *RBTreeBackend) Range(key []byte, mode rbtree.Mode) (rbtree.NodeReferences, bool) {
	return b.tree.Get(key, mode)
}

// All walks in ascending key order. rbtree.Iterator yields preorder,
// not sorted order, so this uses the tree's in-order walk instead, with
// an explicit stop flag since InOrder's callback has no early-exit.
func (b *RBTreeBackend) All(fn func(key []byte, refs rbtree.NodeReferences) bool) {
	stop := false
	b.tree.InOrder(func(n *rbtree.Node) {
		if stop {
			return
		}
		if !fn(n.Key.([]byte), n.Value) {
			stop = true
		}
	})
}
