package index

import (
	"bytes"
	"sort"

	"github.com/arbordb/arbor/internal/bitmap"
	"github.com/arbordb/arbor/internal/rbtree"
)

// HOTBackend is the alternative trie-based index backend (§4.10, §6
// "indexBackendType: {RBTree, HOT}"): a byte-at-a-time radix trie with
// bitmap-indexed branch fan-out, grounded on sirgallo-mari's hash-array
// mapped trie node (Node.go's MariINode: an [N]uint64 Bitmap plus a
// dense Children slice addressed by population count, Mari.go's
// version-stamped path-copy-on-write discipline). Unlike Mari this
// backend is a plain byte-keyed radix trie kept in memory per resource,
// not a persisted hash trie, since here it plays the role of one of two
// interchangeable index backends rather than the whole storage engine.
type HOTBackend struct {
	root *hotNode
}

type hotNode struct {
	bits     *bitmap.Bitmap
	children []*hotNode
	// leaf is non-nil at a node whose prefix is itself a full stored key.
	leaf *hotEntry
}

type hotEntry struct {
	key   []byte
	value rbtree.NodeReferences
}

const hotFanout = 256

func newHotNode() *hotNode {
	return &hotNode{bits: bitmap.New(hotFanout)}
}

// NewHOTBackend creates an empty trie backend.
func NewHOTBackend() *HOTBackend {
	return &HOTBackend{root: newHotNode()}
}

func (b *HOTBackend) Apply(change ChangeType, key []byte, nodeKey int64) bool {
	switch change {
	case Insert:
		return b.insert(key, nodeKey)
	case Delete:
		return b.remove(key, nodeKey)
	default:
		return false
	}
}

func (b *HOTBackend) insert(key []byte, nodeKey int64) bool {
	n := b.root
	for _, byt := range key {
		idx := int(byt)
		if !n.bits.IsSet(idx) {
			n.bits.Set(idx)
			pos := n.bits.Index(idx)
			n.children = append(n.children, nil)
			copy(n.children[pos+1:], n.children[pos:])
			n.children[pos] = newHotNode()
		}
		n = n.children[n.bits.Index(idx)]
	}
	if n.leaf == nil {
		n.leaf = &hotEntry{key: append([]byte(nil), key...), value: rbtree.NodeReferences{}}
	}
	before := len(n.leaf.value)
	n.leaf.value.Merge(nodeKey)
	return len(n.leaf.value) != before
}

func (b *HOTBackend) remove(key []byte, nodeKey int64) bool {
	n := b.walk(key)
	if n == nil || n.leaf == nil {
		return false
	}
	return n.leaf.value.Remove(nodeKey)
}

func (b *HOTBackend) walk(key []byte) *hotNode {
	n := b.root
	for _, byt := range key {
		idx := int(byt)
		if !n.bits.IsSet(idx) {
			return nil
		}
		n = n.children[n.bits.Index(idx)]
	}
	return n
}

func (b *HOTBackend) Get(key []byte) (rbtree.NodeReferences, bool) {
	n := b.walk(key)
	if n == nil || n.leaf == nil {
		return nil, false
	}
	return n.leaf.value, true
}

// All walks every stored key in ascending byte-lexicographic order,
// matching the canonical backend's iteration order exactly, since a
// radix trie's DFS-in-child-order traversal over byte keys is
// equivalent to a lexicographic sort of the stored keys.
func (b *HOTBackend) All(fn func(key []byte, refs rbtree.NodeReferences) bool) {
	var entries []*hotEntry
	var walk func(n *hotNode)
	walk = func(n *hotNode) {
		if n.leaf != nil {
			entries = append(entries, n.leaf)
		}
		for _, c := range n.children {
			walk(c)
		}
	}
	walk(b.root)
	sort.Slice(entries, func(i, j int) bool {
		return bytes.Compare(entries[i].key, entries[j].key) < 0
	})
	for _, e := range entries {
		if !fn(e.key, e.value) {
			return
		}
	}
}
